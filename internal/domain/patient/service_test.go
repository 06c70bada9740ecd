package patient

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/strokecare/strokecare/internal/platform/apperr"
	"github.com/strokecare/strokecare/internal/platform/auth"
	"github.com/strokecare/strokecare/pkg/pagination"
)

func newTestService(repo PatientRepository) *Service {
	svc := NewService(repo, nil, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC) }
	return svc
}

func authed() context.Context {
	return auth.WithIdentity(context.Background(), &auth.Identity{UserID: 1, Username: "clinician"})
}

func TestService_RequiresIdentity(t *testing.T) {
	svc := newTestService(newMockPatientRepo())
	ctx := context.Background()

	checks := map[string]error{}
	_, checks["list"] = svc.List(ctx, pagination.New(1, 20))
	_, checks["get"] = svc.Get(ctx, 1)
	_, checks["create"] = svc.Create(ctx, validPatientForm())
	_, checks["update"] = svc.Update(ctx, 1, validPatientForm())
	checks["delete"] = svc.Delete(ctx, 1)
	_, checks["search"] = svc.Search(ctx, "gender", "Male")
	_, checks["stats"] = svc.Stats(ctx)
	_, checks["load"] = svc.LoadDataset(ctx, "unused.csv")
	checks["guard"] = svc.Guard(ctx)

	for op, err := range checks {
		if err != apperr.ErrLoginRequired {
			t.Errorf("%s: expected ErrLoginRequired, got %v", op, err)
		}
	}
}

func TestService_CreateThenGet(t *testing.T) {
	repo := newMockPatientRepo()
	repo.seed(3, nil)
	svc := newTestService(repo)
	ctx := authed()

	created, err := svc.Create(ctx, validPatientForm())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.ID != 4 {
		t.Errorf("expected next id 4, got %d", created.ID)
	}

	got, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Gender != "Female" || got.Age != 61 || got.WorkType != "Self-employed" || got.Stroke != 1 || got.BMI != nil {
		t.Errorf("stored fields differ: %+v", got)
	}
	if !got.CreatedAt.Equal(created.CreatedAt) {
		t.Error("created_at not stored")
	}
}

func TestService_CreateFirstPatient(t *testing.T) {
	svc := newTestService(newMockPatientRepo())
	p, err := svc.Create(authed(), validPatientForm())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != 1 {
		t.Errorf("expected id 1 in an empty store, got %d", p.ID)
	}
}

func TestService_CreateInvalid(t *testing.T) {
	repo := newMockPatientRepo()
	form := validPatientForm()
	form.Age = "130"

	_, err := newTestService(repo).Create(authed(), form)
	if !apperr.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(repo.patients) != 0 {
		t.Error("invalid patient must not be stored")
	}
}

func TestService_UpdatePreservesIdentity(t *testing.T) {
	repo := newMockPatientRepo()
	svc := newTestService(repo)
	ctx := authed()

	created, err := svc.Create(ctx, validPatientForm())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	svc.now = func() time.Time { return time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC) }
	form := validPatientForm()
	form.Age = "62"
	form.BMI = "31.5"
	form.SmokingStatus = "smokes"
	if _, err := svc.Update(ctx, created.ID, form); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Age != 62 || got.BMI == nil || *got.BMI != 31.5 || got.SmokingStatus != "smokes" {
		t.Errorf("update not applied: %+v", got)
	}
	if got.ID != created.ID || !got.CreatedAt.Equal(created.CreatedAt) {
		t.Error("id and created_at must be preserved")
	}
	if got.UpdatedAt == nil || !got.UpdatedAt.Equal(time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("expected updated_at to be stamped, got %v", got.UpdatedAt)
	}
}

func TestService_UpdateMissing(t *testing.T) {
	_, err := newTestService(newMockPatientRepo()).Update(authed(), 99, validPatientForm())
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestService_DeleteThenGet(t *testing.T) {
	repo := newMockPatientRepo()
	repo.seed(2, nil)
	svc := newTestService(repo)
	ctx := authed()

	if err := svc.Delete(ctx, 2); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, 2); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := svc.Delete(ctx, 2); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound for second delete, got %v", err)
	}
}

func TestService_ListHugePageIsEmpty(t *testing.T) {
	repo := newMockPatientRepo()
	repo.seed(5, nil)

	pg, err := newTestService(repo).List(authed(), pagination.New(461168601842738792, 20))
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(pg.Items) != 0 || pg.Total != 5 {
		t.Errorf("expected empty page of 5 total, got %d items, total %d", len(pg.Items), pg.Total)
	}
}

func TestService_ListPages(t *testing.T) {
	repo := newMockPatientRepo()
	repo.seed(45, nil)
	svc := newTestService(repo)
	ctx := authed()

	tests := []struct {
		page      int
		wantItems int
		firstID   int64
	}{
		{1, 20, 1},
		{2, 20, 21},
		{3, 5, 41},
		{4, 0, 0},
	}
	for _, tt := range tests {
		pg, err := svc.List(ctx, pagination.New(tt.page, 20))
		if err != nil {
			t.Fatalf("page %d: %v", tt.page, err)
		}
		if len(pg.Items) != tt.wantItems {
			t.Errorf("page %d: expected %d items, got %d", tt.page, tt.wantItems, len(pg.Items))
		}
		if pg.Total != 45 {
			t.Errorf("page %d: expected total 45, got %d", tt.page, pg.Total)
		}
		if tt.wantItems > 0 && pg.Items[0].ID != tt.firstID {
			t.Errorf("page %d: expected first id %d, got %d", tt.page, tt.firstID, pg.Items[0].ID)
		}
	}
}

func TestService_Stats(t *testing.T) {
	ctx := authed()

	empty, err := newTestService(newMockPatientRepo()).Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if empty != (Stats{}) {
		t.Errorf("expected zero stats, got %+v", empty)
	}

	repo := newMockPatientRepo()
	repo.seed(10, func(i int) bool { return i <= 3 })
	stats, err := newTestService(repo).Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	want := Stats{Total: 10, StrokeCount: 3, NoStrokeCount: 7, StrokePercentage: 30.0}
	if stats != want {
		t.Errorf("expected %+v, got %+v", want, stats)
	}
}

func TestService_StatsStoreDown(t *testing.T) {
	repo := newMockPatientRepo()
	repo.err = apperr.Store("patient count", errStoreDown)
	if _, err := newTestService(repo).Stats(authed()); !apperr.IsStore(err) {
		t.Errorf("expected StoreError, got %v", err)
	}
}

func TestService_SearchGender(t *testing.T) {
	repo := newMockPatientRepo()
	repo.seed(6, nil)
	repo.patients[1].Gender = "Female"
	repo.patients[4].Gender = "Other"
	svc := newTestService(repo)

	results, err := svc.Search(authed(), "gender", "Male")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 4 {
		t.Errorf("expected 4 results, got %d", len(results))
	}
	for _, p := range results {
		if p.Gender != "Male" {
			t.Errorf("unexpected gender %q in results", p.Gender)
		}
	}
}

func TestService_SearchNoMatchIsEmpty(t *testing.T) {
	repo := newMockPatientRepo()
	repo.seed(3, nil)
	results, err := newTestService(repo).Search(authed(), "work_type", "Never")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestService_SearchLimit(t *testing.T) {
	repo := newMockPatientRepo()
	repo.seed(SearchLimit+10, nil)
	results, err := newTestService(repo).Search(authed(), "smoking_status", "formerly")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != SearchLimit {
		t.Errorf("expected %d results, got %d", SearchLimit, len(results))
	}
}

func TestService_SearchUnknownField(t *testing.T) {
	_, err := newTestService(newMockPatientRepo()).Search(authed(), "bmi", "20")
	if !apperr.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestService_LoadDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stroke.csv")
	data := datasetHeader +
		"9046,Male,67,0,1,Yes,Private,Urban,228.69,36.6,formerly smoked,1\n" +
		"51676,Female,61,0,0,Yes,Self-employed,Rural,202.21,N/A,never smoked,1\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write dataset: %v", err)
	}

	repo := newMockPatientRepo()
	res, err := newTestService(repo).LoadDataset(authed(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Inserted != 2 || res.Skipped != 0 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestService_LoadDatasetMissingFile(t *testing.T) {
	_, err := newTestService(newMockPatientRepo()).LoadDataset(authed(), filepath.Join(t.TempDir(), "nope.csv"))
	if err == nil {
		t.Fatal("expected error for a missing file")
	}
}
