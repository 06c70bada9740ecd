package patient

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/strokecare/strokecare/internal/platform/auth"
	"github.com/strokecare/strokecare/internal/platform/web"
)

func newTestEcho(t *testing.T, repo PatientRepository, loggedIn bool) *echo.Echo {
	t.Helper()
	renderer, err := web.NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer() error: %v", err)
	}
	e := echo.New()
	e.Renderer = renderer
	e.HTTPErrorHandler = web.HTTPErrorHandler(zerolog.Nop())
	if loggedIn {
		e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				id := &auth.Identity{UserID: 1, Username: "clinician"}
				c.SetRequest(c.Request().WithContext(auth.WithIdentity(c.Request().Context(), id)))
				return next(c)
			}
		})
	}
	NewHandler(newTestService(repo), "testdata/missing.csv", zerolog.Nop()).RegisterRoutes(e)
	return e
}

func serve(e *echo.Echo, method, target string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func formValues(f Form) url.Values {
	return url.Values{
		"gender":            {f.Gender},
		"age":               {f.Age},
		"hypertension":      {f.Hypertension},
		"heart_disease":     {f.HeartDisease},
		"ever_married":      {f.EverMarried},
		"work_type":         {f.WorkType},
		"Residence_type":    {f.ResidenceType},
		"avg_glucose_level": {f.AvgGlucoseLevel},
		"bmi":               {f.BMI},
		"smoking_status":    {f.SmokingStatus},
		"stroke":            {f.Stroke},
	}
}

func TestHandler_AnonymousRedirectsToLogin(t *testing.T) {
	e := newTestEcho(t, newMockPatientRepo(), false)

	routes := []struct{ method, path string }{
		{http.MethodGet, "/dashboard"},
		{http.MethodGet, "/patients"},
		{http.MethodGet, "/patients/new"},
		{http.MethodGet, "/patients/1"},
		{http.MethodGet, "/patients/1/edit"},
		{http.MethodPost, "/patients/1/delete"},
		{http.MethodGet, "/search"},
		{http.MethodPost, "/load_dataset"},
	}
	for _, r := range routes {
		rec := serve(e, r.method, r.path, nil)
		if rec.Code != http.StatusFound || !strings.HasPrefix(rec.Header().Get("Location"), "/login") {
			t.Errorf("%s %s: expected redirect to login, got %d %q", r.method, r.path, rec.Code, rec.Header().Get("Location"))
		}
	}
}

func TestHandler_Dashboard(t *testing.T) {
	repo := newMockPatientRepo()
	repo.seed(4, func(i int) bool { return i == 1 })
	rec := serve(newTestEcho(t, repo, true), http.MethodGet, "/dashboard", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "25%") {
		t.Error("expected stroke rate on dashboard")
	}
}

func TestHandler_DashboardStoreDown(t *testing.T) {
	repo := newMockPatientRepo()
	repo.err = errStoreDown
	rec := serve(newTestEcho(t, repo, true), http.MethodGet, "/dashboard", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected dashboard to render, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Error loading dashboard data.") {
		t.Error("expected error notice")
	}
}

func TestHandler_ListPage(t *testing.T) {
	repo := newMockPatientRepo()
	repo.seed(45, nil)
	rec := serve(newTestEcho(t, repo, true), http.MethodGet, "/patients?page=3", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `href="/patients/45"`) || strings.Contains(body, `href="/patients/40"`) {
		t.Error("expected records 41-45 on page 3")
	}
	if !strings.Contains(body, "/patients?page=2") {
		t.Error("expected link to previous page")
	}
}

func TestHandler_CreateRedirects(t *testing.T) {
	repo := newMockPatientRepo()
	rec := serve(newTestEcho(t, repo, true), http.MethodPost, "/patients/new", formValues(validPatientForm()))

	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/patients" {
		t.Fatalf("expected redirect to /patients, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if len(repo.patients) != 1 {
		t.Errorf("expected 1 stored patient, got %d", len(repo.patients))
	}
}

func TestHandler_CreateInvalidRerenders(t *testing.T) {
	form := validPatientForm()
	form.AvgGlucoseLevel = "900"
	rec := serve(newTestEcho(t, newMockPatientRepo(), true), http.MethodPost, "/patients/new", formValues(form))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Glucose level must be between 0 and 500") {
		t.Error("expected field message")
	}
	if !strings.Contains(body, `value="900"`) {
		t.Error("expected submitted value to be kept")
	}
}

func TestHandler_DetailAndMissing(t *testing.T) {
	repo := newMockPatientRepo()
	repo.seed(1, nil)
	e := newTestEcho(t, repo, true)

	rec := serve(e, http.MethodGet, "/patients/1", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "formerly smoked") {
		t.Errorf("expected patient detail, got %d", rec.Code)
	}

	for _, path := range []string{"/patients/99", "/patients/99/edit", "/patients/abc"} {
		if rec := serve(e, http.MethodGet, path, nil); rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, rec.Code)
		}
	}
}

func TestHandler_EditPrefills(t *testing.T) {
	repo := newMockPatientRepo()
	repo.seed(1, nil)
	rec := serve(newTestEcho(t, repo, true), http.MethodGet, "/patients/1/edit", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `value="228.69"`) || !strings.Contains(body, `action="/patients/1/edit"`) {
		t.Error("expected form filled with stored values")
	}
}

func TestHandler_UpdateRedirectsToDetail(t *testing.T) {
	repo := newMockPatientRepo()
	repo.seed(1, nil)
	rec := serve(newTestEcho(t, repo, true), http.MethodPost, "/patients/1/edit", formValues(validPatientForm()))

	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/patients/1" {
		t.Fatalf("expected redirect to detail, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if repo.patients[0].Gender != "Female" {
		t.Error("expected update to be stored")
	}
}

func TestHandler_DeleteMissingIsNotice(t *testing.T) {
	rec := serve(newTestEcho(t, newMockPatientRepo(), true), http.MethodPost, "/patients/5/delete", nil)

	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/patients" {
		t.Fatalf("expected redirect to list, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	var flash *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "_flash" {
			flash = ck
		}
	}
	if flash == nil {
		t.Error("expected a notice for the missing patient")
	}
}

func TestHandler_Search(t *testing.T) {
	repo := newMockPatientRepo()
	repo.seed(3, nil)
	repo.patients[2].Gender = "Female"
	e := newTestEcho(t, repo, true)

	rec := serve(e, http.MethodPost, "/search", url.Values{"search_field": {"gender"}, "search_term": {"female"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `href="/patients/3"`) || strings.Contains(body, `href="/patients/1"`) {
		t.Error("expected only the female patient")
	}

	rec = serve(e, http.MethodPost, "/search", url.Values{"search_field": {"age"}, "search_term": {"50"}})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for unknown field, got %d", rec.Code)
	}

	rec = serve(e, http.MethodPost, "/search", url.Values{"search_field": {"work_type"}, "search_term": {"Govt"}})
	if !strings.Contains(rec.Body.String(), "No patients found matching your search.") {
		t.Error("expected no-results notice")
	}
}

func TestHandler_LoadDatasetFailureFlashes(t *testing.T) {
	rec := serve(newTestEcho(t, newMockPatientRepo(), true), http.MethodPost, "/load_dataset", nil)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/dashboard" {
		t.Fatalf("expected redirect to dashboard, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}
