package patient

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/strokecare/strokecare/internal/platform/apperr"
)

// -- Mock Repository --

type mockPatientRepo struct {
	mu       sync.Mutex
	patients []*Patient
	err      error
	inserts  int
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{}
}

var errStoreDown = errors.New("server selection timeout")

func (m *mockPatientRepo) Insert(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	stored := *p
	m.patients = append(m.patients, &stored)
	return nil
}

func (m *mockPatientRepo) InsertMany(_ context.Context, patients []*Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.inserts++
	for _, p := range patients {
		stored := *p
		m.patients = append(m.patients, &stored)
	}
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id int64) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, p := range m.patients {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (m *mockPatientRepo) Update(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for i, existing := range m.patients {
		if existing.ID == p.ID {
			updated := *p
			updated.CreatedAt = existing.CreatedAt
			m.patients[i] = &updated
			return nil
		}
	}
	return apperr.ErrNotFound
}

func (m *mockPatientRepo) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for i, p := range m.patients {
		if p.ID == id {
			m.patients = append(m.patients[:i], m.patients[i+1:]...)
			return nil
		}
	}
	return apperr.ErrNotFound
}

func (m *mockPatientRepo) sorted() []*Patient {
	out := append([]*Patient(nil), m.patients...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *mockPatientRepo) List(_ context.Context, offset, limit int) ([]*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if offset < 0 {
		return nil, fmt.Errorf("negative skip %d", offset)
	}
	all := m.sorted()
	if offset >= len(all) {
		return []*Patient{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *mockPatientRepo) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	return int64(len(m.patients)), nil
}

func (m *mockPatientRepo) CountStroke(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	var n int64
	for _, p := range m.patients {
		if p.Stroke == 1 {
			n++
		}
	}
	return n, nil
}

func (m *mockPatientRepo) MaxID(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	var max int64
	for _, p := range m.patients {
		if p.ID > max {
			max = p.ID
		}
	}
	return max, nil
}

func (m *mockPatientRepo) Search(_ context.Context, q Query, limit int) ([]*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	results := []*Patient{}
	for _, p := range m.sorted() {
		if len(results) == limit {
			break
		}
		if q.Matches(p) {
			results = append(results, p)
		}
	}
	return results, nil
}

func (m *mockPatientRepo) Ping(context.Context) error {
	return m.err
}

func (m *mockPatientRepo) seed(n int, stroke func(i int) bool) {
	for i := 1; i <= n; i++ {
		p := samplePatient()
		p.ID = int64(i)
		if stroke != nil && stroke(i) {
			p.Stroke = 1
		}
		m.patients = append(m.patients, p)
	}
}

func samplePatient() *Patient {
	bmi := 28.1
	return &Patient{
		Gender:          "Male",
		Age:             67,
		Hypertension:    0,
		HeartDisease:    1,
		EverMarried:     "Yes",
		WorkType:        "Private",
		ResidenceType:   "Urban",
		AvgGlucoseLevel: 228.69,
		BMI:             &bmi,
		SmokingStatus:   "formerly smoked",
	}
}

func validPatientForm() Form {
	return Form{
		Gender:          "Female",
		Age:             "61",
		Hypertension:    "0",
		HeartDisease:    "0",
		EverMarried:     "Yes",
		WorkType:        "Self-employed",
		ResidenceType:   "Rural",
		AvgGlucoseLevel: "202.21",
		BMI:             "",
		SmokingStatus:   "never smoked",
		Stroke:          "1",
	}
}
