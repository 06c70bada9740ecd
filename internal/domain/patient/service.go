package patient

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/strokecare/strokecare/internal/platform/apperr"
	"github.com/strokecare/strokecare/internal/platform/auth"
	"github.com/strokecare/strokecare/internal/platform/telemetry"
	"github.com/strokecare/strokecare/internal/platform/validation"
	"github.com/strokecare/strokecare/pkg/pagination"
)

// Service implements the patient operations. Every operation requires an
// authenticated identity in ctx.
type Service struct {
	patients PatientRepository
	loader   *Loader
	validate *validation.Validator
	metrics  *telemetry.Provider
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService returns the patient service. metrics may be nil.
func NewService(patients PatientRepository, metrics *telemetry.Provider, logger zerolog.Logger) *Service {
	logger = logger.With().Str("component", "patient").Logger()
	return &Service{
		patients: patients,
		loader:   NewLoader(patients, logger),
		validate: validation.New(),
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// timestamp is the current time at the precision the document store keeps.
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *Service) List(ctx context.Context, params pagination.Params) (*pagination.Page[*Patient], error) {
	if _, err := auth.RequireIdentity(ctx); err != nil {
		return nil, err
	}
	total, err := s.patients.Count(ctx)
	if err != nil {
		s.metrics.PatientOperation("list", err)
		return nil, err
	}
	items, err := s.patients.List(ctx, params.Offset(), params.Limit())
	s.metrics.PatientOperation("list", err)
	if err != nil {
		return nil, err
	}
	return pagination.NewPage(items, int(total), params), nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Patient, error) {
	if _, err := auth.RequireIdentity(ctx); err != nil {
		return nil, err
	}
	p, err := s.patients.GetByID(ctx, id)
	s.metrics.PatientOperation("read", err)
	return p, err
}

// Create validates the form and stores a new patient under the next free id.
func (s *Service) Create(ctx context.Context, form Form) (*Patient, error) {
	who, err := auth.RequireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	p, err := form.validate(s.validate)
	if err != nil {
		return nil, err
	}

	maxID, err := s.patients.MaxID(ctx)
	if err != nil {
		s.metrics.PatientOperation("create", err)
		return nil, err
	}
	p.ID = maxID + 1
	p.CreatedAt = s.timestamp()

	err = s.patients.Insert(ctx, p)
	s.metrics.PatientOperation("create", err)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("patient_id", p.ID).Str("username", who.Username).Msg("New patient added")
	return p, nil
}

// Update overwrites the fields of patient id, keeping its id and creation
// time.
func (s *Service) Update(ctx context.Context, id int64, form Form) (*Patient, error) {
	who, err := auth.RequireIdentity(ctx)
	if err != nil {
		return nil, err
	}
	existing, err := s.patients.GetByID(ctx, id)
	if err != nil {
		s.metrics.PatientOperation("update", err)
		return nil, err
	}
	p, err := form.validate(s.validate)
	if err != nil {
		return nil, err
	}

	p.ID = existing.ID
	p.CreatedAt = existing.CreatedAt
	updated := s.timestamp()
	p.UpdatedAt = &updated

	err = s.patients.Update(ctx, p)
	s.metrics.PatientOperation("update", err)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("patient_id", id).Str("username", who.Username).Msg("Patient updated")
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	who, err := auth.RequireIdentity(ctx)
	if err != nil {
		return err
	}
	err = s.patients.Delete(ctx, id)
	s.metrics.PatientOperation("delete", err)
	if err != nil {
		return err
	}
	s.logger.Info().Int64("patient_id", id).Str("username", who.Username).Msg("Patient deleted")
	return nil
}

// Search returns at most SearchLimit patients matching field and term, in id
// order. No match is an empty result.
func (s *Service) Search(ctx context.Context, field, term string) ([]*Patient, error) {
	if _, err := auth.RequireIdentity(ctx); err != nil {
		return nil, err
	}
	q, err := ParseQuery(field, term)
	if err != nil {
		return nil, err
	}
	results, err := s.patients.Search(ctx, q, SearchLimit)
	s.metrics.PatientOperation("search", err)
	return results, err
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	if _, err := auth.RequireIdentity(ctx); err != nil {
		return Stats{}, err
	}
	total, err := s.patients.Count(ctx)
	if err != nil {
		s.metrics.PatientOperation("stats", err)
		return Stats{}, err
	}
	strokes, err := s.patients.CountStroke(ctx)
	s.metrics.PatientOperation("stats", err)
	if err != nil {
		return Stats{}, err
	}
	return NewStats(total, strokes), nil
}

// LoadDataset imports the CSV file at path. Rows already loaded are inserted
// again.
func (s *Service) LoadDataset(ctx context.Context, path string) (LoadResult, error) {
	who, err := auth.RequireIdentity(ctx)
	if err != nil {
		return LoadResult{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return LoadResult{}, apperr.Store("open dataset", err)
	}
	defer f.Close()

	res, err := s.loader.Load(ctx, f)
	s.metrics.DatasetLoaded(res.Inserted, res.Skipped)
	if err != nil {
		return res, err
	}
	s.logger.Info().
		Int("inserted", res.Inserted).
		Int("skipped", res.Skipped).
		Str("path", path).
		Str("username", who.Username).
		Msg("Dataset loaded")
	return res, nil
}

// Ping probes the patient store.
func (s *Service) Ping(ctx context.Context) error {
	return s.patients.Ping(ctx)
}

// Guard checks the session for pages that show a form before any operation
// runs.
func (s *Service) Guard(ctx context.Context) error {
	_, err := auth.RequireIdentity(ctx)
	return err
}
