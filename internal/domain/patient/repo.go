package patient

import (
	"context"
)

// PatientRepository is the patient store. Lookups, updates and deletes of a
// missing id return apperr.ErrNotFound.
type PatientRepository interface {
	Insert(ctx context.Context, p *Patient) error
	InsertMany(ctx context.Context, patients []*Patient) error
	GetByID(ctx context.Context, id int64) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, offset, limit int) ([]*Patient, error)
	Count(ctx context.Context) (int64, error)
	CountStroke(ctx context.Context) (int64, error)
	MaxID(ctx context.Context) (int64, error)
	Search(ctx context.Context, q Query, limit int) ([]*Patient, error)
	Ping(ctx context.Context) error
}
