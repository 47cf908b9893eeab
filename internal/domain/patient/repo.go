package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByNIK(ctx context.Context, nik string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List searches name, mrn, and nik.
	List(ctx context.Context, search string, limit, offset int) ([]*Patient, int, error)
	// NextMRNSequence advances and returns the clinic-wide MRN counter.
	NextMRNSequence(ctx context.Context) (int64, error)
}
