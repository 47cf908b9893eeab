package pharmacy

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type MedicineRepository interface {
	Create(ctx context.Context, m *Medicine) error
	GetByID(ctx context.Context, id uuid.UUID) (*Medicine, error)
	GetByCode(ctx context.Context, code string) (*Medicine, error)
	Update(ctx context.Context, m *Medicine) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, search, category string, limit, offset int) ([]*Medicine, int, error)
}

type BatchRepository interface {
	Create(ctx context.Context, b *MedicineBatch) error
	GetByID(ctx context.Context, id uuid.UUID) (*MedicineBatch, error)
	// GetByNumber finds a batch of the medicine with the exact batch number
	// and expiry date.
	GetByNumber(ctx context.Context, medicineID uuid.UUID, batchNumber string, expiry time.Time) (*MedicineBatch, error)
	Update(ctx context.Context, b *MedicineBatch) error
	// ListByMedicine returns every batch of the medicine ordered by
	// expiry_date ASC (FEFO order).
	ListByMedicine(ctx context.Context, medicineID uuid.UUID) ([]*MedicineBatch, error)
}

type MovementRepository interface {
	Create(ctx context.Context, m *StockMovement) error
	List(ctx context.Context, f MovementFilter) ([]*StockMovement, int, error)
}

type MovementFilter struct {
	MedicineID *uuid.UUID
	Direction  string
	Reason     string
	DateFrom   *time.Time
	DateTo     *time.Time
	Limit      int
	Offset     int
}
