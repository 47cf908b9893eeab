package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	Update(ctx context.Context, inv *Invoice) error
	List(ctx context.Context, f Filter) ([]*Invoice, int, error)
	// CountForDate counts invoices created on the given day, for numbering.
	CountForDate(ctx context.Context, date time.Time) (int, error)
	ItemsOf(ctx context.Context, invoiceID uuid.UUID) ([]*InvoiceItem, error)
	// ReplaceItems swaps the full item set. Only valid while the invoice is
	// editable.
	ReplaceItems(ctx context.Context, invoiceID uuid.UUID, items []*InvoiceItem) error
}

type Filter struct {
	PatientID *uuid.UUID
	Status    string
	DateFrom  *time.Time
	DateTo    *time.Time
	Limit     int
	Offset    int
}
