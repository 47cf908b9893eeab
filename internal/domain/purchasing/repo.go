package purchasing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type SupplierRepository interface {
	Create(ctx context.Context, s *Supplier) error
	GetByID(ctx context.Context, id uuid.UUID) (*Supplier, error)
	Update(ctx context.Context, s *Supplier) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, search string, limit, offset int) ([]*Supplier, int, error)
}

type OrderRepository interface {
	Create(ctx context.Context, po *PurchaseOrder) error
	GetByID(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error)
	Update(ctx context.Context, po *PurchaseOrder) error
	List(ctx context.Context, f OrderFilter) ([]*PurchaseOrder, int, error)
	// CountForDate counts orders created on the given day, for numbering.
	CountForDate(ctx context.Context, date time.Time) (int, error)
	ItemsOf(ctx context.Context, orderID uuid.UUID) ([]*PurchaseOrderItem, error)
	GetItem(ctx context.Context, itemID uuid.UUID) (*PurchaseOrderItem, error)
	// ReplaceItems swaps the full item set. Only valid while the order is a
	// draft.
	ReplaceItems(ctx context.Context, orderID uuid.UUID, items []*PurchaseOrderItem) error
	UpdateItemReceived(ctx context.Context, itemID uuid.UUID, received int) error
}

type OrderFilter struct {
	SupplierID *uuid.UUID
	Status     string
	DateFrom   *time.Time
	DateTo     *time.Time
	Limit      int
	Offset     int
}

type ReceiptRepository interface {
	Create(ctx context.Context, r *GoodsReceipt) error
	GetByID(ctx context.Context, id uuid.UUID) (*GoodsReceipt, error)
	Update(ctx context.Context, r *GoodsReceipt) error
	List(ctx context.Context, f ReceiptFilter) ([]*GoodsReceipt, int, error)
	CountForDate(ctx context.Context, date time.Time) (int, error)
	ItemsOf(ctx context.Context, receiptID uuid.UUID) ([]*GoodsReceiptItem, error)
	ReplaceItems(ctx context.Context, receiptID uuid.UUID, items []*GoodsReceiptItem) error
	SetItemBatch(ctx context.Context, itemID, batchID uuid.UUID) error
}

type ReceiptFilter struct {
	SupplierID      *uuid.UUID
	PurchaseOrderID *uuid.UUID
	Status          string
	Limit           int
	Offset          int
}
