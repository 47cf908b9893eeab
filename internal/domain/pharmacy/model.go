package pharmacy

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Medicine maps to the medicines table. SellingPrice is derived on read from
// purchase price, margin, and PPN; it is never stored.
type Medicine struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	Code          string          `db:"code" json:"code"`
	Name          string          `db:"name" json:"name"`
	Unit          string          `db:"unit" json:"unit"`
	Category      *string         `db:"category" json:"category,omitempty"`
	PurchasePrice decimal.Decimal `db:"purchase_price" json:"purchase_price"`
	MarginPct     decimal.Decimal `db:"margin_pct" json:"margin_pct"`
	PPNPct        decimal.Decimal `db:"ppn_pct" json:"ppn_pct"`
	MinStock      int             `db:"min_stock" json:"min_stock"`
	MaxStock      int             `db:"max_stock" json:"max_stock"`
	IsActive      bool            `db:"is_active" json:"is_active"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`

	SellingPrice decimal.Decimal `db:"-" json:"selling_price"`
	CurrentStock int             `db:"-" json:"current_stock"`
}

var hundred = decimal.NewFromInt(100)

// ComputeSellingPrice derives the selling price:
// purchase_price × (1 + margin/100) × (1 + ppn/100), rounded to 2 dp.
func (m *Medicine) ComputeSellingPrice() {
	marginFactor := decimal.NewFromInt(1).Add(m.MarginPct.Div(hundred))
	ppnFactor := decimal.NewFromInt(1).Add(m.PPNPct.Div(hundred))
	m.SellingPrice = m.PurchasePrice.Mul(marginFactor).Mul(ppnFactor).Round(2)
}

// Batch statuses.
const (
	BatchAvailable = "available"
	BatchLow       = "low"
	BatchExpired   = "expired"
	BatchEmpty     = "empty"
)

// MedicineBatch is one physical lot of a medicine.
type MedicineBatch struct {
	ID          uuid.UUID `db:"id" json:"id"`
	MedicineID  uuid.UUID `db:"medicine_id" json:"medicine_id"`
	BatchNumber string    `db:"batch_number" json:"batch_number"`
	ExpiryDate  time.Time `db:"expiry_date" json:"expiry_date"`
	InitialQty  int       `db:"initial_qty" json:"initial_qty"`
	CurrentQty  int       `db:"current_qty" json:"current_qty"`
	Status      string    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// RecomputeStatus re-derives the batch status after any quantity mutation.
func (b *MedicineBatch) RecomputeStatus(minStock int, today time.Time) {
	lowThreshold := minStock / 2
	if lowThreshold < 1 {
		lowThreshold = 1
	}
	switch {
	case b.CurrentQty == 0:
		b.Status = BatchEmpty
	case !b.ExpiryDate.After(today):
		b.Status = BatchExpired
	case b.CurrentQty <= lowThreshold:
		b.Status = BatchLow
	default:
		b.Status = BatchAvailable
	}
}

// Usable reports whether the batch can satisfy stock-outs on the given day.
func (b *MedicineBatch) Usable(today time.Time) bool {
	return b.CurrentQty > 0 && b.ExpiryDate.After(today)
}

// Movement directions and reasons.
const (
	DirectionIn  = "in"
	DirectionOut = "out"

	ReasonPurchase     = "purchase"
	ReasonAdjustment   = "adjustment"
	ReasonPrescription = "prescription"
	ReasonExpired      = "expired"
	ReasonReturn       = "return"
)

// StockMovement is one row of the append-only stock ledger. The invariant
// stock_after == stock_before ± quantity holds for every row.
type StockMovement struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	MedicineID    uuid.UUID  `db:"medicine_id" json:"medicine_id"`
	BatchID       *uuid.UUID `db:"batch_id" json:"batch_id,omitempty"`
	Direction     string     `db:"direction" json:"direction"`
	Reason        string     `db:"reason" json:"reason"`
	Quantity      int        `db:"quantity" json:"quantity"`
	StockBefore   int        `db:"stock_before" json:"stock_before"`
	StockAfter    int        `db:"stock_after" json:"stock_after"`
	ReferenceType *string    `db:"reference_type" json:"reference_type,omitempty"`
	ReferenceID   *uuid.UUID `db:"reference_id" json:"reference_id,omitempty"`
	Notes         *string    `db:"notes" json:"notes,omitempty"`
	CreatedBy     *uuid.UUID `db:"created_by" json:"created_by,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}
