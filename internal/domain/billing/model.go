package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invoice statuses.
const (
	InvoiceUnpaid    = "unpaid"
	InvoicePartial   = "partial"
	InvoicePaid      = "paid"
	InvoiceCancelled = "cancelled"
)

// Invoice item types.
const (
	ItemService  = "service"
	ItemMedicine = "medicine"
)

// Invoice maps to the invoices table. Totals are re-derived from the items on
// every mutating write.
type Invoice struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	InvoiceNumber   string          `db:"invoice_number" json:"invoice_number"`
	PatientID       uuid.UUID       `db:"patient_id" json:"patient_id"`
	MedicalRecordID *uuid.UUID      `db:"medical_record_id" json:"medical_record_id,omitempty"`
	Status          string          `db:"status" json:"status"`
	InvoiceDate     time.Time       `db:"invoice_date" json:"invoice_date"`
	Subtotal        decimal.Decimal `db:"subtotal" json:"subtotal"`
	DiscountAmount  decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	TaxAmount       decimal.Decimal `db:"tax_amount" json:"tax_amount"`
	TotalAmount     decimal.Decimal `db:"total_amount" json:"total_amount"`
	PaidAmount      decimal.Decimal `db:"paid_amount" json:"paid_amount"`
	PaymentMethod   *string         `db:"payment_method" json:"payment_method,omitempty"`
	PaidAt          *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	Notes           *string         `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`

	Items []*InvoiceItem `db:"-" json:"items,omitempty"`
}

// Editable reports whether items and amounts may still change.
func (inv *Invoice) Editable() bool {
	return inv.Status == InvoiceUnpaid || inv.Status == InvoicePartial
}

// RecomputeTotals re-derives subtotal and total from the items. The total is
// never allowed below zero; the caller validates the discount first.
func (inv *Invoice) RecomputeTotals() {
	subtotal := decimal.Zero
	for _, item := range inv.Items {
		subtotal = subtotal.Add(item.Amount)
	}
	inv.Subtotal = subtotal
	inv.TotalAmount = subtotal.Sub(inv.DiscountAmount).Add(inv.TaxAmount)
}

// InvoiceItem is one billed line, either a clinic service or a dispensed
// medicine.
type InvoiceItem struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	InvoiceID   uuid.UUID       `db:"invoice_id" json:"invoice_id"`
	ItemType    string          `db:"item_type" json:"item_type"`
	ServiceID   *uuid.UUID      `db:"service_id" json:"service_id,omitempty"`
	MedicineID  *uuid.UUID      `db:"medicine_id" json:"medicine_id,omitempty"`
	Description string          `db:"description" json:"description"`
	Quantity    int             `db:"quantity" json:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unit_price"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
}
