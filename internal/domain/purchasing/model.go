package purchasing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Supplier maps to the suppliers table.
type Supplier struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	ContactName *string   `db:"contact_name" json:"contact_name,omitempty"`
	Phone       *string   `db:"phone" json:"phone,omitempty"`
	Email       *string   `db:"email" json:"email,omitempty"`
	Address     *string   `db:"address" json:"address,omitempty"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Purchase order statuses.
const (
	PODraft           = "draft"
	POPendingApproval = "pending_approval"
	POApproved        = "approved"
	PORejected        = "rejected"
	POOrdered         = "ordered"
	POPartialReceived = "partial_received"
	POCompleted       = "completed"
	POCancelled       = "cancelled"
)

// PurchaseOrder maps to the purchase_orders table. Totals are recomputed from
// the items on every write.
type PurchaseOrder struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	PONumber        string          `db:"po_number" json:"po_number"`
	SupplierID      uuid.UUID       `db:"supplier_id" json:"supplier_id"`
	Status          string          `db:"status" json:"status"`
	OrderDate       *time.Time      `db:"order_date" json:"order_date,omitempty"`
	ExpectedDate    *time.Time      `db:"expected_date" json:"expected_date,omitempty"`
	ApprovedBy      *uuid.UUID      `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt      *time.Time      `db:"approved_at" json:"approved_at,omitempty"`
	RejectionReason *string         `db:"rejection_reason" json:"rejection_reason,omitempty"`
	Subtotal        decimal.Decimal `db:"subtotal" json:"subtotal"`
	TaxAmount       decimal.Decimal `db:"tax_amount" json:"tax_amount"`
	TotalAmount     decimal.Decimal `db:"total_amount" json:"total_amount"`
	Notes           *string         `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`

	Items []*PurchaseOrderItem `db:"-" json:"items,omitempty"`
}

// RecomputeTotals re-derives subtotal and total from the items.
func (po *PurchaseOrder) RecomputeTotals() {
	subtotal := decimal.Zero
	for _, item := range po.Items {
		subtotal = subtotal.Add(item.Subtotal)
	}
	po.Subtotal = subtotal
	po.TotalAmount = subtotal.Add(po.TaxAmount)
}

// PurchaseOrderItem is one ordered line. ReceivedQuantity never exceeds
// Quantity.
type PurchaseOrderItem struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	PurchaseOrderID  uuid.UUID       `db:"purchase_order_id" json:"purchase_order_id"`
	MedicineID       uuid.UUID       `db:"medicine_id" json:"medicine_id"`
	Quantity         int             `db:"quantity" json:"quantity"`
	ReceivedQuantity int             `db:"received_quantity" json:"received_quantity"`
	UnitPrice        decimal.Decimal `db:"unit_price" json:"unit_price"`
	Subtotal         decimal.Decimal `db:"subtotal" json:"subtotal"`
}

// Goods receipt statuses.
const (
	ReceiptDraft     = "draft"
	ReceiptCompleted = "completed"
	ReceiptCancelled = "cancelled"
)

// GoodsReceipt maps to the goods_receipts table.
type GoodsReceipt struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	ReceiptNumber   string     `db:"receipt_number" json:"receipt_number"`
	PurchaseOrderID *uuid.UUID `db:"purchase_order_id" json:"purchase_order_id,omitempty"`
	SupplierID      uuid.UUID  `db:"supplier_id" json:"supplier_id"`
	ReceiptDate     time.Time  `db:"receipt_date" json:"receipt_date"`
	Status          string     `db:"status" json:"status"`
	Notes           *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`

	Items []*GoodsReceiptItem `db:"-" json:"items,omitempty"`
}

// GoodsReceiptItem is one received line. BatchID is set when the receipt is
// completed and the stock batch is created.
type GoodsReceiptItem struct {
	ID                  uuid.UUID       `db:"id" json:"id"`
	GoodsReceiptID      uuid.UUID       `db:"goods_receipt_id" json:"goods_receipt_id"`
	MedicineID          uuid.UUID       `db:"medicine_id" json:"medicine_id"`
	PurchaseOrderItemID *uuid.UUID      `db:"purchase_order_item_id" json:"purchase_order_item_id,omitempty"`
	BatchNumber         string          `db:"batch_number" json:"batch_number"`
	ExpiryDate          time.Time       `db:"expiry_date" json:"expiry_date"`
	Quantity            int             `db:"quantity" json:"quantity"`
	UnitPrice           decimal.Decimal `db:"unit_price" json:"unit_price"`
	BatchID             *uuid.UUID      `db:"batch_id" json:"batch_id,omitempty"`
}
