package purchasing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/klinika/klinika/internal/domain/pharmacy"
	"github.com/klinika/klinika/internal/platform/db"
	"github.com/klinika/klinika/pkg/domainerr"
	"github.com/klinika/klinika/pkg/validation"
)

// StockReceiver books received goods into pharmacy stock. Implemented by the
// pharmacy service; the call must run inside the receipt's transaction.
type StockReceiver interface {
	ReceiveBatch(ctx context.Context, medicineID uuid.UUID, batchNumber string,
		expiry time.Time, qty int, refType string, refID uuid.UUID) (*pharmacy.MedicineBatch, error)
}

// Service implements suppliers, the purchase order workflow, and goods
// receipts.
type Service struct {
	suppliers SupplierRepository
	orders    OrderRepository
	receipts  ReceiptRepository
	stock     StockReceiver
	tx        db.TxFunc
	now       func() time.Time
}

func NewService(suppliers SupplierRepository, orders OrderRepository,
	receipts ReceiptRepository, stock StockReceiver, tx db.TxFunc) *Service {
	return &Service{
		suppliers: suppliers,
		orders:    orders,
		receipts:  receipts,
		stock:     stock,
		tx:        tx,
		now:       time.Now,
	}
}

// --- suppliers ---

type SupplierInput struct {
	Name        string  `json:"name"`
	ContactName *string `json:"contact_name"`
	Phone       *string `json:"phone"`
	Email       *string `json:"email"`
	Address     *string `json:"address"`
	IsActive    *bool   `json:"is_active"`
}

func validateSupplier(in SupplierInput) validation.Errors {
	v := validation.New().Required("name", in.Name).MaxLen("name", in.Name, 255)
	if in.Email != nil {
		v.Email("email", *in.Email)
	}
	return v.Errors()
}

func (s *Service) CreateSupplier(ctx context.Context, in SupplierInput) (*Supplier, error) {
	if errs := validateSupplier(in); errs != nil {
		return nil, errs
	}
	sup := &Supplier{
		Name:        in.Name,
		ContactName: in.ContactName,
		Phone:       in.Phone,
		Email:       in.Email,
		Address:     in.Address,
		IsActive:    true,
	}
	if in.IsActive != nil {
		sup.IsActive = *in.IsActive
	}
	if err := s.suppliers.Create(ctx, sup); err != nil {
		return nil, err
	}
	return s.suppliers.GetByID(ctx, sup.ID)
}

func (s *Service) UpdateSupplier(ctx context.Context, id uuid.UUID, in SupplierInput) (*Supplier, error) {
	sup, err := s.suppliers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if errs := validateSupplier(in); errs != nil {
		return nil, errs
	}
	sup.Name = in.Name
	sup.ContactName = in.ContactName
	sup.Phone = in.Phone
	sup.Email = in.Email
	sup.Address = in.Address
	if in.IsActive != nil {
		sup.IsActive = *in.IsActive
	}
	if err := s.suppliers.Update(ctx, sup); err != nil {
		return nil, err
	}
	return s.suppliers.GetByID(ctx, id)
}

func (s *Service) GetSupplier(ctx context.Context, id uuid.UUID) (*Supplier, error) {
	return s.suppliers.GetByID(ctx, id)
}

func (s *Service) DeleteSupplier(ctx context.Context, id uuid.UUID) error {
	if _, err := s.suppliers.GetByID(ctx, id); err != nil {
		return err
	}
	return s.suppliers.Delete(ctx, id)
}

func (s *Service) ListSuppliers(ctx context.Context, search string, limit, offset int) ([]*Supplier, int, error) {
	return s.suppliers.List(ctx, search, limit, offset)
}

// --- purchase orders ---

type OrderItemInput struct {
	MedicineID uuid.UUID `json:"medicine_id"`
	Quantity   int       `json:"quantity"`
	UnitPrice  string    `json:"unit_price"`
}

type OrderInput struct {
	SupplierID   uuid.UUID        `json:"supplier_id"`
	ExpectedDate *string          `json:"expected_date"` // YYYY-MM-DD
	TaxAmount    string           `json:"tax_amount"`
	Notes        *string          `json:"notes"`
	Items        []OrderItemInput `json:"items"`
}

func (s *Service) parseOrderInput(ctx context.Context, in OrderInput) (tax decimal.Decimal, expected *time.Time, items []*PurchaseOrderItem, err error) {
	errs := validation.Errors{}
	if in.SupplierID == uuid.Nil {
		errs.Add("supplier_id", "is required")
	}

	tax = decimal.Zero
	if in.TaxAmount != "" {
		tax, err = decimal.NewFromString(in.TaxAmount)
		if err != nil {
			errs.Add("tax_amount", "must be a valid number")
		} else if tax.IsNegative() {
			errs.Add("tax_amount", "must not be negative")
		}
	}
	if in.ExpectedDate != nil && *in.ExpectedDate != "" {
		d, perr := time.Parse("2006-01-02", *in.ExpectedDate)
		if perr != nil {
			errs.Add("expected_date", "must be a valid date (YYYY-MM-DD)")
		} else {
			expected = &d
		}
	}

	for i, it := range in.Items {
		field := fmt.Sprintf("items.%d", i)
		if it.MedicineID == uuid.Nil {
			errs.Add(field+".medicine_id", "is required")
			continue
		}
		if it.Quantity <= 0 {
			errs.Add(field+".quantity", "must be greater than zero")
			continue
		}
		price, perr := decimal.NewFromString(it.UnitPrice)
		if perr != nil || price.IsNegative() {
			errs.Add(field+".unit_price", "must be a valid non-negative number")
			continue
		}
		items = append(items, &PurchaseOrderItem{
			MedicineID: it.MedicineID,
			Quantity:   it.Quantity,
			UnitPrice:  price,
			Subtotal:   price.Mul(decimal.NewFromInt(int64(it.Quantity))),
		})
	}
	if errs.Any() {
		return decimal.Zero, nil, nil, errs
	}

	if _, err := s.suppliers.GetByID(ctx, in.SupplierID); err != nil {
		if err == domainerr.ErrNotFound {
			return decimal.Zero, nil, nil, domainerr.New("supplier does not exist")
		}
		return decimal.Zero, nil, nil, err
	}
	return tax, expected, items, nil
}

func (s *Service) nextPONumber(ctx context.Context) (string, error) {
	date := s.now()
	count, err := s.orders.CountForDate(ctx, date)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("PO%s%04d", date.Format("20060102"), count+1), nil
}

func (s *Service) CreateOrder(ctx context.Context, in OrderInput) (*PurchaseOrder, error) {
	tax, expected, items, err := s.parseOrderInput(ctx, in)
	if err != nil {
		return nil, err
	}

	var created *PurchaseOrder
	err = s.tx(ctx, func(ctx context.Context) error {
		number, err := s.nextPONumber(ctx)
		if err != nil {
			return err
		}

		po := &PurchaseOrder{
			PONumber:     number,
			SupplierID:   in.SupplierID,
			Status:       PODraft,
			ExpectedDate: expected,
			TaxAmount:    tax,
			Notes:        in.Notes,
			Items:        items,
		}
		po.RecomputeTotals()

		if err := s.orders.Create(ctx, po); err != nil {
			return err
		}
		if err := s.orders.ReplaceItems(ctx, po.ID, items); err != nil {
			return err
		}
		created = po
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, created.ID)
}

// UpdateOrder rewrites the header and item set. Only drafts are editable.
func (s *Service) UpdateOrder(ctx context.Context, id uuid.UUID, in OrderInput) (*PurchaseOrder, error) {
	po, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if po.Status != PODraft {
		return nil, domainerr.New("only draft purchase orders can be edited")
	}

	in.SupplierID = po.SupplierID
	tax, expected, items, err := s.parseOrderInput(ctx, in)
	if err != nil {
		return nil, err
	}

	err = s.tx(ctx, func(ctx context.Context) error {
		po.ExpectedDate = expected
		po.TaxAmount = tax
		po.Notes = in.Notes
		po.Items = items
		po.RecomputeTotals()

		if err := s.orders.ReplaceItems(ctx, id, items); err != nil {
			return err
		}
		return s.orders.Update(ctx, po)
	})
	if err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, id)
}

func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error) {
	po, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.orders.ItemsOf(ctx, id)
	if err != nil {
		return nil, err
	}
	po.Items = items
	return po, nil
}

func (s *Service) ListOrders(ctx context.Context, f OrderFilter) ([]*PurchaseOrder, int, error) {
	return s.orders.List(ctx, f)
}

func transitionError(from, to string) error {
	return domainerr.New(fmt.Sprintf("cannot move purchase order from %s to %s", from, to))
}

// Submit moves a draft with at least one item into approval.
func (s *Service) Submit(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error) {
	po, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if po.Status != PODraft {
		return nil, transitionError(po.Status, POPendingApproval)
	}
	items, err := s.orders.ItemsOf(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, domainerr.New("purchase order has no items")
	}

	po.Status = POPendingApproval
	if err := s.orders.Update(ctx, po); err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, id)
}

func (s *Service) Approve(ctx context.Context, id, approverID uuid.UUID) (*PurchaseOrder, error) {
	po, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if po.Status != POPendingApproval {
		return nil, transitionError(po.Status, POApproved)
	}

	now := s.now()
	po.Status = POApproved
	po.ApprovedBy = &approverID
	po.ApprovedAt = &now
	if err := s.orders.Update(ctx, po); err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, id)
}

func (s *Service) Reject(ctx context.Context, id uuid.UUID, reason string) (*PurchaseOrder, error) {
	po, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if po.Status != POPendingApproval {
		return nil, transitionError(po.Status, PORejected)
	}
	if reason == "" {
		return nil, validation.Errors{"rejection_reason": {"is required"}}
	}

	po.Status = PORejected
	po.RejectionReason = &reason
	if err := s.orders.Update(ctx, po); err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, id)
}

// MarkOrdered records that the approved order was sent to the supplier.
func (s *Service) MarkOrdered(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error) {
	po, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if po.Status != POApproved {
		return nil, transitionError(po.Status, POOrdered)
	}

	now := s.now()
	po.Status = POOrdered
	po.OrderDate = &now
	if err := s.orders.Update(ctx, po); err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, id)
}

func (s *Service) CancelOrder(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error) {
	po, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch po.Status {
	case PODraft, POPendingApproval, POApproved:
	default:
		return nil, transitionError(po.Status, POCancelled)
	}

	po.Status = POCancelled
	if err := s.orders.Update(ctx, po); err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, id)
}

// --- goods receipts ---

type ReceiptItemInput struct {
	MedicineID          uuid.UUID  `json:"medicine_id"`
	PurchaseOrderItemID *uuid.UUID `json:"purchase_order_item_id"`
	BatchNumber         string     `json:"batch_number"`
	ExpiryDate          string     `json:"expiry_date"` // YYYY-MM-DD
	Quantity            int        `json:"quantity"`
	UnitPrice           string     `json:"unit_price"`
}

type ReceiptInput struct {
	PurchaseOrderID *uuid.UUID         `json:"purchase_order_id"`
	SupplierID      uuid.UUID          `json:"supplier_id"`
	ReceiptDate     *string            `json:"receipt_date"` // YYYY-MM-DD
	Notes           *string            `json:"notes"`
	Items           []ReceiptItemInput `json:"items"`
}

func (s *Service) parseReceiptInput(ctx context.Context, in ReceiptInput) (time.Time, []*GoodsReceiptItem, error) {
	errs := validation.Errors{}
	if in.SupplierID == uuid.Nil {
		errs.Add("supplier_id", "is required")
	}
	if len(in.Items) == 0 {
		errs.Add("items", "at least one item is required")
	}

	receiptDate := s.now()
	if in.ReceiptDate != nil && *in.ReceiptDate != "" {
		d, err := time.Parse("2006-01-02", *in.ReceiptDate)
		if err != nil {
			errs.Add("receipt_date", "must be a valid date (YYYY-MM-DD)")
		} else {
			receiptDate = d
		}
	}

	var items []*GoodsReceiptItem
	for i, it := range in.Items {
		field := fmt.Sprintf("items.%d", i)
		if it.MedicineID == uuid.Nil {
			errs.Add(field+".medicine_id", "is required")
			continue
		}
		if it.BatchNumber == "" {
			errs.Add(field+".batch_number", "is required")
			continue
		}
		if it.Quantity <= 0 {
			errs.Add(field+".quantity", "must be greater than zero")
			continue
		}
		expiry, perr := time.Parse("2006-01-02", it.ExpiryDate)
		if perr != nil {
			errs.Add(field+".expiry_date", "must be a valid date (YYYY-MM-DD)")
			continue
		}
		price := decimal.Zero
		if it.UnitPrice != "" {
			price, perr = decimal.NewFromString(it.UnitPrice)
			if perr != nil || price.IsNegative() {
				errs.Add(field+".unit_price", "must be a valid non-negative number")
				continue
			}
		}
		items = append(items, &GoodsReceiptItem{
			MedicineID:          it.MedicineID,
			PurchaseOrderItemID: it.PurchaseOrderItemID,
			BatchNumber:         it.BatchNumber,
			ExpiryDate:          expiry,
			Quantity:            it.Quantity,
			UnitPrice:           price,
		})
	}
	if errs.Any() {
		return time.Time{}, nil, errs
	}

	if _, err := s.suppliers.GetByID(ctx, in.SupplierID); err != nil {
		if err == domainerr.ErrNotFound {
			return time.Time{}, nil, domainerr.New("supplier does not exist")
		}
		return time.Time{}, nil, err
	}

	if in.PurchaseOrderID != nil {
		po, err := s.orders.GetByID(ctx, *in.PurchaseOrderID)
		if err != nil {
			if err == domainerr.ErrNotFound {
				return time.Time{}, nil, domainerr.New("purchase order does not exist")
			}
			return time.Time{}, nil, err
		}
		if po.Status != POOrdered && po.Status != POPartialReceived {
			return time.Time{}, nil, domainerr.New("purchase order is not awaiting delivery")
		}
		for _, it := range items {
			if it.PurchaseOrderItemID == nil {
				continue
			}
			poItem, err := s.orders.GetItem(ctx, *it.PurchaseOrderItemID)
			if err != nil {
				if err == domainerr.ErrNotFound {
					return time.Time{}, nil, domainerr.New("purchase order item does not exist")
				}
				return time.Time{}, nil, err
			}
			if poItem.PurchaseOrderID != po.ID {
				return time.Time{}, nil, domainerr.New("item does not belong to the linked purchase order")
			}
			if poItem.MedicineID != it.MedicineID {
				return time.Time{}, nil, domainerr.New("item medicine does not match the purchase order item")
			}
		}
	}
	return receiptDate, items, nil
}

func (s *Service) nextReceiptNumber(ctx context.Context) (string, error) {
	date := s.now()
	count, err := s.receipts.CountForDate(ctx, date)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("GR%s%04d", date.Format("20060102"), count+1), nil
}

func (s *Service) CreateReceipt(ctx context.Context, in ReceiptInput) (*GoodsReceipt, error) {
	receiptDate, items, err := s.parseReceiptInput(ctx, in)
	if err != nil {
		return nil, err
	}

	var created *GoodsReceipt
	err = s.tx(ctx, func(ctx context.Context) error {
		number, err := s.nextReceiptNumber(ctx)
		if err != nil {
			return err
		}

		gr := &GoodsReceipt{
			ReceiptNumber:   number,
			PurchaseOrderID: in.PurchaseOrderID,
			SupplierID:      in.SupplierID,
			ReceiptDate:     receiptDate,
			Status:          ReceiptDraft,
			Notes:           in.Notes,
		}
		if err := s.receipts.Create(ctx, gr); err != nil {
			return err
		}
		if err := s.receipts.ReplaceItems(ctx, gr.ID, items); err != nil {
			return err
		}
		created = gr
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetReceipt(ctx, created.ID)
}

func (s *Service) GetReceipt(ctx context.Context, id uuid.UUID) (*GoodsReceipt, error) {
	gr, err := s.receipts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.receipts.ItemsOf(ctx, id)
	if err != nil {
		return nil, err
	}
	gr.Items = items
	return gr, nil
}

func (s *Service) ListReceipts(ctx context.Context, f ReceiptFilter) ([]*GoodsReceipt, int, error) {
	return s.receipts.List(ctx, f)
}

func (s *Service) CancelReceipt(ctx context.Context, id uuid.UUID) (*GoodsReceipt, error) {
	gr, err := s.receipts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if gr.Status != ReceiptDraft {
		return nil, domainerr.New("only draft receipts can be cancelled")
	}
	gr.Status = ReceiptCancelled
	if err := s.receipts.Update(ctx, gr); err != nil {
		return nil, err
	}
	return s.GetReceipt(ctx, id)
}

// CompleteReceipt books every item into stock in one transaction: a batch per
// item, its purchase movement, the received-quantity bump on linked purchase
// order items, and the recomputed order status. Any failure rolls everything
// back.
func (s *Service) CompleteReceipt(ctx context.Context, id uuid.UUID) (*GoodsReceipt, error) {
	err := s.tx(ctx, func(ctx context.Context) error {
		gr, err := s.receipts.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if gr.Status != ReceiptDraft {
			return domainerr.New("only draft receipts can be completed")
		}

		items, err := s.receipts.ItemsOf(ctx, id)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return domainerr.New("receipt has no items")
		}

		for _, item := range items {
			batch, err := s.stock.ReceiveBatch(ctx, item.MedicineID, item.BatchNumber,
				item.ExpiryDate, item.Quantity, "goods_receipt", gr.ID)
			if err != nil {
				return err
			}
			if err := s.receipts.SetItemBatch(ctx, item.ID, batch.ID); err != nil {
				return err
			}

			if item.PurchaseOrderItemID != nil {
				poItem, err := s.orders.GetItem(ctx, *item.PurchaseOrderItemID)
				if err != nil {
					return err
				}
				received := poItem.ReceivedQuantity + item.Quantity
				if received > poItem.Quantity {
					return domainerr.New("received quantity exceeds the ordered quantity")
				}
				if err := s.orders.UpdateItemReceived(ctx, poItem.ID, received); err != nil {
					return err
				}
			}
		}

		gr.Status = ReceiptCompleted
		if err := s.receipts.Update(ctx, gr); err != nil {
			return err
		}

		if gr.PurchaseOrderID != nil {
			return s.recomputeOrderStatus(ctx, *gr.PurchaseOrderID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetReceipt(ctx, id)
}

// recomputeOrderStatus derives ordered/partial_received/completed from the
// aggregate received vs ordered quantities.
func (s *Service) recomputeOrderStatus(ctx context.Context, orderID uuid.UUID) error {
	po, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	items, err := s.orders.ItemsOf(ctx, orderID)
	if err != nil {
		return err
	}

	ordered, received := 0, 0
	for _, it := range items {
		ordered += it.Quantity
		received += it.ReceivedQuantity
	}

	status := po.Status
	switch {
	case ordered > 0 && received >= ordered:
		status = POCompleted
	case received > 0:
		status = POPartialReceived
	}
	if status == po.Status {
		return nil
	}
	po.Status = status
	return s.orders.Update(ctx, po)
}
