package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/klinika/klinika/internal/domain/patient"
	"github.com/klinika/klinika/internal/platform/db"
	"github.com/klinika/klinika/pkg/domainerr"
	"github.com/klinika/klinika/pkg/validation"
)

// PatientLookup resolves the billed patient. Satisfied by the patient
// repository.
type PatientLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type Service struct {
	invoices Repository
	patients PatientLookup
	tx       db.TxFunc
	now      func() time.Time
}

func NewService(invoices Repository, patients PatientLookup, tx db.TxFunc) *Service {
	return &Service{invoices: invoices, patients: patients, tx: tx, now: time.Now}
}

type ItemInput struct {
	ItemType    string     `json:"item_type"`
	ServiceID   *uuid.UUID `json:"service_id"`
	MedicineID  *uuid.UUID `json:"medicine_id"`
	Description string     `json:"description"`
	Quantity    int        `json:"quantity"`
	UnitPrice   string     `json:"unit_price"`
}

type InvoiceInput struct {
	PatientID       uuid.UUID   `json:"patient_id"`
	MedicalRecordID *uuid.UUID  `json:"medical_record_id"`
	InvoiceDate     *string     `json:"invoice_date"` // YYYY-MM-DD
	DiscountAmount  string      `json:"discount_amount"`
	TaxAmount       string      `json:"tax_amount"`
	Notes           *string     `json:"notes"`
	Items           []ItemInput `json:"items"`
}

type parsedInvoice struct {
	date     time.Time
	discount decimal.Decimal
	tax      decimal.Decimal
	items    []*InvoiceItem
}

func parseAmount(errs validation.Errors, field, raw string) decimal.Decimal {
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		errs.Add(field, "must be a valid number")
		return decimal.Zero
	}
	if d.IsNegative() {
		errs.Add(field, "must not be negative")
		return decimal.Zero
	}
	return d
}

func (s *Service) parseInvoiceInput(in InvoiceInput) (*parsedInvoice, error) {
	errs := validation.Errors{}
	if in.PatientID == uuid.Nil {
		errs.Add("patient_id", "is required")
	}
	if len(in.Items) == 0 {
		errs.Add("items", "at least one item is required")
	}

	p := &parsedInvoice{
		date:     s.now(),
		discount: parseAmount(errs, "discount_amount", in.DiscountAmount),
		tax:      parseAmount(errs, "tax_amount", in.TaxAmount),
	}
	if in.InvoiceDate != nil && *in.InvoiceDate != "" {
		d, err := time.Parse("2006-01-02", *in.InvoiceDate)
		if err != nil {
			errs.Add("invoice_date", "must be a valid date (YYYY-MM-DD)")
		} else {
			p.date = d
		}
	}

	for i, it := range in.Items {
		field := fmt.Sprintf("items.%d", i)
		v := validation.New().
			Required(field+".description", it.Description).
			OneOf(field+".item_type", it.ItemType, ItemService, ItemMedicine).
			Required(field+".item_type", it.ItemType).
			Positive(field+".quantity", it.Quantity)
		if ferrs := v.Errors(); ferrs != nil {
			for f, msgs := range ferrs {
				errs[f] = append(errs[f], msgs...)
			}
			continue
		}
		price, err := decimal.NewFromString(it.UnitPrice)
		if err != nil || price.IsNegative() {
			errs.Add(field+".unit_price", "must be a valid non-negative number")
			continue
		}
		p.items = append(p.items, &InvoiceItem{
			ItemType:    it.ItemType,
			ServiceID:   it.ServiceID,
			MedicineID:  it.MedicineID,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   price,
			Amount:      price.Mul(decimal.NewFromInt(int64(it.Quantity))),
		})
	}
	if errs.Any() {
		return nil, errs
	}
	return p, nil
}

func (s *Service) nextInvoiceNumber(ctx context.Context) (string, error) {
	date := s.now()
	count, err := s.invoices.CountForDate(ctx, date)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("INV%s%04d", date.Format("20060102"), count+1), nil
}

func (s *Service) CreateInvoice(ctx context.Context, in InvoiceInput) (*Invoice, error) {
	p, err := s.parseInvoiceInput(in)
	if err != nil {
		return nil, err
	}
	if _, err := s.patients.GetByID(ctx, in.PatientID); err != nil {
		if errors.Is(err, domainerr.ErrNotFound) {
			return nil, domainerr.New("patient does not exist")
		}
		return nil, err
	}

	var created *Invoice
	err = s.tx(ctx, func(ctx context.Context) error {
		number, err := s.nextInvoiceNumber(ctx)
		if err != nil {
			return err
		}

		inv := &Invoice{
			InvoiceNumber:   number,
			PatientID:       in.PatientID,
			MedicalRecordID: in.MedicalRecordID,
			Status:          InvoiceUnpaid,
			InvoiceDate:     p.date,
			DiscountAmount:  p.discount,
			TaxAmount:       p.tax,
			PaidAmount:      decimal.Zero,
			Notes:           in.Notes,
			Items:           p.items,
		}
		inv.RecomputeTotals()
		if inv.TotalAmount.IsNegative() {
			return domainerr.New("discount exceeds the invoice subtotal")
		}

		if err := s.invoices.Create(ctx, inv); err != nil {
			return err
		}
		if err := s.invoices.ReplaceItems(ctx, inv.ID, p.items); err != nil {
			return err
		}
		created = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetInvoice(ctx, created.ID)
}

// UpdateInvoice rewrites items, discount, tax, and notes. Paid and cancelled
// invoices are immutable.
func (s *Service) UpdateInvoice(ctx context.Context, id uuid.UUID, in InvoiceInput) (*Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !inv.Editable() {
		return nil, domainerr.New(fmt.Sprintf("a %s invoice cannot be edited", inv.Status))
	}

	in.PatientID = inv.PatientID
	p, err := s.parseInvoiceInput(in)
	if err != nil {
		return nil, err
	}

	err = s.tx(ctx, func(ctx context.Context) error {
		inv.DiscountAmount = p.discount
		inv.TaxAmount = p.tax
		inv.Notes = in.Notes
		inv.Items = p.items
		inv.RecomputeTotals()
		if inv.TotalAmount.IsNegative() {
			return domainerr.New("discount exceeds the invoice subtotal")
		}
		if inv.TotalAmount.LessThan(inv.PaidAmount) {
			return domainerr.New("total cannot fall below the amount already paid")
		}

		if err := s.invoices.ReplaceItems(ctx, id, p.items); err != nil {
			return err
		}
		return s.invoices.Update(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	return s.GetInvoice(ctx, id)
}

func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.invoices.ItemsOf(ctx, id)
	if err != nil {
		return nil, err
	}
	inv.Items = items
	return inv, nil
}

func (s *Service) ListInvoices(ctx context.Context, f Filter) ([]*Invoice, int, error) {
	return s.invoices.List(ctx, f)
}

type PayInput struct {
	Amount        string `json:"amount"`
	PaymentMethod string `json:"payment_method"`
}

// Pay records a payment. Cumulative payments never exceed the total; reaching
// it marks the invoice paid.
func (s *Service) Pay(ctx context.Context, id uuid.UUID, in PayInput) (*Invoice, error) {
	errs := validation.New().Required("payment_method", in.PaymentMethod).Errors()
	if errs == nil {
		errs = validation.Errors{}
	}
	amount, err := decimal.NewFromString(in.Amount)
	if err != nil || !amount.IsPositive() {
		errs.Add("amount", "must be a positive number")
	}
	if errs.Any() {
		return nil, errs
	}

	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !inv.Editable() {
		return nil, domainerr.New(fmt.Sprintf("a %s invoice cannot accept payments", inv.Status))
	}

	paid := inv.PaidAmount.Add(amount)
	if paid.GreaterThan(inv.TotalAmount) {
		return nil, domainerr.New("payment exceeds the outstanding amount")
	}

	inv.PaidAmount = paid
	inv.PaymentMethod = &in.PaymentMethod
	if paid.Equal(inv.TotalAmount) {
		now := s.now()
		inv.Status = InvoicePaid
		inv.PaidAt = &now
	} else {
		inv.Status = InvoicePartial
	}

	if err := s.invoices.Update(ctx, inv); err != nil {
		return nil, err
	}
	return s.GetInvoice(ctx, id)
}

// CancelInvoice voids an invoice that has received no payments.
func (s *Service) CancelInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != InvoiceUnpaid || !inv.PaidAmount.IsZero() {
		return nil, domainerr.New("only unpaid invoices without payments can be cancelled")
	}

	inv.Status = InvoiceCancelled
	if err := s.invoices.Update(ctx, inv); err != nil {
		return nil, err
	}
	return s.GetInvoice(ctx, id)
}
