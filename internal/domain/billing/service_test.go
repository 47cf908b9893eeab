package billing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/klinika/klinika/internal/domain/patient"
	"github.com/klinika/klinika/pkg/domainerr"
	"github.com/klinika/klinika/pkg/validation"
)

func passthroughTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockInvoiceRepo struct {
	invoices map[uuid.UUID]*Invoice
	items    map[uuid.UUID][]*InvoiceItem
}

func newMockInvoiceRepo() *mockInvoiceRepo {
	return &mockInvoiceRepo{
		invoices: map[uuid.UUID]*Invoice{},
		items:    map[uuid.UUID][]*InvoiceItem{},
	}
}

func (m *mockInvoiceRepo) Create(_ context.Context, inv *Invoice) error {
	inv.ID = uuid.New()
	cp := *inv
	cp.Items = nil
	m.invoices[inv.ID] = &cp
	return nil
}

func (m *mockInvoiceRepo) GetByID(_ context.Context, id uuid.UUID) (*Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, domainerr.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *mockInvoiceRepo) Update(_ context.Context, inv *Invoice) error {
	if _, ok := m.invoices[inv.ID]; !ok {
		return domainerr.ErrNotFound
	}
	cp := *inv
	cp.Items = nil
	m.invoices[inv.ID] = &cp
	return nil
}

func (m *mockInvoiceRepo) List(_ context.Context, _ Filter) ([]*Invoice, int, error) {
	var out []*Invoice
	for _, inv := range m.invoices {
		cp := *inv
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *mockInvoiceRepo) CountForDate(_ context.Context, date time.Time) (int, error) {
	n := 0
	for _, inv := range m.invoices {
		if inv.CreatedAt.Format("2006-01-02") == date.Format("2006-01-02") {
			n++
		}
	}
	return n, nil
}

func (m *mockInvoiceRepo) ItemsOf(_ context.Context, invoiceID uuid.UUID) ([]*InvoiceItem, error) {
	var out []*InvoiceItem
	for _, it := range m.items[invoiceID] {
		cp := *it
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockInvoiceRepo) ReplaceItems(_ context.Context, invoiceID uuid.UUID, items []*InvoiceItem) error {
	var cps []*InvoiceItem
	for _, it := range items {
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		it.InvoiceID = invoiceID
		cp := *it
		cps = append(cps, &cp)
	}
	m.items[invoiceID] = cps
	return nil
}

type mockPatientLookup struct {
	patients map[uuid.UUID]*patient.Patient
}

func (m *mockPatientLookup) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, domainerr.ErrNotFound
	}
	return p, nil
}

func newBillingService() (*Service, uuid.UUID) {
	patientID := uuid.New()
	patients := &mockPatientLookup{patients: map[uuid.UUID]*patient.Patient{
		patientID: {ID: patientID, Name: "Siti Rahma"},
	}}
	svc := NewService(newMockInvoiceRepo(), patients, passthroughTx)
	svc.now = func() time.Time {
		return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	}
	return svc, patientID
}

func createInvoice(t *testing.T, svc *Service, patientID uuid.UUID, in InvoiceInput) *Invoice {
	t.Helper()
	in.PatientID = patientID
	inv, err := svc.CreateInvoice(context.Background(), in)
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	return inv
}

func TestCreateInvoiceNumbersAndTotals(t *testing.T) {
	svc, patientID := newBillingService()

	inv := createInvoice(t, svc, patientID, InvoiceInput{
		DiscountAmount: "500",
		TaxAmount:      "330",
		Items: []ItemInput{
			{ItemType: ItemService, Description: "Konsultasi dokter umum", Quantity: 1, UnitPrice: "150000"},
			{ItemType: ItemMedicine, Description: "Paracetamol 500mg", Quantity: 10, UnitPrice: "1500"},
		},
	})

	if inv.InvoiceNumber != "INV202603100001" {
		t.Errorf("invoice number = %q, want INV202603100001", inv.InvoiceNumber)
	}
	if inv.Status != InvoiceUnpaid {
		t.Errorf("status = %q, want unpaid", inv.Status)
	}
	if want := decimal.RequireFromString("165000"); !inv.Subtotal.Equal(want) {
		t.Errorf("subtotal = %s, want %s", inv.Subtotal, want)
	}
	if want := decimal.RequireFromString("164830"); !inv.TotalAmount.Equal(want) {
		t.Errorf("total = %s, want %s", inv.TotalAmount, want)
	}
	if len(inv.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(inv.Items))
	}
}

func TestCreateInvoiceRejectsExcessiveDiscount(t *testing.T) {
	svc, patientID := newBillingService()

	_, err := svc.CreateInvoice(context.Background(), InvoiceInput{
		PatientID:      patientID,
		DiscountAmount: "200000",
		Items: []ItemInput{
			{ItemType: ItemService, Description: "Konsultasi", Quantity: 1, UnitPrice: "150000"},
		},
	})
	if _, ok := domainerr.As(err); !ok {
		t.Fatalf("err = %v, want domain error", err)
	}
}

func TestCreateInvoiceValidation(t *testing.T) {
	svc, patientID := newBillingService()

	_, err := svc.CreateInvoice(context.Background(), InvoiceInput{
		PatientID: patientID,
		Items: []ItemInput{
			{ItemType: "procedure", Description: "", Quantity: 0, UnitPrice: "10"},
		},
	})
	verrs, ok := err.(validation.Errors)
	if !ok {
		t.Fatalf("err = %v, want validation errors", err)
	}
	for _, field := range []string{"items.0.item_type", "items.0.description", "items.0.quantity"} {
		if len(verrs[field]) == 0 {
			t.Errorf("missing validation error for %s", field)
		}
	}
}

func TestUpdateRecomputesTotals(t *testing.T) {
	svc, patientID := newBillingService()
	inv := createInvoice(t, svc, patientID, InvoiceInput{
		Items: []ItemInput{
			{ItemType: ItemService, Description: "Konsultasi", Quantity: 1, UnitPrice: "150000"},
		},
	})

	updated, err := svc.UpdateInvoice(context.Background(), inv.ID, InvoiceInput{
		DiscountAmount: "10000",
		TaxAmount:      "5000",
		Items: []ItemInput{
			{ItemType: ItemService, Description: "Konsultasi", Quantity: 1, UnitPrice: "150000"},
			{ItemType: ItemService, Description: "Tindakan ringan", Quantity: 1, UnitPrice: "50000"},
		},
	})
	if err != nil {
		t.Fatalf("update invoice: %v", err)
	}
	if want := decimal.RequireFromString("200000"); !updated.Subtotal.Equal(want) {
		t.Errorf("subtotal = %s, want %s", updated.Subtotal, want)
	}
	if want := decimal.RequireFromString("195000"); !updated.TotalAmount.Equal(want) {
		t.Errorf("total = %s, want %s", updated.TotalAmount, want)
	}
}

func TestPartialThenFullPayment(t *testing.T) {
	svc, patientID := newBillingService()
	ctx := context.Background()
	inv := createInvoice(t, svc, patientID, InvoiceInput{
		Items: []ItemInput{
			{ItemType: ItemService, Description: "Konsultasi", Quantity: 1, UnitPrice: "100000"},
		},
	})

	partial, err := svc.Pay(ctx, inv.ID, PayInput{Amount: "40000", PaymentMethod: "cash"})
	if err != nil {
		t.Fatalf("partial pay: %v", err)
	}
	if partial.Status != InvoicePartial {
		t.Errorf("status = %q, want partial", partial.Status)
	}
	if partial.PaidAt != nil {
		t.Error("paid_at set on a partial payment")
	}

	paid, err := svc.Pay(ctx, inv.ID, PayInput{Amount: "60000", PaymentMethod: "cash"})
	if err != nil {
		t.Fatalf("final pay: %v", err)
	}
	if paid.Status != InvoicePaid {
		t.Errorf("status = %q, want paid", paid.Status)
	}
	if paid.PaidAt == nil {
		t.Error("paid_at not stamped")
	}
	if !paid.PaidAmount.Equal(paid.TotalAmount) {
		t.Errorf("paid = %s, want %s", paid.PaidAmount, paid.TotalAmount)
	}
}

func TestOverpayRejected(t *testing.T) {
	svc, patientID := newBillingService()
	ctx := context.Background()
	inv := createInvoice(t, svc, patientID, InvoiceInput{
		Items: []ItemInput{
			{ItemType: ItemService, Description: "Konsultasi", Quantity: 1, UnitPrice: "100000"},
		},
	})

	_, err := svc.Pay(ctx, inv.ID, PayInput{Amount: "100001", PaymentMethod: "cash"})
	if _, ok := domainerr.As(err); !ok {
		t.Fatalf("err = %v, want domain error", err)
	}

	got, _ := svc.GetInvoice(ctx, inv.ID)
	if !got.PaidAmount.IsZero() {
		t.Errorf("paid = %s, want 0 after rejected payment", got.PaidAmount)
	}
	if got.Status != InvoiceUnpaid {
		t.Errorf("status = %q, want unpaid", got.Status)
	}
}

func TestPaidInvoiceImmutable(t *testing.T) {
	svc, patientID := newBillingService()
	ctx := context.Background()
	inv := createInvoice(t, svc, patientID, InvoiceInput{
		Items: []ItemInput{
			{ItemType: ItemService, Description: "Konsultasi", Quantity: 1, UnitPrice: "100000"},
		},
	})
	if _, err := svc.Pay(ctx, inv.ID, PayInput{Amount: "100000", PaymentMethod: "transfer"}); err != nil {
		t.Fatalf("pay: %v", err)
	}

	_, err := svc.UpdateInvoice(ctx, inv.ID, InvoiceInput{
		Items: []ItemInput{
			{ItemType: ItemService, Description: "Konsultasi", Quantity: 2, UnitPrice: "100000"},
		},
	})
	if _, ok := domainerr.As(err); !ok {
		t.Fatalf("update err = %v, want domain error", err)
	}

	if _, err := svc.Pay(ctx, inv.ID, PayInput{Amount: "1", PaymentMethod: "cash"}); err == nil {
		t.Fatal("payment on a paid invoice succeeded, want error")
	}
}

func TestUpdateCannotDropTotalBelowPaid(t *testing.T) {
	svc, patientID := newBillingService()
	ctx := context.Background()
	inv := createInvoice(t, svc, patientID, InvoiceInput{
		Items: []ItemInput{
			{ItemType: ItemService, Description: "Konsultasi", Quantity: 1, UnitPrice: "100000"},
		},
	})
	if _, err := svc.Pay(ctx, inv.ID, PayInput{Amount: "80000", PaymentMethod: "cash"}); err != nil {
		t.Fatalf("pay: %v", err)
	}

	_, err := svc.UpdateInvoice(ctx, inv.ID, InvoiceInput{
		Items: []ItemInput{
			{ItemType: ItemService, Description: "Konsultasi", Quantity: 1, UnitPrice: "50000"},
		},
	})
	if _, ok := domainerr.As(err); !ok {
		t.Fatalf("err = %v, want domain error", err)
	}
}

func TestCancelOnlyUnpaidWithoutPayments(t *testing.T) {
	svc, patientID := newBillingService()
	ctx := context.Background()

	inv := createInvoice(t, svc, patientID, InvoiceInput{
		Items: []ItemInput{
			{ItemType: ItemService, Description: "Konsultasi", Quantity: 1, UnitPrice: "100000"},
		},
	})
	cancelled, err := svc.CancelInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != InvoiceCancelled {
		t.Errorf("status = %q, want cancelled", cancelled.Status)
	}

	other := createInvoice(t, svc, patientID, InvoiceInput{
		Items: []ItemInput{
			{ItemType: ItemService, Description: "Konsultasi", Quantity: 1, UnitPrice: "100000"},
		},
	})
	if _, err := svc.Pay(ctx, other.ID, PayInput{Amount: "1000", PaymentMethod: "cash"}); err != nil {
		t.Fatalf("pay: %v", err)
	}
	if _, err := svc.CancelInvoice(ctx, other.ID); err == nil {
		t.Fatal("cancel after payment succeeded, want error")
	}
}

func TestCreateInvoiceRejectsUnknownPatient(t *testing.T) {
	svc, _ := newBillingService()
	_, err := svc.CreateInvoice(context.Background(), InvoiceInput{
		PatientID: uuid.New(),
		Items: []ItemInput{
			{ItemType: ItemService, Description: "Konsultasi", Quantity: 1, UnitPrice: "10"},
		},
	})
	if _, ok := domainerr.As(err); !ok {
		t.Fatalf("err = %v, want domain error", err)
	}
}
