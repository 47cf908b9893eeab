package purchasing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/klinika/klinika/internal/domain/pharmacy"
	"github.com/klinika/klinika/pkg/domainerr"
	"github.com/klinika/klinika/pkg/validation"
)

type mockSupplierRepo struct {
	suppliers map[uuid.UUID]*Supplier
}

func newMockSupplierRepo() *mockSupplierRepo {
	return &mockSupplierRepo{suppliers: map[uuid.UUID]*Supplier{}}
}

func (m *mockSupplierRepo) Create(_ context.Context, s *Supplier) error {
	s.ID = uuid.New()
	cp := *s
	m.suppliers[s.ID] = &cp
	return nil
}

func (m *mockSupplierRepo) GetByID(_ context.Context, id uuid.UUID) (*Supplier, error) {
	s, ok := m.suppliers[id]
	if !ok {
		return nil, domainerr.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockSupplierRepo) Update(_ context.Context, s *Supplier) error {
	if _, ok := m.suppliers[s.ID]; !ok {
		return domainerr.ErrNotFound
	}
	cp := *s
	m.suppliers[s.ID] = &cp
	return nil
}

func (m *mockSupplierRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.suppliers, id)
	return nil
}

func (m *mockSupplierRepo) List(_ context.Context, _ string, _, _ int) ([]*Supplier, int, error) {
	var out []*Supplier
	for _, s := range m.suppliers {
		cp := *s
		out = append(out, &cp)
	}
	return out, len(out), nil
}

type mockOrderRepo struct {
	orders map[uuid.UUID]*PurchaseOrder
	items  map[uuid.UUID][]*PurchaseOrderItem
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{
		orders: map[uuid.UUID]*PurchaseOrder{},
		items:  map[uuid.UUID][]*PurchaseOrderItem{},
	}
}

func (m *mockOrderRepo) snapshot() (map[uuid.UUID]*PurchaseOrder, map[uuid.UUID][]*PurchaseOrderItem) {
	orders := map[uuid.UUID]*PurchaseOrder{}
	for id, po := range m.orders {
		cp := *po
		orders[id] = &cp
	}
	items := map[uuid.UUID][]*PurchaseOrderItem{}
	for id, list := range m.items {
		var cps []*PurchaseOrderItem
		for _, it := range list {
			cp := *it
			cps = append(cps, &cp)
		}
		items[id] = cps
	}
	return orders, items
}

func (m *mockOrderRepo) restore(orders map[uuid.UUID]*PurchaseOrder, items map[uuid.UUID][]*PurchaseOrderItem) {
	m.orders = orders
	m.items = items
}

func (m *mockOrderRepo) Create(_ context.Context, po *PurchaseOrder) error {
	po.ID = uuid.New()
	cp := *po
	cp.Items = nil
	m.orders[po.ID] = &cp
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*PurchaseOrder, error) {
	po, ok := m.orders[id]
	if !ok {
		return nil, domainerr.ErrNotFound
	}
	cp := *po
	return &cp, nil
}

func (m *mockOrderRepo) Update(_ context.Context, po *PurchaseOrder) error {
	if _, ok := m.orders[po.ID]; !ok {
		return domainerr.ErrNotFound
	}
	cp := *po
	cp.Items = nil
	m.orders[po.ID] = &cp
	return nil
}

func (m *mockOrderRepo) List(_ context.Context, _ OrderFilter) ([]*PurchaseOrder, int, error) {
	var out []*PurchaseOrder
	for _, po := range m.orders {
		cp := *po
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *mockOrderRepo) CountForDate(_ context.Context, date time.Time) (int, error) {
	n := 0
	for _, po := range m.orders {
		if po.CreatedAt.Format("2006-01-02") == date.Format("2006-01-02") {
			n++
		}
	}
	return n, nil
}

func (m *mockOrderRepo) ItemsOf(_ context.Context, orderID uuid.UUID) ([]*PurchaseOrderItem, error) {
	var out []*PurchaseOrderItem
	for _, it := range m.items[orderID] {
		cp := *it
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockOrderRepo) GetItem(_ context.Context, itemID uuid.UUID) (*PurchaseOrderItem, error) {
	for _, list := range m.items {
		for _, it := range list {
			if it.ID == itemID {
				cp := *it
				return &cp, nil
			}
		}
	}
	return nil, domainerr.ErrNotFound
}

func (m *mockOrderRepo) ReplaceItems(_ context.Context, orderID uuid.UUID, items []*PurchaseOrderItem) error {
	var cps []*PurchaseOrderItem
	for _, it := range items {
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		it.PurchaseOrderID = orderID
		cp := *it
		cps = append(cps, &cp)
	}
	m.items[orderID] = cps
	return nil
}

func (m *mockOrderRepo) UpdateItemReceived(_ context.Context, itemID uuid.UUID, received int) error {
	for _, list := range m.items {
		for _, it := range list {
			if it.ID == itemID {
				it.ReceivedQuantity = received
				return nil
			}
		}
	}
	return domainerr.ErrNotFound
}

type mockReceiptRepo struct {
	receipts map[uuid.UUID]*GoodsReceipt
	items    map[uuid.UUID][]*GoodsReceiptItem
}

func newMockReceiptRepo() *mockReceiptRepo {
	return &mockReceiptRepo{
		receipts: map[uuid.UUID]*GoodsReceipt{},
		items:    map[uuid.UUID][]*GoodsReceiptItem{},
	}
}

func (m *mockReceiptRepo) snapshot() (map[uuid.UUID]*GoodsReceipt, map[uuid.UUID][]*GoodsReceiptItem) {
	receipts := map[uuid.UUID]*GoodsReceipt{}
	for id, r := range m.receipts {
		cp := *r
		receipts[id] = &cp
	}
	items := map[uuid.UUID][]*GoodsReceiptItem{}
	for id, list := range m.items {
		var cps []*GoodsReceiptItem
		for _, it := range list {
			cp := *it
			cps = append(cps, &cp)
		}
		items[id] = cps
	}
	return receipts, items
}

func (m *mockReceiptRepo) restore(receipts map[uuid.UUID]*GoodsReceipt, items map[uuid.UUID][]*GoodsReceiptItem) {
	m.receipts = receipts
	m.items = items
}

func (m *mockReceiptRepo) Create(_ context.Context, r *GoodsReceipt) error {
	r.ID = uuid.New()
	cp := *r
	cp.Items = nil
	m.receipts[r.ID] = &cp
	return nil
}

func (m *mockReceiptRepo) GetByID(_ context.Context, id uuid.UUID) (*GoodsReceipt, error) {
	r, ok := m.receipts[id]
	if !ok {
		return nil, domainerr.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockReceiptRepo) Update(_ context.Context, r *GoodsReceipt) error {
	if _, ok := m.receipts[r.ID]; !ok {
		return domainerr.ErrNotFound
	}
	cp := *r
	cp.Items = nil
	m.receipts[r.ID] = &cp
	return nil
}

func (m *mockReceiptRepo) List(_ context.Context, _ ReceiptFilter) ([]*GoodsReceipt, int, error) {
	var out []*GoodsReceipt
	for _, r := range m.receipts {
		cp := *r
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *mockReceiptRepo) CountForDate(_ context.Context, date time.Time) (int, error) {
	n := 0
	for _, r := range m.receipts {
		if r.CreatedAt.Format("2006-01-02") == date.Format("2006-01-02") {
			n++
		}
	}
	return n, nil
}

func (m *mockReceiptRepo) ItemsOf(_ context.Context, receiptID uuid.UUID) ([]*GoodsReceiptItem, error) {
	var out []*GoodsReceiptItem
	for _, it := range m.items[receiptID] {
		cp := *it
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockReceiptRepo) ReplaceItems(_ context.Context, receiptID uuid.UUID, items []*GoodsReceiptItem) error {
	var cps []*GoodsReceiptItem
	for _, it := range items {
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		it.GoodsReceiptID = receiptID
		cp := *it
		cps = append(cps, &cp)
	}
	m.items[receiptID] = cps
	return nil
}

func (m *mockReceiptRepo) SetItemBatch(_ context.Context, itemID, batchID uuid.UUID) error {
	for _, list := range m.items {
		for _, it := range list {
			if it.ID == itemID {
				id := batchID
				it.BatchID = &id
				return nil
			}
		}
	}
	return domainerr.ErrNotFound
}

type receivedBatch struct {
	medicineID  uuid.UUID
	batchNumber string
	qty         int
}

// mockStockReceiver records booked batches and can be told to fail on the
// nth call.
type mockStockReceiver struct {
	received []receivedBatch
	failOn   int // 1-based call index, 0 disables
	calls    int
}

func (m *mockStockReceiver) snapshot() []receivedBatch {
	return append([]receivedBatch(nil), m.received...)
}

func (m *mockStockReceiver) restore(snap []receivedBatch) {
	m.received = snap
}

func (m *mockStockReceiver) ReceiveBatch(_ context.Context, medicineID uuid.UUID, batchNumber string,
	_ time.Time, qty int, _ string, _ uuid.UUID) (*pharmacy.MedicineBatch, error) {
	m.calls++
	if m.failOn > 0 && m.calls == m.failOn {
		return nil, errors.New("stock write failed")
	}
	m.received = append(m.received, receivedBatch{medicineID: medicineID, batchNumber: batchNumber, qty: qty})
	return &pharmacy.MedicineBatch{ID: uuid.New(), MedicineID: medicineID, BatchNumber: batchNumber, CurrentQty: qty}, nil
}

type purchasingFixture struct {
	suppliers *mockSupplierRepo
	orders    *mockOrderRepo
	receipts  *mockReceiptRepo
	stock     *mockStockReceiver
	svc       *Service
	supplier  *Supplier
}

// newFixture wires a service whose tx restores every mock on error, matching
// transaction rollback.
func newFixture(t *testing.T) *purchasingFixture {
	t.Helper()
	f := &purchasingFixture{
		suppliers: newMockSupplierRepo(),
		orders:    newMockOrderRepo(),
		receipts:  newMockReceiptRepo(),
		stock:     &mockStockReceiver{},
	}
	tx := func(ctx context.Context, fn func(ctx context.Context) error) error {
		ordersSnap, orderItemsSnap := f.orders.snapshot()
		receiptsSnap, receiptItemsSnap := f.receipts.snapshot()
		stockSnap := f.stock.snapshot()
		if err := fn(ctx); err != nil {
			f.orders.restore(ordersSnap, orderItemsSnap)
			f.receipts.restore(receiptsSnap, receiptItemsSnap)
			f.stock.restore(stockSnap)
			return err
		}
		return nil
	}
	f.svc = NewService(f.suppliers, f.orders, f.receipts, f.stock, tx)
	f.svc.now = func() time.Time {
		return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	}

	sup, err := f.svc.CreateSupplier(context.Background(), SupplierInput{Name: "PT Medika Jaya"})
	if err != nil {
		t.Fatalf("create supplier: %v", err)
	}
	f.supplier = sup
	return f
}

func (f *purchasingFixture) createOrder(t *testing.T, items ...OrderItemInput) *PurchaseOrder {
	t.Helper()
	po, err := f.svc.CreateOrder(context.Background(), OrderInput{
		SupplierID: f.supplier.ID,
		TaxAmount:  "0",
		Items:      items,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return po
}

func (f *purchasingFixture) orderedPO(t *testing.T, items ...OrderItemInput) *PurchaseOrder {
	t.Helper()
	ctx := context.Background()
	po := f.createOrder(t, items...)
	if _, err := f.svc.Submit(ctx, po.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.svc.Approve(ctx, po.ID, uuid.New()); err != nil {
		t.Fatalf("approve: %v", err)
	}
	po, err := f.svc.MarkOrdered(ctx, po.ID)
	if err != nil {
		t.Fatalf("mark ordered: %v", err)
	}
	return po
}

func TestCreateOrderNumbersAndTotals(t *testing.T) {
	f := newFixture(t)
	medicine := uuid.New()

	po := f.createOrder(t,
		OrderItemInput{MedicineID: medicine, Quantity: 10, UnitPrice: "1500"},
		OrderItemInput{MedicineID: uuid.New(), Quantity: 3, UnitPrice: "250.50"},
	)

	if po.PONumber != "PO202603100001" {
		t.Errorf("po number = %q, want PO202603100001", po.PONumber)
	}
	if po.Status != PODraft {
		t.Errorf("status = %q, want draft", po.Status)
	}
	if want := decimal.RequireFromString("15751.50"); !po.Subtotal.Equal(want) {
		t.Errorf("subtotal = %s, want %s", po.Subtotal, want)
	}
	if !po.TotalAmount.Equal(po.Subtotal) {
		t.Errorf("total = %s, want %s with zero tax", po.TotalAmount, po.Subtotal)
	}
	if len(po.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(po.Items))
	}
}

func TestCreateOrderRejectsUnknownSupplier(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateOrder(context.Background(), OrderInput{
		SupplierID: uuid.New(),
		Items:      []OrderItemInput{{MedicineID: uuid.New(), Quantity: 1, UnitPrice: "10"}},
	})
	if _, ok := domainerr.As(err); !ok {
		t.Fatalf("err = %v, want domain error", err)
	}
}

func TestSubmitRequiresItems(t *testing.T) {
	f := newFixture(t)
	po := f.createOrder(t)

	_, err := f.svc.Submit(context.Background(), po.ID)
	if _, ok := domainerr.As(err); !ok {
		t.Fatalf("err = %v, want domain error", err)
	}

	got, _ := f.svc.GetOrder(context.Background(), po.ID)
	if got.Status != PODraft {
		t.Errorf("status = %q, want draft unchanged", got.Status)
	}
}

func TestApprovalWorkflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	po := f.createOrder(t, OrderItemInput{MedicineID: uuid.New(), Quantity: 5, UnitPrice: "100"})

	// Approving a draft skips the submission step.
	if _, err := f.svc.Approve(ctx, po.ID, uuid.New()); err == nil {
		t.Fatal("approve on draft succeeded, want error")
	}

	if _, err := f.svc.Submit(ctx, po.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	approver := uuid.New()
	approved, err := f.svc.Approve(ctx, po.ID, approver)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != POApproved {
		t.Errorf("status = %q, want approved", approved.Status)
	}
	if approved.ApprovedBy == nil || *approved.ApprovedBy != approver {
		t.Error("approved_by not stamped")
	}
	if approved.ApprovedAt == nil {
		t.Error("approved_at not stamped")
	}

	// Already approved, cannot reject anymore.
	if _, err := f.svc.Reject(ctx, po.ID, "too expensive"); err == nil {
		t.Fatal("reject after approval succeeded, want error")
	}
}

func TestRejectRequiresReason(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	po := f.createOrder(t, OrderItemInput{MedicineID: uuid.New(), Quantity: 5, UnitPrice: "100"})
	if _, err := f.svc.Submit(ctx, po.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	_, err := f.svc.Reject(ctx, po.ID, "")
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		t.Fatalf("err = %v, want validation errors", err)
	}

	rejected, err := f.svc.Reject(ctx, po.ID, "budget exceeded")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != PORejected {
		t.Errorf("status = %q, want rejected", rejected.Status)
	}
	if rejected.RejectionReason == nil || *rejected.RejectionReason != "budget exceeded" {
		t.Error("rejection reason not recorded")
	}
}

func TestUpdateOrderDraftOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	po := f.createOrder(t, OrderItemInput{MedicineID: uuid.New(), Quantity: 5, UnitPrice: "100"})
	if _, err := f.svc.Submit(ctx, po.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	_, err := f.svc.UpdateOrder(ctx, po.ID, OrderInput{
		SupplierID: f.supplier.ID,
		Items:      []OrderItemInput{{MedicineID: uuid.New(), Quantity: 1, UnitPrice: "5"}},
	})
	if _, ok := domainerr.As(err); !ok {
		t.Fatalf("err = %v, want domain error", err)
	}
}

func TestCancelOrderAfterOrderingRejected(t *testing.T) {
	f := newFixture(t)
	po := f.orderedPO(t, OrderItemInput{MedicineID: uuid.New(), Quantity: 2, UnitPrice: "50"})

	_, err := f.svc.CancelOrder(context.Background(), po.ID)
	if _, ok := domainerr.As(err); !ok {
		t.Fatalf("err = %v, want domain error", err)
	}
}

func TestCompleteReceiptBooksStockAndCompletesOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	medicine := uuid.New()
	po := f.orderedPO(t, OrderItemInput{MedicineID: medicine, Quantity: 10, UnitPrice: "100"})
	poItem := po.Items[0]

	gr, err := f.svc.CreateReceipt(ctx, ReceiptInput{
		PurchaseOrderID: &po.ID,
		SupplierID:      f.supplier.ID,
		Items: []ReceiptItemInput{{
			MedicineID:          medicine,
			PurchaseOrderItemID: &poItem.ID,
			BatchNumber:         "B-001",
			ExpiryDate:          "2027-06-30",
			Quantity:            10,
			UnitPrice:           "100",
		}},
	})
	if err != nil {
		t.Fatalf("create receipt: %v", err)
	}
	if gr.ReceiptNumber != "GR202603100001" {
		t.Errorf("receipt number = %q, want GR202603100001", gr.ReceiptNumber)
	}

	done, err := f.svc.CompleteReceipt(ctx, gr.ID)
	if err != nil {
		t.Fatalf("complete receipt: %v", err)
	}
	if done.Status != ReceiptCompleted {
		t.Errorf("receipt status = %q, want completed", done.Status)
	}
	if done.Items[0].BatchID == nil {
		t.Error("receipt item has no batch reference")
	}
	if len(f.stock.received) != 1 || f.stock.received[0].qty != 10 {
		t.Fatalf("stock bookings = %+v, want one booking of 10", f.stock.received)
	}

	updatedPO, err := f.svc.GetOrder(ctx, po.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if updatedPO.Status != POCompleted {
		t.Errorf("po status = %q, want completed", updatedPO.Status)
	}
	if updatedPO.Items[0].ReceivedQuantity != 10 {
		t.Errorf("received = %d, want 10", updatedPO.Items[0].ReceivedQuantity)
	}
}

func TestPartialReceiptMarksOrderPartial(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	medicine := uuid.New()
	po := f.orderedPO(t, OrderItemInput{MedicineID: medicine, Quantity: 10, UnitPrice: "100"})
	poItem := po.Items[0]

	gr, err := f.svc.CreateReceipt(ctx, ReceiptInput{
		PurchaseOrderID: &po.ID,
		SupplierID:      f.supplier.ID,
		Items: []ReceiptItemInput{{
			MedicineID:          medicine,
			PurchaseOrderItemID: &poItem.ID,
			BatchNumber:         "B-001",
			ExpiryDate:          "2027-06-30",
			Quantity:            4,
		}},
	})
	if err != nil {
		t.Fatalf("create receipt: %v", err)
	}
	if _, err := f.svc.CompleteReceipt(ctx, gr.ID); err != nil {
		t.Fatalf("complete receipt: %v", err)
	}

	updatedPO, _ := f.svc.GetOrder(ctx, po.ID)
	if updatedPO.Status != POPartialReceived {
		t.Errorf("po status = %q, want partial_received", updatedPO.Status)
	}
	if updatedPO.Items[0].ReceivedQuantity != 4 {
		t.Errorf("received = %d, want 4", updatedPO.Items[0].ReceivedQuantity)
	}
}

func TestOverReceiveRejectedAndRolledBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	medicine := uuid.New()
	po := f.orderedPO(t, OrderItemInput{MedicineID: medicine, Quantity: 10, UnitPrice: "100"})
	poItem := po.Items[0]

	gr, err := f.svc.CreateReceipt(ctx, ReceiptInput{
		PurchaseOrderID: &po.ID,
		SupplierID:      f.supplier.ID,
		Items: []ReceiptItemInput{{
			MedicineID:          medicine,
			PurchaseOrderItemID: &poItem.ID,
			BatchNumber:         "B-001",
			ExpiryDate:          "2027-06-30",
			Quantity:            12,
		}},
	})
	if err != nil {
		t.Fatalf("create receipt: %v", err)
	}

	_, err = f.svc.CompleteReceipt(ctx, gr.ID)
	if _, ok := domainerr.As(err); !ok {
		t.Fatalf("err = %v, want domain error", err)
	}

	if len(f.stock.received) != 0 {
		t.Errorf("stock bookings = %d, want 0 after rollback", len(f.stock.received))
	}
	got, _ := f.svc.GetReceipt(ctx, gr.ID)
	if got.Status != ReceiptDraft {
		t.Errorf("receipt status = %q, want draft after rollback", got.Status)
	}
	updatedPO, _ := f.svc.GetOrder(ctx, po.ID)
	if updatedPO.Items[0].ReceivedQuantity != 0 {
		t.Errorf("received = %d, want 0 after rollback", updatedPO.Items[0].ReceivedQuantity)
	}
}

func TestCompleteReceiptFailureOnLastItemLeavesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	med1, med2 := uuid.New(), uuid.New()
	po := f.orderedPO(t,
		OrderItemInput{MedicineID: med1, Quantity: 5, UnitPrice: "100"},
		OrderItemInput{MedicineID: med2, Quantity: 5, UnitPrice: "200"},
	)

	var item1, item2 *PurchaseOrderItem
	for _, it := range po.Items {
		if it.MedicineID == med1 {
			item1 = it
		} else {
			item2 = it
		}
	}

	gr, err := f.svc.CreateReceipt(ctx, ReceiptInput{
		PurchaseOrderID: &po.ID,
		SupplierID:      f.supplier.ID,
		Items: []ReceiptItemInput{
			{MedicineID: med1, PurchaseOrderItemID: &item1.ID, BatchNumber: "B-001", ExpiryDate: "2027-06-30", Quantity: 5},
			{MedicineID: med2, PurchaseOrderItemID: &item2.ID, BatchNumber: "B-002", ExpiryDate: "2027-06-30", Quantity: 5},
		},
	})
	if err != nil {
		t.Fatalf("create receipt: %v", err)
	}

	f.stock.failOn = 2
	if _, err := f.svc.CompleteReceipt(ctx, gr.ID); err == nil {
		t.Fatal("complete receipt succeeded, want failure")
	}

	if len(f.stock.received) != 0 {
		t.Errorf("stock bookings = %d, want 0 after rollback", len(f.stock.received))
	}
	got, _ := f.svc.GetReceipt(ctx, gr.ID)
	if got.Status != ReceiptDraft {
		t.Errorf("receipt status = %q, want draft after rollback", got.Status)
	}
	for _, it := range got.Items {
		if it.BatchID != nil {
			t.Error("receipt item kept a batch reference after rollback")
		}
	}
	updatedPO, _ := f.svc.GetOrder(ctx, po.ID)
	if updatedPO.Status != POOrdered {
		t.Errorf("po status = %q, want ordered after rollback", updatedPO.Status)
	}
	for _, it := range updatedPO.Items {
		if it.ReceivedQuantity != 0 {
			t.Errorf("received = %d, want 0 after rollback", it.ReceivedQuantity)
		}
	}
}

func TestCompleteNonDraftReceiptRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	medicine := uuid.New()
	po := f.orderedPO(t, OrderItemInput{MedicineID: medicine, Quantity: 10, UnitPrice: "100"})
	poItem := po.Items[0]

	gr, err := f.svc.CreateReceipt(ctx, ReceiptInput{
		PurchaseOrderID: &po.ID,
		SupplierID:      f.supplier.ID,
		Items: []ReceiptItemInput{{
			MedicineID:          medicine,
			PurchaseOrderItemID: &poItem.ID,
			BatchNumber:         "B-001",
			ExpiryDate:          "2027-06-30",
			Quantity:            10,
		}},
	})
	if err != nil {
		t.Fatalf("create receipt: %v", err)
	}
	if _, err := f.svc.CompleteReceipt(ctx, gr.ID); err != nil {
		t.Fatalf("complete receipt: %v", err)
	}

	_, err = f.svc.CompleteReceipt(ctx, gr.ID)
	if _, ok := domainerr.As(err); !ok {
		t.Fatalf("second completion err = %v, want domain error", err)
	}
	if len(f.stock.received) != 1 {
		t.Errorf("stock bookings = %d, want 1", len(f.stock.received))
	}
}

func TestReceiptRequiresAwaitingOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	medicine := uuid.New()
	po := f.createOrder(t, OrderItemInput{MedicineID: medicine, Quantity: 10, UnitPrice: "100"})

	_, err := f.svc.CreateReceipt(ctx, ReceiptInput{
		PurchaseOrderID: &po.ID,
		SupplierID:      f.supplier.ID,
		Items: []ReceiptItemInput{{
			MedicineID:  medicine,
			BatchNumber: "B-001",
			ExpiryDate:  "2027-06-30",
			Quantity:    10,
		}},
	})
	if _, ok := domainerr.As(err); !ok {
		t.Fatalf("err = %v, want domain error for a draft order", err)
	}
}
