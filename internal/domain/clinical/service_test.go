package clinical

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/klinika/klinika/internal/domain/patient"
	"github.com/klinika/klinika/internal/domain/pharmacy"
	"github.com/klinika/klinika/pkg/domainerr"
	"github.com/klinika/klinika/pkg/validation"
)

type mockRecordRepo struct {
	records map[uuid.UUID]*MedicalRecord
}

func newMockRecordRepo() *mockRecordRepo {
	return &mockRecordRepo{records: map[uuid.UUID]*MedicalRecord{}}
}

func (m *mockRecordRepo) Create(_ context.Context, rec *MedicalRecord) error {
	rec.ID = uuid.New()
	cp := *rec
	m.records[rec.ID] = &cp
	return nil
}

func (m *mockRecordRepo) GetByID(_ context.Context, id uuid.UUID) (*MedicalRecord, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, domainerr.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *mockRecordRepo) Update(_ context.Context, rec *MedicalRecord) error {
	if _, ok := m.records[rec.ID]; !ok {
		return domainerr.ErrNotFound
	}
	cp := *rec
	m.records[rec.ID] = &cp
	return nil
}

func (m *mockRecordRepo) List(_ context.Context, _ RecordFilter) ([]*MedicalRecord, int, error) {
	var out []*MedicalRecord
	for _, rec := range m.records {
		cp := *rec
		out = append(out, &cp)
	}
	return out, len(out), nil
}

type mockPrescriptionRepo struct {
	prescriptions map[uuid.UUID]*Prescription
	items         map[uuid.UUID][]*PrescriptionItem
}

func newMockPrescriptionRepo() *mockPrescriptionRepo {
	return &mockPrescriptionRepo{
		prescriptions: map[uuid.UUID]*Prescription{},
		items:         map[uuid.UUID][]*PrescriptionItem{},
	}
}

func (m *mockPrescriptionRepo) snapshot() map[uuid.UUID]*Prescription {
	out := map[uuid.UUID]*Prescription{}
	for id, p := range m.prescriptions {
		cp := *p
		out[id] = &cp
	}
	return out
}

func (m *mockPrescriptionRepo) restore(snap map[uuid.UUID]*Prescription) {
	m.prescriptions = snap
}

func (m *mockPrescriptionRepo) Create(_ context.Context, p *Prescription) error {
	p.ID = uuid.New()
	cp := *p
	cp.Items = nil
	m.prescriptions[p.ID] = &cp
	return nil
}

func (m *mockPrescriptionRepo) GetByID(_ context.Context, id uuid.UUID) (*Prescription, error) {
	p, ok := m.prescriptions[id]
	if !ok {
		return nil, domainerr.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockPrescriptionRepo) Update(_ context.Context, p *Prescription) error {
	if _, ok := m.prescriptions[p.ID]; !ok {
		return domainerr.ErrNotFound
	}
	cp := *p
	cp.Items = nil
	m.prescriptions[p.ID] = &cp
	return nil
}

func (m *mockPrescriptionRepo) List(_ context.Context, _ PrescriptionFilter) ([]*Prescription, int, error) {
	var out []*Prescription
	for _, p := range m.prescriptions {
		cp := *p
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *mockPrescriptionRepo) ItemsOf(_ context.Context, prescriptionID uuid.UUID) ([]*PrescriptionItem, error) {
	var out []*PrescriptionItem
	for _, it := range m.items[prescriptionID] {
		cp := *it
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockPrescriptionRepo) ReplaceItems(_ context.Context, prescriptionID uuid.UUID, items []*PrescriptionItem) error {
	var cps []*PrescriptionItem
	for _, it := range items {
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		it.PrescriptionID = prescriptionID
		cp := *it
		cps = append(cps, &cp)
	}
	m.items[prescriptionID] = cps
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

// mockDispenser keeps an available quantity per medicine and rejects draws
// that would go negative, like the pharmacy service does.
type mockDispenser struct {
	stock map[uuid.UUID]int
	outs  []pharmacy.StockOutInput
}

func (m *mockDispenser) snapshot() (map[uuid.UUID]int, []pharmacy.StockOutInput) {
	stock := map[uuid.UUID]int{}
	for id, qty := range m.stock {
		stock[id] = qty
	}
	return stock, append([]pharmacy.StockOutInput(nil), m.outs...)
}

func (m *mockDispenser) restore(stock map[uuid.UUID]int, outs []pharmacy.StockOutInput) {
	m.stock = stock
	m.outs = outs
}

func (m *mockDispenser) StockOut(_ context.Context, in pharmacy.StockOutInput) ([]*pharmacy.StockMovement, error) {
	if m.stock[in.MedicineID] < in.Quantity {
		return nil, domainerr.New("insufficient stock")
	}
	m.stock[in.MedicineID] -= in.Quantity
	m.outs = append(m.outs, in)
	return []*pharmacy.StockMovement{{ID: uuid.New(), MedicineID: in.MedicineID, Quantity: in.Quantity}}, nil
}

type clinicalFixture struct {
	records       *mockRecordRepo
	prescriptions *mockPrescriptionRepo
	dispenser     *mockDispenser
	svc           *Service
	patientID     uuid.UUID
	doctorID      uuid.UUID
}

func newClinicalFixture(t *testing.T) *clinicalFixture {
	t.Helper()
	f := &clinicalFixture{
		records:       newMockRecordRepo(),
		prescriptions: newMockPrescriptionRepo(),
		dispenser:     &mockDispenser{stock: map[uuid.UUID]int{}},
		patientID:     uuid.New(),
		doctorID:      uuid.New(),
	}
	patients := &mockPatientLookup{patients: map[uuid.UUID]*patient.Patient{
		f.patientID: {ID: f.patientID, Name: "Budi Santoso"},
	}}
	tx := func(ctx context.Context, fn func(ctx context.Context) error) error {
		presSnap := f.prescriptions.snapshot()
		stockSnap, outsSnap := f.dispenser.snapshot()
		if err := fn(ctx); err != nil {
			f.prescriptions.restore(presSnap)
			f.dispenser.restore(stockSnap, outsSnap)
			return err
		}
		return nil
	}
	f.svc = NewService(f.records, f.prescriptions, patients, f.dispenser, tx)
	f.svc.now = func() time.Time {
		return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	}
	return f
}

func (f *clinicalFixture) createRecord(t *testing.T) *MedicalRecord {
	t.Helper()
	subj := "demam 3 hari"
	rec, err := f.svc.CreateRecord(context.Background(), RecordInput{
		PatientID:  f.patientID,
		DoctorID:   f.doctorID,
		Subjective: &subj,
	})
	if err != nil {
		t.Fatalf("create record: %v", err)
	}
	return rec
}

func (f *clinicalFixture) createPrescription(t *testing.T, items ...PrescriptionItemInput) *Prescription {
	t.Helper()
	rec := f.createRecord(t)
	p, err := f.svc.CreatePrescription(context.Background(), PrescriptionInput{
		MedicalRecordID: rec.ID,
		Items:           items,
	})
	if err != nil {
		t.Fatalf("create prescription: %v", err)
	}
	return p
}

func TestCreateRecordStartsAsDraft(t *testing.T) {
	f := newClinicalFixture(t)
	rec := f.createRecord(t)
	if rec.Status != RecordDraft {
		t.Errorf("status = %q, want draft", rec.Status)
	}
}

func TestFinalizedRecordRejectsEdits(t *testing.T) {
	f := newClinicalFixture(t)
	ctx := context.Background()
	rec := f.createRecord(t)

	final, err := f.svc.FinalizeRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if final.Status != RecordFinal {
		t.Errorf("status = %q, want final", final.Status)
	}

	plan := "paracetamol 3x1"
	_, err = f.svc.UpdateRecord(ctx, rec.ID, RecordInput{Plan: &plan})
	if _, ok := domainerr.As(err); !ok {
		t.Fatalf("update err = %v, want domain error", err)
	}

	amended, err := f.svc.Amend(ctx, rec.ID, RecordInput{Plan: &plan})
	if err != nil {
		t.Fatalf("amend: %v", err)
	}
	if amended.Status != RecordAmended {
		t.Errorf("status = %q, want amended", amended.Status)
	}
	if amended.Plan == nil || *amended.Plan != plan {
		t.Error("amendment did not apply the new plan")
	}
}

func TestAmendRequiresFinalizedRecord(t *testing.T) {
	f := newClinicalFixture(t)
	rec := f.createRecord(t)

	_, err := f.svc.Amend(context.Background(), rec.ID, RecordInput{})
	if _, ok := domainerr.As(err); !ok {
		t.Fatalf("err = %v, want domain error", err)
	}
}

func TestCreatePrescriptionValidation(t *testing.T) {
	f := newClinicalFixture(t)
	rec := f.createRecord(t)

	_, err := f.svc.CreatePrescription(context.Background(), PrescriptionInput{
		MedicalRecordID: rec.ID,
		Items:           []PrescriptionItemInput{{MedicineID: uuid.New(), Quantity: 0}},
	})
	verrs, ok := err.(validation.Errors)
	if !ok {
		t.Fatalf("err = %v, want validation errors", err)
	}
	if len(verrs["items.0.quantity"]) == 0 {
		t.Error("missing validation error for items.0.quantity")
	}
}

func TestDispenseDrawsStockAndMarksDispensed(t *testing.T) {
	f := newClinicalFixture(t)
	ctx := context.Background()
	med1, med2 := uuid.New(), uuid.New()
	f.dispenser.stock[med1] = 20
	f.dispenser.stock[med2] = 5

	p := f.createPrescription(t,
		PrescriptionItemInput{MedicineID: med1, Quantity: 10},
		PrescriptionItemInput{MedicineID: med2, Quantity: 5},
	)

	done, err := f.svc.Dispense(ctx, p.ID, nil)
	if err != nil {
		t.Fatalf("dispense: %v", err)
	}
	if done.Status != PrescriptionDispensed {
		t.Errorf("status = %q, want dispensed", done.Status)
	}
	if len(f.dispenser.outs) != 2 {
		t.Fatalf("stock outs = %d, want 2", len(f.dispenser.outs))
	}
	for _, out := range f.dispenser.outs {
		if out.Reason != pharmacy.ReasonPrescription {
			t.Errorf("reason = %q, want prescription", out.Reason)
		}
		if out.ReferenceID == nil || *out.ReferenceID != p.ID {
			t.Error("movement does not reference the prescription")
		}
	}
	if f.dispenser.stock[med1] != 10 || f.dispenser.stock[med2] != 0 {
		t.Errorf("remaining stock = %d/%d, want 10/0", f.dispenser.stock[med1], f.dispenser.stock[med2])
	}
}

func TestDispenseInsufficientStockRollsBack(t *testing.T) {
	f := newClinicalFixture(t)
	ctx := context.Background()
	med1, med2 := uuid.New(), uuid.New()
	f.dispenser.stock[med1] = 20
	f.dispenser.stock[med2] = 3 // not enough for the second item

	p := f.createPrescription(t,
		PrescriptionItemInput{MedicineID: med1, Quantity: 10},
		PrescriptionItemInput{MedicineID: med2, Quantity: 5},
	)

	_, err := f.svc.Dispense(ctx, p.ID, nil)
	if _, ok := domainerr.As(err); !ok {
		t.Fatalf("err = %v, want domain error", err)
	}

	got, _ := f.svc.GetPrescription(ctx, p.ID)
	if got.Status != PrescriptionPending {
		t.Errorf("status = %q, want pending after rollback", got.Status)
	}
	if len(f.dispenser.outs) != 0 {
		t.Errorf("stock outs = %d, want 0 after rollback", len(f.dispenser.outs))
	}
	if f.dispenser.stock[med1] != 20 {
		t.Errorf("stock = %d, want 20 restored", f.dispenser.stock[med1])
	}
}

func TestDispenseOnlyPending(t *testing.T) {
	f := newClinicalFixture(t)
	ctx := context.Background()
	med := uuid.New()
	f.dispenser.stock[med] = 100

	p := f.createPrescription(t, PrescriptionItemInput{MedicineID: med, Quantity: 10})
	if _, err := f.svc.Dispense(ctx, p.ID, nil); err != nil {
		t.Fatalf("dispense: %v", err)
	}

	if _, err := f.svc.Dispense(ctx, p.ID, nil); err == nil {
		t.Fatal("second dispense succeeded, want error")
	}
	if f.dispenser.stock[med] != 90 {
		t.Errorf("stock = %d, want 90 after one dispense", f.dispenser.stock[med])
	}
}

func TestCancelPrescription(t *testing.T) {
	f := newClinicalFixture(t)
	ctx := context.Background()
	med := uuid.New()
	f.dispenser.stock[med] = 100

	p := f.createPrescription(t, PrescriptionItemInput{MedicineID: med, Quantity: 10})
	cancelled, err := f.svc.CancelPrescription(ctx, p.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != PrescriptionCancelled {
		t.Errorf("status = %q, want cancelled", cancelled.Status)
	}

	if _, err := f.svc.Dispense(ctx, p.ID, nil); err == nil {
		t.Fatal("dispense after cancel succeeded, want error")
	}
}
