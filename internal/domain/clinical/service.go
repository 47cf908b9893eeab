package clinical

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/klinika/klinika/internal/domain/patient"
	"github.com/klinika/klinika/internal/domain/pharmacy"
	"github.com/klinika/klinika/internal/platform/db"
	"github.com/klinika/klinika/pkg/domainerr"
	"github.com/klinika/klinika/pkg/validation"
)

// PatientLookup resolves the treated patient. Satisfied by the patient
// repository.
type PatientLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

// StockDispenser draws prescription quantities from pharmacy stock. Satisfied
// by the pharmacy service; its writes join the caller's transaction.
type StockDispenser interface {
	StockOut(ctx context.Context, in pharmacy.StockOutInput) ([]*pharmacy.StockMovement, error)
}

type Service struct {
	records       RecordRepository
	prescriptions PrescriptionRepository
	patients      PatientLookup
	dispenser     StockDispenser
	tx            db.TxFunc
	now           func() time.Time
}

func NewService(records RecordRepository, prescriptions PrescriptionRepository,
	patients PatientLookup, dispenser StockDispenser, tx db.TxFunc) *Service {
	return &Service{
		records:       records,
		prescriptions: prescriptions,
		patients:      patients,
		dispenser:     dispenser,
		tx:            tx,
		now:           time.Now,
	}
}

// --- medical records ---

type RecordInput struct {
	PatientID    uuid.UUID  `json:"patient_id"`
	DoctorID     uuid.UUID  `json:"doctor_id"`
	DepartmentID *uuid.UUID `json:"department_id"`
	QueueID      *uuid.UUID `json:"queue_id"`
	RecordDate   *string    `json:"record_date"` // YYYY-MM-DD
	Subjective   *string    `json:"subjective"`
	Objective    *string    `json:"objective"`
	Assessment   *string    `json:"assessment"`
	Plan         *string    `json:"plan"`
	ICDCode      *string    `json:"icd_code"`
}

func (s *Service) CreateRecord(ctx context.Context, in RecordInput) (*MedicalRecord, error) {
	errs := validation.Errors{}
	if in.PatientID == uuid.Nil {
		errs.Add("patient_id", "is required")
	}
	if in.DoctorID == uuid.Nil {
		errs.Add("doctor_id", "is required")
	}
	recordDate := s.now()
	if in.RecordDate != nil && *in.RecordDate != "" {
		d, err := time.Parse("2006-01-02", *in.RecordDate)
		if err != nil {
			errs.Add("record_date", "must be a valid date (YYYY-MM-DD)")
		} else {
			recordDate = d
		}
	}
	if errs.Any() {
		return nil, errs
	}

	if _, err := s.patients.GetByID(ctx, in.PatientID); err != nil {
		if errors.Is(err, domainerr.ErrNotFound) {
			return nil, domainerr.New("patient does not exist")
		}
		return nil, err
	}

	rec := &MedicalRecord{
		PatientID:    in.PatientID,
		DoctorID:     in.DoctorID,
		DepartmentID: in.DepartmentID,
		QueueID:      in.QueueID,
		RecordDate:   recordDate,
		Subjective:   in.Subjective,
		Objective:    in.Objective,
		Assessment:   in.Assessment,
		Plan:         in.Plan,
		ICDCode:      in.ICDCode,
		Status:       RecordDraft,
	}
	if err := s.records.Create(ctx, rec); err != nil {
		return nil, err
	}
	return s.records.GetByID(ctx, rec.ID)
}

// UpdateRecord edits the SOAP content of a draft. Finalized records only
// change through Amend.
func (s *Service) UpdateRecord(ctx context.Context, id uuid.UUID, in RecordInput) (*MedicalRecord, error) {
	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != RecordDraft {
		return nil, domainerr.New(fmt.Sprintf("a %s record can only be changed by amendment", rec.Status))
	}

	rec.Subjective = in.Subjective
	rec.Objective = in.Objective
	rec.Assessment = in.Assessment
	rec.Plan = in.Plan
	rec.ICDCode = in.ICDCode
	if err := s.records.Update(ctx, rec); err != nil {
		return nil, err
	}
	return s.records.GetByID(ctx, id)
}

// FinalizeRecord locks a draft.
func (s *Service) FinalizeRecord(ctx context.Context, id uuid.UUID) (*MedicalRecord, error) {
	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != RecordDraft {
		return nil, domainerr.New("only draft records can be finalized")
	}

	rec.Status = RecordFinal
	if err := s.records.Update(ctx, rec); err != nil {
		return nil, err
	}
	return s.records.GetByID(ctx, id)
}

// Amend applies corrections to a finalized record and marks it amended.
func (s *Service) Amend(ctx context.Context, id uuid.UUID, in RecordInput) (*MedicalRecord, error) {
	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != RecordFinal && rec.Status != RecordAmended {
		return nil, domainerr.New("only finalized records can be amended")
	}

	rec.Subjective = in.Subjective
	rec.Objective = in.Objective
	rec.Assessment = in.Assessment
	rec.Plan = in.Plan
	rec.ICDCode = in.ICDCode
	rec.Status = RecordAmended
	if err := s.records.Update(ctx, rec); err != nil {
		return nil, err
	}
	return s.records.GetByID(ctx, id)
}

func (s *Service) GetRecord(ctx context.Context, id uuid.UUID) (*MedicalRecord, error) {
	return s.records.GetByID(ctx, id)
}

func (s *Service) ListRecords(ctx context.Context, f RecordFilter) ([]*MedicalRecord, int, error) {
	return s.records.List(ctx, f)
}

// --- prescriptions ---

type PrescriptionItemInput struct {
	MedicineID  uuid.UUID `json:"medicine_id"`
	Quantity    int       `json:"quantity"`
	Dosage      *string   `json:"dosage"`
	Instruction *string   `json:"instruction"`
}

type PrescriptionInput struct {
	MedicalRecordID uuid.UUID               `json:"medical_record_id"`
	Notes           *string                 `json:"notes"`
	Items           []PrescriptionItemInput `json:"items"`
}

func (s *Service) CreatePrescription(ctx context.Context, in PrescriptionInput) (*Prescription, error) {
	errs := validation.Errors{}
	if in.MedicalRecordID == uuid.Nil {
		errs.Add("medical_record_id", "is required")
	}
	if len(in.Items) == 0 {
		errs.Add("items", "at least one item is required")
	}
	var items []*PrescriptionItem
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
		items = append(items, &PrescriptionItem{
			MedicineID:  it.MedicineID,
			Quantity:    it.Quantity,
			Dosage:      it.Dosage,
			Instruction: it.Instruction,
		})
	}
	if errs.Any() {
		return nil, errs
	}

	rec, err := s.records.GetByID(ctx, in.MedicalRecordID)
	if err != nil {
		if errors.Is(err, domainerr.ErrNotFound) {
			return nil, domainerr.New("medical record does not exist")
		}
		return nil, err
	}

	var created *Prescription
	err = s.tx(ctx, func(ctx context.Context) error {
		p := &Prescription{
			MedicalRecordID: rec.ID,
			PatientID:       rec.PatientID,
			DoctorID:        rec.DoctorID,
			Status:          PrescriptionPending,
			Notes:           in.Notes,
		}
		if err := s.prescriptions.Create(ctx, p); err != nil {
			return err
		}
		if err := s.prescriptions.ReplaceItems(ctx, p.ID, items); err != nil {
			return err
		}
		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetPrescription(ctx, created.ID)
}

func (s *Service) GetPrescription(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.prescriptions.ItemsOf(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Items = items
	return p, nil
}

func (s *Service) ListPrescriptions(ctx context.Context, f PrescriptionFilter) ([]*Prescription, int, error) {
	return s.prescriptions.List(ctx, f)
}

func (s *Service) CancelPrescription(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != PrescriptionPending {
		return nil, domainerr.New("only pending prescriptions can be cancelled")
	}
	p.Status = PrescriptionCancelled
	if err := s.prescriptions.Update(ctx, p); err != nil {
		return nil, err
	}
	return s.GetPrescription(ctx, id)
}

// Dispense draws every item from stock in expiry order and marks the
// prescription dispensed, all in one transaction. Insufficient stock on any
// item rolls the whole dispense back.
func (s *Service) Dispense(ctx context.Context, id uuid.UUID, dispensedBy *uuid.UUID) (*Prescription, error) {
	err := s.tx(ctx, func(ctx context.Context) error {
		p, err := s.prescriptions.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if p.Status != PrescriptionPending {
			return domainerr.New("only pending prescriptions can be dispensed")
		}

		items, err := s.prescriptions.ItemsOf(ctx, id)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return domainerr.New("prescription has no items")
		}

		refType := "prescription"
		for _, item := range items {
			_, err := s.dispenser.StockOut(ctx, pharmacy.StockOutInput{
				MedicineID:    item.MedicineID,
				Quantity:      item.Quantity,
				Reason:        pharmacy.ReasonPrescription,
				ReferenceType: &refType,
				ReferenceID:   &p.ID,
				CreatedBy:     dispensedBy,
			})
			if err != nil {
				return err
			}
		}

		p.Status = PrescriptionDispensed
		return s.prescriptions.Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return s.GetPrescription(ctx, id)
}
