package clinical

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type RecordRepository interface {
	Create(ctx context.Context, rec *MedicalRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error)
	Update(ctx context.Context, rec *MedicalRecord) error
	List(ctx context.Context, f RecordFilter) ([]*MedicalRecord, int, error)
}

type RecordFilter struct {
	PatientID    *uuid.UUID
	DoctorID     *uuid.UUID
	DepartmentID *uuid.UUID
	Status       string
	DateFrom     *time.Time
	DateTo       *time.Time
	Limit        int
	Offset       int
}

type PrescriptionRepository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	Update(ctx context.Context, p *Prescription) error
	List(ctx context.Context, f PrescriptionFilter) ([]*Prescription, int, error)
	ItemsOf(ctx context.Context, prescriptionID uuid.UUID) ([]*PrescriptionItem, error)
	// ReplaceItems swaps the full item set. Only valid while pending.
	ReplaceItems(ctx context.Context, prescriptionID uuid.UUID, items []*PrescriptionItem) error
}

type PrescriptionFilter struct {
	PatientID       *uuid.UUID
	MedicalRecordID *uuid.UUID
	Status          string
	Limit           int
	Offset          int
}
