package clinical

import (
	"time"

	"github.com/google/uuid"
)

// Medical record statuses.
const (
	RecordDraft   = "draft"
	RecordFinal   = "final"
	RecordAmended = "amended"
)

// MedicalRecord is a SOAP note for one encounter.
type MedicalRecord struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	PatientID    uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID     uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	DepartmentID *uuid.UUID `db:"department_id" json:"department_id,omitempty"`
	QueueID      *uuid.UUID `db:"queue_id" json:"queue_id,omitempty"`
	RecordDate   time.Time  `db:"record_date" json:"record_date"`
	Subjective   *string    `db:"subjective" json:"subjective,omitempty"`
	Objective    *string    `db:"objective" json:"objective,omitempty"`
	Assessment   *string    `db:"assessment" json:"assessment,omitempty"`
	Plan         *string    `db:"plan" json:"plan,omitempty"`
	ICDCode      *string    `db:"icd_code" json:"icd_code,omitempty"`
	Status       string     `db:"status" json:"status"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Prescription statuses.
const (
	PrescriptionPending   = "pending"
	PrescriptionDispensed = "dispensed"
	PrescriptionCancelled = "cancelled"
)

// Prescription groups the medicines ordered on a medical record.
type Prescription struct {
	ID              uuid.UUID `db:"id" json:"id"`
	MedicalRecordID uuid.UUID `db:"medical_record_id" json:"medical_record_id"`
	PatientID       uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID        uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Status          string    `db:"status" json:"status"`
	Notes           *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`

	Items []*PrescriptionItem `db:"-" json:"items,omitempty"`
}

type PrescriptionItem struct {
	ID             uuid.UUID `db:"id" json:"id"`
	PrescriptionID uuid.UUID `db:"prescription_id" json:"prescription_id"`
	MedicineID     uuid.UUID `db:"medicine_id" json:"medicine_id"`
	Quantity       int       `db:"quantity" json:"quantity"`
	Dosage         *string   `db:"dosage" json:"dosage,omitempty"`
	Instruction    *string   `db:"instruction" json:"instruction,omitempty"`
}
