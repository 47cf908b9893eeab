package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patients table. MRN is assigned once on create from the
// clinic-wide sequence and never changes.
type Patient struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	MRN       string     `db:"mrn" json:"mrn"`
	NIK       *string    `db:"nik" json:"nik,omitempty"`
	Name      string     `db:"name" json:"name"`
	Gender    string     `db:"gender" json:"gender"`
	BirthDate time.Time  `db:"birth_date" json:"birth_date"`
	Phone     *string    `db:"phone" json:"phone,omitempty"`
	Email     *string    `db:"email" json:"email,omitempty"`
	Address   *string    `db:"address" json:"address,omitempty"`
	BloodType *string    `db:"blood_type" json:"blood_type,omitempty"`
	Allergies *string    `db:"allergies" json:"allergies,omitempty"`
	IsActive  bool       `db:"is_active" json:"is_active"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

const (
	GenderMale   = "male"
	GenderFemale = "female"
)
