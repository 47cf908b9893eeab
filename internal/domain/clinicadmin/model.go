package clinicadmin

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Department maps to the departments table.
type Department struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Code      string    `db:"code" json:"code"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ClinicService is a billable service offered by the clinic.
type ClinicService struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	Name         string          `db:"name" json:"name"`
	Price        decimal.Decimal `db:"price" json:"price"`
	DepartmentID *uuid.UUID      `db:"department_id" json:"department_id,omitempty"`
	IsActive     bool            `db:"is_active" json:"is_active"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// ClinicProfile is a singleton row describing the clinic itself.
type ClinicProfile struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Address     *string   `db:"address" json:"address,omitempty"`
	Phone       *string   `db:"phone" json:"phone,omitempty"`
	Email       *string   `db:"email" json:"email,omitempty"`
	LogoPath    *string   `db:"logo_path" json:"logo_path,omitempty"`
	FaviconPath *string   `db:"favicon_path" json:"favicon_path,omitempty"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ICDCode is a diagnosis code imported from CSV/JSON reference files.
type ICDCode struct {
	ID       uuid.UUID `db:"id" json:"id"`
	Code     string    `db:"code" json:"code"`
	NameEN   string    `db:"name_en" json:"name_en"`
	NameID   string    `db:"name_id" json:"name_id"`
	IsActive bool      `db:"is_active" json:"is_active"`
}

// ImportResult reports the outcome of an ICD reference import.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}
