package clinicadmin

import (
	"context"

	"github.com/google/uuid"
)

type DepartmentRepository interface {
	Create(ctx context.Context, d *Department) error
	GetByID(ctx context.Context, id uuid.UUID) (*Department, error)
	GetByCode(ctx context.Context, code string) (*Department, error)
	Update(ctx context.Context, d *Department) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, search string, limit, offset int) ([]*Department, int, error)
}

type ServiceRepository interface {
	Create(ctx context.Context, s *ClinicService) error
	GetByID(ctx context.Context, id uuid.UUID) (*ClinicService, error)
	Update(ctx context.Context, s *ClinicService) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, search string, departmentID *uuid.UUID, limit, offset int) ([]*ClinicService, int, error)
}

type ProfileRepository interface {
	// Get returns the singleton profile row, creating a default if absent.
	Get(ctx context.Context) (*ClinicProfile, error)
	Update(ctx context.Context, p *ClinicProfile) error
}

type ICDRepository interface {
	// Upsert inserts or updates by code and reports whether a row was created.
	Upsert(ctx context.Context, c *ICDCode) (created bool, err error)
	GetByCode(ctx context.Context, code string) (*ICDCode, error)
	List(ctx context.Context, search string, limit, offset int) ([]*ICDCode, int, error)
}
