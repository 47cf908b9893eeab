package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type SettingRepository interface {
	Create(ctx context.Context, s *QueueSetting) error
	GetByID(ctx context.Context, id uuid.UUID) (*QueueSetting, error)
	GetByDepartment(ctx context.Context, departmentID uuid.UUID) (*QueueSetting, error)
	Update(ctx context.Context, s *QueueSetting) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*QueueSetting, int, error)
}

type Repository interface {
	Create(ctx context.Context, q *Queue) error
	GetByID(ctx context.Context, id uuid.UUID) (*Queue, error)
	UpdateStatus(ctx context.Context, q *Queue) error
	// CountActive counts non-cancelled tickets for the department and date.
	CountActive(ctx context.Context, departmentID uuid.UUID, date time.Time) (int, error)
	// MaxNumber returns the highest queue_number for the department and date,
	// or 0 when none exists.
	MaxNumber(ctx context.Context, departmentID uuid.UUID, date time.Time) (int, error)
	List(ctx context.Context, f ListFilter) ([]*Queue, int, error)
	// ListForDate returns every ticket for the date, oldest first.
	ListForDate(ctx context.Context, date time.Time) ([]*Queue, error)
}

type ListFilter struct {
	DepartmentID *uuid.UUID
	PatientID    *uuid.UUID
	Status       string
	DateFrom     *time.Time
	DateTo       *time.Time
	Limit        int
	Offset       int
}
