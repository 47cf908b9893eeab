package queue

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Queue lifecycle statuses.
const (
	StatusWaiting   = "waiting"
	StatusCalled    = "called"
	StatusInService = "in_service"
	StatusCompleted = "completed"
	StatusSkipped   = "skipped"
	StatusCancelled = "cancelled"
)

// QueueSetting holds per-department queue configuration.
type QueueSetting struct {
	ID           uuid.UUID `db:"id" json:"id"`
	DepartmentID uuid.UUID `db:"department_id" json:"department_id"`
	Prefix       string    `db:"prefix" json:"prefix"`
	DailyQuota   int       `db:"daily_quota" json:"daily_quota"`
	StartNumber  int       `db:"start_number" json:"start_number"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Queue is one ticket in a department's daily queue. QueueCode is unique per
// queue_date, enforced by a database index.
type Queue struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	QueueDate    time.Time  `db:"queue_date" json:"queue_date"`
	DepartmentID uuid.UUID  `db:"department_id" json:"department_id"`
	PatientID    *uuid.UUID `db:"patient_id" json:"patient_id,omitempty"`
	DoctorID     *uuid.UUID `db:"doctor_id" json:"doctor_id,omitempty"`
	ServiceID    *uuid.UUID `db:"service_id" json:"service_id,omitempty"`
	QueueNumber  int        `db:"queue_number" json:"queue_number"`
	QueueCode    string     `db:"queue_code" json:"queue_code"`
	Status       string     `db:"status" json:"status"`
	CalledAt     *time.Time `db:"called_at" json:"called_at,omitempty"`
	StartedAt    *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt  *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`

	// Derived on read, never stored.
	WaitTime    *string `db:"-" json:"wait_time,omitempty"`
	ServiceTime *string `db:"-" json:"service_time,omitempty"`
}

// ComputeDerived fills wait_time (created → called) and service_time
// (started → completed) from the stamped timestamps.
func (q *Queue) ComputeDerived() {
	if q.CalledAt != nil {
		d := q.CalledAt.Sub(q.CreatedAt).Round(time.Second)
		s := formatDuration(d)
		q.WaitTime = &s
	}
	if q.StartedAt != nil && q.CompletedAt != nil {
		d := q.CompletedAt.Sub(*q.StartedAt).Round(time.Second)
		s := formatDuration(d)
		q.ServiceTime = &s
	}
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// BoardEntry summarizes one department's queue for the display board.
type BoardEntry struct {
	DepartmentID   uuid.UUID `json:"department_id"`
	DepartmentName string    `json:"department_name"`
	Waiting        int       `json:"waiting"`
	InService      int       `json:"in_service"`
	Completed      int       `json:"completed"`
	CurrentCode    *string   `json:"current_code,omitempty"`
	Queues         []*Queue  `json:"queues"`
}
