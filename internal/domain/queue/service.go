package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/klinika/klinika/internal/domain/clinicadmin"
	"github.com/klinika/klinika/internal/platform/db"
	"github.com/klinika/klinika/pkg/domainerr"
	"github.com/klinika/klinika/pkg/validation"
)

// DepartmentLookup resolves department rows for setting validation and the
// display board.
type DepartmentLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*clinicadmin.Department, error)
}

// Service implements queue settings and the daily queue ledger.
type Service struct {
	settings    SettingRepository
	queues      Repository
	departments DepartmentLookup
	tx          db.TxFunc
	now         func() time.Time
}

func NewService(settings SettingRepository, queues Repository, departments DepartmentLookup, tx db.TxFunc) *Service {
	return &Service{
		settings:    settings,
		queues:      queues,
		departments: departments,
		tx:          tx,
		now:         time.Now,
	}
}

func today(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// --- settings ---

type SettingInput struct {
	DepartmentID uuid.UUID `json:"department_id"`
	Prefix       string    `json:"prefix"`
	DailyQuota   int       `json:"daily_quota"`
	StartNumber  int       `json:"start_number"`
	IsActive     *bool     `json:"is_active"`
}

func (s *Service) validateSetting(ctx context.Context, in SettingInput) error {
	v := validation.New().
		Required("prefix", in.Prefix).MaxLen("prefix", in.Prefix, 5).
		Positive("daily_quota", in.DailyQuota)
	if in.StartNumber < 1 {
		in.StartNumber = 1
	}
	if in.DepartmentID == uuid.Nil {
		v.Required("department_id", "")
	}
	if errs := v.Errors(); errs != nil {
		return errs
	}

	if _, err := s.departments.GetByID(ctx, in.DepartmentID); err != nil {
		if err == domainerr.ErrNotFound {
			return domainerr.New("department does not exist")
		}
		return err
	}
	return nil
}

func (s *Service) CreateSetting(ctx context.Context, in SettingInput) (*QueueSetting, error) {
	if err := s.validateSetting(ctx, in); err != nil {
		return nil, err
	}
	if _, err := s.settings.GetByDepartment(ctx, in.DepartmentID); err == nil {
		return nil, domainerr.New("department already has a queue setting")
	} else if err != domainerr.ErrNotFound {
		return nil, err
	}

	setting := &QueueSetting{
		DepartmentID: in.DepartmentID,
		Prefix:       in.Prefix,
		DailyQuota:   in.DailyQuota,
		StartNumber:  in.StartNumber,
		IsActive:     true,
	}
	if setting.StartNumber < 1 {
		setting.StartNumber = 1
	}
	if in.IsActive != nil {
		setting.IsActive = *in.IsActive
	}
	if err := s.settings.Create(ctx, setting); err != nil {
		return nil, err
	}
	return s.settings.GetByID(ctx, setting.ID)
}

func (s *Service) UpdateSetting(ctx context.Context, id uuid.UUID, in SettingInput) (*QueueSetting, error) {
	setting, err := s.settings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	in.DepartmentID = setting.DepartmentID
	if err := s.validateSetting(ctx, in); err != nil {
		return nil, err
	}

	setting.Prefix = in.Prefix
	setting.DailyQuota = in.DailyQuota
	if in.StartNumber >= 1 {
		setting.StartNumber = in.StartNumber
	}
	if in.IsActive != nil {
		setting.IsActive = *in.IsActive
	}
	if err := s.settings.Update(ctx, setting); err != nil {
		return nil, err
	}
	return s.settings.GetByID(ctx, id)
}

func (s *Service) GetSetting(ctx context.Context, id uuid.UUID) (*QueueSetting, error) {
	return s.settings.GetByID(ctx, id)
}

func (s *Service) DeleteSetting(ctx context.Context, id uuid.UUID) error {
	if _, err := s.settings.GetByID(ctx, id); err != nil {
		return err
	}
	return s.settings.Delete(ctx, id)
}

func (s *Service) ListSettings(ctx context.Context, limit, offset int) ([]*QueueSetting, int, error) {
	return s.settings.List(ctx, limit, offset)
}

// --- queue ledger ---

type TakeInput struct {
	DepartmentID uuid.UUID  `json:"department_id"`
	PatientID    *uuid.UUID `json:"patient_id"`
	DoctorID     *uuid.UUID `json:"doctor_id"`
	ServiceID    *uuid.UUID `json:"service_id"`
}

// Take issues the next ticket for the department today. Cancelled tickets do
// not consume quota, but their numbers are never reused: the next number
// always continues from the day's maximum.
func (s *Service) Take(ctx context.Context, in TakeInput) (*Queue, error) {
	if in.DepartmentID == uuid.Nil {
		return nil, validation.Errors{"department_id": {"is required"}}
	}

	var created *Queue
	err := s.tx(ctx, func(ctx context.Context) error {
		setting, err := s.settings.GetByDepartment(ctx, in.DepartmentID)
		if err != nil {
			if err == domainerr.ErrNotFound {
				return domainerr.New("department has no queue setting")
			}
			return err
		}
		if !setting.IsActive {
			return domainerr.New("queue is not active for this department")
		}

		date := today(s.now())

		active, err := s.queues.CountActive(ctx, in.DepartmentID, date)
		if err != nil {
			return err
		}
		if active >= setting.DailyQuota {
			return domainerr.New("daily queue quota has been reached")
		}

		maxNumber, err := s.queues.MaxNumber(ctx, in.DepartmentID, date)
		if err != nil {
			return err
		}
		next := maxNumber + 1
		if next < setting.StartNumber {
			next = setting.StartNumber
		}

		q := &Queue{
			QueueDate:    date,
			DepartmentID: in.DepartmentID,
			PatientID:    in.PatientID,
			DoctorID:     in.DoctorID,
			ServiceID:    in.ServiceID,
			QueueNumber:  next,
			QueueCode:    fmt.Sprintf("%s-%03d", setting.Prefix, next),
			Status:       StatusWaiting,
		}
		if err := s.queues.Create(ctx, q); err != nil {
			return err
		}
		created = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, created.ID)
}

// transitions maps a target status to the statuses it may come from.
var transitions = map[string][]string{
	StatusCalled:    {StatusWaiting, StatusSkipped},
	StatusInService: {StatusCalled},
	StatusCompleted: {StatusInService},
	StatusSkipped:   {StatusWaiting, StatusCalled},
	StatusCancelled: {StatusWaiting, StatusCalled, StatusInService, StatusSkipped},
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, target string) (*Queue, error) {
	q, err := s.queues.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	allowed := false
	for _, from := range transitions[target] {
		if q.Status == from {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, domainerr.New(fmt.Sprintf("cannot move queue from %s to %s", q.Status, target))
	}

	now := s.now()
	q.Status = target
	switch target {
	case StatusCalled:
		q.CalledAt = &now
	case StatusInService:
		q.StartedAt = &now
	case StatusCompleted:
		q.CompletedAt = &now
	}

	if err := s.queues.UpdateStatus(ctx, q); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *Service) Call(ctx context.Context, id uuid.UUID) (*Queue, error) {
	return s.transition(ctx, id, StatusCalled)
}

func (s *Service) Start(ctx context.Context, id uuid.UUID) (*Queue, error) {
	return s.transition(ctx, id, StatusInService)
}

func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Queue, error) {
	return s.transition(ctx, id, StatusCompleted)
}

func (s *Service) Skip(ctx context.Context, id uuid.UUID) (*Queue, error) {
	return s.transition(ctx, id, StatusSkipped)
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Queue, error) {
	return s.transition(ctx, id, StatusCancelled)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Queue, error) {
	q, err := s.queues.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	q.ComputeDerived()
	return q, nil
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Queue, int, error) {
	items, total, err := s.queues.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	for _, q := range items {
		q.ComputeDerived()
	}
	return items, total, nil
}

// Board returns today's queues grouped per department with live counts.
func (s *Service) Board(ctx context.Context) ([]*BoardEntry, error) {
	date := today(s.now())
	queues, err := s.queues.ListForDate(ctx, date)
	if err != nil {
		return nil, err
	}

	byDept := map[uuid.UUID]*BoardEntry{}
	var order []uuid.UUID
	for _, q := range queues {
		q.ComputeDerived()
		entry, ok := byDept[q.DepartmentID]
		if !ok {
			entry = &BoardEntry{DepartmentID: q.DepartmentID}
			byDept[q.DepartmentID] = entry
			order = append(order, q.DepartmentID)
		}
		entry.Queues = append(entry.Queues, q)
		switch q.Status {
		case StatusWaiting:
			entry.Waiting++
		case StatusInService:
			entry.InService++
			code := q.QueueCode
			entry.CurrentCode = &code
		case StatusCalled:
			if entry.CurrentCode == nil {
				code := q.QueueCode
				entry.CurrentCode = &code
			}
		case StatusCompleted:
			entry.Completed++
		}
	}

	entries := make([]*BoardEntry, 0, len(order))
	for _, id := range order {
		entry := byDept[id]
		if dept, err := s.departments.GetByID(ctx, id); err == nil {
			entry.DepartmentName = dept.Name
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
