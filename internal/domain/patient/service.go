package patient

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/klinika/klinika/pkg/domainerr"
	"github.com/klinika/klinika/pkg/validation"
)

// Service implements patient registration and lookup.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

type Input struct {
	NIK       *string `json:"nik"`
	Name      string  `json:"name"`
	Gender    string  `json:"gender"`
	BirthDate string  `json:"birth_date"` // YYYY-MM-DD
	Phone     *string `json:"phone"`
	Email     *string `json:"email"`
	Address   *string `json:"address"`
	BloodType *string `json:"blood_type"`
	Allergies *string `json:"allergies"`
	IsActive  *bool   `json:"is_active"`
}

func (s *Service) validate(in Input) (time.Time, validation.Errors) {
	v := validation.New().
		Required("name", in.Name).MaxLen("name", in.Name, 255).
		Required("gender", in.Gender).OneOf("gender", in.Gender, GenderMale, GenderFemale).
		Required("birth_date", in.BirthDate)
	if in.Email != nil {
		v.Email("email", *in.Email)
	}
	if in.BloodType != nil {
		v.OneOf("blood_type", *in.BloodType, "A", "B", "AB", "O")
	}

	var birth time.Time
	if in.BirthDate != "" {
		var err error
		birth, err = time.Parse("2006-01-02", in.BirthDate)
		if err != nil {
			errs := v.Errors()
			if errs == nil {
				errs = validation.Errors{}
			}
			errs.Add("birth_date", "must be a valid date (YYYY-MM-DD)")
			return time.Time{}, errs
		}
	}
	return birth, v.Errors()
}

// checkNIK rejects a NIK already registered to a different patient with a
// field-keyed 422.
func (s *Service) checkNIK(ctx context.Context, nik *string, selfID uuid.UUID) error {
	if nik == nil || *nik == "" {
		return nil
	}
	existing, err := s.repo.GetByNIK(ctx, *nik)
	if err == domainerr.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID != selfID {
		return validation.Errors{"nik": {"is already registered"}}
	}
	return nil
}

func (s *Service) Create(ctx context.Context, in Input) (*Patient, error) {
	birth, errs := s.validate(in)
	if errs != nil {
		return nil, errs
	}
	if err := s.checkNIK(ctx, in.NIK, uuid.Nil); err != nil {
		return nil, err
	}

	seq, err := s.repo.NextMRNSequence(ctx)
	if err != nil {
		return nil, fmt.Errorf("next mrn: %w", err)
	}

	p := &Patient{
		MRN:       fmt.Sprintf("MRN%06d", seq),
		NIK:       in.NIK,
		Name:      in.Name,
		Gender:    in.Gender,
		BirthDate: birth,
		Phone:     in.Phone,
		Email:     in.Email,
		Address:   in.Address,
		BloodType: in.BloodType,
		Allergies: in.Allergies,
		IsActive:  true,
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, p.ID)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	birth, errs := s.validate(in)
	if errs != nil {
		return nil, errs
	}
	if err := s.checkNIK(ctx, in.NIK, id); err != nil {
		return nil, err
	}

	p.NIK = in.NIK
	p.Name = in.Name
	p.Gender = in.Gender
	p.BirthDate = birth
	p.Phone = in.Phone
	p.Email = in.Email
	p.Address = in.Address
	p.BloodType = in.BloodType
	p.Allergies = in.Allergies
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, search string, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, search, limit, offset)
}
