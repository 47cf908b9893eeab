package clinicadmin

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/klinika/klinika/internal/platform/upload"
	"github.com/klinika/klinika/pkg/domainerr"
	"github.com/klinika/klinika/pkg/validation"
)

// Service implements clinic administration: departments, billable services,
// the clinic profile, and the ICD code reference.
type Service struct {
	departments DepartmentRepository
	services    ServiceRepository
	profile     ProfileRepository
	icd         ICDRepository
	files       *upload.Store
}

func NewService(departments DepartmentRepository, services ServiceRepository,
	profile ProfileRepository, icd ICDRepository, files *upload.Store) *Service {
	return &Service{
		departments: departments,
		services:    services,
		profile:     profile,
		icd:         icd,
		files:       files,
	}
}

// --- departments ---

type DepartmentInput struct {
	Name     string `json:"name"`
	Code     string `json:"code"`
	IsActive *bool  `json:"is_active"`
}

func (s *Service) CreateDepartment(ctx context.Context, in DepartmentInput) (*Department, error) {
	v := validation.New().
		Required("name", in.Name).MaxLen("name", in.Name, 255).
		Required("code", in.Code).MaxLen("code", in.Code, 20)
	if errs := v.Errors(); errs != nil {
		return nil, errs
	}

	if _, err := s.departments.GetByCode(ctx, in.Code); err == nil {
		return nil, domainerr.New("department code is already in use")
	} else if err != domainerr.ErrNotFound {
		return nil, err
	}

	d := &Department{Name: in.Name, Code: in.Code, IsActive: true}
	if in.IsActive != nil {
		d.IsActive = *in.IsActive
	}
	if err := s.departments.Create(ctx, d); err != nil {
		return nil, err
	}
	return s.departments.GetByID(ctx, d.ID)
}

func (s *Service) UpdateDepartment(ctx context.Context, id uuid.UUID, in DepartmentInput) (*Department, error) {
	d, err := s.departments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	v := validation.New().
		Required("name", in.Name).MaxLen("name", in.Name, 255).
		Required("code", in.Code).MaxLen("code", in.Code, 20)
	if errs := v.Errors(); errs != nil {
		return nil, errs
	}

	if in.Code != d.Code {
		if _, err := s.departments.GetByCode(ctx, in.Code); err == nil {
			return nil, domainerr.New("department code is already in use")
		} else if err != domainerr.ErrNotFound {
			return nil, err
		}
	}

	d.Name = in.Name
	d.Code = in.Code
	if in.IsActive != nil {
		d.IsActive = *in.IsActive
	}
	if err := s.departments.Update(ctx, d); err != nil {
		return nil, err
	}
	return s.departments.GetByID(ctx, id)
}

func (s *Service) GetDepartment(ctx context.Context, id uuid.UUID) (*Department, error) {
	return s.departments.GetByID(ctx, id)
}

func (s *Service) DeleteDepartment(ctx context.Context, id uuid.UUID) error {
	if _, err := s.departments.GetByID(ctx, id); err != nil {
		return err
	}
	return s.departments.Delete(ctx, id)
}

func (s *Service) ListDepartments(ctx context.Context, search string, limit, offset int) ([]*Department, int, error) {
	return s.departments.List(ctx, search, limit, offset)
}

// --- clinic services ---

type ServiceInput struct {
	Name         string     `json:"name"`
	Price        string     `json:"price"`
	DepartmentID *uuid.UUID `json:"department_id"`
	IsActive     *bool      `json:"is_active"`
}

func (s *Service) parseServiceInput(ctx context.Context, in ServiceInput) (decimal.Decimal, error) {
	v := validation.New().
		Required("name", in.Name).MaxLen("name", in.Name, 255).
		Required("price", in.Price)
	errs := v.Errors()

	price := decimal.Zero
	if in.Price != "" {
		var err error
		price, err = decimal.NewFromString(in.Price)
		if err != nil {
			if errs == nil {
				errs = validation.Errors{}
			}
			errs.Add("price", "must be a valid number")
		} else if price.IsNegative() {
			if errs == nil {
				errs = validation.Errors{}
			}
			errs.Add("price", "must not be negative")
		}
	}
	if errs != nil {
		return decimal.Zero, errs
	}

	if in.DepartmentID != nil {
		if _, err := s.departments.GetByID(ctx, *in.DepartmentID); err != nil {
			if err == domainerr.ErrNotFound {
				return decimal.Zero, domainerr.New("department does not exist")
			}
			return decimal.Zero, err
		}
	}
	return price, nil
}

func (s *Service) CreateService(ctx context.Context, in ServiceInput) (*ClinicService, error) {
	price, err := s.parseServiceInput(ctx, in)
	if err != nil {
		return nil, err
	}

	svc := &ClinicService{Name: in.Name, Price: price, DepartmentID: in.DepartmentID, IsActive: true}
	if in.IsActive != nil {
		svc.IsActive = *in.IsActive
	}
	if err := s.services.Create(ctx, svc); err != nil {
		return nil, err
	}
	return s.services.GetByID(ctx, svc.ID)
}

func (s *Service) UpdateService(ctx context.Context, id uuid.UUID, in ServiceInput) (*ClinicService, error) {
	svc, err := s.services.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	price, err := s.parseServiceInput(ctx, in)
	if err != nil {
		return nil, err
	}

	svc.Name = in.Name
	svc.Price = price
	svc.DepartmentID = in.DepartmentID
	if in.IsActive != nil {
		svc.IsActive = *in.IsActive
	}
	if err := s.services.Update(ctx, svc); err != nil {
		return nil, err
	}
	return s.services.GetByID(ctx, id)
}

func (s *Service) GetService(ctx context.Context, id uuid.UUID) (*ClinicService, error) {
	return s.services.GetByID(ctx, id)
}

func (s *Service) DeleteService(ctx context.Context, id uuid.UUID) error {
	if _, err := s.services.GetByID(ctx, id); err != nil {
		return err
	}
	return s.services.Delete(ctx, id)
}

func (s *Service) ListServices(ctx context.Context, search string, departmentID *uuid.UUID, limit, offset int) ([]*ClinicService, int, error) {
	return s.services.List(ctx, search, departmentID, limit, offset)
}

// --- clinic profile ---

type ProfileInput struct {
	Name    string  `json:"name"`
	Address *string `json:"address"`
	Phone   *string `json:"phone"`
	Email   *string `json:"email"`
}

func (s *Service) GetProfile(ctx context.Context) (*ClinicProfile, error) {
	return s.profile.Get(ctx)
}

func (s *Service) UpdateProfile(ctx context.Context, in ProfileInput) (*ClinicProfile, error) {
	v := validation.New().Required("name", in.Name).MaxLen("name", in.Name, 255)
	if in.Email != nil {
		v.Email("email", *in.Email)
	}
	if errs := v.Errors(); errs != nil {
		return nil, errs
	}

	p, err := s.profile.Get(ctx)
	if err != nil {
		return nil, err
	}
	p.Name = in.Name
	p.Address = in.Address
	p.Phone = in.Phone
	p.Email = in.Email
	if err := s.profile.Update(ctx, p); err != nil {
		return nil, err
	}
	return s.profile.Get(ctx)
}

var imageExts = []string{".png", ".jpg", ".jpeg", ".svg", ".ico", ".webp"}

// UploadLogo stores a new logo and replaces the previous file.
func (s *Service) UploadLogo(ctx context.Context, fh *multipart.FileHeader) (*ClinicProfile, error) {
	return s.uploadProfileImage(ctx, fh, "logo")
}

// UploadFavicon stores a new favicon and replaces the previous file.
func (s *Service) UploadFavicon(ctx context.Context, fh *multipart.FileHeader) (*ClinicProfile, error) {
	return s.uploadProfileImage(ctx, fh, "favicon")
}

func (s *Service) uploadProfileImage(ctx context.Context, fh *multipart.FileHeader, kind string) (*ClinicProfile, error) {
	p, err := s.profile.Get(ctx)
	if err != nil {
		return nil, err
	}

	path, err := s.files.Save(fh, "clinic", imageExts...)
	if err != nil {
		switch err {
		case upload.ErrMissingFile:
			return nil, validation.Errors{kind: {"is required"}}
		case upload.ErrFileTooLarge:
			return nil, validation.Errors{kind: {"exceeds the maximum allowed size"}}
		case upload.ErrInvalidExt:
			return nil, validation.Errors{kind: {"must be an image file"}}
		}
		return nil, err
	}

	var old *string
	switch kind {
	case "logo":
		old = p.LogoPath
		p.LogoPath = &path
	case "favicon":
		old = p.FaviconPath
		p.FaviconPath = &path
	}

	if err := s.profile.Update(ctx, p); err != nil {
		s.files.Remove(path)
		return nil, err
	}
	if old != nil {
		s.files.Remove(*old)
	}
	return s.profile.Get(ctx)
}

// --- ICD codes ---

func (s *Service) ListICDCodes(ctx context.Context, search string, limit, offset int) ([]*ICDCode, int, error) {
	return s.icd.List(ctx, search, limit, offset)
}

type icdRow struct {
	Code   string `json:"code"`
	NameEN string `json:"name_en"`
	NameID string `json:"name_id"`
}

// ImportICDCodes reads a CSV (code,name_en,name_id) or a JSON array of the
// same shape and upserts rows by code. Rows missing a code are skipped.
func (s *Service) ImportICDCodes(ctx context.Context, fh *multipart.FileHeader) (*ImportResult, error) {
	if fh == nil {
		return nil, validation.Errors{"file": {"is required"}}
	}

	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open import file: %w", err)
	}
	defer src.Close()

	var rows []icdRow
	switch strings.ToLower(filepath.Ext(fh.Filename)) {
	case ".csv":
		rows, err = parseICDCSV(src)
	case ".json":
		err = json.NewDecoder(src).Decode(&rows)
	default:
		return nil, validation.Errors{"file": {"must be a .csv or .json file"}}
	}
	if err != nil {
		return nil, domainerr.New("import file could not be parsed")
	}

	result := &ImportResult{}
	for _, row := range rows {
		code := strings.TrimSpace(row.Code)
		if code == "" || strings.TrimSpace(row.NameEN) == "" {
			result.Skipped++
			continue
		}
		if _, err := s.icd.Upsert(ctx, &ICDCode{
			Code:     code,
			NameEN:   strings.TrimSpace(row.NameEN),
			NameID:   strings.TrimSpace(row.NameID),
			IsActive: true,
		}); err != nil {
			return nil, err
		}
		result.Imported++
	}
	return result, nil
}

func parseICDCSV(src io.Reader) ([]icdRow, error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1

	var rows []icdRow
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		// Header row detection by a literal "code" first column.
		if first {
			first = false
			if len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), "code") {
				continue
			}
		}
		row := icdRow{}
		if len(record) > 0 {
			row.Code = record[0]
		}
		if len(record) > 1 {
			row.NameEN = record[1]
		}
		if len(record) > 2 {
			row.NameID = record[2]
		}
		rows = append(rows, row)
	}
	return rows, nil
}
