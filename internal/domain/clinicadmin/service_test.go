package clinicadmin

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/klinika/klinika/internal/platform/upload"
	"github.com/klinika/klinika/pkg/domainerr"
	"github.com/klinika/klinika/pkg/validation"
)

type mockDepartmentRepo struct {
	departments map[uuid.UUID]*Department
}

func newMockDepartmentRepo() *mockDepartmentRepo {
	return &mockDepartmentRepo{departments: map[uuid.UUID]*Department{}}
}

func (m *mockDepartmentRepo) Create(_ context.Context, d *Department) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	cp := *d
	m.departments[d.ID] = &cp
	return nil
}

func (m *mockDepartmentRepo) GetByID(_ context.Context, id uuid.UUID) (*Department, error) {
	d, ok := m.departments[id]
	if !ok {
		return nil, domainerr.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *mockDepartmentRepo) GetByCode(_ context.Context, code string) (*Department, error) {
	for _, d := range m.departments {
		if d.Code == code {
			cp := *d
			return &cp, nil
		}
	}
	return nil, domainerr.ErrNotFound
}

func (m *mockDepartmentRepo) Update(_ context.Context, d *Department) error {
	if _, ok := m.departments[d.ID]; !ok {
		return domainerr.ErrNotFound
	}
	cp := *d
	m.departments[d.ID] = &cp
	return nil
}

func (m *mockDepartmentRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.departments, id)
	return nil
}

func (m *mockDepartmentRepo) List(_ context.Context, search string, limit, offset int) ([]*Department, int, error) {
	var out []*Department
	for _, d := range m.departments {
		cp := *d
		out = append(out, &cp)
	}
	return out, len(out), nil
}

type mockServiceRepo struct {
	services map[uuid.UUID]*ClinicService
}

func newMockServiceRepo() *mockServiceRepo {
	return &mockServiceRepo{services: map[uuid.UUID]*ClinicService{}}
}

func (m *mockServiceRepo) Create(_ context.Context, s *ClinicService) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	cp := *s
	m.services[s.ID] = &cp
	return nil
}

func (m *mockServiceRepo) GetByID(_ context.Context, id uuid.UUID) (*ClinicService, error) {
	s, ok := m.services[id]
	if !ok {
		return nil, domainerr.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockServiceRepo) Update(_ context.Context, s *ClinicService) error {
	if _, ok := m.services[s.ID]; !ok {
		return domainerr.ErrNotFound
	}
	cp := *s
	m.services[s.ID] = &cp
	return nil
}

func (m *mockServiceRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.services, id)
	return nil
}

func (m *mockServiceRepo) List(_ context.Context, search string, departmentID *uuid.UUID, limit, offset int) ([]*ClinicService, int, error) {
	var out []*ClinicService
	for _, s := range m.services {
		cp := *s
		out = append(out, &cp)
	}
	return out, len(out), nil
}

type mockProfileRepo struct {
	profile *ClinicProfile
}

func (m *mockProfileRepo) Get(_ context.Context) (*ClinicProfile, error) {
	if m.profile == nil {
		m.profile = &ClinicProfile{ID: uuid.New(), Name: "Clinic"}
	}
	cp := *m.profile
	return &cp, nil
}

func (m *mockProfileRepo) Update(_ context.Context, p *ClinicProfile) error {
	cp := *p
	m.profile = &cp
	return nil
}

type mockICDRepo struct {
	codes map[string]*ICDCode
}

func newMockICDRepo() *mockICDRepo {
	return &mockICDRepo{codes: map[string]*ICDCode{}}
}

func (m *mockICDRepo) Upsert(_ context.Context, c *ICDCode) (bool, error) {
	_, existed := m.codes[c.Code]
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	cp := *c
	m.codes[c.Code] = &cp
	return !existed, nil
}

func (m *mockICDRepo) GetByCode(_ context.Context, code string) (*ICDCode, error) {
	c, ok := m.codes[code]
	if !ok {
		return nil, domainerr.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockICDRepo) List(_ context.Context, search string, limit, offset int) ([]*ICDCode, int, error) {
	var out []*ICDCode
	for _, c := range m.codes {
		cp := *c
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func newTestService(t *testing.T) (*Service, *mockICDRepo) {
	t.Helper()
	icd := newMockICDRepo()
	svc := NewService(newMockDepartmentRepo(), newMockServiceRepo(),
		&mockProfileRepo{}, icd, upload.NewStore(t.TempDir()))
	return svc, icd
}

func makeFileHeader(t *testing.T, filename, content string) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	w.Close()

	req := httptest.NewRequest("POST", "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if err := req.ParseMultipartForm(32 << 20); err != nil {
		t.Fatalf("parse multipart: %v", err)
	}
	return req.MultipartForm.File["file"][0]
}

func TestCreateDepartmentRejectsDuplicateCode(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateDepartment(ctx, DepartmentInput{Name: "General", Code: "GEN"}); err != nil {
		t.Fatalf("create department: %v", err)
	}
	if _, err := svc.CreateDepartment(ctx, DepartmentInput{Name: "Genetics", Code: "GEN"}); err == nil {
		t.Fatal("expected duplicate code error")
	}
}

func TestCreateServicePriceValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateService(ctx, ServiceInput{Name: "Consultation", Price: "not-a-number"})
	if err == nil {
		t.Fatal("expected invalid price error")
	}
	if verrs, ok := err.(validation.Errors); !ok || len(verrs["price"]) == 0 {
		t.Fatalf("expected price validation error, got %v", err)
	}

	_, err = svc.CreateService(ctx, ServiceInput{Name: "Consultation", Price: "-10"})
	if err == nil {
		t.Fatal("expected negative price error")
	}

	created, err := svc.CreateService(ctx, ServiceInput{Name: "Consultation", Price: "150000"})
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	if created.Price.String() != "150000" {
		t.Fatalf("expected price 150000, got %s", created.Price)
	}
}

func TestCreateServiceRejectsUnknownDepartment(t *testing.T) {
	svc, _ := newTestService(t)
	missing := uuid.New()

	_, err := svc.CreateService(context.Background(), ServiceInput{
		Name: "Consultation", Price: "150000", DepartmentID: &missing,
	})
	if err == nil {
		t.Fatal("expected unknown department error")
	}
	if _, ok := domainerr.As(err); !ok {
		t.Fatalf("expected domain error, got %T", err)
	}
}

func TestImportICDCodesCSV(t *testing.T) {
	svc, icd := newTestService(t)

	csvContent := strings.Join([]string{
		"code,name_en,name_id",
		"A00,Cholera,Kolera",
		"A01,Typhoid fever,Demam tifoid",
		",Missing code,Tanpa kode",
	}, "\n")

	result, err := svc.ImportICDCodes(context.Background(), makeFileHeader(t, "icd10.csv", csvContent))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result.Imported != 2 {
		t.Fatalf("expected 2 imported, got %d", result.Imported)
	}
	if result.Skipped != 1 {
		t.Fatalf("expected 1 skipped, got %d", result.Skipped)
	}
	if _, err := icd.GetByCode(context.Background(), "A00"); err != nil {
		t.Fatalf("expected A00 to exist: %v", err)
	}
}

func TestImportICDCodesJSON(t *testing.T) {
	svc, icd := newTestService(t)

	jsonContent := `[{"code":"J06","name_en":"Acute upper respiratory infection","name_id":"ISPA"}]`
	result, err := svc.ImportICDCodes(context.Background(), makeFileHeader(t, "icd10.json", jsonContent))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result.Imported != 1 {
		t.Fatalf("expected 1 imported, got %d", result.Imported)
	}
	if _, err := icd.GetByCode(context.Background(), "J06"); err != nil {
		t.Fatalf("expected J06 to exist: %v", err)
	}
}

func TestImportICDCodesRejectsUnknownFormat(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.ImportICDCodes(context.Background(), makeFileHeader(t, "icd10.xlsx", "binary"))
	if err == nil {
		t.Fatal("expected format error")
	}
	if verrs, ok := err.(validation.Errors); !ok || len(verrs["file"]) == 0 {
		t.Fatalf("expected file validation error, got %v", err)
	}
}

func TestImportICDCodesUpsertsByCode(t *testing.T) {
	svc, icd := newTestService(t)
	ctx := context.Background()

	if _, err := svc.ImportICDCodes(ctx, makeFileHeader(t, "a.csv", "A00,Cholera,Kolera")); err != nil {
		t.Fatalf("first import: %v", err)
	}
	if _, err := svc.ImportICDCodes(ctx, makeFileHeader(t, "b.csv", "A00,Cholera (revised),Kolera")); err != nil {
		t.Fatalf("second import: %v", err)
	}

	c, err := icd.GetByCode(ctx, "A00")
	if err != nil {
		t.Fatalf("get code: %v", err)
	}
	if c.NameEN != "Cholera (revised)" {
		t.Fatalf("expected updated name, got %s", c.NameEN)
	}
}
