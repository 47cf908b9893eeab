package patient

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/klinika/klinika/pkg/domainerr"
	"github.com/klinika/klinika/pkg/validation"
)

type mockRepo struct {
	patients map[uuid.UUID]*Patient
	seq      int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{patients: map[uuid.UUID]*Patient{}}
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, domainerr.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) GetByNIK(_ context.Context, nik string) (*Patient, error) {
	for _, p := range m.patients {
		if p.NIK != nil && *p.NIK == nik {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domainerr.ErrNotFound
}

func (m *mockRepo) Update(_ context.Context, p *Patient) error {
	if _, ok := m.patients[p.ID]; !ok {
		return domainerr.ErrNotFound
	}
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.patients, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, search string, limit, offset int) ([]*Patient, int, error) {
	var out []*Patient
	for _, p := range m.patients {
		if search == "" ||
			strings.Contains(strings.ToLower(p.Name), strings.ToLower(search)) ||
			strings.Contains(p.MRN, search) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) NextMRNSequence(_ context.Context) (int64, error) {
	m.seq++
	return m.seq, nil
}

func strPtr(s string) *string { return &s }

func TestCreateAssignsSequentialMRN(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	first, err := svc.Create(ctx, Input{Name: "Budi Santoso", Gender: GenderMale, BirthDate: "1990-04-12"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.MRN != "MRN000001" {
		t.Fatalf("expected MRN000001, got %s", first.MRN)
	}

	second, err := svc.Create(ctx, Input{Name: "Siti Aminah", Gender: GenderFemale, BirthDate: "1985-09-30"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if second.MRN != "MRN000002" {
		t.Fatalf("expected MRN000002, got %s", second.MRN)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMockRepo())

	_, err := svc.Create(context.Background(), Input{Gender: "other", BirthDate: "not-a-date"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	verrs, ok := err.(validation.Errors)
	if !ok {
		t.Fatalf("expected validation.Errors, got %T", err)
	}
	for _, field := range []string{"name", "gender"} {
		if len(verrs[field]) == 0 {
			t.Errorf("expected failure for field %q", field)
		}
	}
}

func TestCreateRejectsDuplicateNIK(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, Input{
		Name: "Budi Santoso", Gender: GenderMale, BirthDate: "1990-04-12",
		NIK: strPtr("3171234567890001"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = svc.Create(ctx, Input{
		Name: "Impostor", Gender: GenderMale, BirthDate: "1991-01-01",
		NIK: strPtr("3171234567890001"),
	})
	if err == nil {
		t.Fatal("expected duplicate NIK error")
	}
	verrs, ok := err.(validation.Errors)
	if !ok {
		t.Fatalf("expected validation.Errors, got %T", err)
	}
	if len(verrs["nik"]) == 0 {
		t.Fatal("expected failure keyed on nik")
	}
}

func TestUpdateKeepsOwnNIK(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	p, err := svc.Create(ctx, Input{
		Name: "Budi Santoso", Gender: GenderMale, BirthDate: "1990-04-12",
		NIK: strPtr("3171234567890001"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Updating without changing NIK must not trip the uniqueness guard.
	updated, err := svc.Update(ctx, p.ID, Input{
		Name: "Budi S.", Gender: GenderMale, BirthDate: "1990-04-12",
		NIK: strPtr("3171234567890001"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Budi S." {
		t.Fatalf("expected updated name, got %s", updated.Name)
	}
	if updated.MRN != p.MRN {
		t.Fatal("MRN must never change on update")
	}
}

func TestGetMissingPatient(t *testing.T) {
	svc := NewService(newMockRepo())

	_, err := svc.Get(context.Background(), uuid.New())
	if err != domainerr.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
