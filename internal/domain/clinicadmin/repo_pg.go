package clinicadmin

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/klinika/klinika/internal/platform/db"
	"github.com/klinika/klinika/pkg/domainerr"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// =========== Department Repository ===========

type departmentRepoPG struct{ pool *pgxpool.Pool }

func NewDepartmentRepoPG(pool *pgxpool.Pool) DepartmentRepository {
	return &departmentRepoPG{pool: pool}
}

func scanDepartment(row pgx.Row) (*Department, error) {
	var d Department
	err := row.Scan(&d.ID, &d.Name, &d.Code, &d.IsActive, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domainerr.ErrNotFound
	}
	return &d, err
}

func (r *departmentRepoPG) Create(ctx context.Context, d *Department) error {
	d.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO departments (id, name, code, is_active) VALUES ($1, $2, $3, $4)`,
		d.ID, d.Name, d.Code, d.IsActive)
	return err
}

func (r *departmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Department, error) {
	return scanDepartment(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, name, code, is_active, created_at, updated_at FROM departments WHERE id = $1`, id))
}

func (r *departmentRepoPG) GetByCode(ctx context.Context, code string) (*Department, error) {
	return scanDepartment(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, name, code, is_active, created_at, updated_at FROM departments WHERE code = $1`, code))
}

func (r *departmentRepoPG) Update(ctx context.Context, d *Department) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE departments SET name=$2, code=$3, is_active=$4, updated_at=NOW() WHERE id = $1`,
		d.ID, d.Name, d.Code, d.IsActive)
	return err
}

func (r *departmentRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM departments WHERE id = $1`, id)
	return err
}

func (r *departmentRepoPG) List(ctx context.Context, search string, limit, offset int) ([]*Department, int, error) {
	where := ""
	args := []interface{}{}
	if search != "" {
		where = ` WHERE name ILIKE $1 OR code ILIKE $1`
		args = append(args, "%"+strings.TrimSpace(search)+"%")
	}

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM departments`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := `SELECT id, name, code, is_active, created_at, updated_at FROM departments` + where +
		` ORDER BY name LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, limit, offset)

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Department
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

// =========== Service Repository ===========

type serviceRepoPG struct{ pool *pgxpool.Pool }

func NewServiceRepoPG(pool *pgxpool.Pool) ServiceRepository {
	return &serviceRepoPG{pool: pool}
}

func scanService(row pgx.Row) (*ClinicService, error) {
	var s ClinicService
	err := row.Scan(&s.ID, &s.Name, &s.Price, &s.DepartmentID, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domainerr.ErrNotFound
	}
	return &s, err
}

func (r *serviceRepoPG) Create(ctx context.Context, s *ClinicService) error {
	s.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO clinic_services (id, name, price, department_id, is_active) VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.Name, s.Price, s.DepartmentID, s.IsActive)
	return err
}

func (r *serviceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ClinicService, error) {
	return scanService(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, name, price, department_id, is_active, created_at, updated_at
		 FROM clinic_services WHERE id = $1`, id))
}

func (r *serviceRepoPG) Update(ctx context.Context, s *ClinicService) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE clinic_services SET name=$2, price=$3, department_id=$4, is_active=$5, updated_at=NOW()
		 WHERE id = $1`,
		s.ID, s.Name, s.Price, s.DepartmentID, s.IsActive)
	return err
}

func (r *serviceRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM clinic_services WHERE id = $1`, id)
	return err
}

func (r *serviceRepoPG) List(ctx context.Context, search string, departmentID *uuid.UUID, limit, offset int) ([]*ClinicService, int, error) {
	var clauses []string
	args := []interface{}{}
	if search != "" {
		args = append(args, "%"+strings.TrimSpace(search)+"%")
		clauses = append(clauses, `name ILIKE $`+strconv.Itoa(len(args)))
	}
	if departmentID != nil {
		args = append(args, *departmentID)
		clauses = append(clauses, `department_id = $`+strconv.Itoa(len(args)))
	}
	where := ""
	if len(clauses) > 0 {
		where = ` WHERE ` + strings.Join(clauses, " AND ")
	}

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM clinic_services`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := `SELECT id, name, price, department_id, is_active, created_at, updated_at FROM clinic_services` +
		where + ` ORDER BY name LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, limit, offset)

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*ClinicService
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

// =========== Profile Repository ===========

type profileRepoPG struct{ pool *pgxpool.Pool }

func NewProfileRepoPG(pool *pgxpool.Pool) ProfileRepository {
	return &profileRepoPG{pool: pool}
}

func (r *profileRepoPG) Get(ctx context.Context) (*ClinicProfile, error) {
	var p ClinicProfile
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, name, address, phone, email, logo_path, favicon_path, updated_at
		 FROM clinic_profile LIMIT 1`).
		Scan(&p.ID, &p.Name, &p.Address, &p.Phone, &p.Email, &p.LogoPath, &p.FaviconPath, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		p = ClinicProfile{ID: uuid.New(), Name: "Clinic"}
		_, err = conn(ctx, r.pool).Exec(ctx,
			`INSERT INTO clinic_profile (id, name) VALUES ($1, $2)`, p.ID, p.Name)
		if err != nil {
			return nil, err
		}
		return r.Get(ctx)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *profileRepoPG) Update(ctx context.Context, p *ClinicProfile) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE clinic_profile SET name=$2, address=$3, phone=$4, email=$5,
			logo_path=$6, favicon_path=$7, updated_at=NOW()
		 WHERE id = $1`,
		p.ID, p.Name, p.Address, p.Phone, p.Email, p.LogoPath, p.FaviconPath)
	return err
}

// =========== ICD Repository ===========

type icdRepoPG struct{ pool *pgxpool.Pool }

func NewICDRepoPG(pool *pgxpool.Pool) ICDRepository {
	return &icdRepoPG{pool: pool}
}

func (r *icdRepoPG) Upsert(ctx context.Context, c *ICDCode) (bool, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	var created bool
	err := conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO icd_codes (id, code, name_en, name_id, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO UPDATE SET name_en = EXCLUDED.name_en,
			name_id = EXCLUDED.name_id, is_active = EXCLUDED.is_active
		RETURNING (xmax = 0)`,
		c.ID, c.Code, c.NameEN, c.NameID, c.IsActive).Scan(&created)
	return created, err
}

func (r *icdRepoPG) GetByCode(ctx context.Context, code string) (*ICDCode, error) {
	var c ICDCode
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, code, name_en, name_id, is_active FROM icd_codes WHERE code = $1`, code).
		Scan(&c.ID, &c.Code, &c.NameEN, &c.NameID, &c.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domainerr.ErrNotFound
	}
	return &c, err
}

func (r *icdRepoPG) List(ctx context.Context, search string, limit, offset int) ([]*ICDCode, int, error) {
	where := ""
	args := []interface{}{}
	if search != "" {
		where = ` WHERE code ILIKE $1 OR name_en ILIKE $1 OR name_id ILIKE $1`
		args = append(args, "%"+strings.TrimSpace(search)+"%")
	}

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM icd_codes`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := `SELECT id, code, name_en, name_id, is_active FROM icd_codes` + where +
		` ORDER BY code LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, limit, offset)

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*ICDCode
	for rows.Next() {
		var c ICDCode
		if err := rows.Scan(&c.ID, &c.Code, &c.NameEN, &c.NameID, &c.IsActive); err != nil {
			return nil, 0, err
		}
		items = append(items, &c)
	}
	return items, total, rows.Err()
}
