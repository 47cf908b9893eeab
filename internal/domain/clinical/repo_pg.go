package clinical

import (
	"context"
	"errors"
	"strconv"

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

type recordRepoPG struct{ pool *pgxpool.Pool }

func NewRecordRepoPG(pool *pgxpool.Pool) RecordRepository { return &recordRepoPG{pool: pool} }

const recordCols = `id, patient_id, doctor_id, department_id, queue_id, record_date,
	subjective, objective, assessment, plan, icd_code, status, created_at, updated_at`

func scanRecord(row pgx.Row) (*MedicalRecord, error) {
	var rec MedicalRecord
	err := row.Scan(&rec.ID, &rec.PatientID, &rec.DoctorID, &rec.DepartmentID,
		&rec.QueueID, &rec.RecordDate, &rec.Subjective, &rec.Objective,
		&rec.Assessment, &rec.Plan, &rec.ICDCode, &rec.Status,
		&rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domainerr.ErrNotFound
	}
	return &rec, err
}

func (r *recordRepoPG) Create(ctx context.Context, rec *MedicalRecord) error {
	rec.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO medical_records (id, patient_id, doctor_id, department_id,
			queue_id, record_date, subjective, objective, assessment, plan,
			icd_code, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rec.ID, rec.PatientID, rec.DoctorID, rec.DepartmentID, rec.QueueID,
		rec.RecordDate, rec.Subjective, rec.Objective, rec.Assessment,
		rec.Plan, rec.ICDCode, rec.Status)
	return err
}

func (r *recordRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error) {
	return scanRecord(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+recordCols+` FROM medical_records WHERE id = $1`, id))
}

func (r *recordRepoPG) Update(ctx context.Context, rec *MedicalRecord) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE medical_records SET subjective=$2, objective=$3, assessment=$4,
			plan=$5, icd_code=$6, status=$7, updated_at=NOW()
		WHERE id = $1`,
		rec.ID, rec.Subjective, rec.Objective, rec.Assessment, rec.Plan,
		rec.ICDCode, rec.Status)
	return err
}

func (r *recordRepoPG) List(ctx context.Context, f RecordFilter) ([]*MedicalRecord, int, error) {
	where := ""
	args := []interface{}{}
	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		cond := clause + "$" + strconv.Itoa(len(args))
		if where == "" {
			where = " WHERE " + cond
		} else {
			where += " AND " + cond
		}
	}
	if f.PatientID != nil {
		add("patient_id = ", *f.PatientID)
	}
	if f.DoctorID != nil {
		add("doctor_id = ", *f.DoctorID)
	}
	if f.DepartmentID != nil {
		add("department_id = ", *f.DepartmentID)
	}
	if f.Status != "" {
		add("status = ", f.Status)
	}
	if f.DateFrom != nil {
		add("record_date >= ", *f.DateFrom)
	}
	if f.DateTo != nil {
		add("record_date <= ", *f.DateTo)
	}

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM medical_records`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := `SELECT ` + recordCols + ` FROM medical_records` + where +
		` ORDER BY record_date DESC, created_at DESC LIMIT $` + strconv.Itoa(n+1) +
		` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*MedicalRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	return items, total, rows.Err()
}

type prescriptionRepoPG struct{ pool *pgxpool.Pool }

func NewPrescriptionRepoPG(pool *pgxpool.Pool) PrescriptionRepository {
	return &prescriptionRepoPG{pool: pool}
}

const prescriptionCols = `id, medical_record_id, patient_id, doctor_id, status,
	notes, created_at, updated_at`

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.MedicalRecordID, &p.PatientID, &p.DoctorID,
		&p.Status, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domainerr.ErrNotFound
	}
	return &p, err
}

func (r *prescriptionRepoPG) Create(ctx context.Context, p *Prescription) error {
	p.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO prescriptions (id, medical_record_id, patient_id, doctor_id,
			status, notes)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.MedicalRecordID, p.PatientID, p.DoctorID, p.Status, p.Notes)
	return err
}

func (r *prescriptionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return scanPrescription(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+prescriptionCols+` FROM prescriptions WHERE id = $1`, id))
}

func (r *prescriptionRepoPG) Update(ctx context.Context, p *Prescription) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE prescriptions SET status=$2, notes=$3, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Status, p.Notes)
	return err
}

func (r *prescriptionRepoPG) List(ctx context.Context, f PrescriptionFilter) ([]*Prescription, int, error) {
	where := ""
	args := []interface{}{}
	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		cond := clause + "$" + strconv.Itoa(len(args))
		if where == "" {
			where = " WHERE " + cond
		} else {
			where += " AND " + cond
		}
	}
	if f.PatientID != nil {
		add("patient_id = ", *f.PatientID)
	}
	if f.MedicalRecordID != nil {
		add("medical_record_id = ", *f.MedicalRecordID)
	}
	if f.Status != "" {
		add("status = ", f.Status)
	}

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM prescriptions`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := `SELECT ` + prescriptionCols + ` FROM prescriptions` + where +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *prescriptionRepoPG) ItemsOf(ctx context.Context, prescriptionID uuid.UUID) ([]*PrescriptionItem, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, prescription_id, medicine_id, quantity, dosage, instruction
		FROM prescription_items WHERE prescription_id = $1 ORDER BY id`, prescriptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*PrescriptionItem
	for rows.Next() {
		var it PrescriptionItem
		if err := rows.Scan(&it.ID, &it.PrescriptionID, &it.MedicineID,
			&it.Quantity, &it.Dosage, &it.Instruction); err != nil {
			return nil, err
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}

func (r *prescriptionRepoPG) ReplaceItems(ctx context.Context, prescriptionID uuid.UUID, items []*PrescriptionItem) error {
	c := conn(ctx, r.pool)
	if _, err := c.Exec(ctx, `DELETE FROM prescription_items WHERE prescription_id = $1`, prescriptionID); err != nil {
		return err
	}
	for _, it := range items {
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		it.PrescriptionID = prescriptionID
		if _, err := c.Exec(ctx, `
			INSERT INTO prescription_items (id, prescription_id, medicine_id,
				quantity, dosage, instruction)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			it.ID, it.PrescriptionID, it.MedicineID, it.Quantity, it.Dosage,
			it.Instruction); err != nil {
			return err
		}
	}
	return nil
}
