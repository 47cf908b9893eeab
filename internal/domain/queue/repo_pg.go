package queue

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

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

// =========== Setting Repository ===========

type settingRepoPG struct{ pool *pgxpool.Pool }

func NewSettingRepoPG(pool *pgxpool.Pool) SettingRepository {
	return &settingRepoPG{pool: pool}
}

const settingCols = `id, department_id, prefix, daily_quota, start_number, is_active, created_at, updated_at`

func scanSetting(row pgx.Row) (*QueueSetting, error) {
	var s QueueSetting
	err := row.Scan(&s.ID, &s.DepartmentID, &s.Prefix, &s.DailyQuota, &s.StartNumber,
		&s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domainerr.ErrNotFound
	}
	return &s, err
}

func (r *settingRepoPG) Create(ctx context.Context, s *QueueSetting) error {
	s.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO queue_settings (id, department_id, prefix, daily_quota, start_number, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.DepartmentID, s.Prefix, s.DailyQuota, s.StartNumber, s.IsActive)
	return err
}

func (r *settingRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*QueueSetting, error) {
	return scanSetting(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+settingCols+` FROM queue_settings WHERE id = $1`, id))
}

func (r *settingRepoPG) GetByDepartment(ctx context.Context, departmentID uuid.UUID) (*QueueSetting, error) {
	return scanSetting(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+settingCols+` FROM queue_settings WHERE department_id = $1`, departmentID))
}

func (r *settingRepoPG) Update(ctx context.Context, s *QueueSetting) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE queue_settings SET prefix=$2, daily_quota=$3, start_number=$4, is_active=$5, updated_at=NOW()
		WHERE id = $1`,
		s.ID, s.Prefix, s.DailyQuota, s.StartNumber, s.IsActive)
	return err
}

func (r *settingRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM queue_settings WHERE id = $1`, id)
	return err
}

func (r *settingRepoPG) List(ctx context.Context, limit, offset int) ([]*QueueSetting, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM queue_settings`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+settingCols+` FROM queue_settings ORDER BY created_at LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*QueueSetting
	for rows.Next() {
		s, err := scanSetting(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

// =========== Queue Repository ===========

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const queueCols = `id, queue_date, department_id, patient_id, doctor_id, service_id,
	queue_number, queue_code, status, called_at, started_at, completed_at, created_at, updated_at`

func scanQueue(row pgx.Row) (*Queue, error) {
	var q Queue
	err := row.Scan(&q.ID, &q.QueueDate, &q.DepartmentID, &q.PatientID, &q.DoctorID,
		&q.ServiceID, &q.QueueNumber, &q.QueueCode, &q.Status,
		&q.CalledAt, &q.StartedAt, &q.CompletedAt, &q.CreatedAt, &q.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domainerr.ErrNotFound
	}
	return &q, err
}

func (r *repoPG) Create(ctx context.Context, q *Queue) error {
	q.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO queues (id, queue_date, department_id, patient_id, doctor_id, service_id,
			queue_number, queue_code, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		q.ID, q.QueueDate, q.DepartmentID, q.PatientID, q.DoctorID, q.ServiceID,
		q.QueueNumber, q.QueueCode, q.Status)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Queue, error) {
	return scanQueue(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+queueCols+` FROM queues WHERE id = $1`, id))
}

func (r *repoPG) UpdateStatus(ctx context.Context, q *Queue) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE queues SET status=$2, called_at=$3, started_at=$4, completed_at=$5, updated_at=NOW()
		WHERE id = $1`,
		q.ID, q.Status, q.CalledAt, q.StartedAt, q.CompletedAt)
	return err
}

func (r *repoPG) CountActive(ctx context.Context, departmentID uuid.UUID, date time.Time) (int, error) {
	var count int
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT COUNT(*) FROM queues
		WHERE department_id = $1 AND queue_date = $2 AND status <> $3`,
		departmentID, date, StatusCancelled).Scan(&count)
	return count, err
}

func (r *repoPG) MaxNumber(ctx context.Context, departmentID uuid.UUID, date time.Time) (int, error) {
	var max int
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT COALESCE(MAX(queue_number), 0) FROM queues
		WHERE department_id = $1 AND queue_date = $2`,
		departmentID, date).Scan(&max)
	return max, err
}

func (r *repoPG) List(ctx context.Context, f ListFilter) ([]*Queue, int, error) {
	var clauses []string
	args := []interface{}{}
	add := func(clause string, val interface{}) {
		args = append(args, val)
		clauses = append(clauses, clause+"$"+strconv.Itoa(len(args)))
	}

	if f.DepartmentID != nil {
		add(`department_id = `, *f.DepartmentID)
	}
	if f.PatientID != nil {
		add(`patient_id = `, *f.PatientID)
	}
	if f.Status != "" {
		add(`status = `, f.Status)
	}
	if f.DateFrom != nil {
		add(`queue_date >= `, *f.DateFrom)
	}
	if f.DateTo != nil {
		add(`queue_date <= `, *f.DateTo)
	}

	where := ""
	if len(clauses) > 0 {
		where = ` WHERE ` + strings.Join(clauses, " AND ")
	}

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM queues`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := `SELECT ` + queueCols + ` FROM queues` + where +
		` ORDER BY queue_date DESC, queue_number DESC LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Queue
	for rows.Next() {
		q, err := scanQueue(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, q)
	}
	return items, total, rows.Err()
}

func (r *repoPG) ListForDate(ctx context.Context, date time.Time) ([]*Queue, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+queueCols+` FROM queues WHERE queue_date = $1 ORDER BY queue_number`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Queue
	for rows.Next() {
		q, err := scanQueue(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, q)
	}
	return items, rows.Err()
}
