package pharmacy

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

// =========== Medicine Repository ===========

type medicineRepoPG struct{ pool *pgxpool.Pool }

func NewMedicineRepoPG(pool *pgxpool.Pool) MedicineRepository {
	return &medicineRepoPG{pool: pool}
}

const medicineCols = `id, code, name, unit, category, purchase_price, margin_pct, ppn_pct,
	min_stock, max_stock, is_active, created_at, updated_at`

func scanMedicine(row pgx.Row) (*Medicine, error) {
	var m Medicine
	err := row.Scan(&m.ID, &m.Code, &m.Name, &m.Unit, &m.Category, &m.PurchasePrice,
		&m.MarginPct, &m.PPNPct, &m.MinStock, &m.MaxStock, &m.IsActive,
		&m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domainerr.ErrNotFound
	}
	return &m, err
}

func (r *medicineRepoPG) Create(ctx context.Context, m *Medicine) error {
	m.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO medicines (id, code, name, unit, category, purchase_price, margin_pct,
			ppn_pct, min_stock, max_stock, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		m.ID, m.Code, m.Name, m.Unit, m.Category, m.PurchasePrice, m.MarginPct,
		m.PPNPct, m.MinStock, m.MaxStock, m.IsActive)
	return err
}

func (r *medicineRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Medicine, error) {
	return scanMedicine(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+medicineCols+` FROM medicines WHERE id = $1`, id))
}

func (r *medicineRepoPG) GetByCode(ctx context.Context, code string) (*Medicine, error) {
	return scanMedicine(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+medicineCols+` FROM medicines WHERE code = $1`, code))
}

func (r *medicineRepoPG) Update(ctx context.Context, m *Medicine) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE medicines SET code=$2, name=$3, unit=$4, category=$5, purchase_price=$6,
			margin_pct=$7, ppn_pct=$8, min_stock=$9, max_stock=$10, is_active=$11, updated_at=NOW()
		WHERE id = $1`,
		m.ID, m.Code, m.Name, m.Unit, m.Category, m.PurchasePrice, m.MarginPct,
		m.PPNPct, m.MinStock, m.MaxStock, m.IsActive)
	return err
}

func (r *medicineRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM medicines WHERE id = $1`, id)
	return err
}

func (r *medicineRepoPG) List(ctx context.Context, search, category string, limit, offset int) ([]*Medicine, int, error) {
	var clauses []string
	args := []interface{}{}
	if search != "" {
		args = append(args, "%"+strings.TrimSpace(search)+"%")
		n := strconv.Itoa(len(args))
		clauses = append(clauses, `(name ILIKE $`+n+` OR code ILIKE $`+n+`)`)
	}
	if category != "" {
		args = append(args, category)
		clauses = append(clauses, `category = $`+strconv.Itoa(len(args)))
	}
	where := ""
	if len(clauses) > 0 {
		where = ` WHERE ` + strings.Join(clauses, " AND ")
	}

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM medicines`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := `SELECT ` + medicineCols + ` FROM medicines` + where +
		` ORDER BY name LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, limit, offset)

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Medicine
	for rows.Next() {
		m, err := scanMedicine(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}

// =========== Batch Repository ===========

type batchRepoPG struct{ pool *pgxpool.Pool }

func NewBatchRepoPG(pool *pgxpool.Pool) BatchRepository {
	return &batchRepoPG{pool: pool}
}

const batchCols = `id, medicine_id, batch_number, expiry_date, initial_qty, current_qty,
	status, created_at, updated_at`

func scanBatch(row pgx.Row) (*MedicineBatch, error) {
	var b MedicineBatch
	err := row.Scan(&b.ID, &b.MedicineID, &b.BatchNumber, &b.ExpiryDate,
		&b.InitialQty, &b.CurrentQty, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domainerr.ErrNotFound
	}
	return &b, err
}

func (r *batchRepoPG) Create(ctx context.Context, b *MedicineBatch) error {
	b.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO medicine_batches (id, medicine_id, batch_number, expiry_date,
			initial_qty, current_qty, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		b.ID, b.MedicineID, b.BatchNumber, b.ExpiryDate, b.InitialQty, b.CurrentQty, b.Status)
	return err
}

func (r *batchRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicineBatch, error) {
	return scanBatch(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+batchCols+` FROM medicine_batches WHERE id = $1`, id))
}

func (r *batchRepoPG) GetByNumber(ctx context.Context, medicineID uuid.UUID, batchNumber string, expiry time.Time) (*MedicineBatch, error) {
	return scanBatch(conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+batchCols+` FROM medicine_batches
		WHERE medicine_id = $1 AND batch_number = $2 AND expiry_date = $3`,
		medicineID, batchNumber, expiry))
}

func (r *batchRepoPG) Update(ctx context.Context, b *MedicineBatch) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE medicine_batches SET current_qty=$2, status=$3, updated_at=NOW()
		WHERE id = $1`,
		b.ID, b.CurrentQty, b.Status)
	return err
}

func (r *batchRepoPG) ListByMedicine(ctx context.Context, medicineID uuid.UUID) ([]*MedicineBatch, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+batchCols+` FROM medicine_batches WHERE medicine_id = $1 ORDER BY expiry_date, created_at`,
		medicineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*MedicineBatch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

// =========== Movement Repository ===========

type movementRepoPG struct{ pool *pgxpool.Pool }

func NewMovementRepoPG(pool *pgxpool.Pool) MovementRepository {
	return &movementRepoPG{pool: pool}
}

const movementCols = `id, medicine_id, batch_id, direction, reason, quantity,
	stock_before, stock_after, reference_type, reference_id, notes, created_by, created_at`

func (r *movementRepoPG) Create(ctx context.Context, m *StockMovement) error {
	m.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO stock_movements (id, medicine_id, batch_id, direction, reason, quantity,
			stock_before, stock_after, reference_type, reference_id, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		m.ID, m.MedicineID, m.BatchID, m.Direction, m.Reason, m.Quantity,
		m.StockBefore, m.StockAfter, m.ReferenceType, m.ReferenceID, m.Notes, m.CreatedBy)
	return err
}

func (r *movementRepoPG) List(ctx context.Context, f MovementFilter) ([]*StockMovement, int, error) {
	var clauses []string
	args := []interface{}{}
	add := func(clause string, val interface{}) {
		args = append(args, val)
		clauses = append(clauses, clause+"$"+strconv.Itoa(len(args)))
	}

	if f.MedicineID != nil {
		add(`medicine_id = `, *f.MedicineID)
	}
	if f.Direction != "" {
		add(`direction = `, f.Direction)
	}
	if f.Reason != "" {
		add(`reason = `, f.Reason)
	}
	if f.DateFrom != nil {
		add(`created_at >= `, *f.DateFrom)
	}
	if f.DateTo != nil {
		add(`created_at <= `, *f.DateTo)
	}

	where := ""
	if len(clauses) > 0 {
		where = ` WHERE ` + strings.Join(clauses, " AND ")
	}

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM stock_movements`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := `SELECT ` + movementCols + ` FROM stock_movements` + where +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*StockMovement
	for rows.Next() {
		var m StockMovement
		if err := rows.Scan(&m.ID, &m.MedicineID, &m.BatchID, &m.Direction, &m.Reason,
			&m.Quantity, &m.StockBefore, &m.StockAfter, &m.ReferenceType, &m.ReferenceID,
			&m.Notes, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &m)
	}
	return items, total, rows.Err()
}
