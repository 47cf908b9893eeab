package billing

import (
	"context"
	"errors"
	"strconv"
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

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const invoiceCols = `id, invoice_number, patient_id, medical_record_id, status,
	invoice_date, subtotal, discount_amount, tax_amount, total_amount,
	paid_amount, payment_method, paid_at, notes, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.InvoiceNumber, &inv.PatientID, &inv.MedicalRecordID,
		&inv.Status, &inv.InvoiceDate, &inv.Subtotal, &inv.DiscountAmount,
		&inv.TaxAmount, &inv.TotalAmount, &inv.PaidAmount, &inv.PaymentMethod,
		&inv.PaidAt, &inv.Notes, &inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domainerr.ErrNotFound
	}
	return &inv, err
}

func (r *repoPG) Create(ctx context.Context, inv *Invoice) error {
	inv.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO invoices (id, invoice_number, patient_id, medical_record_id,
			status, invoice_date, subtotal, discount_amount, tax_amount,
			total_amount, paid_amount, payment_method, paid_at, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		inv.ID, inv.InvoiceNumber, inv.PatientID, inv.MedicalRecordID,
		inv.Status, inv.InvoiceDate, inv.Subtotal, inv.DiscountAmount,
		inv.TaxAmount, inv.TotalAmount, inv.PaidAmount, inv.PaymentMethod,
		inv.PaidAt, inv.Notes)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return scanInvoice(r.conn(ctx).QueryRow(ctx,
		`SELECT `+invoiceCols+` FROM invoices WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, inv *Invoice) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE invoices SET status=$2, subtotal=$3, discount_amount=$4,
			tax_amount=$5, total_amount=$6, paid_amount=$7, payment_method=$8,
			paid_at=$9, notes=$10, updated_at=NOW()
		WHERE id = $1`,
		inv.ID, inv.Status, inv.Subtotal, inv.DiscountAmount, inv.TaxAmount,
		inv.TotalAmount, inv.PaidAmount, inv.PaymentMethod, inv.PaidAt, inv.Notes)
	return err
}

func (r *repoPG) List(ctx context.Context, f Filter) ([]*Invoice, int, error) {
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
	if f.Status != "" {
		add("status = ", f.Status)
	}
	if f.DateFrom != nil {
		add("invoice_date >= ", *f.DateFrom)
	}
	if f.DateTo != nil {
		add("invoice_date <= ", *f.DateTo)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM invoices`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := `SELECT ` + invoiceCols + ` FROM invoices` + where +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, inv)
	}
	return items, total, rows.Err()
}

func (r *repoPG) CountForDate(ctx context.Context, date time.Time) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM invoices WHERE created_at::date = $1::date`, date).Scan(&n)
	return n, err
}

func (r *repoPG) ItemsOf(ctx context.Context, invoiceID uuid.UUID) ([]*InvoiceItem, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, invoice_id, item_type, service_id, medicine_id, description,
			quantity, unit_price, amount
		FROM invoice_items WHERE invoice_id = $1 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*InvoiceItem
	for rows.Next() {
		var it InvoiceItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.ItemType, &it.ServiceID,
			&it.MedicineID, &it.Description, &it.Quantity, &it.UnitPrice,
			&it.Amount); err != nil {
			return nil, err
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}

func (r *repoPG) ReplaceItems(ctx context.Context, invoiceID uuid.UUID, items []*InvoiceItem) error {
	c := r.conn(ctx)
	if _, err := c.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, invoiceID); err != nil {
		return err
	}
	for _, it := range items {
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		it.InvoiceID = invoiceID
		if _, err := c.Exec(ctx, `
			INSERT INTO invoice_items (id, invoice_id, item_type, service_id,
				medicine_id, description, quantity, unit_price, amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			it.ID, it.InvoiceID, it.ItemType, it.ServiceID, it.MedicineID,
			it.Description, it.Quantity, it.UnitPrice, it.Amount); err != nil {
			return err
		}
	}
	return nil
}
