package purchasing

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

// =========== Supplier Repository ===========

type supplierRepoPG struct{ pool *pgxpool.Pool }

func NewSupplierRepoPG(pool *pgxpool.Pool) SupplierRepository {
	return &supplierRepoPG{pool: pool}
}

const supplierCols = `id, name, contact_name, phone, email, address, is_active, created_at, updated_at`

func scanSupplier(row pgx.Row) (*Supplier, error) {
	var s Supplier
	err := row.Scan(&s.ID, &s.Name, &s.ContactName, &s.Phone, &s.Email, &s.Address,
		&s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domainerr.ErrNotFound
	}
	return &s, err
}

func (r *supplierRepoPG) Create(ctx context.Context, s *Supplier) error {
	s.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO suppliers (id, name, contact_name, phone, email, address, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.Name, s.ContactName, s.Phone, s.Email, s.Address, s.IsActive)
	return err
}

func (r *supplierRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Supplier, error) {
	return scanSupplier(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+supplierCols+` FROM suppliers WHERE id = $1`, id))
}

func (r *supplierRepoPG) Update(ctx context.Context, s *Supplier) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE suppliers SET name=$2, contact_name=$3, phone=$4, email=$5, address=$6,
			is_active=$7, updated_at=NOW()
		WHERE id = $1`,
		s.ID, s.Name, s.ContactName, s.Phone, s.Email, s.Address, s.IsActive)
	return err
}

func (r *supplierRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM suppliers WHERE id = $1`, id)
	return err
}

func (r *supplierRepoPG) List(ctx context.Context, search string, limit, offset int) ([]*Supplier, int, error) {
	where := ""
	args := []interface{}{}
	if search != "" {
		where = ` WHERE name ILIKE $1`
		args = append(args, "%"+strings.TrimSpace(search)+"%")
	}

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM suppliers`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := `SELECT ` + supplierCols + ` FROM suppliers` + where +
		` ORDER BY name LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, limit, offset)

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Supplier
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

// =========== Order Repository ===========

type orderRepoPG struct{ pool *pgxpool.Pool }

func NewOrderRepoPG(pool *pgxpool.Pool) OrderRepository { return &orderRepoPG{pool: pool} }

const orderCols = `id, po_number, supplier_id, status, order_date, expected_date,
	approved_by, approved_at, rejection_reason, subtotal, tax_amount, total_amount,
	notes, created_at, updated_at`

func scanOrder(row pgx.Row) (*PurchaseOrder, error) {
	var po PurchaseOrder
	err := row.Scan(&po.ID, &po.PONumber, &po.SupplierID, &po.Status, &po.OrderDate,
		&po.ExpectedDate, &po.ApprovedBy, &po.ApprovedAt, &po.RejectionReason,
		&po.Subtotal, &po.TaxAmount, &po.TotalAmount, &po.Notes, &po.CreatedAt, &po.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domainerr.ErrNotFound
	}
	return &po, err
}

func (r *orderRepoPG) Create(ctx context.Context, po *PurchaseOrder) error {
	po.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO purchase_orders (id, po_number, supplier_id, status, order_date,
			expected_date, subtotal, tax_amount, total_amount, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		po.ID, po.PONumber, po.SupplierID, po.Status, po.OrderDate, po.ExpectedDate,
		po.Subtotal, po.TaxAmount, po.TotalAmount, po.Notes)
	return err
}

func (r *orderRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error) {
	return scanOrder(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+orderCols+` FROM purchase_orders WHERE id = $1`, id))
}

func (r *orderRepoPG) Update(ctx context.Context, po *PurchaseOrder) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE purchase_orders SET status=$2, order_date=$3, expected_date=$4,
			approved_by=$5, approved_at=$6, rejection_reason=$7, subtotal=$8,
			tax_amount=$9, total_amount=$10, notes=$11, updated_at=NOW()
		WHERE id = $1`,
		po.ID, po.Status, po.OrderDate, po.ExpectedDate, po.ApprovedBy, po.ApprovedAt,
		po.RejectionReason, po.Subtotal, po.TaxAmount, po.TotalAmount, po.Notes)
	return err
}

func (r *orderRepoPG) List(ctx context.Context, f OrderFilter) ([]*PurchaseOrder, int, error) {
	var clauses []string
	args := []interface{}{}
	add := func(clause string, val interface{}) {
		args = append(args, val)
		clauses = append(clauses, clause+"$"+strconv.Itoa(len(args)))
	}

	if f.SupplierID != nil {
		add(`supplier_id = `, *f.SupplierID)
	}
	if f.Status != "" {
		add(`status = `, f.Status)
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
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM purchase_orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := `SELECT ` + orderCols + ` FROM purchase_orders` + where +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*PurchaseOrder
	for rows.Next() {
		po, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, po)
	}
	return items, total, rows.Err()
}

func (r *orderRepoPG) CountForDate(ctx context.Context, date time.Time) (int, error) {
	var count int
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM purchase_orders WHERE created_at::date = $1::date`, date).Scan(&count)
	return count, err
}

const orderItemCols = `id, purchase_order_id, medicine_id, quantity, received_quantity, unit_price, subtotal`

func scanOrderItem(row pgx.Row) (*PurchaseOrderItem, error) {
	var it PurchaseOrderItem
	err := row.Scan(&it.ID, &it.PurchaseOrderID, &it.MedicineID, &it.Quantity,
		&it.ReceivedQuantity, &it.UnitPrice, &it.Subtotal)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domainerr.ErrNotFound
	}
	return &it, err
}

func (r *orderRepoPG) ItemsOf(ctx context.Context, orderID uuid.UUID) ([]*PurchaseOrderItem, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+orderItemCols+` FROM purchase_order_items WHERE purchase_order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*PurchaseOrderItem
	for rows.Next() {
		it, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *orderRepoPG) GetItem(ctx context.Context, itemID uuid.UUID) (*PurchaseOrderItem, error) {
	return scanOrderItem(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+orderItemCols+` FROM purchase_order_items WHERE id = $1`, itemID))
}

func (r *orderRepoPG) ReplaceItems(ctx context.Context, orderID uuid.UUID, items []*PurchaseOrderItem) error {
	q := conn(ctx, r.pool)
	if _, err := q.Exec(ctx, `DELETE FROM purchase_order_items WHERE purchase_order_id = $1`, orderID); err != nil {
		return err
	}
	for _, it := range items {
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		it.PurchaseOrderID = orderID
		if _, err := q.Exec(ctx, `
			INSERT INTO purchase_order_items (id, purchase_order_id, medicine_id, quantity,
				received_quantity, unit_price, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			it.ID, it.PurchaseOrderID, it.MedicineID, it.Quantity,
			it.ReceivedQuantity, it.UnitPrice, it.Subtotal); err != nil {
			return err
		}
	}
	return nil
}

func (r *orderRepoPG) UpdateItemReceived(ctx context.Context, itemID uuid.UUID, received int) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE purchase_order_items SET received_quantity = $2 WHERE id = $1`, itemID, received)
	return err
}

// =========== Receipt Repository ===========

type receiptRepoPG struct{ pool *pgxpool.Pool }

func NewReceiptRepoPG(pool *pgxpool.Pool) ReceiptRepository { return &receiptRepoPG{pool: pool} }

const receiptCols = `id, receipt_number, purchase_order_id, supplier_id, receipt_date,
	status, notes, created_at, updated_at`

func scanReceipt(row pgx.Row) (*GoodsReceipt, error) {
	var gr GoodsReceipt
	err := row.Scan(&gr.ID, &gr.ReceiptNumber, &gr.PurchaseOrderID, &gr.SupplierID,
		&gr.ReceiptDate, &gr.Status, &gr.Notes, &gr.CreatedAt, &gr.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domainerr.ErrNotFound
	}
	return &gr, err
}

func (r *receiptRepoPG) Create(ctx context.Context, gr *GoodsReceipt) error {
	gr.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO goods_receipts (id, receipt_number, purchase_order_id, supplier_id,
			receipt_date, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		gr.ID, gr.ReceiptNumber, gr.PurchaseOrderID, gr.SupplierID, gr.ReceiptDate,
		gr.Status, gr.Notes)
	return err
}

func (r *receiptRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*GoodsReceipt, error) {
	return scanReceipt(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+receiptCols+` FROM goods_receipts WHERE id = $1`, id))
}

func (r *receiptRepoPG) Update(ctx context.Context, gr *GoodsReceipt) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE goods_receipts SET receipt_date=$2, status=$3, notes=$4, updated_at=NOW()
		WHERE id = $1`,
		gr.ID, gr.ReceiptDate, gr.Status, gr.Notes)
	return err
}

func (r *receiptRepoPG) List(ctx context.Context, f ReceiptFilter) ([]*GoodsReceipt, int, error) {
	var clauses []string
	args := []interface{}{}
	add := func(clause string, val interface{}) {
		args = append(args, val)
		clauses = append(clauses, clause+"$"+strconv.Itoa(len(args)))
	}

	if f.SupplierID != nil {
		add(`supplier_id = `, *f.SupplierID)
	}
	if f.PurchaseOrderID != nil {
		add(`purchase_order_id = `, *f.PurchaseOrderID)
	}
	if f.Status != "" {
		add(`status = `, f.Status)
	}

	where := ""
	if len(clauses) > 0 {
		where = ` WHERE ` + strings.Join(clauses, " AND ")
	}

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM goods_receipts`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := `SELECT ` + receiptCols + ` FROM goods_receipts` + where +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*GoodsReceipt
	for rows.Next() {
		gr, err := scanReceipt(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, gr)
	}
	return items, total, rows.Err()
}

func (r *receiptRepoPG) CountForDate(ctx context.Context, date time.Time) (int, error) {
	var count int
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM goods_receipts WHERE created_at::date = $1::date`, date).Scan(&count)
	return count, err
}

const receiptItemCols = `id, goods_receipt_id, medicine_id, purchase_order_item_id,
	batch_number, expiry_date, quantity, unit_price, batch_id`

func (r *receiptRepoPG) ItemsOf(ctx context.Context, receiptID uuid.UUID) ([]*GoodsReceiptItem, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+receiptItemCols+` FROM goods_receipt_items WHERE goods_receipt_id = $1 ORDER BY id`, receiptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*GoodsReceiptItem
	for rows.Next() {
		var it GoodsReceiptItem
		if err := rows.Scan(&it.ID, &it.GoodsReceiptID, &it.MedicineID, &it.PurchaseOrderItemID,
			&it.BatchNumber, &it.ExpiryDate, &it.Quantity, &it.UnitPrice, &it.BatchID); err != nil {
			return nil, err
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}

func (r *receiptRepoPG) ReplaceItems(ctx context.Context, receiptID uuid.UUID, items []*GoodsReceiptItem) error {
	q := conn(ctx, r.pool)
	if _, err := q.Exec(ctx, `DELETE FROM goods_receipt_items WHERE goods_receipt_id = $1`, receiptID); err != nil {
		return err
	}
	for _, it := range items {
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		it.GoodsReceiptID = receiptID
		if _, err := q.Exec(ctx, `
			INSERT INTO goods_receipt_items (id, goods_receipt_id, medicine_id,
				purchase_order_item_id, batch_number, expiry_date, quantity, unit_price, batch_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			it.ID, it.GoodsReceiptID, it.MedicineID, it.PurchaseOrderItemID,
			it.BatchNumber, it.ExpiryDate, it.Quantity, it.UnitPrice, it.BatchID); err != nil {
			return err
		}
	}
	return nil
}

func (r *receiptRepoPG) SetItemBatch(ctx context.Context, itemID, batchID uuid.UUID) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE goods_receipt_items SET batch_id = $2 WHERE id = $1`, itemID, batchID)
	return err
}
