package pharmacy

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/klinika/klinika/internal/platform/db"
	"github.com/klinika/klinika/pkg/domainerr"
	"github.com/klinika/klinika/pkg/validation"
)

// Service implements the medicine catalog and the batch stock ledger.
type Service struct {
	medicines MedicineRepository
	batches   BatchRepository
	movements MovementRepository
	tx        db.TxFunc
	now       func() time.Time
}

func NewService(medicines MedicineRepository, batches BatchRepository,
	movements MovementRepository, tx db.TxFunc) *Service {
	return &Service{
		medicines: medicines,
		batches:   batches,
		movements: movements,
		tx:        tx,
		now:       time.Now,
	}
}

func (s *Service) today() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// --- medicines ---

type MedicineInput struct {
	Code          string  `json:"code"`
	Name          string  `json:"name"`
	Unit          string  `json:"unit"`
	Category      *string `json:"category"`
	PurchasePrice string  `json:"purchase_price"`
	MarginPct     string  `json:"margin_pct"`
	PPNPct        string  `json:"ppn_pct"`
	MinStock      int     `json:"min_stock"`
	MaxStock      int     `json:"max_stock"`
	IsActive      *bool   `json:"is_active"`
}

func parseDecimalField(errs *validation.Errors, field, raw string) decimal.Decimal {
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		if *errs == nil {
			*errs = validation.Errors{}
		}
		errs.Add(field, "must be a valid number")
		return decimal.Zero
	}
	if d.IsNegative() {
		if *errs == nil {
			*errs = validation.Errors{}
		}
		errs.Add(field, "must not be negative")
		return decimal.Zero
	}
	return d
}

func (s *Service) parseMedicineInput(in MedicineInput) (purchase, margin, ppn decimal.Decimal, err error) {
	v := validation.New().
		Required("code", in.Code).MaxLen("code", in.Code, 50).
		Required("name", in.Name).MaxLen("name", in.Name, 255).
		Required("unit", in.Unit).
		Required("purchase_price", in.PurchasePrice)
	errs := v.Errors()

	purchase = parseDecimalField(&errs, "purchase_price", in.PurchasePrice)
	margin = parseDecimalField(&errs, "margin_pct", in.MarginPct)
	ppn = parseDecimalField(&errs, "ppn_pct", in.PPNPct)
	if in.MinStock < 0 {
		if errs == nil {
			errs = validation.Errors{}
		}
		errs.Add("min_stock", "must not be negative")
	}
	if errs != nil {
		return decimal.Zero, decimal.Zero, decimal.Zero, errs
	}
	return purchase, margin, ppn, nil
}

func (s *Service) CreateMedicine(ctx context.Context, in MedicineInput) (*Medicine, error) {
	purchase, margin, ppn, err := s.parseMedicineInput(in)
	if err != nil {
		return nil, err
	}

	if _, err := s.medicines.GetByCode(ctx, in.Code); err == nil {
		return nil, domainerr.New("medicine code is already in use")
	} else if err != domainerr.ErrNotFound {
		return nil, err
	}

	m := &Medicine{
		Code:          in.Code,
		Name:          in.Name,
		Unit:          in.Unit,
		Category:      in.Category,
		PurchasePrice: purchase,
		MarginPct:     margin,
		PPNPct:        ppn,
		MinStock:      in.MinStock,
		MaxStock:      in.MaxStock,
		IsActive:      true,
	}
	if in.IsActive != nil {
		m.IsActive = *in.IsActive
	}
	if err := s.medicines.Create(ctx, m); err != nil {
		return nil, err
	}
	return s.GetMedicine(ctx, m.ID)
}

func (s *Service) UpdateMedicine(ctx context.Context, id uuid.UUID, in MedicineInput) (*Medicine, error) {
	m, err := s.medicines.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	purchase, margin, ppn, err := s.parseMedicineInput(in)
	if err != nil {
		return nil, err
	}

	if in.Code != m.Code {
		if _, err := s.medicines.GetByCode(ctx, in.Code); err == nil {
			return nil, domainerr.New("medicine code is already in use")
		} else if err != domainerr.ErrNotFound {
			return nil, err
		}
	}

	m.Code = in.Code
	m.Name = in.Name
	m.Unit = in.Unit
	m.Category = in.Category
	m.PurchasePrice = purchase
	m.MarginPct = margin
	m.PPNPct = ppn
	m.MinStock = in.MinStock
	m.MaxStock = in.MaxStock
	if in.IsActive != nil {
		m.IsActive = *in.IsActive
	}
	if err := s.medicines.Update(ctx, m); err != nil {
		return nil, err
	}
	return s.GetMedicine(ctx, id)
}

// GetMedicine returns the medicine with derived selling price and the live
// stock sum across usable batches.
func (s *Service) GetMedicine(ctx context.Context, id uuid.UUID) (*Medicine, error) {
	m, err := s.medicines.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	m.ComputeSellingPrice()
	stock, err := s.CurrentStock(ctx, id)
	if err != nil {
		return nil, err
	}
	m.CurrentStock = stock
	return m, nil
}

// DeleteMedicine refuses to remove a medicine that still has stock on hand.
func (s *Service) DeleteMedicine(ctx context.Context, id uuid.UUID) error {
	if _, err := s.medicines.GetByID(ctx, id); err != nil {
		return err
	}
	stock, err := s.CurrentStock(ctx, id)
	if err != nil {
		return err
	}
	if stock > 0 {
		return domainerr.New("medicine still has stock on hand")
	}
	return s.medicines.Delete(ctx, id)
}

func (s *Service) ListMedicines(ctx context.Context, search, category string, limit, offset int) ([]*Medicine, int, error) {
	items, total, err := s.medicines.List(ctx, search, category, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for _, m := range items {
		m.ComputeSellingPrice()
		stock, err := s.CurrentStock(ctx, m.ID)
		if err != nil {
			return nil, 0, err
		}
		m.CurrentStock = stock
	}
	return items, total, nil
}

// --- stock ---

// CurrentStock sums current_qty over usable batches. It is recomputed on
// every call, never cached.
func (s *Service) CurrentStock(ctx context.Context, medicineID uuid.UUID) (int, error) {
	batches, err := s.batches.ListByMedicine(ctx, medicineID)
	if err != nil {
		return 0, err
	}
	today := s.today()
	total := 0
	for _, b := range batches {
		if b.Usable(today) {
			total += b.CurrentQty
		}
	}
	return total, nil
}

// AvailableBatches returns the non-empty, non-expired batches of a medicine
// in FEFO order (earliest expiry first).
func (s *Service) AvailableBatches(ctx context.Context, medicineID uuid.UUID) ([]*MedicineBatch, error) {
	if _, err := s.medicines.GetByID(ctx, medicineID); err != nil {
		return nil, err
	}
	batches, err := s.batches.ListByMedicine(ctx, medicineID)
	if err != nil {
		return nil, err
	}
	today := s.today()
	var usable []*MedicineBatch
	for _, b := range batches {
		if b.Usable(today) {
			usable = append(usable, b)
		}
	}
	return usable, nil
}

type StockInInput struct {
	MedicineID    uuid.UUID  `json:"medicine_id"`
	BatchNumber   string     `json:"batch_number"`
	ExpiryDate    string     `json:"expiry_date"` // YYYY-MM-DD
	Quantity      int        `json:"quantity"`
	Reason        string     `json:"reason"`
	ReferenceType *string    `json:"reference_type"`
	ReferenceID   *uuid.UUID `json:"reference_id"`
	Notes         *string    `json:"notes"`
	CreatedBy     *uuid.UUID `json:"-"`
}

// StockIn adds stock: it tops up a batch with the same number and expiry, or
// creates a new one, and appends a ledger movement. One transaction.
func (s *Service) StockIn(ctx context.Context, in StockInInput) (*StockMovement, error) {
	v := validation.New().
		Required("batch_number", in.BatchNumber).
		Required("expiry_date", in.ExpiryDate).
		Positive("quantity", in.Quantity).
		Required("reason", in.Reason).
		OneOf("reason", in.Reason, ReasonPurchase, ReasonAdjustment, ReasonReturn)
	if in.MedicineID == uuid.Nil {
		v.Required("medicine_id", "")
	}
	errs := v.Errors()

	var expiry time.Time
	if in.ExpiryDate != "" {
		var err error
		expiry, err = time.Parse("2006-01-02", in.ExpiryDate)
		if err != nil {
			if errs == nil {
				errs = validation.Errors{}
			}
			errs.Add("expiry_date", "must be a valid date (YYYY-MM-DD)")
		} else if !expiry.After(s.today()) {
			if errs == nil {
				errs = validation.Errors{}
			}
			errs.Add("expiry_date", "must be a future date")
		}
	}
	if errs != nil {
		return nil, errs
	}

	var movement *StockMovement
	err := s.tx(ctx, func(ctx context.Context) error {
		medicine, err := s.medicines.GetByID(ctx, in.MedicineID)
		if err != nil {
			return err
		}

		before, err := s.CurrentStock(ctx, in.MedicineID)
		if err != nil {
			return err
		}

		batch, err := s.batches.GetByNumber(ctx, in.MedicineID, in.BatchNumber, expiry)
		switch {
		case err == domainerr.ErrNotFound:
			batch = &MedicineBatch{
				MedicineID:  in.MedicineID,
				BatchNumber: in.BatchNumber,
				ExpiryDate:  expiry,
				InitialQty:  in.Quantity,
				CurrentQty:  in.Quantity,
			}
			batch.RecomputeStatus(medicine.MinStock, s.today())
			if err := s.batches.Create(ctx, batch); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			batch.CurrentQty += in.Quantity
			batch.InitialQty += in.Quantity
			batch.RecomputeStatus(medicine.MinStock, s.today())
			if err := s.batches.Update(ctx, batch); err != nil {
				return err
			}
		}

		movement = &StockMovement{
			MedicineID:    in.MedicineID,
			BatchID:       &batch.ID,
			Direction:     DirectionIn,
			Reason:        in.Reason,
			Quantity:      in.Quantity,
			StockBefore:   before,
			StockAfter:    before + in.Quantity,
			ReferenceType: in.ReferenceType,
			ReferenceID:   in.ReferenceID,
			Notes:         in.Notes,
			CreatedBy:     in.CreatedBy,
		}
		return s.movements.Create(ctx, movement)
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}

type StockOutInput struct {
	MedicineID    uuid.UUID  `json:"medicine_id"`
	BatchID       *uuid.UUID `json:"batch_id"`
	Quantity      int        `json:"quantity"`
	Reason        string     `json:"reason"`
	ReferenceType *string    `json:"reference_type"`
	ReferenceID   *uuid.UUID `json:"reference_id"`
	Notes         *string    `json:"notes"`
	CreatedBy     *uuid.UUID `json:"-"`
}

// StockOut removes stock. With a batch id it draws from that batch only;
// without one it consumes batches in FEFO order, spanning as many as needed.
// Availability is validated before any write; an out that would go negative
// is rejected with nothing written.
func (s *Service) StockOut(ctx context.Context, in StockOutInput) ([]*StockMovement, error) {
	v := validation.New().
		Positive("quantity", in.Quantity).
		Required("reason", in.Reason).
		OneOf("reason", in.Reason, ReasonAdjustment, ReasonPrescription, ReasonExpired, ReasonReturn)
	if in.MedicineID == uuid.Nil {
		v.Required("medicine_id", "")
	}
	if errs := v.Errors(); errs != nil {
		return nil, errs
	}

	var movements []*StockMovement
	err := s.tx(ctx, func(ctx context.Context) error {
		medicine, err := s.medicines.GetByID(ctx, in.MedicineID)
		if err != nil {
			return err
		}

		if in.BatchID != nil {
			return s.stockOutBatch(ctx, medicine, in, &movements)
		}
		return s.stockOutFEFO(ctx, medicine, in, &movements)
	})
	if err != nil {
		return nil, err
	}
	return movements, nil
}

func (s *Service) stockOutBatch(ctx context.Context, medicine *Medicine, in StockOutInput, movements *[]*StockMovement) error {
	batch, err := s.batches.GetByID(ctx, *in.BatchID)
	if err != nil {
		return err
	}
	if batch.MedicineID != in.MedicineID {
		return domainerr.New("batch does not belong to this medicine")
	}
	if batch.CurrentQty < in.Quantity {
		return domainerr.New("insufficient stock in batch")
	}

	before, err := s.CurrentStock(ctx, in.MedicineID)
	if err != nil {
		return err
	}
	// An expired batch sits outside the usable sum; fold it back in so a
	// write-off snapshots the stock it actually draws from.
	if !batch.Usable(s.today()) {
		before += batch.CurrentQty
	}

	batch.CurrentQty -= in.Quantity
	batch.RecomputeStatus(medicine.MinStock, s.today())
	if err := s.batches.Update(ctx, batch); err != nil {
		return err
	}

	movement := &StockMovement{
		MedicineID:    in.MedicineID,
		BatchID:       &batch.ID,
		Direction:     DirectionOut,
		Reason:        in.Reason,
		Quantity:      in.Quantity,
		StockBefore:   before,
		StockAfter:    before - in.Quantity,
		ReferenceType: in.ReferenceType,
		ReferenceID:   in.ReferenceID,
		Notes:         in.Notes,
		CreatedBy:     in.CreatedBy,
	}
	if err := s.movements.Create(ctx, movement); err != nil {
		return err
	}
	*movements = append(*movements, movement)
	return nil
}

func (s *Service) stockOutFEFO(ctx context.Context, medicine *Medicine, in StockOutInput, movements *[]*StockMovement) error {
	batches, err := s.batches.ListByMedicine(ctx, in.MedicineID)
	if err != nil {
		return err
	}

	today := s.today()
	available := 0
	var usable []*MedicineBatch
	for _, b := range batches {
		if b.Usable(today) {
			usable = append(usable, b)
			available += b.CurrentQty
		}
	}
	if available < in.Quantity {
		return domainerr.New("insufficient stock")
	}

	remaining := in.Quantity
	before := available
	for _, batch := range usable {
		if remaining == 0 {
			break
		}
		take := batch.CurrentQty
		if take > remaining {
			take = remaining
		}

		batch.CurrentQty -= take
		batch.RecomputeStatus(medicine.MinStock, today)
		if err := s.batches.Update(ctx, batch); err != nil {
			return err
		}

		movement := &StockMovement{
			MedicineID:    in.MedicineID,
			BatchID:       &batch.ID,
			Direction:     DirectionOut,
			Reason:        in.Reason,
			Quantity:      take,
			StockBefore:   before,
			StockAfter:    before - take,
			ReferenceType: in.ReferenceType,
			ReferenceID:   in.ReferenceID,
			Notes:         in.Notes,
			CreatedBy:     in.CreatedBy,
		}
		if err := s.movements.Create(ctx, movement); err != nil {
			return err
		}
		*movements = append(*movements, movement)

		before -= take
		remaining -= take
	}
	return nil
}

// ReceiveBatch records a batch arriving from a completed goods receipt and
// its purchase movement. It must run inside the caller's transaction.
func (s *Service) ReceiveBatch(ctx context.Context, medicineID uuid.UUID, batchNumber string,
	expiry time.Time, qty int, refType string, refID uuid.UUID) (*MedicineBatch, error) {
	if qty <= 0 {
		return nil, domainerr.New("received quantity must be greater than zero")
	}

	medicine, err := s.medicines.GetByID(ctx, medicineID)
	if err != nil {
		return nil, err
	}

	before, err := s.CurrentStock(ctx, medicineID)
	if err != nil {
		return nil, err
	}

	batch := &MedicineBatch{
		MedicineID:  medicineID,
		BatchNumber: batchNumber,
		ExpiryDate:  expiry,
		InitialQty:  qty,
		CurrentQty:  qty,
	}
	batch.RecomputeStatus(medicine.MinStock, s.today())
	if err := s.batches.Create(ctx, batch); err != nil {
		return nil, err
	}

	movement := &StockMovement{
		MedicineID:  medicineID,
		BatchID:     &batch.ID,
		Direction:   DirectionIn,
		Reason:      ReasonPurchase,
		Quantity:    qty,
		StockBefore: before,
		StockAfter:  before + qty,
	}
	movement.ReferenceType = &refType
	movement.ReferenceID = &refID
	if err := s.movements.Create(ctx, movement); err != nil {
		return nil, err
	}
	return batch, nil
}

func (s *Service) ListMovements(ctx context.Context, f MovementFilter) ([]*StockMovement, int, error) {
	return s.movements.List(ctx, f)
}
