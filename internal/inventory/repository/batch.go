package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/medikart/medikart-backend/pkg/database"
	"github.com/medikart/medikart-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// PurchaseBatch represents one received lot of a medicine (a purchase_items
// row). ExpiryDate is nullable: legacy rows carry no expiry at all.
type PurchaseBatch struct {
	ID           string          `db:"id" json:"id"`
	BillID       string          `db:"bill_id" json:"bill_id"`
	MedicineID   string          `db:"medicine_id" json:"medicine_id"`
	BatchNo      string          `db:"batch_no" json:"batch_no"`
	ExpiryDate   *time.Time      `db:"expiry_date" json:"expiry_date,omitempty"`
	Quantity     int             `db:"quantity" json:"quantity"`
	SoldQty      int             `db:"sold_qty" json:"sold_qty"`
	PurchaseRate decimal.Decimal `db:"purchase_rate" json:"purchase_rate"`
	MRP          decimal.Decimal `db:"mrp" json:"mrp"`
	Unit         string          `db:"unit" json:"unit"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// Available returns the remaining sellable quantity of the batch
func (b *PurchaseBatch) Available() int {
	return b.Quantity - b.SoldQty
}

// BatchRepository handles purchase batch persistence
type BatchRepository struct {
	db *database.DB
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *database.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// CreateTx inserts a batch row within a transaction. New batches start with
// sold_qty = 0.
func (r *BatchRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, b *PurchaseBatch) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}

	query := `
		INSERT INTO purchase_items (
			id, bill_id, medicine_id, batch_no, expiry_date, quantity, sold_qty,
			purchase_rate, mrp, unit
		) VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $9)
		RETURNING created_at
	`

	return tx.QueryRowxContext(ctx, query,
		b.ID, b.BillID, b.MedicineID, b.BatchNo, b.ExpiryDate, b.Quantity,
		b.PurchaseRate, b.MRP, b.Unit,
	).Scan(&b.CreatedAt)
}

// GetByID gets a batch by ID
func (r *BatchRepository) GetByID(ctx context.Context, id string) (*PurchaseBatch, error) {
	var b PurchaseBatch
	query := `SELECT * FROM purchase_items WHERE id = $1`
	if err := r.db.GetContext(ctx, &b, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, err
	}
	return &b, nil
}

// ListByMedicine lists all batches for a medicine, soonest expiry first.
// Batches with unknown expiry sort last. The sale UI uses the head of this
// list as the default pick.
func (r *BatchRepository) ListByMedicine(ctx context.Context, medicineID string) ([]*PurchaseBatch, error) {
	var batches []*PurchaseBatch
	query := `
		SELECT * FROM purchase_items
		WHERE medicine_id = $1
		ORDER BY expiry_date ASC NULLS LAST, created_at
	`
	if err := r.db.SelectContext(ctx, &batches, query, medicineID); err != nil {
		return nil, err
	}
	return batches, nil
}

// ListOpenForUpdateTx loads the open batches (available quantity > 0) for a
// medicine in allocation order, locking the rows for the duration of the
// transaction. The lock is what makes the pre-check and the subsequent
// consumption act on the same snapshot under concurrent sales.
func (r *BatchRepository) ListOpenForUpdateTx(ctx context.Context, tx *sqlx.Tx, medicineID string) ([]*PurchaseBatch, error) {
	var batches []*PurchaseBatch
	query := `
		SELECT * FROM purchase_items
		WHERE medicine_id = $1 AND quantity - sold_qty > 0
		ORDER BY expiry_date ASC NULLS LAST, created_at
		FOR UPDATE
	`
	if err := tx.SelectContext(ctx, &batches, query, medicineID); err != nil {
		return nil, err
	}
	return batches, nil
}

// CountForMedicineTx counts batch rows (open or not) for a medicine. The sale
// pre-check falls back to the aggregate stock counter only when a medicine has
// no batch rows at all.
func (r *BatchRepository) CountForMedicineTx(ctx context.Context, tx *sqlx.Tx, medicineID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM purchase_items WHERE medicine_id = $1`
	if err := tx.GetContext(ctx, &count, query, medicineID); err != nil {
		return 0, err
	}
	return count, nil
}

// AddSoldQtyTx increments a batch's sold quantity within a transaction
func (r *BatchRepository) AddSoldQtyTx(ctx context.Context, tx *sqlx.Tx, batchID string, qty int) error {
	query := `UPDATE purchase_items SET sold_qty = sold_qty + $2 WHERE id = $1`
	result, err := tx.ExecContext(ctx, query, batchID, qty)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("batch")
	}

	return nil
}

// AddQuantityTx increments a batch's received quantity within a transaction.
// Used when a purchase return is deleted; the addition is not re-validated
// against sold_qty.
func (r *BatchRepository) AddQuantityTx(ctx context.Context, tx *sqlx.Tx, batchID string, qty int) error {
	query := `UPDATE purchase_items SET quantity = quantity + $2 WHERE id = $1`
	result, err := tx.ExecContext(ctx, query, batchID, qty)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("batch")
	}

	return nil
}

// DeductQuantityFlooredTx decrements a batch's received quantity, never below
// zero. The floor is not validated against sold_qty.
func (r *BatchRepository) DeductQuantityFlooredTx(ctx context.Context, tx *sqlx.Tx, batchID string, qty int) error {
	query := `UPDATE purchase_items SET quantity = GREATEST(quantity - $2, 0) WHERE id = $1`
	result, err := tx.ExecContext(ctx, query, batchID, qty)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("batch")
	}

	return nil
}

// FindByBatchNoTx finds the first batch for a medicine matching the given
// batch label. Labels are compared case- and whitespace-insensitively and are
// not unique; duplicates resolve to the soonest-expiring match.
func (r *BatchRepository) FindByBatchNoTx(ctx context.Context, tx *sqlx.Tx, medicineID, batchNo string) (*PurchaseBatch, error) {
	var b PurchaseBatch
	query := `
		SELECT * FROM purchase_items
		WHERE medicine_id = $1 AND LOWER(TRIM(batch_no)) = LOWER(TRIM($2))
		ORDER BY expiry_date ASC NULLS LAST, created_at
		LIMIT 1
		FOR UPDATE
	`
	if err := tx.GetContext(ctx, &b, query, medicineID, batchNo); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, err
	}
	return &b, nil
}

// CheckAvailability is the read-only availability probe for one batch label
func (r *BatchRepository) CheckAvailability(ctx context.Context, medicineID, batchNo string) (*PurchaseBatch, error) {
	var b PurchaseBatch
	query := `
		SELECT * FROM purchase_items
		WHERE medicine_id = $1 AND LOWER(TRIM(batch_no)) = LOWER(TRIM($2))
		ORDER BY expiry_date ASC NULLS LAST, created_at
		LIMIT 1
	`
	if err := r.db.GetContext(ctx, &b, query, medicineID, batchNo); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, err
	}
	return &b, nil
}

// TotalAvailable sums available quantity across all batches of a medicine
func (r *BatchRepository) TotalAvailable(ctx context.Context, medicineID string) (int, error) {
	var total sql.NullInt64
	query := `SELECT SUM(quantity - sold_qty) FROM purchase_items WHERE medicine_id = $1`
	if err := r.db.GetContext(ctx, &total, query, medicineID); err != nil {
		return 0, err
	}
	if !total.Valid {
		return 0, nil
	}
	return int(total.Int64), nil
}

// ListByBill lists the batches received on one purchase bill
func (r *BatchRepository) ListByBill(ctx context.Context, billID string) ([]*PurchaseBatch, error) {
	var batches []*PurchaseBatch
	query := `SELECT * FROM purchase_items WHERE bill_id = $1 ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &batches, query, billID); err != nil {
		return nil, err
	}
	return batches, nil
}

// ListByBillTx lists the batches received on one purchase bill, locked
func (r *BatchRepository) ListByBillTx(ctx context.Context, tx *sqlx.Tx, billID string) ([]*PurchaseBatch, error) {
	var batches []*PurchaseBatch
	query := `SELECT * FROM purchase_items WHERE bill_id = $1 ORDER BY created_at FOR UPDATE`
	if err := tx.SelectContext(ctx, &batches, query, billID); err != nil {
		return nil, err
	}
	return batches, nil
}

// DeleteByBillTx removes all batch rows for a bill within a transaction
func (r *BatchRepository) DeleteByBillTx(ctx context.Context, tx *sqlx.Tx, billID string) error {
	query := `DELETE FROM purchase_items WHERE bill_id = $1`
	_, err := tx.ExecContext(ctx, query, billID)
	return err
}

// GetExpiringBatches gets open batches expiring within the given number of days
func (r *BatchRepository) GetExpiringBatches(ctx context.Context, withinDays int) ([]*PurchaseBatch, error) {
	var batches []*PurchaseBatch
	query := `
		SELECT * FROM purchase_items
		WHERE quantity - sold_qty > 0
		AND expiry_date IS NOT NULL
		AND expiry_date >= NOW()
		AND expiry_date <= NOW() + INTERVAL '1 day' * $1
		ORDER BY expiry_date
	`
	if err := r.db.SelectContext(ctx, &batches, query, withinDays); err != nil {
		return nil, err
	}
	return batches, nil
}

// GetExpiredBatches gets open batches whose expiry has passed
func (r *BatchRepository) GetExpiredBatches(ctx context.Context) ([]*PurchaseBatch, error) {
	var batches []*PurchaseBatch
	query := `
		SELECT * FROM purchase_items
		WHERE quantity - sold_qty > 0 AND expiry_date IS NOT NULL AND expiry_date < NOW()
		ORDER BY expiry_date
	`
	if err := r.db.SelectContext(ctx, &batches, query); err != nil {
		return nil, err
	}
	return batches, nil
}
