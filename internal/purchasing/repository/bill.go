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

// PurchaseBill is a supplier invoice. Its line items become purchase batches
// in inventory, one batch row per line.
type PurchaseBill struct {
	ID         string          `db:"id" json:"id"`
	BillNo     string          `db:"bill_no" json:"bill_no"`
	SupplierID *string         `db:"supplier_id" json:"supplier_id,omitempty"`
	BillDate   time.Time       `db:"bill_date" json:"bill_date"`
	Total      decimal.Decimal `db:"total" json:"total"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// BillRepository handles purchase bill persistence
type BillRepository struct {
	db *database.DB
}

// NewBillRepository creates a new bill repository
func NewBillRepository(db *database.DB) *BillRepository {
	return &BillRepository{db: db}
}

// CreateTx inserts a bill header within a transaction
func (r *BillRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, b *PurchaseBill) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.BillDate.IsZero() {
		b.BillDate = time.Now().UTC()
	}

	query := `
		INSERT INTO purchase_bills (id, bill_no, supplier_id, bill_date, total)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	return tx.QueryRowxContext(ctx, query,
		b.ID, b.BillNo, b.SupplierID, b.BillDate, b.Total,
	).Scan(&b.CreatedAt)
}

// GetByID gets a bill by ID
func (r *BillRepository) GetByID(ctx context.Context, id string) (*PurchaseBill, error) {
	var b PurchaseBill
	query := `SELECT * FROM purchase_bills WHERE id = $1`
	if err := r.db.GetContext(ctx, &b, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("purchase bill")
		}
		return nil, err
	}
	return &b, nil
}

// GetForUpdateTx loads a bill inside a transaction, locking the row
func (r *BillRepository) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id string) (*PurchaseBill, error) {
	var b PurchaseBill
	query := `SELECT * FROM purchase_bills WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &b, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("purchase bill")
		}
		return nil, err
	}
	return &b, nil
}

// List lists bills newest first with pagination
func (r *BillRepository) List(ctx context.Context, page, perPage int) ([]*PurchaseBill, int64, error) {
	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM purchase_bills`); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	var bills []*PurchaseBill
	query := `SELECT * FROM purchase_bills ORDER BY bill_date DESC, created_at DESC LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &bills, query, perPage, offset); err != nil {
		return nil, 0, err
	}

	return bills, total, nil
}

// DeleteTx removes a bill header within a transaction. Batch rows are removed
// separately by the inventory repository.
func (r *BillRepository) DeleteTx(ctx context.Context, tx *sqlx.Tx, id string) error {
	result, err := tx.ExecContext(ctx, `DELETE FROM purchase_bills WHERE id = $1`, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("purchase bill")
	}

	return nil
}
