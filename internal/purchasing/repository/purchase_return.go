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

// PurchaseReturn is stock sent back to a supplier. Items reference the batch
// they came from by label so the batch quantity can be wound back.
type PurchaseReturn struct {
	ID         string          `db:"id" json:"id"`
	SupplierID *string         `db:"source_id" json:"supplier_id,omitempty"`
	ReturnDate time.Time       `db:"return_date" json:"return_date"`
	Reason     *string         `db:"reason" json:"reason,omitempty"`
	Total      decimal.Decimal `db:"total" json:"total"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`

	Items []*PurchaseReturnItem `db:"-" json:"items,omitempty"`
}

// PurchaseReturnItem is a returned quantity of one medicine from one batch
type PurchaseReturnItem struct {
	ID         string          `db:"id" json:"id"`
	ReturnID   string          `db:"return_id" json:"return_id"`
	MedicineID string          `db:"medicine_id" json:"medicine_id"`
	BatchNo    *string         `db:"batch_no" json:"batch_no,omitempty"`
	Quantity   int             `db:"quantity" json:"quantity"`
	Price      decimal.Decimal `db:"price" json:"price"`
}

// PurchaseReturnRepository persists purchase returns in the shared returns
// tables with return_type = 'purchase'
type PurchaseReturnRepository struct {
	db *database.DB
}

// NewPurchaseReturnRepository creates a new purchase return repository
func NewPurchaseReturnRepository(db *database.DB) *PurchaseReturnRepository {
	return &PurchaseReturnRepository{db: db}
}

// CreateTx inserts a purchase return and its items within a transaction
func (r *PurchaseReturnRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, ret *PurchaseReturn) error {
	if ret.ID == "" {
		ret.ID = uuid.New().String()
	}
	if ret.ReturnDate.IsZero() {
		ret.ReturnDate = time.Now().UTC()
	}

	query := `
		INSERT INTO returns (id, return_type, source_id, return_date, reason, total)
		VALUES ($1, 'purchase', $2, $3, $4, $5)
		RETURNING created_at
	`
	if err := tx.QueryRowxContext(ctx, query,
		ret.ID, ret.SupplierID, ret.ReturnDate, ret.Reason, ret.Total,
	).Scan(&ret.CreatedAt); err != nil {
		return err
	}

	itemQuery := `
		INSERT INTO return_items (id, return_id, medicine_id, batch_no, quantity, price)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, item := range ret.Items {
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		item.ReturnID = ret.ID
		if _, err := tx.ExecContext(ctx, itemQuery,
			item.ID, item.ReturnID, item.MedicineID, item.BatchNo, item.Quantity, item.Price,
		); err != nil {
			return err
		}
	}

	return nil
}

// GetByID gets a purchase return with items
func (r *PurchaseReturnRepository) GetByID(ctx context.Context, id string) (*PurchaseReturn, error) {
	var ret PurchaseReturn
	query := `SELECT id, source_id, return_date, reason, total, created_at
		FROM returns WHERE id = $1 AND return_type = 'purchase'`
	if err := r.db.GetContext(ctx, &ret, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("purchase return")
		}
		return nil, err
	}

	var items []*PurchaseReturnItem
	itemQuery := `SELECT * FROM return_items WHERE return_id = $1`
	if err := r.db.SelectContext(ctx, &items, itemQuery, id); err != nil {
		return nil, err
	}
	ret.Items = items

	return &ret, nil
}

// GetForUpdateTx loads a purchase return with items, locking the header row
func (r *PurchaseReturnRepository) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id string) (*PurchaseReturn, error) {
	var ret PurchaseReturn
	query := `SELECT id, source_id, return_date, reason, total, created_at
		FROM returns WHERE id = $1 AND return_type = 'purchase' FOR UPDATE`
	if err := tx.GetContext(ctx, &ret, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("purchase return")
		}
		return nil, err
	}

	var items []*PurchaseReturnItem
	itemQuery := `SELECT * FROM return_items WHERE return_id = $1`
	if err := tx.SelectContext(ctx, &items, itemQuery, id); err != nil {
		return nil, err
	}
	ret.Items = items

	return &ret, nil
}

// List lists purchase returns newest first
func (r *PurchaseReturnRepository) List(ctx context.Context, page, perPage int) ([]*PurchaseReturn, int64, error) {
	var total int64
	countQuery := `SELECT COUNT(*) FROM returns WHERE return_type = 'purchase'`
	if err := r.db.GetContext(ctx, &total, countQuery); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	var returns []*PurchaseReturn
	query := `SELECT id, source_id, return_date, reason, total, created_at
		FROM returns WHERE return_type = 'purchase'
		ORDER BY return_date DESC, created_at DESC LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &returns, query, perPage, offset); err != nil {
		return nil, 0, err
	}

	return returns, total, nil
}

// DeleteTx removes a purchase return and its items within a transaction
func (r *PurchaseReturnRepository) DeleteTx(ctx context.Context, tx *sqlx.Tx, id string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM return_items WHERE return_id = $1`, id); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM returns WHERE id = $1 AND return_type = 'purchase'`, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("purchase return")
	}

	return nil
}
