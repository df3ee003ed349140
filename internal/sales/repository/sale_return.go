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

// SaleReturn is a customer return against a recorded sale
type SaleReturn struct {
	ID         string          `db:"id" json:"id"`
	SaleID     *string         `db:"source_id" json:"sale_id,omitempty"`
	ReturnDate time.Time       `db:"return_date" json:"return_date"`
	Reason     *string         `db:"reason" json:"reason,omitempty"`
	Total      decimal.Decimal `db:"total" json:"total"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`

	Items []*SaleReturnItem `db:"-" json:"items,omitempty"`
}

// SaleReturnItem is a returned quantity of one medicine
type SaleReturnItem struct {
	ID         string          `db:"id" json:"id"`
	ReturnID   string          `db:"return_id" json:"return_id"`
	MedicineID string          `db:"medicine_id" json:"medicine_id"`
	Quantity   int             `db:"quantity" json:"quantity"`
	Price      decimal.Decimal `db:"price" json:"price"`
}

// SaleReturnRepository persists sale returns. Sale and purchase returns share
// the returns tables, discriminated by return_type.
type SaleReturnRepository struct {
	db *database.DB
}

// NewSaleReturnRepository creates a new sale return repository
func NewSaleReturnRepository(db *database.DB) *SaleReturnRepository {
	return &SaleReturnRepository{db: db}
}

// CreateTx inserts a sale return and its items within a transaction
func (r *SaleReturnRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, ret *SaleReturn) error {
	if ret.ID == "" {
		ret.ID = uuid.New().String()
	}
	if ret.ReturnDate.IsZero() {
		ret.ReturnDate = time.Now().UTC()
	}

	query := `
		INSERT INTO returns (id, return_type, source_id, return_date, reason, total)
		VALUES ($1, 'sale', $2, $3, $4, $5)
		RETURNING created_at
	`
	if err := tx.QueryRowxContext(ctx, query,
		ret.ID, ret.SaleID, ret.ReturnDate, ret.Reason, ret.Total,
	).Scan(&ret.CreatedAt); err != nil {
		return err
	}

	itemQuery := `
		INSERT INTO return_items (id, return_id, medicine_id, quantity, price)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, item := range ret.Items {
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		item.ReturnID = ret.ID
		if _, err := tx.ExecContext(ctx, itemQuery,
			item.ID, item.ReturnID, item.MedicineID, item.Quantity, item.Price,
		); err != nil {
			return err
		}
	}

	return nil
}

// GetForUpdateTx loads a sale return with items, locking the header row
func (r *SaleReturnRepository) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id string) (*SaleReturn, error) {
	var ret SaleReturn
	query := `SELECT id, source_id, return_date, reason, total, created_at
		FROM returns WHERE id = $1 AND return_type = 'sale' FOR UPDATE`
	if err := tx.GetContext(ctx, &ret, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("sale return")
		}
		return nil, err
	}

	var items []*SaleReturnItem
	itemQuery := `SELECT id, return_id, medicine_id, quantity, price FROM return_items WHERE return_id = $1`
	if err := tx.SelectContext(ctx, &items, itemQuery, id); err != nil {
		return nil, err
	}
	ret.Items = items

	return &ret, nil
}

// List lists sale returns newest first
func (r *SaleReturnRepository) List(ctx context.Context, page, perPage int) ([]*SaleReturn, int64, error) {
	var total int64
	countQuery := `SELECT COUNT(*) FROM returns WHERE return_type = 'sale'`
	if err := r.db.GetContext(ctx, &total, countQuery); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	var returns []*SaleReturn
	query := `SELECT id, source_id, return_date, reason, total, created_at
		FROM returns WHERE return_type = 'sale'
		ORDER BY return_date DESC, created_at DESC LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &returns, query, perPage, offset); err != nil {
		return nil, 0, err
	}

	return returns, total, nil
}

// DeleteTx removes a sale return and its items within a transaction
func (r *SaleReturnRepository) DeleteTx(ctx context.Context, tx *sqlx.Tx, id string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM return_items WHERE return_id = $1`, id); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM returns WHERE id = $1 AND return_type = 'sale'`, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("sale return")
	}

	return nil
}
