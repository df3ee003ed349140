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

// Sale represents a sales invoice header
type Sale struct {
	ID         string          `db:"id" json:"id"`
	CustomerID *string         `db:"customer_id" json:"customer_id,omitempty"`
	SaleDate   time.Time       `db:"sale_date" json:"sale_date"`
	Subtotal   decimal.Decimal `db:"subtotal" json:"subtotal"`
	Discount   decimal.Decimal `db:"discount" json:"discount"`
	Total      decimal.Decimal `db:"total" json:"total"`
	PromoCode  *string         `db:"promo_code" json:"promo_code,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`

	Items []*SaleItem `db:"-" json:"items,omitempty"`
}

// SaleItem records a requested quantity of a medicine at sale time. Which
// batches fulfilled the line is not stored; only the net effect on batch
// sold_qty is.
type SaleItem struct {
	ID         string          `db:"id" json:"id"`
	SaleID     string          `db:"sale_id" json:"sale_id"`
	MedicineID string          `db:"medicine_id" json:"medicine_id"`
	Quantity   int             `db:"quantity" json:"quantity"`
	Price      decimal.Decimal `db:"price" json:"price"`
	GSTRate    decimal.Decimal `db:"gst_rate" json:"gst_rate"`
	LineTotal  decimal.Decimal `db:"line_total" json:"line_total"`
}

// SaleRepository handles sales invoice persistence
type SaleRepository struct {
	db *database.DB
}

// NewSaleRepository creates a new sale repository
func NewSaleRepository(db *database.DB) *SaleRepository {
	return &SaleRepository{db: db}
}

// CreateTx inserts a sale header within a transaction
func (r *SaleRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, s *Sale) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.SaleDate.IsZero() {
		s.SaleDate = time.Now().UTC()
	}

	query := `
		INSERT INTO sales (id, customer_id, sale_date, subtotal, discount, total, promo_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	return tx.QueryRowxContext(ctx, query,
		s.ID, s.CustomerID, s.SaleDate, s.Subtotal, s.Discount, s.Total, s.PromoCode,
	).Scan(&s.CreatedAt)
}

// CreateItemTx inserts a sale line within a transaction
func (r *SaleRepository) CreateItemTx(ctx context.Context, tx *sqlx.Tx, item *SaleItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}

	query := `
		INSERT INTO sale_items (id, sale_id, medicine_id, quantity, price, gst_rate, line_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := tx.ExecContext(ctx, query,
		item.ID, item.SaleID, item.MedicineID, item.Quantity, item.Price, item.GSTRate, item.LineTotal,
	)
	return err
}

// GetByID gets a sale with its line items
func (r *SaleRepository) GetByID(ctx context.Context, id string) (*Sale, error) {
	var s Sale
	query := `SELECT * FROM sales WHERE id = $1`
	if err := r.db.GetContext(ctx, &s, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("sale")
		}
		return nil, err
	}

	items, err := r.listItems(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Items = items

	return &s, nil
}

func (r *SaleRepository) listItems(ctx context.Context, saleID string) ([]*SaleItem, error) {
	var items []*SaleItem
	query := `SELECT * FROM sale_items WHERE sale_id = $1`
	if err := r.db.SelectContext(ctx, &items, query, saleID); err != nil {
		return nil, err
	}
	return items, nil
}

// List lists sales newest first with pagination
func (r *SaleRepository) List(ctx context.Context, page, perPage int) ([]*Sale, int64, error) {
	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM sales`); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	var sales []*Sale
	query := `SELECT * FROM sales ORDER BY sale_date DESC, created_at DESC LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &sales, query, perPage, offset); err != nil {
		return nil, 0, err
	}

	return sales, total, nil
}

// GetForUpdateTx loads a sale header and its items inside a transaction,
// locking the header row
func (r *SaleRepository) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id string) (*Sale, error) {
	var s Sale
	query := `SELECT * FROM sales WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &s, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("sale")
		}
		return nil, err
	}

	var items []*SaleItem
	itemQuery := `SELECT * FROM sale_items WHERE sale_id = $1`
	if err := tx.SelectContext(ctx, &items, itemQuery, id); err != nil {
		return nil, err
	}
	s.Items = items

	return &s, nil
}

// DeleteTx removes a sale and its line items within a transaction
func (r *SaleRepository) DeleteTx(ctx context.Context, tx *sqlx.Tx, id string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, id); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("sale")
	}

	return nil
}

// TodaySummary reports the count and value of today's sales
func (r *SaleRepository) TodaySummary(ctx context.Context) (int64, decimal.Decimal, error) {
	var row struct {
		Count int64           `db:"count"`
		Total decimal.Decimal `db:"total"`
	}
	query := `
		SELECT COUNT(*) AS count, COALESCE(SUM(total), 0) AS total
		FROM sales WHERE sale_date::date = CURRENT_DATE
	`
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return 0, decimal.Zero, err
	}
	return row.Count, row.Total, nil
}
