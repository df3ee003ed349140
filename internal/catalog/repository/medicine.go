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

// Medicine represents a sellable product master record. The Stock column is
// the aggregate counter maintained alongside the per-batch figures; the two
// are reconciled only by the transactional flows that update both.
type Medicine struct {
	ID        string          `db:"id" json:"id"`
	Name      string          `db:"name" json:"name"`
	HSNCode   string          `db:"hsn_code" json:"hsn_code"`
	GSTRate   decimal.Decimal `db:"gst_rate" json:"gst_rate"`
	Unit      string          `db:"unit" json:"unit"`
	MRP       decimal.Decimal `db:"mrp" json:"mrp"`
	Stock     int             `db:"stock" json:"stock"`
	MinStock  int             `db:"min_stock" json:"min_stock"`
	IsActive  bool            `db:"is_active" json:"is_active"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// MedicineRepository handles product master persistence
type MedicineRepository struct {
	db *database.DB
}

// NewMedicineRepository creates a new medicine repository
func NewMedicineRepository(db *database.DB) *MedicineRepository {
	return &MedicineRepository{db: db}
}

// Create creates a new medicine
func (r *MedicineRepository) Create(ctx context.Context, m *Medicine) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	query := `
		INSERT INTO medicines (
			id, name, hsn_code, gst_rate, unit, mrp, stock, min_stock, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	return r.db.QueryRowxContext(ctx, query,
		m.ID, m.Name, m.HSNCode, m.GSTRate, m.Unit, m.MRP, m.Stock, m.MinStock, m.IsActive,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
}

// GetByID gets a medicine by ID
func (r *MedicineRepository) GetByID(ctx context.Context, id string) (*Medicine, error) {
	var m Medicine
	query := `SELECT * FROM medicines WHERE id = $1`
	if err := r.db.GetContext(ctx, &m, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("medicine")
		}
		return nil, err
	}
	return &m, nil
}

// List lists medicines with pagination and an optional name search
func (r *MedicineRepository) List(ctx context.Context, page, perPage int, search string) ([]*Medicine, int64, error) {
	var total int64
	countQuery := `SELECT COUNT(*) FROM medicines WHERE is_active = true`
	args := []interface{}{}

	if search != "" {
		countQuery += ` AND name ILIKE '%' || $1 || '%'`
		args = append(args, search)
	}

	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	query := `SELECT * FROM medicines WHERE is_active = true`
	if search != "" {
		query += ` AND name ILIKE '%' || $1 || '%' ORDER BY name LIMIT $2 OFFSET $3`
	} else {
		query += ` ORDER BY name LIMIT $1 OFFSET $2`
	}
	args = append(args, perPage, offset)

	var medicines []*Medicine
	if err := r.db.SelectContext(ctx, &medicines, query, args...); err != nil {
		return nil, 0, err
	}

	return medicines, total, nil
}

// GetAllActive gets all active medicines
func (r *MedicineRepository) GetAllActive(ctx context.Context) ([]*Medicine, error) {
	var medicines []*Medicine
	query := `SELECT * FROM medicines WHERE is_active = true ORDER BY name`
	if err := r.db.SelectContext(ctx, &medicines, query); err != nil {
		return nil, err
	}
	return medicines, nil
}

// Update updates a medicine
func (r *MedicineRepository) Update(ctx context.Context, m *Medicine) error {
	query := `
		UPDATE medicines SET
			name = $2, hsn_code = $3, gst_rate = $4, unit = $5, mrp = $6,
			min_stock = $7, is_active = $8, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		m.ID, m.Name, m.HSNCode, m.GSTRate, m.Unit, m.MRP, m.MinStock, m.IsActive,
	)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("medicine")
	}

	return nil
}

// SoftDelete deactivates a medicine
func (r *MedicineRepository) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE medicines SET is_active = false, updated_at = NOW() WHERE id = $1 AND is_active = true`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("medicine")
	}

	return nil
}

// GetForUpdateTx loads the medicine columns the sale and return paths need,
// taking a row lock on the product master.
func (r *MedicineRepository) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id string) (*Medicine, error) {
	var m Medicine
	query := `SELECT id, name, gst_rate, mrp, stock, min_stock FROM medicines WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &m, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("medicine")
		}
		return nil, err
	}
	return &m, nil
}

// AddStockTx increments the aggregate stock counter within a transaction
func (r *MedicineRepository) AddStockTx(ctx context.Context, tx *sqlx.Tx, id string, qty int) error {
	query := `UPDATE medicines SET stock = stock + $2, updated_at = NOW() WHERE id = $1`
	result, err := tx.ExecContext(ctx, query, id, qty)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("medicine")
	}

	return nil
}

// DeductStockTx decrements the aggregate stock counter within a transaction.
// Unfloored: the sale path trusts its own pre-check.
func (r *MedicineRepository) DeductStockTx(ctx context.Context, tx *sqlx.Tx, id string, qty int) error {
	query := `UPDATE medicines SET stock = stock - $2, updated_at = NOW() WHERE id = $1`
	result, err := tx.ExecContext(ctx, query, id, qty)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("medicine")
	}

	return nil
}

// DeductStockFlooredTx decrements the aggregate stock counter, never below zero.
// Used by the purchase-return and bill-deletion paths.
func (r *MedicineRepository) DeductStockFlooredTx(ctx context.Context, tx *sqlx.Tx, id string, qty int) error {
	query := `UPDATE medicines SET stock = GREATEST(stock - $2, 0), updated_at = NOW() WHERE id = $1`
	result, err := tx.ExecContext(ctx, query, id, qty)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("medicine")
	}

	return nil
}
