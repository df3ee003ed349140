package repository

import (
	"context"

	"github.com/medikart/medikart-backend/pkg/database"
	"github.com/shopspring/decimal"
)

// StockRow is one medicine's aggregate counter next to its batch-level sum.
// The two drift apart after sale deletions, which is exactly what this report
// is for.
type StockRow struct {
	MedicineID string          `db:"medicine_id" json:"medicine_id"`
	Name       string          `db:"name" json:"name"`
	Stock      int             `db:"stock" json:"stock"`
	MinStock   int             `db:"min_stock" json:"min_stock"`
	BatchSum   int             `db:"batch_sum" json:"batch_sum"`
	MRP        decimal.Decimal `db:"mrp" json:"mrp"`
}

// ReportRepository runs the aggregate queries behind the dashboard
type ReportRepository struct {
	db *database.DB
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *database.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// CountMedicines counts active medicines
func (r *ReportRepository) CountMedicines(ctx context.Context) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM medicines WHERE is_active = true`
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, err
	}
	return count, nil
}

// TotalStock sums the aggregate stock counters over active medicines
func (r *ReportRepository) TotalStock(ctx context.Context) (int64, error) {
	var total int64
	query := `SELECT COALESCE(SUM(stock), 0) FROM medicines WHERE is_active = true`
	if err := r.db.GetContext(ctx, &total, query); err != nil {
		return 0, err
	}
	return total, nil
}

// ListLowStock lists active medicines at or below their reorder level. A
// medicine's own min_stock wins when set; otherwise the store-wide default
// threshold applies.
func (r *ReportRepository) ListLowStock(ctx context.Context, defaultThreshold int) ([]*StockRow, error) {
	var rows []*StockRow
	query := `
		SELECT m.id AS medicine_id, m.name, m.stock, m.min_stock, m.mrp,
			COALESCE(SUM(GREATEST(b.quantity - b.sold_qty, 0)), 0) AS batch_sum
		FROM medicines m
		LEFT JOIN purchase_items b ON b.medicine_id = m.id
		WHERE m.is_active = true
			AND m.stock <= CASE WHEN m.min_stock > 0 THEN m.min_stock ELSE $1 END
		GROUP BY m.id, m.name, m.stock, m.min_stock, m.mrp
		ORDER BY m.stock ASC
	`
	if err := r.db.SelectContext(ctx, &rows, query, defaultThreshold); err != nil {
		return nil, err
	}
	return rows, nil
}

// StockReport lists every active medicine's aggregate counter next to the sum
// of its open batch quantities
func (r *ReportRepository) StockReport(ctx context.Context) ([]*StockRow, error) {
	var rows []*StockRow
	query := `
		SELECT m.id AS medicine_id, m.name, m.stock, m.min_stock, m.mrp,
			COALESCE(SUM(GREATEST(b.quantity - b.sold_qty, 0)), 0) AS batch_sum
		FROM medicines m
		LEFT JOIN purchase_items b ON b.medicine_id = m.id
		WHERE m.is_active = true
		GROUP BY m.id, m.name, m.stock, m.min_stock, m.mrp
		ORDER BY m.name
	`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}
	return rows, nil
}
