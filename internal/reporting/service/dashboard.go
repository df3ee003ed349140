package service

import (
	"context"

	"github.com/shopspring/decimal"

	invrepo "github.com/medikart/medikart-backend/internal/inventory/repository"
	"github.com/medikart/medikart-backend/internal/reporting/repository"
	salesrepo "github.com/medikart/medikart-backend/internal/sales/repository"
	"github.com/medikart/medikart-backend/pkg/config"
	"github.com/medikart/medikart-backend/pkg/logger"
)

// DashboardStats is the summary block shown on the store dashboard
type DashboardStats struct {
	MedicineCount  int64           `json:"medicine_count"`
	TotalStock     int64           `json:"total_stock"`
	LowStockCount  int             `json:"low_stock_count"`
	ExpiringCount  int             `json:"expiring_count"`
	ExpiredCount   int             `json:"expired_count"`
	TodaySaleCount int64           `json:"today_sale_count"`
	TodaySaleValue decimal.Decimal `json:"today_sale_value"`
}

// ReportService computes dashboard and stock reports
type ReportService struct {
	reports *repository.ReportRepository
	batches *invrepo.BatchRepository
	sales   *salesrepo.SaleRepository
	store   *config.StoreConfig
	logger  *logger.Logger
}

// NewReportService creates a new report service
func NewReportService(
	reports *repository.ReportRepository,
	batches *invrepo.BatchRepository,
	sales *salesrepo.SaleRepository,
	store *config.StoreConfig,
	log *logger.Logger,
) *ReportService {
	return &ReportService{
		reports: reports,
		batches: batches,
		sales:   sales,
		store:   store,
		logger:  log.WithComponent("report-service"),
	}
}

// Dashboard assembles the dashboard summary from the individual counters
func (s *ReportService) Dashboard(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{}

	medicineCount, err := s.reports.CountMedicines(ctx)
	if err != nil {
		return nil, err
	}
	stats.MedicineCount = medicineCount

	totalStock, err := s.reports.TotalStock(ctx)
	if err != nil {
		return nil, err
	}
	stats.TotalStock = totalStock

	lowStock, err := s.reports.ListLowStock(ctx, s.store.LowStockThreshold)
	if err != nil {
		return nil, err
	}
	stats.LowStockCount = len(lowStock)

	expiring, err := s.batches.GetExpiringBatches(ctx, s.store.ExpiryWindowDays)
	if err != nil {
		return nil, err
	}
	stats.ExpiringCount = len(expiring)

	expired, err := s.batches.GetExpiredBatches(ctx)
	if err != nil {
		return nil, err
	}
	stats.ExpiredCount = len(expired)

	saleCount, saleValue, err := s.sales.TodaySummary(ctx)
	if err != nil {
		return nil, err
	}
	stats.TodaySaleCount = saleCount
	stats.TodaySaleValue = saleValue

	return stats, nil
}

// LowStock lists medicines at or below their reorder level
func (s *ReportService) LowStock(ctx context.Context) ([]*repository.StockRow, error) {
	return s.reports.ListLowStock(ctx, s.store.LowStockThreshold)
}

// StockReport lists aggregate counters next to batch-level sums
func (s *ReportService) StockReport(ctx context.Context) ([]*repository.StockRow, error) {
	return s.reports.StockReport(ctx)
}

// ExpiringBatches lists batches expiring within the configured window
func (s *ReportService) ExpiringBatches(ctx context.Context) ([]*invrepo.PurchaseBatch, error) {
	return s.batches.GetExpiringBatches(ctx, s.store.ExpiryWindowDays)
}

// ExpiredBatches lists batches already past expiry
func (s *ReportService) ExpiredBatches(ctx context.Context) ([]*invrepo.PurchaseBatch, error) {
	return s.batches.GetExpiredBatches(ctx)
}
