package handler

import (
	"net/http"

	"github.com/medikart/medikart-backend/internal/reporting/service"
	"github.com/medikart/medikart-backend/pkg/httputil"
	"github.com/medikart/medikart-backend/pkg/logger"
)

// DashboardHandler handles reporting endpoints
type DashboardHandler struct {
	service *service.ReportService
	logger  *logger.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(svc *service.ReportService, log *logger.Logger) *DashboardHandler {
	return &DashboardHandler{
		service: svc,
		logger:  log,
	}
}

// Dashboard returns the dashboard summary
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Dashboard(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, stats)
}

// LowStock lists medicines at or below their reorder level
func (h *DashboardHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.LowStock(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, rows)
}

// StockReport lists aggregate counters next to batch-level sums
func (h *DashboardHandler) StockReport(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.StockReport(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, rows)
}

// Expiring lists batches expiring within the configured window
func (h *DashboardHandler) Expiring(w http.ResponseWriter, r *http.Request) {
	batches, err := h.service.ExpiringBatches(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}

// Expired lists batches already past expiry
func (h *DashboardHandler) Expired(w http.ResponseWriter, r *http.Request) {
	batches, err := h.service.ExpiredBatches(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}
