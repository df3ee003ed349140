package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/medikart/medikart-backend/internal/inventory/repository"
	"github.com/medikart/medikart-backend/pkg/httputil"
	"github.com/medikart/medikart-backend/pkg/logger"
)

// StockHandler handles batch stock endpoints
type StockHandler struct {
	batches *repository.BatchRepository
	logger  *logger.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(batches *repository.BatchRepository, log *logger.Logger) *StockHandler {
	return &StockHandler{
		batches: batches,
		logger:  log,
	}
}

// ListBatches lists batches for a medicine, soonest expiry first
func (h *StockHandler) ListBatches(w http.ResponseWriter, r *http.Request) {
	medicineID := chi.URLParam(r, "medicineID")

	batches, err := h.batches.ListByMedicine(r.Context(), medicineID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}

// CheckBatch reports the availability of one batch label
func (h *StockHandler) CheckBatch(w http.ResponseWriter, r *http.Request) {
	medicineID := chi.URLParam(r, "medicineID")
	batchNo := chi.URLParam(r, "batchNo")

	batch, err := h.batches.CheckAvailability(r.Context(), medicineID, batchNo)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"batch":     batch,
		"available": batch.Available(),
	})
}
