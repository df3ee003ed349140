package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/medikart/medikart-backend/internal/catalog/repository"
	"github.com/medikart/medikart-backend/pkg/httputil"
	"github.com/medikart/medikart-backend/pkg/logger"
)

// MedicineHandler handles medicine catalog endpoints
type MedicineHandler struct {
	medicines *repository.MedicineRepository
	logger    *logger.Logger
}

// NewMedicineHandler creates a new medicine handler
func NewMedicineHandler(medicines *repository.MedicineRepository, log *logger.Logger) *MedicineHandler {
	return &MedicineHandler{
		medicines: medicines,
		logger:    log,
	}
}

// MedicineRequest is the create/update payload for a medicine
type MedicineRequest struct {
	Name     string          `json:"name" validate:"required"`
	HSNCode  string          `json:"hsn_code,omitempty"`
	GSTRate  decimal.Decimal `json:"gst_rate"`
	Unit     string          `json:"unit,omitempty"`
	MRP      decimal.Decimal `json:"mrp"`
	Stock    int             `json:"stock" validate:"gte=0"`
	MinStock int             `json:"min_stock" validate:"gte=0"`
}

// List lists medicines, optionally filtered by a search term
func (h *MedicineHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	search := r.URL.Query().Get("q")

	medicines, total, err := h.medicines.List(r.Context(), page, perPage, search)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}

	httputil.JSONWithMeta(w, http.StatusOK, medicines, &httputil.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	})
}

// Get gets a medicine by ID
func (h *MedicineHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	medicine, err := h.medicines.GetByID(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, medicine)
}

// Create creates a new medicine
func (h *MedicineHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req MedicineRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	medicine := &repository.Medicine{
		Name:     req.Name,
		HSNCode:  req.HSNCode,
		GSTRate:  req.GSTRate,
		Unit:     req.Unit,
		MRP:      req.MRP,
		Stock:    req.Stock,
		MinStock: req.MinStock,
		IsActive: true,
	}

	if err := h.medicines.Create(r.Context(), medicine); err != nil {
		httputil.Error(w, err)
		return
	}

	h.logger.Info().Str("medicine_id", medicine.ID).Str("name", medicine.Name).Msg("medicine created")
	httputil.Created(w, medicine)
}

// Update updates a medicine
func (h *MedicineHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req MedicineRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	medicine, err := h.medicines.GetByID(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	medicine.Name = req.Name
	medicine.HSNCode = req.HSNCode
	medicine.GSTRate = req.GSTRate
	medicine.Unit = req.Unit
	medicine.MRP = req.MRP
	medicine.MinStock = req.MinStock

	if err := h.medicines.Update(r.Context(), medicine); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, medicine)
}

// Delete soft-deletes a medicine
func (h *MedicineHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.medicines.SoftDelete(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
