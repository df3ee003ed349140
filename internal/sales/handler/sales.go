package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/medikart/medikart-backend/internal/sales/service"
	"github.com/medikart/medikart-backend/pkg/httputil"
	"github.com/medikart/medikart-backend/pkg/logger"
)

// SalesHandler handles sale and sale return endpoints
type SalesHandler struct {
	service *service.SalesService
	logger  *logger.Logger
}

// NewSalesHandler creates a new sales handler
func NewSalesHandler(svc *service.SalesService, log *logger.Logger) *SalesHandler {
	return &SalesHandler{
		service: svc,
		logger:  log,
	}
}

// Create records a new sale
func (h *SalesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateSaleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	sale, err := h.service.CreateSale(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, sale)
}

// List lists sales
func (h *SalesHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := pagination(r)

	sales, total, err := h.service.ListSales(r.Context(), page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, sales, meta(page, perPage, total))
}

// Get gets a sale with its items
func (h *SalesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sale, err := h.service.GetSale(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, sale)
}

// Delete deletes a sale and restores aggregate stock
func (h *SalesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteSale(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// CreateReturn records a sale return
func (h *SalesHandler) CreateReturn(w http.ResponseWriter, r *http.Request) {
	var req service.CreateSaleReturnRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	ret, err := h.service.CreateSaleReturn(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, ret)
}

// ListReturns lists sale returns
func (h *SalesHandler) ListReturns(w http.ResponseWriter, r *http.Request) {
	page, perPage := pagination(r)

	returns, total, err := h.service.ListSaleReturns(r.Context(), page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, returns, meta(page, perPage, total))
}

// DeleteReturn deletes a sale return, undoing its stock restore
func (h *SalesHandler) DeleteReturn(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteSaleReturn(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

func pagination(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	return page, perPage
}

func meta(page, perPage int, total int64) *httputil.Meta {
	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}

	return &httputil.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}
}
