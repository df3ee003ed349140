package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/medikart/medikart-backend/internal/purchasing/service"
	"github.com/medikart/medikart-backend/pkg/httputil"
	"github.com/medikart/medikart-backend/pkg/logger"
)

// PurchasingHandler handles purchase bill and purchase return endpoints
type PurchasingHandler struct {
	service *service.PurchasingService
	logger  *logger.Logger
}

// NewPurchasingHandler creates a new purchasing handler
func NewPurchasingHandler(svc *service.PurchasingService, log *logger.Logger) *PurchasingHandler {
	return &PurchasingHandler{
		service: svc,
		logger:  log,
	}
}

// CreateBill records a new purchase bill
func (h *PurchasingHandler) CreateBill(w http.ResponseWriter, r *http.Request) {
	var req service.CreateBillRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	bill, err := h.service.CreateBill(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, bill)
}

// ListBills lists purchase bills
func (h *PurchasingHandler) ListBills(w http.ResponseWriter, r *http.Request) {
	page, perPage := pagination(r)

	bills, total, err := h.service.ListBills(r.Context(), page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, bills, meta(page, perPage, total))
}

// GetBill gets a bill with its batches
func (h *PurchasingHandler) GetBill(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	bill, batches, err := h.service.GetBill(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"bill":    bill,
		"batches": batches,
	})
}

// DeleteBill deletes a bill, reversing its stock effects
func (h *PurchasingHandler) DeleteBill(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteBill(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// CreateReturn records a purchase return
func (h *PurchasingHandler) CreateReturn(w http.ResponseWriter, r *http.Request) {
	var req service.CreateReturnRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	ret, err := h.service.CreateReturn(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, ret)
}

// ListReturns lists purchase returns
func (h *PurchasingHandler) ListReturns(w http.ResponseWriter, r *http.Request) {
	page, perPage := pagination(r)

	returns, total, err := h.service.ListReturns(r.Context(), page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, returns, meta(page, perPage, total))
}

// DeleteReturn deletes a purchase return, reversing its stock effects
func (h *PurchasingHandler) DeleteReturn(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteReturn(r.Context(), id); err != nil {
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
