package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/medikart/medikart-backend/internal/storefront/service"
	"github.com/medikart/medikart-backend/pkg/httputil"
	"github.com/medikart/medikart-backend/pkg/logger"
)

// StorefrontHandler handles the retailer-facing shop endpoints
type StorefrontHandler struct {
	service *service.CheckoutService
	logger  *logger.Logger
}

// NewStorefrontHandler creates a new storefront handler
func NewStorefrontHandler(svc *service.CheckoutService, log *logger.Logger) *StorefrontHandler {
	return &StorefrontHandler{
		service: svc,
		logger:  log,
	}
}

// ListProducts lists in-stock products
func (h *StorefrontHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, products)
}

// ValidatePromo checks a promo code
func (h *StorefrontHandler) ValidatePromo(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	promo, err := h.service.ValidatePromo(code)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"code":    promo.Code,
		"percent": promo.Percent,
	})
}

// Checkout books the cart as a sale
func (h *StorefrontHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req service.CheckoutRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	sale, err := h.service.Checkout(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, sale)
}
