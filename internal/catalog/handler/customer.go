package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/medikart/medikart-backend/internal/catalog/repository"
	"github.com/medikart/medikart-backend/pkg/httputil"
	"github.com/medikart/medikart-backend/pkg/logger"
)

// CustomerHandler handles customer endpoints
type CustomerHandler struct {
	customers *repository.CustomerRepository
	logger    *logger.Logger
}

// NewCustomerHandler creates a new customer handler
func NewCustomerHandler(customers *repository.CustomerRepository, log *logger.Logger) *CustomerHandler {
	return &CustomerHandler{
		customers: customers,
		logger:    log,
	}
}

// CustomerRequest is the create/update payload for a customer
type CustomerRequest struct {
	Name    string  `json:"name" validate:"required"`
	Phone   *string `json:"phone,omitempty"`
	Email   *string `json:"email,omitempty" validate:"omitempty,email"`
	Address *string `json:"address,omitempty"`
}

// List lists all customers
func (h *CustomerHandler) List(w http.ResponseWriter, r *http.Request) {
	customers, err := h.customers.List(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, customers)
}

// Get gets a customer by ID
func (h *CustomerHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	customer, err := h.customers.GetByID(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, customer)
}

// Create creates a new customer
func (h *CustomerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CustomerRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	customer := &repository.Customer{
		Name:    req.Name,
		Phone:   req.Phone,
		Email:   req.Email,
		Address: req.Address,
	}

	if err := h.customers.Create(r.Context(), customer); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, customer)
}

// Update updates a customer
func (h *CustomerHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req CustomerRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	customer := &repository.Customer{
		ID:      id,
		Name:    req.Name,
		Phone:   req.Phone,
		Email:   req.Email,
		Address: req.Address,
	}

	if err := h.customers.Update(r.Context(), customer); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, customer)
}

// Delete deletes a customer
func (h *CustomerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.customers.Delete(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
