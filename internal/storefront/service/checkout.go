package service

import (
	"context"

	"github.com/shopspring/decimal"

	catalogrepo "github.com/medikart/medikart-backend/internal/catalog/repository"
	salesservice "github.com/medikart/medikart-backend/internal/sales/service"
	salesrepo "github.com/medikart/medikart-backend/internal/sales/repository"
	"github.com/medikart/medikart-backend/pkg/config"
	"github.com/medikart/medikart-backend/pkg/errors"
	"github.com/medikart/medikart-backend/pkg/logger"
)

// Product is the storefront view of a sellable medicine. Prices come from the
// current MRP; the cart itself lives client-side.
type Product struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Unit    string          `json:"unit,omitempty"`
	MRP     decimal.Decimal `json:"mrp"`
	GSTRate decimal.Decimal `json:"gst_rate"`
	Stock   int             `json:"stock"`
}

// CheckoutRequest is the storefront order payload. Prices are never taken
// from the client; each line is charged at the current MRP.
type CheckoutRequest struct {
	CustomerID *string               `json:"customer_id,omitempty" validate:"omitempty,uuid"`
	PromoCode  *string               `json:"promo_code,omitempty"`
	Items      []CheckoutItemRequest `json:"items" validate:"required,min=1,dive"`
}

// CheckoutItemRequest is one cart line
type CheckoutItemRequest struct {
	MedicineID string `json:"medicine_id" validate:"required,uuid"`
	Quantity   int    `json:"quantity" validate:"required,gt=0"`
}

// CheckoutService fronts the sales service for the retailer-facing shop
type CheckoutService struct {
	medicines *catalogrepo.MedicineRepository
	sales     *salesservice.SalesService
	store     *config.StoreConfig
	logger    *logger.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	medicines *catalogrepo.MedicineRepository,
	sales *salesservice.SalesService,
	store *config.StoreConfig,
	log *logger.Logger,
) *CheckoutService {
	return &CheckoutService{
		medicines: medicines,
		sales:     sales,
		store:     store,
		logger:    log.WithComponent("checkout-service"),
	}
}

// ListProducts lists active medicines with stock on hand
func (s *CheckoutService) ListProducts(ctx context.Context) ([]*Product, error) {
	medicines, err := s.medicines.GetAllActive(ctx)
	if err != nil {
		return nil, err
	}

	products := make([]*Product, 0, len(medicines))
	for _, m := range medicines {
		if m.Stock <= 0 {
			continue
		}
		products = append(products, &Product{
			ID:      m.ID,
			Name:    m.Name,
			Unit:    m.Unit,
			MRP:     m.MRP,
			GSTRate: m.GSTRate,
			Stock:   m.Stock,
		})
	}

	return products, nil
}

// ValidatePromo looks up a promo code, returning 404 for unknown codes
func (s *CheckoutService) ValidatePromo(code string) (*config.PromoCode, error) {
	promo := s.store.FindPromo(code)
	if promo == nil {
		return nil, errors.NotFound("promo code")
	}
	return promo, nil
}

// Checkout books the cart as a sale at current MRPs. Stock checking, batch
// allocation, and totals all run through the sales service's transaction.
func (s *CheckoutService) Checkout(ctx context.Context, req *CheckoutRequest) (*salesrepo.Sale, error) {
	saleReq := &salesservice.CreateSaleRequest{
		CustomerID: req.CustomerID,
		PromoCode:  req.PromoCode,
	}
	for _, item := range req.Items {
		saleReq.Items = append(saleReq.Items, salesservice.SaleItemRequest{
			MedicineID: item.MedicineID,
			Quantity:   item.Quantity,
		})
	}

	sale, err := s.sales.CreateSale(ctx, saleReq)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("sale_id", sale.ID).
		Int("item_count", len(sale.Items)).
		Msg("storefront checkout completed")

	return sale, nil
}
