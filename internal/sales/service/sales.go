package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	catalogrepo "github.com/medikart/medikart-backend/internal/catalog/repository"
	invrepo "github.com/medikart/medikart-backend/internal/inventory/repository"
	invservice "github.com/medikart/medikart-backend/internal/inventory/service"
	"github.com/medikart/medikart-backend/internal/sales/events"
	"github.com/medikart/medikart-backend/internal/sales/repository"
	"github.com/medikart/medikart-backend/pkg/config"
	"github.com/medikart/medikart-backend/pkg/database"
	"github.com/medikart/medikart-backend/pkg/errors"
	"github.com/medikart/medikart-backend/pkg/logger"
	"github.com/medikart/medikart-backend/pkg/messaging"
)

// CreateSaleRequest is the payload for recording a sale
type CreateSaleRequest struct {
	CustomerID *string           `json:"customer_id,omitempty" validate:"omitempty,uuid"`
	SaleDate   *time.Time        `json:"sale_date,omitempty"`
	Discount   decimal.Decimal   `json:"discount"`
	PromoCode  *string           `json:"promo_code,omitempty"`
	Items      []SaleItemRequest `json:"items" validate:"required,min=1,dive"`
}

// SaleItemRequest is one sold line. A zero price means charge the medicine's
// current MRP.
type SaleItemRequest struct {
	MedicineID string          `json:"medicine_id" validate:"required,uuid"`
	Quantity   int             `json:"quantity" validate:"required,gt=0"`
	Price      decimal.Decimal `json:"price"`
}

// CreateSaleReturnRequest is the payload for a customer return
type CreateSaleReturnRequest struct {
	SaleID *string                 `json:"sale_id,omitempty" validate:"omitempty,uuid"`
	Reason *string                 `json:"reason,omitempty"`
	Items  []SaleReturnItemRequest `json:"items" validate:"required,min=1,dive"`
}

// SaleReturnItemRequest is one returned line
type SaleReturnItemRequest struct {
	MedicineID string          `json:"medicine_id" validate:"required,uuid"`
	Quantity   int             `json:"quantity" validate:"required,gt=0"`
	Price      decimal.Decimal `json:"price"`
}

// SalesService books sales against batch stock and handles their reversal
// paths. All stock movement runs inside one transaction per operation.
type SalesService struct {
	db        *database.DB
	sales     *repository.SaleRepository
	returns   *repository.SaleReturnRepository
	medicines *catalogrepo.MedicineRepository
	allocator *invservice.Allocator
	store     *config.StoreConfig
	publisher *events.SalesEventPublisher
	logger    *logger.Logger
}

// NewSalesService creates a new sales service
func NewSalesService(
	db *database.DB,
	sales *repository.SaleRepository,
	returns *repository.SaleReturnRepository,
	medicines *catalogrepo.MedicineRepository,
	allocator *invservice.Allocator,
	store *config.StoreConfig,
	publisher *events.SalesEventPublisher,
	log *logger.Logger,
) *SalesService {
	return &SalesService{
		db:        db,
		sales:     sales,
		returns:   returns,
		medicines: medicines,
		allocator: allocator,
		store:     store,
		publisher: publisher,
		logger:    log.WithComponent("sales-service"),
	}
}

// lineState carries per-medicine data gathered during the pre-check so the
// booking phase reuses the locked rows instead of reading again
type lineState struct {
	medicine  *catalogrepo.Medicine
	batches   []*invrepo.PurchaseBatch
	requested int
}

// CreateSale books a sale. Inside one transaction: every distinct medicine is
// locked and its availability summed over open batches, all line items are
// checked all-or-nothing before anything is written, then the header and lines
// are inserted, each line's quantity drawn from the soonest-expiring batches,
// and the aggregate counter decremented. The first shortfall rejects the whole
// sale naming the medicine, the available amount, and the requested amount.
func (s *SalesService) CreateSale(ctx context.Context, req *CreateSaleRequest) (*repository.Sale, error) {
	var promo *config.PromoCode
	if req.PromoCode != nil && *req.PromoCode != "" {
		promo = s.store.FindPromo(*req.PromoCode)
		if promo == nil {
			return nil, errors.BadRequest("invalid promo code")
		}
	}

	// distinct medicines in first-appearance order, total requested per medicine
	var order []string
	states := make(map[string]*lineState)
	for _, item := range req.Items {
		st, ok := states[item.MedicineID]
		if !ok {
			st = &lineState{}
			states[item.MedicineID] = st
			order = append(order, item.MedicineID)
		}
		st.requested += item.Quantity
	}

	sale := &repository.Sale{
		CustomerID: req.CustomerID,
		PromoCode:  req.PromoCode,
		Discount:   req.Discount,
	}
	if req.SaleDate != nil {
		sale.SaleDate = *req.SaleDate
	}

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		for _, medicineID := range order {
			st := states[medicineID]

			medicine, err := s.medicines.GetForUpdateTx(ctx, tx, medicineID)
			if err != nil {
				return err
			}
			st.medicine = medicine

			available, batches, err := s.allocator.AvailabilityTx(ctx, tx, medicineID)
			if err != nil {
				return err
			}
			st.batches = batches

			if available < st.requested {
				return errors.InsufficientStock(medicine.Name, available, st.requested)
			}
		}

		subtotal := decimal.Zero
		lines := make([]*repository.SaleItem, 0, len(req.Items))
		for _, item := range req.Items {
			st := states[item.MedicineID]

			price := item.Price
			if price.IsZero() {
				price = st.medicine.MRP
			}
			lineTotal := price.Mul(decimal.NewFromInt(int64(item.Quantity)))
			subtotal = subtotal.Add(lineTotal)

			lines = append(lines, &repository.SaleItem{
				MedicineID: item.MedicineID,
				Quantity:   item.Quantity,
				Price:      price,
				GSTRate:    st.medicine.GSTRate,
				LineTotal:  lineTotal,
			})
		}

		discount := req.Discount
		if promo != nil {
			promoAmount := subtotal.Mul(decimal.NewFromInt(int64(promo.Percent))).Div(decimal.NewFromInt(100))
			discount = discount.Add(promoAmount)
		}
		total := subtotal.Sub(discount).Round(2)
		if total.IsNegative() {
			total = decimal.Zero
		}

		sale.Subtotal = subtotal
		sale.Discount = discount
		sale.Total = total

		if err := s.sales.CreateTx(ctx, tx, sale); err != nil {
			return err
		}

		for _, line := range lines {
			line.SaleID = sale.ID
			if err := s.sales.CreateItemTx(ctx, tx, line); err != nil {
				return err
			}

			st := states[line.MedicineID]
			if _, err := s.allocator.AllocateFrom(ctx, tx, st.batches, line.Quantity); err != nil {
				return err
			}

			if err := s.medicines.DeductStockTx(ctx, tx, line.MedicineID, line.Quantity); err != nil {
				return err
			}
		}
		sale.Items = lines

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("sale_id", sale.ID).
		Int("item_count", len(sale.Items)).
		Str("total", sale.Total.String()).
		Msg("sale recorded")

	s.publishSaleRecorded(ctx, sale)
	s.publishLowStock(ctx, states, order)

	return sale, nil
}

func (s *SalesService) publishSaleRecorded(ctx context.Context, sale *repository.Sale) {
	event := messaging.SaleRecordedEvent{
		SaleID:      sale.ID,
		ItemCount:   len(sale.Items),
		TotalAmount: sale.Total.String(),
	}
	if sale.CustomerID != nil {
		event.CustomerID = *sale.CustomerID
	}
	if sale.PromoCode != nil {
		event.PromoCode = *sale.PromoCode
	}
	s.publisher.SaleRecorded(ctx, event)
}

func (s *SalesService) publishLowStock(ctx context.Context, states map[string]*lineState, order []string) {
	for _, medicineID := range order {
		st := states[medicineID]
		if st.medicine == nil {
			continue
		}

		threshold := s.store.LowStockThreshold
		if st.medicine.MinStock > 0 {
			threshold = st.medicine.MinStock
		}

		remaining := st.medicine.Stock - st.requested
		if remaining <= threshold {
			s.publisher.StockLow(ctx, messaging.StockLowEvent{
				MedicineID:   medicineID,
				MedicineName: st.medicine.Name,
				Available:    remaining,
				Threshold:    threshold,
			})
		}
	}
}

// GetSale gets a sale with its items
func (s *SalesService) GetSale(ctx context.Context, id string) (*repository.Sale, error) {
	return s.sales.GetByID(ctx, id)
}

// ListSales lists sales with pagination
func (s *SalesService) ListSales(ctx context.Context, page, perPage int) ([]*repository.Sale, int64, error) {
	return s.sales.List(ctx, page, perPage)
}

// DeleteSale removes a sale and puts its quantities back on each medicine's
// aggregate counter. The batches that supplied the sale were never recorded,
// so their sold_qty stays where allocation left it; after deletion the
// aggregate counter and the batch-level sum disagree by the restored amount.
func (s *SalesService) DeleteSale(ctx context.Context, id string) error {
	restored := 0
	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		sale, err := s.sales.GetForUpdateTx(ctx, tx, id)
		if err != nil {
			return err
		}

		for _, item := range sale.Items {
			if err := s.allocator.RestoreAggregateTx(ctx, tx, item.MedicineID, item.Quantity); err != nil {
				return err
			}
			restored += item.Quantity
		}

		return s.sales.DeleteTx(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info().
		Str("sale_id", id).
		Int("restored_units", restored).
		Msg("sale deleted, aggregate stock restored")

	s.publisher.SaleDeleted(ctx, messaging.SaleDeletedEvent{
		SaleID:        id,
		RestoredUnits: restored,
	})

	return nil
}

// CreateSaleReturn records a customer return. Returned quantities go back on
// the aggregate counter only, matching what sale booking can be unwound to.
func (s *SalesService) CreateSaleReturn(ctx context.Context, req *CreateSaleReturnRequest) (*repository.SaleReturn, error) {
	ret := &repository.SaleReturn{
		SaleID: req.SaleID,
		Reason: req.Reason,
	}

	total := decimal.Zero
	for _, item := range req.Items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		ret.Items = append(ret.Items, &repository.SaleReturnItem{
			MedicineID: item.MedicineID,
			Quantity:   item.Quantity,
			Price:      item.Price,
		})
	}
	ret.Total = total

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		for _, item := range req.Items {
			if err := s.medicines.AddStockTx(ctx, tx, item.MedicineID, item.Quantity); err != nil {
				return err
			}
		}

		return s.returns.CreateTx(ctx, tx, ret)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("return_id", ret.ID).
		Int("item_count", len(ret.Items)).
		Msg("sale return recorded")

	event := messaging.SaleReturnCreatedEvent{
		ReturnID:  ret.ID,
		ItemCount: len(ret.Items),
	}
	if ret.SaleID != nil {
		event.SaleID = *ret.SaleID
	}
	s.publisher.SaleReturnCreated(ctx, event)

	return ret, nil
}

// ListSaleReturns lists sale returns with pagination
func (s *SalesService) ListSaleReturns(ctx context.Context, page, perPage int) ([]*repository.SaleReturn, int64, error) {
	return s.returns.List(ctx, page, perPage)
}

// DeleteSaleReturn undoes a customer return, taking the quantities back off
// the aggregate counter, floored at zero
func (s *SalesService) DeleteSaleReturn(ctx context.Context, id string) error {
	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		ret, err := s.returns.GetForUpdateTx(ctx, tx, id)
		if err != nil {
			return err
		}

		for _, item := range ret.Items {
			if err := s.medicines.DeductStockFlooredTx(ctx, tx, item.MedicineID, item.Quantity); err != nil {
				return err
			}
		}

		return s.returns.DeleteTx(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info().Str("return_id", id).Msg("sale return deleted")
	return nil
}
