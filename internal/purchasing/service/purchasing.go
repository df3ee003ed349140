package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	catalogrepo "github.com/medikart/medikart-backend/internal/catalog/repository"
	invrepo "github.com/medikart/medikart-backend/internal/inventory/repository"
	invservice "github.com/medikart/medikart-backend/internal/inventory/service"
	"github.com/medikart/medikart-backend/internal/purchasing/events"
	"github.com/medikart/medikart-backend/internal/purchasing/repository"
	"github.com/medikart/medikart-backend/pkg/database"
	"github.com/medikart/medikart-backend/pkg/errors"
	"github.com/medikart/medikart-backend/pkg/logger"
	"github.com/medikart/medikart-backend/pkg/messaging"
)

// CreateBillRequest is the payload for recording a supplier invoice
type CreateBillRequest struct {
	BillNo     string            `json:"bill_no" validate:"required"`
	SupplierID *string           `json:"supplier_id,omitempty" validate:"omitempty,uuid"`
	BillDate   *time.Time        `json:"bill_date,omitempty"`
	Items      []BillItemRequest `json:"items" validate:"required,min=1,dive"`
}

// BillItemRequest is one received batch on a bill
type BillItemRequest struct {
	MedicineID   string          `json:"medicine_id" validate:"required,uuid"`
	BatchNo      string          `json:"batch_no" validate:"required"`
	ExpiryDate   *time.Time      `json:"expiry_date,omitempty"`
	Quantity     int             `json:"quantity" validate:"required,gt=0"`
	PurchaseRate decimal.Decimal `json:"purchase_rate"`
	MRP          decimal.Decimal `json:"mrp"`
	Unit         string          `json:"unit,omitempty"`
}

// CreateReturnRequest is the payload for returning stock to a supplier
type CreateReturnRequest struct {
	SupplierID *string             `json:"supplier_id,omitempty" validate:"omitempty,uuid"`
	Reason     *string             `json:"reason,omitempty"`
	Items      []ReturnItemRequest `json:"items" validate:"required,min=1,dive"`
}

// ReturnItemRequest is one returned quantity. BatchNo, when present, selects
// the batch to wind back; without it only the aggregate counter moves.
type ReturnItemRequest struct {
	MedicineID string          `json:"medicine_id" validate:"required,uuid"`
	BatchNo    *string         `json:"batch_no,omitempty"`
	Quantity   int             `json:"quantity" validate:"required,gt=0"`
	Price      decimal.Decimal `json:"price"`
}

// PurchasingService handles purchase bills and purchase returns
type PurchasingService struct {
	db        *database.DB
	bills     *repository.BillRepository
	returns   *repository.PurchaseReturnRepository
	batches   *invrepo.BatchRepository
	medicines *catalogrepo.MedicineRepository
	allocator *invservice.Allocator
	publisher *events.PurchasingEventPublisher
	logger    *logger.Logger
}

// NewPurchasingService creates a new purchasing service
func NewPurchasingService(
	db *database.DB,
	bills *repository.BillRepository,
	returns *repository.PurchaseReturnRepository,
	batches *invrepo.BatchRepository,
	medicines *catalogrepo.MedicineRepository,
	allocator *invservice.Allocator,
	publisher *events.PurchasingEventPublisher,
	log *logger.Logger,
) *PurchasingService {
	return &PurchasingService{
		db:        db,
		bills:     bills,
		returns:   returns,
		batches:   batches,
		medicines: medicines,
		allocator: allocator,
		publisher: publisher,
		logger:    log.WithComponent("purchasing-service"),
	}
}

// CreateBill records a supplier invoice: one batch row per line item, each
// line's quantity added to the medicine's aggregate stock. All or nothing.
func (s *PurchasingService) CreateBill(ctx context.Context, req *CreateBillRequest) (*repository.PurchaseBill, error) {
	bill := &repository.PurchaseBill{
		BillNo:     req.BillNo,
		SupplierID: req.SupplierID,
	}
	if req.BillDate != nil {
		bill.BillDate = *req.BillDate
	}

	total := decimal.Zero
	for _, item := range req.Items {
		total = total.Add(item.PurchaseRate.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	bill.Total = total

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := s.bills.CreateTx(ctx, tx, bill); err != nil {
			return err
		}

		for i := range req.Items {
			item := &req.Items[i]

			if _, err := s.medicines.GetForUpdateTx(ctx, tx, item.MedicineID); err != nil {
				return err
			}

			batch := &invrepo.PurchaseBatch{
				BillID:       bill.ID,
				MedicineID:   item.MedicineID,
				BatchNo:      item.BatchNo,
				ExpiryDate:   item.ExpiryDate,
				Quantity:     item.Quantity,
				PurchaseRate: item.PurchaseRate,
				MRP:          item.MRP,
				Unit:         item.Unit,
			}
			if err := s.batches.CreateTx(ctx, tx, batch); err != nil {
				return err
			}

			if err := s.medicines.AddStockTx(ctx, tx, item.MedicineID, item.Quantity); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("bill_id", bill.ID).
		Str("bill_no", bill.BillNo).
		Int("batch_count", len(req.Items)).
		Msg("purchase bill recorded")

	event := messaging.PurchaseBillRecordedEvent{
		BillID:     bill.ID,
		BatchCount: len(req.Items),
	}
	if bill.SupplierID != nil {
		event.SupplierID = *bill.SupplierID
	}
	s.publisher.BillRecorded(ctx, event)

	return bill, nil
}

// GetBill gets a bill with its batches
func (s *PurchasingService) GetBill(ctx context.Context, id string) (*repository.PurchaseBill, []*invrepo.PurchaseBatch, error) {
	bill, err := s.bills.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	batches, err := s.batches.ListByBill(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	return bill, batches, nil
}

// ListBills lists bills with pagination
func (s *PurchasingService) ListBills(ctx context.Context, page, perPage int) ([]*repository.PurchaseBill, int64, error) {
	return s.bills.List(ctx, page, perPage)
}

// DeleteBill reverses and removes a bill: each batch's received quantity is
// subtracted from the aggregate counter, floored at zero, then the batch rows
// and the header are deleted.
func (s *PurchasingService) DeleteBill(ctx context.Context, id string) error {
	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.bills.GetForUpdateTx(ctx, tx, id); err != nil {
			return err
		}

		batches, err := s.batches.ListByBillTx(ctx, tx, id)
		if err != nil {
			return err
		}

		for _, batch := range batches {
			if err := s.medicines.DeductStockFlooredTx(ctx, tx, batch.MedicineID, batch.Quantity); err != nil {
				return err
			}
		}

		if err := s.batches.DeleteByBillTx(ctx, tx, id); err != nil {
			return err
		}

		return s.bills.DeleteTx(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info().Str("bill_id", id).Msg("purchase bill deleted")
	return nil
}

// CreateReturn records stock going back to a supplier. For items naming a
// batch the batch quantity is wound back, floored at zero. The aggregate
// counter is floored at zero either way.
func (s *PurchasingService) CreateReturn(ctx context.Context, req *CreateReturnRequest) (*repository.PurchaseReturn, error) {
	ret := &repository.PurchaseReturn{
		SupplierID: req.SupplierID,
		Reason:     req.Reason,
	}

	total := decimal.Zero
	for _, item := range req.Items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		ret.Items = append(ret.Items, &repository.PurchaseReturnItem{
			MedicineID: item.MedicineID,
			BatchNo:    item.BatchNo,
			Quantity:   item.Quantity,
			Price:      item.Price,
		})
	}
	ret.Total = total

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		for _, item := range req.Items {
			if item.BatchNo != nil && *item.BatchNo != "" {
				if _, err := s.allocator.ReturnFromBatchTx(ctx, tx, item.MedicineID, *item.BatchNo, item.Quantity); err != nil {
					return err
				}
			} else {
				if _, err := s.medicines.GetForUpdateTx(ctx, tx, item.MedicineID); err != nil {
					return err
				}
				if err := s.medicines.DeductStockFlooredTx(ctx, tx, item.MedicineID, item.Quantity); err != nil {
					return err
				}
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
		Msg("purchase return recorded")

	event := messaging.PurchaseReturnCreatedEvent{
		ReturnID:  ret.ID,
		ItemCount: len(ret.Items),
	}
	if ret.SupplierID != nil {
		event.SupplierID = *ret.SupplierID
	}
	s.publisher.ReturnCreated(ctx, event)

	return ret, nil
}

// ListReturns lists purchase returns with pagination
func (s *PurchasingService) ListReturns(ctx context.Context, page, perPage int) ([]*repository.PurchaseReturn, int64, error) {
	return s.returns.List(ctx, page, perPage)
}

// DeleteReturn undoes a purchase return: each item's quantity goes back onto
// its batch (plain addition) and onto the aggregate counter, then the return
// is removed. Missing returns yield 404.
func (s *PurchasingService) DeleteReturn(ctx context.Context, id string) error {
	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		ret, err := s.returns.GetForUpdateTx(ctx, tx, id)
		if err != nil {
			return err
		}

		for _, item := range ret.Items {
			if item.BatchNo != nil && *item.BatchNo != "" {
				if err := s.allocator.ReinstateBatchTx(ctx, tx, item.MedicineID, *item.BatchNo, item.Quantity); err != nil {
					// the batch may have been deleted with its bill since
					if !errors.IsNotFound(err) {
						return err
					}
					if err := s.medicines.AddStockTx(ctx, tx, item.MedicineID, item.Quantity); err != nil {
						return err
					}
				}
			} else {
				if err := s.medicines.AddStockTx(ctx, tx, item.MedicineID, item.Quantity); err != nil {
					return err
				}
			}
		}

		return s.returns.DeleteTx(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info().Str("return_id", id).Msg("purchase return deleted")
	return nil
}
