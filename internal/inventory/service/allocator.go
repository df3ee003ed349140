package service

import (
	"context"

	"github.com/jmoiron/sqlx"
	catalogrepo "github.com/medikart/medikart-backend/internal/catalog/repository"
	"github.com/medikart/medikart-backend/internal/inventory/repository"
	"github.com/medikart/medikart-backend/pkg/logger"
)

// Allocation records how much of a sale quantity one batch supplied. The
// association is not persisted anywhere: it exists only for the duration of
// the sale transaction, which is why sale reversal can only restore the
// aggregate counter.
type Allocation struct {
	BatchID string `json:"batch_id"`
	BatchNo string `json:"batch_no"`
	Qty     int    `json:"qty"`
}

// Allocator decides which batches a sale quantity is drawn from and applies
// the inverse adjustments for returns. It is stateless: every method operates
// against the caller's transaction and holds nothing across calls.
type Allocator struct {
	batches   *repository.BatchRepository
	medicines *catalogrepo.MedicineRepository
	logger    *logger.Logger
}

// NewAllocator creates a new allocator
func NewAllocator(batches *repository.BatchRepository, medicines *catalogrepo.MedicineRepository, log *logger.Logger) *Allocator {
	return &Allocator{
		batches:   batches,
		medicines: medicines,
		logger:    log,
	}
}

// AvailabilityTx computes the sellable quantity for a medicine inside the
// caller's transaction, locking the open batch rows it reads. When the
// medicine has no batch rows at all, the aggregate stock counter on the
// product master is used instead (legacy stock recorded before batch
// tracking). The locked batches are returned so the caller can feed them
// straight into AllocateFrom without a second read.
func (a *Allocator) AvailabilityTx(ctx context.Context, tx *sqlx.Tx, medicineID string) (int, []*repository.PurchaseBatch, error) {
	batches, err := a.batches.ListOpenForUpdateTx(ctx, tx, medicineID)
	if err != nil {
		return 0, nil, err
	}

	if len(batches) == 0 {
		count, err := a.batches.CountForMedicineTx(ctx, tx, medicineID)
		if err != nil {
			return 0, nil, err
		}
		if count == 0 {
			m, err := a.medicines.GetForUpdateTx(ctx, tx, medicineID)
			if err != nil {
				return 0, nil, err
			}
			return m.Stock, nil, nil
		}
		return 0, nil, nil
	}

	available := 0
	for _, b := range batches {
		available += b.Available()
	}
	return available, batches, nil
}

// AllocateFrom walks the given batches in order and consumes the requested
// quantity, soonest-expiring batch first. Each consumed batch gets one
// sold_qty update inside the caller's transaction. A non-positive quantity is
// a no-op. If the batches run out before the request is satisfied the
// shortfall is left unfulfilled without error: the caller's pre-check is the
// only gate, and bypassing it simply drains every batch to zero.
func (a *Allocator) AllocateFrom(ctx context.Context, tx *sqlx.Tx, batches []*repository.PurchaseBatch, qty int) ([]Allocation, error) {
	if qty <= 0 {
		return nil, nil
	}

	remaining := qty
	var allocations []Allocation

	for _, b := range batches {
		if remaining <= 0 {
			break
		}

		available := b.Available()
		if available <= 0 {
			continue
		}

		useQty := available
		if remaining < available {
			useQty = remaining
		}

		if err := a.batches.AddSoldQtyTx(ctx, tx, b.ID, useQty); err != nil {
			return nil, err
		}

		b.SoldQty += useQty
		remaining -= useQty
		allocations = append(allocations, Allocation{
			BatchID: b.ID,
			BatchNo: b.BatchNo,
			Qty:     useQty,
		})
	}

	if remaining > 0 {
		a.logger.Warn().
			Int("requested", qty).
			Int("unfulfilled", remaining).
			Msg("allocation exhausted all batches with quantity remaining")
	}

	return allocations, nil
}

// AllocateSale loads the open batches for a medicine and consumes the
// requested quantity from them. Convenience wrapper over AvailabilityTx-style
// loading plus AllocateFrom for callers that have not already read the rows.
func (a *Allocator) AllocateSale(ctx context.Context, tx *sqlx.Tx, medicineID string, qty int) ([]Allocation, error) {
	if qty <= 0 {
		return nil, nil
	}

	batches, err := a.batches.ListOpenForUpdateTx(ctx, tx, medicineID)
	if err != nil {
		return nil, err
	}

	return a.AllocateFrom(ctx, tx, batches, qty)
}

// RestoreAggregateTx reinstates sold quantity to the product master's
// aggregate counter. Which batches originally supplied the sale was never
// recorded, so per-batch sold_qty is left untouched; only the aggregate is
// corrected.
func (a *Allocator) RestoreAggregateTx(ctx context.Context, tx *sqlx.Tx, medicineID string, qty int) error {
	if qty <= 0 {
		return nil
	}
	return a.medicines.AddStockTx(ctx, tx, medicineID, qty)
}

// ReturnFromBatchTx applies a purchase return: the matching batch's received
// quantity and the aggregate counter are both decremented, each floored at
// zero. The batch is matched by label, case- and whitespace-insensitively,
// first match winning. The floor is not checked against sold_qty, so a large
// return can leave sold_qty > quantity on the batch.
func (a *Allocator) ReturnFromBatchTx(ctx context.Context, tx *sqlx.Tx, medicineID, batchNo string, qty int) (*repository.PurchaseBatch, error) {
	if qty <= 0 {
		return nil, nil
	}

	batch, err := a.batches.FindByBatchNoTx(ctx, tx, medicineID, batchNo)
	if err != nil {
		return nil, err
	}

	if err := a.batches.DeductQuantityFlooredTx(ctx, tx, batch.ID, qty); err != nil {
		return nil, err
	}

	if err := a.medicines.DeductStockFlooredTx(ctx, tx, medicineID, qty); err != nil {
		return nil, err
	}

	return batch, nil
}

// ReinstateBatchTx undoes a purchase return: the batch's received quantity
// and the aggregate counter are both incremented by plain addition.
func (a *Allocator) ReinstateBatchTx(ctx context.Context, tx *sqlx.Tx, medicineID, batchNo string, qty int) error {
	if qty <= 0 {
		return nil
	}

	batch, err := a.batches.FindByBatchNoTx(ctx, tx, medicineID, batchNo)
	if err != nil {
		return err
	}

	if err := a.batches.AddQuantityTx(ctx, tx, batch.ID, qty); err != nil {
		return err
	}

	return a.medicines.AddStockTx(ctx, tx, medicineID, qty)
}
