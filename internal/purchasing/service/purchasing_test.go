package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogrepo "github.com/medikart/medikart-backend/internal/catalog/repository"
	invrepo "github.com/medikart/medikart-backend/internal/inventory/repository"
	invservice "github.com/medikart/medikart-backend/internal/inventory/service"
	"github.com/medikart/medikart-backend/internal/purchasing/repository"
	"github.com/medikart/medikart-backend/internal/purchasing/service"
	"github.com/medikart/medikart-backend/pkg/database"
	"github.com/medikart/medikart-backend/pkg/errors"
	"github.com/medikart/medikart-backend/pkg/logger"
	"github.com/medikart/medikart-backend/pkg/testutil"
)

var batchColumns = []string{
	"id", "bill_id", "medicine_id", "batch_no", "expiry_date",
	"quantity", "sold_qty", "purchase_rate", "mrp", "unit", "created_at",
}

var medicineLockColumns = []string{"id", "name", "gst_rate", "mrp", "stock", "min_stock"}

func newPurchasingService(t *testing.T) (*service.PurchasingService, *testutil.MockDB) {
	mock := testutil.NewMockDB(t)
	log := logger.New("test", "development")
	db := database.FromSqlx(mock.DB, log)

	medicines := catalogrepo.NewMedicineRepository(db)
	batches := invrepo.NewBatchRepository(db)
	allocator := invservice.NewAllocator(batches, medicines, log)
	bills := repository.NewBillRepository(db)
	returns := repository.NewPurchaseReturnRepository(db)

	svc := service.NewPurchasingService(db, bills, returns, batches, medicines, allocator, nil, log)
	return svc, mock
}

func TestPurchasingService_CreateBill(t *testing.T) {
	ctx := context.Background()

	svc, mock := newPurchasingService(t)
	defer mock.Close()

	mock.ExpectBegin()

	mock.ExpectQuery("INSERT INTO purchase_bills").
		WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))

	mock.ExpectQuery("SELECT id, name, gst_rate, mrp, stock, min_stock FROM medicines").
		WithArgs("med-1").
		WillReturnRows(testutil.MockRows(medicineLockColumns...).
			AddRow("med-1", "Paracetamol 500mg", "12", "49.50", 0, 10))

	mock.ExpectQuery("INSERT INTO purchase_items").
		WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))
	mock.ExpectExec("UPDATE medicines SET stock = stock + ").
		WithArgs("med-1", 100).
		WillReturnResult(testutil.RowsAffected(1))

	mock.ExpectCommit()

	expiry := testutil.ExpiringIn(365)
	bill, err := svc.CreateBill(ctx, &service.CreateBillRequest{
		BillNo: "INV-2026-001",
		Items: []service.BillItemRequest{
			{
				MedicineID:   "med-1",
				BatchNo:      "BN-1001",
				ExpiryDate:   expiry,
				Quantity:     100,
				PurchaseRate: decimal.NewFromFloat(32.50),
				MRP:          decimal.NewFromFloat(49.50),
				Unit:         "strip",
			},
		},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, bill.ID)
	assert.Equal(t, "3250", bill.Total.String())

	mock.ExpectationsWereMet(t)
}

func TestPurchasingService_CreateBill_UnknownMedicine(t *testing.T) {
	ctx := context.Background()

	svc, mock := newPurchasingService(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO purchase_bills").
		WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))
	mock.ExpectQuery("SELECT id, name, gst_rate, mrp, stock, min_stock FROM medicines").
		WithArgs("missing").
		WillReturnRows(testutil.MockRows(medicineLockColumns...))
	mock.ExpectRollback()

	_, err := svc.CreateBill(ctx, &service.CreateBillRequest{
		BillNo: "INV-2026-002",
		Items: []service.BillItemRequest{
			{MedicineID: "missing", BatchNo: "BN-1", Quantity: 10},
		},
	})
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	mock.ExpectationsWereMet(t)
}

func TestPurchasingService_DeleteBill(t *testing.T) {
	ctx := context.Background()

	svc, mock := newPurchasingService(t)
	defer mock.Close()

	expiry := *testutil.ExpiringIn(365)

	mock.ExpectBegin()

	mock.ExpectQuery("SELECT * FROM purchase_bills WHERE id = ").
		WithArgs("bill-1").
		WillReturnRows(testutil.MockRows(
			"id", "bill_no", "supplier_id", "bill_date", "total", "created_at").
			AddRow("bill-1", "INV-2026-001", nil, time.Now(), "3250", time.Now()))

	mock.ExpectQuery("SELECT * FROM purchase_items WHERE bill_id = ").
		WithArgs("bill-1").
		WillReturnRows(testutil.MockRows(batchColumns...).
			AddRow("batch-1", "bill-1", "med-1", "BN-1001", expiry, 100, 40, "32.50", "49.50", "strip", time.Now()))

	// the full received quantity comes back off, floored, even though part
	// of the batch has been sold
	mock.ExpectExec("UPDATE medicines SET stock = GREATEST(stock - ").
		WithArgs("med-1", 100).
		WillReturnResult(testutil.RowsAffected(1))

	mock.ExpectExec("DELETE FROM purchase_items WHERE bill_id = ").
		WithArgs("bill-1").
		WillReturnResult(testutil.RowsAffected(1))
	mock.ExpectExec("DELETE FROM purchase_bills WHERE id = ").
		WithArgs("bill-1").
		WillReturnResult(testutil.RowsAffected(1))

	mock.ExpectCommit()

	err := svc.DeleteBill(ctx, "bill-1")
	require.NoError(t, err)

	mock.ExpectationsWereMet(t)
}

func TestPurchasingService_CreateReturn(t *testing.T) {
	ctx := context.Background()

	t.Run("winds back the matching batch, floored at zero", func(t *testing.T) {
		svc, mock := newPurchasingService(t)
		defer mock.Close()

		expiry := *testutil.ExpiringIn(365)

		mock.ExpectBegin()

		mock.ExpectQuery("LOWER(TRIM(batch_no)) = LOWER(TRIM(").
			WithArgs("med-1", "BN-1001").
			WillReturnRows(testutil.MockRows(batchColumns...).
				AddRow("batch-1", "bill-1", "med-1", "BN-1001", expiry, 10, 4, "32.50", "49.50", "strip", time.Now()))

		// returning 25 against a batch holding 10: both updates floor at zero
		mock.ExpectExec("UPDATE purchase_items SET quantity = GREATEST(quantity - ").
			WithArgs("batch-1", 25).
			WillReturnResult(testutil.RowsAffected(1))
		mock.ExpectExec("UPDATE medicines SET stock = GREATEST(stock - ").
			WithArgs("med-1", 25).
			WillReturnResult(testutil.RowsAffected(1))

		mock.ExpectQuery("INSERT INTO returns").
			WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))
		mock.ExpectExec("INSERT INTO return_items").
			WillReturnResult(testutil.RowsAffected(1))

		mock.ExpectCommit()

		batchNo := "BN-1001"
		ret, err := svc.CreateReturn(ctx, &service.CreateReturnRequest{
			Items: []service.ReturnItemRequest{
				{MedicineID: "med-1", BatchNo: &batchNo, Quantity: 25, Price: decimal.NewFromInt(30)},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "750", ret.Total.String())

		mock.ExpectationsWereMet(t)
	})

	t.Run("without a batch label only the aggregate counter moves", func(t *testing.T) {
		svc, mock := newPurchasingService(t)
		defer mock.Close()

		mock.ExpectBegin()

		mock.ExpectQuery("SELECT id, name, gst_rate, mrp, stock, min_stock FROM medicines").
			WithArgs("med-1").
			WillReturnRows(testutil.MockRows(medicineLockColumns...).
				AddRow("med-1", "Paracetamol 500mg", "12", "49.50", 50, 10))
		mock.ExpectExec("UPDATE medicines SET stock = GREATEST(stock - ").
			WithArgs("med-1", 5).
			WillReturnResult(testutil.RowsAffected(1))

		mock.ExpectQuery("INSERT INTO returns").
			WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))
		mock.ExpectExec("INSERT INTO return_items").
			WillReturnResult(testutil.RowsAffected(1))

		mock.ExpectCommit()

		_, err := svc.CreateReturn(ctx, &service.CreateReturnRequest{
			Items: []service.ReturnItemRequest{
				{MedicineID: "med-1", Quantity: 5, Price: decimal.NewFromInt(30)},
			},
		})
		require.NoError(t, err)

		mock.ExpectationsWereMet(t)
	})
}

func TestPurchasingService_DeleteReturn(t *testing.T) {
	ctx := context.Background()

	t.Run("reinstates the batch and the aggregate counter", func(t *testing.T) {
		svc, mock := newPurchasingService(t)
		defer mock.Close()

		expiry := *testutil.ExpiringIn(365)

		mock.ExpectBegin()

		mock.ExpectQuery("FROM returns WHERE id = ").
			WithArgs("ret-1").
			WillReturnRows(testutil.MockRows(
				"id", "source_id", "return_date", "reason", "total", "created_at").
				AddRow("ret-1", nil, time.Now(), nil, "750", time.Now()))
		mock.ExpectQuery("SELECT * FROM return_items").
			WithArgs("ret-1").
			WillReturnRows(testutil.MockRows(
				"id", "return_id", "medicine_id", "batch_no", "quantity", "price").
				AddRow("item-1", "ret-1", "med-1", "BN-1001", 25, "30"))

		mock.ExpectQuery("LOWER(TRIM(batch_no)) = LOWER(TRIM(").
			WithArgs("med-1", "BN-1001").
			WillReturnRows(testutil.MockRows(batchColumns...).
				AddRow("batch-1", "bill-1", "med-1", "BN-1001", expiry, 0, 4, "32.50", "49.50", "strip", time.Now()))
		mock.ExpectExec("UPDATE purchase_items SET quantity = quantity + ").
			WithArgs("batch-1", 25).
			WillReturnResult(testutil.RowsAffected(1))
		mock.ExpectExec("UPDATE medicines SET stock = stock + ").
			WithArgs("med-1", 25).
			WillReturnResult(testutil.RowsAffected(1))

		mock.ExpectExec("DELETE FROM return_items").
			WithArgs("ret-1").
			WillReturnResult(testutil.RowsAffected(1))
		mock.ExpectExec("DELETE FROM returns WHERE id = ").
			WithArgs("ret-1").
			WillReturnResult(testutil.RowsAffected(1))

		mock.ExpectCommit()

		err := svc.DeleteReturn(ctx, "ret-1")
		require.NoError(t, err)

		mock.ExpectationsWereMet(t)
	})

	t.Run("unknown return yields not found", func(t *testing.T) {
		svc, mock := newPurchasingService(t)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectQuery("FROM returns WHERE id = ").
			WithArgs("missing").
			WillReturnRows(testutil.MockRows(
				"id", "source_id", "return_date", "reason", "total", "created_at"))
		mock.ExpectRollback()

		err := svc.DeleteReturn(ctx, "missing")
		require.Error(t, err)
		assert.True(t, errors.IsNotFound(err))

		mock.ExpectationsWereMet(t)
	})
}
