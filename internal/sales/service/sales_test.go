package service_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogrepo "github.com/medikart/medikart-backend/internal/catalog/repository"
	invrepo "github.com/medikart/medikart-backend/internal/inventory/repository"
	invservice "github.com/medikart/medikart-backend/internal/inventory/service"
	"github.com/medikart/medikart-backend/internal/sales/repository"
	"github.com/medikart/medikart-backend/internal/sales/service"
	"github.com/medikart/medikart-backend/pkg/config"
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

func newSalesService(t *testing.T, store *config.StoreConfig) (*service.SalesService, *testutil.MockDB) {
	mock := testutil.NewMockDB(t)
	log := logger.New("test", "development")
	db := database.FromSqlx(mock.DB, log)

	medicines := catalogrepo.NewMedicineRepository(db)
	batches := invrepo.NewBatchRepository(db)
	allocator := invservice.NewAllocator(batches, medicines, log)
	sales := repository.NewSaleRepository(db)
	returns := repository.NewSaleReturnRepository(db)

	if store == nil {
		store = &config.StoreConfig{LowStockThreshold: 10, ExpiryWindowDays: 90}
	}

	svc := service.NewSalesService(db, sales, returns, medicines, allocator, store, nil, log)
	return svc, mock
}

func TestSalesService_CreateSale(t *testing.T) {
	ctx := context.Background()
	expiry := *testutil.ExpiringIn(60)

	t.Run("books a sale against the soonest-expiring batches", func(t *testing.T) {
		svc, mock := newSalesService(t, nil)
		defer mock.Close()

		mock.ExpectBegin()

		mock.ExpectQuery("SELECT id, name, gst_rate, mrp, stock, min_stock FROM medicines").
			WithArgs("med-1").
			WillReturnRows(testutil.MockRows(medicineLockColumns...).
				AddRow("med-1", "Paracetamol 500mg", "12", "49.50", 130, 10))

		mock.ExpectQuery("SELECT * FROM purchase_items").
			WithArgs("med-1").
			WillReturnRows(testutil.MockRows(batchColumns...).
				AddRow("batch-1", "bill-1", "med-1", "BN-1", expiry, 50, 20, "32.00", "49.50", "strip", time.Now()).
				AddRow("batch-2", "bill-1", "med-1", "BN-2", expiry, 100, 0, "32.00", "49.50", "strip", time.Now()))

		mock.ExpectQuery("INSERT INTO sales").
			WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))
		mock.ExpectExec("INSERT INTO sale_items").
			WillReturnResult(testutil.RowsAffected(1))

		// 30 from the first batch, 20 from the second
		mock.ExpectExec("UPDATE purchase_items SET sold_qty = sold_qty + ").
			WithArgs("batch-1", 30).
			WillReturnResult(testutil.RowsAffected(1))
		mock.ExpectExec("UPDATE purchase_items SET sold_qty = sold_qty + ").
			WithArgs("batch-2", 20).
			WillReturnResult(testutil.RowsAffected(1))

		mock.ExpectExec("UPDATE medicines SET stock = stock - ").
			WithArgs("med-1", 50).
			WillReturnResult(testutil.RowsAffected(1))

		mock.ExpectCommit()

		sale, err := svc.CreateSale(ctx, &service.CreateSaleRequest{
			Items: []service.SaleItemRequest{
				{MedicineID: "med-1", Quantity: 50, Price: decimal.NewFromInt(40)},
			},
		})
		require.NoError(t, err)

		require.Len(t, sale.Items, 1)
		assert.Equal(t, "2000", sale.Subtotal.String())
		assert.Equal(t, "2000", sale.Total.String())
		assert.NotEmpty(t, sale.ID)

		mock.ExpectationsWereMet(t)
	})

	t.Run("rejects the whole sale on the first shortfall before writing anything", func(t *testing.T) {
		svc, mock := newSalesService(t, nil)
		defer mock.Close()

		mock.ExpectBegin()

		mock.ExpectQuery("SELECT id, name, gst_rate, mrp, stock, min_stock FROM medicines").
			WithArgs("med-1").
			WillReturnRows(testutil.MockRows(medicineLockColumns...).
				AddRow("med-1", "Paracetamol 500mg", "12", "49.50", 5, 10))

		mock.ExpectQuery("SELECT * FROM purchase_items").
			WithArgs("med-1").
			WillReturnRows(testutil.MockRows(batchColumns...).
				AddRow("batch-1", "bill-1", "med-1", "BN-1", expiry, 5, 0, "32.00", "49.50", "strip", time.Now()))

		mock.ExpectRollback()

		_, err := svc.CreateSale(ctx, &service.CreateSaleRequest{
			Items: []service.SaleItemRequest{
				{MedicineID: "med-1", Quantity: 10, Price: decimal.NewFromInt(40)},
			},
		})
		require.Error(t, err)

		var appErr *errors.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, "INSUFFICIENT_STOCK", appErr.Code)
		assert.Equal(t, 400, appErr.StatusCode)
		assert.Contains(t, appErr.Message, "Paracetamol 500mg")
		assert.Contains(t, appErr.Message, "available 5")
		assert.Contains(t, appErr.Message, "requested 10")

		mock.ExpectationsWereMet(t)
	})

	t.Run("multi-line sale is all-or-nothing across medicines", func(t *testing.T) {
		svc, mock := newSalesService(t, nil)
		defer mock.Close()

		mock.ExpectBegin()

		// first medicine has plenty
		mock.ExpectQuery("SELECT id, name, gst_rate, mrp, stock, min_stock FROM medicines").
			WithArgs("med-1").
			WillReturnRows(testutil.MockRows(medicineLockColumns...).
				AddRow("med-1", "Paracetamol 500mg", "12", "49.50", 100, 10))
		mock.ExpectQuery("SELECT * FROM purchase_items").
			WithArgs("med-1").
			WillReturnRows(testutil.MockRows(batchColumns...).
				AddRow("batch-1", "bill-1", "med-1", "BN-1", expiry, 100, 0, "32.00", "49.50", "strip", time.Now()))

		// second medicine falls short, so nothing in the sale goes through
		mock.ExpectQuery("SELECT id, name, gst_rate, mrp, stock, min_stock FROM medicines").
			WithArgs("med-2").
			WillReturnRows(testutil.MockRows(medicineLockColumns...).
				AddRow("med-2", "Ibuprofen 400mg", "12", "30.00", 2, 10))
		mock.ExpectQuery("SELECT * FROM purchase_items").
			WithArgs("med-2").
			WillReturnRows(testutil.MockRows(batchColumns...).
				AddRow("batch-9", "bill-2", "med-2", "BN-9", expiry, 2, 0, "20.00", "30.00", "strip", time.Now()))

		mock.ExpectRollback()

		_, err := svc.CreateSale(ctx, &service.CreateSaleRequest{
			Items: []service.SaleItemRequest{
				{MedicineID: "med-1", Quantity: 10, Price: decimal.NewFromInt(40)},
				{MedicineID: "med-2", Quantity: 5, Price: decimal.NewFromInt(25)},
			},
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrInsufficientStock))

		mock.ExpectationsWereMet(t)
	})

	t.Run("rolls back everything when allocation fails midway", func(t *testing.T) {
		svc, mock := newSalesService(t, nil)
		defer mock.Close()

		mock.ExpectBegin()

		mock.ExpectQuery("SELECT id, name, gst_rate, mrp, stock, min_stock FROM medicines").
			WithArgs("med-1").
			WillReturnRows(testutil.MockRows(medicineLockColumns...).
				AddRow("med-1", "Paracetamol 500mg", "12", "49.50", 130, 10))
		mock.ExpectQuery("SELECT * FROM purchase_items").
			WithArgs("med-1").
			WillReturnRows(testutil.MockRows(batchColumns...).
				AddRow("batch-1", "bill-1", "med-1", "BN-1", expiry, 50, 20, "32.00", "49.50", "strip", time.Now()).
				AddRow("batch-2", "bill-1", "med-1", "BN-2", expiry, 100, 0, "32.00", "49.50", "strip", time.Now()))

		mock.ExpectQuery("INSERT INTO sales").
			WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))
		mock.ExpectExec("INSERT INTO sale_items").
			WillReturnResult(testutil.RowsAffected(1))

		mock.ExpectExec("UPDATE purchase_items SET sold_qty = sold_qty + ").
			WithArgs("batch-1", 30).
			WillReturnResult(testutil.RowsAffected(1))
		mock.ExpectExec("UPDATE purchase_items SET sold_qty = sold_qty + ").
			WithArgs("batch-2", 20).
			WillReturnError(sql.ErrConnDone)

		mock.ExpectRollback()

		_, err := svc.CreateSale(ctx, &service.CreateSaleRequest{
			Items: []service.SaleItemRequest{
				{MedicineID: "med-1", Quantity: 50, Price: decimal.NewFromInt(40)},
			},
		})
		require.Error(t, err)

		mock.ExpectationsWereMet(t)
	})

	t.Run("applies a promo code discount to the total", func(t *testing.T) {
		store := &config.StoreConfig{
			LowStockThreshold: 10,
			PromoCodes:        []config.PromoCode{{Code: "SAVE10", Percent: 10}},
		}
		svc, mock := newSalesService(t, store)
		defer mock.Close()

		mock.ExpectBegin()

		mock.ExpectQuery("SELECT id, name, gst_rate, mrp, stock, min_stock FROM medicines").
			WithArgs("med-1").
			WillReturnRows(testutil.MockRows(medicineLockColumns...).
				AddRow("med-1", "Paracetamol 500mg", "12", "49.50", 100, 10))
		mock.ExpectQuery("SELECT * FROM purchase_items").
			WithArgs("med-1").
			WillReturnRows(testutil.MockRows(batchColumns...).
				AddRow("batch-1", "bill-1", "med-1", "BN-1", expiry, 100, 0, "32.00", "49.50", "strip", time.Now()))

		mock.ExpectQuery("INSERT INTO sales").
			WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))
		mock.ExpectExec("INSERT INTO sale_items").
			WillReturnResult(testutil.RowsAffected(1))
		mock.ExpectExec("UPDATE purchase_items SET sold_qty = sold_qty + ").
			WillReturnResult(testutil.RowsAffected(1))
		mock.ExpectExec("UPDATE medicines SET stock = stock - ").
			WillReturnResult(testutil.RowsAffected(1))

		mock.ExpectCommit()

		promo := "save10"
		sale, err := svc.CreateSale(ctx, &service.CreateSaleRequest{
			PromoCode: &promo,
			Items: []service.SaleItemRequest{
				{MedicineID: "med-1", Quantity: 2, Price: decimal.NewFromInt(100)},
			},
		})
		require.NoError(t, err)

		assert.Equal(t, "200", sale.Subtotal.String())
		assert.Equal(t, "20", sale.Discount.String())
		assert.Equal(t, "180", sale.Total.String())

		mock.ExpectationsWereMet(t)
	})

	t.Run("rejects an unknown promo code without touching the database", func(t *testing.T) {
		svc, mock := newSalesService(t, nil)
		defer mock.Close()

		promo := "NOPE"
		_, err := svc.CreateSale(ctx, &service.CreateSaleRequest{
			PromoCode: &promo,
			Items: []service.SaleItemRequest{
				{MedicineID: "med-1", Quantity: 1},
			},
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrBadRequest))

		mock.ExpectationsWereMet(t)
	})

	t.Run("charges the current MRP when no price is given", func(t *testing.T) {
		svc, mock := newSalesService(t, nil)
		defer mock.Close()

		mock.ExpectBegin()

		mock.ExpectQuery("SELECT id, name, gst_rate, mrp, stock, min_stock FROM medicines").
			WithArgs("med-1").
			WillReturnRows(testutil.MockRows(medicineLockColumns...).
				AddRow("med-1", "Paracetamol 500mg", "12", "49.50", 100, 10))
		mock.ExpectQuery("SELECT * FROM purchase_items").
			WithArgs("med-1").
			WillReturnRows(testutil.MockRows(batchColumns...).
				AddRow("batch-1", "bill-1", "med-1", "BN-1", expiry, 100, 0, "32.00", "49.50", "strip", time.Now()))

		mock.ExpectQuery("INSERT INTO sales").
			WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))
		mock.ExpectExec("INSERT INTO sale_items").
			WillReturnResult(testutil.RowsAffected(1))
		mock.ExpectExec("UPDATE purchase_items SET sold_qty = sold_qty + ").
			WillReturnResult(testutil.RowsAffected(1))
		mock.ExpectExec("UPDATE medicines SET stock = stock - ").
			WillReturnResult(testutil.RowsAffected(1))

		mock.ExpectCommit()

		sale, err := svc.CreateSale(ctx, &service.CreateSaleRequest{
			Items: []service.SaleItemRequest{
				{MedicineID: "med-1", Quantity: 2},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "99", sale.Subtotal.String())

		mock.ExpectationsWereMet(t)
	})
}

func TestSalesService_DeleteSale(t *testing.T) {
	ctx := context.Background()

	t.Run("restores aggregate stock only, never batch sold quantities", func(t *testing.T) {
		svc, mock := newSalesService(t, nil)
		defer mock.Close()

		mock.ExpectBegin()

		mock.ExpectQuery("SELECT * FROM sales WHERE id = ").
			WithArgs("sale-1").
			WillReturnRows(testutil.MockRows(
				"id", "customer_id", "sale_date", "subtotal", "discount", "total", "promo_code", "created_at").
				AddRow("sale-1", nil, time.Now(), "500", "0", "500", nil, time.Now()))

		mock.ExpectQuery("SELECT * FROM sale_items WHERE sale_id = ").
			WithArgs("sale-1").
			WillReturnRows(testutil.MockRows(
				"id", "sale_id", "medicine_id", "quantity", "price", "gst_rate", "line_total").
				AddRow("item-1", "sale-1", "med-1", 30, "10", "12", "300").
				AddRow("item-2", "sale-1", "med-2", 20, "10", "12", "200"))

		// aggregate restore per line; no purchase_items statement appears here,
		// so batch sold_qty stays stale after deletion
		mock.ExpectExec("UPDATE medicines SET stock = stock + ").
			WithArgs("med-1", 30).
			WillReturnResult(testutil.RowsAffected(1))
		mock.ExpectExec("UPDATE medicines SET stock = stock + ").
			WithArgs("med-2", 20).
			WillReturnResult(testutil.RowsAffected(1))

		mock.ExpectExec("DELETE FROM sale_items").
			WithArgs("sale-1").
			WillReturnResult(testutil.RowsAffected(2))
		mock.ExpectExec("DELETE FROM sales").
			WithArgs("sale-1").
			WillReturnResult(testutil.RowsAffected(1))

		mock.ExpectCommit()

		err := svc.DeleteSale(ctx, "sale-1")
		require.NoError(t, err)

		mock.ExpectationsWereMet(t)
	})

	t.Run("unknown sale yields not found", func(t *testing.T) {
		svc, mock := newSalesService(t, nil)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT * FROM sales WHERE id = ").
			WithArgs("missing").
			WillReturnRows(testutil.MockRows(
				"id", "customer_id", "sale_date", "subtotal", "discount", "total", "promo_code", "created_at"))
		mock.ExpectRollback()

		err := svc.DeleteSale(ctx, "missing")
		require.Error(t, err)
		assert.True(t, errors.IsNotFound(err))

		mock.ExpectationsWereMet(t)
	})
}

func TestSalesService_SaleReturns(t *testing.T) {
	ctx := context.Background()

	t.Run("create puts quantities back on the aggregate counter", func(t *testing.T) {
		svc, mock := newSalesService(t, nil)
		defer mock.Close()

		mock.ExpectBegin()

		mock.ExpectExec("UPDATE medicines SET stock = stock + ").
			WithArgs("med-1", 3).
			WillReturnResult(testutil.RowsAffected(1))

		mock.ExpectQuery("INSERT INTO returns").
			WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))
		mock.ExpectExec("INSERT INTO return_items").
			WillReturnResult(testutil.RowsAffected(1))

		mock.ExpectCommit()

		ret, err := svc.CreateSaleReturn(ctx, &service.CreateSaleReturnRequest{
			Items: []service.SaleReturnItemRequest{
				{MedicineID: "med-1", Quantity: 3, Price: decimal.NewFromInt(40)},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "120", ret.Total.String())

		mock.ExpectationsWereMet(t)
	})

	t.Run("delete takes the quantities back off, floored at zero", func(t *testing.T) {
		svc, mock := newSalesService(t, nil)
		defer mock.Close()

		mock.ExpectBegin()

		mock.ExpectQuery("FROM returns WHERE id = ").
			WithArgs("ret-1").
			WillReturnRows(testutil.MockRows(
				"id", "source_id", "return_date", "reason", "total", "created_at").
				AddRow("ret-1", nil, time.Now(), nil, "120", time.Now()))
		mock.ExpectQuery("FROM return_items").
			WithArgs("ret-1").
			WillReturnRows(testutil.MockRows(
				"id", "return_id", "medicine_id", "quantity", "price").
				AddRow("item-1", "ret-1", "med-1", 3, "40"))

		mock.ExpectExec("UPDATE medicines SET stock = GREATEST(stock - ").
			WithArgs("med-1", 3).
			WillReturnResult(testutil.RowsAffected(1))

		mock.ExpectExec("DELETE FROM return_items").
			WithArgs("ret-1").
			WillReturnResult(testutil.RowsAffected(1))
		mock.ExpectExec("DELETE FROM returns").
			WithArgs("ret-1").
			WillReturnResult(testutil.RowsAffected(1))

		mock.ExpectCommit()

		err := svc.DeleteSaleReturn(ctx, "ret-1")
		require.NoError(t, err)

		mock.ExpectationsWereMet(t)
	})
}
