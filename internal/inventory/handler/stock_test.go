package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medikart/medikart-backend/internal/inventory/handler"
	"github.com/medikart/medikart-backend/internal/inventory/repository"
	"github.com/medikart/medikart-backend/pkg/database"
	"github.com/medikart/medikart-backend/pkg/logger"
	"github.com/medikart/medikart-backend/pkg/testutil"
)

var batchColumns = []string{
	"id", "bill_id", "medicine_id", "batch_no", "expiry_date",
	"quantity", "sold_qty", "purchase_rate", "mrp", "unit", "created_at",
}

func newStockRouter(t *testing.T) (*chi.Mux, *testutil.MockDB) {
	mock := testutil.NewMockDB(t)
	log := logger.New("test", "development")
	db := database.FromSqlx(mock.DB, log)

	h := handler.NewStockHandler(repository.NewBatchRepository(db), log)

	r := chi.NewRouter()
	r.Get("/api/stock/batches/{medicineID}", h.ListBatches)
	r.Get("/api/stock/check/{medicineID}/{batchNo}", h.CheckBatch)

	return r, mock
}

// fixed so repeated expectBatchList calls return byte-identical rows
var batchCreatedAt = time.Now()

func expectBatchList(mock *testutil.MockDB, medicineID string) {
	expiry := *testutil.ExpiringIn(30)
	later := *testutil.ExpiringIn(180)

	mock.ExpectQuery("SELECT * FROM purchase_items").
		WithArgs(medicineID).
		WillReturnRows(testutil.MockRows(batchColumns...).
			AddRow("batch-1", "bill-1", medicineID, "BN-1", expiry, 50, 20, "32.00", "49.50", "strip", batchCreatedAt).
			AddRow("batch-2", "bill-2", medicineID, "BN-2", later, 100, 0, "32.00", "49.50", "strip", batchCreatedAt))
}

func TestStockHandler_ListBatches(t *testing.T) {
	r, mock := newStockRouter(t)
	defer mock.Close()

	// listing is read-only: calling it twice issues two identical selects and
	// nothing else
	expectBatchList(mock, "med-1")
	expectBatchList(mock, "med-1")

	var bodies []string
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/stock/batches/med-1", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		bodies = append(bodies, rec.Body.String())
	}

	assert.JSONEq(t, bodies[0], bodies[1])

	var resp struct {
		Success bool `json:"success"`
		Data    []struct {
			ID      string `json:"id"`
			BatchNo string `json:"batch_no"`
			SoldQty int    `json:"sold_qty"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(bodies[0]), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "BN-1", resp.Data[0].BatchNo)

	mock.ExpectationsWereMet(t)
}

func TestStockHandler_CheckBatch(t *testing.T) {
	t.Run("reports the remaining quantity of a batch", func(t *testing.T) {
		r, mock := newStockRouter(t)
		defer mock.Close()

		expiry := *testutil.ExpiringIn(30)
		mock.ExpectQuery("LOWER(TRIM(batch_no)) = LOWER(TRIM(").
			WithArgs("med-1", "bn-1").
			WillReturnRows(testutil.MockRows(batchColumns...).
				AddRow("batch-1", "bill-1", "med-1", "BN-1", expiry, 50, 20, "32.00", "49.50", "strip", time.Now()))

		req := httptest.NewRequest(http.MethodGet, "/api/stock/check/med-1/bn-1", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Data struct {
				Available int `json:"available"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 30, resp.Data.Available)

		mock.ExpectationsWereMet(t)
	})

	t.Run("unknown batch label yields 404", func(t *testing.T) {
		r, mock := newStockRouter(t)
		defer mock.Close()

		mock.ExpectQuery("LOWER(TRIM(batch_no)) = LOWER(TRIM(").
			WithArgs("med-1", "NOPE").
			WillReturnRows(testutil.MockRows(batchColumns...))

		req := httptest.NewRequest(http.MethodGet, "/api/stock/check/med-1/NOPE", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)

		mock.ExpectationsWereMet(t)
	})
}
