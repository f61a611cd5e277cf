package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erp/shopledger/internal/application/ledger"
	"github.com/erp/shopledger/internal/domain/partner"
	"github.com/erp/shopledger/internal/infrastructure/cache"
	"github.com/erp/shopledger/internal/infrastructure/config"
	"github.com/erp/shopledger/internal/infrastructure/idgen"
	"github.com/erp/shopledger/internal/infrastructure/lock"
	"github.com/erp/shopledger/internal/infrastructure/persistence"
	"github.com/erp/shopledger/internal/interfaces/http/dto"
	"github.com/erp/shopledger/internal/interfaces/http/handler"
	"github.com/erp/shopledger/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type apiFixture struct {
	engine   *gin.Engine
	customer *partner.Customer
	supplier *partner.Supplier
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database, err := persistence.NewDatabase(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         fmt.Sprintf("file:%s?mode=memory&cache=private", uuid.NewString()),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	require.NoError(t, database.AutoMigrate())
	db := database.DB

	log := zaptest.NewLogger(t)
	opts := ledger.Options{MaxRetries: 3, BatchSize: 50, Logger: log}

	customers := persistence.NewGormCustomerRepository(db)
	suppliers := persistence.NewGormSupplierRepository(db)
	saleRepo := persistence.NewGormSaleRepository(db)
	recoveryRepo := persistence.NewGormRecoveryRepository(db)
	scope := persistence.NewGormTransactionScope(db, "SL")
	locker := lock.NewKeyedMutex(5 * time.Second)
	receipts, err := idgen.NewReceiptGenerator(1, "")
	require.NoError(t, err)
	store := cache.NewInMemoryIdempotencyStore(time.Hour)
	t.Cleanup(func() { _ = store.Close() })

	saleSvc := ledger.NewSaleService(scope, saleRepo, customers, suppliers, locker, opts)
	recoverySvc := ledger.NewRecoveryService(scope, saleRepo, recoveryRepo, customers, receipts, locker, opts)
	recoverySvc.SetIdempotencyStore(store)
	querySvc := ledger.NewQueryService(saleRepo, recoveryRepo, customers, opts)
	migrationSvc := ledger.NewMigrationService(scope, saleRepo, locker, opts)

	engine, err := router.NewEngine(router.EngineConfig{
		HTTP:        config.HTTPConfig{MaxBodySize: 1 << 20, RequestTimeout: 5 * time.Second},
		ServiceName: "shopledger-test",
		Logger:      log,
	}, router.Handlers{
		Sales:      handler.NewSaleHandler(saleSvc, querySvc, log),
		Recoveries: handler.NewRecoveryHandler(recoverySvc, querySvc, migrationSvc, log),
		Health: handler.NewHealthHandler("shopledger", "test", log, handler.ReadinessCheck{
			Name: "database",
			Ping: database.Ping,
		}),
	})
	require.NoError(t, err)

	f := &apiFixture{engine: engine}
	f.customer, err = partner.NewCustomer("Amina Traders", "0300-1234567", "amina@example.com")
	require.NoError(t, err)
	require.NoError(t, customers.Save(context.Background(), f.customer))
	f.supplier, err = partner.NewSupplier("Valley Mills", "", "")
	require.NoError(t, err)
	require.NoError(t, suppliers.Save(context.Background(), f.supplier))
	return f
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var envelope struct {
		Success bool           `json:"success"`
		Data    T              `json:"data"`
		Error   *dto.ErrorInfo `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope), w.Body.String())
	require.True(t, envelope.Success, w.Body.String())
	return envelope.Data
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) dto.ErrorInfo {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	return *resp.Error
}

func (f *apiFixture) createSale(t *testing.T, grand, paid string) ledger.SaleResponse {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/v1/sales", gin.H{
		"customer_id": f.customer.ID,
		"supplier_id": f.supplier.ID,
		"items": []gin.H{{
			"product_id":   uuid.New(),
			"product_name": "Basmati Rice 5kg",
			"quantity":     "1",
			"unit_price":   grand,
			"actual_price": grand,
			"total":        grand,
		}},
		"amount_paid":    paid,
		"payment_method": "cash",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[ledger.SaleResponse](t, w)
}

func (f *apiFixture) recoveryBody(saleID uuid.UUID, amount string) gin.H {
	return gin.H{
		"customer_id":    f.customer.ID,
		"sale_id":        saleID,
		"amount":         amount,
		"payment_method": "cash",
		"received_by":    "staff-7",
	}
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestEngine_RecoveryLifecycle(t *testing.T) {
	f := newAPIFixture(t)

	sale := f.createSale(t, "100", "40")
	assertDecimal(t, "60", sale.OutstandingAmount)
	assert.Equal(t, "partially_paid", sale.RecoveryStatus)

	w := f.do(t, http.MethodPost, "/api/v1/recoveries", f.recoveryBody(sale.ID, "70"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	info := decodeError(t, w)
	assert.Equal(t, dto.ErrCodeAmountExceedsOutstanding, info.Code)
	assert.Contains(t, info.Message, "70")
	assert.Contains(t, info.Message, "60")

	w = f.do(t, http.MethodPost, "/api/v1/recoveries", f.recoveryBody(sale.ID, "60"),
		handler.IdempotencyKeyHeader, "till-3-0001")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	paid := decode[ledger.RecoveryResult](t, w)
	assertDecimal(t, "0", paid.Sale.OutstandingAmount)
	assert.Equal(t, "fully_paid", paid.Sale.RecoveryStatus)
	assert.NotEmpty(t, paid.Recovery.ReceiptNumber)

	w = f.do(t, http.MethodPost, "/api/v1/recoveries", f.recoveryBody(sale.ID, "60"),
		handler.IdempotencyKeyHeader, "till-3-0001")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	replay := decode[ledger.RecoveryResult](t, w)
	assert.True(t, replay.Replayed)
	assert.Equal(t, paid.Recovery.ID, replay.Recovery.ID)

	w = f.do(t, http.MethodPatch, "/api/v1/recoveries/"+paid.Recovery.ID.String()+"/status",
		gin.H{"status": "cancelled", "notes": "cheque bounced"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cancelled := decode[ledger.RecoveryResult](t, w)
	assert.True(t, cancelled.Changed)
	assertDecimal(t, "60", cancelled.Sale.OutstandingAmount)
	assert.Equal(t, "partially_paid", cancelled.Sale.RecoveryStatus)

	w = f.do(t, http.MethodGet, "/api/v1/sales/"+sale.ID.String()+"/recoveries", nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode[ledger.SaleRecoveryHistory](t, w)
	require.Len(t, history.Recoveries, 1)
	assert.Equal(t, "cancelled", history.Recoveries[0].Status)
}

func TestEngine_ListPagination(t *testing.T) {
	f := newAPIFixture(t)
	for i := 0; i < 3; i++ {
		f.createSale(t, "100", "10")
	}
	f.createSale(t, "50", "50")

	w := f.do(t, http.MethodGet, "/api/v1/recoveries/outstanding?limit=2&customer_id="+f.customer.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var page dto.PageResponse[ledger.SaleResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.True(t, page.Success)
	assert.Len(t, page.Data, 2)
	assert.Equal(t, 1, page.CurrentPage)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, int64(3), page.TotalCount)
	assert.True(t, page.HasMore)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.ElementsMatch(t,
		[]string{"success", "data", "current_page", "total_pages", "total_count", "has_more"},
		keys(raw))

	w = f.do(t, http.MethodGet, "/api/v1/recoveries/fully-paid", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, int64(1), page.TotalCount)
	assert.False(t, page.HasMore)

	w = f.do(t, http.MethodGet, "/api/v1/recoveries/outstanding?customer_id="+uuid.NewString(), nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, int64(0), page.TotalCount)
	assert.Empty(t, page.Data)
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestEngine_RequestErrors(t *testing.T) {
	f := newAPIFixture(t)
	sale := f.createSale(t, "100", "0")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{
			name:   "malformed json",
			method: http.MethodPost,
			path:   "/api/v1/recoveries",
			body:   `{"amount":`,
			status: http.StatusBadRequest,
			code:   dto.ErrCodeInvalidJSON,
		},
		{
			name:   "missing received_by",
			method: http.MethodPost,
			path:   "/api/v1/recoveries",
			body: gin.H{
				"customer_id":    f.customer.ID,
				"sale_id":        sale.ID,
				"amount":         "10",
				"payment_method": "cash",
			},
			status: http.StatusBadRequest,
			code:   dto.ErrCodeValidation,
		},
		{
			name:   "zero amount",
			method: http.MethodPost,
			path:   "/api/v1/recoveries",
			body:   f.recoveryBody(sale.ID, "0"),
			status: http.StatusBadRequest,
			code:   dto.ErrCodeValidation,
		},
		{
			name:   "unknown sale",
			method: http.MethodPost,
			path:   "/api/v1/recoveries",
			body:   f.recoveryBody(uuid.New(), "10"),
			status: http.StatusNotFound,
			code:   dto.ErrCodeNotFound,
		},
		{
			name:   "bad sale id",
			method: http.MethodGet,
			path:   "/api/v1/sales/abc",
			status: http.StatusBadRequest,
			code:   dto.ErrCodeInvalidID,
		},
		{
			name:   "missing sale",
			method: http.MethodGet,
			path:   "/api/v1/sales/" + uuid.NewString(),
			status: http.StatusNotFound,
			code:   dto.ErrCodeNotFound,
		},
		{
			name:   "bad customer filter",
			method: http.MethodGet,
			path:   "/api/v1/recoveries/overdue?customer_id=nope",
			status: http.StatusBadRequest,
			code:   dto.ErrCodeInvalidID,
		},
		{
			name:   "limit out of range",
			method: http.MethodGet,
			path:   "/api/v1/recoveries/outstanding?limit=1000",
			status: http.StatusBadRequest,
			code:   dto.ErrCodeValidation,
		},
		{
			name:   "unknown status",
			method: http.MethodPatch,
			path:   "/api/v1/recoveries/" + uuid.NewString() + "/status",
			body:   gin.H{"status": "refunded"},
			status: http.StatusBadRequest,
			code:   dto.ErrCodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			info := decodeError(t, w)
			assert.Equal(t, tt.code, info.Code)
			assert.NotEmpty(t, info.RequestID)
		})
	}

	t.Run("details name the json field", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/v1/recoveries", gin.H{
			"customer_id":    f.customer.ID,
			"sale_id":        sale.ID,
			"amount":         "10",
			"payment_method": "cash",
		})
		info := decodeError(t, w)
		require.Len(t, info.Details, 1)
		assert.Equal(t, "received_by", info.Details[0].Field)
	})
}

func TestEngine_ReadViews(t *testing.T) {
	f := newAPIFixture(t)
	f.createSale(t, "100", "40")
	f.createSale(t, "80", "80")

	w := f.do(t, http.MethodGet, "/api/v1/recoveries/customers/"+f.customer.ID.String()+"/summary", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	summary := decode[ledger.CustomerRecoverySummary](t, w)
	assert.Equal(t, 2, summary.TotalSales)
	assertDecimal(t, "60", summary.TotalOutstanding)
	assert.Equal(t, 1, summary.FullyPaidSales)

	w = f.do(t, http.MethodGet, "/api/v1/recoveries/dashboard", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	dash := decode[ledger.DashboardSummary](t, w)
	assert.Equal(t, 1, dash.Outstanding.Count)
	assertDecimal(t, "60", dash.Outstanding.Amount)
	assert.Equal(t, 1, dash.FullyPaid.Count)

	w = f.do(t, http.MethodPost, "/api/v1/recoveries/migrate", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decode[ledger.MigrationResult](t, w)
	assert.Zero(t, result.Migrated)
}

func TestEngine_Probes(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = f.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(t, http.MethodDelete, "/api/v1/sales/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
