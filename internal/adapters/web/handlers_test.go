package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"warehouse-ledger/internal/app"
	"warehouse-ledger/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService implements only what each test needs; calling anything else panics
// through the nil embedded interface and the Recoverer turns that into a 500.
type fakeService struct {
	app.ApplicationService

	pingErr error

	createSO     func(app.CreateSalesOrderRequest) (*app.SalesOrderResult, error)
	getPO        func(int) (*app.PurchaseOrderResult, error)
	receivePO    func(app.ReceiptRequest) (*core.ReceiptResult, error)
	availability func(app.AvailabilityRequest) (*core.AvailabilityReport, error)
	inventory    func(int) (*app.InventoryRecordsResult, error)
	placement    func(app.PlacementRequest) (*app.PlacementResult, error)
}

func (f *fakeService) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeService) CreateSalesOrder(ctx context.Context, req app.CreateSalesOrderRequest) (*app.SalesOrderResult, error) {
	return f.createSO(req)
}

func (f *fakeService) GetPurchaseOrder(ctx context.Context, id int) (*app.PurchaseOrderResult, error) {
	return f.getPO(id)
}

func (f *fakeService) ReceivePurchaseOrder(ctx context.Context, req app.ReceiptRequest) (*core.ReceiptResult, error) {
	return f.receivePO(req)
}

func (f *fakeService) CheckAvailability(ctx context.Context, req app.AvailabilityRequest) (*core.AvailabilityReport, error) {
	return f.availability(req)
}

func (f *fakeService) ListInventoryRecords(ctx context.Context, locationID int) (*app.InventoryRecordsResult, error) {
	return f.inventory(locationID)
}

func (f *fakeService) SuggestPlacement(ctx context.Context, req app.PlacementRequest) (*app.PlacementResult, error) {
	return f.placement(req)
}

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

var (
	actor = map[string]string{"X-Actor-ID": "42"}
	asOf  = time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
)

func TestHealth(t *testing.T) {
	h := NewHandler(&fakeService{}, "", nil)
	rec := do(t, h, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	h = NewHandler(&fakeService{pingErr: errors.New("connection refused")}, "", nil)
	rec = do(t, h, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	h := NewHandler(&fakeService{}, "", nil)
	rec := do(t, h, http.MethodGet, "/api/health", "", map[string]string{"X-Request-ID": "abc-123"})
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))

	rec = do(t, h, http.MethodGet, "/api/health", "", map[string]string{"X-Request-ID": "bad id!"})
	assert.NotEqual(t, "bad id!", rec.Header().Get("X-Request-ID"))
}

func TestWritesRequireActor(t *testing.T) {
	h := NewHandler(&fakeService{}, "", nil)

	rec := do(t, h, http.MethodPost, "/api/sales-orders", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "BAD_REQUEST", decodeError(t, rec).Code)

	rec = do(t, h, http.MethodPost, "/api/sales-orders", `{}`, map[string]string{"X-Actor-ID": "-3"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateSalesOrder(t *testing.T) {
	var got app.CreateSalesOrderRequest
	svc := &fakeService{createSO: func(req app.CreateSalesOrderRequest) (*app.SalesOrderResult, error) {
		got = req
		return &app.SalesOrderResult{SalesOrder: &core.SalesOrder{ID: 9, OrderNumber: "SO-2026-00009"}}, nil
	}}
	h := NewHandler(svc, "", nil)

	body := `{"customer_id":1,"warehouse_id":2,"expected_date":"2026-11-01","lines":[{"product_id":5,"quantity":3}]}`
	rec := do(t, h, http.MethodPost, "/api/sales-orders", body, actor)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 42, got.ActorID)
	assert.Equal(t, 2, got.WarehouseID)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, 3, got.Lines[0].Quantity)
	assert.Contains(t, rec.Body.String(), "SO-2026-00009")
}

func TestCreateSalesOrderRejectedByAvailability(t *testing.T) {
	report := core.NewAvailabilityReport(1, asOf, []core.AvailabilityLine{
		{ProductID: 5, ProductCode: "P-5", Found: true, Requested: 10, Current: 4},
	})
	svc := &fakeService{createSO: func(app.CreateSalesOrderRequest) (*app.SalesOrderResult, error) {
		return &app.SalesOrderResult{Availability: report}, nil
	}}
	h := NewHandler(svc, "", nil)

	rec := do(t, h, http.MethodPost, "/api/sales-orders", `{"lines":[{"product_id":5,"quantity":10}]}`, actor)
	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "INSUFFICIENT_STOCK", resp.Code)
	assert.Equal(t, "insufficient stock for product P-5: available 4, requested 10", resp.Error)
	require.NotNil(t, resp.Availability)
	assert.Equal(t, 4, resp.Availability.Lines[0].Available)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{core.Newf(core.ErrCodeNotFound, "purchase order 7 not found"), http.StatusNotFound, "NOT_FOUND"},
		{core.Newf(core.ErrCodeInvalidQuantity, "bad"), http.StatusUnprocessableEntity, "INVALID_QUANTITY"},
		{core.Newf(core.ErrCodeInvalidRequest, "bad"), http.StatusUnprocessableEntity, "INVALID_REQUEST"},
		{core.Newf(core.ErrCodeIllegalStatusTransition, "no"), http.StatusConflict, "ILLEGAL_STATUS_TRANSITION"},
		{core.Newf(core.ErrCodeNegativeStock, "ledger broke"), http.StatusInternalServerError, "INTERNAL_ERROR"},
		{errors.New("connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			svc := &fakeService{getPO: func(int) (*app.PurchaseOrderResult, error) { return nil, tc.err }}
			rec := do(t, NewHandler(svc, "", nil), http.MethodGet, "/api/purchase-orders/7", "", nil)
			assert.Equal(t, tc.status, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tc.code, resp.Code)
			if tc.status == http.StatusInternalServerError {
				assert.Equal(t, "internal server error", resp.Error)
			}
		})
	}
}

func TestInvalidPathID(t *testing.T) {
	h := NewHandler(&fakeService{}, "", nil)
	rec := do(t, h, http.MethodGet, "/api/purchase-orders/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReceivePurchaseOrder(t *testing.T) {
	var got app.ReceiptRequest
	replay := false
	svc := &fakeService{receivePO: func(req app.ReceiptRequest) (*core.ReceiptResult, error) {
		got = req
		if req.Lines[0].Quantity > 100 {
			return nil, core.Newf(core.ErrCodeCapacityExceeded, "insufficient location capacity")
		}
		return &core.ReceiptResult{ReceiptID: 3, ReceiptNumber: "GR-2026-00003", Replayed: replay}, nil
	}}
	h := NewHandler(svc, "", nil)
	headers := map[string]string{"X-Actor-ID": "7", "Idempotency-Key": "dock-1"}

	rec := do(t, h, http.MethodPost, "/api/purchase-orders/11/receipts",
		`{"lines":[{"product_id":1,"location_id":4,"quantity":20}]}`, headers)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 11, got.ParentID)
	assert.Equal(t, 7, got.ActorID)
	assert.Equal(t, "dock-1", got.IdempotencyKey)
	assert.Equal(t, 4, got.Lines[0].LocationID)

	replay = true
	rec = do(t, h, http.MethodPost, "/api/purchase-orders/11/receipts",
		`{"lines":[{"product_id":1,"location_id":4,"quantity":20}]}`, headers)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/purchase-orders/11/receipts",
		`{"lines":[{"product_id":1,"quantity":500}]}`, headers)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CAPACITY_EXCEEDED", decodeError(t, rec).Code)

	rec = do(t, h, http.MethodPost, "/api/purchase-orders/11/receipts", `{"lines":[]}`, headers)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckAvailabilityReturnsReport(t *testing.T) {
	svc := &fakeService{availability: func(req app.AvailabilityRequest) (*core.AvailabilityReport, error) {
		assert.Equal(t, "2026-12-01", req.AsOf)
		return core.NewAvailabilityReport(req.WarehouseID, asOf, []core.AvailabilityLine{
			{ProductID: 1, ProductCode: "P-1", Found: true, Requested: 2, Current: 5},
		}), nil
	}}
	h := NewHandler(svc, "", nil)
	rec := do(t, h, http.MethodPost, "/api/availability",
		`{"warehouse_id":1,"as_of":"2026-12-01","lines":[{"product_id":1,"quantity":2}]}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var report core.AvailabilityReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.True(t, report.Valid)
	assert.Equal(t, 5, report.Lines[0].Available)
}

func TestPanicIsRecovered(t *testing.T) {
	h := NewHandler(&fakeService{}, "", nil)
	// ListProducts is not implemented by the fake and panics.
	rec := do(t, h, http.MethodGet, "/api/products", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", decodeError(t, rec).Code)
}

func TestLocationInventory(t *testing.T) {
	svc := &fakeService{inventory: func(id int) (*app.InventoryRecordsResult, error) {
		if id != 4 {
			return nil, core.Newf(core.ErrCodeNotFound, "location %d not found", id)
		}
		return &app.InventoryRecordsResult{LocationID: 4, Records: []core.InventoryRecord{
			{ProductID: 1, ProductCode: "P-100", LocationID: 4, Quantity: 30},
		}}, nil
	}}
	h := NewHandler(svc, "", nil)

	rec := do(t, h, http.MethodGet, "/api/locations/4/inventory", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var result app.InventoryRecordsResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Records, 1)
	assert.Equal(t, 30, result.Records[0].Quantity)

	rec = do(t, h, http.MethodGet, "/api/locations/5/inventory", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSuggestPlacement(t *testing.T) {
	var got app.PlacementRequest
	svc := &fakeService{placement: func(req app.PlacementRequest) (*app.PlacementResult, error) {
		got = req
		return &app.PlacementResult{WarehouseID: req.WarehouseID, Placements: []core.Placement{
			{ProductID: 2, LocationID: 1, Quantity: 50},
			{ProductID: 2, LocationID: 2, Quantity: 30},
		}}, nil
	}}
	h := NewHandler(svc, "", nil)

	// Read-only preview: no X-Actor-ID needed.
	rec := do(t, h, http.MethodPost, "/api/warehouses/3/placements",
		`{"lines":[{"product_id":2,"location_id":1,"quantity":80}]}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 3, got.WarehouseID)
	assert.Equal(t, 1, got.Lines[0].LocationID)

	var result app.PlacementResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Placements, 2)
	assert.Equal(t, 30, result.Placements[1].Quantity)
}

func TestCreateSalesOrderKeepsExplicitZeroPrice(t *testing.T) {
	var got app.CreateSalesOrderRequest
	svc := &fakeService{createSO: func(req app.CreateSalesOrderRequest) (*app.SalesOrderResult, error) {
		got = req
		return &app.SalesOrderResult{SalesOrder: &core.SalesOrder{ID: 1}}, nil
	}}
	h := NewHandler(svc, "", nil)

	body := `{"customer_id":1,"warehouse_id":1,"lines":[{"product_id":5,"quantity":1,"unit_price":0},{"product_id":6,"quantity":1}]}`
	rec := do(t, h, http.MethodPost, "/api/sales-orders", body, actor)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, got.Lines, 2)
	assert.True(t, got.Lines[0].UnitPrice.Valid, "explicit zero is a price")
	assert.True(t, got.Lines[0].UnitPrice.Decimal.IsZero())
	assert.False(t, got.Lines[1].UnitPrice.Valid, "absent price falls back to the default")
}
