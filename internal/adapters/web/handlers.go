package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"warehouse-ledger/internal/app"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc    app.ApplicationService
	router chi.Router
	logger *zap.Logger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins string, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{svc: svc, logger: logger}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recoverer(logger))
	r.Use(CORS(allowedOrigins))
	r.Use(RequestBodyLimit(1 << 20)) // 1 MB

	r.Get("/api/health", h.health)

	// ── Reads ────────────────────────────────────────────────────────────────
	r.Get("/api/products", h.apiListProducts)
	r.Get("/api/products/{id}", h.apiGetProduct)
	r.Get("/api/warehouses", h.apiListWarehouses)
	r.Get("/api/warehouses/{id}/locations", h.apiListLocations)
	r.Get("/api/warehouses/{id}/occupancy", h.apiOccupancy)
	r.Get("/api/locations/{id}/inventory", h.apiLocationInventory)
	r.Get("/api/stock", h.apiGetStock)
	r.Get("/api/stock/low", h.apiLowStock)
	r.Post("/api/availability", h.apiCheckAvailability)
	r.Post("/api/warehouses/{id}/placements", h.apiSuggestPlacement)

	r.Get("/api/purchase-orders", h.apiListPurchaseOrders)
	r.Get("/api/purchase-orders/{id}", h.apiGetPurchaseOrder)
	r.Get("/api/purchase-orders/{id}/receipts", h.apiListPurchaseOrderReceipts)
	r.Get("/api/sales-orders", h.apiListSalesOrders)
	r.Get("/api/sales-orders/{id}", h.apiGetSalesOrder)
	r.Get("/api/sales-orders/{id}/receipts", h.apiListSalesOrderReceipts)
	r.Get("/api/transfers", h.apiListTransfers)
	r.Get("/api/transfers/{id}", h.apiGetTransfer)
	r.Get("/api/transfers/{id}/receipts", h.apiListTransferReceipts)
	r.Get("/api/receipts/in/{id}", h.apiGetStockInReceipt)
	r.Get("/api/receipts/out/{id}", h.apiGetStockOutReceipt)

	// ── Writes (actor required) ──────────────────────────────────────────────
	r.Group(func(r chi.Router) {
		r.Use(RequireActor)

		r.Post("/api/products", h.apiCreateProduct)
		r.Post("/api/warehouses", h.apiCreateWarehouse)
		r.Post("/api/warehouses/{id}/locations", h.apiCreateLocation)
		r.Post("/api/suppliers", h.apiCreateSupplier)
		r.Post("/api/customers", h.apiCreateCustomer)

		r.Post("/api/purchase-orders", h.apiCreatePurchaseOrder)
		r.Post("/api/purchase-orders/promote", h.apiPromotePurchaseOrders)
		r.Post("/api/purchase-orders/{id}/cancel", h.apiCancelPurchaseOrder)
		r.Post("/api/purchase-orders/{id}/receipts", h.apiReceivePurchaseOrder)

		r.Post("/api/sales-orders", h.apiCreateSalesOrder)
		r.Post("/api/sales-orders/{id}/cancel", h.apiCancelSalesOrder)
		r.Post("/api/sales-orders/{id}/receipts", h.apiShipSalesOrder)

		r.Post("/api/transfers", h.apiCreateTransfer)
		r.Post("/api/transfers/{id}/cancel", h.apiCancelTransfer)
		r.Post("/api/transfers/{id}/shipments", h.apiShipTransfer)
		r.Post("/api/transfers/{id}/receipts", h.apiReceiveTransfer)
	})

	h.router = r
	return r
}

// health reports service status and database reachability.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
	if err := h.svc.Ping(r.Context()); err != nil {
		h.logger.Warn("health check: database unreachable", zap.Error(err))
		writeJSONStatus(w, http.StatusServiceUnavailable, response{Status: "degraded", Database: "unreachable"})
		return
	}
	writeJSON(w, response{Status: "ok", Database: "ok"})
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}

// pathID parses the {id} URL parameter. On failure it writes a 400 and returns false.
func pathID(w http.ResponseWriter, r *http.Request, what string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, r, "invalid "+what+" ID", "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// queryID parses an optional positive integer query parameter; absent means 0.
func queryID(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, true
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		writeError(w, r, "invalid "+name, "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
