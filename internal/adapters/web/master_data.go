package web

import (
	"net/http"

	"warehouse-ledger/internal/app"
)

func (h *Handler) apiCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req app.CreateProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.CreateProduct(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, p)
}

func (h *Handler) apiListProducts(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListProducts(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) apiGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "product")
	if !ok {
		return
	}
	p, err := h.svc.GetProduct(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, p)
}

func (h *Handler) apiCreateWarehouse(w http.ResponseWriter, r *http.Request) {
	var req app.CreatePartyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	wh, err := h.svc.CreateWarehouse(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, wh)
}

func (h *Handler) apiListWarehouses(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListWarehouses(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) apiCreateLocation(w http.ResponseWriter, r *http.Request) {
	warehouseID, ok := pathID(w, r, "warehouse")
	if !ok {
		return
	}
	var req app.CreateLocationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.WarehouseID = warehouseID
	loc, err := h.svc.CreateLocation(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, loc)
}

func (h *Handler) apiListLocations(w http.ResponseWriter, r *http.Request) {
	warehouseID, ok := pathID(w, r, "warehouse")
	if !ok {
		return
	}
	result, err := h.svc.ListLocations(r.Context(), warehouseID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) apiOccupancy(w http.ResponseWriter, r *http.Request) {
	warehouseID, ok := pathID(w, r, "warehouse")
	if !ok {
		return
	}
	result, err := h.svc.GetLocationOccupancy(r.Context(), warehouseID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) apiLocationInventory(w http.ResponseWriter, r *http.Request) {
	locationID, ok := pathID(w, r, "location")
	if !ok {
		return
	}
	result, err := h.svc.ListInventoryRecords(r.Context(), locationID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) apiCreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req app.CreatePartyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sp, err := h.svc.CreateSupplier(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, sp)
}

func (h *Handler) apiCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req app.CreatePartyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.svc.CreateCustomer(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, c)
}

// ── Stock ────────────────────────────────────────────────────────────────────

func (h *Handler) apiGetStock(w http.ResponseWriter, r *http.Request) {
	productID, ok := queryID(w, r, "product_id")
	if !ok {
		return
	}
	warehouseID, ok := queryID(w, r, "warehouse_id")
	if !ok {
		return
	}
	result, err := h.svc.GetStock(r.Context(), productID, warehouseID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) apiLowStock(w http.ResponseWriter, r *http.Request) {
	warehouseID, ok := queryID(w, r, "warehouse_id")
	if !ok {
		return
	}
	result, err := h.svc.ListLowStock(r.Context(), warehouseID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiCheckAvailability always answers 200 with the report; an unavailable line is a result, not an error.
func (h *Handler) apiCheckAvailability(w http.ResponseWriter, r *http.Request) {
	var req app.AvailabilityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	report, err := h.svc.CheckAvailability(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, report)
}

// apiSuggestPlacement previews a put-away. It writes nothing, so no actor is required.
func (h *Handler) apiSuggestPlacement(w http.ResponseWriter, r *http.Request) {
	warehouseID, ok := pathID(w, r, "warehouse")
	if !ok {
		return
	}
	var req app.PlacementRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.WarehouseID = warehouseID
	result, err := h.svc.SuggestPlacement(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}
