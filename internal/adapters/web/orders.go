package web

import (
	"net/http"
	"strings"

	"warehouse-ledger/internal/app"
	"warehouse-ledger/internal/core"
)

// decodeReceipt reads a receipt body and fills the parts that come from the path and headers.
func decodeReceipt(w http.ResponseWriter, r *http.Request, what string) (app.ReceiptRequest, bool) {
	var req app.ReceiptRequest
	id, ok := pathID(w, r, what)
	if !ok {
		return req, false
	}
	if !decodeJSON(w, r, &req) {
		return req, false
	}
	if len(req.Lines) == 0 {
		writeError(w, r, "at least one line is required", "BAD_REQUEST", http.StatusBadRequest)
		return req, false
	}
	req.ParentID = id
	req.ActorID = actorIDFromContext(r.Context())
	req.IdempotencyKey = strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	return req, true
}

func (h *Handler) writeReceipt(w http.ResponseWriter, r *http.Request, res *core.ReceiptResult, err error) {
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	writeJSONStatus(w, status, res)
}

func (h *Handler) listReceipts(w http.ResponseWriter, r *http.Request, parentType core.ReceiptParentType, what string) {
	id, ok := pathID(w, r, what)
	if !ok {
		return
	}
	result, err := h.svc.ListReceipts(r.Context(), parentType, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) getReceipt(w http.ResponseWriter, r *http.Request, dir core.ReceiptDirection) {
	id, ok := pathID(w, r, "receipt")
	if !ok {
		return
	}
	receipt, err := h.svc.GetReceipt(r.Context(), dir, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, receipt)
}

func (h *Handler) apiGetStockInReceipt(w http.ResponseWriter, r *http.Request) {
	h.getReceipt(w, r, core.DirectionIn)
}

func (h *Handler) apiGetStockOutReceipt(w http.ResponseWriter, r *http.Request) {
	h.getReceipt(w, r, core.DirectionOut)
}

// ── Purchase orders ──────────────────────────────────────────────────────────

func (h *Handler) apiCreatePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	var req app.CreatePurchaseOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ActorID = actorIDFromContext(r.Context())
	result, err := h.svc.CreatePurchaseOrder(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result.PurchaseOrder)
}

func (h *Handler) apiListPurchaseOrders(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListPurchaseOrders(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) apiGetPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "purchase order")
	if !ok {
		return
	}
	result, err := h.svc.GetPurchaseOrder(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.PurchaseOrder)
}

func (h *Handler) apiCancelPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "purchase order")
	if !ok {
		return
	}
	result, err := h.svc.CancelPurchaseOrder(r.Context(), id, actorIDFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.PurchaseOrder)
}

func (h *Handler) apiPromotePurchaseOrders(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.PromoteReadyToReceive(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]int{"promoted": n})
}

func (h *Handler) apiReceivePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeReceipt(w, r, "purchase order")
	if !ok {
		return
	}
	res, err := h.svc.ReceivePurchaseOrder(r.Context(), req)
	h.writeReceipt(w, r, res, err)
}

func (h *Handler) apiListPurchaseOrderReceipts(w http.ResponseWriter, r *http.Request) {
	h.listReceipts(w, r, core.ParentPurchaseOrder, "purchase order")
}

// ── Sales orders ─────────────────────────────────────────────────────────────

func (h *Handler) apiCreateSalesOrder(w http.ResponseWriter, r *http.Request) {
	var req app.CreateSalesOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ActorID = actorIDFromContext(r.Context())
	result, err := h.svc.CreateSalesOrder(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if result.Rejected() {
		writeRejected(w, r, result.Availability)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result.SalesOrder)
}

func (h *Handler) apiListSalesOrders(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListSalesOrders(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) apiGetSalesOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "sales order")
	if !ok {
		return
	}
	result, err := h.svc.GetSalesOrder(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.SalesOrder)
}

func (h *Handler) apiCancelSalesOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "sales order")
	if !ok {
		return
	}
	result, err := h.svc.CancelSalesOrder(r.Context(), id, actorIDFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.SalesOrder)
}

func (h *Handler) apiShipSalesOrder(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeReceipt(w, r, "sales order")
	if !ok {
		return
	}
	res, err := h.svc.ShipSalesOrder(r.Context(), req)
	h.writeReceipt(w, r, res, err)
}

func (h *Handler) apiListSalesOrderReceipts(w http.ResponseWriter, r *http.Request) {
	h.listReceipts(w, r, core.ParentSalesOrder, "sales order")
}
