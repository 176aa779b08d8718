package web

import (
	"net/http"

	"warehouse-ledger/internal/app"
	"warehouse-ledger/internal/core"
)

func (h *Handler) apiCreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req app.CreateTransferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ActorID = actorIDFromContext(r.Context())
	result, err := h.svc.CreateTransfer(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if result.Rejected() {
		writeRejected(w, r, result.Availability)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result.Transfer)
}

func (h *Handler) apiListTransfers(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListTransfers(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) apiGetTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "transfer")
	if !ok {
		return
	}
	result, err := h.svc.GetTransfer(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Transfer)
}

func (h *Handler) apiCancelTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "transfer")
	if !ok {
		return
	}
	result, err := h.svc.CancelTransfer(r.Context(), id, actorIDFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Transfer)
}

func (h *Handler) apiShipTransfer(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeReceipt(w, r, "transfer")
	if !ok {
		return
	}
	res, err := h.svc.ShipTransfer(r.Context(), req)
	h.writeReceipt(w, r, res, err)
}

func (h *Handler) apiReceiveTransfer(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeReceipt(w, r, "transfer")
	if !ok {
		return
	}
	res, err := h.svc.ReceiveTransfer(r.Context(), req)
	h.writeReceipt(w, r, res, err)
}

func (h *Handler) apiListTransferReceipts(w http.ResponseWriter, r *http.Request) {
	h.listReceipts(w, r, core.ParentTransfer, "transfer")
}
