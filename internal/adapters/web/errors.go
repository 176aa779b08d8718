package web

import (
	"encoding/json"
	"net/http"

	"warehouse-ledger/internal/core"

	"go.uber.org/zap"
)

type errorResponse struct {
	Error        string                   `json:"error"`
	Code         string                   `json:"code"`
	RequestID    string                   `json:"request_id,omitempty"`
	Availability *core.AvailabilityReport `json:"availability,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	writeJSONStatus(w, status, errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	})
}

// statusFor maps a business error code to its HTTP status. Codes not listed are internal.
func statusFor(code core.ErrorCode) (int, bool) {
	switch code {
	case core.ErrCodeNotFound:
		return http.StatusNotFound, true
	case core.ErrCodeInvalidQuantity, core.ErrCodeInvalidRequest:
		return http.StatusUnprocessableEntity, true
	case core.ErrCodeInsufficientStock, core.ErrCodeCapacityExceeded, core.ErrCodeIllegalStatusTransition:
		return http.StatusConflict, true
	}
	return http.StatusInternalServerError, false
}

// writeServiceError translates an error returned by the application layer. Business errors keep
// their code and message; anything else is logged and answered with a generic 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := core.CodeOf(err)
	if status, ok := statusFor(code); ok {
		writeError(w, r, err.Error(), string(code), status)
		return
	}
	h.logger.Error("request failed",
		zap.String("requestId", requestIDFromContext(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("code", string(code)),
		zap.Error(err))
	writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
}

// writeRejected answers an intake turned down by the availability check with the full report.
func writeRejected(w http.ResponseWriter, r *http.Request, report *core.AvailabilityReport) {
	err := report.Err()
	code := core.CodeOf(err)
	status, _ := statusFor(code)
	writeJSONStatus(w, status, errorResponse{
		Error:        report.Message,
		Code:         string(code),
		RequestID:    requestIDFromContext(r.Context()),
		Availability: report,
	})
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
