// Package httptransport is the thin HTTP layer. Handlers parse, delegate to
// domain services, and translate errors; business rules stay in the
// services.
package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"verigate/internal/challenge"
	"verigate/internal/verification"
	"verigate/internal/wallet"
	"verigate/pkg/sentinel"
)

type errorResponse struct {
	Error         string   `json:"error"`
	Message       string   `json:"message,omitempty"`
	TrippedLimits []string `json:"tripped_limits,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError translates domain errors into the JSON error envelope. Store
// and infrastructure errors deliberately collapse into a generic retry
// message; the detail lives in the log and audit side channels, not in the
// response body.
func writeError(w http.ResponseWriter, err error) {
	var rateLimited *challenge.RateLimitedError
	if errors.As(err, &rateLimited) {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{
			Error:         "rate_limited",
			Message:       rateLimited.Error(),
			TrippedLimits: rateLimited.Tripped,
		})
		return
	}

	switch {
	case errors.Is(err, verification.ErrInvalidSubmission), errors.Is(err, challenge.ErrInvalidRequest):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: err.Error()})
	case errors.Is(err, challenge.ErrCodeMismatch):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "code_mismatch", Message: "incorrect code"})
	case errors.Is(err, sentinel.ErrExpired):
		writeJSON(w, http.StatusGone, errorResponse{Error: "expired", Message: "challenge has expired"})
	case errors.Is(err, sentinel.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found"})
	case errors.Is(err, sentinel.ErrConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "conflict", Message: err.Error()})
	case errors.Is(err, sentinel.ErrInvalidState):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "invalid_state", Message: err.Error()})
	case errors.Is(err, wallet.ErrInsufficientBalance):
		writeJSON(w, http.StatusPaymentRequired, errorResponse{Error: "insufficient_balance"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "internal",
			Message: "something went wrong, please try again later",
		})
	}
}
