package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"verigate/internal/verification"
	"verigate/pkg/requestcontext"
	"verigate/pkg/sentinel"
)

// VerificationService is the slice of the pipeline service the transport
// needs.
type VerificationService interface {
	SubmitVerification(ctx context.Context, req verification.SubmitRequest) (*verification.SubmitResult, error)
	GetVerificationStatus(ctx context.Context, userID string) (*verification.Projection, error)
	ReviewVerification(ctx context.Context, req verification.ReviewRequest) (*verification.Projection, error)
}

// KYCHandler serves the verification endpoints.
type KYCHandler struct {
	service VerificationService
	logger  *slog.Logger
}

// NewKYCHandler creates the verification handler.
func NewKYCHandler(service VerificationService, logger *slog.Logger) *KYCHandler {
	return &KYCHandler{service: service, logger: logger}
}

type submitRequest struct {
	Personal     verification.PersonalData `json:"personal_data"`
	DocumentRefs map[string]string         `json:"document_refs"`
	ForceRecheck bool                      `json:"force_recheck,omitempty"`
}

type submitResponse struct {
	Success           bool    `json:"success"`
	RecordID          string  `json:"record_id,omitempty"`
	AutoApproved      bool    `json:"auto_approved"`
	Status            string  `json:"status"`
	Level             string  `json:"level"`
	OverallConfidence float64 `json:"overall_confidence"`
	Reason            string  `json:"reason,omitempty"`
}

func (h *KYCHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: "invalid request body"})
		return
	}

	res, err := h.service.SubmitVerification(r.Context(), verification.SubmitRequest{
		UserID:       requestcontext.UserID(r.Context()),
		Personal:     req.Personal,
		DocumentRefs: req.DocumentRefs,
		ForceRecheck: req.ForceRecheck,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, submitResponse{
		Success:           res.Success,
		RecordID:          res.RecordID,
		AutoApproved:      res.AutoApproved,
		Status:            string(res.Status),
		Level:             string(res.Level),
		OverallConfidence: res.OverallConfidence,
		Reason:            res.Reason,
	})
}

// handleStatus reads verification status. A store outage degrades to a
// not-submitted body rather than a 5xx: the mobile client treats any
// non-200 here as a hard failure, and "temporarily unknown" must render the
// same as "never submitted".
func (h *KYCHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	userID := requestcontext.UserID(r.Context())
	projection, err := h.service.GetVerificationStatus(r.Context(), userID)
	if err != nil {
		if errors.Is(err, verification.ErrInvalidSubmission) {
			writeError(w, err)
			return
		}
		h.logger.ErrorContext(r.Context(), "status read degraded to not_submitted",
			"user_id", userID,
			"error", err,
		)
		projection = verification.NotSubmitted(userID)
	}
	writeJSON(w, http.StatusOK, projection)
}

type reviewRequest struct {
	UserID  string `json:"user_id"`
	Approve bool   `json:"approve"`
	Reason  string `json:"reason,omitempty"`
}

func (h *KYCHandler) handleReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: "invalid request body"})
		return
	}

	projection, err := h.service.ReviewVerification(r.Context(), verification.ReviewRequest{
		UserID:     req.UserID,
		ReviewerID: requestcontext.UserID(r.Context()),
		Approve:    req.Approve,
		Reason:     req.Reason,
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", Message: "no verification cycle for user"})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projection)
}
