package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"verigate/internal/challenge"
)

// ChallengeService is the slice of the challenge service the transport
// needs.
type ChallengeService interface {
	Issue(ctx context.Context, req challenge.IssueRequest) (*challenge.IssueResult, error)
	Verify(ctx context.Context, challengeID, code string) (*challenge.VerifyResult, error)
}

// OTPHandler serves the one-time-code endpoints.
type OTPHandler struct {
	service ChallengeService
}

// NewOTPHandler creates the challenge handler.
func NewOTPHandler(service ChallengeService) *OTPHandler {
	return &OTPHandler{service: service}
}

type requestChallengeRequest struct {
	Subject  string `json:"subject"`
	Purpose  string `json:"purpose"`
	DeviceID string `json:"device_id,omitempty"`
}

type requestChallengeResponse struct {
	Success     bool      `json:"success"`
	ChallengeID string    `json:"challenge_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (h *OTPHandler) handleRequest(w http.ResponseWriter, r *http.Request) {
	var req requestChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: "invalid request body"})
		return
	}

	res, err := h.service.Issue(r.Context(), challenge.IssueRequest{
		Subject:  req.Subject,
		Purpose:  req.Purpose,
		DeviceID: req.DeviceID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	// The plaintext code goes to the delivery channel, never into the
	// response.
	writeJSON(w, http.StatusCreated, requestChallengeResponse{
		Success:     true,
		ChallengeID: res.ChallengeID,
		ExpiresAt:   res.ExpiresAt,
	})
}

type verifyChallengeRequest struct {
	ChallengeID string `json:"challenge_id"`
	Code        string `json:"code"`
}

type verifyChallengeResponse struct {
	Success bool   `json:"success"`
	Subject string `json:"subject,omitempty"`
}

func (h *OTPHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: "invalid request body"})
		return
	}

	res, err := h.service.Verify(r.Context(), req.ChallengeID, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, verifyChallengeResponse{
		Success: true,
		Subject: res.Subject,
	})
}
