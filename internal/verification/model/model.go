// Package model holds the KYC domain model shared by the verification
// service and its subpackages (stores, coordinator, scorer). The parent
// verification package re-exports every identifier here via aliases, so
// callers outside the verification tree keep using verification.Record
// and friends.
package model

import (
	"fmt"
	"time"
)

// Level is the trust level granted to a user.
type Level string

const (
	LevelNone Level = "none"
	LevelLite Level = "lite"
	LevelFull Level = "full"
)

// Status is the lifecycle state of a verification record.
type Status string

const (
	StatusNotSubmitted  Status = "not_submitted"
	StatusPending       Status = "pending"
	StatusAIVerified    Status = "ai_verified"
	StatusAIFailed      Status = "ai_failed"
	StatusVerified      Status = "verified"
	StatusAdminApproved Status = "admin_approved"
	StatusRejected      Status = "rejected"
)

// Terminal reports whether the status closes a review cycle. A fresh
// submission against a terminal record opens a new cycle instead of
// mutating it.
func (s Status) Terminal() bool {
	switch s {
	case StatusVerified, StatusAdminApproved, StatusRejected:
		return true
	}
	return false
}

// RiskLevel is the background-check risk classification.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// BackgroundCheck is the outcome of the background screening stage.
type BackgroundCheck struct {
	Passed    bool      `json:"passed"`
	RiskLevel RiskLevel `json:"risk_level"`
}

// Record is one verification review cycle for a user. user_id is the
// external identity-provider subject; a user accumulates one row per cycle
// and reads always resolve the latest.
//
// Invariant: Status in {ai_verified, verified, admin_approved} implies
// Level != none.
type Record struct {
	ID              string
	UserID          string
	Level           Level
	Status          Status
	SubmittedAt     time.Time
	ReviewedAt      *time.Time
	ReviewerID      *string // "system_ai" or a human admin id
	ConfidenceScore *float64
	DocumentRefs    map[string]string // slot name -> opaque storage reference
	BackgroundCheck BackgroundCheck
	RejectionReason *string
}

// ReviewerSystemAI is the reviewer id recorded for machine decisions.
const ReviewerSystemAI = "system_ai"

// Well-known document slots. The analyzer needs the front of the identity
// document and the comparator needs the selfie; everything else is carried
// opaquely.
const (
	SlotIDCardFront = "id_card_front"
	SlotIDCardBack  = "id_card_back"
	SlotSelfie      = "selfie"
)

// ProjectionSource identifies which store served a status read.
type ProjectionSource string

const (
	SourceNew    ProjectionSource = "new"
	SourceLegacy ProjectionSource = "legacy"
	SourceNone   ProjectionSource = "none"
)

// Projection is the read-only view handed to callers of status reads. It is
// always well-formed: an absent record projects as not_submitted rather than
// an error.
type Projection struct {
	UserID          string            `json:"user_id"`
	Status          Status            `json:"status"`
	Level           Level             `json:"level"`
	SubmittedAt     *time.Time        `json:"submitted_at,omitempty"`
	ReviewedAt      *time.Time        `json:"reviewed_at,omitempty"`
	ConfidenceScore *float64          `json:"confidence_score,omitempty"`
	DocumentRefs    map[string]string `json:"document_refs,omitempty"`
	BackgroundCheck *BackgroundCheck  `json:"background_check,omitempty"`
	RejectionReason *string           `json:"rejection_reason,omitempty"`
	Source          ProjectionSource  `json:"-"`
}

// NotSubmitted is the projection returned when neither store has a record.
func NotSubmitted(userID string) *Projection {
	return &Projection{
		UserID: userID,
		Status: StatusNotSubmitted,
		Level:  LevelNone,
		Source: SourceNone,
	}
}

// Project builds the caller-facing view of a record.
func Project(r *Record, source ProjectionSource) *Projection {
	submitted := r.SubmittedAt
	p := &Projection{
		UserID:          r.UserID,
		Status:          r.Status,
		Level:           r.Level,
		SubmittedAt:     &submitted,
		ReviewedAt:      r.ReviewedAt,
		ConfidenceScore: r.ConfidenceScore,
		DocumentRefs:    r.DocumentRefs,
		RejectionReason: r.RejectionReason,
		Source:          source,
	}
	if r.BackgroundCheck != (BackgroundCheck{}) {
		bc := r.BackgroundCheck
		p.BackgroundCheck = &bc
	}
	return p
}

// PersonalData is the user-asserted identity a submission must match
// against extracted document fields. Values are PII and must only be
// persisted through the encrypted store boundary.
type PersonalData struct {
	FullName    string `json:"full_name"`
	NationalID  string `json:"national_id"`
	DateOfBirth string `json:"date_of_birth"` // YYYY-MM-DD
	Phone       string `json:"phone,omitempty"`
}

// FieldMismatch is one disagreement between an extracted document field and
// the user-asserted value. Callers get the full list, not a single boolean,
// so partial-acceptance policy stays with the caller.
type FieldMismatch struct {
	Field     string `json:"field"`
	Asserted  string `json:"asserted"`
	Extracted string `json:"extracted"`
}

func (m FieldMismatch) String() string {
	return fmt.Sprintf("%s: asserted %q, document shows %q", m.Field, m.Asserted, m.Extracted)
}
