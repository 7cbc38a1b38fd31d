// Package verification holds the KYC domain model and the submission
// pipeline service. The VerificationRecord is exclusively owned by the
// dual-write coordinator; everything else sees read-only projections.
//
// The model types live in the verification/model subpackage so the store,
// coordinator, and scorer subpackages can share them without importing
// this package; the aliases below keep verification.Record and friends as
// the public names.
package verification

import "verigate/internal/verification/model"

// Level is the trust level granted to a user.
type Level = model.Level

const (
	LevelNone = model.LevelNone
	LevelLite = model.LevelLite
	LevelFull = model.LevelFull
)

// Status is the lifecycle state of a verification record.
type Status = model.Status

const (
	StatusNotSubmitted  = model.StatusNotSubmitted
	StatusPending       = model.StatusPending
	StatusAIVerified    = model.StatusAIVerified
	StatusAIFailed      = model.StatusAIFailed
	StatusVerified      = model.StatusVerified
	StatusAdminApproved = model.StatusAdminApproved
	StatusRejected      = model.StatusRejected
)

// RiskLevel is the background-check risk classification.
type RiskLevel = model.RiskLevel

const (
	RiskLow    = model.RiskLow
	RiskMedium = model.RiskMedium
	RiskHigh   = model.RiskHigh
)

// BackgroundCheck is the outcome of the background screening stage.
type BackgroundCheck = model.BackgroundCheck

// Record is one verification review cycle for a user.
type Record = model.Record

// ReviewerSystemAI is the reviewer id recorded for machine decisions.
const ReviewerSystemAI = model.ReviewerSystemAI

// Well-known document slots.
const (
	SlotIDCardFront = model.SlotIDCardFront
	SlotIDCardBack  = model.SlotIDCardBack
	SlotSelfie      = model.SlotSelfie
)

// ProjectionSource identifies which store served a status read.
type ProjectionSource = model.ProjectionSource

const (
	SourceNew    = model.SourceNew
	SourceLegacy = model.SourceLegacy
	SourceNone   = model.SourceNone
)

// Projection is the read-only view handed to callers of status reads.
type Projection = model.Projection

// NotSubmitted is the projection returned when neither store has a record.
var NotSubmitted = model.NotSubmitted

// Project builds the caller-facing view of a record.
var Project = model.Project

// PersonalData is the user-asserted identity a submission must match
// against extracted document fields.
type PersonalData = model.PersonalData

// FieldMismatch is one disagreement between an extracted document field and
// the user-asserted value.
type FieldMismatch = model.FieldMismatch
