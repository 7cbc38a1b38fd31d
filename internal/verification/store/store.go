// Package store defines the verification record persistence contract shared
// by the new relational adapter and the legacy document adapter. The
// dual-write coordinator is the only caller permitted to mutate through
// either adapter.
package store

import (
	"context"
	"time"

	verification "verigate/internal/verification/model"
)

// Update is a partial mutation of the latest review cycle. Nil fields are
// left untouched.
type Update struct {
	Level           *verification.Level
	Status          *verification.Status
	ReviewedAt      *time.Time
	ReviewerID      *string
	ConfidenceScore *float64
	BackgroundCheck *verification.BackgroundCheck
	RejectionReason *string
}

// RecordStore is the adapter contract both backing stores implement.
// GetLatestByUser returns sentinel.ErrNotFound (wrapped) when the user has
// no record; any other error means the store itself failed.
type RecordStore interface {
	Create(ctx context.Context, rec *verification.Record) (string, error)
	GetLatestByUser(ctx context.Context, userID string) (*verification.Record, error)
	Update(ctx context.Context, userID string, u Update) error
}

// LegacyStore extends RecordStore with the generic user-document accessor
// used as the last fallback during the migration window: when the dedicated
// verification document is absent, the coordinator reshapes the raw user
// document through the field-name mapping table.
type LegacyStore interface {
	RecordStore
	GetUserDocument(ctx context.Context, userID string) (map[string]any, error)
}
