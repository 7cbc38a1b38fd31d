// Package audit records an immutable trail entry for every mutation of
// governed entities. Entries are append-only: never updated, never deleted.
package audit

import (
	"context"
	"time"

	"verigate/pkg/requestcontext"
)

// Operation is the kind of governed operation an entry describes.
type Operation string

const (
	OpCreate Operation = "CREATE"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
	OpRead   Operation = "READ"
)

// Actor identifies who performed the governed operation.
type Actor struct {
	ID   string
	Role string // "user", "admin", "system"
}

// ActorFromContext derives the actor from request context values. Falls back
// to "system" when no authenticated caller is present (background sweeps,
// pipeline internals).
func ActorFromContext(ctx context.Context) Actor {
	a := Actor{
		ID:   requestcontext.UserID(ctx),
		Role: requestcontext.ActorRole(ctx),
	}
	if a.ID == "" {
		a.ID = "system"
	}
	if a.Role == "" {
		a.Role = "system"
	}
	return a
}

// FieldChange is one changed field with its serialized before/after values.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// Entry is one immutable audit trail record. Diff is present only when both
// value sets were supplied and at least one field differs; an absent Diff
// means "no observable change", which is distinct from (and the only
// representation of) a no-op update.
type Entry struct {
	ID        string                 `json:"id"`
	Table     string                 `json:"table"`
	RecordID  string                 `json:"record_id"`
	Operation Operation              `json:"operation"`
	OldValues map[string]any         `json:"old_values,omitempty"`
	NewValues map[string]any         `json:"new_values,omitempty"`
	Diff      map[string]FieldChange `json:"diff,omitempty"`
	ActorID   string                 `json:"actor_id"`
	ActorRole string                 `json:"actor_role"`
	Timestamp time.Time              `json:"timestamp"`
	TraceID   string                 `json:"trace_id,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Reason    string                 `json:"reason,omitempty"`
}

// Store is the persistence contract for audit entries. Append-only.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByRecord(ctx context.Context, table, recordID string) ([]Entry, error)
}
