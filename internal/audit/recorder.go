package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"verigate/pkg/requestcontext"
)

// Recorder appends audit entries for governed mutations. Audit is an
// observability side channel, not a transactional participant: a failed
// append is logged and swallowed, never propagated to the governed
// operation.
type Recorder struct {
	store  Store
	logger *slog.Logger
}

// NewRecorder creates a Recorder over the given store.
func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

// Record appends one entry. When both oldValues and newValues are supplied
// the diff is computed and attached; a no-op change yields an entry with no
// diff key at all. The returned entry is what was appended (tests assert on
// it); errors never escape.
func (r *Recorder) Record(
	ctx context.Context,
	table, recordID string,
	op Operation,
	oldValues, newValues map[string]any,
	actor Actor,
	reason string,
) *Entry {
	entry := Entry{
		ID:        uuid.NewString(),
		Table:     table,
		RecordID:  recordID,
		Operation: op,
		OldValues: oldValues,
		NewValues: newValues,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Timestamp: requestcontext.Now(ctx),
		RequestID: requestcontext.RequestID(ctx),
		Reason:    reason,
	}

	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		entry.TraceID = sc.TraceID().String()
	}

	if oldValues != nil && newValues != nil {
		entry.Diff = ComputeDiff(oldValues, newValues)
	}

	if err := r.store.Append(ctx, entry); err != nil {
		r.logger.WarnContext(ctx, "audit append failed",
			"table", table,
			"record_id", recordID,
			"operation", string(op),
			"error", err,
		)
	}
	return &entry
}

// List returns the trail for one record, newest first. Consumed by the
// audit-query surface outside this repository.
func (r *Recorder) List(ctx context.Context, table, recordID string) ([]Entry, error) {
	return r.store.ListByRecord(ctx, table, recordID)
}
