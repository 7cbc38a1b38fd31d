// Package coordinator owns the VerificationRecord across both backing
// stores during the migration window. Writes go to the new relational store
// first (its id is primary), then best-effort to the legacy document store;
// reads prefer the new store and fall back through the legacy store. The
// cross-store write is explicitly NOT atomic: a legacy divergence is
// surfaced via the audit trail only, never auto-reconciled, and a
// successful fallback read performs no read-repair.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"verigate/internal/audit"
	verification "verigate/internal/verification/model"
	"verigate/internal/verification/metrics"
	"verigate/internal/verification/store"
	"verigate/pkg/sentinel"
)

// Table is the audited entity name for verification records.
const Table = "verification_records"

// Coordinator orchestrates dual writes and preference-with-fallback reads.
type Coordinator struct {
	primary store.RecordStore
	legacy  store.LegacyStore
	auditor *audit.Recorder
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithMetrics attaches pipeline metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// New creates a Coordinator. Both stores and the audit recorder are
// required; the legacy store being unreachable at runtime is tolerated, it
// being unconfigured is not.
func New(primary store.RecordStore, legacy store.LegacyStore, auditor *audit.Recorder, logger *slog.Logger, opts ...Option) (*Coordinator, error) {
	if primary == nil {
		return nil, errors.New("primary record store is required")
	}
	if legacy == nil {
		return nil, errors.New("legacy record store is required")
	}
	if auditor == nil {
		return nil, errors.New("audit recorder is required")
	}
	c := &Coordinator{
		primary: primary,
		legacy:  legacy,
		auditor: auditor,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CreateCycle opens a new review cycle. The new store is written first and
// its generated id becomes the record's primary id; the legacy write is
// best-effort and its failure is non-fatal.
func (c *Coordinator) CreateCycle(ctx context.Context, rec *verification.Record, actor audit.Actor) (string, error) {
	id, err := c.primary.Create(ctx, rec)
	if err != nil {
		c.metrics.IncrementDualWrite("new", "error")
		return "", fmt.Errorf("create verification record: %w", err)
	}
	c.metrics.IncrementDualWrite("new", "ok")
	rec.ID = id

	c.writeLegacy(ctx, rec, actor, func() error {
		_, err := c.legacy.Create(ctx, rec)
		return err
	})

	c.auditor.Record(ctx, Table, id, audit.OpCreate, nil, recordValues(rec), actor, "verification cycle opened")
	return id, nil
}

// ApplyUpdate mutates the latest cycle in both stores. old must be the
// record state before the mutation so the audit diff reflects the change.
// A new-store failure is a hard failure; a legacy failure is logged,
// counted, and audited, but does not fail the operation.
func (c *Coordinator) ApplyUpdate(ctx context.Context, old *verification.Record, u store.Update, actor audit.Actor, reason string) (*verification.Record, error) {
	if err := c.primary.Update(ctx, old.UserID, u); err != nil {
		c.metrics.IncrementDualWrite("new", "error")
		return nil, fmt.Errorf("update verification record: %w", err)
	}
	c.metrics.IncrementDualWrite("new", "ok")

	updated := applyUpdate(old, u)

	c.writeLegacy(ctx, updated, actor, func() error {
		err := c.legacy.Update(ctx, old.UserID, u)
		if errors.Is(err, sentinel.ErrNotFound) {
			// Legacy document missing (pre-migration user); recreate it so
			// legacy readers keep seeing current state.
			_, err = c.legacy.Create(ctx, updated)
		}
		return err
	})

	c.auditor.Record(ctx, Table, updated.ID, audit.OpUpdate, recordValues(old), recordValues(updated), actor, reason)
	return updated, nil
}

// writeLegacy runs the best-effort legacy mutation, recording divergence in
// the log, metrics, and audit trail when it fails.
func (c *Coordinator) writeLegacy(ctx context.Context, rec *verification.Record, actor audit.Actor, fn func() error) {
	if err := fn(); err != nil {
		c.metrics.IncrementDualWrite("legacy", "error")
		c.logger.WarnContext(ctx, "legacy store write failed, stores diverged",
			"user_id", rec.UserID,
			"record_id", rec.ID,
			"error", err,
		)
		c.auditor.Record(ctx, Table, rec.ID, audit.OpUpdate, nil, nil, actor,
			fmt.Sprintf("legacy write failed: %v", err))
		return
	}
	c.metrics.IncrementDualWrite("legacy", "ok")
}

// Latest fetches the latest cycle from the new store only. Write paths use
// it to decide whether a submission opens a new cycle; unlike Read it never
// consults the legacy store, because the new store is the system of record
// for every cycle this service created.
func (c *Coordinator) Latest(ctx context.Context, userID string) (*verification.Record, error) {
	return c.primary.GetLatestByUser(ctx, userID)
}

// Read resolves the latest verification state for a user with store
// preference and fallback:
//
//	new store -> legacy typed document -> legacy generic user document
//	(reshaped through the field mapping) -> not-submitted projection.
//
// Absence anywhere keeps falling back and ultimately yields the
// not-submitted projection. Only the case where every source failed with a
// genuine store error (indistinguishable from outage) returns an error.
func (c *Coordinator) Read(ctx context.Context, userID string) (*verification.Projection, error) {
	rec, newErr := c.primary.GetLatestByUser(ctx, userID)
	if newErr == nil {
		c.metrics.IncrementFallbackRead("new")
		return verification.Project(rec, verification.SourceNew), nil
	}
	newOutage := !errors.Is(newErr, sentinel.ErrNotFound)
	if newOutage {
		c.logger.WarnContext(ctx, "new store read failed, falling back to legacy",
			"user_id", userID,
			"error", newErr,
		)
	}

	rec, legacyErr := c.legacy.GetLatestByUser(ctx, userID)
	if legacyErr == nil {
		c.metrics.IncrementFallbackRead("legacy")
		return verification.Project(rec, verification.SourceLegacy), nil
	}
	legacyOutage := !errors.Is(legacyErr, sentinel.ErrNotFound)

	if !legacyOutage {
		// No typed document; the oldest users only have KYC fields embedded
		// in their generic user document.
		doc, docErr := c.legacy.GetUserDocument(ctx, userID)
		if docErr == nil {
			c.metrics.IncrementFallbackRead("legacy_generic")
			return c.projectGeneric(userID, doc), nil
		}
		if !errors.Is(docErr, sentinel.ErrNotFound) {
			legacyOutage = true
			legacyErr = docErr
		}
	}

	if newOutage && legacyOutage {
		return nil, fmt.Errorf("verification status unavailable: new store: %v: %w", newErr, legacyErr)
	}

	// At least one store answered authoritatively that nothing exists.
	c.metrics.IncrementFallbackRead("none")
	return verification.NotSubmitted(userID), nil
}
