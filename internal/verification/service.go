package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"verigate/internal/audit"
	"verigate/internal/notify"
	"verigate/internal/verification/coordinator"
	"verigate/internal/verification/guard"
	"verigate/internal/verification/metrics"
	"verigate/internal/verification/providers"
	"verigate/internal/verification/scorer"
	"verigate/internal/verification/store"
	"verigate/internal/wallet"
	"verigate/pkg/requestcontext"
	"verigate/pkg/sentinel"
)

// ErrInvalidSubmission marks input-validation failures so transports can
// answer with a client error instead of a retry hint.
var ErrInvalidSubmission = errors.New("invalid submission")

// SubmitRequest is one verification submission.
type SubmitRequest struct {
	UserID       string
	Personal     PersonalData
	DocumentRefs map[string]string
	// ForceRecheck opens a new cycle even when one is still pending for
	// the user. Without it a pending cycle rejects the submission.
	ForceRecheck bool
}

// SubmitResult is the caller-facing outcome of a submission. Success means
// the pipeline ran to a decision; the decision itself is in Status.
type SubmitResult struct {
	Success           bool
	RecordID          string
	AutoApproved      bool
	Status            Status
	Level             Level
	OverallConfidence float64
	Reason            string
}

// ReviewRequest is a human reviewer's decision on a pending cycle.
type ReviewRequest struct {
	UserID     string
	ReviewerID string
	Approve    bool
	Reason     string
}

// Service runs the verification pipeline: validate, charge the fee, open a
// cycle, gather provider evidence concurrently, score, persist the outcome
// through the dual-write coordinator, and emit the status event.
type Service struct {
	coord     *coordinator.Coordinator
	providers Providers
	guard     guard.Guard
	wallet    *wallet.Service
	notifier  notify.Notifier
	metrics   *metrics.Metrics
	logger    *slog.Logger

	scoreCfg scorer.Config
	timeout  time.Duration
	fee      int64
}

// ServiceConfig carries the pipeline knobs the Service needs.
type ServiceConfig struct {
	Scorer            scorer.Config
	SubmissionTimeout time.Duration
	VerificationFee   int64
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics attaches pipeline metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithWallet enables fee charging. Without a wallet the fee is skipped.
func WithWallet(w *wallet.Service) Option {
	return func(s *Service) { s.wallet = w }
}

// NewService creates the pipeline service. The coordinator, the three core
// providers, the guard, and the notifier are required.
func NewService(coord *coordinator.Coordinator, p Providers, g guard.Guard, n notify.Notifier, cfg ServiceConfig, logger *slog.Logger, opts ...Option) (*Service, error) {
	if coord == nil {
		return nil, errors.New("coordinator is required")
	}
	if p.Analyzer == nil || p.Comparator == nil || p.Liveness == nil {
		return nil, errors.New("analyzer, comparator, and liveness providers are required")
	}
	if g == nil {
		return nil, errors.New("in-flight guard is required")
	}
	if n == nil {
		return nil, errors.New("notifier is required")
	}
	if cfg.SubmissionTimeout <= 0 {
		cfg.SubmissionTimeout = 10 * time.Second
	}
	s := &Service{
		coord:     coord,
		providers: p,
		guard:     g,
		notifier:  n,
		logger:    logger,
		scoreCfg:  cfg.Scorer,
		timeout:   cfg.SubmissionTimeout,
		fee:       cfg.VerificationFee,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SubmitVerification runs the full pipeline for one submission. Submissions
// per user are serialized by the in-flight guard; a second submission while
// one is running is rejected, never interleaved. A pending cycle from an
// earlier submission also rejects unless ForceRecheck is set.
func (s *Service) SubmitVerification(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveSubmitLatency(time.Since(start)) }()

	if err := ValidateSubmission(req.UserID, req.Personal, req.DocumentRefs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSubmission, err)
	}

	// Guard TTL outlasts the provider deadline so a crashed submission
	// cannot wedge the user forever.
	acquired, err := s.guard.Acquire(ctx, req.UserID, s.timeout*2)
	if err != nil {
		return nil, fmt.Errorf("submission guard: %w", err)
	}
	if !acquired {
		return nil, fmt.Errorf("verification already in flight for user: %w", sentinel.ErrConflict)
	}
	defer func() {
		if err := s.guard.Release(context.WithoutCancel(ctx), req.UserID); err != nil {
			s.logger.WarnContext(ctx, "in-flight guard release failed", "user_id", req.UserID, "error", err)
		}
	}()

	latest, err := s.coord.Latest(ctx, req.UserID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, fmt.Errorf("check existing cycle: %w", err)
	}
	if latest != nil && latest.Status == StatusPending && !req.ForceRecheck {
		return nil, fmt.Errorf("a pending verification already exists for user: %w", sentinel.ErrConflict)
	}

	if s.wallet != nil && s.fee > 0 {
		if err := s.wallet.ChargeVerificationFee(ctx, req.UserID, s.fee); err != nil {
			return nil, fmt.Errorf("verification fee: %w", err)
		}
	}

	actor := audit.ActorFromContext(ctx)
	rec := &Record{
		UserID:       req.UserID,
		Level:        LevelNone,
		Status:       StatusPending,
		SubmittedAt:  requestcontext.Now(ctx),
		DocumentRefs: req.DocumentRefs,
	}
	recordID, err := s.coord.CreateCycle(ctx, rec, actor)
	if err != nil {
		return nil, err
	}

	ev, err := gatherEvidence(ctx, s.providers, req.DocumentRefs, req.Personal.NationalID, s.metrics, s.timeout)
	if err != nil {
		attrs := []any{
			"user_id", req.UserID,
			"record_id", recordID,
			"error", err,
		}
		if pe, ok := providers.AsProviderError(err); ok {
			attrs = append(attrs,
				"stage", pe.Stage,
				"category", string(pe.Category),
				"retryable", pe.Retryable,
			)
		}
		s.logger.ErrorContext(ctx, "provider stage failed", attrs...)
		return s.failCycle(ctx, rec, actor, fmt.Sprintf("provider failure: %v", err))
	}
	if stage, stageErrs, failed := ev.FailedStage(); failed {
		reason := fmt.Sprintf("%s stage failed", stage)
		if len(stageErrs) > 0 {
			reason = fmt.Sprintf("%s stage failed: %s", stage, strings.Join(stageErrs, "; "))
		}
		return s.failCycle(ctx, rec, actor, reason)
	}

	outcome := scorer.Decide(scorer.StageResults{
		OCR:        ev.OCR,
		Face:       ev.Face,
		Liveness:   ev.Liveness,
		Mismatches: MatchFields(req.Personal, ev.ExtractedFields()),
	}, s.scoreCfg)

	u := store.Update{
		Level:           &outcome.Level,
		Status:          &outcome.Status,
		ConfidenceScore: &outcome.OverallConfidence,
	}
	if outcome.Status != StatusPending {
		now := requestcontext.Now(ctx)
		reviewer := ReviewerSystemAI
		u.ReviewedAt = &now
		u.ReviewerID = &reviewer
	}
	if outcome.Status == StatusAIFailed {
		u.RejectionReason = &outcome.Reason
	}
	if ev.Background != nil {
		u.BackgroundCheck = &BackgroundCheck{
			Passed:    ev.Background.Passed,
			RiskLevel: RiskLevel(ev.Background.RiskLevel),
		}
	}

	updated, err := s.coord.ApplyUpdate(ctx, rec, u, actor, "pipeline decision")
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementOutcome(string(outcome.Status))
	s.publishStatus(ctx, updated, outcome.OverallConfidence)

	return &SubmitResult{
		Success:           true,
		RecordID:          recordID,
		AutoApproved:      outcome.AutoApproved,
		Status:            outcome.Status,
		Level:             outcome.Level,
		OverallConfidence: outcome.OverallConfidence,
		Reason:            outcome.Reason,
	}, nil
}

// failCycle marks the just-created cycle ai_failed and reports the failure
// to the caller as a result, not an error: the cycle reached a recorded
// decision, it just was not the one the user wanted.
func (s *Service) failCycle(ctx context.Context, rec *Record, actor audit.Actor, reason string) (*SubmitResult, error) {
	status := StatusAIFailed
	level := LevelNone
	now := requestcontext.Now(ctx)
	reviewer := ReviewerSystemAI
	updated, err := s.coord.ApplyUpdate(ctx, rec, store.Update{
		Level:           &level,
		Status:          &status,
		ReviewedAt:      &now,
		ReviewerID:      &reviewer,
		RejectionReason: &reason,
	}, actor, reason)
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementOutcome(string(status))
	s.publishStatus(ctx, updated, 0)

	return &SubmitResult{
		Success:  false,
		RecordID: rec.ID,
		Status:   status,
		Level:    level,
		Reason:   reason,
	}, nil
}

// publishStatus emits the status event on ai_verified/ai_failed
// transitions. Publish failures are logged, never surfaced; notification is
// a side channel.
func (s *Service) publishStatus(ctx context.Context, rec *Record, score float64) {
	if rec.Status != StatusAIVerified && rec.Status != StatusAIFailed {
		return
	}
	event := notify.StatusEvent{
		UserID: rec.UserID,
		Status: string(rec.Status),
		Score:  score,
	}
	if err := s.notifier.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "status event publish failed",
			"user_id", rec.UserID,
			"status", rec.Status,
			"error", err,
		)
	}
}

// GetVerificationStatus resolves the user's latest verification state
// through the coordinator's fallback chain. Absence is a well-formed
// not-submitted projection; only a genuine outage of every source surfaces
// as an error.
func (s *Service) GetVerificationStatus(ctx context.Context, userID string) (*Projection, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidSubmission)
	}
	return s.coord.Read(ctx, userID)
}

// ReviewVerification applies a human reviewer's decision to the user's
// pending cycle. Only pending cycles are reviewable; everything else is an
// invalid-state error.
func (s *Service) ReviewVerification(ctx context.Context, req ReviewRequest) (*Projection, error) {
	if req.UserID == "" || req.ReviewerID == "" {
		return nil, fmt.Errorf("%w: user_id and reviewer_id are required", ErrInvalidSubmission)
	}
	if !req.Approve && strings.TrimSpace(req.Reason) == "" {
		return nil, fmt.Errorf("%w: a rejection requires a reason", ErrInvalidSubmission)
	}

	latest, err := s.coord.Latest(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("load cycle for review: %w", err)
	}
	if latest.Status != StatusPending {
		return nil, fmt.Errorf("cycle is %s, only pending cycles are reviewable: %w", latest.Status, sentinel.ErrInvalidState)
	}

	status := StatusAdminApproved
	level := LevelFull
	reason := "approved by reviewer"
	u := store.Update{
		Level:      &level,
		Status:     &status,
		ReviewerID: &req.ReviewerID,
	}
	now := requestcontext.Now(ctx)
	u.ReviewedAt = &now
	if !req.Approve {
		status = StatusRejected
		level = LevelNone
		reason = req.Reason
		u.RejectionReason = &req.Reason
	}

	updated, err := s.coord.ApplyUpdate(ctx, latest, u, audit.ActorFromContext(ctx), reason)
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementOutcome(string(status))
	return Project(updated, SourceNew), nil
}
