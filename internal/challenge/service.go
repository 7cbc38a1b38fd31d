package challenge

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"

	"verigate/internal/audit"
	"verigate/internal/challenge/store"
	"verigate/pkg/requestcontext"
	"verigate/pkg/sentinel"
)

// ErrCodeMismatch is returned on a wrong code while attempts remain.
var ErrCodeMismatch = errors.New("incorrect code")

// ErrInvalidRequest marks input-validation failures so transports answer
// with a client error instead of a retry hint.
var ErrInvalidRequest = errors.New("invalid challenge request")

// Table is the audited entity name for challenges.
const Table = "challenges"

// Config carries the issuance and verification knobs.
type Config struct {
	CodeTTL     time.Duration
	CodeLength  int
	MaxAttempts int

	// Sliding-window issuance limits, all sharing Window.
	SubjectLimit int
	DeviceLimit  int
	AddressLimit int
	Window       time.Duration

	SweepInterval time.Duration
}

// DefaultConfig returns the production limits.
func DefaultConfig() Config {
	return Config{
		CodeTTL:       5 * time.Minute,
		CodeLength:    6,
		MaxAttempts:   3,
		SubjectLimit:  3,
		DeviceLimit:   5,
		AddressLimit:  10,
		Window:        time.Hour,
		SweepInterval: time.Minute,
	}
}

// IssueRequest asks for a new one-time code.
type IssueRequest struct {
	Subject  string // phone or email
	Purpose  string
	DeviceID string // falls back to the request context when empty
	Address  string // source address; falls back to the request context
}

// IssueResult carries the issued challenge. Code is the plaintext the
// delivery channel sends to the subject; it is never persisted.
type IssueResult struct {
	ChallengeID string
	Code        string
	ExpiresAt   time.Time
}

// VerifyResult identifies what a successful verification proved.
type VerifyResult struct {
	Subject string
	Purpose string
}

// Service issues rate-limited one-time codes and verifies them.
type Service struct {
	store   store.ChallengeStore
	windows store.WindowStore
	auditor *audit.Recorder
	logger  *slog.Logger
	cfg     Config
}

// NewService creates the challenge service. Store and window store are
// required; the audit recorder is required because challenges are a
// governed entity.
func NewService(st store.ChallengeStore, windows store.WindowStore, auditor *audit.Recorder, logger *slog.Logger, cfg Config) (*Service, error) {
	if st == nil {
		return nil, errors.New("challenge store is required")
	}
	if windows == nil {
		return nil, errors.New("window store is required")
	}
	if auditor == nil {
		return nil, errors.New("audit recorder is required")
	}
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 5 * time.Minute
	}
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = 6
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	return &Service{
		store:   st,
		windows: windows,
		auditor: auditor,
		logger:  logger,
		cfg:     cfg,
	}, nil
}

// Issue creates a new pending challenge unless any of the three sliding
// windows (subject, device, source address) is at its limit. All three are
// checked before anything is created; a refusal reports every tripped
// dimension and counts nothing.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	if req.Subject == "" {
		return nil, fmt.Errorf("%w: subject is required", ErrInvalidRequest)
	}
	if req.Purpose == "" {
		return nil, fmt.Errorf("%w: purpose is required", ErrInvalidRequest)
	}
	if req.DeviceID == "" {
		req.DeviceID = requestcontext.DeviceID(ctx)
	}
	if req.Address == "" {
		req.Address = requestcontext.ClientIP(ctx)
	}

	reservations := []store.Reservation{
		{Dimension: DimensionSubject, Key: req.Subject, Limit: s.cfg.SubjectLimit},
	}
	if req.DeviceID != "" {
		reservations = append(reservations, store.Reservation{
			Dimension: DimensionDevice, Key: req.DeviceID, Limit: s.cfg.DeviceLimit,
		})
	}
	if req.Address != "" {
		reservations = append(reservations, store.Reservation{
			Dimension: DimensionAddress, Key: req.Address, Limit: s.cfg.AddressLimit,
		})
	}

	tripped, err := s.windows.ReserveAll(ctx, s.cfg.Window, reservations)
	if err != nil {
		return nil, fmt.Errorf("issuance windows: %w", err)
	}
	if len(tripped) > 0 {
		return nil, &RateLimitedError{Tripped: tripped}
	}

	code, err := generateCode(s.cfg.CodeLength)
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash code: %w", err)
	}

	now := requestcontext.Now(ctx)
	ch := &Challenge{
		Subject:     req.Subject,
		CodeHash:    string(hash),
		Purpose:     req.Purpose,
		DeviceID:    req.DeviceID,
		ExpiresAt:   now.Add(s.cfg.CodeTTL),
		MaxAttempts: s.cfg.MaxAttempts,
		Status:      StatusPending,
		CreatedAt:   now,
	}
	if err := s.store.Create(ctx, ch); err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, Table, ch.ID, audit.OpCreate, nil, map[string]any{
		"subject":   ch.Subject,
		"purpose":   ch.Purpose,
		"deviceId":  ch.DeviceID,
		"expiresAt": ch.ExpiresAt,
		"status":    string(ch.Status),
	}, audit.ActorFromContext(ctx), "challenge issued")

	return &IssueResult{
		ChallengeID: ch.ID,
		Code:        code,
		ExpiresAt:   ch.ExpiresAt,
	}, nil
}

// Verify checks a code against a pending challenge. The attempt counter is
// incremented before correctness is checked, even for the winning attempt,
// so it reflects true usage. Expiry, exhaustion, and mismatch each map to a
// distinct error.
func (s *Service) Verify(ctx context.Context, challengeID, code string) (*VerifyResult, error) {
	if challengeID == "" || code == "" {
		return nil, fmt.Errorf("%w: challenge_id and code are required", ErrInvalidRequest)
	}

	ch, err := s.store.RegisterAttempt(ctx, challengeID)
	if errors.Is(err, sentinel.ErrInvalidState) {
		return nil, s.describeTerminal(ctx, challengeID, err)
	}
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	if now.After(ch.ExpiresAt) {
		s.finish(ctx, ch, StatusExpired, "challenge expired on verify attempt")
		return nil, fmt.Errorf("challenge %s: %w", challengeID, sentinel.ErrExpired)
	}
	if ch.Attempts > ch.MaxAttempts {
		s.finish(ctx, ch, StatusFailed, "challenge attempts exhausted")
		return nil, fmt.Errorf("challenge %s attempts exhausted: %w", challengeID, sentinel.ErrInvalidState)
	}

	if bcrypt.CompareHashAndPassword([]byte(ch.CodeHash), []byte(code)) != nil {
		if ch.Attempts >= ch.MaxAttempts {
			s.finish(ctx, ch, StatusFailed, "challenge attempts exhausted")
		}
		return nil, fmt.Errorf("challenge %s: %w", challengeID, ErrCodeMismatch)
	}

	if err := s.store.Transition(ctx, challengeID, StatusVerified); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			// The sweeper got there first.
			return nil, fmt.Errorf("challenge %s: %w", challengeID, sentinel.ErrExpired)
		}
		return nil, err
	}
	s.auditor.Record(ctx, Table, ch.ID, audit.OpUpdate,
		map[string]any{"status": string(StatusPending)},
		map[string]any{"status": string(StatusVerified), "attempts": ch.Attempts},
		audit.ActorFromContext(ctx), "challenge verified")

	return &VerifyResult{Subject: ch.Subject, Purpose: ch.Purpose}, nil
}

// describeTerminal maps an attempt against a terminal challenge onto the
// error its actual status deserves.
func (s *Service) describeTerminal(ctx context.Context, challengeID string, fallback error) error {
	ch, err := s.store.GetByID(ctx, challengeID)
	if err != nil {
		return fallback
	}
	switch ch.Status {
	case StatusExpired:
		return fmt.Errorf("challenge %s: %w", challengeID, sentinel.ErrExpired)
	case StatusVerified:
		return fmt.Errorf("challenge %s already verified: %w", challengeID, sentinel.ErrInvalidState)
	case StatusFailed:
		return fmt.Errorf("challenge %s attempts exhausted: %w", challengeID, sentinel.ErrInvalidState)
	}
	return fallback
}

// finish moves a challenge to a terminal status, tolerating a lost race
// against another terminal transition.
func (s *Service) finish(ctx context.Context, ch *Challenge, to Status, reason string) {
	err := s.store.Transition(ctx, ch.ID, to)
	if err != nil && !errors.Is(err, sentinel.ErrInvalidState) {
		s.logger.WarnContext(ctx, "challenge transition failed",
			"challenge_id", ch.ID,
			"to", to,
			"error", err,
		)
		return
	}
	if err == nil {
		s.auditor.Record(ctx, Table, ch.ID, audit.OpUpdate,
			map[string]any{"status": string(StatusPending)},
			map[string]any{"status": string(to), "attempts": ch.Attempts},
			audit.ActorFromContext(ctx), reason)
	}
}

// StartSweeper runs the periodic expiry sweep until ctx is canceled. The
// sweep is idempotent and safe next to live verify attempts; it only moves
// pending rows whose deadline has passed.
func (s *Service) StartSweeper(ctx context.Context) {
	interval := s.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				swept, err := s.store.SweepExpired(ctx, time.Now())
				if err != nil {
					s.logger.WarnContext(ctx, "challenge sweep failed", "error", err)
					continue
				}
				if swept > 0 {
					s.logger.InfoContext(ctx, "expired challenges swept", "count", swept)
				}
			}
		}
	}()
}

// generateCode returns a numeric code of the given length from a
// cryptographic source. Leading zeros are allowed.
func generateCode(length int) (string, error) {
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = '0' + byte(n.Int64())
	}
	return string(digits), nil
}
