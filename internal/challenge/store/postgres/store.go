// Package postgres is the relational challenge store. Every mutation after
// creation is conditional on status = 'pending', which is what keeps the
// sweeper and concurrent verifiers from corrupting each other's writes.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	challenge "verigate/internal/challenge/model"
	"verigate/internal/challenge/store"
	"verigate/pkg/sentinel"
)

// Store is the PostgreSQL-backed challenge adapter.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL challenge store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, ch *challenge.Challenge) error {
	if ch.ID == "" {
		ch.ID = uuid.NewString()
	}

	const query = `
		INSERT INTO challenges
			(id, subject, code_hash, purpose, device_id, expires_at,
			 attempts, max_attempts, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		ch.ID, ch.Subject, ch.CodeHash, ch.Purpose, ch.DeviceID, ch.ExpiresAt,
		ch.Attempts, ch.MaxAttempts, string(ch.Status), ch.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert challenge: %w", err)
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*challenge.Challenge, error) {
	const query = `
		SELECT id, subject, code_hash, purpose, device_id, expires_at,
		       attempts, max_attempts, status, created_at
		FROM challenges
		WHERE id = $1
	`
	return s.scanOne(s.db.QueryRowContext(ctx, query, id), id)
}

func (s *Store) RegisterAttempt(ctx context.Context, id string) (*challenge.Challenge, error) {
	const query = `
		UPDATE challenges
		SET attempts = attempts + 1, updated_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING id, subject, code_hash, purpose, device_id, expires_at,
		          attempts, max_attempts, status, created_at
	`
	ch, err := s.scanOne(s.db.QueryRowContext(ctx, query, id), id)
	if errors.Is(err, sentinel.ErrNotFound) {
		// Either the challenge never existed or it already reached a
		// terminal status. Distinguish so callers can answer precisely.
		if _, getErr := s.GetByID(ctx, id); getErr == nil {
			return nil, fmt.Errorf("challenge %s is no longer pending: %w", id, sentinel.ErrInvalidState)
		}
		return nil, err
	}
	return ch, err
}

func (s *Store) Transition(ctx context.Context, id string, to challenge.Status) error {
	const query = `
		UPDATE challenges
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`
	res, err := s.db.ExecContext(ctx, query, id, string(to))
	if err != nil {
		return fmt.Errorf("transition challenge to %s: %w", to, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition challenge to %s: %w", to, err)
	}
	if affected == 0 {
		return fmt.Errorf("challenge %s is no longer pending: %w", id, sentinel.ErrInvalidState)
	}
	return nil
}

func (s *Store) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `
		UPDATE challenges
		SET status = 'expired', updated_at = now()
		WHERE status = 'pending' AND expires_at <= $1
	`
	res, err := s.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("sweep expired challenges: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep expired challenges: %w", err)
	}
	return affected, nil
}

func (s *Store) scanOne(row *sql.Row, id string) (*challenge.Challenge, error) {
	var (
		ch     challenge.Challenge
		status string
	)
	err := row.Scan(&ch.ID, &ch.Subject, &ch.CodeHash, &ch.Purpose, &ch.DeviceID,
		&ch.ExpiresAt, &ch.Attempts, &ch.MaxAttempts, &status, &ch.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("challenge %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query challenge: %w", err)
	}
	ch.Status = challenge.Status(status)
	return &ch, nil
}

var _ store.ChallengeStore = (*Store)(nil)
