// Package postgres implements the new relational record store, the system
// of record going forward. Each review cycle is its own row; reads resolve
// the latest cycle for a user.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	verification "verigate/internal/verification/model"
	"verigate/internal/verification/store"
	"verigate/pkg/sentinel"
	txcontext "verigate/pkg/tx"
)

// Store is the PostgreSQL-backed record adapter.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL record store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// execer joins an ambient transaction when one is carried in the context.
func (s *Store) execer(ctx context.Context) txcontext.Executor {
	return txcontext.Bind(ctx, s.db)
}

func (s *Store) Create(ctx context.Context, rec *verification.Record) (string, error) {
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}

	refs, err := json.Marshal(rec.DocumentRefs)
	if err != nil {
		return "", fmt.Errorf("marshal document refs: %w", err)
	}

	const query = `
		INSERT INTO verification_records
			(id, user_id, level, status, submitted_at, reviewed_at, reviewer_id,
			 confidence_score, document_refs, background_passed, background_risk, rejection_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		id, rec.UserID, string(rec.Level), string(rec.Status), rec.SubmittedAt,
		rec.ReviewedAt, rec.ReviewerID, rec.ConfidenceScore, refs,
		rec.BackgroundCheck.Passed, string(riskOrDefault(rec.BackgroundCheck.RiskLevel)),
		rec.RejectionReason,
	)
	if err != nil {
		return "", fmt.Errorf("insert verification record: %w", err)
	}

	rec.ID = id
	return id, nil
}

func (s *Store) GetLatestByUser(ctx context.Context, userID string) (*verification.Record, error) {
	const query = `
		SELECT id, user_id, level, status, submitted_at, reviewed_at, reviewer_id,
		       confidence_score, document_refs, background_passed, background_risk, rejection_reason
		FROM verification_records
		WHERE user_id = $1
		ORDER BY submitted_at DESC, created_at DESC
		LIMIT 1
	`
	row := s.execer(ctx).QueryRowContext(ctx, query, userID)

	var (
		rec                 verification.Record
		level, status, risk string
		refs                []byte
	)
	err := row.Scan(&rec.ID, &rec.UserID, &level, &status, &rec.SubmittedAt,
		&rec.ReviewedAt, &rec.ReviewerID, &rec.ConfidenceScore, &refs,
		&rec.BackgroundCheck.Passed, &risk, &rec.RejectionReason)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("verification record for user %s: %w", userID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query latest verification record: %w", err)
	}

	rec.Level = verification.Level(level)
	rec.Status = verification.Status(status)
	rec.BackgroundCheck.RiskLevel = verification.RiskLevel(risk)
	if len(refs) > 0 {
		if err := json.Unmarshal(refs, &rec.DocumentRefs); err != nil {
			return nil, fmt.Errorf("unmarshal document refs: %w", err)
		}
	}
	return &rec, nil
}

func (s *Store) Update(ctx context.Context, userID string, u store.Update) error {
	set := []string{"updated_at = now()"}
	args := []any{userID}
	next := 2

	add := func(column string, value any) {
		set = append(set, column+" = $"+strconv.Itoa(next))
		args = append(args, value)
		next++
	}

	if u.Level != nil {
		add("level", string(*u.Level))
	}
	if u.Status != nil {
		add("status", string(*u.Status))
	}
	if u.ReviewedAt != nil {
		add("reviewed_at", *u.ReviewedAt)
	}
	if u.ReviewerID != nil {
		add("reviewer_id", *u.ReviewerID)
	}
	if u.ConfidenceScore != nil {
		add("confidence_score", *u.ConfidenceScore)
	}
	if u.BackgroundCheck != nil {
		add("background_passed", u.BackgroundCheck.Passed)
		add("background_risk", string(riskOrDefault(u.BackgroundCheck.RiskLevel)))
	}
	if u.RejectionReason != nil {
		add("rejection_reason", *u.RejectionReason)
	}

	query := `
		UPDATE verification_records SET ` + strings.Join(set, ", ") + `
		WHERE id = (
			SELECT id FROM verification_records
			WHERE user_id = $1
			ORDER BY submitted_at DESC, created_at DESC
			LIMIT 1
		)
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update verification record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update verification record: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("verification record for user %s: %w", userID, sentinel.ErrNotFound)
	}
	return nil
}

func riskOrDefault(r verification.RiskLevel) verification.RiskLevel {
	if r == "" {
		return verification.RiskLow
	}
	return r
}

var _ store.RecordStore = (*Store)(nil)
