// Package legacy implements the record adapter over the legacy document
// store (Redis JSON documents), kept writable during the migration window
// for backward compatibility. The new relational store is the system of
// record; writes here are best-effort.
package legacy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	verification "verigate/internal/verification/model"
	"verigate/internal/verification/store"
	"verigate/pkg/sentinel"
)

const (
	kycKeyPrefix  = "legacy:kyc:"
	userKeyPrefix = "legacy:user:"
)

// Store is the Redis-backed legacy document adapter.
type Store struct {
	client *redis.Client
}

// New creates a legacy document store over the given Redis client.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

// document is the dedicated verification document, stored with the legacy
// snake_case field names.
type document struct {
	Status          string            `json:"kyc_status"`
	Level           string            `json:"kyc_level"`
	SubmittedAt     time.Time         `json:"kyc_submitted_at"`
	ReviewedAt      *time.Time        `json:"kyc_reviewed_at,omitempty"`
	ReviewerID      *string           `json:"kyc_reviewer_id,omitempty"`
	Score           *float64          `json:"kyc_ai_score,omitempty"`
	Documents       map[string]string `json:"kyc_documents,omitempty"`
	BackgroundCheck *backgroundDoc    `json:"kyc_background_check,omitempty"`
	RejectionReason *string           `json:"kyc_rejection_reason,omitempty"`
	RecordID        string            `json:"record_id,omitempty"`
}

type backgroundDoc struct {
	Passed    bool   `json:"passed"`
	RiskLevel string `json:"risk_level"`
}

func (s *Store) Create(ctx context.Context, rec *verification.Record) (string, error) {
	doc := toDocument(rec)
	payload, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal legacy kyc document: %w", err)
	}
	if err := s.client.Set(ctx, kycKeyPrefix+rec.UserID, payload, 0).Err(); err != nil {
		return "", fmt.Errorf("write legacy kyc document: %w", err)
	}
	return rec.ID, nil
}

func (s *Store) GetLatestByUser(ctx context.Context, userID string) (*verification.Record, error) {
	raw, err := s.client.Get(ctx, kycKeyPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("legacy kyc document for user %s: %w", userID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read legacy kyc document: %w", err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal legacy kyc document: %w", err)
	}
	return fromDocument(userID, &doc), nil
}

// Update merges partial fields into the existing document. The legacy store
// has no per-cycle history; the single document always reflects the latest
// cycle.
func (s *Store) Update(ctx context.Context, userID string, u store.Update) error {
	key := kycKeyPrefix + userID

	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("legacy kyc document for user %s: %w", userID, sentinel.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("read legacy kyc document: %w", err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("unmarshal legacy kyc document: %w", err)
	}

	if u.Level != nil {
		doc.Level = string(*u.Level)
	}
	if u.Status != nil {
		doc.Status = string(*u.Status)
	}
	if u.ReviewedAt != nil {
		doc.ReviewedAt = u.ReviewedAt
	}
	if u.ReviewerID != nil {
		doc.ReviewerID = u.ReviewerID
	}
	if u.ConfidenceScore != nil {
		doc.Score = u.ConfidenceScore
	}
	if u.BackgroundCheck != nil {
		doc.BackgroundCheck = &backgroundDoc{
			Passed:    u.BackgroundCheck.Passed,
			RiskLevel: string(u.BackgroundCheck.RiskLevel),
		}
	}
	if u.RejectionReason != nil {
		doc.RejectionReason = u.RejectionReason
	}

	payload, err := json.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("marshal legacy kyc document: %w", err)
	}
	if err := s.client.Set(ctx, key, payload, 0).Err(); err != nil {
		return fmt.Errorf("write legacy kyc document: %w", err)
	}
	return nil
}

// GetUserDocument returns the raw legacy user document. It is the final
// read fallback: when no dedicated verification document exists, the
// coordinator reshapes this blob through the field mapping table.
func (s *Store) GetUserDocument(ctx context.Context, userID string) (map[string]any, error) {
	raw, err := s.client.Get(ctx, userKeyPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("legacy user document for user %s: %w", userID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read legacy user document: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal legacy user document: %w", err)
	}
	return doc, nil
}

func toDocument(rec *verification.Record) *document {
	doc := &document{
		Status:          string(rec.Status),
		Level:           string(rec.Level),
		SubmittedAt:     rec.SubmittedAt,
		ReviewedAt:      rec.ReviewedAt,
		ReviewerID:      rec.ReviewerID,
		Score:           rec.ConfidenceScore,
		Documents:       rec.DocumentRefs,
		RejectionReason: rec.RejectionReason,
		RecordID:        rec.ID,
	}
	if rec.BackgroundCheck != (verification.BackgroundCheck{}) {
		doc.BackgroundCheck = &backgroundDoc{
			Passed:    rec.BackgroundCheck.Passed,
			RiskLevel: string(rec.BackgroundCheck.RiskLevel),
		}
	}
	return doc
}

func fromDocument(userID string, doc *document) *verification.Record {
	rec := &verification.Record{
		ID:              doc.RecordID,
		UserID:          userID,
		Level:           verification.Level(doc.Level),
		Status:          verification.Status(doc.Status),
		SubmittedAt:     doc.SubmittedAt,
		ReviewedAt:      doc.ReviewedAt,
		ReviewerID:      doc.ReviewerID,
		ConfidenceScore: doc.Score,
		DocumentRefs:    doc.Documents,
		RejectionReason: doc.RejectionReason,
	}
	if doc.BackgroundCheck != nil {
		rec.BackgroundCheck = verification.BackgroundCheck{
			Passed:    doc.BackgroundCheck.Passed,
			RiskLevel: verification.RiskLevel(doc.BackgroundCheck.RiskLevel),
		}
	}
	return rec
}

var _ store.LegacyStore = (*Store)(nil)
