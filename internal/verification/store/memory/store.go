// Package memory is the in-memory record store used by unit tests. It
// implements both the plain RecordStore contract and the legacy store's
// generic document accessor, with injectable failures so coordinator
// fallback paths can be exercised without a real outage.
package memory

import (
	"context"
	"fmt"
	"sync"

	verification "verigate/internal/verification/model"
	verstore "verigate/internal/verification/store"
	"verigate/pkg/sentinel"
)

// Store keeps review cycles per user in submission order.
type Store struct {
	mu       sync.RWMutex
	cycles   map[string][]*verification.Record
	userDocs map[string]map[string]any
	nextID   int

	// FailReads / FailWrites, when non-nil, make every read/write fail
	// with the given error.
	FailReads  error
	FailWrites error
}

// New creates an empty in-memory record store.
func New() *Store {
	return &Store{
		cycles:   make(map[string][]*verification.Record),
		userDocs: make(map[string]map[string]any),
	}
}

func (s *Store) Create(ctx context.Context, rec *verification.Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return "", s.FailWrites
	}

	clone := cloneRecord(rec)
	if clone.ID == "" {
		s.nextID++
		clone.ID = fmt.Sprintf("rec-%d", s.nextID)
	}
	s.cycles[rec.UserID] = append(s.cycles[rec.UserID], clone)
	rec.ID = clone.ID
	return clone.ID, nil
}

func (s *Store) GetLatestByUser(ctx context.Context, userID string) (*verification.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailReads != nil {
		return nil, s.FailReads
	}

	cycles := s.cycles[userID]
	if len(cycles) == 0 {
		return nil, fmt.Errorf("verification record for user %s: %w", userID, sentinel.ErrNotFound)
	}
	return cloneRecord(cycles[len(cycles)-1]), nil
}

func (s *Store) Update(ctx context.Context, userID string, u verstore.Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}

	cycles := s.cycles[userID]
	if len(cycles) == 0 {
		return fmt.Errorf("verification record for user %s: %w", userID, sentinel.ErrNotFound)
	}
	rec := cycles[len(cycles)-1]

	if u.Level != nil {
		rec.Level = *u.Level
	}
	if u.Status != nil {
		rec.Status = *u.Status
	}
	if u.ReviewedAt != nil {
		rec.ReviewedAt = u.ReviewedAt
	}
	if u.ReviewerID != nil {
		rec.ReviewerID = u.ReviewerID
	}
	if u.ConfidenceScore != nil {
		rec.ConfidenceScore = u.ConfidenceScore
	}
	if u.BackgroundCheck != nil {
		rec.BackgroundCheck = *u.BackgroundCheck
	}
	if u.RejectionReason != nil {
		rec.RejectionReason = u.RejectionReason
	}
	return nil
}

// GetUserDocument implements the legacy generic-document accessor.
func (s *Store) GetUserDocument(ctx context.Context, userID string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailReads != nil {
		return nil, s.FailReads
	}

	doc, ok := s.userDocs[userID]
	if !ok {
		return nil, fmt.Errorf("legacy user document for user %s: %w", userID, sentinel.ErrNotFound)
	}
	return doc, nil
}

// SetUserDocument seeds a generic user document. Test helper.
func (s *Store) SetUserDocument(userID string, doc map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userDocs[userID] = doc
}

// Cycles returns every cycle stored for a user in submission order. Test
// helper.
func (s *Store) Cycles(userID string) []*verification.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*verification.Record, 0, len(s.cycles[userID]))
	for _, rec := range s.cycles[userID] {
		out = append(out, cloneRecord(rec))
	}
	return out
}

func cloneRecord(rec *verification.Record) *verification.Record {
	clone := *rec
	if rec.DocumentRefs != nil {
		clone.DocumentRefs = make(map[string]string, len(rec.DocumentRefs))
		for k, v := range rec.DocumentRefs {
			clone.DocumentRefs[k] = v
		}
	}
	return &clone
}

var (
	_ verstore.RecordStore = (*Store)(nil)
	_ verstore.LegacyStore = (*Store)(nil)
)
