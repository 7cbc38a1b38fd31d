package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	challenge "verigate/internal/challenge/model"
	"verigate/internal/challenge/store"
	"verigate/pkg/sentinel"
)

// Store is the in-memory challenge store for unit tests. Conditional
// semantics match the relational adapter: post-creation mutations require
// the challenge to still be pending.
type Store struct {
	mu         sync.Mutex
	challenges map[string]*challenge.Challenge
}

// NewStore creates an empty in-memory challenge store.
func NewStore() *Store {
	return &Store{challenges: make(map[string]*challenge.Challenge)}
}

func (s *Store) Create(ctx context.Context, ch *challenge.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch.ID == "" {
		ch.ID = uuid.NewString()
	}
	clone := *ch
	s.challenges[ch.ID] = &clone
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*challenge.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.challenges[id]
	if !ok {
		return nil, fmt.Errorf("challenge %s: %w", id, sentinel.ErrNotFound)
	}
	clone := *ch
	return &clone, nil
}

func (s *Store) RegisterAttempt(ctx context.Context, id string) (*challenge.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.challenges[id]
	if !ok {
		return nil, fmt.Errorf("challenge %s: %w", id, sentinel.ErrNotFound)
	}
	if ch.Status != challenge.StatusPending {
		return nil, fmt.Errorf("challenge %s is no longer pending: %w", id, sentinel.ErrInvalidState)
	}
	ch.Attempts++
	clone := *ch
	return &clone, nil
}

func (s *Store) Transition(ctx context.Context, id string, to challenge.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.challenges[id]
	if !ok {
		return fmt.Errorf("challenge %s: %w", id, sentinel.ErrNotFound)
	}
	if ch.Status != challenge.StatusPending {
		return fmt.Errorf("challenge %s is no longer pending: %w", id, sentinel.ErrInvalidState)
	}
	ch.Status = to
	return nil
}

func (s *Store) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var swept int64
	for _, ch := range s.challenges {
		if ch.Status == challenge.StatusPending && !ch.ExpiresAt.After(now) {
			ch.Status = challenge.StatusExpired
			swept++
		}
	}
	return swept, nil
}

var _ store.ChallengeStore = (*Store)(nil)
