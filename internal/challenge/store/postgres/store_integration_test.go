//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"verigate/internal/challenge"
	"verigate/internal/challenge/store/postgres"
	"verigate/pkg/sentinel"
	"verigate/pkg/testutil/containers"
)

type ChallengeStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
	ctx      context.Context
}

func TestChallengeStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ChallengeStoreSuite))
}

func (s *ChallengeStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = postgres.New(s.postgres.DB)
	s.ctx = context.Background()
}

func (s *ChallengeStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(s.ctx, "challenges"))
}

func (s *ChallengeStoreSuite) create(expiresAt time.Time) *challenge.Challenge {
	ch := &challenge.Challenge{
		Subject:     "+15550100",
		CodeHash:    "$2a$10$fakehashfakehashfakehashfakehashfakehashfakehashfak",
		Purpose:     "phone_verification",
		ExpiresAt:   expiresAt,
		MaxAttempts: 3,
		Status:      challenge.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	s.Require().NoError(s.store.Create(s.ctx, ch))
	return ch
}

func (s *ChallengeStoreSuite) TestRegisterAttempt() {
	ch := s.create(time.Now().Add(5 * time.Minute))

	got, err := s.store.RegisterAttempt(s.ctx, ch.ID)
	s.Require().NoError(err)
	s.Equal(1, got.Attempts)

	got, err = s.store.RegisterAttempt(s.ctx, ch.ID)
	s.Require().NoError(err)
	s.Equal(2, got.Attempts)

	s.Require().NoError(s.store.Transition(s.ctx, ch.ID, challenge.StatusFailed))

	_, err = s.store.RegisterAttempt(s.ctx, ch.ID)
	s.ErrorIs(err, sentinel.ErrInvalidState, "terminal challenges take no more attempts")
}

func (s *ChallengeStoreSuite) TestTransitionIsOneWay() {
	ch := s.create(time.Now().Add(5 * time.Minute))

	s.Require().NoError(s.store.Transition(s.ctx, ch.ID, challenge.StatusVerified))
	err := s.store.Transition(s.ctx, ch.ID, challenge.StatusExpired)
	s.ErrorIs(err, sentinel.ErrInvalidState)

	got, err := s.store.GetByID(s.ctx, ch.ID)
	s.Require().NoError(err)
	s.Equal(challenge.StatusVerified, got.Status)
}

func (s *ChallengeStoreSuite) TestSweepExpired() {
	overdue := s.create(time.Now().Add(-time.Minute))
	fresh := s.create(time.Now().Add(5 * time.Minute))
	verified := s.create(time.Now().Add(-time.Minute))
	s.Require().NoError(s.store.Transition(s.ctx, verified.ID, challenge.StatusVerified))

	swept, err := s.store.SweepExpired(s.ctx, time.Now())
	s.Require().NoError(err)
	s.Equal(int64(1), swept)

	got, err := s.store.GetByID(s.ctx, overdue.ID)
	s.Require().NoError(err)
	s.Equal(challenge.StatusExpired, got.Status)

	got, err = s.store.GetByID(s.ctx, fresh.ID)
	s.Require().NoError(err)
	s.Equal(challenge.StatusPending, got.Status)

	got, err = s.store.GetByID(s.ctx, verified.ID)
	s.Require().NoError(err)
	s.Equal(challenge.StatusVerified, got.Status, "sweep never touches terminal rows")
}

// Exactly one terminal transition wins when a sweep races verifiers.
func (s *ChallengeStoreSuite) TestConcurrentTerminalTransitions() {
	ch := s.create(time.Now().Add(-time.Minute))
	const goroutines = 20

	var wg sync.WaitGroup
	var wins atomic.Int32
	for i := 0; i < goroutines; i++ {
		to := challenge.StatusExpired
		if i%2 == 0 {
			to = challenge.StatusFailed
		}
		wg.Add(1)
		go func(to challenge.Status) {
			defer wg.Done()
			if err := s.store.Transition(s.ctx, ch.ID, to); err == nil {
				wins.Add(1)
			}
		}(to)
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
}
