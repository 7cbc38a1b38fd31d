//go:build integration

package guard_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"verigate/internal/verification/guard"
	"verigate/pkg/testutil/containers"
)

type RedisGuardSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	guard *guard.RedisGuard
	ctx   context.Context
}

func TestRedisGuardSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisGuardSuite))
}

func (s *RedisGuardSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.guard = guard.NewRedis(s.redis.Client)
	s.ctx = context.Background()
}

func (s *RedisGuardSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
}

func (s *RedisGuardSuite) TestAcquireRelease() {
	s.Run("second acquire for the same user is refused", func() {
		acquired, err := s.guard.Acquire(s.ctx, "user-1", time.Minute)
		s.Require().NoError(err)
		s.True(acquired)

		acquired, err = s.guard.Acquire(s.ctx, "user-1", time.Minute)
		s.Require().NoError(err)
		s.False(acquired)
	})

	s.Run("users do not contend with each other", func() {
		acquired, err := s.guard.Acquire(s.ctx, "user-2", time.Minute)
		s.Require().NoError(err)
		s.True(acquired)

		acquired, err = s.guard.Acquire(s.ctx, "user-3", time.Minute)
		s.Require().NoError(err)
		s.True(acquired)
	})

	s.Run("release frees the slot", func() {
		acquired, err := s.guard.Acquire(s.ctx, "user-4", time.Minute)
		s.Require().NoError(err)
		s.True(acquired)

		s.Require().NoError(s.guard.Release(s.ctx, "user-4"))

		acquired, err = s.guard.Acquire(s.ctx, "user-4", time.Minute)
		s.Require().NoError(err)
		s.True(acquired)
	})

	s.Run("releasing an expired or absent hold is not an error", func() {
		s.Require().NoError(s.guard.Release(s.ctx, "never-held"))
	})

	s.Run("the hold lapses after its ttl", func() {
		acquired, err := s.guard.Acquire(s.ctx, "user-5", 100*time.Millisecond)
		s.Require().NoError(err)
		s.True(acquired)

		time.Sleep(200 * time.Millisecond)

		acquired, err = s.guard.Acquire(s.ctx, "user-5", time.Minute)
		s.Require().NoError(err)
		s.True(acquired)
	})
}

// Acquisition is one conditional write, so two racing submissions for the
// same user can never both hold the guard.
func (s *RedisGuardSuite) TestConcurrentAcquire() {
	const goroutines = 30

	var wg sync.WaitGroup
	var winners atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acquired, err := s.guard.Acquire(s.ctx, "contended-user", time.Minute)
			if err == nil && acquired {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), winners.Load())
}
