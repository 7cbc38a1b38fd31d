// Package store defines the persistence ports for challenges. Mutations on
// a challenge are conditional on it still being pending, so a sweep racing a
// verify attempt can never clobber the attempt counter or resurrect a
// terminal status.
package store

import (
	"context"
	"time"

	challenge "verigate/internal/challenge/model"
)

// ChallengeStore persists challenges.
type ChallengeStore interface {
	Create(ctx context.Context, ch *challenge.Challenge) error
	GetByID(ctx context.Context, id string) (*challenge.Challenge, error)

	// RegisterAttempt increments the attempt counter iff the challenge is
	// still pending, returning the post-increment state. A terminal
	// challenge returns sentinel.ErrInvalidState.
	RegisterAttempt(ctx context.Context, id string) (*challenge.Challenge, error)

	// Transition moves a pending challenge to a terminal status. Returns
	// sentinel.ErrInvalidState when the challenge is no longer pending
	// (lost the race to a sweep or another verifier).
	Transition(ctx context.Context, id string, to challenge.Status) error

	// SweepExpired marks every pending challenge past its deadline as
	// expired and reports how many it moved.
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

// Reservation is one sliding-window check: at most Limit events for Key
// within the window.
type Reservation struct {
	Dimension string
	Key       string
	Limit     int
}

// WindowStore is the sliding-window counter backing issuance limits.
type WindowStore interface {
	// ReserveAll checks every reservation against its window and, only if
	// none is at its limit, counts one event in all of them. The check and
	// the increments are a single atomic step; two concurrent callers can
	// never both slip under the same last slot. Returns the tripped
	// dimensions, empty when the reservation succeeded.
	ReserveAll(ctx context.Context, window time.Duration, reservations []Reservation) ([]string, error)
}
