// Package model holds the challenge domain model shared by the challenge
// service and its store subpackages. The parent challenge package
// re-exports every identifier here via aliases, so callers outside the
// challenge tree keep using challenge.Challenge and friends.
package model

import (
	"fmt"
	"strings"
	"time"

	"verigate/pkg/sentinel"
)

// Status is the lifecycle state of a challenge. Transitions are one-way:
// pending is the only non-terminal state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusExpired  Status = "expired"
	StatusFailed   Status = "failed"
)

// Challenge is one issued code. CodeHash is a bcrypt hash; the plaintext
// code exists only in the issuance response and the delivery channel.
type Challenge struct {
	ID          string
	Subject     string // phone or email the code was sent to
	CodeHash    string
	Purpose     string
	DeviceID    string
	ExpiresAt   time.Time
	Attempts    int
	MaxAttempts int
	Status      Status
	CreatedAt   time.Time
}

// Rate-limit dimensions. Issuance checks all three; any one tripping
// refuses the challenge.
const (
	DimensionSubject = "subject"
	DimensionDevice  = "device"
	DimensionAddress = "address"
)

// RateLimitedError reports which sliding windows refused issuance. The
// caller gets every tripped dimension, not just the first.
type RateLimitedError struct {
	Tripped []string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("challenge rate limit exceeded for %s", strings.Join(e.Tripped, ", "))
}

// Unwrap lets callers match a RateLimitedError with errors.Is against the
// rate-limit sentinel while still extracting the tripped dimensions.
func (e *RateLimitedError) Unwrap() error { return sentinel.ErrRateLimited }
