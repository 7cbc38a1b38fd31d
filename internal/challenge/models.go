// Package challenge issues and verifies one-time codes for phone/email
// ownership proofs. A challenge is a single-use, rate-limited secret: three
// independent sliding windows gate issuance, and the verify path counts
// every attempt whether or not the code matched.
//
// The model types live in the challenge/model subpackage so the store
// subpackages can share them without importing this package; the aliases
// below keep challenge.Challenge and friends as the public names.
package challenge

import "verigate/internal/challenge/model"

// Status is the lifecycle state of a challenge. Transitions are one-way:
// pending is the only non-terminal state.
type Status = model.Status

const (
	StatusPending  = model.StatusPending
	StatusVerified = model.StatusVerified
	StatusExpired  = model.StatusExpired
	StatusFailed   = model.StatusFailed
)

// Challenge is one issued code. CodeHash is a bcrypt hash; the plaintext
// code exists only in the issuance response and the delivery channel.
type Challenge = model.Challenge

// Rate-limit dimensions. Issuance checks all three; any one tripping
// refuses the challenge.
const (
	DimensionSubject = model.DimensionSubject
	DimensionDevice  = model.DimensionDevice
	DimensionAddress = model.DimensionAddress
)

// RateLimitedError reports which sliding windows refused issuance. The
// caller gets every tripped dimension, not just the first.
type RateLimitedError = model.RateLimitedError
