package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and adapters return these
// (optionally wrapped) so services can translate them into caller-facing
// responses without inspecting driver-specific error types.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in the store
// - ErrConflict: conditional write lost to a concurrent writer
// - ErrExpired: challenge or hold has passed its deadline
// - ErrInvalidState: entity in wrong state for the requested transition
// - ErrUnavailable: store or provider temporarily unreachable
// - ErrRateLimited: a sliding-window limit refused the operation
//
// Validation errors (bad input, missing fields) are built ad hoc with
// fmt.Errorf at the point of rejection.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
	ErrRateLimited  = errors.New("rate limited")
)
