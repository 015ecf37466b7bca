// Package common defines shared constants and sentinel errors used across
// the client engine and the server. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Storage faults are fatal for the operation attempted: dropping a
	// technician's offline work silently is not acceptable.
	ErrStorage = errors.New("local storage failure")

	// Sync/engine errors.
	ErrSyncInProgress  = errors.New("sync cycle already in progress")
	ErrUnknownMutation = errors.New("unknown mutation kind")
	ErrConflict        = errors.New("conflict requires manual resolution")

	// Auth errors.
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
