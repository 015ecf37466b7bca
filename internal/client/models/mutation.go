package models

import (
	"encoding/json"
	"time"
)

// Kind is the closed set of mutation types the batch endpoint understands.
// Keeping it a typed enum (rather than free-form strings) forces an explicit
// error path for unknown kinds instead of a silent drop.
type Kind string

const (
	KindStatusChange        Kind = "status_change"
	KindExpense             Kind = "expense"
	KindChecklistResponse   Kind = "checklist_response"
	KindSignature           Kind = "signature"
	KindDisplacementStart   Kind = "displacement_start"
	KindDisplacementArrive  Kind = "displacement_arrive"
	KindDisplacementLoc     Kind = "displacement_location"
	KindDisplacementStop    Kind = "displacement_stop"
	KindPhoto               Kind = "photo"
)

// IsValid reports whether k is a known mutation kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindStatusChange, KindExpense, KindChecklistResponse, KindSignature,
		KindDisplacementStart, KindDisplacementArrive, KindDisplacementLoc,
		KindDisplacementStop, KindPhoto:
		return true
	}
	return false
}

// MutationStatus tracks a queued mutation's lifecycle.
type MutationStatus string

const (
	// MutationPending: awaiting transmission (or re-transmission after a
	// transient failure).
	MutationPending MutationStatus = "pending"
	// MutationRejected: the server refused it, or retries were exhausted.
	// Terminal until the user retries or discards it.
	MutationRejected MutationStatus = "rejected"
)

// Mutation is one durable row of the mutation queue. ID is a ULID minted at
// enqueue time; it is the idempotency key the server dedups on and is never
// regenerated, even across resends.
type Mutation struct {
	ID           string
	Kind         Kind
	Collection   Collection
	EntityID     string
	Payload      json.RawMessage
	CreatedAt    time.Time
	AttemptCount int
	LastError    string
	Status       MutationStatus
}
