// Package models defines the server-side domain records the sync endpoints
// read and write.
package models

import (
	"encoding/json"
	"time"
)

// Technician is an authenticated field user.
type Technician struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
}

// WorkOrder is the server's authoritative view of a service visit.
type WorkOrder struct {
	ID              int64      `json:"id"`
	TechnicianID    int64      `json:"-"`
	Number          string     `json:"number"`
	Status          string     `json:"status"`
	Priority        string     `json:"priority"`
	ScheduledDate   *time.Time `json:"scheduled_date"`
	CustomerName    string     `json:"customer_name"`
	CustomerAddress string     `json:"customer_address"`
	City            string     `json:"city"`
	Description     string     `json:"description"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Work order statuses.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// BatchMutation is one queued client change as it arrives on the wire.
type BatchMutation struct {
	MutationID string          `json:"mutation_id"`
	Type       string          `json:"type"`
	Data       json.RawMessage `json:"data"`
}

// BatchIssue itemizes a refused mutation in the batch response.
type BatchIssue struct {
	MutationID string `json:"mutation_id"`
	Type       string `json:"type,omitempty"`
	ID         string `json:"id,omitempty"`
	Message    string `json:"message"`
}

// BatchOutcome is the result of applying one batch.
type BatchOutcome struct {
	Processed int          `json:"processed"`
	Conflicts []BatchIssue `json:"conflicts"`
	Errors    []BatchIssue `json:"errors"`
}

// PullPayload is the delta response for GET /tech/sync.
type PullPayload struct {
	WorkOrders      []WorkOrder       `json:"work_orders"`
	Equipment       []json.RawMessage `json:"equipment"`
	Checklists      []json.RawMessage `json:"checklists"`
	StandardWeights []json.RawMessage `json:"standard_weights"`
	UpdatedAt       time.Time         `json:"updated_at"`
}
