// Package models defines the client-side data model: locally cached entity
// records, the mutation queue rows, and typed views over the JSON payloads
// the sync protocol carries opaquely.
package models

import (
	"encoding/json"
	"time"
)

// Collection discriminates the per-type stores of the local cache.
type Collection string

const (
	// Pull-fed reference data.
	CollectionWorkOrders      Collection = "work_orders"
	CollectionEquipment       Collection = "equipment"
	CollectionChecklists      Collection = "checklists"
	CollectionStandardWeights Collection = "standard_weights"

	// Locally originated records, identified by ULID until first push.
	CollectionExpenses           Collection = "expenses"
	CollectionChecklistResponses Collection = "checklist_responses"
	CollectionSignatures         Collection = "signatures"

	// Photos live in their own blob-carrying table, not the entity cache;
	// the constant exists so their queued mutations can name a collection.
	CollectionPhotos Collection = "photos"
)

// Collections lists every known collection, in pull-response order.
var Collections = []Collection{
	CollectionWorkOrders,
	CollectionEquipment,
	CollectionChecklists,
	CollectionStandardWeights,
	CollectionExpenses,
	CollectionChecklistResponses,
	CollectionSignatures,
}

// Entity is a domain object as last known locally. Payload is what the UI
// sees; ServerPayload is the last authoritative snapshot received from a
// pull. The two differ only while a local mutation for this record is still
// pending, in which case Payload keeps the optimistic state visible.
type Entity struct {
	Collection    Collection
	ID            string
	Payload       json.RawMessage
	ServerPayload json.RawMessage
	UpdatedAt     time.Time
	Synced        bool
}

// WorkOrderView is the subset of a work order payload the CLI renders and
// the engine touches for status transitions.
type WorkOrderView struct {
	ID              int64      `json:"id"`
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

// Work order statuses the technician can drive locally.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)
