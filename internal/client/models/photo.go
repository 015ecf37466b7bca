package models

import "time"

// Photo is a binary attachment captured in the field. The blob lives in its
// own table rather than in the generic entity cache, and Synced here means
// "blob uploaded and acknowledged", independent of metadata sync.
type Photo struct {
	ID          string
	WorkOrderID int64
	EntityType  string
	EntityID    string
	FileName    string
	Blob        []byte
	CreatedAt   time.Time
	Synced      bool
}
