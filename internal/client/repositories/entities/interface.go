package entities

import (
	"context"

	"github.com/fieldops/techsync/internal/client/models"
)

// Repository is the durable per-collection entity cache. Implementations are
// backed by the local SQLite database; reads never touch the network.
type Repository interface {
	// GetByID returns a single record or common.ErrNotFound.
	GetByID(ctx context.Context, collection models.Collection, id string) (*models.Entity, error)

	// List returns every record of a collection ordered by id, so server
	// integer ids and locally minted ULIDs interleave by creation time.
	List(ctx context.Context, collection models.Collection) ([]models.Entity, error)

	// Put upserts a record by (collection, id).
	Put(ctx context.Context, e *models.Entity) error

	// PutMany upserts a batch of records.
	PutMany(ctx context.Context, recs []models.Entity) error

	// Remove deletes a record from the local view.
	Remove(ctx context.Context, collection models.Collection, id string) error

	// MarkSynced flips the synced flag without touching payloads, used when
	// the server acknowledges a pushed mutation before the next pull.
	MarkSynced(ctx context.Context, collection models.Collection, id string, synced bool) error

	// CountUnsynced returns how many records still await acknowledgment.
	CountUnsynced(ctx context.Context) (int, error)
}
