package mutations

import (
	"context"

	"github.com/fieldops/techsync/internal/client/models"
)

// Repository is the durable mutation queue: an ordered log of writes awaiting
// server acknowledgment. Rows are removed only on explicit acknowledgment,
// never speculatively.
type Repository interface {
	// Enqueue appends a mutation. The caller is responsible for running it
	// in the same transaction as the optimistic entity write it accompanies.
	Enqueue(ctx context.Context, m *models.Mutation) error

	// PeekBatch returns up to maxN of the oldest pending mutations in ULID
	// order. Entities that have a rejected mutation are skipped entirely so
	// a later write can never overtake a blocked earlier one.
	PeekBatch(ctx context.Context, maxN int) ([]*models.Mutation, error)

	// Acknowledge removes mutations the server confirmed.
	Acknowledge(ctx context.Context, ids []string) error

	// MarkFailed records a transient failure. Once attempts reach
	// maxAttempts the mutation flips to rejected and stops being retried.
	MarkFailed(ctx context.Context, id string, errMsg string, maxAttempts int) error

	// Reject marks a mutation as refused by the server (validation failure
	// or conflict). Terminal until Reset or Delete.
	Reject(ctx context.Context, id string, errMsg string) error

	// Reset returns a rejected mutation to the pending state (user chose to
	// retry) and clears its attempt counter.
	Reset(ctx context.Context, id string) error

	// Delete discards a mutation (user chose to drop the local change).
	Delete(ctx context.Context, id string) error

	// GetByID returns a single mutation or common.ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.Mutation, error)

	// PendingFor returns the pending mutations for one entity, oldest first.
	PendingFor(ctx context.Context, collection models.Collection, entityID string) ([]*models.Mutation, error)

	// ListRejected returns every rejected mutation, oldest first.
	ListRejected(ctx context.Context) ([]*models.Mutation, error)

	// PendingCount and RejectedCount feed the UI's sync-status badges.
	PendingCount(ctx context.Context) (int, error)
	RejectedCount(ctx context.Context) (int, error)
}
