// Package mutations keeps the idempotency ledger for applied client
// mutations.
package mutations

import (
	"context"
	"fmt"

	"github.com/fieldops/techsync/internal/common"
	"github.com/fieldops/techsync/internal/dbx"
)

// Repository is the dedup ledger.
type Repository interface {
	// WasProcessed reports whether this mutation_id has been applied before.
	WasProcessed(ctx context.Context, mutationID string) (bool, error)
	// MarkProcessed records the mutation_id; callers do this in the same
	// transaction as the mutation's side effects.
	MarkProcessed(ctx context.Context, mutationID string, technicianID int64, kind string) error
}

// PostgresRepository implements Repository over a DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) WasProcessed(ctx context.Context, mutationID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM processed_mutations WHERE mutation_id = $1`, mutationID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check mutation ledger: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) MarkProcessed(ctx context.Context, mutationID string, technicianID int64, kind string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO processed_mutations (mutation_id, technician_id, kind) VALUES ($1, $2, $3)`,
		mutationID, technicianID, kind)
	if err != nil {
		return fmt.Errorf("%w: failed to record processed mutation: %w", common.ErrStorage, err)
	}
	return nil
}
