// Package photos persists photo metadata; the blobs themselves live in
// object storage.
package photos

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fieldops/techsync/internal/common"
	"github.com/fieldops/techsync/internal/dbx"
)

// Photo is one stored attachment's metadata row.
type Photo struct {
	ID           string
	WorkOrderID  sql.NullInt64
	TechnicianID int64
	EntityType   string
	EntityID     string
	FileName     string
	StorageKey   string
}

// Repository is the metadata surface of the photo upload endpoint.
type Repository interface {
	// Exists reports whether this photo id was already stored; the client's
	// ULID doubles as the upload's idempotency key.
	Exists(ctx context.Context, id string) (bool, error)
	Insert(ctx context.Context, p *Photo) error
}

// PostgresRepository implements Repository over a DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Exists(ctx context.Context, id string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM photos WHERE id = $1`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check photo: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, p *Photo) error {
	query := `INSERT INTO photos (id, work_order_id, technician_id, entity_type, entity_id, file_name, storage_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.WorkOrderID, p.TechnicianID, p.EntityType, p.EntityID, p.FileName, p.StorageKey)
	if err != nil {
		return fmt.Errorf("%w: failed to insert photo: %w", common.ErrStorage, err)
	}
	return nil
}
