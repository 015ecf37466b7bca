// Package photos stores binary attachments captured in the field. Blobs are
// kept out of the generic entity cache so listing work orders never loads
// image bytes.
package photos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fieldops/techsync/internal/client/models"
	"github.com/fieldops/techsync/internal/common"
	"github.com/fieldops/techsync/internal/dbx"
)

// Repository persists photo attachments awaiting upload.
type Repository interface {
	Insert(ctx context.Context, p *models.Photo) error
	GetByID(ctx context.Context, id string) (*models.Photo, error)
	// ListUnsynced returns photos whose blob has not been acknowledged by
	// the server, oldest first.
	ListUnsynced(ctx context.Context) ([]*models.Photo, error)
	MarkSynced(ctx context.Context, id string) error
	DeleteByID(ctx context.Context, id string) error
	UnsyncedCount(ctx context.Context) (int, error)
}

// SQLiteRepository implements Repository over a DBTX.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Insert(ctx context.Context, p *models.Photo) error {
	query := `INSERT INTO photos (id, work_order_id, entity_type, entity_id, file_name, blob, created_at, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.WorkOrderID, p.EntityType, p.EntityID, p.FileName, p.Blob,
		p.CreatedAt.UTC().Format(time.RFC3339Nano), p.Synced)
	if err != nil {
		return fmt.Errorf("%w: failed to insert photo: %w", common.ErrStorage, err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Photo, error) {
	query := `SELECT id, work_order_id, entity_type, entity_id, file_name, blob, created_at, synced
		FROM photos WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	p, err := scanPhoto(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to select photo: %w", err)
	}
	return p, nil
}

func (r *SQLiteRepository) ListUnsynced(ctx context.Context) ([]*models.Photo, error) {
	query := `SELECT id, work_order_id, entity_type, entity_id, file_name, blob, created_at, synced
		FROM photos WHERE synced = 0 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select unsynced photos: %w", err)
	}
	defer rows.Close()

	var result []*models.Photo
	for rows.Next() {
		p, err := scanPhoto(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE photos SET synced = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: failed to mark photo synced: %w", common.ErrStorage, err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteByID(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM photos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: failed to delete photo: %w", common.ErrStorage, err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) UnsyncedCount(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM photos WHERE synced = 0`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count unsynced photos: %w", err)
	}
	return n, nil
}

func scanPhoto(scan func(dest ...any) error) (*models.Photo, error) {
	p := &models.Photo{}
	var entityID sql.NullString
	var createdAt string
	if err := scan(&p.ID, &p.WorkOrderID, &p.EntityType, &entityID, &p.FileName, &p.Blob, &createdAt, &p.Synced); err != nil {
		return nil, err
	}
	p.EntityID = entityID.String
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		p.CreatedAt = t
	}
	return p, nil
}
