// Package entities implements the local entity cache over SQLite.
package entities

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

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or
// *sql.Tx), so callers can compose it into larger transactions.
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a repository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) GetByID(ctx context.Context, collection models.Collection, id string) (*models.Entity, error) {
	query := `SELECT payload, server_payload, updated_at, synced FROM entities WHERE collection=? AND id=?`
	row := r.db.QueryRowContext(ctx, query, collection, id)

	e := &models.Entity{Collection: collection, ID: id}
	// The driver hands TEXT columns back as strings, so payloads go through
	// a string intermediary before landing in json.RawMessage.
	var payload string
	var serverPayload sql.NullString
	var updatedAt string
	if err := row.Scan(&payload, &serverPayload, &updatedAt, &e.Synced); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to select entity: %w", err)
	}
	e.Payload = []byte(payload)
	if serverPayload.Valid {
		e.ServerPayload = []byte(serverPayload.String)
	}
	e.UpdatedAt = parseTime(updatedAt)
	return e, nil
}

func (r *SQLiteRepository) List(ctx context.Context, collection models.Collection) ([]models.Entity, error) {
	query := `SELECT id, payload, server_payload, updated_at, synced FROM entities WHERE collection=? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to select entities: %w", err)
	}
	defer rows.Close()

	var result []models.Entity
	for rows.Next() {
		item := models.Entity{Collection: collection}
		var payload string
		var serverPayload sql.NullString
		var updatedAt string
		if err := rows.Scan(&item.ID, &payload, &serverPayload, &updatedAt, &item.Synced); err != nil {
			return nil, err
		}
		item.Payload = []byte(payload)
		if serverPayload.Valid {
			item.ServerPayload = []byte(serverPayload.String)
		}
		item.UpdatedAt = parseTime(updatedAt)
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Put upserts by (collection, id). Last write wins at record granularity.
func (r *SQLiteRepository) Put(ctx context.Context, e *models.Entity) error {
	query := `INSERT INTO entities (collection, id, payload, server_payload, updated_at, synced)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			payload = excluded.payload,
			server_payload = excluded.server_payload,
			updated_at = excluded.updated_at,
			synced = excluded.synced`
	var serverPayload any
	if e.ServerPayload != nil {
		serverPayload = string(e.ServerPayload)
	}
	_, err := r.db.ExecContext(ctx, query,
		e.Collection, e.ID, string(e.Payload), serverPayload, e.UpdatedAt.UTC().Format(time.RFC3339Nano), e.Synced)
	if err != nil {
		return fmt.Errorf("%w: failed to upsert entity: %w", common.ErrStorage, err)
	}
	return nil
}

func (r *SQLiteRepository) PutMany(ctx context.Context, recs []models.Entity) error {
	for i := range recs {
		if err := r.Put(ctx, &recs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLiteRepository) Remove(ctx context.Context, collection models.Collection, id string) error {
	query := `DELETE FROM entities WHERE collection=? AND id=?`
	res, err := r.db.ExecContext(ctx, query, collection, id)
	if err != nil {
		return fmt.Errorf("%w: failed to remove entity: %w", common.ErrStorage, err)
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

func (r *SQLiteRepository) MarkSynced(ctx context.Context, collection models.Collection, id string, synced bool) error {
	query := `UPDATE entities SET synced=? WHERE collection=? AND id=?`
	if _, err := r.db.ExecContext(ctx, query, synced, collection, id); err != nil {
		return fmt.Errorf("%w: failed to mark entity synced: %w", common.ErrStorage, err)
	}
	return nil
}

func (r *SQLiteRepository) CountUnsynced(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM entities WHERE synced=0`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count unsynced entities: %w", err)
	}
	return n, nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
