// Package metadata stores small durable scalars for the sync engine: the
// pull cursor, the device id, and the auth token.
package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fieldops/techsync/internal/common"
	"github.com/fieldops/techsync/internal/dbx"
	"github.com/google/uuid"
)

const (
	keyCursor   = "last_pulled_at"
	keyDeviceID = "device_id"
	keyToken    = "auth_token"
)

// Repository is the key/value metadata store.
type Repository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error

	// Cursor returns the timestamp of the last fully merged pull, or the
	// epoch if no pull ever completed (intentional full refresh on first run).
	Cursor(ctx context.Context) (time.Time, error)
	// SetCursor persists the server-reported "as of" time. Callers advance
	// it only inside the same transaction that merged the pulled batch.
	SetCursor(ctx context.Context, t time.Time) error

	// DeviceID returns this installation's stable identifier, minting one
	// on first use.
	DeviceID(ctx context.Context) (string, error)

	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
}

// SQLiteRepository implements Repository over a DBTX.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM sync_metadata WHERE key=?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", common.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to select metadata %q: %w", key, err)
	}
	return value, nil
}

func (r *SQLiteRepository) Set(ctx context.Context, key, value string) error {
	query := `INSERT INTO sync_metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := r.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("%w: failed to upsert metadata %q: %w", common.ErrStorage, key, err)
	}
	return nil
}

func (r *SQLiteRepository) Cursor(ctx context.Context) (time.Time, error) {
	value, err := r.Get(ctx, keyCursor)
	if errors.Is(err, common.ErrNotFound) {
		return common.EpochCursor, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed sync cursor %q: %w", value, err)
	}
	return t, nil
}

func (r *SQLiteRepository) SetCursor(ctx context.Context, t time.Time) error {
	return r.Set(ctx, keyCursor, t.UTC().Format(time.RFC3339Nano))
}

func (r *SQLiteRepository) DeviceID(ctx context.Context) (string, error) {
	id, err := r.Get(ctx, keyDeviceID)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return "", err
	}
	id = uuid.NewString()
	if err := r.Set(ctx, keyDeviceID, id); err != nil {
		return "", err
	}
	return id, nil
}

func (r *SQLiteRepository) Token(ctx context.Context) (string, error) {
	return r.Get(ctx, keyToken)
}

func (r *SQLiteRepository) SetToken(ctx context.Context, token string) error {
	return r.Set(ctx, keyToken, token)
}
