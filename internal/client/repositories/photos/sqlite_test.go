package photos

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/fieldops/techsync/internal/client/models"
	"github.com/fieldops/techsync/internal/common"
	"github.com/fieldops/techsync/internal/ulidx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE photos (
  id TEXT PRIMARY KEY,
  work_order_id INTEGER NOT NULL,
  entity_type TEXT NOT NULL,
  entity_id TEXT,
  file_name TEXT NOT NULL,
  blob BLOB NOT NULL,
  created_at TEXT NOT NULL,
  synced INTEGER NOT NULL DEFAULT 0
);`)
	require.NoError(t, err)
	return db
}

func insertPhoto(t *testing.T, r *SQLiteRepository) *models.Photo {
	t.Helper()
	p := &models.Photo{
		ID:          ulidx.New(),
		WorkOrderID: 1042,
		EntityType:  "work_order",
		FileName:    "before.jpg",
		Blob:        []byte{0xff, 0xd8, 0xff},
		CreatedAt:   time.Now(),
	}
	require.NoError(t, r.Insert(context.Background(), p))
	return p
}

func TestInsertAndGet(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	p := insertPhoto(t, r)

	got, err := r.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Blob, got.Blob)
	assert.Equal(t, int64(1042), got.WorkOrderID)
	assert.False(t, got.Synced)
}

func TestListUnsyncedAndMarkSynced(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	p1 := insertPhoto(t, r)
	p2 := insertPhoto(t, r)

	unsynced, err := r.ListUnsynced(ctx)
	require.NoError(t, err)
	require.Len(t, unsynced, 2)
	assert.Equal(t, p1.ID, unsynced[0].ID, "oldest first")

	require.NoError(t, r.MarkSynced(ctx, p1.ID))

	unsynced, err = r.ListUnsynced(ctx)
	require.NoError(t, err)
	require.Len(t, unsynced, 1)
	assert.Equal(t, p2.ID, unsynced[0].ID)

	n, err := r.UnsyncedCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDeleteByID(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	p := insertPhoto(t, r)
	require.NoError(t, r.DeleteByID(ctx, p.ID))

	_, err := r.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, r.DeleteByID(ctx, p.ID), common.ErrNotFound)
	assert.ErrorIs(t, r.MarkSynced(ctx, p.ID), common.ErrNotFound)
}
