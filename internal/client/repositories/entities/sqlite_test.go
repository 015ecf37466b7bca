package entities

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/fieldops/techsync/internal/client/models"
	"github.com/fieldops/techsync/internal/common"
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
CREATE TABLE entities (
  collection TEXT NOT NULL,
  id TEXT NOT NULL,
  payload TEXT NOT NULL,
  server_payload TEXT,
  updated_at TEXT NOT NULL,
  synced INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (collection, id)
);`)
	require.NoError(t, err)
	return db
}

func TestPut_InsertAndUpdate(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	e := &models.Entity{
		Collection: models.CollectionWorkOrders,
		ID:         "1042",
		Payload:    []byte(`{"id":1042,"status":"pending"}`),
		UpdatedAt:  time.Now(),
		Synced:     true,
	}
	require.NoError(t, r.Put(ctx, e))

	got, err := r.GetByID(ctx, models.CollectionWorkOrders, "1042")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1042,"status":"pending"}`, string(got.Payload))
	assert.True(t, got.Synced)
	assert.Nil(t, got.ServerPayload)

	// update same id
	e.Payload = []byte(`{"id":1042,"status":"in_progress"}`)
	e.ServerPayload = []byte(`{"id":1042,"status":"pending"}`)
	e.Synced = false
	require.NoError(t, r.Put(ctx, e))

	got, err = r.GetByID(ctx, models.CollectionWorkOrders, "1042")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1042,"status":"in_progress"}`, string(got.Payload))
	assert.JSONEq(t, `{"id":1042,"status":"pending"}`, string(got.ServerPayload))
	assert.False(t, got.Synced)
}

func TestGetByID_NotFound(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)

	_, err := r.GetByID(context.Background(), models.CollectionWorkOrders, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestList_OrderedAndScoped(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.PutMany(ctx, []models.Entity{
		{Collection: models.CollectionWorkOrders, ID: "2", Payload: []byte(`{}`), UpdatedAt: time.Now()},
		{Collection: models.CollectionWorkOrders, ID: "1", Payload: []byte(`{}`), UpdatedAt: time.Now()},
		{Collection: models.CollectionExpenses, ID: "x", Payload: []byte(`{}`), UpdatedAt: time.Now()},
	}))

	got, err := r.List(ctx, models.CollectionWorkOrders)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "2", got[1].ID)
}

func TestRemove(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, &models.Entity{
		Collection: models.CollectionExpenses, ID: "e1", Payload: []byte(`{}`), UpdatedAt: time.Now(),
	}))
	require.NoError(t, r.Remove(ctx, models.CollectionExpenses, "e1"))

	_, err := r.GetByID(ctx, models.CollectionExpenses, "e1")
	assert.ErrorIs(t, err, common.ErrNotFound)

	assert.ErrorIs(t, r.Remove(ctx, models.CollectionExpenses, "e1"), common.ErrNotFound)
}

func TestMarkSyncedAndCount(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, &models.Entity{
		Collection: models.CollectionWorkOrders, ID: "7", Payload: []byte(`{}`), UpdatedAt: time.Now(), Synced: false,
	}))

	n, err := r.CountUnsynced(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, r.MarkSynced(ctx, models.CollectionWorkOrders, "7", true))

	n, err = r.CountUnsynced(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
