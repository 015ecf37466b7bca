package mutations

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
CREATE TABLE mutations (
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  collection TEXT NOT NULL,
  entity_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at TEXT NOT NULL,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT,
  status TEXT NOT NULL DEFAULT 'pending'
);`)
	require.NoError(t, err)
	return db
}

func enqueue(t *testing.T, r *SQLiteRepository, kind models.Kind, entityID string) *models.Mutation {
	t.Helper()
	m := &models.Mutation{
		ID:         ulidx.New(),
		Kind:       kind,
		Collection: models.CollectionWorkOrders,
		EntityID:   entityID,
		Payload:    []byte(`{"status":"in_progress"}`),
		CreatedAt:  time.Now(),
		Status:     models.MutationPending,
	}
	require.NoError(t, r.Enqueue(context.Background(), m))
	return m
}

func TestEnqueue_UnknownKindRefused(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	err := r.Enqueue(context.Background(), &models.Mutation{
		ID: ulidx.New(), Kind: "frobnicate", Collection: models.CollectionWorkOrders,
		EntityID: "1", Payload: []byte(`{}`), CreatedAt: time.Now(),
	})
	assert.ErrorIs(t, err, common.ErrUnknownMutation)
}

func TestPeekBatch_FIFOPerEntity(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	m1 := enqueue(t, r, models.KindStatusChange, "1042") // start
	m2 := enqueue(t, r, models.KindStatusChange, "1042") // complete
	m3 := enqueue(t, r, models.KindExpense, "e-1")

	batch, err := r.PeekBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batch, 3)
	assert.Equal(t, m1.ID, batch[0].ID)
	assert.Equal(t, m2.ID, batch[1].ID)
	assert.Equal(t, m3.ID, batch[2].ID)

	// A smaller window never reorders: m1 must drain before m2 shows up.
	batch, err = r.PeekBatch(ctx, 1)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, m1.ID, batch[0].ID)

	require.NoError(t, r.Acknowledge(ctx, []string{m1.ID}))

	batch, err = r.PeekBatch(ctx, 1)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, m2.ID, batch[0].ID)
}

func TestPeekBatch_SkipsEntitiesBlockedByRejection(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	m1 := enqueue(t, r, models.KindStatusChange, "1042")
	m2 := enqueue(t, r, models.KindStatusChange, "1042")
	m3 := enqueue(t, r, models.KindExpense, "e-1")

	require.NoError(t, r.Reject(ctx, m1.ID, "work order already completed"))

	batch, err := r.PeekBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batch, 1, "m2 must not be sent while m1 is rejected")
	assert.Equal(t, m3.ID, batch[0].ID)

	_ = m2
}

func TestAcknowledge_RemovesOnlyConfirmed(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	m1 := enqueue(t, r, models.KindStatusChange, "1")
	m2 := enqueue(t, r, models.KindStatusChange, "2")

	require.NoError(t, r.Acknowledge(ctx, []string{m1.ID}))

	_, err := r.GetByID(ctx, m1.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	got, err := r.GetByID(ctx, m2.ID)
	require.NoError(t, err)
	assert.Equal(t, m2.ID, got.ID)

	// empty ack is a no-op
	require.NoError(t, r.Acknowledge(ctx, nil))
}

func TestMarkFailed_RejectsAfterMaxAttempts(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	m := enqueue(t, r, models.KindStatusChange, "1")

	for i := 1; i < 5; i++ {
		require.NoError(t, r.MarkFailed(ctx, m.ID, "timeout", 5))
		got, err := r.GetByID(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, i, got.AttemptCount)
		assert.Equal(t, models.MutationPending, got.Status)
		assert.Equal(t, "timeout", got.LastError)
	}

	require.NoError(t, r.MarkFailed(ctx, m.ID, "timeout", 5))
	got, err := r.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MutationRejected, got.Status)
}

func TestResetAndDelete(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	m := enqueue(t, r, models.KindStatusChange, "1")
	require.NoError(t, r.Reject(ctx, m.ID, "stale transition"))

	rejected, err := r.ListRejected(ctx)
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Equal(t, "stale transition", rejected[0].LastError)

	require.NoError(t, r.Reset(ctx, m.ID))
	got, err := r.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MutationPending, got.Status)
	assert.Equal(t, 0, got.AttemptCount)
	assert.Empty(t, got.LastError)

	// Reset only applies to rejected mutations.
	assert.ErrorIs(t, r.Reset(ctx, m.ID), common.ErrNotFound)

	require.NoError(t, r.Delete(ctx, m.ID))
	_, err = r.GetByID(ctx, m.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestCountsAndPendingFor(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	m1 := enqueue(t, r, models.KindStatusChange, "1042")
	enqueue(t, r, models.KindStatusChange, "1042")
	m3 := enqueue(t, r, models.KindExpense, "e-1")
	require.NoError(t, r.Reject(ctx, m3.ID, "invalid amount"))

	pending, err := r.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, pending)

	rejected, err := r.RejectedCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rejected)

	forEntity, err := r.PendingFor(ctx, models.CollectionWorkOrders, "1042")
	require.NoError(t, err)
	require.Len(t, forEntity, 2)
	assert.Equal(t, m1.ID, forEntity[0].ID)
}
