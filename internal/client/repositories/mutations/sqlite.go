// Package mutations implements the durable mutation queue over SQLite.
package mutations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fieldops/techsync/internal/client/models"
	"github.com/fieldops/techsync/internal/common"
	"github.com/fieldops/techsync/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (*sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a repository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Enqueue(ctx context.Context, m *models.Mutation) error {
	if !m.Kind.IsValid() {
		return fmt.Errorf("%w: %q", common.ErrUnknownMutation, m.Kind)
	}
	query := `INSERT INTO mutations (id, kind, collection, entity_id, payload, created_at, attempt_count, last_error, status)
		VALUES (?, ?, ?, ?, ?, ?, 0, NULL, ?)`
	_, err := r.db.ExecContext(ctx, query,
		m.ID, m.Kind, m.Collection, m.EntityID, string(m.Payload),
		m.CreatedAt.UTC().Format(time.RFC3339Nano), models.MutationPending)
	if err != nil {
		return fmt.Errorf("%w: failed to enqueue mutation: %w", common.ErrStorage, err)
	}
	return nil
}

// PeekBatch selects the oldest pending mutations. ULIDs sort by creation
// time, so ordering by id preserves FIFO per entity; entities blocked by a
// rejected mutation are excluded so their later writes cannot overtake it.
// Photo mutations carry a blob and travel outside the JSON batch, so they
// are skipped here and drained by the upload path instead.
func (r *SQLiteRepository) PeekBatch(ctx context.Context, maxN int) ([]*models.Mutation, error) {
	query := `SELECT id, kind, collection, entity_id, payload, created_at, attempt_count, last_error, status
		FROM mutations m
		WHERE m.status = ?
		  AND m.kind != 'photo'
		  AND NOT EXISTS (
			SELECT 1 FROM mutations b
			WHERE b.collection = m.collection AND b.entity_id = m.entity_id AND b.status = ?
		  )
		ORDER BY m.id
		LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, models.MutationPending, models.MutationRejected, maxN)
	if err != nil {
		return nil, fmt.Errorf("failed to select mutation batch: %w", err)
	}
	defer rows.Close()
	return scanMutations(rows)
}

func (r *SQLiteRepository) Acknowledge(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `DELETE FROM mutations WHERE id IN (` + placeholders + `)`
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: failed to acknowledge mutations: %w", common.ErrStorage, err)
	}
	return nil
}

func (r *SQLiteRepository) MarkFailed(ctx context.Context, id string, errMsg string, maxAttempts int) error {
	query := `UPDATE mutations
		SET attempt_count = attempt_count + 1,
		    last_error = ?,
		    status = CASE WHEN attempt_count + 1 >= ? THEN ? ELSE status END
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, errMsg, maxAttempts, models.MutationRejected, id)
	if err != nil {
		return fmt.Errorf("%w: failed to mark mutation failed: %w", common.ErrStorage, err)
	}
	return requireOneRow(res)
}

func (r *SQLiteRepository) Reject(ctx context.Context, id string, errMsg string) error {
	query := `UPDATE mutations SET status = ?, last_error = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, models.MutationRejected, errMsg, id)
	if err != nil {
		return fmt.Errorf("%w: failed to reject mutation: %w", common.ErrStorage, err)
	}
	return requireOneRow(res)
}

func (r *SQLiteRepository) Reset(ctx context.Context, id string) error {
	query := `UPDATE mutations SET status = ?, attempt_count = 0, last_error = NULL WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, query, models.MutationPending, id, models.MutationRejected)
	if err != nil {
		return fmt.Errorf("%w: failed to reset mutation: %w", common.ErrStorage, err)
	}
	return requireOneRow(res)
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM mutations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: failed to delete mutation: %w", common.ErrStorage, err)
	}
	return requireOneRow(res)
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Mutation, error) {
	query := `SELECT id, kind, collection, entity_id, payload, created_at, attempt_count, last_error, status
		FROM mutations WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)

	m, err := scanMutation(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to select mutation: %w", err)
	}
	return m, nil
}

func (r *SQLiteRepository) PendingFor(ctx context.Context, collection models.Collection, entityID string) ([]*models.Mutation, error) {
	query := `SELECT id, kind, collection, entity_id, payload, created_at, attempt_count, last_error, status
		FROM mutations WHERE collection = ? AND entity_id = ? AND status = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, collection, entityID, models.MutationPending)
	if err != nil {
		return nil, fmt.Errorf("failed to select pending mutations: %w", err)
	}
	defer rows.Close()
	return scanMutations(rows)
}

func (r *SQLiteRepository) ListRejected(ctx context.Context) ([]*models.Mutation, error) {
	query := `SELECT id, kind, collection, entity_id, payload, created_at, attempt_count, last_error, status
		FROM mutations WHERE status = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, models.MutationRejected)
	if err != nil {
		return nil, fmt.Errorf("failed to select rejected mutations: %w", err)
	}
	defer rows.Close()
	return scanMutations(rows)
}

func (r *SQLiteRepository) PendingCount(ctx context.Context) (int, error) {
	return r.countByStatus(ctx, models.MutationPending)
}

func (r *SQLiteRepository) RejectedCount(ctx context.Context) (int, error) {
	return r.countByStatus(ctx, models.MutationRejected)
}

func (r *SQLiteRepository) countByStatus(ctx context.Context, status models.MutationStatus) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM mutations WHERE status = ?`, status).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count mutations: %w", err)
	}
	return n, nil
}

func scanMutations(rows *sql.Rows) ([]*models.Mutation, error) {
	var result []*models.Mutation
	for rows.Next() {
		m, err := scanMutation(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanMutation(scan func(dest ...any) error) (*models.Mutation, error) {
	m := &models.Mutation{}
	var payload, createdAt string
	var lastError sql.NullString
	if err := scan(&m.ID, &m.Kind, &m.Collection, &m.EntityID, &payload, &createdAt,
		&m.AttemptCount, &lastError, &m.Status); err != nil {
		return nil, err
	}
	m.Payload = []byte(payload)
	m.LastError = lastError.String
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		m.CreatedAt = t
	}
	return m, nil
}

func requireOneRow(res sql.Result) error {
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return common.ErrNotFound
	}
	return nil
}
