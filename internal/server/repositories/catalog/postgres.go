// Package catalog serves the shared reference tables the pull endpoint
// streams to every device: equipment, checklists, and standard weights.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fieldops/techsync/internal/dbx"
)

// Tables the repository is allowed to read. Anything else is a programming
// error, not user input.
var allowedTables = map[string]bool{
	"equipment":        true,
	"checklists":       true,
	"standard_weights": true,
}

// Repository reads reference data deltas.
type Repository interface {
	ListUpdatedSince(ctx context.Context, table string, since time.Time) ([]json.RawMessage, error)
}

// PostgresRepository implements Repository over a DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ListUpdatedSince returns each row's payload with id and updated_at folded
// in, ready to hand to the client unmodified.
func (r *PostgresRepository) ListUpdatedSince(ctx context.Context, table string, since time.Time) ([]json.RawMessage, error) {
	if !allowedTables[table] {
		return nil, fmt.Errorf("unknown reference table %q", table)
	}

	query := `SELECT payload || jsonb_build_object('id', id, 'updated_at', updated_at)
		FROM ` + table + `
		WHERE updated_at > $1
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", table, err)
	}
	defer rows.Close()

	var result []json.RawMessage
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		result = append(result, json.RawMessage(raw))
	}
	return result, rows.Err()
}
