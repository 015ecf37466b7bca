// Package records persists the append-only field records technicians push:
// expenses, checklist responses, signatures, and displacement events.
package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/fieldops/techsync/internal/common"
	"github.com/fieldops/techsync/internal/dbx"
)

// Tables the repository is allowed to write, keyed by mutation kind.
var kindTables = map[string]string{
	"expense":               "expenses",
	"checklist_response":    "checklist_responses",
	"signature":             "signatures",
	"displacement_start":    "displacement_events",
	"displacement_arrive":   "displacement_events",
	"displacement_location": "displacement_events",
	"displacement_stop":     "displacement_events",
}

// Repository stores one pushed record per accepted mutation.
type Repository interface {
	Insert(ctx context.Context, kind string, workOrderID sql.NullInt64, technicianID int64, payload json.RawMessage) error
}

// PostgresRepository implements Repository over a DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, kind string, workOrderID sql.NullInt64, technicianID int64, payload json.RawMessage) error {
	table, ok := kindTables[kind]
	if !ok {
		return fmt.Errorf("%w: %q", common.ErrUnknownMutation, kind)
	}

	query := `INSERT INTO ` + table + ` (work_order_id, technician_id, payload) VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, query, workOrderID, technicianID, string(payload)); err != nil {
		return fmt.Errorf("%w: failed to insert %s record: %w", common.ErrStorage, kind, err)
	}
	return nil
}
