// Package workorders persists the authoritative work order records and the
// status transitions technicians push.
package workorders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fieldops/techsync/internal/common"
	"github.com/fieldops/techsync/internal/dbx"
	"github.com/fieldops/techsync/internal/server/models"
)

// Repository is the work order surface the sync endpoints need.
type Repository interface {
	ListUpdatedSince(ctx context.Context, technicianID int64, since time.Time) ([]models.WorkOrder, error)
	ChangeStatus(ctx context.Context, technicianID, workOrderID int64, status string) error
}

// PostgresRepository implements Repository over a DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) ListUpdatedSince(ctx context.Context, technicianID int64, since time.Time) ([]models.WorkOrder, error) {
	query := `SELECT id, technician_id, number, status, priority, scheduled_date,
			customer_name, customer_address, city, description, updated_at
		FROM work_orders
		WHERE technician_id = $1 AND updated_at > $2
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, technicianID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to select work orders: %w", err)
	}
	defer rows.Close()

	var result []models.WorkOrder
	for rows.Next() {
		var w models.WorkOrder
		if err := rows.Scan(&w.ID, &w.TechnicianID, &w.Number, &w.Status, &w.Priority,
			&w.ScheduledDate, &w.CustomerName, &w.CustomerAddress, &w.City,
			&w.Description, &w.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

// ChangeStatus applies a technician's status transition. A work order not
// assigned to the technician is ErrNotFound; re-completing an already
// completed order is ErrConflict (someone else finished it first).
func (r *PostgresRepository) ChangeStatus(ctx context.Context, technicianID, workOrderID int64, status string) error {
	var current string
	err := r.db.QueryRowContext(ctx,
		`SELECT status FROM work_orders WHERE id = $1 AND technician_id = $2 FOR UPDATE`,
		workOrderID, technicianID).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNotFound
		}
		return fmt.Errorf("failed to select work order: %w", err)
	}

	if current == models.StatusCompleted {
		return fmt.Errorf("%w: work order already completed", common.ErrConflict)
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE work_orders SET status = $1, updated_at = now() WHERE id = $2`,
		status, workOrderID)
	if err != nil {
		return fmt.Errorf("%w: failed to update work order: %w", common.ErrStorage, err)
	}
	return nil
}
