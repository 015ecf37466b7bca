// Package technicians persists the authenticated field users.
package technicians

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fieldops/techsync/internal/common"
	"github.com/fieldops/techsync/internal/dbx"
	"github.com/fieldops/techsync/internal/server/models"
)

// Repository is the lookup surface the login flow needs.
type Repository interface {
	GetByEmail(ctx context.Context, email string) (*models.Technician, error)
}

// PostgresRepository implements Repository over a DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Technician, error) {
	query := `SELECT id, name, email, password_hash FROM technicians WHERE email = $1`

	t := &models.Technician{}
	err := r.db.QueryRowContext(ctx, query, email).Scan(&t.ID, &t.Name, &t.Email, &t.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to select technician: %w", err)
	}
	return t, nil
}
