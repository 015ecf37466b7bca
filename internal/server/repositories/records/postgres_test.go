package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fieldops/techsync/internal/common"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestInsert_RoutesKindToTable(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	payload := json.RawMessage(`{"id":"01EXP","amount":35.5}`)
	wo := sql.NullInt64{Int64: 1042, Valid: true}

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+expenses\s*\(work_order_id,\s*technician_id,\s*payload\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3\)$`).
		WithArgs(wo, int64(42), string(payload)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Insert(context.Background(), "expense", wo, 42, payload); err != nil {
		t.Fatalf("Insert error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInsert_DisplacementKindsShareTable(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	payload := json.RawMessage(`{"id":"01DSP","lat":1,"lon":2}`)

	for range []int{0, 1} {
		mock.ExpectExec(`INSERT\s+INTO\s+displacement_events`).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	if err := repo.Insert(context.Background(), "displacement_start", sql.NullInt64{}, 42, payload); err != nil {
		t.Fatalf("Insert displacement_start error: %v", err)
	}
	if err := repo.Insert(context.Background(), "displacement_stop", sql.NullInt64{}, 42, payload); err != nil {
		t.Fatalf("Insert displacement_stop error: %v", err)
	}
}

func TestInsert_UnknownKind(t *testing.T) {
	repo, _, db := newRepoWithMock(t)
	defer db.Close()

	err := repo.Insert(context.Background(), "telepathy", sql.NullInt64{}, 42, json.RawMessage(`{}`))
	if !errors.Is(err, common.ErrUnknownMutation) {
		t.Fatalf("expected ErrUnknownMutation, got %v", err)
	}
}
