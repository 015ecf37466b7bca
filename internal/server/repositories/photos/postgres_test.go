package photos

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestExists(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+count\(\*\)\s+FROM\s+photos\s+WHERE\s+id\s*=\s*\$1$`
	mock.ExpectQuery(q).WithArgs("01HPHOTO").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	exists, err := repo.Exists(context.Background(), "01HPHOTO")
	if err != nil || !exists {
		t.Fatalf("expected exists, got exists=%v err=%v", exists, err)
	}
}

func TestInsert(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	p := &Photo{
		ID:           "01HPHOTO",
		WorkOrderID:  sql.NullInt64{Int64: 1042, Valid: true},
		TechnicianID: 42,
		EntityType:   "work_order",
		EntityID:     "1042",
		FileName:     "before.jpg",
		StorageKey:   "photos/01HPHOTO/before.jpg",
	}

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+photos\s*\(id,\s*work_order_id,\s*technician_id,\s*entity_type,\s*entity_id,\s*file_name,\s*storage_key\)`).
		WithArgs(p.ID, p.WorkOrderID, p.TechnicianID, p.EntityType, p.EntityID, p.FileName, p.StorageKey).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Insert(context.Background(), p); err != nil {
		t.Fatalf("Insert error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
