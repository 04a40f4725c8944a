package sqlstore

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RoomLedger/internal/floor"
	"RoomLedger/internal/store"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *Store) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	return db, mock, New(db, Postgres)
}

// labFloor returns a committed floor at version 1 with one room.
func labFloor(t *testing.T) floor.State {
	next, err := floor.Commit(floor.New("f1", "1"), 0, []floor.Room{{Number: "101", Capacity: 10, Description: "Lab"}})
	require.NoError(t, err)

	return next
}

func TestPostgres_Migrate(t *testing.T) {
	db, mock, s := setupMockDB(t)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS floors`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Create(t *testing.T) {
	db, mock, s := setupMockDB(t)
	defer db.Close()

	f := floor.New("f1", "1")

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO floors (id, number, rooms, root, version) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING`)).
		WithArgs("f1", "1", "[]", f.Root.String(), int64(0)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Create(context.Background(), f))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CreateExists(t *testing.T) {
	db, mock, s := setupMockDB(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO floors`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Create(context.Background(), floor.New("f1", "1"))
	assert.ErrorIs(t, err, store.ErrExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Get(t *testing.T) {
	db, mock, s := setupMockDB(t)
	defer db.Close()

	want := labFloor(t)

	rows := sqlmock.NewRows([]string{"id", "number", "rooms", "root", "version"}).
		AddRow("f1", "1", []byte(`[{"roomNumber":"101","capacity":10,"description":"Lab"}]`), want.Root.String(), int64(1))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, number, rooms, root, version FROM floors WHERE id = $1`)).
		WithArgs("f1").
		WillReturnRows(rows)

	got, err := s.Get(context.Background(), "f1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.NoError(t, got.Validate())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetNotFound(t *testing.T) {
	db, mock, s := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, number, rooms, root, version FROM floors`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPostgres_GetError(t *testing.T) {
	db, mock, s := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, number, rooms, root, version FROM floors`).
		WithArgs("f1").
		WillReturnError(assert.AnError)

	_, err := s.Get(context.Background(), "f1")
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, "select floor f1:\n"+assert.AnError.Error(), err.Error())
}

func TestPostgres_CompareAndSwap(t *testing.T) {
	db, mock, s := setupMockDB(t)
	defer db.Close()

	next := labFloor(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE floors SET number = $1, rooms = $2, root = $3, version = $4 WHERE id = $5 AND version = $6`)).
		WithArgs("1", `[{"roomNumber":"101","capacity":10,"description":"Lab"}]`, next.Root.String(), int64(1), "f1", int64(0)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.CompareAndSwap(context.Background(), 0, next))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CompareAndSwapStale(t *testing.T) {
	db, mock, s := setupMockDB(t)
	defer db.Close()

	next := labFloor(t)

	mock.ExpectExec(`UPDATE floors SET`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT version FROM floors WHERE id = $1`)).
		WithArgs("f1").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(3)))

	err := s.CompareAndSwap(context.Background(), 0, next)
	require.ErrorIs(t, err, floor.ErrStaleVersion)

	var ce *floor.ConcurrencyError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, uint64(0), ce.Expected)
	assert.Equal(t, uint64(3), ce.Actual)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CompareAndSwapMissing(t *testing.T) {
	db, mock, s := setupMockDB(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE floors SET`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT version FROM floors`).WillReturnError(sql.ErrNoRows)

	err := s.CompareAndSwap(context.Background(), 0, labFloor(t))
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CompareAndSwapSkip(t *testing.T) {
	db, mock, s := setupMockDB(t)
	defer db.Close()

	next := labFloor(t)

	// No statement may reach the database for an invalid successor.
	err := s.CompareAndSwap(context.Background(), 4, next)
	assert.ErrorIs(t, err, store.ErrVersionSkip)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Delete(t *testing.T) {
	db, mock, s := setupMockDB(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM floors WHERE id = $1`)).
		WithArgs("f1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM floors`).
		WithArgs("f1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Delete(context.Background(), "f1"))
	assert.ErrorIs(t, s.Delete(context.Background(), "f1"), store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_List(t *testing.T) {
	db, mock, s := setupMockDB(t)
	defer db.Close()

	empty := floor.New("a", "A")
	rows := sqlmock.NewRows([]string{"id", "number", "rooms", "root", "version"}).
		AddRow("a", "A", []byte(`[]`), empty.Root.String(), int64(0)).
		AddRow("b", "B", []byte(`[]`), empty.Root.String(), int64(4))

	mock.ExpectQuery(`SELECT id, number, rooms, root, version FROM floors ORDER BY id`).WillReturnRows(rows)

	list, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, uint64(4), list[1].Version)
	assert.NotNil(t, list[0].Rooms)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Replace(t *testing.T) {
	db, mock, s := setupMockDB(t)
	defer db.Close()

	f := floor.New("a", "A")

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM floors`).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO floors (id, number, rooms, root, version) VALUES ($1, $2, $3, $4, $5)`)).
		WithArgs("a", "A", "[]", f.Root.String(), int64(0)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.Replace(context.Background(), []floor.State{f}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ReplaceRollsBack(t *testing.T) {
	db, mock, s := setupMockDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM floors`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO floors`).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := s.Replace(context.Background(), []floor.State{floor.New("a", "A")})
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}
