// Package sqlstore persists floor states in a SQL table, one row per floor.
//
// CompareAndSwap is a single conditional UPDATE keyed on (id, version); the
// database's row-level atomicity is the concurrency primitive.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"RoomLedger/internal/floor"
	"RoomLedger/internal/merkle"
	"RoomLedger/internal/store"
)

// Compile-time contract assertions.
var (
	_ store.Store    = (*Store)(nil)
	_ store.Replacer = (*Store)(nil)
)

// Store is a database/sql backed floor store.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Open connects with dialect to dsn, creates the schema and returns the store.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = dialect.DefaultDSN
	}

	if dialect.Driver == SQLite.Driver {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs:\n%w", err)
		}
	}

	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s:\n%w", dialect.Name, err)
	}

	s := New(db, dialect)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s:\n%w", dialect.Name, err)
	}

	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// New wraps an open database. The schema is not touched; call Migrate for that.
func New(db *sql.DB, dialect Dialect) *Store {
	if dialect.SingleConn {
		db.SetMaxOpenConns(1)
	}

	return &Store{db: db, dialect: dialect}
}

// Migrate creates the floors table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if s.dialect.Driver == SQLite.Driver {
		if _, err := s.db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
			return fmt.Errorf("set busy timeout:\n%w", err)
		}
	}

	if _, err := s.db.ExecContext(ctx, s.dialect.schema()); err != nil {
		return fmt.Errorf("create floors table:\n%w", err)
	}

	return nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// encodeRooms serializes the room list, never as JSON null.
func encodeRooms(rooms []floor.Room) (string, error) {
	if rooms == nil {
		rooms = []floor.Room{}
	}

	data, err := json.Marshal(rooms)
	if err != nil {
		return "", fmt.Errorf("encode rooms:\n%w", err)
	}

	return string(data), nil
}

// scanFloor decodes one floors row.
func scanFloor(row interface{ Scan(...any) error }) (floor.State, error) {
	var (
		s       floor.State
		rooms   []byte
		root    string
		version int64
	)

	if err := row.Scan(&s.ID, &s.Number, &rooms, &root, &version); err != nil {
		return floor.State{}, err
	}

	if err := json.Unmarshal(rooms, &s.Rooms); err != nil {
		return floor.State{}, fmt.Errorf("decode rooms of %s:\n%w", s.ID, err)
	}

	if s.Rooms == nil {
		s.Rooms = []floor.Room{}
	}

	hash, err := merkle.ParseHash(root)
	if err != nil {
		return floor.State{}, fmt.Errorf("decode root of %s:\n%w", s.ID, err)
	}

	s.Root = hash
	s.Version = uint64(version)

	return s, nil
}

// Create implements store.Store.
func (s *Store) Create(ctx context.Context, f floor.State) error {
	rooms, err := encodeRooms(f.Rooms)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, s.dialect.rebind(
		`INSERT INTO floors (id, number, rooms, root, version) VALUES (?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`),
		f.ID, f.Number, rooms, f.Root.String(), int64(f.Version))
	if err != nil {
		return fmt.Errorf("insert floor %s:\n%w", f.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert floor %s:\n%w", f.ID, err)
	}

	if n == 0 {
		return store.ErrExists
	}

	return nil
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, id string) (floor.State, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(
		`SELECT id, number, rooms, root, version FROM floors WHERE id = ?`), id)

	f, err := scanFloor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return floor.State{}, store.ErrNotFound
	}
	if err != nil {
		return floor.State{}, fmt.Errorf("select floor %s:\n%w", id, err)
	}

	return f, nil
}

// List implements store.Store.
func (s *Store) List(ctx context.Context) ([]floor.State, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, number, rooms, root, version FROM floors ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select floors:\n%w", err)
	}
	defer func() { _ = rows.Close() }()

	var floors []floor.State
	for rows.Next() {
		f, err := scanFloor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan:\n%w", err)
		}

		floors = append(floors, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate floors:\n%w", err)
	}

	return floors, nil
}

// CompareAndSwap implements store.Store.
func (s *Store) CompareAndSwap(ctx context.Context, expectedVersion uint64, next floor.State) error {
	if err := store.CheckSwap(expectedVersion, next); err != nil {
		return err
	}

	rooms, err := encodeRooms(next.Rooms)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, s.dialect.rebind(
		`UPDATE floors SET number = ?, rooms = ?, root = ?, version = ? WHERE id = ? AND version = ?`),
		next.Number, rooms, next.Root.String(), int64(next.Version), next.ID, int64(expectedVersion))
	if err != nil {
		return fmt.Errorf("update floor %s:\n%w", next.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update floor %s:\n%w", next.ID, err)
	}

	if n == 1 {
		return nil
	}

	// Nothing matched: the floor is gone or another writer moved it on.
	var actual int64
	err = s.db.QueryRowContext(ctx, s.dialect.rebind(`SELECT version FROM floors WHERE id = ?`), next.ID).Scan(&actual)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("select version of %s:\n%w", next.ID, err)
	}

	return store.Stale(next.ID, expectedVersion, uint64(actual))
}

// Delete implements store.Store.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.dialect.rebind(`DELETE FROM floors WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete floor %s:\n%w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete floor %s:\n%w", id, err)
	}

	if n == 0 {
		return store.ErrNotFound
	}

	return nil
}

// Replace implements store.Replacer inside one transaction.
func (s *Store) Replace(ctx context.Context, floors []floor.State) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin restore:\n%w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM floors`); err != nil {
		return fmt.Errorf("clear floors:\n%w", err)
	}

	insert := s.dialect.rebind(`INSERT INTO floors (id, number, rooms, root, version) VALUES (?, ?, ?, ?, ?)`)

	for _, f := range floors {
		rooms, encErr := encodeRooms(f.Rooms)
		if encErr != nil {
			return encErr
		}

		if _, err = tx.ExecContext(ctx, insert, f.ID, f.Number, rooms, f.Root.String(), int64(f.Version)); err != nil {
			return fmt.Errorf("insert floor %s:\n%w", f.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit restore:\n%w", err)
	}

	return nil
}

// Ping implements store.Store.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements store.Store.
func (s *Store) Close() error {
	return s.db.Close()
}
