package sqlstore

import (
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver
)

// Dialect captures the differences between the supported SQL backends.
type Dialect struct {
	Name       string // Name is a short label used in logs and errors
	Driver     string // Driver is the database/sql driver name
	DefaultDSN string // DefaultDSN is used when the caller passes an empty DSN
	RoomsType  string // RoomsType is the column type holding the JSON room list
	Numbered   bool   // Numbered selects $1-style placeholders instead of ?
	SingleConn bool   // SingleConn limits the pool to one connection
}

var (
	// SQLite stores floors in a local file through modernc.org/sqlite.
	SQLite = Dialect{
		Name:       "sqlite",
		Driver:     "sqlite",
		DefaultDSN: "roomledger.db",
		RoomsType:  "TEXT",
		SingleConn: true,
	}

	// Postgres stores floors through the pgx stdlib driver.
	Postgres = Dialect{
		Name:       "postgres",
		Driver:     "pgx",
		DefaultDSN: "postgres://localhost/roomledger?sslmode=disable",
		RoomsType:  "JSONB",
		Numbered:   true,
	}
)

// rebind rewrites ? placeholders for dialects that number their parameters.
func (d Dialect) rebind(query string) string {
	if !d.Numbered {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)

	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] != '?' {
			b.WriteByte(query[i])
			continue
		}

		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}

	return b.String()
}

// schema returns the DDL creating the floors table.
func (d Dialect) schema() string {
	return `CREATE TABLE IF NOT EXISTS floors (
		id TEXT PRIMARY KEY,
		number TEXT NOT NULL,
		rooms ` + d.RoomsType + ` NOT NULL,
		root TEXT NOT NULL,
		version BIGINT NOT NULL
	)`
}
