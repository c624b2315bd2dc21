/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Opens a SQLite database and hands it to the shared sqldb.Store, which
  implements yield.AllocationStore and yield.RunLog.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

IN-MEMORY:
  ":memory:" gives each connection its own empty database, so the pool is
  pinned to a single connection in that case.

USAGE:
  store, err := sqlite.New("./data/yield.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := yield.NewService(store, store, logger)

SEE ALSO:
  - store/sqldb/sqldb.go: Queries and schema
  - store/postgres/postgres.go: PostgreSQL driver
*/
package sqlite

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/yield-engine/store/sqldb"
)

// Store is a sqldb.Store backed by SQLite.
type Store struct {
	*sqldb.Store
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL"
	if dbPath == ":memory:" {
		dsn = dbPath
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	inner, err := sqldb.Open(db, sqldb.SQLite)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{Store: inner}, nil
}
