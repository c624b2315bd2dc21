// Package postgres provides a PostgreSQL-backed implementation of the storage interfaces.
package postgres

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/warp/yield-engine/store/sqldb"
)

// Store is a sqldb.Store backed by PostgreSQL.
type Store struct {
	*sqldb.Store
}

// New connects to connStr, pings, and migrates the schema.
func New(connStr string) (*Store, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open DB: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Minute * 5)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}

	inner, err := sqldb.Open(db, sqldb.Postgres)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{Store: inner}, nil
}
