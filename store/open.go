// Package store selects a persistence backend by driver name.
package store

import (
	"fmt"
	"io"
	"strings"

	"github.com/warp/yield-engine/store/postgres"
	"github.com/warp/yield-engine/store/sqlite"
	"github.com/warp/yield-engine/yield"
)

// Backend is a closable store holding inventory, decisions and the run log.
type Backend interface {
	yield.AllocationStore
	yield.RunLog
	io.Closer
}

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open connects to the backend named by driver. For sqlite, dsn is a file
// path or ":memory:"; for postgres, a lib/pq connection string or URL.
func Open(driver, dsn string) (Backend, error) {
	switch strings.ToLower(driver) {
	case "", DriverSQLite, "sqlite3":
		s, err := sqlite.New(dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverPostgres, "postgresql":
		s, err := postgres.New(dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}
