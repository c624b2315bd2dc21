package sqldb_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/yield-engine/store/sqldb"
)

func TestRebind(t *testing.T) {
	q := `DELETE FROM daily_inventory_allocation WHERE date >= ? AND date <= ?`

	assert.Equal(t, q, sqldb.SQLite.Rebind(q))
	assert.Equal(t,
		`DELETE FROM daily_inventory_allocation WHERE date >= $1 AND date <= $2`,
		sqldb.Postgres.Rebind(q))
}
