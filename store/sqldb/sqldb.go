/*
Package sqldb provides the database/sql implementation of the yield storage
interfaces, shared by the SQLite and PostgreSQL stores.

PURPOSE:
  Implements yield.AllocationStore and yield.RunLog over any database/sql
  driver. Driver packages (store/sqlite, store/postgres) open the connection
  and pass a Dialect; everything else lives here.

INTERFACES IMPLEMENTED:
  yield.AllocationStore: Canonical inventory and daily decisions
  yield.RunLog:          Run audit records

KEY TABLES:
  combined_inventory:         One row per date, room counts as JSON
  inventory_columns:          Column order of the canonical inventory
  daily_inventory_allocation: One row per date, per-category decisions as JSON
  yield_runs:                 Append-only run log

  Room categories are configuration, not schema, so per-category values are
  stored as JSON rather than as dynamic columns. Dates are stored as
  YYYY-MM-DD text, which sorts and compares correctly in both dialects.

REPLACE SEMANTICS:
  SaveCanonicalInventory and SaveDecisions run in a single transaction:
  delete, then insert. A failure rolls back and prior rows survive.

SEE ALSO:
  - yield/store.go: Interface definitions
  - store/sqlite/sqlite.go, store/postgres/postgres.go: Drivers
*/
package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/warp/yield-engine/yield"
)

// =============================================================================
// DIALECT
// =============================================================================

// Dialect captures the SQL differences between drivers.
type Dialect struct {
	Name string

	// FloatType is the column type for occupancy.
	FloatType string

	// NumberedParams rewrites ? placeholders to $1, $2, ... when true.
	NumberedParams bool
}

var (
	SQLite   = Dialect{Name: "sqlite3", FloatType: "REAL"}
	Postgres = Dialect{Name: "postgres", FloatType: "DOUBLE PRECISION", NumberedParams: true}
)

// Rebind converts ? placeholders for the dialect.
func (d Dialect) Rebind(query string) string {
	if !d.NumberedParams {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// =============================================================================
// STORE
// =============================================================================

// Store implements yield.AllocationStore and yield.RunLog.
type Store struct {
	db      *sql.DB
	dialect Dialect
	mu      sync.RWMutex
}

// Open wraps an open connection and migrates the schema.
func Open(db *sql.DB, dialect Dialect) (*Store, error) {
	s := &Store{db: db, dialect: dialect}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// DB exposes the underlying connection.
func (s *Store) DB() *sql.DB { return s.db }

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := fmt.Sprintf(`
	-- Canonical merged inventory (replaced on every reconciliation)
	CREATE TABLE IF NOT EXISTS combined_inventory (
		date TEXT PRIMARY KEY,
		occupancy %[1]s,
		rooms_json TEXT NOT NULL
	);

	-- Column order of the canonical inventory, including Occupancy
	CREATE TABLE IF NOT EXISTS inventory_columns (
		ordinal INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	);

	-- Daily yield decisions (replaced per processed date range)
	CREATE TABLE IF NOT EXISTS daily_inventory_allocation (
		date TEXT PRIMARY KEY,
		day_of_week TEXT NOT NULL,
		season TEXT NOT NULL,
		occupancy %[1]s NOT NULL,
		demand_level TEXT NOT NULL,
		decisions_json TEXT NOT NULL
	);

	-- Run log (append-only)
	CREATE TABLE IF NOT EXISTS yield_runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		status TEXT NOT NULL,
		range_from TEXT,
		range_to TEXT,
		allocated INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		warnings INTEGER NOT NULL DEFAULT 0,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_yield_runs_started
		ON yield_runs(started_at);
	`, s.dialect.FloatType)

	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stripComments(stmt)) == "" {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func stripComments(stmt string) string {
	var lines []string
	for _, line := range strings.Split(stmt, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// =============================================================================
// CANONICAL INVENTORY
// =============================================================================

// SaveCanonicalInventory replaces the canonical inventory.
func (s *Store) SaveCanonicalInventory(ctx context.Context, inv yield.CanonicalInventory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM combined_inventory`); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM inventory_columns`); err != nil {
			return err
		}

		columns := make([]string, 0, len(inv.Categories)+1)
		for _, c := range inv.Categories {
			columns = append(columns, string(c))
		}
		if inv.HasOccupancy {
			columns = append(columns, yield.OccupancyColumn)
		}
		colStmt, err := tx.PrepareContext(ctx, s.dialect.Rebind(`INSERT INTO inventory_columns (ordinal, name) VALUES (?, ?)`))
		if err != nil {
			return err
		}
		defer colStmt.Close()
		for i, c := range columns {
			if _, err := colStmt.ExecContext(ctx, i, c); err != nil {
				return err
			}
		}

		rowStmt, err := tx.PrepareContext(ctx, s.dialect.Rebind(
			`INSERT INTO combined_inventory (date, occupancy, rooms_json) VALUES (?, ?, ?)`))
		if err != nil {
			return err
		}
		defer rowStmt.Close()
		for _, snap := range inv.Snapshots {
			rooms, err := json.Marshal(snap.Remaining)
			if err != nil {
				return err
			}
			occ := sql.NullFloat64{Float64: snap.Occupancy, Valid: snap.HasOccupancy()}
			if _, err := rowStmt.ExecContext(ctx, snap.Date.String(), occ, string(rooms)); err != nil {
				return fmt.Errorf("insert inventory %s: %w", snap.Date, err)
			}
		}
		return nil
	})
}

// LoadCanonicalInventory returns yield.ErrNoInventory if nothing was saved.
func (s *Store) LoadCanonicalInventory(ctx context.Context) (*yield.CanonicalInventory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, err := s.loadColumns(ctx)
	if err != nil {
		return nil, err
	}
	if len(inv.Categories) == 0 && !inv.HasOccupancy {
		return nil, yield.ErrNoInventory
	}

	rows, err := s.db.QueryContext(ctx, `SELECT date, occupancy, rooms_json FROM combined_inventory ORDER BY date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			date  string
			occ   sql.NullFloat64
			rooms string
		)
		if err := rows.Scan(&date, &occ, &rooms); err != nil {
			return nil, err
		}
		d, err := yield.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("stored inventory date %q: %w", date, err)
		}
		snap := yield.InventorySnapshot{Date: d, Occupancy: math.NaN()}
		if err := json.Unmarshal([]byte(rooms), &snap.Remaining); err != nil {
			return nil, fmt.Errorf("stored inventory %s: %w", date, err)
		}
		if occ.Valid {
			snap.Occupancy = occ.Float64
		}
		inv.Snapshots = append(inv.Snapshots, snap)
	}
	return inv, rows.Err()
}

// loadColumns reads the column order. The rows are fully drained before
// returning so the connection is free for the next query.
func (s *Store) loadColumns(ctx context.Context) (*yield.CanonicalInventory, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM inventory_columns ORDER BY ordinal`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	inv := &yield.CanonicalInventory{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		if name == yield.OccupancyColumn {
			inv.HasOccupancy = true
			continue
		}
		inv.Categories = append(inv.Categories, yield.RoomCategory(name))
	}
	return inv, rows.Err()
}

// =============================================================================
// DECISIONS
// =============================================================================

// decisionJSON is the per-category payload of a daily allocation row.
type decisionJSON struct {
	Category        string `json:"category"`
	Remaining       int    `json:"remaining"`
	OnlineAllotment int    `json:"online_allotment"`
	Rate            string `json:"bar_rate"`
	OverrideApplied bool   `json:"override_applied"`
}

// SaveDecisions replaces every allocation within r. r must be Bounded.
func (s *Store) SaveDecisions(ctx context.Context, r yield.DateRange, allocs []yield.DailyAllocation) error {
	if !r.Bounded() {
		return fmt.Errorf("save decisions %s: %w", r, yield.ErrUnboundedRange)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		where, args := rangeClause(r)
		if _, err := tx.ExecContext(ctx, s.dialect.Rebind(`DELETE FROM daily_inventory_allocation`+where), args...); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, s.dialect.Rebind(`
			INSERT INTO daily_inventory_allocation
				(date, day_of_week, season, occupancy, demand_level, decisions_json)
			VALUES (?, ?, ?, ?, ?, ?)`))
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, a := range allocs {
			payload := make([]decisionJSON, len(a.Decisions))
			for i, d := range a.Decisions {
				payload[i] = decisionJSON{
					Category:        string(d.Category),
					Remaining:       d.Remaining,
					OnlineAllotment: d.OnlineAllotment,
					Rate:            d.Rate.String(),
					OverrideApplied: d.OverrideApplied,
				}
			}
			body, err := json.Marshal(payload)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, a.Date.String(), a.DayOfWeek, string(a.Season),
				a.Occupancy, string(a.DemandLevel), string(body)); err != nil {
				return fmt.Errorf("insert allocation %s: %w", a.Date, err)
			}
		}
		return nil
	})
}

// LoadDecisions returns allocations within r, ascending by date.
func (s *Store) LoadDecisions(ctx context.Context, r yield.DateRange) ([]yield.DailyAllocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := rangeClause(r)
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(`
		SELECT date, day_of_week, season, occupancy, demand_level, decisions_json
		FROM daily_inventory_allocation`+where+` ORDER BY date`), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []yield.DailyAllocation
	for rows.Next() {
		var (
			date, dow, season, demand, body string
			occ                             float64
		)
		if err := rows.Scan(&date, &dow, &season, &occ, &demand, &body); err != nil {
			return nil, err
		}
		d, err := yield.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("stored allocation date %q: %w", date, err)
		}
		var payload []decisionJSON
		if err := json.Unmarshal([]byte(body), &payload); err != nil {
			return nil, fmt.Errorf("stored allocation %s: %w", date, err)
		}

		a := yield.DailyAllocation{
			Date:        d,
			DayOfWeek:   dow,
			Season:      yield.Season(season),
			Occupancy:   occ,
			DemandLevel: yield.DemandTier(demand),
		}
		for _, p := range payload {
			rate, _ := yield.ParseRate(p.Rate)
			a.Decisions = append(a.Decisions, yield.YieldDecision{
				Date:            d,
				Category:        yield.RoomCategory(p.Category),
				Remaining:       p.Remaining,
				OnlineAllotment: p.OnlineAllotment,
				Rate:            rate,
				OverrideApplied: p.OverrideApplied,
			})
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func rangeClause(r yield.DateRange) (string, []any) {
	var conds []string
	var args []any
	if !r.From.IsZero() {
		conds = append(conds, "date >= ?")
		args = append(args, r.From.String())
	}
	if !r.To.IsZero() {
		conds = append(conds, "date <= ?")
		args = append(args, r.To.String())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// =============================================================================
// RUN LOG
// =============================================================================

// timestampLayout is fixed-width so text ordering matches time ordering.
const timestampLayout = "2006-01-02T15:04:05.000000Z"

// RecordRun appends a run record.
func (s *Store) RecordRun(ctx context.Context, run yield.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, s.dialect.Rebind(`
		INSERT INTO yield_runs
			(id, started_at, finished_at, status, range_from, range_to, allocated, skipped, warnings, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		run.ID,
		run.StartedAt.UTC().Format(timestampLayout),
		run.FinishedAt.UTC().Format(timestampLayout),
		string(run.Status),
		nullableDate(run.Range.From),
		nullableDate(run.Range.To),
		run.Allocated,
		run.Skipped,
		run.Warnings,
		sql.NullString{String: run.Error, Valid: run.Error != ""},
	)
	return err
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]yield.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, started_at, finished_at, status, range_from, range_to, allocated, skipped, warnings, error
		FROM yield_runs ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []yield.RunRecord
	for rows.Next() {
		var (
			run                 yield.RunRecord
			started, finished   string
			status              string
			from, to, errorText sql.NullString
		)
		if err := rows.Scan(&run.ID, &started, &finished, &status, &from, &to,
			&run.Allocated, &run.Skipped, &run.Warnings, &errorText); err != nil {
			return nil, err
		}
		run.StartedAt, _ = time.Parse(timestampLayout, started)
		run.FinishedAt, _ = time.Parse(timestampLayout, finished)
		run.Status = yield.RunStatus(status)
		if from.Valid {
			run.Range.From, _ = yield.ParseDate(from.String)
		}
		if to.Valid {
			run.Range.To, _ = yield.ParseDate(to.String)
		}
		run.Error = errorText.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func nullableDate(d yield.Date) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}
