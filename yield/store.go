/*
store.go - Persistence contract for canonical inventory and decisions

PURPOSE:
  Defines the interface between the engine and the database. The engine
  treats the store as an opaque relational sink with two logical tables:
  canonical merged inventory and daily yield decisions, both keyed by Date.

KEY INTERFACES:
  AllocationStore: Load canonical inventory, replace decisions
  RunLog:          Audit trail of yield runs

REPLACE SEMANTICS:
  There are no incremental updates.
  - SaveCanonicalInventory() replaces the whole canonical table
  - SaveDecisions() replaces every decision in the processed date range,
    atomically. Days in the range without an allocation (skipped days) end
    up with no stored decision. A failed write leaves prior decisions untouched.

IMPLEMENTATIONS:
  - store/sqlite: SQLite (default)
  - store/postgres: PostgreSQL
  - yield/store: In-memory for testing and dry runs

SEE ALSO:
  - service.go: Uses these interfaces
  - store/sqldb/sqldb.go: Shared SQL implementation
*/
package yield

import (
	"context"
	"time"
)

// =============================================================================
// ALLOCATION STORE
// =============================================================================

// AllocationStore persists canonical inventory and yield decisions.
type AllocationStore interface {
	// LoadCanonicalInventory returns the stored canonical inventory, ascending by date.
	// Returns ErrNoInventory if none has been saved.
	LoadCanonicalInventory(ctx context.Context) (*CanonicalInventory, error)

	// SaveCanonicalInventory replaces the stored canonical inventory.
	SaveCanonicalInventory(ctx context.Context, inv CanonicalInventory) error

	// SaveDecisions replaces all decisions within r with allocs.
	// r must be Bounded; an open range returns ErrUnboundedRange.
	// Either all rows are written or none are.
	SaveDecisions(ctx context.Context, r DateRange, allocs []DailyAllocation) error

	// LoadDecisions returns stored allocations within r, ascending by date.
	LoadDecisions(ctx context.Context, r DateRange) ([]DailyAllocation, error)
}

// =============================================================================
// RUN LOG - Audit of yield runs, separate from decisions
// =============================================================================

type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RunRecord summarizes one pipeline run.
type RunRecord struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     RunStatus
	Range      DateRange
	Allocated  int
	Skipped    int
	Warnings   int
	Error      string
}

// RunLog stores run records. Append-only.
type RunLog interface {
	RecordRun(ctx context.Context, run RunRecord) error
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}
