/*
errors.go - Centralized error types for the yield engine

PURPOSE:
  All fatal error types in one place. Non-fatal conditions are not errors;
  they are Warning values collected on the run result (see types.go).

ERROR CATEGORIES:
  1. Reconciliation errors - Source table missing/unparseable Date key
  2. Schema errors - Configured category or Occupancy absent from inventory
  3. Config errors - Incomplete or inconsistent custom configuration
  4. Persistence errors - Sink unreachable or write rejected

USAGE:
  if errors.Is(err, yield.ErrMissingColumn) {
      // reconciliation schema does not match the configured categories
  }

SEE ALSO:
  - reconcile.go: Returns ReconciliationError
  - engine.go: Returns MissingColumnError
  - service.go: Wraps store failures in PersistenceError
*/
package yield

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrReconciliation is returned when a source table cannot be keyed by date.
	ErrReconciliation = errors.New("reconciliation failed")

	// ErrMissingColumn is returned when canonical inventory lacks a required column.
	// This aborts the whole batch: it means the schema does not match the config.
	ErrMissingColumn = errors.New("missing inventory column")

	// ErrInvalidConfig is returned when a configuration is partial or inconsistent.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrPersistence is returned when the allocation store fails.
	ErrPersistence = errors.New("persistence failed")

	// ErrNoInventory is returned when no canonical inventory has been stored yet.
	ErrNoInventory = errors.New("canonical inventory not found")

	// ErrUnboundedRange is returned when decisions are saved over an open range.
	ErrUnboundedRange = errors.New("decision range must have both bounds")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ReconciliationError identifies the offending source table and row.
// Row is 1-based over data rows, 0 when the problem is the header.
type ReconciliationError struct {
	Table  string
	Row    int
	Reason string
}

func (e *ReconciliationError) Error() string {
	if e.Row == 0 {
		return fmt.Sprintf("reconcile %s: %s", e.Table, e.Reason)
	}
	return fmt.Sprintf("reconcile %s row %d: %s", e.Table, e.Row, e.Reason)
}

func (e *ReconciliationError) Unwrap() error {
	return ErrReconciliation
}

// MissingColumnError lists every required column absent from the inventory.
type MissingColumnError struct {
	Columns   []string
	Available []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing required columns [%s] (available: [%s])",
		strings.Join(e.Columns, ", "), strings.Join(e.Available, ", "))
}

func (e *MissingColumnError) Unwrap() error {
	return ErrMissingColumn
}

// ConfigError names the invalid configuration field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// PersistenceError wraps a store failure with the operation that failed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes both the sentinel and the underlying driver error.
func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is caused by caller-supplied input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrReconciliation) ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingColumn)
}

// IsNotFound returns true if the error indicates missing stored data.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNoInventory)
}
