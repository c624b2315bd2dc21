/*
Package yield provides the inventory reconciliation and yield decision engine.

PURPOSE:
  Turns daily remaining room inventory into online allotment and BAR rate
  decisions. Inventory arrives from two independently maintained source
  systems (PMS and channel manager), is reconciled into one canonical series,
  classified by season and demand, and run through a fixed rule matrix.

KEY CONCEPTS IN THIS FILE (types.go):
  - RoomCategory: A class of hotel room tracked with independent inventory
  - InventorySnapshot: One reconciled day of inventory plus occupancy
  - CanonicalInventory: The ordered series produced by Reconcile
  - YieldDecision: Allotment and rate for one (date, category)
  - DailyAllocation: All decisions for one date (wide output row)
  - Warning: Non-fatal condition recorded during a run

DESIGN PRINCIPLES:
  1. Immutability: Config and RuleMatrix are values, never mutated during a run
  2. Purity: Each decision is a function of one snapshot plus shared config
  3. Fail-soft rows: Bad days are skipped with a warning, never fabricated
  4. Fail-hard schema: Missing columns abort the batch

USAGE:
  inv, err := yield.Reconcile(pmsTable, cmTable)
  engine := yield.NewEngine(yield.DefaultConfig(), yield.DefaultMatrix())
  result, err := engine.Run(*inv)

SEE ALSO:
  - reconcile.go: Two-source merge
  - season.go, demand.go: Row classification
  - engine.go: Allotment, escalation and override rules
  - store.go: Persistence contract
*/
package yield

import (
	"math"
	"strings"
)

// =============================================================================
// ROOM CATEGORY
// =============================================================================

// RoomCategory is the inventory column name of a room class, e.g. "Deluxe Room".
type RoomCategory string

// Label is the category name used in output column headers ("Deluxe Room" -> "Deluxe").
func (c RoomCategory) Label() string {
	return strings.TrimSuffix(string(c), " Room")
}

// Standard categories of the two-category configuration.
const (
	CategoryDeluxe   RoomCategory = "Deluxe Room"
	CategoryPremiere RoomCategory = "Premiere Room"
)

// Column names with fixed meaning in source and canonical tables.
const (
	DateColumn      = "Date"
	OccupancyColumn = "Occupancy"
)

// =============================================================================
// INVENTORY
// =============================================================================

// InventorySnapshot is one reconciled day.
// Remaining may be negative (overbooked); it is retained, not clamped.
// Occupancy is NaN when neither source reported it for this date.
type InventorySnapshot struct {
	Date      Date
	Remaining map[RoomCategory]int
	Occupancy float64
}

// HasOccupancy reports whether the occupancy value is present.
func (s InventorySnapshot) HasOccupancy() bool {
	return !math.IsNaN(s.Occupancy)
}

// CanonicalInventory is the merged per-date series, ascending by date.
type CanonicalInventory struct {
	Categories   []RoomCategory // column order
	HasOccupancy bool           // whether an Occupancy column exists
	Snapshots    []InventorySnapshot
}

// HasCategory reports whether c is a column of the inventory.
func (ci CanonicalInventory) HasCategory(c RoomCategory) bool {
	for _, existing := range ci.Categories {
		if existing == c {
			return true
		}
	}
	return false
}

// Range returns the first and last date covered. Zero range when empty.
func (ci CanonicalInventory) Range() DateRange {
	if len(ci.Snapshots) == 0 {
		return DateRange{}
	}
	return DateRange{
		From: ci.Snapshots[0].Date,
		To:   ci.Snapshots[len(ci.Snapshots)-1].Date,
	}
}

// =============================================================================
// DECISIONS
// =============================================================================

// YieldDecision is the outcome for one (date, category).
type YieldDecision struct {
	Date            Date
	Category        RoomCategory
	Remaining       int
	OnlineAllotment int
	Rate            Rate
	OverrideApplied bool
}

// DailyAllocation is the wide output row for one date.
// Decisions follow the configured category order.
type DailyAllocation struct {
	Date        Date
	DayOfWeek   string
	Season      Season
	Occupancy   float64
	DemandLevel DemandTier
	Decisions   []YieldDecision
}

// Decision returns the decision for a category, if present.
func (a DailyAllocation) Decision(c RoomCategory) (YieldDecision, bool) {
	for _, d := range a.Decisions {
		if d.Category == c {
			return d, true
		}
	}
	return YieldDecision{}, false
}

// =============================================================================
// WARNINGS - Non-fatal conditions, collected and logged
// =============================================================================

type WarningKind string

const (
	WarnUnclassifiedSeason WarningKind = "unclassified_season"
	WarnUnclassifiedDemand WarningKind = "unclassified_demand"
	WarnInvalidRate        WarningKind = "invalid_rate"
	WarnNegativeInventory  WarningKind = "negative_inventory"
)

// Warning records a condition that was defaulted or skipped.
// Category is empty for row-level warnings.
type Warning struct {
	Kind     WarningKind
	Date     Date
	Category RoomCategory
	Message  string
}

func (w Warning) String() string {
	if w.Category == "" {
		return string(w.Kind) + " " + w.Date.String() + ": " + w.Message
	}
	return string(w.Kind) + " " + w.Date.String() + " " + string(w.Category) + ": " + w.Message
}
