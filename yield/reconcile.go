package yield

import (
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RAW TABLES - Per-date source tables as delivered by PMS / channel manager
// =============================================================================

// RawTable is an untyped per-date table: a header and string cells.
// One column must be named Date (case-insensitive); the rest are room
// categories and optionally Occupancy.
type RawTable struct {
	Name   string
	Header []string
	Rows   [][]string
}

// =============================================================================
// MERGE POLICY - How a column present in both sources is combined
// =============================================================================

type MergePolicy string

const (
	// MergeSum adds both contributions. Inventory counts from different systems
	// are additive parts of the total available rooms, not alternatives.
	MergeSum MergePolicy = "sum"

	// MergePreferFirst keeps the first table's value when both are present.
	MergePreferFirst MergePolicy = "prefer_first"
)

func (p MergePolicy) combine(a, b decimal.Decimal) decimal.Decimal {
	if p == MergePreferFirst {
		return a
	}
	return a.Add(b)
}

// =============================================================================
// RECONCILER
// =============================================================================

// Reconciler merges two source tables into canonical inventory.
// The zero value sums every overlapping column.
type Reconciler struct {
	// Policies overrides the merge policy per column. Unlisted columns use MergeSum.
	Policies map[string]MergePolicy
	Logger   Logger
}

// Reconcile merges a and b with the default policy (sum on collision).
func Reconcile(a, b RawTable) (*CanonicalInventory, error) {
	return (&Reconciler{}).Reconcile(a, b)
}

// parsedTable is a source table keyed by date with numeric cells.
// A column absent from a row's map had an empty cell.
type parsedTable struct {
	name    string
	columns map[string]bool
	rows    map[Date]map[string]decimal.Decimal
}

// Reconcile outer-joins a and b on Date.
//
// Columns present in both tables are merged by policy into a single column.
// A category column missing from one side contributes zero. Occupancy missing
// from every source for a date stays absent (NaN) rather than becoming zero,
// so that day is later skipped instead of being classified as low demand.
// Output is sorted ascending by date.
func (r *Reconciler) Reconcile(a, b RawTable) (*CanonicalInventory, error) {
	log := loggerOrNop(r.Logger)

	left, err := parseTable(a, "a", log)
	if err != nil {
		return nil, err
	}
	right, err := parseTable(b, "b", log)
	if err != nil {
		return nil, err
	}

	columns := make(map[string]bool)
	for c := range left.columns {
		columns[c] = true
	}
	for c := range right.columns {
		columns[c] = true
	}

	inv := &CanonicalInventory{}
	for c := range columns {
		if c == OccupancyColumn {
			inv.HasOccupancy = true
			continue
		}
		inv.Categories = append(inv.Categories, RoomCategory(c))
	}
	sort.Slice(inv.Categories, func(i, j int) bool { return inv.Categories[i] < inv.Categories[j] })

	dates := make(map[Date]bool, len(left.rows)+len(right.rows))
	for d := range left.rows {
		dates[d] = true
	}
	for d := range right.rows {
		dates[d] = true
	}
	ordered := make([]Date, 0, len(dates))
	for d := range dates {
		ordered = append(ordered, d)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Before(ordered[j]) })

	for _, d := range ordered {
		snap := InventorySnapshot{
			Date:      d,
			Remaining: make(map[RoomCategory]int, len(inv.Categories)),
			Occupancy: math.NaN(),
		}
		for _, cat := range inv.Categories {
			v, _ := r.merge(string(cat), left.rows[d], right.rows[d])
			snap.Remaining[cat] = int(v.Round(0).IntPart())
		}
		if inv.HasOccupancy {
			if v, ok := r.merge(OccupancyColumn, left.rows[d], right.rows[d]); ok {
				snap.Occupancy = v.InexactFloat64()
			}
		}
		inv.Snapshots = append(inv.Snapshots, snap)
	}

	log.Info("Reconciled %s (%d rows) and %s (%d rows) into %d dates, %d categories",
		a.Name, len(left.rows), b.Name, len(right.rows), len(inv.Snapshots), len(inv.Categories))
	return inv, nil
}

// merge combines one column for one date. ok is false if neither side had a value.
// A nil row (date absent from that table) contributes nothing.
func (r *Reconciler) merge(column string, left, right map[string]decimal.Decimal) (decimal.Decimal, bool) {
	lv, lok := left[column]
	rv, rok := right[column]
	switch {
	case lok && rok:
		return r.policy(column).combine(lv, rv), true
	case lok:
		return lv, true
	case rok:
		return rv, true
	default:
		return decimal.Zero, false
	}
}

func (r *Reconciler) policy(column string) MergePolicy {
	if p, ok := r.Policies[column]; ok {
		return p
	}
	return MergeSum
}

func parseTable(t RawTable, fallbackName string, log Logger) (*parsedTable, error) {
	name := t.Name
	if name == "" {
		name = fallbackName
	}

	dateIdx := -1
	for i, h := range t.Header {
		if strings.EqualFold(strings.TrimSpace(h), DateColumn) {
			dateIdx = i
			break
		}
	}
	if dateIdx < 0 {
		return nil, &ReconciliationError{Table: name, Reason: "no Date column"}
	}

	pt := &parsedTable{
		name:    name,
		columns: make(map[string]bool),
		rows:    make(map[Date]map[string]decimal.Decimal, len(t.Rows)),
	}
	headers := make([]string, len(t.Header))
	for i, h := range t.Header {
		h = strings.TrimSpace(h)
		if i == dateIdx || h == "" {
			continue
		}
		if strings.EqualFold(h, OccupancyColumn) {
			h = OccupancyColumn
		}
		headers[i] = h
		pt.columns[h] = true
	}

	for n, row := range t.Rows {
		if dateIdx >= len(row) {
			return nil, &ReconciliationError{Table: name, Row: n + 1, Reason: "missing Date cell"}
		}
		d, err := ParseDate(row[dateIdx])
		if err != nil {
			return nil, &ReconciliationError{Table: name, Row: n + 1, Reason: err.Error()}
		}
		if _, dup := pt.rows[d]; dup {
			return nil, &ReconciliationError{Table: name, Row: n + 1, Reason: "duplicate date " + d.String()}
		}

		values := make(map[string]decimal.Decimal, len(pt.columns))
		for i, h := range headers {
			if h == "" || i >= len(row) {
				continue
			}
			cell := strings.TrimSpace(row[i])
			if cell == "" {
				continue
			}
			v, err := decimal.NewFromString(strings.ReplaceAll(cell, ",", ""))
			if err != nil {
				log.Warn("%s %s column %q: non-numeric value %q treated as 0", name, d, h, cell)
				v = decimal.Zero
			}
			// Repeated header names within one table are summed as well.
			if prev, ok := values[h]; ok {
				v = prev.Add(v)
			}
			values[h] = v
		}
		pt.rows[d] = values
	}
	return pt, nil
}
