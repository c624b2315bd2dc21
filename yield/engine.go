/*
engine.go - Yield decision engine

PURPOSE:
  Computes online allotment and BAR rate for every (date, category) of a
  canonical inventory, following the season x demand rule matrix.

ALGORITHM (per category, per day):
  1. Base rate:   matrix[category][season][demand], BAR5 if not a valid tier
  2. Allotment:   fixed bands on remaining inventory, capped by room capacity
                    <= 0    -> 0
                    1..5    -> min(2, remaining, cap)
                    6..10   -> min(5, remaining, cap)
                    11..50  -> min(10, remaining, cap)
                    > 50    -> min(30, remaining, cap)
  3. Escalation:  remaining <= cap*very_low -> 2 tiers toward BAR2
                  remaining <= cap*low      -> 1 tier toward BAR2
  4. Override:    primary category sold out AND (occupancy below threshold OR
                  competitor above threshold) -> allotment = override amount.
                  The rate from step 3 is kept as is.

FAILURE SEMANTICS:
  - Unclassifiable occupancy: the date is skipped, warning recorded
  - Unknown matrix entry:     BAR5, warning recorded
  - Negative remaining:       retained, warning recorded
  - Missing category/Occupancy column: MissingColumnError, whole batch aborts

CONCURRENCY:
  Each day is a pure function of its snapshot plus the engine's config and
  matrix, which are private copies and never mutated. Run evaluates days on
  a bounded errgroup and reassembles results in date order.

SEE ALSO:
  - config.go: Thresholds and override rule
  - matrix.go: Default rule matrix
  - service.go: Load -> Run -> Save orchestration
*/
package yield

import (
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Engine applies the rule matrix. Create with NewEngine.
type Engine struct {
	config Config
	matrix RuleMatrix

	Logger  Logger
	Workers int // max concurrent days in Run; <= 0 means GOMAXPROCS
}

// NewEngine returns an engine over private copies of cfg and matrix.
func NewEngine(cfg Config, matrix RuleMatrix) *Engine {
	return &Engine{config: cfg.Clone(), matrix: matrix.Clone()}
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config { return e.config.Clone() }

// =============================================================================
// RULES - Pure functions of a single category
// =============================================================================

// allotmentBands are checked in order; the first band whose upper bound
// contains the remaining count sets the cap. The last band is unbounded.
var allotmentBands = []struct {
	upTo  int
	limit int
}{
	{5, 2},
	{10, 5},
	{50, 10},
	{-1, 30},
}

// OnlineAllotment returns the rooms to release for sale given remaining
// inventory and room capacity. Never negative, never above remaining or capacity.
func OnlineAllotment(remaining, capacity int) int {
	if remaining <= 0 {
		return 0
	}
	for _, b := range allotmentBands {
		if b.upTo < 0 || remaining <= b.upTo {
			return minInt(b.limit, remaining, capacity)
		}
	}
	return 0
}

// EscalationShift returns how many tiers to move the base rate toward BAR2.
func EscalationShift(remaining int, veryLow, low decimal.Decimal) int {
	r := decimal.NewFromInt(int64(remaining))
	switch {
	case r.LessThanOrEqual(veryLow):
		return 2
	case r.LessThanOrEqual(low):
		return 1
	default:
		return 0
	}
}

func minInt(first int, rest ...int) int {
	m := first
	for _, v := range rest {
		if v < m {
			m = v
		}
	}
	if m < 0 {
		return 0
	}
	return m
}

// =============================================================================
// EVALUATION - One day
// =============================================================================

// Evaluation is the outcome for one snapshot.
// When Skipped is true Allocation is zero and no decision was emitted.
type Evaluation struct {
	Allocation DailyAllocation
	Skipped    bool
	Warnings   []Warning
}

// Evaluate computes the allocation for one day.
// It returns MissingColumnError if the snapshot lacks a configured category.
func (e *Engine) Evaluate(snap InventorySnapshot) (Evaluation, error) {
	var ev Evaluation

	var missing []string
	for _, cat := range e.config.Categories() {
		if _, ok := snap.Remaining[cat]; !ok {
			missing = append(missing, string(cat))
		}
	}
	if len(missing) > 0 {
		return ev, &MissingColumnError{Columns: missing, Available: snapshotColumns(snap)}
	}

	season, matched := ClassifySeason(snap.Date)
	if !matched {
		ev.Warnings = append(ev.Warnings, Warning{
			Kind:    WarnUnclassifiedSeason,
			Date:    snap.Date,
			Message: "no season range matched, defaulting to " + string(FallbackSeason),
		})
	}

	demand, ok := ClassifyDemand(snap.Occupancy, e.config.DemandBins, e.config.DemandLabels)
	if !ok {
		ev.Skipped = true
		ev.Warnings = append(ev.Warnings, Warning{
			Kind:    WarnUnclassifiedDemand,
			Date:    snap.Date,
			Message: fmt.Sprintf("occupancy %v outside demand bins %v, day skipped", snap.Occupancy, e.config.DemandBins),
		})
		return ev, nil
	}

	alloc := DailyAllocation{
		Date:        snap.Date,
		DayOfWeek:   snap.Date.Weekday().String(),
		Season:      season,
		Occupancy:   decimal.NewFromFloat(snap.Occupancy).Round(2).InexactFloat64(),
		DemandLevel: demand,
	}

	for _, cat := range e.config.Categories() {
		decision, warnings := e.decide(snap, cat, season, demand)
		alloc.Decisions = append(alloc.Decisions, decision)
		ev.Warnings = append(ev.Warnings, warnings...)
	}
	ev.Allocation = alloc
	return ev, nil
}

// decide applies steps 1-4 to one category.
func (e *Engine) decide(snap InventorySnapshot, cat RoomCategory, season Season, demand DemandTier) (YieldDecision, []Warning) {
	var warnings []Warning
	remaining := snap.Remaining[cat]
	capacity := e.config.RoomCaps[cat]

	if remaining < 0 {
		warnings = append(warnings, Warning{
			Kind:     WarnNegativeInventory,
			Date:     snap.Date,
			Category: cat,
			Message:  fmt.Sprintf("remaining inventory %d is negative (overbooked), retained", remaining),
		})
	}

	base, ok := e.matrix.Lookup(cat, season, demand)
	if !ok {
		warnings = append(warnings, Warning{
			Kind:     WarnInvalidRate,
			Date:     snap.Date,
			Category: cat,
			Message:  fmt.Sprintf("no valid rate for %s/%s, using %s", season, demand, DefaultRate),
		})
		base = DefaultRate
	}

	veryLow, low := e.config.Thresholds(cat)
	rate := base.Escalate(EscalationShift(remaining, veryLow, low))

	decision := YieldDecision{
		Date:            snap.Date,
		Category:        cat,
		Remaining:       remaining,
		OnlineAllotment: OnlineAllotment(remaining, capacity),
		Rate:            rate,
	}

	rule := e.config.Override
	if rule.Enabled() && cat == rule.Category &&
		rule.Fires(snap.Occupancy, snap.Remaining[rule.Competitor], remaining) {
		decision.OnlineAllotment = rule.Amount
		decision.OverrideApplied = true
	}
	return decision, warnings
}

func snapshotColumns(snap InventorySnapshot) []string {
	cols := make([]string, 0, len(snap.Remaining))
	for c := range snap.Remaining {
		cols = append(cols, string(c))
	}
	sort.Strings(cols)
	return cols
}

// =============================================================================
// RUN - Whole canonical inventory
// =============================================================================

// RunResult holds the allocations of a run in ascending date order.
type RunResult struct {
	Allocations []DailyAllocation
	Warnings    []Warning
	Evaluated   int // snapshots considered
	Skipped     int // snapshots skipped for unclassifiable demand
}

// Decisions flattens the allocations into per-category decisions.
func (r *RunResult) Decisions() []YieldDecision {
	var out []YieldDecision
	for _, a := range r.Allocations {
		out = append(out, a.Decisions...)
	}
	return out
}

// CheckSchema verifies every configured category and Occupancy exist in inv.
func (e *Engine) CheckSchema(inv CanonicalInventory) error {
	var missing []string
	for _, cat := range e.config.Categories() {
		if !inv.HasCategory(cat) {
			missing = append(missing, string(cat))
		}
	}
	if !inv.HasOccupancy {
		missing = append(missing, OccupancyColumn)
	}
	if len(missing) == 0 {
		return nil
	}
	available := make([]string, 0, len(inv.Categories)+1)
	for _, c := range inv.Categories {
		available = append(available, string(c))
	}
	if inv.HasOccupancy {
		available = append(available, OccupancyColumn)
	}
	return &MissingColumnError{Columns: missing, Available: available}
}

// Run evaluates every snapshot. Fatal errors abort with no partial result.
func (e *Engine) Run(inv CanonicalInventory) (*RunResult, error) {
	log := loggerOrNop(e.Logger)

	if err := e.config.Validate(); err != nil {
		return nil, err
	}
	if err := e.CheckSchema(inv); err != nil {
		return nil, err
	}

	evals := make([]Evaluation, len(inv.Snapshots))
	var g errgroup.Group
	workers := e.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(workers)
	for i := range inv.Snapshots {
		i := i
		g.Go(func() error {
			ev, err := e.Evaluate(inv.Snapshots[i])
			if err != nil {
				return fmt.Errorf("%s: %w", inv.Snapshots[i].Date, err)
			}
			evals[i] = ev
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &RunResult{Evaluated: len(evals)}
	for _, ev := range evals {
		for _, w := range ev.Warnings {
			log.Warn("%s", w)
		}
		result.Warnings = append(result.Warnings, ev.Warnings...)
		if ev.Skipped {
			result.Skipped++
			continue
		}
		log.Info("%s", describe(ev.Allocation))
		result.Allocations = append(result.Allocations, ev.Allocation)
	}
	sort.SliceStable(result.Allocations, func(i, j int) bool {
		return result.Allocations[i].Date.Before(result.Allocations[j].Date)
	})

	log.Info("Yield run complete: %d days evaluated, %d allocated, %d skipped, %d warnings",
		result.Evaluated, len(result.Allocations), result.Skipped, len(result.Warnings))
	return result, nil
}

// describe renders one allocation as a progress line.
func describe(a DailyAllocation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s occ=%.2f demand=%s", a.Date, a.DayOfWeek[:3], a.Season, a.Occupancy, a.DemandLevel)
	for _, d := range a.Decisions {
		fmt.Fprintf(&b, " | %s remaining=%d online=%d %s", d.Category.Label(), d.Remaining, d.OnlineAllotment, d.Rate)
		if d.OverrideApplied {
			b.WriteString(" (override)")
		}
	}
	return b.String()
}
