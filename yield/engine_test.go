package yield_test

import (
	"errors"
	"math"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
	"github.com/warp/yield-engine/yield"
)

func snapshot(date string, occ float64, deluxe, premiere int) yield.InventorySnapshot {
	return yield.InventorySnapshot{
		Date:      yield.MustParseDate(date),
		Occupancy: occ,
		Remaining: map[yield.RoomCategory]int{
			yield.CategoryDeluxe:   deluxe,
			yield.CategoryPremiere: premiere,
		},
	}
}

func inventory(snaps ...yield.InventorySnapshot) yield.CanonicalInventory {
	return yield.CanonicalInventory{
		Categories:   []yield.RoomCategory{yield.CategoryDeluxe, yield.CategoryPremiere},
		HasOccupancy: true,
		Snapshots:    snaps,
	}
}

// flatMatrix maps every season and tier of both default categories to rate.
func flatMatrix(rate yield.Rate) yield.RuleMatrix {
	m := yield.RuleMatrix{}
	for _, cat := range []yield.RoomCategory{yield.CategoryDeluxe, yield.CategoryPremiere} {
		m[cat] = map[yield.Season]map[yield.DemandTier]yield.Rate{}
		for _, s := range yield.AllSeasons {
			m[cat][s] = map[yield.DemandTier]yield.Rate{
				yield.DemandLow: rate, yield.DemandMedium: rate, yield.DemandHigh: rate,
			}
		}
	}
	return m
}

func decisionFor(t *testing.T, ev yield.Evaluation, cat yield.RoomCategory) yield.YieldDecision {
	t.Helper()
	d, ok := ev.Allocation.Decision(cat)
	assert.True(t, ok)
	return d
}

// =============================================================================
// RULES
// =============================================================================

func TestOnlineAllotment_Bands(t *testing.T) {
	tests := []struct {
		remaining, capacity, want int
	}{
		{0, 160, 0},
		{-4, 160, 0},
		{3, 160, 2},
		{1, 160, 1},
		{5, 160, 2},
		{6, 160, 5},
		{10, 160, 5},
		{11, 160, 10},
		{50, 160, 10},
		{51, 160, 30},
		{500, 160, 30},
		{51, 20, 20},
	}
	for _, tt := range tests {
		check.Equal(t, tt.want, yield.OnlineAllotment(tt.remaining, tt.capacity))
	}
}

func TestOnlineAllotment_Monotonic(t *testing.T) {
	for _, capacity := range []int{1, 8, 160, 260} {
		prev := 0
		for remaining := 0; remaining <= 300; remaining++ {
			got := yield.OnlineAllotment(remaining, capacity)
			if got < prev {
				t.Errorf("capacity %d: allotment dropped from %d to %d at remaining %d", capacity, prev, got, remaining)
			}
			if remaining > 0 && got > remaining {
				t.Errorf("capacity %d: allotment %d above remaining %d", capacity, got, remaining)
			}
			prev = got
		}
	}
}

func TestEscalationShift(t *testing.T) {
	veryLow, low := decimal.NewFromInt(8), decimal.NewFromInt(32)
	check.Equal(t, 2, yield.EscalationShift(-3, veryLow, low))
	check.Equal(t, 2, yield.EscalationShift(8, veryLow, low))
	check.Equal(t, 1, yield.EscalationShift(9, veryLow, low))
	check.Equal(t, 1, yield.EscalationShift(32, veryLow, low))
	check.Equal(t, 0, yield.EscalationShift(33, veryLow, low))
}

func TestOverrideRule_NeverFiresWithRoomsLeft(t *testing.T) {
	rule := yield.DefaultConfig().Override
	for own := 1; own <= 20; own++ {
		for _, occ := range []float64{0, 50, 69.99, 70, 100} {
			for _, comp := range []int{0, 61, 62, 300} {
				if rule.Fires(occ, comp, own) {
					t.Errorf("override fired with own=%d occ=%v comp=%d", own, occ, comp)
				}
			}
		}
	}
	check.True(t, rule.Fires(65, 40, 0))
	check.True(t, rule.Fires(90, 62, 0))
	check.False(t, rule.Fires(90, 5, -2))
	check.False(t, rule.Fires(70, 61, 0))
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestEvaluate_NoRoomsLeftReleasesNothing(t *testing.T) {
	// GIVEN: Deluxe sold out on a busy day (override conditions not met)
	e := yield.NewEngine(yield.DefaultConfig(), yield.DefaultMatrix())

	// WHEN: Evaluating
	ev, err := e.Evaluate(snapshot("2025-03-10", 90, 0, 10))
	assert.NoError(t, err)

	// THEN: Nothing is released
	d := decisionFor(t, ev, yield.CategoryDeluxe)
	check.Equal(t, 0, d.OnlineAllotment)
	check.False(t, d.OverrideApplied)
}

func TestEvaluate_ThreeRoomsLeftReleasesTwo(t *testing.T) {
	e := yield.NewEngine(yield.DefaultConfig(), yield.DefaultMatrix())
	ev, err := e.Evaluate(snapshot("2025-03-10", 50, 3, 100))
	assert.NoError(t, err)
	check.Equal(t, 2, decisionFor(t, ev, yield.CategoryDeluxe).OnlineAllotment)
}

func TestEvaluate_AboveLowThresholdKeepsBaseRate(t *testing.T) {
	// GIVEN: Premiere (cap 260, thresholds 13/52) with 61 rooms and base BAR5
	e := yield.NewEngine(yield.DefaultConfig(), flatMatrix(yield.BAR5))

	// WHEN: Evaluating
	ev, err := e.Evaluate(snapshot("2025-03-10", 50, 100, 61))
	assert.NoError(t, err)

	// THEN: No escalation
	check.Equal(t, yield.BAR5, decisionFor(t, ev, yield.CategoryPremiere).Rate)
}

func TestEvaluate_BetweenThresholdsEscalatesOneTier(t *testing.T) {
	// GIVEN: Deluxe (cap 160, thresholds 8/32) with 10 rooms and base BAR5
	e := yield.NewEngine(yield.DefaultConfig(), flatMatrix(yield.BAR5))

	ev, err := e.Evaluate(snapshot("2025-03-10", 50, 10, 200))
	assert.NoError(t, err)

	// THEN: BAR5 -> BAR4
	check.Equal(t, yield.BAR4, decisionFor(t, ev, yield.CategoryDeluxe).Rate)
}

func TestEvaluate_OverrideReplacesAllotmentOnly(t *testing.T) {
	// GIVEN: Deluxe sold out, occupancy 65 below the 70 threshold
	e := yield.NewEngine(yield.DefaultConfig(), flatMatrix(yield.BAR5))

	// WHEN: Evaluating
	ev, err := e.Evaluate(snapshot("2025-03-10", 65, 0, 40))
	assert.NoError(t, err)

	// THEN: Override sets the allotment; rate still escalates from remaining=0
	d := decisionFor(t, ev, yield.CategoryDeluxe)
	check.Equal(t, 2, d.OnlineAllotment)
	check.True(t, d.OverrideApplied)
	check.Equal(t, yield.BAR3, d.Rate)

	// Premiere is never overridden
	check.False(t, decisionFor(t, ev, yield.CategoryPremiere).OverrideApplied)
}

func TestEvaluate_OverrideOnCompetitorSurplus(t *testing.T) {
	e := yield.NewEngine(yield.DefaultConfig(), yield.DefaultMatrix())
	ev, err := e.Evaluate(snapshot("2025-03-10", 95, 0, 62))
	assert.NoError(t, err)
	d := decisionFor(t, ev, yield.CategoryDeluxe)
	check.True(t, d.OverrideApplied)
	check.Equal(t, 2, d.OnlineAllotment)
}

func TestEvaluate_DisabledOverride(t *testing.T) {
	cfg := yield.DefaultConfig()
	cfg.Override = yield.OverrideRule{}
	e := yield.NewEngine(cfg, yield.DefaultMatrix())
	ev, err := e.Evaluate(snapshot("2025-03-10", 10, 0, 300))
	assert.NoError(t, err)
	check.False(t, decisionFor(t, ev, yield.CategoryDeluxe).OverrideApplied)
}

// =============================================================================
// EVALUATE - Row fields and warnings
// =============================================================================

func TestEvaluate_RowFields(t *testing.T) {
	e := yield.NewEngine(yield.DefaultConfig(), yield.DefaultMatrix())

	// 2025-07-15 is a Tuesday in High season
	ev, err := e.Evaluate(snapshot("2025-07-15", 88.456, 100, 200))
	assert.NoError(t, err)

	check.False(t, ev.Skipped)
	check.Equal(t, "Tuesday", ev.Allocation.DayOfWeek)
	check.Equal(t, yield.SeasonHigh, ev.Allocation.Season)
	check.Equal(t, yield.DemandHigh, ev.Allocation.DemandLevel)
	check.Equal(t, 88.46, ev.Allocation.Occupancy)
	check.Equal(t, 2, len(ev.Allocation.Decisions))
	check.Equal(t, yield.BAR2, decisionFor(t, ev, yield.CategoryDeluxe).Rate)
	check.Equal(t, 30, decisionFor(t, ev, yield.CategoryDeluxe).OnlineAllotment)
}

func TestEvaluate_UnclassifiedDemandSkipsDay(t *testing.T) {
	e := yield.NewEngine(yield.DefaultConfig(), yield.DefaultMatrix())

	for _, occ := range []float64{120, -5, math.NaN()} {
		ev, err := e.Evaluate(snapshot("2025-03-10", occ, 5, 5))
		assert.NoError(t, err)
		check.True(t, ev.Skipped)
		check.Equal(t, 0, len(ev.Allocation.Decisions))
		assert.Equal(t, 1, len(ev.Warnings))
		check.Equal(t, yield.WarnUnclassifiedDemand, ev.Warnings[0].Kind)
	}
}

func TestEvaluate_NegativeInventoryRetained(t *testing.T) {
	e := yield.NewEngine(yield.DefaultConfig(), flatMatrix(yield.BAR6))
	ev, err := e.Evaluate(snapshot("2025-03-10", 90, -3, 10))
	assert.NoError(t, err)

	d := decisionFor(t, ev, yield.CategoryDeluxe)
	check.Equal(t, -3, d.Remaining)
	check.Equal(t, 0, d.OnlineAllotment)
	check.Equal(t, yield.BAR4, d.Rate)
	assert.Equal(t, 1, len(ev.Warnings))
	check.Equal(t, yield.WarnNegativeInventory, ev.Warnings[0].Kind)
	check.Equal(t, yield.CategoryDeluxe, ev.Warnings[0].Category)
}

func TestEvaluate_InvalidRateFallsBackToBAR5(t *testing.T) {
	// GIVEN: A matrix with an unrecognized rate for Deluxe
	m := flatMatrix(yield.BAR6)
	m[yield.CategoryDeluxe][yield.SeasonNormal][yield.DemandLow] = yield.RateInvalid
	e := yield.NewEngine(yield.DefaultConfig(), m)

	// WHEN: Evaluating a Normal/Low day with plenty of rooms
	ev, err := e.Evaluate(snapshot("2025-03-10", 40, 100, 200))
	assert.NoError(t, err)

	// THEN: BAR5 is used and the row is still produced
	check.Equal(t, yield.BAR5, decisionFor(t, ev, yield.CategoryDeluxe).Rate)
	check.Equal(t, yield.BAR6, decisionFor(t, ev, yield.CategoryPremiere).Rate)
	assert.Equal(t, 1, len(ev.Warnings))
	check.Equal(t, yield.WarnInvalidRate, ev.Warnings[0].Kind)
}

func TestEvaluate_MissingCategory(t *testing.T) {
	e := yield.NewEngine(yield.DefaultConfig(), yield.DefaultMatrix())
	snap := yield.InventorySnapshot{
		Date:      yield.MustParseDate("2025-03-10"),
		Occupancy: 50,
		Remaining: map[yield.RoomCategory]int{yield.CategoryDeluxe: 5},
	}
	_, err := e.Evaluate(snap)
	var mce *yield.MissingColumnError
	assert.True(t, errors.As(err, &mce))
	check.Equal(t, []string{string(yield.CategoryPremiere)}, mce.Columns)
}

// =============================================================================
// RUN
// =============================================================================

func TestRun_OrderedAndCounted(t *testing.T) {
	// GIVEN: Four days out of order, one with occupancy above 100
	inv := inventory(
		snapshot("2025-03-12", 50, 60, 60),
		snapshot("2025-03-10", 75, 60, 60),
		snapshot("2025-03-13", 140, 60, 60),
		snapshot("2025-03-11", 90, 60, 60),
	)
	e := yield.NewEngine(yield.DefaultConfig(), yield.DefaultMatrix())
	e.Workers = 2

	// WHEN: Running
	res, err := e.Run(inv)
	assert.NoError(t, err)

	// THEN: Three allocations ascending by date, one skipped
	check.Equal(t, 4, res.Evaluated)
	check.Equal(t, 1, res.Skipped)
	assert.Equal(t, 3, len(res.Allocations))
	check.Equal(t, "2025-03-10", res.Allocations[0].Date.String())
	check.Equal(t, "2025-03-11", res.Allocations[1].Date.String())
	check.Equal(t, "2025-03-12", res.Allocations[2].Date.String())
	check.Equal(t, 6, len(res.Decisions()))
	check.Equal(t, 1, len(res.Warnings))
}

func TestRun_MissingColumnsAbort(t *testing.T) {
	e := yield.NewEngine(yield.DefaultConfig(), yield.DefaultMatrix())

	inv := inventory(snapshot("2025-03-10", 50, 1, 1))
	inv.Categories = []yield.RoomCategory{yield.CategoryDeluxe}
	_, err := e.Run(inv)
	check.True(t, errors.Is(err, yield.ErrMissingColumn))

	inv = inventory(snapshot("2025-03-10", 50, 1, 1))
	inv.HasOccupancy = false
	_, err = e.Run(inv)
	var mce *yield.MissingColumnError
	assert.True(t, errors.As(err, &mce))
	check.Equal(t, []string{yield.OccupancyColumn}, mce.Columns)
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := yield.DefaultConfig()
	cfg.DemandBins = []float64{0, 85, 70, 100}
	_, err := yield.NewEngine(cfg, yield.DefaultMatrix()).Run(inventory())
	check.True(t, errors.Is(err, yield.ErrInvalidConfig))
	check.True(t, yield.IsClientError(err))
}

func TestRun_EngineIsolatedFromCallerConfig(t *testing.T) {
	cfg := yield.DefaultConfig()
	e := yield.NewEngine(cfg, yield.DefaultMatrix())
	cfg.RoomCaps[yield.CategoryDeluxe] = 1

	check.Equal(t, 160, e.Config().RoomCaps[yield.CategoryDeluxe])
}
