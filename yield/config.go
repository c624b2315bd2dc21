package yield

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CONFIG - Immutable thresholds and capacities for one run
// =============================================================================

// Config holds every tunable of the engine. It is passed by value into each
// classification and decision; nothing in this package keeps process-wide state.
// Use DefaultConfig for the standard two-category setup.
type Config struct {
	DemandBins   []float64
	DemandLabels []DemandTier

	// Fractions of room capacity below which the base rate is escalated.
	VeryLowThresholdPct decimal.Decimal
	LowThresholdPct     decimal.Decimal

	RoomCaps map[RoomCategory]int

	Override OverrideRule
}

// OverrideRule forces a fixed allotment for one category when it is sold out
// but demand is soft or the competing category still has plenty of rooms.
// An empty Category disables the rule.
type OverrideRule struct {
	Category            RoomCategory
	Competitor          RoomCategory
	OccupancyThreshold  float64
	CompetitorThreshold float64
	Amount              int
}

// Enabled reports whether the rule applies to any category.
func (o OverrideRule) Enabled() bool {
	return o.Category != ""
}

// Fires reports whether the rule replaces the allotment for the given inputs.
// It never fires while the category still has at least one room.
func (o OverrideRule) Fires(occupancy float64, competitorRemaining, ownRemaining int) bool {
	if !o.Enabled() || ownRemaining >= 1 {
		return false
	}
	return occupancy < o.OccupancyThreshold || float64(competitorRemaining) > o.CompetitorThreshold
}

// DefaultConfig returns the standard configuration:
// demand bins [0,70,85,100] labelled Low/Medium/High, 5%/20% inventory
// thresholds, 160 Deluxe and 260 Premiere rooms, and the Deluxe override.
func DefaultConfig() Config {
	return Config{
		DemandBins:          []float64{0, 70, 85, 100},
		DemandLabels:        []DemandTier{DemandLow, DemandMedium, DemandHigh},
		VeryLowThresholdPct: decimal.RequireFromString("0.05"),
		LowThresholdPct:     decimal.RequireFromString("0.2"),
		RoomCaps: map[RoomCategory]int{
			CategoryDeluxe:   160,
			CategoryPremiere: 260,
		},
		Override: OverrideRule{
			Category:            CategoryDeluxe,
			Competitor:          CategoryPremiere,
			OccupancyThreshold:  70,
			CompetitorThreshold: 61,
			Amount:              2,
		},
	}
}

// Clone returns a deep copy so callers cannot mutate a config in use.
func (c Config) Clone() Config {
	out := c
	out.DemandBins = append([]float64(nil), c.DemandBins...)
	out.DemandLabels = append([]DemandTier(nil), c.DemandLabels...)
	out.RoomCaps = make(map[RoomCategory]int, len(c.RoomCaps))
	for k, v := range c.RoomCaps {
		out.RoomCaps[k] = v
	}
	return out
}

// Categories returns the configured categories in ascending name order.
// This is the column order of the output.
func (c Config) Categories() []RoomCategory {
	cats := make([]RoomCategory, 0, len(c.RoomCaps))
	for cat := range c.RoomCaps {
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	return cats
}

// Thresholds returns the very-low and low inventory thresholds in rooms.
func (c Config) Thresholds(cat RoomCategory) (veryLow, low decimal.Decimal) {
	capacity := decimal.NewFromInt(int64(c.RoomCaps[cat]))
	return capacity.Mul(c.VeryLowThresholdPct), capacity.Mul(c.LowThresholdPct)
}

// Validate checks the configuration is complete and internally consistent.
func (c Config) Validate() error {
	if len(c.DemandBins) < 2 {
		return &ConfigError{Field: "demand_bins", Reason: "need at least two breakpoints"}
	}
	for i := 1; i < len(c.DemandBins); i++ {
		if !(c.DemandBins[i] > c.DemandBins[i-1]) {
			return &ConfigError{Field: "demand_bins", Reason: "breakpoints must be strictly increasing"}
		}
	}
	if len(c.DemandLabels) != len(c.DemandBins)-1 {
		return &ConfigError{
			Field:  "demand_labels",
			Reason: fmt.Sprintf("need %d labels for %d bins, got %d", len(c.DemandBins)-1, len(c.DemandBins), len(c.DemandLabels)),
		}
	}
	seen := make(map[DemandTier]bool, len(c.DemandLabels))
	for _, l := range c.DemandLabels {
		if l == "" {
			return &ConfigError{Field: "demand_labels", Reason: "empty label"}
		}
		if seen[l] {
			return &ConfigError{Field: "demand_labels", Reason: fmt.Sprintf("duplicate label %q", l)}
		}
		seen[l] = true
	}

	one := decimal.NewFromInt(1)
	for field, pct := range map[string]decimal.Decimal{
		"very_low_threshold_pct": c.VeryLowThresholdPct,
		"low_threshold_pct":      c.LowThresholdPct,
	} {
		if pct.IsNegative() || pct.GreaterThan(one) {
			return &ConfigError{Field: field, Reason: "must be a fraction between 0 and 1"}
		}
	}

	if len(c.RoomCaps) == 0 {
		return &ConfigError{Field: "room_caps", Reason: "at least one room category required"}
	}
	for cat, capacity := range c.RoomCaps {
		if cat == "" {
			return &ConfigError{Field: "room_caps", Reason: "empty category name"}
		}
		if capacity <= 0 {
			return &ConfigError{Field: "room_caps", Reason: fmt.Sprintf("capacity for %q must be positive", cat)}
		}
	}

	if c.Override.Enabled() {
		if _, ok := c.RoomCaps[c.Override.Category]; !ok {
			return &ConfigError{Field: "override_category", Reason: fmt.Sprintf("%q is not in room_caps", c.Override.Category)}
		}
		if _, ok := c.RoomCaps[c.Override.Competitor]; !ok {
			return &ConfigError{Field: "override_competitor_category", Reason: fmt.Sprintf("%q is not in room_caps", c.Override.Competitor)}
		}
		if c.Override.Category == c.Override.Competitor {
			return &ConfigError{Field: "override_competitor_category", Reason: "must differ from override_category"}
		}
		if c.Override.Amount < 0 {
			return &ConfigError{Field: "override_amount", Reason: "must not be negative"}
		}
	}
	return nil
}
