package yield_test

import (
	"errors"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
	"github.com/warp/yield-engine/yield"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := yield.DefaultConfig()
	assert.NoError(t, cfg.Validate())
	check.Equal(t, []yield.RoomCategory{yield.CategoryDeluxe, yield.CategoryPremiere}, cfg.Categories())

	veryLow, low := cfg.Thresholds(yield.CategoryPremiere)
	check.True(t, veryLow.Equal(decimal.NewFromInt(13)))
	check.True(t, low.Equal(decimal.NewFromInt(52)))

	veryLow, low = cfg.Thresholds(yield.CategoryDeluxe)
	check.True(t, veryLow.Equal(decimal.NewFromInt(8)))
	check.True(t, low.Equal(decimal.NewFromInt(32)))
}

func TestConfig_ValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *yield.Config)
		field  string
	}{
		{"single bin", func(c *yield.Config) { c.DemandBins = []float64{0} }, "demand_bins"},
		{"unsorted bins", func(c *yield.Config) { c.DemandBins = []float64{0, 85, 70, 100} }, "demand_bins"},
		{"label count", func(c *yield.Config) { c.DemandLabels = c.DemandLabels[:2] }, "demand_labels"},
		{"duplicate label", func(c *yield.Config) { c.DemandLabels[1] = yield.DemandLow }, "demand_labels"},
		{"pct above one", func(c *yield.Config) { c.LowThresholdPct = decimal.NewFromInt(2) }, "low_threshold_pct"},
		{"no rooms", func(c *yield.Config) { c.RoomCaps = nil }, "room_caps"},
		{"zero capacity", func(c *yield.Config) { c.RoomCaps[yield.CategoryDeluxe] = 0 }, "room_caps"},
		{"unknown override category", func(c *yield.Config) { c.Override.Category = "Villa" }, "override_category"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := yield.DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()

			var ce *yield.ConfigError
			assert.True(t, errors.As(err, &ce))
			check.Equal(t, tt.field, ce.Field)
			check.True(t, errors.Is(err, yield.ErrInvalidConfig))
		})
	}
}

func TestConfig_CloneIsDeep(t *testing.T) {
	cfg := yield.DefaultConfig()
	clone := cfg.Clone()
	clone.DemandBins[1] = 50
	clone.RoomCaps[yield.CategoryDeluxe] = 1

	check.Equal(t, 70.0, cfg.DemandBins[1])
	check.Equal(t, 160, cfg.RoomCaps[yield.CategoryDeluxe])
}

func TestDefaultMatrix_CoversDefaultConfig(t *testing.T) {
	m := yield.DefaultMatrix()
	cfg := yield.DefaultConfig()
	for _, cat := range cfg.Categories() {
		for _, s := range yield.AllSeasons {
			for _, d := range cfg.DemandLabels {
				r, ok := m.Lookup(cat, s, d)
				check.True(t, ok)
				check.True(t, r.Valid())
			}
		}
	}
	r, _ := m.Lookup(yield.CategoryDeluxe, yield.SeasonNormal, yield.DemandHigh)
	check.Equal(t, yield.BAR4, r)
	r, _ = m.Lookup(yield.CategoryPremiere, yield.SeasonPeak, yield.DemandLow)
	check.Equal(t, yield.BAR3, r)
}
