/*
Package factory provides JSON to Go yield configuration conversion.

PURPOSE:
  Converts a JSON configuration into a yield.Config and yield.RuleMatrix.
  Revenue managers tune thresholds from the admin UI; the factory turns that
  payload into the immutable values the engine runs on.

JSON SCHEMA:
  {
    "demand_bins": [0, 70, 85, 100],
    "demand_labels": ["Low", "Medium", "High"],
    "very_low_threshold_pct": 0.05,
    "low_threshold_pct": 0.2,
    "room_caps": {"Deluxe Room": 160, "Premiere Room": 260},
    "override_occupancy_threshold": 70,
    "override_competitor_threshold": 61,
    "override_amount": 2,

    // optional
    "override_category": "Deluxe Room",
    "override_competitor_category": "Premiere Room",
    "rate_matrix": {"Deluxe Room": {"Normal": {"High": "BAR4", ...}, ...}, ...}
  }

COMPLETENESS:
  Every non-optional key is required. A partial configuration is rejected,
  never filled in from defaults.

  When the override categories are omitted they default to Deluxe/Premiere
  if both are in room_caps; otherwise the override rule is disabled.
  When rate_matrix is omitted the default matrix is used.

USAGE:
  f := factory.NewConfigFactory()
  cfg, matrix, err := f.ParseConfig(body)
  engine := yield.NewEngine(cfg, matrix)

SEE ALSO:
  - yield/config.go: Config type and semantic validation
  - yield/matrix.go: Default matrix
*/
package factory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/warp/yield-engine/yield"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ConfigJSON is the JSON representation of a yield configuration.
// Pointers distinguish a missing key from an explicit zero.
type ConfigJSON struct {
	DemandBins                  []float64      `json:"demand_bins" validate:"required,min=2"`
	DemandLabels                []string       `json:"demand_labels" validate:"required,min=1,dive,required"`
	VeryLowThresholdPct         *float64       `json:"very_low_threshold_pct" validate:"required,gte=0,lte=1"`
	LowThresholdPct             *float64       `json:"low_threshold_pct" validate:"required,gte=0,lte=1"`
	RoomCaps                    map[string]int `json:"room_caps" validate:"required,min=1,dive,keys,required,endkeys,gt=0"`
	OverrideOccupancyThreshold  *float64       `json:"override_occupancy_threshold" validate:"required"`
	OverrideCompetitorThreshold *float64       `json:"override_competitor_threshold" validate:"required"`
	OverrideAmount              *int           `json:"override_amount" validate:"required,gte=0"`

	OverrideCategory           string    `json:"override_category,omitempty"`
	OverrideCompetitorCategory string    `json:"override_competitor_category,omitempty"`
	RateMatrix                 MatrixJSON `json:"rate_matrix,omitempty"`
}

// MatrixJSON is category -> season -> demand -> rate label.
type MatrixJSON map[string]map[string]map[string]string

// =============================================================================
// CONFIG FACTORY
// =============================================================================

// ConfigFactory converts JSON configurations to Go values.
type ConfigFactory struct {
	validate *validator.Validate
}

// NewConfigFactory creates a new config factory.
func NewConfigFactory() *ConfigFactory {
	v := validator.New()
	// Report JSON key names instead of Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &ConfigFactory{validate: v}
}

// ParseConfig parses a JSON document into a Config and RuleMatrix.
// Unknown keys are rejected.
func (f *ConfigFactory) ParseConfig(data []byte) (yield.Config, yield.RuleMatrix, error) {
	var cj ConfigJSON
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cj); err != nil {
		return yield.Config{}, nil, &yield.ConfigError{Field: "body", Reason: fmt.Sprintf("failed to parse config JSON: %v", err)}
	}
	return f.FromJSON(cj)
}

// FromJSON converts ConfigJSON to Config and RuleMatrix and validates both.
func (f *ConfigFactory) FromJSON(cj ConfigJSON) (yield.Config, yield.RuleMatrix, error) {
	if err := f.validate.Struct(cj); err != nil {
		return yield.Config{}, nil, translate(err)
	}

	cfg := yield.Config{
		DemandBins:          append([]float64(nil), cj.DemandBins...),
		VeryLowThresholdPct: decimal.NewFromFloat(*cj.VeryLowThresholdPct),
		LowThresholdPct:     decimal.NewFromFloat(*cj.LowThresholdPct),
		RoomCaps:            make(map[yield.RoomCategory]int, len(cj.RoomCaps)),
		Override: yield.OverrideRule{
			Category:            yield.RoomCategory(cj.OverrideCategory),
			Competitor:          yield.RoomCategory(cj.OverrideCompetitorCategory),
			OccupancyThreshold:  *cj.OverrideOccupancyThreshold,
			CompetitorThreshold: *cj.OverrideCompetitorThreshold,
			Amount:              *cj.OverrideAmount,
		},
	}
	for _, l := range cj.DemandLabels {
		cfg.DemandLabels = append(cfg.DemandLabels, yield.DemandTier(strings.TrimSpace(l)))
	}
	for name, capacity := range cj.RoomCaps {
		cfg.RoomCaps[yield.RoomCategory(name)] = capacity
	}

	if cfg.Override.Category == "" && cfg.Override.Competitor == "" {
		_, hasDeluxe := cfg.RoomCaps[yield.CategoryDeluxe]
		_, hasPremiere := cfg.RoomCaps[yield.CategoryPremiere]
		if hasDeluxe && hasPremiere {
			cfg.Override.Category = yield.CategoryDeluxe
			cfg.Override.Competitor = yield.CategoryPremiere
		}
	} else if cfg.Override.Category == "" {
		return yield.Config{}, nil, &yield.ConfigError{Field: "override_category", Reason: "required when override_competitor_category is set"}
	}

	if err := cfg.Validate(); err != nil {
		return yield.Config{}, nil, err
	}

	matrix := yield.DefaultMatrix()
	if cj.RateMatrix != nil {
		var err error
		matrix, err = parseMatrix(cj.RateMatrix)
		if err != nil {
			return yield.Config{}, nil, err
		}
	}
	return cfg, matrix, nil
}

// ToJSON converts a Config and RuleMatrix back to ConfigJSON.
func (f *ConfigFactory) ToJSON(cfg yield.Config, matrix yield.RuleMatrix) ConfigJSON {
	veryLow := cfg.VeryLowThresholdPct.InexactFloat64()
	low := cfg.LowThresholdPct.InexactFloat64()
	occ := cfg.Override.OccupancyThreshold
	comp := cfg.Override.CompetitorThreshold
	amount := cfg.Override.Amount

	cj := ConfigJSON{
		DemandBins:                  append([]float64(nil), cfg.DemandBins...),
		VeryLowThresholdPct:         &veryLow,
		LowThresholdPct:             &low,
		RoomCaps:                    make(map[string]int, len(cfg.RoomCaps)),
		OverrideOccupancyThreshold:  &occ,
		OverrideCompetitorThreshold: &comp,
		OverrideAmount:              &amount,
		OverrideCategory:            string(cfg.Override.Category),
		OverrideCompetitorCategory:  string(cfg.Override.Competitor),
		RateMatrix:                  make(MatrixJSON, len(matrix)),
	}
	for _, l := range cfg.DemandLabels {
		cj.DemandLabels = append(cj.DemandLabels, string(l))
	}
	for cat, capacity := range cfg.RoomCaps {
		cj.RoomCaps[string(cat)] = capacity
	}
	for cat, seasons := range matrix {
		cj.RateMatrix[string(cat)] = make(map[string]map[string]string, len(seasons))
		for season, tiers := range seasons {
			cj.RateMatrix[string(cat)][string(season)] = make(map[string]string, len(tiers))
			for demand, rate := range tiers {
				cj.RateMatrix[string(cat)][string(season)][string(demand)] = rate.String()
			}
		}
	}
	return cj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

// parseMatrix rejects unknown seasons. Unknown rate labels are kept as
// yield.RateInvalid so the engine reports them per day and uses BAR5.
func parseMatrix(mj MatrixJSON) (yield.RuleMatrix, error) {
	valid := make(map[yield.Season]bool, len(yield.AllSeasons))
	for _, s := range yield.AllSeasons {
		valid[s] = true
	}

	m := make(yield.RuleMatrix, len(mj))
	for cat, seasons := range mj {
		m[yield.RoomCategory(cat)] = make(map[yield.Season]map[yield.DemandTier]yield.Rate, len(seasons))
		for season, tiers := range seasons {
			s := yield.Season(season)
			if !valid[s] {
				return nil, &yield.ConfigError{Field: "rate_matrix", Reason: fmt.Sprintf("unknown season %q for %q", season, cat)}
			}
			m[yield.RoomCategory(cat)][s] = make(map[yield.DemandTier]yield.Rate, len(tiers))
			for demand, label := range tiers {
				rate, err := yield.ParseRate(label)
				if err != nil {
					rate = yield.RateInvalid
				}
				m[yield.RoomCategory(cat)][s][yield.DemandTier(demand)] = rate
			}
		}
	}
	return m, nil
}

// translate turns validator output into a ConfigError naming the first bad key.
func translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &yield.ConfigError{Field: "body", Reason: err.Error()}
	}
	sort.SliceStable(verrs, func(i, j int) bool { return verrs[i].Namespace() < verrs[j].Namespace() })
	fe := verrs[0]

	field := fe.Field()
	if ns := fe.Namespace(); strings.Contains(ns, ".") {
		field = ns[strings.Index(ns, ".")+1:]
	}

	var reason string
	switch fe.Tag() {
	case "required":
		reason = "missing required configuration"
	case "min":
		reason = "needs at least " + fe.Param() + " entries"
	case "gte", "gt", "lte":
		reason = fmt.Sprintf("must be %s %s", fe.Tag(), fe.Param())
	default:
		reason = "failed " + fe.Tag() + " check"
	}
	return &yield.ConfigError{Field: field, Reason: reason}
}
