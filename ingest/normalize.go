package ingest

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/yield-engine/yield"
)

// =============================================================================
// PMS - Room-code columns aggregated into inventory categories
// =============================================================================

// PMSMapping aggregates PMS room-code columns into category columns.
// Each target is the sum of its source codes; a single source is a rename.
type PMSMapping map[string][]string

// DefaultPMSMapping is the room-code layout of the property's PMS export.
var DefaultPMSMapping = PMSMapping{
	"Deluxe Room":                    {"DLK", "DLT"},
	"Deluxe Pool Access":             {"DLKP", "DLTP"},
	"Premiere Room":                  {"PRKG", "PRKP", "PRTG", "PRTP"},
	"Premiere Room Lagoon Access":    {"PRKL", "PRTL"},
	"The Anvaya Residence":           {"AVR"},
	"The Anvaya Suite No Pool":       {"AVS"},
	"The Anvaya Suite With Pool":     {"ASP"},
	"The Anvaya Suite Whirpool":      {"ASW"},
	"The Anvaya Villa":               {"AVP"},
	"Beach Front Private Suite Room": {"BFS"},
	"Deluxe Suite Room":              {"DLS"},
	"Family Premiere Room":           {"FAM"},
	"Premiere Suite Room":            {"PSU"},
}

// DefaultPMSDropped are PMS bookkeeping columns that are not room inventory.
var DefaultPMSDropped = []string{
	"Extra Bed", "Total Room", "Available", "Tentative", "Definite",
	"Waiting List", "Allotment", "Out of Order",
}

// PMSNormalizer turns a raw PMS export into a per-date category table.
type PMSNormalizer struct {
	Mapping PMSMapping
	Dropped []string
	Logger  yield.Logger
}

// NewPMSNormalizer returns a normalizer with the default mapping.
func NewPMSNormalizer(logger yield.Logger) *PMSNormalizer {
	return &PMSNormalizer{Mapping: DefaultPMSMapping, Dropped: DefaultPMSDropped, Logger: logger}
}

// Normalize aggregates mapped codes, removes dropped columns and passes every
// other column (Date, Occupancy, unknown codes) through unchanged.
// Mapped codes absent from the export count as zero; a target with none of its
// codes present is omitted. Non-numeric code cells count as zero.
func (n *PMSNormalizer) Normalize(raw yield.RawTable) yield.RawTable {
	index := make(map[string]int, len(raw.Header))
	for i, h := range raw.Header {
		index[strings.TrimSpace(h)] = i
	}

	consumed := make(map[string]bool)
	for _, d := range n.Dropped {
		consumed[d] = true
	}

	type target struct {
		name    string
		sources []int
	}
	var targets []target
	names := make([]string, 0, len(n.Mapping))
	for name := range n.Mapping {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t := target{name: name}
		for _, code := range n.Mapping[name] {
			consumed[code] = true
			if i, ok := index[code]; ok {
				t.sources = append(t.sources, i)
			}
		}
		if len(t.sources) > 0 {
			targets = append(targets, t)
		}
	}

	var passthrough []int
	out := yield.RawTable{Name: raw.Name}
	for i, h := range raw.Header {
		if consumed[strings.TrimSpace(h)] {
			continue
		}
		passthrough = append(passthrough, i)
		out.Header = append(out.Header, h)
	}
	for _, t := range targets {
		out.Header = append(out.Header, t.name)
	}

	for r, row := range raw.Rows {
		rec := make([]string, 0, len(out.Header))
		for _, i := range passthrough {
			rec = append(rec, cell(row, i))
		}
		for _, t := range targets {
			sum := decimal.Zero
			for _, i := range t.sources {
				sum = sum.Add(coerce(n.Logger, raw.Name, r+1, raw.Header[i], cell(row, i)))
			}
			rec = append(rec, sum.String())
		}
		out.Rows = append(out.Rows, rec)
	}
	return out
}

// =============================================================================
// CM - Channel manager "Left for sale" sheet, one column per date
// =============================================================================

// LeftForSale marks the CM rows that carry remaining inventory.
const LeftForSale = "Left for sale"

// NormalizeCM transposes a CM sheet into a per-date table.
//
// The CM layout has one row per (room type, measure) and one column per
// date. The first cell of a row names the room type; rows where any cell
// equals LeftForSale carry the inventory. Header cells that parse as dates
// become the output rows.
func NormalizeCM(raw yield.RawTable, logger yield.Logger) yield.RawTable {
	var dateCols []int
	for i, h := range raw.Header {
		if _, err := yield.ParseDate(h); err == nil {
			dateCols = append(dateCols, i)
		}
	}

	var selected [][]string
	for _, row := range raw.Rows {
		for _, c := range row {
			if strings.EqualFold(strings.TrimSpace(c), LeftForSale) {
				selected = append(selected, row)
				break
			}
		}
	}

	out := yield.RawTable{Name: raw.Name, Header: []string{yield.DateColumn}}
	for _, row := range selected {
		out.Header = append(out.Header, strings.TrimSpace(cell(row, 0)))
	}
	for _, col := range dateCols {
		d, _ := yield.ParseDate(raw.Header[col])
		rec := []string{d.String()}
		for r, row := range selected {
			v := coerce(logger, raw.Name, r+1, raw.Header[col], cell(row, col))
			rec = append(rec, v.String())
		}
		out.Rows = append(out.Rows, rec)
	}
	return out
}

// =============================================================================
// HELPERS
// =============================================================================

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// coerce parses a numeric cell; empty and non-numeric cells are zero.
func coerce(logger yield.Logger, table string, row int, column, value string) decimal.Decimal {
	v := strings.TrimSpace(strings.ReplaceAll(value, ",", ""))
	if v == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		if logger != nil {
			logger.Warn("%s row %d column %q: non-numeric value %q treated as 0", table, row, column, value)
		}
		return decimal.Zero
	}
	return d
}
