package yield

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// DATE - Calendar day (inventory and decisions are keyed by day, never by time)
// =============================================================================

// Date is a calendar day in UTC. The zero value is not a valid inventory date.
type Date struct {
	Time time.Time
}

// DateLayout is the canonical ISO 8601 representation used for persistence and output.
const DateLayout = "2006-01-02"

// dateLayouts are tried in order when parsing raw source cells.
// The PMS export writes weekday-prefixed dates with either short or long month names.
var dateLayouts = []string{
	DateLayout,
	"Monday, 02-Jan-2006",
	"Monday, 02-January-2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
	"02-Jan-2006",
}

// NewDate returns the given calendar day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a raw date cell in any of the accepted layouts.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("unrecognized date %q", s)
}

// MustParseDate is ParseDate for literals known to be valid. Panics otherwise.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Date) Before(other Date) bool        { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool         { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool         { return d.Time.Equal(other.Time) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Properties
func (d Date) Year() int               { return d.Time.Year() }
func (d Date) Month() time.Month       { return d.Time.Month() }
func (d Date) Day() int                { return d.Time.Day() }
func (d Date) Weekday() time.Weekday   { return d.Time.Weekday() }
func (d Date) IsZero() bool            { return d.Time.IsZero() }
func (d Date) AddDays(n int) Date      { return Date{Time: d.Time.AddDate(0, 0, n)} }
func (d Date) MonthDay() MonthDay      { return MonthDay{Month: d.Month(), Day: d.Day()} }
func (d Date) String() string          { return d.Time.Format(DateLayout) }

// MarshalText encodes the date as YYYY-MM-DD.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText accepts any layout understood by ParseDate.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// MONTH/DAY - Year-agnostic calendar position
// =============================================================================

// MonthDay is a day of the year without a year, used for seasonal ranges.
type MonthDay struct {
	Month time.Month
	Day   int
}

func (md MonthDay) ordinal() int { return int(md.Month)*100 + md.Day }

// Between reports whether md lies in [from, to]. from must not be after to.
func (md MonthDay) Between(from, to MonthDay) bool {
	return from.ordinal() <= md.ordinal() && md.ordinal() <= to.ordinal()
}

func (md MonthDay) String() string {
	return fmt.Sprintf("%s %d", md.Month.String()[:3], md.Day)
}

// =============================================================================
// DATE RANGE
// =============================================================================

// DateRange is an inclusive span of days. A zero bound is open.
type DateRange struct {
	From Date
	To   Date
}

// Bounded returns true if both ends are set and To is not before From.
func (r DateRange) Bounded() bool {
	return !r.From.IsZero() && !r.To.IsZero() && !r.To.Before(r.From)
}

// Contains returns true if d is within the range.
func (r DateRange) Contains(d Date) bool {
	if !r.From.IsZero() && d.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && d.After(r.To) {
		return false
	}
	return true
}

// Days returns the number of days in a closed range, or 0 if either bound is open.
func (r DateRange) Days() int {
	if r.From.IsZero() || r.To.IsZero() || r.To.Before(r.From) {
		return 0
	}
	return int(r.To.Time.Sub(r.From.Time).Hours()/24) + 1
}

func (r DateRange) String() string {
	return "[" + r.From.String() + ", " + r.To.String() + "]"
}
