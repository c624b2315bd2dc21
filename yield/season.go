package yield

import "time"

// =============================================================================
// SEASON - Year-agnostic calendar classification
// =============================================================================

type Season string

const (
	SeasonPeak     Season = "Peak"
	SeasonNormal   Season = "Normal"
	SeasonShoulder Season = "Shoulder"
	SeasonHigh     Season = "High"
)

// AllSeasons in classification priority order.
var AllSeasons = []Season{SeasonPeak, SeasonNormal, SeasonShoulder, SeasonHigh}

// FallbackSeason is returned when no range matches.
const FallbackSeason = SeasonNormal

// seasonRange is an inclusive month/day window within a single calendar year.
type seasonRange struct {
	Season Season
	From   MonthDay
	To     MonthDay
}

// seasonRanges are tested in order; the first match wins.
// The New Year peak spans the year boundary as two windows: Dec 27-31 and Jan 1-5.
// Together the windows cover every day of the year, including Feb 29.
var seasonRanges = []seasonRange{
	{SeasonPeak, MonthDay{time.January, 1}, MonthDay{time.January, 5}},
	{SeasonPeak, MonthDay{time.December, 27}, MonthDay{time.December, 31}},
	{SeasonNormal, MonthDay{time.January, 6}, MonthDay{time.May, 31}},
	{SeasonNormal, MonthDay{time.October, 1}, MonthDay{time.December, 22}},
	{SeasonShoulder, MonthDay{time.June, 1}, MonthDay{time.June, 30}},
	{SeasonShoulder, MonthDay{time.September, 1}, MonthDay{time.September, 30}},
	{SeasonHigh, MonthDay{time.July, 1}, MonthDay{time.August, 31}},
	{SeasonHigh, MonthDay{time.December, 23}, MonthDay{time.December, 26}},
}

// ClassifySeason maps a date to its season using month and day only.
// matched is false when no range applied and FallbackSeason was returned;
// callers record that as an UnclassifiedSeason warning.
func ClassifySeason(d Date) (season Season, matched bool) {
	md := d.MonthDay()
	for _, r := range seasonRanges {
		if md.Between(r.From, r.To) {
			return r.Season, true
		}
	}
	return FallbackSeason, false
}
