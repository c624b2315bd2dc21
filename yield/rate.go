package yield

import (
	"fmt"
	"strings"
)

// =============================================================================
// RATE - Ordered BAR tier enumeration
// =============================================================================

// Rate is a published Best Available Rate tier.
// Lower rank is more expensive: BAR2 has rank 1, BAR6 has rank 5.
type Rate int

const (
	RateInvalid Rate = iota
	BAR2
	BAR3
	BAR4
	BAR5
	BAR6
)

// DefaultRate substitutes for matrix entries that are not a recognized tier.
const DefaultRate = BAR5

// AllRates lists every valid tier from most to least expensive.
var AllRates = []Rate{BAR2, BAR3, BAR4, BAR5, BAR6}

// Rank returns the ordinal rank (1 = BAR2 … 5 = BAR6), or 0 for an invalid rate.
func (r Rate) Rank() int {
	if !r.Valid() {
		return 0
	}
	return int(r)
}

// Valid reports whether r is one of BAR2..BAR6.
func (r Rate) Valid() bool {
	return r >= BAR2 && r <= BAR6
}

// RateFromRank maps a rank back to its tier. Out-of-range ranks are invalid.
func RateFromRank(rank int) Rate {
	r := Rate(rank)
	if !r.Valid() {
		return RateInvalid
	}
	return r
}

// Escalate moves r shift tiers toward BAR2, never past it.
// Negative shifts are ignored: escalation never makes a rate cheaper.
func (r Rate) Escalate(shift int) Rate {
	if !r.Valid() {
		r = DefaultRate
	}
	if shift <= 0 {
		return r
	}
	rank := r.Rank() - shift
	if rank < BAR2.Rank() {
		rank = BAR2.Rank()
	}
	return RateFromRank(rank)
}

// MoreExpensiveThan reports whether r ranks above other.
func (r Rate) MoreExpensiveThan(other Rate) bool {
	return r.Rank() < other.Rank()
}

func (r Rate) String() string {
	if !r.Valid() {
		return "INVALID"
	}
	return fmt.Sprintf("BAR%d", int(r)+1)
}

// ParseRate parses "BAR2".."BAR6" (case-insensitive).
func ParseRate(s string) (Rate, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BAR2":
		return BAR2, nil
	case "BAR3":
		return BAR3, nil
	case "BAR4":
		return BAR4, nil
	case "BAR5":
		return BAR5, nil
	case "BAR6":
		return BAR6, nil
	}
	return RateInvalid, fmt.Errorf("unrecognized rate tier %q", s)
}

// MarshalText encodes the tier label. Invalid rates encode as "INVALID".
func (r Rate) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a tier label. Unknown labels decode to RateInvalid
// rather than failing, so a bad matrix cell surfaces as an InvalidRate warning.
func (r *Rate) UnmarshalText(b []byte) error {
	parsed, err := ParseRate(string(b))
	if err != nil {
		*r = RateInvalid
		return nil
	}
	*r = parsed
	return nil
}
