package yield

// =============================================================================
// RULE MATRIX - category -> season -> demand -> base rate
// =============================================================================

// RuleMatrix is the fixed base-rate lookup table.
type RuleMatrix map[RoomCategory]map[Season]map[DemandTier]Rate

// Lookup returns the base rate. ok is false when the entry is missing or not a
// valid tier; the engine then substitutes DefaultRate.
func (m RuleMatrix) Lookup(cat RoomCategory, season Season, demand DemandTier) (Rate, bool) {
	r := m[cat][season][demand]
	return r, r.Valid()
}

// Clone returns a deep copy.
func (m RuleMatrix) Clone() RuleMatrix {
	out := make(RuleMatrix, len(m))
	for cat, seasons := range m {
		out[cat] = make(map[Season]map[DemandTier]Rate, len(seasons))
		for s, tiers := range seasons {
			out[cat][s] = make(map[DemandTier]Rate, len(tiers))
			for d, r := range tiers {
				out[cat][s][d] = r
			}
		}
	}
	return out
}

// standardSeasonTable is shared by both standard categories.
func standardSeasonTable() map[Season]map[DemandTier]Rate {
	return map[Season]map[DemandTier]Rate{
		SeasonNormal:   {DemandHigh: BAR4, DemandMedium: BAR5, DemandLow: BAR6},
		SeasonShoulder: {DemandHigh: BAR3, DemandMedium: BAR4, DemandLow: BAR5},
		SeasonHigh:     {DemandHigh: BAR2, DemandMedium: BAR3, DemandLow: BAR4},
		SeasonPeak:     {DemandHigh: BAR2, DemandMedium: BAR3, DemandLow: BAR3},
	}
}

// DefaultMatrix returns the standard matrix for Deluxe and Premiere rooms.
func DefaultMatrix() RuleMatrix {
	return RuleMatrix{
		CategoryDeluxe:   standardSeasonTable(),
		CategoryPremiere: standardSeasonTable(),
	}
}
