package yield

import "math"

// =============================================================================
// DEMAND - Occupancy binning
// =============================================================================

// DemandTier is a label from the configured demand labels, e.g. "Medium".
type DemandTier string

const (
	DemandLow    DemandTier = "Low"
	DemandMedium DemandTier = "Medium"
	DemandHigh   DemandTier = "High"
)

// ClassifyDemand bins occupancy into labels[i] for bins[i] < occ <= bins[i+1].
// The lowest interval is also closed on the left, so bins[0] itself is classified.
// NaN and values outside [bins[0], bins[len-1]] return ok=false.
//
// bins must be strictly increasing with len(labels) == len(bins)-1;
// Config.Validate enforces this.
func ClassifyDemand(occupancy float64, bins []float64, labels []DemandTier) (tier DemandTier, ok bool) {
	if math.IsNaN(occupancy) || len(bins) < 2 || len(labels) != len(bins)-1 {
		return "", false
	}
	if occupancy == bins[0] {
		return labels[0], true
	}
	for i := 0; i < len(labels); i++ {
		if occupancy > bins[i] && occupancy <= bins[i+1] {
			return labels[i], true
		}
	}
	return "", false
}
