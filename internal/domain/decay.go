package domain

import (
	"math"
	"time"
)

// RiskHalfLife is the continuous decay half-life applied to entity risk
// scores at read time (spec §4.5).
const RiskHalfLife = 24 * time.Hour

// decay applies a continuous half-life decay to score over elapsed.
// Negative elapsed (clock skew, or a score recorded "in the future" of now)
// is clamped to zero so observed score never exceeds the stored value.
func decay(score float64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return score
	}
	hours := elapsed.Hours()
	return score * math.Exp(-math.Ln2*hours/RiskHalfLife.Hours())
}
