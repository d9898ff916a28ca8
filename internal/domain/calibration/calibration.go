// Package calibration holds the pure rank calibration rules: when a user's
// class is due for recomputation and what class an average task complexity
// maps to. Persistence and transactions live in the service layer.
package calibration

import (
	"math"

	"github.com/phrazzld/questboard-api/internal/domain"
)

// Cadence is the number of completions between recalibrations.
const Cadence = 10

// Due reports whether a user with n completions should be recalibrated.
//
// Calibration fires on every positive multiple of Cadence. A user with no
// completions is never due, even though 0 is a multiple of the cadence.
func Due(n int64) bool {
	return n > 0 && n%Cadence == 0
}

// Estimate maps an average complexity (in the Rank integer encoding) to a
// Rank.
//
// The average is rounded half away from zero and the result is clamped to
// the valid range, so 0.5 maps to B and 1.5 maps to A. NaN maps to C.
func Estimate(avg float64) domain.Rank {
	if math.IsNaN(avg) {
		return domain.MinRank
	}

	// math.Round rounds half away from zero
	rounded := math.Round(avg)

	if rounded < float64(domain.MinRank) {
		return domain.MinRank
	}
	if rounded > float64(domain.MaxRank) {
		return domain.MaxRank
	}
	return domain.Rank(rounded)
}
