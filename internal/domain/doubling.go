package domain

import (
	"iter"
	"math"
)

// DegenerateDoubling is returned by PointDoublingTime when the window cannot
// produce a meaningful doubling time.
const DegenerateDoubling = 999.0

// DefaultRollingThreshold is the minimum end-of-window value for a rolling
// doubling point to be emitted.
const DefaultRollingThreshold = 100.0

// PointDoublingTime computes the exponential doubling time over lag days
// ending at index end, with the window starting at end-lag-1. Positive values
// mean growth, negative values mean decline (halving time). Both outputs are
// DegenerateDoubling when:
//   - the end value is ≤ 1,
//   - the start value is ≤ 0,
//   - start equals end,
//   - start equals the value one day after start,
//   - or either index falls outside the series.
func PointDoublingTime(s Series, end, lag int) (doubling, inverse float64) {
	start := end - lag - 1
	if lag <= 0 || start < 0 || end >= len(s) {
		return DegenerateDoubling, DegenerateDoubling
	}
	endV, startV, afterV := s[end], s[start], s[start+1]
	if IsNoValue(endV) || IsNoValue(startV) {
		return DegenerateDoubling, DegenerateDoubling
	}
	if endV <= 1 || startV <= 0 || startV == endV || startV == afterV {
		return DegenerateDoubling, DegenerateDoubling
	}
	doubling = float64(lag) * math.Ln2 / math.Log(endV/startV)
	return doubling, 1 / doubling
}

// LatestDoublingTime is PointDoublingTime ending at the last index.
func LatestDoublingTime(s Series, lag int) (doubling, inverse float64) {
	return PointDoublingTime(s, len(s)-1, lag)
}

// RollingDoublingTime lazily yields (i+lag, inverse doubling time between i
// and i+lag) for every i where s[i+lag] exceeds threshold and s[i] > 0.
// The sequence is finite and reads s on demand.
func RollingDoublingTime(s Series, lag int, threshold float64) iter.Seq2[int, float64] {
	return func(yield func(int, float64) bool) {
		if lag <= 0 {
			return
		}
		for i := 0; i+lag < len(s); i++ {
			startV, endV := s[i], s[i+lag]
			if IsNoValue(startV) || IsNoValue(endV) {
				continue
			}
			if endV <= threshold || startV <= 0 {
				continue
			}
			inverse := math.Log(endV/startV) / (float64(lag) * math.Ln2)
			if !yield(i+lag, inverse) {
				return
			}
		}
	}
}
