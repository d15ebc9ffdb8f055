// Package assemble owns the defaulting and guard policy for every numeric
// aggregate the engine returns: empty result sets become 0, never null or
// NaN, and rates are computed behind an explicit zero-denominator check.
package assemble

import (
	"math"
	"time"
)

// Mean averages values, returning 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Rate returns part/total as a percentage in [0,100], 0 when total is 0.
func Rate(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Hours returns the elapsed hours between two instants.
func Hours(from, to time.Time) float64 {
	return to.Sub(from).Hours()
}

// Stage health thresholds, in average hours spent in stage. The upper bound
// is exclusive: exactly 24h is still Warning, exactly 8h is still Healthy.
const (
	stageCriticalHours = 24
	stageWarningHours  = 8
)

// StageHealth classifies a stage's average dwell time.
func StageHealth(avgHours float64) string {
	switch {
	case avgHours > stageCriticalHours:
		return "Critical"
	case avgHours > stageWarningHours:
		return "Warning"
	default:
		return "Healthy"
	}
}
