// Package score summarizes how consistently a set of graded scores agree.
package score

import (
	"errors"
	"math"
)

// Volatility returns the population standard deviation of scores as a
// percentage of the largest possible deviation on a min..max scale,
// rounded to the given number of decimals. An empty set has volatility 0.
func Volatility(scores []int, min, max, decimals int) (float64, error) {
	if max <= min {
		return 0, errors.New("max must be greater than min")
	}
	if len(scores) == 0 {
		return 0, nil
	}

	var sum float64
	for _, s := range scores {
		sum += float64(s)
	}
	mean := sum / float64(len(scores))

	var variance float64
	for _, s := range scores {
		d := float64(s) - mean
		variance += d * d
	}
	variance /= float64(len(scores))

	maxStdDev := float64(max-min) / 2
	return round(math.Sqrt(variance)/maxStdDev*100, decimals), nil
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// Classify names a volatility band.
func Classify(volatility float64) string {
	switch {
	case volatility < 10:
		return "Very Consistent"
	case volatility < 25:
		return "Consistent"
	case volatility < 50:
		return "Somewhat Inconsistent"
	case volatility < 75:
		return "Very Inconsistent"
	default:
		return "HIGHLY VOLATILE"
	}
}
