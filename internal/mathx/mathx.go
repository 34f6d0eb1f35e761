// Package mathx holds the small numeric helpers shared by the simulation packages.
package mathx

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Clamp bounds v to [lo, hi].
func Clamp[T constraints.Integer | constraints.Float](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 bounds v to [0, 1].
func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// Mean returns the arithmetic mean of vs, or 0 for an empty slice.
func Mean[T constraints.Float](vs []T) T {
	if len(vs) == 0 {
		return 0
	}
	var sum T
	for _, v := range vs {
		sum += v
	}
	return sum / T(len(vs))
}

// Sign returns -1, 0, or 1.
func Sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// Round2 rounds to two decimals for log output and money.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
