package util

import "golang.org/x/exp/constraints"

// Clamp limits v to the closed interval [lo, hi].
func Clamp[T constraints.Integer](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
