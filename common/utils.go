package common

import "cmp"

// Coalesce picks the first value that is not the zero value of T. Sizes and
// counts in the pipeline use it to fall back from an option to a config field to
// a derived default.
//
// Parameters:
//   - values: candidates in priority order
//
// Returns:
//   - T: the first non-zero candidate, or the zero value when there is none
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// Clamp limits v to [lo, hi]. The lower bound wins when lo > hi.
//
// Parameters:
//   - v: the value to limit
//   - lo: the inclusive minimum
//   - hi: the inclusive maximum
//
// Returns:
//   - T: v limited to the range
func Clamp[T cmp.Ordered](v, lo, hi T) T {
	return max(min(v, hi), lo)
}
