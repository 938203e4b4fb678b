package bake

import "github.com/Carmen-Shannon/oxy-ibl/engine/ibl"

// BakerBuilderOption is a functional option applied to a baker during construction via NewBaker.
type BakerBuilderOption func(*baker)

// WithConfig sets the pipeline configuration.
//
// Parameters:
//   - cfg: the configuration
//
// Returns:
//   - BakerBuilderOption: a function that applies the configuration
func WithConfig(cfg ibl.Config) BakerBuilderOption {
	return func(b *baker) {
		b.cfg = cfg
	}
}

// WithMaxTicks bounds the number of pipeline ticks a bake may run.
//
// Parameters:
//   - n: the tick limit, ignored unless positive
//
// Returns:
//   - BakerBuilderOption: a function that applies the limit
func WithMaxTicks(n int) BakerBuilderOption {
	return func(b *baker) {
		if n > 0 {
			b.maxTicks = n
		}
	}
}
