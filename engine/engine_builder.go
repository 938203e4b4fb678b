package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-ibl/engine/profiler"
	"github.com/Carmen-Shannon/oxy-ibl/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ibl/engine/window"
)

// EngineBuilderOption configures an Engine before Run.
type EngineBuilderOption func(*engine)

// period converts a rate in hertz to the time between ticks. Non-positive rates
// return zero.
func period(hz float64) time.Duration {
	if hz <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / hz)
}

// WithProfiling turns the periodic profiler report on.
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithProfilerInterval replaces the profiler with one reporting every interval.
func WithProfilerInterval(interval time.Duration) EngineBuilderOption {
	return func(e *engine) {
		e.profiler = profiler.NewProfiler(interval)
	}
}

// WithTickRate sets how often the update callback runs. Non-positive rates keep 60Hz.
//
// Parameters:
//   - hz: ticks per second
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(hz float64) EngineBuilderOption {
	return func(e *engine) {
		e.engineTickRate = period(hz)
		if e.engineTickRate == 0 {
			e.engineTickRate = period(60)
		}
	}
}

// WithRenderFrameLimit caps how often frames are drawn. Zero leaves the loop
// paced by presentation alone.
//
// Parameters:
//   - hz: maximum frames per second
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(hz float64) EngineBuilderOption {
	return func(e *engine) {
		e.renderFrameLimit = period(hz)
	}
}

// WithWindow sets the window whose message loop Run drives.
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithRenderer sets the renderer that presents to the window.
func WithRenderer(r renderer.Renderer) EngineBuilderOption {
	return func(e *engine) {
		e.renderer = r
	}
}

// WithLayer registers l under key. Layers prepare and draw in ascending key order.
//
// Parameters:
//   - key: the draw order
//   - l: the layer
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithLayer(key int, l Layer) EngineBuilderOption {
	return func(e *engine) {
		e.layers[key] = l
	}
}
