package shader

import "github.com/Carmen-Shannon/automation/tools/worker"

// CacheBuilderOption is a functional option applied to a cache during construction via NewCache.
type CacheBuilderOption func(*cache)

// WithValidation toggles naga IR validation of generated WGSL. Enabled by default.
//
// Parameters:
//   - validate: true to validate every variant before it becomes ready
//
// Returns:
//   - CacheBuilderOption: a function that applies the validation option to a cache
func WithValidation(validate bool) CacheBuilderOption {
	return func(c *cache) {
		c.validate = validate
	}
}

// WithWorkers sets the maximum number of concurrent compile jobs. Defaults to 4.
//
// Parameters:
//   - n: the worker count, ignored when not positive
//
// Returns:
//   - CacheBuilderOption: a function that applies the worker count to a cache
func WithWorkers(n int) CacheBuilderOption {
	return func(c *cache) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithWorkerPool compiles variants on an existing pool instead of creating one.
//
// Parameters:
//   - pool: the pool compile jobs are submitted to
//
// Returns:
//   - CacheBuilderOption: a function that applies the pool to a cache
func WithWorkerPool(pool worker.DynamicWorkerPool) CacheBuilderOption {
	return func(c *cache) {
		c.pool = pool
	}
}
