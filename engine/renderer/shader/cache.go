package shader

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-ibl/common"
)

// Variant is a program that is compiling or compiled. Consumers poll Ready each
// tick instead of blocking on compilation.
type Variant struct {
	key  VariantKey
	done chan struct{}

	program *Program
	err     error
}

// Key returns the variant's cache identity.
func (v *Variant) Key() VariantKey {
	return v.key
}

// Done is closed once compilation finishes, successfully or not.
func (v *Variant) Done() <-chan struct{} {
	return v.done
}

// Ready reports whether compilation has finished.
func (v *Variant) Ready() bool {
	select {
	case <-v.done:
		return true
	default:
		return false
	}
}

// Program returns the compiled program.
//
// Returns:
//   - *Program: the program, nil until Ready
//   - error: ErrNotReady while compiling, or the *CompilationError that ended compilation
func (v *Variant) Program() (*Program, error) {
	if !v.Ready() {
		return nil, ErrNotReady
	}
	return v.program, v.err
}

// Wait blocks until the variant is ready or ctx ends.
//
// Parameters:
//   - ctx: bounds the wait
//
// Returns:
//   - *Program: the compiled program
//   - error: ctx.Err() or the compilation error
func (v *Variant) Wait(ctx context.Context) (*Program, error) {
	select {
	case <-v.done:
		return v.program, v.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// cache is the implementation of the Cache interface.
type cache struct {
	mu       sync.Mutex
	backend  Backend
	variants map[string]*Variant

	validate bool
	workers  int
	pool     worker.DynamicWorkerPool
	nextID   atomic.Int64
	compiles atomic.Int64
}

// Cache hands out program variants keyed by (backend, kind, flags). The first request
// for a key starts compilation on a worker pool; later requests return the same Variant.
type Cache interface {
	// Backend returns the language every variant in the cache is emitted in.
	//
	// Returns:
	//   - Backend: the cache backend
	Backend() Backend

	// Variant returns the variant for kind and flags, starting compilation if it is
	// not cached yet. Never blocks on compilation.
	//
	// Parameters:
	//   - kind: the program kind
	//   - flags: the variant configuration
	//
	// Returns:
	//   - *Variant: the shared variant handle
	Variant(kind Kind, flags Flags) *Variant

	// Variants returns every cached variant ordered by key.
	//
	// Returns:
	//   - []*Variant: the cached variants
	Variants() []*Variant

	// Len returns the number of cached variants.
	//
	// Returns:
	//   - int: the variant count
	Len() int

	// Compilations returns how many compile jobs the cache has started.
	//
	// Returns:
	//   - int: the number of compilations
	Compilations() int
}

var _ Cache = &cache{}

// NewCache creates a variant cache for backend.
//
// Parameters:
//   - backend: the language variants are emitted in
//   - options: CacheBuilderOption values applied in order
//
// Returns:
//   - Cache: the new cache
func NewCache(backend Backend, options ...CacheBuilderOption) Cache {
	c := &cache{
		backend:  backend,
		variants: make(map[string]*Variant),
		validate: true,
		workers:  4,
	}
	for _, opt := range options {
		opt(c)
	}
	if c.pool == nil {
		c.pool = worker.NewDynamicWorkerPool(c.workers, 256, 1*time.Second)
	}
	return c
}

func (c *cache) Backend() Backend {
	return c.backend
}

func (c *cache) Variant(kind Kind, flags Flags) *Variant {
	key := VariantKey{Backend: c.backend, Kind: kind, Flags: flags}
	id := key.String()

	c.mu.Lock()
	if v, ok := c.variants[id]; ok {
		c.mu.Unlock()
		return v
	}
	v := &Variant{key: key, done: make(chan struct{})}
	c.variants[id] = v
	c.mu.Unlock()

	c.compiles.Add(1)
	validate := c.validate
	c.pool.SubmitTask(worker.Task{
		ID: int(c.nextID.Add(1)),
		Do: func() (any, error) {
			start := time.Now()
			v.program, v.err = Compile(key, validate)
			close(v.done)
			if v.err != nil {
				common.Logger().Error("shader variant failed", "key", id, "err", v.err)
				return nil, v.err
			}
			common.Logger().Debug("shader variant compiled", "key", id, "elapsed", time.Since(start))
			return v.program, nil
		},
	})
	return v
}

func (c *cache) Variants() []*Variant {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Variant, 0, len(c.variants))
	for _, v := range c.variants {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].key.String() < out[j].key.String()
	})
	return out
}

func (c *cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.variants)
}

func (c *cache) Compilations() int {
	return int(c.compiles.Load())
}
