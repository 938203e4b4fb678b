package shader

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheReturnsSharedVariant(t *testing.T) {
	c := NewCache(BackendWGSL, WithValidation(false), WithWorkers(2))
	flags := Flags{Distribution: DistributionGGX, Roughness: 0.25, SampleCount: 8}

	var wg sync.WaitGroup
	got := make([]*Variant, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = c.Variant(KindPrefilter, flags)
		}(i)
	}
	wg.Wait()

	for _, v := range got {
		assert.Same(t, got[0], v)
	}
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 1, c.Compilations())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p, err := got[0].Wait(ctx)
	require.NoError(t, err)
	assert.True(t, got[0].Ready())
	assert.Equal(t, KindPrefilter, p.Key().Kind)
}

func TestCacheDistinctFlags(t *testing.T) {
	c := NewCache(BackendWGSL, WithValidation(false))
	a := c.Variant(KindPrefilter, Flags{Distribution: DistributionGGX, Roughness: 0.25, SampleCount: 8})
	b := c.Variant(KindPrefilter, Flags{Distribution: DistributionGGX, Roughness: 0.5, SampleCount: 8})
	assert.NotSame(t, a, b)
	assert.Equal(t, 2, c.Len())
	vs := c.Variants()
	require.Len(t, vs, 2)
	assert.Less(t, vs[0].Key().String(), vs[1].Key().String())
}

func TestVariantNotReady(t *testing.T) {
	v := &Variant{done: make(chan struct{})}
	_, err := v.Program()
	assert.ErrorIs(t, err, ErrNotReady)
	assert.False(t, v.Ready())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = v.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCacheSurfacesCompilationError(t *testing.T) {
	c := NewCache(BackendWGSL)
	v := c.Variant(Kind(42), Flags{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := v.Wait(ctx)
	var ce *CompilationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, Kind(42), ce.Key.Kind)
}
