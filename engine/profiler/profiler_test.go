package profiler

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-ibl/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }
func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler           { return h }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

func attrs(r slog.Record) map[string]slog.Value {
	out := make(map[string]slog.Value)
	r.Attrs(func(a slog.Attr) bool {
		out[a.Key] = a.Value
		return true
	})
	return out
}

func TestProfilerReportsOncePerInterval(t *testing.T) {
	h := &recordingHandler{}
	prev := common.Logger()
	common.SetLogger(slog.New(h))
	t.Cleanup(func() { common.SetLogger(prev) })

	start := time.Unix(1000, 0)
	clock := start
	p := NewProfiler(time.Second)
	p.lastTime = start
	p.now = func() time.Time { return clock }
	p.SetStatsFunc(func() []slog.Attr {
		return []slog.Attr{slog.Uint64("ggx_levels", 3)}
	})

	for i := 0; i < 9; i++ {
		clock = clock.Add(100 * time.Millisecond)
		assert.False(t, p.Tick())
	}
	clock = clock.Add(100 * time.Millisecond)
	require.True(t, p.Tick())

	require.Len(t, h.records, 1)
	r := h.records[0]
	assert.Equal(t, "profiler", r.Message)
	got := attrs(r)
	assert.InDelta(t, 10.0, got["fps"].Float64(), 1e-9)
	assert.Equal(t, uint64(3), got["ggx_levels"].Uint64())
	assert.Contains(t, got, "heap_mb")

	clock = clock.Add(100 * time.Millisecond)
	assert.False(t, p.Tick())
}

func TestNewProfilerDefaultsInterval(t *testing.T) {
	assert.Equal(t, time.Second, NewProfiler(0).updateInterval)
	assert.Equal(t, time.Minute, NewProfiler(time.Minute).updateInterval)
}
