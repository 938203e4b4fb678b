package profiler

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-ibl/common"
)

// Profiler tracks frame rate and memory statistics and logs them through
// common.Logger at a fixed interval.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	// stats supplies extra attributes logged with every report, such as pipeline progress.
	stats func() []slog.Attr

	now func() time.Time
}

// NewProfiler creates a Profiler reporting once per interval.
//
// Parameters:
//   - interval: the report interval, one second when non-positive
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(interval time.Duration) *Profiler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Profiler{
		lastTime:       time.Now(),
		updateInterval: interval,
		now:            time.Now,
	}
}

// SetStatsFunc registers a function whose attributes are appended to every report.
//
// Parameters:
//   - stats: the attribute source, nil to clear
func (p *Profiler) SetStatsFunc(stats func() []slog.Attr) {
	p.stats = stats
}

// Tick should be called once per frame. It logs a report when the interval has elapsed.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.frameCount++
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	fps := float64(p.frameCount) / elapsed.Seconds()

	runtime.ReadMemStats(&p.memStats)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	allocRateMB := float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	// PauseNs is a circular buffer of the last 256 pauses.
	gcCount := p.memStats.NumGC
	var lastPause, maxPause time.Duration
	if gcCount > 0 {
		lastPause = time.Duration(p.memStats.PauseNs[(gcCount-1)%256])
		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			maxPause = max(maxPause, time.Duration(p.memStats.PauseNs[i%256]))
		}
	}

	attrs := []slog.Attr{
		slog.Float64("fps", fps),
		slog.Float64("heap_mb", allocMB),
		slog.Float64("alloc_mb_per_s", allocRateMB),
		slog.Uint64("gc", uint64(gcCount)),
		slog.Duration("gc_last", lastPause),
		slog.Duration("gc_max", maxPause),
		slog.Float64("sys_mb", sysMB),
	}
	if p.stats != nil {
		attrs = append(attrs, p.stats()...)
	}
	common.Logger().LogAttrs(context.Background(), slog.LevelInfo, "profiler", attrs...)

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}
