package viewer_test

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-ibl/engine/viewer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherDebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ibl.toml")
	other := filepath.Join(dir, "other.toml")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))

	w, err := viewer.NewWatcher(50 * time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	var calls atomic.Int32
	require.NoError(t, w.Watch(path, func() { calls.Add(1) }))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte{byte('b' + i)}, 0o644))
	}
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o644))

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "writes within the debounce window coalesce")
}

func TestWatcherClosed(t *testing.T) {
	w, err := viewer.NewWatcher(0)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Watch(filepath.Join(t.TempDir(), "x"), func() {}), viewer.ErrWatcherClosed)
}
