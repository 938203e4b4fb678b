package viewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-ibl/common"
	"github.com/fsnotify/fsnotify"
)

// ErrWatcherClosed is returned by Watch after Close.
var ErrWatcherClosed = errors.New("viewer: watcher closed")

// DefaultDebounce is how long a Watcher waits after the last event on a file before
// calling its callback. Editors usually write a file in several steps.
const DefaultDebounce = 150 * time.Millisecond

// Watcher calls a function when a watched file changes. Parent directories are
// watched so files replaced by rename are still seen.
type Watcher struct {
	mu       sync.Mutex
	fs       *fsnotify.Watcher
	files    map[string]func()
	dirs     map[string]bool
	timers   map[string]*time.Timer
	debounce time.Duration
	closed   bool
}

// NewWatcher creates a watcher. Call Run to start delivering events.
//
// Parameters:
//   - debounce: the quiet period before a callback runs, DefaultDebounce when not positive
//
// Returns:
//   - *Watcher: the watcher
//   - error: an error if the platform watcher cannot be created
func NewWatcher(debounce time.Duration) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		fs:       fs,
		files:    make(map[string]func()),
		dirs:     make(map[string]bool),
		timers:   make(map[string]*time.Timer),
		debounce: debounce,
	}, nil
}

// Watch registers onChange for path, replacing an earlier callback for the same file.
// onChange runs on a timer goroutine.
//
// Parameters:
//   - path: the file to watch
//   - onChange: the callback
//
// Returns:
//   - error: ErrWatcherClosed or an error adding the parent directory
func (w *Watcher) Watch(path string, onChange func()) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWatcherClosed
	}
	dir := filepath.Dir(abs)
	if !w.dirs[dir] {
		if err := w.fs.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		w.dirs[dir] = true
	}
	w.files[abs] = onChange
	return nil
}

// Run delivers events until ctx is done or Close is called.
//
// Parameters:
//   - ctx: cancels the loop
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.schedule(filepath.Clean(event.Name))
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			common.Logger().Warn("file watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) schedule(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn, ok := w.files[name]
	if !ok || w.closed {
		return
	}
	if t, ok := w.timers[name]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[name] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, name)
		closed := w.closed
		w.mu.Unlock()
		if closed {
			return
		}
		common.Logger().Info("file changed", slog.String("path", name))
		fn()
	})
}

// Close stops the watcher and pending callbacks. Idempotent.
//
// Returns:
//   - error: an error closing the platform watcher
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for _, t := range w.timers {
		t.Stop()
	}
	clear(w.timers)
	w.mu.Unlock()
	return w.fs.Close()
}
