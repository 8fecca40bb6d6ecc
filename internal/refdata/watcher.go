package refdata

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"starsorter/internal/logging"
)

// DefaultDebounce is how long a file must be quiet before a reload.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads reference data when any of the loader's files change and
// swaps the result into a Store. A reload that fails to parse or validate is
// logged and dropped; the store keeps serving the previous snapshot.
type Watcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	loader      *Loader
	store       *Store
	files       map[string]bool // absolute paths of watched files
	debounceMap map[string]time.Time
	debounceDur time.Duration
	onSwap      func(prev, next *Snapshot)
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	closeOnce   sync.Once

	stats WatcherStats
}

// WatcherStats tracks watcher activity.
type WatcherStats struct {
	FilesCreated  int
	FilesModified int
	FilesDeleted  int
	Reloads       int // successful swaps
	Rejected      int // reloads that failed validation
	Errors        int // watcher-level errors
	LastEventTime time.Time
	LastEventPath string
	LastEventType string
	LastError     string
}

// NewWatcher creates a watcher for loader's files that swaps into store.
// debounce <= 0 uses DefaultDebounce.
func NewWatcher(loader *Loader, store *Store, debounce time.Duration) (*Watcher, error) {
	if loader == nil || store == nil {
		return nil, fmt.Errorf("watcher needs a loader and a store")
	}
	files := make(map[string]bool)
	for _, f := range loader.Paths.Files() {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", f, err)
		}
		files[abs] = true
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no reference data paths to watch")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:     fw,
		loader:      loader,
		store:       store,
		files:       files,
		debounceMap: make(map[string]time.Time),
		debounceDur: debounce,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// OnSwap registers a callback run after every successful swap. It must be
// set before Start.
func (w *Watcher) OnSwap(fn func(prev, next *Snapshot)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onSwap = fn
}

// Start begins watching. The parent directories are watched rather than the
// files so editors that save via rename are still seen. Non-blocking.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	dirs := make(map[string]bool)
	for f := range w.files {
		dirs[filepath.Dir(f)] = true
	}
	for dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			w.mu.Lock()
			w.running = false
			w.mu.Unlock()
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		logging.Watcher("watching directory: %s", dir)
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for cleanup. It is safe to call on a
// watcher that was never started.
func (w *Watcher) Stop() {
	w.mu.Lock()
	running := w.running
	w.running = false
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}

	w.closeOnce.Do(func() {
		if err := w.watcher.Close(); err != nil {
			logging.Get(logging.CategoryWatcher).Error("error closing watcher: %v", err)
		}
		logging.Watcher("stopped")
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.debounceDur / 5
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	debounceTicker := time.NewTicker(tick)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.WatcherDebug("context cancelled")
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryWatcher).Error("watcher error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.stats.LastError = err.Error()
			w.mu.Unlock()

		case <-debounceTicker.C:
			w.processDebouncedEvents()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path, err := filepath.Abs(event.Name)
	if err != nil || !w.files[path] {
		return
	}

	var eventType string
	switch {
	case event.Op&fsnotify.Create != 0:
		eventType = "create"
	case event.Op&fsnotify.Write != 0:
		eventType = "modify"
	case event.Op&fsnotify.Remove != 0:
		eventType = "delete"
	case event.Op&fsnotify.Rename != 0:
		eventType = "rename"
	default:
		return
	}
	logging.WatcherDebug("%s event for %s", eventType, path)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.LastEventTime = time.Now()
	w.stats.LastEventPath = path
	w.stats.LastEventType = eventType
	switch eventType {
	case "create":
		w.stats.FilesCreated++
	case "modify":
		w.stats.FilesModified++
	case "delete", "rename":
		// The file is gone until the editor recreates it; the create event
		// schedules the reload.
		w.stats.FilesDeleted++
		return
	}
	w.debounceMap[path] = time.Now()
}

func (w *Watcher) processDebouncedEvents() {
	w.mu.Lock()
	if len(w.debounceMap) == 0 {
		w.mu.Unlock()
		return
	}
	now := time.Now()
	for _, t := range w.debounceMap {
		// Files are reloaded together, so wait until every one has settled.
		if now.Sub(t) < w.debounceDur {
			w.mu.Unlock()
			return
		}
	}
	w.debounceMap = make(map[string]time.Time)
	w.mu.Unlock()

	_ = w.Reload()
}

// Reload loads the files now and swaps the result in on success.
func (w *Watcher) Reload() error {
	next, err := w.loader.Load()
	if err != nil {
		logging.Get(logging.CategoryWatcher).Warn("reload rejected, keeping current snapshot: %v", err)
		logging.Audit().SnapshotRejected(err)
		w.mu.Lock()
		w.stats.Rejected++
		w.stats.LastError = err.Error()
		w.mu.Unlock()
		return err
	}

	prev := w.store.Swap(next)
	meta := next.Meta()
	logging.Watcher("swapped reference data: version=%s hash=%s", meta.RuleSetVersion, meta.RuleSetHash)
	logging.Audit().SnapshotSwapped(meta.RuleSetVersion, meta.RuleSetHash)

	w.mu.Lock()
	w.stats.Reloads++
	fn := w.onSwap
	w.mu.Unlock()
	if fn != nil {
		fn(prev, next)
	}
	return nil
}

// Stats returns the current watcher statistics.
func (w *Watcher) Stats() WatcherStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// IsWatching returns true if the watcher is currently running.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// WatchedDirs returns the directories being watched.
func (w *Watcher) WatchedDirs() []string {
	return w.watcher.WatchList()
}
