package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dkoretsky/pipegate/internal/observability"
)

// Watcher reloads a configuration file when it changes on disk and hands
// every valid new configuration to a callback. Invalid content is logged
// and dropped; the callback only ever sees configurations that passed
// validation.
type Watcher struct {
	path     string
	delay    time.Duration
	logger   observability.Logger
	onChange func(*Config)

	fw      *fsnotify.Watcher
	stop    chan struct{}
	stopped chan struct{}

	mu      sync.Mutex
	pending *time.Timer
	started bool
	closed  bool
}

// WatcherOption is a functional option for configuring the watcher.
type WatcherOption func(*Watcher)

// WithDebounceDelay sets how long the watcher waits after the last file
// event before reloading.
func WithDebounceDelay(delay time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.delay = delay
	}
}

// WithLogger sets the logger for the watcher.
func WithLogger(logger observability.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// NewWatcher creates a watcher for the given config file. The callback runs
// for every successful reload; it may be nil.
func NewWatcher(path string, onChange func(*Config), opts ...WatcherOption) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	w := &Watcher{
		path:     absPath,
		delay:    100 * time.Millisecond,
		logger:   observability.NopLogger(),
		onChange: onChange,
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Start begins watching. The file must exist; editors that replace the file
// on save are handled by watching its directory.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return nil
	}

	if _, err := os.Stat(w.path); err != nil {
		return fmt.Errorf("config file not watchable: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		fw.Close()
		return fmt.Errorf("watch config directory: %w", err)
	}

	w.fw = fw
	w.started = true

	w.logger.Info("watching configuration file",
		observability.String("path", w.path),
	)

	go w.loop(ctx)
	return nil
}

// Stop stops watching. Safe to call multiple times and before Start.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.started || w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.pending != nil {
		w.pending.Stop()
	}
	w.mu.Unlock()

	close(w.stop)
	<-w.stopped
	return w.fw.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.stopped)

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stop:
			return

		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if w.relevant(event) {
				w.scheduleReload()
			}

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", observability.Error(err))
		}
	}
}

// relevant reports whether the event is a write or create of the watched
// file. Directory events for sibling files are ignored.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create) != 0
}

// scheduleReload arms the debounce timer, replacing any pending one so a
// burst of writes triggers a single reload.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.delay, w.reload)
}

// reload loads and validates the file, discarding it on any failure.
func (w *Watcher) reload() {
	cfg, err := LoadConfig(w.path)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		w.logger.Error("config reload rejected",
			observability.String("path", w.path),
			observability.Error(err),
		)
		return
	}

	w.logger.Info("configuration reloaded",
		observability.String("path", w.path),
	)

	if w.onChange != nil {
		w.onChange(cfg)
	}
}
