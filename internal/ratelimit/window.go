package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/dkoretsky/pipegate/internal/observability"
)

// DefaultSweepInterval is how often the background sweep scans for stale
// client windows.
const DefaultSweepInterval = time.Minute

// clientWindow tracks one client's window. Expired windows are replaced,
// never mutated back to a fresh state.
type clientWindow struct {
	started time.Time
	count   int
}

// ClientWindowLimiter bounds requests per client key within a window that
// starts at the client's first request and resets only once it has fully
// elapsed. All state lives in one map guarded by a mutex; the lock is held
// only for the read-check-update of a single key, never while responses
// are built. A background sweep evicts windows older than the window
// duration to bound map growth.
type ClientWindowLimiter struct {
	mu      sync.Mutex
	windows map[string]*clientWindow
	limit   int
	window  time.Duration

	sweepInterval time.Duration
	logger        observability.Logger
	stopCh        chan struct{}
	stopped       bool
}

// ClientWindowOption is a functional option for the window limiter.
type ClientWindowOption func(*ClientWindowLimiter)

// WithSweepInterval sets the background sweep interval.
func WithSweepInterval(interval time.Duration) ClientWindowOption {
	return func(l *ClientWindowLimiter) {
		if interval > 0 {
			l.sweepInterval = interval
		}
	}
}

// WithWindowLogger sets the logger for the limiter.
func WithWindowLogger(logger observability.Logger) ClientWindowOption {
	return func(l *ClientWindowLimiter) {
		l.logger = logger
	}
}

// NewClientWindowLimiter creates a per-client window limiter allowing limit
// requests per window.
func NewClientWindowLimiter(limit int, window time.Duration, opts ...ClientWindowOption) *ClientWindowLimiter {
	l := &ClientWindowLimiter{
		windows:       make(map[string]*clientWindow),
		limit:         limit,
		window:        window,
		sweepInterval: DefaultSweepInterval,
		logger:        observability.NopLogger(),
		stopCh:        make(chan struct{}),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Allow implements Limiter.
func (l *ClientWindowLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	now := time.Now()

	l.mu.Lock()
	limit := l.limit
	window := l.window

	var allowed bool
	var count int
	var started time.Time

	w, ok := l.windows[key]
	switch {
	case !ok || now.Sub(w.started) > window:
		// First request from this key, or its window has fully elapsed.
		w = &clientWindow{started: now, count: 1}
		l.windows[key] = w
		allowed = true
	case w.count < limit:
		w.count++
		allowed = true
	default:
		allowed = false
	}
	count = w.count
	started = w.started
	l.mu.Unlock()

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	// Saturating: a stale window or non-monotonic clock reads as zero time
	// left, never a negative duration.
	resetAfter := started.Add(window).Sub(now)
	if resetAfter < 0 {
		resetAfter = 0
	}

	var retryAfter time.Duration
	if !allowed {
		retryAfter = resetAfter
	}

	return &Result{
		Allowed:    allowed,
		Limit:      limit,
		Remaining:  remaining,
		ResetAfter: resetAfter,
		RetryAfter: retryAfter,
	}, nil
}

// Reset implements Limiter.
func (l *ClientWindowLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	delete(l.windows, key)
	l.mu.Unlock()
	return nil
}

// UpdateLimits replaces the limit and window duration. Existing windows
// keep their start times; the new values apply from the next check.
func (l *ClientWindowLimiter) UpdateLimits(limit int, window time.Duration) {
	l.mu.Lock()
	l.limit = limit
	l.window = window
	l.mu.Unlock()
}

// Size returns the number of tracked client windows.
func (l *ClientWindowLimiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// StartSweep launches the background goroutine that periodically evicts
// expired windows. It is independent of request traffic and holds the map
// lock only for the duration of one scan.
func (l *ClientWindowLimiter) StartSweep() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()

	go func() {
		ticker := time.NewTicker(l.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				l.sweep()
			case <-l.stopCh:
				return
			}
		}
	}()
}

// sweep removes every window whose duration has fully elapsed.
func (l *ClientWindowLimiter) sweep() {
	now := time.Now()

	l.mu.Lock()
	window := l.window
	removed := 0
	for key, w := range l.windows {
		if now.Sub(w.started) > window {
			delete(l.windows, key)
			removed++
		}
	}
	remaining := len(l.windows)
	l.mu.Unlock()

	if removed > 0 {
		l.logger.Debug("swept expired rate limit windows",
			observability.Int("removed", removed),
			observability.Int("remaining", remaining),
		)
	}
}

// Stop terminates the background sweep.
func (l *ClientWindowLimiter) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.stopped {
		l.stopped = true
		close(l.stopCh)
	}
}

// Close implements Limiter.
func (l *ClientWindowLimiter) Close() error {
	l.Stop()
	return nil
}
