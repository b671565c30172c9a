package fscache

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrTimeout is returned by WaitForFresherThan when the backing file
// does not become fresh enough within the given timeout.
var ErrTimeout = errors.New("timed out waiting for a fresher source")

// pollInterval is the resolution at which WaitForFresherThan re-checks the source.
const pollInterval = time.Second

// Loader turns the raw contents of the backing file into the cached value.
// Loading is all-or-nothing: a non-nil error aborts the refresh and
// the previously cached value stays in place.
type Loader[T any] func(raw []byte, modTime time.Time) (T, error)

// Cache is a mutate-on-demand cache over a single file, keyed by the file's
// modification time. All refreshes are serialized by a per-cache mutex, so
// concurrent readers never race a reload.
type Cache[T any] struct {
	path   string
	loader Loader[T]
	logger *zap.SugaredLogger

	mu      sync.Mutex
	value   T
	loaded  bool
	modTime time.Time
	waiters []*waiter[T]
}

type waiter[T any] struct {
	pred func(T) bool
	ch   chan T
}

// New returns a new Cache reading from the file at path via loader.
func New[T any](path string, loader Loader[T], logger *zap.SugaredLogger) *Cache[T] {
	return &Cache[T]{
		path:   path,
		loader: loader,
		logger: logger,
	}
}

// Get returns the cached value, refreshing it first if the backing file has
// changed since the last load or no load has happened yet. If a refresh
// fails but a previous value exists, the previous value is served and the
// failure is only logged; without a previous value the error is returned.
func (c *Cache[T]) Get() (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.refreshLocked(); err != nil {
		if !c.loaded {
			var zero T
			return zero, err
		}

		c.logger.Errorw("Serving previous value after failed refresh", zap.String("file", c.path), zap.Error(err))
	}

	return c.value, nil
}

// Current returns the cached value without refreshing,
// plus whether any load has succeeded yet.
func (c *Cache[T]) Current() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.value, c.loaded
}

// RefreshIfStale reloads the value if the backing file is newer than the
// last load and reports whether a reload happened. Failed reloads are
// logged and reported as "no reload".
func (c *Cache[T]) RefreshIfStale() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	refreshed, err := c.refreshLocked()
	if err != nil {
		c.logger.Errorw("Refresh failed, keeping previous value", zap.String("file", c.path), zap.Error(err))
		return false
	}

	return refreshed
}

// WaitForFresherThan blocks, polling at second resolution, until the backing
// file's modification time is at least t, then reloads. It fails with
// ErrTimeout if the file does not become fresh enough within timeout.
// Unlike Get and RefreshIfStale, load errors propagate to the caller.
func (c *Cache[T]) WaitForFresherThan(ctx context.Context, t time.Time, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for {
		if st, err := os.Stat(c.path); err == nil && !st.ModTime().Before(t) {
			c.mu.Lock()
			defer c.mu.Unlock()

			return c.loadLocked(st.ModTime())
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return errors.Wrapf(ErrTimeout, "%s did not become newer than %s within %s", c.path, t, timeout)
		}

		sleep := pollInterval
		if remaining < sleep {
			sleep = remaining
		}

		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// NotifyWhen returns a channel that receives the cached value once,
// on the first successful reload for which pred holds, and is then closed.
// If the current value already satisfies pred, it is delivered immediately.
// The returned cancel function deregisters the waiter; callers that give
// up on a pending future must call it, or the registration lives forever
// and keeps Waiters elevated. Canceling closes the channel without a
// value, and canceling a resolved future is a no-op.
func (c *Cache[T]) NotifyWhen(pred func(T) bool) (<-chan T, func()) {
	ch := make(chan T, 1)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded && pred(c.value) {
		ch <- c.value
		close(ch)

		return ch, func() {}
	}

	w := &waiter[T]{pred: pred, ch: ch}
	c.waiters = append(c.waiters, w)

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		for i, registered := range c.waiters {
			if registered == w {
				c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
				close(w.ch)

				return
			}
		}
	}

	return ch, cancel
}

// Waiters returns the number of outstanding NotifyWhen registrations.
func (c *Cache[T]) Waiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.waiters)
}

// ModTime returns the modification time the current value was loaded from.
func (c *Cache[T]) ModTime() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.modTime
}

func (c *Cache[T]) refreshLocked() (bool, error) {
	st, err := os.Stat(c.path)
	if err != nil {
		return false, errors.Wrap(err, "can't stat "+c.path)
	}

	if c.loaded && !st.ModTime().After(c.modTime) {
		return false, nil
	}

	if err := c.loadLocked(st.ModTime()); err != nil {
		return false, err
	}

	return true, nil
}

func (c *Cache[T]) loadLocked(modTime time.Time) error {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return errors.Wrap(err, "can't read "+c.path)
	}

	value, err := c.loader(raw, modTime)
	if err != nil {
		return errors.Wrap(err, "can't load "+c.path)
	}

	c.value = value
	c.modTime = modTime
	c.loaded = true

	// Resolve waiters satisfied by the new value, keep the rest registered.
	remaining := c.waiters[:0]
	for _, w := range c.waiters {
		if w.pred(value) {
			w.ch <- value
			close(w.ch)
		} else {
			remaining = append(remaining, w)
		}
	}
	c.waiters = remaining

	return nil
}
