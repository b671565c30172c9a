package periodic

import (
	"context"
	"sync"
	"time"
)

// Tick is handed to the task callback: when the tick fired and how long
// the task has been running by then.
type Tick struct {
	Elapsed time.Duration
	Time    time.Time
}

// Stopper stops a running periodic task. Stopping twice is harmless.
type Stopper interface {
	Stop()
}

// Option configures Start.
type Option interface {
	apply(*task)
}

// Immediate runs the callback right away instead of waiting for the
// first tick.
func Immediate() Option {
	return optionFunc(func(t *task) {
		t.immediate = true
	})
}

// Start runs callback on every tick of interval until ctx is done or the
// returned Stopper is used. Runs never overlap; a callback that outlasts
// the interval delays the following run instead. The interval must be
// greater than zero.
func Start(ctx context.Context, interval time.Duration, callback func(Tick), options ...Option) Stopper {
	t := &task{
		interval: interval,
		callback: callback,
	}

	for _, option := range options {
		option.apply(t)
	}

	ctx, cancel := context.WithCancel(ctx)
	start := time.Now()

	go func() {
		if !t.immediate {
			select {
			case <-time.After(interval):
			case <-ctx.Done():
				return
			}
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for at := time.Now(); ; {
			t.callback(Tick{
				Elapsed: at.Sub(start),
				Time:    at,
			})

			select {
			case at = <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()

	return stopFunc(func() {
		t.stop.Do(cancel)
	})
}

type task struct {
	interval  time.Duration
	callback  func(Tick)
	immediate bool
	stop      sync.Once
}

type optionFunc func(*task)

func (f optionFunc) apply(t *task) {
	f(t)
}

type stopFunc func()

func (f stopFunc) Stop() {
	f()
}
