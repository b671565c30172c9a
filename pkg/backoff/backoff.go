package backoff

import (
	"math/rand"
	"time"
)

// Backoff maps a zero-based retry attempt to the delay preceding it.
type Backoff func(attempt uint64) time.Duration

// NewExponentialWithJitter returns a Backoff that starts at base for the
// first attempt and doubles per attempt up to limit. Each delay is
// randomized within [d/2, d) so parallel retriers spread out instead of
// hammering in lockstep. Non-positive bounds fall back to 100ms and 10s;
// base must stay below limit.
func NewExponentialWithJitter(base, limit time.Duration) Backoff {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	if limit <= 0 {
		limit = 10 * time.Second
	}
	if base >= limit {
		panic("backoff limit must exceed the base delay")
	}

	return func(attempt uint64) time.Duration {
		d := base << attempt
		// The shift overflows into <=0 well before attempt 64.
		if d <= 0 || d > limit {
			d = limit
		}

		return jitter(d)
	}
}

// jitter picks a random duration in [d/2, d).
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}

	half := int64(d) / 2

	return time.Duration(half + rand.Int63n(half))
}
