package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewExponentialWithJitter(t *testing.T) {
	base := 10 * time.Millisecond
	limit := time.Second
	b := NewExponentialWithJitter(base, limit)

	for attempt := uint64(0); attempt < 128; attempt++ {
		d := b(attempt)
		require.GreaterOrEqual(t, d, base/2, "attempt %d below the jitter floor", attempt)
		require.Less(t, d, limit, "attempt %d exceeds the limit", attempt)
	}

	// Late attempts, including shift-overflow territory, settle at the limit.
	for _, attempt := range []uint64{20, 63, 64, 1000} {
		d := b(attempt)
		require.GreaterOrEqual(t, d, limit/2, "attempt %d", attempt)
		require.Less(t, d, limit, "attempt %d", attempt)
	}

	require.Panics(t, func() { NewExponentialWithJitter(time.Second, time.Second) })

	// Non-positive bounds get defaults instead of a panic.
	require.NotPanics(t, func() { NewExponentialWithJitter(0, 0)(3) })
}
