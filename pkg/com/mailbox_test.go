package com

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMailbox_Order(t *testing.T) {
	m := NewMailbox[int]()
	for i := 0; i < 100; i++ {
		m.Put(i)
	}

	require.Equal(t, 100, m.Len())

	ctx := context.Background()
	for i := 0; i < 100; i++ {
		v, err := m.Get(ctx)
		require.NoError(t, err)
		require.Equal(t, i, v)
	}

	require.Equal(t, 0, m.Len())
}

func TestMailbox_GetBlocks(t *testing.T) {
	m := NewMailbox[string]()

	got := make(chan string, 1)
	go func() {
		v, err := m.Get(context.Background())
		if err == nil {
			got <- v
		}
	}()

	select {
	case <-got:
		require.Fail(t, "Get returned from an empty mailbox")
	case <-time.After(50 * time.Millisecond):
	}

	m.Put("hello")

	select {
	case v := <-got:
		require.Equal(t, "hello", v)
	case <-time.After(time.Second):
		require.Fail(t, "Get did not wake up")
	}
}

func TestMailbox_GetHonorsContext(t *testing.T) {
	m := NewMailbox[int]()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Get(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
