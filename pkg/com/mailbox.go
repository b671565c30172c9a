package com

import (
	"context"
	"sync"
)

// Mailbox is an unbounded in-process FIFO queue. Producers never block,
// which allows transport callbacks to hand work to a consumer goroutine
// without stalling the transport's receive path. Items are consumed in
// arrival order.
type Mailbox[T any] struct {
	mu     sync.Mutex
	items  []T
	signal chan struct{}
}

// NewMailbox returns a new Mailbox.
func NewMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{
		signal: make(chan struct{}, 1),
	}
}

// Put appends item to the queue. Put never blocks.
func (m *Mailbox[T]) Put(item T) {
	m.mu.Lock()
	m.items = append(m.items, item)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
		// A wakeup is already pending.
	}
}

// Get removes and returns the oldest item,
// blocking until an item is available or ctx is done.
func (m *Mailbox[T]) Get(ctx context.Context) (T, error) {
	for {
		m.mu.Lock()
		if len(m.items) > 0 {
			item := m.items[0]
			m.items = m.items[1:]
			m.mu.Unlock()

			return item, nil
		}
		m.mu.Unlock()

		select {
		case <-m.signal:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// Len returns the number of queued items.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.items)
}
