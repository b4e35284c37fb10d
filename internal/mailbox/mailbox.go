// Package mailbox provides the fixed-capacity FIFO used to hand packets from producers to a
// dedicated worker goroutine.
package mailbox

import (
	"context"
	"errors"
	"sync"
)

// ErrFull is returned by TryPut when every slot is occupied.
var ErrFull = errors.New("mailbox: full")

// ErrClosed is returned by Get and TryPut after Close.
var ErrClosed = errors.New("mailbox: closed")

// Mailbox is a bounded, goroutine-safe FIFO ring.
//
// Capacity is fixed at construction. Producers never block: a put beyond capacity fails with
// ErrFull and leaves the queued items untouched. Consumers block in Get until an item arrives,
// the context is done, or the mailbox is closed.
type Mailbox[T any] struct {
	mu     sync.Mutex
	items  []T
	head   int
	length int
	closed bool
	// notify holds one token while items are available to a sleeping consumer.
	notify chan struct{}
	done   chan struct{}
}

// New creates a mailbox holding at most capacity items. Capacity below 1 is treated as 1.
func New[T any](capacity int) *Mailbox[T] {
	if capacity < 1 {
		capacity = 1
	}

	return &Mailbox[T]{
		items:  make([]T, capacity),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Cap returns the fixed capacity.
func (m *Mailbox[T]) Cap() int {
	return len(m.items)
}

// Len returns the number of queued items.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.length
}

// TryPut appends item at the tail, or returns ErrFull without modifying the mailbox.
func (m *Mailbox[T]) TryPut(item T) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.length == len(m.items) {
		m.mu.Unlock()
		return ErrFull
	}
	m.items[(m.head+m.length)%len(m.items)] = item
	m.length++
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}

	return nil
}

// Get removes and returns the head item, waiting until one is available.
func (m *Mailbox[T]) Get(ctx context.Context) (T, error) {
	for {
		if item, ok, err := m.tryGet(); ok || err != nil {
			return item, err
		}

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-m.done:
			var zero T
			return zero, ErrClosed
		case <-m.notify:
		}
	}
}

func (m *Mailbox[T]) tryGet() (T, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero T
	if m.length == 0 {
		if m.closed {
			return zero, false, ErrClosed
		}
		return zero, false, nil
	}

	item := m.items[m.head]
	m.items[m.head] = zero
	m.head = (m.head + 1) % len(m.items)
	m.length--

	if m.length > 0 {
		// keep a token around for the next Get
		select {
		case m.notify <- struct{}{}:
		default:
		}
	}

	return item, true, nil
}

// Close wakes every waiting consumer. Items still queued are discarded.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	m.length = 0
	close(m.done)
}
