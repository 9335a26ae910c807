package mailbox

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Receive and Deliver after Close(nil).
var ErrClosed = errors.New("mailbox closed")

// Mailbox defines the receive side of a rank's message transport.
// All implementations must be thread-safe for concurrent access.
type Mailbox interface {
	// Deliver queues keys as a message from src with the given tag.
	// Returns the close error if the mailbox has been closed.
	Deliver(src, tag int, keys []int64) error

	// Receive blocks until a message from src with the given tag is queued,
	// then removes and returns it.
	Receive(ctx context.Context, src, tag int) ([]int64, error)

	// Close fails all pending and future receives with err.
	Close(err error)

	// Stats returns delivery statistics
	Stats() Stats
}

// Stats contains statistics about a mailbox
type Stats struct {
	Delivered int `json:"delivered"` // Messages delivered
	Received  int `json:"received"`  // Messages handed to receivers
	Pending   int `json:"pending"`   // Messages queued but not yet received
	Keys      int `json:"keys"`      // Total keys delivered
}

type slot struct {
	src int
	tag int
}

// MemoryMailbox implements Mailbox with in-memory FIFO queues
// Uses sync.Mutex plus per-slot wake channels for blocking receives
type MemoryMailbox struct {
	mu      sync.Mutex
	queues  map[slot][][]int64      // Pending messages per (src, tag)
	waiters map[slot]chan struct{} // Closed when a message lands in the slot
	closed  error
	stats   Stats
}

// NewMemoryMailbox creates an empty mailbox
func NewMemoryMailbox() *MemoryMailbox {
	return &MemoryMailbox{
		queues:  make(map[slot][][]int64),
		waiters: make(map[slot]chan struct{}),
	}
}

// Deliver queues a copy of keys for the (src, tag) slot
func (m *MemoryMailbox) Deliver(src, tag int, keys []int64) error {
	// Make a copy to prevent external modification
	msg := make([]int64, len(keys))
	copy(msg, keys)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed != nil {
		return m.closed
	}

	s := slot{src: src, tag: tag}
	m.queues[s] = append(m.queues[s], msg)
	m.stats.Delivered++
	m.stats.Pending++
	m.stats.Keys += len(msg)

	if ch, ok := m.waiters[s]; ok {
		close(ch)
		delete(m.waiters, s)
	}
	return nil
}

// Receive removes and returns the oldest message queued for (src, tag)
func (m *MemoryMailbox) Receive(ctx context.Context, src, tag int) ([]int64, error) {
	s := slot{src: src, tag: tag}
	for {
		m.mu.Lock()
		if q := m.queues[s]; len(q) > 0 {
			msg := q[0]
			q[0] = nil
			if len(q) == 1 {
				delete(m.queues, s)
			} else {
				m.queues[s] = q[1:]
			}
			m.stats.Received++
			m.stats.Pending--
			m.mu.Unlock()
			return msg, nil
		}
		if m.closed != nil {
			err := m.closed
			m.mu.Unlock()
			return nil, err
		}
		ch, ok := m.waiters[s]
		if !ok {
			ch = make(chan struct{})
			m.waiters[s] = ch
		}
		m.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close wakes every waiting receiver. Queued messages can still be received;
// once a slot is drained Receive returns err (ErrClosed if err is nil).
// Only the first Close takes effect.
func (m *MemoryMailbox) Close(err error) {
	if err == nil {
		err = ErrClosed
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed != nil {
		return
	}
	m.closed = err
	for s, ch := range m.waiters {
		close(ch)
		delete(m.waiters, s)
	}
}

// Stats returns delivery statistics
func (m *MemoryMailbox) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}
