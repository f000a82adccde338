package capture

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Take once the mailbox is closed and drained.
var ErrClosed = errors.New("mailbox closed")

// Closer is anything that owns releasable resources.
type Closer interface {
	Close() error
}

// Latest is a single-slot mailbox. Put replaces and closes any value not yet
// taken, so a slow consumer always gets the most recent frame.
type Latest[T Closer] struct {
	mu      sync.Mutex
	value   T
	full    bool
	closed  bool
	dropped uint64
	ready   chan struct{}
}

// NewLatest creates an empty mailbox.
func NewLatest[T Closer]() *Latest[T] {
	return &Latest[T]{ready: make(chan struct{}, 1)}
}

// Put stores v, closing the value it replaces. It reports whether a value was
// dropped. After Close, v is closed immediately.
func (l *Latest[T]) Put(v T) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		v.Close()
		return false
	}

	var old T
	replaced := l.full
	if replaced {
		old = l.value
		l.dropped++
	}
	l.value = v
	l.full = true
	select {
	case l.ready <- struct{}{}:
	default:
	}
	l.mu.Unlock()

	if replaced {
		old.Close()
	}
	return replaced
}

// Take waits for a value. It returns ErrClosed after Close, or the context
// error when ctx is done first.
func (l *Latest[T]) Take(ctx context.Context) (T, error) {
	var zero T
	for {
		l.mu.Lock()
		if l.full {
			v := l.value
			l.value = zero
			l.full = false
			l.mu.Unlock()
			return v, nil
		}
		if l.closed {
			l.mu.Unlock()
			return zero, ErrClosed
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-l.ready:
		}
	}
}

// Dropped returns how many values were replaced before being taken.
func (l *Latest[T]) Dropped() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Close releases any pending value and wakes waiting consumers.
func (l *Latest[T]) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	pending, full := l.value, l.full
	var zero T
	l.value = zero
	l.full = false
	l.mu.Unlock()

	if full {
		pending.Close()
	}
	close(l.ready)
}
