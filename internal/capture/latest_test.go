package capture

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeFrame struct {
	id     int
	closed atomic.Bool
}

func (f *fakeFrame) Close() error {
	f.closed.Store(true)
	return nil
}

func TestLatest_ReplacesUnconsumed(t *testing.T) {
	box := NewLatest[*fakeFrame]()
	first, second := &fakeFrame{id: 1}, &fakeFrame{id: 2}

	if box.Put(first) {
		t.Error("first Put should not report a drop")
	}
	if !box.Put(second) {
		t.Error("second Put should report a drop")
	}
	if !first.closed.Load() {
		t.Error("replaced frame was not closed")
	}

	got, err := box.Take(context.Background())
	if err != nil {
		t.Fatalf("Take() error = %v", err)
	}
	if got.id != 2 {
		t.Errorf("Take() = frame %d, want 2", got.id)
	}
	if got.closed.Load() {
		t.Error("taken frame should not be closed")
	}
	if box.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", box.Dropped())
	}
}

func TestLatest_TakeWaits(t *testing.T) {
	box := NewLatest[*fakeFrame]()

	go func() {
		time.Sleep(20 * time.Millisecond)
		box.Put(&fakeFrame{id: 7})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := box.Take(ctx)
	if err != nil {
		t.Fatalf("Take() error = %v", err)
	}
	if got.id != 7 {
		t.Errorf("Take() = frame %d, want 7", got.id)
	}
}

func TestLatest_TakeHonoursContext(t *testing.T) {
	box := NewLatest[*fakeFrame]()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := box.Take(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Take() error = %v, want DeadlineExceeded", err)
	}
}

func TestLatest_Close(t *testing.T) {
	box := NewLatest[*fakeFrame]()
	pending := &fakeFrame{id: 1}
	box.Put(pending)

	done := make(chan error, 1)
	box.Close()
	go func() {
		_, err := box.Take(context.Background())
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("Take() error = %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Take() did not return after Close")
	}

	if !pending.closed.Load() {
		t.Error("pending frame was not closed")
	}

	late := &fakeFrame{id: 2}
	box.Put(late)
	if !late.closed.Load() {
		t.Error("frame put after Close was not closed")
	}

	// closing twice is safe
	box.Close()
}

func TestLatest_ConcurrentProducers(t *testing.T) {
	box := NewLatest[*fakeFrame]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const total = 200
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < total; i++ {
			box.Put(&fakeFrame{id: i})
		}
	}()

	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		for {
			f, err := box.Take(ctx)
			if err != nil {
				return
			}
			f.Close()
		}
	}()

	<-done
	box.Close()
	<-consumed

	if box.Dropped() > total {
		t.Errorf("Dropped() = %d exceeds puts", box.Dropped())
	}
}
