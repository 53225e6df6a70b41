package engine

import (
	"context"
	"sync"
)

// Outbox is a thread-safe FIFO of encoded outbound frames for one
// connection.
//
// The outbox is unbounded so that Send never blocks: sessions enqueue while
// holding the store lock, and a slow client must not stall other sessions.
//
// A buffered channel of size 1 signals availability; multiple sends coalesce
// into one wakeup.
type Outbox struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
	signal chan struct{}
}

// NewOutbox creates an empty outbox.
func NewOutbox() *Outbox {
	return &Outbox{
		frames: make([][]byte, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Send enqueues frame. Frames sent after Close are dropped.
// Implements Sender.
func (o *Outbox) Send(frame []byte) {
	o.Push(frame)
}

// Push enqueues frame and reports whether the outbox accepted it.
func (o *Outbox) Push(frame []byte) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return false
	}
	o.frames = append(o.frames, frame)

	select {
	case o.signal <- struct{}{}:
	default:
	}
	return true
}

// TryPop removes and returns the oldest frame without blocking.
func (o *Outbox) TryPop() ([]byte, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.frames) == 0 {
		return nil, false
	}
	frame := o.frames[0]
	o.frames[0] = nil
	if len(o.frames) == 1 {
		o.frames = o.frames[:0]
	} else {
		o.frames = o.frames[1:]
	}
	return frame, true
}

// Wait returns a channel that signals when frames may be available. The
// channel is closed by Close.
func (o *Outbox) Wait() <-chan struct{} {
	return o.signal
}

// Len returns the number of queued frames.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.frames)
}

// Close stops accepting frames and wakes the pump. Frames already queued
// are still handed out by TryPop.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}
	o.closed = true
	close(o.signal)
}

func (o *Outbox) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// Pump writes frames with write, in order, until the outbox is closed and
// drained, ctx is done, or write fails.
func (o *Outbox) Pump(ctx context.Context, write func([]byte) error) error {
	for {
		for {
			frame, ok := o.TryPop()
			if !ok {
				break
			}
			if err := write(frame); err != nil {
				return err
			}
		}
		if o.isClosed() && o.Len() == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-o.Wait():
		}
	}
}
