package pubsub

import (
	"sync"
)

type Sender[T any] interface {
	Send(T) bool
}

type Receiver[T any] interface {
	Receive() <-chan T
}

type Closer interface {
	Close()
	// Closed returns a channel that is closed once Close() has been called.
	Closed() <-chan struct{}
}

type SenderCloser[T any] interface {
	Sender[T]
	Closer
}

type ReceiverCloser[T any] interface {
	Receiver[T]
	Closer
}

type Channel[T any] interface {
	Sender[T]
	Receiver[T]
	Closer
}

// channel wraps a primitive `chan` so that Send and Close can race safely: a Send either completes, or fails because
// the channel was closed, but never panics on a closed chan.
type channel[T any] struct {
	mu      sync.RWMutex
	ch      chan T
	done    chan struct{}
	closed  bool
	sending sync.WaitGroup
}

// NewChannel creates a new channel of the specified type and buffer size.
func NewChannel[T any](bufSize int) Channel[T] {
	return &channel[T]{
		ch:   make(chan T, bufSize),
		done: make(chan struct{}),
	}
}

func (c *channel[T]) Receive() <-chan T {
	return c.ch
}

// Send blocks until the message is accepted (true) or the channel is closed (false).
func (c *channel[T]) Send(msg T) bool {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return false
	}
	c.sending.Add(1)
	c.mu.RUnlock()
	defer c.sending.Done()

	select {
	case c.ch <- msg:
		return true
	case <-c.done:
		return false
	}
}

// Close idempotently ends the channel so that all current and future Send calls fail. Buffered messages can still be
// received before the receive channel reports closed.
func (c *channel[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
	c.sending.Wait()
	close(c.ch)
}

func (c *channel[T]) Closed() <-chan struct{} {
	return c.done
}
