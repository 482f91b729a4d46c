package pubsub

import (
	"errors"
	"sync"

	"github.com/alanbriolat/resumable-download/generic"
	sync_ "github.com/alanbriolat/resumable-download/internal/sync"
)

const (
	DefaultPublisherBufSize  = 16
	DefaultSubscriberBufSize = 16
)

var (
	ErrPublisherClosed = errors.New("publisher closed")
)

// Publisher is a SenderCloser that fans every message out to all of its subscribers, in the order sent.
type Publisher[T any] interface {
	SenderCloser[T]
	// AddSubscriber registers an existing sender; if closeWithPublisher is set it is closed when the publisher closes.
	AddSubscriber(s SenderCloser[T], closeWithPublisher bool) error
	// Subscribe creates a new subscriber channel that is closed when the publisher closes.
	Subscribe() (ReceiverCloser[T], error)
	SubscribeBufSize(int) (ReceiverCloser[T], error)
}

type subscriber[T any] struct {
	SenderCloser[T]
	closeWithPublisher bool
}

type publisher[T any] struct {
	mu          sync.Mutex
	ch          Channel[T]
	running     sync.WaitGroup // The fan-out goroutine
	pending     sync.WaitGroup // Messages not yet offered to all subscribers
	subscribers *sync_.RWMutexed[[]*subscriber[T]]
	closed      bool
}

func NewPublisher[T any]() Publisher[T] {
	return NewPublisherBufSize[T](DefaultPublisherBufSize)
}

func NewPublisherBufSize[T any](bufSize int) Publisher[T] {
	p := &publisher[T]{
		ch:          NewChannel[T](bufSize),
		subscribers: sync_.NewRWMutexed[[]*subscriber[T]](nil),
	}
	p.running.Add(1)
	go p.run()
	return p
}

func (p *publisher[T]) run() {
	defer p.running.Done()
	for msg := range p.ch.Receive() {
		// Snapshot the subscribers so that a slow subscriber doesn't hold up AddSubscriber
		subscribers := p.subscribers.Get()
		var gone []*subscriber[T]
		for _, s := range subscribers {
			if ok := s.Send(msg); !ok {
				gone = append(gone, s)
			}
		}
		if len(gone) > 0 {
			p.unsubscribe(gone)
		}
		p.pending.Done()
	}
}

// Send queues the message for all subscribers, returning false if the publisher is closed.
func (p *publisher[T]) Send(msg T) bool {
	p.pending.Add(1)
	if ok := p.ch.Send(msg); !ok {
		p.pending.Done()
		return false
	}
	return true
}

func (p *publisher[T]) Subscribe() (ReceiverCloser[T], error) {
	return p.SubscribeBufSize(DefaultSubscriberBufSize)
}

func (p *publisher[T]) SubscribeBufSize(bufSize int) (ReceiverCloser[T], error) {
	c := NewChannel[T](bufSize)
	if err := p.AddSubscriber(c, true); err != nil {
		return nil, err
	}
	return c, nil
}

func (p *publisher[T]) AddSubscriber(s SenderCloser[T], closeWithPublisher bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPublisherClosed
	}
	return p.subscribers.Locked(func(subscribers *[]*subscriber[T]) error {
		// Copy-on-write, the fan-out goroutine may be iterating the old slice
		updated := make([]*subscriber[T], 0, len(*subscribers)+1)
		updated = append(updated, *subscribers...)
		*subscribers = append(updated, &subscriber[T]{s, closeWithPublisher})
		return nil
	})
}

func (p *publisher[T]) unsubscribe(gone []*subscriber[T]) {
	remove := generic.NewSet(gone...)
	_ = p.subscribers.Locked(func(subscribers *[]*subscriber[T]) error {
		updated := make([]*subscriber[T], 0, len(*subscribers))
		for _, s := range *subscribers {
			if !remove.Contains(s) {
				updated = append(updated, s)
			}
		}
		*subscribers = updated
		return nil
	})
}

// Close idempotently shuts down the publisher after delivering everything already sent.
func (p *publisher[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.ch.Close()
	p.pending.Wait()
	p.running.Wait()
	for _, s := range p.subscribers.Swap(nil) {
		if s.closeWithPublisher {
			s.Close()
		}
	}
	p.closed = true
}

func (p *publisher[T]) Closed() <-chan struct{} {
	return p.ch.Closed()
}
