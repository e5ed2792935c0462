// Package stream fans level samples out from the single capture
// producer to any number of subscribers. The stream is hot: late
// subscribers only see samples published after they attach.
package stream

import (
	"sync"

	"github.com/google/uuid"

	"github.com/petems/miclevel/internal/meter"
)

// subscriberBuffer bounds each subscription's queue. Under
// backpressure the oldest queued sample is dropped so a slow
// subscriber can never stall audio capture.
const subscriberBuffer = 32

type Broadcaster struct {
	mu     sync.Mutex
	subs   map[uuid.UUID]chan meter.Sample
	closed bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[uuid.UUID]chan meter.Sample)}
}

// Subscription is one live feed of samples. Close it when done or the
// broadcaster keeps delivering into its buffer.
type Subscription struct {
	id   uuid.UUID
	b    *Broadcaster
	ch   chan meter.Sample
	once sync.Once
}

func (b *Broadcaster) Subscribe() *Subscription {
	sub := &Subscription{
		id: uuid.New(),
		b:  b,
		ch: make(chan meter.Sample, subscriberBuffer),
	}

	b.mu.Lock()
	if !b.closed {
		b.subs[sub.id] = sub.ch
	} else {
		close(sub.ch)
	}
	b.mu.Unlock()

	return sub
}

// Publish hands a sample to every subscriber without blocking. Called
// from the capture goroutine only.
func (b *Broadcaster) Publish(s meter.Sample) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- s:
		default:
			// Buffer full: drop the oldest queued sample to make room.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}

// Close ends the stream: every subscriber channel is closed and later
// publishes are discarded.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// Levels is the live sample feed. The channel closes when the
// subscription or the broadcaster closes.
func (s *Subscription) Levels() <-chan meter.Sample {
	return s.ch
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.b.mu.Lock()
		if _, ok := s.b.subs[s.id]; ok {
			delete(s.b.subs, s.id)
			close(s.ch)
		}
		s.b.mu.Unlock()
	})
}
