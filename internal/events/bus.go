// Package events delivers capture results, errors and state changes to
// observers. Producers never block; a single dispatcher goroutine hands
// events to subscribers in publish order.
package events

import (
	"sync"
	"time"

	"github.com/cjeanneret/CamGo/internal/camerr"
)

// Type discriminates events.
type Type string

const (
	TypePhoto Type = "photo"
	TypeError Type = "error"
	TypeState Type = "state"
)

// Event is one notification. Photo is set for TypePhoto, Err for TypeError,
// State for TypeState. CaptureID links photo and error events to the
// capture request that produced them.
type Event struct {
	Type      Type
	Time      time.Time
	CaptureID string
	Photo     []byte
	Err       error
	State     string
}

// Kind returns the error kind of an error event.
func (e Event) Kind() camerr.Kind {
	return camerr.KindOf(e.Err)
}

// Bus fans events out to subscribers.
type Bus struct {
	mu      sync.Mutex
	queue   []Event
	wake    chan struct{}
	closed  bool
	clients map[*client]struct{}
	done    chan struct{}
}

type client struct {
	ch   chan Event
	gone chan struct{}
	once sync.Once
}

// NewBus starts the dispatcher.
func NewBus() *Bus {
	b := &Bus{
		wake:    make(chan struct{}, 1),
		clients: make(map[*client]struct{}),
		done:    make(chan struct{}),
	}
	go b.dispatch()
	return b
}

// Subscribe returns a channel of events and a cleanup function. Subscribers
// must keep draining the channel; delivery waits for them rather than
// dropping results.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	c := &client{ch: make(chan Event, 16), gone: make(chan struct{})}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(c.ch)
		return c.ch, func() {}
	}
	b.clients[c] = struct{}{}
	b.mu.Unlock()

	unsub := func() {
		c.once.Do(func() {
			close(c.gone)
			b.mu.Lock()
			delete(b.clients, c)
			b.mu.Unlock()
		})
	}
	return c.ch, unsub
}

// Publish queues ev for delivery. It never blocks and is a no-op once the
// bus is closed.
func (b *Bus) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.queue = append(b.queue, ev)
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// ReportError publishes err as an error event.
func (b *Bus) ReportError(err error) {
	b.Publish(Event{Type: TypeError, Err: err})
}

// Close delivers what is already queued, then closes every subscriber
// channel. Later publishes are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		<-b.done
		return
	}
	b.closed = true
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
	<-b.done
}

func (b *Bus) dispatch() {
	defer close(b.done)
	for {
		<-b.wake
		for {
			b.mu.Lock()
			if len(b.queue) == 0 {
				closed := b.closed
				if closed {
					b.closeClients()
				}
				b.mu.Unlock()
				if closed {
					return
				}
				break
			}
			ev := b.queue[0]
			b.queue[0] = Event{}
			b.queue = b.queue[1:]
			clients := make([]*client, 0, len(b.clients))
			for c := range b.clients {
				clients = append(clients, c)
			}
			b.mu.Unlock()

			for _, c := range clients {
				select {
				case c.ch <- ev:
				case <-c.gone:
				}
			}
		}
	}
}

// closeClients runs with b.mu held.
func (b *Bus) closeClients() {
	for c := range b.clients {
		close(c.ch)
		delete(b.clients, c)
	}
}
