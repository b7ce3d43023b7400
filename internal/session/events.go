package session

import (
	"sync"

	"github.com/google/uuid"
)

// EventKind distinguishes session notifications
type EventKind int

const (
	// EventDevicesUpdated fires after any registry change. Delivery is
	// best-effort: a subscriber that is not keeping up misses intermediate
	// notifications, and should re-read the device list when it catches up.
	EventDevicesUpdated EventKind = iota

	// EventDiscoveryCompleted fires exactly once per run, when the run
	// deadline passes. It is always delivered to live subscribers.
	EventDiscoveryCompleted
)

// String returns the event name
func (k EventKind) String() string {
	switch k {
	case EventDevicesUpdated:
		return "DevicesUpdated"
	case EventDiscoveryCompleted:
		return "DiscoveryCompleted"
	default:
		return "Unknown"
	}
}

// Event is a notification about one discovery run
type Event struct {
	Kind      EventKind
	SessionID uuid.UUID
}

// subscriptionBuffer is the per-subscription channel capacity
const subscriptionBuffer = 2

// Subscription receives session events until it or the session is closed
type Subscription struct {
	ch     chan Event
	done   chan struct{}
	once   sync.Once
	broker *broker

	// sendMu guards ch against being closed during a delivery
	sendMu sync.RWMutex
	closed bool
}

// Events returns the delivery channel. It is closed when the subscription
// or the session is closed.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close stops delivery. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		s.broker.remove(s)
	})
}

// deliver sends ev to the subscriber. It reports false if the broker began
// closing while a completion was waiting to be received.
func (s *Subscription) deliver(ev Event, closing <-chan struct{}) bool {
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.closed {
		return true
	}

	if ev.Kind == EventDiscoveryCompleted {
		select {
		case s.ch <- ev:
		case <-s.done:
		case <-closing:
			return false
		}
		return true
	}

	select {
	case s.ch <- ev:
	default:
	}
	return true
}

// shut closes the delivery channel once in-flight deliveries have returned.
// Callers first close done or the broker's closing channel so that a blocked
// completion gives up.
func (s *Subscription) shut() {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// broker fans events out to subscriptions
type broker struct {
	mu      sync.Mutex
	subs    map[*Subscription]struct{}
	closed  bool
	closing chan struct{}
	once    sync.Once
}

func newBroker() *broker {
	return &broker{
		subs:    make(map[*Subscription]struct{}),
		closing: make(chan struct{}),
	}
}

func (b *broker) subscribe() *Subscription {
	sub := &Subscription{
		ch:     make(chan Event, subscriptionBuffer),
		done:   make(chan struct{}),
		broker: b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		sub.once.Do(func() { close(sub.done) })
		sub.shut()
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

func (b *broker) remove(sub *Subscription) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()

	sub.shut()
}

// publish delivers ev to every subscription. Updates are dropped for
// subscribers whose buffer already holds a pending event; completions
// block until received or until the subscriber or broker goes away.
// Delivery happens outside b.mu so a stalled subscriber never blocks
// other publishers or close.
func (b *broker) publish(ev Event) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	subs := make([]*Subscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		if !sub.deliver(ev, b.closing) {
			return
		}
	}
}

func (b *broker) close() {
	b.once.Do(func() {
		close(b.closing)

		b.mu.Lock()
		b.closed = true
		subs := make([]*Subscription, 0, len(b.subs))
		for sub := range b.subs {
			subs = append(subs, sub)
		}
		clear(b.subs)
		b.mu.Unlock()

		for _, sub := range subs {
			sub.shut()
		}
	})
}
