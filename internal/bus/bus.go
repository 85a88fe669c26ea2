// internal/bus/bus.go
package bus

import (
	"sync"
	"time"
)

// EventType identifies what happened in a room.
type EventType string

const (
	// StateUpdated carries no payload; receivers re-pull their whole view.
	StateUpdated EventType = "state_updated"
	Log          EventType = "log"
	Toast        EventType = "toast"
	Kick         EventType = "kick"
)

// ToastKind is the severity of a toast.
type ToastKind string

const (
	ToastInfo  ToastKind = "info"
	ToastError ToastKind = "error"
)

// Broadcast is the toast target meaning "everyone in the room".
const Broadcast int64 = 0

// LogTimeFormat is how log timestamps are rendered.
const LogTimeFormat = "15:04:05"

// Event is one message on a room bus. Only the fields relevant to Type are set.
type Event struct {
	Type EventType

	// Log
	Speaker string
	Text    string
	Time    string

	// Toast and Kick
	Target  int64
	Message string
	Kind    ToastKind
}

// Updated returns a StateUpdated event.
func Updated() Event {
	return Event{Type: StateUpdated}
}

// NewLog returns a Log event stamped with at.
func NewLog(speaker, text string, at time.Time) Event {
	return Event{Type: Log, Speaker: speaker, Text: text, Time: at.Format(LogTimeFormat)}
}

// NewToast returns a Toast for target (Broadcast for everyone).
func NewToast(target int64, message string, kind ToastKind) Event {
	return Event{Type: Toast, Target: target, Message: message, Kind: kind}
}

// NewKick returns a Kick aimed at target.
func NewKick(target int64) Event {
	return Event{Type: Kick, Target: target}
}

// For reports whether a targeted event concerns viewer.
func (e Event) For(viewer int64) bool {
	return e.Target == Broadcast || e.Target == viewer
}

// DefaultCapacity is the per-subscription buffer used by New(0).
const DefaultCapacity = 100

// Bus fans events out to every subscription of one room. Publish never
// blocks: a subscription whose buffer is full loses its oldest pending event
// so that the newest one is always delivered.
type Bus struct {
	mu       sync.Mutex
	subs     map[*Subscription]struct{}
	capacity int
	closed   bool
}

// New creates a bus whose subscriptions buffer up to capacity events.
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{
		subs:     make(map[*Subscription]struct{}),
		capacity: capacity,
	}
}

// Subscription is one receiver's view of the bus.
type Subscription struct {
	bus *Bus
	ch  chan Event
}

// Subscribe registers a new receiver. Subscribing to a closed bus returns a
// subscription whose channel is already closed.
func (b *Bus) Subscribe() *Subscription {
	s := &Subscription{bus: b, ch: make(chan Event, b.capacity)}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(s.ch)
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Publish delivers ev to every subscription.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for s := range b.subs {
		s.offer(ev)
	}
}

// offer is only called with b.mu held, so each channel has a single sender.
func (s *Subscription) offer(ev Event) {
	select {
	case s.ch <- ev:
		return
	default:
	}
	// full: drop the oldest pending event and retry once
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- ev:
	default:
	}
}

// Len reports the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close detaches and closes every subscription. Later publishes are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		close(s.ch)
		delete(b.subs, s)
	}
}

// C is the receive side. It is closed when the subscription or bus closes.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Close detaches the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	b := s.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[s]; !ok {
		return
	}
	delete(b.subs, s)
	close(s.ch)
}
