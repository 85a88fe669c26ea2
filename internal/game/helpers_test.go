package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jason-s-yu/wordrelay/internal/bus"
	"github.com/jason-s-yu/wordrelay/internal/models"
	"github.com/stretchr/testify/mock"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// fakeClock is a manually advanced clock shared by a room and its test.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: epoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// keepSeatOrder disables the start shuffle for the duration of a test.
func keepSeatOrder(t *testing.T) {
	t.Helper()
	orig := shuffleSeats
	shuffleSeats = func([]int64) {}
	t.Cleanup(func() { shuffleSeats = orig })
}

// drainEvents returns everything currently buffered on sub.
func drainEvents(sub *bus.Subscription) []bus.Event {
	var out []bus.Event
	for {
		select {
		case ev, ok := <-sub.C():
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func eventsOfType(evs []bus.Event, typ bus.EventType) []bus.Event {
	var out []bus.Event
	for _, ev := range evs {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// sessionHarness drives a session directly without a room.
type sessionHarness struct {
	now    time.Time
	events *bus.Bus
	sub    *bus.Subscription
	online map[int64]bool
}

func newSessionHarness(ids ...int64) *sessionHarness {
	h := &sessionHarness{
		now:    epoch,
		events: bus.New(256),
		online: make(map[int64]bool, len(ids)),
	}
	h.sub = h.events.Subscribe()
	for _, id := range ids {
		h.online[id] = true
	}
	return h
}

func (h *sessionHarness) ctx() *turnCtx {
	return &turnCtx{
		now:    h.now,
		events: h.events,
		online: func(id int64) bool { return h.online[id] },
		name:   func(id int64) string { return "p" + string(rune('0'+id)) },
	}
}

func (h *sessionHarness) advance(d time.Duration) {
	h.now = h.now.Add(d)
}

func (h *sessionHarness) drain() []bus.Event {
	return drainEvents(h.sub)
}

// mockRecorder records settled games through testify's mock.
type mockRecorder struct {
	mock.Mock
	done chan models.GameRecord
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{done: make(chan models.GameRecord, 4)}
}

func (m *mockRecorder) RecordGame(ctx context.Context, rec models.GameRecord) error {
	args := m.Called(ctx, rec)
	m.done <- rec
	return args.Error(0)
}
