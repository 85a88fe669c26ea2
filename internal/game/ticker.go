// internal/game/ticker.go
package game

import (
	"context"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultTickInterval is how often every room polls its deadlines.
const DefaultTickInterval = 100 * time.Millisecond

// Ticker drives Room.Tick for every room in a store. Rooms tick in parallel,
// but each round waits for all of them, so a slow room delays the next round
// for every room.
type Ticker struct {
	store    *RoomStore
	interval time.Duration
	workers  int
	logger   logrus.FieldLogger
}

// NewTicker creates a ticker over store. A non-positive interval means DefaultTickInterval.
func NewTicker(store *RoomStore, interval time.Duration, logger logrus.FieldLogger) *Ticker {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Ticker{
		store:    store,
		interval: interval,
		workers:  runtime.GOMAXPROCS(0),
		logger:   logger,
	}
}

// Run ticks until ctx is cancelled.
func (t *Ticker) Run(ctx context.Context) error {
	tk := time.NewTicker(t.interval)
	defer tk.Stop()
	t.logger.WithField("interval", t.interval).Info("room ticker started")

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("room ticker stopped")
			return ctx.Err()
		case <-tk.C:
			t.TickAll()
		}
	}
}

// TickAll ticks every room once and waits for all of them.
func (t *Ticker) TickAll() {
	var g errgroup.Group
	g.SetLimit(t.workers)
	t.store.Range(func(r *Room) bool {
		g.Go(func() error {
			r.Tick()
			return nil
		})
		return true
	})
	_ = g.Wait()
}
