package game

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickerTickAllAdvancesEveryRoom(t *testing.T) {
	keepSeatOrder(t)
	clock := newFakeClock()
	s := NewRoomStore(nil, WithClock(clock.Now))

	var rooms []*Room
	for i := 0; i < 5; i++ {
		r, err := s.Create("room", ModeChain, 4, 1)
		require.NoError(t, err)
		_, err = r.Join(1, "a", false, false)
		require.NoError(t, err)
		_, err = r.Join(2, "b", false, false)
		require.NoError(t, err)
		r.Start("ABC", "x", "", nil)
		rooms = append(rooms, r)
	}
	// leave one room idle
	idle, err := s.Create("idle", ModeChain, 4, 1)
	require.NoError(t, err)

	tk := NewTicker(s, 0, nil)
	assert.Equal(t, DefaultTickInterval, tk.interval)

	tk.TickAll()
	for _, r := range rooms {
		assert.Zero(t, r.session.(*ChainSession).cursor, "nothing is due yet")
	}

	clock.Advance(chainTurnTimeout)
	tk.TickAll()
	for _, r := range rooms {
		assert.Equal(t, 1, r.session.(*ChainSession).cursor, "an expired turn takes one character")
	}
	assert.Equal(t, PhaseWaiting, idle.Summary().Phase)
}

func TestTickerRunStopsOnCancel(t *testing.T) {
	keepSeatOrder(t)
	s := NewRoomStore(nil)
	r, err := s.Create("room", ModeChain, 4, 1)
	require.NoError(t, err)
	_, err = r.Join(1, "a", false, false)
	require.NoError(t, err)
	r.Start("AB", "x", "", nil)
	// an offline active player is stopped on the first tick
	r.Leave(1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewTicker(s, 5*time.Millisecond, nil).Run(ctx) }()

	assert.Eventually(t, func() bool {
		return r.Summary().Phase != PhasePicking
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("ticker did not stop")
	}
}
