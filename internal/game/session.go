// internal/game/session.go
package game

import (
	"fmt"
	"time"

	"github.com/jason-s-yu/wordrelay/internal/bus"
	"github.com/jason-s-yu/wordrelay/internal/models"
	"github.com/jason-s-yu/wordrelay/internal/pinyin"
)

// Mode selects which game a room plays.
type Mode string

const (
	ModeChain  Mode = "chain"
	ModePinyin Mode = "pinyin"
)

// ParseMode validates a mode name coming from the outside.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeChain, ModePinyin:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown room mode %q", s)
	}
}

// Phase is the top-level state of a room's session.
type Phase string

const (
	PhaseWaiting    Phase = "Waiting"
	PhasePicking    Phase = "Picking"
	PhaseAnswering  Phase = "Answering"
	PhaseGaming     Phase = "Gaming"
	PhaseSettlement Phase = "Settlement"
)

// PlayerStatus is a seat's state within a session.
type PlayerStatus string

const (
	StatusWaiting   PlayerStatus = "Waiting"
	StatusPicking   PlayerStatus = "Picking"
	StatusStopped   PlayerStatus = "Stopped"
	StatusAnswering PlayerStatus = "Answering"
	StatusSubmitted PlayerStatus = "Submitted"
)

const systemSpeaker = "System"

// Session is the live game of a room. The unexported methods keep the set of
// implementations closed to this package: *ChainSession and *PinyinSession.
type Session interface {
	Mode() Mode
	Phase() Phase
	// Order is the seat order fixed at start.
	Order() []int64

	start(c *turnCtx)
	action(c *turnCtx, id int64, verb string)
	answer(c *turnCtx, id int64, content string)
	tick(c *turnCtx)
	render(v *View, in viewInput) map[int64]seatView
	// record summarizes a settled game; the room fills in names and ids.
	record() models.GameRecord
}

// turnCtx is what a session may touch while the room lock is held.
type turnCtx struct {
	now    time.Time
	events *bus.Bus
	online func(id int64) bool
	name   func(id int64) string
}

func (c *turnCtx) updated() {
	c.events.Publish(bus.Updated())
}

func (c *turnCtx) log(text string) {
	c.events.Publish(bus.NewLog(systemSpeaker, text, c.now))
}

func (c *turnCtx) toast(target int64, msg string) {
	c.events.Publish(bus.NewToast(target, msg, bus.ToastError))
}

// viewInput is the viewer-specific part of a render.
type viewInput struct {
	viewer  int64
	showAll bool
	now     time.Time
	hues    map[int64]int
}

// seatView is the session-level part of one player's row.
type seatView struct {
	status PlayerStatus
	active bool
	score  string
	answer string
}

// newSession builds an unstarted session for mode. Every Mode must be
// handled here; an unknown mode is a programming error.
func newSession(mode Mode, players []int64, problem, answer, hint string, table *pinyin.Table) Session {
	switch mode {
	case ModeChain:
		return NewChainSession(players, problem, answer, hint)
	case ModePinyin:
		return NewPinyinSession(players, answer, hint, table)
	default:
		panic(fmt.Sprintf("game: unhandled mode %q", mode))
	}
}

// remainingMs converts a deadline into the milliseconds left at now.
func remainingMs(deadline *time.Time, now time.Time) *int64 {
	if deadline == nil {
		return nil
	}
	ms := deadline.Sub(now).Milliseconds()
	if ms < 0 {
		ms = 0
	}
	return &ms
}
