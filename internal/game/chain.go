// internal/game/chain.go
package game

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/jason-s-yu/wordrelay/internal/models"
)

const (
	chainTurnTimeout   = 3 * time.Second
	chainAnswerTimeout = 60 * time.Second
)

// Chain verbs accepted by Action.
const (
	VerbTake = "take"
	VerbStop = "stop"
)

// shuffleSeats fixes the turn order at start. Tests replace it to get a
// deterministic order.
var shuffleSeats = func(ids []int64) {
	rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
}

type chainSeat struct {
	status  PlayerStatus
	claimed []int
	answer  *string
}

// ChainSession is the claim-then-guess game. Players take turns claiming the
// next character of the problem; the last player still waiting receives the
// rest. Everyone then has a minute to answer.
type ChainSession struct {
	problem  []rune
	solution string
	hint     string

	phase Phase
	order []int64
	seats map[int64]*chainSeat

	cursor         int
	turn           int
	turnDeadline   *time.Time
	answerDeadline *time.Time
}

// NewChainSession seats players in the given order. The order is shuffled on start.
func NewChainSession(players []int64, problem, answer, hint string) *ChainSession {
	g := &ChainSession{
		problem:  []rune(problem),
		solution: answer,
		hint:     hint,
		phase:    PhaseWaiting,
		order:    append([]int64(nil), players...),
		seats:    make(map[int64]*chainSeat, len(players)),
	}
	for _, id := range players {
		g.seats[id] = &chainSeat{status: StatusWaiting}
	}
	return g
}

func (g *ChainSession) Mode() Mode     { return ModeChain }
func (g *ChainSession) Phase() Phase   { return g.phase }
func (g *ChainSession) Order() []int64 { return append([]int64(nil), g.order...) }

// activeID returns the seat whose turn it is, if any.
func (g *ChainSession) activeID() (int64, bool) {
	if g.phase != PhasePicking || g.turn >= len(g.order) {
		return 0, false
	}
	return g.order[g.turn], true
}

func (g *ChainSession) start(c *turnCtx) {
	if g.phase != PhaseWaiting {
		return
	}
	shuffleSeats(g.order)
	g.phase = PhasePicking
	g.cursor = 0
	g.turn = 0
	if len(g.order) > 0 {
		g.seats[g.order[0]].status = StatusPicking
		g.resetTurnDeadline(c.now)
	}
	c.log("Chain Game Started")
}

func (g *ChainSession) resetTurnDeadline(now time.Time) {
	d := now.Add(chainTurnTimeout)
	g.turnDeadline = &d
}

func (g *ChainSession) action(c *turnCtx, id int64, verb string) {
	active, ok := g.activeID()
	if !ok || active != id {
		return
	}
	switch verb {
	case VerbTake:
		g.take(c)
	case VerbStop:
		g.seats[id].status = StatusStopped
		c.log(fmt.Sprintf("%s stopped", c.name(id)))
		g.advanceTurn(c)
	default:
		return
	}
	c.updated()
}

// take claims the next character for the active seat, or stops the seat when
// nothing is left. Assumes phase is Picking.
func (g *ChainSession) take(c *turnCtx) {
	active, ok := g.activeID()
	if !ok {
		return
	}
	seat := g.seats[active]
	if g.cursor >= len(g.problem) {
		seat.status = StatusStopped
		g.advanceTurn(c)
		return
	}
	seat.claimed = append(seat.claimed, g.cursor)
	g.cursor++
	g.resetTurnDeadline(c.now)
}

// advanceTurn scans circularly from the seat after the current one for a
// player who has not picked yet.
func (g *ChainSession) advanceTurn(c *turnCtx) {
	n := len(g.order)
	if n == 0 {
		return
	}

	found := -1
	waiting := 0
	for i := 1; i <= n; i++ {
		idx := (g.turn + i) % n
		if g.seats[g.order[idx]].status != StatusWaiting {
			continue
		}
		if found < 0 {
			found = idx
		}
		waiting++
	}

	switch {
	case found < 0:
		g.enterAnswering(c)
	case waiting == 1:
		// last player takes everything that is left
		seat := g.seats[g.order[found]]
		for i := g.cursor; i < len(g.problem); i++ {
			seat.claimed = append(seat.claimed, i)
		}
		g.cursor = len(g.problem)
		seat.status = StatusStopped
		g.turn = found
		g.enterAnswering(c)
	default:
		g.turn = found
		g.seats[g.order[found]].status = StatusPicking
		g.resetTurnDeadline(c.now)
	}
}

func (g *ChainSession) enterAnswering(c *turnCtx) {
	g.phase = PhaseAnswering
	g.turnDeadline = nil
	d := c.now.Add(chainAnswerTimeout)
	g.answerDeadline = &d
	for _, seat := range g.seats {
		if seat.status != StatusSubmitted {
			seat.status = StatusAnswering
		}
	}
	c.log("Picking ended. 60s to answer")
}

func (g *ChainSession) answer(c *turnCtx, id int64, content string) {
	seat, ok := g.seats[id]
	if !ok {
		return
	}
	allowed := g.phase == PhaseAnswering || (g.phase == PhasePicking && seat.status == StatusStopped)
	if !allowed || seat.status == StatusSubmitted {
		return
	}
	seat.answer = &content
	seat.status = StatusSubmitted
	c.log(fmt.Sprintf("%s submitted answer", c.name(id)))
	if g.phase == PhaseAnswering && g.allDone(c) {
		g.finish(c)
	}
	c.updated()
}

// allDone reports whether every seat has answered or left.
func (g *ChainSession) allDone(c *turnCtx) bool {
	for _, id := range g.order {
		if g.seats[id].status != StatusSubmitted && c.online(id) {
			return false
		}
	}
	return true
}

func (g *ChainSession) tick(c *turnCtx) {
	changed := false

	if g.phase == PhasePicking {
		for _, id := range g.order {
			active, ok := g.activeID()
			if ok && active == id && !c.online(id) {
				g.seats[id].status = StatusStopped
				c.log(fmt.Sprintf("%s stopped", c.name(id)))
				g.advanceTurn(c)
				changed = true
			}
		}
	}
	if g.phase == PhasePicking && g.turnDeadline != nil && !c.now.Before(*g.turnDeadline) {
		g.take(c)
		changed = true
	}
	if g.phase == PhaseAnswering {
		if g.answerDeadline != nil && !c.now.Before(*g.answerDeadline) {
			changed = g.finish(c) || changed
		} else if g.allDone(c) {
			changed = g.finish(c) || changed
		}
	}

	if changed {
		c.updated()
	}
}

// finish settles the game. It returns false if it already was settled.
func (g *ChainSession) finish(c *turnCtx) bool {
	if g.phase == PhaseSettlement {
		return false
	}
	g.phase = PhaseSettlement
	g.turnDeadline = nil
	g.answerDeadline = nil
	c.log("Game Finished")
	return true
}

func (g *ChainSession) render(v *View, in viewInput) map[int64]seatView {
	settled := g.phase == PhaseSettlement
	canSeeAll := in.showAll || settled

	v.Phase = g.phase
	v.Hint = g.hint
	if g.phase == PhasePicking {
		v.DeadlineMs = remainingMs(g.turnDeadline, in.now)
	} else {
		v.DeadlineMs = remainingMs(g.answerDeadline, in.now)
	}

	owners := make(map[int]int64, g.cursor)
	for id, seat := range g.seats {
		for _, idx := range seat.claimed {
			owners[idx] = id
		}
	}
	v.Grid = make([]GridCell, len(g.problem))
	for i, r := range g.problem {
		owner, claimed := owners[i]
		if claimed {
			hue := in.hues[owner]
			v.Grid[i].OwnerColorHue = &hue
		}
		if canSeeAll || (claimed && owner == in.viewer) {
			v.Grid[i].Char = string(r)
		}
	}
	if canSeeAll {
		v.CorrectAnswer = g.solution
		v.FullProblem = string(g.problem)
	}

	active, hasActive := g.activeID()
	seats := make(map[int64]seatView, len(g.seats))
	for id, seat := range g.seats {
		sv := seatView{
			status: seat.status,
			active: hasActive && active == id,
			score:  strconv.Itoa(len(seat.claimed)),
		}
		if seat.answer != nil && (in.showAll || settled || id == in.viewer) {
			sv.answer = *seat.answer
		}
		seats[id] = sv
	}
	return seats
}

func (g *ChainSession) record() models.GameRecord {
	rec := models.GameRecord{Mode: string(ModeChain), Answer: g.solution}
	want := strings.TrimSpace(g.solution)
	for i, id := range g.order {
		seat := g.seats[id]
		p := models.GameRecordPlayer{UserID: id, Seat: i, Score: len(seat.claimed)}
		if seat.answer != nil {
			p.Answer = *seat.answer
			p.Correct = strings.TrimSpace(*seat.answer) == want
			rec.Won = rec.Won || p.Correct
		}
		rec.Players = append(rec.Players, p)
	}
	return rec
}
