// internal/game/pinyin.go
package game

import (
	"fmt"
	"time"

	"github.com/jason-s-yu/wordrelay/internal/models"
	"github.com/jason-s-yu/wordrelay/internal/pinyin"
)

const (
	pinyinTurnTimeout = 180 * time.Second
	timeoutContent    = "(Timeout)"
	emptyContentMsg   = "Content cannot be empty."
)

// HistoryEntry is one turn of a pinyin relay.
type HistoryEntry struct {
	PlayerID int64  `json:"player_id"`
	Content  string `json:"content"`
	IsGuess  bool   `json:"is_guess"`
}

// PinyinSession is the describe-then-guess relay. Every describer rewrites the
// previous prompt without reusing any initial or final used so far; the last
// seat guesses the original answer.
type PinyinSession struct {
	solution string
	hint     string
	table    *pinyin.Table

	phase   Phase
	order   []int64
	status  map[int64]PlayerStatus
	current int

	deadline *time.Time
	history  []HistoryEntry

	bannedI pinyin.Set
	bannedF pinyin.Set

	firstDescriber bool
	prompt         string

	// components of the answer itself; never shown as text
	answerI pinyin.Set
	answerF pinyin.Set

	allI []string
	allF []string

	winner bool
}

// NewPinyinSession seats players; the last seat after the start shuffle guesses.
func NewPinyinSession(players []int64, answer, hint string, table *pinyin.Table) *PinyinSession {
	g := &PinyinSession{
		solution: answer,
		hint:     hint,
		table:    table,
		phase:    PhaseWaiting,
		order:    append([]int64(nil), players...),
		status:   make(map[int64]PlayerStatus, len(players)),
		bannedI:  pinyin.Set{},
		bannedF:  pinyin.Set{},
		prompt:   answer,
	}
	g.answerI, g.answerF = table.Components(answer)
	g.allI, g.allF = table.Catalogue()
	for _, id := range players {
		g.status[id] = StatusWaiting
	}
	return g
}

func (g *PinyinSession) Mode() Mode     { return ModePinyin }
func (g *PinyinSession) Phase() Phase   { return g.phase }
func (g *PinyinSession) Order() []int64 { return append([]int64(nil), g.order...) }

func (g *PinyinSession) guesserIdx() int {
	return len(g.order) - 1
}

func (g *PinyinSession) seatOf(id int64) int {
	for i, pid := range g.order {
		if pid == id {
			return i
		}
	}
	return -1
}

func (g *PinyinSession) resetDeadline(now time.Time) {
	d := now.Add(pinyinTurnTimeout)
	g.deadline = &d
}

func (g *PinyinSession) start(c *turnCtx) {
	if g.phase != PhaseWaiting {
		return
	}
	g.history = nil
	g.bannedI = pinyin.Set{}
	g.bannedF = pinyin.Set{}
	g.firstDescriber = true
	g.prompt = g.solution

	shuffleSeats(g.order)
	g.phase = PhaseGaming
	g.current = 0
	if len(g.order) > 0 {
		g.status[g.order[0]] = StatusPicking
	}
	g.resetDeadline(c.now)
	c.log("Pinyin Game Started")
}

// The relay has no verbs; everything goes through answer.
func (g *PinyinSession) action(*turnCtx, int64, string) {}

func (g *PinyinSession) answer(c *turnCtx, id int64, content string) {
	if g.phase != PhaseGaming || g.current >= len(g.order) || g.order[g.current] != id {
		return
	}
	if isBlank(content) {
		c.toast(id, emptyContentMsg)
		return
	}

	if g.current == g.guesserIdx() {
		g.history = append(g.history, HistoryEntry{PlayerID: id, Content: content, IsGuess: true})
		g.status[id] = StatusSubmitted
		c.log(fmt.Sprintf("%s guessed", c.name(id)))
		g.finish(c, content == g.solution)
		c.updated()
		return
	}

	// all checks before any mutation
	for _, r := range content {
		if err := g.table.Validate(r, g.bannedI, g.bannedF); err != nil {
			c.toast(id, err.Error())
			return
		}
		if g.firstDescriber {
			comps, _ := g.table.Lookup(r)
			if g.answerI.Has(comps.Initial) || g.answerF.Has(comps.Final) {
				c.toast(id, fmt.Sprintf("Char '%c' invalid (in answer)", r))
				return
			}
		}
	}

	is, fs := g.table.Components(content)
	g.bannedI.Merge(is)
	g.bannedF.Merge(fs)
	g.history = append(g.history, HistoryEntry{PlayerID: id, Content: content})
	g.prompt = content
	g.firstDescriber = false
	g.status[id] = StatusSubmitted
	c.log(fmt.Sprintf("%s described", c.name(id)))
	g.advanceTurn(c)
	c.updated()
}

// advanceTurn hands the relay to the next seat. A prompt that reads exactly
// like the answer puts the next describer under the first-describer rule.
func (g *PinyinSession) advanceTurn(c *turnCtx) {
	g.current++
	if g.current >= len(g.order) {
		g.finish(c, false)
		return
	}
	g.status[g.order[g.current]] = StatusPicking
	if g.prompt == g.solution {
		g.firstDescriber = true
	}
	g.resetDeadline(c.now)
}

func (g *PinyinSession) tick(c *turnCtx) {
	if g.phase != PhaseGaming || g.current >= len(g.order) {
		return
	}
	id := g.order[g.current]
	expired := g.deadline != nil && !c.now.Before(*g.deadline)
	if c.online(id) && !expired {
		return
	}

	isGuesser := g.current == g.guesserIdx()
	g.history = append(g.history, HistoryEntry{PlayerID: id, Content: timeoutContent, IsGuess: isGuesser})
	g.status[id] = StatusStopped
	c.log(fmt.Sprintf("%s timed out", c.name(id)))
	if isGuesser {
		g.finish(c, false)
	} else {
		g.advanceTurn(c)
	}
	c.updated()
}

func (g *PinyinSession) finish(c *turnCtx, won bool) {
	if g.phase == PhaseSettlement {
		return
	}
	g.phase = PhaseSettlement
	g.winner = won
	g.deadline = nil
	c.log("Game Finished")
}

// PinyinView is the mode-specific payload of a pinyin room.
type PinyinView struct {
	BannedInitials []string       `json:"banned_initials"`
	BannedFinals   []string       `json:"banned_finals"`
	AllInitials    []string       `json:"all_initials"`
	AllFinals      []string       `json:"all_finals"`
	History        []HistoryEntry `json:"history"`
	MyPrompt       string         `json:"my_prompt,omitempty"`
	CurrentIndex   int            `json:"current_index"`
	IsFirstTurn    bool           `json:"is_first_turn"`
	IsGuessingTurn bool           `json:"is_guessing_turn"`
	EndMessage     string         `json:"end_message,omitempty"`
}

func (g *PinyinSession) render(v *View, in viewInput) map[int64]seatView {
	settled := g.phase == PhaseSettlement
	canSeeAll := in.showAll || settled
	gaming := g.phase == PhaseGaming

	myIdx := -1
	if in.viewer != 0 {
		myIdx = g.seatOf(in.viewer)
	}
	// no foresight: a seat only sees constraints once its turn has come
	visible := canSeeAll || (myIdx >= 0 && myIdx <= g.current) || (myIdx < 0 && in.viewer != 0)

	pv := &PinyinView{
		AllInitials:    g.allI,
		AllFinals:      g.allF,
		BannedInitials: []string{},
		BannedFinals:   []string{},
		History:        []HistoryEntry{},
		CurrentIndex:   g.current,
		IsFirstTurn:    gaming && g.firstDescriber,
		IsGuessingTurn: gaming && g.current == g.guesserIdx(),
	}
	if visible {
		bi, bf := g.bannedI.Clone(), g.bannedF.Clone()
		if gaming && g.firstDescriber && myIdx >= 0 && myIdx == g.current {
			bi.Merge(g.answerI)
			bf.Merge(g.answerF)
		}
		pv.BannedInitials = bi.Sorted()
		pv.BannedFinals = bf.Sorted()
		pv.History = append(pv.History, g.history...)
	}
	if gaming && myIdx >= 0 && myIdx == g.current {
		pv.MyPrompt = g.prompt
	}
	if settled {
		pv.EndMessage = "Failed"
		if g.winner {
			pv.EndMessage = "Success"
		}
		won := g.winner
		v.Winner = &won
	}

	v.Phase = g.phase
	v.Hint = g.hint
	v.DeadlineMs = remainingMs(g.deadline, in.now)
	v.Pinyin = pv
	if canSeeAll {
		v.CorrectAnswer = g.solution
	}

	seats := make(map[int64]seatView, len(g.order))
	for i, id := range g.order {
		role := "Describer"
		if i == g.guesserIdx() {
			role = "Guesser"
		}
		seats[id] = seatView{
			status: g.status[id],
			active: gaming && i == g.current,
			score:  role,
		}
	}
	return seats
}

func (g *PinyinSession) record() models.GameRecord {
	last := make(map[int64]string, len(g.history))
	for _, h := range g.history {
		last[h.PlayerID] = h.Content
	}
	rec := models.GameRecord{Mode: string(ModePinyin), Answer: g.solution, Won: g.winner}
	for i, id := range g.order {
		rec.Players = append(rec.Players, models.GameRecordPlayer{
			UserID:  id,
			Seat:    i,
			Answer:  last[id],
			Correct: i == g.guesserIdx() && g.winner,
		})
	}
	return rec
}
