// internal/game/room.go
package game

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wordrelay/internal/bus"
	"github.com/jason-s-yu/wordrelay/internal/models"
	"github.com/jason-s-yu/wordrelay/internal/pinyin"
	"github.com/sirupsen/logrus"
)

const noActivePlayersMsg = "Cannot start: No active players."

// RoomPlayer is one roster entry. Seats survive disconnects while a session
// is running so a player can reconnect into their turn.
type RoomPlayer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Online    bool      `json:"online"`
	Spectator bool      `json:"spectator"`
	Admin     bool      `json:"admin"`
	LastSeen  time.Time `json:"last_seen"`

	siteAdmin bool
}

// Recorder receives a summary of every settled game.
type Recorder interface {
	RecordGame(ctx context.Context, rec models.GameRecord) error
}

// Room owns a roster, its admins, an event bus and at most one session.
// All mutations hold the write lock; views and summaries the read lock.
type Room struct {
	ID uuid.UUID

	mu         sync.RWMutex
	name       string
	mode       Mode
	maxPlayers int
	admins     map[int64]struct{}
	players    map[int64]*RoomPlayer

	session        Session
	sessionStarted time.Time

	events   *bus.Bus
	recorder Recorder
	logger   logrus.FieldLogger
	now      func() time.Time
}

// RoomOption customizes a Room at construction.
type RoomOption func(*Room)

// WithRecorder sends settled games to rec.
func WithRecorder(rec Recorder) RoomOption {
	return func(r *Room) { r.recorder = rec }
}

// WithLogger replaces the standard logrus logger.
func WithLogger(l logrus.FieldLogger) RoomOption {
	return func(r *Room) { r.logger = l }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) RoomOption {
	return func(r *Room) { r.now = now }
}

// WithBusCapacity sets the per-subscriber event buffer.
func WithBusCapacity(n int) RoomOption {
	return func(r *Room) { r.events = bus.New(n) }
}

// NewRoom creates a waiting room. The creator is its first admin.
func NewRoom(name string, mode Mode, maxPlayers int, creator int64, opts ...RoomOption) *Room {
	r := &Room{
		ID:         uuid.Must(uuid.NewV7()),
		name:       name,
		mode:       mode,
		maxPlayers: maxPlayers,
		admins:     map[int64]struct{}{creator: {}},
		players:    make(map[int64]*RoomPlayer),
		events:     bus.New(bus.DefaultCapacity),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logrus.StandardLogger()
	}
	r.logger = r.logger.WithField("room", r.ID)
	return r
}

// Join seats or reconnects identity and returns its event subscription.
func (r *Room) Join(id int64, name string, spectator, siteAdmin bool) (*bus.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	_, roomAdmin := r.admins[id]

	if p, ok := r.players[id]; ok {
		p.Name = name
		p.Online = true
		p.LastSeen = now
		p.Spectator = spectator
		p.siteAdmin = siteAdmin
		p.Admin = roomAdmin || siteAdmin
		r.events.Publish(bus.NewLog(systemSpeaker, fmt.Sprintf("%s reconnected", name), now))
	} else {
		if !spectator {
			if r.session != nil && r.session.Phase() != PhaseSettlement {
				return nil, ErrGameInProgress
			}
			if r.countPlayersLocked() >= r.maxPlayers && !(roomAdmin || siteAdmin) {
				return nil, ErrRoomFull
			}
		}
		r.players[id] = &RoomPlayer{
			ID:        id,
			Name:      name,
			Online:    true,
			Spectator: spectator,
			Admin:     roomAdmin || siteAdmin,
			LastSeen:  now,
			siteAdmin: siteAdmin,
		}
		if !spectator {
			r.events.Publish(bus.NewLog(systemSpeaker, fmt.Sprintf("%s joined", name), now))
		}
	}

	sub := r.events.Subscribe()
	r.events.Publish(bus.Updated())
	r.logger.WithFields(logrus.Fields{"user": id, "spectator": spectator}).Debug("player joined")
	return sub, nil
}

// Subscribe attaches a receiver without touching the roster.
func (r *Room) Subscribe() *bus.Subscription {
	return r.events.Subscribe()
}

// Leave handles a disconnect. Seats are kept while a session exists.
func (r *Room) Leave(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.players[id]; !ok {
		return
	}
	r.leaveLocked(id)
	r.events.Publish(bus.Updated())
}

func (r *Room) leaveLocked(id int64) {
	p := r.players[id]
	if r.session == nil || p.Spectator {
		delete(r.players, id)
		return
	}
	p.Online = false
	p.LastSeen = r.now()
}

// Kick removes identity for good and tells its connection to close.
func (r *Room) Kick(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.players[id]; !ok {
		return
	}
	r.leaveLocked(id)
	delete(r.players, id)
	r.events.Publish(bus.NewKick(id))
	r.events.Publish(bus.Updated())
	r.logger.WithField("user", id).Info("player kicked")
}

// Action forwards a verb to the session. Spectators and identities no
// longer on the roster are ignored.
func (r *Room) Action(id int64, verb string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.canPlayLocked(id) {
		return
	}
	before := r.session.Phase()
	r.session.action(r.turnCtxLocked(), id, verb)
	r.settleLocked(before)
}

// Answer forwards a submission to the session. Spectators and identities no
// longer on the roster are ignored.
func (r *Room) Answer(id int64, content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.canPlayLocked(id) {
		return
	}
	before := r.session.Phase()
	r.session.answer(r.turnCtxLocked(), id, content)
	r.settleLocked(before)
}

// Tick advances deadlines and disconnect handling of the session.
func (r *Room) Tick() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return
	}
	before := r.session.Phase()
	r.session.tick(r.turnCtxLocked())
	r.settleLocked(before)
}

// Start begins a fresh session with every online non-spectator.
func (r *Room) Start(problem, answer, hint string, table *pinyin.Table) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var active []int64
	for id, p := range r.players {
		if p.Online && !p.Spectator {
			active = append(active, id)
		}
	}
	if len(active) == 0 {
		r.events.Publish(bus.NewToast(bus.Broadcast, noActivePlayersMsg, bus.ToastError))
		return
	}
	sortIDs(active)

	r.session = newSession(r.mode, active, problem, answer, hint, table)
	r.sessionStarted = r.now()
	r.session.start(r.turnCtxLocked())
	r.events.Publish(bus.Updated())
	r.logger.WithFields(logrus.Fields{"mode": r.mode, "players": len(active)}).Info("game started")
}

// Stop discards the session and forgets disconnected players.
func (r *Room) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session = nil
	r.sweepOfflineLocked()
	r.events.Publish(bus.Updated())
	r.logger.Info("game stopped")
}

// Update changes the room settings. A nil admins slice keeps the current set.
func (r *Room) Update(name string, maxPlayers int, admins []int64) error {
	if maxPlayers < 1 {
		return ErrInvalidMaxPlayers
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if name != "" {
		r.name = name
	}
	r.maxPlayers = maxPlayers
	if admins != nil {
		r.admins = make(map[int64]struct{}, len(admins))
		for _, id := range admins {
			r.admins[id] = struct{}{}
		}
		for id, p := range r.players {
			_, roomAdmin := r.admins[id]
			p.Admin = roomAdmin || p.siteAdmin
		}
	}
	r.events.Publish(bus.Updated())
	return nil
}

// IsAdmin reports whether id administers this room.
func (r *Room) IsAdmin(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.admins[id]
	return ok
}

// Player returns a copy of a roster entry.
func (r *Room) Player(id int64) (RoomPlayer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[id]
	if !ok {
		return RoomPlayer{}, false
	}
	return *p, true
}

// View renders the room for one viewer. privileged marks a site admin.
func (r *Room) View(viewer int64, privileged bool) *View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return buildView(r, viewer, privileged, r.now())
}

// RoomSummary is the metadata shown in the room index.
type RoomSummary struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Mode       Mode      `json:"mode"`
	Phase      Phase     `json:"phase"`
	Players    int       `json:"players"`
	MaxPlayers int       `json:"max_players"`
}

// Summary describes the room without touching any session detail.
func (r *Room) Summary() RoomSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	phase := PhaseWaiting
	if r.session != nil {
		phase = r.session.Phase()
	}
	return RoomSummary{
		ID:         r.ID,
		Name:       r.name,
		Mode:       r.mode,
		Phase:      phase,
		Players:    r.countPlayersLocked(),
		MaxPlayers: r.maxPlayers,
	}
}

// Close ends every subscription. The room must not be used afterwards.
func (r *Room) Close() {
	r.events.Close()
}

func (r *Room) countPlayersLocked() int {
	n := 0
	for _, p := range r.players {
		if !p.Spectator {
			n++
		}
	}
	return n
}

// canPlayLocked reports a seated non-spectator with a running session.
func (r *Room) canPlayLocked(id int64) bool {
	p, ok := r.players[id]
	return ok && !p.Spectator && r.session != nil
}

func (r *Room) turnCtxLocked() *turnCtx {
	return &turnCtx{
		now:    r.now(),
		events: r.events,
		online: func(id int64) bool {
			p, ok := r.players[id]
			return ok && p.Online
		},
		name: func(id int64) string {
			if p, ok := r.players[id]; ok {
				return p.Name
			}
			return strconv.FormatInt(id, 10)
		},
	}
}

// settleLocked runs once when a session crosses into Settlement: offline
// players are swept and the result is recorded.
func (r *Room) settleLocked(before Phase) {
	if before == PhaseSettlement || r.session.Phase() != PhaseSettlement {
		return
	}
	r.logger.Info("game settled")
	r.recordLocked()
	if r.sweepOfflineLocked() > 0 {
		r.events.Publish(bus.Updated())
	}
}

func (r *Room) sweepOfflineLocked() int {
	n := 0
	for id, p := range r.players {
		if !p.Online {
			delete(r.players, id)
			n++
		}
	}
	return n
}

// recordLocked hands the settled game to the recorder without blocking the room.
func (r *Room) recordLocked() {
	if r.recorder == nil {
		return
	}
	rec := r.session.record()
	rec.ID = uuid.New()
	rec.RoomID = r.ID
	rec.RoomName = r.name
	rec.StartedAt = r.sessionStarted
	rec.FinishedAt = r.now()
	for i := range rec.Players {
		if p, ok := r.players[rec.Players[i].UserID]; ok {
			rec.Players[i].Name = p.Name
		}
	}

	recorder, logger := r.recorder, r.logger
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := recorder.RecordGame(ctx, rec); err != nil {
			logger.WithError(err).Warn("failed to record game")
		}
	}()
}
