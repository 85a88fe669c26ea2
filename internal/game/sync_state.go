// internal/game/sync_state.go
package game

import (
	"time"

	"github.com/google/uuid"
)

// GridCell is one character slot of a chain problem.
type GridCell struct {
	OwnerColorHue *int   `json:"owner_color_hue"`
	Char          string `json:"char_content,omitempty"`
}

// PlayerView is one roster row as seen by a particular viewer.
type PlayerView struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	ColorHue    int          `json:"color_hue"`
	Status      PlayerStatus `json:"status"`
	IsMe        bool         `json:"is_me"`
	IsOnline    bool         `json:"is_online"`
	IsActive    bool         `json:"is_active"`
	IsSpectator bool         `json:"is_spectator"`
	IsAdmin     bool         `json:"is_admin"`
	Score       string       `json:"score_display"`
	Answer      string       `json:"answer,omitempty"`
}

// View is the redacted room state sent to one client.
type View struct {
	RoomID        uuid.UUID    `json:"room_id"`
	RoomName      string       `json:"room_name"`
	Mode          Mode         `json:"room_type"`
	Phase         Phase        `json:"phase"`
	Hint          string       `json:"hint"`
	MaxPlayers    int          `json:"max_players"`
	MyID          int64        `json:"my_id,omitempty"`
	IsAdmin       bool         `json:"is_admin"`
	AdminIDs      []int64      `json:"admin_ids,omitempty"`
	DeadlineMs    *int64       `json:"deadline_ms,omitempty"`
	Players       []PlayerView `json:"players"`
	Grid          []GridCell   `json:"grid,omitempty"`
	Pinyin        *PinyinView  `json:"pinyin_state,omitempty"`
	Winner        *bool        `json:"winner,omitempty"`
	CorrectAnswer string       `json:"correct_answer,omitempty"`
	FullProblem   string       `json:"full_problem,omitempty"`
}

// buildView redacts the room for viewer. It only reads r; the caller holds at
// least the read lock. privileged marks a site admin.
func buildView(r *Room, viewer int64, privileged bool, now time.Time) *View {
	_, roomAdmin := r.admins[viewer]
	isAdmin := roomAdmin || privileged
	me, present := r.players[viewer]
	// admins watching from the stands see everything
	showAll := present && me.Spectator && isAdmin

	v := &View{
		RoomID:     r.ID,
		RoomName:   r.name,
		Mode:       r.mode,
		Phase:      PhaseWaiting,
		MaxPlayers: r.maxPlayers,
		MyID:       viewer,
		IsAdmin:    isAdmin,
		Players:    []PlayerView{},
	}
	if isAdmin {
		v.AdminIDs = make([]int64, 0, len(r.admins))
		for id := range r.admins {
			v.AdminIDs = append(v.AdminIDs, id)
		}
		sortIDs(v.AdminIDs)
	}

	// colors follow the current seating, never a stored value
	var seating []int64
	if r.session != nil {
		seating = r.session.Order()
	} else {
		for id, p := range r.players {
			if p.Online && !p.Spectator {
				seating = append(seating, id)
			}
		}
		sortIDs(seating)
	}
	hues := colorHues(seating)

	var seats map[int64]seatView
	if r.session != nil {
		seats = r.session.render(v, viewInput{viewer: viewer, showAll: showAll, now: now, hues: hues})
	}

	// session order first, then everyone else by id
	rows := make([]int64, 0, len(r.players))
	listed := make(map[int64]bool, len(r.players))
	if r.session != nil {
		for _, id := range seating {
			if _, ok := r.players[id]; ok {
				rows = append(rows, id)
				listed[id] = true
			}
		}
	}
	rest := make([]int64, 0, len(r.players))
	for id := range r.players {
		if !listed[id] {
			rest = append(rest, id)
		}
	}
	sortIDs(rest)
	rows = append(rows, rest...)

	for _, id := range rows {
		p := r.players[id]
		if p.Spectator && !isAdmin {
			continue
		}
		_, pAdmin := r.admins[id]
		pv := PlayerView{
			ID:          id,
			Name:        p.Name,
			ColorHue:    hues[id],
			Status:      StatusWaiting,
			IsMe:        id == viewer,
			IsOnline:    p.Online,
			IsSpectator: p.Spectator,
			IsAdmin:     p.Admin || pAdmin,
		}
		if sv, ok := seats[id]; ok && !p.Spectator {
			pv.Status = sv.status
			pv.IsActive = sv.active
			pv.Score = sv.score
			pv.Answer = sv.answer
		}
		v.Players = append(v.Players, pv)
	}
	return v
}
