// internal/handlers/rooms.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wordrelay/internal/auth"
	"github.com/jason-s-yu/wordrelay/internal/game"
	"github.com/jason-s-yu/wordrelay/internal/middleware"
	"github.com/sirupsen/logrus"
)

type createRoomRequest struct {
	Name       string `json:"name"`
	Mode       string `json:"mode"`
	MaxPlayers int    `json:"max_players"`
}

type updateRoomRequest struct {
	Name       string   `json:"name"`
	MaxPlayers int      `json:"max_players"`
	Admins     *[]int64 `json:"admins"`
}

type startRequest struct {
	Problem string `json:"problem"`
	Answer  string `json:"answer"`
	Hint    string `json:"hint"`
}

type kickRequest struct {
	UserID int64 `json:"user_id"`
}

// ListRoomsHandler returns every room summary, oldest first.
func (s *RoomServer) ListRoomsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Store.Summaries())
}

// CreateRoomHandler opens a new room. Site admins only.
func (s *RoomServer) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFrom(r.Context())
	if !id.IsAdmin() {
		http.Error(w, "site admin required", http.StatusForbidden)
		return
	}

	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	mode, err := game.ParseMode(req.Mode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		http.Error(w, "room name required", http.StatusBadRequest)
		return
	}

	room, err := s.Store.Create(req.Name, mode, req.MaxPlayers, id.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, room.Summary())
}

// UpdateRoomHandler changes the name, the seat limit or the admin list.
func (s *RoomServer) UpdateRoomHandler(w http.ResponseWriter, r *http.Request) {
	room, _, ok := s.adminRoom(w, r)
	if !ok {
		return
	}
	var req updateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	maxPlayers := req.MaxPlayers
	if maxPlayers == 0 {
		maxPlayers = room.Summary().MaxPlayers
	}
	var admins []int64
	if req.Admins != nil {
		admins = append([]int64{}, *req.Admins...)
	}
	if err := room.Update(req.Name, maxPlayers, admins); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, room.Summary())
}

// DeleteRoomHandler closes a room and every socket attached to it.
func (s *RoomServer) DeleteRoomHandler(w http.ResponseWriter, r *http.Request) {
	room, _, ok := s.adminRoom(w, r)
	if !ok {
		return
	}
	if err := s.Store.Delete(room.ID); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StartRoomHandler begins a game with every online player.
func (s *RoomServer) StartRoomHandler(w http.ResponseWriter, r *http.Request) {
	room, id, ok := s.adminRoom(w, r)
	if !ok {
		return
	}
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Answer) == "" {
		http.Error(w, "answer required", http.StatusBadRequest)
		return
	}

	switch room.Summary().Mode {
	case game.ModeChain:
		if req.Problem == "" {
			http.Error(w, "problem required", http.StatusBadRequest)
			return
		}
	case game.ModePinyin:
		for _, c := range req.Answer {
			if _, ok := s.Table.Lookup(c); !ok {
				http.Error(w, "answer uses characters missing from the pinyin table", http.StatusBadRequest)
				return
			}
		}
	}

	room.Start(req.Problem, req.Answer, req.Hint, s.Table)
	s.Logger.WithFields(logrus.Fields{"room": room.ID, "user": id.ID}).Info("start requested")
	writeJSON(w, http.StatusOK, room.Summary())
}

// StopRoomHandler abandons the running game.
func (s *RoomServer) StopRoomHandler(w http.ResponseWriter, r *http.Request) {
	room, _, ok := s.adminRoom(w, r)
	if !ok {
		return
	}
	room.Stop()
	writeJSON(w, http.StatusOK, room.Summary())
}

// KickHandler removes a player and closes their socket.
func (s *RoomServer) KickHandler(w http.ResponseWriter, r *http.Request) {
	room, _, ok := s.adminRoom(w, r)
	if !ok {
		return
	}
	var req kickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if _, present := room.Player(req.UserID); !present {
		http.Error(w, "player not in room", http.StatusNotFound)
		return
	}
	room.Kick(req.UserID)
	w.WriteHeader(http.StatusNoContent)
}

// roomFromPath resolves the {id} path segment.
func (s *RoomServer) roomFromPath(w http.ResponseWriter, r *http.Request) (*game.Room, bool) {
	roomID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid room id", http.StatusBadRequest)
		return nil, false
	}
	room, err := s.Store.Get(roomID)
	if err != nil {
		http.Error(w, "room not found", http.StatusNotFound)
		return nil, false
	}
	return room, true
}

// adminRoom resolves the room and checks the caller administers it.
func (s *RoomServer) adminRoom(w http.ResponseWriter, r *http.Request) (*game.Room, auth.Identity, bool) {
	id, _ := middleware.IdentityFrom(r.Context())
	room, ok := s.roomFromPath(w, r)
	if !ok {
		return nil, id, false
	}
	if !id.IsAdmin() && !room.IsAdmin(id.ID) {
		http.Error(w, "room admin required", http.StatusForbidden)
		return nil, id, false
	}
	return room, id, true
}
