// internal/game/room_store.go
package game

import (
	"bytes"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RoomStore holds every live room. Lookups never block room operations;
// each Room guards itself.
type RoomStore struct {
	rooms sync.Map // uuid.UUID -> *Room

	logger logrus.FieldLogger
	opts   []RoomOption
}

// NewRoomStore creates an empty store. opts are applied to every created room.
func NewRoomStore(logger logrus.FieldLogger, opts ...RoomOption) *RoomStore {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RoomStore{logger: logger, opts: opts}
}

// Create registers a new room owned by creator.
func (s *RoomStore) Create(name string, mode Mode, maxPlayers int, creator int64) (*Room, error) {
	if maxPlayers < 1 {
		return nil, ErrInvalidMaxPlayers
	}
	opts := append([]RoomOption{WithLogger(s.logger)}, s.opts...)
	r := NewRoom(name, mode, maxPlayers, creator, opts...)
	s.rooms.Store(r.ID, r)
	s.logger.WithFields(logrus.Fields{"room": r.ID, "mode": mode, "creator": creator}).Info("room created")
	return r, nil
}

// Get returns the room with id.
func (s *RoomStore) Get(id uuid.UUID) (*Room, error) {
	v, ok := s.rooms.Load(id)
	if !ok {
		return nil, ErrRoomNotFound
	}
	return v.(*Room), nil
}

// Delete removes the room and closes its subscriptions.
func (s *RoomStore) Delete(id uuid.UUID) error {
	v, ok := s.rooms.LoadAndDelete(id)
	if !ok {
		return ErrRoomNotFound
	}
	v.(*Room).Close()
	s.logger.WithField("room", id).Info("room deleted")
	return nil
}

// Range calls fn for each room until fn returns false.
func (s *RoomStore) Range(fn func(*Room) bool) {
	s.rooms.Range(func(_, v any) bool {
		return fn(v.(*Room))
	})
}

// Rooms returns every room, oldest first.
func (s *RoomStore) Rooms() []*Room {
	var out []*Room
	s.Range(func(r *Room) bool {
		out = append(out, r)
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	return out
}

// Summaries lists room metadata for the index, oldest first.
func (s *RoomStore) Summaries() []RoomSummary {
	rooms := s.Rooms()
	out := make([]RoomSummary, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Summary())
	}
	return out
}
