// internal/handlers/server.go
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jason-s-yu/wordrelay/internal/auth"
	"github.com/jason-s-yu/wordrelay/internal/game"
	"github.com/jason-s-yu/wordrelay/internal/middleware"
	"github.com/jason-s-yu/wordrelay/internal/pinyin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RoomServer wires the room registry to HTTP and WebSocket routes.
type RoomServer struct {
	Store  *game.RoomStore
	Table  *pinyin.Table
	Users  *auth.Directory
	Logger logrus.FieldLogger

	// TokenExpiry sets the auth cookie lifetime; zero makes it a session cookie.
	TokenExpiry time.Duration

	// MessageRate and MessageBurst throttle inbound socket messages per connection.
	MessageRate  rate.Limit
	MessageBurst int

	// PingInterval and ReadTimeout keep idle sockets honest.
	PingInterval time.Duration
	ReadTimeout  time.Duration
}

// NewRoomServer fills in defaults for everything but the registry, table and users.
func NewRoomServer(store *game.RoomStore, table *pinyin.Table, users *auth.Directory, logger logrus.FieldLogger) *RoomServer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RoomServer{
		Store:        store,
		Table:        table,
		Users:        users,
		Logger:       logger,
		MessageRate:  rate.Every(100 * time.Millisecond),
		MessageBurst: 10,
		PingInterval: 5 * time.Second,
		ReadTimeout:  15 * time.Second,
	}
}

// Routes returns the full handler tree, request logging included.
func (s *RoomServer) Routes() http.Handler {
	mux := http.NewServeMux()
	authed := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireAuth(h)
	}

	mux.HandleFunc("POST /login", s.LoginHandler)
	mux.Handle("GET /rooms", authed(s.ListRoomsHandler))
	mux.Handle("POST /rooms", authed(s.CreateRoomHandler))
	mux.Handle("PUT /rooms/{id}", authed(s.UpdateRoomHandler))
	mux.Handle("DELETE /rooms/{id}", authed(s.DeleteRoomHandler))
	mux.Handle("POST /rooms/{id}/start", authed(s.StartRoomHandler))
	mux.Handle("POST /rooms/{id}/stop", authed(s.StopRoomHandler))
	mux.Handle("POST /rooms/{id}/kick", authed(s.KickHandler))
	mux.Handle("GET /rooms/{id}/ws", authed(s.RoomWSHandler))

	return middleware.LogMiddleware(s.Logger)(mux)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
