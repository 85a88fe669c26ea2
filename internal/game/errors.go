// internal/game/errors.go
package game

import "errors"

var (
	// ErrRoomFull is returned by Join when every player seat is taken.
	ErrRoomFull = errors.New("room is full")
	// ErrGameInProgress is returned by Join when a new player arrives mid-game.
	ErrGameInProgress = errors.New("game already in progress")
	// ErrRoomNotFound is returned by the store for unknown room ids.
	ErrRoomNotFound = errors.New("room not found")
	// ErrInvalidMaxPlayers rejects room settings without any player seat.
	ErrInvalidMaxPlayers = errors.New("max players must be at least 1")
)
