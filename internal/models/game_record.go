package models

import (
	"time"

	"github.com/google/uuid"
)

// GameRecord is the summary of one settled session, queued for the historian.
type GameRecord struct {
	ID         uuid.UUID          `json:"id"`
	RoomID     uuid.UUID          `json:"room_id"`
	RoomName   string             `json:"room_name"`
	Mode       string             `json:"mode"`
	Answer     string             `json:"answer"`
	Won        bool               `json:"won"`
	Players    []GameRecordPlayer `json:"players"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
}

// GameRecordPlayer is one seat of a GameRecord.
type GameRecordPlayer struct {
	UserID  int64  `json:"user_id"`
	Name    string `json:"name"`
	Seat    int    `json:"seat"`
	Score   int    `json:"score"`
	Answer  string `json:"answer,omitempty"`
	Correct bool   `json:"correct"`
}
