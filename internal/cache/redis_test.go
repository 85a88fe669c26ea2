package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wordrelay/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePusher struct {
	key    string
	values []interface{}
	err    error
}

func (f *fakePusher) RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.key = key
	f.values = append(f.values, values...)
	cmd := redis.NewIntCmd(ctx, "rpush", key)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal(int64(len(f.values)))
	}
	return cmd
}

func TestRecorderPushesJSON(t *testing.T) {
	p := &fakePusher{}
	rec := NewRecorder(p, "")

	game := models.GameRecord{
		ID:         uuid.New(),
		RoomID:     uuid.New(),
		RoomName:   "lounge",
		Mode:       "chain",
		Answer:     "ab",
		Won:        true,
		Players:    []models.GameRecordPlayer{{UserID: 1, Name: "a", Score: 2, Answer: "ab", Correct: true}},
		FinishedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, rec.RecordGame(context.Background(), game))

	assert.Equal(t, DefaultQueueName, p.key)
	require.Len(t, p.values, 1)
	var got models.GameRecord
	require.NoError(t, json.Unmarshal(p.values[0].([]byte), &got))
	assert.Equal(t, game.ID, got.ID)
	assert.Equal(t, game.Players, got.Players)
	assert.True(t, got.FinishedAt.Equal(game.FinishedAt))
}

func TestRecorderWrapsPushError(t *testing.T) {
	boom := errors.New("connection refused")
	rec := NewRecorder(&fakePusher{err: boom}, "custom")

	err := rec.RecordGame(context.Background(), models.GameRecord{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "'custom'")
}
