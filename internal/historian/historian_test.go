package historian

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wordrelay/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeQueue serves queued payloads and reports redis.Nil when empty.
type fakeQueue struct {
	mu    sync.Mutex
	items []string
	err   error
	calls int
}

func (q *fakeQueue) push(payloads ...string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, payloads...)
}

func (q *fakeQueue) BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd {
	cmd := redis.NewStringSliceCmd(ctx, "blpop", keys[0])
	q.mu.Lock()
	q.calls++
	if q.err != nil {
		cmd.SetErr(q.err)
		q.mu.Unlock()
		return cmd
	}
	if len(q.items) > 0 {
		item := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()
		cmd.SetVal([]string{keys[0], item})
		return cmd
	}
	q.mu.Unlock()

	select {
	case <-ctx.Done():
		cmd.SetErr(ctx.Err())
	case <-time.After(timeout):
		cmd.SetErr(redis.Nil)
	}
	return cmd
}

// fakeStore collects every flushed batch.
type fakeStore struct {
	mu      sync.Mutex
	batches [][]models.GameRecord
	err     error
}

func (s *fakeStore) write(_ context.Context, recs []models.GameRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, recs)
	return nil
}

func (s *fakeStore) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func payload(t *testing.T) (uuid.UUID, string) {
	t.Helper()
	rec := models.GameRecord{ID: uuid.New(), Mode: "chain"}
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	return rec.ID, string(data)
}

func TestHistorianFlushesFullBatch(t *testing.T) {
	q := &fakeQueue{}
	store := &fakeStore{}
	s := New(q, "games", store.write,
		WithBatchSize(2),
		WithFlushDelay(time.Hour),
		WithPopTimeout(5*time.Millisecond),
	)

	id1, p1 := payload(t)
	id2, p2 := payload(t)
	_, p3 := payload(t)
	q.push(p1, p2, p3)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(t, func() bool { return store.total() == 2 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return s.Pending() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	// the leftover record is flushed on shutdown
	require.Len(t, store.batches, 2)
	assert.Equal(t, []uuid.UUID{id1, id2}, []uuid.UUID{store.batches[0][0].ID, store.batches[0][1].ID})
	assert.Len(t, store.batches[1], 1)
	assert.Zero(t, s.Pending())
}

func TestHistorianFlushesOnTimer(t *testing.T) {
	q := &fakeQueue{}
	store := &fakeStore{}
	s := New(q, "games", store.write,
		WithBatchSize(100),
		WithFlushDelay(20*time.Millisecond),
		WithPopTimeout(5*time.Millisecond),
	)
	_, p := payload(t)
	q.push(p)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	assert.Eventually(t, func() bool { return store.total() == 1 }, time.Second, 5*time.Millisecond)
}

func TestHistorianSkipsInvalidPayload(t *testing.T) {
	logger, hook := test.NewNullLogger()
	store := &fakeStore{}
	s := New(&fakeQueue{}, "games", store.write, WithLogger(logger))

	s.handle(context.Background(), "{not json")
	assert.Zero(t, s.Pending())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "invalid game record", hook.LastEntry().Message)
}

func TestHistorianLogsFailedWrite(t *testing.T) {
	logger, hook := test.NewNullLogger()
	store := &fakeStore{err: errors.New("db down")}
	s := New(&fakeQueue{}, "games", store.write, WithLogger(logger))

	_, p := payload(t)
	s.handle(context.Background(), p)
	s.Flush(context.Background())

	assert.Zero(t, s.Pending())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, 1, hook.LastEntry().Data["records"])
}

func TestHistorianBacksOffWhenQueueFails(t *testing.T) {
	logger, hook := test.NewNullLogger()
	q := &fakeQueue{err: errors.New("connection refused")}
	store := &fakeStore{}
	s := New(q, "games", store.write,
		WithRetryDelay(50*time.Millisecond),
		WithLogger(logger),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 220*time.Millisecond)
	defer cancel()
	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	q.mu.Lock()
	calls := q.calls
	q.mu.Unlock()
	assert.GreaterOrEqual(t, calls, 1)
	assert.LessOrEqual(t, calls, 10, "failed pops are retried after a pause")

	failures := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel {
			failures++
		}
	}
	assert.GreaterOrEqual(t, failures, 1)
	assert.LessOrEqual(t, failures, calls)
}
