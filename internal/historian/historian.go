// internal/historian/historian.go drains settled games from a Redis queue and
// persists them to PostgreSQL in batches.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jason-s-yu/wordrelay/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Queue is the part of a Redis client the historian reads with.
type Queue interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}

// WriteFunc persists one batch. It must be atomic: either every record is
// stored or none is.
type WriteFunc func(ctx context.Context, recs []models.GameRecord) error

// Service batches queued records and flushes them by size or by age.
type Service struct {
	queue      Queue
	queueName  string
	write      WriteFunc
	batchSize  int
	flushDelay time.Duration
	popTimeout time.Duration
	retryDelay time.Duration
	logger     logrus.FieldLogger

	batchMu sync.Mutex
	batch   []models.GameRecord
}

// Option customizes a Service.
type Option func(*Service)

// WithBatchSize flushes as soon as n records are pending.
func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithFlushDelay flushes pending records at least this often.
func WithFlushDelay(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.flushDelay = d
		}
	}
}

// WithPopTimeout bounds each blocking pop so cancellation and the flush timer are noticed.
func WithPopTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.popTimeout = d
		}
	}
}

// WithRetryDelay sets the pause after a failed pop before the next attempt.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retryDelay = d
		}
	}
}

// WithLogger replaces the standard logrus logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a historian reading queueName and persisting through write.
func New(queue Queue, queueName string, write WriteFunc, opts ...Option) *Service {
	s := &Service{
		queue:      queue,
		queueName:  queueName,
		write:      write,
		batchSize:  20,
		flushDelay: 500 * time.Millisecond,
		popTimeout: 3 * time.Second,
		retryDelay: time.Second,
		logger:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.batch = make([]models.GameRecord, 0, s.batchSize)
	return s
}

// Run pops records until ctx is cancelled, then flushes whatever is pending.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.flushDelay)
	defer ticker.Stop()
	s.logger.WithField("queue", s.queueName).Info("historian started")

	for {
		select {
		case <-ctx.Done():
			// the pending batch still deserves a write after shutdown began
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			s.Flush(flushCtx)
			cancel()
			s.logger.Info("historian stopped")
			return ctx.Err()

		case <-ticker.C:
			s.Flush(ctx)

		default:
			res, err := s.queue.BLPop(ctx, s.popTimeout, s.queueName).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) || ctx.Err() != nil {
					continue
				}
				s.logger.WithError(err).Error("BLPop failed")
				select {
				case <-ctx.Done():
				case <-time.After(s.retryDelay):
				}
				continue
			}
			// res[0] is the queue name and res[1] the payload
			if len(res) < 2 {
				continue
			}
			s.handle(ctx, res[1])
		}
	}
}

func (s *Service) handle(ctx context.Context, payload string) {
	var rec models.GameRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		s.logger.WithError(err).Warn("invalid game record")
		return
	}

	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	s.batch = append(s.batch, rec)
	if len(s.batch) >= s.batchSize {
		s.flushLocked(ctx)
	}
}

// Flush writes every pending record.
func (s *Service) Flush(ctx context.Context) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	s.flushLocked(ctx)
}

// Pending reports how many records wait for the next flush.
func (s *Service) Pending() int {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	return len(s.batch)
}

func (s *Service) flushLocked(ctx context.Context) {
	if len(s.batch) == 0 {
		return
	}
	batch := make([]models.GameRecord, len(s.batch))
	copy(batch, s.batch)
	s.batch = s.batch[:0]

	if err := s.write(ctx, batch); err != nil {
		s.logger.WithError(err).WithField("records", len(batch)).Error("failed to flush game records")
		return
	}
	s.logger.WithField("records", len(batch)).Debug("flushed game records")
}
