package grading

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// FreshnessWindow is how long a persisted grading record stays usable for
// downstream consumers such as the personalized practice flow.
const FreshnessWindow = 24 * time.Hour

// Storage keys for the two logical records a finished grading produces.
const (
	keyLatestResult    = "grading:latest"
	keyPracticeHandoff = "grading:practice:handoff"
)

// Record wraps a stored grading result with its capture timestamp so
// consumers can judge staleness.
type Record struct {
	Result     Result    `json:"result"`
	CapturedAt time.Time `json:"capturedAt"`
}

// Fresh reports whether the record is still inside the freshness window.
func (r Record) Fresh(now time.Time) bool {
	if r.CapturedAt.IsZero() {
		return false
	}
	return now.Sub(r.CapturedAt) <= FreshnessWindow
}

// ResultStore persists finalized grading results for later views.
type ResultStore interface {
	SaveLatest(ctx context.Context, result Result) error
	SaveHandoff(ctx context.Context, result Result) error
	LoadLatest(ctx context.Context) (Record, bool, error)
	LoadHandoff(ctx context.Context) (Record, bool, error)
}

// RedisResultStore keeps the latest-result and practice-handoff records in
// Redis under a configurable key prefix.
type RedisResultStore struct {
	client *redis.Client
	prefix string
	logger zerolog.Logger
	now    func() time.Time
}

// NewRedisResultStore builds a redis-backed result store.
func NewRedisResultStore(client *redis.Client, prefix string, logger zerolog.Logger) *RedisResultStore {
	return &RedisResultStore{
		client: client,
		prefix: prefix,
		logger: logger.With().Str("component", "result_store").Logger(),
		now:    time.Now,
	}
}

// SaveLatest stores the most recent finalized result.
func (s *RedisResultStore) SaveLatest(ctx context.Context, result Result) error {
	return s.save(ctx, keyLatestResult, result)
}

// SaveHandoff stores the record the practice flow consumes.
func (s *RedisResultStore) SaveHandoff(ctx context.Context, result Result) error {
	return s.save(ctx, keyPracticeHandoff, result)
}

// LoadLatest returns the stored latest-result record; the bool reports
// whether a record exists and is still fresh.
func (s *RedisResultStore) LoadLatest(ctx context.Context) (Record, bool, error) {
	return s.load(ctx, keyLatestResult)
}

// LoadHandoff returns the stored practice-handoff record.
func (s *RedisResultStore) LoadHandoff(ctx context.Context) (Record, bool, error) {
	return s.load(ctx, keyPracticeHandoff)
}

func (s *RedisResultStore) save(ctx context.Context, key string, result Result) error {
	record := Record{Result: result, CapturedAt: s.now().UTC()}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal grading record: %w", err)
	}

	if err := s.client.Set(ctx, s.key(key), payload, 2*FreshnessWindow).Err(); err != nil {
		return fmt.Errorf("store grading record: %w", err)
	}

	return nil
}

func (s *RedisResultStore) load(ctx context.Context, key string) (Record, bool, error) {
	payload, err := s.client.Get(ctx, s.key(key)).Result()
	if err == redis.Nil {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("load grading record: %w", err)
	}

	var record Record
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("discarding unreadable grading record")
		return Record{}, false, nil
	}

	return record, record.Fresh(s.now()), nil
}

func (s *RedisResultStore) key(suffix string) string {
	if s.prefix == "" {
		return suffix
	}
	return s.prefix + ":" + suffix
}
