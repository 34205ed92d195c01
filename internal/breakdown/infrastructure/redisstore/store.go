// Package redisstore persists structured breakdown records in Redis.
// Records live under their natural key; a per-day set indexes them for
// reporting.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	breakdown "fleetops-cloud/internal/breakdown/domain"
)

const defaultPrefix = "breakdowns:"

// Store is the Redis-backed record store.
type Store struct {
	client *redis.Client
	prefix string
}

// Option customizes the store.
type Option func(*Store)

// WithPrefix overrides the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// NewStore builds a record store on an existing client.
func NewStore(client *redis.Client, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, errors.New("redis store: nil client")
	}
	store := &Store{client: client, prefix: defaultPrefix}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

func (s *Store) recordKey(key string) string {
	return s.prefix + "record:" + key
}

func (s *Store) dayKey(day string) string {
	return s.prefix + "day:" + day
}

// Upsert writes the record under its (route, occurredOn) key and adds
// it to the day index. Re-ingesting the same pair overwrites the value,
// so retries and duplicates collapse into one record.
func (s *Store) Upsert(ctx context.Context, record breakdown.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("redis store: marshal record: %w", err)
	}
	key := s.recordKey(record.Key())

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, data, 0)
	pipe.SAdd(ctx, s.dayKey(record.Day()), key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", breakdown.ErrStorageUnavailable, err)
	}
	return nil
}

// ListByDay returns the day's records ordered by occurrence time.
func (s *Store) ListByDay(ctx context.Context, day string) ([]breakdown.Record, error) {
	keys, err := s.client.SMembers(ctx, s.dayKey(day)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", breakdown.ErrStorageUnavailable, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", breakdown.ErrStorageUnavailable, err)
	}

	records := make([]breakdown.Record, 0, len(values))
	for _, value := range values {
		data, ok := value.(string)
		if !ok {
			// index entry without a value, nothing to report
			continue
		}
		var record breakdown.Record
		if err := json.Unmarshal([]byte(data), &record); err != nil {
			return nil, fmt.Errorf("redis store: decode record: %w", err)
		}
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].OccurredOn < records[j].OccurredOn
	})
	return records, nil
}
