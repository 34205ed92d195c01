// Package redis implements the shared high-priority metric sink on a
// Redis sorted set. Every service replica emits into and counts from
// the same set, which is what keeps window evaluation stateless.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	alerting "fleetops-cloud/internal/alerting/domain"
)

const (
	counterName      = "HighPriorityAlerts"
	defaultRetention = 24 * time.Hour
)

// MetricSink records high-priority samples scored by event time.
type MetricSink struct {
	client    *redis.Client
	namespace string
	retention time.Duration
}

// SinkOption customizes the sink.
type SinkOption func(*MetricSink)

// WithRetention bounds how long samples stay in the set. Retention only
// trims history; counting is always window-bounded.
func WithRetention(retention time.Duration) SinkOption {
	return func(s *MetricSink) {
		if retention > 0 {
			s.retention = retention
		}
	}
}

// NewMetricSink builds a sink on an existing client.
func NewMetricSink(client *redis.Client, namespace string, opts ...SinkOption) (*MetricSink, error) {
	if client == nil {
		return nil, errors.New("metric sink: nil client")
	}
	if namespace == "" {
		return nil, errors.New("metric sink: empty namespace")
	}
	sink := &MetricSink{
		client:    client,
		namespace: namespace,
		retention: defaultRetention,
	}
	for _, opt := range opts {
		opt(sink)
	}
	return sink, nil
}

func (s *MetricSink) key() string {
	return s.namespace + ":" + counterName
}

// EmitHighPriority adds one sample, scored by the event's occurrence
// time. Members are event identifiers, so re-emitting the same event
// never inflates the count. Samples older than the retention horizon
// are pruned opportunistically.
func (s *MetricSink) EmitHighPriority(ctx context.Context, eventID string, occurredAt time.Time) error {
	if eventID == "" {
		return errors.New("metric sink: empty event id")
	}
	if err := s.client.ZAdd(ctx, s.key(), redis.Z{
		Score:  float64(occurredAt.UnixMilli()),
		Member: eventID,
	}).Err(); err != nil {
		return fmt.Errorf("%w: %v", alerting.ErrMetricSinkUnavailable, err)
	}

	horizon := occurredAt.Add(-s.retention)
	_ = s.client.ZRemRangeByScore(ctx, s.key(), "-inf", formatScore(horizon)).Err()
	return nil
}

// CountHighPriority counts samples in the closed interval [from, to].
func (s *MetricSink) CountHighPriority(ctx context.Context, from, to time.Time) (int64, error) {
	count, err := s.client.ZCount(ctx, s.key(), formatScore(from), formatScore(to)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", alerting.ErrMetricSinkUnavailable, err)
	}
	return count, nil
}

func formatScore(ts time.Time) string {
	return strconv.FormatInt(ts.UnixMilli(), 10)
}
