package application

import (
	"context"
	"errors"
	"time"

	alerting "fleetops-cloud/internal/alerting/domain"
)

// MetricSource counts high-priority samples inside a closed interval.
type MetricSource interface {
	CountHighPriority(ctx context.Context, from, to time.Time) (int64, error)
}

// Evaluator decides threshold breaches over a trailing window. It keeps
// no state of its own; every decision comes from a fresh count against
// the shared sink, so concurrent ingests and multiple replicas all see
// the same window.
type Evaluator struct {
	source    MetricSource
	threshold int
	window    time.Duration
}

// NewEvaluator builds an evaluator for the given rule.
func NewEvaluator(source MetricSource, threshold int, window time.Duration) (*Evaluator, error) {
	if source == nil {
		return nil, errors.New("alerting: nil metric source")
	}
	if threshold < 1 {
		return nil, errors.New("alerting: threshold must be at least 1")
	}
	if window <= 0 {
		return nil, errors.New("alerting: window must be positive")
	}
	return &Evaluator{source: source, threshold: threshold, window: window}, nil
}

// Evaluate counts samples in [windowEnd-window, windowEnd] and reports
// whether the threshold is met.
func (e *Evaluator) Evaluate(ctx context.Context, windowEnd time.Time) (alerting.Decision, error) {
	from := windowEnd.Add(-e.window)
	observed, err := e.source.CountHighPriority(ctx, from, windowEnd)
	if err != nil {
		return alerting.Decision{}, err
	}
	return alerting.Decision{
		Breached:  observed >= int64(e.threshold),
		Observed:  observed,
		Threshold: e.threshold,
		Window:    e.window,
		WindowEnd: windowEnd,
	}, nil
}
