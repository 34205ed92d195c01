package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	alerting "fleetops-cloud/internal/alerting/domain"
	"fleetops-cloud/internal/breakdown/application/events"
	breakdown "fleetops-cloud/internal/breakdown/domain"
	"fleetops-cloud/internal/observability/metrics"
)

// State identifies where a pipeline run currently stands. Completed,
// Rejected and Failed are terminal.
type State string

const (
	StateReceived        State = "received"
	StateValidated       State = "validated"
	StateTransformed     State = "transformed"
	StateArchived        State = "archived"
	StateRecorded        State = "recorded"
	StateMetricEvaluated State = "metric_evaluated"
	StateCompleted       State = "completed"
	StateRejected        State = "rejected"
	StateFailed          State = "failed"
)

// RawArchiver persists the untouched inbound payload.
type RawArchiver interface {
	Archive(ctx context.Context, eventID string, raw []byte) error
}

// RecordStore upserts structured records keyed by route and occurrence time.
type RecordStore interface {
	Upsert(ctx context.Context, record breakdown.Record) error
}

// MetricEmitter records one high-priority sample in the shared sink.
type MetricEmitter interface {
	EmitHighPriority(ctx context.Context, eventID string, occurredAt time.Time) error
}

// AlertEvaluator decides whether the trailing window breaches the
// configured threshold at windowEnd.
type AlertEvaluator interface {
	Evaluate(ctx context.Context, windowEnd time.Time) (alerting.Decision, error)
}

// AlertDispatcher publishes a breached decision to alert channels.
type AlertDispatcher interface {
	Publish(ctx context.Context, msg alerting.Message) error
}

// EventPublisher fans out application events to in-process consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// RunResult reports the terminal state of one pipeline run.
type RunResult struct {
	EventID    string
	State      State
	ReceivedAt time.Time
}

// Pipeline drives one breakdown report from raw bytes to completion:
// validate, transform, archive the raw payload, upsert the structured
// record, then evaluate the high-priority alert window. Alerting
// failures degrade the run but never fail it; storage failures do.
type Pipeline struct {
	archiver   RawArchiver
	store      RecordStore
	emitter    MetricEmitter
	evaluator  AlertEvaluator
	dispatcher AlertDispatcher
	publisher  EventPublisher
	clock      Clock
	newID      func() string
	logger     *zap.Logger
}

// PipelineOption customizes the pipeline.
type PipelineOption func(*Pipeline)

// WithDispatcher assigns the alert dispatcher.
func WithDispatcher(dispatcher AlertDispatcher) PipelineOption {
	return func(p *Pipeline) {
		p.dispatcher = dispatcher
	}
}

// WithEventPublisher assigns the in-process event publisher.
func WithEventPublisher(publisher EventPublisher) PipelineOption {
	return func(p *Pipeline) {
		p.publisher = publisher
	}
}

// WithClock assigns a clock.
func WithClock(clock Clock) PipelineOption {
	return func(p *Pipeline) {
		p.clock = clock
	}
}

// WithIDFactory assigns the event identifier factory.
func WithIDFactory(newID func() string) PipelineOption {
	return func(p *Pipeline) {
		p.newID = newID
	}
}

// NewPipeline constructs the ingest pipeline.
func NewPipeline(archiver RawArchiver, store RecordStore, emitter MetricEmitter, evaluator AlertEvaluator, logger *zap.Logger, opts ...PipelineOption) (*Pipeline, error) {
	if archiver == nil {
		return nil, errors.New("pipeline: nil archiver")
	}
	if store == nil {
		return nil, errors.New("pipeline: nil record store")
	}
	if emitter == nil {
		return nil, errors.New("pipeline: nil metric emitter")
	}
	if evaluator == nil {
		return nil, errors.New("pipeline: nil alert evaluator")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	pipeline := &Pipeline{
		archiver:  archiver,
		store:     store,
		emitter:   emitter,
		evaluator: evaluator,
		clock:     systemClock{},
		newID:     uuid.NewString,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(pipeline)
	}
	return pipeline, nil
}

// Run processes one raw report. The returned error is nil exactly when
// the run completed; rejected and failed runs return the stage error
// alongside the terminal state. Callers own retries: a failed run left
// the raw payload archived when the state is at least Archived, and
// resubmitting the same report is safe because record writes are
// keyed upserts.
func (p *Pipeline) Run(ctx context.Context, raw []byte) (RunResult, error) {
	receivedAt := p.clock.Now().UTC()
	result := RunResult{
		EventID:    p.newID(),
		State:      StateReceived,
		ReceivedAt: receivedAt,
	}
	defer func() {
		metrics.IncPipelineRun(string(result.State))
	}()

	event, err := breakdown.Validate(raw)
	if err != nil {
		result.State = StateRejected
		p.logger.Debug("report rejected",
			zap.String("event_id", result.EventID),
			zap.Error(err))
		return result, err
	}
	result.State = StateValidated

	record := breakdown.Transform(event, receivedAt)
	result.State = StateTransformed

	if err := p.archive(ctx, result.EventID, raw); err != nil {
		result.State = StateFailed
		return result, err
	}
	result.State = StateArchived

	if err := p.upsert(ctx, result.EventID, record); err != nil {
		result.State = StateFailed
		return result, err
	}
	result.State = StateRecorded

	p.publishRecorded(ctx, result.EventID, record)

	if event.Priority == breakdown.PriorityHigh {
		p.evaluateWindow(ctx, result.EventID, event.OccurredOn.UTC())
	}
	result.State = StateMetricEvaluated

	result.State = StateCompleted
	p.logger.Info("report completed",
		zap.String("event_id", result.EventID),
		zap.String("route", record.RouteNumber),
		zap.String("priority", record.Priority))
	return result, nil
}

func (p *Pipeline) archive(ctx context.Context, eventID string, raw []byte) error {
	start := p.clock.Now()
	err := p.archiver.Archive(ctx, eventID, raw)
	if err != nil {
		metrics.ObserveArchive(metrics.ResultError, p.clock.Now().Sub(start))
		p.logger.Error("raw archive failed",
			zap.String("event_id", eventID),
			zap.Error(err))
		return err
	}
	metrics.ObserveArchive(metrics.ResultSuccess, p.clock.Now().Sub(start))
	return nil
}

func (p *Pipeline) upsert(ctx context.Context, eventID string, record breakdown.Record) error {
	start := p.clock.Now()
	err := p.store.Upsert(ctx, record)
	if err != nil {
		metrics.ObserveRecordUpsert(metrics.ResultError, p.clock.Now().Sub(start))
		p.logger.Error("record upsert failed",
			zap.String("event_id", eventID),
			zap.String("record_key", record.Key()),
			zap.Error(err))
		return err
	}
	metrics.ObserveRecordUpsert(metrics.ResultSuccess, p.clock.Now().Sub(start))
	return nil
}

func (p *Pipeline) publishRecorded(ctx context.Context, eventID string, record breakdown.Record) {
	if p.publisher == nil {
		return
	}
	evt := events.IncidentRecorded{EventID: eventID, Record: record}
	if err := p.publisher.Publish(ctx, evt); err != nil {
		p.logger.Warn("incident event publish failed",
			zap.String("event_id", eventID),
			zap.Error(err))
	}
}

// evaluateWindow runs the alerting leg for a high-priority event. Every
// failure here is logged and swallowed so alerting outages never block
// ingestion.
func (p *Pipeline) evaluateWindow(ctx context.Context, eventID string, occurredAt time.Time) {
	if err := p.emitter.EmitHighPriority(ctx, eventID, occurredAt); err != nil {
		metrics.IncMetricEmit(metrics.ResultError)
		p.logger.Warn("metric emit failed",
			zap.String("event_id", eventID),
			zap.Error(err))
	} else {
		metrics.IncMetricEmit(metrics.ResultSuccess)
	}

	decision, err := p.evaluator.Evaluate(ctx, occurredAt)
	if err != nil {
		metrics.IncAlertEvaluation(metrics.EvaluationError)
		p.logger.Warn("alert evaluation failed",
			zap.String("event_id", eventID),
			zap.Error(err))
		return
	}
	if !decision.Breached {
		metrics.IncAlertEvaluation(metrics.EvaluationClear)
		return
	}
	metrics.IncAlertEvaluation(metrics.EvaluationBreached)

	if p.dispatcher == nil {
		return
	}
	msg := alerting.NewMessage(decision, eventID)
	if err := p.dispatcher.Publish(ctx, msg); err != nil {
		metrics.IncAlertDispatch(metrics.ResultError)
		p.logger.Warn("alert dispatch failed",
			zap.String("event_id", eventID),
			zap.Int64("observed", decision.Observed),
			zap.Error(err))
		return
	}
	metrics.IncAlertDispatch(metrics.ResultSuccess)
	p.logger.Info("alert dispatched",
		zap.String("event_id", eventID),
		zap.Int64("observed", decision.Observed),
		zap.Int("threshold", decision.Threshold),
		zap.Time("window_end", decision.WindowEnd))
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
