package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	alerting "fleetops-cloud/internal/alerting/domain"
)

// Channel delivers an alert message over one transport. Implementations
// own their encoding: pub/sub channels publish the structured message,
// human-facing channels render it first.
type Channel interface {
	Send(ctx context.Context, msg alerting.Message) error
}

// Dispatcher publishes breached alert decisions through a channel,
// usually a MultiChannel fan-out. It keeps no delivery state; every
// breach dispatches.
type Dispatcher struct {
	channel Channel
	logger  *zap.Logger
	timeout time.Duration
}

// Option configures the dispatcher.
type Option func(*Dispatcher)

// WithRequestTimeout bounds a single publish across all channels.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// NewDispatcher constructs an alert dispatcher.
func NewDispatcher(channel Channel, logger *zap.Logger, opts ...Option) (*Dispatcher, error) {
	if channel == nil {
		return nil, errors.New("alert dispatcher: nil channel")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	dispatcher := &Dispatcher{
		channel: channel,
		logger:  logger,
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(dispatcher)
	}
	return dispatcher, nil
}

// Publish sends the message. Channel failures surface as dispatch
// unavailability; the caller decides whether that degrades or fails
// the surrounding operation.
func (d *Dispatcher) Publish(ctx context.Context, msg alerting.Message) error {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	if err := d.channel.Send(ctx, msg); err != nil {
		return fmt.Errorf("%w: %v", alerting.ErrDispatchUnavailable, err)
	}
	d.logger.Debug("alert delivered",
		zap.String("event_id", msg.TriggeringEventID),
		zap.Int64("observed", msg.ObservedCount))
	return nil
}
