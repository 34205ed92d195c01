package alerting

import "errors"

var (
	// ErrMetricSinkUnavailable is returned when the shared metric sink
	// cannot record or count samples. Callers treat it as degraded
	// operation, not failure.
	ErrMetricSinkUnavailable = errors.New("alerting: metric sink unavailable")
	// ErrDispatchUnavailable is returned when no alert channel accepted
	// the message.
	ErrDispatchUnavailable = errors.New("alerting: dispatch unavailable")
)
