package interfaces

import (
	"context"
	"encoding/json"
	"errors"

	"fleetops-cloud/internal/breakdown/application/events"
)

// StreamPublisher pushes payloads to connected stream clients.
type StreamPublisher interface {
	Publish(payload []byte)
}

// IncidentRecordedConsumer bridges recorded incidents onto the live
// incident stream.
type IncidentRecordedConsumer struct {
	stream StreamPublisher
}

// NewIncidentRecordedConsumer constructs a consumer.
func NewIncidentRecordedConsumer(stream StreamPublisher) (*IncidentRecordedConsumer, error) {
	if stream == nil {
		return nil, errors.New("incident consumer: nil stream")
	}
	return &IncidentRecordedConsumer{stream: stream}, nil
}

// Consume handles an incident recorded event.
func (c *IncidentRecordedConsumer) Consume(_ context.Context, event events.IncidentRecorded) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	c.stream.Publish(payload)
	return nil
}
