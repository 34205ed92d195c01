package notify

import (
	"context"
	"errors"

	alerting "fleetops-cloud/internal/alerting/domain"
)

// MultiChannel fans one alert out to several channels. All channels are
// attempted; failures are joined so one dead transport never silences
// the rest.
type MultiChannel struct {
	channels []Channel
}

// NewMultiChannel constructs a MultiChannel.
func NewMultiChannel(channels ...Channel) *MultiChannel {
	return &MultiChannel{channels: channels}
}

// Send forwards the message to all channels.
func (m *MultiChannel) Send(ctx context.Context, msg alerting.Message) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, channel := range m.channels {
		if channel == nil {
			continue
		}
		if err := channel.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
