package alerting

import "time"

// Decision is a point-in-time threshold evaluation over the trailing
// high-priority window.
type Decision struct {
	Breached  bool
	Observed  int64
	Threshold int
	Window    time.Duration
	WindowEnd time.Time
}

// Message is the alert published to dispatch channels when a decision
// breaches the threshold.
type Message struct {
	Threshold             int       `json:"threshold"`
	WindowDurationSeconds int       `json:"windowDurationSeconds"`
	ObservedCount         int64     `json:"observedCount"`
	TriggeringEventID     string    `json:"triggeringEventId"`
	WindowEnd             time.Time `json:"windowEnd"`
}

// NewMessage builds the dispatch message for a breached decision,
// naming the event whose ingestion tripped the threshold.
func NewMessage(d Decision, triggeringEventID string) Message {
	return Message{
		Threshold:             d.Threshold,
		WindowDurationSeconds: int(d.Window / time.Second),
		ObservedCount:         d.Observed,
		TriggeringEventID:     triggeringEventID,
		WindowEnd:             d.WindowEnd.UTC(),
	}
}
