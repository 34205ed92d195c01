package breakdown

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Priority levels accepted on inbound reports. Absent priority defaults
// to PriorityNormal; anything else is rejected.
const (
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// Event is a validated bus-breakdown report. OccurredOn is already
// parsed; Transform renders it back in canonical UTC form.
type Event struct {
	RouteNumber string
	OccurredOn  time.Time
	Priority    string
	Description string
	ReportedBy  string
	Reason      string
	Delay       string
}

// Record is the persisted, queryable form of an event. The pair
// (RouteNumber, OccurredOn) identifies a record; re-ingesting the same
// pair overwrites the previous version.
type Record struct {
	RouteNumber  string    `json:"routeNumber"`
	OccurredOn   string    `json:"occurredOn"`
	Priority     string    `json:"priority"`
	Description  string    `json:"description,omitempty"`
	ReportedBy   string    `json:"reportedBy,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	DelayMinutes int       `json:"delayMinutes"`
	ReceivedAt   time.Time `json:"receivedAt"`
}

// Key returns the natural identity of the record.
func (r Record) Key() string {
	return r.RouteNumber + "|" + r.OccurredOn
}

// Day returns the UTC calendar day (YYYY-MM-DD) the incident occurred on.
func (r Record) Day() string {
	if len(r.OccurredOn) < 10 {
		return r.OccurredOn
	}
	return r.OccurredOn[:10]
}

// payload is the inbound wire shape.
type payload struct {
	RouteNumber string `json:"routeNumber"`
	OccurredOn  string `json:"occurredOn"`
	Priority    string `json:"priority"`
	Description string `json:"description"`
	ReportedBy  string `json:"reportedBy"`
	Reason      string `json:"reason"`
	Delay       string `json:"delay"`
}

// occurredOnLayouts lists the accepted timestamp forms. Zone-less
// values are interpreted as UTC.
var occurredOnLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// Validate parses raw bytes into an Event. Failures wrap one of the
// validation sentinels and, where a single field is at fault, carry its
// name in a ValidationError.
func Validate(raw []byte) (Event, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if strings.TrimSpace(p.RouteNumber) == "" {
		return Event{}, &ValidationError{Field: "routeNumber", Err: ErrMissingField}
	}
	if strings.TrimSpace(p.OccurredOn) == "" {
		return Event{}, &ValidationError{Field: "occurredOn", Err: ErrMissingField}
	}
	occurredOn, err := parseOccurredOn(p.OccurredOn)
	if err != nil {
		return Event{}, &ValidationError{Field: "occurredOn", Err: ErrInvalidTimestamp}
	}
	priority, err := normalizePriority(p.Priority)
	if err != nil {
		return Event{}, &ValidationError{Field: "priority", Err: err}
	}
	return Event{
		RouteNumber: strings.TrimSpace(p.RouteNumber),
		OccurredOn:  occurredOn,
		Priority:    priority,
		Description: p.Description,
		ReportedBy:  p.ReportedBy,
		Reason:      p.Reason,
		Delay:       p.Delay,
	}, nil
}

func parseOccurredOn(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range occurredOnLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

func normalizePriority(value string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return PriorityNormal, nil
	case PriorityNormal:
		return PriorityNormal, nil
	case PriorityHigh:
		return PriorityHigh, nil
	default:
		return "", ErrInvalidPriority
	}
}

// Transform builds the structured record for a validated event.
// Timestamps are normalized to RFC 3339 UTC and the free-text delay is
// folded into whole minutes.
func Transform(ev Event, receivedAt time.Time) Record {
	return Record{
		RouteNumber:  ev.RouteNumber,
		OccurredOn:   ev.OccurredOn.UTC().Format(time.RFC3339),
		Priority:     ev.Priority,
		Description:  ev.Description,
		ReportedBy:   ev.ReportedBy,
		Reason:       ev.Reason,
		DelayMinutes: ParseDelayMinutes(ev.Delay),
		ReceivedAt:   receivedAt.UTC(),
	}
}

// ParseDelayMinutes folds free-text delay estimates into minutes.
// Empty and unparseable values yield 0, anything mentioning hours
// yields 60, ranges like "20-30" yield their midpoint, and a leading
// number stands alone ("15min" yields 15).
func ParseDelayMinutes(delay string) int {
	s := strings.ToLower(strings.TrimSpace(delay))
	if s == "" {
		return 0
	}
	if strings.Contains(s, "hour") {
		return 60
	}
	first, rest := leadingInt(s)
	if first < 0 {
		return 0
	}
	for _, sep := range []string{"-", "–"} {
		if strings.HasPrefix(rest, sep) {
			if second, _ := leadingInt(strings.TrimPrefix(rest, sep)); second >= 0 {
				return (first + second) / 2
			}
		}
	}
	return first
}

// leadingInt parses the leading run of digits from s. It returns -1
// when s does not start with a digit.
func leadingInt(s string) (int, string) {
	i := 0
	n := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		n = n*10 + int(s[i]-'0')
		if n > 1<<30 {
			return -1, s
		}
		i++
	}
	if i == 0 {
		return -1, s
	}
	return n, s[i:]
}
