package events

import (
	breakdown "fleetops-cloud/internal/breakdown/domain"
)

// IncidentRecorded is raised after the structured record write for an
// ingested breakdown succeeds.
type IncidentRecorded struct {
	EventID string           `json:"eventId"`
	Record  breakdown.Record `json:"record"`
}
