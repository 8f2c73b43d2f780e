package state

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// TimelineRecord is one immutable entry in the session's append-only
// history. Records are identified by ULIDs so the timeline sorts by id.
type TimelineRecord struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Kind      string         `json:"kind"`
	Summary   string         `json:"summary"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewTimelineRecord builds a record with a fresh ULID and UTC timestamp.
func NewTimelineRecord(sessionID, kind, summary string, payload map[string]any) TimelineRecord {
	return TimelineRecord{
		ID:        ulid.Make().String(),
		SessionID: sessionID,
		Kind:      kind,
		Summary:   summary,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
}
