package models

import (
	"encoding/json"
	"time"
)

// Event is one stored error occurrence. EventID is the primary key and the
// idempotency token: redelivered tasks with a known event_id are dropped.
type Event struct {
	EventID    string          `json:"event_id"`
	IssueID    int64           `json:"issue_id"`
	ProjectID  int64           `json:"project_id"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"received_at"`
}

// Transaction is one stored performance transaction. Duplicate deliveries
// may produce duplicate rows; performance data is best-effort.
type Transaction struct {
	ID           string          `json:"id"`
	ProjectID    int64           `json:"project_id"`
	Name         string          `json:"name"`
	DurationMS   *int64          `json:"duration_ms,omitempty"`
	Measurements json.RawMessage `json:"measurements,omitempty"`
	Payload      json.RawMessage `json:"payload"`
	ReceivedAt   time.Time       `json:"received_at"`
}
