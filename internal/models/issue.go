package models

import "time"

// Issue lifecycle statuses.
const (
	IssueStatusOpen     = "open"
	IssueStatusResolved = "resolved"
	IssueStatusIgnored  = "ignored"
)

// Issue is a cumulative record of error occurrences sharing one fingerprint.
// Unique per (project_id, fingerprint).
type Issue struct {
	ID          int64     `json:"id"`
	ProjectID   int64     `json:"project_id"`
	Fingerprint string    `json:"fingerprint"`
	Title       string    `json:"title"`
	ErrorType   string    `json:"error_type"`
	Status      string    `json:"status"`
	Count       int64     `json:"count"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
}
