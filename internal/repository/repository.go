package repository

import (
	"context"
	"errors"
	"time"

	"github.com/faultline-systems/faultline/internal/models"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrIssueNotFound   = errors.New("issue not found")
	ErrDuplicateEvent  = errors.New("duplicate event")
)

// IssueOccurrence carries everything needed to record one error occurrence
// against an issue, creating the issue when the fingerprint is new.
type IssueOccurrence struct {
	ProjectID   int64
	Fingerprint string
	Title       string
	ErrorType   string
	Timestamp   time.Time
}

// ProjectStore resolves tenants. Read-only from the pipeline's perspective.
type ProjectStore interface {
	GetProjectBySlug(ctx context.Context, slug string) (*models.Project, error)
	GetProjectByID(ctx context.Context, id int64) (*models.Project, error)
}

// IssueStore persists grouped error occurrences.
type IssueStore interface {
	// UpsertOccurrence records one occurrence atomically: it creates the
	// issue on first sight of the fingerprint, otherwise increments the
	// count, advances last_seen, and reopens resolved issues. Ignored
	// issues keep their status.
	UpsertOccurrence(ctx context.Context, occ *IssueOccurrence) (*models.Issue, error)

	GetIssue(ctx context.Context, id int64) (*models.Issue, error)

	// SetIssueStatus is used by the dashboard collaborators to resolve or
	// ignore an issue.
	SetIssueStatus(ctx context.Context, id int64, status string) error
}

// EventStore persists individual error events. InsertEvent returns
// ErrDuplicateEvent for a known event_id; redelivered tasks rely on this
// for at-most-once processing.
type EventStore interface {
	InsertEvent(ctx context.Context, event *models.Event) error

	// LinkEventToIssue attaches the event to its issue once grouping has
	// run. Insert and grouping are deliberately separate steps: the insert
	// is the dedup gate, so it happens before the issue exists.
	LinkEventToIssue(ctx context.Context, eventID string, issueID int64) error
}

// TransactionStore persists performance transactions. No idempotency
// guarantee: duplicates on redelivery are an accepted tradeoff.
type TransactionStore interface {
	InsertTransaction(ctx context.Context, tx *models.Transaction) error
}

// Repository aggregates all stores.
type Repository interface {
	ProjectStore
	IssueStore
	EventStore
	TransactionStore
}
