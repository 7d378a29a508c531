package grouping

import (
	"context"
	"fmt"
	"time"

	"github.com/faultline-systems/faultline/internal/models"
	"github.com/faultline-systems/faultline/internal/repository"
)

// Grouper maps error events onto issues, creating or incrementing the
// matching (project, fingerprint) record.
type Grouper struct {
	issues repository.IssueStore
	now    func() time.Time
}

// NewGrouper creates a Grouper backed by the given issue store.
func NewGrouper(issues repository.IssueStore) *Grouper {
	return &Grouper{issues: issues, now: time.Now}
}

// GroupEvent records one occurrence of the event against its issue. The
// underlying store performs the create-or-increment atomically, so
// concurrent occurrences of one fingerprint never lose counts.
func (g *Grouper) GroupEvent(ctx context.Context, payload map[string]any, project *models.Project) (*models.Issue, error) {
	ts := EventTimestamp(payload)
	if ts.IsZero() {
		ts = g.now().UTC()
	}

	occ := &repository.IssueOccurrence{
		ProjectID:   project.ID,
		Fingerprint: Fingerprint(payload),
		Title:       Title(payload),
		ErrorType:   ErrorType(payload),
		Timestamp:   ts,
	}

	issue, err := g.issues.UpsertOccurrence(ctx, occ)
	if err != nil {
		return nil, fmt.Errorf("group event for project %d: %w", project.ID, err)
	}
	return issue, nil
}
