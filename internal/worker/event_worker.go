// Package worker implements the async half of the pipeline: JetStream
// consumers that turn queued tasks into stored events, grouped issues, and
// search documents.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/faultline-systems/faultline/internal/dispatch"
	"github.com/faultline-systems/faultline/internal/grouping"
	"github.com/faultline-systems/faultline/internal/logging"
	"github.com/faultline-systems/faultline/internal/messaging"
	"github.com/faultline-systems/faultline/internal/metrics"
	"github.com/faultline-systems/faultline/internal/models"
	"github.com/faultline-systems/faultline/internal/repository"
)

// Indexer mirrors the storage client's document operations so workers can
// run without OpenSearch in tests (and when search is disabled).
type Indexer interface {
	IndexEvent(ctx context.Context, issue *models.Issue, event *models.Event) error
	IndexTransaction(ctx context.Context, tx *models.Transaction) error
}

// EventWorker processes queued error events: dedup insert, issue grouping,
// then best-effort search indexing.
type EventWorker struct {
	repo    repository.Repository
	grouper *grouping.Grouper
	indexer Indexer
	logger  *logging.Logger
	now     func() time.Time
}

// NewEventWorker creates an EventWorker. indexer may be nil when search is
// disabled.
func NewEventWorker(repo repository.Repository, indexer Indexer, logger *logging.Logger) *EventWorker {
	return &EventWorker{
		repo:    repo,
		grouper: grouping.NewGrouper(repo),
		indexer: indexer,
		logger:  logger,
		now:     time.Now,
	}
}

// Handle consumes one queued event task. Messages are always consumed:
// returning nil acks even on processing failure, because a failed event is
// logged and counted rather than redelivered forever.
func (w *EventWorker) Handle(ctx context.Context, msg *messaging.Message) error {
	start := w.now()
	defer func() {
		metrics.TaskDuration.WithLabelValues(dispatch.KindEvent).Observe(w.now().Sub(start).Seconds())
	}()

	var task dispatch.Task
	if err := json.Unmarshal(msg.Data, &task); err != nil {
		metrics.TaskErrors.WithLabelValues(dispatch.KindEvent).Inc()
		w.logger.ErrorContext(ctx, "dropping undecodable event task", logging.Err(err))
		return nil
	}

	if err := w.process(ctx, &task); err != nil {
		metrics.TaskErrors.WithLabelValues(dispatch.KindEvent).Inc()
		w.logger.ErrorContext(ctx, "event task failed",
			logging.EventID(task.EventID),
			logging.ProjectID(task.ProjectID),
			logging.Err(err),
		)
	}
	return nil
}

func (w *EventWorker) process(ctx context.Context, task *dispatch.Task) error {
	event := &models.Event{
		EventID:    task.EventID,
		ProjectID:  task.ProjectID,
		Payload:    task.Payload,
		ReceivedAt: w.now().UTC(),
	}

	// The insert is the idempotency gate: a redelivered event_id stops here
	// without touching issue counts.
	if err := w.repo.InsertEvent(ctx, event); err != nil {
		if errors.Is(err, repository.ErrDuplicateEvent) {
			metrics.DuplicateEvents.Inc()
			w.logger.DebugContext(ctx, "dropping duplicate event",
				logging.EventID(task.EventID),
			)
			return nil
		}
		return fmt.Errorf("insert event: %w", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return fmt.Errorf("decode event payload: %w", err)
	}

	project := &models.Project{ID: task.ProjectID, Slug: task.ProjectSlug}
	issue, err := w.grouper.GroupEvent(ctx, payload, project)
	if err != nil {
		return err
	}

	if err := w.repo.LinkEventToIssue(ctx, event.EventID, issue.ID); err != nil {
		return err
	}
	event.IssueID = issue.ID

	w.logger.InfoContext(ctx, "event processed",
		logging.EventID(event.EventID),
		logging.ProjectID(event.ProjectID),
		logging.Fingerprint(issue.Fingerprint),
		"issue_id", issue.ID,
		"issue_count", issue.Count,
	)

	if w.indexer != nil {
		if err := w.indexer.IndexEvent(ctx, issue, event); err != nil {
			// Search lag is acceptable; Postgres already has the event.
			w.logger.WarnContext(ctx, "event search indexing failed",
				logging.EventID(event.EventID),
				logging.Err(err),
			)
		}
	}

	return nil
}
