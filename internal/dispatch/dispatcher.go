// Package dispatch routes parsed envelope items onto the async task bus.
package dispatch

import (
	"context"
	"encoding/json"

	"github.com/faultline-systems/faultline/internal/envelope"
	"github.com/faultline-systems/faultline/internal/logging"
	"github.com/faultline-systems/faultline/internal/messaging"
	"github.com/faultline-systems/faultline/internal/metrics"
	"github.com/faultline-systems/faultline/internal/models"
)

// Task kinds, used for subjects, metrics and worker routing.
const (
	KindEvent       = "event"
	KindTransaction = "transaction"
)

// Task is the queue message handed to async workers. Payload carries the
// item's JSON body verbatim.
type Task struct {
	ProjectID   int64           `json:"project_id"`
	ProjectSlug string          `json:"project_slug"`
	EventID     string          `json:"event_id"`
	Payload     json.RawMessage `json:"payload"`
}

// Result summarizes the per-item outcome of dispatching one envelope.
// Dispatching never fails the envelope; failed items are logged and counted.
type Result struct {
	Accepted int
	Skipped  int
	Failed   int
}

// Dispatcher routes envelope items to their processing queues.
type Dispatcher struct {
	publisher messaging.Publisher
	logger    *logging.Logger
}

// New creates a Dispatcher publishing to the given message bus.
func New(publisher messaging.Publisher, logger *logging.Logger) *Dispatcher {
	return &Dispatcher{
		publisher: publisher,
		logger:    logger,
	}
}

// Dispatch routes every item of the envelope. Items are isolated from each
// other: a bad or unpublishable item never affects its siblings, and the
// caller always gets a Result, never an error.
func (d *Dispatcher) Dispatch(ctx context.Context, project *models.Project, env *envelope.Envelope) Result {
	var res Result

	for i := range env.Items {
		item := &env.Items[i]
		itemType := item.Type()

		switch itemType {
		case envelope.ItemTypeEvent:
			d.dispatchItem(ctx, project, env, item, KindEvent, messaging.SubjectTasksEvent, &res)

		case envelope.ItemTypeTransaction:
			d.dispatchItem(ctx, project, env, item, KindTransaction, messaging.SubjectTasksTransaction, &res)

		case envelope.ItemTypeAttachment, envelope.ItemTypeSession:
			// Recognized but not processed.
			res.Skipped++
			metrics.ItemsTotal.WithLabelValues(itemType, "skipped").Inc()

		default:
			res.Skipped++
			metrics.ItemsTotal.WithLabelValues("unknown", "skipped").Inc()
			d.logger.InfoContext(ctx, "skipping unsupported envelope item",
				logging.ItemType(itemType),
				logging.ProjectID(project.ID),
			)
		}
	}

	return res
}

func (d *Dispatcher) dispatchItem(ctx context.Context, project *models.Project, env *envelope.Envelope, item *envelope.Item, kind, subject string, res *Result) {
	eventID := resolveEventID(env, item)
	if eventID == "" {
		res.Skipped++
		metrics.ItemsTotal.WithLabelValues(kind, "skipped").Inc()
		d.logger.WarnContext(ctx, "skipping item without event id",
			logging.ItemType(kind),
			logging.ProjectID(project.ID),
		)
		return
	}

	payload, err := item.Payload.Bytes()
	if err != nil {
		res.Failed++
		metrics.ItemsTotal.WithLabelValues(kind, "failed").Inc()
		d.logger.ErrorContext(ctx, "failed to serialize item payload",
			logging.ItemType(kind),
			logging.EventID(eventID),
			logging.Err(err),
		)
		return
	}

	task := Task{
		ProjectID:   project.ID,
		ProjectSlug: project.Slug,
		EventID:     eventID,
		Payload:     payload,
	}

	data, err := json.Marshal(task)
	if err != nil {
		res.Failed++
		metrics.ItemsTotal.WithLabelValues(kind, "failed").Inc()
		metrics.TasksPublished.WithLabelValues(kind, "error").Inc()
		d.logger.ErrorContext(ctx, "failed to encode task",
			logging.ItemType(kind),
			logging.EventID(eventID),
			logging.Err(err),
		)
		return
	}

	if err := d.publisher.Publish(ctx, subject, data); err != nil {
		// Publish failures are swallowed: the client already got its ack
		// and retrying the whole envelope would multiply the damage.
		res.Failed++
		metrics.ItemsTotal.WithLabelValues(kind, "failed").Inc()
		metrics.TasksPublished.WithLabelValues(kind, "error").Inc()
		d.logger.ErrorContext(ctx, "failed to publish task",
			logging.ItemType(kind),
			logging.EventID(eventID),
			logging.ProjectID(project.ID),
			logging.Err(err),
		)
		return
	}

	res.Accepted++
	metrics.ItemsTotal.WithLabelValues(kind, "accepted").Inc()
	metrics.TasksPublished.WithLabelValues(kind, "ok").Inc()
}

// resolveEventID prefers the id embedded in the item payload and falls back
// to the envelope header.
func resolveEventID(env *envelope.Envelope, item *envelope.Item) string {
	if obj, ok := item.Payload.Object(); ok {
		if id, ok := obj["event_id"].(string); ok && id != "" {
			return id
		}
	}
	return env.EventID()
}
