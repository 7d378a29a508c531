// Package service orchestrates the envelope ingestion pipeline: body
// decoding, envelope parsing and validation, and item dispatch.
package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/faultline-systems/faultline/internal/dispatch"
	"github.com/faultline-systems/faultline/internal/envelope"
	"github.com/faultline-systems/faultline/internal/logging"
	"github.com/faultline-systems/faultline/internal/metrics"
	"github.com/faultline-systems/faultline/internal/models"
	"github.com/faultline-systems/faultline/internal/transport"
)

// Result reports what happened to one accepted envelope.
type Result struct {
	// EventID is the id echoed back to the SDK. When the envelope does not
	// carry one, a fresh id is generated so the client always gets an id.
	EventID string

	// Items is the per-item dispatch outcome.
	Items dispatch.Result
}

// IngestService runs the synchronous half of the pipeline. Everything past
// dispatch happens asynchronously in the workers.
type IngestService struct {
	dispatcher *dispatch.Dispatcher
	logger     *logging.Logger
}

// NewIngestService creates an IngestService.
func NewIngestService(dispatcher *dispatch.Dispatcher, logger *logging.Logger) *IngestService {
	return &IngestService{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// IngestEnvelope processes one authenticated envelope submission.
//
// Error contract (the handler maps these to HTTP statuses):
//   - transport.ErrDecode: undecodable body. The caller should still ack;
//     retrying a corrupt body cannot succeed.
//   - envelope.ErrParse / envelope.ErrValidation: structurally bad envelope.
//   - nil: envelope accepted. Per-item and publish failures never surface
//     here; they are logged and counted inside the dispatcher.
func (s *IngestService) IngestEnvelope(ctx context.Context, project *models.Project, body []byte, contentEncoding string) (*Result, error) {
	decoded, err := transport.Decode(body, contentEncoding)
	if err != nil {
		metrics.DecodeFailures.WithLabelValues(contentEncoding).Inc()
		metrics.EnvelopesTotal.WithLabelValues("decode_failed").Inc()
		s.logger.WarnContext(ctx, "dropping undecodable envelope body",
			logging.ProjectID(project.ID),
			logging.Err(err),
		)
		return nil, fmt.Errorf("decode body: %w", err)
	}
	metrics.EnvelopeBytesTotal.Add(float64(len(decoded)))

	env, err := envelope.Parse(decoded)
	if err != nil {
		metrics.EnvelopesTotal.WithLabelValues("parse_failed").Inc()
		return nil, err
	}

	if err := envelope.Validate(env); err != nil {
		metrics.EnvelopesTotal.WithLabelValues("validation_failed").Inc()
		return nil, err
	}

	items := s.dispatcher.Dispatch(ctx, project, env)
	metrics.EnvelopesTotal.WithLabelValues("accepted").Inc()

	eventID := env.EventID()
	if eventID == "" {
		eventID = uuid.NewString()
	}

	s.logger.InfoContext(ctx, "envelope accepted",
		logging.ProjectID(project.ID),
		logging.EventID(eventID),
		"items_accepted", items.Accepted,
		"items_skipped", items.Skipped,
		"items_failed", items.Failed,
	)

	return &Result{EventID: eventID, Items: items}, nil
}
