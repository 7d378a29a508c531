package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/faultline-systems/faultline/internal/dispatch"
	"github.com/faultline-systems/faultline/internal/jsonmap"
	"github.com/faultline-systems/faultline/internal/logging"
	"github.com/faultline-systems/faultline/internal/messaging"
	"github.com/faultline-systems/faultline/internal/metrics"
	"github.com/faultline-systems/faultline/internal/models"
	"github.com/faultline-systems/faultline/internal/performance"
	"github.com/faultline-systems/faultline/internal/repository"
)

// TransactionWorker processes queued transactions: timing extraction and
// query-pattern analysis merged into the stored measurements.
type TransactionWorker struct {
	repo    repository.TransactionStore
	indexer Indexer
	logger  *logging.Logger
	now     func() time.Time
}

// NewTransactionWorker creates a TransactionWorker. indexer may be nil when
// search is disabled.
func NewTransactionWorker(repo repository.TransactionStore, indexer Indexer, logger *logging.Logger) *TransactionWorker {
	return &TransactionWorker{
		repo:    repo,
		indexer: indexer,
		logger:  logger,
		now:     time.Now,
	}
}

// Handle consumes one queued transaction task. Like the event worker, it
// always acks: transaction data is best effort.
func (w *TransactionWorker) Handle(ctx context.Context, msg *messaging.Message) error {
	start := w.now()
	defer func() {
		metrics.TaskDuration.WithLabelValues(dispatch.KindTransaction).Observe(w.now().Sub(start).Seconds())
	}()

	var task dispatch.Task
	if err := json.Unmarshal(msg.Data, &task); err != nil {
		metrics.TaskErrors.WithLabelValues(dispatch.KindTransaction).Inc()
		w.logger.ErrorContext(ctx, "dropping undecodable transaction task", logging.Err(err))
		return nil
	}

	if err := w.process(ctx, &task); err != nil {
		metrics.TaskErrors.WithLabelValues(dispatch.KindTransaction).Inc()
		w.logger.ErrorContext(ctx, "transaction task failed",
			logging.EventID(task.EventID),
			logging.ProjectID(task.ProjectID),
			logging.Err(err),
		)
	}
	return nil
}

func (w *TransactionWorker) process(ctx context.Context, task *dispatch.Task) error {
	var payload map[string]any
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return fmt.Errorf("decode transaction payload: %w", err)
	}

	timings := performance.ExtractTimings(payload)
	analysis := performance.AnalyzeQueries(payload)

	measurements, err := buildMeasurements(payload, timings, analysis)
	if err != nil {
		return err
	}

	tx := &models.Transaction{
		ID:           task.EventID,
		ProjectID:    task.ProjectID,
		Name:         jsonmap.String(payload, "transaction"),
		DurationMS:   transactionDurationMS(payload),
		Measurements: measurements,
		Payload:      task.Payload,
		ReceivedAt:   w.now().UTC(),
	}

	if err := w.repo.InsertTransaction(ctx, tx); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	w.logger.InfoContext(ctx, "transaction processed",
		logging.EventID(tx.ID),
		logging.ProjectID(tx.ProjectID),
		"transaction_name", tx.Name,
		"total_queries", analysis.TotalQueries,
		"n_plus_one_patterns", len(analysis.Flagged),
	)

	if w.indexer != nil {
		if err := w.indexer.IndexTransaction(ctx, tx); err != nil {
			w.logger.WarnContext(ctx, "transaction search indexing failed",
				logging.EventID(tx.ID),
				logging.Err(err),
			)
		}
	}

	return nil
}

// buildMeasurements merges the derived timings and query analysis into the
// payload's measurements block.
func buildMeasurements(payload map[string]any, timings performance.Timings, analysis *performance.QueryAnalysis) (json.RawMessage, error) {
	merged := make(map[string]any)
	for k, v := range jsonmap.Map(payload, "measurements") {
		merged[k] = v
	}

	if timings.DBMS != nil {
		merged["db"] = map[string]any{"value": *timings.DBMS}
	}
	if timings.ViewMS != nil {
		merged["view"] = map[string]any{"value": *timings.ViewMS}
	}
	if analysis.TotalQueries > 0 {
		merged["queries"] = analysis
	}

	if len(merged) == 0 {
		return nil, nil
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encode measurements: %w", err)
	}
	return data, nil
}

// transactionDurationMS derives the whole-transaction duration from the
// top-level start/end timestamps.
func transactionDurationMS(payload map[string]any) *int64 {
	start, ok := jsonmap.Float(payload, "start_timestamp")
	if !ok {
		return nil
	}
	end, ok := jsonmap.Float(payload, "timestamp")
	if !ok {
		return nil
	}
	ms := int64((end - start) * 1000)
	if ms <= 0 {
		return nil
	}
	return &ms
}
