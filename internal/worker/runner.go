package worker

import (
	"context"
	"fmt"

	"github.com/faultline-systems/faultline/internal/logging"
	"github.com/faultline-systems/faultline/internal/messaging"
	natsclient "github.com/faultline-systems/faultline/internal/messaging/nats"
)

// Runner owns the JetStream stream and the durable consumers for both task
// kinds.
type Runner struct {
	client      *natsclient.JetStreamClient
	eventWorker *EventWorker
	txWorker    *TransactionWorker
	logger      *logging.Logger
	stops       []func()
}

// NewRunner creates a Runner.
func NewRunner(client *natsclient.JetStreamClient, eventWorker *EventWorker, txWorker *TransactionWorker, logger *logging.Logger) *Runner {
	return &Runner{
		client:      client,
		eventWorker: eventWorker,
		txWorker:    txWorker,
		logger:      logger,
	}
}

// Start provisions the task stream and consumers, then begins consuming.
func (r *Runner) Start(ctx context.Context) error {
	stream := natsclient.IngestTasksStream
	if _, err := r.client.CreateOrUpdateStream(ctx, stream); err != nil {
		return fmt.Errorf("provision stream: %w", err)
	}

	consumers := []struct {
		name    string
		subject string
		handler messaging.MessageHandler
	}{
		{messaging.ConsumerEventWorkers, messaging.SubjectTasksEvent, r.eventWorker.Handle},
		{messaging.ConsumerTransactionWorkers, messaging.SubjectTasksTransaction, r.txWorker.Handle},
	}

	for _, c := range consumers {
		cfg := natsclient.DefaultConsumerConfig(c.name, c.subject)
		if _, err := r.client.CreateOrUpdateConsumer(ctx, stream.Name, cfg); err != nil {
			return fmt.Errorf("provision consumer %s: %w", c.name, err)
		}

		stop, err := r.client.ConsumeMessages(ctx, stream.Name, c.name, c.handler)
		if err != nil {
			r.Stop()
			return fmt.Errorf("start consumer %s: %w", c.name, err)
		}
		r.stops = append(r.stops, stop)

		r.logger.InfoContext(ctx, "consumer started",
			"consumer", c.name,
			"subject", c.subject,
		)
	}

	return nil
}

// Stop halts all consumers.
func (r *Runner) Stop() {
	for _, stop := range r.stops {
		stop()
	}
	r.stops = nil
}
