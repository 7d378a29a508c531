package messaging

// Subject constants for the ingest task bus.
// Follow the pattern: {domain}.{action}.{resource}
const (
	// SubjectTasksEvent carries "process error event" tasks.
	SubjectTasksEvent = "ingest.tasks.event"

	// SubjectTasksTransaction carries "process transaction" tasks.
	SubjectTasksTransaction = "ingest.tasks.transaction"
)

// Queue group names for load-balanced consumers.
// Workers in the same queue group share messages (each message processed once).
const (
	QueueIngestWorkers = "ingest-workers"
)

// Durable consumer names for the ingest task stream.
const (
	ConsumerEventWorkers       = "event-workers"
	ConsumerTransactionWorkers = "transaction-workers"
)
