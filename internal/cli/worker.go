package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/faultline-systems/faultline/internal/config"
	"github.com/faultline-systems/faultline/internal/logging"
	natsclient "github.com/faultline-systems/faultline/internal/messaging/nats"
	"github.com/faultline-systems/faultline/internal/repository"
	"github.com/faultline-systems/faultline/internal/storage"
	"github.com/faultline-systems/faultline/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the async event and transaction processors",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorker()
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("worker"))
	logging.SetDefault(logger)

	slog.Info("Starting workers",
		slog.String("nats_url", cfg.NATS.URL),
		slog.Bool("opensearch_enabled", cfg.OpenSearch.Enabled),
	)

	if cfg.Database.MigrateOnStart {
		if err := runMigrations(cfg); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	repo, err := repository.NewPostgresRepository(context.Background(), cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer repo.Close()

	// Indexing is best effort; a missing search cluster degrades queries, not
	// ingestion, so failures here only warn.
	var indexer worker.Indexer
	if cfg.OpenSearch.Enabled {
		storageClient, err := storage.NewClient(storage.Config{
			URL:             cfg.OpenSearch.URL,
			Username:        cfg.OpenSearch.Username,
			Password:        cfg.OpenSearch.Password,
			TLSSkipVerify:   cfg.OpenSearch.TLSSkipVerify,
			IndexPrefix:     cfg.OpenSearch.IndexPrefix,
			ShardCount:      cfg.OpenSearch.ShardCount,
			ReplicaCount:    cfg.OpenSearch.ReplicaCount,
			RefreshInterval: cfg.OpenSearch.RefreshInterval,
		})
		if err != nil {
			return fmt.Errorf("create OpenSearch client: %w", err)
		}

		initCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		if err := storageClient.Initialize(initCtx); err != nil {
			slog.Warn("Failed to initialize OpenSearch, events may fail to index",
				logging.Err(err))
		}
		cancel()
		indexer = storageClient
	} else {
		slog.Info("OpenSearch disabled, events will not be indexed for search")
	}

	natsCfg := natsclient.DefaultConfig()
	natsCfg.URL = cfg.NATS.URL
	natsCfg.Name = "faultline-worker"
	jsClient, err := natsclient.NewJetStreamClient(natsCfg)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer jsClient.Close()

	runner := worker.NewRunner(
		jsClient,
		worker.NewEventWorker(repo, indexer, logger),
		worker.NewTransactionWorker(repo, indexer, logger),
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := runner.Start(ctx); err != nil {
		return fmt.Errorf("start workers: %w", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down workers")
	runner.Stop()

	// Drain lets in-flight messages finish before the connection closes.
	if err := jsClient.Drain(); err != nil {
		slog.Warn("Failed to drain NATS connection", logging.Err(err))
	}

	slog.Info("Workers stopped")
	return nil
}
