package cli

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/faultline-systems/faultline/internal/auth"
	"github.com/faultline-systems/faultline/internal/config"
	"github.com/faultline-systems/faultline/internal/dispatch"
	"github.com/faultline-systems/faultline/internal/handlers"
	"github.com/faultline-systems/faultline/internal/logging"
	natsclient "github.com/faultline-systems/faultline/internal/messaging/nats"
	"github.com/faultline-systems/faultline/internal/ratelimit"
	"github.com/faultline-systems/faultline/internal/repository"
	"github.com/faultline-systems/faultline/internal/server"
	"github.com/faultline-systems/faultline/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP envelope ingest server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("serve"))
	logging.SetDefault(logger)

	slog.Info("Starting ingest server",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Logging.Level),
		slog.String("log_format", cfg.Logging.Format),
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

	authenticator := auth.NewAuthenticator(repo, cfg.Auth.ProjectCacheTTL)

	// Rate limiter falls back to no-op when Redis is unavailable; dropping
	// envelopes because the limiter is down would be worse than not limiting.
	var rateLimiter ratelimit.RateLimiter
	if cfg.Redis.Enabled && cfg.Ingestion.RateLimitEnabled {
		limiter, err := ratelimit.NewRedisRateLimiter(
			cfg.Redis.URL,
			cfg.Ingestion.RateLimitRequests,
			cfg.Ingestion.RateLimitWindow,
			false,
		)
		if err != nil {
			slog.Warn("Failed to initialize Redis rate limiter, continuing without rate limiting",
				logging.Err(err))
			rateLimiter = &ratelimit.NoOpRateLimiter{}
		} else {
			rateLimiter = limiter
			slog.Info("Rate limiting enabled",
				slog.Int("requests", cfg.Ingestion.RateLimitRequests),
				slog.Duration("window", cfg.Ingestion.RateLimitWindow),
			)
		}
	} else {
		rateLimiter = &ratelimit.NoOpRateLimiter{}
		slog.Info("Rate limiting disabled")
	}
	defer rateLimiter.Close()

	natsCfg := natsclient.DefaultConfig()
	natsCfg.URL = cfg.NATS.URL
	natsCfg.Name = "faultline-serve"
	jsClient, err := natsclient.NewJetStreamClient(natsCfg)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer jsClient.Close()

	// The server creates the stream too, so tasks published before any
	// worker has started are retained rather than dropped.
	if _, err := jsClient.CreateOrUpdateStream(context.Background(), natsclient.IngestTasksStream); err != nil {
		return fmt.Errorf("create ingest stream: %w", err)
	}

	dispatcher := dispatch.New(jsClient, logger)
	ingestService := service.NewIngestService(dispatcher, logger)
	handler := handlers.NewEnvelopeHandler(authenticator, ingestService, rateLimiter, logger)
	router := server.NewRouter(handler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Printf("Ingest server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}

	slog.Info("Server stopped")
	return nil
}
