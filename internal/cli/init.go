// Package cli provides common initialization shared by cmd/nudged and
// cmd/nudged-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"nudged/internal/amqp"
	"nudged/internal/config"
	"nudged/internal/log"
	"nudged/internal/storage"
)

// SetupLogger initializes structured logging and sets it as the default.
func SetupLogger(component string) *log.Logger {
	logger := log.New(log.DefaultConfig()).WithComponent(component)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite runs migrations and opens the repository.
// Returns the repository or exits the process on failure.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository",
			log.FieldError, err,
			"path", dbPath)
		os.Exit(1)
	}
	return repo
}

// ConnectAMQP dials RabbitMQ and declares the exchange and queue. A nil
// client is returned when no URL is configured; callers run without
// events in that case.
func ConnectAMQP(logger *log.Logger, cfg *config.Config) *amqp.Client {
	if cfg.AMQPURL == "" {
		logger.Warn("AMQP URL not configured, import events disabled")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to connect to AMQP",
			log.FieldError, err,
			"url", cfg.AMQPURL)
		os.Exit(1)
	}
	return client
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context cancelled on SIGINT/SIGTERM and a channel closed
// once cleanup has run.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received",
			log.FieldOperation, log.OpShutdown,
			"signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup()
		}

		cancel()

		select {
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		case <-time.After(2 * time.Second):
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
