package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"nudged/internal/cli"
	apphttp "nudged/internal/http"
	"nudged/internal/ingest"
	"nudged/internal/log"
	"nudged/internal/rules"
	"nudged/internal/services"
	"nudged/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	amqpClient := cli.ConnectAMQP(logger, cfg)
	if amqpClient != nil {
		defer amqpClient.Close()
	}

	reader := ingest.NewReader(rules.NewCategorizer(rules.DefaultCategoryRules()))
	engine := rules.NewEngine(cfg.Thresholds(), logger.WithComponent(log.ComponentRules).Logger)

	var publisher services.EventPublisher
	if amqpClient != nil {
		publisher = amqpClient
	}
	svc := services.NewInsightService(repo, repo, reader, engine, publisher,
		logger.WithComponent(log.ComponentService))

	srv := apphttp.NewServer(":"+cfg.Port, svc, logger.WithComponent(log.ComponentHTTP))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting nudged server",
			log.FieldOperation, log.OpStartup,
			"port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Consume import events in-process so nudges refresh even when the
	// dedicated worker is not deployed.
	if amqpClient != nil {
		refresh := worker.New(amqpClient, svc, logger.WithComponent(log.ComponentWorker))
		g.Go(func() error {
			if err := refresh.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully", log.FieldOperation, log.OpShutdown)
}
