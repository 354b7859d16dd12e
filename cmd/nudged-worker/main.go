package main

import (
	"context"
	"errors"
	"os"
	"time"

	"nudged/internal/cli"
	"nudged/internal/ingest"
	"nudged/internal/log"
	"nudged/internal/rules"
	"nudged/internal/services"
	"nudged/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting nudged-worker", log.FieldOperation, log.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	amqpClient := cli.ConnectAMQP(logger, cfg)
	if amqpClient == nil {
		logger.Error("AMQP URL is required for the worker")
		os.Exit(1)
	}
	defer amqpClient.Close()

	reader := ingest.NewReader(rules.NewCategorizer(rules.DefaultCategoryRules()))
	engine := rules.NewEngine(cfg.Thresholds(), logger.WithComponent(log.ComponentRules).Logger)
	svc := services.NewInsightService(repo, repo, reader, engine, nil,
		logger.WithComponent(log.ComponentService))

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	refresh := worker.New(amqpClient, svc, logger)
	if err := refresh.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
}
