// Package worker recomputes nudges whenever a statement import finishes.
package worker

import (
	"context"
	"fmt"

	"nudged/internal/amqp"
	"nudged/internal/core"
	"nudged/internal/log"
)

// NudgeRefresher re-runs the rule engine for a month.
type NudgeRefresher interface {
	RefreshNudges(ctx context.Context, month *core.Month) ([]core.Nudge, error)
}

// Consumer delivers import-completed messages until the context ends.
type Consumer interface {
	ConsumeImportCompleted(ctx context.Context, handler func(*amqp.ImportCompletedMessage) error) error
}

// Worker listens for import-completed events and refreshes the month's
// nudges. A handler error requeues the message, so refreshes survive
// transient store failures.
type Worker struct {
	consumer Consumer
	service  NudgeRefresher
	logger   *log.Logger
}

func New(consumer Consumer, service NudgeRefresher, logger *log.Logger) *Worker {
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentWorker)
	}
	return &Worker{
		consumer: consumer,
		service:  service,
		logger:   logger,
	}
}

// Run blocks consuming messages until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Worker started", log.FieldOperation, log.OpStartup)
	return w.consumer.ConsumeImportCompleted(ctx, func(msg *amqp.ImportCompletedMessage) error {
		return w.handle(ctx, msg)
	})
}

func (w *Worker) handle(ctx context.Context, msg *amqp.ImportCompletedMessage) error {
	month := msg.MonthKey()
	nudges, err := w.service.RefreshNudges(ctx, &month)
	if err != nil {
		return fmt.Errorf("refresh nudges for %s: %w", month.String(), err)
	}

	w.logger.InfoContext(ctx, "Nudges refreshed after import",
		log.FieldOperation, log.OpSuggest,
		log.FieldMonth, month.String(),
		log.FieldRows, msg.Rows,
		"suggestions", len(nudges))
	return nil
}
