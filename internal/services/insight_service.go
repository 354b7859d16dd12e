// Package services orchestrates ingest, storage, the rules pipeline, and
// event publication.
package services

import (
	"context"
	"fmt"
	"io"

	"nudged/internal/core"
	"nudged/internal/ingest"
	"nudged/internal/log"
	"nudged/internal/rules"
)

const (
	// ModeReplace wipes the target month before inserting, inside one
	// store transaction.
	ModeReplace = "replace"

	maxTransactionList = 500
	maxNudgeList       = 100
)

// TransactionStore is the slice of the repository the service needs for
// statement rows.
type TransactionStore interface {
	InsertTransactions(ctx context.Context, txns []core.Transaction) (int, error)
	ReplaceMonth(ctx context.Context, month core.Month, txns []core.Transaction) (int, error)
	ListMonth(ctx context.Context, month core.Month) ([]core.Transaction, error)
	ListAll(ctx context.Context) ([]core.Transaction, error)
	ListRecent(ctx context.Context, limit int) ([]core.Transaction, error)
}

// NudgeStore is the slice of the repository the service needs for nudges.
type NudgeStore interface {
	UpsertPendingNudge(ctx context.Context, s core.Suggestion) (core.Nudge, error)
	InsertNudge(ctx context.Context, n core.Nudge) (core.Nudge, error)
	ListNudges(ctx context.Context, limit int) ([]core.Nudge, error)
	UpdateNudgeStatus(ctx context.Context, id int64, status core.NudgeStatus) error
}

// EventPublisher announces finished imports. May be absent when AMQP is
// not configured.
type EventPublisher interface {
	PublishImportCompleted(ctx context.Context, month core.Month, rows int) error
}

// ImportResult summarizes one statement upload.
type ImportResult struct {
	Created int    `json:"created"`
	Mode    string `json:"mode,omitempty"`
	Month   string `json:"month,omitempty"`
}

// InsightService wires the pipeline together: CSV rows in, categorized
// storage, insights and nudges out.
type InsightService struct {
	txStore    TransactionStore
	nudgeStore NudgeStore
	reader     *ingest.Reader
	engine     *rules.Engine
	publisher  EventPublisher
	logger     *log.Logger
}

func NewInsightService(
	txStore TransactionStore,
	nudgeStore NudgeStore,
	reader *ingest.Reader,
	engine *rules.Engine,
	publisher EventPublisher,
	logger *log.Logger,
) *InsightService {
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentService)
	}
	return &InsightService{
		txStore:    txStore,
		nudgeStore: nudgeStore,
		reader:     reader,
		engine:     engine,
		publisher:  publisher,
		logger:     logger,
	}
}

// ImportCSV parses, categorizes, and stores an uploaded statement. With
// ModeReplace and a month, the month's rows are swapped atomically.
// A successful import publishes an import-completed event; publish
// failures are logged but never fail the request, the rows are already
// durable.
func (s *InsightService) ImportCSV(ctx context.Context, src io.Reader, mode string, month core.Month) (ImportResult, error) {
	txns, err := s.reader.Read(src)
	if err != nil {
		return ImportResult{}, fmt.Errorf("parse csv: %w", err)
	}

	var created int
	if mode == ModeReplace && !month.IsZero() {
		created, err = s.txStore.ReplaceMonth(ctx, month, txns)
	} else {
		created, err = s.txStore.InsertTransactions(ctx, txns)
	}
	if err != nil {
		return ImportResult{}, fmt.Errorf("store transactions: %w", err)
	}

	result := ImportResult{Created: created, Mode: mode}
	eventMonth := month
	if eventMonth.IsZero() && len(txns) > 0 {
		posted := txns[0].PostedAt
		eventMonth = core.Month{Year: posted.Year(), Month: int(posted.Month())}
	}
	if !eventMonth.IsZero() {
		result.Month = eventMonth.String()
		s.publishImportCompleted(ctx, eventMonth, created)
	}

	s.logger.InfoContext(ctx, "Statement imported",
		log.FieldOperation, log.OpImport,
		log.FieldRows, created,
		"mode", mode)
	return result, nil
}

func (s *InsightService) publishImportCompleted(ctx context.Context, month core.Month, rows int) {
	if s.publisher == nil {
		s.logger.WarnContext(ctx, "Event publisher not available, skipping import event")
		return
	}
	if err := s.publisher.PublishImportCompleted(ctx, month, rows); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish import completed event",
			log.FieldError, err,
			log.FieldMonth, month.String())
	}
}

// Transactions lists stored rows, filtered to a month when one is given,
// capped at 500 otherwise.
func (s *InsightService) Transactions(ctx context.Context, month *core.Month) ([]core.Transaction, error) {
	if month != nil {
		return s.txStore.ListMonth(ctx, *month)
	}
	return s.txStore.ListRecent(ctx, maxTransactionList)
}

// Insights computes the spending snapshot for a month, or for everything
// stored when no month is given.
func (s *InsightService) Insights(ctx context.Context, month *core.Month) (core.Insights, error) {
	txns, err := s.snapshot(ctx, month)
	if err != nil {
		return core.Insights{}, err
	}
	return rules.BuildInsights(txns), nil
}

// RefreshNudges re-runs the engine over a month snapshot and upserts each
// suggestion as the pending nudge of its type. Safe to call repeatedly:
// the same input always yields the same set of pending nudges.
func (s *InsightService) RefreshNudges(ctx context.Context, month *core.Month) ([]core.Nudge, error) {
	txns, err := s.snapshot(ctx, month)
	if err != nil {
		return nil, err
	}

	suggestions := s.engine.SuggestNudges(txns)
	nudges := []core.Nudge{}
	for _, suggestion := range suggestions {
		n, err := s.nudgeStore.UpsertPendingNudge(ctx, suggestion)
		if err != nil {
			return nil, fmt.Errorf("upsert nudge %s: %w", suggestion.Type, err)
		}
		nudges = append(nudges, n)
	}

	s.logger.InfoContext(ctx, "Nudges refreshed",
		log.FieldOperation, log.OpSuggest,
		"suggestions", len(nudges))
	return nudges, nil
}

func (s *InsightService) snapshot(ctx context.Context, month *core.Month) ([]core.Transaction, error) {
	if month != nil {
		return s.txStore.ListMonth(ctx, *month)
	}
	return s.txStore.ListAll(ctx)
}

// CreateNudge stores a manually authored nudge.
func (s *InsightService) CreateNudge(ctx context.Context, n core.Nudge) (core.Nudge, error) {
	return s.nudgeStore.InsertNudge(ctx, n)
}

// Nudges lists stored nudges, newest first.
func (s *InsightService) Nudges(ctx context.Context) ([]core.Nudge, error) {
	return s.nudgeStore.ListNudges(ctx, maxNudgeList)
}

// UpdateNudgeStatus moves a pending nudge to sent or dismissed.
func (s *InsightService) UpdateNudgeStatus(ctx context.Context, id int64, status core.NudgeStatus) error {
	return s.nudgeStore.UpdateNudgeStatus(ctx, id, status)
}
