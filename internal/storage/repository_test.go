package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"nudged/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleTxns() []core.Transaction {
	return []core.Transaction{
		{PostedAt: core.NewDate(2025, 10, 1), MerchantRaw: "UBEREATS", MerchantNorm: "Ubereats", Category: "Food Delivery", AmountCents: 3500, Channel: "card"},
		{PostedAt: core.NewDate(2025, 10, 5), MerchantRaw: "SAFEWAY #123", MerchantNorm: "Safeway", Category: "Groceries", AmountCents: 8210},
	}
}

func TestInsertAndListTransactions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	n, err := repo.InsertTransactions(ctx, sampleTxns())
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if n != 2 {
		t.Fatalf("inserted = %d", n)
	}

	got, err := repo.ListMonth(ctx, core.Month{Year: 2025, Month: 10})
	if err != nil {
		t.Fatalf("list month: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("rows = %d", len(got))
	}
	if got[0].MerchantRaw != "UBEREATS" || got[0].AmountCents != 3500 {
		t.Fatalf("first row = %+v", got[0])
	}
	if got[0].PostedAt != core.NewDate(2025, 10, 1) {
		t.Fatalf("posted_at round-trip: %v", got[0].PostedAt)
	}

	other, err := repo.ListMonth(ctx, core.Month{Year: 2025, Month: 9})
	if err != nil {
		t.Fatalf("list other month: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("month filter leaked: %+v", other)
	}
}

func TestReplaceMonth(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.InsertTransactions(ctx, sampleTxns()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// A row in another month must survive the replace.
	september := core.Transaction{PostedAt: core.NewDate(2025, 9, 30), MerchantRaw: "OLD", AmountCents: 100}
	if _, err := repo.InsertTransactions(ctx, []core.Transaction{september}); err != nil {
		t.Fatalf("seed september: %v", err)
	}

	replacement := []core.Transaction{
		{PostedAt: core.NewDate(2025, 10, 2), MerchantRaw: "NEW", MerchantNorm: "New", Category: "Other", AmountCents: 500},
	}
	n, err := repo.ReplaceMonth(ctx, core.Month{Year: 2025, Month: 10}, replacement)
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if n != 1 {
		t.Fatalf("inserted = %d", n)
	}

	october, err := repo.ListMonth(ctx, core.Month{Year: 2025, Month: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(october) != 1 || october[0].MerchantRaw != "NEW" {
		t.Fatalf("october after replace: %+v", october)
	}

	all, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("september row lost: %+v", all)
	}
}

func TestUpsertPendingNudge(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first, err := repo.UpsertPendingNudge(ctx, core.Suggestion{
		Type:        "delivery_cap",
		Message:     "first message",
		TriggeredBy: map[string]any{"delivery_cents": float64(7000)},
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if first.Status != core.StatusPending {
		t.Fatalf("status = %q", first.Status)
	}

	second, err := repo.UpsertPendingNudge(ctx, core.Suggestion{
		Type:    "delivery_cap",
		Message: "updated message",
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("pending nudge duplicated: %d then %d", first.ID, second.ID)
	}
	if second.Message != "updated message" {
		t.Fatalf("message not overwritten: %q", second.Message)
	}

	nudges, err := repo.ListNudges(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(nudges) != 1 {
		t.Fatalf("nudge count = %d", len(nudges))
	}
}

func TestUpsertAfterResolutionCreatesNewPending(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first, err := repo.UpsertPendingNudge(ctx, core.Suggestion{Type: "burn_rate", Message: "m1"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.UpdateNudgeStatus(ctx, first.ID, core.StatusDismissed); err != nil {
		t.Fatalf("dismiss: %v", err)
	}

	// Once resolved, the type is free for a fresh pending nudge.
	second, err := repo.UpsertPendingNudge(ctx, core.Suggestion{Type: "burn_rate", Message: "m2"})
	if err != nil {
		t.Fatalf("upsert after dismiss: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("dismissed nudge was resurrected")
	}

	nudges, err := repo.ListNudges(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(nudges) != 2 {
		t.Fatalf("nudge count = %d", len(nudges))
	}
}

func TestUpdateNudgeStatus(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	n, err := repo.UpsertPendingNudge(ctx, core.Suggestion{Type: "coffee_swap", Message: "m"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := repo.UpdateNudgeStatus(ctx, n.ID, core.StatusSent); err != nil {
		t.Fatalf("update: %v", err)
	}

	// Already resolved, a second transition must report not found.
	if err := repo.UpdateNudgeStatus(ctx, n.ID, core.StatusDismissed); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := repo.UpdateNudgeStatus(ctx, 9999, core.StatusSent); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing id, got %v", err)
	}

	if err := repo.UpdateNudgeStatus(ctx, n.ID, core.StatusPending); !errors.Is(err, core.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestReset(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.InsertTransactions(ctx, sampleTxns()); err != nil {
		t.Fatalf("seed transactions: %v", err)
	}
	if _, err := repo.UpsertPendingNudge(ctx, core.Suggestion{Type: "delivery_cap", Message: "m"}); err != nil {
		t.Fatalf("seed nudge: %v", err)
	}

	if err := repo.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}

	txns, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	nudges, err := repo.ListNudges(ctx, 10)
	if err != nil {
		t.Fatalf("list nudges: %v", err)
	}
	if len(txns) != 0 || len(nudges) != 0 {
		t.Fatalf("store not empty after reset: %d transactions, %d nudges", len(txns), len(nudges))
	}
}

func TestInsertNudgeEvidenceRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.InsertNudge(ctx, core.Nudge{
		Type:        "custom",
		Message:     "check the budget",
		TriggeredBy: map[string]any{"forecast_cents": float64(130000), "budget_cents": float64(120000)},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := repo.GetNudge(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TriggeredBy["forecast_cents"] != float64(130000) {
		t.Fatalf("evidence round-trip: %+v", got.TriggeredBy)
	}
	if got.Status != core.StatusPending {
		t.Fatalf("default status = %q", got.Status)
	}
}
