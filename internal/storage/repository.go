package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"nudged/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row lookup or a guarded update matches
// nothing.
var ErrNotFound = errors.New("not found")

// SQLiteRepository is the transaction and nudge store.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// InsertTransactions appends categorized rows in a single SQL transaction.
func (r *SQLiteRepository) InsertTransactions(ctx context.Context, txns []core.Transaction) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	inserted, err := insertAll(ctx, tx, txns)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transactions inserted", "rows", inserted)
	return inserted, nil
}

// ReplaceMonth deletes a month's rows and inserts the replacements as one
// all-or-nothing SQL transaction, so readers never observe the gap.
func (r *SQLiteRepository) ReplaceMonth(ctx context.Context, month core.Month, txns []core.Transaction) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM transactions WHERE posted_at >= ? AND posted_at < ?`,
		month.Start().String(), month.Next().String())
	if err != nil {
		return 0, fmt.Errorf("delete month: %w", err)
	}
	deleted, _ := res.RowsAffected()

	inserted, err := insertAll(ctx, tx, txns)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Month replaced",
		"month", month.String(), "deleted", deleted, "rows", inserted)
	return inserted, nil
}

func insertAll(ctx context.Context, tx *sql.Tx, txns []core.Transaction) (int, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions
			(posted_at, merchant_raw, merchant_norm, category, amount_cents, city, channel, memo, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, t := range txns {
		if _, err := stmt.ExecContext(ctx,
			t.PostedAt.String(), t.MerchantRaw, t.MerchantNorm, t.Category,
			t.AmountCents, t.City, t.Channel, t.Memo, now); err != nil {
			return 0, fmt.Errorf("insert transaction: %w", err)
		}
	}
	return len(txns), nil
}

const transactionColumns = `id, posted_at, merchant_raw, merchant_norm, category, amount_cents, city, channel, memo`

// ListMonth returns a month's transactions ordered by posted date then id,
// the order the insight aggregator expects.
func (r *SQLiteRepository) ListMonth(ctx context.Context, month core.Month) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE posted_at >= ? AND posted_at < ?
		ORDER BY posted_at, id`,
		month.Start().String(), month.Next().String())
	if err != nil {
		return nil, fmt.Errorf("query month: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// ListAll returns every transaction ordered by posted date then id.
func (r *SQLiteRepository) ListAll(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		ORDER BY posted_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// ListRecent returns the oldest-first transaction listing capped at limit,
// used when no month filter is given.
func (r *SQLiteRepository) ListRecent(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		ORDER BY posted_at, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func scanTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	txns := []core.Transaction{}
	for rows.Next() {
		var (
			t      core.Transaction
			posted string
		)
		if err := rows.Scan(&t.ID, &posted, &t.MerchantRaw, &t.MerchantNorm,
			&t.Category, &t.AmountCents, &t.City, &t.Channel, &t.Memo); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		date, err := core.ParseDate(posted)
		if err != nil {
			return nil, fmt.Errorf("parse posted_at %q: %w", posted, err)
		}
		t.PostedAt = date
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txns, nil
}

// UpsertPendingNudge creates or updates the pending nudge of the
// suggestion's type. Message and evidence are overwritten on match, so
// re-running the engine never piles up duplicate pending nudges.
func (r *SQLiteRepository) UpsertPendingNudge(ctx context.Context, s core.Suggestion) (core.Nudge, error) {
	evidence, err := json.Marshal(s.TriggeredBy)
	if err != nil {
		return core.Nudge{}, fmt.Errorf("marshal triggered_by: %w", err)
	}

	now := time.Now().UTC()
	var id int64
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO nudges (type, message, triggered_by, status, created_at, updated_at)
		VALUES (?, ?, ?, 'pending', ?, ?)
		ON CONFLICT (type) WHERE status = 'pending' DO UPDATE SET
			message = excluded.message,
			triggered_by = excluded.triggered_by,
			updated_at = excluded.updated_at
		RETURNING id`,
		s.Type, s.Message, string(evidence),
		now.Format(time.RFC3339), now.Format(time.RFC3339)).Scan(&id)
	if err != nil {
		return core.Nudge{}, fmt.Errorf("upsert nudge: %w", err)
	}

	return r.GetNudge(ctx, id)
}

// InsertNudge creates a nudge record directly, for manual API creation.
func (r *SQLiteRepository) InsertNudge(ctx context.Context, n core.Nudge) (core.Nudge, error) {
	if n.Status == "" {
		n.Status = core.StatusPending
	}
	if err := n.Status.Validate(); err != nil {
		return core.Nudge{}, err
	}
	evidence, err := json.Marshal(n.TriggeredBy)
	if err != nil {
		return core.Nudge{}, fmt.Errorf("marshal triggered_by: %w", err)
	}

	now := time.Now().UTC()
	var id int64
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO nudges (type, message, triggered_by, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`,
		n.Type, n.Message, string(evidence), string(n.Status),
		now.Format(time.RFC3339), now.Format(time.RFC3339)).Scan(&id)
	if err != nil {
		return core.Nudge{}, fmt.Errorf("insert nudge: %w", err)
	}

	return r.GetNudge(ctx, id)
}

func (r *SQLiteRepository) GetNudge(ctx context.Context, id int64) (core.Nudge, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, type, message, triggered_by, status, created_at
		FROM nudges WHERE id = ?`, id)
	n, err := scanNudge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Nudge{}, ErrNotFound
	}
	return n, err
}

// ListNudges returns nudges newest first, capped at limit.
func (r *SQLiteRepository) ListNudges(ctx context.Context, limit int) ([]core.Nudge, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, message, triggered_by, status, created_at
		FROM nudges
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query nudges: %w", err)
	}
	defer rows.Close()

	nudges := []core.Nudge{}
	for rows.Next() {
		n, err := scanNudge(rows)
		if err != nil {
			return nil, err
		}
		nudges = append(nudges, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nudges: %w", err)
	}
	return nudges, nil
}

// UpdateNudgeStatus moves a pending nudge to sent or dismissed. Records
// that already left pending are not touched.
func (r *SQLiteRepository) UpdateNudgeStatus(ctx context.Context, id int64, status core.NudgeStatus) error {
	if status != core.StatusSent && status != core.StatusDismissed {
		return core.ErrInvalidStatus
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE nudges
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'`,
		string(status), time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("update nudge status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	slog.InfoContext(ctx, "Nudge status updated", "id", id, "status", string(status))
	return nil
}

// Reset wipes all transactions and nudges. Dev tooling only.
func (r *SQLiteRepository) Reset(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
		return fmt.Errorf("reset transactions: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM nudges`); err != nil {
		return fmt.Errorf("reset nudges: %w", err)
	}
	slog.WarnContext(ctx, "Store reset: all transactions and nudges deleted")
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNudge(row rowScanner) (core.Nudge, error) {
	var (
		n         core.Nudge
		evidence  string
		status    string
		createdAt string
	)
	if err := row.Scan(&n.ID, &n.Type, &n.Message, &evidence, &status, &createdAt); err != nil {
		return core.Nudge{}, err
	}
	if err := json.Unmarshal([]byte(evidence), &n.TriggeredBy); err != nil {
		return core.Nudge{}, fmt.Errorf("unmarshal triggered_by: %w", err)
	}
	n.Status = core.NudgeStatus(status)
	if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
		n.CreatedAt = ts
	}
	return n, nil
}
