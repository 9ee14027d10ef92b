package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"spendwise/internal/core"
)

// Repository is the database/sql backed Store used for both SQLite and MySQL.
type Repository struct {
	db      *sql.DB
	queries *Queries
	dialect Dialect
	now     func() time.Time
}

var _ Store = (*Repository)(nil)

// Open connects with dialect's driver, checks the connection and applies
// pending migrations on a separate connection.
func Open(dialect Dialect, dsn string) (*Repository, error) {
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return NewRepository(db, dialect), nil
}

// NewRepository wraps an already migrated database.
func NewRepository(db *sql.DB, dialect Dialect) *Repository {
	return &Repository{
		db:      db,
		queries: New(db),
		dialect: dialect,
		now:     time.Now,
	}
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return &core.StorageError{Op: "ping", Err: err}
	}
	return nil
}

// Ingest deletes the plan's replace scope and inserts its rows in a single
// database transaction.
func (r *Repository) Ingest(ctx context.Context, plan IngestPlan) (IngestResult, error) {
	if err := plan.Validate(); err != nil {
		return IngestResult{}, err
	}

	var result IngestResult
	err := r.inTx(ctx, func(q *Queries) error {
		for _, m := range plan.ReplaceScope() {
			n, err := q.DeleteTransactionsByMonth(ctx, m.String())
			if err != nil {
				return fmt.Errorf("delete month %s: %w", m, err)
			}
			result.Deleted += int(n)
		}

		createdAt := r.now().UTC().Format(time.RFC3339Nano)
		for _, t := range plan.Rows {
			if err := q.InsertTransaction(ctx, toTransactionRow(t, createdAt)); err != nil {
				return fmt.Errorf("insert transaction %s: %w", t.ID, err)
			}
		}
		result.Created = len(plan.Rows)
		return q.BumpRevision(ctx)
	})
	if err != nil {
		return IngestResult{}, &core.StorageError{Op: "ingest", Err: err}
	}
	result.Months = plan.TouchedMonths()

	slog.InfoContext(ctx, "Transactions ingested",
		"dialect", r.dialect,
		"mode", plan.Mode,
		"created", result.Created,
		"deleted", result.Deleted,
		"months", len(result.Months))

	return result, nil
}

func (r *Repository) Query(ctx context.Context, p core.Period) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactionsBetween(ctx, p.From.String(), p.To.String())
	if err != nil {
		return nil, &core.StorageError{Op: "query", Err: err}
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := fromTransactionRow(row)
		if err != nil {
			return nil, &core.StorageError{Op: "query", Err: err}
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *Repository) Get(ctx context.Context, id string) (core.Transaction, error) {
	row, err := r.queries.GetTransaction(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, &core.NotFoundError{Resource: "transaction", ID: id}
	}
	if err != nil {
		return core.Transaction{}, &core.StorageError{Op: "get transaction", Err: err}
	}
	t, err := fromTransactionRow(row)
	if err != nil {
		return core.Transaction{}, &core.StorageError{Op: "get transaction", Err: err}
	}
	return t, nil
}

func (r *Repository) Recategorize(ctx context.Context, categorize func(merchant string) string) (int, error) {
	changed := 0
	err := r.inTx(ctx, func(q *Queries) error {
		rows, err := q.ListMerchantCategories(ctx)
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		for _, row := range rows {
			category := categorize(row.Merchant)
			if category == row.Category {
				continue
			}
			if err := q.UpdateTransactionCategory(ctx, category, row.ID); err != nil {
				return fmt.Errorf("update transaction %s: %w", row.ID, err)
			}
			changed++
		}
		if changed == 0 {
			return nil
		}
		return q.BumpRevision(ctx)
	})
	if err != nil {
		return 0, &core.StorageError{Op: "recategorize", Err: err}
	}
	return changed, nil
}

// Revision reads the write counter shared by every process on the database.
func (r *Repository) Revision(ctx context.Context) (int64, error) {
	rev, err := r.queries.GetRevision(ctx)
	if err != nil {
		return 0, &core.StorageError{Op: "revision", Err: err}
	}
	return rev, nil
}

func (r *Repository) ReplaceNudges(ctx context.Context, p core.Period, nudges []core.Nudge) error {
	err := r.inTx(ctx, func(q *Queries) error {
		if err := q.SetNudgePeriod(ctx, p.String()); err != nil {
			return fmt.Errorf("record nudge period: %w", err)
		}
		if err := q.DeleteNudges(ctx); err != nil {
			return fmt.Errorf("delete nudges: %w", err)
		}
		for i, n := range nudges {
			row, err := toNudgeRow(i, n)
			if err != nil {
				return err
			}
			if err := q.InsertNudge(ctx, row); err != nil {
				return fmt.Errorf("insert nudge %s: %w", n.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return &core.StorageError{Op: "replace nudges", Err: err}
	}
	return nil
}

func (r *Repository) ListNudges(ctx context.Context) ([]core.Nudge, error) {
	rows, err := r.queries.ListNudges(ctx)
	if err != nil {
		return nil, &core.StorageError{Op: "list nudges", Err: err}
	}
	out := make([]core.Nudge, 0, len(rows))
	for _, row := range rows {
		n, err := fromNudgeRow(row)
		if err != nil {
			return nil, &core.StorageError{Op: "list nudges", Err: err}
		}
		out = append(out, n)
	}
	return out, nil
}

func (r *Repository) NudgePeriod(ctx context.Context) (core.Period, bool, error) {
	raw, err := r.queries.GetNudgePeriod(ctx)
	if err != nil {
		return core.Period{}, false, &core.StorageError{Op: "nudge period", Err: err}
	}
	if raw == "" {
		return core.Period{}, false, nil
	}
	p, err := core.ParsePeriod(raw)
	if err != nil {
		return core.Period{}, false, &core.StorageError{Op: "nudge period", Err: err}
	}
	return p, true, nil
}

// inTx runs fn inside a transaction, rolling back on error.
func (r *Repository) inTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func toTransactionRow(t core.Transaction, createdAt string) TransactionRow {
	return TransactionRow{
		ID:          t.ID,
		PostedOn:    t.Date.String(),
		Month:       t.Month().String(),
		Merchant:    t.Merchant,
		AmountCents: t.AmountCents,
		Category:    t.Category,
		City:        t.City,
		Channel:     t.Channel,
		Memo:        t.Memo,
		CreatedAt:   createdAt,
	}
}

func fromTransactionRow(row TransactionRow) (core.Transaction, error) {
	date, err := core.ParseDate(row.PostedOn)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: bad posted_on %q: %w", row.ID, row.PostedOn, err)
	}
	return core.Transaction{
		ID:          row.ID,
		Date:        date,
		Merchant:    row.Merchant,
		AmountCents: row.AmountCents,
		Category:    row.Category,
		City:        row.City,
		Channel:     row.Channel,
		Memo:        row.Memo,
	}, nil
}

func toNudgeRow(ordinal int, n core.Nudge) (NudgeRow, error) {
	triggered := n.TriggeredBy
	if triggered == nil {
		triggered = map[string]int64{}
	}
	b, err := json.Marshal(triggered)
	if err != nil {
		return NudgeRow{}, fmt.Errorf("encode nudge %s: %w", n.ID, err)
	}
	return NudgeRow{
		Ordinal:     int64(ordinal),
		ID:          n.ID,
		NudgeType:   string(n.Type),
		Category:    n.Category,
		Message:     n.Message,
		Suggestion:  n.Suggestion,
		TriggeredBy: string(b),
		CreatedAt:   n.CreatedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

func fromNudgeRow(row NudgeRow) (core.Nudge, error) {
	n := core.Nudge{
		ID:         row.ID,
		Type:       core.NudgeType(row.NudgeType),
		Category:   row.Category,
		Message:    row.Message,
		Suggestion: row.Suggestion,
	}
	if row.TriggeredBy != "" {
		if err := json.Unmarshal([]byte(row.TriggeredBy), &n.TriggeredBy); err != nil {
			return core.Nudge{}, fmt.Errorf("decode nudge %s: %w", row.ID, err)
		}
		if len(n.TriggeredBy) == 0 {
			n.TriggeredBy = nil
		}
	}
	createdAt, err := time.Parse(time.RFC3339Nano, row.CreatedAt)
	if err != nil {
		return core.Nudge{}, fmt.Errorf("nudge %s: bad created_at: %w", row.ID, err)
	}
	n.CreatedAt = createdAt
	return n, nil
}
