package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type TransactionRow struct {
	ID          string
	PostedOn    string
	Month       string
	Merchant    string
	AmountCents int64
	Category    string
	City        string
	Channel     string
	Memo        string
	CreatedAt   string
}

const transactionColumns = `id, posted_on, month, merchant, amount_cents, category, city, channel, memo, created_at`

func scanTransaction(s interface{ Scan(...interface{}) error }) (TransactionRow, error) {
	var i TransactionRow
	err := s.Scan(
		&i.ID,
		&i.PostedOn,
		&i.Month,
		&i.Merchant,
		&i.AmountCents,
		&i.Category,
		&i.City,
		&i.Channel,
		&i.Memo,
		&i.CreatedAt,
	)
	return i, err
}

const insertTransaction = `-- name: InsertTransaction :exec
INSERT INTO transactions (` + transactionColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertTransaction(ctx context.Context, arg TransactionRow) error {
	_, err := q.db.ExecContext(ctx, insertTransaction,
		arg.ID,
		arg.PostedOn,
		arg.Month,
		arg.Merchant,
		arg.AmountCents,
		arg.Category,
		arg.City,
		arg.Channel,
		arg.Memo,
		arg.CreatedAt,
	)
	return err
}

const deleteTransactionsByMonth = `-- name: DeleteTransactionsByMonth :execrows
DELETE FROM transactions WHERE month = ?`

func (q *Queries) DeleteTransactionsByMonth(ctx context.Context, month string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteTransactionsByMonth, month)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listTransactionsBetween = `-- name: ListTransactionsBetween :many
SELECT ` + transactionColumns + `
FROM transactions
WHERE posted_on >= ? AND posted_on <= ?
ORDER BY seq`

func (q *Queries) ListTransactionsBetween(ctx context.Context, from, to string) ([]TransactionRow, error) {
	rows, err := q.db.QueryContext(ctx, listTransactionsBetween, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TransactionRow
	for rows.Next() {
		i, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getTransaction = `-- name: GetTransaction :one
SELECT ` + transactionColumns + `
FROM transactions
WHERE id = ?`

func (q *Queries) GetTransaction(ctx context.Context, id string) (TransactionRow, error) {
	row := q.db.QueryRowContext(ctx, getTransaction, id)
	return scanTransaction(row)
}

type MerchantCategoryRow struct {
	ID       string
	Merchant string
	Category string
}

const listMerchantCategories = `-- name: ListMerchantCategories :many
SELECT id, merchant, category FROM transactions ORDER BY seq`

func (q *Queries) ListMerchantCategories(ctx context.Context) ([]MerchantCategoryRow, error) {
	rows, err := q.db.QueryContext(ctx, listMerchantCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MerchantCategoryRow
	for rows.Next() {
		var i MerchantCategoryRow
		if err := rows.Scan(&i.ID, &i.Merchant, &i.Category); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateTransactionCategory = `-- name: UpdateTransactionCategory :exec
UPDATE transactions SET category = ? WHERE id = ?`

func (q *Queries) UpdateTransactionCategory(ctx context.Context, category, id string) error {
	_, err := q.db.ExecContext(ctx, updateTransactionCategory, category, id)
	return err
}

type NudgeRow struct {
	Ordinal     int64
	ID          string
	NudgeType   string
	Category    string
	Message     string
	Suggestion  string
	TriggeredBy string
	CreatedAt   string
}

const deleteNudges = `-- name: DeleteNudges :exec
DELETE FROM nudges`

func (q *Queries) DeleteNudges(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteNudges)
	return err
}

const insertNudge = `-- name: InsertNudge :exec
INSERT INTO nudges (ordinal, id, nudge_type, category, message, suggestion, triggered_by, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertNudge(ctx context.Context, arg NudgeRow) error {
	_, err := q.db.ExecContext(ctx, insertNudge,
		arg.Ordinal,
		arg.ID,
		arg.NudgeType,
		arg.Category,
		arg.Message,
		arg.Suggestion,
		arg.TriggeredBy,
		arg.CreatedAt,
	)
	return err
}

const listNudges = `-- name: ListNudges :many
SELECT ordinal, id, nudge_type, category, message, suggestion, triggered_by, created_at
FROM nudges
ORDER BY ordinal`

func (q *Queries) ListNudges(ctx context.Context) ([]NudgeRow, error) {
	rows, err := q.db.QueryContext(ctx, listNudges)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []NudgeRow
	for rows.Next() {
		var i NudgeRow
		if err := rows.Scan(
			&i.Ordinal,
			&i.ID,
			&i.NudgeType,
			&i.Category,
			&i.Message,
			&i.Suggestion,
			&i.TriggeredBy,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const bumpRevision = `-- name: BumpRevision :exec
UPDATE store_state SET revision = revision + 1 WHERE id = 1`

func (q *Queries) BumpRevision(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, bumpRevision)
	return err
}

const getRevision = `-- name: GetRevision :one
SELECT revision FROM store_state WHERE id = 1`

func (q *Queries) GetRevision(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, getRevision)
	var revision int64
	err := row.Scan(&revision)
	return revision, err
}

const setNudgePeriod = `-- name: SetNudgePeriod :exec
UPDATE store_state SET nudge_period = ? WHERE id = 1`

func (q *Queries) SetNudgePeriod(ctx context.Context, period string) error {
	_, err := q.db.ExecContext(ctx, setNudgePeriod, period)
	return err
}

const getNudgePeriod = `-- name: GetNudgePeriod :one
SELECT nudge_period FROM store_state WHERE id = 1`

func (q *Queries) GetNudgePeriod(ctx context.Context) (string, error) {
	row := q.db.QueryRowContext(ctx, getNudgePeriod)
	var period string
	err := row.Scan(&period)
	return period, err
}
