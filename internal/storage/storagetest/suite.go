// Package storagetest holds the behaviour every storage.Store must satisfy.
// Backends run it from their own tests.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendwise/internal/core"
	"spendwise/internal/storage"
)

// Factory returns an empty store; it must register its own cleanup.
type Factory func(t *testing.T) storage.Store

// Run executes the conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Store)
	}{
		{"ReplaceWithHintLeavesOnlyNewBatch", testReplaceWithHint},
		{"AppendAccumulates", testAppendAccumulates},
		{"ReplaceWithoutHintIsScopedPerRowMonth", testReplacePerRowMonth},
		{"ExplicitMonthWinsDeletionScope", testHintWinsDeletionScope},
		{"EmptyPlanIsValidationError", testEmptyPlan},
		{"DuplicateRowsAreSeparateTransactions", testDuplicateRows},
		{"QueryKeepsInsertionOrderAndRange", testQueryOrderAndRange},
		{"GetReturnsNotFound", testGet},
		{"FailedIngestLeavesStoreUntouched", testAtomicFailure},
		{"Recategorize", testRecategorize},
		{"ReplaceNudges", testReplaceNudges},
		{"RevisionAdvancesOnCommittedWrites", testRevision},
		{"ReadersNeverSeePartialReplace", testReadersSeeAtomicReplace},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, newStore(t))
		})
	}
}

// Txn builds a transaction with a fresh id.
func Txn(date core.Date, merchant string, cents int64, category string) core.Transaction {
	return core.Transaction{
		ID:          uuid.NewString(),
		Date:        date,
		Merchant:    merchant,
		AmountCents: cents,
		Category:    category,
	}
}

func oct(day int) core.Date { return core.NewDate(2025, 10, day) }
func sep(day int) core.Date { return core.NewDate(2025, 9, day) }

var (
	october   = core.Month{Year: 2025, Month: time.October}
	september = core.Month{Year: 2025, Month: time.September}
)

func ingest(t *testing.T, s storage.Store, mode core.Mode, hint core.Month, rows ...core.Transaction) storage.IngestResult {
	t.Helper()
	res, err := s.Ingest(context.Background(), storage.IngestPlan{Rows: rows, Mode: mode, MonthHint: hint})
	require.NoError(t, err)
	return res
}

func query(t *testing.T, s storage.Store, p core.Period) []core.Transaction {
	t.Helper()
	txns, err := s.Query(context.Background(), p)
	require.NoError(t, err)
	return txns
}

func merchants(txns []core.Transaction) []string {
	out := make([]string, len(txns))
	for i, t := range txns {
		out[i] = t.Merchant
	}
	return out
}

func testReplaceWithHint(t *testing.T, s storage.Store) {
	ingest(t, s, core.ModeReplace, october,
		Txn(oct(1), "A1", 100, "Other"),
		Txn(oct(2), "A2", 200, "Other"))
	res := ingest(t, s, core.ModeReplace, october,
		Txn(oct(3), "B1", 300, "Other"))

	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 2, res.Deleted)
	assert.Equal(t, []core.Month{october}, res.Months)
	assert.Equal(t, []string{"B1"}, merchants(query(t, s, october.Period())))
}

func testAppendAccumulates(t *testing.T, s storage.Store) {
	ingest(t, s, core.ModeAppend, core.Month{},
		Txn(oct(1), "A1", 100, "Other"),
		Txn(oct(2), "A2", 200, "Other"))
	res := ingest(t, s, core.ModeAppend, core.Month{},
		Txn(oct(1), "A1", 100, "Other"),
		Txn(oct(2), "A2", 200, "Other"),
		Txn(oct(3), "A3", 300, "Other"))

	assert.Equal(t, 3, res.Created)
	assert.Zero(t, res.Deleted)
	assert.Len(t, query(t, s, october.Period()), 5)
}

func testReplacePerRowMonth(t *testing.T, s storage.Store) {
	ingest(t, s, core.ModeAppend, core.Month{},
		Txn(sep(30), "Sep", 100, "Other"),
		Txn(oct(1), "OldOct", 100, "Other"))
	res := ingest(t, s, core.ModeReplace, core.Month{},
		Txn(oct(5), "NewOct", 100, "Other"))

	assert.Equal(t, []core.Month{october}, res.Months)
	assert.Equal(t, []string{"Sep"}, merchants(query(t, s, september.Period())))
	assert.Equal(t, []string{"NewOct"}, merchants(query(t, s, october.Period())))
}

func testHintWinsDeletionScope(t *testing.T, s storage.Store) {
	ingest(t, s, core.ModeAppend, core.Month{},
		Txn(sep(10), "OldSep", 100, "Other"),
		Txn(oct(10), "OldOct", 100, "Other"))
	res := ingest(t, s, core.ModeReplace, october,
		Txn(sep(20), "NewSep", 100, "Other"))

	assert.Equal(t, []core.Month{september, october}, res.Months)
	assert.Empty(t, query(t, s, october.Period()))
	assert.Equal(t, []string{"OldSep", "NewSep"}, merchants(query(t, s, september.Period())))
}

func testEmptyPlan(t *testing.T, s storage.Store) {
	ingest(t, s, core.ModeAppend, core.Month{}, Txn(oct(1), "Keep", 100, "Other"))

	_, err := s.Ingest(context.Background(), storage.IngestPlan{Mode: core.ModeReplace, MonthHint: october})
	var ve *core.ValidationError
	require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
	assert.Len(t, query(t, s, october.Period()), 1)
}

func testDuplicateRows(t *testing.T, s storage.Store) {
	res := ingest(t, s, core.ModeAppend, core.Month{},
		Txn(oct(1), "Starbucks", 500, "Coffee"),
		Txn(oct(1), "Starbucks", 500, "Coffee"))
	assert.Equal(t, 2, res.Created)
	assert.Len(t, query(t, s, october.Period()), 2)
}

func testQueryOrderAndRange(t *testing.T, s storage.Store) {
	ingest(t, s, core.ModeAppend, core.Month{},
		Txn(oct(20), "Third", 1, "Other"),
		Txn(oct(1), "First", 1, "Other"),
		Txn(sep(29), "Sep", 1, "Other"),
		Txn(oct(2), "Second", 1, "Other"))

	assert.Equal(t, []string{"Third", "First", "Second"}, merchants(query(t, s, october.Period())))

	r, err := core.ParsePeriod("2025-09-29..2025-10-01")
	require.NoError(t, err)
	assert.Equal(t, []string{"First", "Sep"}, merchants(query(t, s, r)))

	assert.Empty(t, query(t, s, october.Next().Period()))
}

func testGet(t *testing.T, s storage.Store) {
	tx := Txn(oct(4), "Shell", -250, "Gas")
	tx.City, tx.Channel, tx.Memo = "Burnaby", "card", "refund"
	ingest(t, s, core.ModeAppend, core.Month{}, tx)

	got, err := s.Get(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.Merchant, got.Merchant)
	assert.Equal(t, int64(-250), got.AmountCents)
	assert.Equal(t, "Burnaby", got.City)
	assert.Equal(t, "refund", got.Memo)
	assert.True(t, got.Date.Equal(tx.Date.Time))

	_, err = s.Get(context.Background(), "missing")
	var nf *core.NotFoundError
	assert.True(t, errors.As(err, &nf), "expected NotFoundError, got %v", err)
}

func testAtomicFailure(t *testing.T, s storage.Store) {
	ingest(t, s, core.ModeAppend, core.Month{},
		Txn(oct(1), "Keep1", 100, "Other"),
		Txn(oct(2), "Keep2", 100, "Other"))

	dup := Txn(oct(3), "Dup", 100, "Other")
	_, err := s.Ingest(context.Background(), storage.IngestPlan{
		Rows:      []core.Transaction{dup, Txn(oct(4), "Fine", 1, "Other"), dup},
		Mode:      core.ModeReplace,
		MonthHint: october,
	})
	var se *core.StorageError
	require.True(t, errors.As(err, &se), "expected StorageError, got %v", err)

	assert.Equal(t, []string{"Keep1", "Keep2"}, merchants(query(t, s, october.Period())))
}

func testRecategorize(t *testing.T, s storage.Store) {
	ingest(t, s, core.ModeAppend, core.Month{},
		Txn(oct(1), "TRADER JOE'S", 4500, "Other"),
		Txn(oct(2), "Starbucks", 500, "Coffee"),
		Txn(oct(3), "Trader Joe's", 3000, "Other"))

	changed, err := s.Recategorize(context.Background(), func(m string) string {
		switch m {
		case "Starbucks":
			return "Coffee"
		default:
			return "Groceries"
		}
	})
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	for _, tx := range query(t, s, october.Period()) {
		if tx.Merchant != "Starbucks" {
			assert.Equal(t, "Groceries", tx.Category)
		}
	}

	changed, err = s.Recategorize(context.Background(), func(m string) string {
		if m == "Starbucks" {
			return "Coffee"
		}
		return "Groceries"
	})
	require.NoError(t, err)
	assert.Zero(t, changed)
}

func testReplaceNudges(t *testing.T, s storage.Store) {
	ctx := context.Background()
	created := time.Date(2025, 10, 17, 12, 0, 0, 0, time.UTC)
	first := []core.Nudge{
		{ID: "n1", Type: core.NudgeBudgetExceeded, Category: "Groceries", Message: "over", Suggestion: "cook", TriggeredBy: map[string]int64{"overage_cents": 2500}, CreatedAt: created},
		{ID: "n2", Type: core.NudgeForecastOverBudget, Message: "pace", CreatedAt: created},
	}
	_, ok, err := s.NudgePeriod(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "no list stored yet")

	require.NoError(t, s.ReplaceNudges(ctx, september.Period(), first))

	got, err := s.ListNudges(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "n1", got[0].ID)
	assert.Equal(t, int64(2500), got[0].TriggeredBy["overage_cents"])
	assert.Equal(t, "Groceries", got[0].Category)
	assert.Equal(t, "cook", got[0].Suggestion)
	assert.True(t, got[0].CreatedAt.Equal(created))
	assert.Empty(t, got[1].Category)

	second := []core.Nudge{{ID: "n3", Type: core.NudgeCategorySpike, Category: "Coffee", Message: "spike", CreatedAt: created}}
	require.NoError(t, s.ReplaceNudges(ctx, september.Period(), second))
	got, err = s.ListNudges(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "n3", got[0].ID)

	span := core.Period{From: sep(5), To: oct(20)}
	require.NoError(t, s.ReplaceNudges(ctx, span, nil))
	got, err = s.ListNudges(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	p, ok, err := s.NudgePeriod(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "an empty list still records its period")
	assert.Equal(t, span, p)
}

func testRevision(t *testing.T, s storage.Store) {
	ctx := context.Background()
	revision := func() int64 {
		t.Helper()
		rev, err := s.Revision(ctx)
		require.NoError(t, err)
		return rev
	}

	start := revision()
	ingest(t, s, core.ModeAppend, core.Month{}, Txn(oct(1), "Starbucks", 500, "Other"))
	afterIngest := revision()
	assert.Greater(t, afterIngest, start)

	dup := Txn(oct(2), "Dup", 100, "Other")
	_, err := s.Ingest(ctx, storage.IngestPlan{Rows: []core.Transaction{dup, dup}, Mode: core.ModeAppend})
	require.Error(t, err)
	assert.Equal(t, afterIngest, revision(), "a rolled back ingest leaves the revision")

	_, err = s.Recategorize(ctx, func(string) string { return "Other" })
	require.NoError(t, err)
	assert.Equal(t, afterIngest, revision(), "a no-op recategorize leaves the revision")

	_, err = s.Recategorize(ctx, func(string) string { return "Coffee" })
	require.NoError(t, err)
	assert.Greater(t, revision(), afterIngest)

	require.NoError(t, s.ReplaceNudges(ctx, october.Period(), nil))
}

func testReadersSeeAtomicReplace(t *testing.T, s storage.Store) {
	const batchSize = 20
	const rounds = 15

	batch := func(round int) []core.Transaction {
		rows := make([]core.Transaction, batchSize)
		for i := range rows {
			rows[i] = Txn(oct(1+i%28), fmt.Sprintf("r%d-%d", round, i), 100, "Other")
		}
		return rows
	}
	ingest(t, s, core.ModeReplace, october, batch(0)...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				txns, err := s.Query(ctx, october.Period())
				if err != nil {
					if ctx.Err() == nil {
						errs <- err
					}
					return
				}
				if len(txns) != batchSize {
					errs <- fmt.Errorf("reader observed %d rows, want %d", len(txns), batchSize)
					return
				}
			}
		}()
	}

	for round := 1; round <= rounds; round++ {
		ingest(t, s, core.ModeReplace, october, batch(round)...)
	}
	cancel()
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
