package storage

import (
	"context"
	"errors"
	"fmt"

	"spendwise/internal/core"
)

// Ports implemented by every storage backend.
type (
	TransactionStore interface {
		// Ingest applies the plan's replace/append semantics as one atomic unit.
		Ingest(ctx context.Context, plan IngestPlan) (IngestResult, error)
		// Query returns the transactions dated within p, in insertion order.
		Query(ctx context.Context, p core.Period) ([]core.Transaction, error)
		// Get returns a *core.NotFoundError when id is unknown.
		Get(ctx context.Context, id string) (core.Transaction, error)
		// Recategorize re-runs categorize over every stored transaction and
		// returns how many changed category.
		Recategorize(ctx context.Context, categorize func(merchant string) string) (int, error)
		// Revision changes after every committed write that can change what
		// Query returns, including writes made by other processes.
		Revision(ctx context.Context) (int64, error)
	}

	NudgeStore interface {
		// ReplaceNudges atomically swaps the stored list for nudges computed
		// over p and records p as the list's period.
		ReplaceNudges(ctx context.Context, p core.Period, nudges []core.Nudge) error
		ListNudges(ctx context.Context) ([]core.Nudge, error)
		// NudgePeriod returns the period of the stored list; ok is false when
		// no list was ever stored.
		NudgePeriod(ctx context.Context) (p core.Period, ok bool, err error)
	}

	Store interface {
		TransactionStore
		NudgeStore
		Ping(ctx context.Context) error
		Close() error
	}
)

// IngestPlan is a batch of categorized transactions ready to be stored.
type IngestPlan struct {
	Rows      []core.Transaction
	Mode      core.Mode
	MonthHint core.Month // zero when the caller supplied no month
}

// IngestResult reports what an ingest changed.
type IngestResult struct {
	Created int
	Deleted int
	Months  []core.Month // deletion scope and inserted months, ascending
}

// Validate rejects empty batches and rows that cannot be stored.
func (p IngestPlan) Validate() error {
	if len(p.Rows) == 0 {
		return &core.ValidationError{Msg: "no valid rows to ingest"}
	}
	if p.Mode != core.ModeReplace && p.Mode != core.ModeAppend {
		return fmt.Errorf("%w: %q", core.ErrInvalidMode, p.Mode)
	}
	var errs []error
	for i, r := range p.Rows {
		if r.ID == "" {
			errs = append(errs, fmt.Errorf("row %d: missing id", i))
			continue
		}
		if err := r.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("row %d: %w", i, err))
		}
	}
	if len(errs) > 0 {
		return &core.ValidationError{Msg: errors.Join(errs...).Error(), Rejected: len(errs)}
	}
	return nil
}

// ReplaceScope returns the months whose existing rows are deleted before
// insertion. An explicit month hint wins over the rows' own months.
func (p IngestPlan) ReplaceScope() []core.Month {
	if p.Mode != core.ModeReplace {
		return nil
	}
	if !p.MonthHint.IsZero() {
		return []core.Month{p.MonthHint}
	}
	return p.InsertMonths()
}

// InsertMonths returns the distinct months of the rows, ascending.
func (p IngestPlan) InsertMonths() []core.Month {
	months := make([]core.Month, 0, len(p.Rows))
	for _, r := range p.Rows {
		months = append(months, r.Month())
	}
	return core.SortMonths(months)
}

// TouchedMonths is every month the plan reads or writes. Ingest locks these.
func (p IngestPlan) TouchedMonths() []core.Month {
	return core.SortMonths(append(p.ReplaceScope(), p.InsertMonths()...))
}
