package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"spendwise/internal/core"
	"spendwise/internal/parser"
	"spendwise/internal/storage"
)

// Categorizer assigns a category to a merchant string.
type Categorizer interface {
	Categorize(merchant string) string
}

// Publisher announces committed ingests to other processes.
type Publisher interface {
	PublishTransactionsIngested(ctx context.Context, months []core.Month, created int, mode core.Mode) error
}

// Invalidator is notified after any write that changes stored transactions.
type Invalidator interface {
	Invalidate()
}

// UploadResult summarises one upload for the API response.
type UploadResult struct {
	Created  int
	Deleted  int
	Rejected int
	Mode     core.Mode
	Month    core.Month // the month hint, or the only month touched; zero otherwise
	Months   []core.Month
	Errors   []parser.RowError
}

// IngestService turns uploaded CSVs into stored, categorized transactions.
type IngestService struct {
	store       storage.TransactionStore
	categorizer Categorizer
	locker      *storage.MonthLocker
	publisher   Publisher
	invalidate  []Invalidator
	newID       func() string
}

// NewIngestService wires the ingest path. publisher may be nil.
func NewIngestService(store storage.TransactionStore, categorizer Categorizer, locker *storage.MonthLocker, publisher Publisher, invalidate ...Invalidator) *IngestService {
	if locker == nil {
		locker = storage.NewMonthLocker()
	}
	return &IngestService{
		store:       store,
		categorizer: categorizer,
		locker:      locker,
		publisher:   publisher,
		invalidate:  invalidate,
		newID:       uuid.NewString,
	}
}

// Upload parses r and stores the valid rows under mode. A non-zero hint
// scopes replace deletion to that month. Parsing finishes before any month
// lock is taken.
func (s *IngestService) Upload(ctx context.Context, r io.Reader, mode core.Mode, hint core.Month) (UploadResult, error) {
	batch, err := parser.Parse(r)
	if err != nil {
		return UploadResult{}, err
	}
	if len(batch.Rows) == 0 {
		return UploadResult{Rejected: batch.Rejected, Errors: batch.Errors}, &core.ValidationError{
			Msg:      "no valid rows in upload",
			Rejected: batch.Rejected,
		}
	}

	plan := storage.IngestPlan{
		Rows:      s.categorize(batch.Rows),
		Mode:      mode,
		MonthHint: hint,
	}
	if err := plan.Validate(); err != nil {
		return UploadResult{Rejected: batch.Rejected}, err
	}

	res, err := s.ingest(ctx, plan)
	if err != nil {
		return UploadResult{Rejected: batch.Rejected}, err
	}

	out := UploadResult{
		Created:  res.Created,
		Deleted:  res.Deleted,
		Rejected: batch.Rejected,
		Mode:     mode,
		Month:    hint,
		Months:   res.Months,
		Errors:   batch.Errors,
	}
	if out.Month.IsZero() && len(res.Months) == 1 {
		out.Month = res.Months[0]
	}

	slog.InfoContext(ctx, "Upload ingested",
		"created", out.Created,
		"deleted", out.Deleted,
		"rejected", out.Rejected,
		"mode", mode,
		"months", len(out.Months))
	return out, nil
}

func (s *IngestService) ingest(ctx context.Context, plan storage.IngestPlan) (storage.IngestResult, error) {
	unlock := s.locker.Lock(plan.TouchedMonths())
	res, err := s.store.Ingest(ctx, plan)
	unlock()
	if err != nil {
		return storage.IngestResult{}, fmt.Errorf("ingest: %w", err)
	}

	s.notify()
	if err := s.publish(ctx, res.Months, res.Created, plan.Mode); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ingest event", "error", err)
		// The rows are committed; consumers catch up on the next refresh.
	}
	return res, nil
}

func (s *IngestService) categorize(rows []parser.Row) []core.Transaction {
	out := make([]core.Transaction, len(rows))
	for i, r := range rows {
		out[i] = core.Transaction{
			ID:          s.newID(),
			Date:        r.Date,
			Merchant:    r.Merchant,
			AmountCents: r.AmountCents,
			Category:    s.categorizer.Categorize(r.Merchant),
			City:        r.City,
			Channel:     r.Channel,
			Memo:        r.Memo,
		}
	}
	return out
}

// Recategorize re-applies the categorizer to every stored transaction and
// returns how many changed. It excludes all concurrent ingests.
func (s *IngestService) Recategorize(ctx context.Context) (int, error) {
	unlock := s.locker.LockAll()
	defer unlock()

	changed, err := s.store.Recategorize(ctx, s.categorizer.Categorize)
	if err != nil {
		return 0, fmt.Errorf("recategorize: %w", err)
	}
	if changed > 0 {
		s.notify()
	}
	slog.InfoContext(ctx, "Recategorized transactions", "changed", changed)
	return changed, nil
}

func (s *IngestService) notify() {
	for _, inv := range s.invalidate {
		inv.Invalidate()
	}
}

func (s *IngestService) publish(ctx context.Context, months []core.Month, created int, mode core.Mode) error {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping ingest event")
		return nil
	}
	return s.publisher.PublishTransactionsIngested(ctx, months, created, mode)
}
