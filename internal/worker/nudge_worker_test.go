package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"spendwise/internal/amqp"
	"spendwise/internal/core"
	"spendwise/internal/insights"
	"spendwise/internal/nudge"
	"spendwise/internal/services"
	"spendwise/internal/sheets/memory"
	"spendwise/internal/storage"
	memstore "spendwise/internal/storage/memory"
)

type fakeRefresher struct {
	calls  atomic.Int32
	nudges []core.Nudge
	err    error
}

func (f *fakeRefresher) Refresh(context.Context) ([]core.Nudge, error) {
	f.calls.Add(1)
	return f.nudges, f.err
}

type failingExporter struct{}

func (failingExporter) ExportNudges(context.Context, []core.Nudge) error {
	return errors.New("quota exceeded")
}

func TestHandleIngested(t *testing.T) {
	s := &fakeRefresher{nudges: []core.Nudge{{ID: "n1"}}}
	exp := memory.New()
	w := NewNudgeWorker(s, exp)

	msg := &amqp.TransactionsIngestedMessage{Months: []string{"2025-10"}, Created: 4, Mode: "replace"}
	if err := w.HandleIngested(context.Background(), msg); err != nil {
		t.Fatalf("HandleIngested() error = %v", err)
	}

	last, n := exp.Last()
	if n != 1 || len(last) != 1 || last[0].ID != "n1" {
		t.Errorf("export = %v (%d exports)", last, n)
	}
}

func TestHandleIngested_MalformedMonthsStillRefresh(t *testing.T) {
	s := &fakeRefresher{}
	w := NewNudgeWorker(s, nil)

	msg := &amqp.TransactionsIngestedMessage{Months: []string{"Oct"}}
	if err := w.HandleIngested(context.Background(), msg); err != nil {
		t.Fatalf("HandleIngested() error = %v", err)
	}
	if s.calls.Load() != 1 {
		t.Errorf("refresh calls = %d, want 1", s.calls.Load())
	}
}

func TestRefreshErrors(t *testing.T) {
	tests := []struct {
		name     string
		refresh  error
		exporter interface {
			ExportNudges(context.Context, []core.Nudge) error
		}
	}{
		{name: "refresh fails", refresh: errors.New("db down"), exporter: memory.New()},
		{name: "export fails", exporter: failingExporter{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewNudgeWorker(&fakeRefresher{err: tt.refresh}, tt.exporter)
			if err := w.Refresh(context.Background()); err == nil {
				t.Error("Refresh() should fail")
			}
		})
	}
}

func TestRunPeriodic(t *testing.T) {
	s := &fakeRefresher{}
	w := NewNudgeWorker(s, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.RunPeriodic(ctx, time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for s.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done

	if s.calls.Load() < 2 {
		t.Errorf("refresh calls = %d, want at least 2", s.calls.Load())
	}
}

func TestRefreshKeepsSuggestedPeriod(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	september := core.Month{Year: 2025, Month: time.September}
	_, err := store.Ingest(ctx, storage.IngestPlan{
		Mode: core.ModeAppend,
		Rows: []core.Transaction{
			{ID: "t1", Date: core.NewDate(2025, 9, 3), Merchant: "Trader Joe's", AmountCents: 4500, Category: "Groceries"},
			{ID: "t2", Date: core.NewDate(2025, 9, 9), Merchant: "Trader Joe's", AmountCents: 3000, Category: "Groceries"},
		},
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	agg := insights.NewAggregator(5)
	agg.Now = func() time.Time { return time.Date(2025, 10, 10, 12, 0, 0, 0, time.UTC) }
	ins := services.NewInsightsService(store, agg, nil)
	nudges := services.NewNudgeService(store, ins, nudge.NewEngine(nudge.DefaultSettings(), core.Budgets{"Groceries": 5000}, store))

	suggested, err := nudges.Suggest(ctx, september.Period())
	if err != nil {
		t.Fatalf("Suggest() error = %v", err)
	}
	if len(suggested) != 1 {
		t.Fatalf("Suggest() = %d nudges, want 1", len(suggested))
	}

	exp := memory.New()
	w := NewNudgeWorker(nudges, exp)
	if err := w.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	msg := &amqp.TransactionsIngestedMessage{Months: []string{"2025-10"}, Created: 1, Mode: "append"}
	if err := w.HandleIngested(ctx, msg); err != nil {
		t.Fatalf("HandleIngested() error = %v", err)
	}

	stored, err := nudges.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(stored) != 1 || stored[0].ID != suggested[0].ID {
		t.Errorf("stored list = %+v, want the September nudge %s", stored, suggested[0].ID)
	}
	p, ok, err := store.NudgePeriod(ctx)
	if err != nil || !ok || p != september.Period() {
		t.Errorf("NudgePeriod() = %v, %v, %v; want %v", p, ok, err, september.Period())
	}
	if last, n := exp.Last(); n != 2 || len(last) != 1 {
		t.Errorf("export = %v (%d exports), want the September nudge twice", last, n)
	}
}

func TestRefreshWithoutStoredListUsesCurrentMonth(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	agg := insights.NewAggregator(5)
	agg.Now = func() time.Time { return time.Date(2025, 10, 10, 12, 0, 0, 0, time.UTC) }
	ins := services.NewInsightsService(store, agg, nil)
	nudges := services.NewNudgeService(store, ins, nudge.NewEngine(nudge.DefaultSettings(), nil, store))

	if err := NewNudgeWorker(nudges, nil).Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	p, ok, err := store.NudgePeriod(ctx)
	want := core.Month{Year: 2025, Month: time.October}.Period()
	if err != nil || !ok || p != want {
		t.Errorf("NudgePeriod() = %v, %v, %v; want %v", p, ok, err, want)
	}
}
