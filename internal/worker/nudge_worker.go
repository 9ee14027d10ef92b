package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"spendwise/internal/amqp"
	"spendwise/internal/core"
	"spendwise/internal/sheets"
)

// Refresher recomputes the stored nudge list over the period it was last
// suggested for.
type Refresher interface {
	Refresh(ctx context.Context) ([]core.Nudge, error)
}

// NudgeWorker keeps the stored and exported nudge lists fresh after ingests.
type NudgeWorker struct {
	nudges   Refresher
	exporter sheets.NudgeExporter
}

// NewNudgeWorker builds a worker. exporter may be nil to skip exporting.
func NewNudgeWorker(nudges Refresher, exporter sheets.NudgeExporter) *NudgeWorker {
	return &NudgeWorker{nudges: nudges, exporter: exporter}
}

// HandleIngested reacts to a committed upload. Any month can feed the
// stored period's spike history, so every event triggers a refresh.
func (w *NudgeWorker) HandleIngested(ctx context.Context, msg *amqp.TransactionsIngestedMessage) error {
	months, err := msg.ParsedMonths()
	if err != nil {
		// The refresh does not depend on the months; log and carry on.
		slog.WarnContext(ctx, "Ingest message carries malformed months", "error", err)
	}
	slog.InfoContext(ctx, "Processing ingest event",
		"months", len(months),
		"created", msg.Created,
		"mode", msg.Mode,
		"published_at", msg.Timestamp)

	return w.Refresh(ctx)
}

// Refresh recomputes the stored nudge list, keeping its period, and exports it.
func (w *NudgeWorker) Refresh(ctx context.Context) error {
	nudges, err := w.nudges.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("refresh nudges: %w", err)
	}

	if w.exporter == nil {
		slog.DebugContext(ctx, "No nudge exporter configured, skipping export")
		return nil
	}
	if err := w.exporter.ExportNudges(ctx, nudges); err != nil {
		return fmt.Errorf("export nudges: %w", err)
	}
	return nil
}

// RunPeriodic refreshes on every tick until ctx ends. It recovers from lost
// AMQP messages and from a worker that was down during an ingest.
func (w *NudgeWorker) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Refresh(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic nudge refresh failed", "error", err)
			}
		}
	}
}
