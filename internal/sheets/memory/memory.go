// Package memory is an in-process NudgeExporter that keeps the last export.
package memory

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"spendwise/internal/core"
	ports "spendwise/internal/sheets"
)

type Exporter struct {
	mu      sync.Mutex
	last    []core.Nudge
	exports int
}

var _ ports.NudgeExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{}
}

// ExportNudges replaces the kept snapshot with a copy of nudges.
func (e *Exporter) ExportNudges(ctx context.Context, nudges []core.Nudge) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.last = slices.Clone(nudges)
	e.exports++
	slog.DebugContext(ctx, "Nudges kept in memory", "count", len(nudges))
	return nil
}

// Last returns the most recent export and how many exports happened.
func (e *Exporter) Last() ([]core.Nudge, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.last), e.exports
}
