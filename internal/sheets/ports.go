package sheets

import (
	"context"

	"spendwise/internal/core"
)

// Ports for outbound adapters.
type (
	// NudgeExporter publishes the current nudge list, replacing the previous export.
	NudgeExporter interface {
		ExportNudges(ctx context.Context, nudges []core.Nudge) error
	}
)
