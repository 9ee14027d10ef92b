package google

import (
	"time"

	"spendwise/internal/core"
)

var nudgeHeader = []any{"ID", "Type", "Category", "Message", "Amount", "Created", "Suggestion"}

// nudgeRows renders nudges as sheet rows under a header. Amount is the
// headline figure of the rule, formatted as money.
func nudgeRows(nudges []core.Nudge) [][]any {
	rows := make([][]any, 0, len(nudges)+1)
	rows = append(rows, nudgeHeader)
	for _, n := range nudges {
		rows = append(rows, []any{
			n.ID,
			string(n.Type),
			n.Category,
			n.Message,
			headlineAmount(n),
			n.CreatedAt.UTC().Format(time.RFC3339),
			n.Suggestion,
		})
	}
	return rows
}

func headlineAmount(n core.Nudge) string {
	key := map[core.NudgeType]string{
		core.NudgeBudgetExceeded:         "overage_cents",
		core.NudgeCategorySpike:          "current_cents",
		core.NudgeForecastOverBudget:     "over_cents",
		core.NudgeFrequentSmallPurchases: "threshold_cents",
	}[n.Type]
	cents, ok := n.TriggeredBy[key]
	if !ok {
		return ""
	}
	return core.FormatCents(cents)
}
