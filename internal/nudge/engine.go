// Package nudge evaluates the nudge rules against an insights snapshot.
//
// Rules run in a fixed order (budget exceeded, category spike, frequent small
// purchases, forecast over budget) and within a rule categories are visited
// in ascending name order, so the output order is deterministic. Nudge ids
// are derived from rule type and category, which makes repeated evaluation
// over unchanged data produce identical lists.
package nudge

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"spendwise/internal/core"
)

// namespace scopes the name-based nudge ids.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("spendwise:nudges"))

// Settings are the rule thresholds.
type Settings struct {
	SpikeMultiplier         decimal.Decimal
	HistoryMonths           int
	SmallPurchaseCents      int64
	SmallPurchaseCount      int
	SmallPurchaseCategories []string // empty means every category
	MonthlyBudgetCents      int64    // zero disables the forecast rule
}

func DefaultSettings() Settings {
	return Settings{
		SpikeMultiplier:    decimal.RequireFromString("1.5"),
		HistoryMonths:      3,
		SmallPurchaseCents: 1000,
		SmallPurchaseCount: 5,
	}
}

// HistoryReader is the slice of the transaction store the spike rule needs.
type HistoryReader interface {
	Query(ctx context.Context, p core.Period) ([]core.Transaction, error)
}

type Engine struct {
	settings Settings
	budgets  core.Budgets
	history  HistoryReader
	now      func() time.Time
}

func NewEngine(settings Settings, budgets core.Budgets, history HistoryReader) *Engine {
	return &Engine{settings: settings, budgets: budgets, history: history, now: time.Now}
}

// WithClock overrides the timestamp source for created_at.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	cp := *e
	cp.now = now
	return &cp
}

// Evaluate runs every rule. txns must be the transactions ins was computed from.
func (e *Engine) Evaluate(ctx context.Context, ins core.Insights, txns []core.Transaction) ([]core.Nudge, error) {
	createdAt := e.now().UTC()
	var out []core.Nudge

	out = append(out, e.budgetExceeded(ins)...)

	spikes, err := e.categorySpikes(ctx, ins)
	if err != nil {
		return nil, err
	}
	out = append(out, spikes...)

	out = append(out, e.frequentSmallPurchases(txns)...)
	out = append(out, e.forecastOverBudget(ins)...)

	for i := range out {
		out[i].ID = ID(out[i].Type, out[i].Category)
		out[i].CreatedAt = createdAt
	}
	return out, nil
}

// ID is the deterministic id of a nudge of type t about category.
func ID(t core.NudgeType, category string) string {
	return uuid.NewSHA1(namespace, []byte(string(t)+"/"+category)).String()
}

func (e *Engine) budgetExceeded(ins core.Insights) []core.Nudge {
	var out []core.Nudge
	for _, cat := range sortedKeys(e.budgets) {
		limit := e.budgets[cat]
		spent := ins.ByCategory[cat]
		if limit <= 0 || spent <= limit {
			continue
		}
		overage := spent - limit
		pct := overage * 100 / limit
		out = append(out, core.Nudge{
			Type:     core.NudgeBudgetExceeded,
			Category: cat,
			Message: fmt.Sprintf("%s is over budget by %s (%d%% over the %s cap).",
				cat, core.FormatCents(overage), pct, core.FormatCents(limit)),
			Suggestion:  fmt.Sprintf("Trim %s by %s to get back under the cap.", cat, core.FormatCents(overage)),
			TriggeredBy: map[string]int64{
				"spent_cents":   spent,
				"budget_cents":  limit,
				"overage_cents": overage,
				"percent_over":  pct,
			},
		})
	}
	return out
}

type monthHistory struct {
	hasData    bool
	byCategory map[string]int64
}

// categorySpikes compares each category against its mean over the prior
// months that hold any transactions.
func (e *Engine) categorySpikes(ctx context.Context, ins core.Insights) ([]core.Nudge, error) {
	n := e.settings.HistoryMonths
	if n <= 0 || e.history == nil || e.settings.SpikeMultiplier.Sign() <= 0 {
		return nil, nil
	}

	start := core.MonthOf(ins.Period.From)
	months := make([]monthHistory, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		m := start.Add(-(i + 1))
		g.Go(func() error {
			txns, err := e.history.Query(gctx, m.Period())
			if err != nil {
				return fmt.Errorf("query history %s: %w", m, err)
			}
			h := monthHistory{hasData: len(txns) > 0, byCategory: map[string]int64{}}
			for _, t := range txns {
				h.byCategory[t.Category] += t.AmountCents
			}
			months[i] = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	observed := int64(0)
	sums := map[string]int64{}
	for _, h := range months {
		if !h.hasData {
			continue
		}
		observed++
		for cat, cents := range h.byCategory {
			sums[cat] += cents
		}
	}
	if observed == 0 {
		return nil, nil
	}

	var out []core.Nudge
	for _, cat := range sortedKeys(ins.ByCategory) {
		current := ins.ByCategory[cat]
		sum := sums[cat]
		if current <= 0 || sum <= 0 {
			continue
		}
		// current > multiplier * sum / observed, without dividing.
		lhs := decimal.NewFromInt(current).Mul(decimal.NewFromInt(observed))
		rhs := e.settings.SpikeMultiplier.Mul(decimal.NewFromInt(sum))
		if !lhs.GreaterThan(rhs) {
			continue
		}
		avg := sum / observed
		ratio := current * 100 / max(avg, 1)
		out = append(out, core.Nudge{
			Type:     core.NudgeCategorySpike,
			Category: cat,
			Message: fmt.Sprintf("%s spending of %s is %d%% of your %d-month average (%s).",
				cat, core.FormatCents(current), ratio, observed, core.FormatCents(avg)),
			Suggestion:  fmt.Sprintf("Look through recent %s purchases for one-offs before they become a habit.", cat),
			TriggeredBy: map[string]int64{
				"current_cents":   current,
				"average_cents":   avg,
				"ratio_pct":       ratio,
				"months_observed": observed,
			},
		})
	}
	return out, nil
}

func (e *Engine) frequentSmallPurchases(txns []core.Transaction) []core.Nudge {
	threshold := e.settings.SmallPurchaseCents
	if threshold <= 0 {
		return nil
	}
	counts := map[string]int64{}
	for _, t := range txns {
		if t.AmountCents > 0 && t.AmountCents < threshold {
			counts[t.Category]++
		}
	}

	var out []core.Nudge
	for _, cat := range sortedKeys(counts) {
		if len(e.settings.SmallPurchaseCategories) > 0 && !slices.Contains(e.settings.SmallPurchaseCategories, cat) {
			continue
		}
		count := counts[cat]
		if count <= int64(e.settings.SmallPurchaseCount) {
			continue
		}
		out = append(out, core.Nudge{
			Type:     core.NudgeFrequentSmallPurchases,
			Category: cat,
			Message: fmt.Sprintf("%d %s purchases under %s this period. Consolidating a few could cut the habit cost.",
				count, cat, core.FormatCents(threshold)),
			Suggestion:  fmt.Sprintf("Bundle small %s buys into one planned trip a week.", cat),
			TriggeredBy: map[string]int64{
				"count":           count,
				"threshold_cents": threshold,
				"max_count":       int64(e.settings.SmallPurchaseCount),
			},
		})
	}
	return out
}

func (e *Engine) forecastOverBudget(ins core.Insights) []core.Nudge {
	budget := e.settings.MonthlyBudgetCents
	if budget <= 0 || ins.MonthForecastCents <= budget {
		return nil
	}
	over := ins.MonthForecastCents - budget
	return []core.Nudge{{
		Type: core.NudgeForecastOverBudget,
		Message: fmt.Sprintf("On pace for %s against a %s budget (+%s).",
			core.FormatCents(ins.MonthForecastCents), core.FormatCents(budget), core.FormatCents(over)),
		Suggestion:  "Pause non-essential spending for the rest of the period.",
		TriggeredBy: map[string]int64{
			"forecast_cents": ins.MonthForecastCents,
			"budget_cents":   budget,
			"over_cents":     over,
		},
	}}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
