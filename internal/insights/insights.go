// Package insights computes spending snapshots over a period of stored
// transactions. Computation is pure: the same transactions and clock always
// produce the same Insights.
package insights

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"spendwise/internal/core"
)

// DefaultTopMerchants is the length of the top merchants list.
const DefaultTopMerchants = 5

// Aggregator turns transactions into core.Insights.
type Aggregator struct {
	TopN int
	Now  func() time.Time
}

func NewAggregator(topN int) *Aggregator {
	if topN <= 0 {
		topN = DefaultTopMerchants
	}
	return &Aggregator{TopN: topN, Now: time.Now}
}

// ElapsedDays counts the days of p up to and including today: zero before
// the period starts and all of them once it has ended.
func ElapsedDays(p core.Period, today core.Date) int {
	switch {
	case today.Before(p.From.Time):
		return 0
	case today.After(p.To.Time):
		return p.Days()
	default:
		return core.Period{From: p.From, To: today}.Days()
	}
}

// Compute builds the snapshot for p from txns, which are expected to be the
// period's transactions in stored order.
func (a *Aggregator) Compute(p core.Period, txns []core.Transaction) core.Insights {
	ins := core.Insights{
		Period:           p,
		ByCategory:       map[string]int64{},
		ByCategoryPct:    map[string]float64{},
		TopMerchants:     []core.MerchantTotal{},
		PeriodDays:       p.Days(),
		ElapsedDays:      ElapsedDays(p, core.DateOf(a.Now())),
		TransactionCount: len(txns),
	}

	byMerchant := map[string]int64{}
	var merchantOrder []string
	for _, t := range txns {
		ins.TotalCents += t.AmountCents
		ins.ByCategory[t.Category] += t.AmountCents
		if _, seen := byMerchant[t.Merchant]; !seen {
			merchantOrder = append(merchantOrder, t.Merchant)
		}
		byMerchant[t.Merchant] += t.AmountCents
	}

	if ins.ElapsedDays > 0 {
		ins.DailyAvgCents = ins.TotalCents / int64(ins.ElapsedDays)
	}
	ins.MonthForecastCents = ins.DailyAvgCents * int64(ins.PeriodDays)

	if ins.TotalCents != 0 {
		total := decimal.NewFromInt(ins.TotalCents)
		hundred := decimal.NewFromInt(100)
		for cat, cents := range ins.ByCategory {
			pct, _ := decimal.NewFromInt(cents).Mul(hundred).DivRound(total, 2).Float64()
			ins.ByCategoryPct[cat] = pct
		}
	} else {
		for cat := range ins.ByCategory {
			ins.ByCategoryPct[cat] = 0
		}
	}

	ranked := make([]core.MerchantTotal, 0, len(merchantOrder))
	for _, m := range merchantOrder {
		ranked = append(ranked, core.MerchantTotal{Merchant: m, Cents: byMerchant[m]})
	}
	// Stable sort keeps first-seen order among equal totals.
	slices.SortStableFunc(ranked, func(x, y core.MerchantTotal) int {
		switch {
		case x.Cents > y.Cents:
			return -1
		case x.Cents < y.Cents:
			return 1
		}
		return 0
	})
	if len(ranked) > a.TopN {
		ranked = ranked[:a.TopN]
	}
	ins.TopMerchants = ranked

	return ins
}
