package core

import (
	"encoding/json"
	"errors"
	"time"
)

const (
	NudgeBudgetExceeded         NudgeType = "budget_exceeded"
	NudgeCategorySpike          NudgeType = "category_spike"
	NudgeFrequentSmallPurchases NudgeType = "frequent_small_purchases"
	NudgeForecastOverBudget     NudgeType = "forecast_over_budget"
)

// MerchantTotal is one entry of the top merchants list. It encodes as a
// [merchant, cents] pair.
type MerchantTotal struct {
	Merchant string
	Cents    int64
}

func (m MerchantTotal) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{m.Merchant, m.Cents})
}

func (m *MerchantTotal) UnmarshalJSON(b []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return errors.New("top merchant must be a [merchant, cents] pair")
	}
	if err := json.Unmarshal(pair[0], &m.Merchant); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &m.Cents)
}

// Insights is a computed snapshot of spending over a period. It is never persisted.
type Insights struct {
	Period             Period             `json:"period"`
	TotalCents         int64              `json:"total_cents"`
	DailyAvgCents      int64              `json:"daily_avg_cents"`
	MonthForecastCents int64              `json:"month_forecast_cents"`
	ByCategory         map[string]int64   `json:"by_category"`
	ByCategoryPct      map[string]float64 `json:"by_category_pct"`
	TopMerchants       []MerchantTotal    `json:"top_merchants"`
	ElapsedDays        int                `json:"elapsed_days"`
	PeriodDays         int                `json:"period_days"`
	TransactionCount   int                `json:"transaction_count"`
}

type NudgeType string

// Nudge is an advisory message produced by the nudge rules.
type Nudge struct {
	ID          string           `json:"id"`
	Type        NudgeType        `json:"type"`
	Message     string           `json:"message"`
	Suggestion  string           `json:"suggestion,omitempty"`
	Category    string           `json:"category,omitempty"`
	TriggeredBy map[string]int64 `json:"triggered_by,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}
