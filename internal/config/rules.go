package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"spendwise/internal/categorize"
	"spendwise/internal/core"
	"spendwise/internal/nudge"
)

// Money is an amount written in major units in YAML ("360", "1,200.00",
// "$20") and held in cents.
type Money int64

func (m *Money) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: amount must be a scalar", value.Line)
	}
	cents, err := core.ParseAmountToCents(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*m = Money(cents)
	return nil
}

func (m Money) MarshalYAML() (any, error) {
	return decimal.New(int64(m), -2).StringFixed(2), nil
}

// NudgeRules overrides the built-in nudge thresholds. Unset fields keep
// their defaults.
type NudgeRules struct {
	SpikeMultiplier         *decimal.Decimal `yaml:"spike_multiplier,omitempty"`
	HistoryMonths           *int             `yaml:"history_months,omitempty"`
	SmallPurchaseThreshold  *Money           `yaml:"small_purchase_threshold,omitempty"`
	SmallPurchaseCount      *int             `yaml:"small_purchase_count,omitempty"`
	SmallPurchaseCategories []string         `yaml:"small_purchase_categories,omitempty"`
	MonthlyBudget           *Money           `yaml:"monthly_budget,omitempty"`
}

// Rules is the RULES_FILE document.
type Rules struct {
	// Categories replaces the default rule table when non-empty.
	Categories []categorize.Rule `yaml:"categories,omitempty"`
	// Budgets are monthly caps per category.
	Budgets map[string]Money `yaml:"budgets,omitempty"`
	Nudges  NudgeRules       `yaml:"nudges,omitempty"`
}

// DefaultBudgets are the caps used when no rules file is configured.
func DefaultBudgets() core.Budgets {
	return core.Budgets{
		"Coffee":        2000,
		"Food Delivery": 6000,
		"Groceries":     36000,
		"Subscription":  3000,
	}
}

// DefaultMonthlyBudgetCents drives the forecast rule by default.
const DefaultMonthlyBudgetCents = 120000

// LoadRules reads a rules file. An empty path yields an empty document, which
// resolves to the built-in defaults.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return &Rules{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &core.ConfigError{Problems: []string{fmt.Sprintf("reading rules file: %v", err)}}
	}
	return ParseRules(data)
}

// ParseRules decodes a rules document, rejecting unknown keys.
func ParseRules(data []byte) (*Rules, error) {
	var r Rules
	if len(data) == 0 {
		return &r, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil && !errors.Is(err, io.EOF) {
		return nil, &core.ConfigError{Problems: []string{fmt.Sprintf("parsing rules file: %v", err)}}
	}
	return &r, nil
}

// Resolved is a validated rule set ready to wire into the engine.
type Resolved struct {
	Categorizer *categorize.Categorizer
	Budgets     core.Budgets
	Nudges      nudge.Settings
}

// Resolve merges r over the defaults and validates the result.
func (r *Rules) Resolve() (Resolved, error) {
	var problems []string

	rules := r.Categories
	if len(rules) == 0 {
		rules = categorize.DefaultRules()
	}
	cat, err := categorize.New(rules)
	if err != nil {
		var cerr *core.ConfigError
		if errors.As(err, &cerr) {
			problems = append(problems, cerr.Problems...)
		} else {
			problems = append(problems, err.Error())
		}
	}

	budgets := DefaultBudgets()
	if r.Budgets != nil {
		budgets = core.Budgets{}
		names := make([]string, 0, len(r.Budgets))
		for name := range r.Budgets {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			cents := int64(r.Budgets[name])
			if cents <= 0 {
				problems = append(problems, fmt.Sprintf("budget %q: must be positive", name))
				continue
			}
			budgets[name] = cents
		}
	}

	settings := nudge.DefaultSettings()
	settings.MonthlyBudgetCents = DefaultMonthlyBudgetCents
	n := r.Nudges
	if n.SpikeMultiplier != nil {
		if n.SpikeMultiplier.LessThanOrEqual(decimal.NewFromInt(1)) {
			problems = append(problems, fmt.Sprintf("spike_multiplier %s: must be greater than 1", n.SpikeMultiplier))
		}
		settings.SpikeMultiplier = *n.SpikeMultiplier
	}
	if n.HistoryMonths != nil {
		if *n.HistoryMonths < 1 || *n.HistoryMonths > 24 {
			problems = append(problems, fmt.Sprintf("history_months %d: must be between 1 and 24", *n.HistoryMonths))
		}
		settings.HistoryMonths = *n.HistoryMonths
	}
	if n.SmallPurchaseThreshold != nil {
		if *n.SmallPurchaseThreshold <= 0 {
			problems = append(problems, "small_purchase_threshold: must be positive")
		}
		settings.SmallPurchaseCents = int64(*n.SmallPurchaseThreshold)
	}
	if n.SmallPurchaseCount != nil {
		if *n.SmallPurchaseCount < 1 {
			problems = append(problems, "small_purchase_count: must be at least 1")
		}
		settings.SmallPurchaseCount = *n.SmallPurchaseCount
	}
	settings.SmallPurchaseCategories = n.SmallPurchaseCategories
	if n.MonthlyBudget != nil {
		if *n.MonthlyBudget < 0 {
			problems = append(problems, "monthly_budget: must not be negative")
		}
		settings.MonthlyBudgetCents = int64(*n.MonthlyBudget)
	}

	if len(problems) > 0 {
		return Resolved{}, &core.ConfigError{Problems: problems}
	}
	return Resolved{Categorizer: cat, Budgets: budgets, Nudges: settings}, nil
}
