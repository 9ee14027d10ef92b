// Package categorize assigns a spending category to merchant text using an
// ordered rule table. Rules are evaluated top to bottom and the first match
// wins; merchants matching no rule fall back to core.OtherCategory.
package categorize

import (
	"fmt"
	"strings"
	"unicode"

	"spendwise/internal/core"
)

type MatchKind string

const (
	// MatchSubstring matches the pattern anywhere in the merchant text.
	MatchSubstring MatchKind = "substring"
	// MatchToken matches the pattern only as a run of whole words.
	MatchToken MatchKind = "token"
)

// Rule maps a merchant pattern to a category. Matching ignores case.
type Rule struct {
	Pattern  string    `yaml:"pattern" json:"pattern"`
	Category string    `yaml:"category" json:"category"`
	Match    MatchKind `yaml:"match,omitempty" json:"match,omitempty"`
}

type compiledRule struct {
	Rule
	lower  string
	tokens []string
}

// Categorizer is immutable once built and safe for concurrent use.
type Categorizer struct {
	rules []compiledRule
}

// New validates rules and builds a Categorizer preserving their order.
func New(rules []Rule) (*Categorizer, error) {
	var problems []string
	compiled := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		r.Pattern = strings.TrimSpace(r.Pattern)
		r.Category = strings.TrimSpace(r.Category)
		if r.Match == "" {
			r.Match = MatchSubstring
		}
		if r.Pattern == "" {
			problems = append(problems, fmt.Sprintf("rule %d: empty pattern", i+1))
		}
		if r.Category == "" {
			problems = append(problems, fmt.Sprintf("rule %d: empty category", i+1))
		}
		if r.Match != MatchSubstring && r.Match != MatchToken {
			problems = append(problems, fmt.Sprintf("rule %d: unknown match kind %q", i+1, r.Match))
		}
		lower := strings.ToLower(r.Pattern)
		compiled = append(compiled, compiledRule{Rule: r, lower: lower, tokens: tokenize(lower)})
	}
	if len(problems) > 0 {
		return nil, &core.ConfigError{Problems: problems}
	}
	return &Categorizer{rules: compiled}, nil
}

// Default returns a Categorizer over DefaultRules.
func Default() *Categorizer {
	c, err := New(DefaultRules())
	if err != nil {
		panic(err)
	}
	return c
}

// Categorize returns the category of the first matching rule.
func (c *Categorizer) Categorize(merchant string) string {
	lower := strings.ToLower(merchant)
	var tokens []string
	for _, r := range c.rules {
		switch r.Match {
		case MatchToken:
			if tokens == nil {
				tokens = tokenize(lower)
			}
			if containsRun(tokens, r.tokens) {
				return r.Category
			}
		default:
			if strings.Contains(lower, r.lower) {
				return r.Category
			}
		}
	}
	return core.OtherCategory
}

// Rules returns a copy of the rule table in evaluation order.
func (c *Categorizer) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	for i, r := range c.rules {
		out[i] = r.Rule
	}
	return out
}

// Categories lists the distinct categories the rules can produce, in first
// appearance order, followed by core.OtherCategory.
func (c *Categorizer) Categories() []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range c.rules {
		if !seen[r.Category] {
			seen[r.Category] = true
			out = append(out, r.Category)
		}
	}
	if !seen[core.OtherCategory] {
		out = append(out, core.OtherCategory)
	}
	return out
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// containsRun reports whether needle occurs as a contiguous run in haystack.
func containsRun(haystack, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return false
	}
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j, n := range needle {
			if haystack[i+j] != n {
				continue outer
			}
		}
		return true
	}
	return false
}
