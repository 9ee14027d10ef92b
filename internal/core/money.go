// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts as they appear on
// bank statements and converting between cents and display strings.
package core

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var maxCents = decimal.NewFromInt(math.MaxInt64 / 100)

// ParseAmountToCents converts a statement amount to signed cents.
//
// It accepts an optional sign, an optional currency symbol, thousands
// separators and either a dot or a comma as decimal separator. An amount
// wrapped in parentheses is negative. Fractions of a cent are rounded half
// away from zero.
//
// Examples:
//
//	ParseAmountToCents("12.34")      -> 1234, nil
//	ParseAmountToCents("-$1,234.50") -> -123450, nil
//	ParseAmountToCents("(4.00)")     -> -400, nil
//	ParseAmountToCents("12,34 €")    -> 1234, nil
//	ParseAmountToCents("12.345")     -> 1235, nil
//	ParseAmountToCents("-0.005")     -> -1, nil
func ParseAmountToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	sawSign := false
	for s != "" {
		switch {
		case s[0] == '-' || s[0] == '+':
			if sawSign {
				return 0, ErrInvalidAmount
			}
			sawSign = true
			if s[0] == '-' {
				negative = !negative
			}
			s = strings.TrimSpace(s[1:])
			continue
		case trimCurrency(&s, strings.HasPrefix, strings.TrimPrefix):
			continue
		}
		break
	}
	for trimCurrency(&s, strings.HasSuffix, strings.TrimSuffix) {
	}

	number, ok := normalizeSeparators(s)
	if !ok {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(number)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if d.GreaterThan(maxCents) {
		return 0, ErrInvalidAmount
	}
	cents := d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	if negative {
		cents = -cents
	}
	return cents, nil
}

var currencySymbols = []string{"$", "€", "£", "¥"}

func trimCurrency(s *string, has func(string, string) bool, trim func(string, string) string) bool {
	for _, sym := range currencySymbols {
		if has(*s, sym) {
			*s = strings.TrimSpace(trim(*s, sym))
			return true
		}
	}
	return false
}

// normalizeSeparators rewrites s into plain digits with at most one '.'.
func normalizeSeparators(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' && r != ',' {
			return "", false
		}
	}

	dot := strings.LastIndexByte(s, '.')
	comma := strings.LastIndexByte(s, ',')
	switch {
	case dot >= 0 && comma >= 0:
		// The separator appearing last is the decimal one.
		if comma > dot {
			return groupedNumber(s, '.', ',')
		}
		return groupedNumber(s, ',', '.')
	case comma >= 0:
		frac := len(s) - comma - 1
		if strings.Count(s, ",") == 1 && (frac == 1 || frac == 2) {
			return strings.Replace(s, ",", ".", 1), true
		}
		return groupedNumber(s, ',', 0)
	default:
		if strings.Count(s, ".") > 1 {
			return "", false
		}
		if s == "." {
			return "", false
		}
		return s, true
	}
}

// groupedNumber strips the thousands separator, checking digit groups of
// three, and converts decimalSep (0 for none) to '.'.
func groupedNumber(s string, thousands, decimalSep byte) (string, bool) {
	intPart, frac := s, ""
	if decimalSep != 0 {
		i := strings.LastIndexByte(s, decimalSep)
		intPart, frac = s[:i], s[i+1:]
		if strings.IndexByte(frac, thousands) >= 0 || strings.IndexByte(intPart, decimalSep) >= 0 {
			return "", false
		}
	}
	groups := strings.Split(intPart, string(thousands))
	if groups[0] == "" || len(groups[0]) > 3 && len(groups) > 1 {
		return "", false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return "", false
		}
	}
	out := strings.Join(groups, "")
	if frac != "" {
		out += "." + frac
	}
	return out, true
}

// FormatCents renders cents as a dollar amount, e.g. -$12.30.
func FormatCents(cents int64) string {
	d := decimal.New(cents, -2)
	if d.IsNegative() {
		return "-$" + d.Neg().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}
