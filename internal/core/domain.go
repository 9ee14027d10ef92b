package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const (
	ModeReplace Mode = "replace"
	ModeAppend  Mode = "append"
)

// OtherCategory is assigned when no categorization rule matches.
const OtherCategory = "Other"

type (
	Mode string

	Date struct {
		time.Time
	}

	Transaction struct {
		ID          string
		Date        Date
		Merchant    string
		AmountCents int64 // positive = spend, negative = refund/credit
		Category    string
		City        string
		Channel     string
		Memo        string
	}

	// Budgets maps a category to its cap in cents.
	Budgets map[string]int64
)

var (
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidMonth  = errors.New("invalid month")
	ErrInvalidPeriod = errors.New("invalid period")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidMode   = errors.New("invalid mode")
)

// ParseMode accepts "replace" or "append"; an empty string means append.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAppend:
		return ModeAppend, nil
	case ModeReplace:
		return ModeReplace, nil
	default:
		return "", ErrInvalidMode
	}
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate accepts an ISO calendar date, optionally followed by an RFC 3339
// time component which is discarded. Other layouts are rejected.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > 10 {
		if _, err := time.Parse(time.RFC3339, s); err != nil {
			return Date{}, ErrInvalidDate
		}
		s = s[:10]
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

func (d Date) String() string {
	return d.Format(time.DateOnly)
}

func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Month returns the calendar month the transaction is scoped to.
func (t Transaction) Month() Month {
	return MonthOf(t.Date)
}

func (t Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID          string `json:"id"`
		Date        Date   `json:"date"`
		Month       Month  `json:"month"`
		Merchant    string `json:"merchant"`
		AmountCents int64  `json:"amount_cents"`
		Category    string `json:"category"`
		City        string `json:"city,omitempty"`
		Channel     string `json:"channel,omitempty"`
		Memo        string `json:"memo,omitempty"`
	}{t.ID, t.Date, t.Month(), t.Merchant, t.AmountCents, t.Category, t.City, t.Channel, t.Memo})
}

// Validate checks the fields a stored transaction cannot do without.
func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Merchant) == "" {
		return errors.New("empty merchant")
	}
	return nil
}

// Cap returns the budget for category and whether one is configured.
func (b Budgets) Cap(category string) (int64, bool) {
	c, ok := b[category]
	return c, ok
}
