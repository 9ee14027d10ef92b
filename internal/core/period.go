package core

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Month identifies a calendar month. It is the unit of ingestion scoping.
type Month struct {
	Year  int
	Month time.Month
}

// Period is an inclusive range of calendar days.
type Period struct {
	From Date
	To   Date
}

func MonthOf(d Date) Month {
	return Month{Year: d.Year(), Month: d.Time.Month()}
}

// ParseMonth parses the YYYY-MM form.
func ParseMonth(s string) (Month, error) {
	s = strings.TrimSpace(s)
	if len(s) != 7 {
		return Month{}, ErrInvalidMonth
	}
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, ErrInvalidMonth
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

func (m Month) First() Date {
	return NewDate(m.Year, int(m.Month), 1)
}

func (m Month) Last() Date {
	return m.Next().First().AddDays(-1)
}

func (m Month) Days() int {
	return m.Last().Day()
}

func (m Month) Next() Month {
	return m.Add(1)
}

func (m Month) Prev() Month {
	return m.Add(-1)
}

func (m Month) Add(n int) Month {
	t := time.Date(m.Year, m.Month+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	return Month{Year: t.Year(), Month: t.Month()}
}

func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

// Compare orders months chronologically, returning -1, 0 or 1.
func (m Month) Compare(o Month) int {
	switch {
	case m.Before(o):
		return -1
	case o.Before(m):
		return 1
	}
	return 0
}

// SortMonths sorts ms ascending and drops duplicates.
func SortMonths(ms []Month) []Month {
	slices.SortFunc(ms, Month.Compare)
	return slices.Compact(ms)
}

func (m Month) Period() Period {
	return Period{From: m.First(), To: m.Last()}
}

func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Month) UnmarshalText(b []byte) error {
	parsed, err := ParseMonth(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParsePeriod accepts either YYYY-MM or an inclusive range
// YYYY-MM-DD..YYYY-MM-DD.
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	from, to, isRange := strings.Cut(s, "..")
	if !isRange {
		m, err := ParseMonth(s)
		if err != nil {
			return Period{}, ErrInvalidPeriod
		}
		return m.Period(), nil
	}
	f, err := ParseDate(from)
	if err != nil {
		return Period{}, ErrInvalidPeriod
	}
	t, err := ParseDate(to)
	if err != nil {
		return Period{}, ErrInvalidPeriod
	}
	if t.Before(f.Time) {
		return Period{}, ErrInvalidPeriod
	}
	return Period{From: f, To: t}, nil
}

// CurrentMonthPeriod returns the calendar month containing now.
func CurrentMonthPeriod(now time.Time) Period {
	return MonthOf(DateOf(now)).Period()
}

// Days is the number of calendar days in the period, both ends included.
func (p Period) Days() int {
	return int(p.To.Sub(p.From.Time).Hours()/24) + 1
}

func (p Period) Contains(d Date) bool {
	return !d.Before(p.From.Time) && !d.After(p.To.Time)
}

// AsMonth reports whether the period covers exactly one calendar month.
func (p Period) AsMonth() (Month, bool) {
	m := MonthOf(p.From)
	return m, p.From.Equal(m.First().Time) && p.To.Equal(m.Last().Time)
}

// Months lists every calendar month the period touches, ascending.
func (p Period) Months() []Month {
	var out []Month
	last := MonthOf(p.To)
	for m := MonthOf(p.From); !last.Before(m); m = m.Next() {
		out = append(out, m)
	}
	return out
}

func (p Period) String() string {
	if m, ok := p.AsMonth(); ok {
		return m.String()
	}
	return p.From.String() + ".." + p.To.String()
}

func (p Period) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Period) UnmarshalText(b []byte) error {
	parsed, err := ParsePeriod(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
