package core

import (
	"testing"
	"time"
)

func TestParseMonth(t *testing.T) {
	m, err := ParseMonth("2025-10")
	if err != nil || m != (Month{2025, time.October}) {
		t.Fatalf("got %v, %v", m, err)
	}
	for _, bad := range []string{"2025-1", "2025-13", "202510", "2025-10-01", ""} {
		if _, err := ParseMonth(bad); err == nil {
			t.Fatalf("%q expected error", bad)
		}
	}
}

func TestMonthArithmetic(t *testing.T) {
	cases := []struct {
		m    Month
		days int
		prev string
		next string
	}{
		{Month{2025, time.January}, 31, "2024-12", "2025-02"},
		{Month{2024, time.February}, 29, "2024-01", "2024-03"},
		{Month{2025, time.February}, 28, "2025-01", "2025-03"},
		{Month{2025, time.December}, 31, "2025-11", "2026-01"},
	}
	for _, tc := range cases {
		if tc.m.Days() != tc.days {
			t.Fatalf("%s days = %d, want %d", tc.m, tc.m.Days(), tc.days)
		}
		if tc.m.Prev().String() != tc.prev || tc.m.Next().String() != tc.next {
			t.Fatalf("%s prev/next = %s/%s", tc.m, tc.m.Prev(), tc.m.Next())
		}
	}
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("2025-10")
	if err != nil {
		t.Fatal(err)
	}
	if p.Days() != 31 || p.String() != "2025-10" {
		t.Fatalf("month period: %d days, %s", p.Days(), p)
	}
	if _, ok := p.AsMonth(); !ok {
		t.Fatalf("expected month period")
	}

	r, err := ParsePeriod("2025-09-25..2025-10-05")
	if err != nil {
		t.Fatal(err)
	}
	if r.Days() != 11 || r.String() != "2025-09-25..2025-10-05" {
		t.Fatalf("range period: %d days, %s", r.Days(), r)
	}
	if len(r.Months()) != 2 {
		t.Fatalf("range should touch two months, got %v", r.Months())
	}
	if !r.Contains(NewDate(2025, 10, 5)) || r.Contains(NewDate(2025, 10, 6)) {
		t.Fatalf("range bounds must be inclusive")
	}

	for _, bad := range []string{"2025-10-05..2025-10-01", "2025-10-01..", "oct", "2025-10-01"} {
		if _, err := ParsePeriod(bad); err != ErrInvalidPeriod {
			t.Fatalf("%q expected ErrInvalidPeriod, got %v", bad, err)
		}
	}
}

func TestCurrentMonthPeriod(t *testing.T) {
	now := time.Date(2025, 10, 17, 15, 0, 0, 0, time.UTC)
	p := CurrentMonthPeriod(now)
	if p.String() != "2025-10" {
		t.Fatalf("got %s", p)
	}
}
