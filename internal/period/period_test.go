/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package period

import (
	"errors"
	"testing"
	"time"
)

func TestResolveUTC(t *testing.T) {
	now := time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC) // Friday

	tests := []struct {
		name      string
		period    Period
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "today",
			period:    Today,
			wantStart: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "week starts monday",
			period:    Week,
			wantStart: time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "month",
			period:    Month,
			wantStart: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "year",
			period:    Year,
			wantStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Resolve(tt.period, now)
			if r == nil {
				t.Fatal("expected a range")
			}
			if !r.Start.Equal(tt.wantStart) || !r.End.Equal(tt.wantEnd) {
				t.Fatalf("Resolve(%s) = [%s, %s), want [%s, %s)", tt.period, r.Start, r.End, tt.wantStart, tt.wantEnd)
			}
			if !r.Contains(now) {
				t.Fatalf("range %v does not contain now", r)
			}
		})
	}
}

func TestResolveAllHasNoBounds(t *testing.T) {
	if r := Resolve(All, time.Now()); r != nil {
		t.Fatalf("expected nil range for all, got %+v", r)
	}
	var r *Range
	if !r.Contains(time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("nil range must contain everything")
	}
}

func TestResolveWeekFromWednesday(t *testing.T) {
	wednesday := time.Date(2024, 3, 13, 9, 0, 0, 0, time.UTC)
	r := Resolve(Week, wednesday)
	if r.Start.Weekday() != time.Monday {
		t.Fatalf("week start is %s, want Monday", r.Start.Weekday())
	}
	if !r.Start.Equal(time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected week start %s", r.Start)
	}
	if got := r.End.Sub(r.Start); got != 7*24*time.Hour {
		t.Fatalf("week length = %s, want 168h", got)
	}
}

func TestResolveWeekOnEdges(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"monday midnight belongs to its own week", time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)},
		{"sunday late belongs to the previous monday", time.Date(2024, 3, 17, 23, 59, 0, 0, time.UTC), time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)},
		{"week spanning a year boundary", time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC), time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Resolve(Week, tt.now)
			if !r.Start.Equal(tt.want) {
				t.Fatalf("start = %s, want %s", r.Start, tt.want)
			}
			if r.Contains(r.End) {
				t.Fatal("range end must be exclusive")
			}
		})
	}
}

func TestResolveUsesLocationOfNow(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 02:00 UTC on the 16th is still the 15th in New York.
	now := time.Date(2024, 3, 16, 2, 0, 0, 0, time.UTC).In(loc)
	r := Resolve(Today, now)
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, loc)
	if !r.Start.Equal(want) {
		t.Fatalf("start = %s, want %s", r.Start, want)
	}
	if !r.End.Equal(time.Date(2024, 3, 16, 0, 0, 0, 0, loc)) {
		t.Fatalf("unexpected end %s", r.End)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Period
		wantErr bool
	}{
		{"today", Today, false},
		{"WEEK", Week, false},
		{" month ", Month, false},
		{"year", Year, false},
		{"all", All, false},
		{"", All, false},
		{"fortnight", All, true},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("Parse(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownPeriod) {
				t.Fatalf("Parse(%q) err = %v, want ErrUnknownPeriod", tt.in, err)
			}
			continue
		}
		if got != tt.want {
			t.Fatalf("Parse(%q) = %s, want %s", tt.in, got, tt.want)
		}
		if tt.in != "" && got.String() == "" {
			t.Fatalf("String() empty for %v", got)
		}
	}
}

func TestDaysAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	tests := []struct {
		name string
		now  time.Time
		p    Period
		want int
	}{
		{"spring forward week", time.Date(2024, 3, 6, 12, 0, 0, 0, loc), Week, 7},
		{"fall back week", time.Date(2024, 11, 6, 12, 0, 0, 0, loc), Week, 7},
		{"spring forward day", time.Date(2024, 3, 10, 12, 0, 0, 0, loc), Today, 1},
		{"march", time.Date(2024, 3, 20, 12, 0, 0, 0, loc), Month, 31},
		{"leap year", time.Date(2024, 6, 1, 12, 0, 0, 0, loc), Year, 366},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.p, tt.now).Days(); got != tt.want {
				t.Fatalf("Days() = %d, want %d", got, tt.want)
			}
		})
	}

	r, err := DayRange(time.Date(2024, 1, 1, 0, 0, 0, 0, loc), time.Date(2024, 12, 31, 0, 0, 0, 0, loc), loc)
	if err != nil {
		t.Fatalf("DayRange: %v", err)
	}
	if r.Days() != 366 {
		t.Fatalf("DayRange year Days() = %d, want 366", r.Days())
	}
}

func TestDayRange(t *testing.T) {
	from := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 12, 1, 0, 0, 0, time.UTC)
	r, err := DayRange(from, to, time.UTC)
	if err != nil {
		t.Fatalf("DayRange: %v", err)
	}
	if !r.Start.Equal(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)) || !r.End.Equal(time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected range %+v", r)
	}
	if r.Days() != 3 {
		t.Fatalf("Days() = %d, want 3", r.Days())
	}

	if _, err := DayRange(to, from, time.UTC); err == nil {
		t.Fatal("expected error for reversed range")
	}
}
