/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package period turns symbolic reporting periods into concrete time ranges.
//
// Ranges are half-open: a timestamp t is inside when Start <= t < End.
// Boundaries are computed in the location of the supplied "now", so callers
// convert now into the tenant's timezone before resolving.
package period

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Period is a caller-chosen reporting window.
type Period int

const (
	All Period = iota
	Today
	Week
	Month
	Year
)

// ErrUnknownPeriod is returned by Parse for tokens outside the closed set.
var ErrUnknownPeriod = errors.New("unknown period")

var names = map[Period]string{
	All:   "all",
	Today: "today",
	Week:  "week",
	Month: "month",
	Year:  "year",
}

// String returns the wire token for p.
func (p Period) String() string {
	if n, ok := names[p]; ok {
		return n
	}
	return fmt.Sprintf("Period(%d)", int(p))
}

// Parse converts a request token into a Period. Empty input means All.
func Parse(token string) (Period, error) {
	t := strings.ToLower(strings.TrimSpace(token))
	if t == "" {
		return All, nil
	}
	for p, n := range names {
		if n == t {
			return p, nil
		}
	}
	return All, fmt.Errorf("%w: %q", ErrUnknownPeriod, token)
}

// MarshalText implements encoding.TextMarshaler.
func (p Period) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Period) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Range is a resolved [Start, End) window.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls in the half-open range. A nil range contains everything.
func (r *Range) Contains(t time.Time) bool {
	if r == nil {
		return true
	}
	return !t.Before(r.Start) && t.Before(r.End)
}

// Days returns the number of calendar days the range covers, counted as date
// boundaries crossed in Start's location so DST shifts do not shorten a day.
func (r *Range) Days() int {
	if r == nil {
		return 0
	}
	end := r.End.In(r.Start.Location())
	first := time.Date(r.Start.Year(), r.Start.Month(), r.Start.Day(), 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return int((last.Unix() - first.Unix()) / 86400)
}

// Resolve anchors p to now. It returns nil for All, meaning no range filter.
func Resolve(p Period, now time.Time) *Range {
	loc := now.Location()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	switch p {
	case Today:
		return &Range{Start: day, End: day.AddDate(0, 0, 1)}
	case Week:
		// time.Weekday has Sunday = 0; shift so Monday = 0.
		offset := (int(day.Weekday()) + 6) % 7
		start := day.AddDate(0, 0, -offset)
		return &Range{Start: start, End: start.AddDate(0, 0, 7)}
	case Month:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		return &Range{Start: start, End: start.AddDate(0, 1, 0)}
	case Year:
		start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, loc)
		return &Range{Start: start, End: start.AddDate(1, 0, 0)}
	default:
		return nil
	}
}

// DayRange builds the range covering calendar dates from through to, inclusive,
// in loc. It returns an error when to precedes from.
func DayRange(from, to time.Time, loc *time.Location) (*Range, error) {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	last := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, loc)
	if last.Before(start) {
		return nil, fmt.Errorf("end date %s is before start date %s", last.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	return &Range{Start: start, End: last.AddDate(0, 0, 1)}, nil
}
