/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

import (
	"sort"
	"time"

	"github.com/friendsincode/crewdesk/internal/models"
)

// DateKey is a calendar date formatted as YYYY-MM-DD.
type DateKey string

const dateKeyLayout = "2006-01-02"

// KeyOf returns the calendar date of t in t's own location.
func KeyOf(t time.Time) DateKey {
	return DateKey(t.Format(dateKeyLayout))
}

// Time parses the key back into midnight UTC of that date.
func (k DateKey) Time() (time.Time, error) {
	return time.Parse(dateKeyLayout, string(k))
}

// DateSet is a set of calendar dates on which a worker cannot be scheduled.
type DateSet map[DateKey]struct{}

// Add inserts k.
func (s DateSet) Add(k DateKey) {
	s[k] = struct{}{}
}

// Has reports whether k is in the set. A nil set has nothing.
func (s DateSet) Has(k DateKey) bool {
	_, ok := s[k]
	return ok
}

// Sorted returns the keys in ascending order.
func (s DateSet) Sorted() []DateKey {
	keys := make([]DateKey, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// civil drops the clock and zone, keeping only the calendar date as UTC midnight.
func civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// UnavailableDates expands inclusive unavailability windows into the set of blocked dates.
// Windows whose end precedes their start contribute nothing.
func UnavailableDates(windows []models.WorkerUnavailability) DateSet {
	set := make(DateSet)
	for _, w := range windows {
		expandWindow(set, civil(w.StartDate), civil(w.EndDate))
	}
	return set
}

// UnavailableDatesWithin is UnavailableDates limited to the calendar dates from
// first through last, inclusive. last is read in first's location.
func UnavailableDatesWithin(windows []models.WorkerUnavailability, first, last time.Time) DateSet {
	lo := civil(first)
	hi := civil(last.In(first.Location()))
	set := make(DateSet)
	for _, w := range windows {
		expandWindow(set, maxTime(civil(w.StartDate), lo), minTime(civil(w.EndDate), hi))
	}
	return set
}

func expandWindow(set DateSet, from, to time.Time) {
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		set.Add(KeyOf(d))
	}
}

// HasConflict reports whether any calendar date from start through end, inclusive,
// is in unavailable. Time of day is ignored; the end is read in start's location.
// Unscheduled spans never conflict.
func HasConflict(start, end *time.Time, unavailable DateSet) bool {
	if start == nil || end == nil || len(unavailable) == 0 {
		return false
	}

	first := civil(*start)
	last := civil(end.In(start.Location()))
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		if unavailable.Has(KeyOf(d)) {
			return true
		}
	}
	return false
}

// spansOverlap is the strict overlap test used for double booking.
func spansOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
