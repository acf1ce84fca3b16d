/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

import (
	"time"

	"github.com/friendsincode/crewdesk/internal/models"
)

// ConflictMarker prefixes the title of an event that falls on an unavailable date.
const ConflictMarker = "⚠ CONFLICT: "

// StatusConflict is the effective status reported for flagged events.
const StatusConflict = "conflict"

// AssignedJob is one worker assignment joined with its job and customer.
type AssignedJob struct {
	ID           string           `json:"id"` // job id
	AssignmentID string           `json:"assignment_id"`
	WorkerID     string           `json:"worker_id"`
	Title        string           `json:"title"`
	Status       models.JobStatus `json:"status"`
	Start        *time.Time       `json:"start_time"`
	End          *time.Time       `json:"end_time"`
	Customer     string           `json:"customer_display_name"`
}

// Event is a calendar entry ready for display.
type Event struct {
	ID              string     `json:"id"`
	AssignmentID    string     `json:"assignment_id,omitempty"`
	WorkerID        string     `json:"worker_id,omitempty"`
	Title           string     `json:"title"`
	Start           *time.Time `json:"start"`
	End             *time.Time `json:"end"`
	EffectiveStatus string     `json:"effective_status"`
	Conflict        bool       `json:"conflict"`
}

// BuildEvents annotates each assignment with its conflict state. Output order matches input.
func BuildEvents(assignments []AssignedJob, unavailable DateSet) []Event {
	events := make([]Event, 0, len(assignments))
	for _, a := range assignments {
		conflict := HasConflict(a.Start, a.End, unavailable)

		title := displayTitle(a)
		status := string(a.Status)
		if conflict {
			title = ConflictMarker + title
			status = StatusConflict
		}

		events = append(events, Event{
			ID:              a.ID,
			AssignmentID:    a.AssignmentID,
			WorkerID:        a.WorkerID,
			Title:           title,
			Start:           a.Start,
			End:             a.End,
			EffectiveStatus: status,
			Conflict:        conflict,
		})
	}
	return events
}

func displayTitle(a AssignedJob) string {
	if a.Customer == "" {
		return a.Title
	}
	return a.Title + " - " + a.Customer
}

// Conflicting filters events down to the flagged ones.
func Conflicting(events []Event) []Event {
	var out []Event
	for _, e := range events {
		if e.Conflict {
			out = append(out, e)
		}
	}
	return out
}
