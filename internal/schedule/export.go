/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/crewdesk/internal/models"
	"github.com/friendsincode/crewdesk/internal/scheduling"
)

// ErrWorkerNotFound is returned when the worker does not belong to the tenant.
var ErrWorkerNotFound = errors.New("worker not found")

// maxICalLine bounds one physical iCal line.
const maxICalLine = 1024 * 1024

// ExportService handles worker calendar import/export.
type ExportService struct {
	db     *gorm.DB
	sched  *scheduling.Service
	logger zerolog.Logger
}

// NewExportService creates a new export service.
func NewExportService(db *gorm.DB, sched *scheduling.Service, logger zerolog.Logger) *ExportService {
	return &ExportService{
		db:     db,
		sched:  sched,
		logger: logger.With().Str("component", "schedule_export").Logger(),
	}
}

// ExportICalResult contains the iCal export data.
type ExportICalResult struct {
	Data        []byte
	Filename    string
	ContentType string
}

// ExportWorkerICal exports a worker's assignments in [start, end) as an
// iCalendar feed. Conflicting assignments carry the conflict marker in
// SUMMARY and unavailability windows are exported as all-day events.
func (s *ExportService) ExportWorkerICal(ctx context.Context, tenantID, workerID string, start, end time.Time) (*ExportICalResult, error) {
	worker, err := s.loadWorker(ctx, tenantID, workerID)
	if err != nil {
		return nil, err
	}

	sched, err := s.sched.WorkerSchedule(ctx, tenantID, workerID, start, end)
	if err != nil {
		return nil, err
	}

	stamp := formatICalTime(time.Now())

	var buf bytes.Buffer
	buf.WriteString("BEGIN:VCALENDAR\r\n")
	buf.WriteString("VERSION:2.0\r\n")
	buf.WriteString("PRODID:-//CrewDesk//Worker Schedule//EN\r\n")
	buf.WriteString(fmt.Sprintf("X-WR-CALNAME:%s Schedule\r\n", escapeICalText(worker.Name)))
	buf.WriteString(fmt.Sprintf("X-WR-TIMEZONE:%s\r\n", sched.Timezone))
	buf.WriteString("CALSCALE:GREGORIAN\r\n")
	buf.WriteString("METHOD:PUBLISH\r\n")

	for _, ev := range sched.Events {
		if ev.Start == nil || ev.End == nil {
			continue
		}
		buf.WriteString("BEGIN:VEVENT\r\n")
		buf.WriteString(fmt.Sprintf("UID:%s@crewdesk\r\n", ev.AssignmentID))
		buf.WriteString(fmt.Sprintf("DTSTAMP:%s\r\n", stamp))
		buf.WriteString(fmt.Sprintf("DTSTART:%s\r\n", formatICalTime(*ev.Start)))
		buf.WriteString(fmt.Sprintf("DTEND:%s\r\n", formatICalTime(*ev.End)))
		buf.WriteString(fmt.Sprintf("SUMMARY:%s\r\n", escapeICalText(ev.Title)))
		buf.WriteString(fmt.Sprintf("STATUS:%s\r\n", icalStatus(ev)))
		if ev.Conflict {
			buf.WriteString("CATEGORIES:CONFLICT\r\n")
		}
		buf.WriteString(fmt.Sprintf("X-CREWDESK-JOB-ID:%s\r\n", ev.ID))
		buf.WriteString("END:VEVENT\r\n")
	}

	for _, w := range sched.Unavailability {
		buf.WriteString("BEGIN:VEVENT\r\n")
		buf.WriteString(fmt.Sprintf("UID:%s@crewdesk\r\n", w.ID))
		buf.WriteString(fmt.Sprintf("DTSTAMP:%s\r\n", stamp))
		buf.WriteString(fmt.Sprintf("DTSTART;VALUE=DATE:%s\r\n", formatICalDate(w.StartDate)))
		// All-day DTEND is exclusive.
		buf.WriteString(fmt.Sprintf("DTEND;VALUE=DATE:%s\r\n", formatICalDate(w.EndDate.AddDate(0, 0, 1))))
		summary := "Unavailable"
		if w.Reason != nil && *w.Reason != "" {
			summary += ": " + *w.Reason
		}
		buf.WriteString(fmt.Sprintf("SUMMARY:%s\r\n", escapeICalText(summary)))
		buf.WriteString("TRANSP:OPAQUE\r\n")
		buf.WriteString("END:VEVENT\r\n")
	}

	buf.WriteString("END:VCALENDAR\r\n")

	filename := fmt.Sprintf("%s-schedule-%s-to-%s.ics",
		slugify(worker.Name),
		start.Format("2006-01-02"),
		end.Format("2006-01-02"))

	s.logger.Debug().
		Str("tenant_id", tenantID).
		Str("worker_id", workerID).
		Int("events", len(sched.Events)).
		Msg("exported worker calendar")

	return &ExportICalResult{
		Data:        buf.Bytes(),
		Filename:    filename,
		ContentType: "text/calendar; charset=utf-8",
	}, nil
}

func icalStatus(ev scheduling.Event) string {
	if ev.EffectiveStatus == string(models.JobDraft) {
		return "TENTATIVE"
	}
	return "CONFIRMED"
}

// ImportICalResult contains the result of an iCal import.
type ImportICalResult struct {
	Imported int                           `json:"imported"`
	Skipped  int                           `json:"skipped"`
	Errors   []string                      `json:"errors,omitempty"`
	Windows  []models.WorkerUnavailability `json:"windows"`
}

// ImportUnavailabilityICal turns each VEVENT of an external calendar (time
// off, leave) into an unavailability window for the worker. Events are
// read in the tenant timezone; windows that already exist are skipped.
func (s *ExportService) ImportUnavailabilityICal(ctx context.Context, tenantID, workerID string, data io.Reader) (*ImportICalResult, error) {
	if _, err := s.loadWorker(ctx, tenantID, workerID); err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(data)
	if err != nil {
		return nil, fmt.Errorf("failed to read iCal data: %w", err)
	}

	loc := s.sched.Location(ctx, tenantID)
	result := &ImportICalResult{Windows: []models.WorkerUnavailability{}}

	parsed, err := parseICalEvents(string(raw), loc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse iCal data: %w", err)
	}

	for _, event := range parsed {
		if event.Start.IsZero() {
			result.Skipped++
			continue
		}
		startDate, endDate := event.Dates()
		if days := models.UnavailabilityDays(startDate, endDate); days > models.MaxUnavailabilityDays {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("%q spans %d days, limit is %d", event.Summary, days, models.MaxUnavailabilityDays))
			continue
		}

		var existing int64
		if err := s.db.WithContext(ctx).Model(&models.WorkerUnavailability{}).
			Where("tenant_id = ? AND worker_id = ? AND start_date = ? AND end_date = ?", tenantID, workerID, startDate, endDate).
			Count(&existing).Error; err != nil {
			return nil, err
		}
		if existing > 0 {
			result.Skipped++
			continue
		}

		window := models.WorkerUnavailability{
			ID:        uuid.NewString(),
			TenantID:  tenantID,
			WorkerID:  workerID,
			StartDate: startDate,
			EndDate:   endDate,
		}
		if event.Summary != "" {
			reason := event.Summary
			window.Reason = &reason
		}
		if err := s.db.WithContext(ctx).Create(&window).Error; err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to import %q: %v", event.Summary, err))
			continue
		}
		result.Imported++
		result.Windows = append(result.Windows, window)
	}

	s.logger.Info().
		Str("tenant_id", tenantID).
		Str("worker_id", workerID).
		Int("imported", result.Imported).
		Int("skipped", result.Skipped).
		Msg("iCal import completed")

	return result, nil
}

func (s *ExportService) loadWorker(ctx context.Context, tenantID, workerID string) (*models.Worker, error) {
	var worker models.Worker
	if err := s.db.WithContext(ctx).First(&worker, "id = ? AND tenant_id = ?", workerID, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkerNotFound
		}
		return nil, err
	}
	return &worker, nil
}

// ICalEvent represents a parsed iCal event.
type ICalEvent struct {
	UID     string
	Summary string
	Start   time.Time
	End     time.Time
	AllDay  bool
}

// Dates returns the inclusive calendar dates the event covers, as UTC midnights.
func (e ICalEvent) Dates() (time.Time, time.Time) {
	first := dateOf(e.Start)
	last := first
	switch {
	case e.End.IsZero():
	case e.AllDay && e.End.After(e.Start):
		last = dateOf(e.End.AddDate(0, 0, -1))
	case e.End.After(e.Start):
		last = dateOf(e.End.Add(-time.Nanosecond))
	}
	if last.Before(first) {
		last = first
	}
	return first, last
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// parseICalEvents parses events from iCal content. Folded lines are joined
// and property parameters other than VALUE=DATE and TZID are ignored.
func parseICalEvents(content string, loc *time.Location) ([]ICalEvent, error) {
	lines, err := unfoldLines(content)
	if err != nil {
		return nil, err
	}

	var events []ICalEvent
	var current *ICalEvent

	for _, line := range lines {
		name, params, value, ok := splitProperty(line)
		if !ok {
			continue
		}

		switch {
		case name == "BEGIN" && value == "VEVENT":
			current = &ICalEvent{}
		case name == "END" && value == "VEVENT" && current != nil:
			events = append(events, *current)
			current = nil
		case current == nil:
		case name == "UID":
			current.UID = value
		case name == "SUMMARY":
			current.Summary = unescapeICalText(value)
		case name == "DTSTART":
			current.Start, current.AllDay = parseICalTime(value, params, loc)
		case name == "DTEND":
			current.End, _ = parseICalTime(value, params, loc)
		}
	}

	return events, nil
}

// unfoldLines joins folded content lines. A line longer than maxICalLine is an error.
func unfoldLines(content string) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(strings.NewReader(content))
	sc.Buffer(make([]byte, 0, 64*1024), maxICalLine)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) && len(lines) > 0 {
			lines[len(lines)-1] += line[1:]
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func splitProperty(line string) (name string, params map[string]string, value string, ok bool) {
	idx := strings.Index(line, ":")
	if idx <= 0 {
		return "", nil, "", false
	}
	head, value := line[:idx], line[idx+1:]
	parts := strings.Split(head, ";")
	name = strings.ToUpper(parts[0])
	params = make(map[string]string, len(parts)-1)
	for _, p := range parts[1:] {
		if k, v, found := strings.Cut(p, "="); found {
			params[strings.ToUpper(k)] = v
		}
	}
	return name, params, strings.TrimSpace(value), true
}

// parseICalTime parses an iCal time value, reporting whether it is date-only.
func parseICalTime(s string, params map[string]string, loc *time.Location) (time.Time, bool) {
	if params["VALUE"] == "DATE" || len(s) == len("20060102") {
		t, err := time.Parse("20060102", s)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	if strings.HasSuffix(s, "Z") {
		t, err := time.Parse("20060102T150405Z", s)
		if err != nil {
			return time.Time{}, false
		}
		return t.In(loc), false
	}
	zone := loc
	if tzid := params["TZID"]; tzid != "" {
		if l, err := time.LoadLocation(tzid); err == nil {
			zone = l
		}
	}
	t, err := time.ParseInLocation("20060102T150405", s, zone)
	if err != nil {
		return time.Time{}, false
	}
	return t.In(loc), false
}

// Helper functions

func formatICalTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

func formatICalDate(t time.Time) string {
	return t.Format("20060102")
}

func escapeICalText(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

func unescapeICalText(s string) string {
	s = strings.ReplaceAll(s, "\\n", "\n")
	s = strings.ReplaceAll(s, "\\N", "\n")
	s = strings.ReplaceAll(s, "\\,", ",")
	s = strings.ReplaceAll(s, "\\;", ";")
	s = strings.ReplaceAll(s, "\\\\", "\\")
	return s
}

func slugify(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "-")
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			result.WriteRune(r)
		}
	}
	if result.Len() == 0 {
		return "worker"
	}
	return result.String()
}
