/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/crewdesk/internal/models"
	"github.com/friendsincode/crewdesk/internal/period"
	"github.com/friendsincode/crewdesk/internal/telemetry"
)

// ErrInvalidRange is returned when a range ends at or before its start.
var ErrInvalidRange = errors.New("invalid range")

// ViolationType classifies a pre-assignment problem.
type ViolationType string

const (
	ViolationUnavailable  ViolationType = "unavailable"
	ViolationDoubleBooked ViolationType = "double_booked"
)

// Violation describes why assigning a worker to a job is risky.
type Violation struct {
	Type        ViolationType  `json:"type"`
	Message     string         `json:"message"`
	StartsAt    time.Time      `json:"starts_at"`
	EndsAt      time.Time      `json:"ends_at"`
	AffectedIDs []string       `json:"affected_ids,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
}

// WorkerSchedule is one worker's annotated calendar for a range.
type WorkerSchedule struct {
	WorkerID       string                        `json:"worker_id"`
	Range          period.Range                  `json:"range"`
	Timezone       string                        `json:"timezone"`
	Events         []Event                       `json:"events"`
	Unavailability []models.WorkerUnavailability `json:"unavailability"`
	Conflicts      int                           `json:"conflicts"`
}

// Service loads assignments and unavailability from the database and annotates them.
type Service struct {
	db         *gorm.DB
	defaultLoc *time.Location
	logger     zerolog.Logger
}

// NewService creates a schedule service. defaultLoc is used for tenants without a timezone.
func NewService(db *gorm.DB, defaultLoc *time.Location, logger zerolog.Logger) *Service {
	if defaultLoc == nil {
		defaultLoc = time.UTC
	}
	return &Service{
		db:         db,
		defaultLoc: defaultLoc,
		logger:     logger.With().Str("component", "scheduling").Logger(),
	}
}

// Location returns the timezone schedules for tenantID are computed in.
func (s *Service) Location(ctx context.Context, tenantID string) *time.Location {
	var tenant models.Tenant
	if err := s.db.WithContext(ctx).Select("id", "timezone").First(&tenant, "id = ?", tenantID).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn().Err(err).Str("tenant_id", tenantID).Msg("tenant lookup failed, using default timezone")
		}
		return s.defaultLoc
	}
	return tenant.Location(s.defaultLoc)
}

// WorkerSchedule builds the calendar for one worker over [start, end).
func (s *Service) WorkerSchedule(ctx context.Context, tenantID, workerID string, start, end time.Time) (*WorkerSchedule, error) {
	if !end.After(start) {
		return nil, ErrInvalidRange
	}

	ctx, span := telemetry.StartWorkerSpan(ctx, "scheduling", "WorkerSchedule", tenantID, workerID)
	defer span.End()
	began := time.Now()

	loc := s.Location(ctx, tenantID)
	r := period.Range{Start: start.In(loc), End: end.In(loc)}

	assignments, err := s.loadAssignments(ctx, tenantID, []string{workerID}, &r)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	windows, err := s.loadUnavailability(ctx, tenantID, []string{workerID}, &r)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	events := BuildEvents(normalizeAssignments(assignments, loc), UnavailableDatesWithin(windows, r.Start, r.End))
	conflicts := len(Conflicting(events))

	telemetry.ScheduleBuildDuration.WithLabelValues("worker").Observe(time.Since(began).Seconds())
	telemetry.ConflictsDetectedTotal.Add(float64(conflicts))
	span.SetAttributes(telemetry.AttrEvents.Int(len(events)), telemetry.AttrConflicts.Int(conflicts))

	s.logger.Debug().
		Str("tenant_id", tenantID).
		Str("worker_id", workerID).
		Int("events", len(events)).
		Int("conflicts", conflicts).
		Msg("built worker schedule")

	return &WorkerSchedule{
		WorkerID:       workerID,
		Range:          r,
		Timezone:       loc.String(),
		Events:         events,
		Unavailability: windows,
		Conflicts:      conflicts,
	}, nil
}

// CheckAssignment reports what would go wrong if workerID were assigned to jobID.
// Unscheduled jobs have nothing to check.
func (s *Service) CheckAssignment(ctx context.Context, tenantID, jobID, workerID string) ([]Violation, error) {
	ctx, span := telemetry.StartWorkerSpan(ctx, "scheduling", "CheckAssignment", tenantID, workerID, telemetry.AttrJobID.String(jobID))
	defer span.End()

	var job models.Job
	if err := s.db.WithContext(ctx).First(&job, "id = ? AND tenant_id = ?", jobID, tenantID).Error; err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	var worker models.Worker
	if err := s.db.WithContext(ctx).First(&worker, "id = ? AND tenant_id = ?", workerID, tenantID).Error; err != nil {
		return nil, fmt.Errorf("load worker: %w", err)
	}

	violations := []Violation{}
	if job.ScheduledStart == nil || job.ScheduledEnd == nil {
		return violations, nil
	}

	loc := s.Location(ctx, tenantID)
	start := job.ScheduledStart.In(loc)
	end := job.ScheduledEnd.In(loc)
	jobRange := period.Range{Start: start, End: end}

	windows, err := s.loadUnavailability(ctx, tenantID, []string{workerID}, &jobRange)
	if err != nil {
		return nil, err
	}
	blocked := UnavailableDatesWithin(windows, start, end)
	if HasConflict(&start, &end, blocked) {
		ids := make([]string, 0, len(windows))
		for _, w := range windows {
			ids = append(ids, w.ID)
		}
		violations = append(violations, Violation{
			Type:        ViolationUnavailable,
			Message:     fmt.Sprintf("%s is unavailable during %q", worker.Name, job.Title),
			StartsAt:    start,
			EndsAt:      end,
			AffectedIDs: ids,
			Details: map[string]any{
				"worker_id": workerID,
				"dates":     blockedWithin(blocked, start, end),
			},
		})
	}

	others, err := s.loadAssignments(ctx, tenantID, []string{workerID}, &jobRange)
	if err != nil {
		return nil, err
	}
	for _, other := range others {
		if other.Job == nil || other.JobID == jobID {
			continue
		}
		oStart, oEnd := *other.Job.ScheduledStart, *other.Job.ScheduledEnd
		if !spansOverlap(start, end, oStart, oEnd) {
			continue
		}
		overlapStart := maxTime(start, oStart.In(loc))
		overlapEnd := minTime(end, oEnd.In(loc))
		violations = append(violations, Violation{
			Type:        ViolationDoubleBooked,
			Message:     fmt.Sprintf("%s is already booked on %q at that time", worker.Name, other.Job.Title),
			StartsAt:    overlapStart,
			EndsAt:      overlapEnd,
			AffectedIDs: []string{jobID, other.JobID},
			Details: map[string]any{
				"worker_id":       workerID,
				"overlap_minutes": int(overlapEnd.Sub(overlapStart).Minutes()),
			},
		})
	}

	for _, v := range violations {
		telemetry.AssignmentViolationsTotal.WithLabelValues(string(v.Type)).Inc()
	}
	return violations, nil
}

// TenantConflicts lists every conflicting assignment across a tenant's workers, ordered by start.
// A nil range means all scheduled jobs.
func (s *Service) TenantConflicts(ctx context.Context, tenantID string, r *period.Range) ([]Event, error) {
	ctx, span := telemetry.StartTenantSpan(ctx, "scheduling", "TenantConflicts", tenantID)
	defer span.End()
	began := time.Now()

	loc := s.Location(ctx, tenantID)

	assignments, err := s.loadAssignments(ctx, tenantID, nil, r)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	windows, err := s.loadUnavailability(ctx, tenantID, nil, r)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	byWorker := make(map[string][]models.WorkerUnavailability)
	for _, w := range windows {
		byWorker[w.WorkerID] = append(byWorker[w.WorkerID], w)
	}

	conflicts := []Event{}
	for _, a := range normalizeAssignments(assignments, loc) {
		blocked, ok := byWorker[a.WorkerID]
		if !ok || a.Start == nil || a.End == nil {
			continue
		}
		within := UnavailableDatesWithin(blocked, *a.Start, *a.End)
		conflicts = append(conflicts, Conflicting(BuildEvents([]AssignedJob{a}, within))...)
	}
	SortEvents(conflicts)

	telemetry.ScheduleBuildDuration.WithLabelValues("tenant").Observe(time.Since(began).Seconds())
	span.SetAttributes(telemetry.AttrConflicts.Int(len(conflicts)))
	return conflicts, nil
}

// loadAssignments returns assignments whose job is scheduled and overlaps r, ordered by start.
// An empty workerIDs slice means every worker.
func (s *Service) loadAssignments(ctx context.Context, tenantID string, workerIDs []string, r *period.Range) ([]models.JobAssignment, error) {
	q := s.db.WithContext(ctx).
		Joins("JOIN jobs ON jobs.id = job_assignments.job_id").
		Preload("Job.Customer").
		Where("job_assignments.tenant_id = ?", tenantID).
		Where("jobs.scheduled_start IS NOT NULL AND jobs.scheduled_end IS NOT NULL")

	if len(workerIDs) > 0 {
		q = q.Where("job_assignments.worker_id IN ?", workerIDs)
	}
	if r != nil {
		q = q.Where("jobs.scheduled_start < ? AND jobs.scheduled_end > ?", r.End.UTC(), r.Start.UTC())
	}

	var assignments []models.JobAssignment
	if err := q.Order("jobs.scheduled_start ASC").Find(&assignments).Error; err != nil {
		return nil, fmt.Errorf("load assignments: %w", err)
	}
	return assignments, nil
}

// loadUnavailability returns windows touching any calendar date of r.
func (s *Service) loadUnavailability(ctx context.Context, tenantID string, workerIDs []string, r *period.Range) ([]models.WorkerUnavailability, error) {
	q := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if len(workerIDs) > 0 {
		q = q.Where("worker_id IN ?", workerIDs)
	}
	if r != nil {
		first := civil(r.Start)
		last := civil(r.End)
		q = q.Where("start_date <= ? AND end_date >= ?", last, first)
	}

	var windows []models.WorkerUnavailability
	if err := q.Order("start_date ASC").Find(&windows).Error; err != nil {
		return nil, fmt.Errorf("load unavailability: %w", err)
	}
	return windows, nil
}

// normalizeAssignments flattens preloaded rows into the view builder's input, with
// timestamps moved into loc so date keys follow the tenant's calendar.
func normalizeAssignments(rows []models.JobAssignment, loc *time.Location) []AssignedJob {
	out := make([]AssignedJob, 0, len(rows))
	for _, row := range rows {
		if row.Job == nil {
			continue
		}
		a := AssignedJob{
			ID:           row.JobID,
			AssignmentID: row.ID,
			WorkerID:     row.WorkerID,
			Title:        row.Job.Title,
			Status:       row.Job.Status,
			Customer:     row.Job.Customer.DisplayName(),
		}
		if row.Job.ScheduledStart != nil {
			t := row.Job.ScheduledStart.In(loc)
			a.Start = &t
		}
		if row.Job.ScheduledEnd != nil {
			t := row.Job.ScheduledEnd.In(loc)
			a.End = &t
		}
		out = append(out, a)
	}
	return out
}

func blockedWithin(blocked DateSet, start, end time.Time) []DateKey {
	var keys []DateKey
	for _, k := range blocked.Sorted() {
		if k >= KeyOf(start) && k <= KeyOf(end) {
			keys = append(keys, k)
		}
	}
	return keys
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

// SortEvents orders events by start, unscheduled last.
func SortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i].Start, events[j].Start
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
}
