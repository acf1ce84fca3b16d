/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/friendsincode/crewdesk/internal/events"
	"github.com/friendsincode/crewdesk/internal/models"
	"github.com/friendsincode/crewdesk/internal/scheduling"
)

type jobCreateRequest struct {
	Title          string           `json:"title"`
	Description    string           `json:"description"`
	Status         models.JobStatus `json:"status"`
	CustomerID     *string          `json:"customer_id"`
	SiteID         *string          `json:"site_id"`
	ScheduledStart *time.Time       `json:"scheduled_start"`
	ScheduledEnd   *time.Time       `json:"scheduled_end"`
}

type jobUpdateRequest struct {
	Title          *string           `json:"title"`
	Description    *string           `json:"description"`
	Status         *models.JobStatus `json:"status"`
	ScheduledStart *time.Time        `json:"scheduled_start"`
	ScheduledEnd   *time.Time        `json:"scheduled_end"`
	ClearSchedule  bool              `json:"clear_schedule"`
}

type assignmentRequest struct {
	WorkerID string `json:"worker_id"`
	Force    bool   `json:"force"`
}

// validSpan rejects half-set or inverted schedules.
func validSpan(start, end *time.Time) bool {
	if start == nil && end == nil {
		return true
	}
	if start == nil || end == nil {
		return false
	}
	return end.After(*start)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func (a *API) handleJobsList(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	q := a.db.WithContext(r.Context()).Where("tenant_id = ?", tenantID(r))
	if status := r.URL.Query().Get("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if customer := r.URL.Query().Get("customer_id"); customer != "" {
		q = q.Where("customer_id = ?", customer)
	}
	from, okFrom := parseDate(r, "from")
	to, okTo := parseDate(r, "to")
	if !okFrom || !okTo {
		writeError(w, http.StatusBadRequest, "invalid_date")
		return
	}
	if !from.IsZero() {
		q = q.Where("scheduled_start >= ?", a.dayStart(r, from).UTC())
	}
	if !to.IsZero() {
		q = q.Where("scheduled_start < ?", a.dayStart(r, to).AddDate(0, 0, 1).UTC())
	}

	var jobs []models.Job
	err := q.Preload("Customer").Preload("Assignments").
		Order("scheduled_start ASC").Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&jobs).Error
	if err != nil {
		a.writeDBError(w, err, "list jobs failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (a *API) handleJobsCreate(w http.ResponseWriter, r *http.Request) {
	var req jobCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title_required")
		return
	}
	if !validSpan(req.ScheduledStart, req.ScheduledEnd) {
		writeError(w, http.StatusBadRequest, "invalid_schedule")
		return
	}
	if req.Status == "" {
		req.Status = models.JobDraft
		if req.ScheduledStart != nil {
			req.Status = models.JobScheduled
		}
	}
	if !req.Status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_status")
		return
	}
	if code := a.checkBillingRefs(r, req.CustomerID, nil); code != "" {
		writeError(w, http.StatusBadRequest, code)
		return
	}
	if req.SiteID != nil && *req.SiteID != "" && !a.exists(r, &models.Site{}, *req.SiteID, tenantID(r)) {
		writeError(w, http.StatusBadRequest, "site_not_found")
		return
	}

	job := models.Job{
		ID:             uuid.NewString(),
		TenantID:       tenantID(r),
		Title:          req.Title,
		Description:    req.Description,
		Status:         req.Status,
		CustomerID:     req.CustomerID,
		SiteID:         req.SiteID,
		ScheduledStart: utcPtr(req.ScheduledStart),
		ScheduledEnd:   utcPtr(req.ScheduledEnd),
	}
	if err := a.db.WithContext(r.Context()).Create(&job).Error; err != nil {
		a.writeDBError(w, err, "create job failed")
		return
	}

	a.publishEvent(r, events.EventJobCreated, events.Payload{
		"resource_type": "job",
		"resource_id":   job.ID,
		"title":         job.Title,
		"status":        string(job.Status),
	})
	writeJSON(w, http.StatusCreated, job)
}

func (a *API) loadJob(r *http.Request, preload bool) (*models.Job, error) {
	q := a.db.WithContext(r.Context())
	if preload {
		q = q.Preload("Customer").Preload("Site").Preload("Assignments.Worker")
	}
	var job models.Job
	if err := q.First(&job, "id = ? AND tenant_id = ?", chi.URLParam(r, "jobID"), tenantID(r)).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (a *API) handleJobsGet(w http.ResponseWriter, r *http.Request) {
	job, err := a.loadJob(r, true)
	if err != nil {
		a.writeDBError(w, err, "get job failed")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleJobsUpdate edits a job. Rescheduling never blocks; any conflicts it
// creates for assigned workers come back as warnings.
func (a *API) handleJobsUpdate(w http.ResponseWriter, r *http.Request) {
	var req jobUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	job, err := a.loadJob(r, false)
	if err != nil {
		a.writeDBError(w, err, "load job failed")
		return
	}

	changed := []string{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			writeError(w, http.StatusBadRequest, "title_required")
			return
		}
		job.Title = title
		changed = append(changed, "title")
	}
	if req.Description != nil {
		job.Description = *req.Description
		changed = append(changed, "description")
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_status")
			return
		}
		job.Status = *req.Status
		changed = append(changed, "status")
	}

	rescheduled := false
	switch {
	case req.ClearSchedule:
		job.ScheduledStart, job.ScheduledEnd = nil, nil
		rescheduled = true
	case req.ScheduledStart != nil || req.ScheduledEnd != nil:
		start, end := job.ScheduledStart, job.ScheduledEnd
		if req.ScheduledStart != nil {
			start = req.ScheduledStart
		}
		if req.ScheduledEnd != nil {
			end = req.ScheduledEnd
		}
		if !validSpan(start, end) {
			writeError(w, http.StatusBadRequest, "invalid_schedule")
			return
		}
		job.ScheduledStart, job.ScheduledEnd = utcPtr(start), utcPtr(end)
		rescheduled = true
	}
	if rescheduled {
		changed = append(changed, "schedule")
	}
	if len(changed) == 0 {
		writeError(w, http.StatusBadRequest, "no_changes")
		return
	}

	// Select forces nil schedule pointers to be written as NULL.
	if err := a.db.WithContext(r.Context()).Model(job).
		Select("title", "description", "status", "scheduled_start", "scheduled_end", "updated_at").
		Updates(job).Error; err != nil {
		a.writeDBError(w, err, "update job failed")
		return
	}

	warnings := []scheduling.Violation{}
	if rescheduled {
		var assignments []models.JobAssignment
		if err := a.db.WithContext(r.Context()).Where("job_id = ? AND tenant_id = ?", job.ID, job.TenantID).Find(&assignments).Error; err != nil {
			a.writeDBError(w, err, "load assignments failed")
			return
		}
		for _, as := range assignments {
			vs, err := a.sched.CheckAssignment(r.Context(), job.TenantID, job.ID, as.WorkerID)
			if err != nil {
				a.logger.Warn().Err(err).Str("job_id", job.ID).Msg("post-reschedule check failed")
				continue
			}
			warnings = append(warnings, vs...)
		}
	}

	a.publishEvent(r, events.EventJobUpdated, events.Payload{
		"resource_type": "job",
		"resource_id":   job.ID,
		"changed":       changed,
		"warnings":      len(warnings),
	})
	writeJSON(w, http.StatusOK, map[string]any{"job": job, "warnings": warnings})
}

func (a *API) handleAssignmentCheck(w http.ResponseWriter, r *http.Request) {
	workerID := r.URL.Query().Get("worker_id")
	if workerID == "" {
		writeError(w, http.StatusBadRequest, "worker_id_required")
		return
	}
	violations, err := a.sched.CheckAssignment(r.Context(), tenantID(r), chi.URLParam(r, "jobID"), workerID)
	if err != nil {
		a.writeDBError(w, err, "check assignment failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": len(violations) == 0, "violations": violations})
}

// handleAssignmentCreate assigns a worker. Violations reject the request with
// 409 unless force is set.
func (a *API) handleAssignmentCreate(w http.ResponseWriter, r *http.Request) {
	var req assignmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.WorkerID == "" {
		writeError(w, http.StatusBadRequest, "worker_id_required")
		return
	}

	tenant := tenantID(r)
	jobID := chi.URLParam(r, "jobID")

	violations, err := a.sched.CheckAssignment(r.Context(), tenant, jobID, req.WorkerID)
	if err != nil {
		a.writeDBError(w, err, "check assignment failed")
		return
	}
	if len(violations) > 0 && !req.Force {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":      "assignment_conflict",
			"violations": violations,
		})
		return
	}

	var existing int64
	if err := a.db.WithContext(r.Context()).Model(&models.JobAssignment{}).
		Where("job_id = ? AND worker_id = ?", jobID, req.WorkerID).
		Count(&existing).Error; err != nil {
		a.writeDBError(w, err, "check existing assignment failed")
		return
	}
	if existing > 0 {
		writeError(w, http.StatusConflict, "already_assigned")
		return
	}

	assignment := models.JobAssignment{
		ID:       uuid.NewString(),
		TenantID: tenant,
		JobID:    jobID,
		WorkerID: req.WorkerID,
		Status:   models.AssignmentAssigned,
	}
	if err := a.db.WithContext(r.Context()).Create(&assignment).Error; err != nil {
		a.writeDBError(w, err, "create assignment failed")
		return
	}

	a.publishEvent(r, events.EventJobAssigned, events.Payload{
		"resource_type": "job",
		"resource_id":   jobID,
		"assignment_id": assignment.ID,
		"worker_id":     req.WorkerID,
		"forced":        req.Force && len(violations) > 0,
		"violations":    len(violations),
	})
	writeJSON(w, http.StatusCreated, map[string]any{"assignment": assignment, "violations": violations})
}

func (a *API) handleAssignmentDelete(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	assignmentID := chi.URLParam(r, "assignmentID")

	var assignment models.JobAssignment
	err := a.db.WithContext(r.Context()).
		First(&assignment, "id = ? AND job_id = ? AND tenant_id = ?", assignmentID, jobID, tenantID(r)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		a.writeDBError(w, err, "load assignment failed")
		return
	}
	if err := a.db.WithContext(r.Context()).Delete(&assignment).Error; err != nil {
		a.writeDBError(w, err, "delete assignment failed")
		return
	}

	a.publishEvent(r, events.EventJobUnassigned, events.Payload{
		"resource_type": "job",
		"resource_id":   jobID,
		"assignment_id": assignment.ID,
		"worker_id":     assignment.WorkerID,
	})
	w.WriteHeader(http.StatusNoContent)
}
