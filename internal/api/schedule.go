/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/friendsincode/crewdesk/internal/events"
	"github.com/friendsincode/crewdesk/internal/models"
	"github.com/friendsincode/crewdesk/internal/period"
	"github.com/friendsincode/crewdesk/internal/schedule"
	"github.com/friendsincode/crewdesk/internal/scheduling"
)

// maxScheduleDays bounds a single schedule request.
const maxScheduleDays = 366

// dayStart returns midnight of t's calendar date in the tenant timezone.
func (a *API) dayStart(r *http.Request, t time.Time) time.Time {
	loc := a.sched.Location(r.Context(), tenantID(r))
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// scheduleRange reads ?start and ?end (inclusive dates) in the tenant
// timezone. Without them the current week is used.
func (a *API) scheduleRange(w http.ResponseWriter, r *http.Request) (*period.Range, bool) {
	start, okStart := parseDate(r, "start")
	end, okEnd := parseDate(r, "end")
	if !okStart || !okEnd {
		writeError(w, http.StatusBadRequest, "invalid_date")
		return nil, false
	}

	loc := a.sched.Location(r.Context(), tenantID(r))
	if start.IsZero() && end.IsZero() {
		return period.Resolve(period.Week, a.now().In(loc)), true
	}
	if start.IsZero() {
		start = end
	}
	if end.IsZero() {
		end = start.AddDate(0, 0, 6)
	}

	rng, err := period.DayRange(start, end, loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_range")
		return nil, false
	}
	if rng.Days() > maxScheduleDays {
		writeError(w, http.StatusBadRequest, "range_too_large")
		return nil, false
	}
	return rng, true
}

func (a *API) handleWorkerSchedule(w http.ResponseWriter, r *http.Request) {
	rng, ok := a.scheduleRange(w, r)
	if !ok {
		return
	}
	workerID := chi.URLParam(r, "workerID")
	if !a.exists(r, &models.Worker{}, workerID, tenantID(r)) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}

	sched, err := a.sched.WorkerSchedule(r.Context(), tenantID(r), workerID, rng.Start, rng.End)
	if err != nil {
		if errors.Is(err, scheduling.ErrInvalidRange) {
			writeError(w, http.StatusBadRequest, "invalid_range")
			return
		}
		a.writeDBError(w, err, "build worker schedule failed")
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

func (a *API) handleWorkerScheduleICal(w http.ResponseWriter, r *http.Request) {
	rng, ok := a.scheduleRange(w, r)
	if !ok {
		return
	}

	res, err := a.export.ExportWorkerICal(r.Context(), tenantID(r), chi.URLParam(r, "workerID"), rng.Start, rng.End)
	if errors.Is(err, schedule.ErrWorkerNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("ical export failed")
		writeError(w, http.StatusInternalServerError, "export_failed")
		return
	}

	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

type unavailabilityRequest struct {
	StartDate string  `json:"start_date"`
	EndDate   string  `json:"end_date"`
	Reason    *string `json:"reason"`
}

func (a *API) handleUnavailabilityList(w http.ResponseWriter, r *http.Request) {
	from, okFrom := parseDate(r, "from")
	to, okTo := parseDate(r, "to")
	if !okFrom || !okTo {
		writeError(w, http.StatusBadRequest, "invalid_date")
		return
	}

	q := a.db.WithContext(r.Context()).
		Where("tenant_id = ? AND worker_id = ?", tenantID(r), chi.URLParam(r, "workerID"))
	if !from.IsZero() {
		q = q.Where("end_date >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("start_date <= ?", to)
	}

	var windows []models.WorkerUnavailability
	if err := q.Order("start_date ASC").Find(&windows).Error; err != nil {
		a.writeDBError(w, err, "list unavailability failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"unavailability": windows})
}

// handleUnavailabilityCreate records a blocked date run and reports the
// already-assigned jobs it now conflicts with.
func (a *API) handleUnavailabilityCreate(w http.ResponseWriter, r *http.Request) {
	var req unavailabilityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	start, errStart := time.Parse(time.DateOnly, req.StartDate)
	end, errEnd := time.Parse(time.DateOnly, req.EndDate)
	if errStart != nil || errEnd != nil {
		writeError(w, http.StatusBadRequest, "invalid_date")
		return
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "end_before_start")
		return
	}
	if models.UnavailabilityDays(start, end) > models.MaxUnavailabilityDays {
		writeError(w, http.StatusBadRequest, "window_too_long")
		return
	}

	tenant := tenantID(r)
	workerID := chi.URLParam(r, "workerID")
	if !a.exists(r, &models.Worker{}, workerID, tenant) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if req.Reason != nil {
		trimmed := strings.TrimSpace(*req.Reason)
		req.Reason = &trimmed
	}

	window := models.WorkerUnavailability{
		ID:        uuid.NewString(),
		TenantID:  tenant,
		WorkerID:  workerID,
		StartDate: start,
		EndDate:   end,
		Reason:    req.Reason,
	}
	if err := a.db.WithContext(r.Context()).Create(&window).Error; err != nil {
		a.writeDBError(w, err, "create unavailability failed")
		return
	}

	conflicts := []scheduling.Event{}
	loc := a.sched.Location(r.Context(), tenant)
	if rng, err := period.DayRange(start, end, loc); err == nil {
		sched, err := a.sched.WorkerSchedule(r.Context(), tenant, workerID, rng.Start, rng.End)
		if err != nil {
			a.logger.Warn().Err(err).Str("worker_id", workerID).Msg("conflict lookup after unavailability failed")
		} else {
			conflicts = scheduling.Conflicting(sched.Events)
		}
	}

	a.publishEvent(r, events.EventUnavailabilityCreated, events.Payload{
		"resource_type": "worker_unavailability",
		"resource_id":   window.ID,
		"worker_id":     workerID,
		"start_date":    req.StartDate,
		"end_date":      req.EndDate,
		"conflicts":     len(conflicts),
	})
	writeJSON(w, http.StatusCreated, map[string]any{"unavailability": window, "conflicts": conflicts})
}

func (a *API) handleUnavailabilityImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	workerID := chi.URLParam(r, "workerID")

	res, err := a.export.ImportUnavailabilityICal(r.Context(), tenantID(r), workerID, r.Body)
	if errors.Is(err, schedule.ErrWorkerNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("ical import failed")
		writeError(w, http.StatusBadRequest, "import_failed")
		return
	}

	for _, window := range res.Windows {
		a.publishEvent(r, events.EventUnavailabilityCreated, events.Payload{
			"resource_type": "worker_unavailability",
			"resource_id":   window.ID,
			"worker_id":     workerID,
			"source":        "ical",
		})
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleUnavailabilityDelete(w http.ResponseWriter, r *http.Request) {
	workerID := chi.URLParam(r, "workerID")
	windowID := chi.URLParam(r, "windowID")

	res := a.db.WithContext(r.Context()).
		Where("id = ? AND worker_id = ? AND tenant_id = ?", windowID, workerID, tenantID(r)).
		Delete(&models.WorkerUnavailability{})
	if res.Error != nil {
		a.writeDBError(w, res.Error, "delete unavailability failed")
		return
	}
	if res.RowsAffected == 0 {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}

	a.publishEvent(r, events.EventUnavailabilityDeleted, events.Payload{
		"resource_type": "worker_unavailability",
		"resource_id":   windowID,
		"worker_id":     workerID,
	})
	w.WriteHeader(http.StatusNoContent)
}
