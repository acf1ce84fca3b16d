/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"strconv"

	"github.com/friendsincode/crewdesk/internal/period"
	"github.com/friendsincode/crewdesk/internal/scheduling"
)

// defaultDailyDays is the chart window used when no dates are given.
const defaultDailyDays = 30

func parsePeriod(w http.ResponseWriter, r *http.Request, fallback period.Period) (period.Period, bool) {
	raw := r.URL.Query().Get("period")
	if raw == "" {
		return fallback, true
	}
	p, err := period.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_period")
		return 0, false
	}
	return p, true
}

func (a *API) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	p, ok := parsePeriod(w, r, period.All)
	if !ok {
		return
	}
	stats, err := a.dashboard.Stats(r.Context(), tenantID(r), p, a.now())
	if err != nil {
		a.writeDBError(w, err, "dashboard stats failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleDashboardDaily(w http.ResponseWriter, r *http.Request) {
	start, okStart := parseDate(r, "start")
	end, okEnd := parseDate(r, "end")
	if !okStart || !okEnd {
		writeError(w, http.StatusBadRequest, "invalid_date")
		return
	}

	loc := a.sched.Location(r.Context(), tenantID(r))
	today := a.now().In(loc)
	if end.IsZero() {
		end = today
	}
	if start.IsZero() {
		start = end.AddDate(0, 0, -(defaultDailyDays - 1))
	}

	buckets, err := a.dashboard.Daily(r.Context(), tenantID(r), start, end)
	if err != nil {
		a.writeDBError(w, err, "dashboard daily failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": buckets})
}

func (a *API) handleDashboardConflicts(w http.ResponseWriter, r *http.Request) {
	p, ok := parsePeriod(w, r, period.Month)
	if !ok {
		return
	}
	loc := a.sched.Location(r.Context(), tenantID(r))
	rng := period.Resolve(p, a.now().In(loc))

	conflicts, err := a.sched.TenantConflicts(r.Context(), tenantID(r), rng)
	if err != nil {
		a.writeDBError(w, err, "tenant conflicts failed")
		return
	}
	if conflicts == nil {
		conflicts = []scheduling.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"period":    p,
		"range":     rng,
		"conflicts": conflicts,
		"count":     len(conflicts),
	})
}

func (a *API) handleDashboardActivity(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	logs, err := a.auditSvc.Activity(r.Context(), tenantID(r), limit)
	if err != nil {
		a.writeDBError(w, err, "activity query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": logs})
}
