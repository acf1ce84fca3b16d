/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/crewdesk/internal/analytics"
	"github.com/friendsincode/crewdesk/internal/audit"
	"github.com/friendsincode/crewdesk/internal/auth"
	"github.com/friendsincode/crewdesk/internal/events"
	"github.com/friendsincode/crewdesk/internal/models"
	"github.com/friendsincode/crewdesk/internal/schedule"
	"github.com/friendsincode/crewdesk/internal/scheduling"
	"github.com/friendsincode/crewdesk/internal/webhooks"
)

const (
	maxBodyBytes = 1 << 20
	defaultLimit = 50
	maxLimit     = 500
)

// staffRoles may read and write every record in their tenant.
var staffRoles = []models.RoleName{models.RoleOwner, models.RoleAdmin, models.RoleScheduler}

// API exposes HTTP handlers.
type API struct {
	db        *gorm.DB
	jwtSecret []byte
	jwtTTL    time.Duration
	sched     *scheduling.Service
	dashboard *analytics.DashboardService
	export    *schedule.ExportService
	auditSvc  *audit.Service
	webhooks  *webhooks.Service
	bus       *events.Bus
	logger    zerolog.Logger

	now func() time.Time
}

// New creates the API router wrapper.
func New(db *gorm.DB, jwtSecret []byte, jwtTTL time.Duration, sched *scheduling.Service, dashboard *analytics.DashboardService, export *schedule.ExportService, auditSvc *audit.Service, bus *events.Bus, logger zerolog.Logger) *API {
	return &API{
		db:        db,
		jwtSecret: jwtSecret,
		jwtTTL:    jwtTTL,
		sched:     sched,
		dashboard: dashboard,
		export:    export,
		auditSvc:  auditSvc,
		bus:       bus,
		logger:    logger.With().Str("component", "api").Logger(),
		now:       time.Now,
	}
}

// SetWebhooks enables the webhook test endpoint.
func (a *API) SetWebhooks(svc *webhooks.Service) {
	a.webhooks = svc
}

// Routes mounts every endpoint under /api/v1.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)
		r.Post("/auth/login", a.handleLogin)

		r.Group(func(pr chi.Router) {
			pr.Use(a.authMiddleware())

			pr.Route("/api-keys", func(r chi.Router) {
				r.Get("/", a.handleAPIKeysList)
				r.Post("/", a.handleAPIKeysCreate)
				r.Delete("/{keyID}", a.handleAPIKeysRevoke)
			})

			pr.Route("/customers", func(r chi.Router) {
				r.Use(a.requireRoles(staffRoles...))
				r.Get("/", a.handleCustomersList)
				r.Post("/", a.handleCustomersCreate)
			})

			pr.Route("/workers", func(r chi.Router) {
				r.With(a.requireRoles(staffRoles...)).Get("/", a.handleWorkersList)
				r.With(a.requireRoles(staffRoles...)).Post("/", a.handleWorkersCreate)
				r.Route("/{workerID}", func(r chi.Router) {
					r.Use(a.requireWorkerAccess)
					r.Get("/", a.handleWorkersGet)
					r.Get("/schedule", a.handleWorkerSchedule)
					r.Get("/schedule.ics", a.handleWorkerScheduleICal)
					r.Route("/unavailability", func(r chi.Router) {
						r.Get("/", a.handleUnavailabilityList)
						r.With(a.requireRoles(staffRoles...)).Post("/", a.handleUnavailabilityCreate)
						r.With(a.requireRoles(staffRoles...)).Post("/import", a.handleUnavailabilityImport)
						r.With(a.requireRoles(staffRoles...)).Delete("/{windowID}", a.handleUnavailabilityDelete)
					})
				})
			})

			pr.Route("/jobs", func(r chi.Router) {
				r.Use(a.requireRoles(staffRoles...))
				r.Get("/", a.handleJobsList)
				r.Post("/", a.handleJobsCreate)
				r.Route("/{jobID}", func(r chi.Router) {
					r.Get("/", a.handleJobsGet)
					r.Patch("/", a.handleJobsUpdate)
					r.Get("/assignments/check", a.handleAssignmentCheck)
					r.Post("/assignments", a.handleAssignmentCreate)
					r.Delete("/assignments/{assignmentID}", a.handleAssignmentDelete)
				})
			})

			pr.Route("/dashboard", func(r chi.Router) {
				r.Use(a.requireRoles(staffRoles...))
				r.Get("/stats", a.handleDashboardStats)
				r.Get("/daily", a.handleDashboardDaily)
				r.Get("/conflicts", a.handleDashboardConflicts)
				r.Get("/activity", a.handleDashboardActivity)
			})

			pr.With(a.requireRoles(models.RoleOwner, models.RoleAdmin)).Get("/audit", a.handleAuditList)

			pr.Route("/webhooks", func(r chi.Router) {
				r.Use(a.requireRoles(models.RoleOwner, models.RoleAdmin))
				r.Get("/", a.handleWebhooksList)
				r.Post("/", a.handleWebhooksCreate)
				r.Delete("/{webhookID}", a.handleWebhooksDelete)
				r.Post("/{webhookID}/test", a.handleWebhooksTest)
				r.Get("/{webhookID}/logs", a.handleWebhookLogs)
			})

			pr.Route("/quotes", func(r chi.Router) {
				r.Use(a.requireRoles(staffRoles...))
				r.Get("/", a.handleQuotesList)
				r.Post("/", a.handleQuotesCreate)
			})

			pr.Route("/invoices", func(r chi.Router) {
				r.Use(a.requireRoles(staffRoles...))
				r.Get("/", a.handleInvoicesList)
				r.Post("/", a.handleInvoicesCreate)
			})
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := a.db.DB()
	if err == nil {
		err = sqlDB.PingContext(r.Context())
	}
	if err != nil {
		a.logger.Warn().Err(err).Msg("health check: database unreachable")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) authMiddleware() func(http.Handler) http.Handler {
	return auth.MiddlewareWithJWT(a.db, a.jwtSecret)
}

func (a *API) requireRoles(allowed ...models.RoleName) func(http.Handler) http.Handler {
	names := make([]string, len(allowed))
	for i, role := range allowed {
		names[i] = string(role)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.ClaimsFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if !claims.HasRole(names...) {
				writeError(w, http.StatusForbidden, "insufficient_role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requireWorkerAccess lets staff through and limits the worker role to its own record.
func (a *API) requireWorkerAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !canAccessWorker(claims, chi.URLParam(r, "workerID")) {
			writeError(w, http.StatusForbidden, "insufficient_role")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func canAccessWorker(claims *auth.Claims, workerID string) bool {
	if isStaff(claims) {
		return true
	}
	return claims.WorkerID != "" && claims.WorkerID == workerID
}

func isStaff(claims *auth.Claims) bool {
	names := make([]string, len(staffRoles))
	for i, role := range staffRoles {
		names[i] = string(role)
	}
	return claims.HasRole(names...)
}

// tenantID returns the caller's tenant. Routes behind authMiddleware always have one.
func tenantID(r *http.Request) string {
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		return claims.TenantID
	}
	return ""
}

func userID(r *http.Request) string {
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		return claims.UserID
	}
	return ""
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// writeDBError maps a gorm error onto a response.
func (a *API) writeDBError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	a.logger.Error().Err(err).Msg(msg)
	writeError(w, http.StatusInternalServerError, "db_error")
}

// pagination reads limit and offset query parameters.
func pagination(r *http.Request) (limit, offset int) {
	limit = defaultLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

// parseDate parses a YYYY-MM-DD query value. Empty values return the zero time.
func parseDate(r *http.Request, key string) (time.Time, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// auditContext extracts user and request info for audit logging.
func (a *API) auditContext(r *http.Request) events.Payload {
	payload := events.Payload{
		"ip_address": r.RemoteAddr,
		"user_agent": r.UserAgent(),
	}
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok && claims != nil {
		payload["tenant_id"] = claims.TenantID
		payload["user_id"] = claims.UserID
	}
	return payload
}

// publishEvent publishes a write event with user and request context.
func (a *API) publishEvent(r *http.Request, eventType events.EventType, data events.Payload) {
	if a.bus == nil {
		return
	}
	payload := a.auditContext(r)
	for k, v := range data {
		payload[k] = v
	}
	a.bus.Publish(eventType, payload)
}
