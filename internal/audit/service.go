/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/crewdesk/internal/events"
	"github.com/friendsincode/crewdesk/internal/models"
)

// ErrMissingTenant is returned when an entry carries no tenant.
var ErrMissingTenant = errors.New("audit entry has no tenant")

// actions maps bus events onto audit actions.
var actions = map[events.EventType]models.AuditAction{
	events.EventJobCreated:            models.AuditActionJobCreate,
	events.EventJobUpdated:            models.AuditActionJobUpdate,
	events.EventJobAssigned:           models.AuditActionJobAssign,
	events.EventJobUnassigned:         models.AuditActionJobUnassign,
	events.EventUnavailabilityCreated: models.AuditActionUnavailabilityCreate,
	events.EventUnavailabilityDeleted: models.AuditActionUnavailabilityDelete,
	events.EventQuoteCreated:          models.AuditActionQuoteCreate,
	events.EventInvoiceCreated:        models.AuditActionInvoiceCreate,
	events.EventCustomerCreated:       models.AuditActionCustomerCreate,
	events.EventWorkerCreated:         models.AuditActionWorkerCreate,
	events.EventAPIKeyCreate:          models.AuditActionAPIKeyCreate,
	events.EventAPIKeyRevoke:          models.AuditActionAPIKeyRevoke,
	events.EventWebhookCreated:        models.AuditActionWebhookCreate,
	events.EventWebhookDeleted:        models.AuditActionWebhookDelete,
}

// ActionFor returns the audit action recorded for an event type.
func ActionFor(t events.EventType) (models.AuditAction, bool) {
	a, ok := actions[t]
	return a, ok
}

// Service handles audit logging by subscribing to events and storing audit entries.
type Service struct {
	db     *gorm.DB
	bus    *events.Bus
	logger zerolog.Logger
}

// NewService creates a new audit service.
func NewService(db *gorm.DB, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// Start subscribes to every write event and logs them as audit entries.
// It blocks until ctx is done.
func (s *Service) Start(ctx context.Context) {
	s.logger.Info().Msg("audit service starting")
	stream := s.bus.SubscribeAll(ctx, events.WriteEvents...)
	s.logger.Info().Msg("audit service started")

	for ev := range stream {
		action, ok := ActionFor(ev.Type)
		if !ok {
			continue
		}
		// Detach from ctx so in-flight entries still land during shutdown.
		s.logAuditEntry(context.WithoutCancel(ctx), action, ev.Payload)
	}
	s.logger.Info().Msg("audit service stopping")
}

// logAuditEntry creates an audit log entry from an event payload.
func (s *Service) logAuditEntry(ctx context.Context, action models.AuditAction, payload events.Payload) {
	entry := EntryFromPayload(action, payload)
	if err := s.Log(ctx, entry); err != nil {
		s.logger.Error().Err(err).
			Str("action", string(action)).
			Msg("failed to log audit entry")
	}
}

// EntryFromPayload builds an audit entry, moving well-known keys into
// columns and the rest into Details.
func EntryFromPayload(action models.AuditAction, payload events.Payload) *models.AuditLog {
	now := time.Now().UTC()
	entry := &models.AuditLog{
		ID:        uuid.NewString(),
		Timestamp: now,
		TenantID:  payload.TenantID(),
		Action:    action,
		Details:   make(map[string]any),
		CreatedAt: now,
	}

	if userID, ok := payload["user_id"].(string); ok && userID != "" {
		entry.UserID = &userID
	}
	if resourceType, ok := payload["resource_type"].(string); ok {
		entry.ResourceType = resourceType
	}
	if resourceID, ok := payload["resource_id"].(string); ok {
		entry.ResourceID = resourceID
	}
	if ipAddress, ok := payload["ip_address"].(string); ok {
		entry.IPAddress = ipAddress
	}
	if userAgent, ok := payload["user_agent"].(string); ok {
		entry.UserAgent = userAgent
	}

	for k, v := range payload {
		switch k {
		case "tenant_id", "user_id", "resource_type", "resource_id", "ip_address", "user_agent":
		default:
			entry.Details[k] = v
		}
	}
	return entry
}

// Log records an audit entry directly (for non-event-bus actions).
func (s *Service) Log(ctx context.Context, entry *models.AuditLog) error {
	if entry.TenantID == "" {
		return ErrMissingTenant
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = entry.Timestamp
	}
	if entry.Details == nil {
		entry.Details = make(map[string]any)
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return err
	}

	s.logger.Debug().
		Str("action", string(entry.Action)).
		Str("tenant_id", entry.TenantID).
		Str("id", entry.ID).
		Msg("audit entry logged")

	return nil
}

// QueryFilters defines filters for querying audit logs. TenantID is required.
type QueryFilters struct {
	TenantID     string
	UserID       *string
	Action       *models.AuditAction
	ResourceType string
	ResourceID   string
	StartTime    *time.Time
	EndTime      *time.Time
	Limit        int
	Offset       int
}

// MaxLimit caps a single page of audit results.
const MaxLimit = 500

// Query retrieves audit logs with filters, newest first.
func (s *Service) Query(ctx context.Context, filters QueryFilters) ([]models.AuditLog, int64, error) {
	if filters.TenantID == "" {
		return nil, 0, ErrMissingTenant
	}

	var logs []models.AuditLog
	var total int64

	query := s.db.WithContext(ctx).Model(&models.AuditLog{}).Where("tenant_id = ?", filters.TenantID)

	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	if filters.Action != nil {
		query = query.Where("action = ?", *filters.Action)
	}
	if filters.ResourceType != "" {
		query = query.Where("resource_type = ?", filters.ResourceType)
	}
	if filters.ResourceID != "" {
		query = query.Where("resource_id = ?", filters.ResourceID)
	}
	if filters.StartTime != nil {
		query = query.Where("timestamp >= ?", filters.StartTime.UTC())
	}
	if filters.EndTime != nil {
		query = query.Where("timestamp < ?", filters.EndTime.UTC())
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	switch {
	case filters.Limit <= 0:
		query = query.Limit(100)
	case filters.Limit > MaxLimit:
		query = query.Limit(MaxLimit)
	default:
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	if err := query.Order("timestamp DESC").Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}

// Activity returns the most recent entries for a tenant.
func (s *Service) Activity(ctx context.Context, tenantID string, limit int) ([]models.AuditLog, error) {
	logs, _, err := s.Query(ctx, QueryFilters{TenantID: tenantID, Limit: limit})
	return logs, err
}
