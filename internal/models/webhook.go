/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// WebhookTarget is a tenant-registered URL that receives domain events.
type WebhookTarget struct {
	ID       string `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID string `gorm:"type:uuid;index;not null" json:"tenant_id"`
	URL      string `gorm:"type:varchar(512);not null" json:"url"`
	Events   string `gorm:"type:varchar(512)" json:"events"` // comma-separated event types, empty = all
	Secret   string `gorm:"type:varchar(255)" json:"-"`      // for HMAC signing
	Active   bool   `gorm:"not null;default:true" json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for GORM.
func (WebhookTarget) TableName() string {
	return "webhook_targets"
}

// NewWebhookTarget creates a new webhook target with a random secret.
func NewWebhookTarget(tenantID, url, events string) *WebhookTarget {
	return &WebhookTarget{
		ID:       uuid.NewString(),
		TenantID: tenantID,
		URL:      url,
		Events:   events,
		Secret:   strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", ""),
		Active:   true,
	}
}

// Handles reports whether the target subscribes to eventType.
func (w *WebhookTarget) Handles(eventType string) bool {
	if strings.TrimSpace(w.Events) == "" {
		return true
	}
	for _, e := range strings.Split(w.Events, ",") {
		if strings.TrimSpace(e) == eventType {
			return true
		}
	}
	return false
}

// WebhookLog records webhook delivery attempts.
type WebhookLog struct {
	ID         string    `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID   string    `gorm:"type:uuid;index;not null" json:"tenant_id"`
	TargetID   string    `gorm:"type:uuid;index;not null" json:"target_id"`
	Event      string    `gorm:"type:varchar(64);not null" json:"event"`
	StatusCode int       `json:"status_code"`
	Error      string    `gorm:"type:text" json:"error,omitempty"`
	Duration   int       `json:"duration_ms"` // response time in milliseconds
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

// TableName returns the table name for GORM.
func (WebhookLog) TableName() string {
	return "webhook_logs"
}
