/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// AuditAction defines the type of audited action.
type AuditAction string

const (
	AuditActionJobCreate            AuditAction = "job.create"
	AuditActionJobUpdate            AuditAction = "job.update"
	AuditActionJobAssign            AuditAction = "job.assign"
	AuditActionJobUnassign          AuditAction = "job.unassign"
	AuditActionUnavailabilityCreate AuditAction = "unavailability.create"
	AuditActionUnavailabilityDelete AuditAction = "unavailability.delete"
	AuditActionQuoteCreate          AuditAction = "quote.create"
	AuditActionInvoiceCreate        AuditAction = "invoice.create"
	AuditActionCustomerCreate       AuditAction = "customer.create"
	AuditActionWorkerCreate         AuditAction = "worker.create"
	AuditActionAPIKeyCreate         AuditAction = "apikey.create"
	AuditActionAPIKeyRevoke         AuditAction = "apikey.revoke"
	AuditActionWebhookCreate        AuditAction = "webhook.create"
	AuditActionWebhookDelete        AuditAction = "webhook.delete"
)

// AuditLog records write operations; it doubles as the tenant activity feed.
type AuditLog struct {
	ID           string         `gorm:"type:uuid;primaryKey" json:"id"`
	Timestamp    time.Time      `gorm:"index:idx_audit_tenant_ts;not null" json:"timestamp"`
	TenantID     string         `gorm:"type:uuid;index:idx_audit_tenant_ts;not null" json:"tenant_id"`
	UserID       *string        `gorm:"type:uuid;index:idx_audit_user" json:"user_id,omitempty"` // NULL for system actions
	Action       AuditAction    `gorm:"type:varchar(64);index:idx_audit_action;not null" json:"action"`
	ResourceType string         `gorm:"type:varchar(64)" json:"resource_type"`
	ResourceID   string         `gorm:"type:uuid" json:"resource_id"`
	Details      map[string]any `gorm:"type:jsonb;serializer:json" json:"details,omitempty"`
	IPAddress    string         `gorm:"type:varchar(45)" json:"ip_address,omitempty"`
	UserAgent    string         `gorm:"type:varchar(512)" json:"-"`
	CreatedAt    time.Time      `json:"created_at"`
}

// TableName returns the table name for GORM.
func (AuditLog) TableName() string {
	return "audit_logs"
}
