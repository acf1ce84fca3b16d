/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"strings"
	"time"
)

// RoleName enumerates the RBAC roles within a tenant.
type RoleName string

const (
	RoleOwner     RoleName = "owner"
	RoleAdmin     RoleName = "admin"
	RoleScheduler RoleName = "scheduler"
	RoleWorker    RoleName = "worker"
)

// NormalizeRole maps free-form role strings onto a known RoleName.
// Unknown values collapse to the least privileged role.
func NormalizeRole(raw string) RoleName {
	switch RoleName(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleOwner:
		return RoleOwner
	case RoleAdmin:
		return RoleAdmin
	case RoleScheduler, "dispatcher":
		return RoleScheduler
	default:
		return RoleWorker
	}
}

// Tenant is an isolated customer organization sharing the application.
type Tenant struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Timezone  string    `gorm:"type:varchar(64)" json:"timezone"` // IANA name, empty = server default
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Location resolves the tenant timezone, falling back to def when unset or invalid.
func (t *Tenant) Location(def *time.Location) *time.Location {
	if def == nil {
		def = time.UTC
	}
	if t == nil || t.Timezone == "" {
		return def
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return def
	}
	return loc
}

// User represents an authenticated account inside a tenant.
type User struct {
	ID           string   `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID     string   `gorm:"type:uuid;index;not null" json:"tenant_id"`
	Email        string   `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string   `gorm:"not null" json:"-"`
	Role         RoleName `gorm:"type:varchar(16);not null;default:'worker'" json:"role"`
	// WorkerID links a login to its worker record so workers can read their own schedule.
	WorkerID  *string   `gorm:"type:uuid" json:"worker_id,omitempty"`
	Suspended bool      `gorm:"not null;default:false" json:"suspended"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Customer is a client of the tenant.
type Customer struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID  string    `gorm:"type:uuid;index;not null" json:"tenant_id"`
	Name      string    `gorm:"not null" json:"name"`
	Company   string    `json:"company,omitempty"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `gorm:"type:varchar(32)" json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName returns the label shown on calendars and invoices.
func (c *Customer) DisplayName() string {
	if c == nil {
		return ""
	}
	if c.Company != "" {
		return c.Company
	}
	return c.Name
}

// Site is a physical location where work happens.
type Site struct {
	ID         string    `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID   string    `gorm:"type:uuid;index;not null" json:"tenant_id"`
	CustomerID string    `gorm:"type:uuid;index;not null" json:"customer_id"`
	Name       string    `json:"name"`
	Address    string    `gorm:"type:text" json:"address"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// WorkerKind distinguishes employees from contractors.
type WorkerKind string

const (
	WorkerEmployee   WorkerKind = "employee"
	WorkerContractor WorkerKind = "contractor"
)

// Worker is a person (employee or contractor) who can be assigned to jobs.
type Worker struct {
	ID         string     `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID   string     `gorm:"type:uuid;index;not null" json:"tenant_id"`
	Name       string     `gorm:"not null" json:"name"`
	Email      string     `json:"email,omitempty"`
	Kind       WorkerKind `gorm:"type:varchar(16);not null;default:'employee'" json:"kind"`
	HourlyRate *float64   `json:"hourly_rate,omitempty"`
	Active     bool       `gorm:"not null;default:true" json:"active"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
