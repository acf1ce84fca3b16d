/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// QuoteStatus tracks a quote through approval.
type QuoteStatus string

const (
	QuoteDraft    QuoteStatus = "draft"
	QuoteSent     QuoteStatus = "sent"
	QuoteAccepted QuoteStatus = "accepted"
	QuoteDeclined QuoteStatus = "declined"
)

// Quote is a priced proposal for a customer.
type Quote struct {
	ID         string      `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID   string      `gorm:"type:uuid;index:idx_quotes_tenant_created;not null" json:"tenant_id"`
	CustomerID *string     `gorm:"type:uuid;index" json:"customer_id,omitempty"`
	JobID      *string     `gorm:"type:uuid" json:"job_id,omitempty"`
	Title      string      `json:"title"`
	Status     QuoteStatus `gorm:"type:varchar(16);not null;default:'draft'" json:"status"`
	Amount     *float64    `json:"amount"`

	CreatedAt time.Time `gorm:"index:idx_quotes_tenant_created" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InvoiceStatus tracks an invoice through payment.
type InvoiceStatus string

const (
	InvoiceDraft InvoiceStatus = "draft"
	InvoiceSent  InvoiceStatus = "sent"
	InvoicePaid  InvoiceStatus = "paid"
	InvoiceVoid  InvoiceStatus = "void"
)

// Invoice bills a customer for completed work.
type Invoice struct {
	ID         string        `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID   string        `gorm:"type:uuid;index:idx_invoices_tenant_created;not null" json:"tenant_id"`
	CustomerID *string       `gorm:"type:uuid;index" json:"customer_id,omitempty"`
	JobID      *string       `gorm:"type:uuid" json:"job_id,omitempty"`
	Number     string        `gorm:"type:varchar(32)" json:"number"`
	Status     InvoiceStatus `gorm:"type:varchar(16);not null;default:'draft'" json:"status"`
	Amount     *float64      `json:"amount"`
	DueAt      *time.Time    `json:"due_at,omitempty"`

	CreatedAt time.Time `gorm:"index:idx_invoices_tenant_created" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
