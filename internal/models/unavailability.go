/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// MaxUnavailabilityDays is the longest window, in calendar days, a single record may span.
const MaxUnavailabilityDays = 731

// WorkerUnavailability blocks a worker from being scheduled on a run of calendar dates.
// StartDate and EndDate are both inclusive; only their Y-M-D part is meaningful.
type WorkerUnavailability struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID  string    `gorm:"type:uuid;index;not null" json:"tenant_id"`
	WorkerID  string    `gorm:"type:uuid;index:idx_unavailability_worker;not null" json:"worker_id"`
	StartDate time.Time `gorm:"type:date;index:idx_unavailability_worker;not null" json:"start_date"`
	EndDate   time.Time `gorm:"type:date;not null" json:"end_date"`
	Reason    *string   `gorm:"type:text" json:"reason,omitempty"`

	Worker *Worker `gorm:"foreignKey:WorkerID" json:"worker,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for GORM.
func (WorkerUnavailability) TableName() string {
	return "worker_unavailability"
}

// UnavailabilityDays returns how many calendar dates the inclusive run from start to end covers.
// Reversed runs return zero or less.
func UnavailabilityDays(start, end time.Time) int {
	first := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return int((last.Unix()-first.Unix())/86400) + 1
}
