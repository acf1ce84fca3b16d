/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobDraft      JobStatus = "draft"
	JobScheduled  JobStatus = "scheduled"
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
)

// Valid reports whether s is a known job status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobDraft, JobScheduled, JobInProgress, JobCompleted:
		return true
	}
	return false
}

// Job is a unit of work for a customer at a site.
type Job struct {
	ID             string     `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID       string     `gorm:"type:uuid;index:idx_jobs_tenant_created;not null" json:"tenant_id"`
	Title          string     `gorm:"not null" json:"title"`
	Description    string     `gorm:"type:text" json:"description,omitempty"`
	Status         JobStatus  `gorm:"type:varchar(16);not null;default:'draft';index" json:"status"`
	ScheduledStart *time.Time `gorm:"index" json:"scheduled_start,omitempty"`
	ScheduledEnd   *time.Time `json:"scheduled_end,omitempty"`
	CustomerID     *string    `gorm:"type:uuid;index" json:"customer_id,omitempty"`
	SiteID         *string    `gorm:"type:uuid" json:"site_id,omitempty"`

	Customer    *Customer       `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Site        *Site           `gorm:"foreignKey:SiteID" json:"site,omitempty"`
	Assignments []JobAssignment `gorm:"foreignKey:JobID" json:"assignments,omitempty"`

	CreatedAt time.Time `gorm:"index:idx_jobs_tenant_created" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AssignmentStatus tracks a worker's own progress on a job.
type AssignmentStatus string

const (
	AssignmentAssigned  AssignmentStatus = "assigned"
	AssignmentCompleted AssignmentStatus = "completed"
)

// JobAssignment links a job to exactly one worker.
type JobAssignment struct {
	ID       string           `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID string           `gorm:"type:uuid;index;not null" json:"tenant_id"`
	JobID    string           `gorm:"type:uuid;uniqueIndex:idx_assignment_job_worker;not null" json:"job_id"`
	WorkerID string           `gorm:"type:uuid;uniqueIndex:idx_assignment_job_worker;index;not null" json:"worker_id"`
	Status   AssignmentStatus `gorm:"type:varchar(16);not null;default:'assigned'" json:"status"`

	Job    *Job    `gorm:"foreignKey:JobID" json:"job,omitempty"`
	Worker *Worker `gorm:"foreignKey:WorkerID" json:"worker,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
