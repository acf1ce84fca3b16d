/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"testing"
	"time"
)

func TestNormalizeRole(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want RoleName
	}{
		{name: "owner", in: "owner", want: RoleOwner},
		{name: "admin mixed case", in: " Admin ", want: RoleAdmin},
		{name: "dispatcher alias", in: "dispatcher", want: RoleScheduler},
		{name: "unknown collapses to worker", in: "superuser", want: RoleWorker},
		{name: "empty", in: "", want: RoleWorker},
	}

	for _, tt := range tests {
		if got := NormalizeRole(tt.in); got != tt.want {
			t.Fatalf("%s: NormalizeRole(%q)=%q, want %q", tt.name, tt.in, got, tt.want)
		}
	}
}

func TestTenantLocationFallsBack(t *testing.T) {
	var nilTenant *Tenant
	if got := nilTenant.Location(nil); got != time.UTC {
		t.Fatalf("nil tenant: expected UTC, got %v", got)
	}

	bad := &Tenant{Timezone: "Not/AZone"}
	if got := bad.Location(time.UTC); got != time.UTC {
		t.Fatalf("invalid zone: expected fallback UTC, got %v", got)
	}

	ok := &Tenant{Timezone: "America/Chicago"}
	if got := ok.Location(time.UTC); got.String() != "America/Chicago" {
		t.Fatalf("expected America/Chicago, got %v", got)
	}
}

func TestCustomerDisplayName(t *testing.T) {
	if got := (&Customer{Name: "Ana", Company: "Acme Plumbing"}).DisplayName(); got != "Acme Plumbing" {
		t.Fatalf("expected company name, got %q", got)
	}
	if got := (&Customer{Name: "Ana"}).DisplayName(); got != "Ana" {
		t.Fatalf("expected person name, got %q", got)
	}
	var c *Customer
	if got := c.DisplayName(); got != "" {
		t.Fatalf("expected empty name for nil customer, got %q", got)
	}
}

func TestJobStatusValid(t *testing.T) {
	for _, s := range []JobStatus{JobDraft, JobScheduled, JobInProgress, JobCompleted} {
		if !s.Valid() {
			t.Fatalf("expected %q to be valid", s)
		}
	}
	if JobStatus("conflict").Valid() {
		t.Fatal("conflict is a display status, not a stored one")
	}
}

func TestUnavailabilityDays(t *testing.T) {
	tests := []struct {
		start, end time.Time
		want       int
	}{
		{time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), 1},
		{time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), 3},
		{time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), -1},
		{time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC), 3652059},
	}
	for _, tt := range tests {
		if got := UnavailabilityDays(tt.start, tt.end); got != tt.want {
			t.Errorf("UnavailabilityDays(%s, %s) = %d, want %d", tt.start.Format(time.DateOnly), tt.end.Format(time.DateOnly), got, tt.want)
		}
	}
}
