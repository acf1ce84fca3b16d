/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package analytics

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/friendsincode/crewdesk/internal/models"
	"github.com/friendsincode/crewdesk/internal/period"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(
		&models.Tenant{},
		&models.Customer{},
		&models.Site{},
		&models.Worker{},
		&models.Job{},
		&models.JobAssignment{},
		&models.Quote{},
		&models.Invoice{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func amount(v float64) *float64 { return &v }

func seedDashboard(t *testing.T, db *gorm.DB) {
	t.Helper()
	create := func(v any) {
		if err := db.Create(v).Error; err != nil {
			t.Fatalf("create %T: %v", v, err)
		}
	}

	create(&models.Tenant{ID: "t1", Name: "Northside Plumbing", Timezone: "UTC"})
	create(&models.Worker{ID: "w1", TenantID: "t1", Name: "Sam", HourlyRate: amount(20), Active: true})
	create(&models.Worker{ID: "w2", TenantID: "t1", Name: "Alex", Active: true})

	create(&models.Job{ID: "j1", TenantID: "t1", Title: "Boiler", Status: models.JobScheduled,
		ScheduledStart: ptr(ts("2024-03-15T09:00:00Z")), ScheduledEnd: ptr(ts("2024-03-15T11:00:00Z")),
		CreatedAt: ts("2024-03-14T08:00:00Z")})
	create(&models.Job{ID: "j2", TenantID: "t1", Title: "Gutters", Status: models.JobCompleted,
		CreatedAt: ts("2024-03-15T08:00:00Z")})
	create(&models.Job{ID: "j3", TenantID: "t1", Title: "Last month", Status: models.JobCompleted,
		CreatedAt: ts("2024-02-10T08:00:00Z")})
	create(&models.Job{ID: "j4", TenantID: "t2", Title: "Other tenant", Status: models.JobScheduled,
		CreatedAt: ts("2024-03-15T08:00:00Z")})

	create(&models.JobAssignment{ID: "a1", TenantID: "t1", JobID: "j1", WorkerID: "w1", Status: models.AssignmentAssigned})
	create(&models.JobAssignment{ID: "a2", TenantID: "t1", JobID: "j1", WorkerID: "w2", Status: models.AssignmentAssigned})

	create(&models.Invoice{ID: "i1", TenantID: "t1", Number: "INV-1", Status: models.InvoiceSent, Amount: amount(100), CreatedAt: ts("2024-03-15T10:00:00Z")})
	create(&models.Invoice{ID: "i2", TenantID: "t1", Number: "INV-2", Status: models.InvoiceDraft, CreatedAt: ts("2024-03-15T10:00:00Z")})
	create(&models.Invoice{ID: "i3", TenantID: "t1", Number: "INV-3", Status: models.InvoiceVoid, Amount: amount(500), CreatedAt: ts("2024-03-15T10:00:00Z")})
	create(&models.Quote{ID: "q1", TenantID: "t1", Title: "Repipe", Status: models.QuoteSent, Amount: amount(350), CreatedAt: ts("2024-03-13T10:00:00Z")})
}

func TestDashboardStatsWeek(t *testing.T) {
	db := newTestDB(t)
	seedDashboard(t, db)
	svc := NewDashboardService(db, nil, time.UTC, zerolog.Nop())

	stats, err := svc.Stats(context.Background(), "t1", period.Week, ts("2024-03-15T14:30:00Z"))
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	want := Rollup{
		JobsTotal:     2,
		JobsScheduled: 1,
		JobsCompleted: 1,
		Revenue:       100,
		QuotesValue:   350,
		LaborCost:     40,
	}
	if stats.Rollup != want {
		t.Fatalf("rollup = %+v, want %+v", stats.Rollup, want)
	}
	if stats.Range == nil || !stats.Range.Start.Equal(ts("2024-03-11T00:00:00Z")) {
		t.Fatalf("range = %+v", stats.Range)
	}
	if stats.Timezone != "UTC" {
		t.Fatalf("timezone = %q", stats.Timezone)
	}

	// Cached stats round-trip through JSON with the period as its token.
	body, err := json.Marshal(stats)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(body), `"period":"week"`) {
		t.Fatalf("json = %s", body)
	}
	var cached Stats
	if err := json.Unmarshal(body, &cached); err != nil || cached.Period != period.Week {
		t.Fatalf("unmarshal = %+v, %v", cached.Period, err)
	}
}

func TestDashboardStatsAll(t *testing.T) {
	db := newTestDB(t)
	seedDashboard(t, db)
	svc := NewDashboardService(db, nil, time.UTC, zerolog.Nop())

	stats, err := svc.Stats(context.Background(), "t1", period.All, ts("2024-03-15T14:30:00Z"))
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Range != nil {
		t.Fatalf("expected no range, got %+v", stats.Range)
	}
	if stats.Rollup.JobsTotal != 3 || stats.Rollup.JobsCompleted != 2 {
		t.Fatalf("rollup = %+v", stats.Rollup)
	}
}

func TestDashboardDaily(t *testing.T) {
	db := newTestDB(t)
	seedDashboard(t, db)
	svc := NewDashboardService(db, nil, time.UTC, zerolog.Nop())

	buckets, err := svc.Daily(context.Background(), "t1", ts("2024-03-15T00:00:00Z"), ts("2024-03-13T00:00:00Z"))
	if err != nil {
		t.Fatalf("Daily: %v", err)
	}
	if len(buckets) != 3 {
		t.Fatalf("got %d buckets, want 3: %+v", len(buckets), buckets)
	}
	if buckets[0].Date != "2024-03-13" || buckets[0].QuotesValue != 350 {
		t.Errorf("first bucket = %+v", buckets[0])
	}
	if buckets[1].JobsCreated != 1 || buckets[2].JobsCreated != 1 || buckets[2].Revenue != 100 {
		t.Errorf("buckets = %+v", buckets)
	}
}

func TestDashboardDailyCapsSpan(t *testing.T) {
	db := newTestDB(t)
	svc := NewDashboardService(db, nil, time.UTC, zerolog.Nop())

	buckets, err := svc.Daily(context.Background(), "t1", ts("2020-01-01T00:00:00Z"), ts("2024-01-01T00:00:00Z"))
	if err != nil {
		t.Fatalf("Daily: %v", err)
	}
	if len(buckets) != MaxDailyDays {
		t.Fatalf("got %d buckets, want %d", len(buckets), MaxDailyDays)
	}
}
