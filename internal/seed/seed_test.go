/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package seed

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	dbpkg "github.com/friendsincode/crewdesk/internal/db"
	"github.com/friendsincode/crewdesk/internal/models"
)

const sampleSeed = `
tenants:
  - id: 6a1f0c1e-0000-4000-8000-000000000001
    name: Northside Plumbing
    timezone: America/New_York
    workers:
      - key: sam
        name: Sam Ortiz
        hourly_rate: 42.5
      - key: alex
        name: Alex Chen
        kind: contractor
        inactive: true
    users:
      - email: Owner@Northside.test
        password: correct-horse
        role: owner
      - email: sam@northside.test
        password: correct-horse
        worker: sam
    customers:
      - key: acme
        name: Dana Reyes
        company: Acme Rentals
        sites:
          - key: acme-hq
            name: HQ
            address: 1 Main St
    jobs:
      - key: boiler
        title: Boiler service
        customer: acme
        site: acme-hq
        start: "2024-03-11 08:00"
        end: "2024-03-11 10:00"
        workers: [sam, sam, alex]
      - key: estimate
        title: Estimate visit
    unavailability:
      - worker: sam
        start: "2024-03-10"
        end: "2024-03-12"
        reason: Leave
    quotes:
      - customer: acme
        job: boiler
        title: Repipe
        status: sent
        amount: 900
    invoices:
      - customer: acme
        job: boiler
        status: paid
        amount: 240
        due: "2024-04-01"
`

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
	if err := db.AutoMigrate(dbpkg.Models()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func mustParse(t *testing.T, doc string) *File {
	t.Helper()
	f, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return f
}

func TestApplySeed(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	counts, err := Apply(ctx, db, mustParse(t, sampleSeed), Options{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	want := Counts{Tenants: 1, Users: 2, Customers: 1, Sites: 1, Workers: 2, Jobs: 2, Assignments: 2, Unavailability: 1, Quotes: 1, Invoices: 1}
	if counts != want {
		t.Fatalf("counts = %+v, want %+v", counts, want)
	}

	var job models.Job
	if err := db.Where("title = ?", "Boiler service").First(&job).Error; err != nil {
		t.Fatalf("load job: %v", err)
	}
	// 08:00 in New York during EDT.
	if job.ScheduledStart == nil || !job.ScheduledStart.Equal(time.Date(2024, 3, 11, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("start = %v", job.ScheduledStart)
	}
	if job.Status != models.JobScheduled {
		t.Fatalf("status = %s, want scheduled", job.Status)
	}

	var alex models.Worker
	if err := db.Where("name = ?", "Alex Chen").First(&alex).Error; err != nil {
		t.Fatalf("load worker: %v", err)
	}
	if alex.Active {
		t.Fatal("inactive worker seeded as active")
	}

	var sam models.User
	if err := db.Where("email = ?", "sam@northside.test").First(&sam).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	if sam.Role != models.RoleWorker || sam.WorkerID == nil {
		t.Fatalf("worker login = %+v", sam)
	}

	var invoice models.Invoice
	if err := db.First(&invoice).Error; err != nil {
		t.Fatalf("load invoice: %v", err)
	}
	if invoice.Number != "INV-00001" {
		t.Fatalf("invoice number = %q", invoice.Number)
	}

	_, err = Apply(ctx, db, mustParse(t, sampleSeed), Options{}, zerolog.Nop())
	if !errors.Is(err, ErrTenantExists) {
		t.Fatalf("second apply err = %v, want ErrTenantExists", err)
	}
}

func TestApplyDryRunWritesNothing(t *testing.T) {
	db := newTestDB(t)

	counts, err := Apply(context.Background(), db, mustParse(t, sampleSeed), Options{DryRun: true}, zerolog.Nop())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if counts.Jobs != 2 {
		t.Fatalf("jobs = %d, want 2", counts.Jobs)
	}
	var n int64
	db.Model(&models.Tenant{}).Count(&n)
	if n != 0 {
		t.Fatalf("dry run wrote %d tenants", n)
	}
}

func TestApplyRejectsBadReferences(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "unknown worker on job",
			doc:  "tenants:\n  - name: T\n    jobs:\n      - key: j\n        title: J\n        workers: [ghost]\n",
			want: `unknown worker "ghost"`,
		},
		{
			name: "half scheduled job",
			doc:  "tenants:\n  - name: T\n    jobs:\n      - key: j\n        title: J\n        start: \"2024-03-11 08:00\"\n",
			want: "start and end must be set together",
		},
		{
			name: "inverted unavailability",
			doc:  "tenants:\n  - name: T\n    workers:\n      - key: w\n        name: W\n    unavailability:\n      - worker: w\n        start: \"2024-03-12\"\n        end: \"2024-03-10\"\n",
			want: "ends before it starts",
		},
		{
			name: "unbounded unavailability",
			doc:  "tenants:\n  - name: T\n    workers:\n      - key: w\n        name: W\n    unavailability:\n      - worker: w\n        start: \"0001-01-01\"\n        end: \"9999-12-31\"\n",
			want: "limit is 731",
		},
		{
			name: "bad timezone",
			doc:  "tenants:\n  - name: T\n    timezone: Mars/Olympus\n",
			want: "timezone",
		},
		{
			name: "unknown invoice status",
			doc:  "tenants:\n  - name: T\n    invoices:\n      - status: overdue\n",
			want: "unknown status",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t)
			_, err := Apply(context.Background(), db, mustParse(t, tt.doc), Options{}, zerolog.Nop())
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	if _, err := Parse(strings.NewReader("tenants:\n  - name: T\n    colour: blue\n")); err == nil {
		t.Fatal("expected unknown field error")
	}
}
