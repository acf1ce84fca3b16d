/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"gorm.io/gorm"

	"github.com/friendsincode/crewdesk/internal/config"
	"github.com/friendsincode/crewdesk/internal/models"
	"github.com/friendsincode/crewdesk/internal/telemetry"
)

func openMigrated(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := Connect(&config.Config{Environment: "production", DBBackend: config.DatabaseSQLite, DBDSN: ":memory:"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = Close(database) })
	if err := Migrate(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return database
}

func TestTableLabel(t *testing.T) {
	openMigrated(t)

	tests := []struct {
		table string
		want  string
	}{
		{"jobs", "jobs"},
		{"worker_unavailability", "worker_unavailability"},
		{"webhook_logs", "webhook_logs"},
		{"sqlite_master", otherTable},
		{"", otherTable},
	}
	for _, tt := range tests {
		if got := tableLabel(tt.table); got != tt.want {
			t.Errorf("tableLabel(%q) = %q, want %q", tt.table, got, tt.want)
		}
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{gorm.ErrRecordNotFound, ""},
		{fmt.Errorf("load job: %w", gorm.ErrRecordNotFound), ""},
		{context.DeadlineExceeded, "canceled"},
		{gorm.ErrDuplicatedKey, "constraint"},
		{errors.New("no such table: nope"), "query_error"},
	}
	for _, tt := range tests {
		if got := errorKind(tt.err); got != tt.want {
			t.Errorf("errorKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestCallbacksCountConstraintErrors(t *testing.T) {
	database := openMigrated(t)

	counter := telemetry.DatabaseErrorsTotal.WithLabelValues("create", "constraint")
	before := testutil.ToFloat64(counter)

	tenant := &models.Tenant{ID: "t1", Name: "Northside Plumbing"}
	if err := database.Create(tenant).Error; err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	err := database.Create(&models.Tenant{ID: "t1", Name: "Again"}).Error
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("duplicate insert err = %v, want ErrDuplicatedKey", err)
	}
	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Fatalf("constraint errors delta = %v, want 1", got)
	}
}

func TestCallbacksOpenChildSpanWhenTraced(t *testing.T) {
	database := openMigrated(t)

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	// Untraced statements produce no spans.
	var count int64
	database.Model(&models.Job{}).Count(&count)
	if n := len(rec.Ended()); n != 0 {
		t.Fatalf("untraced statement produced %d spans", n)
	}

	ctx, parent := telemetry.StartTenantSpan(context.Background(), "scheduling", "WorkerSchedule", "t1")
	var jobs []models.Job
	if err := database.WithContext(ctx).Where("tenant_id = ?", "t1").Find(&jobs).Error; err != nil {
		t.Fatalf("find: %v", err)
	}
	parent.End()

	var child sdktrace.ReadOnlySpan
	for _, s := range rec.Ended() {
		if s.Name() == "db.query" {
			child = s
		}
	}
	if child == nil {
		t.Fatal("no db.query span recorded")
	}
	if child.Parent().SpanID() != parent.SpanContext().SpanID() {
		t.Fatal("db span is not a child of the service span")
	}
	attrs := attribute.NewSet(child.Attributes()...)
	if v, ok := attrs.Value(semconv.DBSQLTableKey); !ok || v.AsString() != "jobs" {
		t.Fatalf("db.sql.table = %v", v)
	}
}
