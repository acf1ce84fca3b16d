/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/friendsincode/crewdesk/internal/telemetry"
)

const (
	keyStarted = "crewdesk:db_started"
	keySpan    = "crewdesk:db_span"

	// otherTable labels statements against tables outside Models().
	otherTable = "other"
)

var (
	tableNamesOnce sync.Once
	tableNames     map[string]struct{}
)

// RegisterCallbacks times every CRUD statement per CrewDesk table, counts failures
// and, when the request is traced, opens a child span per statement.
func RegisterCallbacks(db *gorm.DB) error {
	tableNamesOnce.Do(func() { tableNames = knownTables(db) })

	cb := db.Callback()
	hooks := []struct {
		op       string
		register func(before, after func(*gorm.DB)) error
	}{
		{"query", func(b, a func(*gorm.DB)) error {
			if err := cb.Query().Before("gorm:query").Register("crewdesk:before_query", b); err != nil {
				return err
			}
			return cb.Query().After("gorm:query").Register("crewdesk:after_query", a)
		}},
		{"create", func(b, a func(*gorm.DB)) error {
			if err := cb.Create().Before("gorm:create").Register("crewdesk:before_create", b); err != nil {
				return err
			}
			return cb.Create().After("gorm:create").Register("crewdesk:after_create", a)
		}},
		{"update", func(b, a func(*gorm.DB)) error {
			if err := cb.Update().Before("gorm:update").Register("crewdesk:before_update", b); err != nil {
				return err
			}
			return cb.Update().After("gorm:update").Register("crewdesk:after_update", a)
		}},
		{"delete", func(b, a func(*gorm.DB)) error {
			if err := cb.Delete().Before("gorm:delete").Register("crewdesk:before_delete", b); err != nil {
				return err
			}
			return cb.Delete().After("gorm:delete").Register("crewdesk:after_delete", a)
		}},
		{"row", func(b, a func(*gorm.DB)) error {
			if err := cb.Row().Before("gorm:row").Register("crewdesk:before_row", b); err != nil {
				return err
			}
			return cb.Row().After("gorm:row").Register("crewdesk:after_row", a)
		}},
	}

	for _, h := range hooks {
		if err := h.register(beforeStatement(h.op), afterStatement(h.op)); err != nil {
			return err
		}
	}
	return nil
}

// knownTables resolves the table name of every migrated model.
func knownTables(db *gorm.DB) map[string]struct{} {
	names := make(map[string]struct{}, len(Models()))
	for _, m := range Models() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(m); err == nil {
			names[stmt.Schema.Table] = struct{}{}
		}
	}
	return names
}

// tableLabel maps a statement table to a metric label.
func tableLabel(table string) string {
	if _, ok := tableNames[table]; ok {
		return table
	}
	return otherTable
}

func statementTable(db *gorm.DB) string {
	if db.Statement.Table != "" {
		return db.Statement.Table
	}
	if db.Statement.Schema != nil {
		return db.Statement.Schema.Table
	}
	return ""
}

func beforeStatement(op string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		db.InstanceSet(keyStarted, time.Now())

		ctx := db.Statement.Context
		if ctx == nil || !trace.SpanFromContext(ctx).SpanContext().IsValid() {
			return
		}
		_, span := otel.Tracer("github.com/friendsincode/crewdesk/internal/db").Start(ctx, "db."+op,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBOperation(op),
				semconv.DBSQLTable(tableLabel(statementTable(db))),
			),
		)
		db.InstanceSet(keySpan, span)
	}
}

func afterStatement(op string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		table := tableLabel(statementTable(db))

		if v, ok := db.InstanceGet(keyStarted); ok {
			if started, ok := v.(time.Time); ok {
				telemetry.DatabaseQueryDuration.WithLabelValues(op, table).Observe(time.Since(started).Seconds())
			}
		}

		kind := errorKind(db.Error)
		if kind != "" {
			telemetry.DatabaseErrorsTotal.WithLabelValues(op, kind).Inc()
		}

		if v, ok := db.InstanceGet(keySpan); ok {
			if span, ok := v.(trace.Span); ok {
				if kind != "" {
					telemetry.RecordError(span, db.Error)
				}
				span.End()
			}
		}
	}
}

// errorKind classifies a statement error for the errors_total metric. Missing rows
// are an expected outcome and yield "".
func errorKind(err error) string {
	switch {
	case err == nil, errors.Is(err, gorm.ErrRecordNotFound):
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, gorm.ErrDuplicatedKey), errors.Is(err, gorm.ErrForeignKeyViolated):
		return "constraint"
	default:
		return "query_error"
	}
}

// UpdateConnectionMetrics copies pool statistics into the connection gauge.
// The server calls it on a ticker.
func UpdateConnectionMetrics(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	telemetry.DatabaseConnectionsActive.Set(float64(sqlDB.Stats().OpenConnections))
}
