/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/crewdesk/internal/cache"
	"github.com/friendsincode/crewdesk/internal/models"
	"github.com/friendsincode/crewdesk/internal/period"
	"github.com/friendsincode/crewdesk/internal/telemetry"
)

// MaxDailyDays caps how many buckets a single Daily call returns.
const MaxDailyDays = 366

// Stats is a rollup together with the window it was computed over.
type Stats struct {
	Period     period.Period `json:"period"`
	Range      *period.Range `json:"range"`
	Timezone   string        `json:"timezone"`
	Rollup     Rollup        `json:"rollup"`
	ComputedAt time.Time     `json:"computed_at"`
}

// DashboardService loads tenant records and computes dashboard rollups.
type DashboardService struct {
	db         *gorm.DB
	cache      *cache.Cache
	defaultLoc *time.Location
	logger     zerolog.Logger
}

// NewDashboardService creates a dashboard service. c may be nil to disable caching.
func NewDashboardService(db *gorm.DB, c *cache.Cache, defaultLoc *time.Location, logger zerolog.Logger) *DashboardService {
	if defaultLoc == nil {
		defaultLoc = time.UTC
	}
	return &DashboardService{
		db:         db,
		cache:      c,
		defaultLoc: defaultLoc,
		logger:     logger.With().Str("component", "dashboard").Logger(),
	}
}

func (s *DashboardService) location(ctx context.Context, tenantID string) *time.Location {
	var tenant models.Tenant
	if err := s.db.WithContext(ctx).Select("id", "timezone").First(&tenant, "id = ?", tenantID).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn().Err(err).Str("tenant_id", tenantID).Msg("tenant lookup failed, using default timezone")
		}
		return s.defaultLoc
	}
	return tenant.Location(s.defaultLoc)
}

// Stats computes the rollup for p as seen from now in the tenant's timezone.
func (s *DashboardService) Stats(ctx context.Context, tenantID string, p period.Period, now time.Time) (*Stats, error) {
	ctx, span := telemetry.StartTenantSpan(ctx, "analytics", "Stats", tenantID, telemetry.AttrPeriod.String(p.String()))
	defer span.End()

	loc := s.location(ctx, tenantID)
	r := period.Resolve(p, now.In(loc))

	var rangeStart time.Time
	if r != nil {
		rangeStart = r.Start
	}
	key := cache.StatsKey(tenantID, p.String(), rangeStart)

	var cached Stats
	if s.cache.GetStats(ctx, key, &cached) {
		return &cached, nil
	}

	began := time.Now()
	in, err := s.loadRecords(ctx, tenantID, r)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	stats := &Stats{
		Period:     p,
		Range:      r,
		Timezone:   loc.String(),
		Rollup:     Compute(r, in),
		ComputedAt: now,
	}
	telemetry.RollupComputeDuration.WithLabelValues("stats").Observe(time.Since(began).Seconds())
	span.SetAttributes(telemetry.AttrJobsTotal.Int(stats.Rollup.JobsTotal))

	if err := s.cache.SetStats(ctx, key, stats); err != nil {
		s.logger.Debug().Err(err).Str("key", key).Msg("failed to cache stats")
	}
	return stats, nil
}

// Daily returns one bucket per calendar day from through to, inclusive, in the tenant's
// timezone. Reversed dates are swapped and spans longer than MaxDailyDays are truncated.
func (s *DashboardService) Daily(ctx context.Context, tenantID string, from, to time.Time) ([]DailyBucket, error) {
	ctx, span := telemetry.StartTenantSpan(ctx, "analytics", "Daily", tenantID)
	defer span.End()

	loc := s.location(ctx, tenantID)
	if to.Before(from) {
		from, to = to, from
	}
	r, err := period.DayRange(from, to, loc)
	if err != nil {
		return nil, err
	}
	if r.Days() > MaxDailyDays {
		r.End = r.Start.AddDate(0, 0, MaxDailyDays)
	}

	key := cache.DailyKey(tenantID, r.Start, r.End)
	var cached []DailyBucket
	if s.cache.GetDaily(ctx, key, &cached) {
		return cached, nil
	}

	began := time.Now()
	in, err := s.loadRecords(ctx, tenantID, r)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	buckets := DailyBuckets(in, r.Start, r.End)
	telemetry.RollupComputeDuration.WithLabelValues("daily").Observe(time.Since(began).Seconds())

	if err := s.cache.SetDaily(ctx, key, buckets); err != nil {
		s.logger.Debug().Err(err).Str("key", key).Msg("failed to cache daily buckets")
	}
	return buckets, nil
}

// loadRecords fetches the tenant's jobs, invoices and quotes created inside r and
// flattens them into rollup input.
func (s *DashboardService) loadRecords(ctx context.Context, tenantID string, r *period.Range) (RollupInput, error) {
	scoped := func() *gorm.DB {
		q := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
		if r != nil {
			q = q.Where("created_at >= ? AND created_at < ?", r.Start.UTC(), r.End.UTC())
		}
		return q
	}

	var jobs []models.Job
	if err := scoped().Preload("Assignments.Worker").Find(&jobs).Error; err != nil {
		return RollupInput{}, fmt.Errorf("load jobs: %w", err)
	}
	var invoices []models.Invoice
	if err := scoped().Where("status <> ?", models.InvoiceVoid).Find(&invoices).Error; err != nil {
		return RollupInput{}, fmt.Errorf("load invoices: %w", err)
	}
	var quotes []models.Quote
	if err := scoped().Find(&quotes).Error; err != nil {
		return RollupInput{}, fmt.Errorf("load quotes: %w", err)
	}

	return RollupInput{
		Jobs:     JobRecords(jobs),
		Invoices: InvoiceRecords(invoices),
		Quotes:   QuoteRecords(quotes),
	}, nil
}

// JobRecords flattens jobs with preloaded assignment workers.
func JobRecords(jobs []models.Job) []JobRecord {
	out := make([]JobRecord, 0, len(jobs))
	for _, j := range jobs {
		labor := make([]LaborRecord, 0, len(j.Assignments))
		for _, a := range j.Assignments {
			rec := LaborRecord{WorkerID: a.WorkerID}
			if a.Worker != nil && a.Worker.HourlyRate != nil {
				rec.HourlyRate = *a.Worker.HourlyRate
			}
			labor = append(labor, rec)
		}
		out = append(out, JobRecord{
			ID:          j.ID,
			Status:      j.Status,
			Start:       j.ScheduledStart,
			End:         j.ScheduledEnd,
			CreatedAt:   j.CreatedAt,
			Assignments: labor,
		})
	}
	return out
}

// InvoiceRecords flattens invoices into amount records.
func InvoiceRecords(invoices []models.Invoice) []AmountRecord {
	out := make([]AmountRecord, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, AmountRecord{ID: inv.ID, Amount: inv.Amount, CreatedAt: inv.CreatedAt})
	}
	return out
}

// QuoteRecords flattens quotes into amount records.
func QuoteRecords(quotes []models.Quote) []AmountRecord {
	out := make([]AmountRecord, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, AmountRecord{ID: q.ID, Amount: q.Amount, CreatedAt: q.CreatedAt})
	}
	return out
}
