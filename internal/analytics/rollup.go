/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package analytics computes dashboard rollups over jobs, quotes and invoices.
package analytics

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/friendsincode/crewdesk/internal/models"
	"github.com/friendsincode/crewdesk/internal/period"
)

// LaborRecord is one worker assignment on a job with that worker's rate.
// HourlyRate may be nil, a number, or a numeric string.
type LaborRecord struct {
	WorkerID   string `json:"worker_id"`
	HourlyRate any    `json:"hourly_rate"`
}

// JobRecord is a job flattened for rollups.
type JobRecord struct {
	ID          string           `json:"id"`
	Status      models.JobStatus `json:"status"`
	Start       *time.Time       `json:"start"`
	End         *time.Time       `json:"end"`
	CreatedAt   time.Time        `json:"created_at"`
	Assignments []LaborRecord    `json:"assignments"`
}

// AmountRecord is a quote or invoice amount. Amount may be nil or non-numeric.
type AmountRecord struct {
	ID        string    `json:"id"`
	Amount    any       `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// RollupInput holds the raw record sets a rollup is computed over.
type RollupInput struct {
	Jobs     []JobRecord
	Invoices []AmountRecord
	Quotes   []AmountRecord
}

// Rollup is the dashboard summary for one range.
type Rollup struct {
	JobsTotal      int     `json:"jobs_total"`
	JobsScheduled  int     `json:"jobs_scheduled"`
	JobsInProgress int     `json:"jobs_in_progress"`
	JobsCompleted  int     `json:"jobs_completed"`
	Revenue        float64 `json:"revenue"`
	QuotesValue    float64 `json:"quotes_value"`
	LaborCost      float64 `json:"labor_cost"`
}

// Number coerces a loosely typed amount to a float. Nil, non-numeric and
// non-finite values become 0.
func Number(v any) float64 {
	var f float64
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case *float64:
		if n == nil {
			return 0
		}
		f = *n
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		f = parsed
	case *string:
		if n == nil {
			return 0
		}
		return Number(*n)
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Compute summarizes in over r. Records are selected by CreatedAt; a nil range selects everything.
func Compute(r *period.Range, in RollupInput) Rollup {
	var out Rollup

	for _, job := range in.Jobs {
		if !r.Contains(job.CreatedAt) {
			continue
		}
		out.JobsTotal++
		switch job.Status {
		case models.JobScheduled:
			out.JobsScheduled++
		case models.JobInProgress:
			out.JobsInProgress++
		case models.JobCompleted:
			out.JobsCompleted++
		}
		out.LaborCost += LaborCost(job)
	}

	out.Revenue = sumAmounts(r, in.Invoices)
	out.QuotesValue = sumAmounts(r, in.Quotes)
	out.LaborCost = roundCents(out.LaborCost)
	return out
}

// LaborCost prices one job: scheduled hours times each assigned worker's rate.
// Unscheduled jobs and non-positive durations cost nothing.
func LaborCost(job JobRecord) float64 {
	if job.Start == nil || job.End == nil {
		return 0
	}
	hours := job.End.Sub(*job.Start).Hours()
	if hours <= 0 {
		return 0
	}
	var total float64
	for _, a := range job.Assignments {
		total += hours * Number(a.HourlyRate)
	}
	return total
}

func sumAmounts(r *period.Range, records []AmountRecord) float64 {
	var total float64
	for _, rec := range records {
		if r.Contains(rec.CreatedAt) {
			total += Number(rec.Amount)
		}
	}
	return roundCents(total)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// DailyBucket is one calendar day of dashboard chart data.
type DailyBucket struct {
	Date        string  `json:"date"`
	JobsCreated int     `json:"jobs_created"`
	Revenue     float64 `json:"revenue"`
	QuotesValue float64 `json:"quotes_value"`
}

// DailyBuckets splits in into one bucket per calendar day of [start, end), in start's
// location. Every day gets a bucket, including empty ones.
func DailyBuckets(in RollupInput, start, end time.Time) []DailyBucket {
	loc := start.Location()
	first := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)

	buckets := []DailyBucket{}
	index := make(map[string]int)
	for d := first; d.Before(end); d = d.AddDate(0, 0, 1) {
		key := d.Format(time.DateOnly)
		index[key] = len(buckets)
		buckets = append(buckets, DailyBucket{Date: key})
	}

	bucketFor := func(t time.Time) *DailyBucket {
		if t.Before(start) || !t.Before(end) {
			return nil
		}
		i, ok := index[t.In(loc).Format(time.DateOnly)]
		if !ok {
			return nil
		}
		return &buckets[i]
	}

	for _, job := range in.Jobs {
		if b := bucketFor(job.CreatedAt); b != nil {
			b.JobsCreated++
		}
	}
	for _, inv := range in.Invoices {
		if b := bucketFor(inv.CreatedAt); b != nil {
			b.Revenue += Number(inv.Amount)
		}
	}
	for _, q := range in.Quotes {
		if b := bucketFor(q.CreatedAt); b != nil {
			b.QuotesValue += Number(q.Amount)
		}
	}

	for i := range buckets {
		buckets[i].Revenue = roundCents(buckets[i].Revenue)
		buckets[i].QuotesValue = roundCents(buckets[i].QuotesValue)
	}
	return buckets
}
