/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package seed loads tenants and their records from a YAML file.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/friendsincode/crewdesk/internal/auth"
	"github.com/friendsincode/crewdesk/internal/models"
)

// ErrTenantExists is returned when a seeded tenant ID is already in the database.
var ErrTenantExists = errors.New("tenant already exists")

// File is the top-level seed document.
type File struct {
	Tenants []Tenant `yaml:"tenants"`
}

// Tenant groups every record seeded for one tenant. Records refer to each
// other through their `key`, which only has to be unique inside the tenant.
type Tenant struct {
	ID             string           `yaml:"id"`
	Name           string           `yaml:"name"`
	Timezone       string           `yaml:"timezone"`
	Users          []User           `yaml:"users"`
	Customers      []Customer       `yaml:"customers"`
	Workers        []Worker         `yaml:"workers"`
	Jobs           []Job            `yaml:"jobs"`
	Unavailability []Unavailability `yaml:"unavailability"`
	Quotes         []Quote          `yaml:"quotes"`
	Invoices       []Invoice        `yaml:"invoices"`
}

type User struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
	Worker   string `yaml:"worker"`
}

type Customer struct {
	Key     string `yaml:"key"`
	Name    string `yaml:"name"`
	Company string `yaml:"company"`
	Email   string `yaml:"email"`
	Phone   string `yaml:"phone"`
	Sites   []Site `yaml:"sites"`
}

type Site struct {
	Key     string `yaml:"key"`
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
}

type Worker struct {
	Key        string   `yaml:"key"`
	Name       string   `yaml:"name"`
	Email      string   `yaml:"email"`
	Kind       string   `yaml:"kind"`
	HourlyRate *float64 `yaml:"hourly_rate"`
	Inactive   bool     `yaml:"inactive"`
}

// Job times accept RFC 3339 or a local "2006-01-02 15:04" read in the tenant timezone.
type Job struct {
	Key         string   `yaml:"key"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Status      string   `yaml:"status"`
	Customer    string   `yaml:"customer"`
	Site        string   `yaml:"site"`
	Start       string   `yaml:"start"`
	End         string   `yaml:"end"`
	Workers     []string `yaml:"workers"`
}

type Unavailability struct {
	Worker string `yaml:"worker"`
	Start  string `yaml:"start"`
	End    string `yaml:"end"`
	Reason string `yaml:"reason"`
}

type Quote struct {
	Customer string   `yaml:"customer"`
	Job      string   `yaml:"job"`
	Title    string   `yaml:"title"`
	Status   string   `yaml:"status"`
	Amount   *float64 `yaml:"amount"`
}

type Invoice struct {
	Customer string   `yaml:"customer"`
	Job      string   `yaml:"job"`
	Number   string   `yaml:"number"`
	Status   string   `yaml:"status"`
	Amount   *float64 `yaml:"amount"`
	Due      string   `yaml:"due"`
}

// Counts reports how many rows of each kind a seed produced.
type Counts struct {
	Tenants        int `json:"tenants"`
	Users          int `json:"users"`
	Customers      int `json:"customers"`
	Sites          int `json:"sites"`
	Workers        int `json:"workers"`
	Jobs           int `json:"jobs"`
	Assignments    int `json:"assignments"`
	Unavailability int `json:"unavailability"`
	Quotes         int `json:"quotes"`
	Invoices       int `json:"invoices"`
}

// Options controls Apply.
type Options struct {
	// DryRun resolves and validates every record without writing.
	DryRun bool
	// DefaultLocation reads local job times for tenants without a timezone.
	DefaultLocation *time.Location
}

// Parse decodes a seed document. Unknown fields are rejected so typos surface early.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	return &f, nil
}

// rows holds resolved models in insert order.
type rows struct {
	tenants        []models.Tenant
	users          []models.User
	customers      []models.Customer
	sites          []models.Site
	workers        []models.Worker
	jobs           []models.Job
	assignments    []models.JobAssignment
	unavailability []models.WorkerUnavailability
	quotes         []models.Quote
	invoices       []models.Invoice

	// inactive worker IDs; gorm writes the column default for a false Active.
	inactive []string
}

func (r *rows) counts() Counts {
	return Counts{
		Tenants:        len(r.tenants),
		Users:          len(r.users),
		Customers:      len(r.customers),
		Sites:          len(r.sites),
		Workers:        len(r.workers),
		Jobs:           len(r.jobs),
		Assignments:    len(r.assignments),
		Unavailability: len(r.unavailability),
		Quotes:         len(r.quotes),
		Invoices:       len(r.invoices),
	}
}

// Apply resolves every reference in f and inserts the result in one transaction.
func Apply(ctx context.Context, db *gorm.DB, f *File, opts Options, logger zerolog.Logger) (Counts, error) {
	if opts.DefaultLocation == nil {
		opts.DefaultLocation = time.UTC
	}

	var out rows
	for i := range f.Tenants {
		if err := resolveTenant(&f.Tenants[i], opts.DefaultLocation, &out); err != nil {
			return Counts{}, fmt.Errorf("tenant %d (%s): %w", i, f.Tenants[i].Name, err)
		}
	}

	for _, t := range out.tenants {
		var n int64
		if err := db.WithContext(ctx).Model(&models.Tenant{}).Where("id = ?", t.ID).Count(&n).Error; err != nil {
			return Counts{}, fmt.Errorf("check tenant %s: %w", t.ID, err)
		}
		if n > 0 {
			return Counts{}, fmt.Errorf("%w: %s", ErrTenantExists, t.ID)
		}
	}

	counts := out.counts()
	if opts.DryRun {
		logger.Info().Interface("counts", counts).Msg("seed dry run complete")
		return counts, nil
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		batches := []struct {
			name  string
			value any
			n     int
		}{
			{"tenants", &out.tenants, len(out.tenants)},
			{"workers", &out.workers, len(out.workers)},
			{"users", &out.users, len(out.users)},
			{"customers", &out.customers, len(out.customers)},
			{"sites", &out.sites, len(out.sites)},
			{"jobs", &out.jobs, len(out.jobs)},
			{"assignments", &out.assignments, len(out.assignments)},
			{"unavailability", &out.unavailability, len(out.unavailability)},
			{"quotes", &out.quotes, len(out.quotes)},
			{"invoices", &out.invoices, len(out.invoices)},
		}
		for _, b := range batches {
			if b.n == 0 {
				continue
			}
			if err := tx.Omit(clause.Associations).Create(b.value).Error; err != nil {
				return fmt.Errorf("insert %s: %w", b.name, err)
			}
		}
		if len(out.inactive) > 0 {
			if err := tx.Model(&models.Worker{}).Where("id IN ?", out.inactive).Update("active", false).Error; err != nil {
				return fmt.Errorf("mark inactive workers: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Counts{}, err
	}

	logger.Info().Interface("counts", counts).Msg("seed applied")
	return counts, nil
}

func resolveTenant(t *Tenant, defLoc *time.Location, out *rows) error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("name is required")
	}
	tenant := models.Tenant{ID: t.ID, Name: t.Name, Timezone: t.Timezone}
	if tenant.ID == "" {
		tenant.ID = uuid.NewString()
	}
	if t.Timezone != "" {
		if _, err := time.LoadLocation(t.Timezone); err != nil {
			return fmt.Errorf("timezone %q: %w", t.Timezone, err)
		}
	}
	loc := tenant.Location(defLoc)
	out.tenants = append(out.tenants, tenant)

	workers := map[string]string{}
	for _, w := range t.Workers {
		if w.Key == "" || w.Name == "" {
			return errors.New("worker needs key and name")
		}
		if _, dup := workers[w.Key]; dup {
			return fmt.Errorf("duplicate worker key %q", w.Key)
		}
		kind := models.WorkerKind(strings.ToLower(w.Kind))
		if kind == "" {
			kind = models.WorkerEmployee
		}
		if kind != models.WorkerEmployee && kind != models.WorkerContractor {
			return fmt.Errorf("worker %q: unknown kind %q", w.Key, w.Kind)
		}
		id := uuid.NewString()
		workers[w.Key] = id
		if w.Inactive {
			out.inactive = append(out.inactive, id)
		}
		out.workers = append(out.workers, models.Worker{
			ID:         id,
			TenantID:   tenant.ID,
			Name:       w.Name,
			Email:      w.Email,
			Kind:       kind,
			HourlyRate: w.HourlyRate,
			Active:     !w.Inactive,
		})
	}

	for _, u := range t.Users {
		if u.Email == "" || u.Password == "" {
			return errors.New("user needs email and password")
		}
		hash, err := auth.HashPassword(u.Password)
		if err != nil {
			return fmt.Errorf("user %s: %w", u.Email, err)
		}
		user := models.User{
			ID:           uuid.NewString(),
			TenantID:     tenant.ID,
			Email:        strings.ToLower(strings.TrimSpace(u.Email)),
			PasswordHash: hash,
			Role:         models.NormalizeRole(u.Role),
		}
		if u.Worker != "" {
			id, ok := workers[u.Worker]
			if !ok {
				return fmt.Errorf("user %s: unknown worker %q", u.Email, u.Worker)
			}
			user.WorkerID = &id
		}
		out.users = append(out.users, user)
	}

	customers := map[string]string{}
	sites := map[string]string{}
	siteOwner := map[string]string{}
	for _, c := range t.Customers {
		if c.Key == "" || c.Name == "" {
			return errors.New("customer needs key and name")
		}
		if _, dup := customers[c.Key]; dup {
			return fmt.Errorf("duplicate customer key %q", c.Key)
		}
		id := uuid.NewString()
		customers[c.Key] = id
		out.customers = append(out.customers, models.Customer{
			ID:       id,
			TenantID: tenant.ID,
			Name:     c.Name,
			Company:  c.Company,
			Email:    c.Email,
			Phone:    c.Phone,
		})
		for _, s := range c.Sites {
			if s.Key == "" {
				return fmt.Errorf("customer %q: site needs a key", c.Key)
			}
			if _, dup := sites[s.Key]; dup {
				return fmt.Errorf("duplicate site key %q", s.Key)
			}
			siteID := uuid.NewString()
			sites[s.Key] = siteID
			siteOwner[s.Key] = c.Key
			out.sites = append(out.sites, models.Site{
				ID:         siteID,
				TenantID:   tenant.ID,
				CustomerID: id,
				Name:       s.Name,
				Address:    s.Address,
			})
		}
	}

	jobs := map[string]string{}
	for _, j := range t.Jobs {
		if j.Key == "" || j.Title == "" {
			return errors.New("job needs key and title")
		}
		if _, dup := jobs[j.Key]; dup {
			return fmt.Errorf("duplicate job key %q", j.Key)
		}
		job := models.Job{
			ID:          uuid.NewString(),
			TenantID:    tenant.ID,
			Title:       j.Title,
			Description: j.Description,
			Status:      models.JobStatus(j.Status),
		}
		var err error
		if job.CustomerID, err = ref(customers, j.Customer, "customer"); err != nil {
			return fmt.Errorf("job %q: %w", j.Key, err)
		}
		if job.SiteID, err = ref(sites, j.Site, "site"); err != nil {
			return fmt.Errorf("job %q: %w", j.Key, err)
		}
		if j.Site != "" && j.Customer != "" && siteOwner[j.Site] != j.Customer {
			return fmt.Errorf("job %q: site %q belongs to another customer", j.Key, j.Site)
		}
		if (j.Start == "") != (j.End == "") {
			return fmt.Errorf("job %q: start and end must be set together", j.Key)
		}
		if j.Start != "" {
			start, err := parseLocalTime(j.Start, loc)
			if err != nil {
				return fmt.Errorf("job %q start: %w", j.Key, err)
			}
			end, err := parseLocalTime(j.End, loc)
			if err != nil {
				return fmt.Errorf("job %q end: %w", j.Key, err)
			}
			if !end.After(start) {
				return fmt.Errorf("job %q: end must be after start", j.Key)
			}
			job.ScheduledStart, job.ScheduledEnd = &start, &end
		}
		if job.Status == "" {
			job.Status = models.JobDraft
			if job.ScheduledStart != nil {
				job.Status = models.JobScheduled
			}
		}
		if !job.Status.Valid() {
			return fmt.Errorf("job %q: unknown status %q", j.Key, j.Status)
		}
		jobs[j.Key] = job.ID
		out.jobs = append(out.jobs, job)

		seen := map[string]bool{}
		for _, wk := range j.Workers {
			wid, ok := workers[wk]
			if !ok {
				return fmt.Errorf("job %q: unknown worker %q", j.Key, wk)
			}
			if seen[wk] {
				continue
			}
			seen[wk] = true
			out.assignments = append(out.assignments, models.JobAssignment{
				ID:       uuid.NewString(),
				TenantID: tenant.ID,
				JobID:    job.ID,
				WorkerID: wid,
				Status:   models.AssignmentAssigned,
			})
		}
	}

	for _, u := range t.Unavailability {
		wid, ok := workers[u.Worker]
		if !ok {
			return fmt.Errorf("unavailability: unknown worker %q", u.Worker)
		}
		start, err := time.Parse(time.DateOnly, u.Start)
		if err != nil {
			return fmt.Errorf("unavailability start: %w", err)
		}
		end := start
		if u.End != "" {
			if end, err = time.Parse(time.DateOnly, u.End); err != nil {
				return fmt.Errorf("unavailability end: %w", err)
			}
		}
		if end.Before(start) {
			return fmt.Errorf("unavailability for %q ends before it starts", u.Worker)
		}
		if days := models.UnavailabilityDays(start, end); days > models.MaxUnavailabilityDays {
			return fmt.Errorf("unavailability for %q spans %d days, limit is %d", u.Worker, days, models.MaxUnavailabilityDays)
		}
		window := models.WorkerUnavailability{
			ID:        uuid.NewString(),
			TenantID:  tenant.ID,
			WorkerID:  wid,
			StartDate: start,
			EndDate:   end,
		}
		if u.Reason != "" {
			reason := u.Reason
			window.Reason = &reason
		}
		out.unavailability = append(out.unavailability, window)
	}

	for _, q := range t.Quotes {
		quote := models.Quote{
			ID:       uuid.NewString(),
			TenantID: tenant.ID,
			Title:    q.Title,
			Status:   models.QuoteStatus(q.Status),
			Amount:   q.Amount,
		}
		if quote.Status == "" {
			quote.Status = models.QuoteDraft
		}
		switch quote.Status {
		case models.QuoteDraft, models.QuoteSent, models.QuoteAccepted, models.QuoteDeclined:
		default:
			return fmt.Errorf("quote %q: unknown status %q", q.Title, q.Status)
		}
		var err error
		if quote.CustomerID, err = ref(customers, q.Customer, "customer"); err != nil {
			return fmt.Errorf("quote %q: %w", q.Title, err)
		}
		if quote.JobID, err = ref(jobs, q.Job, "job"); err != nil {
			return fmt.Errorf("quote %q: %w", q.Title, err)
		}
		out.quotes = append(out.quotes, quote)
	}

	for i, inv := range t.Invoices {
		invoice := models.Invoice{
			ID:       uuid.NewString(),
			TenantID: tenant.ID,
			Number:   inv.Number,
			Status:   models.InvoiceStatus(inv.Status),
			Amount:   inv.Amount,
		}
		if invoice.Number == "" {
			invoice.Number = fmt.Sprintf("INV-%05d", i+1)
		}
		if invoice.Status == "" {
			invoice.Status = models.InvoiceDraft
		}
		switch invoice.Status {
		case models.InvoiceDraft, models.InvoiceSent, models.InvoicePaid, models.InvoiceVoid:
		default:
			return fmt.Errorf("invoice %s: unknown status %q", invoice.Number, inv.Status)
		}
		var err error
		if invoice.CustomerID, err = ref(customers, inv.Customer, "customer"); err != nil {
			return fmt.Errorf("invoice %s: %w", invoice.Number, err)
		}
		if invoice.JobID, err = ref(jobs, inv.Job, "job"); err != nil {
			return fmt.Errorf("invoice %s: %w", invoice.Number, err)
		}
		if inv.Due != "" {
			due, err := time.ParseInLocation(time.DateOnly, inv.Due, loc)
			if err != nil {
				return fmt.Errorf("invoice %s due: %w", invoice.Number, err)
			}
			due = due.UTC()
			invoice.DueAt = &due
		}
		out.invoices = append(out.invoices, invoice)
	}

	return nil
}

// ref resolves an optional key. Empty keys resolve to nil.
func ref(ids map[string]string, key, kind string) (*string, error) {
	if key == "" {
		return nil, nil
	}
	id, ok := ids[key]
	if !ok {
		return nil, fmt.Errorf("unknown %s %q", kind, key)
	}
	return &id, nil
}

// parseLocalTime accepts RFC 3339 or a wall-clock time in loc. The result is UTC.
func parseLocalTime(raw string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", raw)
}
