/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/friendsincode/crewdesk/internal/events"
	"github.com/friendsincode/crewdesk/internal/models"
)

type customerRequest struct {
	Name    string `json:"name"`
	Company string `json:"company"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
}

func (a *API) handleCustomersList(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	q := a.db.WithContext(r.Context()).Where("tenant_id = ?", tenantID(r))
	if search := strings.TrimSpace(r.URL.Query().Get("q")); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(company) LIKE ?", like, like)
	}

	var customers []models.Customer
	if err := q.Order("name ASC").Limit(limit).Offset(offset).Find(&customers).Error; err != nil {
		a.writeDBError(w, err, "list customers failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customers": customers})
}

func (a *API) handleCustomersCreate(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}

	customer := models.Customer{
		ID:       uuid.NewString(),
		TenantID: tenantID(r),
		Name:     req.Name,
		Company:  strings.TrimSpace(req.Company),
		Email:    strings.TrimSpace(req.Email),
		Phone:    strings.TrimSpace(req.Phone),
	}
	if err := a.db.WithContext(r.Context()).Create(&customer).Error; err != nil {
		a.writeDBError(w, err, "create customer failed")
		return
	}

	a.publishEvent(r, events.EventCustomerCreated, events.Payload{
		"resource_type": "customer",
		"resource_id":   customer.ID,
		"name":          customer.Name,
	})
	writeJSON(w, http.StatusCreated, customer)
}

type workerRequest struct {
	Name       string            `json:"name"`
	Email      string            `json:"email"`
	Kind       models.WorkerKind `json:"kind"`
	HourlyRate *float64          `json:"hourly_rate"`
}

func (a *API) handleWorkersList(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	q := a.db.WithContext(r.Context()).Where("tenant_id = ?", tenantID(r))
	switch r.URL.Query().Get("active") {
	case "true":
		q = q.Where("active = ?", true)
	case "false":
		q = q.Where("active = ?", false)
	}

	var workers []models.Worker
	if err := q.Order("name ASC").Limit(limit).Offset(offset).Find(&workers).Error; err != nil {
		a.writeDBError(w, err, "list workers failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workers": workers})
}

func (a *API) handleWorkersCreate(w http.ResponseWriter, r *http.Request) {
	var req workerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}
	if req.Kind == "" {
		req.Kind = models.WorkerEmployee
	}
	if req.Kind != models.WorkerEmployee && req.Kind != models.WorkerContractor {
		writeError(w, http.StatusBadRequest, "invalid_kind")
		return
	}
	if req.HourlyRate != nil && *req.HourlyRate < 0 {
		writeError(w, http.StatusBadRequest, "invalid_hourly_rate")
		return
	}

	worker := models.Worker{
		ID:         uuid.NewString(),
		TenantID:   tenantID(r),
		Name:       req.Name,
		Email:      strings.TrimSpace(req.Email),
		Kind:       req.Kind,
		HourlyRate: req.HourlyRate,
		Active:     true,
	}
	if err := a.db.WithContext(r.Context()).Create(&worker).Error; err != nil {
		a.writeDBError(w, err, "create worker failed")
		return
	}

	a.publishEvent(r, events.EventWorkerCreated, events.Payload{
		"resource_type": "worker",
		"resource_id":   worker.ID,
		"name":          worker.Name,
		"kind":          string(worker.Kind),
	})
	writeJSON(w, http.StatusCreated, worker)
}

func (a *API) handleWorkersGet(w http.ResponseWriter, r *http.Request) {
	var worker models.Worker
	err := a.db.WithContext(r.Context()).
		First(&worker, "id = ? AND tenant_id = ?", chi.URLParam(r, "workerID"), tenantID(r)).Error
	if err != nil {
		a.writeDBError(w, err, "get worker failed")
		return
	}
	writeJSON(w, http.StatusOK, worker)
}

type quoteRequest struct {
	CustomerID *string            `json:"customer_id"`
	JobID      *string            `json:"job_id"`
	Title      string             `json:"title"`
	Status     models.QuoteStatus `json:"status"`
	Amount     *float64           `json:"amount"`
}

func (a *API) handleQuotesList(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	q := a.db.WithContext(r.Context()).Where("tenant_id = ?", tenantID(r))
	if status := r.URL.Query().Get("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var quotes []models.Quote
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&quotes).Error; err != nil {
		a.writeDBError(w, err, "list quotes failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quotes": quotes})
}

func (a *API) handleQuotesCreate(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Status == "" {
		req.Status = models.QuoteDraft
	}
	switch req.Status {
	case models.QuoteDraft, models.QuoteSent, models.QuoteAccepted, models.QuoteDeclined:
	default:
		writeError(w, http.StatusBadRequest, "invalid_status")
		return
	}
	if code := a.checkBillingRefs(r, req.CustomerID, req.JobID); code != "" {
		writeError(w, http.StatusBadRequest, code)
		return
	}

	quote := models.Quote{
		ID:         uuid.NewString(),
		TenantID:   tenantID(r),
		CustomerID: req.CustomerID,
		JobID:      req.JobID,
		Title:      strings.TrimSpace(req.Title),
		Status:     req.Status,
		Amount:     req.Amount,
	}
	if err := a.db.WithContext(r.Context()).Create(&quote).Error; err != nil {
		a.writeDBError(w, err, "create quote failed")
		return
	}

	a.publishEvent(r, events.EventQuoteCreated, events.Payload{
		"resource_type": "quote",
		"resource_id":   quote.ID,
		"status":        string(quote.Status),
	})
	writeJSON(w, http.StatusCreated, quote)
}

type invoiceRequest struct {
	CustomerID *string              `json:"customer_id"`
	JobID      *string              `json:"job_id"`
	Number     string               `json:"number"`
	Status     models.InvoiceStatus `json:"status"`
	Amount     *float64             `json:"amount"`
	DueAt      *time.Time           `json:"due_at"`
}

func (a *API) handleInvoicesList(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	q := a.db.WithContext(r.Context()).Where("tenant_id = ?", tenantID(r))
	if status := r.URL.Query().Get("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var invoices []models.Invoice
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&invoices).Error; err != nil {
		a.writeDBError(w, err, "list invoices failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoices": invoices})
}

func (a *API) handleInvoicesCreate(w http.ResponseWriter, r *http.Request) {
	var req invoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Status == "" {
		req.Status = models.InvoiceDraft
	}
	switch req.Status {
	case models.InvoiceDraft, models.InvoiceSent, models.InvoicePaid, models.InvoiceVoid:
	default:
		writeError(w, http.StatusBadRequest, "invalid_status")
		return
	}
	if code := a.checkBillingRefs(r, req.CustomerID, req.JobID); code != "" {
		writeError(w, http.StatusBadRequest, code)
		return
	}

	tenant := tenantID(r)
	number := strings.TrimSpace(req.Number)
	if number == "" {
		var count int64
		if err := a.db.WithContext(r.Context()).Model(&models.Invoice{}).Where("tenant_id = ?", tenant).Count(&count).Error; err != nil {
			a.writeDBError(w, err, "count invoices failed")
			return
		}
		number = fmt.Sprintf("INV-%05d", count+1)
	}

	invoice := models.Invoice{
		ID:         uuid.NewString(),
		TenantID:   tenant,
		CustomerID: req.CustomerID,
		JobID:      req.JobID,
		Number:     number,
		Status:     req.Status,
		Amount:     req.Amount,
		DueAt:      req.DueAt,
	}
	if err := a.db.WithContext(r.Context()).Create(&invoice).Error; err != nil {
		a.writeDBError(w, err, "create invoice failed")
		return
	}

	a.publishEvent(r, events.EventInvoiceCreated, events.Payload{
		"resource_type": "invoice",
		"resource_id":   invoice.ID,
		"number":        invoice.Number,
		"status":        string(invoice.Status),
	})
	writeJSON(w, http.StatusCreated, invoice)
}

// checkBillingRefs verifies optional customer and job references belong to the
// caller's tenant. It returns an error code, or "" when the references are fine.
func (a *API) checkBillingRefs(r *http.Request, customerID, jobID *string) string {
	tenant := tenantID(r)
	if customerID != nil && *customerID != "" && !a.exists(r, &models.Customer{}, *customerID, tenant) {
		return "customer_not_found"
	}
	if jobID != nil && *jobID != "" && !a.exists(r, &models.Job{}, *jobID, tenant) {
		return "job_not_found"
	}
	return ""
}

func (a *API) exists(r *http.Request, model any, id, tenant string) bool {
	var count int64
	err := a.db.WithContext(r.Context()).Model(model).Where("id = ? AND tenant_id = ?", id, tenant).Count(&count).Error
	return err == nil && count > 0
}
