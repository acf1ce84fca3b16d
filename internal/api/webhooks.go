/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/crewdesk/internal/events"
	"github.com/friendsincode/crewdesk/internal/models"
	"github.com/friendsincode/crewdesk/internal/webhooks"
)

type webhookRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

func (a *API) handleWebhooksList(w http.ResponseWriter, r *http.Request) {
	var targets []models.WebhookTarget
	if err := a.db.WithContext(r.Context()).Where("tenant_id = ?", tenantID(r)).Order("created_at ASC").Find(&targets).Error; err != nil {
		a.writeDBError(w, err, "list webhooks failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"webhooks": targets})
}

func (a *API) handleWebhooksCreate(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := url.Parse(strings.TrimSpace(req.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		writeError(w, http.StatusBadRequest, "invalid_url")
		return
	}
	for _, e := range req.Events {
		if !webhooks.IsDeliverable(strings.TrimSpace(e)) {
			writeError(w, http.StatusBadRequest, "unknown_event")
			return
		}
	}

	target := models.NewWebhookTarget(tenantID(r), u.String(), strings.Join(req.Events, ","))
	if err := a.db.WithContext(r.Context()).Create(target).Error; err != nil {
		a.writeDBError(w, err, "create webhook failed")
		return
	}

	a.publishEvent(r, events.EventWebhookCreated, events.Payload{
		"resource_type": "webhook",
		"resource_id":   target.ID,
		"url":           target.URL,
		"events":        target.Events,
	})

	// The secret is only ever returned here.
	writeJSON(w, http.StatusCreated, map[string]any{
		"webhook": target,
		"secret":  target.Secret,
	})
}

func (a *API) handleWebhooksDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "webhookID")
	res := a.db.WithContext(r.Context()).Where("id = ? AND tenant_id = ?", id, tenantID(r)).Delete(&models.WebhookTarget{})
	if res.Error != nil {
		a.writeDBError(w, res.Error, "delete webhook failed")
		return
	}
	if res.RowsAffected == 0 {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}

	a.publishEvent(r, events.EventWebhookDeleted, events.Payload{
		"resource_type": "webhook",
		"resource_id":   id,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleWebhooksTest(w http.ResponseWriter, r *http.Request) {
	if a.webhooks == nil {
		writeError(w, http.StatusServiceUnavailable, "webhooks_disabled")
		return
	}
	var target models.WebhookTarget
	if err := a.db.WithContext(r.Context()).First(&target, "id = ? AND tenant_id = ?", chi.URLParam(r, "webhookID"), tenantID(r)).Error; err != nil {
		a.writeDBError(w, err, "load webhook failed")
		return
	}
	if err := a.webhooks.Test(r.Context(), &target); err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "delivery_failed", "detail": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "delivered"})
}

func (a *API) handleWebhookLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	var logs []models.WebhookLog
	err := a.db.WithContext(r.Context()).
		Where("target_id = ? AND tenant_id = ?", chi.URLParam(r, "webhookID"), tenantID(r)).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error
	if err != nil {
		a.writeDBError(w, err, "list webhook logs failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}
