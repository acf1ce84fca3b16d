/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/crewdesk/internal/auth"
	"github.com/friendsincode/crewdesk/internal/events"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	TenantID  string    `json:"tenant_id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	WorkerID  string    `json:"worker_id,omitempty"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email_and_password_required")
		return
	}

	user, err := auth.Authenticate(a.db.WithContext(r.Context()), req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	case errors.Is(err, auth.ErrUserSuspended):
		writeError(w, http.StatusForbidden, "user_suspended")
		return
	case err != nil:
		a.logger.Error().Err(err).Msg("login lookup failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	claims := auth.ClaimsForUser(user)
	token, err := auth.Issue(a.jwtSecret, *claims, a.jwtTTL)
	if err != nil {
		a.logger.Error().Err(err).Msg("issue token failed")
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}

	a.logger.Info().Str("tenant_id", user.TenantID).Str("user_id", user.ID).Msg("user logged in")

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: a.now().Add(a.jwtTTL).UTC(),
		TenantID:  user.TenantID,
		UserID:    user.ID,
		Role:      claims.Roles[0],
		WorkerID:  claims.WorkerID,
	})
}

type apiKeyCreateRequest struct {
	Name          string `json:"name"`
	ExpiresInDays int    `json:"expires_in_days"`
}

func (a *API) handleAPIKeysList(w http.ResponseWriter, r *http.Request) {
	keys, err := auth.ListAPIKeys(a.db.WithContext(r.Context()), tenantID(r), userID(r))
	if err != nil {
		a.writeDBError(w, err, "list api keys failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"api_keys": keys})
}

func (a *API) handleAPIKeysCreate(w http.ResponseWriter, r *http.Request) {
	var req apiKeyCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}
	if req.ExpiresInDays < 0 {
		writeError(w, http.StatusBadRequest, "invalid_expiry")
		return
	}

	plaintext, key, err := auth.GenerateAPIKey(tenantID(r), userID(r), req.Name, time.Duration(req.ExpiresInDays)*24*time.Hour)
	if err != nil {
		a.logger.Error().Err(err).Msg("generate api key failed")
		writeError(w, http.StatusInternalServerError, "key_generation_failed")
		return
	}
	if err := a.db.WithContext(r.Context()).Create(key).Error; err != nil {
		a.writeDBError(w, err, "store api key failed")
		return
	}

	a.publishEvent(r, events.EventAPIKeyCreate, events.Payload{
		"resource_type": "api_key",
		"resource_id":   key.ID,
		"name":          key.Name,
		"key_prefix":    key.KeyPrefix,
	})

	// The plaintext key is only ever returned here.
	writeJSON(w, http.StatusCreated, map[string]any{
		"api_key": key,
		"key":     plaintext,
	})
}

func (a *API) handleAPIKeysRevoke(w http.ResponseWriter, r *http.Request) {
	keyID := chi.URLParam(r, "keyID")
	err := auth.RevokeAPIKey(a.db.WithContext(r.Context()), keyID, tenantID(r), userID(r))
	if errors.Is(err, auth.ErrAPIKeyNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		a.writeDBError(w, err, "revoke api key failed")
		return
	}

	a.publishEvent(r, events.EventAPIKeyRevoke, events.Payload{
		"resource_type": "api_key",
		"resource_id":   keyID,
	})
	w.WriteHeader(http.StatusNoContent)
}
