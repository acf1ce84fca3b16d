/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/friendsincode/crewdesk/internal/models"
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
	if err := db.AutoMigrate(&models.User{}, &models.APIKey{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, id string, role models.RoleName, suspended bool) *models.User {
	t.Helper()
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	worker := "w-" + id
	u := &models.User{ID: id, TenantID: "t1", Email: id + "@example.com", PasswordHash: hash, Role: role, WorkerID: &worker, Suspended: suspended}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestAPIKeyLifecycle(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, "u1", models.RoleScheduler, false)

	plaintext, key, err := GenerateAPIKey("t1", "u1", "zapier", 0)
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}
	if !strings.HasPrefix(plaintext, APIKeyPrefix) || key.KeyPrefix != plaintext[:11] {
		t.Fatalf("unexpected key %q prefix %q", plaintext, key.KeyPrefix)
	}
	if key.KeyHash == plaintext {
		t.Fatal("key stored in plaintext")
	}
	if err := db.Create(key).Error; err != nil {
		t.Fatalf("store key: %v", err)
	}

	claims, err := ValidateAPIKey(db, plaintext)
	if err != nil {
		t.Fatalf("ValidateAPIKey: %v", err)
	}
	if claims.UserID != "u1" || claims.TenantID != "t1" || claims.WorkerID != "w-u1" || !claims.HasRole("scheduler") {
		t.Fatalf("unexpected claims %+v", claims)
	}

	var stored models.APIKey
	if err := db.First(&stored, "id = ?", key.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.LastUsedAt == nil {
		t.Fatal("expected last_used_at to be set")
	}

	keys, err := ListAPIKeys(db, "t1", "u1")
	if err != nil || len(keys) != 1 {
		t.Fatalf("ListAPIKeys = %v, %v", keys, err)
	}

	if err := RevokeAPIKey(db, key.ID, "t1", "someone-else"); !errors.Is(err, ErrAPIKeyNotFound) {
		t.Fatalf("revoke by other user err = %v", err)
	}
	if err := RevokeAPIKey(db, key.ID, "t1", "u1"); err != nil {
		t.Fatalf("RevokeAPIKey: %v", err)
	}
	if _, err := ValidateAPIKey(db, plaintext); !errors.Is(err, ErrAPIKeyRevoked) {
		t.Fatalf("expected ErrAPIKeyRevoked, got %v", err)
	}
	if err := RevokeAPIKey(db, key.ID, "t1", "u1"); !errors.Is(err, ErrAPIKeyNotFound) {
		t.Fatalf("second revoke err = %v", err)
	}
}

func TestValidateAPIKeyRejects(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, "u1", models.RoleAdmin, false)
	seedUser(t, db, "u2", models.RoleAdmin, true)

	expiredPlain, expired, err := GenerateAPIKey("t1", "u1", "old", time.Hour)
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	suspendedPlain, suspended, err := GenerateAPIKey("t1", "u2", "suspended", time.Hour)
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}
	orphanPlain, orphan, err := GenerateAPIKey("t1", "ghost", "orphan", time.Hour)
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}
	for _, k := range []*models.APIKey{expired, suspended, orphan} {
		if err := db.Create(k).Error; err != nil {
			t.Fatalf("store key: %v", err)
		}
	}

	tests := []struct {
		name string
		key  string
		want error
	}{
		{"unknown", APIKeyPrefix + "deadbeef", ErrAPIKeyNotFound},
		{"expired", expiredPlain, ErrAPIKeyExpired},
		{"suspended user", suspendedPlain, ErrUserSuspended},
		{"missing user", orphanPlain, ErrUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ValidateAPIKey(db, tt.key); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMiddlewareAcceptsAPIKey(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, "u1", models.RoleOwner, false)
	plaintext, key, err := GenerateAPIKey("t1", "u1", "ci", time.Hour)
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}
	if err := db.Create(key).Error; err != nil {
		t.Fatalf("store key: %v", err)
	}

	var seen *Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	req.Header.Set("X-API-Key", plaintext)
	rr := httptest.NewRecorder()
	Middleware(db)(next).ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent || seen == nil || seen.TenantID != "t1" {
		t.Fatalf("code=%d claims=%+v", rr.Code, seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	req.Header.Set("X-API-Key", "cd_wrong")
	rr = httptest.NewRecorder()
	Middleware(db)(next).ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestAuthenticate(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, "u1", models.RoleOwner, false)
	seedUser(t, db, "u2", models.RoleOwner, true)

	user, err := Authenticate(db, "  U1@example.com ", "correct horse")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if user.ID != "u1" {
		t.Fatalf("user = %s", user.ID)
	}

	if _, err := Authenticate(db, "u1@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password err = %v", err)
	}
	if _, err := Authenticate(db, "nobody@example.com", "correct horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email err = %v", err)
	}
	if _, err := Authenticate(db, "u2@example.com", "correct horse"); !errors.Is(err, ErrUserSuspended) {
		t.Fatalf("suspended err = %v", err)
	}
}
