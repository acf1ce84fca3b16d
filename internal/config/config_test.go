/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("CREWDESK_DB_DSN", "host=localhost user=test dbname=test sslmode=disable")
	t.Setenv("CREWDESK_JWT_SIGNING_KEY", "supersecret")
}

func TestLoadReadsCriticalEnvKeys(t *testing.T) {
	setRequired(t)
	t.Setenv("CREWDESK_ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBDSN == "" {
		t.Fatal("expected DB DSN to be set")
	}
	if cfg.JWTSigningKey != "supersecret" {
		t.Fatalf("unexpected jwt signing key: %q", cfg.JWTSigningKey)
	}
	if cfg.DBBackend != DatabasePostgres {
		t.Fatalf("default backend = %q", cfg.DBBackend)
	}
	if cfg.StatsCacheTTL != 60*time.Second {
		t.Fatalf("default stats ttl = %s", cfg.StatsCacheTTL)
	}
	if cfg.DefaultLocation != time.UTC {
		t.Fatalf("default location = %v", cfg.DefaultLocation)
	}
	if cfg.HTTPAddr() != "0.0.0.0:8080" {
		t.Fatalf("http addr = %q", cfg.HTTPAddr())
	}
}

func TestLoadRejectsMissingValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing dsn", map[string]string{"CREWDESK_DB_DSN": "", "CREWDESK_JWT_SIGNING_KEY": "k"}},
		{"missing key", map[string]string{"CREWDESK_DB_DSN": "x", "CREWDESK_JWT_SIGNING_KEY": ""}},
		{"bad backend", map[string]string{"CREWDESK_DB_DSN": "x", "CREWDESK_JWT_SIGNING_KEY": "k", "CREWDESK_DB_BACKEND": "oracle"}},
		{"bad timezone", map[string]string{"CREWDESK_DB_DSN": "x", "CREWDESK_JWT_SIGNING_KEY": "k", "CREWDESK_DEFAULT_TIMEZONE": "Mars/Olympus"}},
		{"bad sample rate", map[string]string{"CREWDESK_DB_DSN": "x", "CREWDESK_JWT_SIGNING_KEY": "k", "CREWDESK_TRACING_SAMPLE_RATE": "2"}},
		{"zero cache ttl", map[string]string{"CREWDESK_DB_DSN": "x", "CREWDESK_JWT_SIGNING_KEY": "k", "CREWDESK_STATS_CACHE_TTL_SECONDS": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadProductionRequiresLongSigningKey(t *testing.T) {
	setRequired(t)
	t.Setenv("CREWDESK_ENV", "production")

	if _, err := Load(); err == nil {
		t.Fatal("expected production config load to fail with a short signing key")
	}

	t.Setenv("CREWDESK_JWT_SIGNING_KEY", "0123456789abcdef0123456789abcdef")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected production config load with long key to succeed: %v", err)
	}
	if !cfg.IsProduction() {
		t.Fatal("expected IsProduction")
	}
}

func TestLoadOptionalServices(t *testing.T) {
	setRequired(t)
	t.Setenv("CREWDESK_DB_BACKEND", "SQLite")
	t.Setenv("CREWDESK_CACHE_ENABLED", "yes")
	t.Setenv("CREWDESK_REDIS_DB", "3")
	t.Setenv("CREWDESK_NATS_URL", "nats://localhost:4222")
	t.Setenv("CREWDESK_TRACING_ENABLED", "1")
	t.Setenv("CREWDESK_TRACING_SAMPLE_RATE", "0.25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBBackend != DatabaseSQLite || !cfg.CacheEnabled || cfg.RedisDB != 3 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.NATSURL == "" || !cfg.TracingEnabled || cfg.TracingSampleRate != 0.25 {
		t.Fatalf("unexpected config %+v", cfg)
	}
}
