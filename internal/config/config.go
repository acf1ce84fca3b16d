/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// minProductionKeyLen is the shortest JWT signing key accepted in production.
const minProductionKeyLen = 32

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment   string
	HTTPBind      string
	HTTPPort      int
	DBBackend     DatabaseBackend
	DBDSN         string
	JWTSigningKey string
	JWTTTL        time.Duration
	MetricsBind   string

	// DefaultTimezone applies to tenants without their own IANA zone.
	DefaultTimezone string
	DefaultLocation *time.Location

	// Redis-backed dashboard cache
	CacheEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	StatsCacheTTL time.Duration

	// NATS event forwarding, disabled when NATSURL is empty
	NATSURL   string
	NATSToken string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:   getEnv("CREWDESK_ENV", "development"),
		HTTPBind:      getEnv("CREWDESK_HTTP_BIND", "0.0.0.0"),
		HTTPPort:      getEnvInt("CREWDESK_HTTP_PORT", 8080),
		DBBackend:     DatabaseBackend(strings.ToLower(getEnv("CREWDESK_DB_BACKEND", string(DatabasePostgres)))),
		DBDSN:         getEnv("CREWDESK_DB_DSN", ""),
		JWTSigningKey: getEnv("CREWDESK_JWT_SIGNING_KEY", ""),
		JWTTTL:        time.Duration(getEnvInt("CREWDESK_JWT_TTL_MINUTES", 15)) * time.Minute,
		MetricsBind:   getEnv("CREWDESK_METRICS_BIND", ""),

		DefaultTimezone: getEnv("CREWDESK_DEFAULT_TIMEZONE", "UTC"),

		CacheEnabled:  getEnvBoolAny([]string{"CREWDESK_CACHE_ENABLED"}, false),
		RedisAddr:     getEnv("CREWDESK_REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("CREWDESK_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("CREWDESK_REDIS_DB", 0),
		StatsCacheTTL: time.Duration(getEnvInt("CREWDESK_STATS_CACHE_TTL_SECONDS", 60)) * time.Second,

		NATSURL:   getEnv("CREWDESK_NATS_URL", ""),
		NATSToken: getEnv("CREWDESK_NATS_TOKEN", ""),

		TracingEnabled:    getEnvBoolAny([]string{"CREWDESK_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnv("CREWDESK_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"CREWDESK_TRACING_SAMPLE_RATE"}, 1.0),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("CREWDESK_DB_DSN must be provided")
	}

	if cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("CREWDESK_JWT_SIGNING_KEY must be provided")
	}

	if cfg.IsProduction() && len(cfg.JWTSigningKey) < minProductionKeyLen {
		return nil, fmt.Errorf("CREWDESK_JWT_SIGNING_KEY must be at least %d bytes in production", minProductionKeyLen)
	}

	loc, err := time.LoadLocation(cfg.DefaultTimezone)
	if err != nil {
		return nil, fmt.Errorf("CREWDESK_DEFAULT_TIMEZONE %q: %w", cfg.DefaultTimezone, err)
	}
	cfg.DefaultLocation = loc

	if cfg.StatsCacheTTL <= 0 {
		return nil, fmt.Errorf("CREWDESK_STATS_CACHE_TTL_SECONDS must be positive")
	}

	if cfg.TracingSampleRate < 0 || cfg.TracingSampleRate > 1 {
		return nil, fmt.Errorf("CREWDESK_TRACING_SAMPLE_RATE must be between 0 and 1")
	}

	return cfg, nil
}

// IsProduction reports whether the process runs with production safeguards.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// HTTPAddr is the listen address for the API server.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPBind, c.HTTPPort)
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
