/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package cache

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/friendsincode/crewdesk/internal/events"
)

// tenantInvalidator drops every cached entry for a tenant.
type tenantInvalidator interface {
	InvalidateTenant(ctx context.Context, tenantID string) error
}

// Invalidator clears a tenant's dashboard cache whenever one of its
// records changes.
type Invalidator struct {
	target tenantInvalidator
	bus    *events.Bus
	logger zerolog.Logger
}

// NewInvalidator returns an invalidator for c. A nil cache yields a no-op.
func NewInvalidator(c *Cache, bus *events.Bus, logger zerolog.Logger) *Invalidator {
	inv := &Invalidator{bus: bus, logger: logger.With().Str("component", "cache_invalidator").Logger()}
	if c.IsAvailable() {
		inv.target = c
	}
	return inv
}

// Run listens for write events until ctx is done.
func (inv *Invalidator) Run(ctx context.Context) {
	if inv.target == nil {
		return
	}
	inv.logger.Info().Msg("cache invalidation listener started")
	for ev := range inv.bus.SubscribeAll(ctx, events.WriteEvents...) {
		tenantID := ev.Payload.TenantID()
		if tenantID == "" {
			continue
		}
		inv.logger.Debug().Str("tenant_id", tenantID).Str("event", string(ev.Type)).Msg("invalidating tenant cache")
		if err := inv.target.InvalidateTenant(ctx, tenantID); err != nil {
			inv.logger.Warn().Err(err).Str("tenant_id", tenantID).Msg("cache invalidation failed")
		}
	}
	inv.logger.Info().Msg("cache invalidation listener stopped")
}
