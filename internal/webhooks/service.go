/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/crewdesk/internal/events"
	"github.com/friendsincode/crewdesk/internal/models"
	"github.com/friendsincode/crewdesk/internal/telemetry"
)

// Delivery headers.
const (
	HeaderEvent     = "X-CrewDesk-Event"
	HeaderTimestamp = "X-CrewDesk-Timestamp"
	HeaderSignature = "X-CrewDesk-Signature"

	// EventTest is sent by Test and never published on the bus.
	EventTest = "webhook.test"
)

// Deliverable lists the events a target may subscribe to. Credential and
// webhook management events stay internal.
var Deliverable = []events.EventType{
	events.EventJobCreated,
	events.EventJobUpdated,
	events.EventJobAssigned,
	events.EventJobUnassigned,
	events.EventUnavailabilityCreated,
	events.EventUnavailabilityDeleted,
	events.EventQuoteCreated,
	events.EventInvoiceCreated,
	events.EventCustomerCreated,
	events.EventWorkerCreated,
}

// IsDeliverable reports whether name is an event type targets may subscribe to.
func IsDeliverable(name string) bool {
	for _, t := range Deliverable {
		if string(t) == name {
			return true
		}
	}
	return false
}

// Payload is the JSON body sent to webhook endpoints.
type Payload struct {
	Event     string         `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	TenantID  string         `json:"tenant_id"`
	Data      map[string]any `json:"data,omitempty"`
}

// requestKeys are request metadata that never leave the process.
var requestKeys = []string{"tenant_id", "ip_address", "user_agent"}

// Service handles webhook delivery.
type Service struct {
	db     *gorm.DB
	bus    *events.Bus
	logger zerolog.Logger
	client *http.Client

	inflight sync.WaitGroup
}

// NewService creates a new webhook service.
func NewService(db *gorm.DB, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "webhooks").Logger(),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Start delivers deliverable events until ctx is done, then waits for
// in-flight deliveries.
func (s *Service) Start(ctx context.Context) {
	s.logger.Info().Msg("webhook service started")
	for ev := range s.bus.SubscribeAll(ctx, Deliverable...) {
		s.dispatch(ctx, ev)
	}
	s.inflight.Wait()
	s.logger.Info().Msg("webhook service stopped")
}

func (s *Service) dispatch(ctx context.Context, ev events.Event) {
	tenantID := ev.Payload.TenantID()
	if tenantID == "" {
		return
	}

	var targets []models.WebhookTarget
	if err := s.db.WithContext(ctx).Where("tenant_id = ? AND active = ?", tenantID, true).Find(&targets).Error; err != nil {
		s.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("failed to fetch webhooks")
		return
	}

	payload := Payload{
		Event:     string(ev.Type),
		Timestamp: time.Now().UTC(),
		TenantID:  tenantID,
		Data:      make(map[string]any, len(ev.Payload)),
	}
	for k, v := range ev.Payload {
		payload.Data[k] = v
	}
	for _, k := range requestKeys {
		delete(payload.Data, k)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error().Err(err).Str("event", payload.Event).Msg("failed to marshal webhook payload")
		return
	}

	// Deliveries outlive the request that caused them and finish during shutdown.
	deliverCtx := context.WithoutCancel(ctx)
	for _, target := range targets {
		if !target.Handles(payload.Event) {
			continue
		}
		s.inflight.Add(1)
		go func(target models.WebhookTarget) {
			defer s.inflight.Done()
			_ = s.deliver(deliverCtx, target, payload.Event, body)
		}(target)
	}
}

// Test sends a sample payload to target and records the attempt.
func (s *Service) Test(ctx context.Context, target *models.WebhookTarget) error {
	body, err := json.Marshal(Payload{
		Event:     EventTest,
		Timestamp: time.Now().UTC(),
		TenantID:  target.TenantID,
		Data:      map[string]any{"message": "This is a test webhook delivery"},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	return s.deliver(ctx, *target, EventTest, body)
}

// deliver posts body to target and records the attempt.
func (s *Service) deliver(ctx context.Context, target models.WebhookTarget, event string, body []byte) error {
	began := time.Now()
	status, err := s.send(ctx, target, event, body)
	elapsed := time.Since(began)

	result := "ok"
	switch {
	case err != nil && status == 0:
		result = "failed"
		s.logger.Error().Err(err).Str("webhook", target.ID).Str("url", target.URL).Msg("webhook delivery failed")
	case err != nil:
		result = "http_error"
		s.logger.Warn().Str("webhook", target.ID).Str("event", event).Int("status", status).Msg("webhook returned error status")
	default:
		s.logger.Debug().Str("webhook", target.ID).Str("event", event).Int("status", status).Msg("webhook delivered")
	}
	telemetry.WebhookDeliveriesTotal.WithLabelValues(result).Inc()

	s.logDelivery(ctx, target, event, status, err, elapsed)
	return err
}

func (s *Service) send(ctx context.Context, target models.WebhookTarget, event string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "CrewDesk-Webhook/1.0")
	req.Header.Set(HeaderEvent, event)
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(time.Now().Unix(), 10))
	if target.Secret != "" {
		req.Header.Set(HeaderSignature, Sign(body, target.Secret))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// Sign creates the HMAC-SHA256 signature sent in HeaderSignature.
func Sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}

func (s *Service) logDelivery(ctx context.Context, target models.WebhookTarget, event string, status int, deliveryErr error, elapsed time.Duration) {
	entry := &models.WebhookLog{
		ID:         uuid.NewString(),
		TenantID:   target.TenantID,
		TargetID:   target.ID,
		Event:      event,
		StatusCode: status,
		Duration:   int(elapsed.Milliseconds()),
	}
	if deliveryErr != nil {
		entry.Error = deliveryErr.Error()
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		s.logger.Error().Err(err).Msg("failed to log webhook delivery")
	}
}
