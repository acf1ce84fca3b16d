/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/friendsincode/crewdesk/internal/events"
	"github.com/friendsincode/crewdesk/internal/telemetry"
)

// SubjectPrefix prefixes every forwarded subject: crewdesk.events.<type>.
const SubjectPrefix = "crewdesk.events."

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL   string
	Token string
	Name  string

	// Connection options
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Name:          "crewdesk",
		MaxReconnects: -1, // Unlimited
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// publisher is the subset of *nats.Conn the forwarder needs.
type publisher interface {
	Publish(subject string, data []byte) error
}

// Forwarder republishes in-process bus events onto NATS so other
// services can follow tenant activity.
type Forwarder struct {
	bus    *events.Bus
	pub    publisher
	conn   *nats.Conn
	nodeID string
	logger zerolog.Logger
}

// NewForwarder connects to NATS and returns a forwarder for bus.
func NewForwarder(cfg NATSConfig, bus *events.Bus, logger zerolog.Logger) (*Forwarder, error) {
	logger = logger.With().Str("component", "nats_forwarder").Logger()

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	f := newForwarder(conn, bus, logger)
	f.conn = conn
	return f, nil
}

func newForwarder(pub publisher, bus *events.Bus, logger zerolog.Logger) *Forwarder {
	return &Forwarder{
		bus:    bus,
		pub:    pub,
		nodeID: generateNodeID(),
		logger: logger,
	}
}

// Run forwards every write event until ctx is done.
func (f *Forwarder) Run(ctx context.Context) {
	f.logger.Info().Str("node_id", f.nodeID).Msg("nats forwarder started")
	for ev := range f.bus.SubscribeAll(ctx, events.WriteEvents...) {
		f.forward(ev)
	}
	f.logger.Info().Msg("nats forwarder stopped")
}

func (f *Forwarder) forward(ev events.Event) {
	label := string(ev.Type)
	data, err := marshalNATSMessage(ev.Type, ev.Payload, f.nodeID)
	if err != nil {
		telemetry.EventForwardErrorsTotal.WithLabelValues(label).Inc()
		f.logger.Error().Err(err).Str("type", label).Msg("marshal event")
		return
	}
	if err := f.pub.Publish(Subject(ev.Type), data); err != nil {
		telemetry.EventForwardErrorsTotal.WithLabelValues(label).Inc()
		f.logger.Warn().Err(err).Str("type", label).Msg("publish event")
		return
	}
	telemetry.EventsForwardedTotal.WithLabelValues(label).Inc()
}

// Close drains pending messages and closes the NATS connection.
func (f *Forwarder) Close() error {
	if f.conn == nil {
		return nil
	}
	return f.conn.Drain()
}

// Subject returns the NATS subject for an event type.
func Subject(t events.EventType) string {
	return SubjectPrefix + string(t)
}

// natsMessage represents a message published to NATS.
type natsMessage struct {
	EventType events.EventType `json:"event_type"`
	TenantID  string           `json:"tenant_id"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"` // For deduplication
}

// marshalNATSMessage converts payload to NATS message format.
func marshalNATSMessage(eventType events.EventType, payload events.Payload, nodeID string) ([]byte, error) {
	msg := natsMessage{
		EventType: eventType,
		TenantID:  payload.TenantID(),
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		NodeID:    nodeID,
		MessageID: uuid.NewString(),
	}
	return json.Marshal(msg)
}

// unmarshalNATSMessage parses a NATS message.
func unmarshalNATSMessage(data []byte) (*natsMessage, error) {
	var msg natsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal nats message: %w", err)
	}
	return &msg, nil
}

func generateNodeID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "crewdesk"
	}
	return host + "-" + uuid.NewString()[:8]
}
