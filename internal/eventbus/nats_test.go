/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/friendsincode/crewdesk/internal/events"
	"github.com/friendsincode/crewdesk/internal/telemetry"
)

type fakePublisher struct {
	mu   sync.Mutex
	msgs map[string][][]byte
	err  error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	if p.msgs == nil {
		p.msgs = make(map[string][][]byte)
	}
	p.msgs[subject] = append(p.msgs[subject], data)
	return nil
}

func (p *fakePublisher) count(subject string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs[subject])
}

func TestMarshalNATSMessageRoundTrip(t *testing.T) {
	data, err := marshalNATSMessage(events.EventJobAssigned, events.Payload{"tenant_id": "t1", "resource_id": "j1"}, "node-a")
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	msg, err := unmarshalNATSMessage(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.EventType != events.EventJobAssigned || msg.TenantID != "t1" || msg.NodeID != "node-a" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.MessageID == "" {
		t.Fatal("expected message id")
	}
	if msg.Payload["resource_id"] != "j1" {
		t.Fatalf("payload = %v", msg.Payload)
	}
}

func TestUnmarshalNATSMessageInvalid(t *testing.T) {
	if _, err := unmarshalNATSMessage([]byte("{")); err == nil {
		t.Fatal("expected error")
	}
}

func TestSubject(t *testing.T) {
	if got := Subject(events.EventInvoiceCreated); got != "crewdesk.events.invoice.created" {
		t.Fatalf("Subject = %q", got)
	}
}

func TestGenerateNodeID(t *testing.T) {
	a, b := generateNodeID(), generateNodeID()
	if a == b {
		t.Fatal("node ids should differ")
	}
	if !strings.Contains(a, "-") {
		t.Fatalf("node id %q missing suffix", a)
	}
}

func TestForwarderRun(t *testing.T) {
	bus := events.NewBus()
	pub := &fakePublisher{}
	f := newForwarder(pub, bus, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.Run(ctx)
		close(done)
	}()

	subject := Subject(events.EventCustomerCreated)
	deadline := time.Now().Add(2 * time.Second)
	for pub.count(subject) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("event not forwarded")
		}
		bus.Publish(events.EventCustomerCreated, events.Payload{"tenant_id": "t1"})
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("forwarder did not stop")
	}

	if err := f.Close(); err != nil {
		t.Fatalf("close without connection: %v", err)
	}
}

func TestForwardCountsErrors(t *testing.T) {
	pub := &fakePublisher{err: errors.New("nats down")}
	f := newForwarder(pub, events.NewBus(), zerolog.Nop())

	counter := telemetry.EventForwardErrorsTotal.WithLabelValues(string(events.EventQuoteCreated))
	before := testutil.ToFloat64(counter)
	f.forward(events.Event{Type: events.EventQuoteCreated, Payload: events.Payload{"tenant_id": "t1"}})
	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Fatalf("errors = %v, want %v", got, before+1)
	}
}
