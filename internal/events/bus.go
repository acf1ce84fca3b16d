/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import (
	"context"
	"sync"
)

// EventType enumerates event categories.
type EventType string

const (
	EventJobCreated            EventType = "job.created"
	EventJobUpdated            EventType = "job.updated"
	EventJobAssigned           EventType = "job.assigned"
	EventJobUnassigned         EventType = "job.unassigned"
	EventUnavailabilityCreated EventType = "unavailability.created"
	EventUnavailabilityDeleted EventType = "unavailability.deleted"
	EventQuoteCreated          EventType = "quote.created"
	EventInvoiceCreated        EventType = "invoice.created"
	EventCustomerCreated       EventType = "customer.created"
	EventWorkerCreated         EventType = "worker.created"
	EventAPIKeyCreate          EventType = "apikey.create"
	EventAPIKeyRevoke          EventType = "apikey.revoke"
	EventWebhookCreated        EventType = "webhook.created"
	EventWebhookDeleted        EventType = "webhook.deleted"
)

// WriteEvents lists every event emitted by a tenant write.
var WriteEvents = []EventType{
	EventJobCreated,
	EventJobUpdated,
	EventJobAssigned,
	EventJobUnassigned,
	EventUnavailabilityCreated,
	EventUnavailabilityDeleted,
	EventQuoteCreated,
	EventInvoiceCreated,
	EventCustomerCreated,
	EventWorkerCreated,
	EventAPIKeyCreate,
	EventAPIKeyRevoke,
	EventWebhookCreated,
	EventWebhookDeleted,
}

// Payload generic event payload.
type Payload map[string]any

// TenantID returns the tenant_id key of the payload, if any.
func (p Payload) TenantID() string {
	s, _ := p["tenant_id"].(string)
	return s
}

// Subscriber receives event payloads.
type Subscriber chan Payload

// Event pairs a payload with its type for merged subscriptions.
type Event struct {
	Type    EventType
	Payload Payload
}

// Bus implements a simple in-process pubsub.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 8)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers. Full subscribers miss the event.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	// Sends happen under the read lock so Unsubscribe cannot close a
	// channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs[eventType] {
		select {
		case sub <- payload:
		default:
		}
	}
}

// Unsubscribe removes the subscriber.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			subs = append(subs[:i], subs[i+1:]...)
			close(sub)
			break
		}
	}
	b.subs[eventType] = subs
}

// SubscribeAll merges subscriptions for several event types into one
// channel. The channel is closed once ctx is done and every subscription
// has been released.
func (b *Bus) SubscribeAll(ctx context.Context, types ...EventType) <-chan Event {
	out := make(chan Event, 32)
	subs := make([]Subscriber, len(types))
	for i, t := range types {
		subs[i] = b.Subscribe(t)
	}

	var wg sync.WaitGroup
	for i, t := range types {
		wg.Add(1)
		go func(t EventType, sub Subscriber) {
			defer wg.Done()
			for payload := range sub {
				select {
				case out <- Event{Type: t, Payload: payload}:
				case <-ctx.Done():
				}
			}
		}(t, subs[i])
	}

	go func() {
		<-ctx.Done()
		for i, t := range types {
			b.Unsubscribe(t, subs[i])
		}
		wg.Wait()
		close(out)
	}()

	return out
}
