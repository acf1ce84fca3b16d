/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/friendsincode/crewdesk/internal/events"
	"github.com/friendsincode/crewdesk/internal/models"
)

type received struct {
	event     string
	signature string
	body      []byte
}

type recorder struct {
	mu     sync.Mutex
	status int
	calls  []received
}

func (rec *recorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	rec.mu.Lock()
	rec.calls = append(rec.calls, received{
		event:     r.Header.Get(HeaderEvent),
		signature: r.Header.Get(HeaderSignature),
		body:      body,
	})
	status := rec.status
	rec.mu.Unlock()
	if status == 0 {
		status = http.StatusNoContent
	}
	w.WriteHeader(status)
}

func (rec *recorder) snapshot() []received {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]received(nil), rec.calls...)
}

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
	if err := db.AutoMigrate(&models.WebhookTarget{}, &models.WebhookLog{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestDeliversSubscribedEvents(t *testing.T) {
	db := newTestDB(t)
	rec := &recorder{}
	endpoint := httptest.NewServer(rec)
	defer endpoint.Close()

	assigned := models.NewWebhookTarget("t1", endpoint.URL, "job.assigned")
	everything := models.NewWebhookTarget("t1", endpoint.URL, "")
	otherTenant := models.NewWebhookTarget("t2", endpoint.URL, "")
	for _, target := range []*models.WebhookTarget{assigned, everything, otherTenant} {
		if err := db.Create(target).Error; err != nil {
			t.Fatalf("create target: %v", err)
		}
	}

	bus := events.NewBus()
	svc := NewService(db, bus, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Start(ctx)
		close(done)
	}()

	// SubscribeAll registers asynchronously; republish until the first delivery lands.
	deadline := time.Now().Add(2 * time.Second)
	for len(rec.snapshot()) == 0 && time.Now().Before(deadline) {
		bus.Publish(events.EventJobCreated, events.Payload{"tenant_id": "t1", "resource_id": "job-0"})
		time.Sleep(20 * time.Millisecond)
	}
	if len(rec.snapshot()) == 0 {
		t.Fatal("no deliveries")
	}

	bus.Publish(events.EventJobAssigned, events.Payload{
		"tenant_id":   "t1",
		"ip_address":  "10.0.0.1",
		"resource_id": "assign-1",
	})

	var calls []received
	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		calls = nil
		for _, c := range rec.snapshot() {
			if c.event == string(events.EventJobAssigned) {
				calls = append(calls, c)
			}
		}
		if len(calls) == 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(calls) != 2 {
		t.Fatalf("job.assigned deliveries = %d, want 2", len(calls))
	}

	for _, c := range calls {
		var p Payload
		if err := json.Unmarshal(c.body, &p); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if p.TenantID != "t1" || p.Data["resource_id"] != "assign-1" {
			t.Fatalf("payload = %+v", p)
		}
		if _, leaked := p.Data["ip_address"]; leaked {
			t.Fatal("request metadata leaked into webhook payload")
		}
		if c.signature != Sign(c.body, assigned.Secret) && c.signature != Sign(c.body, everything.Secret) {
			t.Fatalf("signature %q matches neither target", c.signature)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}

	var logged int64
	db.Model(&models.WebhookLog{}).Where("tenant_id = ?", "t2").Count(&logged)
	if logged != 0 {
		t.Fatalf("other tenant received %d deliveries", logged)
	}
}

func TestTestDeliveryRecordsFailure(t *testing.T) {
	db := newTestDB(t)
	rec := &recorder{status: http.StatusInternalServerError}
	endpoint := httptest.NewServer(rec)
	defer endpoint.Close()

	target := models.NewWebhookTarget("t1", endpoint.URL, "")
	if err := db.Create(target).Error; err != nil {
		t.Fatalf("create target: %v", err)
	}

	svc := NewService(db, events.NewBus(), zerolog.Nop())
	if err := svc.Test(context.Background(), target); err == nil {
		t.Fatal("expected error for 500 response")
	}

	var entry models.WebhookLog
	if err := db.First(&entry, "target_id = ?", target.ID).Error; err != nil {
		t.Fatalf("load log: %v", err)
	}
	if entry.StatusCode != http.StatusInternalServerError || entry.Event != EventTest || entry.Error == "" {
		t.Fatalf("log = %+v", entry)
	}
}

func TestHandles(t *testing.T) {
	tests := []struct {
		events string
		event  string
		want   bool
	}{
		{"", "job.created", true},
		{"job.created, job.assigned", "job.assigned", true},
		{"job.created", "job.assigned", false},
	}
	for _, tt := range tests {
		target := models.WebhookTarget{Events: tt.events}
		if got := target.Handles(tt.event); got != tt.want {
			t.Errorf("Handles(%q) with %q = %v, want %v", tt.event, tt.events, got, tt.want)
		}
	}
}

func TestIsDeliverable(t *testing.T) {
	if !IsDeliverable("job.assigned") {
		t.Fatal("job.assigned should be deliverable")
	}
	if IsDeliverable("apikey.create") {
		t.Fatal("apikey.create must stay internal")
	}
}
