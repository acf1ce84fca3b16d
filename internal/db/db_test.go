/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"testing"

	"github.com/friendsincode/crewdesk/internal/config"
	"github.com/friendsincode/crewdesk/internal/models"
)

func TestConnectAndMigrateSQLite(t *testing.T) {
	cfg := &config.Config{Environment: "production", DBBackend: config.DatabaseSQLite, DBDSN: ":memory:"}

	database, err := Connect(cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer Close(database)

	if err := Migrate(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for _, m := range Models() {
		if !database.Migrator().HasTable(m) {
			t.Fatalf("missing table for %T", m)
		}
	}

	// Migrate is idempotent.
	if err := Migrate(database); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestMigrateNormalizesLegacyRoles(t *testing.T) {
	cfg := &config.Config{Environment: "production", DBBackend: config.DatabaseSQLite, DBDSN: ":memory:"}
	database, err := Connect(cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer Close(database)

	if err := Migrate(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	users := []models.User{
		{ID: "u1", TenantID: "t1", Email: "a@example.com", Role: "Dispatcher"},
		{ID: "u2", TenantID: "t1", Email: "b@example.com", Role: "technician"},
		{ID: "u3", TenantID: "t1", Email: "c@example.com", Role: models.RoleOwner},
	}
	if err := database.Create(&users).Error; err != nil {
		t.Fatalf("seed users: %v", err)
	}
	if err := Migrate(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	want := map[string]models.RoleName{"u1": models.RoleScheduler, "u2": models.RoleWorker, "u3": models.RoleOwner}
	for id, role := range want {
		var u models.User
		if err := database.First(&u, "id = ?", id).Error; err != nil {
			t.Fatalf("load %s: %v", id, err)
		}
		if u.Role != role {
			t.Errorf("user %s role = %q, want %q", id, u.Role, role)
		}
	}
}

func TestConnectRejectsUnknownBackend(t *testing.T) {
	if _, err := Connect(&config.Config{DBBackend: "oracle", DBDSN: "x"}); err == nil {
		t.Fatal("expected error")
	}
}
