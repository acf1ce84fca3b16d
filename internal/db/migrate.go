/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/friendsincode/crewdesk/internal/models"
)

// Models lists every persisted model in dependency order.
func Models() []any {
	return []any{
		// Tenant-level models
		&models.Tenant{},
		&models.User{},
		&models.APIKey{},
		&models.AuditLog{},

		// Customers and their sites
		&models.Customer{},
		&models.Site{},

		// Workforce
		&models.Worker{},
		&models.WorkerUnavailability{},

		// Jobs
		&models.Job{},
		&models.JobAssignment{},

		// Billing
		&models.Quote{},
		&models.Invoice{},

		// Integrations
		&models.WebhookTarget{},
		&models.WebhookLog{},
	}
}

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(Models()...); err != nil {
		return err
	}

	if err := applyPostgresSpanGuards(database); err != nil {
		return err
	}
	if err := normalizeLegacyRoles(database); err != nil {
		return err
	}

	return nil
}

// applyPostgresSpanGuards rejects rows whose end precedes their start. Unscheduled
// jobs (either bound null) pass.
func applyPostgresSpanGuards(database *gorm.DB) error {
	if database.Dialector.Name() != "postgres" {
		return nil
	}

	stmt := `
CREATE OR REPLACE FUNCTION crewdesk_check_job_span()
RETURNS trigger
LANGUAGE plpgsql
AS $$
BEGIN
  IF NEW.scheduled_start IS NOT NULL AND NEW.scheduled_end IS NOT NULL
     AND NEW.scheduled_end < NEW.scheduled_start THEN
    RAISE EXCEPTION 'job % ends before it starts', NEW.id
      USING ERRCODE = '23514';
  END IF;
  RETURN NEW;
END;
$$;

DROP TRIGGER IF EXISTS trg_crewdesk_check_job_span ON jobs;

CREATE TRIGGER trg_crewdesk_check_job_span
BEFORE INSERT OR UPDATE OF scheduled_start, scheduled_end
ON jobs
FOR EACH ROW
EXECUTE FUNCTION crewdesk_check_job_span();

CREATE OR REPLACE FUNCTION crewdesk_check_unavailability_span()
RETURNS trigger
LANGUAGE plpgsql
AS $$
BEGIN
  IF NEW.end_date < NEW.start_date THEN
    RAISE EXCEPTION 'unavailability % ends before it starts', NEW.id
      USING ERRCODE = '23514';
  END IF;
  RETURN NEW;
END;
$$;

DROP TRIGGER IF EXISTS trg_crewdesk_check_unavailability_span ON worker_unavailability;

CREATE TRIGGER trg_crewdesk_check_unavailability_span
BEFORE INSERT OR UPDATE OF start_date, end_date
ON worker_unavailability
FOR EACH ROW
EXECUTE FUNCTION crewdesk_check_unavailability_span();
`
	if err := database.Exec(stmt).Error; err != nil {
		return fmt.Errorf("apply postgres span guards: %w", err)
	}

	return nil
}

// normalizeLegacyRoles rewrites role spellings from older imports onto the current set.
func normalizeLegacyRoles(database *gorm.DB) error {
	if err := database.Exec("UPDATE users SET role = ? WHERE LOWER(TRIM(role)) IN ?", models.RoleScheduler, []string{"dispatcher", "dispatch"}).Error; err != nil {
		return fmt.Errorf("normalize legacy scheduler role: %w", err)
	}
	if err := database.Exec("UPDATE users SET role = ? WHERE LOWER(TRIM(role)) IN ?", models.RoleWorker, []string{"tech", "technician", "contractor"}).Error; err != nil {
		return fmt.Errorf("normalize legacy worker role: %w", err)
	}
	return nil
}
