/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/crewdesk/internal/analytics"
	"github.com/friendsincode/crewdesk/internal/db"
	"github.com/friendsincode/crewdesk/internal/period"
)

var (
	statsTenant string
	statsPeriod string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print a tenant's dashboard rollup as JSON",
	Long: `Compute the dashboard rollup for one tenant and print it as JSON.

Periods: today, week, month, year, all.

Example:
  crewdesk stats --tenant 6a1f0c1e-0000-4000-8000-000000000001 --period week
`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsTenant, "tenant", "", "Tenant ID (required)")
	statsCmd.Flags().StringVar(&statsPeriod, "period", "week", "Reporting period")
	_ = statsCmd.MarkFlagRequired("tenant")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	p, err := period.Parse(statsPeriod)
	if err != nil {
		return err
	}
	if err := loadConfig(); err != nil {
		return err
	}

	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close(database)

	// No cache: the CLI always reads through to the database.
	dashboard := analytics.NewDashboardService(database, nil, cfg.DefaultLocation, logger)
	stats, err := dashboard.Stats(cmd.Context(), statsTenant, p, time.Now())
	if err != nil {
		return fmt.Errorf("compute stats: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}
