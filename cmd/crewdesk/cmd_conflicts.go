/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/crewdesk/internal/db"
	"github.com/friendsincode/crewdesk/internal/period"
	"github.com/friendsincode/crewdesk/internal/scheduling"
)

var (
	conflictsTenant string
	conflictsPeriod string
	conflictsJSON   bool
)

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "List assignments that fall on a worker's unavailable dates",
	Long: `List every assignment in a tenant whose job lands on a day the assigned
worker marked as unavailable.

Examples:
  crewdesk conflicts --tenant 6a1f0c1e-0000-4000-8000-000000000001
  crewdesk conflicts --tenant 6a1f0c1e-0000-4000-8000-000000000001 --period all --json
`,
	RunE: runConflicts,
}

func init() {
	conflictsCmd.Flags().StringVar(&conflictsTenant, "tenant", "", "Tenant ID (required)")
	conflictsCmd.Flags().StringVar(&conflictsPeriod, "period", "month", "Reporting period")
	conflictsCmd.Flags().BoolVar(&conflictsJSON, "json", false, "Print JSON instead of a table")
	_ = conflictsCmd.MarkFlagRequired("tenant")
	rootCmd.AddCommand(conflictsCmd)
}

func runConflicts(cmd *cobra.Command, args []string) error {
	p, err := period.Parse(conflictsPeriod)
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

	sched := scheduling.NewService(database, cfg.DefaultLocation, logger)
	loc := sched.Location(cmd.Context(), conflictsTenant)
	conflicts, err := sched.TenantConflicts(cmd.Context(), conflictsTenant, period.Resolve(p, time.Now().In(loc)))
	if err != nil {
		return fmt.Errorf("load conflicts: %w", err)
	}

	out := cmd.OutOrStdout()
	if conflictsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(conflicts)
	}

	if len(conflicts) == 0 {
		fmt.Fprintf(out, "No conflicts (%s).\n", p)
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "START\tEND\tWORKER\tJOB\tASSIGNMENT")
	for _, ev := range conflicts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			formatLocal(ev.Start, loc), formatLocal(ev.End, loc), ev.WorkerID, ev.Title, ev.AssignmentID)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d conflict(s) in %s.\n", len(conflicts), p)
	return nil
}

func formatLocal(t *time.Time, loc *time.Location) string {
	if t == nil {
		return "-"
	}
	return t.In(loc).Format("2006-01-02 15:04")
}
