/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/friendsincode/crewdesk/internal/db"
	"github.com/friendsincode/crewdesk/internal/seed"
)

var (
	seedFile   string
	seedDryRun bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load tenants and records from a YAML file",
	Long: `Load tenants, users, customers, sites, workers, jobs, assignments,
unavailability, quotes and invoices from a YAML seed file.

All records are inserted in a single transaction. Seeding a tenant ID that
already exists fails without writing anything.

Examples:
  # Validate a seed file and print what it would create
  crewdesk seed --file demo.yaml --dry-run

  # Load it
  crewdesk seed --file demo.yaml
`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "Path to the YAML seed file (required)")
	seedCmd.Flags().BoolVar(&seedDryRun, "dry-run", false, "Validate and report counts without writing")
	_ = seedCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	fh, err := os.Open(seedFile)
	if err != nil {
		return fmt.Errorf("open seed file: %w", err)
	}
	defer fh.Close()

	doc, err := seed.Parse(fh)
	if err != nil {
		return err
	}

	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close(database)

	counts, err := seed.Apply(cmd.Context(), database, doc, seed.Options{
		DryRun:          seedDryRun,
		DefaultLocation: cfg.DefaultLocation,
	}, logger)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	verb := "Created"
	if seedDryRun {
		verb = "Would create"
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s:\n", verb)
	fmt.Fprintf(out, "  tenants:        %d\n", counts.Tenants)
	fmt.Fprintf(out, "  users:          %d\n", counts.Users)
	fmt.Fprintf(out, "  customers:      %d\n", counts.Customers)
	fmt.Fprintf(out, "  sites:          %d\n", counts.Sites)
	fmt.Fprintf(out, "  workers:        %d\n", counts.Workers)
	fmt.Fprintf(out, "  jobs:           %d\n", counts.Jobs)
	fmt.Fprintf(out, "  assignments:    %d\n", counts.Assignments)
	fmt.Fprintf(out, "  unavailability: %d\n", counts.Unavailability)
	fmt.Fprintf(out, "  quotes:         %d\n", counts.Quotes)
	fmt.Fprintf(out, "  invoices:       %d\n", counts.Invoices)
	return nil
}
