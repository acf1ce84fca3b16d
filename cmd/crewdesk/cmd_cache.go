/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/friendsincode/crewdesk/internal/cache"
)

var cacheFlushTenant string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the Redis dashboard cache",
}

var cacheFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Drop cached dashboard rollups",
	Long: `Drop cached dashboard rollups from Redis.

Without --tenant every CrewDesk key is removed. Use this after restoring a
database backup or editing records outside the API.

Example:
  crewdesk cache flush --tenant 6a1f0c1e-0000-4000-8000-000000000001
`,
	RunE: runCacheFlush,
}

func init() {
	cacheFlushCmd.Flags().StringVar(&cacheFlushTenant, "tenant", "", "Only flush this tenant's entries")
	cacheCmd.AddCommand(cacheFlushCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheFlush(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	cacheCfg := cache.DefaultConfig()
	cacheCfg.RedisAddr = cfg.RedisAddr
	cacheCfg.RedisPassword = cfg.RedisPassword
	cacheCfg.RedisDB = cfg.RedisDB

	c, err := cache.New(cacheCfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()
	if !c.IsAvailable() {
		return errors.New("redis is not reachable at " + cfg.RedisAddr)
	}

	if cacheFlushTenant != "" {
		if err := c.InvalidateTenant(cmd.Context(), cacheFlushTenant); err != nil {
			return fmt.Errorf("flush tenant cache: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "flushed cache for tenant %s\n", cacheFlushTenant)
		return nil
	}

	if err := c.FlushAll(cmd.Context()); err != nil {
		return fmt.Errorf("flush cache: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "flushed all cached rollups")
	return nil
}
