/*
Copyright (C) 2026 TalentGrid

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/talentgrid/talentgrid/internal/cache"
	"github.com/talentgrid/talentgrid/internal/db"
	"github.com/talentgrid/talentgrid/internal/events"
	"github.com/talentgrid/talentgrid/internal/profile"
)

var providerCmd = &cobra.Command{
	Use:   "provider",
	Short: "Manage provider directory entries",
}

var providerActivateCmd = &cobra.Command{
	Use:   "activate <provider-id>",
	Short: "Re-enable a provider in the directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runProviderSetActive(true),
}

var providerDeactivateCmd = &cobra.Command{
	Use:   "deactivate <provider-id>",
	Short: "Hide a provider from the directory",
	Long:  "Hide a provider from the directory and stop new slot generation and claims. Existing bookings keep running.",
	Args:  cobra.ExactArgs(1),
	RunE:  runProviderSetActive(false),
}

func init() {
	rootCmd.AddCommand(providerCmd)
	providerCmd.AddCommand(providerActivateCmd)
	providerCmd.AddCommand(providerDeactivateCmd)
}

func runProviderSetActive(active bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		database, err := initDatabase()
		if err != nil {
			return err
		}
		defer db.Close(database)

		dir := profile.NewDirectory(database, events.NewBus(), cache.Disabled(logger), logger)

		ctx := context.Background()
		if active {
			err = dir.Activate(ctx, args[0])
		} else {
			err = dir.Deactivate(ctx, args[0])
		}
		if err != nil {
			return fmt.Errorf("update provider: %w", err)
		}

		state := "deactivated"
		if active {
			state = "activated"
		}
		fmt.Printf("Provider %s %s\n", args[0], state)
		return nil
	}
}
