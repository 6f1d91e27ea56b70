/*
Copyright (C) 2026 TalentGrid

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/talentgrid/talentgrid/internal/auth"
	"github.com/talentgrid/talentgrid/internal/db"
	"github.com/talentgrid/talentgrid/internal/models"
)

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage service API keys",
}

var apikeyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a service API key",
	Long:  "Create an API key for service-to-service callers such as the conferencing attendance callback. The plaintext key is printed once.",
	RunE:  runAPIKeyCreate,
}

var apikeyRevokeCmd = &cobra.Command{
	Use:   "revoke <key-id>",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE:  runAPIKeyRevoke,
}

var (
	apikeyName       string
	apikeyRoles      []string
	apikeyExpireDays int
)

func init() {
	rootCmd.AddCommand(apikeyCmd)
	apikeyCmd.AddCommand(apikeyCreateCmd)
	apikeyCmd.AddCommand(apikeyRevokeCmd)

	apikeyCreateCmd.Flags().StringVar(&apikeyName, "name", "", "Descriptive name for the key (required)")
	apikeyCreateCmd.Flags().StringSliceVar(&apikeyRoles, "roles", []string{string(models.RoleService)}, "Roles granted to the key")
	apikeyCreateCmd.Flags().IntVar(&apikeyExpireDays, "expire-days", 365, "Days until the key expires")
	apikeyCreateCmd.MarkFlagRequired("name")
}

func runAPIKeyCreate(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	database, err := initDatabase()
	if err != nil {
		return err
	}
	defer db.Close(database)
	if err := db.Migrate(database); err != nil {
		return err
	}

	plaintext, key, err := auth.GenerateAPIKey(apikeyName, apikeyRoles, time.Duration(apikeyExpireDays)*24*time.Hour)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	if err := database.Create(key).Error; err != nil {
		return fmt.Errorf("store key: %w", err)
	}

	fmt.Printf("API key created (id=%s, expires %s)\n", key.ID, key.ExpiresAt.Format(time.RFC3339))
	fmt.Printf("Store this key now; it is not shown again:\n%s\n", plaintext)
	return nil
}

func runAPIKeyRevoke(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	database, err := initDatabase()
	if err != nil {
		return err
	}
	defer db.Close(database)

	if err := auth.RevokeAPIKey(database, args[0]); err != nil {
		return fmt.Errorf("revoke key: %w", err)
	}
	fmt.Printf("API key %s revoked\n", args[0])
	return nil
}
