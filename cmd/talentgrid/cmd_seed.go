/*
Copyright (C) 2026 TalentGrid

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/talentgrid/talentgrid/internal/cache"
	"github.com/talentgrid/talentgrid/internal/db"
	"github.com/talentgrid/talentgrid/internal/events"
	"github.com/talentgrid/talentgrid/internal/models"
	"github.com/talentgrid/talentgrid/internal/slots"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load providers and candidates from a fixture file",
	Long:  "Create providers and candidate profiles from a YAML fixture, optionally generating slot inventory for each provider",
	RunE:  runSeed,
}

var (
	seedFilePath      string
	seedGenerateSlots bool
)

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().StringVar(&seedFilePath, "file", "", "Path to YAML fixture (required)")
	seedCmd.Flags().BoolVar(&seedGenerateSlots, "generate-slots", false, "Generate slot inventory for each seeded provider")
	seedCmd.MarkFlagRequired("file")
}

type seedFixture struct {
	Providers []struct {
		ID                string   `yaml:"id"`
		Name              string   `yaml:"name"`
		Email             string   `yaml:"email"`
		FieldOfExpertise  string   `yaml:"field_of_expertise"`
		Designations      []string `yaml:"designations"`
		YearsOfExperience int      `yaml:"years_of_experience"`
	} `yaml:"providers"`
	Candidates []struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		Email       string `yaml:"email"`
		Field       string `yaml:"field"`
		Designation string `yaml:"designation"`
	} `yaml:"candidates"`
}

func runSeed(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	raw, err := os.ReadFile(seedFilePath)
	if err != nil {
		return fmt.Errorf("read fixture: %w", err)
	}
	var fixture seedFixture
	if err := yaml.Unmarshal(raw, &fixture); err != nil {
		return fmt.Errorf("parse fixture: %w", err)
	}

	database, err := initDatabase()
	if err != nil {
		return err
	}
	defer db.Close(database)
	if err := db.Migrate(database); err != nil {
		return err
	}

	ctx := context.Background()

	for _, p := range fixture.Providers {
		row := &models.Provider{
			ID:                  p.ID,
			Name:                p.Name,
			Email:               p.Email,
			FieldOfExpertise:    p.FieldOfExpertise,
			HandledDesignations: p.Designations,
			YearsOfExperience:   p.YearsOfExperience,
			Active:              true,
		}
		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		if err := database.WithContext(ctx).Save(row).Error; err != nil {
			return fmt.Errorf("seed provider %s: %w", p.Email, err)
		}
		logger.Info().Str("provider_id", row.ID).Str("email", row.Email).Msg("provider seeded")
	}

	for _, c := range fixture.Candidates {
		row := &models.CandidateProfile{
			ID:          c.ID,
			Name:        c.Name,
			Email:       c.Email,
			Field:       c.Field,
			Designation: c.Designation,
		}
		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		if err := database.WithContext(ctx).Save(row).Error; err != nil {
			return fmt.Errorf("seed candidate %s: %w", c.Email, err)
		}
		logger.Info().Str("candidate_id", row.ID).Str("email", row.Email).Msg("candidate seeded")
	}

	if !seedGenerateSlots {
		return nil
	}

	generation := slots.GenerationPolicy{
		WindowDays:       cfg.SlotWindowDays,
		DayStartHour:     cfg.SlotDayStartHour,
		DayEndHour:       cfg.SlotDayEndHour,
		IncrementMinutes: cfg.SlotIncrementMinutes,
	}
	slotSvc := slots.NewService(database, events.NewBus(), cache.Disabled(logger), cfg.Location(), generation, time.Duration(cfg.BookingLeadMinutes)*time.Minute, logger)

	var providers []models.Provider
	if err := database.WithContext(ctx).Where("active = ?", true).Find(&providers).Error; err != nil {
		return fmt.Errorf("list providers: %w", err)
	}
	for _, p := range providers {
		created, err := slotSvc.Generate(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("generate slots for %s: %w", p.Email, err)
		}
		logger.Info().Str("provider_id", p.ID).Int("created", created).Msg("slots generated")
	}
	return nil
}
