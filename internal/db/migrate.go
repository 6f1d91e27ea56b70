/*
Copyright (C) 2026 TalentGrid

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"github.com/talentgrid/talentgrid/internal/models"
	"gorm.io/gorm"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	return database.AutoMigrate(
		// Identity and access
		&models.Provider{},
		&models.CandidateProfile{},
		&models.APIKey{},

		// Scheduling
		&models.Slot{},
		&models.Booking{},
		&models.Feedback{},

		// Operational
		&models.AuditLog{},
	)
}
