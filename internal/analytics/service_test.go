/*
Copyright (C) 2026 TalentGrid

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package analytics

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/talentgrid/talentgrid/internal/models"
)

func TestProviderMonthly(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Slot{}, &models.Booking{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	seed := []struct {
		id     string
		date   string
		status models.BookingStatus
		mins   int
	}{
		{"b1", "2026-02-10", models.StatusCompleted, 28},
		{"b2", "2026-02-12", models.StatusCompleted, 32},
		{"b3", "2026-02-20", models.StatusNoShow, 0},
		{"b4", "2026-03-02", models.StatusCompleted, 30},
		{"b5", "2026-03-05", models.StatusCancelled, 0},
	}
	for _, row := range seed {
		slot := models.Slot{
			ID: "slot-" + row.id, ProviderID: "p1",
			Date: row.date, StartTime: "10:00", EndTime: "10:30",
		}
		if err := db.Create(&slot).Error; err != nil {
			t.Fatalf("seed slot: %v", err)
		}
		booking := models.Booking{
			ID: row.id, CandidateID: "c1", ProviderID: "p1", SlotID: slot.ID,
			Status: row.status, MeetingID: "interview-" + row.id,
			AttendedDurationMinutes: row.mins,
		}
		if err := db.Create(&booking).Error; err != nil {
			t.Fatalf("seed booking: %v", err)
		}
	}

	svc := NewService(db, zerolog.Nop())
	stats, err := svc.ProviderMonthly(context.Background(), "p1", 6)
	if err != nil {
		t.Fatalf("ProviderMonthly: %v", err)
	}

	if len(stats) != 2 {
		t.Fatalf("got %d months, want 2", len(stats))
	}

	march := stats[0]
	if march.Month != "2026-03" || march.Total != 2 || march.Completed != 1 || march.Cancelled != 1 {
		t.Errorf("march = %+v", march)
	}

	february := stats[1]
	if february.Month != "2026-02" || february.Total != 3 || february.Completed != 2 || february.NoShow != 1 {
		t.Errorf("february = %+v", february)
	}
	if february.AvgAttendedMinutes != 30 {
		t.Errorf("february avg minutes = %v, want 30", february.AvgAttendedMinutes)
	}
}
