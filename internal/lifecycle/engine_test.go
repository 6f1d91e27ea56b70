/*
Copyright (C) 2026 TalentGrid

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/talentgrid/talentgrid/internal/events"
	"github.com/talentgrid/talentgrid/internal/models"
)

func openLifecycleTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Provider{}, &models.Slot{}, &models.Booking{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestEngine(t *testing.T, db *gorm.DB, now time.Time) *Engine {
	t.Helper()

	engine := NewEngine(db, events.NewBus(), DefaultPolicy(), time.UTC, zerolog.Nop())
	engine.now = func() time.Time { return now }
	return engine
}

// seedBooking creates a slot from 10:00 to 10:30 on 2026-03-02 and a
// scheduled booking against it.
func seedBooking(t *testing.T, db *gorm.DB, id string) *models.Booking {
	t.Helper()

	slot := models.Slot{
		ID:         "slot-" + id,
		ProviderID: "p1",
		Date:       "2026-03-02",
		StartTime:  "10:00",
		EndTime:    "10:30",
		Available:  false,
	}
	if err := db.Create(&slot).Error; err != nil {
		t.Fatalf("seed slot: %v", err)
	}

	booking := models.Booking{
		ID:          id,
		CandidateID: "c1",
		ProviderID:  "p1",
		SlotID:      slot.ID,
		Slot:        slot,
		Status:      models.StatusScheduled,
		MeetingID:   "interview-" + id,
	}
	if err := db.Create(&booking).Error; err != nil {
		t.Fatalf("seed booking: %v", err)
	}
	return &booking
}

func timePtr(t time.Time) *time.Time { return &t }

func TestEvaluateAutoCompletes(t *testing.T) {
	db := openLifecycleTestDB(t)
	booking := seedBooking(t, db, "b1")

	// Both joined at 10:02 and 10:04, neither has left, now is 10:10.
	booking.ProviderJoinedAt = timePtr(time.Date(2026, 3, 2, 10, 2, 0, 0, time.UTC))
	booking.CandidateJoinedAt = timePtr(time.Date(2026, 3, 2, 10, 4, 0, 0, time.UTC))
	if err := db.Save(booking).Error; err != nil {
		t.Fatalf("save joins: %v", err)
	}

	engine := newTestEngine(t, db, time.Date(2026, 3, 2, 10, 10, 0, 0, time.UTC))

	changed, err := engine.Evaluate(context.Background(), booking)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !changed {
		t.Fatal("expected transition")
	}
	if booking.Status != models.StatusCompleted {
		t.Fatalf("status = %s, want completed", booking.Status)
	}
	if !booking.BothAttended {
		t.Error("expected both_attended set")
	}
	// Overlap runs from the later join (10:04) to now (10:10).
	if booking.AttendedDurationMinutes != 6 {
		t.Errorf("attended minutes = %d, want 6", booking.AttendedDurationMinutes)
	}
}

func TestEvaluateBelowThresholdStaysScheduled(t *testing.T) {
	db := openLifecycleTestDB(t)
	booking := seedBooking(t, db, "b1")

	booking.ProviderJoinedAt = timePtr(time.Date(2026, 3, 2, 10, 2, 0, 0, time.UTC))
	booking.CandidateJoinedAt = timePtr(time.Date(2026, 3, 2, 10, 6, 0, 0, time.UTC))
	if err := db.Save(booking).Error; err != nil {
		t.Fatalf("save joins: %v", err)
	}

	// Only 3 minutes of shared presence so far.
	engine := newTestEngine(t, db, time.Date(2026, 3, 2, 10, 9, 0, 0, time.UTC))

	changed, err := engine.Evaluate(context.Background(), booking)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if changed || booking.Status != models.StatusScheduled {
		t.Fatalf("expected no transition, got changed=%v status=%s", changed, booking.Status)
	}
}

func TestEvaluateMarksNoShowAfterGrace(t *testing.T) {
	db := openLifecycleTestDB(t)
	booking := seedBooking(t, db, "b1")

	// Slot ended 10:30; grace is 10 minutes.
	engine := newTestEngine(t, db, time.Date(2026, 3, 2, 10, 41, 0, 0, time.UTC))

	changed, err := engine.Evaluate(context.Background(), booking)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !changed || booking.Status != models.StatusNoShow {
		t.Fatalf("expected no_show, got changed=%v status=%s", changed, booking.Status)
	}
}

func TestEvaluateHoldsDuringGrace(t *testing.T) {
	db := openLifecycleTestDB(t)
	booking := seedBooking(t, db, "b1")

	engine := newTestEngine(t, db, time.Date(2026, 3, 2, 10, 35, 0, 0, time.UTC))

	changed, err := engine.Evaluate(context.Background(), booking)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if changed || booking.Status != models.StatusScheduled {
		t.Fatalf("expected booking to stay scheduled, got changed=%v status=%s", changed, booking.Status)
	}
}

func TestEvaluatePrefersCompletionOverNoShow(t *testing.T) {
	db := openLifecycleTestDB(t)
	booking := seedBooking(t, db, "b1")

	// Full session attended, but evaluation only happens well after the
	// grace window. Attendance must win.
	booking.ProviderJoinedAt = timePtr(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	booking.CandidateJoinedAt = timePtr(time.Date(2026, 3, 2, 10, 1, 0, 0, time.UTC))
	booking.ProviderLeftAt = timePtr(time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC))
	booking.CandidateLeftAt = timePtr(time.Date(2026, 3, 2, 10, 28, 0, 0, time.UTC))
	if err := db.Save(booking).Error; err != nil {
		t.Fatalf("save attendance: %v", err)
	}

	engine := newTestEngine(t, db, time.Date(2026, 3, 2, 11, 30, 0, 0, time.UTC))

	changed, err := engine.Evaluate(context.Background(), booking)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !changed || booking.Status != models.StatusCompleted {
		t.Fatalf("expected completed, got changed=%v status=%s", changed, booking.Status)
	}
	if booking.AttendedDurationMinutes != 27 {
		t.Errorf("attended minutes = %d, want 27", booking.AttendedDurationMinutes)
	}
}

func TestEvaluateIgnoresTerminalBooking(t *testing.T) {
	db := openLifecycleTestDB(t)
	booking := seedBooking(t, db, "b1")
	booking.Status = models.StatusCancelled

	engine := newTestEngine(t, db, time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))

	changed, err := engine.Evaluate(context.Background(), booking)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if changed {
		t.Fatal("terminal booking must not transition")
	}
}

func TestManualComplete(t *testing.T) {
	db := openLifecycleTestDB(t)
	seedBooking(t, db, "b1")

	now := time.Date(2026, 3, 2, 10, 6, 0, 0, time.UTC)
	engine := newTestEngine(t, db, now)
	ctx := context.Background()

	booking, err := engine.ManualComplete(ctx, "b1", "p1", "good session")
	if err != nil {
		t.Fatalf("ManualComplete: %v", err)
	}

	if booking.Status != models.StatusCompleted {
		t.Fatalf("status = %s, want completed", booking.Status)
	}
	if booking.AttendedDurationMinutes != 30 {
		t.Errorf("attended minutes = %d, want 30", booking.AttendedDurationMinutes)
	}
	if booking.ProviderJoinedAt == nil || !booking.ProviderJoinedAt.Equal(now.Add(-30*time.Minute)) {
		t.Errorf("provider join backfill = %v, want %v", booking.ProviderJoinedAt, now.Add(-30*time.Minute))
	}
	if booking.CandidateJoinedAt == nil || !booking.CandidateJoinedAt.Equal(now.Add(-25*time.Minute)) {
		t.Errorf("candidate join backfill = %v, want %v", booking.CandidateJoinedAt, now.Add(-25*time.Minute))
	}
	if booking.Notes != "good session" {
		t.Errorf("notes = %q", booking.Notes)
	}

	// A second completion attempt must fail cleanly.
	if _, err := engine.ManualComplete(ctx, "b1", "p1", ""); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("second ManualComplete err = %v, want ErrInvalidState", err)
	}
}

func TestManualCompleteTooEarly(t *testing.T) {
	db := openLifecycleTestDB(t)
	seedBooking(t, db, "b1")

	// Slot starts 10:00; the provider must wait until 10:05.
	engine := newTestEngine(t, db, time.Date(2026, 3, 2, 10, 3, 0, 0, time.UTC))

	if _, err := engine.ManualComplete(context.Background(), "b1", "p1", ""); !errors.Is(err, models.ErrInvalidOperation) {
		t.Fatalf("err = %v, want ErrInvalidOperation", err)
	}
}

func TestManualCompleteWrongProvider(t *testing.T) {
	db := openLifecycleTestDB(t)
	seedBooking(t, db, "b1")

	engine := newTestEngine(t, db, time.Date(2026, 3, 2, 10, 10, 0, 0, time.UTC))

	if _, err := engine.ManualComplete(context.Background(), "b1", "p2", ""); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
