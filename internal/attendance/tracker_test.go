/*
Copyright (C) 2026 TalentGrid

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/talentgrid/talentgrid/internal/events"
	"github.com/talentgrid/talentgrid/internal/lifecycle"
	"github.com/talentgrid/talentgrid/internal/models"
)

type fixture struct {
	db      *gorm.DB
	tracker *Tracker
	now     time.Time
}

// newFixture builds a tracker whose clock the test can advance, with a
// scheduled booking "b1" on a 10:00-10:30 slot.
func newFixture(t *testing.T, start time.Time) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Provider{}, &models.Slot{}, &models.Booking{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	slot := models.Slot{
		ID: "s1", ProviderID: "p1",
		Date: "2026-03-02", StartTime: "10:00", EndTime: "10:30",
		Available: false,
	}
	if err := db.Create(&slot).Error; err != nil {
		t.Fatalf("seed slot: %v", err)
	}
	booking := models.Booking{
		ID: "b1", CandidateID: "c1", ProviderID: "p1", SlotID: "s1",
		Status: models.StatusScheduled, MeetingID: "interview-b1test",
	}
	if err := db.Create(&booking).Error; err != nil {
		t.Fatalf("seed booking: %v", err)
	}

	f := &fixture{db: db, now: start}
	bus := events.NewBus()
	engine := lifecycle.NewEngine(db, bus, lifecycle.DefaultPolicy(), time.UTC, zerolog.Nop())
	engine.SetClock(func() time.Time { return f.now })
	f.tracker = NewTracker(db, bus, engine, time.UTC, zerolog.Nop())
	f.tracker.now = func() time.Time { return f.now }
	return f
}

func TestRecordJoinIsIdempotent(t *testing.T) {
	f := newFixture(t, time.Date(2026, 3, 2, 9, 58, 0, 0, time.UTC))
	ctx := context.Background()

	first, err := f.tracker.RecordJoin(ctx, "b1", ParticipantProvider)
	if err != nil {
		t.Fatalf("RecordJoin: %v", err)
	}
	if first.ProviderJoinedAt == nil || !first.ProviderJoinedAt.Equal(f.now) {
		t.Fatalf("provider_joined_at = %v, want %v", first.ProviderJoinedAt, f.now)
	}

	// The second report a minute later must not move the timestamp.
	f.now = f.now.Add(time.Minute)
	second, err := f.tracker.RecordJoin(ctx, "b1", ParticipantProvider)
	if err != nil {
		t.Fatalf("repeat RecordJoin: %v", err)
	}
	if !second.ProviderJoinedAt.Equal(*first.ProviderJoinedAt) {
		t.Fatalf("repeat join moved timestamp to %v", second.ProviderJoinedAt)
	}
}

func TestRecordJoinBeforeWindowOpens(t *testing.T) {
	// 09:15 is before the 40-minute window for a 10:00 slot.
	f := newFixture(t, time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC))

	if _, err := f.tracker.RecordJoin(context.Background(), "b1", ParticipantCandidate); !errors.Is(err, models.ErrInvalidOperation) {
		t.Fatalf("err = %v, want ErrInvalidOperation", err)
	}
}

func TestRecordLeaveRequiresJoin(t *testing.T) {
	f := newFixture(t, time.Date(2026, 3, 2, 10, 5, 0, 0, time.UTC))

	if _, err := f.tracker.RecordLeave(context.Background(), "b1", ParticipantProvider); !errors.Is(err, models.ErrInvalidOperation) {
		t.Fatalf("err = %v, want ErrInvalidOperation", err)
	}
}

func TestJointPresenceDrivesAutoCompletion(t *testing.T) {
	f := newFixture(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	ctx := context.Background()

	if _, err := f.tracker.RecordJoin(ctx, "b1", ParticipantProvider); err != nil {
		t.Fatalf("provider join: %v", err)
	}

	f.now = time.Date(2026, 3, 2, 10, 1, 0, 0, time.UTC)
	if _, err := f.tracker.RecordJoin(ctx, "b1", ParticipantCandidate); err != nil {
		t.Fatalf("candidate join: %v", err)
	}

	// Candidate leaves after 7 shared minutes; the booking completes.
	f.now = time.Date(2026, 3, 2, 10, 8, 0, 0, time.UTC)
	booking, err := f.tracker.RecordLeave(ctx, "b1", ParticipantCandidate)
	if err != nil {
		t.Fatalf("candidate leave: %v", err)
	}

	if booking.Status != models.StatusCompleted {
		t.Fatalf("status = %s, want completed", booking.Status)
	}
	if booking.AttendedDurationMinutes != 7 {
		t.Errorf("attended minutes = %d, want 7", booking.AttendedDurationMinutes)
	}
	if !booking.BothAttended {
		t.Error("expected both_attended")
	}
}

func TestShortSessionStaysScheduled(t *testing.T) {
	f := newFixture(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	ctx := context.Background()

	if _, err := f.tracker.RecordJoin(ctx, "b1", ParticipantProvider); err != nil {
		t.Fatalf("provider join: %v", err)
	}
	if _, err := f.tracker.RecordJoin(ctx, "b1", ParticipantCandidate); err != nil {
		t.Fatalf("candidate join: %v", err)
	}

	// Only 2 minutes together.
	f.now = time.Date(2026, 3, 2, 10, 2, 0, 0, time.UTC)
	booking, err := f.tracker.RecordLeave(ctx, "b1", ParticipantCandidate)
	if err != nil {
		t.Fatalf("candidate leave: %v", err)
	}

	if booking.Status != models.StatusScheduled {
		t.Fatalf("status = %s, want scheduled", booking.Status)
	}
	if booking.AttendedDurationMinutes != 2 {
		t.Errorf("attended minutes = %d, want 2", booking.AttendedDurationMinutes)
	}
}

func TestRecordJoinAgainstOverdueBooking(t *testing.T) {
	// Long past the slot end plus grace; evaluation marks the booking a
	// no-show before the join can land.
	f := newFixture(t, time.Date(2026, 3, 2, 11, 30, 0, 0, time.UTC))

	if _, err := f.tracker.RecordJoin(context.Background(), "b1", ParticipantProvider); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}

	var booking models.Booking
	if err := f.db.First(&booking, "id = ?", "b1").Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if booking.Status != models.StatusNoShow {
		t.Fatalf("status = %s, want no_show", booking.Status)
	}
}

func TestRecordJoinUnknownBooking(t *testing.T) {
	f := newFixture(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))

	if _, err := f.tracker.RecordJoin(context.Background(), "missing", ParticipantProvider); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
