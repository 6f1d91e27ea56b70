/*
Copyright (C) 2026 TalentGrid

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package booking

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/talentgrid/talentgrid/internal/events"
	"github.com/talentgrid/talentgrid/internal/lifecycle"
	"github.com/talentgrid/talentgrid/internal/meeting"
	"github.com/talentgrid/talentgrid/internal/models"
)

func openBookingTestDB(t *testing.T, dsn string) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Provider{}, &models.CandidateProfile{}, &models.Slot{}, &models.Booking{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newBookingService(t *testing.T, db *gorm.DB, now time.Time) *Service {
	t.Helper()

	bus := events.NewBus()
	engine := lifecycle.NewEngine(db, bus, lifecycle.DefaultPolicy(), time.UTC, zerolog.Nop())
	svc := NewService(db, bus, engine, meeting.NewGenerator("https://meet.example.com"), time.UTC, zerolog.Nop())
	svc.now = func() time.Time { return now }
	return svc
}

func seedBookable(t *testing.T, db *gorm.DB) {
	t.Helper()

	provider := models.Provider{
		ID:                  "p1",
		Name:                "Interviewer",
		Email:               "p1@example.com",
		HandledDesignations: []string{"Backend Engineer"},
		Active:              true,
	}
	candidate := models.CandidateProfile{
		ID:          "c1",
		Name:        "Candidate",
		Email:       "c1@example.com",
		Designation: "Backend Engineer",
	}
	slot := models.Slot{
		ID:         "s1",
		ProviderID: "p1",
		Date:       "2026-03-02",
		StartTime:  "10:00",
		EndTime:    "10:30",
		Available:  true,
	}
	if err := db.Create(&provider).Error; err != nil {
		t.Fatalf("seed provider: %v", err)
	}
	if err := db.Create(&candidate).Error; err != nil {
		t.Fatalf("seed candidate: %v", err)
	}
	if err := db.Create(&slot).Error; err != nil {
		t.Fatalf("seed slot: %v", err)
	}
}

func TestBookClaimsSlot(t *testing.T) {
	db := openBookingTestDB(t, ":memory:")
	seedBookable(t, db)

	svc := newBookingService(t, db, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))

	booking, err := svc.Book(context.Background(), "c1", "s1")
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	if booking.Status != models.StatusScheduled {
		t.Errorf("status = %s, want scheduled", booking.Status)
	}
	if booking.Designation != "Backend Engineer" {
		t.Errorf("designation = %q, want candidate's designation", booking.Designation)
	}
	if !strings.HasPrefix(booking.MeetingID, "interview-") {
		t.Errorf("meeting id = %q, want interview- prefix", booking.MeetingID)
	}

	var slot models.Slot
	if err := db.First(&slot, "id = ?", "s1").Error; err != nil {
		t.Fatalf("reload slot: %v", err)
	}
	if slot.Available {
		t.Error("slot still available after booking")
	}
}

func TestBookRejectsTakenSlot(t *testing.T) {
	db := openBookingTestDB(t, ":memory:")
	seedBookable(t, db)

	svc := newBookingService(t, db, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	if _, err := svc.Book(ctx, "c1", "s1"); err != nil {
		t.Fatalf("first Book: %v", err)
	}
	if _, err := svc.Book(ctx, "c2", "s1"); !errors.Is(err, models.ErrAlreadyBooked) {
		t.Fatalf("second Book err = %v, want ErrAlreadyBooked", err)
	}
}

func TestBookRejectsLateAndMissing(t *testing.T) {
	db := openBookingTestDB(t, ":memory:")
	seedBookable(t, db)
	ctx := context.Background()

	// 09:56 is inside the five-minute lead window for a 10:00 slot.
	svc := newBookingService(t, db, time.Date(2026, 3, 2, 9, 56, 0, 0, time.UTC))
	if _, err := svc.Book(ctx, "c1", "s1"); !errors.Is(err, models.ErrTooLate) {
		t.Fatalf("err = %v, want ErrTooLate", err)
	}

	// A slot starting exactly five minutes out is still bookable.
	svc = newBookingService(t, db, time.Date(2026, 3, 2, 9, 55, 0, 0, time.UTC))
	if _, err := svc.Book(ctx, "c1", "s1"); err != nil {
		t.Fatalf("boundary Book: %v", err)
	}

	svc = newBookingService(t, db, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	if _, err := svc.Book(ctx, "c1", "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestBookRejectsInactiveProvider(t *testing.T) {
	db := openBookingTestDB(t, ":memory:")
	seedBookable(t, db)
	if err := db.Model(&models.Provider{}).Where("id = ?", "p1").Update("active", false).Error; err != nil {
		t.Fatalf("deactivate provider: %v", err)
	}

	svc := newBookingService(t, db, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	if _, err := svc.Book(context.Background(), "c1", "s1"); !errors.Is(err, models.ErrProviderInactive) {
		t.Fatalf("err = %v, want ErrProviderInactive", err)
	}
}

func TestBookConcurrentClaim(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "booking.db") + "?_busy_timeout=5000"
	db := openBookingTestDB(t, dsn)
	seedBookable(t, db)

	svc := newBookingService(t, db, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, candidate := range []string{"c1", "c2"} {
		wg.Add(1)
		go func(i int, candidate string) {
			defer wg.Done()
			_, errs[i] = svc.Book(context.Background(), candidate, "s1")
		}(i, candidate)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, models.ErrAlreadyBooked):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || conflicts != 1 {
		t.Fatalf("wins = %d conflicts = %d, want exactly one of each", wins, conflicts)
	}

	var count int64
	if err := db.Model(&models.Booking{}).Where("slot_id = ?", "s1").Count(&count).Error; err != nil {
		t.Fatalf("count bookings: %v", err)
	}
	if count != 1 {
		t.Fatalf("bookings for slot = %d, want 1", count)
	}
}

func TestGetRestrictedToParticipants(t *testing.T) {
	db := openBookingTestDB(t, ":memory:")
	seedBookable(t, db)

	svc := newBookingService(t, db, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	created, err := svc.Book(ctx, "c1", "s1")
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	for _, userID := range []string{"c1", "p1"} {
		if _, err := svc.Get(ctx, created.ID, userID); err != nil {
			t.Fatalf("Get as %s: %v", userID, err)
		}
	}
	if _, err := svc.Get(ctx, created.ID, "stranger"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("Get as stranger err = %v, want ErrNotFound", err)
	}
}
