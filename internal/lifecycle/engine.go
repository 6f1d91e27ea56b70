/*
Copyright (C) 2026 TalentGrid

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package lifecycle owns booking status transitions. Transitions are
// evaluated lazily on read and attendance paths; there is no background
// scheduler to race against, only concurrent requests, so every write is a
// conditional update guarded by the current status.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/talentgrid/talentgrid/internal/events"
	"github.com/talentgrid/talentgrid/internal/models"
	"github.com/talentgrid/talentgrid/internal/telemetry"
)

// Policy holds the scheduling thresholds. Zero values are not meaningful;
// build one from configuration or use DefaultPolicy.
type Policy struct {
	// BookingLead is the minimum distance from now to a bookable slot start.
	BookingLead time.Duration
	// MinAttendance is the joint presence needed for auto-completion.
	MinAttendance time.Duration
	// NoShowGrace is how long past the slot end a scheduled booking may
	// linger before it is marked a no-show.
	NoShowGrace time.Duration
	// ManualDuration is the attendance credited by a manual completion.
	ManualDuration time.Duration
	// ManualCompleteDelay is how long after the slot start a provider must
	// wait before manually completing.
	ManualCompleteDelay time.Duration
	// JoinWindowBefore is how early participants may join; the agenda uses
	// it to surface imminent bookings.
	JoinWindowBefore time.Duration
}

// DefaultPolicy returns the stock thresholds.
func DefaultPolicy() Policy {
	return Policy{
		BookingLead:         5 * time.Minute,
		MinAttendance:       5 * time.Minute,
		NoShowGrace:         10 * time.Minute,
		ManualDuration:      30 * time.Minute,
		ManualCompleteDelay: 5 * time.Minute,
		JoinWindowBefore:    40 * time.Minute,
	}
}

// Engine applies lifecycle transitions to bookings.
type Engine struct {
	db     *gorm.DB
	bus    *events.Bus
	policy Policy
	loc    *time.Location
	logger zerolog.Logger

	now func() time.Time
}

// NewEngine creates a lifecycle engine.
func NewEngine(db *gorm.DB, bus *events.Bus, policy Policy, loc *time.Location, logger zerolog.Logger) *Engine {
	return &Engine{
		db:     db,
		bus:    bus,
		policy: policy,
		loc:    loc,
		logger: logger.With().Str("component", "lifecycle").Logger(),
		now:    time.Now,
	}
}

// Policy returns the engine's thresholds.
func (e *Engine) Policy() Policy {
	return e.policy
}

// SetClock replaces the engine's time source. Test support.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Evaluate applies any due transition to the booking and mutates it in
// place to reflect the stored row. The booking's Slot must be loaded.
// Returns true when a transition was written by this call.
func (e *Engine) Evaluate(ctx context.Context, booking *models.Booking) (bool, error) {
	if booking.Status != models.StatusScheduled {
		return false, nil
	}

	now := e.now().In(e.loc)
	end := booking.Slot.EndsAt(e.loc)

	// Auto-complete: both sides shared the room long enough.
	overlap := JointPresence(booking, now)
	if bothJoined(booking) && overlap >= e.policy.MinAttendance {
		return e.complete(ctx, booking, int(overlap.Minutes()), "auto_complete", now)
	}

	// No-show: the window plus grace has passed without enough presence.
	if now.After(end.Add(e.policy.NoShowGrace)) {
		rule := "no_show_overdue"
		if booking.Slot.Date < models.CivilDate(now) {
			rule = "no_show_stale"
		}
		return e.markNoShow(ctx, booking, rule)
	}

	return false, nil
}

// Sweep evaluates a batch of bookings, typically a view's result set.
// Evaluation errors are logged, not returned; a read path should still
// serve what it has.
func (e *Engine) Sweep(ctx context.Context, bookings []models.Booking) {
	for i := range bookings {
		if _, err := e.Evaluate(ctx, &bookings[i]); err != nil {
			e.logger.Error().Err(err).Str("booking_id", bookings[i].ID).Msg("lifecycle evaluation failed")
		}
	}
}

// AllowComplete reports whether the provider may manually complete the
// booking right now.
func (e *Engine) AllowComplete(booking *models.Booking) bool {
	if booking.Status != models.StatusScheduled {
		return false
	}
	start := booking.Slot.StartsAt(e.loc)
	return !e.now().In(e.loc).Before(start.Add(e.policy.ManualCompleteDelay))
}

// ManualComplete marks the booking completed on the provider's say-so.
// Attendance timestamps are backfilled so downstream reporting sees a
// plausible session of ManualDuration length.
func (e *Engine) ManualComplete(ctx context.Context, bookingID, providerID, notes string) (*models.Booking, error) {
	var booking models.Booking
	err := e.db.WithContext(ctx).Preload("Slot").
		First(&booking, "id = ? AND provider_id = ?", bookingID, providerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("booking %s: %w", bookingID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}

	if booking.Status.Terminal() {
		return nil, fmt.Errorf("booking is %s: %w", booking.Status, models.ErrInvalidState)
	}
	if !e.AllowComplete(&booking) {
		return nil, fmt.Errorf("manual completion not yet allowed: %w", models.ErrInvalidOperation)
	}

	now := e.now().In(e.loc)
	duration := e.policy.ManualDuration

	updates := map[string]any{
		"status":                    models.StatusCompleted,
		"both_attended":             true,
		"attended_duration_minutes": int(duration.Minutes()),
		"provider_joined_at":        now.Add(-duration),
		"candidate_joined_at":       now.Add(-duration + 5*time.Minute),
		"provider_left_at":          now,
		"candidate_left_at":         now,
	}
	if notes != "" {
		updates["notes"] = notes
	}

	result := e.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ? AND status = ?", bookingID, models.StatusScheduled).
		Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("manual complete: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// A lifecycle rule or racing request transitioned it first.
		return nil, fmt.Errorf("booking already transitioned: %w", models.ErrInvalidState)
	}

	telemetry.BookingTransitionsTotal.WithLabelValues(string(models.StatusCompleted), "manual").Inc()
	e.logger.Info().
		Str("booking_id", bookingID).
		Str("provider_id", providerID).
		Msg("booking manually completed")

	if err := e.db.WithContext(ctx).Preload("Slot").First(&booking, "id = ?", bookingID).Error; err != nil {
		return nil, fmt.Errorf("reload booking: %w", err)
	}

	e.bus.Publish(events.EventBookingCompleted, events.Payload{
		"booking_id":   booking.ID,
		"provider_id":  booking.ProviderID,
		"candidate_id": booking.CandidateID,
		"rule":         "manual",
	})

	return &booking, nil
}

func (e *Engine) complete(ctx context.Context, booking *models.Booking, minutes int, rule string, now time.Time) (bool, error) {
	result := e.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ? AND status = ?", booking.ID, models.StatusScheduled).
		Updates(map[string]any{
			"status":                    models.StatusCompleted,
			"both_attended":             true,
			"attended_duration_minutes": minutes,
		})
	if result.Error != nil {
		return false, fmt.Errorf("complete booking: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return false, e.reload(ctx, booking)
	}

	booking.Status = models.StatusCompleted
	booking.BothAttended = true
	booking.AttendedDurationMinutes = minutes

	telemetry.BookingTransitionsTotal.WithLabelValues(string(models.StatusCompleted), rule).Inc()
	e.logger.Info().
		Str("booking_id", booking.ID).
		Int("attended_minutes", minutes).
		Str("rule", rule).
		Msg("booking completed")

	e.bus.Publish(events.EventBookingCompleted, events.Payload{
		"booking_id":   booking.ID,
		"provider_id":  booking.ProviderID,
		"candidate_id": booking.CandidateID,
		"rule":         rule,
	})
	return true, nil
}

func (e *Engine) markNoShow(ctx context.Context, booking *models.Booking, rule string) (bool, error) {
	result := e.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ? AND status = ?", booking.ID, models.StatusScheduled).
		Update("status", models.StatusNoShow)
	if result.Error != nil {
		return false, fmt.Errorf("mark no-show: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return false, e.reload(ctx, booking)
	}

	booking.Status = models.StatusNoShow

	telemetry.BookingTransitionsTotal.WithLabelValues(string(models.StatusNoShow), rule).Inc()
	e.logger.Info().
		Str("booking_id", booking.ID).
		Str("rule", rule).
		Msg("booking marked no-show")

	e.bus.Publish(events.EventBookingNoShow, events.Payload{
		"booking_id":   booking.ID,
		"provider_id":  booking.ProviderID,
		"candidate_id": booking.CandidateID,
		"rule":         rule,
	})
	return true, nil
}

// reload refreshes the in-memory booking after losing a conditional
// update, so callers see whatever state the winner wrote.
func (e *Engine) reload(ctx context.Context, booking *models.Booking) error {
	if err := e.db.WithContext(ctx).Preload("Slot").First(booking, "id = ?", booking.ID).Error; err != nil {
		return fmt.Errorf("reload booking: %w", err)
	}
	return nil
}

// JointPresence returns how long both participants were in the room
// together. Open intervals (joined, not yet left) extend to now.
func JointPresence(booking *models.Booking, now time.Time) time.Duration {
	if !bothJoined(booking) {
		return 0
	}

	start := *booking.ProviderJoinedAt
	if booking.CandidateJoinedAt.After(start) {
		start = *booking.CandidateJoinedAt
	}

	providerEnd := now
	if booking.ProviderLeftAt != nil {
		providerEnd = *booking.ProviderLeftAt
	}
	candidateEnd := now
	if booking.CandidateLeftAt != nil {
		candidateEnd = *booking.CandidateLeftAt
	}

	end := providerEnd
	if candidateEnd.Before(end) {
		end = candidateEnd
	}

	if overlap := end.Sub(start); overlap > 0 {
		return overlap
	}
	return 0
}

func bothJoined(booking *models.Booking) bool {
	return booking.ProviderJoinedAt != nil && booking.CandidateJoinedAt != nil
}
