/*
Copyright (C) 2026 TalentGrid

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package attendance records join and leave events reported by the
// conferencing handler. Each of the four timestamps is written at most
// once; repeated reports are harmless no-ops.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/talentgrid/talentgrid/internal/events"
	"github.com/talentgrid/talentgrid/internal/lifecycle"
	"github.com/talentgrid/talentgrid/internal/models"
	"github.com/talentgrid/talentgrid/internal/telemetry"
)

// Participant identifies which side of the interview an event belongs to.
type Participant string

const (
	ParticipantProvider  Participant = "provider"
	ParticipantCandidate Participant = "candidate"
)

// Valid reports whether p is a known participant.
func (p Participant) Valid() bool {
	return p == ParticipantProvider || p == ParticipantCandidate
}

// Tracker records attendance and drives lifecycle evaluation afterwards.
type Tracker struct {
	db     *gorm.DB
	bus    *events.Bus
	engine *lifecycle.Engine
	logger zerolog.Logger
	loc    *time.Location

	now func() time.Time
}

// NewTracker creates an attendance tracker.
func NewTracker(db *gorm.DB, bus *events.Bus, engine *lifecycle.Engine, loc *time.Location, logger zerolog.Logger) *Tracker {
	return &Tracker{
		db:     db,
		bus:    bus,
		engine: engine,
		logger: logger.With().Str("component", "attendance").Logger(),
		loc:    loc,
		now:    time.Now,
	}
}

// RecordJoin notes that the participant entered the room. The first report
// wins; later ones return the booking unchanged.
func (t *Tracker) RecordJoin(ctx context.Context, bookingID string, participant Participant) (*models.Booking, error) {
	return t.record(ctx, bookingID, participant, "joined")
}

// RecordLeave notes that the participant left the room. Requires a prior
// join for the same participant.
func (t *Tracker) RecordLeave(ctx context.Context, bookingID string, participant Participant) (*models.Booking, error) {
	return t.record(ctx, bookingID, participant, "left")
}

func (t *Tracker) record(ctx context.Context, bookingID string, participant Participant, kind string) (*models.Booking, error) {
	if !participant.Valid() {
		return nil, fmt.Errorf("unknown participant %q: %w", participant, models.ErrInvalidOperation)
	}

	booking, err := t.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	// Apply any overdue transition first so a report against a long-dead
	// booking fails with the right state.
	if _, err := t.engine.Evaluate(ctx, booking); err != nil {
		return nil, err
	}

	column := timestampColumn(participant, kind)
	if existing := timestampValue(booking, column); existing != nil {
		return booking, nil
	}

	// Completed bookings still accept late leave reports; they are part of
	// the session's history. Cancelled and no-show bookings accept nothing.
	if booking.Status == models.StatusCancelled || booking.Status == models.StatusNoShow {
		return nil, fmt.Errorf("booking is %s: %w", booking.Status, models.ErrInvalidState)
	}

	now := t.now().In(t.loc)

	if kind == "joined" {
		earliest := booking.Slot.StartsAt(t.loc).Add(-t.engine.Policy().JoinWindowBefore)
		if now.Before(earliest) {
			return nil, fmt.Errorf("room opens at %s: %w", earliest.Format(time.RFC3339), models.ErrInvalidOperation)
		}
	} else if timestampValue(booking, joinColumn(participant)) == nil {
		return nil, fmt.Errorf("%s has not joined: %w", participant, models.ErrInvalidOperation)
	}

	openStatuses := []models.BookingStatus{models.StatusScheduled, models.StatusCompleted}
	result := t.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ? AND status IN ? AND "+column+" IS NULL", bookingID, openStatuses).
		Update(column, now)
	if result.Error != nil {
		return nil, fmt.Errorf("record %s: %w", kind, result.Error)
	}
	if result.RowsAffected == 0 {
		// Lost to a concurrent report or transition; reread and let the
		// idempotency rule decide.
		booking, err = t.load(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		if timestampValue(booking, column) != nil {
			return booking, nil
		}
		return nil, fmt.Errorf("booking is %s: %w", booking.Status, models.ErrInvalidState)
	}

	telemetry.AttendanceEventsTotal.WithLabelValues(string(participant), kind).Inc()
	t.logger.Info().
		Str("booking_id", bookingID).
		Str("participant", string(participant)).
		Str("kind", kind).
		Msg("attendance recorded")

	booking, err = t.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	// Keep the running attendance figure current even below the
	// auto-complete threshold.
	if minutes := int(lifecycle.JointPresence(booking, now).Minutes()); booking.Status == models.StatusScheduled && minutes != booking.AttendedDurationMinutes {
		err := t.db.WithContext(ctx).Model(&models.Booking{}).
			Where("id = ? AND status = ?", bookingID, models.StatusScheduled).
			Update("attended_duration_minutes", minutes).Error
		if err != nil {
			return nil, fmt.Errorf("update attendance duration: %w", err)
		}
		booking.AttendedDurationMinutes = minutes
	}

	eventType := events.EventAttendanceJoined
	if kind == "left" {
		eventType = events.EventAttendanceLeft
	}
	t.bus.Publish(eventType, events.Payload{
		"booking_id":  bookingID,
		"provider_id": booking.ProviderID,
		"participant": string(participant),
	})

	if _, err := t.engine.Evaluate(ctx, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

func (t *Tracker) load(ctx context.Context, bookingID string) (*models.Booking, error) {
	var booking models.Booking
	err := t.db.WithContext(ctx).Preload("Slot").First(&booking, "id = ?", bookingID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("booking %s: %w", bookingID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	return &booking, nil
}

func timestampColumn(participant Participant, kind string) string {
	return string(participant) + "_" + kind + "_at"
}

func joinColumn(participant Participant) string {
	return timestampColumn(participant, "joined")
}

func timestampValue(booking *models.Booking, column string) *time.Time {
	switch column {
	case "provider_joined_at":
		return booking.ProviderJoinedAt
	case "candidate_joined_at":
		return booking.CandidateJoinedAt
	case "provider_left_at":
		return booking.ProviderLeftAt
	case "candidate_left_at":
		return booking.CandidateLeftAt
	}
	return nil
}
