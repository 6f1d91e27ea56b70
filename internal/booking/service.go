/*
Copyright (C) 2026 TalentGrid

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package booking assigns candidates to open slots. The claim itself is a
// conditional update on the slot row, so two racing requests can never
// both win; the loser sees zero rows affected and reports the conflict.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/talentgrid/talentgrid/internal/events"
	"github.com/talentgrid/talentgrid/internal/lifecycle"
	"github.com/talentgrid/talentgrid/internal/meeting"
	"github.com/talentgrid/talentgrid/internal/models"
	"github.com/talentgrid/talentgrid/internal/telemetry"
)

// Service creates and reads bookings.
type Service struct {
	db       *gorm.DB
	bus      *events.Bus
	engine   *lifecycle.Engine
	meetings *meeting.Generator
	logger   zerolog.Logger
	loc      *time.Location

	now func() time.Time
}

// NewService creates a booking service.
func NewService(db *gorm.DB, bus *events.Bus, engine *lifecycle.Engine, meetings *meeting.Generator, loc *time.Location, logger zerolog.Logger) *Service {
	return &Service{
		db:       db,
		bus:      bus,
		engine:   engine,
		meetings: meetings,
		logger:   logger.With().Str("component", "booking").Logger(),
		loc:      loc,
		now:      time.Now,
	}
}

// Book claims the slot for the candidate and creates the booking with a
// fresh meeting reference. Checks run in order: slot existence, provider
// state, timing, then the claim itself.
func (s *Service) Book(ctx context.Context, candidateID, slotID string) (*models.Booking, error) {
	var slot models.Slot
	err := s.db.WithContext(ctx).First(&slot, "id = ?", slotID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("slot %s: %w", slotID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load slot: %w", err)
	}

	var provider models.Provider
	err = s.db.WithContext(ctx).First(&provider, "id = ?", slot.ProviderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("provider %s: %w", slot.ProviderID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load provider: %w", err)
	}
	if !provider.Active {
		return nil, fmt.Errorf("book slot: %w", models.ErrProviderInactive)
	}

	now := s.now().In(s.loc)
	start := slot.StartsAt(s.loc)
	// A slot starting exactly at now+lead is still bookable.
	if start.Before(now.Add(s.engine.Policy().BookingLead)) {
		return nil, fmt.Errorf("slot starts at %s: %w", start.Format(time.RFC3339), models.ErrTooLate)
	}

	if !slot.Available {
		telemetry.BookingConflictsTotal.Inc()
		return nil, fmt.Errorf("slot %s: %w", slotID, models.ErrAlreadyBooked)
	}

	// The candidate's designation is denormalized onto the booking so the
	// provider's agenda never needs the profile join.
	designation := s.candidateDesignation(ctx, candidateID)

	ref, err := s.meetings.New()
	if err != nil {
		return nil, fmt.Errorf("mint meeting reference: %w", err)
	}

	booking := models.Booking{
		ID:                uuid.NewString(),
		CandidateID:       candidateID,
		ProviderID:        slot.ProviderID,
		SlotID:            slot.ID,
		Designation:       designation,
		Status:            models.StatusScheduled,
		MeetingID:         ref.ID,
		MeetingURL:        ref.URL,
		MeetingCredential: ref.Credential,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claim := tx.Model(&models.Slot{}).
			Where("id = ? AND available = ?", slot.ID, true).
			Update("available", false)
		if claim.Error != nil {
			return fmt.Errorf("claim slot: %w", claim.Error)
		}
		if claim.RowsAffected == 0 {
			return fmt.Errorf("slot %s: %w", slot.ID, models.ErrAlreadyBooked)
		}

		if err := tx.Create(&booking).Error; err != nil {
			return fmt.Errorf("create booking: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrAlreadyBooked) {
			telemetry.BookingConflictsTotal.Inc()
		}
		return nil, err
	}

	booking.Slot = slot
	booking.Slot.Available = false

	telemetry.BookingsCreatedTotal.Inc()
	s.logger.Info().
		Str("booking_id", booking.ID).
		Str("candidate_id", candidateID).
		Str("provider_id", slot.ProviderID).
		Str("slot_id", slot.ID).
		Msg("booking created")

	s.bus.Publish(events.EventBookingCreated, events.Payload{
		"booking_id":   booking.ID,
		"candidate_id": candidateID,
		"provider_id":  slot.ProviderID,
		"slot_id":      slot.ID,
	})

	return &booking, nil
}

// Get loads a booking with its slot, restricted to a participant. Lifecycle
// rules are applied before the booking is returned, so callers always see
// current state.
func (s *Service) Get(ctx context.Context, bookingID, userID string) (*models.Booking, error) {
	var booking models.Booking
	err := s.db.WithContext(ctx).Preload("Slot").
		First(&booking, "id = ? AND (candidate_id = ? OR provider_id = ?)", bookingID, userID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("booking %s: %w", bookingID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}

	if _, err := s.engine.Evaluate(ctx, &booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

func (s *Service) candidateDesignation(ctx context.Context, candidateID string) string {
	var profile models.CandidateProfile
	err := s.db.WithContext(ctx).First(&profile, "id = ?", candidateID).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn().Err(err).Str("candidate_id", candidateID).Msg("load candidate profile")
		}
		return ""
	}
	return profile.Designation
}
