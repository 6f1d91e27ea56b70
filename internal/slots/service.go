/*
Copyright (C) 2026 TalentGrid

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package slots manages provider time-slot inventory.
package slots

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/talentgrid/talentgrid/internal/cache"
	"github.com/talentgrid/talentgrid/internal/events"
	"github.com/talentgrid/talentgrid/internal/models"
	"github.com/talentgrid/talentgrid/internal/telemetry"
)

// GenerationPolicy controls the shape of generated inventory.
type GenerationPolicy struct {
	WindowDays       int
	DayStartHour     int
	DayEndHour       int
	IncrementMinutes int

	// ExcludedWeekday gets no slots. The zero value is Sunday, the stock
	// rest day.
	ExcludedWeekday time.Weekday
}

// Service provides slot inventory operations.
type Service struct {
	db     *gorm.DB
	bus    *events.Bus
	cache  *cache.Cache
	logger zerolog.Logger
	loc    *time.Location
	policy GenerationPolicy

	// BookingLead is how far before its start a slot stops being bookable.
	lead time.Duration

	now func() time.Time
}

// NewService creates a slot inventory service.
func NewService(db *gorm.DB, bus *events.Bus, c *cache.Cache, loc *time.Location, policy GenerationPolicy, lead time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		cache:  c,
		logger: logger.With().Str("component", "slots").Logger(),
		loc:    loc,
		policy: policy,
		lead:   lead,
		now:    time.Now,
	}
}

// Generate creates the provider's slot inventory for the coming window.
// Slots that already exist for a (date, start) pair are left untouched, so
// repeated generation is idempotent and never resurrects claimed slots.
// Returns the number of slots actually created.
func (s *Service) Generate(ctx context.Context, providerID string) (int, error) {
	provider, err := s.loadProvider(ctx, providerID)
	if err != nil {
		return 0, err
	}
	if !provider.Active {
		return 0, fmt.Errorf("generate slots: %w", models.ErrProviderInactive)
	}

	now := s.now().In(s.loc)
	candidates := s.buildWindow(now)
	if len(candidates) == 0 {
		return 0, nil
	}

	slots := make([]models.Slot, 0, len(candidates))
	for _, c := range candidates {
		slots = append(slots, models.Slot{
			ID:         uuid.NewString(),
			ProviderID: providerID,
			Date:       c.date,
			StartTime:  c.start,
			EndTime:    c.end,
			Available:  true,
			Managed:    true,
		})
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(slots, 200)
	if result.Error != nil {
		return 0, fmt.Errorf("generate slots: %w", result.Error)
	}

	created := int(result.RowsAffected)
	telemetry.SlotsGeneratedTotal.Add(float64(created))

	s.logger.Info().
		Str("provider_id", providerID).
		Int("created", created).
		Int("window_days", s.policy.WindowDays).
		Msg("slot inventory generated")

	if created > 0 {
		s.bus.Publish(events.EventSlotsGenerated, events.Payload{
			"provider_id": providerID,
			"created":     created,
		})
	}

	return created, nil
}

type candidateSlot struct {
	date  string
	start string
	end   string
}

// buildWindow enumerates the civil (date, start, end) triples for the
// generation window. Today's slots that would already be unbookable are
// skipped up front.
func (s *Service) buildWindow(now time.Time) []candidateSlot {
	cutoff := now.Add(s.lead)

	var out []candidateSlot
	for day := 0; day < s.policy.WindowDays; day++ {
		date := now.AddDate(0, 0, day)
		if date.Weekday() == s.policy.ExcludedWeekday {
			continue
		}
		dayStart := time.Date(date.Year(), date.Month(), date.Day(), s.policy.DayStartHour, 0, 0, 0, s.loc)
		dayEnd := time.Date(date.Year(), date.Month(), date.Day(), s.policy.DayEndHour, 0, 0, 0, s.loc)

		step := time.Duration(s.policy.IncrementMinutes) * time.Minute
		for start := dayStart; start.Add(step).Compare(dayEnd) <= 0; start = start.Add(step) {
			if start.Before(cutoff) {
				continue
			}
			out = append(out, candidateSlot{
				date:  models.CivilDate(start),
				start: start.Format(models.SlotTimeLayout),
				end:   start.Add(step).Format(models.SlotTimeLayout),
			})
		}
	}
	return out
}

// ListBookable returns the provider's open slots that are still far enough
// out to book, ordered chronologically.
func (s *Service) ListBookable(ctx context.Context, providerID string) ([]models.Slot, error) {
	if _, err := s.loadProvider(ctx, providerID); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if cached, ok := s.cache.GetBookableSlots(ctx, providerID); ok {
			return cached, nil
		}
	}

	now := s.now().In(s.loc)
	cutoff := now.Add(s.lead)
	today := models.CivilDate(cutoff)
	clock := cutoff.Format(models.SlotTimeLayout)

	var slots []models.Slot
	err := s.db.WithContext(ctx).
		Where("provider_id = ? AND available = ?", providerID, true).
		Where("date > ? OR (date = ? AND start_time >= ?)", today, today, clock).
		Order("date, start_time").
		Find(&slots).Error
	if err != nil {
		return nil, fmt.Errorf("list bookable slots: %w", err)
	}

	if s.cache != nil {
		s.cache.SetBookableSlots(ctx, providerID, slots)
	}
	return slots, nil
}

// ListAll returns every slot the provider owns in the current window and
// beyond, regardless of availability.
func (s *Service) ListAll(ctx context.Context, providerID string) ([]models.Slot, error) {
	if _, err := s.loadProvider(ctx, providerID); err != nil {
		return nil, err
	}

	var slots []models.Slot
	err := s.db.WithContext(ctx).
		Where("provider_id = ?", providerID).
		Order("date, start_time").
		Find(&slots).Error
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return slots, nil
}

// Delete removes one of the provider's open generated slots. A claimed slot
// is part of a booking's history and cannot be deleted; neither can a slot
// created outside the generator.
func (s *Service) Delete(ctx context.Context, providerID, slotID string) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND provider_id = ? AND available = ? AND managed = ?", slotID, providerID, true, true).
		Delete(&models.Slot{})
	if result.Error != nil {
		return fmt.Errorf("delete slot: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Slot{}).
			Where("id = ? AND provider_id = ?", slotID, providerID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("delete slot: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("slot is claimed or unmanaged: %w", models.ErrInvalidOperation)
		}
		return fmt.Errorf("delete slot: %w", models.ErrNotFound)
	}

	s.logger.Info().Str("provider_id", providerID).Str("slot_id", slotID).Msg("slot deleted")

	s.bus.Publish(events.EventSlotDeleted, events.Payload{
		"provider_id": providerID,
		"slot_id":     slotID,
	})
	return nil
}

func (s *Service) loadProvider(ctx context.Context, providerID string) (*models.Provider, error) {
	var provider models.Provider
	err := s.db.WithContext(ctx).First(&provider, "id = ?", providerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("provider %s: %w", providerID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load provider: %w", err)
	}
	return &provider, nil
}
