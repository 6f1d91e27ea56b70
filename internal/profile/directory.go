/*
Copyright (C) 2026 TalentGrid

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package profile serves the provider directory candidates browse before
// booking. Designation matching is case-insensitive.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/talentgrid/talentgrid/internal/cache"
	"github.com/talentgrid/talentgrid/internal/events"
	"github.com/talentgrid/talentgrid/internal/models"
)

// Directory lists providers by handled designation.
type Directory struct {
	db     *gorm.DB
	bus    *events.Bus
	cache  *cache.Cache
	logger zerolog.Logger
}

// NewDirectory creates a provider directory.
func NewDirectory(db *gorm.DB, bus *events.Bus, c *cache.Cache, logger zerolog.Logger) *Directory {
	return &Directory{
		db:     db,
		bus:    bus,
		cache:  c,
		logger: logger.With().Str("component", "profile").Logger(),
	}
}

// ListByDesignation returns active providers handling the designation.
// The handled designations live in a JSON column, so filtering happens in
// memory over the active set; the result is cached per designation.
func (d *Directory) ListByDesignation(ctx context.Context, designation string) ([]models.Provider, error) {
	key := strings.ToLower(strings.TrimSpace(designation))
	if key == "" {
		return nil, fmt.Errorf("designation is required: %w", models.ErrInvalidOperation)
	}

	if d.cache != nil {
		var cached []models.Provider
		if d.cache.GetDirectory(ctx, key, &cached) {
			return cached, nil
		}
	}

	var active []models.Provider
	err := d.db.WithContext(ctx).
		Where("active = ?", true).
		Order("years_of_experience DESC, name").
		Find(&active).Error
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}

	matched := make([]models.Provider, 0, len(active))
	for _, p := range active {
		if p.Handles(designation) {
			matched = append(matched, p)
		}
	}

	if d.cache != nil {
		d.cache.SetDirectory(ctx, key, matched)
	}
	return matched, nil
}

// ForCandidate returns the providers matching the candidate's own
// designation.
func (d *Directory) ForCandidate(ctx context.Context, candidateID string) ([]models.Provider, error) {
	var candidate models.CandidateProfile
	err := d.db.WithContext(ctx).First(&candidate, "id = ?", candidateID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("candidate %s: %w", candidateID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load candidate: %w", err)
	}

	return d.ListByDesignation(ctx, candidate.Designation)
}

// Deactivate marks a provider inactive. Existing bookings are untouched;
// only new inventory and claims stop.
func (d *Directory) Deactivate(ctx context.Context, providerID string) error {
	return d.setActive(ctx, providerID, false)
}

// Activate re-enables a provider.
func (d *Directory) Activate(ctx context.Context, providerID string) error {
	return d.setActive(ctx, providerID, true)
}

func (d *Directory) setActive(ctx context.Context, providerID string, active bool) error {
	result := d.db.WithContext(ctx).Model(&models.Provider{}).
		Where("id = ?", providerID).
		Update("active", active)
	if result.Error != nil {
		return fmt.Errorf("update provider: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("provider %s: %w", providerID, models.ErrNotFound)
	}

	if d.cache != nil {
		d.cache.InvalidateDirectory(ctx)
	}
	if d.bus != nil {
		d.bus.Publish(events.EventProviderUpdated, events.Payload{
			"provider_id": providerID,
			"active":      active,
		})
	}
	return nil
}
