/*
Copyright (C) 2026 TalentGrid

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package agenda builds role-specific booking views. Reads are the only
// place overdue lifecycle transitions get applied, so both views sweep
// their result set through the engine before partitioning.
package agenda

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/talentgrid/talentgrid/internal/lifecycle"
	"github.com/talentgrid/talentgrid/internal/models"
)

// CandidateBooking is one booking as the candidate sees it.
type CandidateBooking struct {
	models.Booking
	// CanJoin is true while the room is open for the candidate.
	CanJoin bool `json:"can_join"`
}

// ProviderBooking is one booking as the owning provider sees it.
type ProviderBooking struct {
	models.Booking
	// AllowComplete is true once the provider may manually complete.
	AllowComplete bool `json:"allow_complete"`
	// HasFeedback is true when the provider already filed feedback.
	HasFeedback bool `json:"has_feedback"`
	CanJoin     bool `json:"can_join"`
}

// CandidateAgenda partitions the candidate's bookings by outcome. Upcoming
// is ascending, completed and missed are most recent first.
type CandidateAgenda struct {
	Upcoming  []CandidateBooking `json:"upcoming"`
	Completed []CandidateBooking `json:"completed"`
	Missed    []CandidateBooking `json:"missed"`
}

// ProviderAgenda partitions the provider's bookings by outcome.
type ProviderAgenda struct {
	Upcoming  []ProviderBooking `json:"upcoming"`
	Completed []ProviderBooking `json:"completed"`
	Missed    []ProviderBooking `json:"missed"`
}

// Service assembles agendas.
type Service struct {
	db     *gorm.DB
	engine *lifecycle.Engine
	logger zerolog.Logger
	loc    *time.Location

	now func() time.Time
}

// NewService creates an agenda service.
func NewService(db *gorm.DB, engine *lifecycle.Engine, loc *time.Location, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		engine: engine,
		logger: logger.With().Str("component", "agenda").Logger(),
		loc:    loc,
		now:    time.Now,
	}
}

// ForCandidate returns the candidate's partitioned bookings.
func (s *Service) ForCandidate(ctx context.Context, candidateID string) (*CandidateAgenda, error) {
	bookings, err := s.loadAndSweep(ctx, "candidate_id = ?", candidateID)
	if err != nil {
		return nil, err
	}

	now := s.now().In(s.loc)
	agenda := &CandidateAgenda{
		Upcoming:  []CandidateBooking{},
		Completed: []CandidateBooking{},
		Missed:    []CandidateBooking{},
	}
	for _, b := range bookings {
		view := CandidateBooking{Booking: b, CanJoin: s.canJoin(&b, now)}
		switch b.Status {
		case models.StatusScheduled:
			agenda.Upcoming = append(agenda.Upcoming, view)
		case models.StatusCompleted:
			agenda.Completed = append(agenda.Completed, view)
		default:
			agenda.Missed = append(agenda.Missed, view)
		}
	}

	sortCandidate(agenda.Upcoming, true)
	sortCandidate(agenda.Completed, false)
	sortCandidate(agenda.Missed, false)
	return agenda, nil
}

// ForProvider returns the provider's bookings with management flags.
func (s *Service) ForProvider(ctx context.Context, providerID string) (*ProviderAgenda, error) {
	bookings, err := s.loadAndSweep(ctx, "provider_id = ?", providerID)
	if err != nil {
		return nil, err
	}

	feedback, err := s.feedbackIndex(ctx, bookings)
	if err != nil {
		return nil, err
	}

	now := s.now().In(s.loc)
	agenda := &ProviderAgenda{
		Upcoming:  []ProviderBooking{},
		Completed: []ProviderBooking{},
		Missed:    []ProviderBooking{},
	}
	for _, b := range bookings {
		view := ProviderBooking{
			Booking:       b,
			AllowComplete: s.engine.AllowComplete(&b),
			HasFeedback:   feedback[b.ID],
			CanJoin:       s.canJoin(&b, now),
		}
		switch b.Status {
		case models.StatusScheduled:
			agenda.Upcoming = append(agenda.Upcoming, view)
		case models.StatusCompleted:
			agenda.Completed = append(agenda.Completed, view)
		default:
			agenda.Missed = append(agenda.Missed, view)
		}
	}

	sortProvider(agenda.Upcoming, true)
	sortProvider(agenda.Completed, false)
	sortProvider(agenda.Missed, false)
	return agenda, nil
}

func (s *Service) loadAndSweep(ctx context.Context, query string, arg any) ([]models.Booking, error) {
	var bookings []models.Booking
	if err := s.db.WithContext(ctx).Preload("Slot").Where(query, arg).Find(&bookings).Error; err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}
	s.engine.Sweep(ctx, bookings)
	return bookings, nil
}

// canJoin reports whether the room is open: from JoinWindowBefore ahead of
// the start until the no-show grace runs out.
func (s *Service) canJoin(b *models.Booking, now time.Time) bool {
	if b.Status != models.StatusScheduled {
		return false
	}
	policy := s.engine.Policy()
	opens := b.Slot.StartsAt(s.loc).Add(-policy.JoinWindowBefore)
	closes := b.Slot.EndsAt(s.loc).Add(policy.NoShowGrace)
	return !now.Before(opens) && !now.After(closes)
}

func (s *Service) feedbackIndex(ctx context.Context, bookings []models.Booking) (map[string]bool, error) {
	index := make(map[string]bool, len(bookings))
	if len(bookings) == 0 {
		return index, nil
	}

	ids := make([]string, 0, len(bookings))
	for _, b := range bookings {
		ids = append(ids, b.ID)
	}

	var withFeedback []string
	err := s.db.WithContext(ctx).Model(&models.Feedback{}).
		Where("booking_id IN ?", ids).
		Pluck("booking_id", &withFeedback).Error
	if err != nil {
		return nil, fmt.Errorf("load feedback index: %w", err)
	}

	for _, id := range withFeedback {
		index[id] = true
	}
	return index, nil
}

func sortCandidate(views []CandidateBooking, ascending bool) {
	sort.SliceStable(views, func(i, j int) bool {
		if ascending {
			return slotKey(&views[i].Booking) < slotKey(&views[j].Booking)
		}
		return slotKey(&views[i].Booking) > slotKey(&views[j].Booking)
	})
}

func sortProvider(views []ProviderBooking, ascending bool) {
	sort.SliceStable(views, func(i, j int) bool {
		if ascending {
			return slotKey(&views[i].Booking) < slotKey(&views[j].Booking)
		}
		return slotKey(&views[i].Booking) > slotKey(&views[j].Booking)
	})
}

// slotKey orders bookings chronologically; civil date and clock strings
// compare correctly as text.
func slotKey(b *models.Booking) string {
	return b.Slot.Date + " " + b.Slot.StartTime
}
