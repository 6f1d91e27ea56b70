/*
Copyright (C) 2026 TalentGrid

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package analytics aggregates booking outcomes for reporting.
package analytics

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/talentgrid/talentgrid/internal/models"
)

// Service computes booking statistics.
type Service struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewService creates an analytics service.
func NewService(db *gorm.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "analytics").Logger(),
	}
}

// MonthlyStats is one month of booking outcomes for a provider.
type MonthlyStats struct {
	Month              string  `json:"month"` // "2006-01"
	Total              int     `json:"total"`
	Completed          int     `json:"completed"`
	NoShow             int     `json:"no_show"`
	Cancelled          int     `json:"cancelled"`
	AvgAttendedMinutes float64 `json:"avg_attended_minutes"`
}

// ProviderMonthly returns per-month outcome counts for the provider,
// newest month first. Months are derived from the slot's civil date, so
// the report follows the configured scheduling zone.
func (s *Service) ProviderMonthly(ctx context.Context, providerID string, months int) ([]MonthlyStats, error) {
	if months <= 0 {
		months = 6
	}

	type row struct {
		Month     string
		Status    models.BookingStatus
		Count     int
		AvgAttend float64
	}

	var rows []row
	err := s.db.WithContext(ctx).Model(&models.Booking{}).
		Select("substr(slots.date, 1, 7) AS month, bookings.status AS status, count(*) AS count, avg(bookings.attended_duration_minutes) AS avg_attend").
		Joins("JOIN slots ON slots.id = bookings.slot_id").
		Where("bookings.provider_id = ?", providerID).
		Group("substr(slots.date, 1, 7), bookings.status").
		Order("month DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate bookings: %w", err)
	}

	byMonth := make(map[string]*MonthlyStats)
	var order []string
	for _, r := range rows {
		stats, ok := byMonth[r.Month]
		if !ok {
			stats = &MonthlyStats{Month: r.Month}
			byMonth[r.Month] = stats
			order = append(order, r.Month)
		}

		stats.Total += r.Count
		switch r.Status {
		case models.StatusCompleted:
			stats.Completed += r.Count
			stats.AvgAttendedMinutes = r.AvgAttend
		case models.StatusNoShow:
			stats.NoShow += r.Count
		case models.StatusCancelled:
			stats.Cancelled += r.Count
		}
	}

	out := make([]MonthlyStats, 0, len(order))
	for _, month := range order {
		out = append(out, *byMonth[month])
		if len(out) == months {
			break
		}
	}
	return out, nil
}
