/*
Copyright (C) 2026 TalentGrid

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/talentgrid/talentgrid/internal/events"
	"github.com/talentgrid/talentgrid/internal/models"
)

// Service handles audit logging by subscribing to events and storing audit entries.
type Service struct {
	db     *gorm.DB
	bus    *events.Bus
	logger zerolog.Logger
}

// NewService creates a new audit service.
func NewService(db *gorm.DB, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// Start subscribes to relevant events and logs them as audit entries.
// Blocks until ctx is done.
func (s *Service) Start(ctx context.Context) {
	s.logger.Info().Msg("audit service starting")

	bookingCreated := s.bus.Subscribe(events.EventBookingCreated)
	bookingCompleted := s.bus.Subscribe(events.EventBookingCompleted)
	bookingNoShow := s.bus.Subscribe(events.EventBookingNoShow)
	slotsGenerated := s.bus.Subscribe(events.EventSlotsGenerated)
	slotDeleted := s.bus.Subscribe(events.EventSlotDeleted)

	defer func() {
		s.bus.Unsubscribe(events.EventBookingCreated, bookingCreated)
		s.bus.Unsubscribe(events.EventBookingCompleted, bookingCompleted)
		s.bus.Unsubscribe(events.EventBookingNoShow, bookingNoShow)
		s.bus.Unsubscribe(events.EventSlotsGenerated, slotsGenerated)
		s.bus.Unsubscribe(events.EventSlotDeleted, slotDeleted)
	}()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("audit service stopping")
			return

		case payload := <-bookingCreated:
			s.logAuditEntry(ctx, models.AuditActionBookingCreated, "booking", payload)

		case payload := <-bookingCompleted:
			s.logAuditEntry(ctx, models.AuditActionBookingComplete, "booking", payload)

		case payload := <-bookingNoShow:
			s.logAuditEntry(ctx, models.AuditActionBookingNoShow, "booking", payload)

		case payload := <-slotsGenerated:
			s.logAuditEntry(ctx, models.AuditActionSlotsGenerated, "provider", payload)

		case payload := <-slotDeleted:
			s.logAuditEntry(ctx, models.AuditActionSlotDeleted, "slot", payload)
		}
	}
}

// logAuditEntry creates an audit log entry from an event payload.
func (s *Service) logAuditEntry(ctx context.Context, action models.AuditAction, resourceType string, payload events.Payload) {
	entry := &models.AuditLog{
		ID:           uuid.NewString(),
		Timestamp:    time.Now(),
		Action:       action,
		ResourceType: resourceType,
		Details:      make(map[string]any),
	}

	if userID, ok := payload["user_id"].(string); ok && userID != "" {
		entry.UserID = &userID
	}
	if ipAddress, ok := payload["ip_address"].(string); ok {
		entry.IPAddress = ipAddress
	}

	switch resourceType {
	case "booking":
		entry.ResourceID, _ = payload["booking_id"].(string)
	case "slot":
		entry.ResourceID, _ = payload["slot_id"].(string)
	case "provider":
		entry.ResourceID, _ = payload["provider_id"].(string)
	}

	for k, v := range payload {
		switch k {
		case "user_id", "ip_address":
		default:
			entry.Details[k] = v
		}
	}

	if err := s.Log(ctx, entry); err != nil {
		s.logger.Error().Err(err).
			Str("action", string(action)).
			Msg("failed to log audit entry")
	}
}

// Log records an audit entry directly (for non-event-bus actions).
func (s *Service) Log(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.Details == nil {
		entry.Details = make(map[string]any)
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return err
	}

	s.logger.Debug().
		Str("action", string(entry.Action)).
		Str("id", entry.ID).
		Msg("audit entry logged")

	return nil
}

// QueryFilters defines filters for querying audit logs.
type QueryFilters struct {
	UserID    *string
	Action    *models.AuditAction
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

// Query retrieves audit logs with filters, most recent first.
func (s *Service) Query(ctx context.Context, filters QueryFilters) ([]models.AuditLog, int64, error) {
	var logs []models.AuditLog
	var total int64

	query := s.db.WithContext(ctx).Model(&models.AuditLog{})

	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	if filters.Action != nil {
		query = query.Where("action = ?", *filters.Action)
	}
	if filters.StartTime != nil {
		query = query.Where("timestamp >= ?", *filters.StartTime)
	}
	if filters.EndTime != nil {
		query = query.Where("timestamp <= ?", *filters.EndTime)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	} else {
		query = query.Limit(100)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	if err := query.Order("timestamp DESC").Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}
