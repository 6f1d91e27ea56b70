/*
Copyright (C) 2026 TalentGrid

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	ws "nhooyr.io/websocket"

	"github.com/talentgrid/talentgrid/internal/attendance"
	"github.com/talentgrid/talentgrid/internal/events"
	"github.com/talentgrid/talentgrid/internal/models"
	"github.com/talentgrid/talentgrid/internal/telemetry"
)

// participantFor maps the authenticated user onto their side of the booking.
func participantFor(userID string, b *models.Booking) attendance.Participant {
	switch userID {
	case b.ProviderID:
		return attendance.ParticipantProvider
	case b.CandidateID:
		return attendance.ParticipantCandidate
	default:
		return ""
	}
}

// presenceEventTypes are the bus events streamed over a presence socket.
var presenceEventTypes = []events.EventType{
	events.EventAttendanceJoined,
	events.EventAttendanceLeft,
	events.EventBookingCompleted,
	events.EventBookingNoShow,
}

// handleBookingPresence streams live attendance changes for one booking over
// a WebSocket. Only the booking's participants may subscribe. Opening the
// socket records the caller's join; closing it records the leave.
func (a *API) handleBookingPresence(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingID")
	claims := mustClaims(r)

	found, err := a.bookings.Get(r.Context(), bookingID, claims.UserID)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}

	ctx := r.Context()
	conn, err := ws.Accept(w, r, &ws.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		a.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	telemetry.APIActiveConnections.Inc()
	defer telemetry.APIActiveConnections.Dec()

	if participant := participantFor(claims.UserID, found); participant.Valid() {
		if _, err := a.tracker.RecordJoin(ctx, bookingID, participant); err != nil {
			// Outside the join window or already terminal; the socket still
			// streams, it just doesn't count as presence.
			a.logger.Debug().Err(err).Str("booking_id", bookingID).Msg("presence join not recorded")
		} else {
			defer func() {
				// The request context is gone once the socket closes.
				leaveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if _, err := a.tracker.RecordLeave(leaveCtx, bookingID, participant); err != nil {
					a.logger.Debug().Err(err).Str("booking_id", bookingID).Msg("presence leave not recorded")
				}
			}()
		}
	}

	subscribers := make([]events.Subscriber, 0, len(presenceEventTypes))
	for _, eventType := range presenceEventTypes {
		subscribers = append(subscribers, a.bus.Subscribe(eventType))
	}
	defer func() {
		for i, eventType := range presenceEventTypes {
			a.bus.Unsubscribe(eventType, subscribers[i])
		}
	}()

	// Snapshot first so late subscribers see the current state.
	if err := a.writePresenceEvent(ctx, conn, "snapshot", events.Payload{
		"booking_id":          found.ID,
		"status":              found.Status,
		"provider_joined_at":  found.ProviderJoinedAt,
		"candidate_joined_at": found.CandidateJoinedAt,
	}); err != nil {
		return
	}

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "context cancelled")
			return
		case <-ticker.C:
			if err := conn.Write(ctx, ws.MessageText, []byte(`{"type":"ping"}`)); err != nil {
				conn.Close(ws.StatusInternalError, "write failed")
				return
			}
		default:
			sent := false
			for i, sub := range subscribers {
				select {
				case payload := <-sub:
					if payload["booking_id"] != bookingID {
						continue
					}
					if err := a.writePresenceEvent(ctx, conn, string(presenceEventTypes[i]), payload); err != nil {
						a.logger.Error().Err(err).Msg("websocket write failed")
						conn.Close(ws.StatusInternalError, "write failed")
						return
					}
					sent = true
				default:
				}
			}
			if !sent {
				time.Sleep(100 * time.Millisecond)
			}
		}
	}
}

func (a *API) writePresenceEvent(ctx context.Context, conn *ws.Conn, eventType string, payload events.Payload) error {
	data := map[string]any{
		"type":    eventType,
		"payload": payload,
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return conn.Write(ctx, ws.MessageText, encoded)
}
