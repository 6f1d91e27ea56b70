/*
Copyright (C) 2026 TalentGrid

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/talentgrid/talentgrid/internal/events"
)

// SubjectPrefix is prepended to every published event type.
const SubjectPrefix = "talentgrid.events."

// Bridge republishes in-process scheduling events onto NATS so external
// consumers (mailers, calendar sync, analytics pipelines) can react
// without holding a connection to this process.
type Bridge struct {
	conn   *nats.Conn
	bus    *events.Bus
	logger zerolog.Logger
	nodeID string
}

// message is the wire format for bridged events.
type message struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"`
}

// NewBridge connects to NATS and returns a bridge over the given bus.
func NewBridge(natsURL string, bus *events.Bus, logger zerolog.Logger) (*Bridge, error) {
	conn, err := nats.Connect(natsURL,
		nats.Name("talentgrid"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	return &Bridge{
		conn:   conn,
		bus:    bus,
		logger: logger.With().Str("component", "eventbus").Logger(),
		nodeID: uuid.NewString(),
	}, nil
}

// bridgedTypes are the event types forwarded to NATS. Cache invalidation
// stays in-process.
var bridgedTypes = []events.EventType{
	events.EventBookingCreated,
	events.EventBookingCompleted,
	events.EventBookingNoShow,
	events.EventAttendanceJoined,
	events.EventAttendanceLeft,
	events.EventSlotsGenerated,
	events.EventSlotDeleted,
}

// Run subscribes to the local bus and forwards events until ctx is done.
func (b *Bridge) Run(ctx context.Context) {
	for _, eventType := range bridgedTypes {
		sub := b.bus.Subscribe(eventType)
		go b.forward(ctx, eventType, sub)
	}
	<-ctx.Done()
}

func (b *Bridge) forward(ctx context.Context, eventType events.EventType, sub events.Subscriber) {
	subject := SubjectPrefix + string(eventType)
	for {
		select {
		case <-ctx.Done():
			b.bus.Unsubscribe(eventType, sub)
			return
		case payload, ok := <-sub:
			if !ok {
				return
			}
			data, err := json.Marshal(message{
				EventType: eventType,
				Payload:   payload,
				Timestamp: time.Now(),
				NodeID:    b.nodeID,
				MessageID: uuid.NewString(),
			})
			if err != nil {
				b.logger.Error().Err(err).Str("subject", subject).Msg("marshal event")
				continue
			}
			if err := b.conn.Publish(subject, data); err != nil {
				b.logger.Warn().Err(err).Str("subject", subject).Msg("publish event")
			}
		}
	}
}

// Close drains the connection, letting buffered publishes flush.
func (b *Bridge) Close() error {
	if b.conn == nil {
		return nil
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
		return err
	}
	return nil
}
