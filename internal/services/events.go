package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/brandonhuynh1/signage-api/internal/database"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

// PlayerEventsChannel is the Redis channel carrying player events
const PlayerEventsChannel = "players:events"

// Player event types
const (
	EventSessionStarted    = "session_started"
	EventSessionEnded      = "session_ended"
	EventSessionReconciled = "session_reconciled"
	EventPlaylistChanged   = "playlist_changed"
)

// PlayerEvent is published whenever a player's state changes
type PlayerEvent struct {
	Type       string    `json:"type"`
	PlayerID   int64     `json:"playerId"`
	SessionID  int64     `json:"sessionId,omitempty"`
	PlaylistID *int64    `json:"playlistId,omitempty"`
	At         time.Time `json:"at"`
}

// EventBus fans player events out over Redis pub/sub
type EventBus struct {
	redis  *database.RedisClient
	logger zerolog.Logger
}

// NewEventBus creates a new event bus
func NewEventBus(redis *database.RedisClient, logger zerolog.Logger) *EventBus {
	return &EventBus{
		redis:  redis,
		logger: logger.With().Str("service", "events").Logger(),
	}
}

// Publish sends an event. Failures are logged, not returned.
func (b *EventBus) Publish(ctx context.Context, event PlayerEvent) {
	if b == nil || b.redis == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Error().Err(err).Msg("Failed to marshal player event")
		return
	}
	if err := b.redis.Publish(ctx, PlayerEventsChannel, payload); err != nil {
		b.logger.Warn().Err(err).Str("type", event.Type).Msg("Failed to publish player event")
	}
}

// Subscribe listens for player events
func (b *EventBus) Subscribe(ctx context.Context) *redis.PubSub {
	return b.redis.Subscribe(ctx, PlayerEventsChannel)
}
