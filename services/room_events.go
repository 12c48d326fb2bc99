package services

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"monkArenaAPI/internal/core"
)

// RoomEvents is the realtime change fan-out for rooms, backed by Redis
// Pub/Sub. Every membership or invite change publishes to the room's
// channel; room views subscribe and silently refresh on each message.
type RoomEvents struct {
	rdb *redis.Client
}

// RoomEventSink is the publish side of RoomEvents. Services hold the
// sink rather than the concrete type so tests can record the fan-out.
type RoomEventSink interface {
	PublishRoomChange(ctx context.Context, roomID uuid.UUID) error
}

func NewRoomEvents(rdb *redis.Client) *RoomEvents {
	return &RoomEvents{rdb: rdb}
}

func roomChannel(roomID uuid.UUID) string {
	return "room:" + roomID.String()
}

// PublishRoomChange tells every subscriber of the room to re-fetch.
// The payload carries no data on purpose; subscribers always reload
// from the store, so a dropped or duplicated message is harmless.
func (e *RoomEvents) PublishRoomChange(ctx context.Context, roomID uuid.UUID) error {
	if err := e.rdb.Publish(ctx, roomChannel(roomID), "changed").Err(); err != nil {
		return fmt.Errorf("failed to publish room change: %w", err)
	}
	return nil
}

// SubscribeRoom opens a subscription for one room. The returned handle
// must be closed; it owns a Redis connection.
func (e *RoomEvents) SubscribeRoom(roomID uuid.UUID, onChange func()) (core.Subscription, error) {
	pubsub := e.rdb.Subscribe(context.Background(), roomChannel(roomID))

	// Force the SUBSCRIBE round-trip so a bad connection fails here,
	// not silently in the receive loop.
	if _, err := pubsub.Receive(context.Background()); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to room %s: %w", roomID, err)
	}

	go func() {
		for range pubsub.Channel() {
			onChange()
		}
	}()

	return &roomSubscription{pubsub: pubsub, roomID: roomID}, nil
}

type roomSubscription struct {
	pubsub *redis.PubSub
	roomID uuid.UUID
}

// Close unsubscribes and releases the connection. Closing twice is a
// no-op as far as the caller is concerned.
func (s *roomSubscription) Close() error {
	if err := s.pubsub.Close(); err != nil && err != redis.ErrClosed {
		log.Printf("RoomEvents: failed to close subscription for room %s: %v", s.roomID, err)
		return err
	}
	return nil
}
