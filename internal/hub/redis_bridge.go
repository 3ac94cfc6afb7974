package hub

import (
	"context"
	"encoding/json"
	"log"

	redisModels "converse/internal/models/redis"

	"github.com/redis/go-redis/v9"
)

// RedisBridge carries room events across processes. Broadcast publishes to
// the shared channel; Run feeds everything received back into the local hub,
// so a message sent on any node reaches rooms on every node.
type RedisBridge struct {
	ctx   context.Context
	redis *redis.Client
	hub   *Hub
}

func NewRedisBridge(ctx context.Context, redis *redis.Client, hub *Hub) *RedisBridge {
	return &RedisBridge{
		ctx:   ctx,
		redis: redis,
		hub:   hub,
	}
}

func (rb *RedisBridge) Broadcast(room, event string, payload any) error {
	return rb.publish(redisModels.RedisPublishedEvent{
		Event:   event,
		Room:    room,
		Payload: payload,
	})
}

func (rb *RedisBridge) BroadcastExcept(room, event string, payload any, excludeUserID uint) error {
	return rb.publish(redisModels.RedisPublishedEvent{
		Event:         event,
		Room:          room,
		Payload:       payload,
		ExcludeUserID: excludeUserID,
	})
}

func (rb *RedisBridge) publish(event redisModels.RedisPublishedEvent) error {
	jsonEvent, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return rb.redis.Publish(rb.ctx, redisModels.REDIS_CHANNEL_CHAT, jsonEvent).Err()
}

// Run blocks consuming the shared channel. Call it from its own goroutine.
func (rb *RedisBridge) Run() {
	pubsub := rb.redis.Subscribe(rb.ctx, redisModels.REDIS_CHANNEL_CHAT)
	if _, err := pubsub.Receive(rb.ctx); err != nil {
		log.Fatalf("Could not subscribe to channel: %v", err)
	}
	for msg := range pubsub.Channel() {
		var event redisModels.RedisPublishedEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			log.Printf("Error unmarshalling event: %v", err)
			continue
		}
		rb.hub.BroadcastExcept(event.Room, event.Event, event.Payload, event.ExcludeUserID)
	}
}
