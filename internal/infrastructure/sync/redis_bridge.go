package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"synccode/internal/core/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const bridgeChannel = "synccode:rooms"

// MutationType represents the kind of replicated mutation
type MutationType string

const (
	MutationSet MutationType = "room.set"
	MutationLog MutationType = "room.log"
)

// Mutation is a room change carried over redis pub/sub between instances.
type Mutation struct {
	Type       MutationType            `json:"type"`
	InstanceID string                  `json:"instance_id"`
	Timestamp  time.Time               `json:"timestamp"`
	RoomID     domain.RoomID           `json:"room_id"`
	Key        string                  `json:"key,omitempty"`
	Value      string                  `json:"value,omitempty"`
	Entry      *domain.ExecutionResult `json:"entry,omitempty"`
}

// RedisBridge replicates hub mutations across instances through redis
// pub/sub. Each instance tags what it publishes with its own id and skips
// its own messages on receive, so mutations are applied exactly once per
// instance.
type RedisBridge struct {
	client     *redis.Client
	instanceID string
	logger     *zap.SugaredLogger
	pubsub     *redis.PubSub
}

func NewRedisBridge(client *redis.Client, instanceID string, logger *zap.SugaredLogger) *RedisBridge {
	return &RedisBridge{
		client:     client,
		instanceID: instanceID,
		logger:     logger,
	}
}

func (b *RedisBridge) publish(mutation *Mutation) error {
	mutation.InstanceID = b.instanceID
	mutation.Timestamp = time.Now()

	data, err := json.Marshal(mutation)
	if err != nil {
		return fmt.Errorf("failed to marshal mutation: %w", err)
	}

	if err := b.client.Publish(context.Background(), bridgeChannel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish mutation: %w", err)
	}

	b.logger.Debugw("published mutation",
		"type", mutation.Type,
		"room_id", mutation.RoomID,
		"key", mutation.Key,
	)

	return nil
}

func (b *RedisBridge) PublishSet(roomID domain.RoomID, key, value string) error {
	return b.publish(&Mutation{
		Type:   MutationSet,
		RoomID: roomID,
		Key:    key,
		Value:  value,
	})
}

func (b *RedisBridge) PublishLog(roomID domain.RoomID, result domain.ExecutionResult) error {
	return b.publish(&Mutation{
		Type:   MutationLog,
		RoomID: roomID,
		Entry:  &result,
	})
}

// Subscribe applies mutations from other instances to the hub until ctx is
// cancelled. Blocks; run it in its own goroutine.
func (b *RedisBridge) Subscribe(ctx context.Context, hub *Hub) error {
	if b.pubsub != nil {
		return fmt.Errorf("already subscribed")
	}

	b.pubsub = b.client.Subscribe(ctx, bridgeChannel)
	defer b.pubsub.Close()

	ch := b.pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-ch:
			var mutation Mutation
			if err := json.Unmarshal([]byte(msg.Payload), &mutation); err != nil {
				b.logger.Warnw("failed to unmarshal mutation",
					"error", err,
					"payload", msg.Payload,
				)
				continue
			}

			// Skip mutations from this instance
			if mutation.InstanceID == b.instanceID {
				continue
			}

			switch mutation.Type {
			case MutationSet:
				hub.ApplyRemoteSet(mutation.RoomID, mutation.Key, mutation.Value)
			case MutationLog:
				if mutation.Entry != nil {
					hub.ApplyRemoteLog(mutation.RoomID, *mutation.Entry)
				}
			default:
				b.logger.Warnw("unknown mutation type", "type", mutation.Type)
			}
		}
	}
}

// Close closes the bridge subscription.
func (b *RedisBridge) Close() error {
	if b.pubsub != nil {
		return b.pubsub.Close()
	}
	return nil
}

var _ Bridge = (*RedisBridge)(nil)
