package game

import (
	"context"

	json "github.com/goccy/go-json"

	"drawdash_backend/internal/logger"
	"drawdash_backend/internal/metrics"
	"drawdash_backend/internal/store"
)

// RoomTopic is the pub/sub channel every client of a room subscribes to.
func RoomTopic(roomID string) string { return "room:" + roomID }

// UserTopic is the private pub/sub channel of one user.
func UserTopic(userID string) string { return "user:" + userID }

// Broadcaster fans messages out to room and user topics. A publish failure
// never aborts a state transition; the engine logs and moves on.
type Broadcaster interface {
	Broadcast(ctx context.Context, roomID string, msg Message)
	// BroadcastExcept delivers to everyone in the room except one user.
	BroadcastExcept(ctx context.Context, roomID, exceptUserID string, msg Message)
	SendToUser(ctx context.Context, userID string, msg Message)
}

// Envelope is what actually travels on the bus. Exclusion is applied by the
// relaying connection handler, since pub/sub has no per-subscriber filtering.
type Envelope struct {
	Exclude string  `json:"exclude,omitempty"`
	Msg     Message `json:"msg"`
}

type redisBroadcaster struct {
	store *store.Store
}

// NewBroadcaster returns the Redis pub/sub backed Broadcaster.
func NewBroadcaster(s *store.Store) Broadcaster {
	return &redisBroadcaster{store: s}
}

func (b *redisBroadcaster) publish(ctx context.Context, topic string, env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		logger.Error("broadcast marshal failed", "topic", topic, "type", env.Msg.Type, "err", err)
		return
	}
	if err := b.store.Publish(ctx, topic, data); err != nil {
		logger.Error("broadcast publish failed", "topic", topic, "type", env.Msg.Type, "err", err)
		return
	}
	metrics.Broadcasts.WithLabelValues(env.Msg.Type).Inc()
}

func (b *redisBroadcaster) Broadcast(ctx context.Context, roomID string, msg Message) {
	b.publish(ctx, RoomTopic(roomID), Envelope{Msg: msg})
}

func (b *redisBroadcaster) BroadcastExcept(ctx context.Context, roomID, exceptUserID string, msg Message) {
	b.publish(ctx, RoomTopic(roomID), Envelope{Exclude: exceptUserID, Msg: msg})
}

func (b *redisBroadcaster) SendToUser(ctx context.Context, userID string, msg Message) {
	b.publish(ctx, UserTopic(userID), Envelope{Msg: msg})
}
