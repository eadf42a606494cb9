package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Channel is the Redis pub/sub channel the notification service consumes.
const Channel = "NOTIFICATION_EVENTS"

// RedisNotifier publishes events as JSON on a Redis channel.
type RedisNotifier struct {
	rdb *redis.Client
}

// NewRedisNotifier returns a configured RedisNotifier.
func NewRedisNotifier(rdb *redis.Client) *RedisNotifier {
	return &RedisNotifier{rdb: rdb}
}

// Notify publishes the event. Failures are logged, never surfaced.
func (n *RedisNotifier) Notify(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		slog.Warn("notify marshal failed", "type", ev.Type, "err", err)
		return
	}
	if err := n.rdb.Publish(ctx, Channel, payload).Err(); err != nil {
		slog.Warn("notify publish failed", "type", ev.Type, "err", err)
	}
}
