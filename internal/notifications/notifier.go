// Package notifications hands activity notifications to the delivery layer.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"xplore/internal/middleware"
	"xplore/internal/models"
	"xplore/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Notifier accepts fire-and-forget notifications. Implementations log and
// count delivery failures; callers never see them.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification)
}

// UserChannel is the Redis channel carrying one user's notifications.
func UserChannel(userID uint) string {
	return fmt.Sprintf("notifications:user:%d", userID)
}

// RedisNotifier publishes notifications into per-user Redis channels.
type RedisNotifier struct {
	rdb *redis.Client
}

// NewRedisNotifier creates a RedisNotifier. A nil client turns it into a no-op.
func NewRedisNotifier(rdb *redis.Client) *RedisNotifier {
	return &RedisNotifier{rdb: rdb}
}

func (n *RedisNotifier) Notify(ctx context.Context, note models.Notification) {
	if n.rdb == nil {
		return
	}
	payload, err := json.Marshal(note)
	if err == nil {
		err = n.rdb.Publish(ctx, UserChannel(note.RecipientID), payload).Err()
	}
	record(ctx, "redis", note, err)
}

// Nop discards every notification.
type Nop struct{}

func (Nop) Notify(context.Context, models.Notification) {}

func record(ctx context.Context, transport string, note models.Notification, err error) {
	result := "success"
	if err != nil {
		result = "failure"
		middleware.Logger.WarnContext(ctx, "notification publish failed",
			slog.String("transport", transport),
			slog.String("type", string(note.Type)),
			slog.Any("recipient_id", note.RecipientID),
			slog.String("error", err.Error()),
		)
	}
	observability.NotificationsSent.WithLabelValues(string(note.Type), transport, result).Inc()
}
