package notify

import (
	"context"
	"fmt"

	"github.com/yourorg/pairs-analytics/internal/model"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// RedisNotifier publishes each alert as JSON on a pub/sub channel
type RedisNotifier struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisNotifier creates a new Redis notifier
func NewRedisNotifier(client *redis.Client, channel string, logger *zap.Logger) *RedisNotifier {
	return &RedisNotifier{
		client:  client,
		channel: channel,
		logger:  logger,
	}
}

// Notify implements Notifier
func (n *RedisNotifier) Notify(ctx context.Context, alerts []model.TriggeredAlert) error {
	pipe := n.client.Pipeline()
	for _, a := range alerts {
		payload, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("marshal alert %d: %w", a.Rule.ID, err)
		}
		pipe.Publish(ctx, n.channel, payload)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		n.logger.Error("Failed to publish alerts",
			zap.String("channel", n.channel),
			zap.Error(err))
		return err
	}

	n.logger.Debug("Alerts published", zap.String("channel", n.channel), zap.Int("count", len(alerts)))
	return nil
}
