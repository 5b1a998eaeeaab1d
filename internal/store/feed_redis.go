package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"physiotrack-backend/internal/model"
)

// RedisFeed publishes bed rows as JSON on a Redis pub/sub channel.
type RedisFeed struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisFeed creates a Redis change feed.
func NewRedisFeed(client *redis.Client, channel string, logger *zap.Logger) *RedisFeed {
	return &RedisFeed{client: client, channel: channel, logger: logger}
}

// Publish announces a changed row.
func (f *RedisFeed) Publish(ctx context.Context, row model.BedRow) error {
	payload, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode bed %d: %w", row.ID, err)
	}
	if err := f.client.Publish(ctx, f.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", f.channel, err)
	}
	return nil
}

// Subscribe delivers rows published on the channel to fn. Malformed
// payloads are logged and skipped. Any connection error ends the
// subscription: pub/sub drops messages while disconnected, so the caller has
// to resubscribe and fetch again rather than rely on a silent reconnect.
func (f *RedisFeed) Subscribe(ctx context.Context, fn func(model.BedRow)) (Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	pubsub := f.client.Subscribe(ctx, f.channel)
	// Wait for the subscription to be confirmed before reporting success.
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", f.channel, err)
	}

	sub := newFeedSubscription(cancel)
	// A blocked Receive only returns once the connection is closed.
	context.AfterFunc(ctx, func() { _ = pubsub.Close() })
	go func() {
		for {
			msg, err := pubsub.Receive(ctx)
			if err != nil {
				if ctx.Err() == nil {
					sub.fail(fmt.Errorf("receive from %s: %w", f.channel, err))
				}
				return
			}

			switch m := msg.(type) {
			case *redis.Message:
				var row model.BedRow
				if err := json.Unmarshal([]byte(m.Payload), &row); err != nil {
					f.logger.Warn("malformed bed change notification",
						zap.String("channel", m.Channel),
						zap.Error(err),
					)
					continue
				}
				fn(row)
			case *redis.Subscription:
				f.logger.Debug("redis subscription event", zap.String("kind", m.Kind), zap.String("channel", m.Channel))
			}
		}
	}()

	return sub, nil
}
