package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisSink publishes alerts as JSON on a Redis pub/sub channel so that
// connected presentation clients can show them as banners
type RedisSink struct {
	rdb     *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisSink connects to addr and verifies the connection
func NewRedisSink(ctx context.Context, addr, channel string, logger *zap.Logger) (*RedisSink, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if channel == "" {
		channel = "adherence-alerts"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewRedisSinkFromClient(rdb, channel, logger), nil
}

// NewRedisSinkFromClient wraps an existing client
func NewRedisSinkFromClient(rdb *redis.Client, channel string, logger *zap.Logger) *RedisSink {
	return &RedisSink{
		rdb:     rdb,
		channel: channel,
		logger:  logger,
	}
}

// Send publishes the alert
func (s *RedisSink) Send(ctx context.Context, a Alert) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}
	receivers, err := s.rdb.Publish(ctx, s.channel, raw).Result()
	if err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}
	s.logger.Debug("alert published",
		zap.String("channel", s.channel),
		zap.String("kind", string(a.Kind)),
		zap.Int64("receivers", receivers),
	)
	return nil
}

// Subscribe forwards alerts published on the channel to onAlert until ctx ends
func (s *RedisSink) Subscribe(ctx context.Context, onAlert func(Alert)) error {
	sub := s.rdb.Subscribe(ctx, s.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var a Alert
				if err := json.Unmarshal([]byte(m.Payload), &a); err != nil {
					s.logger.Warn("bad alert payload", zap.Error(err))
					continue
				}
				onAlert(a)
			}
		}
	}()
	return nil
}

// Close closes the underlying client
func (s *RedisSink) Close() error {
	return s.rdb.Close()
}

var _ Sink = (*RedisSink)(nil)
