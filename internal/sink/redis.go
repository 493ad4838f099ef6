package sink

import (
	"context"
	"encoding/json"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"github.com/rickgao/cgm-ingest/internal/model"
)

// RedisPublisher abstracts the minimal surface needed from a Redis client.
type RedisPublisher interface {
	Publish(ctx context.Context, channel string, message []byte) error
}

// GoRedisPublisher implements RedisPublisher with go-redis.
type GoRedisPublisher struct {
	c *redis.Client
}

// NewGoRedisPublisher connects lazily to addr, e.g. "127.0.0.1:6379".
func NewGoRedisPublisher(addr string) *GoRedisPublisher {
	return &GoRedisPublisher{c: redis.NewClient(&redis.Options{Addr: addr})}
}

// Publish sends message on channel.
func (g *GoRedisPublisher) Publish(ctx context.Context, channel string, message []byte) error {
	return g.c.Publish(ctx, channel, message).Err()
}

// Ping verifies the server is reachable.
func (g *GoRedisPublisher) Ping(ctx context.Context) error {
	return g.c.Ping(ctx).Err()
}

// Close closes the client.
func (g *GoRedisPublisher) Close() error {
	return g.c.Close()
}

// RedisRelay publishes each record as JSON on a Redis channel.
type RedisRelay struct {
	pub     RedisPublisher
	channel string
}

// NewRedisRelay creates a relay publishing on channel.
func NewRedisRelay(pub RedisPublisher, channel string) *RedisRelay {
	return &RedisRelay{pub: pub, channel: channel}
}

// Relay publishes rec.
func (r *RedisRelay) Relay(ctx context.Context, rec model.GlucoseRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := r.pub.Publish(ctx, r.channel, data); err != nil {
		return fmt.Errorf("publish %s: %w", r.channel, err)
	}
	return nil
}
