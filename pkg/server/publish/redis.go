package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/woodser/haveno-pricenode/pkg/server/snapshot"
)

const (
	// DefaultKey holds the latest serialized snapshot.
	DefaultKey = "pricenode:snapshot:latest"
	// DefaultChannel receives every published snapshot.
	DefaultChannel = "pricenode:snapshot"
	// DefaultTTL bounds how long a stale snapshot stays readable.
	DefaultTTL = 5 * time.Minute
)

// RedisPublisher stores the latest snapshot under a key and publishes it on a channel.
type RedisPublisher struct {
	client  *redis.Client
	key     string
	channel string
	ttl     time.Duration
}

// RedisOption configures a RedisPublisher.
type RedisOption func(*RedisPublisher)

// WithKey sets the key the latest snapshot is stored under.
func WithKey(key string) RedisOption {
	return func(p *RedisPublisher) {
		p.key = key
	}
}

// WithChannel sets the pub/sub channel. An empty channel disables PUBLISH.
func WithChannel(channel string) RedisOption {
	return func(p *RedisPublisher) {
		p.channel = channel
	}
}

// WithTTL sets the expiry of the stored snapshot.
func WithTTL(ttl time.Duration) RedisOption {
	return func(p *RedisPublisher) {
		p.ttl = ttl
	}
}

// NewRedisPublisher connects to the redis URL (redis://[:password@]host:port/db) and pings it.
func NewRedisPublisher(ctx context.Context, url string, options ...RedisOption) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisPublisherWithClient(client, options...), nil
}

// NewRedisPublisherWithClient wraps an existing client.
func NewRedisPublisherWithClient(client *redis.Client, options ...RedisOption) *RedisPublisher {
	p := &RedisPublisher{
		client:  client,
		key:     DefaultKey,
		channel: DefaultChannel,
		ttl:     DefaultTTL,
	}
	for _, option := range options {
		option(p)
	}
	return p
}

// Publish stores snap as JSON and announces it on the channel.
func (p *RedisPublisher) Publish(ctx context.Context, snap *snapshot.Snapshot) error {
	if snap == nil {
		return errors.New("snapshot is nil")
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := p.client.Set(ctx, p.key, data, p.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	if p.channel == "" {
		return nil
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}
	return nil
}

// Latest returns the stored snapshot JSON, nil if none is stored.
func (p *RedisPublisher) Latest(ctx context.Context) ([]byte, error) {
	data, err := p.client.Get(ctx, p.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get snapshot from Redis: %w", err)
	}
	return data, nil
}

// Close closes the redis client.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
