package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/domain"
)

// DefaultNamespace prefixes every key written by RedisCache.
const DefaultNamespace = "relay"

// RedisConfig configures a RedisCache.
type RedisConfig struct {
	Addrs      []string
	Password   string
	UseCluster bool
	Namespace  string
	TTL        time.Duration
}

// RedisCache shares quotes between server replicas. Values are JSON.
type RedisCache struct {
	client    redis.UniversalClient // works with both single and cluster
	namespace string
	ttl       time.Duration
}

// NewRedisCache connects to a single node or, with UseCluster and more than
// one address, a cluster.
func NewRedisCache(cfg RedisConfig) (*RedisCache, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errors.New("redis cache: at least one address is required")
	}

	var rdb redis.UniversalClient
	if cfg.UseCluster && len(cfg.Addrs) > 1 {
		rdb = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:    cfg.Addrs,
			Password: cfg.Password,
		})
	} else {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Addrs[0],
			Password: cfg.Password,
			DB:       0,
		})
	}

	return NewRedisCacheFromClient(rdb, cfg.Namespace, cfg.TTL), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client redis.UniversalClient, namespace string, ttl time.Duration) *RedisCache {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &RedisCache{client: client, namespace: namespace, ttl: ttl}
}

// Client exposes the connection so other per-replica state, such as rate
// limit counters, can share it.
func (c *RedisCache) Client() redis.UniversalClient {
	return c.client
}

// Namespace is the key prefix in use.
func (c *RedisCache) Namespace() string {
	return c.namespace
}

func (c *RedisCache) key(key string) string {
	return c.namespace + ":" + key
}

func (c *RedisCache) Get(ctx context.Context, key string) (domain.PricingQuote, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.PricingQuote{}, ErrMiss
	}
	if err != nil {
		return domain.PricingQuote{}, fmt.Errorf("redis get %s: %w", key, err)
	}

	var quote domain.PricingQuote
	if err := json.Unmarshal(data, &quote); err != nil {
		return domain.PricingQuote{}, fmt.Errorf("decode cached quote %s: %w", key, err)
	}
	return quote, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, quote domain.PricingQuote) error {
	data, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("encode quote %s: %w", key, err)
	}
	if err := c.client.Set(ctx, c.key(key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Ping checks connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying connections.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
