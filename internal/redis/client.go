package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tenancy-service/internal/config"
	"tenancy-service/internal/models"
)

// Client wraps the Redis client with application-specific methods
type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the connection to Redis
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Key prefixes
const (
	TenantKeyPrefix = "gate:tenant:"
)

// GetTenant returns a cached directory lookup, or (nil, false) on miss.
// Cache errors are treated as misses; the gate falls through to the store.
func (c *Client) GetTenant(ctx context.Context, slug string) (*models.Tenant, bool) {
	data, err := c.rdb.Get(ctx, TenantKeyPrefix+slug).Bytes()
	if err != nil {
		return nil, false
	}

	var tenant models.Tenant
	if err := json.Unmarshal(data, &tenant); err != nil {
		return nil, false
	}
	return &tenant, true
}

// SetTenant caches a directory lookup for the gate
func (c *Client) SetTenant(ctx context.Context, tenant *models.Tenant, ttl time.Duration) error {
	data, err := json.Marshal(tenant)
	if err != nil {
		return fmt.Errorf("failed to marshal tenant for cache: %w", err)
	}
	return c.rdb.Set(ctx, TenantKeyPrefix+tenant.Slug, data, ttl).Err()
}

// InvalidateTenant drops a cached lookup. Called on every provisioning or
// billing write so the gate never admits against a stale snapshot longer
// than the TTL.
func (c *Client) InvalidateTenant(ctx context.Context, slug string) error {
	return c.rdb.Del(ctx, TenantKeyPrefix+slug).Err()
}
