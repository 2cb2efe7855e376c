package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/gridwork/hubcap/pkg/api"
	"github.com/gridwork/hubcap/pkg/compat"
	"github.com/gridwork/hubcap/pkg/storage"
)

// RedisClient caches hot catalog reads (categories, devices, specs, schemas,
// rule lists) in front of PostgreSQL and backs the distributed rate limiter.
type RedisClient struct {
	client *redis.Client
	config storage.Config
}

// NewRedisClient creates a new Redis client from the storage config.
func NewRedisClient(config storage.Config) (*RedisClient, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	// Override with config values if provided
	if config.RedisPassword != "" {
		opts.Password = config.RedisPassword
	}
	if config.RedisDB >= 0 {
		opts.DB = config.RedisDB
	}
	if config.RedisMaxRetries > 0 {
		opts.MaxRetries = config.RedisMaxRetries
	}
	if config.RedisPoolSize > 0 {
		opts.PoolSize = config.RedisPoolSize
	}

	// Set connection timeouts
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisClient{client: client, config: config}, nil
}

func (r *RedisClient) ttl(kind string) time.Duration {
	if ttl, ok := r.config.CacheTTL[kind]; ok {
		return ttl
	}
	return 5 * time.Minute
}

// getJSON fetches a key and unmarshals it into dest. A cache miss is
// reported as (false, nil) so callers fall through to PostgreSQL.
func (r *RedisClient) getJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		// A corrupt entry should not poison reads; drop it.
		r.client.Del(ctx, key)
		return false, nil
	}
	return true, nil
}

// setJSON is best-effort: the database remains authoritative, so marshal or
// write failures are swallowed.
func (r *RedisClient) setJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	r.client.Set(ctx, key, data, ttl)
}

// GetCategory returns a cached category, or nil on a miss.
func (r *RedisClient) GetCategory(ctx context.Context, id string) (*api.Category, error) {
	var category api.Category
	hit, err := r.getJSON(ctx, "category:"+id, &category)
	if err != nil || !hit {
		return nil, err
	}
	return &category, nil
}

// SetCategory caches a category.
func (r *RedisClient) SetCategory(ctx context.Context, category *api.Category) {
	r.setJSON(ctx, "category:"+category.ID, category, r.ttl("category"))
}

// InvalidateCategory drops the cached category and its dependent entries.
func (r *RedisClient) InvalidateCategory(ctx context.Context, id string) {
	r.client.Del(ctx, "category:"+id, "rules:"+id, "schema_latest:"+id)
}

// GetDevice returns a cached device, or nil on a miss.
func (r *RedisClient) GetDevice(ctx context.Context, id string) (*api.Device, error) {
	var device api.Device
	hit, err := r.getJSON(ctx, "device:"+id, &device)
	if err != nil || !hit {
		return nil, err
	}
	return &device, nil
}

// SetDevice caches a device.
func (r *RedisClient) SetDevice(ctx context.Context, device *api.Device) {
	r.setJSON(ctx, "device:"+device.ID, device, r.ttl("device"))
}

// InvalidateDevice drops the cached device and its specification.
func (r *RedisClient) InvalidateDevice(ctx context.Context, id string) {
	r.client.Del(ctx, "device:"+id, "spec:"+id)
}

// GetSpec returns a cached device specification, or nil on a miss.
func (r *RedisClient) GetSpec(ctx context.Context, deviceID string) (*compat.DeviceSpec, error) {
	var spec compat.DeviceSpec
	hit, err := r.getJSON(ctx, "spec:"+deviceID, &spec)
	if err != nil || !hit {
		return nil, err
	}
	return &spec, nil
}

// SetSpec caches a device specification.
func (r *RedisClient) SetSpec(ctx context.Context, spec *compat.DeviceSpec) {
	r.setJSON(ctx, "spec:"+spec.DeviceID, spec, r.ttl("spec"))
}

// InvalidateSpec drops a cached device specification.
func (r *RedisClient) InvalidateSpec(ctx context.Context, deviceID string) {
	r.client.Del(ctx, "spec:"+deviceID)
}

// GetSchema returns a cached schema version, or nil on a miss.
func (r *RedisClient) GetSchema(ctx context.Context, categoryID, version string) (*compat.CategorySchema, error) {
	var schema compat.CategorySchema
	hit, err := r.getJSON(ctx, "schema:"+categoryID+":"+version, &schema)
	if err != nil || !hit {
		return nil, err
	}
	return &schema, nil
}

// SetSchema caches a schema version. Versions are immutable once written so
// the long schema TTL applies.
func (r *RedisClient) SetSchema(ctx context.Context, schema *compat.CategorySchema) {
	r.setJSON(ctx, "schema:"+schema.CategoryID+":"+schema.Version, schema, r.ttl("schema"))
}

// InvalidateSchemas drops the latest-schema pointer for a category. Pinned
// versions stay cached: they never change after creation.
func (r *RedisClient) InvalidateSchemas(ctx context.Context, categoryID string) {
	r.client.Del(ctx, "schema_latest:"+categoryID)
}

// GetRules returns a cached rule list, or nil on a miss.
func (r *RedisClient) GetRules(ctx context.Context, categoryID string) ([]*api.RuleRecord, error) {
	var rules []*api.RuleRecord
	hit, err := r.getJSON(ctx, "rules:"+categoryID, &rules)
	if err != nil || !hit {
		return nil, err
	}
	return rules, nil
}

// SetRules caches a category's rule list.
func (r *RedisClient) SetRules(ctx context.Context, categoryID string, rules []*api.RuleRecord) {
	r.setJSON(ctx, "rules:"+categoryID, rules, r.ttl("rule_list"))
}

// InvalidateRules drops a category's cached rule list.
func (r *RedisClient) InvalidateRules(ctx context.Context, categoryID string) {
	r.client.Del(ctx, "rules:"+categoryID)
}

// Incr increments a counter key, used by the distributed rate limiter.
func (r *RedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return r.client.Incr(ctx, key).Result()
}

// Expire sets a TTL on a key.
func (r *RedisClient) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.client.Expire(ctx, key, ttl).Err()
}

// TTL returns the remaining TTL for a key.
func (r *RedisClient) TTL(ctx context.Context, key string) (time.Duration, error) {
	return r.client.TTL(ctx, key).Result()
}

// SetNX sets a key only if it does not already exist.
func (r *RedisClient) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, key, value, ttl).Result()
}

// Ping checks Redis connectivity.
func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Client exposes the underlying go-redis client for collaborators that need
// it directly, like the distributed rate limiter and the health checker.
func (r *RedisClient) Client() *redis.Client {
	return r.client
}

// Close closes the Redis connection.
func (r *RedisClient) Close() error {
	return r.client.Close()
}
