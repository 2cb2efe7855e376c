package schemacache

import (
	"context"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/gridwork/hubcap/pkg/compat"
)

// Config tunes the schema cache.
type Config struct {
	// MaxEntries bounds the number of cached schemas.
	MaxEntries int
	// TTL expires entries so new schema versions become visible without a
	// restart. Schema versions are immutable, so a stale latest-version
	// entry is the only staleness mode.
	TTL time.Duration
}

// DefaultConfig returns the configuration used by the API server.
func DefaultConfig() *Config {
	return &Config{
		MaxEntries: 512,
		TTL:        5 * time.Minute,
	}
}

// Resolver caches schema lookups in front of a slower resolver, typically
// one backed by storage. It implements compat.SchemaResolver itself.
type Resolver struct {
	inner  compat.SchemaResolver
	cache  *lru.LRU[string, *compat.CategorySchema]
	hits   atomic.Int64
	misses atomic.Int64
}

// Wrap puts an LRU cache with TTL expiry in front of inner.
func Wrap(inner compat.SchemaResolver, config *Config) *Resolver {
	if config == nil {
		config = DefaultConfig()
	}
	maxEntries := config.MaxEntries
	if maxEntries < 10 {
		maxEntries = 10
	}

	return &Resolver{
		inner: inner,
		cache: lru.NewLRU[string, *compat.CategorySchema](maxEntries, nil, config.TTL),
	}
}

// ResolveSchema implements compat.SchemaResolver. Lookup failures are not
// cached; every miss goes back to the inner resolver.
func (r *Resolver) ResolveSchema(ctx context.Context, categoryID, version string) (*compat.CategorySchema, error) {
	key := categoryID + "\x00" + version

	if schema, ok := r.cache.Get(key); ok {
		r.hits.Add(1)
		return schema, nil
	}
	r.misses.Add(1)

	schema, err := r.inner.ResolveSchema(ctx, categoryID, version)
	if err != nil {
		return nil, err
	}
	if schema != nil {
		r.cache.Add(key, schema)
		if version == "" && schema.Version != "" {
			// A latest-version lookup also warms the pinned entry.
			r.cache.Add(categoryID+"\x00"+schema.Version, schema)
		}
	}
	return schema, nil
}

// Invalidate drops every cached entry for a category. Called when a new
// schema version is registered so "latest" lookups see it immediately.
func (r *Resolver) Invalidate(categoryID string) {
	for _, key := range r.cache.Keys() {
		if len(key) > len(categoryID) && key[:len(categoryID)] == categoryID && key[len(categoryID)] == '\x00' {
			r.cache.Remove(key)
		}
	}
}

// Stats reports hit/miss counts and the current entry count.
func (r *Resolver) Stats() (hits, misses int64, entries int) {
	return r.hits.Load(), r.misses.Load(), r.cache.Len()
}
