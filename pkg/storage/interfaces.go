package storage

import (
	"time"
)

// Config for storage backend
type Config struct {
	Type string // "filesystem", "postgres", "hybrid"

	// Filesystem config
	FilesystemRoot string

	// PostgreSQL config
	PostgresURL         string
	PostgresReplicaURLs []string
	PostgresMaxConns    int
	PostgresMinConns    int
	PostgresTimeout     time.Duration

	// S3 config, used for device documentation blobs
	S3Endpoint       string
	S3Region         string
	S3Bucket         string
	S3AccessKey      string
	S3SecretKey      string
	S3UsePathStyle   bool
	S3ForcePathStyle bool

	// Redis config
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int

	// Cache config
	CacheEnabled bool
	CacheTTL     map[string]time.Duration
	L1CacheSize  int64 // Bytes
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:             "filesystem",
		FilesystemRoot:   "/tmp/hubcap",
		PostgresMaxConns: 20,
		PostgresMinConns: 2,
		PostgresTimeout:  10 * time.Second,
		RedisDB:          0,
		RedisMaxRetries:  3,
		RedisPoolSize:    10,
		CacheEnabled:     true,
		CacheTTL: map[string]time.Duration{
			"category":      1 * time.Hour,
			"device":        30 * time.Minute,
			"spec":          30 * time.Minute,
			"schema":        1 * time.Hour,
			"schema_latest": 1 * time.Minute,
			"rule_list":     5 * time.Minute,
			"template":      1 * time.Hour,
			"document":      24 * time.Hour,
		},
		L1CacheSize: 10 * 1024 * 1024, // 10MB
	}
}
