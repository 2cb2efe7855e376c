// Package storage provides pluggable persistence backends for the Hubcap
// device compatibility catalog.
//
// # Overview
//
// This package holds the concrete implementations of the api.Storage
// interface. The API layer depends only on that interface, so backends can be
// swapped without touching handler code: the filesystem backend serves
// development and single-node deployments, the PostgreSQL backend (in the
// postgres subpackage) serves production.
//
// # Backend Implementations
//
// FileSystemStorage stores catalog records as JSON files and device
// documentation as raw blobs under a root directory:
//
//	store, err := storage.NewFileSystemStorage("/var/hubcap/data")
//
// postgres.Storage stores metadata in PostgreSQL with optional Redis caching
// and S3 for documentation blobs. It supports read replicas for query
// traffic:
//
//	config := storage.DefaultConfig()
//	config.Type = "postgres"
//	config.PostgresURL = "postgres://localhost/hubcap"
//	store, err := postgres.New(config)
//
// # Configuration
//
// Both backends are configured through the Config struct:
//
//	config := storage.DefaultConfig()
//	config.Type = "postgres"
//	config.PostgresURL = "postgres://localhost/hubcap"
//	config.PostgresMaxConns = 20
//	config.PostgresReplicaURLs = []string{"postgres://replica1/hubcap"}
//
//	// Optional S3 for documentation blobs
//	config.S3Region = "us-east-1"
//	config.S3Bucket = "hubcap-device-docs"
//
//	// Optional Redis for caching
//	config.RedisURL = "redis://localhost:6379"
//	config.CacheEnabled = true
//	config.CacheTTL["schema_latest"] = 1 * time.Minute
//
// The "latest schema" cache entry deliberately carries a short TTL: schema
// registration must become visible to new devices quickly, while immutable
// (category, version) pairs can be cached for much longer.
//
// # Usage
//
// Create a category, a device and its specification payload:
//
//	store, err := storage.NewFileSystemStorage("/var/hubcap/data")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	ctx := context.Background()
//	err = store.CreateCategory(ctx, &api.Category{ID: "docks", Name: "Docks"})
//
//	err = store.CreateDevice(ctx, &api.Device{
//		ID:         "dock-01",
//		CategoryID: "docks",
//		Name:       "UltraDock 300",
//	})
//
//	err = store.PutDeviceSpec(ctx, &compat.DeviceSpec{
//		DeviceID:   "dock-01",
//		CategoryID: "docks",
//		Specifications: map[string]compat.Value{
//			"power_watts": compat.Number(100),
//		},
//	})
//
// Schema versions are immutable once written; CreateSchema returns
// api.ErrVersionExists on a duplicate (category, version) pair:
//
//	err = store.CreateSchema(ctx, schema)
//	if errors.Is(err, api.ErrVersionExists) {
//		// bump the version instead
//	}
//
// Documentation blobs stream through io.Reader so large files never sit in
// memory:
//
//	err = store.CreateDocument(ctx, doc, file)
//
//	doc, content, err := store.GetDocument(ctx, id)
//	defer content.Close()
//
// # Design Decisions
//
// Separation of Metadata and Content: catalog metadata lives in the primary
// backend while documentation blobs can be offloaded to S3, stored
// content-addressed by SHA-256 so identical uploads deduplicate.
//
// Immutable Schema Versions: a stored specification pins the schema version
// it was validated against. Backends enforce immutability at the uniqueness
// level ((category_id, version) primary key in PostgreSQL, exclusive file
// creation on the filesystem) so concurrent registrations cannot race.
//
// Missing Records: lookups return api.ErrNotFound, possibly wrapped, so
// callers can map storage misses to 404 responses with errors.Is.
//
// # File Organization
//
//   - interfaces.go: Config and defaults shared by all backends
//   - filesystem.go: FileSystemStorage implementation
//   - postgres/: PostgreSQL implementation with Redis cache and S3 blobs
//
// # Related Packages
//
//   - pkg/api: HTTP API layer that consumes api.Storage
//   - pkg/schemacache: in-process caching layered over schema lookups
//   - pkg/analytics: usage tracking that queries PostgreSQL directly
package storage
