// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	HUBCAP_HOST="0.0.0.0"
//	HUBCAP_PORT="8080"
//	HUBCAP_HEALTH_PORT="9090"
//	HUBCAP_READ_TIMEOUT="15s"
//	HUBCAP_WRITE_TIMEOUT="15s"
//
// Storage settings:
//
//	HUBCAP_STORAGE_TYPE="postgres"  # filesystem, postgres
//	HUBCAP_FILESYSTEM_ROOT="/var/hubcap/data"
//	HUBCAP_POSTGRES_URL="postgres://localhost/hubcap"
//	HUBCAP_POSTGRES_REPLICA_URLS="postgres://replica1/hubcap,postgres://replica2/hubcap"
//	HUBCAP_POSTGRES_MAX_CONNS="20"
//	HUBCAP_S3_BUCKET="hubcap-documents"
//	HUBCAP_S3_REGION="us-east-1"
//
// Cache settings:
//
//	HUBCAP_CACHE_ENABLED="true"
//	HUBCAP_REDIS_URL="redis://localhost:6379"
//	HUBCAP_REDIS_POOL_SIZE="10"
//
// Rule file settings:
//
//	HUBCAP_RULES_DIR="/etc/hubcap"  # directory holding hubcap-rules.yaml
//	HUBCAP_RULES_WATCH="true"       # reload the rule file on change
//
// Observability settings:
//
//	HUBCAP_LOG_LEVEL="info"  # debug, info, warn, error
//	HUBCAP_METRICS_ENABLED="true"
//	HUBCAP_OTEL_ENABLED="true"
//	HUBCAP_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Storage: %s\n", cfg.Storage.Type)
//	fmt.Printf("Log level: %s\n", cfg.Observability.LogLevel)
//
// # Related Packages
//
//   - pkg/storage: Uses storage configuration
//   - pkg/rules: Loads rule files from the configured directory
//   - pkg/observability: Uses observability configuration
package config
