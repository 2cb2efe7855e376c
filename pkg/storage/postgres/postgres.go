package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"

	"github.com/gridwork/hubcap/pkg/api"
	"github.com/gridwork/hubcap/pkg/compat"
	"github.com/gridwork/hubcap/pkg/storage"
)

var tracer = otel.Tracer("hubcap/storage/postgres")

// uniqueViolation is the PostgreSQL error code for unique constraint hits.
const uniqueViolation = "23505"

// PostgresStorage implements api.Storage using PostgreSQL for catalog data,
// S3 for documentation blobs and Redis as a read cache. Writes go to the
// primary; reads are spread across replicas when configured.
type PostgresStorage struct {
	conns       *ConnectionManager
	s3Client    *S3Client
	redisClient *RedisClient
	config      storage.Config
}

// NewPostgresStorage creates a new PostgreSQL-backed storage
func NewPostgresStorage(config storage.Config) (*PostgresStorage, error) {
	conns, err := NewConnectionManager(ConnectionConfig{
		PrimaryURL:  config.PostgresURL,
		ReplicaURLs: config.PostgresReplicaURLs,
		MaxConns:    config.PostgresMaxConns,
		MinConns:    config.PostgresMinConns,
		Timeout:     config.PostgresTimeout,
		MaxLifetime: 1 * time.Hour,
		MaxIdleTime: 10 * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	var s3Client *S3Client
	if config.S3Endpoint != "" || config.S3Bucket != "" {
		s3Client, err = NewS3Client(config)
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 client: %w", err)
		}
	}

	var redisClient *RedisClient
	if config.CacheEnabled && config.RedisURL != "" {
		redisClient, err = NewRedisClient(config)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis client: %w", err)
		}
	}

	return &PostgresStorage{
		conns:       conns,
		s3Client:    s3Client,
		redisClient: redisClient,
		config:      config,
	}, nil
}

// CreateCategory implements api.Storage.CreateCategory
func (s *PostgresStorage) CreateCategory(ctx context.Context, category *api.Category) error {
	query := `
		INSERT INTO categories (id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.conns.Primary().ExecContext(ctx, query,
		category.ID, category.Name, category.Description,
		category.CreatedAt, category.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}

	if s.redisClient != nil {
		s.redisClient.InvalidateCategory(ctx, category.ID)
	}
	return nil
}

// GetCategory implements api.Storage.GetCategory
func (s *PostgresStorage) GetCategory(ctx context.Context, id string) (*api.Category, error) {
	if s.redisClient != nil {
		if category, err := s.redisClient.GetCategory(ctx, id); err == nil && category != nil {
			return category, nil
		}
	}

	query := `
		SELECT id, name, description, created_at, updated_at
		FROM categories
		WHERE id = $1
	`
	var category api.Category
	err := s.conns.Replica().QueryRowContext(ctx, query, id).Scan(
		&category.ID, &category.Name, &category.Description,
		&category.CreatedAt, &category.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %s: %w", id, api.ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}

	if s.redisClient != nil {
		s.redisClient.SetCategory(ctx, &category)
	}
	return &category, nil
}

// ListCategories implements api.Storage.ListCategories
func (s *PostgresStorage) ListCategories(ctx context.Context) ([]*api.Category, error) {
	query := `
		SELECT id, name, description, created_at, updated_at
		FROM categories
		ORDER BY created_at DESC
	`
	rows, err := s.conns.Replica().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []*api.Category
	for rows.Next() {
		var c api.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, &c)
	}
	return categories, rows.Err()
}

// CreateDevice implements api.Storage.CreateDevice
func (s *PostgresStorage) CreateDevice(ctx context.Context, device *api.Device) error {
	query := `
		INSERT INTO devices (id, category_id, name, manufacturer, model, schema_version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			manufacturer = EXCLUDED.manufacturer,
			model = EXCLUDED.model,
			schema_version = EXCLUDED.schema_version,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.conns.Primary().ExecContext(ctx, query,
		device.ID, device.CategoryID, device.Name, device.Manufacturer,
		device.Model, device.SchemaVersion, device.CreatedAt, device.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}

	if s.redisClient != nil {
		s.redisClient.InvalidateDevice(ctx, device.ID)
	}
	return nil
}

// GetDevice implements api.Storage.GetDevice
func (s *PostgresStorage) GetDevice(ctx context.Context, id string) (*api.Device, error) {
	if s.redisClient != nil {
		if device, err := s.redisClient.GetDevice(ctx, id); err == nil && device != nil {
			return device, nil
		}
	}

	query := `
		SELECT id, category_id, name, manufacturer, model, schema_version, created_at, updated_at
		FROM devices
		WHERE id = $1
	`
	var device api.Device
	err := s.conns.Replica().QueryRowContext(ctx, query, id).Scan(
		&device.ID, &device.CategoryID, &device.Name, &device.Manufacturer,
		&device.Model, &device.SchemaVersion, &device.CreatedAt, &device.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("device %s: %w", id, api.ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	if s.redisClient != nil {
		s.redisClient.SetDevice(ctx, &device)
	}
	return &device, nil
}

// ListDevices implements api.Storage.ListDevices
func (s *PostgresStorage) ListDevices(ctx context.Context, categoryID string) ([]*api.Device, error) {
	query := `
		SELECT id, category_id, name, manufacturer, model, schema_version, created_at, updated_at
		FROM devices
		WHERE ($1 = '' OR category_id = $1)
		ORDER BY created_at DESC
	`
	rows, err := s.conns.Replica().QueryContext(ctx, query, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	var devices []*api.Device
	for rows.Next() {
		var d api.Device
		err := rows.Scan(&d.ID, &d.CategoryID, &d.Name, &d.Manufacturer,
			&d.Model, &d.SchemaVersion, &d.CreatedAt, &d.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, &d)
	}
	return devices, rows.Err()
}

// PutDeviceSpec implements api.Storage.PutDeviceSpec
func (s *PostgresStorage) PutDeviceSpec(ctx context.Context, spec *compat.DeviceSpec) error {
	specsJSON, err := json.Marshal(spec.Specifications)
	if err != nil {
		return fmt.Errorf("failed to marshal specifications: %w", err)
	}

	query := `
		INSERT INTO device_specs (device_id, category_id, schema_version, specifications, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (device_id) DO UPDATE SET
			category_id = EXCLUDED.category_id,
			schema_version = EXCLUDED.schema_version,
			specifications = EXCLUDED.specifications,
			updated_at = NOW()
	`
	_, err = s.conns.Primary().ExecContext(ctx, query, spec.DeviceID, spec.CategoryID, spec.SchemaVersion, specsJSON)
	if err != nil {
		return fmt.Errorf("failed to store device spec: %w", err)
	}

	if s.redisClient != nil {
		s.redisClient.InvalidateSpec(ctx, spec.DeviceID)
	}
	return nil
}

// GetDeviceSpec implements api.Storage.GetDeviceSpec
func (s *PostgresStorage) GetDeviceSpec(ctx context.Context, deviceID string) (*compat.DeviceSpec, error) {
	if s.redisClient != nil {
		if spec, err := s.redisClient.GetSpec(ctx, deviceID); err == nil && spec != nil {
			return spec, nil
		}
	}

	query := `
		SELECT device_id, category_id, schema_version, specifications, created_at, updated_at
		FROM device_specs
		WHERE device_id = $1
	`
	var spec compat.DeviceSpec
	var specsJSON []byte
	err := s.conns.Replica().QueryRowContext(ctx, query, deviceID).Scan(
		&spec.DeviceID, &spec.CategoryID, &spec.SchemaVersion,
		&specsJSON, &spec.CreatedAt, &spec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("spec for device %s: %w", deviceID, api.ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get device spec: %w", err)
	}
	if err := json.Unmarshal(specsJSON, &spec.Specifications); err != nil {
		return nil, fmt.Errorf("failed to unmarshal specifications: %w", err)
	}

	if s.redisClient != nil {
		s.redisClient.SetSpec(ctx, &spec)
	}
	return &spec, nil
}

// CreateSchema implements api.Storage.CreateSchema. The (category, version)
// pair is immutable: a duplicate insert reports ErrVersionExists.
func (s *PostgresStorage) CreateSchema(ctx context.Context, schema *compat.CategorySchema) error {
	fieldsJSON, err := json.Marshal(schema.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal schema fields: %w", err)
	}

	query := `
		INSERT INTO category_schemas (category_id, version, fields, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err = s.conns.Primary().ExecContext(ctx, query, schema.CategoryID, schema.Version, fieldsJSON, schema.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return fmt.Errorf("schema %s/%s: %w", schema.CategoryID, schema.Version, api.ErrVersionExists)
		}
		return fmt.Errorf("failed to create schema: %w", err)
	}

	if s.redisClient != nil {
		s.redisClient.InvalidateSchemas(ctx, schema.CategoryID)
	}
	return nil
}

// GetSchema implements api.Storage.GetSchema
func (s *PostgresStorage) GetSchema(ctx context.Context, categoryID, version string) (*compat.CategorySchema, error) {
	if s.redisClient != nil {
		if schema, err := s.redisClient.GetSchema(ctx, categoryID, version); err == nil && schema != nil {
			return schema, nil
		}
	}

	query := `
		SELECT category_id, version, fields, created_at
		FROM category_schemas
		WHERE category_id = $1 AND version = $2
	`
	schema, err := s.scanSchema(s.conns.Replica().QueryRowContext(ctx, query, categoryID, version))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("schema %s/%s: %w", categoryID, version, api.ErrNotFound)
	} else if err != nil {
		return nil, err
	}

	if s.redisClient != nil {
		s.redisClient.SetSchema(ctx, schema)
	}
	return schema, nil
}

// GetLatestSchema implements api.Storage.GetLatestSchema
func (s *PostgresStorage) GetLatestSchema(ctx context.Context, categoryID string) (*compat.CategorySchema, error) {
	query := `
		SELECT category_id, version, fields, created_at
		FROM category_schemas
		WHERE category_id = $1
		ORDER BY created_at DESC, version DESC
		LIMIT 1
	`
	schema, err := s.scanSchema(s.conns.Replica().QueryRowContext(ctx, query, categoryID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no schemas for category %s: %w", categoryID, api.ErrNotFound)
	} else if err != nil {
		return nil, err
	}
	return schema, nil
}

// ListSchemaVersions implements api.Storage.ListSchemaVersions
func (s *PostgresStorage) ListSchemaVersions(ctx context.Context, categoryID string) ([]string, error) {
	query := `
		SELECT version
		FROM category_schemas
		WHERE category_id = $1
		ORDER BY version
	`
	rows, err := s.conns.Replica().QueryContext(ctx, query, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list schema versions: %w", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan schema version: %w", err)
		}
		versions = append(versions, version)
	}
	return versions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *PostgresStorage) scanSchema(row rowScanner) (*compat.CategorySchema, error) {
	var schema compat.CategorySchema
	var fieldsJSON []byte
	if err := row.Scan(&schema.CategoryID, &schema.Version, &fieldsJSON, &schema.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(fieldsJSON, &schema.Fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema fields: %w", err)
	}
	return &schema, nil
}

// CreateRule implements api.Storage.CreateRule
func (s *PostgresStorage) CreateRule(ctx context.Context, rule *api.RuleRecord) error {
	query := `
		INSERT INTO compat_rules (id, category_id, name, description, source_field, target_field, condition, compatibility_type, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			source_field = EXCLUDED.source_field,
			target_field = EXCLUDED.target_field,
			condition = EXCLUDED.condition,
			compatibility_type = EXCLUDED.compatibility_type,
			message = EXCLUDED.message
	`
	_, err := s.conns.Primary().ExecContext(ctx, query,
		rule.ID, rule.CategoryID, rule.Name, rule.Description,
		rule.SourceField, rule.TargetField, rule.Condition,
		rule.DefaultLevel.String(), rule.Message,
	)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}

	if s.redisClient != nil {
		s.redisClient.InvalidateRules(ctx, rule.CategoryID)
	}
	return nil
}

// ListRules implements api.Storage.ListRules
func (s *PostgresStorage) ListRules(ctx context.Context, categoryID string) ([]*api.RuleRecord, error) {
	if s.redisClient != nil {
		if rules, err := s.redisClient.GetRules(ctx, categoryID); err == nil && rules != nil {
			return rules, nil
		}
	}

	query := `
		SELECT id, category_id, name, description, source_field, target_field, condition, compatibility_type, message
		FROM compat_rules
		WHERE category_id = $1
		ORDER BY id
	`
	rows, err := s.conns.Replica().QueryContext(ctx, query, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var rules []*api.RuleRecord
	for rows.Next() {
		var r api.RuleRecord
		var level string
		err := rows.Scan(&r.ID, &r.CategoryID, &r.Name, &r.Description,
			&r.SourceField, &r.TargetField, &r.Condition, &level, &r.Message)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		if r.DefaultLevel, err = compat.ParseLevel(level); err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.ID, err)
		}
		rules = append(rules, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if s.redisClient != nil {
		s.redisClient.SetRules(ctx, categoryID, rules)
	}
	return rules, nil
}

// CreateTemplate implements api.Storage.CreateTemplate
func (s *PostgresStorage) CreateTemplate(ctx context.Context, template *api.SpecTemplate) error {
	fieldsJSON, err := json.Marshal(template.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal template fields: %w", err)
	}
	defaultsJSON, err := json.Marshal(template.Defaults)
	if err != nil {
		return fmt.Errorf("failed to marshal template defaults: %w", err)
	}

	query := `
		INSERT INTO spec_templates (id, category_id, name, description, fields, defaults, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.conns.Primary().ExecContext(ctx, query,
		template.ID, template.CategoryID, template.Name, template.Description,
		fieldsJSON, defaultsJSON, template.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	return nil
}

// GetTemplate implements api.Storage.GetTemplate
func (s *PostgresStorage) GetTemplate(ctx context.Context, id string) (*api.SpecTemplate, error) {
	query := `
		SELECT id, category_id, name, description, fields, defaults, created_at
		FROM spec_templates
		WHERE id = $1
	`
	template, err := s.scanTemplate(s.conns.Replica().QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("template %s: %w", id, api.ErrNotFound)
	} else if err != nil {
		return nil, err
	}
	return template, nil
}

// ListTemplates implements api.Storage.ListTemplates
func (s *PostgresStorage) ListTemplates(ctx context.Context, categoryID string) ([]*api.SpecTemplate, error) {
	query := `
		SELECT id, category_id, name, description, fields, defaults, created_at
		FROM spec_templates
		WHERE ($1 = '' OR category_id = $1)
		ORDER BY created_at DESC
	`
	rows, err := s.conns.Replica().QueryContext(ctx, query, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var templates []*api.SpecTemplate
	for rows.Next() {
		template, err := s.scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, template)
	}
	return templates, rows.Err()
}

func (s *PostgresStorage) scanTemplate(row rowScanner) (*api.SpecTemplate, error) {
	var template api.SpecTemplate
	var fieldsJSON, defaultsJSON []byte
	err := row.Scan(&template.ID, &template.CategoryID, &template.Name,
		&template.Description, &fieldsJSON, &defaultsJSON, &template.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(fieldsJSON, &template.Fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal template fields: %w", err)
	}
	if err := json.Unmarshal(defaultsJSON, &template.Defaults); err != nil {
		return nil, fmt.Errorf("failed to unmarshal template defaults: %w", err)
	}
	return &template, nil
}

// CreateDocument implements api.Storage.CreateDocument. The blob goes to S3
// under a content-addressed key; metadata rides in PostgreSQL.
func (s *PostgresStorage) CreateDocument(ctx context.Context, doc *api.Document, content io.Reader) error {
	if s.s3Client == nil {
		return fmt.Errorf("s3 client not initialized")
	}

	data, err := io.ReadAll(content)
	if err != nil {
		return fmt.Errorf("failed to read document content: %w", err)
	}
	doc.Size = int64(len(data))

	hash, err := s.s3Client.PutObjectWithHash(ctx, data, doc.ContentType)
	if err != nil {
		return fmt.Errorf("failed to upload document: %w", err)
	}
	objectKey := blobKey(hash)

	query := `
		INSERT INTO documents (id, device_id, title, content_type, size, object_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.conns.Primary().ExecContext(ctx, query,
		doc.ID, doc.DeviceID, doc.Title, doc.ContentType, doc.Size, objectKey, doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert document metadata: %w", err)
	}
	return nil
}

// GetDocument implements api.Storage.GetDocument
func (s *PostgresStorage) GetDocument(ctx context.Context, id string) (*api.Document, io.ReadCloser, error) {
	if s.s3Client == nil {
		return nil, nil, fmt.Errorf("s3 client not initialized")
	}

	query := `
		SELECT id, device_id, title, content_type, size, object_key, created_at
		FROM documents
		WHERE id = $1
	`
	var doc api.Document
	var objectKey string
	err := s.conns.Replica().QueryRowContext(ctx, query, id).Scan(
		&doc.ID, &doc.DeviceID, &doc.Title, &doc.ContentType,
		&doc.Size, &objectKey, &doc.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("document %s: %w", id, api.ErrNotFound)
	} else if err != nil {
		return nil, nil, fmt.Errorf("failed to get document: %w", err)
	}

	reader, err := s.s3Client.GetObject(ctx, objectKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch document blob: %w", err)
	}
	return &doc, reader, nil
}

// ListDocuments implements api.Storage.ListDocuments
func (s *PostgresStorage) ListDocuments(ctx context.Context, deviceID string) ([]*api.Document, error) {
	query := `
		SELECT id, device_id, title, content_type, size, created_at
		FROM documents
		WHERE device_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.conns.Replica().QueryContext(ctx, query, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*api.Document
	for rows.Next() {
		var d api.Document
		err := rows.Scan(&d.ID, &d.DeviceID, &d.Title, &d.ContentType, &d.Size, &d.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, &d)
	}
	return docs, rows.Err()
}

// HealthCheck verifies every configured backend.
func (s *PostgresStorage) HealthCheck(ctx context.Context) error {
	// Check PostgreSQL primary and replicas
	if err := s.conns.HealthCheck(ctx); err != nil {
		return fmt.Errorf("postgres unhealthy: %w", err)
	}

	// Check S3
	if s.s3Client != nil {
		if err := s.s3Client.HealthCheck(ctx); err != nil {
			return fmt.Errorf("s3 unhealthy: %w", err)
		}
	}

	// Check Redis
	if s.redisClient != nil {
		if err := s.redisClient.Ping(ctx); err != nil {
			return fmt.Errorf("redis unhealthy: %w", err)
		}
	}

	return nil
}

// GetDB returns the primary database connection for health checks
func (s *PostgresStorage) GetDB() *sql.DB {
	return s.conns.Primary()
}

// Connections exposes the connection manager so callers can start the
// replica health routine or read pool stats.
func (s *PostgresStorage) Connections() *ConnectionManager {
	return s.conns
}

// GetRedis returns the Redis client (may be nil if not configured)
func (s *PostgresStorage) GetRedis() *RedisClient {
	return s.redisClient
}

// Close closes all connections
func (s *PostgresStorage) Close() error {
	if s.conns != nil {
		s.conns.Close()
	}
	if s.redisClient != nil {
		s.redisClient.Close()
	}
	return nil
}
