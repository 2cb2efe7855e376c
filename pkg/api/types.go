package api

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/gridwork/hubcap/pkg/compat"
)

// ErrNotFound is returned by storage backends when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrVersionExists is returned by storage backends when a schema version is
// created twice for the same category.
var ErrVersionExists = errors.New("schema version already exists")

// Category groups devices that share a specification shape.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Device is one catalog entry. Its specification payload lives separately as
// a compat.DeviceSpec pinned to a schema version.
type Device struct {
	ID            string    `json:"id"`
	CategoryID    string    `json:"category_id"`
	Name          string    `json:"name"`
	Manufacturer  string    `json:"manufacturer,omitempty"`
	Model         string    `json:"model,omitempty"`
	SchemaVersion string    `json:"schema_version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// RuleRecord is a stored compatibility rule scoped to a category.
type RuleRecord struct {
	CategoryID string `json:"category_id"`
	compat.Rule
}

// SpecTemplate is a reusable starting point for a category's device
// specifications.
type SpecTemplate struct {
	ID          string                   `json:"id"`
	CategoryID  string                   `json:"category_id"`
	Name        string                   `json:"name"`
	Description string                   `json:"description,omitempty"`
	Fields      []compat.FieldDefinition `json:"fields"`
	Defaults    map[string]compat.Value  `json:"defaults,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
}

// Document is documentation attached to a device; the content blob is held
// by the storage backend (filesystem or S3).
type Document struct {
	ID          string    `json:"id"`
	DeviceID    string    `json:"device_id"`
	Title       string    `json:"title"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// Storage defines the persistence operations the catalog needs. All methods
// honor context cancellation; lookups return ErrNotFound (possibly wrapped)
// for missing records.
type Storage interface {
	// Category operations
	CreateCategory(ctx context.Context, category *Category) error
	GetCategory(ctx context.Context, id string) (*Category, error)
	ListCategories(ctx context.Context) ([]*Category, error)

	// Device operations
	CreateDevice(ctx context.Context, device *Device) error
	GetDevice(ctx context.Context, id string) (*Device, error)
	ListDevices(ctx context.Context, categoryID string) ([]*Device, error)

	// Specification operations
	PutDeviceSpec(ctx context.Context, spec *compat.DeviceSpec) error
	GetDeviceSpec(ctx context.Context, deviceID string) (*compat.DeviceSpec, error)

	// Schema operations. A (category, version) pair is immutable once
	// written; CreateSchema fails on duplicates.
	CreateSchema(ctx context.Context, schema *compat.CategorySchema) error
	GetSchema(ctx context.Context, categoryID, version string) (*compat.CategorySchema, error)
	GetLatestSchema(ctx context.Context, categoryID string) (*compat.CategorySchema, error)
	ListSchemaVersions(ctx context.Context, categoryID string) ([]string, error)

	// Rule operations
	CreateRule(ctx context.Context, rule *RuleRecord) error
	ListRules(ctx context.Context, categoryID string) ([]*RuleRecord, error)

	// Template operations
	CreateTemplate(ctx context.Context, template *SpecTemplate) error
	GetTemplate(ctx context.Context, id string) (*SpecTemplate, error)
	ListTemplates(ctx context.Context, categoryID string) ([]*SpecTemplate, error)

	// Documentation operations
	CreateDocument(ctx context.Context, doc *Document, content io.Reader) error
	GetDocument(ctx context.Context, id string) (*Document, io.ReadCloser, error)
	ListDocuments(ctx context.Context, deviceID string) ([]*Document, error)
}
