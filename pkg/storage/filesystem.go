package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gridwork/hubcap/pkg/api"
	"github.com/gridwork/hubcap/pkg/compat"
)

// FileSystemStorage implements api.Storage using the local filesystem.
// Layout:
//
//	categories/{id}/category.json
//	categories/{id}/schemas/{version}.json
//	categories/{id}/rules/{id}.json
//	devices/{id}/device.json
//	devices/{id}/spec.json
//	devices/{id}/docs/{id}.json
//	devices/{id}/docs/{id}.bin
//	templates/{id}.json
type FileSystemStorage struct {
	rootDir string
}

// NewFileSystemStorage creates a new filesystem-based storage
func NewFileSystemStorage(rootDir string) (*FileSystemStorage, error) {
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}
	return &FileSystemStorage{rootDir: rootDir}, nil
}

// CreateCategory implements api.Storage.CreateCategory
func (s *FileSystemStorage) CreateCategory(ctx context.Context, category *api.Category) error {
	categoryDir := filepath.Join(s.rootDir, "categories", category.ID)
	if err := os.MkdirAll(categoryDir, 0755); err != nil {
		return fmt.Errorf("failed to create category directory: %w", err)
	}
	return writeJSON(filepath.Join(categoryDir, "category.json"), category)
}

// GetCategory implements api.Storage.GetCategory
func (s *FileSystemStorage) GetCategory(ctx context.Context, id string) (*api.Category, error) {
	var category api.Category
	if err := readJSON(filepath.Join(s.rootDir, "categories", id, "category.json"), &category); err != nil {
		return nil, fmt.Errorf("category %s: %w", id, err)
	}
	return &category, nil
}

// ListCategories implements api.Storage.ListCategories
func (s *FileSystemStorage) ListCategories(ctx context.Context) ([]*api.Category, error) {
	entries, err := os.ReadDir(filepath.Join(s.rootDir, "categories"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read categories directory: %w", err)
	}

	var categories []*api.Category
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		category, err := s.GetCategory(ctx, entry.Name())
		if err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, nil
}

// CreateDevice implements api.Storage.CreateDevice
func (s *FileSystemStorage) CreateDevice(ctx context.Context, device *api.Device) error {
	deviceDir := filepath.Join(s.rootDir, "devices", device.ID)
	if err := os.MkdirAll(deviceDir, 0755); err != nil {
		return fmt.Errorf("failed to create device directory: %w", err)
	}
	return writeJSON(filepath.Join(deviceDir, "device.json"), device)
}

// GetDevice implements api.Storage.GetDevice
func (s *FileSystemStorage) GetDevice(ctx context.Context, id string) (*api.Device, error) {
	var device api.Device
	if err := readJSON(filepath.Join(s.rootDir, "devices", id, "device.json"), &device); err != nil {
		return nil, fmt.Errorf("device %s: %w", id, err)
	}
	return &device, nil
}

// ListDevices implements api.Storage.ListDevices
func (s *FileSystemStorage) ListDevices(ctx context.Context, categoryID string) ([]*api.Device, error) {
	entries, err := os.ReadDir(filepath.Join(s.rootDir, "devices"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read devices directory: %w", err)
	}

	var devices []*api.Device
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		device, err := s.GetDevice(ctx, entry.Name())
		if err != nil {
			return nil, err
		}
		if categoryID == "" || device.CategoryID == categoryID {
			devices = append(devices, device)
		}
	}
	return devices, nil
}

// PutDeviceSpec implements api.Storage.PutDeviceSpec
func (s *FileSystemStorage) PutDeviceSpec(ctx context.Context, spec *compat.DeviceSpec) error {
	deviceDir := filepath.Join(s.rootDir, "devices", spec.DeviceID)
	if err := os.MkdirAll(deviceDir, 0755); err != nil {
		return fmt.Errorf("failed to create device directory: %w", err)
	}
	return writeJSON(filepath.Join(deviceDir, "spec.json"), spec)
}

// GetDeviceSpec implements api.Storage.GetDeviceSpec
func (s *FileSystemStorage) GetDeviceSpec(ctx context.Context, deviceID string) (*compat.DeviceSpec, error) {
	var spec compat.DeviceSpec
	if err := readJSON(filepath.Join(s.rootDir, "devices", deviceID, "spec.json"), &spec); err != nil {
		return nil, fmt.Errorf("spec for device %s: %w", deviceID, err)
	}
	return &spec, nil
}

// CreateSchema implements api.Storage.CreateSchema
func (s *FileSystemStorage) CreateSchema(ctx context.Context, schema *compat.CategorySchema) error {
	schemaDir := filepath.Join(s.rootDir, "categories", schema.CategoryID, "schemas")
	if err := os.MkdirAll(schemaDir, 0755); err != nil {
		return fmt.Errorf("failed to create schemas directory: %w", err)
	}

	schemaFile := filepath.Join(schemaDir, schema.Version+".json")
	if _, err := os.Stat(schemaFile); err == nil {
		return fmt.Errorf("schema %s/%s: %w", schema.CategoryID, schema.Version, api.ErrVersionExists)
	}
	return writeJSON(schemaFile, schema)
}

// GetSchema implements api.Storage.GetSchema
func (s *FileSystemStorage) GetSchema(ctx context.Context, categoryID, version string) (*compat.CategorySchema, error) {
	var schema compat.CategorySchema
	path := filepath.Join(s.rootDir, "categories", categoryID, "schemas", version+".json")
	if err := readJSON(path, &schema); err != nil {
		return nil, fmt.Errorf("schema %s/%s: %w", categoryID, version, err)
	}
	return &schema, nil
}

// GetLatestSchema implements api.Storage.GetLatestSchema. The newest schema
// is the one with the most recent creation time, falling back to version
// string ordering for ties.
func (s *FileSystemStorage) GetLatestSchema(ctx context.Context, categoryID string) (*compat.CategorySchema, error) {
	versions, err := s.ListSchemaVersions(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("no schemas for category %s: %w", categoryID, api.ErrNotFound)
	}

	var latest *compat.CategorySchema
	for _, version := range versions {
		schema, err := s.GetSchema(ctx, categoryID, version)
		if err != nil {
			return nil, err
		}
		if latest == nil || schema.CreatedAt.After(latest.CreatedAt) ||
			(schema.CreatedAt.Equal(latest.CreatedAt) && schema.Version > latest.Version) {
			latest = schema
		}
	}
	return latest, nil
}

// ListSchemaVersions implements api.Storage.ListSchemaVersions
func (s *FileSystemStorage) ListSchemaVersions(ctx context.Context, categoryID string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.rootDir, "categories", categoryID, "schemas"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read schemas directory: %w", err)
	}

	var versions []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".json") {
			versions = append(versions, strings.TrimSuffix(name, ".json"))
		}
	}
	sort.Strings(versions)
	return versions, nil
}

// CreateRule implements api.Storage.CreateRule
func (s *FileSystemStorage) CreateRule(ctx context.Context, rule *api.RuleRecord) error {
	rulesDir := filepath.Join(s.rootDir, "categories", rule.CategoryID, "rules")
	if err := os.MkdirAll(rulesDir, 0755); err != nil {
		return fmt.Errorf("failed to create rules directory: %w", err)
	}
	return writeJSON(filepath.Join(rulesDir, rule.ID+".json"), rule)
}

// ListRules implements api.Storage.ListRules
func (s *FileSystemStorage) ListRules(ctx context.Context, categoryID string) ([]*api.RuleRecord, error) {
	rulesDir := filepath.Join(s.rootDir, "categories", categoryID, "rules")
	entries, err := os.ReadDir(rulesDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rules directory: %w", err)
	}

	var rules []*api.RuleRecord
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		var rule api.RuleRecord
		if err := readJSON(filepath.Join(rulesDir, entry.Name()), &rule); err != nil {
			return nil, fmt.Errorf("rule %s: %w", entry.Name(), err)
		}
		rules = append(rules, &rule)
	}
	return rules, nil
}

// CreateTemplate implements api.Storage.CreateTemplate
func (s *FileSystemStorage) CreateTemplate(ctx context.Context, template *api.SpecTemplate) error {
	templatesDir := filepath.Join(s.rootDir, "templates")
	if err := os.MkdirAll(templatesDir, 0755); err != nil {
		return fmt.Errorf("failed to create templates directory: %w", err)
	}
	return writeJSON(filepath.Join(templatesDir, template.ID+".json"), template)
}

// GetTemplate implements api.Storage.GetTemplate
func (s *FileSystemStorage) GetTemplate(ctx context.Context, id string) (*api.SpecTemplate, error) {
	var template api.SpecTemplate
	if err := readJSON(filepath.Join(s.rootDir, "templates", id+".json"), &template); err != nil {
		return nil, fmt.Errorf("template %s: %w", id, err)
	}
	return &template, nil
}

// ListTemplates implements api.Storage.ListTemplates
func (s *FileSystemStorage) ListTemplates(ctx context.Context, categoryID string) ([]*api.SpecTemplate, error) {
	templatesDir := filepath.Join(s.rootDir, "templates")
	entries, err := os.ReadDir(templatesDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read templates directory: %w", err)
	}

	var templates []*api.SpecTemplate
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		var template api.SpecTemplate
		if err := readJSON(filepath.Join(templatesDir, entry.Name()), &template); err != nil {
			return nil, fmt.Errorf("template %s: %w", entry.Name(), err)
		}
		if categoryID == "" || template.CategoryID == categoryID {
			templates = append(templates, &template)
		}
	}
	return templates, nil
}

// CreateDocument implements api.Storage.CreateDocument
func (s *FileSystemStorage) CreateDocument(ctx context.Context, doc *api.Document, content io.Reader) error {
	docsDir := filepath.Join(s.rootDir, "devices", doc.DeviceID, "docs")
	if err := os.MkdirAll(docsDir, 0755); err != nil {
		return fmt.Errorf("failed to create docs directory: %w", err)
	}

	blobFile := filepath.Join(docsDir, doc.ID+".bin")
	f, err := os.Create(blobFile)
	if err != nil {
		return fmt.Errorf("failed to create document blob: %w", err)
	}
	size, err := io.Copy(f, content)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(blobFile)
		return fmt.Errorf("failed to write document blob: %w", err)
	}
	doc.Size = size

	if err := writeJSON(filepath.Join(docsDir, doc.ID+".json"), doc); err != nil {
		os.Remove(blobFile)
		return err
	}
	return nil
}

// GetDocument implements api.Storage.GetDocument
func (s *FileSystemStorage) GetDocument(ctx context.Context, id string) (*api.Document, io.ReadCloser, error) {
	doc, err := s.findDocument(id)
	if err != nil {
		return nil, nil, err
	}

	blobFile := filepath.Join(s.rootDir, "devices", doc.DeviceID, "docs", doc.ID+".bin")
	f, err := os.Open(blobFile)
	if err != nil {
		return nil, nil, fmt.Errorf("document blob %s: %w", id, mapNotExist(err))
	}
	return doc, f, nil
}

// ListDocuments implements api.Storage.ListDocuments
func (s *FileSystemStorage) ListDocuments(ctx context.Context, deviceID string) ([]*api.Document, error) {
	docsDir := filepath.Join(s.rootDir, "devices", deviceID, "docs")
	entries, err := os.ReadDir(docsDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read docs directory: %w", err)
	}

	var docs []*api.Document
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		var doc api.Document
		if err := readJSON(filepath.Join(docsDir, entry.Name()), &doc); err != nil {
			return nil, fmt.Errorf("document %s: %w", entry.Name(), err)
		}
		docs = append(docs, &doc)
	}
	return docs, nil
}

// findDocument scans device directories for the document metadata. Document
// ids are globally unique, so the first hit wins.
func (s *FileSystemStorage) findDocument(id string) (*api.Document, error) {
	devicesDir := filepath.Join(s.rootDir, "devices")
	entries, err := os.ReadDir(devicesDir)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("document %s: %w", id, api.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read devices directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		metaFile := filepath.Join(devicesDir, entry.Name(), "docs", id+".json")
		if _, err := os.Stat(metaFile); err != nil {
			continue
		}
		var doc api.Document
		if err := readJSON(metaFile, &doc); err != nil {
			return nil, fmt.Errorf("document %s: %w", id, err)
		}
		return &doc, nil
	}
	return nil, fmt.Errorf("document %s: %w", id, api.ErrNotFound)
}

func writeJSON(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return mapNotExist(err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", filepath.Base(path), err)
	}
	return nil
}

// mapNotExist converts filesystem not-found errors to the API sentinel so
// handlers can translate them to 404s.
func mapNotExist(err error) error {
	if os.IsNotExist(err) {
		return api.ErrNotFound
	}
	return err
}
