package api

import (
	"context"
	"fmt"

	"github.com/gridwork/hubcap/pkg/compat"
)

// storageResolver adapts a Storage backend to the engine's schema lookup
// interface. An empty version resolves to the category's latest schema.
type storageResolver struct {
	storage Storage
}

// NewSchemaResolver returns a compat.SchemaResolver backed by storage.
func NewSchemaResolver(storage Storage) compat.SchemaResolver {
	return &storageResolver{storage: storage}
}

func (r *storageResolver) ResolveSchema(ctx context.Context, categoryID, version string) (*compat.CategorySchema, error) {
	if version == "" {
		schema, err := r.storage.GetLatestSchema(ctx, categoryID)
		if err != nil {
			return nil, fmt.Errorf("resolving latest schema for %s: %w", categoryID, err)
		}
		return schema, nil
	}
	schema, err := r.storage.GetSchema(ctx, categoryID, version)
	if err != nil {
		return nil, fmt.Errorf("resolving schema %s/%s: %w", categoryID, version, err)
	}
	return schema, nil
}
