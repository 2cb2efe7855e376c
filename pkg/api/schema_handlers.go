package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gridwork/hubcap/pkg/compat"
	"github.com/gridwork/hubcap/pkg/httputil"
)

// createSchema handles POST /categories/{id}/schemas
func (s *Server) createSchema(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var schema compat.CategorySchema
	if !httputil.ParseJSONOrError(w, r, &schema) {
		return
	}
	schema.CategoryID = categoryID
	schema.CreatedAt = time.Now()

	if err := schema.Validate(); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	if _, err := s.storage.GetCategory(r.Context(), categoryID); err != nil {
		writeStorageError(w, err)
		return
	}

	if err := s.storage.CreateSchema(r.Context(), &schema); err != nil {
		if errors.Is(err, ErrVersionExists) {
			httputil.WriteConflict(w, err.Error())
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	// A fresh version must be visible to "latest" lookups right away.
	if s.schemaCache != nil {
		s.schemaCache.Invalidate(categoryID)
	}

	httputil.WriteCreated(w, schema)
}

// listSchemaVersions handles GET /categories/{id}/schemas
func (s *Server) listSchemaVersions(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	versions, err := s.storage.ListSchemaVersions(r.Context(), categoryID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"category_id": categoryID,
		"versions":    versions,
	})
}

// getSchema handles GET /categories/{id}/schemas/{version}
func (s *Server) getSchema(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	version, ok := httputil.ParsePathStringOrError(w, r, "version")
	if !ok {
		return
	}

	var (
		schema *compat.CategorySchema
		err    error
	)
	if version == "latest" {
		schema, err = s.storage.GetLatestSchema(r.Context(), categoryID)
	} else {
		schema, err = s.storage.GetSchema(r.Context(), categoryID, version)
	}
	if err != nil {
		writeStorageError(w, err)
		return
	}
	httputil.WriteSuccess(w, schema)
}
