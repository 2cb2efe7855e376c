package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/gridwork/hubcap/pkg/httputil"
)

// writeStorageError maps storage failures to HTTP responses.
func writeStorageError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		httputil.WriteNotFoundError(w, err.Error())
		return
	}
	httputil.WriteInternalError(w, err)
}

// createCategory handles POST /categories
func (s *Server) createCategory(w http.ResponseWriter, r *http.Request) {
	var category Category
	if !httputil.ParseJSONOrError(w, r, &category) {
		return
	}
	if !httputil.RequireNonEmpty(w, category.Name, "name") {
		return
	}

	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	category.CreatedAt = time.Now()
	category.UpdatedAt = time.Now()

	if err := s.storage.CreateCategory(r.Context(), &category); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteCreated(w, category)
}

// listCategories handles GET /categories
func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.storage.ListCategories(r.Context())
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, categories)
}

// getCategory handles GET /categories/{id}
func (s *Server) getCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	category, err := s.storage.GetCategory(r.Context(), id)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	httputil.WriteSuccess(w, category)
}

// createDevice handles POST /categories/{id}/devices
func (s *Server) createDevice(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var device Device
	if !httputil.ParseJSONOrError(w, r, &device) {
		return
	}
	if !httputil.RequireNonEmpty(w, device.Name, "name") {
		return
	}

	// The category must exist before a device can join it.
	if _, err := s.storage.GetCategory(r.Context(), categoryID); err != nil {
		writeStorageError(w, err)
		return
	}

	if device.ID == "" {
		device.ID = uuid.NewString()
	}
	device.CategoryID = categoryID
	if device.SchemaVersion == "" {
		if schema, err := s.storage.GetLatestSchema(r.Context(), categoryID); err == nil {
			device.SchemaVersion = schema.Version
		}
	}
	device.CreatedAt = time.Now()
	device.UpdatedAt = time.Now()

	if err := s.storage.CreateDevice(r.Context(), &device); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteCreated(w, device)
}

// listDevices handles GET /categories/{id}/devices
func (s *Server) listDevices(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	devices, err := s.storage.ListDevices(r.Context(), categoryID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, devices)
}

// getDevice handles GET /devices/{id}
func (s *Server) getDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	device, err := s.storage.GetDevice(r.Context(), id)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	if s.eventTracker != nil {
		s.trackDeviceView(r, device)
	}

	httputil.WriteSuccess(w, device)
}
