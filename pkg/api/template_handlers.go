package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/gridwork/hubcap/pkg/compat"
	"github.com/gridwork/hubcap/pkg/httputil"
)

// createTemplate handles POST /categories/{id}/templates
func (s *Server) createTemplate(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var template SpecTemplate
	if !httputil.ParseJSONOrError(w, r, &template) {
		return
	}
	if !httputil.RequireNonEmpty(w, template.Name, "name") {
		return
	}

	// Template fields reuse the schema field contract, so they validate the
	// same way a schema's fields do.
	probe := compat.CategorySchema{CategoryID: categoryID, Version: "template", Fields: template.Fields}
	if err := probe.Validate(); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	for name, value := range template.Defaults {
		def, ok := probe.Field(name)
		if !ok {
			httputil.WriteValidationError(w, "default for undeclared field "+name)
			return
		}
		if err := compat.CheckValueType(name, value, def.Type); err != nil {
			httputil.WriteValidationError(w, err.Error())
			return
		}
	}

	if _, err := s.storage.GetCategory(r.Context(), categoryID); err != nil {
		writeStorageError(w, err)
		return
	}

	if template.ID == "" {
		template.ID = uuid.NewString()
	}
	template.CategoryID = categoryID
	template.CreatedAt = time.Now()

	if err := s.storage.CreateTemplate(r.Context(), &template); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteCreated(w, template)
}

// listTemplates handles GET /categories/{id}/templates
func (s *Server) listTemplates(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	templates, err := s.storage.ListTemplates(r.Context(), categoryID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, templates)
}

// getTemplate handles GET /templates/{id}
func (s *Server) getTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	template, err := s.storage.GetTemplate(r.Context(), id)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	httputil.WriteSuccess(w, template)
}
