package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/gridwork/hubcap/pkg/httputil"
)

// createRule handles POST /categories/{id}/rules
func (s *Server) createRule(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var record RuleRecord
	if !httputil.ParseJSONOrError(w, r, &record) {
		return
	}
	record.CategoryID = categoryID
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	if err := record.Rule.Validate(); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	// Reject rules that no registered processor will ever pick up; a stored
	// rule nothing can evaluate is a configuration mistake, not a degradation
	// case.
	if !s.engine.HasRuleProcessor(record.Name) {
		httputil.WriteValidationError(w, "no rule processor registered under name "+record.Name)
		return
	}

	if _, err := s.storage.GetCategory(r.Context(), categoryID); err != nil {
		writeStorageError(w, err)
		return
	}

	if err := s.storage.CreateRule(r.Context(), &record); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteCreated(w, record)
}

// listRules handles GET /categories/{id}/rules
func (s *Server) listRules(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	rules, err := s.storage.ListRules(r.Context(), categoryID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, rules)
}
