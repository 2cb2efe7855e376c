package api

import (
	"net/http"
	"time"

	"github.com/gridwork/hubcap/pkg/compat"
	"github.com/gridwork/hubcap/pkg/httputil"
)

// putDeviceSpec handles PUT /devices/{id}/spec
func (s *Server) putDeviceSpec(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	device, err := s.storage.GetDevice(r.Context(), deviceID)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	var payload struct {
		SchemaVersion  string                  `json:"schema_version,omitempty"`
		Specifications map[string]compat.Value `json:"specifications"`
	}
	if !httputil.ParseJSONOrError(w, r, &payload) {
		return
	}
	if len(payload.Specifications) == 0 {
		httputil.WriteValidationError(w, "specifications cannot be empty")
		return
	}

	version := payload.SchemaVersion
	if version == "" {
		version = device.SchemaVersion
	}

	// Unknown specification keys are tolerated, but declared fields must
	// carry values of the declared type.
	if version != "" {
		if schema, err := s.storage.GetSchema(r.Context(), device.CategoryID, version); err == nil {
			if err := validateSpecAgainstSchema(payload.Specifications, schema); err != nil {
				httputil.WriteValidationError(w, err.Error())
				return
			}
		}
	}

	spec := &compat.DeviceSpec{
		DeviceID:       deviceID,
		CategoryID:     device.CategoryID,
		SchemaVersion:  version,
		Specifications: payload.Specifications,
	}
	if err := s.storage.PutDeviceSpec(r.Context(), spec); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	if version != device.SchemaVersion {
		device.SchemaVersion = version
		device.UpdatedAt = time.Now()
		if err := s.storage.CreateDevice(r.Context(), device); err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
	}

	httputil.WriteSuccess(w, spec)
}

// getDeviceSpec handles GET /devices/{id}/spec
func (s *Server) getDeviceSpec(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	spec, err := s.storage.GetDeviceSpec(r.Context(), deviceID)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	httputil.WriteSuccess(w, spec)
}

// validateSpecAgainstSchema checks that every specification value whose key
// is declared by the schema matches the declared field type. Keys the schema
// does not know about pass through untouched.
func validateSpecAgainstSchema(specs map[string]compat.Value, schema *compat.CategorySchema) error {
	for name, value := range specs {
		def, ok := schema.Field(name)
		if !ok {
			continue
		}
		if err := compat.CheckValueType(name, value, def.Type); err != nil {
			return err
		}
	}
	return nil
}
