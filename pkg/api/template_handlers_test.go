package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridwork/hubcap/pkg/compat"
)

// templateBody builds a JSON payload for template creation. Defaults are
// plain JSON values so the handler exercises Value decoding.
func templateBody(name string, defaults map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"name": name,
		"fields": []map[string]interface{}{
			{"name": "power_watts", "type": "number", "metadata": map[string]interface{}{"weight": 1.0}},
			{"name": "connector", "type": "enum",
				"constraints": map[string]interface{}{"enum": []string{"usb-c", "thunderbolt-4"}},
				"metadata":    map[string]interface{}{"weight": 1.0}},
		},
		"defaults": defaults,
	}
}

func TestCreateTemplate_Success(t *testing.T) {
	storage := newMockStorage()
	storage.addCategory("docks", "Docks")
	server := NewServer(storage, nil)

	w := doJSON(t, server, "POST", "/categories/docks/templates", templateBody("usb-c dock", map[string]interface{}{
		"connector": "usb-c",
	}))

	assert.Equal(t, http.StatusCreated, w.Code)

	var response SpecTemplate
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "docks", response.CategoryID)
	assert.NotEmpty(t, response.ID)
	assert.False(t, response.CreatedAt.IsZero())
	assert.Len(t, storage.templates, 1)
}

func TestCreateTemplate_MissingName(t *testing.T) {
	storage := newMockStorage()
	storage.addCategory("docks", "Docks")
	server := NewServer(storage, nil)

	w := doJSON(t, server, "POST", "/categories/docks/templates", templateBody("", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateTemplate_InvalidFieldDefinition(t *testing.T) {
	storage := newMockStorage()
	storage.addCategory("docks", "Docks")
	server := NewServer(storage, nil)

	body := map[string]interface{}{
		"name": "broken",
		"fields": []map[string]interface{}{
			{"name": "connector", "type": "enum"}, // enum without values
		},
	}
	w := doJSON(t, server, "POST", "/categories/docks/templates", body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateTemplate_DefaultForUndeclaredField(t *testing.T) {
	storage := newMockStorage()
	storage.addCategory("docks", "Docks")
	server := NewServer(storage, nil)

	w := doJSON(t, server, "POST", "/categories/docks/templates", templateBody("usb-c dock", map[string]interface{}{
		"color": "space grey",
	}))

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Contains(t, response["error"], "undeclared field")
}

func TestCreateTemplate_DefaultTypeMismatch(t *testing.T) {
	storage := newMockStorage()
	storage.addCategory("docks", "Docks")
	server := NewServer(storage, nil)

	w := doJSON(t, server, "POST", "/categories/docks/templates", templateBody("usb-c dock", map[string]interface{}{
		"power_watts": "lots",
	}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateTemplate_CategoryNotFound(t *testing.T) {
	server := NewServer(newMockStorage(), nil)

	w := doJSON(t, server, "POST", "/categories/ghost/templates", templateBody("usb-c dock", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListTemplates_FiltersByCategory(t *testing.T) {
	storage := newMockStorage()
	storage.templates["tpl-1"] = &SpecTemplate{ID: "tpl-1", CategoryID: "docks", Name: "usb-c dock"}
	storage.templates["tpl-2"] = &SpecTemplate{ID: "tpl-2", CategoryID: "laptops", Name: "workstation"}
	server := NewServer(storage, nil)

	w := doJSON(t, server, "GET", "/categories/docks/templates", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var response []SpecTemplate
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(t, response, 1)
	assert.Equal(t, "tpl-1", response[0].ID)
}

func TestGetTemplate_Success(t *testing.T) {
	storage := newMockStorage()
	storage.templates["tpl-1"] = &SpecTemplate{
		ID:         "tpl-1",
		CategoryID: "docks",
		Name:       "usb-c dock",
		Defaults:   map[string]compat.Value{"connector": compat.String("usb-c")},
	}
	server := NewServer(storage, nil)

	w := doJSON(t, server, "GET", "/templates/tpl-1", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var response SpecTemplate
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "usb-c dock", response.Name)
	connector, ok := response.Defaults["connector"].AsString()
	assert.True(t, ok)
	assert.Equal(t, "usb-c", connector)
}

func TestGetTemplate_NotFound(t *testing.T) {
	server := NewServer(newMockStorage(), nil)

	w := doJSON(t, server, "GET", "/templates/ghost", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
