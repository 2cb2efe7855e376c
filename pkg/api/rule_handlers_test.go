package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridwork/hubcap/pkg/compat"
)

func powerRule(id string) RuleRecord {
	return RuleRecord{
		Rule: compat.Rule{
			ID:          id,
			Name:        compat.PowerRuleName,
			SourceField: "power_watts",
			TargetField: "power_output_watts",
			Message:     "the dock must supply enough power",
		},
	}
}

func TestCreateRule_Success(t *testing.T) {
	storage := newMockStorage()
	storage.addCategory("docks", "Docks")
	server := NewServer(storage, nil)

	w := doJSON(t, server, "POST", "/categories/docks/rules", powerRule("power-basic"))

	assert.Equal(t, http.StatusCreated, w.Code)

	var response RuleRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "docks", response.CategoryID)
	assert.Equal(t, "power-basic", response.ID)
	require.Len(t, storage.rules["docks"], 1)
}

func TestCreateRule_GeneratesID(t *testing.T) {
	storage := newMockStorage()
	storage.addCategory("docks", "Docks")
	server := NewServer(storage, nil)

	rule := powerRule("")
	w := doJSON(t, server, "POST", "/categories/docks/rules", rule)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response RuleRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.NotEmpty(t, response.ID)
}

func TestCreateRule_MissingFields(t *testing.T) {
	storage := newMockStorage()
	storage.addCategory("docks", "Docks")
	server := NewServer(storage, nil)

	rule := powerRule("power-basic")
	rule.TargetField = ""
	w := doJSON(t, server, "POST", "/categories/docks/rules", rule)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Contains(t, response["error"], "target field")
}

func TestCreateRule_UnknownProcessor(t *testing.T) {
	storage := newMockStorage()
	storage.addCategory("docks", "Docks")
	server := NewServer(storage, nil)

	rule := powerRule("exotic")
	rule.Name = "quantum_entanglement"
	w := doJSON(t, server, "POST", "/categories/docks/rules", rule)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Contains(t, response["error"], "no rule processor registered")
}

func TestCreateRule_CustomProcessorRegistered(t *testing.T) {
	storage := newMockStorage()
	storage.addCategory("docks", "Docks")
	server := NewServer(storage, nil)
	server.Engine().RegisterRuleProcessor("port_count", compat.RuleProcessorFunc(
		func(rule compat.Rule, ctx *compat.Context) (compat.RuleResult, error) {
			return compat.RuleResult{Level: compat.LevelFull, Confidence: 1}, nil
		}))

	rule := powerRule("ports")
	rule.Name = "port_count"
	w := doJSON(t, server, "POST", "/categories/docks/rules", rule)

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestCreateRule_CategoryNotFound(t *testing.T) {
	server := NewServer(newMockStorage(), nil)

	w := doJSON(t, server, "POST", "/categories/ghost/rules", powerRule("power-basic"))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListRules(t *testing.T) {
	storage := newMockStorage()
	rule := powerRule("power-basic")
	rule.CategoryID = "docks"
	storage.rules["docks"] = []*RuleRecord{&rule}
	server := NewServer(storage, nil)

	w := doJSON(t, server, "GET", "/categories/docks/rules", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var response []RuleRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(t, response, 1)
	assert.Equal(t, "power-basic", response[0].ID)
}
