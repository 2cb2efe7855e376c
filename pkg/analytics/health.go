package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"time"
)

// HealthScorer assesses how trustworthy a device's catalog entry is: how
// complete the spec is against its schema, how stale it is, and how often
// comparisons involving it fail.
type HealthScorer struct {
	db *sql.DB
}

// NewHealthScorer creates a new health scorer
func NewHealthScorer(db *sql.DB) *HealthScorer {
	return &HealthScorer{db: db}
}

// DeviceHealth represents a device catalog-entry health assessment
type DeviceHealth struct {
	DeviceID          string   `json:"device_id"`
	CategoryID        string   `json:"category_id"`
	HealthScore       float64  `json:"health_score"`   // 0-100 (higher is better)
	CoverageScore     float64  `json:"coverage_score"` // share of schema fields populated, 0-100
	MissingFields     []string `json:"missing_fields"`
	StalenessDays     int      `json:"staleness_days"`
	FailureRate30d    float64  `json:"failure_rate_30d"`
	Comparisons30d    int      `json:"comparisons_30d"`
	SchemaVersionLag  int      `json:"schema_version_lag"` // schemas published after the pinned one
	Recommendations   []string `json:"recommendations"`
}

// CalculateHealth computes health metrics for a device
func (h *HealthScorer) CalculateHealth(ctx context.Context, deviceID string) (*DeviceHealth, error) {
	health := &DeviceHealth{DeviceID: deviceID}

	specFields, schemaVersion, updatedAt, err := h.loadSpec(ctx, deviceID, health)
	if err != nil {
		return nil, err
	}

	health.CoverageScore, health.MissingFields, err = h.calculateCoverage(ctx, health.CategoryID, schemaVersion, specFields)
	if err != nil {
		return nil, err
	}

	health.SchemaVersionLag, err = h.schemaVersionLag(ctx, health.CategoryID, schemaVersion)
	if err != nil {
		return nil, err
	}

	health.StalenessDays = int(time.Since(updatedAt).Hours() / 24)

	health.FailureRate30d, health.Comparisons30d, err = h.comparisonFailureRate(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	health.HealthScore = h.calculateOverallHealth(health)
	health.Recommendations = h.generateRecommendations(health)

	return health, nil
}

// loadSpec loads the device's spec fields, schema version and last update time.
func (h *HealthScorer) loadSpec(ctx context.Context, deviceID string, health *DeviceHealth) (map[string]json.RawMessage, string, time.Time, error) {
	query := `
		SELECT d.category_id, s.schema_version, s.specifications, s.updated_at
		FROM devices d
		JOIN device_specs s ON d.id = s.device_id
		WHERE d.id = $1
	`
	var (
		specJSON      []byte
		schemaVersion string
		updatedAt     time.Time
	)
	err := h.db.QueryRowContext(ctx, query, deviceID).Scan(
		&health.CategoryID, &schemaVersion, &specJSON, &updatedAt,
	)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(specJSON, &fields); err != nil {
		return nil, "", time.Time{}, err
	}
	return fields, schemaVersion, updatedAt, nil
}

// calculateCoverage compares the populated spec fields against the schema the
// spec is pinned to. Missing high-importance fields are listed by name.
func (h *HealthScorer) calculateCoverage(ctx context.Context, categoryID, schemaVersion string, specFields map[string]json.RawMessage) (float64, []string, error) {
	query := `
		SELECT fields
		FROM category_schemas
		WHERE category_id = $1 AND version = $2
	`
	var fieldsJSON []byte
	err := h.db.QueryRowContext(ctx, query, categoryID, schemaVersion).Scan(&fieldsJSON)
	if err == sql.ErrNoRows {
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, err
	}

	var schemaFields []struct {
		Name     string `json:"name"`
		Metadata struct {
			Importance string `json:"importance"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(fieldsJSON, &schemaFields); err != nil {
		return 0, nil, err
	}
	if len(schemaFields) == 0 {
		return 100, nil, nil
	}

	populated := 0
	var missing []string
	for _, f := range schemaFields {
		if _, ok := specFields[f.Name]; ok {
			populated++
			continue
		}
		if f.Metadata.Importance == "high" {
			missing = append(missing, f.Name)
		}
	}

	coverage := float64(populated) / float64(len(schemaFields)) * 100
	return coverage, missing, nil
}

// schemaVersionLag counts how many schemas were published for the category
// after the version the device spec is pinned to.
func (h *HealthScorer) schemaVersionLag(ctx context.Context, categoryID, schemaVersion string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM category_schemas
		WHERE category_id = $1
		  AND created_at > (
			SELECT created_at FROM category_schemas
			WHERE category_id = $1 AND version = $2
		  )
	`
	var lag int
	err := h.db.QueryRowContext(ctx, query, categoryID, schemaVersion).Scan(&lag)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return lag, err
}

// comparisonFailureRate computes the 30-day failure rate for comparisons
// involving the device on either side.
func (h *HealthScorer) comparisonFailureRate(ctx context.Context, deviceID string) (float64, int, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(COUNT(*) FILTER (WHERE NOT success)::float / NULLIF(COUNT(*), 0), 0)
		FROM comparison_events
		WHERE (source_device_id = $1 OR target_device_id = $1)
		  AND compared_at >= NOW() - INTERVAL '30 days'
	`
	var count int
	var rate float64
	err := h.db.QueryRowContext(ctx, query, deviceID).Scan(&count, &rate)
	if err != nil && err != sql.ErrNoRows {
		return 0, 0, err
	}
	return rate, count, nil
}

// calculateOverallHealth computes overall health score (0-100, higher is better)
func (h *HealthScorer) calculateOverallHealth(health *DeviceHealth) float64 {
	weights := map[string]float64{
		"coverage":  0.40,
		"missing":   0.20,
		"staleness": 0.15,
		"failures":  0.15,
		"lag":       0.10,
	}

	missingScore := math.Max(100-float64(len(health.MissingFields))*10, 0)

	stalenessScore := 100.0
	switch {
	case health.StalenessDays > 365:
		stalenessScore = 25
	case health.StalenessDays > 180:
		stalenessScore = 50
	case health.StalenessDays > 90:
		stalenessScore = 75
	}

	failureScore := math.Max(100-health.FailureRate30d*200, 0)
	lagScore := math.Max(100-float64(health.SchemaVersionLag)*25, 0)

	score := weights["coverage"]*health.CoverageScore +
		weights["missing"]*missingScore +
		weights["staleness"]*stalenessScore +
		weights["failures"]*failureScore +
		weights["lag"]*lagScore

	return math.Round(score*10) / 10
}

// generateRecommendations creates actionable suggestions
func (h *HealthScorer) generateRecommendations(health *DeviceHealth) []string {
	var recommendations []string

	if len(health.MissingFields) > 0 {
		recommendations = append(recommendations,
			"Fill in the missing high-importance fields; comparisons against this device fall back to unknown verdicts for them.")
	}

	if health.CoverageScore < 50 {
		recommendations = append(recommendations,
			"Spec coverage is below half the schema. Consider applying a category template as a starting point.")
	}

	if health.SchemaVersionLag > 0 {
		recommendations = append(recommendations,
			"The spec is pinned to an outdated schema version. Re-validate it against the latest schema.")
	}

	if health.StalenessDays > 180 {
		recommendations = append(recommendations,
			"The spec has not been updated in over six months. Verify it still matches the manufacturer's data.")
	}

	if health.FailureRate30d > 0.1 && health.Comparisons30d >= 10 {
		recommendations = append(recommendations,
			"Comparisons involving this device fail unusually often. Check for malformed field values.")
	}

	if len(recommendations) == 0 {
		recommendations = append(recommendations,
			"Catalog entry is healthy. Continue monitoring.")
	}

	return recommendations
}
