package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Alerter monitors catalog metrics and triggers alerts
type Alerter struct {
	db *sql.DB
}

// NewAlerter creates a new Alerter instance
func NewAlerter(db *sql.DB) *Alerter {
	return &Alerter{db: db}
}

// Alert represents an alert notification
type Alert struct {
	Type        string // "coverage", "performance", "staleness"
	Severity    string // "critical", "warning", "info"
	Title       string
	Message     string
	Details     map[string]interface{}
	TriggeredAt time.Time
}

// CoverageAlert flags a device whose spec is missing too much of its schema
type CoverageAlert struct {
	DeviceID      string
	CategoryID    string
	CoveragePct   float64
	MissingFields int
}

// PerformanceAlert flags a category with slow comparisons
type PerformanceAlert struct {
	CategoryID      string
	P95DurationMs   int
	ThresholdMs     int
	ComparisonCount int
}

// StalenessAlert flags a device whose spec has not changed in a long time
type StalenessAlert struct {
	DeviceID      string
	CategoryID    string
	LastUpdateAge int // days
}

// CheckCoverageAlerts finds devices whose specs populate less than the given
// fraction of their pinned schema's fields.
func (a *Alerter) CheckCoverageAlerts(ctx context.Context, threshold float64) ([]CoverageAlert, error) {
	query := `
		SELECT
			s.device_id,
			s.category_id,
			COUNT(spec_field.key)::float / NULLIF(jsonb_array_length(cs.fields), 0) * 100 AS coverage_pct,
			GREATEST(jsonb_array_length(cs.fields) - COUNT(spec_field.key), 0) AS missing_fields
		FROM device_specs s
		JOIN category_schemas cs
			ON cs.category_id = s.category_id AND cs.version = s.schema_version
		LEFT JOIN LATERAL jsonb_object_keys(s.specifications) AS spec_field(key) ON TRUE
		GROUP BY s.device_id, s.category_id, cs.fields
		HAVING COUNT(spec_field.key)::float / NULLIF(jsonb_array_length(cs.fields), 0) * 100 < $1
		ORDER BY coverage_pct ASC
		LIMIT 20
	`

	rows, err := a.db.QueryContext(ctx, query, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to query coverage alerts: %w", err)
	}
	defer rows.Close()

	var alerts []CoverageAlert
	for rows.Next() {
		var alert CoverageAlert
		if err := rows.Scan(&alert.DeviceID, &alert.CategoryID, &alert.CoveragePct, &alert.MissingFields); err != nil {
			return nil, fmt.Errorf("failed to scan coverage alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating coverage alerts: %w", err)
	}

	return alerts, nil
}

// CheckPerformanceAlerts finds categories whose p95 comparison duration
// exceeded the threshold in the last week.
func (a *Alerter) CheckPerformanceAlerts(ctx context.Context, thresholdMs int) ([]PerformanceAlert, error) {
	query := `
		SELECT
			category_id,
			MAX(p95_duration_ms) AS p95_duration_ms,
			SUM(comparison_count) AS comparison_count
		FROM category_stats_daily
		WHERE date >= CURRENT_DATE - INTERVAL '7 days'
		GROUP BY category_id
		HAVING MAX(p95_duration_ms) > $1
		ORDER BY p95_duration_ms DESC
		LIMIT 10
	`

	rows, err := a.db.QueryContext(ctx, query, thresholdMs)
	if err != nil {
		return nil, fmt.Errorf("failed to query performance alerts: %w", err)
	}
	defer rows.Close()

	var alerts []PerformanceAlert
	for rows.Next() {
		var alert PerformanceAlert
		alert.ThresholdMs = thresholdMs
		if err := rows.Scan(&alert.CategoryID, &alert.P95DurationMs, &alert.ComparisonCount); err != nil {
			return nil, fmt.Errorf("failed to scan performance alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating performance alerts: %w", err)
	}

	return alerts, nil
}

// CheckStalenessAlerts finds devices whose specs have not been updated for
// more than the given number of days.
func (a *Alerter) CheckStalenessAlerts(ctx context.Context, maxAgeDays int) ([]StalenessAlert, error) {
	query := `
		SELECT
			device_id,
			category_id,
			DATE_PART('day', NOW() - updated_at)::integer AS age_days
		FROM device_specs
		WHERE updated_at < NOW() - $1::integer * INTERVAL '1 day'
		ORDER BY updated_at ASC
		LIMIT 20
	`

	rows, err := a.db.QueryContext(ctx, query, maxAgeDays)
	if err != nil {
		return nil, fmt.Errorf("failed to query staleness alerts: %w", err)
	}
	defer rows.Close()

	var alerts []StalenessAlert
	for rows.Next() {
		var alert StalenessAlert
		if err := rows.Scan(&alert.DeviceID, &alert.CategoryID, &alert.LastUpdateAge); err != nil {
			return nil, fmt.Errorf("failed to scan staleness alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating staleness alerts: %w", err)
	}

	return alerts, nil
}

// CheckAllAlerts runs all alert checks and logs results
func (a *Alerter) CheckAllAlerts(ctx context.Context) error {
	log.Info("Running catalog alert checks")

	// Coverage below 60% of schema fields
	coverageAlerts, err := a.CheckCoverageAlerts(ctx, 60.0)
	if err != nil {
		log.WithError(err).Error("Failed to check coverage alerts")
	} else if len(coverageAlerts) > 0 {
		log.Warnf("Found %d devices with low spec coverage", len(coverageAlerts))
		for _, alert := range coverageAlerts {
			log.WithFields(log.Fields{
				"device_id":      alert.DeviceID,
				"category_id":    alert.CategoryID,
				"coverage_pct":   alert.CoveragePct,
				"missing_fields": alert.MissingFields,
			}).Warn("Low spec coverage")
		}
	} else {
		log.Info("No coverage alerts")
	}

	// Comparisons slower than 500ms at p95
	perfAlerts, err := a.CheckPerformanceAlerts(ctx, 500)
	if err != nil {
		log.WithError(err).Error("Failed to check performance alerts")
	} else if len(perfAlerts) > 0 {
		log.Warnf("Found %d categories with slow comparisons", len(perfAlerts))
		for _, alert := range perfAlerts {
			log.WithFields(log.Fields{
				"category_id": alert.CategoryID,
				"p95_ms":      alert.P95DurationMs,
				"threshold":   alert.ThresholdMs,
				"comparisons": alert.ComparisonCount,
			}).Warn("Slow comparisons")
		}
	} else {
		log.Info("No performance alerts")
	}

	// Specs untouched for 180+ days
	staleAlerts, err := a.CheckStalenessAlerts(ctx, 180)
	if err != nil {
		log.WithError(err).Error("Failed to check staleness alerts")
	} else if len(staleAlerts) > 0 {
		log.Warnf("Found %d devices with stale specs", len(staleAlerts))
		for _, alert := range staleAlerts {
			log.WithFields(log.Fields{
				"device_id": alert.DeviceID,
				"age_days":  alert.LastUpdateAge,
			}).Warn("Stale device spec")
		}
	} else {
		log.Info("No staleness alerts")
	}

	log.Info("Catalog alert checks completed")
	return nil
}

// SendAlert would send alerts to external systems (email, Slack, etc.)
// This is a placeholder for integration with notification systems
func (a *Alerter) SendAlert(alert Alert) error {
	log.WithFields(log.Fields{
		"type":     alert.Type,
		"severity": alert.Severity,
		"title":    alert.Title,
	}).Warn(alert.Message)

	return nil
}
