package analytics

import (
	"context"
	"database/sql"
	"time"
)

// Service provides read-side analytics for the admin dashboard
type Service struct {
	db *sql.DB
}

// NewService creates a new analytics service
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// OverviewResponse contains high-level catalog KPIs
type OverviewResponse struct {
	TotalCategories    int64   `json:"total_categories"`
	TotalDevices       int64   `json:"total_devices"`
	Comparisons24h     int64   `json:"comparisons_24h"`
	Comparisons7d      int64   `json:"comparisons_7d"`
	Comparisons30d     int64   `json:"comparisons_30d"`
	DeviceViews24h     int64   `json:"device_views_24h"`
	FullVerdictRate30d float64 `json:"full_verdict_rate_30d"`
	AvgConfidence30d   float64 `json:"avg_confidence_30d"`
	AvgComparisonMs    float64 `json:"avg_comparison_ms"`
}

// GetOverview retrieves high-level KPIs
func (s *Service) GetOverview(ctx context.Context) (*OverviewResponse, error) {
	var overview OverviewResponse

	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM categories").Scan(&overview.TotalCategories)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM devices").Scan(&overview.TotalDevices)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT
			SUM(CASE WHEN date >= CURRENT_DATE - INTERVAL '1 day' THEN comparison_count ELSE 0 END) AS comparisons_24h,
			SUM(CASE WHEN date >= CURRENT_DATE - INTERVAL '7 days' THEN comparison_count ELSE 0 END) AS comparisons_7d,
			SUM(CASE WHEN date >= CURRENT_DATE - INTERVAL '30 days' THEN comparison_count ELSE 0 END) AS comparisons_30d,
			SUM(CASE WHEN date >= CURRENT_DATE - INTERVAL '1 day' THEN view_count ELSE 0 END) AS views_24h
		FROM device_stats_daily
	`
	err = s.db.QueryRowContext(ctx, query).Scan(
		&overview.Comparisons24h,
		&overview.Comparisons7d,
		&overview.Comparisons30d,
		&overview.DeviceViews24h,
	)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	query = `
		SELECT
			COALESCE(SUM(full_count)::float / NULLIF(SUM(comparison_count), 0), 0),
			COALESCE(AVG(avg_confidence), 0),
			COALESCE(AVG(avg_duration_ms), 0)
		FROM device_stats_daily
		WHERE date >= CURRENT_DATE - INTERVAL '30 days'
	`
	err = s.db.QueryRowContext(ctx, query).Scan(
		&overview.FullVerdictRate30d,
		&overview.AvgConfidence30d,
		&overview.AvgComparisonMs,
	)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	return &overview, nil
}

// TimeSeriesPoint represents a single data point in a time series
type TimeSeriesPoint struct {
	Date  string `json:"date"`
	Value int64  `json:"value"`
}

// PartnerStats counts comparisons against a particular target device
type PartnerStats struct {
	DeviceID    string `json:"device_id"`
	Comparisons int64  `json:"comparisons"`
}

// DeviceStatsResponse contains per-device analytics
type DeviceStatsResponse struct {
	DeviceID         string            `json:"device_id"`
	TotalViews       int64             `json:"total_views"`
	TotalComparisons int64             `json:"total_comparisons"`
	VerdictBreakdown map[string]int64  `json:"verdict_breakdown"`
	ComparisonsByDay []TimeSeriesPoint `json:"comparisons_by_day"`
	FrequentPartners []PartnerStats    `json:"frequent_partners"`
	AvgConfidence    float64           `json:"avg_confidence"`
	SuccessRate      float64           `json:"success_rate"`
	LastComparedAt   *time.Time        `json:"last_compared_at"`
}

// periodDays converts a period string to a day count, defaulting to 30.
func periodDays(period string) int {
	switch period {
	case "7d":
		return 7
	case "90d":
		return 90
	default:
		return 30
	}
}

// GetDeviceStats retrieves per-device analytics
func (s *Service) GetDeviceStats(ctx context.Context, deviceID string, period string) (*DeviceStatsResponse, error) {
	days := periodDays(period)

	stats := DeviceStatsResponse{
		DeviceID:         deviceID,
		VerdictBreakdown: make(map[string]int64),
	}

	query := `
		SELECT
			COALESCE(SUM(view_count), 0),
			COALESCE(SUM(comparison_count), 0),
			COALESCE(SUM(full_count), 0),
			COALESCE(SUM(partial_count), 0),
			COALESCE(SUM(none_count), 0),
			COALESCE(SUM(failure_count), 0),
			COALESCE(AVG(avg_confidence), 0)
		FROM device_stats_daily
		WHERE device_id = $1
		  AND date >= CURRENT_DATE - $2::integer * INTERVAL '1 day'
	`
	var full, partial, none, failures int64
	err := s.db.QueryRowContext(ctx, query, deviceID, days).Scan(
		&stats.TotalViews,
		&stats.TotalComparisons,
		&full,
		&partial,
		&none,
		&failures,
		&stats.AvgConfidence,
	)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	stats.VerdictBreakdown["full"] = full
	stats.VerdictBreakdown["partial"] = partial
	stats.VerdictBreakdown["none"] = none
	if stats.TotalComparisons > 0 {
		stats.SuccessRate = float64(stats.TotalComparisons-failures) / float64(stats.TotalComparisons)
	}

	query = `
		SELECT date, comparison_count
		FROM device_stats_daily
		WHERE device_id = $1
		  AND date >= CURRENT_DATE - $2::integer * INTERVAL '1 day'
		ORDER BY date ASC
	`
	rows, err := s.db.QueryContext(ctx, query, deviceID, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var point TimeSeriesPoint
		var date time.Time
		if err := rows.Scan(&date, &point.Value); err != nil {
			return nil, err
		}
		point.Date = date.Format("2006-01-02")
		stats.ComparisonsByDay = append(stats.ComparisonsByDay, point)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Most frequently compared-against devices
	query = `
		SELECT target_device_id, COUNT(*)
		FROM comparison_events
		WHERE source_device_id = $1
		  AND compared_at >= NOW() - $2::integer * INTERVAL '1 day'
		GROUP BY target_device_id
		ORDER BY COUNT(*) DESC
		LIMIT 10
	`
	rows, err = s.db.QueryContext(ctx, query, deviceID, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var ps PartnerStats
		if err := rows.Scan(&ps.DeviceID, &ps.Comparisons); err != nil {
			return nil, err
		}
		stats.FrequentPartners = append(stats.FrequentPartners, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	query = `
		SELECT MAX(compared_at)
		FROM comparison_events
		WHERE source_device_id = $1 OR target_device_id = $1
	`
	var lastCompared sql.NullTime
	err = s.db.QueryRowContext(ctx, query, deviceID).Scan(&lastCompared)
	if err == nil && lastCompared.Valid {
		stats.LastComparedAt = &lastCompared.Time
	}

	return &stats, nil
}

// PopularDevice represents a frequently viewed or compared device
type PopularDevice struct {
	DeviceID         string  `json:"device_id"`
	CategoryID       string  `json:"category_id"`
	TotalComparisons int64   `json:"total_comparisons"`
	TotalViews       int64   `json:"total_views"`
	ActiveDays       int     `json:"active_days"`
	FullVerdictRate  float64 `json:"full_verdict_rate"`
}

// GetPopularDevices retrieves top devices by comparison volume
func (s *Service) GetPopularDevices(ctx context.Context, period string, limit int) ([]PopularDevice, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	days := periodDays(period)

	query := `
		SELECT
			device_id,
			category_id,
			SUM(comparison_count) AS total_comparisons,
			SUM(view_count) AS total_views,
			COUNT(DISTINCT date) AS active_days,
			COALESCE(SUM(full_count)::float / NULLIF(SUM(comparison_count), 0), 0) AS full_verdict_rate
		FROM device_stats_daily
		WHERE date >= CURRENT_DATE - $1::integer * INTERVAL '1 day'
		GROUP BY device_id, category_id
		HAVING SUM(comparison_count) + SUM(view_count) > 0
		ORDER BY total_comparisons DESC, total_views DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, days, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []PopularDevice
	for rows.Next() {
		var d PopularDevice
		if err := rows.Scan(
			&d.DeviceID,
			&d.CategoryID,
			&d.TotalComparisons,
			&d.TotalViews,
			&d.ActiveDays,
			&d.FullVerdictRate,
		); err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return devices, nil
}

// TrendingDevice represents a device with rising comparison volume
type TrendingDevice struct {
	DeviceID            string  `json:"device_id"`
	CurrentComparisons  int64   `json:"current_comparisons"`
	PreviousComparisons int64   `json:"previous_comparisons"`
	GrowthRate          float64 `json:"growth_rate"`
}

// GetTrendingDevices retrieves devices with highest comparison growth. Reads
// from the trending_devices materialized view refreshed by the sweeper.
func (s *Service) GetTrendingDevices(ctx context.Context, limit int) ([]TrendingDevice, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}

	query := `
		SELECT
			device_id,
			current_comparisons,
			previous_comparisons,
			growth_rate
		FROM trending_devices
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []TrendingDevice
	for rows.Next() {
		var d TrendingDevice
		if err := rows.Scan(
			&d.DeviceID,
			&d.CurrentComparisons,
			&d.PreviousComparisons,
			&d.GrowthRate,
		); err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return devices, nil
}
