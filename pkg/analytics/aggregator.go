package analytics

import (
	"context"
	"database/sql"
	"time"
)

// Aggregator rolls raw view and comparison events up into daily and weekly
// per-device statistics.
type Aggregator struct {
	db *sql.DB
}

// NewAggregator creates a new aggregator
func NewAggregator(db *sql.DB) *Aggregator {
	return &Aggregator{db: db}
}

// AggregateDeviceStatsDaily computes daily stats for all devices. Verdict
// counts only consider comparisons where the device was the source; a pair
// check is recorded once per direction.
func (a *Aggregator) AggregateDeviceStatsDaily(ctx context.Context, date time.Time) error {
	query := `
		INSERT INTO device_stats_daily (
			device_id, category_id, date,
			view_count, comparison_count,
			full_count, partial_count, none_count, failure_count,
			avg_confidence, avg_duration_ms
		)
		SELECT
			d.id AS device_id,
			d.category_id,
			$1::date AS date,
			COALESCE(COUNT(DISTINCT v.id), 0) AS view_count,
			COALESCE(COUNT(DISTINCT c.id), 0) AS comparison_count,
			COALESCE(COUNT(DISTINCT c.id) FILTER (WHERE c.verdict = 'full'), 0) AS full_count,
			COALESCE(COUNT(DISTINCT c.id) FILTER (WHERE c.verdict = 'partial'), 0) AS partial_count,
			COALESCE(COUNT(DISTINCT c.id) FILTER (WHERE c.verdict = 'none'), 0) AS none_count,
			COALESCE(COUNT(DISTINCT c.id) FILTER (WHERE NOT c.success), 0) AS failure_count,
			AVG(c.confidence) FILTER (WHERE c.success) AS avg_confidence,
			AVG(c.duration_ms)::integer AS avg_duration_ms
		FROM devices d
		LEFT JOIN device_view_events v ON d.id = v.device_id
			AND v.viewed_at >= $1::date
			AND v.viewed_at < $1::date + INTERVAL '1 day'
		LEFT JOIN comparison_events c ON d.id = c.source_device_id
			AND c.compared_at >= $1::date
			AND c.compared_at < $1::date + INTERVAL '1 day'
		GROUP BY d.id, d.category_id
		ON CONFLICT (device_id, date) DO UPDATE SET
			view_count = EXCLUDED.view_count,
			comparison_count = EXCLUDED.comparison_count,
			full_count = EXCLUDED.full_count,
			partial_count = EXCLUDED.partial_count,
			none_count = EXCLUDED.none_count,
			failure_count = EXCLUDED.failure_count,
			avg_confidence = EXCLUDED.avg_confidence,
			avg_duration_ms = EXCLUDED.avg_duration_ms
	`
	_, err := a.db.ExecContext(ctx, query, date)
	return err
}

// AggregateDeviceStatsWeekly computes weekly stats from the daily rollup
func (a *Aggregator) AggregateDeviceStatsWeekly(ctx context.Context, weekStart time.Time) error {
	weekEnd := weekStart.AddDate(0, 0, 7)

	query := `
		INSERT INTO device_stats_weekly (
			device_id, category_id, week_start, week_end,
			view_count, comparison_count,
			full_count, partial_count, none_count, failure_count,
			avg_confidence, avg_duration_ms
		)
		SELECT
			device_id,
			category_id,
			$1::date AS week_start,
			$2::date AS week_end,
			SUM(view_count) AS view_count,
			SUM(comparison_count) AS comparison_count,
			SUM(full_count) AS full_count,
			SUM(partial_count) AS partial_count,
			SUM(none_count) AS none_count,
			SUM(failure_count) AS failure_count,
			AVG(avg_confidence) AS avg_confidence,
			AVG(avg_duration_ms)::integer AS avg_duration_ms
		FROM device_stats_daily
		WHERE date >= $1::date AND date < $2::date
		GROUP BY device_id, category_id
		ON CONFLICT (device_id, week_start) DO UPDATE SET
			view_count = EXCLUDED.view_count,
			comparison_count = EXCLUDED.comparison_count,
			full_count = EXCLUDED.full_count,
			partial_count = EXCLUDED.partial_count,
			none_count = EXCLUDED.none_count,
			failure_count = EXCLUDED.failure_count,
			avg_confidence = EXCLUDED.avg_confidence,
			avg_duration_ms = EXCLUDED.avg_duration_ms
	`
	_, err := a.db.ExecContext(ctx, query, weekStart, weekEnd)
	return err
}

// AggregateCategoryStatsDaily computes daily comparison stats per category,
// including matrix computations which never appear in the per-device rollup.
func (a *Aggregator) AggregateCategoryStatsDaily(ctx context.Context, date time.Time) error {
	query := `
		INSERT INTO category_stats_daily (
			category_id, date,
			comparison_count, failure_count,
			avg_duration_ms, p95_duration_ms,
			matrix_count, avg_matrix_pairs
		)
		SELECT
			c.category_id,
			$1::date AS date,
			COUNT(c.*) AS comparison_count,
			COUNT(*) FILTER (WHERE NOT c.success) AS failure_count,
			AVG(c.duration_ms)::integer AS avg_duration_ms,
			PERCENTILE_CONT(0.95) WITHIN GROUP (ORDER BY c.duration_ms)::integer AS p95_duration_ms,
			(SELECT COUNT(*) FROM matrix_events m
				WHERE m.category_id = c.category_id
				  AND m.computed_at >= $1::date
				  AND m.computed_at < $1::date + INTERVAL '1 day') AS matrix_count,
			(SELECT AVG(m.pair_count)::integer FROM matrix_events m
				WHERE m.category_id = c.category_id
				  AND m.computed_at >= $1::date
				  AND m.computed_at < $1::date + INTERVAL '1 day') AS avg_matrix_pairs
		FROM comparison_events c
		WHERE c.compared_at >= $1::date
		  AND c.compared_at < $1::date + INTERVAL '1 day'
		  AND c.category_id IS NOT NULL
		GROUP BY c.category_id
		ON CONFLICT (category_id, date) DO UPDATE SET
			comparison_count = EXCLUDED.comparison_count,
			failure_count = EXCLUDED.failure_count,
			avg_duration_ms = EXCLUDED.avg_duration_ms,
			p95_duration_ms = EXCLUDED.p95_duration_ms,
			matrix_count = EXCLUDED.matrix_count,
			avg_matrix_pairs = EXCLUDED.avg_matrix_pairs
	`
	_, err := a.db.ExecContext(ctx, query, date)
	return err
}

// RefreshMaterializedViews refreshes all materialized views
func (a *Aggregator) RefreshMaterializedViews(ctx context.Context) error {
	views := []string{"top_devices_30d", "trending_devices"}
	for _, view := range views {
		query := "REFRESH MATERIALIZED VIEW CONCURRENTLY " + view
		if _, err := a.db.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

// AggregateAll runs all aggregation jobs for a given date
func (a *Aggregator) AggregateAll(ctx context.Context, date time.Time) error {
	if err := a.AggregateDeviceStatsDaily(ctx, date); err != nil {
		return err
	}

	if err := a.AggregateCategoryStatsDaily(ctx, date); err != nil {
		return err
	}

	// Aggregate weekly (if it's Sunday)
	if date.Weekday() == time.Sunday {
		weekStart := date.AddDate(0, 0, -6)
		if err := a.AggregateDeviceStatsWeekly(ctx, weekStart); err != nil {
			return err
		}
	}

	return nil
}
