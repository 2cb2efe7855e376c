// Package analytics provides usage analytics and insights for the device catalog.
//
// # Overview
//
// This package tracks device views, pairwise compatibility comparisons, and
// matrix computations, with pre-aggregated daily and weekly statistics for
// dashboard KPIs, trending devices, and catalog health alerts.
//
// # Key Metrics
//
// Overview KPIs:
//   - Total categories and devices
//   - Comparisons (24h, 7d, 30d)
//   - Device views (24h)
//   - Full-verdict rate and average confidence
//   - Average comparison duration
//
// Per-Device Analytics:
//   - Views and comparison counts
//   - Verdict breakdown (full/partial/none)
//   - Most frequently compared-against devices
//   - Comparison success rate
//
// # Usage Example
//
// Track events:
//
//	tracker.TrackComparison(ctx, analytics.ComparisonEvent{
//		SourceDeviceID: "dock-01",
//		TargetDeviceID: "laptop-42",
//		Verdict:        "partial",
//		Confidence:     0.82,
//	})
//
// Get device analytics:
//
//	stats, err := service.GetDeviceStats(ctx, "dock-01", "30d")
//	fmt.Printf("Comparisons: %d, Views: %d\n", stats.TotalComparisons, stats.TotalViews)
//
// Score a catalog entry:
//
//	health, err := scorer.CalculateHealth(ctx, "dock-01")
//	fmt.Printf("Score: %.1f, Missing: %v\n", health.HealthScore, health.MissingFields)
//
// # Aggregation
//
// The sweeper runs aggregation daily:
//
//	aggregator.AggregateAll(ctx, date) // device_stats_daily, category_stats_daily
//
// # Related Packages
//
//   - pkg/api: Handlers that record events and expose stats
//   - pkg/observability: Process-level metrics and monitoring
package analytics
