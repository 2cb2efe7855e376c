// Package observability provides structured logging, Prometheus metrics,
// health checks, and OpenTelemetry export for the catalog services.
//
// # Structured Logging
//
// Loggers emit one JSON line per message and support field chaining:
//
//	logger := observability.NewLogger(observability.InfoLevel, nil)
//	logger.WithField("device_id", deviceID).Info("spec stored")
//	logger.WithError(err).Error("comparison failed")
//
// Request-scoped loggers travel on the context; FromContext annotates them
// with the request ID set by the middleware:
//
//	observability.FromContext(ctx).Infof("%d rules loaded", len(rules))
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.DevicesTotal.Set(float64(count))
//	metrics.RecordComparison("full", 0.92, elapsed, true)
//
// HTTPMetricsMiddleware instruments every request; RegisterMetricsEndpoint
// mounts /metrics.
//
// # Health Checks
//
// The health checker treats the database as required and everything else as
// degradable:
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	checker.SetVersion(version)
//	checker.AddProbe("doc-store", docStore.Ping)
//	observability.RegisterHealthRoutes(mux, checker)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "hubcap",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//
// # Related Packages
//
//   - pkg/config: observability configuration
//   - pkg/middleware: request logging and rate limiting middleware
package observability
