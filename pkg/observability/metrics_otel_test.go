package observability

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics installs a manual-reader meter provider and returns the
// instruments plus a collect function that snapshots recorded data.
func newTestMetrics(t *testing.T) (*OTelMetrics, func() metricdata.ResourceMetrics) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		otel.SetMeterProvider(prev)
		provider.Shutdown(context.Background())
	})

	m, err := NewOTelMetrics()
	if err != nil {
		t.Fatalf("NewOTelMetrics returned error: %v", err)
	}

	collect := func() metricdata.ResourceMetrics {
		var rm metricdata.ResourceMetrics
		if err := reader.Collect(context.Background(), &rm); err != nil {
			t.Fatalf("Collect returned error: %v", err)
		}
		return rm
	}
	return m, collect
}

func collectedNames(rm metricdata.ResourceMetrics) map[string]bool {
	names := make(map[string]bool)
	for _, scope := range rm.ScopeMetrics {
		for _, metric := range scope.Metrics {
			names[metric.Name] = true
		}
	}
	return names
}

func TestOTelMetrics_RecordHTTPRequest(t *testing.T) {
	m, collect := newTestMetrics(t)

	m.RecordHTTPRequest(context.Background(), "POST", "/api/v1/compatibility/check", 200, 15*time.Millisecond, 256, 1024)

	names := collectedNames(collect())
	for _, want := range []string{
		"http.server.requests",
		"http.server.duration",
		"http.server.request.size",
		"http.server.response.size",
	} {
		if !names[want] {
			t.Errorf("metric %s was not recorded", want)
		}
	}
}

func TestOTelMetrics_RecordHTTPRequest_SkipsZeroSizes(t *testing.T) {
	m, collect := newTestMetrics(t)

	m.RecordHTTPRequest(context.Background(), "GET", "/api/v1/devices", 200, time.Millisecond, 0, 0)

	names := collectedNames(collect())
	if names["http.server.request.size"] {
		t.Error("request size must not be recorded when zero")
	}
	if names["http.server.response.size"] {
		t.Error("response size must not be recorded when zero")
	}
}

func TestOTelMetrics_RecordDBQuery(t *testing.T) {
	m, collect := newTestMetrics(t)

	m.RecordDBQuery(context.Background(), "select_device", 2*time.Millisecond, nil)

	names := collectedNames(collect())
	if !names["db.queries.total"] {
		t.Error("db.queries.total was not recorded")
	}
	if !names["db.query.duration"] {
		t.Error("db.query.duration was not recorded")
	}
}

func TestOTelMetrics_RecordCache(t *testing.T) {
	m, collect := newTestMetrics(t)

	ctx := context.Background()
	m.RecordCacheHit(ctx, "schema")
	m.RecordCacheMiss(ctx, "schema")
	m.RecordCacheEviction(ctx, "schema")
	m.UpdateCacheSize(ctx, "schema", 128)

	names := collectedNames(collect())
	for _, want := range []string{
		"cache.hits.total",
		"cache.misses.total",
		"cache.evictions.total",
		"cache.size",
	} {
		if !names[want] {
			t.Errorf("metric %s was not recorded", want)
		}
	}
}

func TestOTelMetrics_RecordStorageOperation(t *testing.T) {
	m, collect := newTestMetrics(t)

	m.RecordStorageOperation(context.Background(), "put_document", "s3", 8*time.Millisecond, 4096, nil)

	names := collectedNames(collect())
	for _, want := range []string{
		"storage.operations.total",
		"storage.operation.duration",
		"storage.bytes",
	} {
		if !names[want] {
			t.Errorf("metric %s was not recorded", want)
		}
	}
}

func TestOTelMetrics_RecordComparison(t *testing.T) {
	m, collect := newTestMetrics(t)

	m.RecordComparison(context.Background(), "full", 3*time.Millisecond, nil)

	rm := collect()
	names := collectedNames(rm)
	if !names["compat.comparisons.total"] {
		t.Error("compat.comparisons.total was not recorded")
	}
	if !names["compat.comparison.duration"] {
		t.Error("compat.comparison.duration was not recorded")
	}

	// The counter carries the verdict attribute and a count of one.
	for _, scope := range rm.ScopeMetrics {
		for _, metric := range scope.Metrics {
			if metric.Name != "compat.comparisons.total" {
				continue
			}
			sum, ok := metric.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("unexpected data type %T", metric.Data)
			}
			if len(sum.DataPoints) != 1 {
				t.Fatalf("data points = %d, want 1", len(sum.DataPoints))
			}
			if sum.DataPoints[0].Value != 1 {
				t.Errorf("count = %d, want 1", sum.DataPoints[0].Value)
			}
		}
	}
}
