package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	t.Run("creates and registers all metrics", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewMetrics(registry)

		if metrics == nil {
			t.Fatal("NewMetrics returned nil")
		}

		// Exercising each family makes it visible to Gather.
		metrics.HTTPRequestsTotal.WithLabelValues("GET", "/categories", "200").Inc()
		metrics.StorageOperationsTotal.WithLabelValues("read", "postgres", "success").Inc()
		metrics.ComparisonsTotal.WithLabelValues("full", "success").Inc()
		metrics.CacheHitsTotal.WithLabelValues("redis", "schema").Inc()
		metrics.DBConnectionsActive.Set(3)
		metrics.RedisConnectionsActive.Set(2)
		metrics.CategoriesTotal.Set(4)
		metrics.DevicesTotal.Set(12)

		families, err := registry.Gather()
		if err != nil {
			t.Fatalf("Gather failed: %v", err)
		}

		found := make(map[string]bool)
		for _, f := range families {
			found[f.GetName()] = true
		}

		expected := []string{
			"hubcap_http_requests_total",
			"hubcap_storage_operations_total",
			"hubcap_comparisons_total",
			"hubcap_cache_hits_total",
			"hubcap_db_connections_active",
			"hubcap_redis_connections_active",
			"hubcap_categories_total",
			"hubcap_devices_total",
		}
		for _, name := range expected {
			if !found[name] {
				t.Errorf("metric %s not registered", name)
			}
		}
	})

	t.Run("double registration panics", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		NewMetrics(registry)

		defer func() {
			if r := recover(); r == nil {
				t.Error("expected panic on duplicate registration")
			}
		}()
		NewMetrics(registry)
	})
}

func TestRecordComparison(t *testing.T) {
	t.Run("success observes duration and confidence", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewMetrics(registry)

		metrics.RecordComparison("full", 0.92, 5*time.Millisecond, true)
		metrics.RecordComparison("none", 0.55, 2*time.Millisecond, true)

		expected := `
# HELP hubcap_comparisons_total Total number of compatibility comparisons
# TYPE hubcap_comparisons_total counter
hubcap_comparisons_total{status="success",verdict="full"} 1
hubcap_comparisons_total{status="success",verdict="none"} 1
`
		if err := testutil.CollectAndCompare(metrics.ComparisonsTotal, strings.NewReader(expected)); err != nil {
			t.Error(err)
		}

		if n := testutil.CollectAndCount(metrics.ComparisonConfidence); n != 1 {
			t.Errorf("confidence histogram families = %d, want 1", n)
		}
	})

	t.Run("failure skips duration and confidence", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := NewMetrics(registry)

		metrics.RecordComparison("none", 0, time.Millisecond, false)

		expected := `
# HELP hubcap_comparisons_total Total number of compatibility comparisons
# TYPE hubcap_comparisons_total counter
hubcap_comparisons_total{status="error",verdict="none"} 1
`
		if err := testutil.CollectAndCompare(metrics.ComparisonsTotal, strings.NewReader(expected)); err != nil {
			t.Error(err)
		}

		if n := testutil.CollectAndCount(metrics.ComparisonDuration); n != 0 {
			t.Errorf("duration histogram series = %d, want 0", n)
		}
	})
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	handler := HTTPMetricsMiddleware(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"dev-1"}`))
	}))

	req := httptest.NewRequest(http.MethodPost, "/devices", strings.NewReader(`{"name":"Brick 65"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}

	expected := `
# HELP hubcap_http_requests_total Total number of HTTP requests
# TYPE hubcap_http_requests_total counter
hubcap_http_requests_total{method="POST",path="/devices",status="201"} 1
`
	if err := testutil.CollectAndCompare(metrics.HTTPRequestsTotal, strings.NewReader(expected)); err != nil {
		t.Error(err)
	}
}

func TestResponseWriterCapturesSize(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	rw.WriteHeader(http.StatusNotFound)
	rw.Write([]byte("not found"))

	if rw.statusCode != http.StatusNotFound {
		t.Errorf("statusCode = %d, want 404", rw.statusCode)
	}
	if rw.bytesWritten != len("not found") {
		t.Errorf("bytesWritten = %d, want %d", rw.bytesWritten, len("not found"))
	}
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.MatrixComputedTotal.Inc()
	metrics.MatrixPairsPerRequest.Observe(6)

	mux := http.NewServeMux()
	RegisterMetricsEndpoint(mux, registry)

	server := httptest.NewServer(mux)
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	text := string(body)
	if !strings.Contains(text, "hubcap_matrix_computed_total 1") {
		t.Error("matrix counter missing from /metrics output")
	}
	if !strings.Contains(text, "hubcap_matrix_pairs_per_request") {
		t.Error("matrix pairs histogram missing from /metrics output")
	}
}
