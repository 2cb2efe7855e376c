package api

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/gridwork/hubcap/pkg/analytics"
	"github.com/gridwork/hubcap/pkg/async"
	"github.com/gridwork/hubcap/pkg/compat"
	"github.com/gridwork/hubcap/pkg/httputil"
	"github.com/gridwork/hubcap/pkg/observability"
)

// matrixWorkers bounds the concurrent pairwise comparisons per matrix
// request.
const matrixWorkers = 8

// CompatibilityHandlers serves the comparison endpoints: single checks and
// the full category matrix.
type CompatibilityHandlers struct {
	storage Storage
	engine  *compat.Engine
	tracker *analytics.EventTracker
	metrics *observability.Metrics
}

// NewCompatibilityHandlers creates the comparison handlers. tracker may be
// nil; events are simply not recorded.
func NewCompatibilityHandlers(storage Storage, engine *compat.Engine, tracker *analytics.EventTracker) *CompatibilityHandlers {
	return &CompatibilityHandlers{
		storage: storage,
		engine:  engine,
		tracker: tracker,
	}
}

// SetMetrics attaches a metrics collector. Call during startup only.
func (h *CompatibilityHandlers) SetMetrics(m *observability.Metrics) {
	h.metrics = m
}

// RegisterRoutes registers the compatibility routes
func (h *CompatibilityHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/compatibility/check", h.checkCompatibility).Methods("POST")
	router.HandleFunc("/compatibility/matrix", h.computeMatrix).Methods("POST")
	router.HandleFunc("/devices/{id}/compatibility/{target}", h.checkDevicePair).Methods("GET")
}

// CheckRequest names the two devices to compare. Inline specifications take
// precedence over stored ones, which lets clients probe hypothetical
// devices before cataloging them.
type CheckRequest struct {
	SourceDeviceID string             `json:"source_device_id,omitempty"`
	TargetDeviceID string             `json:"target_device_id,omitempty"`
	SourceSpec     *compat.DeviceSpec `json:"source_spec,omitempty"`
	TargetSpec     *compat.DeviceSpec `json:"target_spec,omitempty"`
}

// checkCompatibility handles POST /compatibility/check
func (h *CompatibilityHandlers) checkCompatibility(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.SourceSpec == nil && req.SourceDeviceID == "" {
		httputil.WriteValidationError(w, "source device is required: set source_device_id or source_spec")
		return
	}
	if req.TargetSpec == nil && req.TargetDeviceID == "" {
		httputil.WriteValidationError(w, "target device is required: set target_device_id or target_spec")
		return
	}

	source, err := h.resolveSpec(r.Context(), req.SourceSpec, req.SourceDeviceID)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	target, err := h.resolveSpec(r.Context(), req.TargetSpec, req.TargetDeviceID)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	result, err := h.compare(r.Context(), source, target)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	h.trackComparison(r, source, target, result)
	httputil.WriteSuccess(w, result)
}

// checkDevicePair handles GET /devices/{id}/compatibility/{target}
func (h *CompatibilityHandlers) checkDevicePair(w http.ResponseWriter, r *http.Request) {
	sourceID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	targetID, ok := httputil.ParsePathStringOrError(w, r, "target")
	if !ok {
		return
	}

	source, err := h.storage.GetDeviceSpec(r.Context(), sourceID)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	target, err := h.storage.GetDeviceSpec(r.Context(), targetID)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	result, err := h.compare(r.Context(), source, target)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	h.trackComparison(r, source, target, result)
	httputil.WriteSuccess(w, result)
}

// MatrixRequest scopes a pairwise matrix computation. When DeviceIDs is
// empty, every device in the category participates.
type MatrixRequest struct {
	CategoryID string   `json:"category_id"`
	DeviceIDs  []string `json:"device_ids,omitempty"`
}

// MatrixEntry is one cell of the compatibility matrix.
type MatrixEntry struct {
	SourceDeviceID string         `json:"source_device_id"`
	TargetDeviceID string         `json:"target_device_id"`
	Result         *compat.Result `json:"result,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// MatrixResponse is the full pairwise matrix for the requested devices.
type MatrixResponse struct {
	CategoryID string        `json:"category_id"`
	DeviceIDs  []string      `json:"device_ids"`
	Entries    []MatrixEntry `json:"entries"`
	Duration   string        `json:"duration"`
}

// computeMatrix handles POST /compatibility/matrix
func (h *CompatibilityHandlers) computeMatrix(w http.ResponseWriter, r *http.Request) {
	var req MatrixRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.CategoryID, "category_id") {
		return
	}

	start := time.Now()

	deviceIDs := req.DeviceIDs
	if len(deviceIDs) == 0 {
		devices, err := h.storage.ListDevices(r.Context(), req.CategoryID)
		if err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
		for _, d := range devices {
			deviceIDs = append(deviceIDs, d.ID)
		}
	}
	if len(deviceIDs) < 2 {
		httputil.WriteValidationError(w, "a matrix needs at least two devices")
		return
	}

	// Load every participating specification up front so a missing spec
	// fails the request before any comparison runs.
	specs := make(map[string]*compat.DeviceSpec, len(deviceIDs))
	for _, id := range deviceIDs {
		spec, err := h.storage.GetDeviceSpec(r.Context(), id)
		if err != nil {
			writeStorageError(w, fmt.Errorf("loading spec for device %s: %w", id, err))
			return
		}
		specs[id] = spec
	}

	type pair struct{ source, target string }
	var pairs []pair
	for _, a := range deviceIDs {
		for _, b := range deviceIDs {
			if a < b {
				pairs = append(pairs, pair{a, b})
			}
		}
	}

	var mu sync.Mutex
	entries := make([]MatrixEntry, 0, len(pairs))

	g, gctx := errgroup.WithContext(r.Context())
	g.SetLimit(matrixWorkers)
	for _, p := range pairs {
		p := p
		g.Go(func() error {
			entry := MatrixEntry{SourceDeviceID: p.source, TargetDeviceID: p.target}
			result, err := h.compare(gctx, specs[p.source], specs[p.target])
			if err != nil {
				// A single bad pair degrades to an error cell rather
				// than failing the whole matrix.
				entry.Error = err.Error()
			} else {
				entry.Result = result
			}
			mu.Lock()
			entries = append(entries, entry)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].SourceDeviceID != entries[j].SourceDeviceID {
			return entries[i].SourceDeviceID < entries[j].SourceDeviceID
		}
		return entries[i].TargetDeviceID < entries[j].TargetDeviceID
	})

	elapsed := time.Since(start)
	if h.metrics != nil {
		h.metrics.MatrixComputedTotal.Inc()
		h.metrics.MatrixPairsPerRequest.Observe(float64(len(pairs)))
	}
	if h.tracker != nil {
		event := analytics.MatrixEvent{
			CategoryID:  req.CategoryID,
			DeviceCount: len(deviceIDs),
			PairCount:   len(pairs),
			Duration:    elapsed,
			Success:     true,
		}
		async.SafeGo(context.Background(), 5*time.Second, "matrix analytics", func(ctx context.Context) error {
			return h.tracker.TrackMatrix(ctx, event)
		})
	}

	httputil.WriteSuccess(w, MatrixResponse{
		CategoryID: req.CategoryID,
		DeviceIDs:  deviceIDs,
		Entries:    entries,
		Duration:   elapsed.String(),
	})
}

// resolveSpec picks the inline specification when present, otherwise loads
// the stored one for the named device.
func (h *CompatibilityHandlers) resolveSpec(ctx context.Context, inline *compat.DeviceSpec, deviceID string) (*compat.DeviceSpec, error) {
	if inline != nil {
		return inline, nil
	}
	return h.storage.GetDeviceSpec(ctx, deviceID)
}

// compare runs the engine over one device pair, feeding it the rules stored
// for the categories involved.
func (h *CompatibilityHandlers) compare(ctx context.Context, source, target *compat.DeviceSpec) (*compat.Result, error) {
	rules, err := h.loadRules(ctx, source.CategoryID, target.CategoryID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := h.engine.Compare(ctx, source, target, rules)
	if h.metrics != nil {
		verdict := ""
		confidence := 0.0
		if result != nil {
			verdict = result.Compatible.String()
			confidence = result.Confidence
		}
		h.metrics.RecordComparison(verdict, confidence, time.Since(start), err == nil)
	}
	return result, err
}

// loadRules fetches the stored rules for the categories of both devices,
// deduplicated by rule id. Rule listing failures degrade to an empty set.
func (h *CompatibilityHandlers) loadRules(ctx context.Context, categoryIDs ...string) ([]compat.Rule, error) {
	seen := make(map[string]struct{})
	var rules []compat.Rule
	for _, categoryID := range categoryIDs {
		if categoryID == "" {
			continue
		}
		if _, dup := seen["cat:"+categoryID]; dup {
			continue
		}
		seen["cat:"+categoryID] = struct{}{}

		records, err := h.storage.ListRules(ctx, categoryID)
		if err != nil {
			continue
		}
		for _, rec := range records {
			if _, dup := seen[rec.ID]; dup {
				continue
			}
			seen[rec.ID] = struct{}{}
			rules = append(rules, rec.Rule)
		}
	}
	return rules, nil
}

// trackComparison records an analytics event for a completed check without
// blocking the response.
func (h *CompatibilityHandlers) trackComparison(r *http.Request, source, target *compat.DeviceSpec, result *compat.Result) {
	if h.tracker == nil {
		return
	}
	event := analytics.ComparisonEvent{
		SourceDeviceID: source.DeviceID,
		TargetDeviceID: target.DeviceID,
		CategoryID:     source.CategoryID,
		Verdict:        result.Compatible.String(),
		Confidence:     result.Confidence,
		RulesMatched:   len(result.MatchedRules),
		FieldsCompared: len(result.FieldResults),
		Success:        true,
		IPAddress:      r.RemoteAddr,
		UserAgent:      r.UserAgent(),
	}
	async.SafeGo(context.Background(), 5*time.Second, "comparison analytics", func(ctx context.Context) error {
		return h.tracker.TrackComparison(ctx, event)
	})
}
