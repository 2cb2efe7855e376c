package analytics

import (
	"context"
	"database/sql"
	"time"
)

// EventTracker handles analytics event collection
type EventTracker struct {
	db *sql.DB
}

// NewEventTracker creates a new event tracker
func NewEventTracker(db *sql.DB) *EventTracker {
	return &EventTracker{db: db}
}

// DeviceViewEvent represents a device detail view
type DeviceViewEvent struct {
	DeviceID   string
	CategoryID string
	Source     string // 'web', 'api', 'cli'
	Referrer   string
	IPAddress  string
	UserAgent  string
}

// TrackDeviceView records a device view event
func (t *EventTracker) TrackDeviceView(ctx context.Context, event DeviceViewEvent) error {
	query := `
		INSERT INTO device_view_events (
			device_id, category_id, source, referrer, ip_address, user_agent
		) VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := t.db.ExecContext(ctx, query,
		event.DeviceID, nullString(event.CategoryID), event.Source,
		nullString(event.Referrer), nullString(event.IPAddress),
		nullString(event.UserAgent),
	)
	return err
}

// ComparisonEvent represents one compatibility check between two devices
type ComparisonEvent struct {
	SourceDeviceID string
	TargetDeviceID string
	CategoryID     string
	Verdict        string
	Confidence     float64
	RulesMatched   int
	FieldsCompared int
	Duration       time.Duration
	Success        bool
	ErrorMessage   string
	IPAddress      string
	UserAgent      string
}

// TrackComparison records a comparison event
func (t *EventTracker) TrackComparison(ctx context.Context, event ComparisonEvent) error {
	query := `
		INSERT INTO comparison_events (
			source_device_id, target_device_id, category_id, verdict,
			confidence, rules_matched, fields_compared, duration_ms,
			success, error_message, ip_address, user_agent
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := t.db.ExecContext(ctx, query,
		event.SourceDeviceID, event.TargetDeviceID, nullString(event.CategoryID),
		event.Verdict, event.Confidence, event.RulesMatched, event.FieldsCompared,
		event.Duration.Milliseconds(), event.Success, nullString(event.ErrorMessage),
		nullString(event.IPAddress), nullString(event.UserAgent),
	)
	return err
}

// MatrixEvent represents a bulk compatibility-matrix computation
type MatrixEvent struct {
	CategoryID  string
	DeviceCount int
	PairCount   int
	Duration    time.Duration
	Success     bool
}

// TrackMatrix records a matrix computation event
func (t *EventTracker) TrackMatrix(ctx context.Context, event MatrixEvent) error {
	query := `
		INSERT INTO matrix_events (
			category_id, device_count, pair_count, duration_ms, success
		) VALUES ($1, $2, $3, $4, $5)
	`
	_, err := t.db.ExecContext(ctx, query,
		event.CategoryID, event.DeviceCount, event.PairCount,
		event.Duration.Milliseconds(), event.Success,
	)
	return err
}

// Helper function to convert empty strings to NULL
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
