package analytics

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestNewEventTracker(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	tracker := NewEventTracker(db)
	if tracker == nil {
		t.Fatal("Expected non-nil EventTracker")
	}
	if tracker.db != db {
		t.Error("Expected EventTracker to store the database reference")
	}
}

func TestTrackDeviceView(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	tracker := NewEventTracker(db)

	mock.ExpectExec("INSERT INTO device_view_events").
		WithArgs("dock-01", "docks", "web", nil, "203.0.113.5", "hubcap-web/2.0").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = tracker.TrackDeviceView(context.Background(), DeviceViewEvent{
		DeviceID:   "dock-01",
		CategoryID: "docks",
		Source:     "web",
		IPAddress:  "203.0.113.5",
		UserAgent:  "hubcap-web/2.0",
	})
	if err != nil {
		t.Fatalf("TrackDeviceView failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestTrackDeviceViewNullsEmptyStrings(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	tracker := NewEventTracker(db)

	// Empty optional fields become SQL NULLs.
	mock.ExpectExec("INSERT INTO device_view_events").
		WithArgs("dock-01", nil, "api", nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = tracker.TrackDeviceView(context.Background(), DeviceViewEvent{
		DeviceID: "dock-01",
		Source:   "api",
	})
	if err != nil {
		t.Fatalf("TrackDeviceView failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestTrackComparison(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	tracker := NewEventTracker(db)

	mock.ExpectExec("INSERT INTO comparison_events").
		WithArgs("dock-01", "laptop-42", "docks", "partial", 0.82, 3, 7,
			int64(12), true, nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = tracker.TrackComparison(context.Background(), ComparisonEvent{
		SourceDeviceID: "dock-01",
		TargetDeviceID: "laptop-42",
		CategoryID:     "docks",
		Verdict:        "partial",
		Confidence:     0.82,
		RulesMatched:   3,
		FieldsCompared: 7,
		Duration:       12 * time.Millisecond,
		Success:        true,
	})
	if err != nil {
		t.Fatalf("TrackComparison failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestTrackComparisonFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	tracker := NewEventTracker(db)

	mock.ExpectExec("INSERT INTO comparison_events").
		WithArgs("dock-01", "laptop-42", nil, "none", 0.0, 0, 0,
			int64(3), false, "schema not found", nil, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = tracker.TrackComparison(context.Background(), ComparisonEvent{
		SourceDeviceID: "dock-01",
		TargetDeviceID: "laptop-42",
		Verdict:        "none",
		Duration:       3 * time.Millisecond,
		Success:        false,
		ErrorMessage:   "schema not found",
	})
	if err != nil {
		t.Fatalf("TrackComparison failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestTrackMatrix(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	tracker := NewEventTracker(db)

	mock.ExpectExec("INSERT INTO matrix_events").
		WithArgs("docks", 4, 6, int64(48), true).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = tracker.TrackMatrix(context.Background(), MatrixEvent{
		CategoryID:  "docks",
		DeviceCount: 4,
		PairCount:   6,
		Duration:    48 * time.Millisecond,
		Success:     true,
	})
	if err != nil {
		t.Fatalf("TrackMatrix failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestTrackEventPropagatesDBError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	tracker := NewEventTracker(db)

	mock.ExpectExec("INSERT INTO device_view_events").
		WillReturnError(sql.ErrConnDone)

	err = tracker.TrackDeviceView(context.Background(), DeviceViewEvent{
		DeviceID: "dock-01",
		Source:   "api",
	})
	if err == nil {
		t.Error("expected error from failed insert")
	}
}
