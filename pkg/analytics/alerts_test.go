package analytics

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestCheckCoverageAlerts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	alerter := NewAlerter(db)

	mock.ExpectQuery("FROM device_specs s").
		WithArgs(60.0).
		WillReturnRows(sqlmock.NewRows([]string{
			"device_id", "category_id", "coverage_pct", "missing_fields",
		}).
			AddRow("hub-9", "docks", 25.0, 6).
			AddRow("dock-01", "docks", 50.0, 4))

	alerts, err := alerter.CheckCoverageAlerts(context.Background(), 60.0)
	if err != nil {
		t.Fatalf("CheckCoverageAlerts failed: %v", err)
	}

	if len(alerts) != 2 {
		t.Fatalf("alerts length = %d, want 2", len(alerts))
	}
	if alerts[0].DeviceID != "hub-9" || alerts[0].MissingFields != 6 {
		t.Errorf("alerts[0] = %+v", alerts[0])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCheckPerformanceAlerts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	alerter := NewAlerter(db)

	mock.ExpectQuery("FROM category_stats_daily").
		WithArgs(500).
		WillReturnRows(sqlmock.NewRows([]string{
			"category_id", "p95_duration_ms", "comparison_count",
		}).AddRow("laptops", 820, 1400))

	alerts, err := alerter.CheckPerformanceAlerts(context.Background(), 500)
	if err != nil {
		t.Fatalf("CheckPerformanceAlerts failed: %v", err)
	}

	if len(alerts) != 1 {
		t.Fatalf("alerts length = %d, want 1", len(alerts))
	}
	if alerts[0].CategoryID != "laptops" || alerts[0].P95DurationMs != 820 {
		t.Errorf("alerts[0] = %+v", alerts[0])
	}
	if alerts[0].ThresholdMs != 500 {
		t.Errorf("ThresholdMs = %d, want 500", alerts[0].ThresholdMs)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCheckStalenessAlerts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	alerter := NewAlerter(db)

	mock.ExpectQuery("FROM device_specs").
		WithArgs(180).
		WillReturnRows(sqlmock.NewRows([]string{
			"device_id", "category_id", "age_days",
		}).AddRow("monitor-3", "monitors", 412))

	alerts, err := alerter.CheckStalenessAlerts(context.Background(), 180)
	if err != nil {
		t.Fatalf("CheckStalenessAlerts failed: %v", err)
	}

	if len(alerts) != 1 {
		t.Fatalf("alerts length = %d, want 1", len(alerts))
	}
	if alerts[0].DeviceID != "monitor-3" || alerts[0].LastUpdateAge != 412 {
		t.Errorf("alerts[0] = %+v", alerts[0])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCheckAllAlertsSurvivesQueryErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	alerter := NewAlerter(db)

	// Each check fails; CheckAllAlerts logs and keeps going.
	mock.ExpectQuery("FROM device_specs s").
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectQuery("FROM category_stats_daily").
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectQuery("FROM device_specs").
		WillReturnError(context.DeadlineExceeded)

	if err := alerter.CheckAllAlerts(context.Background()); err != nil {
		t.Errorf("CheckAllAlerts returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
