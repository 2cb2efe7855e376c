package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestAggregateDeviceStatsDaily(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	agg := NewAggregator(db)
	date := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO device_stats_daily").
		WithArgs(date).
		WillReturnResult(sqlmock.NewResult(0, 12))

	if err := agg.AggregateDeviceStatsDaily(context.Background(), date); err != nil {
		t.Fatalf("AggregateDeviceStatsDaily failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAggregateDeviceStatsWeekly(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	agg := NewAggregator(db)
	weekStart := time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC)
	weekEnd := weekStart.AddDate(0, 0, 7)

	mock.ExpectExec("INSERT INTO device_stats_weekly").
		WithArgs(weekStart, weekEnd).
		WillReturnResult(sqlmock.NewResult(0, 12))

	if err := agg.AggregateDeviceStatsWeekly(context.Background(), weekStart); err != nil {
		t.Fatalf("AggregateDeviceStatsWeekly failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAggregateCategoryStatsDaily(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	agg := NewAggregator(db)
	date := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO category_stats_daily").
		WithArgs(date).
		WillReturnResult(sqlmock.NewResult(0, 3))

	if err := agg.AggregateCategoryStatsDaily(context.Background(), date); err != nil {
		t.Fatalf("AggregateCategoryStatsDaily failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRefreshMaterializedViews(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	agg := NewAggregator(db)

	mock.ExpectExec("REFRESH MATERIALIZED VIEW CONCURRENTLY top_devices_30d").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("REFRESH MATERIALIZED VIEW CONCURRENTLY trending_devices").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := agg.RefreshMaterializedViews(context.Background()); err != nil {
		t.Fatalf("RefreshMaterializedViews failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAggregateAll(t *testing.T) {
	t.Run("weekday runs daily jobs only", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("Failed to create mock database: %v", err)
		}
		defer db.Close()

		agg := NewAggregator(db)
		// 2026-08-27 is a Thursday.
		date := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)

		mock.ExpectExec("INSERT INTO device_stats_daily").
			WithArgs(date).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO category_stats_daily").
			WithArgs(date).WillReturnResult(sqlmock.NewResult(0, 1))

		if err := agg.AggregateAll(context.Background(), date); err != nil {
			t.Fatalf("AggregateAll failed: %v", err)
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})

	t.Run("sunday also runs weekly rollup", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("Failed to create mock database: %v", err)
		}
		defer db.Close()

		agg := NewAggregator(db)
		// 2026-08-23 is a Sunday.
		date := time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)
		weekStart := date.AddDate(0, 0, -6)

		mock.ExpectExec("INSERT INTO device_stats_daily").
			WithArgs(date).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO category_stats_daily").
			WithArgs(date).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO device_stats_weekly").
			WithArgs(weekStart, weekStart.AddDate(0, 0, 7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		if err := agg.AggregateAll(context.Background(), date); err != nil {
			t.Fatalf("AggregateAll failed: %v", err)
		}

		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}
