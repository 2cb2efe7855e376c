package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func expectSpecQuery(mock sqlmock.Sqlmock, updatedAt time.Time, specJSON string) {
	mock.ExpectQuery("FROM devices d").
		WithArgs("dock-01").
		WillReturnRows(sqlmock.NewRows([]string{
			"category_id", "schema_version", "specifications", "updated_at",
		}).AddRow("docks", "1.0.0", []byte(specJSON), updatedAt))
}

func TestCalculateHealth(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	scorer := NewHealthScorer(db)

	expectSpecQuery(mock, time.Now().AddDate(0, 0, -10),
		`{"power_watts": 65, "connector": "usb-c"}`)

	schemaFields := `[
		{"name": "power_watts", "type": "number", "metadata": {"importance": "high", "weight": 1}},
		{"name": "connector", "type": "enum", "metadata": {"importance": "high", "weight": 1}},
		{"name": "display_out", "type": "string", "metadata": {"importance": "medium", "weight": 0.5}},
		{"name": "color", "type": "string", "metadata": {"importance": "low", "weight": 0.1}}
	]`
	mock.ExpectQuery("SELECT fields").
		WithArgs("docks", "1.0.0").
		WillReturnRows(sqlmock.NewRows([]string{"fields"}).AddRow([]byte(schemaFields)))

	mock.ExpectQuery("SELECT COUNT\\(\\*\\)").
		WithArgs("docks", "1.0.0").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	mock.ExpectQuery("FROM comparison_events").
		WithArgs("dock-01").
		WillReturnRows(sqlmock.NewRows([]string{"count", "rate"}).AddRow(40, 0.05))

	health, err := scorer.CalculateHealth(context.Background(), "dock-01")
	if err != nil {
		t.Fatalf("CalculateHealth failed: %v", err)
	}

	if health.CategoryID != "docks" {
		t.Errorf("CategoryID = %q, want docks", health.CategoryID)
	}
	if health.CoverageScore != 50 {
		t.Errorf("CoverageScore = %v, want 50", health.CoverageScore)
	}
	// display_out and color are absent but neither is high importance.
	if len(health.MissingFields) != 0 {
		t.Errorf("MissingFields = %v, want none", health.MissingFields)
	}
	if health.StalenessDays != 10 {
		t.Errorf("StalenessDays = %d, want 10", health.StalenessDays)
	}
	if health.Comparisons30d != 40 {
		t.Errorf("Comparisons30d = %d, want 40", health.Comparisons30d)
	}
	if health.HealthScore <= 0 || health.HealthScore > 100 {
		t.Errorf("HealthScore = %v, want within (0, 100]", health.HealthScore)
	}
	if len(health.Recommendations) == 0 {
		t.Error("expected at least one recommendation")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCalculateHealthFlagsMissingHighImportanceFields(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	scorer := NewHealthScorer(db)

	expectSpecQuery(mock, time.Now().AddDate(-1, 0, 0), `{"color": "grey"}`)

	schemaFields := `[
		{"name": "power_watts", "type": "number", "metadata": {"importance": "high", "weight": 1}},
		{"name": "color", "type": "string", "metadata": {"importance": "low", "weight": 0.1}}
	]`
	mock.ExpectQuery("SELECT fields").
		WithArgs("docks", "1.0.0").
		WillReturnRows(sqlmock.NewRows([]string{"fields"}).AddRow([]byte(schemaFields)))

	mock.ExpectQuery("SELECT COUNT\\(\\*\\)").
		WithArgs("docks", "1.0.0").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	mock.ExpectQuery("FROM comparison_events").
		WithArgs("dock-01").
		WillReturnRows(sqlmock.NewRows([]string{"count", "rate"}).AddRow(20, 0.3))

	health, err := scorer.CalculateHealth(context.Background(), "dock-01")
	if err != nil {
		t.Fatalf("CalculateHealth failed: %v", err)
	}

	if len(health.MissingFields) != 1 || health.MissingFields[0] != "power_watts" {
		t.Errorf("MissingFields = %v, want [power_watts]", health.MissingFields)
	}
	if health.SchemaVersionLag != 2 {
		t.Errorf("SchemaVersionLag = %d, want 2", health.SchemaVersionLag)
	}

	// Stale, incomplete, lagging, failing: score should land well below a
	// healthy entry's.
	if health.HealthScore > 60 {
		t.Errorf("HealthScore = %v, want <= 60 for an unhealthy entry", health.HealthScore)
	}
	if len(health.Recommendations) < 3 {
		t.Errorf("Recommendations = %v, want several for an unhealthy entry", health.Recommendations)
	}
}

func TestCalculateOverallHealthBounds(t *testing.T) {
	scorer := &HealthScorer{}

	perfect := scorer.calculateOverallHealth(&DeviceHealth{
		CoverageScore: 100,
	})
	if perfect != 100 {
		t.Errorf("perfect score = %v, want 100", perfect)
	}

	worst := scorer.calculateOverallHealth(&DeviceHealth{
		CoverageScore:    0,
		MissingFields:    []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"},
		StalenessDays:    400,
		FailureRate30d:   1.0,
		SchemaVersionLag: 4,
	})
	// Staleness never scores below 25, so the floor is its weighted share.
	if worst != 3.8 {
		t.Errorf("worst score = %v, want 3.8", worst)
	}
}
