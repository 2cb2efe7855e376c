package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"

	"github.com/gridwork/hubcap/pkg/analytics"
	"github.com/gridwork/hubcap/pkg/observability"
)

var (
	dbURL           = flag.String("db-url", getEnv("HUBCAP_POSTGRES_URL", "postgres://localhost/hubcap?sslmode=disable"), "PostgreSQL connection URL")
	dailySchedule   = flag.String("daily-schedule", "5 0 * * *", "Cron schedule for daily aggregation (default: 00:05 UTC)")
	refreshSchedule = flag.String("refresh-schedule", "0 * * * *", "Cron schedule for materialized view refresh (default: every hour)")
	alertSchedule   = flag.String("alert-schedule", "0 */6 * * *", "Cron schedule for alert checks (default: every 6 hours)")
	runOnce         = flag.Bool("run-once", false, "Run aggregation once and exit (for backfills)")
	aggregationDate = flag.String("date", "", "Date to aggregate (YYYY-MM-DD). Defaults to yesterday. Only used with --run-once")
)

func main() {
	flag.Parse()

	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)

	db, err := sql.Open("postgres", *dbURL)
	if err != nil {
		logger.WithError(err).Fatal("database connection failed")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.WithError(err).Fatal("database ping failed")
	}

	aggregator := analytics.NewAggregator(db)
	alerter := analytics.NewAlerter(db)

	if *runOnce {
		date := time.Now().UTC().AddDate(0, 0, -1)
		if *aggregationDate != "" {
			date, err = time.Parse("2006-01-02", *aggregationDate)
			if err != nil {
				logger.WithError(err).Fatal("invalid --date, expected YYYY-MM-DD")
			}
		}

		logger.WithField("date", date.Format("2006-01-02")).Info("running one-off aggregation")
		if err := aggregator.AggregateAll(context.Background(), date); err != nil {
			logger.WithError(err).Fatal("aggregation failed")
		}
		logger.Info("aggregation complete")
		return
	}

	c := cron.New()

	_, err = c.AddFunc(*dailySchedule, func() {
		defer observability.RecoverPanic(logger, "daily aggregation")

		yesterday := time.Now().UTC().AddDate(0, 0, -1)
		dayLogger := logger.WithField("date", yesterday.Format("2006-01-02"))
		dayLogger.Info("starting daily aggregation")

		if err := aggregator.AggregateAll(context.Background(), yesterday); err != nil {
			dayLogger.WithError(err).Error("daily aggregation failed")
			return
		}
		dayLogger.Info("daily aggregation complete")
	})
	if err != nil {
		logger.WithError(err).Fatal("scheduling daily aggregation failed")
	}

	_, err = c.AddFunc(*refreshSchedule, func() {
		defer observability.RecoverPanic(logger, "view refresh")

		if err := aggregator.RefreshMaterializedViews(context.Background()); err != nil {
			logger.WithError(err).Error("materialized view refresh failed")
		}
	})
	if err != nil {
		logger.WithError(err).Fatal("scheduling view refresh failed")
	}

	_, err = c.AddFunc(*alertSchedule, func() {
		defer observability.RecoverPanic(logger, "alert checks")

		if err := alerter.CheckAllAlerts(context.Background()); err != nil {
			logger.WithError(err).Error("alert checks failed")
		}
	})
	if err != nil {
		logger.WithError(err).Fatal("scheduling alert checks failed")
	}

	c.Start()
	logger.WithFields(map[string]interface{}{
		"daily":   *dailySchedule,
		"refresh": *refreshSchedule,
		"alerts":  *alertSchedule,
	}).Info("sweeper started")

	if err := observability.GracefulShutdown(logger, nil, func(ctx context.Context) error {
		stopped := c.Stop()
		select {
		case <-stopped.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}); err != nil {
		logger.WithError(err).Error("shutdown finished with errors")
		os.Exit(1)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
