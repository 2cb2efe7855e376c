package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/gridwork/hubcap/pkg/api"
	"github.com/gridwork/hubcap/pkg/config"
	"github.com/gridwork/hubcap/pkg/httputil"
	"github.com/gridwork/hubcap/pkg/middleware"
	"github.com/gridwork/hubcap/pkg/observability"
	"github.com/gridwork/hubcap/pkg/rules"
	"github.com/gridwork/hubcap/pkg/storage"
	"github.com/gridwork/hubcap/pkg/storage/postgres"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.WithFields(map[string]interface{}{
		"version": version,
		"storage": cfg.Storage.Type,
	}).Info("starting hubcap catalog")

	ctx := context.Background()

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: version,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("telemetry initialization failed")
	}

	store, db, redisClient, closeStorage, err := openStorage(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("storage initialization failed")
	}

	server := api.NewServer(store, db)

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
		server.SetMetrics(metrics)
	}

	ruleWatcher, err := applyFileRules(cfg.Rules, server, logger)
	if err != nil {
		logger.WithError(err).Fatal("rule file loading failed")
	}

	handler := buildHandler(server, metrics, redisClient)
	if cfg.Observability.OTelEnabled {
		handler = otelhttp.NewHandler(handler, "hubcap")
	}

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthServer := buildHealthServer(cfg, db, redisClient, registry)

	go func() {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("health server failed")
		}
	}()

	go func() {
		logger.WithField("addr", apiServer.Addr).Info("API server listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("API server failed")
		}
	}()

	sm := observability.NewShutdownManager(logger, apiServer, cfg.Server.ShutdownTimeout)
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		return closeStorage()
	})
	if ruleWatcher != nil {
		sm.RegisterShutdownFunc(func(ctx context.Context) error {
			return ruleWatcher.Close()
		})
	}
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})

	if err := sm.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("shutdown finished with errors")
		os.Exit(1)
	}
}

// openStorage builds the configured backend. For postgres it also returns
// the database handle (analytics) and the redis client (rate limiting,
// health) when caching is configured.
func openStorage(cfg *config.Config, logger *observability.Logger) (api.Storage, *sql.DB, *redis.Client, func() error, error) {
	switch cfg.Storage.Type {
	case "postgres":
		pg, err := postgres.NewPostgresStorage(cfg.Storage)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		var redisClient *redis.Client
		if rc := pg.GetRedis(); rc != nil {
			redisClient = rc.Client()
		}
		return pg, pg.GetDB(), redisClient, pg.Close, nil
	default:
		fs, err := storage.NewFileSystemStorage(cfg.Storage.FilesystemRoot)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		logger.WithField("root", cfg.Storage.FilesystemRoot).Info("using filesystem storage")
		return fs, nil, nil, func() error { return nil }, nil
	}
}

// applyFileRules loads the base rule set from disk and, when configured,
// starts a watcher that re-applies it on change.
func applyFileRules(cfg config.RulesConfig, server *api.Server, logger *observability.Logger) (*rules.Watcher, error) {
	if cfg.Dir == "" {
		compiled, err := rules.DefaultRuleSet().Compile()
		if err != nil {
			return nil, err
		}
		server.Engine().SetRules(compiled)
		return nil, nil
	}

	path, found := rules.FindInDir(cfg.Dir)
	if !found {
		logger.WithField("dir", cfg.Dir).Warn("no rule file found, using built-in defaults")
		compiled, err := rules.DefaultRuleSet().Compile()
		if err != nil {
			return nil, err
		}
		server.Engine().SetRules(compiled)
		return nil, nil
	}

	if cfg.Watch {
		return rules.NewWatcher(path, server.Engine().SetRules, logrus.StandardLogger())
	}

	set, err := rules.Load(path)
	if err != nil {
		return nil, err
	}
	compiled, err := set.Compile()
	if err != nil {
		return nil, err
	}
	server.Engine().SetRules(compiled)
	return nil, nil
}

// buildHandler wraps the API server in the middleware stack. The rate
// limiter is Redis-backed when a client is available so limits hold across
// replicas.
func buildHandler(server *api.Server, metrics *observability.Metrics, redisClient *redis.Client) http.Handler {
	var rateLimit func(http.Handler) http.Handler
	if redisClient != nil {
		rateLimit = middleware.NewDistributedRateLimitMiddleware(redisClient).Handler
	} else {
		rateLimit = middleware.NewRateLimitMiddleware().Handler
	}

	chain := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware,
		httputil.RecoveryMiddleware,
		httputil.CORSMiddleware([]string{"*"}),
		rateLimit,
	}
	if metrics != nil {
		chain = append([]func(http.Handler) http.Handler{observability.HTTPMetricsMiddleware(metrics)}, chain...)
	}

	return httputil.Chain(chain...)(server)
}

// buildHealthServer serves the k8s probes and /metrics on a separate port.
func buildHealthServer(cfg *config.Config, db *sql.DB, redisClient *redis.Client, registry *prometheus.Registry) *http.Server {
	checker := observability.NewHealthChecker(db, redisClient)
	checker.SetVersion(version)

	mux := http.NewServeMux()
	observability.RegisterHealthRoutes(mux, checker)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(mux, registry)
	}

	return &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
