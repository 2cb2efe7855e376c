package observability

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownFunc releases one resource during shutdown.
type ShutdownFunc func(context.Context) error

// ShutdownManager drains the HTTP server and then releases registered
// resources in reverse registration order, the same order defers would run.
type ShutdownManager struct {
	logger  *Logger
	server  *http.Server
	timeout time.Duration

	mu    sync.Mutex
	funcs []ShutdownFunc
}

// NewShutdownManager creates a shutdown manager. A zero timeout defaults to
// 30 seconds.
func NewShutdownManager(logger *Logger, server *http.Server, timeout time.Duration) *ShutdownManager {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ShutdownManager{
		logger:  logger,
		server:  server,
		timeout: timeout,
	}
}

// RegisterShutdownFunc registers a resource to release during shutdown.
// Registration order matters: later registrations are released first.
func (sm *ShutdownManager) RegisterShutdownFunc(fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.funcs = append(sm.funcs, fn)
}

// WaitForShutdown blocks until SIGINT or SIGTERM, then runs Shutdown under
// the configured timeout.
func (sm *ShutdownManager) WaitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	sm.logger.WithField("signal", sig.String()).Info("starting graceful shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()

	return sm.Shutdown(ctx)
}

// Shutdown drains the HTTP server, then runs the registered shutdown
// functions newest-first. All functions run even when earlier ones fail;
// the first error is returned.
func (sm *ShutdownManager) Shutdown(ctx context.Context) error {
	var firstErr error

	if sm.server != nil {
		if err := sm.server.Shutdown(ctx); err != nil {
			sm.logger.WithError(err).Error("HTTP server shutdown failed")
			firstErr = fmt.Errorf("HTTP server shutdown: %w", err)
		} else {
			sm.logger.Info("HTTP server drained")
		}
	}

	sm.mu.Lock()
	funcs := make([]ShutdownFunc, len(sm.funcs))
	copy(funcs, sm.funcs)
	sm.mu.Unlock()

	for i := len(funcs) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			sm.logger.Warn("shutdown timeout reached, abandoning remaining resources")
			if firstErr == nil {
				firstErr = fmt.Errorf("shutdown timeout: %w", err)
			}
			break
		}
		if err := funcs[i](ctx); err != nil {
			sm.logger.WithError(err).Errorf("shutdown function %d failed", i)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if firstErr == nil {
		sm.logger.Info("graceful shutdown complete")
	}
	return firstErr
}

// GracefulShutdown is the one-call form: it registers the given functions
// and blocks until a termination signal completes shutdown.
func GracefulShutdown(logger *Logger, server *http.Server, shutdownFuncs ...ShutdownFunc) error {
	manager := NewShutdownManager(logger, server, 30*time.Second)
	for _, fn := range shutdownFuncs {
		manager.RegisterShutdownFunc(fn)
	}
	return manager.WaitForShutdown()
}
