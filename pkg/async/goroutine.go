package async

import (
	"context"
	"runtime/debug"
	"time"

	log "github.com/sirupsen/logrus"
)

// SafeGo runs fn in a goroutine with a timeout-bounded context, panic
// recovery and error logging. It exists for fire-and-forget work hanging off
// a request, like analytics tracking, where a failure must never surface to
// the caller but should not vanish silently either.
//
// The context passed to fn is derived from parent but survives the request:
// pass context.Background() when the work must outlive the response.
func SafeGo(parent context.Context, timeout time.Duration, task string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				log.WithFields(log.Fields{
					"task":  task,
					"panic": r,
				}).Errorf("background task panicked\n%s", debug.Stack())
			}
		}()

		if err := fn(ctx); err != nil {
			log.WithError(err).WithField("task", task).Warn("background task failed")
		}
	}()
}

// SafeGoNoError is SafeGo for functions with nothing to report.
func SafeGoNoError(parent context.Context, timeout time.Duration, task string, fn func(context.Context)) {
	SafeGo(parent, timeout, task, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}
