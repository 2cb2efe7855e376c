// Package async provides safe goroutine helpers for fire-and-forget work.
//
// The catalog records analytics events (device views, comparisons, matrix
// computations) off the request path. SafeGo gives those goroutines the
// safety a bare `go func()` lacks: a timeout-bounded context, panic recovery
// with a logged stack trace, and error logging.
//
//	async.SafeGo(context.Background(), 5*time.Second, "comparison analytics",
//		func(ctx context.Context) error {
//			return tracker.TrackComparison(ctx, event)
//		})
//
// A failed or panicking task is logged and dropped; it never reaches the
// HTTP response that spawned it.
//
// # Related Packages
//
//   - pkg/api: spawns analytics tracking via SafeGo
//   - pkg/analytics: the event tracker these tasks call
package async
