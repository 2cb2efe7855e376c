// Package middleware provides HTTP middleware for rate limiting.
//
// # Overview
//
// This package implements request rate limiting keyed by client IP, with a
// separate, much tighter budget for matrix computation requests since each
// matrix request fans out to O(n^2) pairwise comparisons.
//
// # Middleware Components
//
// RateLimitMiddleware: In-memory token bucket rate limiting
//
//	m := middleware.NewRateLimitMiddleware()
//	router.Use(m.Handler)
//
// DistributedRateLimitMiddleware: Redis-backed rate limiting shared across
// instances
//
//	m := middleware.NewDistributedRateLimitMiddleware(redisClient)
//	router.Use(m.Handler)
//
// # Rate Limiting
//
// Default (per IP): 100 req/min, 10 burst
// Matrix requests (per IP): 10 req/min, 2 burst
//
// The distributed limiter fails open on Redis errors by default; use
// SetFallbackEnabled(false) to fail closed instead.
//
// # Related Packages
//
//   - pkg/api: HTTP handlers wrapped by these middlewares
//   - pkg/observability: Request logging and metrics middleware
package middleware
