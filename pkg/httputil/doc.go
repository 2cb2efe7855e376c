// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// This package offers helper functions for JSON encoding/decoding, error
// responses, parameter parsing, and common HTTP middleware used by the
// catalog API server.
//
// # Response Helpers
//
// JSON responses:
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteSuccess(w, device)
//	httputil.WriteCreated(w, category)
//
// Error responses:
//
//	httputil.WriteBadRequest(w, "invalid JSON")
//	httputil.WriteNotFoundError(w, "device not found")
//	httputil.WriteConflict(w, "schema version already exists")
//	httputil.WriteInternalError(w, err)
//
// # Request Parsing
//
// JSON bodies:
//
//	var req CreateDeviceRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // error response already written
//	}
//
// Path and query parameters:
//
//	id, ok := httputil.ParsePathStringOrError(w, r, "id")
//	limit, err := httputil.ParseQueryInt(r, "limit", 50)
//	category := httputil.ParseQueryString(r, "category", "")
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware,
//		httputil.RecoveryMiddleware,
//		httputil.MaxBytesMiddleware(1<<20),
//	)
//
// # Related Packages
//
//   - pkg/api: Handlers built on these helpers
//   - pkg/middleware: Rate limiting middleware
package httputil
