// Package api provides the HTTP REST API server for the Hubcap device
// compatibility catalog.
//
// # Overview
//
// This package implements the HTTP layer that exposes the catalog as RESTful
// endpoints. It handles category and device management, versioned
// specification schemas, device specification payloads, stored compatibility
// rules, specification templates, device documentation, and the comparison
// endpoints backed by the engine in pkg/compat.
//
// # Architecture
//
// The API is built on gorilla/mux and organized into domain-specific handler
// groups:
//
//   - Catalog Management: Create and query categories and devices
//   - Schema Management: Register and query versioned category schemas
//   - Specifications: Store and retrieve device specification payloads
//   - Rules: Store compatibility rules evaluated during comparisons
//   - Templates: Reusable starting points for device specifications
//   - Documentation: Upload and download device documentation blobs
//   - Compatibility: Single checks and pairwise category matrices
//
// # Key Types
//
// Server is the main API server that coordinates all functionality:
//
//	server := api.NewServer(storage, db)
//	http.ListenAndServe(":8080", server)
//
// Device represents one catalog entry; its specification payload lives
// separately as a compat.DeviceSpec pinned to a schema version:
//
//	device := &api.Device{
//		Name:         "OmniHub 7",
//		Manufacturer: "Gridwork",
//	}
//
// # API Endpoints
//
// Catalog API:
//
//	POST   /categories                              - Create category
//	GET    /categories                              - List categories
//	GET    /categories/{id}                         - Get category details
//	POST   /categories/{id}/devices                 - Create device
//	GET    /categories/{id}/devices                 - List devices
//	GET    /devices/{id}                            - Get device details
//	PUT    /devices/{id}/spec                       - Store specification payload
//	GET    /devices/{id}/spec                       - Get specification payload
//
// Schema, rule and template API:
//
//	POST   /categories/{id}/schemas                 - Register schema version
//	GET    /categories/{id}/schemas                 - List schema versions
//	GET    /categories/{id}/schemas/{version}       - Get schema ("latest" allowed)
//	POST   /categories/{id}/rules                   - Store compatibility rule
//	GET    /categories/{id}/rules                   - List rules
//	POST   /categories/{id}/templates               - Create template
//	GET    /categories/{id}/templates               - List templates
//	GET    /templates/{id}                          - Get template
//
// Compatibility and documentation API:
//
//	POST   /compatibility/check                     - Compare two devices
//	POST   /compatibility/matrix                    - Pairwise category matrix
//	GET    /devices/{id}/compatibility/{target}     - Compare a stored pair
//	POST   /devices/{id}/docs                       - Upload documentation
//	GET    /devices/{id}/docs                       - List documentation
//	GET    /docs/{id}                               - Download documentation
//
// # Design Decisions
//
// Modular Handler Design: Domain-specific handlers (CompatibilityHandlers,
// DocumentHandlers) are registered with the Server. This keeps concerns
// separated and makes testing easier.
//
// Optional Features: Analytics tracking is only enabled when a database is
// provided, so the catalog can run in lightweight mode against the
// filesystem backend for development or small deployments.
//
// Storage Abstraction: The Storage interface isolates the API from
// persistence details, allowing multiple backends (filesystem, PostgreSQL
// with Redis and S3) without changing handler code.
//
// Graceful Degradation: Comparison endpoints never fail because a schema or
// rule lookup misses; the engine degrades to type-inferred comparison and
// reduced confidence instead.
//
// # Related Packages
//
//   - pkg/compat: The compatibility engine driving comparisons
//   - pkg/storage: Storage backends for catalog data
//   - pkg/schemacache: In-process caching of resolved schemas
//   - pkg/rules: Rule set loading and hot reload
//   - pkg/analytics: Usage tracking
package api
