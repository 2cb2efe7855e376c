package api

import (
	"database/sql"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/gridwork/hubcap/pkg/analytics"
	"github.com/gridwork/hubcap/pkg/compat"
	"github.com/gridwork/hubcap/pkg/observability"
	"github.com/gridwork/hubcap/pkg/schemacache"
)

// Server is the catalog API server. It owns the router, the storage backend
// and the compatibility engine; optional collaborators (analytics) are wired
// only when a database connection is provided.
type Server struct {
	storage        Storage
	router         *mux.Router
	db             *sql.DB
	engine         *compat.Engine
	schemaCache    *schemacache.Resolver
	compatHandlers *CompatibilityHandlers
	docHandlers    *DocumentHandlers
	eventTracker   *analytics.EventTracker
}

// NewServer creates a catalog server. db may be nil; analytics tracking is
// disabled without it.
func NewServer(storage Storage, db *sql.DB) *Server {
	resolver := schemacache.Wrap(NewSchemaResolver(storage), schemacache.DefaultConfig())
	engine := compat.NewEngine(resolver)

	s := &Server{
		storage:     storage,
		router:      mux.NewRouter(),
		db:          db,
		engine:      engine,
		schemaCache: resolver,
	}

	if db != nil {
		s.eventTracker = analytics.NewEventTracker(db)
	}

	s.compatHandlers = NewCompatibilityHandlers(storage, engine, s.eventTracker)
	s.docHandlers = NewDocumentHandlers(storage)

	s.setupRoutes()
	return s
}

// Engine exposes the compatibility engine so callers can register custom
// rule processors during startup.
func (s *Server) Engine() *compat.Engine {
	return s.engine
}

// SetMetrics attaches a metrics collector to the comparison handlers. Call
// during startup only.
func (s *Server) SetMetrics(m *observability.Metrics) {
	s.compatHandlers.SetMetrics(m)
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	// Category routes
	s.router.HandleFunc("/categories", s.createCategory).Methods("POST")
	s.router.HandleFunc("/categories", s.listCategories).Methods("GET")
	s.router.HandleFunc("/categories/{id}", s.getCategory).Methods("GET")

	// Device routes
	s.router.HandleFunc("/categories/{id}/devices", s.createDevice).Methods("POST")
	s.router.HandleFunc("/categories/{id}/devices", s.listDevices).Methods("GET")
	s.router.HandleFunc("/devices/{id}", s.getDevice).Methods("GET")

	// Specification routes
	s.router.HandleFunc("/devices/{id}/spec", s.putDeviceSpec).Methods("PUT")
	s.router.HandleFunc("/devices/{id}/spec", s.getDeviceSpec).Methods("GET")

	// Schema routes
	s.router.HandleFunc("/categories/{id}/schemas", s.createSchema).Methods("POST")
	s.router.HandleFunc("/categories/{id}/schemas", s.listSchemaVersions).Methods("GET")
	s.router.HandleFunc("/categories/{id}/schemas/{version}", s.getSchema).Methods("GET")

	// Rule routes
	s.router.HandleFunc("/categories/{id}/rules", s.createRule).Methods("POST")
	s.router.HandleFunc("/categories/{id}/rules", s.listRules).Methods("GET")

	// Template routes
	s.router.HandleFunc("/categories/{id}/templates", s.createTemplate).Methods("POST")
	s.router.HandleFunc("/categories/{id}/templates", s.listTemplates).Methods("GET")
	s.router.HandleFunc("/templates/{id}", s.getTemplate).Methods("GET")

	// Register compatibility routes
	if s.compatHandlers != nil {
		s.compatHandlers.RegisterRoutes(s.router)
	}

	// Register documentation routes
	if s.docHandlers != nil {
		s.docHandlers.RegisterRoutes(s.router)
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// RouteRegistrar is an interface for types that can register routes
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// RegisterRoutes registers routes from a RouteRegistrar
func (s *Server) RegisterRoutes(registrar RouteRegistrar) {
	registrar.RegisterRoutes(s.router)
}
