// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/privacy-engine/internal/logging"
	"github.com/privacy-engine/internal/models"
	"github.com/privacy-engine/internal/service"
	"github.com/privacy-engine/internal/types"
)

// Service interfaces for dependency injection and testing

// PrivacyServiceInterface defines the interface for privacy settings operations
type PrivacyServiceInterface interface {
	GetSettings(ctx context.Context, userID string) (*models.PrivacySettings, error)
	UpdateClusterPrivacy(ctx context.Context, userID, clusterID string, level types.PrivacyLevel) (*service.ClusterSettingResult, error)
	ToggleCluster(ctx context.Context, userID, clusterID string, enabled bool) (*service.ClusterSettingResult, error)
	UpdateSubclusterPrivacy(ctx context.Context, userID, clusterID, subclusterID string, level types.PrivacyLevel) (*service.ClusterSettingResult, error)
	ResetClusterToDefault(ctx context.Context, userID, clusterID string) (*service.ClusterSettingResult, error)
	UpdateGlobalPrivacy(ctx context.Context, userID string, level types.PrivacyLevel) (*service.GlobalPrivacyResult, error)
	Resolve(ctx context.Context, userID string, twinID, audienceID *string) (*types.ClusterPrivacyMatrix, error)
	GetAuditLog(ctx context.Context, userID string, limit, offset int) ([]*models.PrivacyAuditLog, int64, error)
}

// TwinServiceInterface defines the interface for twin lifecycle operations
type TwinServiceInterface interface {
	CreateTwin(ctx context.Context, userID string, input service.CreateTwinInput) (*service.TwinResult, error)
	UpdateTwin(ctx context.Context, userID, twinID string, input service.UpdateTwinInput) (*service.TwinResult, error)
	DeleteTwin(ctx context.Context, userID, twinID string) (bool, error)
	ActivateTwin(ctx context.Context, userID, twinID string) (*service.TwinResult, error)
	DeactivateTwin(ctx context.Context, userID string) (*string, bool, error)
	GetTwin(ctx context.Context, userID, twinID string) (*models.ContextualTwin, error)
	ListTwins(ctx context.Context, userID string) ([]*models.ContextualTwin, error)
	GetActivationHistory(ctx context.Context, userID, twinID string, limit int) ([]*models.TwinActivationHistory, error)
}

// TemplateServiceInterface defines the interface for template and preset operations
type TemplateServiceInterface interface {
	CreateTemplate(ctx context.Context, userID, name string) (*models.PrivacyTemplate, error)
	ListTemplates(ctx context.Context, userID string) ([]*models.PrivacyTemplate, error)
	DeleteTemplate(ctx context.Context, userID, templateID string) error
	ApplyTemplate(ctx context.Context, userID, templateID string) (*service.ApplyResult, error)
	ListPresets(ctx context.Context, userID string) ([]*models.AudiencePreset, error)
	CreatePreset(ctx context.Context, userID string, input service.CreatePresetInput) (*models.AudiencePreset, error)
	DeletePreset(ctx context.Context, userID, key string) error
	ApplyPreset(ctx context.Context, userID, key string) (*service.ApplyResult, error)
}

// RegistryInterface defines the interface for catalog reads and cache control
type RegistryInterface interface {
	Catalog(ctx context.Context) ([]*models.ClusterDefinition, error)
	Invalidate(ctx context.Context) error
}

// HealthCheck probes one dependency of the service.
type HealthCheck func(ctx context.Context) error

// Server represents the HTTP API server.
type Server struct {
	router          *mux.Router
	httpServer      *http.Server
	privacyService  PrivacyServiceInterface
	twinService     TwinServiceInterface
	templateService TemplateServiceInterface
	registry        RegistryInterface
	config          *ServerConfig
	healthChecks    map[string]HealthCheck
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	PerUserRPS      int
	RateLimitBurst  int
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	privacyService PrivacyServiceInterface,
	twinService TwinServiceInterface,
	templateService TemplateServiceInterface,
	registry RegistryInterface,
) *Server {
	s := &Server{
		router:          mux.NewRouter(),
		privacyService:  privacyService,
		twinService:     twinService,
		templateService: templateService,
		registry:        registry,
		config:          config,
		healthChecks:    make(map[string]HealthCheck),
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.PerUserRPS, s.config.RateLimitBurst)

	// Set up middleware (order matters!)
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Cluster catalog endpoints
	api.HandleFunc("/clusters", s.handleListClusters).Methods("GET")
	api.HandleFunc("/clusters/refresh", s.handleRefreshClusters).Methods("POST")

	// Privacy settings endpoints
	api.HandleFunc("/privacy/settings", s.handleGetSettings).Methods("GET")
	api.HandleFunc("/privacy/clusters/{id}", s.handleUpdateClusterPrivacy).Methods("PUT")
	api.HandleFunc("/privacy/clusters/{id}/toggle", s.handleToggleCluster).Methods("POST")
	api.HandleFunc("/privacy/clusters/{id}/subclusters/{sid}", s.handleUpdateSubclusterPrivacy).Methods("PUT")
	api.HandleFunc("/privacy/clusters/{id}/reset", s.handleResetCluster).Methods("POST")
	api.HandleFunc("/privacy/global", s.handleUpdateGlobalPrivacy).Methods("PUT")
	api.HandleFunc("/privacy/resolve", s.handleResolve).Methods("GET")

	// Twin endpoints. The deactivate route is registered before {id} so
	// mux does not swallow it as a twin ID.
	api.HandleFunc("/twins/deactivate", s.handleDeactivateTwin).Methods("POST")
	api.HandleFunc("/twins", s.handleListTwins).Methods("GET")
	api.HandleFunc("/twins", s.handleCreateTwin).Methods("POST")
	api.HandleFunc("/twins/{id}", s.handleGetTwin).Methods("GET")
	api.HandleFunc("/twins/{id}", s.handleUpdateTwin).Methods("PUT")
	api.HandleFunc("/twins/{id}", s.handleDeleteTwin).Methods("DELETE")
	api.HandleFunc("/twins/{id}/activate", s.handleActivateTwin).Methods("POST")
	api.HandleFunc("/twins/{id}/history", s.handleGetActivationHistory).Methods("GET")

	// Preset endpoints
	api.HandleFunc("/presets", s.handleListPresets).Methods("GET")
	api.HandleFunc("/presets", s.handleCreatePreset).Methods("POST")
	api.HandleFunc("/presets/{key}", s.handleDeletePreset).Methods("DELETE")
	api.HandleFunc("/presets/{key}/apply", s.handleApplyPreset).Methods("POST")

	// Template endpoints
	api.HandleFunc("/templates", s.handleListTemplates).Methods("GET")
	api.HandleFunc("/templates", s.handleCreateTemplate).Methods("POST")
	api.HandleFunc("/templates/{id}", s.handleDeleteTemplate).Methods("DELETE")
	api.HandleFunc("/templates/{id}/apply", s.handleApplyTemplate).Methods("POST")

	// Audit endpoints
	api.HandleFunc("/audit", s.handleGetAuditLog).Methods("GET")
}

// RegisterHealthCheck adds a named dependency probe reported by /health.
// Must be called before Start.
func (s *Server) RegisterHealthCheck(name string, check HealthCheck) {
	s.healthChecks[name] = check
}

// handleHealth handles health check requests. Each registered dependency
// is probed; any failure degrades the overall status to 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	dependencies := make(map[string]string, len(s.healthChecks))
	for name, check := range s.healthChecks {
		if err := check(ctx); err != nil {
			dependencies[name] = "down"
			status = "degraded"
			code = http.StatusServiceUnavailable
		} else {
			dependencies[name] = "up"
		}
	}

	body := map[string]interface{}{
		"status":  status,
		"service": "privacy-engine",
	}
	if len(dependencies) > 0 {
		body["dependencies"] = dependencies
	}
	respondJSON(w, code, body)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.GetGlobalLogger().WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.GetGlobalLogger().Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
