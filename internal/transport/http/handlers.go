// @title Fixpoint API
// @version 1.0.0
// @description Multi-tenant maintenance issue tracking backend
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url http://www.swagger.io/support
// @contact.email support@fixpoint.local

// @license.name Apache 2.0
// @license.url https://www.apache.org/licenses/LICENSE-2.0

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fixpoint/fixpoint/internal/audit"
	"github.com/fixpoint/fixpoint/internal/issue"
	"github.com/fixpoint/fixpoint/internal/observability/logger"
	"github.com/fixpoint/fixpoint/internal/observability/metrics"
	"github.com/fixpoint/fixpoint/internal/storage"
	"github.com/fixpoint/fixpoint/internal/tenant"
)

// StoreFactory binds an issue store to the partition of a resolved
// tenant. Injected so transport stays ignorant of the database layout.
type StoreFactory func(t *tenant.Tenant) issue.Store

// AuthConfig holds the settings for validating inbound requests.
type AuthConfig struct {
	JWTSecret    string
	TenantHeader string
}

// Handler holds HTTP handlers and dependencies
type Handler struct {
	issueService  *issue.Service
	tenantService *tenant.Service
	provisioner   *tenant.Provisioner
	resolver      *tenant.Resolver
	stores        StoreFactory
	files         *storage.Store
	meter         *metrics.Meter
	auditLogger   audit.Logger
	authConfig    AuthConfig
}

// NewHandler creates a new HTTP handler
func NewHandler(
	issueService *issue.Service,
	tenantService *tenant.Service,
	provisioner *tenant.Provisioner,
	resolver *tenant.Resolver,
	stores StoreFactory,
	files *storage.Store,
	meter *metrics.Meter,
	auditLogger audit.Logger,
	authConfig AuthConfig,
) *Handler {
	return &Handler{
		issueService:  issueService,
		tenantService: tenantService,
		provisioner:   provisioner,
		resolver:      resolver,
		stores:        stores,
		files:         files,
		meter:         meter,
		auditLogger:   auditLogger,
		authConfig:    authConfig,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/health", h.HealthCheck)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Registry administration: tenant lifecycle and the cross-tenant
		// user directory. No tenant header here; these operate on the
		// shared partition only.
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			r.Route("/tenants", func(r chi.Router) {
				r.Post("/", h.ProvisionTenant)
				r.Get("/", h.ListTenants)
				r.Route("/{tenantID}", func(r chi.Router) {
					r.Get("/", h.GetTenant)
					r.Put("/", h.UpdateTenant)
					r.Delete("/", h.TeardownTenant)
				})
			})

			r.Route("/users", func(r chi.Router) {
				r.Post("/", h.CreateUser)
				r.Get("/", h.ListUsers)
				r.Get("/{email}", h.GetUserByEmail)
			})
		})

		// Tenant-scoped endpoints (FAIL-CLOSED): every route below runs
		// against the partition resolved from the tenant header. Auth
		// comes first so unauthenticated requests never touch the
		// registry.
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)
			r.Use(h.TenantMiddleware)
			r.Use(RequireTenant)

			r.Route("/issues", func(r chi.Router) {
				r.Post("/", h.CreateIssue)
				r.Get("/", h.ListIssues)
				r.Get("/export.csv", h.ExportIssuesCSV)

				r.Route("/{issueUUID}", func(r chi.Router) {
					r.Get("/", h.GetIssue)
					r.Patch("/", h.UpdateIssue)
					r.Delete("/", h.DeleteIssue)
					r.Post("/actions/{action}", h.ApplyIssueAction)
					r.Get("/events", h.ListIssueEvents)
					r.Get("/summaries", h.ListIssueSummaries)
					r.Route("/files/{name}", func(r chi.Router) {
						r.Put("/", h.UploadIssueFile)
						r.Delete("/", h.DeleteIssueFile)
						r.Get("/url", h.IssueFileURL)
					})
				})
			})
		})
	})

	return r
}

// HealthCheck returns the health status
// @Summary Health Check
// @Description Checks if the service is up and running
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "fixpoint",
	})
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondDomainError maps typed domain errors to status codes. Unknown
// errors are logged and answered with a bare 500 so internals do not
// leak to clients.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, issue.ErrIssueNotFound),
		errors.Is(err, tenant.ErrTenantNotFound),
		errors.Is(err, tenant.ErrUserNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, issue.ErrInvalidTransition):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, tenant.ErrDuplicateTaxID):
		respondError(w, http.StatusConflict, err.Error())
	default:
		slog.ErrorContext(r.Context(), "request failed",
			logger.Method(r.Method),
			logger.Path(r.URL.Path),
			logger.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func getIPAddress(r *http.Request) string {
	// Check X-Forwarded-For header first
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
