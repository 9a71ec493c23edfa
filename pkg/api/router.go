package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/ldapauth/pkg/api/auth"
	"github.com/marmos91/ldapauth/pkg/api/handlers"
	apimw "github.com/marmos91/ldapauth/pkg/api/middleware"
)

// Provider is what the API needs from the authentication provider.
// *authprovider.Provider implements it.
type Provider interface {
	handlers.Authenticator
	handlers.CacheController
	handlers.ProviderStatus
}

// NewRouter creates and configures the chi router with all middleware and routes.
//
// The router is configured with:
//   - Request ID middleware for request tracking
//   - Real IP extraction for proper client identification
//   - Request logging through the internal logger
//   - Panic recovery to prevent server crashes
//   - Request timeout to prevent hung requests
//
// Routes:
//   - GET /health - Liveness probe
//   - GET /health/ready - Readiness probe
//   - POST /api/v1/authenticate - Verify credentials
//   - POST /api/v1/invalidate - Drop the cached profile for credentials
//   - POST /api/v1/token - Verify credentials and issue a JWT (jwtService set)
//   - GET /api/v1/me - Claims of a Bearer token (jwtService set)
func NewRouter(config APIConfig, provider Provider, directory handlers.DirectoryStatus, jwtService *auth.JWTService) http.Handler {
	config.ApplyDefaults()

	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apimw.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(config.RequestTimeout))

	healthHandler := handlers.NewHealthHandler(provider, directory)
	authHandler := handlers.NewAuthHandler(provider, jwtService)
	cacheHandler := handlers.NewCacheHandler(provider)

	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/authenticate", authHandler.Authenticate)
		r.Post("/invalidate", cacheHandler.Invalidate)
		r.Post("/token", authHandler.Token)

		if jwtService != nil {
			r.With(apimw.JWTAuth(jwtService, handlers.Unauthorized)).Get("/me", authHandler.Me)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		handlers.NotFound(w, "No route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteProblem(w, http.StatusMethodNotAllowed, "Method Not Allowed", r.Method+" is not allowed on "+r.URL.Path)
	})

	return r
}
