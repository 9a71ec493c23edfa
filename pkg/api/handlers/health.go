package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/marmos91/ldapauth/internal/logger"
	"github.com/marmos91/ldapauth/pkg/authprovider"
	"github.com/marmos91/ldapauth/pkg/directory/ldap"
)

// readinessTimeout bounds the directory ping done by Readiness.
const readinessTimeout = 5 * time.Second

// ProviderStatus reports provider counters.
type ProviderStatus interface {
	Name() string
	Stats() authprovider.Stats
}

// DirectoryStatus reports directory reachability and pool state.
// *ldap.Authenticator implements it.
type DirectoryStatus interface {
	Ping(ctx context.Context) error
	Stats() ldap.PoolStats
}

// HealthHandler handles health check endpoints.
//
// Health endpoints are unauthenticated:
//   - Liveness probe: is the process serving HTTP?
//   - Readiness probe: can the directory be reached?
type HealthHandler struct {
	provider  ProviderStatus
	directory DirectoryStatus
}

// NewHealthHandler creates a new health handler. Either argument may be nil;
// readiness then reports unhealthy.
func NewHealthHandler(provider ProviderStatus, directory DirectoryStatus) *HealthHandler {
	return &HealthHandler{provider: provider, directory: directory}
}

// Liveness handles GET /health.
//
// Returns 200 OK whenever the HTTP server is responsive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "ldapauth",
	}))
}

// CacheStatus is the cache section of the readiness payload.
type CacheStatus struct {
	Enabled bool  `json:"enabled"`
	Size    int   `json:"size"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// AuthStatus is the directory outcome section of the readiness payload.
type AuthStatus struct {
	Successes  int64 `json:"successes"`
	Rejections int64 `json:"rejections"`
	Failures   int64 `json:"failures"`
}

// PoolStatus is the connection pool section of the readiness payload.
type PoolStatus struct {
	Total    int32 `json:"total"`
	Idle     int32 `json:"idle"`
	Acquired int32 `json:"acquired"`
	Max      int32 `json:"max"`
}

// ReadinessResponse is the payload of GET /health/ready.
type ReadinessResponse struct {
	Provider  string      `json:"provider"`
	Cache     CacheStatus `json:"cache"`
	Auth      AuthStatus  `json:"authentications"`
	Pool      PoolStatus  `json:"pool"`
	Directory string      `json:"directory"`
	Latency   string      `json:"latency,omitempty"`
}

// Readiness handles GET /health/ready.
//
// Pings the directory through the pool. Returns 200 OK with provider and pool
// statistics when it answers, 503 Service Unavailable otherwise.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil || h.directory == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse(nil, "provider not initialized"))
		return
	}

	stats := h.provider.Stats()
	pool := h.directory.Stats()

	resp := ReadinessResponse{
		Provider: h.provider.Name(),
		Cache: CacheStatus{
			Enabled: stats.CacheEnabled,
			Size:    stats.CacheSize,
			Hits:    stats.Hits,
			Misses:  stats.Misses,
		},
		Auth: AuthStatus{
			Successes:  stats.Successes,
			Rejections: stats.Rejections,
			Failures:   stats.Failures,
		},
		Pool: PoolStatus{
			Total:    pool.Total,
			Idle:     pool.Idle,
			Acquired: pool.Acquired,
			Max:      pool.Max,
		},
	}

	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	start := time.Now()
	err := h.directory.Ping(ctx)
	resp.Latency = time.Since(start).String()

	if err != nil {
		resp.Directory = "unreachable"
		logger.WarnCtx(r.Context(), "Readiness check failed", logger.KeyError, err.Error())
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse(resp, "directory unreachable"))
		return
	}

	resp.Directory = "reachable"
	writeJSON(w, http.StatusOK, healthyResponse(resp))
}
