package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/ldapauth/internal/logger"
	"github.com/marmos91/ldapauth/pkg/api/auth"
	"github.com/marmos91/ldapauth/pkg/api/handlers"
)

// Server provides an HTTP server for the REST API.
//
// Endpoints:
//   - GET /health: Liveness probe
//   - GET /health/ready: Readiness probe
//   - POST /api/v1/authenticate: Credential verification
//   - POST /api/v1/token, GET /api/v1/me: JWT issuance (when a secret is set)
//
// The server supports graceful shutdown.
type Server struct {
	server       *http.Server
	config       APIConfig
	jwtService   *auth.JWTService
	shutdownOnce sync.Once

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a new API HTTP server.
//
// The server is created in a stopped state. Call Start() to begin serving requests.
//
// Defaults are applied here so the server works when created directly (e.g.,
// in tests). Token endpoints are enabled when a JWT secret is configured;
// an invalid secret is an error.
func NewServer(config APIConfig, provider Provider, directory handlers.DirectoryStatus) (*Server, error) {
	config.ApplyDefaults()

	var jwtService *auth.JWTService
	if config.HasJWTSecret() {
		svc, err := auth.NewJWTService(auth.JWTConfig{
			Secret:        config.GetJWTSecret(),
			Issuer:        config.JWT.Issuer,
			TokenDuration: config.JWT.TokenDuration,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create JWT service: %w", err)
		}
		jwtService = svc
	} else {
		logger.Info("No JWT secret configured, token endpoints disabled")
	}

	router := NewRouter(config, provider, directory, jwtService)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", config.Port),
		Handler:           router,
		ReadTimeout:       config.ReadTimeout,
		ReadHeaderTimeout: config.ReadTimeout,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
	}

	return &Server{
		server:     server,
		config:     config,
		jwtService: jwtService,
	}, nil
}

// Start starts the API HTTP server and blocks until the context is cancelled
// or an error occurs.
//
// When the context is cancelled, Start initiates graceful shutdown and returns.
//
// Returns:
//   - nil on graceful shutdown
//   - error if the server fails to start or shutdown encounters an error
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("API server failed: %w", err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		logger.Info("API server listening", "port", s.Port())
		if logger.IsDebugEnabled() {
			base := fmt.Sprintf("http://localhost:%d", s.Port())
			logger.Debug("API endpoints available",
				"health", base+"/health",
				"authenticate", base+"/api/v1/authenticate",
				"invalidate", base+"/api/v1/invalidate",
				"tokens", s.TokensEnabled(),
			)
		}

		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("API server shutdown signal received")
		// The cancelled ctx would abort shutdown immediately.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("API server failed: %w", err)
	}
}

// Stop initiates graceful shutdown of the API server.
//
// Stop is safe to call multiple times and safe to call concurrently with Start().
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("API server shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("API server shutdown error: %w", err)
			logger.Error("API server shutdown error", logger.KeyError, err.Error())
		} else {
			logger.Info("API server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server is listening on.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
			return addr.Port
		}
	}
	return s.config.Port
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// TokensEnabled reports whether token endpoints are served.
func (s *Server) TokensEnabled() bool {
	return s.jwtService != nil
}
