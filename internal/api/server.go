package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"time"

	"go.uber.org/zap"

	"github.com/toastigo/storefront/internal/auth"
	"github.com/toastigo/storefront/internal/config"
)

// Deps are the collaborators the server routes requests to. Hub, Bridge and
// Orchestrator may be nil; the endpoints that need them answer UNAVAILABLE.
type Deps struct {
	Status       StatusReader
	Hub          TelemetryPort
	Bridge       BridgePort
	Orchestrator OrchestratorPort
	Shop         ShopPort
	Auth         Authenticator
	Middleware   *auth.Middleware
	Logger       *zap.Logger
	Version      string
}

// Server represents the HTTP server.
type Server struct {
	Deps
	cfg        config.ServerConfig
	log        *zap.Logger
	httpServer *http.Server
	startTime  time.Time
	proxies    []netip.Prefix
}

// NewServer creates a new server.
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if deps.Version == "" {
		deps.Version = "dev"
	}
	s := &Server{
		Deps:      deps,
		cfg:       cfg,
		log:       log,
		startTime: time.Now(),
	}
	proxies, err := cfg.ProxyPrefixes()
	if err != nil {
		log.Warn("Ignoring trusted proxies", zap.Error(err))
	}
	s.proxies = proxies
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Serve accepts connections on l until Stop is called. Stop before Serve
// makes Serve return at once.
func (s *Server) Serve(l net.Listener) error {
	s.log.Info("HTTP server listening", zap.String("addr", l.Addr().String()))
	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve HTTP: %w", err)
	}
	return nil
}

// Start listens on the configured address and serves until Stop is called.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return s.Serve(l)
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

// fail writes err as an API error and logs server-side failures.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	statusCode, body := ToAPIError(err)
	if statusCode >= http.StatusInternalServerError && statusCode != http.StatusServiceUnavailable {
		s.log.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", statusCode),
			zap.Error(err))
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_, _ = w.Write(body)
}
