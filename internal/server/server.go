// Package server exposes the engine over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lokapasar/sambatan/internal/domain"
	"github.com/lokapasar/sambatan/internal/server/handler"
	"github.com/lokapasar/sambatan/internal/server/middleware"
	"github.com/lokapasar/sambatan/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// OperatorKey guards the mutating operator endpoints. If empty,
	// operator authentication is disabled.
	OperatorKey string
	// APIRateLimit caps requests per client IP per second. 0 disables
	// the limiter.
	APIRateLimit int
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health       *handler.HealthHandler
	Campaigns    *handler.CampaignHandler
	Participants *handler.ParticipantHandler
}

// Server is the HTTP + WebSocket API server for the group-buy engine.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the
// ServeMux. It wires up middleware (logging, CORS, rate limiting) and
// attaches the WebSocket hub. Operator endpoints additionally sit
// behind the operator key. limiter may be nil to disable API rate
// limiting.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	operator := middleware.Auth(cfg.OperatorKey)

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Campaign read endpoints.
	mux.HandleFunc("GET /api/campaigns", handlers.Campaigns.ListCampaigns)
	mux.HandleFunc("GET /api/campaigns/{id}", handlers.Campaigns.GetCampaign)
	mux.HandleFunc("GET /api/campaigns/{id}/participants", handlers.Campaigns.ListParticipants)
	mux.HandleFunc("GET /api/campaigns/{id}/audit", handlers.Campaigns.GetAuditTrail)

	// Buyer join endpoint.
	mux.HandleFunc("POST /api/campaigns/{id}/join", handlers.Participants.JoinCampaign)

	// Operator endpoints.
	mux.Handle("POST /api/campaigns", operator(http.HandlerFunc(handlers.Campaigns.CreateCampaign)))
	mux.Handle("POST /api/campaigns/{id}/launch", operator(http.HandlerFunc(handlers.Campaigns.LaunchCampaign)))
	mux.Handle("POST /api/campaigns/{id}/cancel", operator(http.HandlerFunc(handlers.Campaigns.CancelCampaign)))

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux

	if limiter != nil && cfg.APIRateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.APIRateLimit, time.Second)(h)
	}

	h = middleware.Logging(logger)(h)
	h = corsMiddleware(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// corsMiddleware returns middleware that sets CORS headers for the allowed
// origins. If no origins are specified, it defaults to allowing all origins.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" {
				allowed := len(allowedOrigins) == 0 // allow all if none specified
				for _, o := range allowedOrigins {
					if strings.EqualFold(o, "*") || strings.EqualFold(o, origin) {
						allowed = true
						break
					}
				}

				if allowed {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
					w.Header().Set("Access-Control-Max-Age", "86400")
				}
			}

			// Handle preflight requests.
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
