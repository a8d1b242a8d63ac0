// Package httpapi exposes the hub over HTTP: the WebSub subscription and publish
// endpoints, a health check and a JWT protected admin API.
package httpapi

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// Server represents the HTTP API server
type Server struct {
	hub        Hub
	jwtAuth    *JWTAuth
	handlers   *Handlers
	middleware *Middleware
	server     *http.Server
	log        logrus.FieldLogger
}

// Config holds server configuration
type Config struct {
	Address string
	Port    int
	// AuthSecret signs admin tokens; empty disables the admin API
	AuthSecret string
	// WriteTimeout must exceed the outbound request timeout, since publish waits for the topic fetch
	WriteTimeout time.Duration
}

// NewServer creates a new HTTP API server
func NewServer(h Hub, config Config, log logrus.FieldLogger) *Server {
	var jwtAuth *JWTAuth
	if config.AuthSecret != "" {
		jwtAuth = NewJWTAuth(config.AuthSecret)
	}

	writeTimeout := config.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}

	server := &Server{
		hub:        h,
		jwtAuth:    jwtAuth,
		handlers:   NewHandlers(h, log),
		middleware: NewMiddleware(jwtAuth, log),
		log:        log,
	}

	server.server = &http.Server{
		Addr:              net.JoinHostPort(config.Address, strconv.Itoa(config.Port)),
		Handler:           server.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	return server
}

// Handler returns the routed handler, middleware included
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start serves until Stop is called; it then returns http.ErrServerClosed
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Serve serves on an existing listener
func (s *Server) Serve(l net.Listener) error {
	return s.server.Serve(l)
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	withMiddleware := func(handler http.HandlerFunc) http.Handler {
		return s.middleware.RequestID(
			s.middleware.Recovery(
				s.middleware.Logging(handler)))
	}
	text := func(handler http.HandlerFunc) http.HandlerFunc {
		return s.middleware.ContentType("text/plain; charset=utf-8", handler)
	}

	// WebSub endpoints (form encoded, plain text replies)
	mux.Handle("POST /{$}", withMiddleware(text(s.handlers.Subscribe)))
	mux.Handle("POST /publish", withMiddleware(text(s.handlers.Publish)))
	mux.Handle("GET /{$}", withMiddleware(text(s.handleRoot)))

	// Health endpoint (no auth required)
	mux.Handle("GET /health", withMiddleware(s.handlers.Health))

	// Admin endpoints (admin auth required)
	mux.Handle("GET /admin/subscriptions", withMiddleware(s.middleware.AdminRequired(s.handlers.AdminListSubscriptions)))
	mux.Handle("GET /admin/stats", withMiddleware(s.middleware.AdminRequired(s.handlers.AdminGetStats)))
	mux.Handle("GET /admin/deliveries", withMiddleware(s.middleware.AdminRequired(s.handlers.AdminListDeliveries)))

	return mux
}

// handleRoot describes the hub to browsers and curious clients
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("WebSub hub\n\n" +
		"POST /         hub.mode=subscribe|unsubscribe, hub.topic, hub.callback[, hub.secret, hub.lease_seconds]\n" +
		"POST /publish  hub.mode=publish, hub.url\n" +
		"GET  /health\n"))
}
