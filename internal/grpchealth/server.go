// Package grpchealth serves the standard gRPC health checking protocol, reporting
// SERVING while the hub is healthy.
package grpchealth

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the service reported alongside the server-wide "" service
const ServiceName = "websubhub.Hub"

// Checker reports whether the hub can serve requests
type Checker func(ctx context.Context) bool

// Server is a gRPC server exposing only the health service
type Server struct {
	mu      sync.Mutex
	config  *Config
	check   Checker
	grpc    *grpc.Server
	health  *health.Server
	log     logrus.FieldLogger
	stop    chan struct{}
	stopped bool
}

// New creates a health server; call Serve to start it
func New(config *Config, check Checker, log logrus.FieldLogger) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Make a copy and set defaults
	configCopy := *config
	configCopy.SetDefaults()

	s := &Server{
		config: &configCopy,
		check:  check,
		grpc:   grpc.NewServer(),
		health: health.NewServer(),
		log:    log,
		stop:   make(chan struct{}),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.Update(context.Background())

	return s, nil
}

// ListenAndServe listens on the configured address and serves until Close
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.config.ListenAddress, err)
	}
	return s.Serve(l)
}

// Serve serves on l until Close, refreshing the health status every poll interval
func (s *Server) Serve(l net.Listener) error {
	go s.poll()

	s.log.WithField("address", l.Addr().String()).Info("gRPC health server listening")
	if err := s.grpc.Serve(l); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}

func (s *Server) poll() {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.config.PollInterval)
			s.Update(ctx)
			cancel()
		}
	}
}

// Update samples the checker and publishes the resulting status
func (s *Server) Update(ctx context.Context) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if s.check(ctx) {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Close reports NOT_SERVING to watchers and stops the server gracefully.
// Calling Close more than once is safe.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}
	s.stopped = true

	close(s.stop)
	s.health.Shutdown()
	s.grpc.GracefulStop()
	return nil
}

// Check queries the health service at addr and returns the status name, e.g. "SERVING"
func Check(ctx context.Context, addr, service string) (string, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return "", fmt.Errorf("connecting to %s: %w", addr, err)
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return "", fmt.Errorf("health check: %w", err)
	}
	return resp.GetStatus().String(), nil
}
