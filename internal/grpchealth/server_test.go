package grpchealth

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
)

func startServer(t *testing.T, check Checker) (*Server, string) {
	t.Helper()

	logger, _ := test.NewNullLogger()
	s, err := New(&Config{ListenAddress: "127.0.0.1:0", PollInterval: 10 * time.Millisecond}, check, logger)
	if err != nil {
		t.Fatalf("Expected no error creating server, got: %v", err)
	}

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	go func() { _ = s.Serve(l) }()
	t.Cleanup(func() { _ = s.Close() })

	return s, l.Addr().String()
}

func TestNew_InvalidConfig(t *testing.T) {
	logger, _ := test.NewNullLogger()
	if _, err := New(&Config{}, func(context.Context) bool { return true }, logger); err == nil {
		t.Fatal("Expected error with empty listen address")
	}
}

func TestConfig_SetDefaults(t *testing.T) {
	c := &Config{ListenAddress: ":9090"}
	c.SetDefaults()
	if c.PollInterval != 5*time.Second {
		t.Errorf("Expected default poll interval 5s, got %v", c.PollInterval)
	}
}

func TestCheck_ReflectsHubHealth(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)

	_, addr := startServer(t, func(context.Context) bool { return healthy.Load() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, service := range []string{"", ServiceName} {
		status, err := Check(ctx, addr, service)
		if err != nil {
			t.Fatalf("Expected no error checking %q, got: %v", service, err)
		}
		if status != "SERVING" {
			t.Errorf("Expected SERVING for %q, got %s", service, status)
		}
	}

	healthy.Store(false)
	deadline := time.Now().Add(2 * time.Second)
	for {
		status, err := Check(ctx, addr, ServiceName)
		if err == nil && status == "NOT_SERVING" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Expected NOT_SERVING after hub became unhealthy, got %s (%v)", status, err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestCheck_UnknownService(t *testing.T) {
	_, addr := startServer(t, func(context.Context) bool { return true })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := Check(ctx, addr, "no.such.Service"); err == nil {
		t.Error("Expected error for unknown service")
	}
}

func TestClose_Idempotent(t *testing.T) {
	s, _ := startServer(t, func(context.Context) bool { return true })

	if err := s.Close(); err != nil {
		t.Errorf("Expected no error closing, got: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Expected no error on second close, got: %v", err)
	}
}
