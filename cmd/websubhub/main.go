package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rmacdonaldsmith/websubhub/internal/config"
	"github.com/rmacdonaldsmith/websubhub/internal/grpchealth"
	"github.com/rmacdonaldsmith/websubhub/internal/httpapi"
	"github.com/rmacdonaldsmith/websubhub/internal/hub"
	"github.com/rmacdonaldsmith/websubhub/internal/log"
	"github.com/rmacdonaldsmith/websubhub/internal/store"
)

const (
	// Application info
	appName    = "websubhub"
	appVersion = "0.1.0"

	shutdownTimeout = 30 * time.Second
)

func main() {
	var (
		configPath   = flag.String("config", "", "Path to a TOML config file; defaults apply without one")
		showVersion  = flag.Bool("version", false, "Show version and exit")
		showDefaults = flag.Bool("default-config", false, "Print the default configuration and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s v%s\n", appName, appVersion)
		os.Exit(0)
	}

	if *showDefaults {
		fmt.Print(config.DefaultCfg)
		os.Exit(0)
	}

	cfg, err := config.Read(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading config: %v\n", err)
		os.Exit(1)
	}

	logger := log.New(cfg.Log)
	logger.WithFields(logrus.Fields{"version": appVersion, "hub_url": cfg.Server.PublicURL}).Info("Starting " + appName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupGracefulShutdown(cancel, logger)

	l, err := net.Listen("tcp", net.JoinHostPort(cfg.Server.Address, strconv.Itoa(cfg.Server.Port)))
	if err != nil {
		logger.WithError(err).Fatal("Failed to listen")
	}

	if err := serve(ctx, cfg, l, logger); err != nil {
		logger.WithError(err).Fatal("Hub stopped with an error")
	}
	logger.Info("Hub stopped")
}

// setupGracefulShutdown cancels the serving context on SIGINT, SIGTERM or SIGHUP
func setupGracefulShutdown(cancel context.CancelFunc, logger logrus.FieldLogger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		sig := <-sigChan
		logger.WithField("signal", sig.String()).Info("Received signal, shutting down gracefully")
		cancel()
	}()
}

// hubConfig translates the file configuration into the hub's own
func hubConfig(cfg config.Config) *hub.Config {
	// the request timeout raises the pending TTL when it is the longer of the two
	return hub.NewConfig(cfg.Server.PublicURL).
		WithPendingTTL(cfg.Hub.Converted.PendingTTL).
		WithRequestTimeout(cfg.Timeout.Converted.Request).
		WithLeases(cfg.Hub.Converted.DefaultLease, cfg.Hub.Converted.MinLease, cfg.Hub.Converted.MaxLease).
		WithMaxSecretLength(cfg.Hub.MaxSecretLength).
		WithWorkers(cfg.Hub.Workers, cfg.Hub.QueueSize).
		WithMaxFanout(cfg.Hub.MaxFanout).
		WithReapInterval(cfg.Hub.Converted.ReapInterval).
		WithSignatureHeader(cfg.Hub.SignatureHeader).
		WithMaxContentBytes(cfg.Hub.MaxContentBytes).
		WithDeliveryLogSize(cfg.Hub.DeliveryLogSize)
}

// serve runs the hub on l until ctx is cancelled, then shuts everything down
func serve(ctx context.Context, cfg config.Config, l net.Listener, logger logrus.FieldLogger) error {
	subs, err := store.Open(cfg.DB.Driver, cfg.DB.Connect, logger)
	if err != nil {
		l.Close()
		return fmt.Errorf("opening subscription store: %w", err)
	}

	h, err := hub.New(hubConfig(cfg), subs, logger)
	if err != nil {
		l.Close()
		subs.Close()
		return fmt.Errorf("creating hub: %w", err)
	}
	defer func() {
		if err := h.Close(); err != nil {
			logger.WithError(err).Warn("Error closing hub")
		}
	}()

	if err := h.Start(ctx); err != nil {
		l.Close()
		return fmt.Errorf("starting hub: %w", err)
	}

	server := httpapi.NewServer(h, httpapi.Config{
		Address:      cfg.Server.Address,
		Port:         cfg.Server.Port,
		AuthSecret:   cfg.Auth.Secret,
		WriteTimeout: cfg.Timeout.Converted.Request + 30*time.Second,
	}, logger)

	var health *grpchealth.Server
	if cfg.Server.GRPCPort > 0 {
		health, err = grpchealth.New(&grpchealth.Config{
			ListenAddress: net.JoinHostPort(cfg.Server.Address, strconv.Itoa(cfg.Server.GRPCPort)),
		}, func(ctx context.Context) bool {
			return h.Health(ctx).Healthy
		}, logger)
		if err != nil {
			l.Close()
			return fmt.Errorf("creating gRPC health server: %w", err)
		}
	}

	errs := make(chan error, 2)
	go func() {
		logger.WithField("address", l.Addr().String()).Info("HTTP server listening")
		if err := server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("http server: %w", err)
		}
	}()
	if health != nil {
		go func() {
			if err := health.ListenAndServe(); err != nil {
				errs <- fmt.Errorf("gRPC health server: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errs:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if health != nil {
		health.Close()
	}
	if err := server.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Error stopping HTTP server")
	}
	if err := h.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Error stopping hub")
	}

	return runErr
}
