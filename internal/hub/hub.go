// Package hub implements the WebSub control and data paths: subscription requests are
// verified asynchronously and stored, publish notifications are fetched and fanned out.
package hub

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rmacdonaldsmith/websubhub/internal/distributor"
	"github.com/rmacdonaldsmith/websubhub/internal/fetcher"
	"github.com/rmacdonaldsmith/websubhub/internal/verifier"
	"github.com/rmacdonaldsmith/websubhub/pkg/subscription"
)

// HealthStatus represents the overall health of a hub
type HealthStatus struct {
	Healthy        bool   `json:"healthy"`
	StoreHealthy   bool   `json:"store_healthy"`
	WorkersRunning bool   `json:"workers_running"`
	Pending        int    `json:"pending"`
	QueuedTasks    int    `json:"queued_tasks"`
	ActiveTasks    int    `json:"active_tasks"`
	Message        string `json:"message,omitempty"`
}

// Stats is a point-in-time summary of hub activity
type Stats struct {
	Subscriptions int                `json:"subscriptions"`
	Topics        int                `json:"topics"`
	Pending       int                `json:"pending"`
	Requests      ManagerStats       `json:"requests"`
	Publish       CoordinatorStats   `json:"publish"`
	Deliveries    distributor.Counts `json:"deliveries"`
}

// Option overrides a hub component
type Option func(*Hub)

// WithVerifier replaces the HTTP verifier
func WithVerifier(v Verifier) Option {
	return func(h *Hub) { h.verifier = v }
}

// WithFetcher replaces the HTTP topic fetcher
func WithFetcher(f Fetcher) Option {
	return func(h *Hub) { h.fetcher = f }
}

// WithDistributor replaces the HTTP distributor
func WithDistributor(d Distributor) Option {
	return func(h *Hub) { h.distributor = d }
}

// WithHTTPClient sets the client used for all outbound calls
func WithHTTPClient(c *http.Client) Option {
	return func(h *Hub) { h.client = c }
}

// Hub wires the subscription manager, publish coordinator, task pool and reaper
// around a subscription store.
type Hub struct {
	mu     sync.RWMutex
	config *Config
	log    logrus.FieldLogger

	store       subscription.Store
	client      *http.Client
	verifier    Verifier
	fetcher     Fetcher
	distributor Distributor
	deliveries  *distributor.DeliveryLog

	pool        *Pool
	pending     *Pending
	manager     *Manager
	coordinator *Coordinator
	reaper      *Reaper

	cancel     context.CancelFunc
	reaperDone chan struct{}

	started bool
	closed  bool
}

// New creates a hub with the given configuration. It does not start the workers;
// call Start to begin operation.
func New(config *Config, store subscription.Store, log logrus.FieldLogger, opts ...Option) (*Hub, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}

	h := &Hub{
		config:     config,
		log:        log,
		store:      store,
		deliveries: distributor.NewDeliveryLog(config.DeliveryLogSize),
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.client == nil {
		h.client = NewTimeoutClient(config.RequestTimeout)
	}
	if h.verifier == nil {
		h.verifier = verifier.New(h.client, log)
	}
	if h.fetcher == nil {
		h.fetcher = fetcher.New(h.client, config.MaxContentBytes, log)
	}
	if h.distributor == nil {
		h.distributor = distributor.New(store, h.client, h.deliveries, distributor.Options{
			HubURL:          config.HubURL,
			SignatureHeader: config.SignatureHeader,
			Concurrency:     config.MaxFanout,
		}, log)
	}

	h.pool = NewPool(config.Workers, config.QueueSize, log)
	h.pending = NewPending(config.PendingTTL)
	h.manager = NewManager(config, store, h.verifier, h.pending, h.pool, log)
	h.coordinator = NewCoordinator(h.fetcher, h.distributor, h.pool, log)
	if config.ReapInterval > 0 {
		h.reaper = NewReaper(store, config.ReapInterval, log)
	}

	return h, nil
}

// Start launches the task pool and the reaper. A stopped hub cannot be restarted.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return fmt.Errorf("cannot start closed hub")
	}
	if h.started {
		return nil
	}

	// workers outlive the ctx of the caller; Stop ends them
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := h.pool.Start(runCtx); err != nil {
		cancel()
		return err
	}

	if h.reaper != nil {
		h.reaperDone = make(chan struct{})
		go func() {
			defer close(h.reaperDone)
			h.reaper.Run(runCtx)
		}()
	}

	h.cancel = cancel
	h.started = true
	h.log.WithFields(logrus.Fields{
		"hub_url": h.config.HubURL,
		"workers": h.config.Workers,
	}).Info("Hub started")
	return nil
}

// Stop drains queued verifications and distributions, waiting at most until ctx is done
func (h *Hub) Stop(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		return nil
	}
	h.started = false

	err := h.pool.Stop(ctx)
	h.cancel()
	if h.reaperDone != nil {
		<-h.reaperDone
	}

	h.log.Info("Hub stopped")
	return err
}

// Close stops the hub if needed and releases the store and the delivery log
func (h *Hub) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.RequestTimeout+time.Second)
	defer cancel()
	stopErr := h.Stop(ctx)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	_ = h.deliveries.Close()
	if err := h.store.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}
	return stopErr
}

// RequestSubscription accepts a subscribe or unsubscribe request for verification
func (h *Hub) RequestSubscription(ctx context.Context, req Request) error {
	if !h.running() {
		return ErrNotRunning
	}
	return h.manager.RequestSubscription(ctx, req)
}

// HandlePublish fetches topic and schedules its distribution
func (h *Hub) HandlePublish(ctx context.Context, topic string) error {
	if !h.running() {
		return ErrNotRunning
	}
	return h.coordinator.HandlePublish(ctx, topic)
}

// Subscriptions lists stored subscriptions, optionally of one topic
func (h *Hub) Subscriptions(ctx context.Context, topic string) ([]subscription.Subscription, error) {
	return h.store.List(ctx, topic)
}

// Deliveries returns recorded deliveries of topic, or the most recent of all topics
func (h *Hub) Deliveries(ctx context.Context, topic string, limit int) ([]distributor.Delivery, error) {
	if topic == "" {
		return h.deliveries.Recent(ctx, limit)
	}
	start := h.deliveries.EndOffset(topic) - int64(limit)
	if start < 0 {
		start = 0
	}
	return h.deliveries.Read(ctx, topic, start, limit)
}

// Stats summarizes stored subscriptions and activity counters
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	subs, err := h.store.List(ctx, "")
	if err != nil {
		return Stats{}, err
	}

	topics := make(map[string]struct{})
	for _, s := range subs {
		topics[s.Topic] = struct{}{}
	}

	return Stats{
		Subscriptions: len(subs),
		Topics:        len(topics),
		Pending:       h.pending.Count(),
		Requests:      h.manager.Stats(),
		Publish:       h.coordinator.Stats(),
		Deliveries:    h.deliveries.Counts(),
	}, nil
}

// Health returns the health of the hub and its store
func (h *Hub) Health(ctx context.Context) HealthStatus {
	status := HealthStatus{
		WorkersRunning: h.pool.Running(),
		Pending:        h.pending.Count(),
		QueuedTasks:    h.pool.Queued(),
		ActiveTasks:    h.pool.Active(),
	}

	if err := h.store.Ping(ctx); err != nil {
		status.Message = "store unreachable: " + err.Error()
	} else {
		status.StoreHealthy = true
	}

	status.Healthy = status.StoreHealthy && status.WorkersRunning && h.running()
	if !status.WorkersRunning && status.Message == "" {
		status.Message = "hub is not running"
	}
	return status
}

// Config returns the hub configuration
func (h *Hub) Config() *Config {
	return h.config
}

func (h *Hub) running() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.started && !h.closed
}
