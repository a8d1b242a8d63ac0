package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rmacdonaldsmith/websubhub/internal/distributor"
	"github.com/rmacdonaldsmith/websubhub/internal/hub"
	"github.com/rmacdonaldsmith/websubhub/pkg/subscription"
)

const (
	// maxFormBytes bounds WebSub request bodies
	maxFormBytes = 64 << 10

	defaultDeliveryLimit = 50
	maxDeliveryLimit     = 1000
)

// Hub is the hub behaviour the HTTP surface needs
type Hub interface {
	RequestSubscription(ctx context.Context, req hub.Request) error
	HandlePublish(ctx context.Context, topic string) error
	Health(ctx context.Context) hub.HealthStatus
	Stats(ctx context.Context) (hub.Stats, error)
	Subscriptions(ctx context.Context, topic string) ([]subscription.Subscription, error)
	Deliveries(ctx context.Context, topic string, limit int) ([]distributor.Delivery, error)
}

// Handlers contains HTTP request handlers
type Handlers struct {
	hub Hub
	log logrus.FieldLogger
}

// NewHandlers creates a new handlers instance
func NewHandlers(h Hub, log logrus.FieldLogger) *Handlers {
	return &Handlers{hub: h, log: log}
}

// Subscribe handles POST / subscribe and unsubscribe requests.
// 200 means the request was accepted for verification, not that it succeeded.
func (h *Handlers) Subscribe(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}

	req := hub.Request{
		Topic:    r.PostForm.Get("hub.topic"),
		Callback: r.PostForm.Get("hub.callback"),
		Mode:     r.PostForm.Get("hub.mode"),
	}
	if values, ok := r.PostForm["hub.secret"]; ok {
		req.HasSecret = true
		req.Secret = values[0]
	}
	if raw := r.PostForm.Get("hub.lease_seconds"); raw != "" {
		// non-numeric leases fall back to the default
		if lease, err := strconv.ParseInt(raw, 10, 64); err == nil {
			req.LeaseSeconds = lease
		}
	}

	if err := h.hub.RequestSubscription(r.Context(), req); err != nil {
		h.writeText(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "Subscription request accepted")
}

// Publish handles POST /publish notifications. Every hub.url (or hub.topic) is
// published; the first failure's status is returned.
func (h *Handlers) Publish(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}

	if mode := r.PostForm.Get("hub.mode"); mode != "" && mode != "publish" {
		h.writeText(w, r, fmt.Errorf("%w: hub.mode must be publish", hub.ErrInvalidMode))
		return
	}

	topics := append(append([]string{}, r.PostForm["hub.url"]...), r.PostForm["hub.topic"]...)
	if len(topics) == 0 {
		h.writeText(w, r, fmt.Errorf("%w: hub.url", hub.ErrMissingField))
		return
	}

	var firstErr error
	for _, topic := range topics {
		if err := h.hub.HandlePublish(r.Context(), topic); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		h.writeText(w, r, firstErr)
		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "Publish accepted")
}

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := h.hub.Health(r.Context())

	resp := HealthResponse{
		Healthy:        health.Healthy,
		StoreHealthy:   health.StoreHealthy,
		WorkersRunning: health.WorkersRunning,
		Pending:        health.Pending,
		QueuedTasks:    health.QueuedTasks,
		ActiveTasks:    health.ActiveTasks,
		Message:        health.Message,
	}

	statusCode := http.StatusOK
	if !health.Healthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, resp, statusCode)
}

// AdminListSubscriptions handles GET /admin/subscriptions[?topic=]
func (h *Handlers) AdminListSubscriptions(w http.ResponseWriter, r *http.Request) {
	logger := h.adminLog(r)
	topic := r.URL.Query().Get("topic")
	logger.WithField("topic", topic).Debug("Listing subscriptions")

	subs, err := h.hub.Subscriptions(r.Context(), topic)
	if err != nil {
		logger.WithError(err).Error("Listing subscriptions failed")
		writeError(w, "Failed to list subscriptions", http.StatusInternalServerError)
		return
	}

	resp := AdminSubscriptionsResponse{
		Subscriptions: make([]SubscriptionInfo, 0, len(subs)),
		Count:         len(subs),
	}
	for _, s := range subs {
		resp.Subscriptions = append(resp.Subscriptions, newSubscriptionInfo(s))
	}
	writeJSON(w, resp, http.StatusOK)
}

// AdminGetStats handles GET /admin/stats
func (h *Handlers) AdminGetStats(w http.ResponseWriter, r *http.Request) {
	logger := h.adminLog(r)
	logger.Debug("Collecting stats")

	stats, err := h.hub.Stats(r.Context())
	if err != nil {
		logger.WithError(err).Error("Collecting stats failed")
		writeError(w, "Failed to collect stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, AdminStatsResponse{Stats: stats, GeneratedAt: time.Now().UTC()}, http.StatusOK)
}

// AdminListDeliveries handles GET /admin/deliveries[?topic=&limit=]
func (h *Handlers) AdminListDeliveries(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := defaultDeliveryLimit
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxDeliveryLimit)
	}

	topic := query.Get("topic")
	logger := h.adminLog(r)
	logger.WithField("topic", topic).Debug("Listing deliveries")

	deliveries, err := h.hub.Deliveries(r.Context(), topic, limit)
	if err != nil {
		logger.WithError(err).Error("Listing deliveries failed")
		writeError(w, "Failed to list deliveries", http.StatusInternalServerError)
		return
	}

	writeJSON(w, AdminDeliveriesResponse{
		Topic:      topic,
		Deliveries: deliveries,
		Count:      len(deliveries),
	}, http.StatusOK)
}

// adminLog tags the logger with the token subject of an admin request
func (h *Handlers) adminLog(r *http.Request) logrus.FieldLogger {
	if claims := GetClaims(r); claims != nil {
		return h.log.WithField("subject", claims.Subject)
	}
	return h.log
}

func (h *Handlers) parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Malformed form body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// writeText reports err in plain text with the status the hub maps it to
func (h *Handlers) writeText(w http.ResponseWriter, r *http.Request, err error) {
	status := hub.StatusCode(err)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		h.log.WithFields(logrus.Fields{
			"request_id": GetRequestID(r),
			"path":       r.URL.Path,
		}).WithError(err).Error("Request failed")
	}
	http.Error(w, err.Error(), status)
}
