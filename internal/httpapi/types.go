package httpapi

import (
	"time"

	"github.com/rmacdonaldsmith/websubhub/internal/distributor"
	"github.com/rmacdonaldsmith/websubhub/internal/hub"
	"github.com/rmacdonaldsmith/websubhub/pkg/subscription"
)

// Response types for the JSON endpoints. The WebSub endpoints reply in plain text.

// SubscriptionInfo is the admin view of a stored subscription; the secret is never exposed
type SubscriptionInfo struct {
	ID           string              `json:"id"`
	Topic        string              `json:"topic"`
	Callback     string              `json:"callback"`
	Mode         subscription.Mode   `json:"mode"`
	Status       subscription.Status `json:"status"`
	Signed       bool                `json:"signed"`
	LeaseSeconds int64               `json:"leaseSeconds"`
	ExpiresAt    time.Time           `json:"expiresAt"`
	CreatedAt    time.Time           `json:"createdAt"`
	VerifiedAt   time.Time           `json:"verifiedAt"`
}

// AdminSubscriptionsResponse lists stored subscriptions
type AdminSubscriptionsResponse struct {
	Subscriptions []SubscriptionInfo `json:"subscriptions"`
	Count         int                `json:"count"`
}

// AdminStatsResponse represents hub statistics
type AdminStatsResponse struct {
	hub.Stats
	GeneratedAt time.Time `json:"generatedAt"`
}

// AdminDeliveriesResponse lists recorded deliveries
type AdminDeliveriesResponse struct {
	Topic      string                 `json:"topic,omitempty"`
	Deliveries []distributor.Delivery `json:"deliveries"`
	Count      int                    `json:"count"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Healthy        bool   `json:"healthy"`
	StoreHealthy   bool   `json:"storeHealthy"`
	WorkersRunning bool   `json:"workersRunning"`
	Pending        int    `json:"pending"`
	QueuedTasks    int    `json:"queuedTasks"`
	ActiveTasks    int    `json:"activeTasks"`
	Message        string `json:"message,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func newSubscriptionInfo(s subscription.Subscription) SubscriptionInfo {
	return SubscriptionInfo{
		ID:           s.ID,
		Topic:        s.Topic,
		Callback:     s.Callback,
		Mode:         s.Mode,
		Status:       s.Status,
		Signed:       s.HasSecret(),
		LeaseSeconds: s.LeaseSeconds,
		ExpiresAt:    s.ExpiresAt,
		CreatedAt:    s.CreatedAt,
		VerifiedAt:   s.VerifiedAt,
	}
}
