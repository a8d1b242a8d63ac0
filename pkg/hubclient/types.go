package hubclient

import "time"

// Config holds client configuration
type Config struct {
	// ServerURL is the base URL of the hub (e.g., "http://localhost:8080")
	ServerURL string

	// Token is an admin JWT, required only for the admin methods
	Token string

	// Timeout for HTTP requests
	Timeout time.Duration

	// MaxRetries for requests failing with a transport error or 503.
	// Zero selects the default; a negative value disables retries.
	MaxRetries int

	// RetryInterval is the first backoff delay; later delays grow exponentially
	RetryInterval time.Duration
}

// SetDefaults sets reasonable default values for the config
func (c *Config) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = 500 * time.Millisecond
	}
}

// SubscribeRequest is a subscription request; zero values are omitted from the form
type SubscribeRequest struct {
	Topic        string
	Callback     string
	Secret       string
	LeaseSeconds int64
}

// Subscription represents a stored subscription as listed by the admin API
type Subscription struct {
	ID           string    `json:"id"`
	Topic        string    `json:"topic"`
	Callback     string    `json:"callback"`
	Mode         string    `json:"mode"`
	Status       string    `json:"status"`
	Signed       bool      `json:"signed"`
	LeaseSeconds int64     `json:"leaseSeconds"`
	ExpiresAt    time.Time `json:"expiresAt"`
	CreatedAt    time.Time `json:"createdAt"`
	VerifiedAt   time.Time `json:"verifiedAt"`
}

// SubscriptionsResponse lists subscriptions
type SubscriptionsResponse struct {
	Subscriptions []Subscription `json:"subscriptions"`
	Count         int            `json:"count"`
}

// StatsResponse represents hub statistics
type StatsResponse struct {
	Subscriptions int `json:"subscriptions"`
	Topics        int `json:"topics"`
	Pending       int `json:"pending"`
	Requests      struct {
		Accepted  int64 `json:"accepted"`
		Verified  int64 `json:"verified"`
		Rejected  int64 `json:"rejected"`
		Discarded int64 `json:"discarded"`
	} `json:"requests"`
	Publish struct {
		Publishes     int64 `json:"publishes"`
		FetchFailures int64 `json:"fetch_failures"`
		Distributions int64 `json:"distributions"`
	} `json:"publish"`
	Deliveries struct {
		Delivered int64 `json:"delivered"`
		Failed    int64 `json:"failed"`
	} `json:"deliveries"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Delivery is one recorded distribution attempt
type Delivery struct {
	Offset     int64     `json:"offset"`
	Topic      string    `json:"topic"`
	Callback   string    `json:"callback"`
	StatusCode int       `json:"status_code,omitempty"`
	Error      string    `json:"error,omitempty"`
	Signed     bool      `json:"signed"`
	DurationNS int64     `json:"duration_ns"`
	At         time.Time `json:"at"`
}

// DeliveriesResponse lists recorded deliveries
type DeliveriesResponse struct {
	Topic      string     `json:"topic,omitempty"`
	Deliveries []Delivery `json:"deliveries"`
	Count      int        `json:"count"`
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

// ErrorResponse represents a JSON error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
