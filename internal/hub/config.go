package hub

import (
	"errors"
	"net/url"
	"time"
)

var (
	// ErrInvalidHubURL is returned when the advertised hub URL is not absolute
	ErrInvalidHubURL = errors.New("hub URL must be an absolute http(s) URL")
	// ErrInvalidTimeout is returned when the outbound request timeout is not positive
	ErrInvalidTimeout = errors.New("request timeout must be positive")
	// ErrInvalidLease is returned when lease bounds are inconsistent
	ErrInvalidLease = errors.New("lease bounds must satisfy 0 < min <= default <= max")
	// ErrInvalidWorkers is returned when the worker or queue count is not positive
	ErrInvalidWorkers = errors.New("workers and queue size must be positive")
	// ErrInvalidPendingTTL is returned when pending requests would expire before their verification times out
	ErrInvalidPendingTTL = errors.New("pending TTL must be at least the request timeout")
	// ErrInvalidSecretLength is returned when the secret length limit is not positive
	ErrInvalidSecretLength = errors.New("max secret length must be positive")
	// ErrInvalidFanout is returned when the fan-out limit is negative
	ErrInvalidFanout = errors.New("max fan-out must not be negative")
)

// Config represents configuration for a Hub
type Config struct {
	// HubURL is advertised to subscribers in the rel="hub" link
	HubURL string

	// RequestTimeout bounds every outbound call: verification, topic fetch, delivery
	RequestTimeout time.Duration

	// Lease bounds; requests outside [MinLease, MaxLease] are clamped
	DefaultLease time.Duration
	MinLease     time.Duration
	MaxLease     time.Duration

	MaxSecretLength int

	// Workers and QueueSize size the asynchronous task pool
	Workers   int
	QueueSize int

	// MaxFanout bounds concurrent deliveries of one publish; 0 is unbounded.
	// It is independent of Workers: a distribution holds one worker however wide it fans out.
	MaxFanout int

	// PendingTTL is how long the requests of one (topic, callback) stay ordered after
	// the last request was accepted or began verifying
	PendingTTL time.Duration

	// ReapInterval is the period of expired lease removal; 0 disables the reaper
	ReapInterval time.Duration

	SignatureHeader string

	// MaxContentBytes caps fetched topic bodies; 0 is unlimited
	MaxContentBytes int64

	// DeliveryLogSize is the number of deliveries kept per topic
	DeliveryLogSize int
}

// NewConfig creates a new Hub configuration with safe defaults
func NewConfig(hubURL string) *Config {
	return &Config{
		HubURL:          hubURL,
		RequestTimeout:  5 * time.Second,
		DefaultLease:    10 * 24 * time.Hour,
		MinLease:        time.Hour,
		MaxLease:        30 * 24 * time.Hour,
		MaxSecretLength: 200,
		Workers:         16,
		QueueSize:       1024,
		PendingTTL:      time.Minute,
		ReapInterval:    time.Minute,
		SignatureHeader: "X-Hub-Signature",
		MaxContentBytes: 10 << 20,
		DeliveryLogSize: 100,
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	u, err := url.Parse(c.HubURL)
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidHubURL
	}
	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MinLease <= 0 || c.MinLease > c.DefaultLease || c.DefaultLease > c.MaxLease {
		return ErrInvalidLease
	}
	if c.MaxSecretLength <= 0 {
		return ErrInvalidSecretLength
	}
	if c.Workers <= 0 || c.QueueSize <= 0 {
		return ErrInvalidWorkers
	}
	if c.PendingTTL < c.RequestTimeout {
		return ErrInvalidPendingTTL
	}
	if c.MaxFanout < 0 {
		return ErrInvalidFanout
	}
	return nil
}

// WithRequestTimeout sets the outbound request timeout
func (c *Config) WithRequestTimeout(d time.Duration) *Config {
	c.RequestTimeout = d
	if c.PendingTTL < d {
		c.PendingTTL = d
	}
	return c
}

// WithLeases sets the default lease and its bounds
func (c *Config) WithLeases(def, min, max time.Duration) *Config {
	c.DefaultLease = def
	c.MinLease = min
	c.MaxLease = max
	return c
}

// WithMaxSecretLength sets the longest accepted hub.secret in bytes
func (c *Config) WithMaxSecretLength(n int) *Config {
	c.MaxSecretLength = n
	return c
}

// WithWorkers sets the task pool size and its queue length
func (c *Config) WithWorkers(workers, queueSize int) *Config {
	c.Workers = workers
	c.QueueSize = queueSize
	return c
}

// WithPendingTTL sets how long accepted requests remain pending
func (c *Config) WithPendingTTL(d time.Duration) *Config {
	c.PendingTTL = d
	return c
}

// WithReapInterval sets the expired lease removal period
func (c *Config) WithReapInterval(d time.Duration) *Config {
	c.ReapInterval = d
	return c
}

// WithSignatureHeader sets the delivery signature header name
func (c *Config) WithSignatureHeader(name string) *Config {
	c.SignatureHeader = name
	return c
}

// WithMaxContentBytes sets the topic body size cap
func (c *Config) WithMaxContentBytes(n int64) *Config {
	c.MaxContentBytes = n
	return c
}

// WithMaxFanout bounds concurrent deliveries per publish; 0 removes the bound
func (c *Config) WithMaxFanout(n int) *Config {
	c.MaxFanout = n
	return c
}

// WithDeliveryLogSize sets the number of deliveries kept per topic
func (c *Config) WithDeliveryLogSize(n int) *Config {
	c.DeliveryLogSize = n
	return c
}

// clampLease maps a requested lease in seconds to the effective lease
func (c *Config) clampLease(seconds int64) time.Duration {
	if seconds <= 0 {
		return c.DefaultLease
	}
	// guard the Duration conversion against overflow
	if seconds > int64(c.MaxLease/time.Second) {
		return c.MaxLease
	}
	lease := time.Duration(seconds) * time.Second
	if lease < c.MinLease {
		return c.MinLease
	}
	return lease
}
