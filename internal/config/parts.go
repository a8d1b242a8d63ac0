package config

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

type Server struct {
	Address   string `toml:"address"`
	Port      int    `toml:"port"`
	GRPCPort  int    `toml:"grpc-port"`
	PublicURL string `toml:"public-url"`
}

type Log struct {
	Level     string `toml:"level"`
	File      string `toml:"file"`
	Formatter string `toml:"formatter"`
}

type Timeout struct {
	Request string `toml:"request"`

	Converted struct {
		Request time.Duration
	} `toml:"-"`
}

type Hub struct {
	DefaultLease    string `toml:"default-lease"`
	MinLease        string `toml:"min-lease"`
	MaxLease        string `toml:"max-lease"`
	MaxSecretLength int    `toml:"max-secret-length"`
	MaxContentBytes int64  `toml:"max-content-bytes"`
	Workers         int    `toml:"workers"`
	QueueSize       int    `toml:"queue-size"`
	MaxFanout       int    `toml:"max-fanout"`
	PendingTTL      string `toml:"pending-ttl"`
	ReapInterval    string `toml:"reap-interval"`
	SignatureHeader string `toml:"signature-header"`
	DeliveryLogSize int    `toml:"delivery-log-size"`

	Converted struct {
		DefaultLease time.Duration
		MinLease     time.Duration
		MaxLease     time.Duration
		ReapInterval time.Duration
		PendingTTL   time.Duration
	} `toml:"-"`
}

type DB struct {
	Driver  string `toml:"driver"`
	Connect string `toml:"connect"`
}

type Auth struct {
	Secret string `toml:"secret"`
}

type converter interface {
	Convert() error
}

// Convert fills in the public URL from the port when it is not configured
func (c *Server) Convert() error {
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Errorf("invalid server port %d", c.Port)
	}
	if c.PublicURL == "" {
		c.PublicURL = fmt.Sprintf("http://localhost:%d", c.Port)
	}
	return nil
}

// Convert validates the log settings
func (c *Log) Convert() error {
	switch c.Level {
	case "error", "warn", "info", "debug":
	default:
		return errors.Errorf("unknown log level '%s'", c.Level)
	}
	switch c.Formatter {
	case "text", "json":
	default:
		return errors.Errorf("unknown log formatter '%s'", c.Formatter)
	}
	if c.File == "" {
		c.File = "-"
	}
	return nil
}

// Convert parses the request timeout
func (c *Timeout) Convert() (err error) {
	c.Converted.Request, err = parseDuration("timeout.request", c.Request)
	return err
}

// Convert parses the hub durations and checks the lease bounds
func (c *Hub) Convert() (err error) {
	if c.Converted.DefaultLease, err = parseDuration("hub.default-lease", c.DefaultLease); err != nil {
		return err
	}
	if c.Converted.MinLease, err = parseDuration("hub.min-lease", c.MinLease); err != nil {
		return err
	}
	if c.Converted.MaxLease, err = parseDuration("hub.max-lease", c.MaxLease); err != nil {
		return err
	}
	if c.Converted.ReapInterval, err = parseDuration("hub.reap-interval", c.ReapInterval); err != nil {
		return err
	}
	if c.Converted.PendingTTL, err = parseDuration("hub.pending-ttl", c.PendingTTL); err != nil {
		return err
	}
	if c.Workers <= 0 || c.QueueSize <= 0 {
		return errors.Errorf("hub.workers and hub.queue-size must be positive, got %d and %d", c.Workers, c.QueueSize)
	}
	if c.MaxFanout < 0 {
		return errors.Errorf("hub.max-fanout must not be negative, got %d", c.MaxFanout)
	}
	if c.Converted.MinLease > c.Converted.MaxLease {
		return errors.Errorf("hub.min-lease %s exceeds hub.max-lease %s", c.MinLease, c.MaxLease)
	}
	return nil
}
