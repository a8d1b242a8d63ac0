package grpchealth

import (
	"errors"
	"time"
)

// Config holds configuration for the gRPC health server
type Config struct {
	ListenAddress string
	// PollInterval is how often the hub's health is sampled
	PollInterval time.Duration
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.ListenAddress == "" {
		return errors.New("listen address cannot be empty")
	}
	return nil
}

// SetDefaults sets sensible default values for unset configuration fields
func (c *Config) SetDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
}
