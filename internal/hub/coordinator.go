package hub

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/rmacdonaldsmith/websubhub/internal/distributor"
	"github.com/rmacdonaldsmith/websubhub/internal/fetcher"
)

// Fetcher retrieves topic content
type Fetcher interface {
	Fetch(ctx context.Context, topic string) (fetcher.Content, error)
}

// Distributor delivers content to the active subscribers of a topic
type Distributor interface {
	Distribute(ctx context.Context, topic string, body []byte, contentType string) ([]distributor.Outcome, error)
}

// CoordinatorStats are counters of the data path
type CoordinatorStats struct {
	Publishes     int64 `json:"publishes"`
	FetchFailures int64 `json:"fetch_failures"`
	Distributions int64 `json:"distributions"`
}

// Coordinator handles publish notifications: it fetches the topic and, on success,
// schedules distribution of exactly the fetched bytes.
type Coordinator struct {
	fetcher     Fetcher
	distributor Distributor
	pool        *Pool
	log         logrus.FieldLogger

	publishes     atomic.Int64
	fetchFailures atomic.Int64
	distributions atomic.Int64
}

// NewCoordinator creates a publish coordinator
func NewCoordinator(f Fetcher, d Distributor, pool *Pool, log logrus.FieldLogger) *Coordinator {
	return &Coordinator{
		fetcher:     f,
		distributor: d,
		pool:        pool,
		log:         log,
	}
}

// HandlePublish fetches topic and dispatches its content. It returns once the
// distribution is scheduled; delivery outcomes are never reported to the caller.
// A failed fetch returns an error wrapping ErrTopicFetchFailed and the *fetcher.Error
// carrying the upstream status, and nothing is delivered.
func (c *Coordinator) HandlePublish(ctx context.Context, topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: hub.url", ErrMissingField)
	}
	if err := validateURL("hub.url", topic); err != nil {
		return err
	}

	c.publishes.Add(1)
	logger := c.log.WithField("topic", topic)

	content, err := c.fetcher.Fetch(ctx, topic)
	if err != nil {
		c.fetchFailures.Add(1)
		logger.WithError(err).Info("Topic fetch failed")
		return fmt.Errorf("%w: %w", ErrTopicFetchFailed, err)
	}

	if err := c.pool.Submit(func(ctx context.Context) {
		c.distributions.Add(1)
		if _, err := c.distributor.Distribute(ctx, topic, content.Body, content.ContentType); err != nil {
			logger.WithError(err).Error("Distribution failed")
		}
	}); err != nil {
		return fmt.Errorf("scheduling distribution: %w", err)
	}

	logger.WithField("bytes", len(content.Body)).Info("Publish accepted")
	return nil
}

// Stats returns the data path counters
func (c *Coordinator) Stats() CoordinatorStats {
	return CoordinatorStats{
		Publishes:     c.publishes.Load(),
		FetchFailures: c.fetchFailures.Load(),
		Distributions: c.distributions.Load(),
	}
}
