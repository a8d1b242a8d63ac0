package hub

import (
	"context"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rmacdonaldsmith/websubhub/internal/verifier"
	"github.com/rmacdonaldsmith/websubhub/pkg/subscription"
)

// Verifier confirms subscriber intent
type Verifier interface {
	Verify(ctx context.Context, req verifier.Request) error
}

// Request is a subscribe or unsubscribe request as received from a subscriber
type Request struct {
	Topic    string
	Callback string
	Mode     string
	Secret   string
	// HasSecret distinguishes an empty hub.secret from an absent one
	HasSecret bool
	// LeaseSeconds <= 0 selects the default lease
	LeaseSeconds int64
}

// ManagerStats are counters of the control path
type ManagerStats struct {
	Accepted  int64 `json:"accepted"`
	Verified  int64 `json:"verified"`
	Rejected  int64 `json:"rejected"`
	Discarded int64 `json:"discarded"`
}

// Manager turns subscription requests into verified, stored subscriptions.
// Verification runs asynchronously on the pool; the outcome is written to the store
// only when the callback confirms the challenge.
type Manager struct {
	config   *Config
	store    subscription.Store
	verifier Verifier
	pending  *Pending
	pool     *Pool
	log      logrus.FieldLogger
	now      func() time.Time

	accepted  atomic.Int64
	verified  atomic.Int64
	rejected  atomic.Int64
	discarded atomic.Int64
}

// NewManager creates a subscription manager
func NewManager(config *Config, store subscription.Store, v Verifier, pending *Pending, pool *Pool, log logrus.FieldLogger) *Manager {
	return &Manager{
		config:   config,
		store:    store,
		verifier: v,
		pending:  pending,
		pool:     pool,
		log:      log,
		now:      time.Now,
	}
}

// RequestSubscription validates req and schedules its verification.
// A nil error means the request was accepted; the outcome is never reported to the caller.
func (m *Manager) RequestSubscription(ctx context.Context, req Request) error {
	mode, err := m.validate(req)
	if err != nil {
		return err
	}

	challenge, err := verifier.NewChallenge()
	if err != nil {
		return err
	}

	lease := m.config.clampLease(req.LeaseSeconds)
	key := subscription.Key{Topic: req.Topic, Callback: req.Callback}
	vreq := verifier.Request{
		Callback:     req.Callback,
		Topic:        req.Topic,
		Mode:         mode,
		LeaseSeconds: int64(lease / time.Second),
		Challenge:    challenge,
	}

	seq := m.pending.Track(key)
	if err := m.pool.Submit(func(ctx context.Context) {
		m.verify(ctx, key, seq, vreq, req.Secret, lease)
	}); err != nil {
		// settle unconfirmed so the entry does not linger
		_, _ = m.pending.Settle(key, seq, false, nil)
		return fmt.Errorf("scheduling verification: %w", err)
	}

	m.accepted.Add(1)
	m.log.WithFields(logrus.Fields{
		"topic":    req.Topic,
		"callback": req.Callback,
		"mode":     mode,
		"lease":    lease,
	}).Info("Subscription request accepted")

	return nil
}

func (m *Manager) verify(ctx context.Context, key subscription.Key, seq uint64, vreq verifier.Request, secret string, lease time.Duration) {
	logger := m.log.WithFields(logrus.Fields{
		"topic":    vreq.Topic,
		"callback": vreq.Callback,
		"mode":     vreq.Mode,
	})

	m.pending.Begin(key, seq)
	verr := m.verifier.Verify(ctx, vreq)
	if verr != nil {
		m.rejected.Add(1)
		logger.WithError(verr).Info("Verification failed")
	}

	applied, err := m.pending.Settle(key, seq, verr == nil, func() error {
		if vreq.Mode == subscription.ModeUnsubscribe {
			return m.store.Delete(ctx, key)
		}
		return m.store.Upsert(ctx, subscription.New(vreq.Topic, vreq.Callback, secret, lease, m.now()))
	})

	switch {
	case err != nil:
		logger.WithError(err).Error("Storing verified subscription failed")
	case applied:
		m.verified.Add(1)
		logger.Info("Subscription verified")
	case verr == nil:
		m.discarded.Add(1)
		logger.Info("Verification superseded by a later request")
	}
}

func (m *Manager) validate(req Request) (subscription.Mode, error) {
	if req.Mode == "" {
		return "", fmt.Errorf("%w: hub.mode", ErrMissingField)
	}
	mode, ok := subscription.ParseMode(req.Mode)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, req.Mode)
	}

	if req.Topic == "" {
		return "", fmt.Errorf("%w: hub.topic", ErrMissingField)
	}
	if err := validateURL("hub.topic", req.Topic); err != nil {
		return "", err
	}

	if req.Callback == "" {
		return "", fmt.Errorf("%w: hub.callback", ErrMissingField)
	}
	if err := validateURL("hub.callback", req.Callback); err != nil {
		return "", err
	}

	if req.HasSecret || req.Secret != "" {
		if req.Secret == "" {
			return "", fmt.Errorf("%w: hub.secret is empty", ErrInvalidSecret)
		}
		if len(req.Secret) > m.config.MaxSecretLength {
			return "", fmt.Errorf("%w: hub.secret exceeds %d bytes", ErrInvalidSecret, m.config.MaxSecretLength)
		}
	}

	return mode, nil
}

// Stats returns the control path counters
func (m *Manager) Stats() ManagerStats {
	return ManagerStats{
		Accepted:  m.accepted.Load(),
		Verified:  m.verified.Load(),
		Rejected:  m.rejected.Load(),
		Discarded: m.discarded.Load(),
	}
}

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidURL, field, err)
	}
	if !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %s must be an absolute http(s) URL", ErrInvalidURL, field)
	}
	return nil
}
