// Package distributor fans topic content out to the verified subscribers of a topic.
package distributor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rmacdonaldsmith/websubhub/internal/signer"
	"github.com/rmacdonaldsmith/websubhub/pkg/subscription"
)

// DefaultSignatureHeader carries the hex HMAC of signed deliveries
const DefaultSignatureHeader = "X-Hub-Signature"

// Options configures a Distributor
type Options struct {
	// HubURL is advertised in the rel="hub" link of every delivery.
	HubURL string
	// SignatureHeader defaults to DefaultSignatureHeader.
	SignatureHeader string
	// Concurrency bounds in-flight deliveries of a single publish; <= 0 is unbounded.
	Concurrency int
}

// Outcome is the result of delivering to one subscriber.
// A non-nil Err or a non-2xx StatusCode is a failed delivery.
type Outcome struct {
	Callback   string
	StatusCode int
	Err        error
	Duration   time.Duration
}

// OK reports whether the subscriber accepted the content
func (o Outcome) OK() bool {
	return o.Err == nil && o.StatusCode >= 200 && o.StatusCode <= 299
}

// Distributor posts content to subscriber callbacks
type Distributor struct {
	store      subscription.Store
	client     *http.Client
	deliveries *DeliveryLog
	opts       Options
	log        logrus.FieldLogger
	now        func() time.Time
}

// New creates a Distributor. deliveries may be nil when outcomes need not be recorded.
func New(store subscription.Store, client *http.Client, deliveries *DeliveryLog, opts Options, log logrus.FieldLogger) *Distributor {
	if opts.SignatureHeader == "" {
		opts.SignatureHeader = DefaultSignatureHeader
	}
	return &Distributor{
		store:      store,
		client:     client,
		deliveries: deliveries,
		opts:       opts,
		log:        log,
		now:        time.Now,
	}
}

// Distribute delivers body to every active subscriber of topic and waits for all of them.
// Subscribers are resolved once, when distribution begins. One delivery failing never
// stops the others; the returned error only reports a failure to resolve subscribers.
func (d *Distributor) Distribute(ctx context.Context, topic string, body []byte, contentType string) ([]Outcome, error) {
	subs, err := d.store.ListActiveByTopic(ctx, topic, d.now())
	if err != nil {
		return nil, fmt.Errorf("resolving subscribers of %s: %w", topic, err)
	}

	logger := d.log.WithField("topic", topic)
	if len(subs) == 0 {
		logger.Debug("No active subscribers")
		return []Outcome{}, nil
	}

	link := fmt.Sprintf(`<%s>; rel="hub", <%s>; rel="self"`, d.opts.HubURL, topic)
	outcomes := make([]Outcome, len(subs))

	var g errgroup.Group
	if d.opts.Concurrency > 0 {
		g.SetLimit(d.opts.Concurrency)
	}
	for i, sub := range subs {
		g.Go(func() error {
			outcomes[i] = d.deliver(ctx, sub, body, contentType, link)
			d.record(ctx, sub, outcomes[i])
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, o := range outcomes {
		if !o.OK() {
			failed++
		}
	}
	logger.WithFields(logrus.Fields{
		"subscribers": len(subs),
		"failed":      failed,
	}).Info("Distributed topic")

	return outcomes, nil
}

func (d *Distributor) deliver(ctx context.Context, sub subscription.Subscription, body []byte, contentType, link string) Outcome {
	start := time.Now()
	outcome := Outcome{Callback: sub.Callback}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.Callback, bytes.NewReader(body))
	if err != nil {
		outcome.Err = err
		return outcome
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Link", link)
	if sub.HasSecret() {
		// Each subscription is signed with its own secret, read from the snapshot.
		req.Header.Set(d.opts.SignatureHeader, signer.Sign(sub.Secret, body))
	}

	resp, err := d.client.Do(req)
	outcome.Duration = time.Since(start)
	if err != nil {
		outcome.Err = err
	} else {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		outcome.StatusCode = resp.StatusCode
	}

	logger := d.log.WithFields(logrus.Fields{
		"topic":    sub.Topic,
		"callback": sub.Callback,
		"status":   outcome.StatusCode,
	})
	switch {
	case outcome.Err != nil:
		logger.WithError(outcome.Err).Warn("Delivery failed")
	case !outcome.OK():
		logger.Warn("Subscriber rejected delivery")
	default:
		logger.Debug("Delivered")
	}

	return outcome
}

func (d *Distributor) record(ctx context.Context, sub subscription.Subscription, o Outcome) {
	if d.deliveries == nil {
		return
	}

	entry := Delivery{
		Topic:      sub.Topic,
		Callback:   sub.Callback,
		StatusCode: o.StatusCode,
		Signed:     sub.HasSecret(),
		Duration:   o.Duration,
		At:         d.now(),
	}
	if o.Err != nil {
		entry.Error = o.Err.Error()
	}
	// The log outlives any single publish; a cancelled ctx must not lose the record.
	if _, err := d.deliveries.Append(context.WithoutCancel(ctx), entry); err != nil {
		d.log.WithError(err).Debug("Delivery not recorded")
	}
}
