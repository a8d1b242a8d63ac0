package hub

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rmacdonaldsmith/websubhub/pkg/subscription"
)

// Reaper periodically removes subscriptions whose lease has ended
type Reaper struct {
	store    subscription.Store
	interval time.Duration
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewReaper creates a reaper running every interval
func NewReaper(store subscription.Store, interval time.Duration, log logrus.FieldLogger) *Reaper {
	return &Reaper{store: store, interval: interval, log: log, now: time.Now}
}

// Run reaps until ctx is done
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Reap(ctx); err != nil && ctx.Err() == nil {
				r.log.WithError(err).Error("Reaping expired subscriptions failed")
			}
		}
	}
}

// Reap deletes the subscriptions expired at this moment and returns how many were removed
func (r *Reaper) Reap(ctx context.Context) (int, error) {
	n, err := r.store.DeleteExpired(ctx, r.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.log.WithField("count", n).Info("Reaped expired subscriptions")
	}
	return n, nil
}
