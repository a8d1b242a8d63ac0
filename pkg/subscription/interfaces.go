package subscription

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned by Store.Get when no record exists for a key
var ErrNotFound = errors.New("subscription not found")

// Store persists subscriptions keyed by (topic, callback).
//
// A single Upsert or Delete is atomic: readers never observe a partially written record.
// Concurrent writers to the same key resolve by last write wins. No cross-record atomicity
// is required.
type Store interface {
	io.Closer

	// Upsert inserts the subscription or replaces the record with the same key.
	// The stored ID and CreatedAt of an existing record are preserved.
	Upsert(ctx context.Context, sub Subscription) error

	// Delete removes the record for the key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key Key) error

	// Get returns the record for the key or ErrNotFound.
	Get(ctx context.Context, key Key) (Subscription, error)

	// ListActiveByTopic returns a snapshot of the verified, subscribe-mode records for the
	// topic whose lease has not ended at now.
	ListActiveByTopic(ctx context.Context, topic string, now time.Time) ([]Subscription, error)

	// List returns all records, optionally restricted to one topic when topic is non-empty.
	List(ctx context.Context, topic string) ([]Subscription, error)

	// DeleteExpired removes every record whose lease ended at or before now and returns
	// the number of removed records.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)

	// Ping reports whether the backing storage is reachable.
	Ping(ctx context.Context) error
}
