// Package subscription provides the data model and storage contract for WebSub subscriptions.
//
// This package defines the core abstractions shared by the hub components:
//   - Subscription: a (topic, callback) record with its secret, lease and verification state
//   - Key: the identity of a subscription
//   - Store: the persistence contract used by the subscription manager and the distributor
//
// Identity:
//
// The pair (topic, callback) uniquely identifies a subscription. Writing a record for an
// existing pair replaces it, so re-subscribing renews the lease and may rotate the secret.
// A verified unsubscribe deletes the record; no negative records are kept.
//
// Read invariant:
//
// Only verified, non-expired subscriptions in subscribe mode are distribution targets.
// Store implementations enforce this in ListActiveByTopic, independently of how often
// expired records are reaped.
//
// Example usage:
//
//	sub := subscription.New(topic, callback, secret, 24*time.Hour, time.Now())
//	if err := store.Upsert(ctx, sub); err != nil {
//		return err
//	}
//
//	// Resolve distribution targets for a publish
//	subs, err := store.ListActiveByTopic(ctx, topic, time.Now())
//	if err != nil {
//		return err
//	}
//
// Implementations live in internal/store: an in-memory map for tests and single-node use, and
// an sqlx-backed store for sqlite3 and postgres.
package subscription
