package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rmacdonaldsmith/websubhub/pkg/subscription"
)

var (
	// ErrClosed is returned by operations on a closed store
	ErrClosed = errors.New("store is closed")
	// ErrEmptyKey is returned when the topic or callback of a record is empty
	ErrEmptyKey = errors.New("topic and callback cannot be empty")
)

// Memory implements subscription.Store with a topic -> callback -> record map.
// Records are stored by value, so readers always receive copies.
// It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	byTopic map[string]map[string]subscription.Subscription
	closed  bool
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		byTopic: make(map[string]map[string]subscription.Subscription),
	}
}

// Upsert inserts or replaces the record for sub.Key()
func (m *Memory) Upsert(ctx context.Context, sub subscription.Subscription) error {
	if sub.Topic == "" || sub.Callback == "" {
		return ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	callbacks, ok := m.byTopic[sub.Topic]
	if !ok {
		callbacks = make(map[string]subscription.Subscription)
		m.byTopic[sub.Topic] = callbacks
	}

	if existing, ok := callbacks[sub.Callback]; ok {
		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
	}
	callbacks[sub.Callback] = sub
	return nil
}

// Delete removes the record for key
func (m *Memory) Delete(ctx context.Context, key subscription.Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	if callbacks, ok := m.byTopic[key.Topic]; ok {
		delete(callbacks, key.Callback)
		if len(callbacks) == 0 {
			delete(m.byTopic, key.Topic)
		}
	}
	return nil
}

// Get returns the record for key
func (m *Memory) Get(ctx context.Context, key subscription.Key) (subscription.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return subscription.Subscription{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return subscription.Subscription{}, ErrClosed
	}

	sub, ok := m.byTopic[key.Topic][key.Callback]
	if !ok {
		return subscription.Subscription{}, subscription.ErrNotFound
	}
	return sub, nil
}

// ListActiveByTopic returns the distribution targets for topic at now
func (m *Memory) ListActiveByTopic(ctx context.Context, topic string, now time.Time) ([]subscription.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	callbacks := m.byTopic[topic]
	subs := make([]subscription.Subscription, 0, len(callbacks))
	for _, sub := range callbacks {
		if sub.Active(now) {
			subs = append(subs, sub)
		}
	}
	sortByCallback(subs)
	return subs, nil
}

// List returns all records, or the records of one topic
func (m *Memory) List(ctx context.Context, topic string) ([]subscription.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	var subs []subscription.Subscription
	for t, callbacks := range m.byTopic {
		if topic != "" && t != topic {
			continue
		}
		for _, sub := range callbacks {
			subs = append(subs, sub)
		}
	}
	sortByCallback(subs)
	return subs, nil
}

// DeleteExpired removes records whose lease ended at or before now
func (m *Memory) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}

	removed := 0
	for topic, callbacks := range m.byTopic {
		for callback, sub := range callbacks {
			if sub.Expired(now) {
				delete(callbacks, callback)
				removed++
			}
		}
		if len(callbacks) == 0 {
			delete(m.byTopic, topic)
		}
	}
	return removed, nil
}

// Ping reports ErrClosed after Close
func (m *Memory) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}
	return ctx.Err()
}

// Close releases the records. Calling Close more than once is safe.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.byTopic = nil
	return nil
}

func sortByCallback(subs []subscription.Subscription) {
	sort.Slice(subs, func(i, j int) bool {
		if subs[i].Topic != subs[j].Topic {
			return subs[i].Topic < subs[j].Topic
		}
		return subs[i].Callback < subs[j].Callback
	})
}
