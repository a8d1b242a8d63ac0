package hub

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/rmacdonaldsmith/websubhub/pkg/subscription"
)

// pendingEntry tracks the outstanding verifications of one (topic, callback)
type pendingEntry struct {
	mu      sync.Mutex
	first   uint64
	applied uint64

	outstanding int
}

// Pending registers accepted requests until their verification settles.
// Requests for the same key are ordered by acceptance: a confirmed outcome is applied
// unless a later request for that key has already been applied. Entries expire once
// nothing touched them for the TTL; expiry only forgets ordering, it never drops a
// confirmed outcome.
type Pending struct {
	mu    sync.Mutex
	cache *cache.Cache
	seq   uint64
}

// NewPending creates a registry whose entries expire after ttl
func NewPending(ttl time.Duration) *Pending {
	return &Pending{cache: cache.New(ttl, ttl)}
}

// Track registers an accepted request for key and returns its sequence number
func (p *Pending) Track(key subscription.Key) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.seq++
	e, ok := p.lookup(key)
	if !ok {
		e = &pendingEntry{first: p.seq}
	}
	e.outstanding++
	// refresh the expiry with every request
	p.cache.SetDefault(key.String(), e)
	return p.seq
}

// Begin marks the start of the verification of request seq. The TTL restarts here,
// so time spent queued does not count against the handshake.
func (p *Pending) Begin(key subscription.Key, seq uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.lookup(key)
	if !ok {
		// expired while queued
		e = &pendingEntry{first: seq, outstanding: 1}
	}
	p.cache.SetDefault(key.String(), e)
}

// Settle records the verification outcome of request seq. When confirmed and not
// superseded by an already applied later request, apply is called and Settle reports
// true. apply calls for the same key never run concurrently.
func (p *Pending) Settle(key subscription.Key, seq uint64, confirmed bool, apply func() error) (bool, error) {
	p.mu.Lock()
	e, ok := p.lookup(key)
	if !ok {
		// expired during the handshake
		e = &pendingEntry{first: seq, outstanding: 1}
		p.cache.SetDefault(key.String(), e)
	}
	p.mu.Unlock()

	applied := false
	var err error

	e.mu.Lock()
	if confirmed && seq > e.applied {
		if err = apply(); err == nil {
			e.applied = seq
			applied = true
		}
	}
	e.mu.Unlock()

	p.mu.Lock()
	// requests of an entry that expired before this one was created are not counted here
	if seq >= e.first && e.outstanding > 0 {
		e.outstanding--
	}
	p.mu.Unlock()

	return applied, err
}

// Count returns the number of keys with outstanding verifications
func (p *Pending) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, item := range p.cache.Items() {
		if item.Object.(*pendingEntry).outstanding > 0 {
			n++
		}
	}
	return n
}

func (p *Pending) lookup(key subscription.Key) (*pendingEntry, bool) {
	v, ok := p.cache.Get(key.String())
	if !ok {
		return nil, false
	}
	return v.(*pendingEntry), true
}
