package distributor

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	// ErrNegativeOffset is returned when a negative offset is provided
	ErrNegativeOffset = errors.New("offset cannot be negative")
	// ErrNegativeMaxCount is returned when a negative max count is provided
	ErrNegativeMaxCount = errors.New("max count cannot be negative")
	// ErrLogClosed is returned by operations on a closed log
	ErrLogClosed = errors.New("delivery log is closed")
)

// DefaultLogCapacity is the number of deliveries retained per topic
const DefaultLogCapacity = 100

// Delivery is one recorded distribution attempt to a single callback
type Delivery struct {
	Offset     int64         `json:"offset"`
	Topic      string        `json:"topic"`
	Callback   string        `json:"callback"`
	StatusCode int           `json:"status_code,omitempty"`
	Error      string        `json:"error,omitempty"`
	Signed     bool          `json:"signed"`
	Duration   time.Duration `json:"duration_ns"`
	At         time.Time     `json:"at"`
}

// OK reports whether the subscriber accepted the delivery
func (d Delivery) OK() bool {
	return d.Error == "" && d.StatusCode >= 200 && d.StatusCode <= 299
}

// Counts are totals since the log was created, including evicted entries
type Counts struct {
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
}

// DeliveryLog keeps the latest deliveries per topic. Each topic has its own offset
// sequence starting at 0; once a topic holds capacity entries the oldest are evicted.
// It is safe for concurrent use.
type DeliveryLog struct {
	mu                sync.RWMutex
	byTopic           map[string][]Delivery
	nextOffsetByTopic map[string]int64
	capacity          int
	counts            Counts
	closed            bool
}

// NewDeliveryLog creates a log retaining capacity entries per topic.
// A non-positive capacity selects DefaultLogCapacity.
func NewDeliveryLog(capacity int) *DeliveryLog {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &DeliveryLog{
		byTopic:           make(map[string][]Delivery),
		nextOffsetByTopic: make(map[string]int64),
		capacity:          capacity,
	}
}

// Append records d under its topic and returns it with the assigned offset.
func (l *DeliveryLog) Append(ctx context.Context, d Delivery) (Delivery, error) {
	if err := ctx.Err(); err != nil {
		return Delivery{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return Delivery{}, ErrLogClosed
	}

	d.Offset = l.nextOffsetByTopic[d.Topic]
	l.nextOffsetByTopic[d.Topic]++

	entries := append(l.byTopic[d.Topic], d)
	if len(entries) > l.capacity {
		// copy so the evicted prefix can be collected
		entries = append([]Delivery(nil), entries[len(entries)-l.capacity:]...)
	}
	l.byTopic[d.Topic] = entries

	if d.OK() {
		l.counts.Delivered++
	} else {
		l.counts.Failed++
	}

	return d, nil
}

// Read returns up to maxCount retained deliveries of topic with an offset of at least startOffset.
func (l *DeliveryLog) Read(ctx context.Context, topic string, startOffset int64, maxCount int) ([]Delivery, error) {
	if startOffset < 0 {
		return nil, ErrNegativeOffset
	}
	if maxCount < 0 {
		return nil, ErrNegativeMaxCount
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return nil, ErrLogClosed
	}

	results := make([]Delivery, 0)
	for _, d := range l.byTopic[topic] {
		if len(results) >= maxCount {
			break
		}
		if d.Offset >= startOffset {
			results = append(results, d)
		}
	}
	return results, nil
}

// Recent returns the retained deliveries of every topic, newest first, at most limit entries.
func (l *DeliveryLog) Recent(ctx context.Context, limit int) ([]Delivery, error) {
	if limit < 0 {
		return nil, ErrNegativeMaxCount
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	var all []Delivery
	for _, entries := range l.byTopic {
		all = append(all, entries...)
	}
	closed := l.closed
	l.mu.RUnlock()

	if closed {
		return nil, ErrLogClosed
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].At.After(all[j].At)
	})
	if len(all) > limit {
		all = all[:limit]
	}
	if all == nil {
		all = make([]Delivery, 0)
	}
	return all, nil
}

// EndOffset returns the offset the next delivery of topic will receive
func (l *DeliveryLog) EndOffset(topic string) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.nextOffsetByTopic[topic]
}

// Counts returns the delivered and failed totals
func (l *DeliveryLog) Counts() Counts {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.counts
}

// Close releases all entries. Subsequent calls are no-ops.
func (l *DeliveryLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	l.byTopic = nil
	l.nextOffsetByTopic = nil
	return nil
}
