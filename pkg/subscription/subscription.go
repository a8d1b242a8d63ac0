package subscription

import (
	"time"

	"github.com/google/uuid"
)

// Mode is the intent of a subscription request
type Mode string

const (
	// ModeSubscribe requests delivery of topic updates to the callback
	ModeSubscribe Mode = "subscribe"

	// ModeUnsubscribe requests removal of an existing subscription
	ModeUnsubscribe Mode = "unsubscribe"
)

// ParseMode converts a hub.mode form value into a Mode
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeSubscribe, ModeUnsubscribe:
		return Mode(s), true
	}
	return "", false
}

// Status is the verification state of a subscription
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// Key identifies a subscription
type Key struct {
	Topic    string
	Callback string
}

// String returns a printable form of the key, used for logging and cache keys
func (k Key) String() string {
	return k.Topic + " " + k.Callback
}

// Subscription is a single (topic, callback) registration
type Subscription struct {
	ID           string    `json:"id" db:"id"`
	Topic        string    `json:"topic" db:"topic"`
	Callback     string    `json:"callback" db:"callback"`
	Secret       string    `json:"-" db:"secret"`
	Mode         Mode      `json:"mode" db:"mode"`
	Status       Status    `json:"status" db:"status"`
	LeaseSeconds int64     `json:"leaseSeconds" db:"lease_seconds"`
	ExpiresAt    time.Time `json:"expiresAt" db:"expires_at"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	VerifiedAt   time.Time `json:"verifiedAt" db:"verified_at"`
}

// New returns a verified subscribe-mode record whose lease starts at verifiedAt
func New(topic, callback, secret string, lease time.Duration, verifiedAt time.Time) Subscription {
	return Subscription{
		ID:           uuid.NewString(),
		Topic:        topic,
		Callback:     callback,
		Secret:       secret,
		Mode:         ModeSubscribe,
		Status:       StatusVerified,
		LeaseSeconds: int64(lease / time.Second),
		ExpiresAt:    verifiedAt.Add(lease),
		CreatedAt:    verifiedAt,
		VerifiedAt:   verifiedAt,
	}
}

// Key returns the identity of the subscription
func (s Subscription) Key() Key {
	return Key{Topic: s.Topic, Callback: s.Callback}
}

// HasSecret reports whether deliveries for this subscription must be signed
func (s Subscription) HasSecret() bool {
	return s.Secret != ""
}

// Expired reports whether the lease has ended at the given time
func (s Subscription) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// Active reports whether the subscription is a distribution target at the given time
func (s Subscription) Active(now time.Time) bool {
	return s.Status == StatusVerified && s.Mode == ModeSubscribe && !s.Expired(now)
}
