// Package verifier confirms subscriber intent with the WebSub challenge-response handshake.
package verifier

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/rmacdonaldsmith/websubhub/pkg/subscription"
)

// ErrVerificationFailed matches every failed handshake
var ErrVerificationFailed = errors.New("verification failed")

const (
	challengeBytes = 32
	// Callbacks only need to echo the challenge; anything longer is a mismatch anyway.
	maxResponseBytes = 4 << 10
)

// Error describes why a callback did not confirm the handshake
type Error struct {
	Reason     string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("verification failed: %s (status %d)", e.Reason, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("verification failed: %s: %v", e.Reason, e.Err)
	}
	return "verification failed: " + e.Reason
}

// Is makes errors.Is(err, ErrVerificationFailed) hold for every *Error
func (e *Error) Is(target error) bool {
	return target == ErrVerificationFailed
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Request is a single verification of intent
type Request struct {
	Callback     string
	Topic        string
	Mode         subscription.Mode
	LeaseSeconds int64
	Challenge    string
}

// Verifier issues verification GETs to subscriber callbacks.
// It makes a single attempt per request; retrying is left to the subscriber.
type Verifier struct {
	client *http.Client
	log    logrus.FieldLogger
}

// New creates a Verifier. The client's timeout bounds each verification.
func New(client *http.Client, log logrus.FieldLogger) *Verifier {
	return &Verifier{client: client, log: log}
}

// NewChallenge returns a random single-use challenge token
func NewChallenge() (string, error) {
	b := make([]byte, challengeBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating challenge: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Verify confirms the request with its callback. A nil error means the callback answered
// 2xx with a body equal to the challenge, ignoring surrounding whitespace.
func (v *Verifier) Verify(ctx context.Context, req Request) error {
	u, err := url.Parse(req.Callback)
	if err != nil {
		return &Error{Reason: "invalid callback", Err: err}
	}

	q := u.Query()
	q.Set("hub.mode", string(req.Mode))
	q.Set("hub.topic", req.Topic)
	q.Set("hub.challenge", req.Challenge)
	if req.Mode == subscription.ModeSubscribe {
		q.Set("hub.lease_seconds", strconv.FormatInt(req.LeaseSeconds, 10))
	}
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return &Error{Reason: "building request", Err: err}
	}

	resp, err := v.client.Do(httpReq)
	if err != nil {
		return &Error{Reason: "callback unreachable", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Reason: "unexpected status", StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &Error{Reason: "reading response", Err: err}
	}

	if strings.TrimSpace(string(body)) != req.Challenge {
		return &Error{Reason: "challenge mismatch"}
	}

	v.log.WithFields(logrus.Fields{
		"topic":    req.Topic,
		"callback": req.Callback,
		"mode":     req.Mode,
	}).Debug("Callback confirmed challenge")

	return nil
}
