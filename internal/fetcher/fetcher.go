// Package fetcher retrieves the current representation of a topic.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
)

// Content is a topic body exactly as served upstream
type Content struct {
	Body        []byte
	ContentType string
}

// Error carries the status code a failed fetch surfaces to the publisher.
// Upstream non-2xx codes are passed through verbatim.
type Error struct {
	Topic      string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetching topic %s: %v (status %d)", e.Topic, e.Err, e.StatusCode)
	}
	return fmt.Sprintf("fetching topic %s: upstream status %d", e.Topic, e.StatusCode)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Fetcher issues topic GETs
type Fetcher struct {
	client   *http.Client
	maxBytes int64
	log      logrus.FieldLogger
}

// New creates a Fetcher. maxBytes <= 0 disables the size cap.
func New(client *http.Client, maxBytes int64, log logrus.FieldLogger) *Fetcher {
	return &Fetcher{client: client, maxBytes: maxBytes, log: log}
}

// Fetch downloads topic. On failure the returned error is a *Error.
func (f *Fetcher) Fetch(ctx context.Context, topic string) (Content, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, topic, nil)
	if err != nil {
		return Content{}, &Error{Topic: topic, StatusCode: http.StatusBadRequest, Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Content{}, &Error{Topic: topic, StatusCode: http.StatusBadGateway, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return Content{}, &Error{Topic: topic, StatusCode: resp.StatusCode}
	}

	var r io.Reader = resp.Body
	if f.maxBytes > 0 {
		r = io.LimitReader(resp.Body, f.maxBytes+1)
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return Content{}, &Error{Topic: topic, StatusCode: http.StatusBadGateway, Err: err}
	}
	if f.maxBytes > 0 && int64(len(body)) > f.maxBytes {
		return Content{}, &Error{
			Topic:      topic,
			StatusCode: http.StatusRequestEntityTooLarge,
			Err:        fmt.Errorf("content exceeds %d bytes", f.maxBytes),
		}
	}

	f.log.WithFields(logrus.Fields{
		"topic": topic,
		"bytes": len(body),
	}).Debug("Fetched topic")

	return Content{Body: body, ContentType: resp.Header.Get("Content-Type")}, nil
}
