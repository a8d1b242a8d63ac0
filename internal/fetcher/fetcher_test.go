package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feed = `{"version":"https://jsonfeed.org/version/1","title":"Test Blog","items":[ ]}` + "\n"

func newFetcher(maxBytes int64) *Fetcher {
	logger, _ := test.NewNullLogger()
	return New(&http.Client{Timeout: 200 * time.Millisecond}, maxBytes, logger)
}

func TestFetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/feed+json")
		w.Write([]byte(feed))
	}))
	defer server.Close()

	content, err := newFetcher(0).Fetch(context.Background(), server.URL+"/feed")
	require.NoError(t, err)
	assert.Equal(t, []byte(feed), content.Body, "body must be byte-for-byte")
	assert.Equal(t, "application/feed+json", content.ContentType)
}

func TestFetch_StatusPropagated(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusGone, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}))
			defer server.Close()

			_, err := newFetcher(0).Fetch(context.Background(), server.URL)
			require.Error(t, err)

			var ferr *Error
			require.True(t, errors.As(err, &ferr))
			assert.Equal(t, status, ferr.StatusCode)
		})
	}
}

func TestFetch_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	topic := server.URL
	server.Close()

	_, err := newFetcher(0).Fetch(context.Background(), topic)

	var ferr *Error
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, http.StatusBadGateway, ferr.StatusCode)
}

func TestFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	_, err := newFetcher(0).Fetch(context.Background(), server.URL)

	var ferr *Error
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, http.StatusBadGateway, ferr.StatusCode)
}

func TestFetch_SizeCap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("a", 1024)))
	}))
	defer server.Close()

	_, err := newFetcher(1023).Fetch(context.Background(), server.URL)
	var ferr *Error
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, http.StatusRequestEntityTooLarge, ferr.StatusCode)

	content, err := newFetcher(1024).Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Len(t, content.Body, 1024)
}
