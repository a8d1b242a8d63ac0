package hub

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmacdonaldsmith/websubhub/internal/distributor"
	"github.com/rmacdonaldsmith/websubhub/internal/fetcher"
)

type fetcherFunc func(ctx context.Context, topic string) (fetcher.Content, error)

func (f fetcherFunc) Fetch(ctx context.Context, topic string) (fetcher.Content, error) {
	return f(ctx, topic)
}

type distribution struct {
	topic       string
	body        []byte
	contentType string
}

type recordingDistributor struct {
	calls chan distribution
}

func (d *recordingDistributor) Distribute(ctx context.Context, topic string, body []byte, contentType string) ([]distributor.Outcome, error) {
	d.calls <- distribution{topic: topic, body: body, contentType: contentType}
	return nil, nil
}

func newTestCoordinator(t *testing.T, f Fetcher) (*Coordinator, *recordingDistributor) {
	t.Helper()

	logger, _ := test.NewNullLogger()
	pool := NewPool(2, 8, logger)
	require.NoError(t, pool.Start(context.Background()))
	t.Cleanup(func() { _ = pool.Stop(context.Background()) })

	d := &recordingDistributor{calls: make(chan distribution, 8)}
	return NewCoordinator(f, d, pool, logger), d
}

func TestCoordinator_HandlePublish_Distributes(t *testing.T) {
	body := []byte(`{"items":[{"id":"1"}]}`)
	c, d := newTestCoordinator(t, fetcherFunc(func(ctx context.Context, topic string) (fetcher.Content, error) {
		assert.Equal(t, testTopic, topic)
		return fetcher.Content{Body: body, ContentType: "application/json"}, nil
	}))

	require.NoError(t, c.HandlePublish(context.Background(), testTopic))

	select {
	case got := <-d.calls:
		assert.Equal(t, testTopic, got.topic)
		assert.Equal(t, body, got.body)
		assert.Equal(t, "application/json", got.contentType)
	case <-time.After(2 * time.Second):
		t.Fatal("distribution not scheduled")
	}

	assert.Eventually(t, func() bool { return c.Stats().Distributions == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(1), c.Stats().Publishes)
}

func TestCoordinator_HandlePublish_FetchFailed(t *testing.T) {
	c, d := newTestCoordinator(t, fetcherFunc(func(ctx context.Context, topic string) (fetcher.Content, error) {
		return fetcher.Content{}, &fetcher.Error{Topic: topic, StatusCode: http.StatusNotFound}
	}))

	err := c.HandlePublish(context.Background(), testTopic)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTopicFetchFailed)
	assert.Equal(t, http.StatusNotFound, StatusCode(err))

	var ferr *fetcher.Error
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, http.StatusNotFound, ferr.StatusCode)

	select {
	case <-d.calls:
		t.Fatal("content distributed after failed fetch")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, int64(1), c.Stats().FetchFailures)
}

func TestCoordinator_HandlePublish_InvalidTopic(t *testing.T) {
	c, _ := newTestCoordinator(t, fetcherFunc(func(ctx context.Context, topic string) (fetcher.Content, error) {
		t.Fatal("invalid topic fetched")
		return fetcher.Content{}, nil
	}))

	assert.ErrorIs(t, c.HandlePublish(context.Background(), ""), ErrMissingField)
	assert.ErrorIs(t, c.HandlePublish(context.Background(), "not a url"), ErrInvalidURL)
	assert.Equal(t, int64(0), c.Stats().Publishes)
}
