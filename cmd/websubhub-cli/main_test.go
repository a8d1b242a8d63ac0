package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmacdonaldsmith/websubhub/internal/httpapi"
	"github.com/rmacdonaldsmith/websubhub/pkg/hubclient"
)

// runCLI executes the root command and returns what it wrote to stdout
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("WEBSUBHUB_TOKEN", "")
	t.Setenv("WEBSUBHUB_AUTH_SECRET", "")

	cmd := newRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append(args, "--retries", "0"))

	err := cmd.Execute()
	return out.String(), err
}

func TestMainCommandHelp(t *testing.T) {
	out, err := runCLI(t, "--help")
	require.NoError(t, err)

	for _, name := range []string{"subscribe", "unsubscribe", "publish", "health", "admin", "token"} {
		assert.Contains(t, out, name)
	}
}

func TestSubscribeCommand(t *testing.T) {
	var form map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Write([]byte("accepted"))
	}))
	defer server.Close()

	out, err := runCLI(t, "--hub", server.URL, "subscribe",
		"--topic", "http://publisher/feed",
		"--callback", "http://subscriber/cb",
		"--secret", "s3cret",
		"--lease", "1h")
	require.NoError(t, err)

	assert.Equal(t, []string{"subscribe"}, form["hub.mode"])
	assert.Equal(t, []string{"3600"}, form["hub.lease_seconds"])
	assert.Equal(t, []string{"s3cret"}, form["hub.secret"])
	assert.Contains(t, out, "pending verification")
	assert.Contains(t, out, "signed")
}

func TestSubscribeCommandMissingCallback(t *testing.T) {
	_, err := runCLI(t, "subscribe", "--topic", "http://publisher/feed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "callback")
}

func TestUnsubscribeCommand(t *testing.T) {
	var mode string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mode = r.PostFormValue("hub.mode")
		w.Write([]byte("accepted"))
	}))
	defer server.Close()

	out, err := runCLI(t, "--hub", server.URL, "unsubscribe",
		"--topic", "http://publisher/feed", "--callback", "http://subscriber/cb")
	require.NoError(t, err)
	assert.Equal(t, "unsubscribe", mode)
	assert.Contains(t, out, "Unsubscription")
}

func TestPublishCommand(t *testing.T) {
	var urls []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		urls = r.PostForm["hub.url"]
		w.Write([]byte("accepted"))
	}))
	defer server.Close()

	out, err := runCLI(t, "--hub", server.URL, "publish", "--topic", "http://a/feed", "--topic", "http://b/feed")
	require.NoError(t, err)
	assert.Equal(t, []string{"http://a/feed", "http://b/feed"}, urls)
	assert.Contains(t, out, "Published http://b/feed")
}

func TestPublishCommandFetchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic fetch failed", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := runCLI(t, "--hub", server.URL, "publish", "--topic", "http://a/feed")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, hubclient.StatusCode(err))
}

func TestHealthCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(hubclient.HealthResponse{Healthy: true, StoreHealthy: true, WorkersRunning: true, Pending: 1})
	}))
	defer server.Close()

	out, err := runCLI(t, "--hub", server.URL, "health")
	require.NoError(t, err)
	assert.Contains(t, out, "is healthy")
	assert.Contains(t, out, "Pending verifications: 1")
}

func TestAdminRequiresToken(t *testing.T) {
	_, err := runCLI(t, "admin", "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "admin token required")
}

func TestAdminStatsCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"subscriptions":2,"topics":1,"deliveries":{"delivered":4,"failed":1}}`))
	}))
	defer server.Close()

	out, err := runCLI(t, "--hub", server.URL, "--token", "test-token", "admin", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Subscriptions: 2 across 1 topic(s)")
	assert.Contains(t, out, "Deliveries: 4 delivered, 1 failed")
}

func TestAdminDeliveriesCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"deliveries":[{"topic":"http://a/feed","callback":"http://s/cb","status_code":401}],"count":1}`))
	}))
	defer server.Close()

	out, err := runCLI(t, "--hub", server.URL, "--token", "test-token", "admin", "deliveries", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "http://a/feed -> http://s/cb  401")
}

func TestTokenCommand(t *testing.T) {
	out, err := runCLI(t, "token", "--secret", "hub-secret", "--subject", "ops")
	require.NoError(t, err)

	claims, err := httpapi.NewJWTAuth("hub-secret").ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.True(t, claims.Admin)
	assert.Equal(t, "ops", claims.Subject)
}

func TestTokenCommandRequiresSecret(t *testing.T) {
	_, err := runCLI(t, "token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secret is required")
}
