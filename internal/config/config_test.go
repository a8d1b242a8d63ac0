package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead_Defaults(t *testing.T) {
	c, err := Read("")
	require.NoError(t, err)

	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, "http://localhost:8080", c.Server.PublicURL)
	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, "-", c.Log.File)
	assert.Equal(t, 5*time.Second, c.Timeout.Converted.Request)
	assert.Equal(t, 240*time.Hour, c.Hub.Converted.DefaultLease)
	assert.Equal(t, time.Hour, c.Hub.Converted.MinLease)
	assert.Equal(t, 720*time.Hour, c.Hub.Converted.MaxLease)
	assert.Equal(t, time.Minute, c.Hub.Converted.ReapInterval)
	assert.Equal(t, 200, c.Hub.MaxSecretLength)
	assert.Equal(t, 16, c.Hub.Workers)
	assert.Equal(t, 1024, c.Hub.QueueSize)
	assert.Equal(t, 0, c.Hub.MaxFanout)
	assert.Equal(t, time.Minute, c.Hub.Converted.PendingTTL)
	assert.Equal(t, "X-Hub-Signature", c.Hub.SignatureHeader)
	assert.Equal(t, "memory", c.DB.Driver)
	assert.Empty(t, c.Auth.Secret)
}

func TestRead_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "websubhub.toml")
	data := `
[server]
	port = 3000
	public-url = "https://hub.example.com"
[timeout]
	request = "500ms"
[hub]
	workers = 4
[db]
	driver = "sqlite3"
	connect = "file:./storage/hub.sqlite3"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	c, err := Read(path)
	require.NoError(t, err)

	assert.Equal(t, 3000, c.Server.Port)
	assert.Equal(t, "https://hub.example.com", c.Server.PublicURL)
	assert.Equal(t, 500*time.Millisecond, c.Timeout.Converted.Request)
	assert.Equal(t, 4, c.Hub.Workers)
	assert.Equal(t, "sqlite3", c.DB.Driver)
	// Untouched values keep their defaults
	assert.Equal(t, 240*time.Hour, c.Hub.Converted.DefaultLease)
}

func TestRead_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad duration", "[timeout]\n\trequest = \"soon\"\n"},
		{"negative duration", "[timeout]\n\trequest = \"-1s\"\n"},
		{"lease bounds", "[hub]\n\tmin-lease = \"800h\"\n"},
		{"pending ttl", "[hub]\n\tpending-ttl = \"0s\"\n"},
		{"workers", "[hub]\n\tworkers = 0\n"},
		{"max fanout", "[hub]\n\tmax-fanout = -1\n"},
		{"log level", "[log]\n\tlevel = \"loud\"\n"},
		{"port", "[server]\n\tport = 0\n"},
		{"syntax", "[server\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "websubhub.toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.data), 0600))

			_, err := Read(path)
			assert.Error(t, err)
		})
	}
}

func TestRead_MissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
