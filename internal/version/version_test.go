package version

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNewer(t *testing.T) {
	tests := []struct {
		current, latest string
		want            bool
	}{
		{"v2.6.0", "v2.6.1", true},
		{"v2.9.0", "v2.10.0", true},
		{"v9.0.0", "v10.0.0", true},
		{"2.6.0", "v2.7.0", true},
		{"v2.6.0", "v2.6.0", false},
		{"v2.7.0", "v2.6.0", false},
		{"v1.0.0-rc.1", "v1.0.0", true},
		{"dev", "v1.0.0", false},
		{"v1.0.0", "nightly", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsNewer(tt.current, tt.latest), "%s -> %s", tt.current, tt.latest)
	}
}

func TestChecker_CachesAndRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tag_name":"v1.4.0"}`))
	}))
	defer srv.Close()

	old := Version
	Version = "v1.3.2"
	defer func() { Version = old }()

	c := NewChecker(srv.URL)
	c.retry.InitialDelay = time.Millisecond
	c.retry.MaxDelay = time.Millisecond

	latest, newer, err := c.CheckForUpdate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v1.4.0", latest)
	assert.True(t, newer)
	assert.Contains(t, c.UpdateMessage(context.Background()), "v1.4.0")
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetVersion(t *testing.T) {
	SetBuildInfo("abc123", "2024-01-01", "ci")
	assert.Contains(t, GetVersion(), "commit: abc123")
}
