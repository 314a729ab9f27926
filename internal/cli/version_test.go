package cli

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agentdeck/agentctl/internal/version"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion(t *testing.T) {
	// A broken configuration must not prevent printing the version.
	testEnv(t, "not-a-url")

	stdout, _, err := executeCommand("version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "agentctl version "+version.Version)
}

func TestVersionCheck(t *testing.T) {
	testEnv(t, "")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"tag_name":"v9.9.9"}`)
	}))
	defer srv.Close()
	t.Setenv("AGENTCTL_RELEASES_URL", srv.URL)

	current := version.Version
	version.Version = "v1.2.0"
	t.Cleanup(func() { version.Version = current })

	stdout, _, err := executeCommand("version", "--check")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Update available!")
	assert.Contains(t, stdout, "v9.9.9")
}

func TestInvalidAPIURL(t *testing.T) {
	testEnv(t, "ftp://example.com")

	_, _, err := executeCommand("run", "status", "run-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must start with http")
}
