package cli

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/agentdeck/agentctl/internal/output"
)

// fakeAPI serves the endpoints the commands use.
type fakeAPI struct {
	mu       sync.Mutex
	statuses map[string]string
	streams  map[string][]string

	streamCalls atomic.Int32
	started     []string
	stopped     []string
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{
		statuses: map[string]string{},
		streams:  map[string][]string{},
	}
	srv := httptest.NewServer(http.HandlerFunc(api.serve))
	t.Cleanup(srv.Close)
	return api, srv
}

func (f *fakeAPI) setRun(runID, status string, payloads ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[runID] = status
	f.streams[runID] = payloads
}

func (f *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	switch {
	case r.Method == http.MethodPost && path == "/thread/th-1/agent/start":
		f.started = append(f.started, "th-1")
		writeBody(w, http.StatusOK, `{"agent_run_id":"run-1","status":"running"}`)

	case r.Method == http.MethodPost && strings.HasSuffix(path, "/stop"):
		f.stopped = append(f.stopped, strings.TrimSuffix(strings.TrimPrefix(path, "/agent-run/"), "/stop"))
		writeBody(w, http.StatusOK, `{}`)

	case path == "/thread/th-1/agent-runs":
		writeBody(w, http.StatusOK, `{"agent_runs":[
			{"id":"run-1","thread_id":"th-1","status":"completed","started_at":"2026-03-01T10:00:00Z"},
			{"id":"run-2","thread_id":"th-1","status":"error","error":"model overloaded"}]}`)

	case path == "/threads/th-1/messages":
		writeBody(w, http.StatusOK, `{"messages":[
			{"message_id":"m1","type":"user","content":"{\"role\":\"user\",\"content\":\"hi\"}"},
			{"message_id":"m2","type":"assistant","content":"{\"role\":\"assistant\",\"content\":\"hello there\"}"}]}`)

	case strings.HasSuffix(path, "/stream"):
		f.streamCalls.Add(1)
		runID := strings.TrimSuffix(strings.TrimPrefix(path, "/agent-run/"), "/stream")
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		for _, p := range f.streams[runID] {
			fmt.Fprintf(w, "data: %s\n\n", p)
		}

	case strings.HasPrefix(path, "/agent-run/"):
		runID := strings.TrimPrefix(path, "/agent-run/")
		status, ok := f.statuses[runID]
		if !ok {
			writeBody(w, http.StatusNotFound, `{"detail":"Agent run not found"}`)
			return
		}
		writeBody(w, http.StatusOK, fmt.Sprintf(`{"id":%q,"thread_id":"th-1","status":%q}`, runID, status))

	default:
		http.NotFound(w, r)
	}
}

func writeBody(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}

// testEnv points the CLI at apiURL with a throwaway config file.
func testEnv(t *testing.T, apiURL string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config")
	t.Setenv("AGENTCTL_CONFIG", configPath)
	t.Setenv("AGENTCTL_CONTEXT", "")
	t.Setenv("AGENTCTL_API_URL", apiURL)
	t.Setenv("AGENTCTL_TOKEN", "test-token")
	t.Setenv("AGENTCTL_STREAM_FORMAT", "")
	t.Setenv("AGENTCTL_DEBUG", "")
	t.Setenv("AGENTCTL_LOG_LEVEL", "")
	t.Setenv("SENTRY_DSN", "")
	return configPath
}

// executeCommand runs the CLI in plain output mode.
func executeCommand(args ...string) (stdout, stderr string, err error) {
	var out, errOut bytes.Buffer
	a := newApp(&out, &errOut)
	a.mode = output.OutputModeCI
	cmd := a.rootCommand()
	cmd.SetArgs(args)
	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}
