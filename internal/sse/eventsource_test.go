package sse

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agentdeck/agentctl/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastBackoff() *util.RetryConfig {
	return &util.RetryConfig{InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

type recorder struct {
	mu       sync.Mutex
	messages []Event
	errs     []error
	opens    int
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		OnOpen: func() {
			r.mu.Lock()
			r.opens++
			r.mu.Unlock()
		},
		OnMessage: func(ev Event) {
			r.mu.Lock()
			r.messages = append(r.messages, ev)
			r.mu.Unlock()
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) data() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.messages))
	for _, m := range r.messages {
		out = append(out, m.Data)
	}
	return out
}

func (r *recorder) errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func writeEvents(w http.ResponseWriter, lines ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	for _, l := range lines {
		fmt.Fprint(w, l)
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func waitDone(t *testing.T, es *EventSource) {
	t.Helper()
	select {
	case <-es.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("event source did not stop")
	}
}

func TestEventSourceDeliversInOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		writeEvents(w, "data: one\n\n", ": ping\n\n", "data: two\n\n", "data: three\n\n")
		<-r.Context().Done()
	}))
	defer server.Close()

	rec := &recorder{}
	es := New(server.URL, rec.handlers(), WithBackoff(fastBackoff()))
	es.Start(context.Background())

	require.Eventually(t, func() bool { return len(rec.data()) == 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"one", "two", "three"}, rec.data())
	assert.Equal(t, Open, es.ReadyState())

	es.Close()
	waitDone(t, es)
	assert.Equal(t, Closed, es.ReadyState())
	assert.Empty(t, rec.errors())
}

func TestEventSourceReconnectsWithLastEventID(t *testing.T) {
	var attempts int32
	lastIDs := make(chan string, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		lastIDs <- r.Header.Get("Last-Event-ID")
		if n == 1 {
			writeEvents(w, "id: 41\ndata: first\n\n")
			return
		}
		writeEvents(w, "id: 42\ndata: second\n\n")
		<-r.Context().Done()
	}))
	defer server.Close()

	rec := &recorder{}
	es := New(server.URL, rec.handlers(), WithBackoff(fastBackoff()), WithHeader("X-Client", "test"))
	es.Start(context.Background())
	defer es.Close()

	require.Eventually(t, func() bool { return len(rec.data()) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"first", "second"}, rec.data())
	assert.Equal(t, "", <-lastIDs)
	assert.Equal(t, "41", <-lastIDs)
	assert.Equal(t, "42", es.LastEventID())

	errs := rec.errors()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrStreamEnded)
	assert.False(t, IsPermanent(errs[0]))
}

func TestEventSourcePermanentStatus(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		http.Error(w, "no such run", http.StatusNotFound)
	}))
	defer server.Close()

	rec := &recorder{}
	es := New(server.URL, rec.handlers(), WithBackoff(fastBackoff()))
	es.Start(context.Background())
	waitDone(t, es)

	errs := rec.errors()
	require.Len(t, errs, 1)
	assert.True(t, IsPermanent(errs[0]))
	var statusErr *StatusError
	require.ErrorAs(t, errs[0], &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
	assert.Equal(t, Closed, es.ReadyState())
}

func TestEventSourceReconnectExhausted(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	rec := &recorder{}
	es := New(server.URL, rec.handlers(), WithBackoff(fastBackoff()), WithMaxReconnects(2))
	es.Start(context.Background())
	waitDone(t, es)

	errs := rec.errors()
	require.Len(t, errs, 4)
	assert.ErrorIs(t, errs[3], ErrReconnectExhausted)
	assert.True(t, IsPermanent(errs[3]))
	assert.False(t, IsPermanent(errs[0]))
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestEventSourceCloseFromHandler(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEvents(w, "data: a\n\n", "data: b\n\n")
		<-r.Context().Done()
	}))
	defer server.Close()

	var es *EventSource
	var got []string
	es = New(server.URL, Handlers{
		OnMessage: func(ev Event) {
			got = append(got, ev.Data)
			es.Close()
		},
	}, WithBackoff(fastBackoff()))
	es.Start(context.Background())
	waitDone(t, es)

	assert.Equal(t, []string{"a"}, got)
}

func TestEventSourceRejectsWrongContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"detail":"nope"}`)
	}))
	defer server.Close()

	rec := &recorder{}
	es := New(server.URL, rec.handlers(), WithBackoff(fastBackoff()))
	es.Start(context.Background())
	waitDone(t, es)

	errs := rec.errors()
	require.Len(t, errs, 1)
	assert.True(t, IsPermanent(errs[0]))
}

func TestEventSourceCloseBeforeStart(t *testing.T) {
	es := New("http://127.0.0.1:0", Handlers{})
	es.Close()
	es.Close()
	es.Start(context.Background())
	waitDone(t, es)
	assert.Equal(t, Closed, es.ReadyState())
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "https://api.example.com/agent-run/1/stream?token=REDACTED",
		redact("https://api.example.com/agent-run/1/stream?token=secret"))
}
