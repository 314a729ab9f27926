package sse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sync"
	"time"

	"github.com/agentdeck/agentctl/internal/util"
	"go.uber.org/zap"
)

// DefaultMaxReconnects bounds consecutive failed reconnects.
const DefaultMaxReconnects = 10

var (
	// ErrStreamEnded is reported when the server closes the stream cleanly.
	ErrStreamEnded = errors.New("event stream ended by server")

	// ErrReconnectExhausted is reported once the reconnect budget is spent.
	// No further events follow it.
	ErrReconnectExhausted = errors.New("event stream reconnect attempts exhausted")
)

// StatusError is reported for a non-200 response.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("event stream returned status %s", e.Status)
}

// retryable mirrors what a browser does: 5xx, 429 and 408 are worth another
// try, every other status fails the connection for good.
func (e *StatusError) retryable() bool {
	switch {
	case e.StatusCode >= 500:
		return true
	case e.StatusCode == http.StatusTooManyRequests, e.StatusCode == http.StatusRequestTimeout:
		return true
	}
	return false
}

// IsPermanent reports whether err means the EventSource has stopped for good.
func IsPermanent(err error) bool {
	if errors.Is(err, ErrReconnectExhausted) {
		return true
	}
	var statusErr *StatusError
	return errors.As(err, &statusErr) && !statusErr.retryable()
}

// ReadyState follows the EventSource states.
type ReadyState int

const (
	Connecting ReadyState = iota
	Open
	Closed
)

func (s ReadyState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	default:
		return "closed"
	}
}

// Handlers receive EventSource notifications. All of them are called from the
// single goroutine that reads the stream, in order.
type Handlers struct {
	OnOpen    func()
	OnMessage func(Event)
	// OnError is called on every connection failure. The source reconnects
	// afterwards unless it was closed or IsPermanent(err).
	OnError func(err error)
}

// EventSource keeps a server-sent-events connection alive.
type EventSource struct {
	url           string
	handlers      Handlers
	httpClient    *http.Client
	header        http.Header
	maxReconnects int
	backoff       *util.Backoff
	logger        *zap.Logger

	mu          sync.Mutex
	state       ReadyState
	cancel      context.CancelFunc
	lastEventID string
	done        chan struct{}
	started     bool
}

// Option configures an EventSource.
type Option func(*EventSource)

// WithHTTPClient sets the client. Its Timeout must be zero for long-lived streams.
func WithHTTPClient(hc *http.Client) Option {
	return func(es *EventSource) {
		if hc != nil {
			es.httpClient = hc
		}
	}
}

// WithHeader adds a request header to every connection attempt.
func WithHeader(key, value string) Option {
	return func(es *EventSource) {
		es.header.Set(key, value)
	}
}

// WithMaxReconnects bounds consecutive failed reconnects; n < 0 means unbounded.
func WithMaxReconnects(n int) Option {
	return func(es *EventSource) {
		es.maxReconnects = n
	}
}

// WithBackoff sets the delay policy between reconnects.
func WithBackoff(config *util.RetryConfig) Option {
	return func(es *EventSource) {
		es.backoff = util.NewBackoff(config)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(es *EventSource) {
		if logger != nil {
			es.logger = logger
		}
	}
}

// DefaultBackoff is the reconnect policy unless WithBackoff overrides it.
func DefaultBackoff() *util.RetryConfig {
	return &util.RetryConfig{
		InitialDelay:    time.Second,
		MaxDelay:        30 * time.Second,
		Multiplier:      2,
		RandomizeFactor: 0.2,
	}
}

// New creates an EventSource for url. Call Start to connect.
func New(url string, handlers Handlers, opts ...Option) *EventSource {
	es := &EventSource{
		url:           url,
		handlers:      handlers,
		httpClient:    &http.Client{},
		header:        make(http.Header),
		maxReconnects: DefaultMaxReconnects,
		backoff:       util.NewBackoff(DefaultBackoff()),
		logger:        zap.NewNop(),
		state:         Connecting,
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(es)
	}
	return es
}

// Start connects in the background and returns immediately.
func (es *EventSource) Start(ctx context.Context) {
	es.mu.Lock()
	if es.started || es.state == Closed {
		es.mu.Unlock()
		return
	}
	es.started = true
	ctx, es.cancel = context.WithCancel(ctx)
	es.mu.Unlock()

	go es.run(ctx)
}

// Close stops the source. It is safe to call more than once and from inside a handler.
func (es *EventSource) Close() {
	es.mu.Lock()
	defer es.mu.Unlock()

	if es.state == Closed {
		return
	}
	es.state = Closed
	if es.cancel != nil {
		es.cancel()
	}
	if !es.started {
		close(es.done)
	}
}

// Done is closed once the source has stopped and no handler will run again.
func (es *EventSource) Done() <-chan struct{} {
	return es.done
}

// ReadyState returns the current connection state.
func (es *EventSource) ReadyState() ReadyState {
	es.mu.Lock()
	defer es.mu.Unlock()
	return es.state
}

// LastEventID returns the id sent with the next reconnect.
func (es *EventSource) LastEventID() string {
	es.mu.Lock()
	defer es.mu.Unlock()
	return es.lastEventID
}

func (es *EventSource) closed() bool {
	return es.ReadyState() == Closed
}

func (es *EventSource) setState(state ReadyState) bool {
	es.mu.Lock()
	defer es.mu.Unlock()
	if es.state == Closed {
		return false
	}
	es.state = state
	return true
}

func (es *EventSource) run(ctx context.Context) {
	defer close(es.done)
	defer es.Close()

	failures := 0
	for {
		opened, err := es.connect(ctx)
		if es.closed() || ctx.Err() != nil {
			return
		}
		if opened {
			failures = 0
		}
		if err == nil || errors.Is(err, io.EOF) {
			err = ErrStreamEnded
		}
		es.setState(Connecting)

		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.retryable() {
			es.logger.Debug("event stream failed permanently", zap.String("url", redact(es.url)), zap.Error(err))
			es.emitError(err)
			return
		}

		es.emitError(err)
		if es.closed() {
			return
		}

		failures++
		if es.maxReconnects >= 0 && failures > es.maxReconnects {
			es.emitError(fmt.Errorf("%w after %d attempts: %v", ErrReconnectExhausted, es.maxReconnects, err))
			return
		}

		delay := es.backoff.Next()
		es.logger.Debug("event stream reconnecting",
			zap.Int("attempt", failures),
			zap.Duration("delay", delay),
			zap.Error(err))
		if util.Sleep(ctx, delay) != nil {
			return
		}
	}
}

// connect performs one connection attempt and reads until it ends. opened
// reports whether the server accepted the stream.
func (es *EventSource) connect(ctx context.Context) (opened bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, es.url, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create stream request: %w", err)
	}
	for key, values := range es.header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if id := es.LastEventID(); id != "" {
		req.Header.Set("Last-Event-ID", id)
	}

	resp, err := es.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to connect to stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if mediaType, _, err := mime.ParseMediaType(ct); err == nil && mediaType != "text/event-stream" {
			return false, &StatusError{StatusCode: http.StatusUnsupportedMediaType, Status: "unexpected content type " + mediaType}
		}
	}

	if !es.setState(Open) {
		return false, nil
	}
	es.backoff.Reset()
	es.logger.Debug("event stream open", zap.String("url", redact(es.url)))
	if es.handlers.OnOpen != nil {
		es.handlers.OnOpen()
	}

	p := &parser{lastEventID: es.LastEventID()}
	return true, readEvents(resp.Body, p, func(ev Event) bool {
		es.mu.Lock()
		es.lastEventID = ev.ID
		es.mu.Unlock()
		if ev.Retry > 0 {
			es.backoff.SetBase(ev.Retry)
		}
		if es.closed() {
			return false
		}
		if es.handlers.OnMessage != nil {
			es.handlers.OnMessage(ev)
		}
		return !es.closed()
	})
}

func (es *EventSource) emitError(err error) {
	if es.handlers.OnError != nil {
		es.handlers.OnError(err)
	}
}
