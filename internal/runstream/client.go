// Package runstream delivers the live event stream of an agent run.
//
// A Client verifies that a run is still running before connecting, keeps at
// most one stream per run, remembers runs that are over so it never connects
// to them again, and decides when a stream is finished versus when the
// transport should be left to reconnect.
package runstream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentdeck/agentctl/internal/auth"
	"github.com/agentdeck/agentctl/internal/backend"
	"github.com/agentdeck/agentctl/internal/backend/entities"
	"github.com/agentdeck/agentctl/internal/sse"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Backend is the part of the API the stream client needs.
type Backend interface {
	GetRunStatus(ctx context.Context, runID string) (entities.RunStatus, error)
	StreamURL(runID, token string) string
}

// Callbacks receive the outcome of Open. They are called from one goroutine
// per Open, never concurrently with each other. Nil callbacks are skipped.
type Callbacks struct {
	OnMessage func(payload string)
	OnError   func(err error)
	OnClose   func()
}

// Client opens run streams. Create one per session and Close it on logout.
type Client struct {
	backend Backend
	tokens  auth.TokenProvider
	logger  *zap.Logger

	sseOptions   []sse.Option
	recheckEvery time.Duration
	recheckBurst int

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	nonRunning map[string]struct{}
	active     map[string]*stream
	closed     bool
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSSEOptions passes options to every EventSource the client creates.
func WithSSEOptions(opts ...sse.Option) Option {
	return func(c *Client) {
		c.sseOptions = append(c.sseOptions, opts...)
	}
}

// WithStatusRecheckLimit limits how often a flapping connection may trigger a
// status re-check for one run. Checks over the limit are skipped and the
// transport reconnects as if the run were still running.
func WithStatusRecheckLimit(every time.Duration, burst int) Option {
	return func(c *Client) {
		c.recheckEvery = every
		c.recheckBurst = burst
	}
}

// New creates a Client.
func New(b Backend, tokens auth.TokenProvider, opts ...Option) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		backend:      b,
		tokens:       tokens,
		logger:       zap.NewNop(),
		recheckEvery: 500 * time.Millisecond,
		recheckBurst: 3,
		ctx:          ctx,
		cancel:       cancel,
		nonRunning:   make(map[string]struct{}),
		active:       make(map[string]*stream),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open starts streaming runID and returns a function that cancels it.
// Cancelling closes the connection and forgets the stream without invoking
// any callback.
func (c *Client) Open(runID string, cb Callbacks) (cancel func()) {
	log := c.logger.With(zap.String("run_id", runID))

	if c.IsNonRunning(runID) {
		log.Debug("run already known to be over, not connecting")
		go func() {
			safeError(cb, &NotRunningError{RunID: runID})
			safeClose(cb)
		}()
		return func() {}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		go func() {
			safeError(cb, ErrClientClosed)
			safeClose(cb)
		}()
		return func() {}
	}
	if existing, ok := c.active[runID]; ok {
		log.Debug("closing existing stream before reopening")
		delete(c.active, runID)
		existing.silence()
	}
	s := newStream(c, runID, cb, log)
	c.active[runID] = s
	c.mu.Unlock()

	go c.connect(s)

	return func() {
		c.mu.Lock()
		if c.active[runID] == s {
			delete(c.active, runID)
		}
		c.mu.Unlock()
		s.silence()
	}
}

// IsNonRunning reports whether runID is known to have left the running state.
func (c *Client) IsNonRunning(runID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.nonRunning[runID]
	return ok
}

// IsActive reports whether a stream is registered for runID.
func (c *Client) IsActive(runID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.active[runID]
	return ok
}

// ActiveCount returns the number of registered streams.
func (c *Client) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}

// Forget removes runID from the set of runs known to be over, e.g. after the
// caller restarted the thread.
func (c *Client) Forget(runID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.nonRunning, runID)
}

// Close silently tears down every stream. Later Open calls fail with ErrClientClosed.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	streams := make([]*stream, 0, len(c.active))
	for runID, s := range c.active {
		streams = append(streams, s)
		delete(c.active, runID)
	}
	c.mu.Unlock()

	for _, s := range streams {
		s.silence()
	}
	c.cancel()
}

func (c *Client) markNonRunning(runID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nonRunning[runID] = struct{}{}
}

// deregister drops s from the registry unless a newer stream replaced it.
func (c *Client) deregister(s *stream) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active[s.runID] == s {
		delete(c.active, s.runID)
	}
}

// attach stores the event source on s if s is still the registered stream.
func (c *Client) attach(s *stream, source *sse.EventSource) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active[s.runID] != s || s.ctx.Err() != nil {
		return false
	}
	s.setSource(source)
	return true
}

func (c *Client) token(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", auth.ErrNoCredential
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", auth.ErrNoCredential
	}
	return token, nil
}

// connect runs the pre-check and opens the stream.
func (c *Client) connect(s *stream) {
	if _, err := c.token(s.ctx); err != nil {
		s.fail(fmt.Errorf("cannot check status of agent run %s: %w", s.runID, err))
		return
	}

	status, err := c.backend.GetRunStatus(s.ctx, s.runID)
	if s.ctx.Err() != nil {
		return
	}
	if err != nil {
		if backend.IsNotFound(err) {
			c.markNonRunning(s.runID)
		}
		s.fail(fmt.Errorf("failed to check status of agent run %s: %w", s.runID, err))
		return
	}
	if !status.IsRunning() {
		c.markNonRunning(s.runID)
		s.fail(&NotRunningError{RunID: s.runID, Status: status})
		return
	}

	token, err := c.token(s.ctx)
	if err != nil {
		s.fail(fmt.Errorf("cannot open stream for agent run %s: %w", s.runID, err))
		return
	}

	opts := append([]sse.Option{sse.WithLogger(s.log)}, c.sseOptions...)
	source := sse.New(c.backend.StreamURL(s.runID, token), sse.Handlers{
		OnMessage: s.handleEvent,
		OnError:   s.handleTransportError,
	}, opts...)
	if !c.attach(s, source) {
		return
	}
	s.log.Debug("stream opening")
	source.Start(s.ctx)
}

// stream is the state of one Open call.
type stream struct {
	client *Client
	runID  string
	cb     Callbacks
	log    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	limiter   *rate.Limiter
	closeOnce sync.Once

	mu       sync.Mutex
	source   *sse.EventSource
	silenced bool
}

func newStream(c *Client, runID string, cb Callbacks, log *zap.Logger) *stream {
	ctx, cancel := context.WithCancel(c.ctx)
	limit := rate.Inf
	if c.recheckEvery > 0 {
		limit = rate.Every(c.recheckEvery)
	}
	return &stream{
		client:  c,
		runID:   runID,
		cb:      cb,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		limiter: rate.NewLimiter(limit, c.recheckBurst),
	}
}

func (s *stream) setSource(source *sse.EventSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = source
}

func (s *stream) isSilenced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.silenced
}

// silence stops the stream without any callback.
func (s *stream) silence() {
	s.mu.Lock()
	s.silenced = true
	source := s.source
	s.mu.Unlock()

	if source != nil {
		source.Close()
	}
	s.cancel()
}

func (s *stream) emitMessage(payload string) {
	if s.isSilenced() || s.cb.OnMessage == nil {
		return
	}
	s.cb.OnMessage(payload)
}

func (s *stream) emitError(err error) {
	if s.isSilenced() {
		return
	}
	safeError(s.cb, err)
}

// finish closes the connection, deregisters and reports OnClose once.
func (s *stream) finish() {
	s.closeOnce.Do(func() {
		s.client.deregister(s)
		s.mu.Lock()
		source := s.source
		silenced := s.silenced
		s.mu.Unlock()
		if source != nil {
			source.Close()
		}
		s.cancel()
		if !silenced {
			safeClose(s.cb)
		}
	})
}

// fail reports err and finishes.
func (s *stream) fail(err error) {
	if s.ctx.Err() != nil {
		return
	}
	s.log.Debug("stream failed", zap.Error(err))
	s.emitError(err)
	s.finish()
}

func (s *stream) handleEvent(ev sse.Event) {
	msg := Classify(ev.Data)

	switch msg.Kind {
	case KindPing, KindEmpty:
		return

	case KindRunNotFound:
		s.log.Debug("run not found in active runs")
		s.client.markNonRunning(s.runID)
		s.emitError(ErrRunNotInActiveRuns)
		s.finish()

	case KindStatusCompleted:
		s.emitMessage(msg.Raw)
		if msg.Final {
			s.client.markNonRunning(s.runID)
		}
		s.log.Debug("run completed", zap.Bool("final", msg.Final))
		s.finish()

	default:
		// KindThreadRunEnd is informational: the completed status event
		// that follows it is what ends the stream.
		s.emitMessage(msg.Raw)
	}
}

// handleTransportError re-verifies the run before deciding whether the
// connection drop ends the stream.
func (s *stream) handleTransportError(err error) {
	if s.isSilenced() || s.ctx.Err() != nil {
		return
	}
	permanent := sse.IsPermanent(err)
	s.log.Debug("stream transport error", zap.Error(err), zap.Bool("permanent", permanent))

	if !permanent && !s.limiter.Allow() {
		s.log.Debug("status re-check skipped, relying on reconnect")
		return
	}

	status, statusErr := s.client.backend.GetRunStatus(s.ctx, s.runID)
	if s.ctx.Err() != nil {
		return
	}

	if statusErr != nil {
		s.emitError(fmt.Errorf("failed to verify status of agent run %s: %w", s.runID, statusErr))
		if backend.IsNotFound(statusErr) {
			s.client.markNonRunning(s.runID)
			s.finish()
		} else if permanent {
			s.finish()
		}
		return
	}

	if !status.IsRunning() {
		// The run ended while we were disconnected; a normal completion.
		s.client.markNonRunning(s.runID)
		s.finish()
		return
	}

	if permanent {
		s.emitError(fmt.Errorf("stream for agent run %s lost: %w", s.runID, err))
		s.finish()
	}
}

func safeError(cb Callbacks, err error) {
	if cb.OnError != nil {
		cb.OnError(err)
	}
}

func safeClose(cb Callbacks) {
	if cb.OnClose != nil {
		cb.OnClose()
	}
}
