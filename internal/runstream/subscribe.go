package runstream

import (
	"context"
	"sync"
)

// EventKind tells which callback an Event stands for.
type EventKind int

const (
	EventMessage EventKind = iota
	EventError
	EventClose
)

func (k EventKind) String() string {
	switch k {
	case EventMessage:
		return "message"
	case EventError:
		return "error"
	default:
		return "close"
	}
}

// Event is one callback delivered over a channel.
type Event struct {
	Kind    EventKind
	Payload string
	Err     error
}

// subscribeBuffer is the channel capacity used by Subscribe.
const subscribeBuffer = 64

// Subscribe is Open with the callbacks turned into a channel. The channel is
// closed after the close event, or when ctx is done, whichever comes first.
// Cancelling ctx before the close event cancels the stream.
func (c *Client) Subscribe(ctx context.Context, runID string) <-chan Event {
	return c.subscribe(ctx, runID).ch
}

func (c *Client) subscribe(ctx context.Context, runID string) *subscription {
	sub := &subscription{
		ch:       make(chan Event, subscribeBuffer),
		ctx:      ctx,
		done:     make(chan struct{}),
		released: make(chan struct{}),
	}

	cancel := c.Open(runID, Callbacks{
		OnMessage: func(payload string) {
			sub.send(Event{Kind: EventMessage, Payload: payload})
		},
		OnError: func(err error) {
			sub.send(Event{Kind: EventError, Err: err})
		},
		OnClose: func() {
			sub.send(Event{Kind: EventClose})
			sub.close()
		},
	})

	go func() {
		defer close(sub.released)
		select {
		case <-ctx.Done():
			cancel()
			sub.close()
		case <-sub.done:
		}
	}()
	return sub
}

type subscription struct {
	ctx context.Context
	ch  chan Event
	// done is closed together with ch.
	done chan struct{}
	// released is closed when the context watcher has exited.
	released chan struct{}

	mu     sync.Mutex
	closed bool
}

func (s *subscription) send(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- ev:
	case <-s.ctx.Done():
	}
}

func (s *subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
		close(s.done)
	}
}
