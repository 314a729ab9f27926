// Package streaming turns agent run payloads into display events and renders
// them as text or NDJSON. Live streams and transcript replays share it.
package streaming

import (
	"io"
	"time"
)

// StreamEventType is the kind of a display event.
type StreamEventType string

const (
	EventTypeConnected     StreamEventType = "connected"
	EventTypeMessageChunk  StreamEventType = "message_chunk"
	EventTypeMessage       StreamEventType = "message"
	EventTypeToolStarted   StreamEventType = "tool_started"
	EventTypeToolCompleted StreamEventType = "tool_completed"
	EventTypeStatus        StreamEventType = "status"
	EventTypeError         StreamEventType = "error"
	EventTypeDone          StreamEventType = "done"
)

// StreamEvent is the unified display event.
type StreamEvent struct {
	Type      StreamEventType `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	RunID     string          `json:"run_id,omitempty"`
	MessageID string          `json:"message_id,omitempty"`

	Tool    *ToolEventData    `json:"tool,omitempty"`
	Message *MessageEventData `json:"message,omitempty"`
	Status  *StatusEventData  `json:"status,omitempty"`
	Error   *ErrorEventData   `json:"error,omitempty"`

	// Metadata carries the payload metadata verbatim.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ToolEventData describes a tool call or its result.
type ToolEventData struct {
	Name string `json:"name"`
	// Arguments and Output are dropped unless verbose.
	Arguments map[string]interface{} `json:"arguments,omitempty"`
	Output    string                 `json:"output,omitempty"`
	Success   bool                   `json:"success"`
	Error     string                 `json:"error,omitempty"`
}

// MessageEventData is text from a participant of the thread.
type MessageEventData struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Chunk   bool   `json:"chunk,omitempty"`
}

// StatusEventData is a run or thread status change.
type StatusEventData struct {
	State   string `json:"state"`
	Message string `json:"message,omitempty"`
}

// ErrorEventData describes a failure reported by the stream or the client.
type ErrorEventData struct {
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable,omitempty"`
}

// StreamRenderer writes events somewhere.
type StreamRenderer interface {
	RenderEvent(event StreamEvent) error
	Flush() error
	Close() error
}

// StreamFormat selects a renderer.
type StreamFormat string

const (
	StreamFormatAuto StreamFormat = "auto"
	StreamFormatText StreamFormat = "text"
	StreamFormatJSON StreamFormat = "json"
)

// ParseFormat accepts "", auto, text and json.
func ParseFormat(s string) (StreamFormat, bool) {
	switch StreamFormat(s) {
	case "", StreamFormatAuto:
		return StreamFormatAuto, true
	case StreamFormatText, StreamFormatJSON:
		return StreamFormat(s), true
	}
	return "", false
}

// StreamOptions configures NewRenderer.
type StreamOptions struct {
	Format  StreamFormat
	Verbose bool
	// Markdown renders complete assistant messages as markdown (text only).
	Markdown bool
	Out      io.Writer
}

func newEvent(eventType StreamEventType) StreamEvent {
	return StreamEvent{Type: eventType, Timestamp: timeNow()}
}

// NewConnectedEvent marks the stream as open.
func NewConnectedEvent(runID string) StreamEvent {
	event := newEvent(EventTypeConnected)
	event.RunID = runID
	return event
}

// NewMessageEvent is a complete message.
func NewMessageEvent(role, content string) StreamEvent {
	event := newEvent(EventTypeMessage)
	event.Message = &MessageEventData{Role: role, Content: content}
	return event
}

// NewMessageChunkEvent is a fragment of a message still being written.
func NewMessageChunkEvent(role, content string) StreamEvent {
	event := newEvent(EventTypeMessageChunk)
	event.Message = &MessageEventData{Role: role, Content: content, Chunk: true}
	return event
}

// NewStatusEvent reports a status change.
func NewStatusEvent(state, message string) StreamEvent {
	event := newEvent(EventTypeStatus)
	event.Status = &StatusEventData{State: state, Message: message}
	return event
}

// NewErrorEvent reports a failure.
func NewErrorEvent(message string, recoverable bool) StreamEvent {
	event := newEvent(EventTypeError)
	event.Error = &ErrorEventData{Message: message, Recoverable: recoverable}
	return event
}

// NewDoneEvent ends a stream.
func NewDoneEvent() StreamEvent {
	return newEvent(EventTypeDone)
}

// timeNow is replaced in tests.
var timeNow = time.Now
