package runstream

import (
	"encoding/json"
	"strings"
)

// Kind is the classification of one stream payload.
type Kind int

const (
	// KindGeneric is any payload forwarded without interpretation.
	KindGeneric Kind = iota
	// KindPing is a heartbeat; never forwarded.
	KindPing
	// KindEmpty is an empty or whitespace payload; never forwarded.
	KindEmpty
	// KindRunNotFound means the backend no longer tracks the run.
	KindRunNotFound
	// KindStatusCompleted is the final status event of a run.
	KindStatusCompleted
	// KindThreadRunEnd marks the end of one thread run; informational.
	KindThreadRunEnd
)

func (k Kind) String() string {
	switch k {
	case KindPing:
		return "ping"
	case KindEmpty:
		return "empty"
	case KindRunNotFound:
		return "run_not_found"
	case KindStatusCompleted:
		return "status_completed"
	case KindThreadRunEnd:
		return "thread_run_end"
	default:
		return "generic"
	}
}

// Message is a classified payload.
type Message struct {
	Kind Kind
	// Raw is the payload exactly as received.
	Raw string
	// Final is set on KindStatusCompleted when the backend says no stream
	// data will ever be available again for the run.
	Final bool
}

var (
	pingMarkers  = []string{`"type":"ping"`, `"type": "ping"`}
	finalMarkers = []string{"Run data not available for streaming", "Stream ended with status: completed"}
)

const (
	notFoundRunMarker    = "Agent run"
	notFoundActiveMarker = "not found in active runs"
)

type envelope struct {
	Type       string          `json:"type"`
	Status     string          `json:"status"`
	StatusType string          `json:"status_type"`
	Content    json.RawMessage `json:"content"`
}

// statusType looks for status_type at the top level and inside a content
// object, which the backend sometimes sends double encoded.
func (e *envelope) statusType() string {
	if e.StatusType != "" {
		return e.StatusType
	}
	if len(e.Content) == 0 {
		return ""
	}
	var inner struct {
		StatusType string `json:"status_type"`
	}
	if err := json.Unmarshal(e.Content, &inner); err == nil && inner.StatusType != "" {
		return inner.StatusType
	}
	var encoded string
	if err := json.Unmarshal(e.Content, &encoded); err == nil {
		if err := json.Unmarshal([]byte(encoded), &inner); err == nil {
			return inner.StatusType
		}
	}
	return ""
}

// Classify turns a raw payload into a Message. Rules apply in priority order:
// ping, empty, run-not-found, status completed, thread run end, generic.
func Classify(payload string) Message {
	msg := Message{Kind: KindGeneric, Raw: payload}

	for _, marker := range pingMarkers {
		if strings.Contains(payload, marker) {
			msg.Kind = KindPing
			return msg
		}
	}

	trimmed := strings.TrimSpace(payload)
	if trimmed == "" {
		msg.Kind = KindEmpty
		return msg
	}

	if strings.Contains(payload, notFoundRunMarker) && strings.Contains(payload, notFoundActiveMarker) {
		msg.Kind = KindRunNotFound
		return msg
	}

	var env envelope
	if !strings.HasPrefix(trimmed, "{") || json.Unmarshal([]byte(trimmed), &env) != nil {
		return msg
	}

	switch {
	case strings.EqualFold(env.Type, "ping"):
		msg.Kind = KindPing
	case env.Type == "status" && env.Status == "completed":
		msg.Kind = KindStatusCompleted
		for _, marker := range finalMarkers {
			if strings.Contains(payload, marker) {
				msg.Final = true
				break
			}
		}
	case env.Type == "status" && env.statusType() == "thread_run_end":
		msg.Kind = KindThreadRunEnd
	}
	return msg
}
