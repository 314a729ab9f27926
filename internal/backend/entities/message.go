package entities

import (
	"encoding/json"
	"strings"
)

// MessageType is the envelope "type" of a thread message or stream payload.
type MessageType string

const (
	MessageTypeUser      MessageType = "user"
	MessageTypeAssistant MessageType = "assistant"
	MessageTypeTool      MessageType = "tool"
	MessageTypeSystem    MessageType = "system"
	MessageTypeStatus    MessageType = "status"
	MessageTypePing      MessageType = "ping"
)

// ThreadMessage is a persisted message of a thread. Content and Metadata are
// JSON documents that the backend usually serialises a second time as strings.
type ThreadMessage struct {
	MessageID string          `json:"message_id"`
	ThreadID  string          `json:"thread_id"`
	Type      MessageType     `json:"type"`
	IsLLM     bool            `json:"is_llm_message"`
	Content   json.RawMessage `json:"content"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt *Timestamp      `json:"created_at,omitempty"`
}

// ThreadMessages wraps the list endpoint payload.
type ThreadMessages struct {
	Messages []*ThreadMessage `json:"messages"`
}

// Text extracts the human readable text of the message. It accepts a plain
// string, a {"content": "..."} object, or either of those double encoded.
func (m *ThreadMessage) Text() string {
	return ContentText(m.Content)
}

// ContentText unwraps the content shapes the backend produces.
func ContentText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		trimmed := strings.TrimSpace(s)
		if strings.HasPrefix(trimmed, "{") {
			if inner := ContentText(json.RawMessage(trimmed)); inner != "" {
				return inner
			}
		}
		return s
	}

	var obj struct {
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && len(obj.Content) > 0 {
		return ContentText(obj.Content)
	}
	return ""
}
