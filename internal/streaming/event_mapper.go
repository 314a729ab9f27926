package streaming

import (
	"encoding/json"
	"strings"

	"github.com/agentdeck/agentctl/internal/backend/entities"
)

// runPayload is the envelope of a run stream payload and of a persisted
// thread message. content and metadata may arrive double encoded.
type runPayload struct {
	Type       entities.MessageType `json:"type"`
	MessageID  string               `json:"message_id"`
	Content    json.RawMessage      `json:"content"`
	Metadata   json.RawMessage      `json:"metadata"`
	Status     string               `json:"status"`
	StatusType string               `json:"status_type"`
	Message    string               `json:"message"`
	CreatedAt  *entities.Timestamp  `json:"created_at"`
}

// MapRunPayload converts one payload from a run stream. ok is false for
// payloads with nothing to show.
func MapRunPayload(runID, payload string) (event StreamEvent, ok bool) {
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" {
		return StreamEvent{}, false
	}

	var env runPayload
	if !strings.HasPrefix(trimmed, "{") || json.Unmarshal([]byte(trimmed), &env) != nil {
		// Plain text from older backends is streamed assistant output.
		event = NewMessageChunkEvent(string(entities.MessageTypeAssistant), payload)
		event.RunID = runID
		return event, true
	}

	event, ok = mapEnvelope(env, true)
	event.RunID = runID
	return event, ok
}

// MapThreadMessage converts a persisted thread message. Persisted messages are
// always complete.
func MapThreadMessage(m *entities.ThreadMessage) (StreamEvent, bool) {
	if m == nil {
		return StreamEvent{}, false
	}
	return mapEnvelope(runPayload{
		Type:      m.Type,
		MessageID: m.MessageID,
		Content:   m.Content,
		Metadata:  m.Metadata,
		CreatedAt: m.CreatedAt,
	}, false)
}

func mapEnvelope(env runPayload, live bool) (StreamEvent, bool) {
	metadata := decodeObject(env.Metadata)

	var event StreamEvent
	switch env.Type {
	case entities.MessageTypePing:
		return StreamEvent{}, false

	case entities.MessageTypeAssistant, entities.MessageTypeUser, entities.MessageTypeSystem:
		text := entities.ContentText(env.Content)
		if text == "" {
			return StreamEvent{}, false
		}
		if live && stringField(metadata, "stream_status") == "chunk" {
			event = NewMessageChunkEvent(string(env.Type), text)
		} else {
			event = NewMessageEvent(string(env.Type), text)
		}

	case entities.MessageTypeTool:
		event = mapToolResult(env, metadata)

	case entities.MessageTypeStatus:
		var ok bool
		if event, ok = mapStatus(env); !ok {
			return StreamEvent{}, false
		}

	case "error":
		message := env.Message
		if message == "" {
			message = entities.ContentText(env.Content)
		}
		event = NewErrorEvent(message, false)

	default:
		text := entities.ContentText(env.Content)
		if text == "" {
			return StreamEvent{}, false
		}
		event = NewMessageChunkEvent(string(entities.MessageTypeAssistant), text)
	}

	event.MessageID = env.MessageID
	if len(metadata) > 0 {
		event.Metadata = metadata
	}
	if env.CreatedAt != nil && !env.CreatedAt.IsZero() {
		event.Timestamp = env.CreatedAt.Time
	}
	return event, true
}

func mapToolResult(env runPayload, metadata map[string]interface{}) StreamEvent {
	content := decodeObject(env.Content)
	name := stringField(content, "name")
	if name == "" {
		name = stringField(metadata, "function_name")
	}

	event := newEvent(EventTypeToolCompleted)
	event.Tool = &ToolEventData{
		Name:    name,
		Output:  entities.ContentText(env.Content),
		Success: true,
	}
	if success, ok := metadata["success"].(bool); ok {
		event.Tool.Success = success
	}
	if !event.Tool.Success {
		event.Tool.Error = stringField(metadata, "error")
	}
	return event
}

func mapStatus(env runPayload) (StreamEvent, bool) {
	content := decodeObject(env.Content)

	statusType := env.StatusType
	if statusType == "" {
		statusType = stringField(content, "status_type")
	}
	message := env.Message
	if message == "" {
		message = stringField(content, "message")
	}

	switch statusType {
	case "tool_started":
		event := newEvent(EventTypeToolStarted)
		event.Tool = &ToolEventData{Name: toolName(content)}
		if args, ok := content["arguments"].(map[string]interface{}); ok {
			event.Tool.Arguments = args
		}
		return event, true

	case "tool_completed", "tool_failed", "tool_error":
		event := newEvent(EventTypeToolCompleted)
		event.Tool = &ToolEventData{
			Name:    toolName(content),
			Success: statusType == "tool_completed",
		}
		if !event.Tool.Success {
			event.Tool.Error = message
		}
		return event, true

	case "error":
		return NewErrorEvent(message, false), true

	case "finish":
		reason := stringField(content, "finish_reason")
		return NewStatusEvent("finish", reason), reason != ""

	case "":
		// a plain run status, handled below
	default:
		return NewStatusEvent(statusType, message), true
	}

	switch strings.ToLower(env.Status) {
	case "":
		return StreamEvent{}, false
	case string(entities.RunStatusCompleted):
		event := NewDoneEvent()
		event.Status = &StatusEventData{State: env.Status, Message: message}
		return event, true
	case string(entities.RunStatusError), "failed":
		return NewErrorEvent(message, false), true
	default:
		return NewStatusEvent(strings.ToLower(env.Status), message), true
	}
}

func toolName(content map[string]interface{}) string {
	for _, key := range []string{"function_name", "xml_tag_name", "name"} {
		if name := stringField(content, key); name != "" {
			return name
		}
	}
	return ""
}

// decodeObject accepts an object or a string holding an object.
func decodeObject(raw json.RawMessage) map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && strings.HasPrefix(strings.TrimSpace(s), "{") {
		if err := json.Unmarshal([]byte(s), &obj); err == nil {
			return obj
		}
	}
	return nil
}

func stringField(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}
