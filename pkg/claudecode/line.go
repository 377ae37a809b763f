package claudecode

import (
	"encoding/json"
	"strings"
)

// Line is one decoded stdout line. The CLI has emitted both snake_case and
// camelCase spellings across versions, so accessors accept either.
type Line map[string]any

// ParseLine decodes a single JSON object.
func ParseLine(data []byte) (Line, error) {
	var line Line
	if err := json.Unmarshal(data, &line); err != nil {
		return nil, err
	}
	return line, nil
}

// Type returns the message type.
func (l Line) Type() string { return String(l, "type") }

// Subtype returns the message subtype.
func (l Line) Subtype() string { return String(l, "subtype") }

// UUID returns the message uuid recorded in session logs.
func (l Line) UUID() string { return String(l, "uuid") }

// SessionID returns the session id.
func (l Line) SessionID() string { return String(l, "session_id", "sessionId") }

// ParentToolUseID is non-empty for events produced by a nested subagent.
func (l Line) ParentToolUseID() string {
	return strings.TrimSpace(String(l, "parent_tool_use_id", "parentToolUseId"))
}

// Message returns the nested message object, if any.
func (l Line) Message() map[string]any { return Object(l["message"]) }

// Content returns message.content when it is a block list.
func (l Line) Content() []any {
	msg := l.Message()
	if msg == nil {
		return nil
	}
	return Array(msg["content"])
}

// Field returns the first present value among keys.
func (l Line) Field(keys ...string) any { return First(l, keys...) }

// First returns the first non-nil value among keys.
func First(m map[string]any, keys ...string) any {
	if m == nil {
		return nil
	}
	for _, key := range keys {
		if v, ok := m[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

// String returns the first string value among keys.
func String(m map[string]any, keys ...string) string {
	if m == nil {
		return ""
	}
	for _, key := range keys {
		if s, ok := m[key].(string); ok {
			return s
		}
	}
	return ""
}

// Bool returns the first boolean value among keys.
func Bool(m map[string]any, keys ...string) bool {
	if m == nil {
		return false
	}
	for _, key := range keys {
		if b, ok := m[key].(bool); ok {
			return b
		}
	}
	return false
}

// Object asserts v to a JSON object.
func Object(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// Array asserts v to a JSON array.
func Array(v any) []any {
	a, _ := v.([]any)
	return a
}
