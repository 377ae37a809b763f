package claudecode

import (
	"encoding/json"
	"strings"
)

// NormalizeContent returns message.content as a block list. A plain string
// becomes a single text block; blank content yields nil.
func NormalizeContent(message map[string]any) []any {
	if message == nil {
		return nil
	}
	switch content := message["content"].(type) {
	case nil:
		return nil
	case []any:
		return content
	case string:
		if strings.TrimSpace(content) == "" {
			return nil
		}
		return []any{map[string]any{"type": BlockText, "text": content}}
	default:
		data, err := json.Marshal(content)
		if err != nil || strings.TrimSpace(string(data)) == "" {
			return nil
		}
		return []any{map[string]any{"type": BlockText, "text": string(data)}}
	}
}

// TextFromContent concatenates the text of every text block.
func TextFromContent(content []any) string {
	var b strings.Builder
	for _, entry := range content {
		block := Object(entry)
		if String(block, "type") != BlockText {
			continue
		}
		b.WriteString(String(block, "text"))
	}
	return b.String()
}

// MessageText returns the concatenated text of a message object.
func MessageText(message map[string]any) string {
	return TextFromContent(NormalizeContent(message))
}

// HasUserContent reports whether content holds something a user typed,
// as opposed to only tool results.
func HasUserContent(content []any) bool {
	for _, entry := range content {
		switch String(Object(entry), "type") {
		case BlockText, BlockImage, "localImage", "skill":
			return true
		}
	}
	return false
}
