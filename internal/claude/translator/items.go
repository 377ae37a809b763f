package translator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/siddartha-10/ClaudeCodeMonitor/pkg/claudecode"
)

// Item statuses
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
)

// Item types
const (
	ItemAgentMessage     = "agentMessage"
	ItemReasoning        = "reasoning"
	ItemCommandExecution = "commandExecution"
	ItemMCPToolCall      = "mcpToolCall"
	ItemWebSearch        = "webSearch"
	ItemFileChange       = "fileChange"
)

// DefaultQuestionHeader is shown when a question carries no header.
const DefaultQuestionHeader = "Claude needs your input"

var filePathKeys = []string{
	"file_path",
	"filePath",
	"path",
	"filename",
	"file",
	"notebook_path",
	"notebookPath",
}

var filePathListKeys = []string{"files", "paths", "targets", "edits", "changes"}

// BuildToolItem classifies a tool call as an mcpToolCall, webSearch,
// fileChange or commandExecution item. output and result are set only once
// the tool has completed; a nil result falls back to output.
func BuildToolItem(id, toolName string, toolInput any, status string, output *string, result any) map[string]any {
	if server, tool, ok := ParseMCPToolName(toolName); ok {
		item := map[string]any{
			"id":        id,
			"type":      ItemMCPToolCall,
			"server":    server,
			"tool":      tool,
			"arguments": toolInput,
			"status":    status,
		}
		if result != nil {
			item["result"] = result
		} else if output != nil {
			item["result"] = *output
		}
		return item
	}

	normalized := strings.ToLower(strings.TrimSpace(toolName))
	switch normalized {
	case "websearch":
		item := map[string]any{
			"id":     id,
			"type":   ItemWebSearch,
			"query":  strings.TrimSpace(claudecode.String(claudecode.Object(toolInput), "query")),
			"status": status,
		}
		if output != nil {
			item["aggregatedOutput"] = *output
		}
		return item

	case "write", "edit", "multiedit", "notebookedit":
		kind := "modify"
		if normalized == "write" {
			kind = "add"
		}
		paths := ExtractFilePaths(toolInput)
		changes := make([]map[string]any, 0, len(paths))
		for _, path := range paths {
			changes = append(changes, map[string]any{"path": path, "kind": kind})
		}
		item := map[string]any{
			"id":      id,
			"type":    ItemFileChange,
			"status":  status,
			"changes": changes,
		}
		if output != nil {
			item["aggregatedOutput"] = *output
		}
		if toolInput != nil {
			item["toolInput"] = toolInput
		}
		return item
	}

	item := map[string]any{
		"id":        id,
		"type":      ItemCommandExecution,
		"command":   []string{toolName},
		"status":    status,
		"toolInput": toolInput,
	}
	if output != nil {
		item["aggregatedOutput"] = *output
	}
	return item
}

// ParseMCPToolName splits "mcp__<server>__<tool>". The tool part may itself
// contain "__".
func ParseMCPToolName(toolName string) (server, tool string, ok bool) {
	trimmed := strings.TrimSpace(toolName)
	if !strings.HasPrefix(strings.ToLower(trimmed), "mcp__") {
		return "", "", false
	}
	parts := strings.Split(trimmed, "__")
	if len(parts) < 3 {
		return "", "", false
	}
	server = strings.TrimSpace(parts[1])
	tool = strings.TrimSpace(strings.Join(parts[2:], "__"))
	if server == "" || tool == "" {
		return "", "", false
	}
	return server, tool, true
}

// ExtractFilePaths collects the file paths a file-editing tool touches,
// deduplicated in order.
func ExtractFilePaths(toolInput any) []string {
	input := claudecode.Object(toolInput)
	if input == nil {
		return nil
	}
	var paths []string
	if path := firstNonBlank(input, filePathKeys); path != "" {
		paths = append(paths, path)
	}
	for _, key := range filePathListKeys {
		for _, entry := range claudecode.Array(input[key]) {
			if path := pathFromValue(entry); path != "" {
				paths = append(paths, path)
			}
		}
	}

	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, path := range paths {
		if seen[path] {
			continue
		}
		seen[path] = true
		out = append(out, path)
	}
	return out
}

func pathFromValue(v any) string {
	switch value := v.(type) {
	case string:
		return strings.TrimSpace(value)
	case map[string]any:
		return firstNonBlank(value, filePathKeys)
	}
	return ""
}

func firstNonBlank(m map[string]any, keys []string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

// ToolResultOutput renders tool_result content as text: strings verbatim,
// text blocks joined by newlines, anything else as indented JSON.
func ToolResultOutput(content any) string {
	switch value := content.(type) {
	case nil:
		return ""
	case string:
		return value
	case []any:
		var texts []string
		for _, entry := range value {
			block := claudecode.Object(entry)
			if claudecode.String(block, "type") != claudecode.BlockText {
				continue
			}
			if text := claudecode.String(block, "text"); text != "" {
				texts = append(texts, text)
			}
		}
		if len(texts) > 0 {
			return strings.Join(texts, "\n")
		}
	}
	data, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return fmt.Sprint(content)
	}
	return string(data)
}

// ToolResultValue returns the structured result of a tool call, falling
// back to the line's toolUseResult when the block content is empty.
func ToolResultValue(content any, line claudecode.Line) any {
	if !isEmptyContent(content) {
		return content
	}
	fallback := line.Field("toolUseResult", "tool_use_result")
	if fallback == nil {
		return nil
	}
	if inner, ok := claudecode.Object(fallback)["content"]; ok {
		return inner
	}
	return fallback
}

func isEmptyContent(content any) bool {
	switch value := content.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(value) == ""
	case []any:
		return len(value) == 0
	}
	return false
}

// IsPermissionDenial reports whether error output reads as a denied
// permission request.
func IsPermissionDenial(output string) bool {
	lower := strings.ToLower(output)
	return strings.Contains(lower, "requested permissions") || strings.Contains(lower, "haven't granted")
}

// SubagentID returns the agent id reported for a Task tool result.
func SubagentID(line claudecode.Line) string {
	result := claudecode.Object(line.Field("toolUseResult", "tool_use_result"))
	return claudecode.String(result, "agentId")
}

// IsSubagentTask reports whether a tool call dispatches a subagent.
func IsSubagentTask(command string, toolInput any) bool {
	if strings.EqualFold(command, "task") {
		return true
	}
	return hasSubagentType(toolInput)
}

func hasSubagentType(toolInput any) bool {
	input := claudecode.Object(toolInput)
	if input == nil {
		return false
	}
	_, snake := input["subagent_type"]
	_, camel := input["subagentType"]
	return snake || camel
}

// CollapseSubagentOutput replaces a subagent's output with a pointer to its
// own thread.
func CollapseSubagentOutput(output, command string, toolInput any, line claudecode.Line) string {
	agentID := SubagentID(line)
	if command != "Task" && !hasSubagentType(toolInput) && agentID == "" {
		return output
	}
	if agentID == "" {
		return "Subagent output is available in its thread."
	}
	return fmt.Sprintf("Subagent %s output is available in its thread.", agentID)
}

// NormalizeQuestions converts AskUserQuestion input into the question list
// sent with item/tool/requestUserInput. The first question uses the tool id;
// later ones append their index.
func NormalizeQuestions(toolID string, toolInput any) []map[string]any {
	input := claudecode.Object(toolInput)
	raw, ok := input["questions"].([]any)
	if !ok {
		return []map[string]any{{
			"id":       toolID,
			"header":   DefaultQuestionHeader,
			"question": claudecode.String(input, "question"),
		}}
	}

	questions := make([]map[string]any, 0, len(raw))
	for idx, entry := range raw {
		q := claudecode.Object(entry)
		id := toolID
		if idx > 0 {
			id = fmt.Sprintf("%s-%d", toolID, idx)
		}
		header, ok := q["header"].(string)
		if !ok {
			header = DefaultQuestionHeader
		}
		questions = append(questions, map[string]any{
			"id":       id,
			"header":   header,
			"question": claudecode.String(q, "question"),
			"options":  q["options"],
		})
	}
	return questions
}
