package history

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/siddartha-10/ClaudeCodeMonitor/internal/claude/translator"
	apperrors "github.com/siddartha-10/ClaudeCodeMonitor/internal/common/errors"
	"github.com/siddartha-10/ClaudeCodeMonitor/pkg/claudecode"
)

// SubagentMarker separates a parent session id from an agent id in a
// subagent thread id.
const SubagentMarker = "::subagent::"

// Thread is a replayed session log.
type Thread struct {
	ID        string `json:"id"`
	Preview   string `json:"preview"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
	Cwd       string `json:"cwd"`
	Turns     []Turn `json:"turns"`
}

// Turn groups replayed items. A replayed log is a single turn.
type Turn struct {
	ID    string           `json:"id"`
	Items []map[string]any `json:"items"`
}

// ThreadSummary is one row of a thread listing.
type ThreadSummary struct {
	ID           string  `json:"id"`
	Preview      string  `json:"preview"`
	MessageCount int64   `json:"messageCount"`
	CreatedAt    int64   `json:"createdAt"`
	UpdatedAt    int64   `json:"updatedAt"`
	Cwd          string  `json:"cwd"`
	GitBranch    *string `json:"gitBranch"`
	ParentID     string  `json:"parentId,omitempty"`
}

// SubagentThreadID joins a parent session id and an agent id.
func SubagentThreadID(parentID, agentID string) string {
	return parentID + SubagentMarker + agentID
}

// ParseSubagentThreadID splits a subagent thread id. ok is false for plain
// session ids.
func ParseSubagentThreadID(threadID string) (parentID, agentID string, ok bool) {
	parentID, agentID, found := strings.Cut(threadID, SubagentMarker)
	if !found || parentID == "" || agentID == "" {
		return "", "", false
	}
	return parentID, agentID, true
}

func (r *Reader) subagentDir(workspacePath, parentID string) string {
	dir := r.ProjectDir(workspacePath)
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, parentID, "subagents")
}

// ListSubagentThreads returns a summary for every subagent log recorded
// under a parent session.
func (r *Reader) ListSubagentThreads(workspacePath, parentID, cwd string) []ThreadSummary {
	files := listLogFiles(r.subagentDir(workspacePath, parentID))
	threads := make([]ThreadSummary, 0, len(files))
	for _, file := range files {
		meta := r.scanMetadata(file.path)
		preview := fmt.Sprintf("Subagent %s", file.id)
		if meta.firstPrompt != nil {
			preview = *meta.firstPrompt
		}
		var count int64
		if meta.messageCount != nil {
			count = *meta.messageCount
		}
		threads = append(threads, ThreadSummary{
			ID:           SubagentThreadID(parentID, file.id),
			Preview:      preview,
			MessageCount: count,
			CreatedAt:    file.mtime,
			UpdatedAt:    file.mtime,
			Cwd:          cwd,
			GitBranch:    meta.gitBranch,
			ParentID:     parentID,
		})
	}
	return threads
}

// Summarize converts a session entry into a listing row.
func Summarize(entry SessionEntry, workspacePath string) ThreadSummary {
	createdAt, ok := ParseTimestamp(entry.Created)
	if !ok && entry.FileMtime != nil {
		createdAt = *entry.FileMtime
	}
	updatedAt, ok := ParseTimestamp(entry.Modified)
	if !ok {
		updatedAt = createdAt
		if entry.FileMtime != nil {
			updatedAt = *entry.FileMtime
		}
	}
	cwd := workspacePath
	if entry.ProjectPath != nil {
		cwd = *entry.ProjectPath
	}
	summary := ThreadSummary{
		ID:        entry.SessionID,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		Cwd:       cwd,
		GitBranch: entry.GitBranch,
	}
	if entry.FirstPrompt != nil {
		summary.Preview = *entry.FirstPrompt
	}
	if entry.MessageCount != nil {
		summary.MessageCount = *entry.MessageCount
	}
	return summary
}

// BuildThread replays a session (or subagent) log into its items. A tool's
// completed item replaces the running item with the same id.
func (r *Reader) BuildThread(workspacePath, threadID string) (*Thread, error) {
	path := r.resolveThreadPath(workspacePath, threadID)
	if path == "" {
		return nil, apperrors.NotFound("Session file not found")
	}

	b := &threadBuilder{
		threadID:   threadID,
		toolNames:  make(map[string]string),
		toolInputs: make(map[string]any),
		indices:    make(map[string]int),
	}
	if err := forEachLine(path, b.add); err != nil {
		return nil, apperrors.ProcessIO("failed to read session file", err)
	}

	thread := &Thread{
		ID:    threadID,
		Cwd:   workspacePath,
		Turns: []Turn{{ID: threadID, Items: b.items}},
	}
	if thread.Turns[0].Items == nil {
		thread.Turns[0].Items = []map[string]any{}
	}

	var indexed *SessionEntry
	for _, entry := range r.readIndex(workspacePath) {
		if entry.SessionID == threadID {
			e := entry
			indexed = &e
			break
		}
	}

	thread.CreatedAt = b.createdAt
	thread.UpdatedAt = b.createdAt
	if b.seen {
		thread.UpdatedAt = b.updatedAt
	}
	thread.Preview = b.preview
	if indexed != nil {
		if ms, ok := ParseTimestamp(indexed.Created); ok {
			thread.CreatedAt = ms
		}
		if ms, ok := ParseTimestamp(indexed.Modified); ok {
			thread.UpdatedAt = ms
		}
		if indexed.FirstPrompt != nil {
			thread.Preview = *indexed.FirstPrompt
		}
	}
	return thread, nil
}

func (r *Reader) resolveThreadPath(workspacePath, threadID string) string {
	parentID, agentID, ok := ParseSubagentThreadID(threadID)
	if !ok {
		return r.ResolveSessionPath(workspacePath, threadID)
	}
	dir := r.subagentDir(workspacePath, parentID)
	if dir == "" {
		return ""
	}
	candidate := filepath.Join(dir, agentID+sessionFileExt)
	if !fileExists(candidate) {
		return ""
	}
	return candidate
}

type threadBuilder struct {
	threadID   string
	items      []map[string]any
	toolNames  map[string]string
	toolInputs map[string]any
	indices    map[string]int
	preview    string
	seen       bool
	createdAt  int64
	updatedAt  int64
}

func (b *threadBuilder) add(line claudecode.Line) {
	kind := line.Type()
	if kind != claudecode.MessageTypeUser && kind != claudecode.MessageTypeAssistant {
		return
	}
	ts, _ := valueMillis(line["timestamp"])
	if !b.seen {
		b.createdAt = ts
		b.seen = true
	}
	b.updatedAt = ts

	message := line.Message()
	content := claudecode.NormalizeContent(message)
	messageID := line.UUID()
	if messageID == "" {
		messageID = b.threadID
	}

	if kind == claudecode.MessageTypeUser {
		b.addUser(line, content, messageID)
		return
	}
	b.addAssistant(message, content, messageID)
}

func (b *threadBuilder) addUser(line claudecode.Line, content []any, messageID string) {
	if claudecode.HasUserContent(content) {
		if b.preview == "" {
			b.preview = claudecode.TextFromContent(content)
		}
		b.items = append(b.items, map[string]any{
			"id":      messageID,
			"type":    "userMessage",
			"content": content,
		})
	}

	for _, entry := range content {
		block := claudecode.Object(entry)
		if claudecode.String(block, "type") != claudecode.BlockToolResult {
			continue
		}
		// Nested subagent results live in the subagent's own log.
		if translator.SubagentID(line) != "" {
			continue
		}
		toolUseID := claudecode.String(block, "tool_use_id", "toolUseId")
		blockContent := block["content"]
		output := translator.ToolResultOutput(blockContent)
		if strings.TrimSpace(output) == "" {
			if fallback := line.Field("toolUseResult", "tool_use_result"); fallback != nil {
				if inner, ok := claudecode.Object(fallback)["content"]; ok {
					output = translator.ToolResultOutput(inner)
				} else {
					output = translator.ToolResultOutput(fallback)
				}
			}
		}
		command, ok := b.toolNames[toolUseID]
		if !ok {
			command = "Tool"
		}
		toolInput := b.toolInputs[toolUseID]
		output = translator.CollapseSubagentOutput(output, command, toolInput, line)

		id := toolUseID
		if id == "" {
			id = fmt.Sprintf("%s-tool-result-%d", b.threadID, len(b.items))
		}
		b.put(id, translator.BuildToolItem(id, command, toolInput, translator.StatusCompleted,
			&output, translator.ToolResultValue(blockContent, line)))
	}
}

func (b *threadBuilder) addAssistant(message map[string]any, content []any, messageID string) {
	var text strings.Builder
	thinkingIndex := 0
	for _, entry := range content {
		block := claudecode.Object(entry)
		switch claudecode.String(block, "type") {
		case claudecode.BlockText:
			text.WriteString(claudecode.String(block, "text"))
		case claudecode.BlockThinking:
			thinking := strings.TrimSpace(claudecode.String(block, "thinking"))
			if thinking == "" {
				continue
			}
			b.items = append(b.items, map[string]any{
				"id":      fmt.Sprintf("%s-thinking-%d", messageID, thinkingIndex),
				"type":    translator.ItemReasoning,
				"summary": "",
				"content": thinking,
			})
			thinkingIndex++
		case claudecode.BlockToolUse:
			toolID := claudecode.String(block, "id")
			toolName, ok := block["name"].(string)
			if !ok {
				toolName = "Tool"
			}
			toolInput := block["input"]
			if toolID != "" {
				b.toolNames[toolID] = toolName
				b.toolInputs[toolID] = toolInput
			}
			id := toolID
			if id == "" {
				id = fmt.Sprintf("%s-tool-%d", b.threadID, len(b.items))
			}
			b.put(id, translator.BuildToolItem(id, toolName, toolInput, translator.StatusRunning, nil, nil))
		}
	}

	if trimmed := strings.TrimSpace(text.String()); trimmed != "" {
		var model any
		if m, ok := message["model"].(string); ok {
			model = m
		}
		b.items = append(b.items, map[string]any{
			"id":    messageID,
			"type":  translator.ItemAgentMessage,
			"text":  trimmed,
			"model": model,
		})
	}
}

// put appends an item, or replaces the earlier item with the same id.
func (b *threadBuilder) put(id string, item map[string]any) {
	if index, ok := b.indices[id]; ok {
		b.items[index] = item
		return
	}
	b.indices[id] = len(b.items)
	b.items = append(b.items, item)
}
