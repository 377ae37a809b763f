// Package claudecode provides types and helpers for the Claude Code CLI
// stream-json protocol spoken over the CLI's stdin and stdout.
package claudecode

// Message types from Claude Code CLI
const (
	// MessageTypeSystem is the initial system message with session info
	MessageTypeSystem = "system"
	// MessageTypeAssistant contains text, thinking or tool use from the assistant
	MessageTypeAssistant = "assistant"
	// MessageTypeUser is a user message; on stdout it carries tool results
	MessageTypeUser = "user"
	// MessageTypeResult is the final message of a turn
	MessageTypeResult = "result"
)

// SubtypeInit marks the system message emitted once per process start.
const SubtypeInit = "init"

// Content block types
const (
	BlockText       = "text"
	BlockThinking   = "thinking"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
	BlockImage      = "image"
)

// AskUserQuestionTool is the tool the agent uses to ask the user something.
const AskUserQuestionTool = "AskUserQuestion"

// RoleUser is the role of messages written to stdin.
const RoleUser = "user"

// UserMessage is sent to provide a prompt or tool result to Claude Code.
type UserMessage struct {
	Type    string          `json:"type"` // "user"
	Message UserMessageBody `json:"message"`
}

// UserMessageBody contains the user message content.
// Content is either a string or a list of content blocks.
type UserMessageBody struct {
	Role    string `json:"role"` // "user"
	Content any    `json:"content"`
}

// ToolResultBlock answers a tool_use block by id.
type ToolResultBlock struct {
	Type      string `json:"type"` // "tool_result"
	ToolUseID string `json:"tool_use_id"`
	Content   any    `json:"content"`
}
