// Package events provides the normalized event vocabulary emitted while a
// claude process runs, and the sinks that carry it to subscribers.
package events

// Event methods for session lifecycle
const (
	SessionInitialized = "session/initialized"
)

// Event methods for turns
const (
	TurnStarted          = "turn/started"
	TurnCompleted        = "turn/completed"
	TurnPermissionDenied = "turn/permissionDenied"
)

// Event methods for items
const (
	ItemStarted              = "item/started"
	ItemCompleted            = "item/completed"
	ItemAgentMessageDelta    = "item/agentMessage/delta"
	ItemToolRequestUserInput = "item/tool/requestUserInput"
)

// Event methods for thread metadata
const (
	ThreadTokenUsageUpdated = "thread/tokenUsage/updated"
)

// Event methods for workspaces
const (
	ClaudeConnected = "claude/connected"
)

// Event methods for diagnostics
const (
	ClaudeStderr = "claude/stderr"
	Error        = "error"
)

// AppServerEventMethod is the notification method used on the wire.
const AppServerEventMethod = "app-server-event"

// SubjectPrefix is the bus subject prefix; events for a workspace are
// published to SubjectPrefix + workspaceID.
const SubjectPrefix = "claude.events."

// AllSubjects matches every workspace's events.
const AllSubjects = SubjectPrefix + ">"

// Subject returns the bus subject for a workspace.
func Subject(workspaceID string) string {
	return SubjectPrefix + workspaceID
}

// Message is one normalized event. ID is set only for server-initiated
// requests that expect a response, such as user-input questions.
type Message struct {
	ID     *int64         `json:"id,omitempty"`
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

// AppServerEvent is a Message scoped to the workspace that produced it.
type AppServerEvent struct {
	WorkspaceID string  `json:"workspace_id"`
	Message     Message `json:"message"`
}
