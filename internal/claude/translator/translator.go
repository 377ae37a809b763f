// Package translator turns the claude CLI's stream-json output into the
// normalized turn and item events published to an events.Sink.
//
// A Translator belongs to exactly one process. RunStdout and RunStderr each
// run on their own goroutine; turn state is only touched by RunStdout (and by
// BeginTurn before RunStdout starts).
package translator

import (
	"bufio"
	"bytes"
	"errors"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/siddartha-10/ClaudeCodeMonitor/internal/common/logger"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/events"
	"github.com/siddartha-10/ClaudeCodeMonitor/pkg/claudecode"
)

// TurnSource hands out the turn id a caller already returned for the next
// turn. A missing id makes the translator synthesize one.
type TurnSource interface {
	TakePendingTurnID(threadID string) (string, bool)
}

// Config identifies the process a Translator reads from.
type Config struct {
	WorkspaceID string
	ThreadID    string
	Sink        events.Sink
	// Turns is optional; one-shot processes start their turn with BeginTurn.
	Turns TurnSource
	// RequestIDs allocates server request ids. Ids must be unique across
	// every process answering to the same workspace; nil numbers them per
	// translator from 1.
	RequestIDs func() int64
}

// Translator holds the per-process accumulation state.
type Translator struct {
	workspaceID string
	threadID    string
	sink        events.Sink
	turns       TurnSource
	requestIDs  func() int64
	logger      *logger.Logger
	newID       func() string

	turn             turnState
	requestIDCounter int64
}

// turnState is reset at the start of every turn.
type turnState struct {
	active         bool
	id             string
	itemID         string
	fullText       string
	lastText       string
	lastUsage      any
	lastModelUsage any
	lastModel      string
	toolNames      map[string]string
	toolInputs     map[string]any
	toolCounter    int
	thinkingCount  int
	deniedIDs      map[string]bool
}

// New creates a Translator.
func New(cfg Config, log *logger.Logger) *Translator {
	return &Translator{
		workspaceID: cfg.WorkspaceID,
		threadID:    cfg.ThreadID,
		sink:        cfg.Sink,
		turns:       cfg.Turns,
		requestIDs:  cfg.RequestIDs,
		logger: log.WithFields(
			zap.String("component", "stream-translator"),
			zap.String("workspace_id", cfg.WorkspaceID),
			zap.String("thread_id", cfg.ThreadID),
		),
		newID: uuid.NewString,
	}
}

// TurnActive reports whether a turn is open.
func (t *Translator) TurnActive() bool {
	return t.turn.active
}

// BeginTurn opens a turn with a caller-chosen id. Must be called before
// RunStdout starts.
func (t *Translator) BeginTurn(turnID string) {
	t.startTurn(turnID)
}

// RunStdout reads lines until EOF or a read error. A turn still open at
// that point is completed before returning.
func (t *Translator) RunStdout(r io.Reader) {
	reader := bufio.NewReaderSize(r, 64*1024)
	for {
		data, err := reader.ReadBytes('\n')
		if len(data) > 0 {
			t.HandleLine(data)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				t.logger.Debug("stdout read ended", zap.Error(err))
			}
			break
		}
	}
	if t.turn.active {
		t.emitTurnCompleted()
		t.turn.active = false
	}
}

// HandleLine processes one stdout line. Blank and malformed lines are
// ignored.
func (t *Translator) HandleLine(data []byte) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return
	}
	line, err := claudecode.ParseLine(data)
	if err != nil {
		t.logger.Debug("skipping malformed line", zap.Error(err))
		return
	}
	// Nested subagent events are tailed from their own logs.
	if line.ParentToolUseID() != "" {
		return
	}

	switch line.Type() {
	case claudecode.MessageTypeSystem:
		if line.Subtype() == claudecode.SubtypeInit {
			t.handleInit(line)
		}
	case claudecode.MessageTypeAssistant:
		if !t.turn.active {
			id, ok := "", false
			if t.turns != nil {
				id, ok = t.turns.TakePendingTurnID(t.threadID)
			}
			if !ok || id == "" {
				id = t.newID()
			}
			t.startTurn(id)
		}
		t.handleAssistant(line)
	case claudecode.MessageTypeUser:
		t.handleToolResults(line)
	case claudecode.MessageTypeResult:
		t.handleResult(line)
	}
}

func (t *Translator) startTurn(turnID string) {
	t.turn = turnState{
		active:     true,
		id:         turnID,
		itemID:     turnID + "-assistant",
		toolNames:  make(map[string]string),
		toolInputs: make(map[string]any),
		deniedIDs:  make(map[string]bool),
	}
	t.emit(events.TurnStarted, map[string]any{
		"threadId": t.threadID,
		"turn":     t.turnRef(),
	})
	t.emit(events.ItemStarted, map[string]any{
		"threadId": t.threadID,
		"item": map[string]any{
			"id":   t.turn.itemID,
			"type": ItemAgentMessage,
			"text": "",
		},
	})
}

func (t *Translator) handleInit(line claudecode.Line) {
	sessionID := line.SessionID()
	if sessionID == "" {
		sessionID = t.threadID
	}
	var model any
	if m, ok := line["model"].(string); ok {
		model = m
	}
	var tools any
	if list, ok := line["tools"].([]any); ok {
		names := make([]string, 0, len(list))
		for _, v := range list {
			if s, ok := v.(string); ok {
				names = append(names, s)
			}
		}
		tools = names
	}
	t.emit(events.SessionInitialized, map[string]any{
		"threadId":  t.threadID,
		"sessionId": sessionID,
		"model":     model,
		"tools":     tools,
	})
}

func (t *Translator) turnRef() map[string]any {
	return map[string]any{"id": t.turn.id, "threadId": t.threadID}
}

func (t *Translator) emitTurnCompleted() {
	t.emit(events.TurnCompleted, map[string]any{
		"threadId": t.threadID,
		"turn":     t.turnRef(),
	})
}

func (t *Translator) emit(method string, params map[string]any) {
	t.sink.EmitAppServerEvent(events.AppServerEvent{
		WorkspaceID: t.workspaceID,
		Message:     events.Message{Method: method, Params: params},
	})
}

func (t *Translator) nextRequestID() int64 {
	if t.requestIDs != nil {
		return t.requestIDs()
	}
	t.requestIDCounter++
	return t.requestIDCounter
}

func (t *Translator) emitWithID(method string, id int64, params map[string]any) {
	t.sink.EmitAppServerEvent(events.AppServerEvent{
		WorkspaceID: t.workspaceID,
		Message:     events.Message{ID: &id, Method: method, Params: params},
	})
}
