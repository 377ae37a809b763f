// Package session manages the claude processes behind a workspace's threads:
// one long-lived stream-json process per thread, restarted when the model or
// permission mode changes, plus the legacy one-process-per-turn runner.
package session

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/siddartha-10/ClaudeCodeMonitor/internal/common/constants"
	apperrors "github.com/siddartha-10/ClaudeCodeMonitor/internal/common/errors"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/common/logger"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/events"
	"github.com/siddartha-10/ClaudeCodeMonitor/pkg/claudecode"
)

// SessionLocator reports whether the CLI already has a log for a session.
type SessionLocator interface {
	SessionExists(workspacePath, sessionID string) bool
}

// Config describes the workspace a WorkspaceSession runs processes for.
type Config struct {
	WorkspaceID       string
	Path              string
	ClaudeBin         string
	MaxThinkingTokens int
	Sink              events.Sink
	// History decides between --resume and --session-id. Nil always starts
	// a new session.
	History SessionLocator
	// Start defaults to ExecStarter.
	Start Starter
}

// PersistentSession is the long-lived process serving one thread.
type PersistentSession struct {
	stdin          *claudecode.Writer
	proc           Process
	permissionMode string
	model          string
	pendingTurnID  string
	hasPending     bool
}

// ActiveTurn is a per-turn process started by the legacy runner.
type ActiveTurn struct {
	TurnID  string
	Process Process
}

// TurnRef identifies a started turn.
type TurnRef struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

// WorkspaceSession owns every claude process of one connected workspace.
type WorkspaceSession struct {
	workspaceID       string
	path              string
	maxThinkingTokens int
	sink              events.Sink
	history           SessionLocator
	start             Starter
	logger            *logger.Logger
	baseLogger        *logger.Logger
	newID             func() string

	// requestIDs numbers server requests across all of the workspace's
	// processes, so an answer routed by id reaches the right thread.
	requestIDs atomic.Int64

	// initMu serializes EnsurePersistentSession so concurrent messages for a
	// thread cannot both spawn.
	initMu sync.Mutex

	mu         sync.Mutex
	claudeBin  string
	persistent map[string]*PersistentSession

	activeMu sync.Mutex
	active   map[string]*ActiveTurn
}

// NewWorkspaceSession creates the session manager for a workspace.
func NewWorkspaceSession(cfg Config, log *logger.Logger) *WorkspaceSession {
	start := cfg.Start
	if start == nil {
		start = ExecStarter
	}
	budget := cfg.MaxThinkingTokens
	if budget <= 0 {
		budget = constants.DefaultMaxThinkingTokens
	}
	return &WorkspaceSession{
		workspaceID:       cfg.WorkspaceID,
		path:              cfg.Path,
		claudeBin:         cfg.ClaudeBin,
		maxThinkingTokens: budget,
		sink:              cfg.Sink,
		history:           cfg.History,
		start:             start,
		logger: log.WithFields(
			zap.String("component", "workspace-session"),
			zap.String("workspace_id", cfg.WorkspaceID),
		),
		baseLogger: log,
		newID:      uuid.NewString,
		persistent: make(map[string]*PersistentSession),
		active:     make(map[string]*ActiveTurn),
	}
}

// WorkspaceID returns the id of the owning workspace.
func (s *WorkspaceSession) WorkspaceID() string {
	return s.workspaceID
}

// Path returns the workspace root processes run in.
func (s *WorkspaceSession) Path() string {
	return s.path
}

// ClaudeBin returns the binary used for new processes.
func (s *WorkspaceSession) ClaudeBin() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claudeBin
}

// SetClaudeBin changes the binary used for processes spawned from now on.
func (s *WorkspaceSession) SetClaudeBin(bin string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claudeBin = bin
}

// HasPersistentSession reports whether a process serves the thread.
func (s *WorkspaceSession) HasPersistentSession(threadID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.persistent[threadID]
	return ok
}

// SetPersistentSession stores a process for the thread, killing any process
// it replaces.
func (s *WorkspaceSession) SetPersistentSession(threadID string, stdin io.WriteCloser, proc Process, permissionMode, model string) *PersistentSession {
	sess := &PersistentSession{
		stdin:          claudecode.NewWriter(stdin),
		proc:           proc,
		permissionMode: permissionMode,
		model:          model,
	}
	s.mu.Lock()
	previous := s.persistent[threadID]
	s.persistent[threadID] = sess
	s.mu.Unlock()

	if previous != nil {
		if err := s.terminate(previous); err != nil {
			s.logger.Warn("failed to kill replaced session",
				zap.String("thread_id", threadID),
				zap.Error(err))
		}
	}
	return sess
}

// PersistentPermissionMode returns the permission mode the thread's process
// was started with.
func (s *WorkspaceSession) PersistentPermissionMode(threadID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.persistent[threadID]
	if !ok {
		return "", false
	}
	return sess.permissionMode, true
}

// PersistentModel returns the model the thread's process was started with.
func (s *WorkspaceSession) PersistentModel(threadID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.persistent[threadID]
	if !ok {
		return "", false
	}
	return sess.model, true
}

// SetPendingTurnID stores the id the next turn/started for the thread must
// carry. A later call overwrites an untaken id.
func (s *WorkspaceSession) SetPendingTurnID(threadID, turnID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.persistent[threadID]; ok {
		sess.pendingTurnID = turnID
		sess.hasPending = true
	}
}

// TakePendingTurnID consumes the pending turn id.
func (s *WorkspaceSession) TakePendingTurnID(threadID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return takePending(s.persistent[threadID])
}

// takePendingFor consumes the pending turn id only while sess still serves
// the thread.
func (s *WorkspaceSession) takePendingFor(threadID string, sess *PersistentSession) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.persistent[threadID] != sess {
		return "", false
	}
	return takePending(sess)
}

func takePending(sess *PersistentSession) (string, bool) {
	if sess == nil || !sess.hasPending {
		return "", false
	}
	id := sess.pendingTurnID
	sess.pendingTurnID = ""
	sess.hasPending = false
	return id, true
}

// sessionTurns is the turn source of one process. A replaced process still
// draining stdout gets no id, so its successor's turn keeps the id the
// caller was given.
type sessionTurns struct {
	ws   *WorkspaceSession
	sess *PersistentSession
}

func (t sessionTurns) TakePendingTurnID(threadID string) (string, bool) {
	return t.ws.takePendingFor(threadID, t.sess)
}

func (s *WorkspaceSession) nextRequestID() int64 {
	return s.requestIDs.Add(1)
}

func (s *WorkspaceSession) lookup(threadID string) (*PersistentSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.persistent[threadID]
	if !ok {
		return nil, apperrors.NotFound("session not found")
	}
	return sess, nil
}

// SendMessage writes a user message to the thread's process.
func (s *WorkspaceSession) SendMessage(threadID string, content any) error {
	sess, err := s.lookup(threadID)
	if err != nil {
		return err
	}
	if err := sess.stdin.SendUserMessage(content); err != nil {
		return apperrors.ProcessIO("failed to write to claude", err)
	}
	return nil
}

// SendResponse answers a tool use with a tool_result block.
func (s *WorkspaceSession) SendResponse(threadID, toolUseID string, result any) error {
	sess, err := s.lookup(threadID)
	if err != nil {
		return err
	}
	if err := sess.stdin.SendToolResult(toolUseID, result); err != nil {
		return apperrors.ProcessIO("failed to write to claude", err)
	}
	return nil
}

// KillPersistentSession removes and kills the thread's process. A thread
// without one is a no-op.
func (s *WorkspaceSession) KillPersistentSession(threadID string) error {
	s.mu.Lock()
	sess, ok := s.persistent[threadID]
	delete(s.persistent, threadID)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	s.logger.Debug("killing persistent session", zap.String("thread_id", threadID))
	return s.terminate(sess)
}

// KillAllPersistentSessions kills every thread's process, ignoring errors.
func (s *WorkspaceSession) KillAllPersistentSessions() {
	s.mu.Lock()
	sessions := s.persistent
	s.persistent = make(map[string]*PersistentSession)
	s.mu.Unlock()

	for threadID, sess := range sessions {
		if err := s.terminate(sess); err != nil {
			s.logger.Debug("kill failed during shutdown",
				zap.String("thread_id", threadID),
				zap.Error(err))
		}
	}
}

// removeIfCurrent drops the thread's entry only if it is still sess, so a
// replaced process cannot evict its successor.
func (s *WorkspaceSession) removeIfCurrent(threadID string, sess *PersistentSession) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.persistent[threadID] != sess {
		return false
	}
	delete(s.persistent, threadID)
	return true
}

// terminate flushes buffered input, then kills the process.
func (s *WorkspaceSession) terminate(sess *PersistentSession) error {
	_ = sess.stdin.Flush()
	err := sess.proc.Kill()
	_ = sess.stdin.Close()
	return err
}

// TrackTurn records the process running a legacy turn.
func (s *WorkspaceSession) TrackTurn(threadID, turnID string, proc Process) {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	s.active[threadID] = &ActiveTurn{TurnID: turnID, Process: proc}
}

// ClearTurn forgets a legacy turn if it is still the thread's active one.
func (s *WorkspaceSession) ClearTurn(threadID, turnID string) {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	if turn, ok := s.active[threadID]; ok && turn.TurnID == turnID {
		delete(s.active, threadID)
	}
}

// ActiveTurnID returns the thread's legacy turn id, if one is running.
func (s *WorkspaceSession) ActiveTurnID(threadID string) (string, bool) {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	turn, ok := s.active[threadID]
	if !ok {
		return "", false
	}
	return turn.TurnID, true
}

// InterruptTurn stops a turn. A legacy turn is killed only when the id
// matches; otherwise it has already finished. Without a legacy turn the
// thread's persistent process is killed, since the CLI has no cancel
// message. Interrupting something already gone succeeds.
func (s *WorkspaceSession) InterruptTurn(threadID, turnID string) error {
	s.activeMu.Lock()
	turn, ok := s.active[threadID]
	if ok {
		if turn.TurnID != turnID {
			s.activeMu.Unlock()
			return nil
		}
		delete(s.active, threadID)
	}
	s.activeMu.Unlock()

	if ok {
		s.logger.Info("interrupting turn",
			zap.String("thread_id", threadID),
			zap.String("turn_id", turnID))
		return turn.Process.Kill()
	}
	return s.KillPersistentSession(threadID)
}

// Close kills every process owned by the workspace.
func (s *WorkspaceSession) Close() {
	s.activeMu.Lock()
	turns := s.active
	s.active = make(map[string]*ActiveTurn)
	s.activeMu.Unlock()
	for _, turn := range turns {
		_ = turn.Process.Kill()
	}
	s.KillAllPersistentSessions()
}
