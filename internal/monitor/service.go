// Package monitor implements the command surface shared by the daemon and
// the websocket gateway: workspace registry, thread history, turns and the
// static catalogs a client asks for.
package monitor

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/siddartha-10/ClaudeCodeMonitor/internal/claude/history"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/claude/launcher"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/claude/session"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/common/config"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/common/constants"
	apperrors "github.com/siddartha-10/ClaudeCodeMonitor/internal/common/errors"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/common/logger"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/events"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/workspace"
)

// Options configures a Service.
type Options struct {
	// ClaudeBin is used by workspaces without their own override.
	ClaudeBin         string
	MaxThinkingTokens int
	TurnMode          string
	VersionTimeout    time.Duration
}

// OptionsFromConfig extracts the service options from the loaded config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ClaudeBin:         cfg.Claude.Bin,
		MaxThinkingTokens: cfg.Claude.MaxThinkingTokens,
		TurnMode:          cfg.Claude.TurnMode,
		VersionTimeout:    cfg.Claude.VersionTimeoutDuration(),
	}
}

// Service owns the connected workspaces and their sessions.
type Service struct {
	store    workspace.Repository
	history  *history.Reader
	sink     events.Sink
	requests *requestTracker
	opts     Options
	logger   *logger.Logger

	mu       sync.Mutex
	sessions map[string]*session.WorkspaceSession

	// settingsMu serializes read-modify-write of claude settings files.
	settingsMu sync.Mutex

	start      session.Starter
	probe      func(ctx context.Context, bin string) (string, error)
	promptOnce func(ctx context.Context, bin, dir string, opts launcher.PromptOptions) (string, error)
	git        func(ctx context.Context, dir string, args ...string) (string, error)
	now        func() time.Time
	newID      func() string
}

// NewService creates a Service emitting session events to sink.
func NewService(store workspace.Repository, reader *history.Reader, sink events.Sink, opts Options, log *logger.Logger) *Service {
	if opts.VersionTimeout <= 0 {
		opts.VersionTimeout = constants.VersionProbeTimeout
	}
	if opts.TurnMode == "" {
		opts.TurnMode = config.TurnModePersistent
	}
	requests := newRequestTracker(sink)
	s := &Service{
		store:      store,
		history:    reader,
		sink:       requests,
		requests:   requests,
		opts:       opts,
		logger:     log.WithFields(zap.String("component", "monitor")),
		sessions:   make(map[string]*session.WorkspaceSession),
		start:      session.ExecStarter,
		promptOnce: launcher.RunPromptOnce,
		git:        runGit,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	s.probe = func(ctx context.Context, bin string) (string, error) {
		return launcher.CheckInstallation(ctx, bin, s.opts.VersionTimeout)
	}
	return s
}

// resolveBin picks the workspace override, then the configured default.
func (s *Service) resolveBin(entry *workspace.Entry) string {
	if bin := strings.TrimSpace(entry.Bin()); bin != "" {
		return bin
	}
	return s.opts.ClaudeBin
}

// session returns the connected workspace's session manager.
func (s *Service) session(workspaceID string) (*session.WorkspaceSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws, ok := s.sessions[workspaceID]
	if !ok {
		return nil, apperrors.NotFound("workspace not connected")
	}
	return ws, nil
}

func (s *Service) isConnected(workspaceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[workspaceID]
	return ok
}

// disconnect kills and forgets the workspace's processes.
func (s *Service) disconnect(workspaceID string) {
	s.mu.Lock()
	ws, ok := s.sessions[workspaceID]
	delete(s.sessions, workspaceID)
	s.mu.Unlock()
	if ok {
		ws.Close()
	}
}

func (s *Service) emit(workspaceID, method string, params map[string]any) {
	s.sink.EmitAppServerEvent(events.AppServerEvent{
		WorkspaceID: workspaceID,
		Message:     events.Message{Method: method, Params: params},
	})
}

// Close kills every process of every connected workspace.
func (s *Service) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*session.WorkspaceSession)
	s.mu.Unlock()

	for id, ws := range sessions {
		s.logger.Debug("closing workspace session", zap.String("workspace_id", id))
		ws.Close()
	}
}

// OK is the result of commands that only acknowledge.
type OK struct {
	OK bool `json:"ok"`
}

// requestTracker remembers which tool use each server request was issued
// for, so an answer can be routed back to the right process.
type requestTracker struct {
	next events.Sink

	mu      sync.Mutex
	pending map[requestKey]pendingRequest
}

type requestKey struct {
	workspaceID string
	id          int64
}

type pendingRequest struct {
	threadID  string
	toolUseID string
}

func newRequestTracker(next events.Sink) *requestTracker {
	return &requestTracker{next: next, pending: make(map[requestKey]pendingRequest)}
}

// EmitAppServerEvent implements events.Sink.
func (r *requestTracker) EmitAppServerEvent(event events.AppServerEvent) {
	msg := event.Message
	if msg.ID != nil && msg.Method == events.ItemToolRequestUserInput {
		threadID, _ := msg.Params["threadId"].(string)
		toolUseID, _ := msg.Params["toolUseId"].(string)
		if threadID != "" && toolUseID != "" {
			r.mu.Lock()
			r.pending[requestKey{event.WorkspaceID, *msg.ID}] = pendingRequest{threadID: threadID, toolUseID: toolUseID}
			r.mu.Unlock()
		}
	}
	if r.next != nil {
		r.next.EmitAppServerEvent(event)
	}
}

// take consumes the tool use a request was issued for.
func (r *requestTracker) take(workspaceID string, id int64) (pendingRequest, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := requestKey{workspaceID, id}
	req, ok := r.pending[key]
	if ok {
		delete(r.pending, key)
	}
	return req, ok
}

func (r *requestTracker) forget(workspaceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.pending {
		if key.workspaceID == workspaceID {
			delete(r.pending, key)
		}
	}
}
