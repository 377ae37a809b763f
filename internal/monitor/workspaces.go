package monitor

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/siddartha-10/ClaudeCodeMonitor/internal/claude/session"
	apperrors "github.com/siddartha-10/ClaudeCodeMonitor/internal/common/errors"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/events"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/workspace"
)

// ListWorkspaces returns every registered workspace with its connection state.
func (s *Service) ListWorkspaces(ctx context.Context) ([]workspace.Info, error) {
	entries, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	infos := make([]workspace.Info, 0, len(entries))
	for _, entry := range entries {
		infos = append(infos, workspace.Info{Entry: *entry, Connected: s.isConnected(entry.ID)})
	}
	return infos, nil
}

// AddWorkspace registers a directory and connects it.
func (s *Service) AddWorkspace(ctx context.Context, path string, claudeBin *string) (*workspace.Info, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, apperrors.MissingParam("path")
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return nil, apperrors.InvalidParams("Workspace path must be a folder.")
	}

	entry, err := s.store.Add(ctx, path, claudeBin)
	if err != nil {
		return nil, err
	}
	if err := s.connect(ctx, entry); err != nil {
		if rmErr := s.store.Remove(ctx, entry.ID); rmErr != nil {
			s.logger.Warn("failed to roll back workspace", zap.String("workspace_id", entry.ID), zap.Error(rmErr))
		}
		return nil, err
	}
	s.logger.Info("workspace added",
		zap.String("workspace_id", entry.ID),
		zap.String("path", entry.Path))
	return &workspace.Info{Entry: *entry, Connected: true}, nil
}

// ConnectWorkspace prepares the workspace for turns. Connecting twice is a
// no-op.
func (s *Service) ConnectWorkspace(ctx context.Context, workspaceID string) error {
	if s.isConnected(workspaceID) {
		return nil
	}
	entry, err := s.store.Get(ctx, workspaceID)
	if err != nil {
		return err
	}
	return s.connect(ctx, entry)
}

func (s *Service) connect(ctx context.Context, entry *workspace.Entry) error {
	bin := s.resolveBin(entry)
	if _, err := s.probe(ctx, bin); err != nil {
		return err
	}

	ws := session.NewWorkspaceSession(session.Config{
		WorkspaceID:       entry.ID,
		Path:              entry.Path,
		ClaudeBin:         bin,
		MaxThinkingTokens: s.opts.MaxThinkingTokens,
		Sink:              s.sink,
		History:           s.history,
		Start:             s.start,
	}, s.logger)

	s.mu.Lock()
	if _, ok := s.sessions[entry.ID]; ok {
		s.mu.Unlock()
		return nil
	}
	s.sessions[entry.ID] = ws
	s.mu.Unlock()

	s.emit(entry.ID, events.ClaudeConnected, map[string]any{})
	return nil
}

// RemoveWorkspace kills the workspace's processes and forgets it.
func (s *Service) RemoveWorkspace(ctx context.Context, workspaceID string) error {
	if _, err := s.store.Get(ctx, workspaceID); err != nil {
		return err
	}
	s.disconnect(workspaceID)
	s.requests.forget(workspaceID)
	if err := s.store.Remove(ctx, workspaceID); err != nil {
		return err
	}
	s.logger.Info("workspace removed", zap.String("workspace_id", workspaceID))
	return nil
}

// UpdateWorkspaceClaudeBin changes the binary override. Running processes
// keep their binary; new ones use the updated one.
func (s *Service) UpdateWorkspaceClaudeBin(ctx context.Context, workspaceID string, claudeBin *string) (*workspace.Info, error) {
	entry, err := s.store.UpdateClaudeBin(ctx, workspaceID, claudeBin)
	if err != nil {
		return nil, err
	}
	ws, err := s.session(workspaceID)
	if err == nil {
		ws.SetClaudeBin(s.resolveBin(entry))
	}
	return &workspace.Info{Entry: *entry, Connected: err == nil}, nil
}
