package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/siddartha-10/ClaudeCodeMonitor/internal/claude/launcher"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/claude/translator"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/common/tracing"
)

// EnsureOptions is the configuration a thread's process must run with.
type EnsureOptions struct {
	Model      string
	AccessMode string
	// MaxThinkingTokens defaults to the workspace budget.
	MaxThinkingTokens int
}

// EnsurePersistentSession makes sure a process with the requested model and
// permission mode serves the thread, restarting it with --resume when either
// changed, and returns a fresh turn id for the next message.
func (s *WorkspaceSession) EnsurePersistentSession(ctx context.Context, threadID string, opts EnsureOptions) (string, error) {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	mode := NormalizePermissionMode(opts.AccessMode)
	model := NormalizeModel(opts.Model)

	s.mu.Lock()
	existing, ok := s.persistent[threadID]
	var currentMode, currentModel string
	if ok {
		currentMode, currentModel = existing.permissionMode, existing.model
	}
	s.mu.Unlock()

	if currentMode == "" {
		currentMode = PermissionDefault
	}

	switch {
	case !ok:
		if err := s.spawn(ctx, threadID, opts, mode, model); err != nil {
			return "", err
		}
	case currentMode != mode || currentModel != model:
		s.logger.Info("restarting session with new configuration",
			zap.String("thread_id", threadID),
			zap.String("permission_mode", mode),
			zap.String("previous_permission_mode", currentMode),
			zap.String("model", model),
			zap.String("previous_model", currentModel))
		if err := s.KillPersistentSession(threadID); err != nil {
			s.logger.Warn("failed to kill session before restart",
				zap.String("thread_id", threadID),
				zap.Error(err))
		}
		if err := s.spawn(ctx, threadID, opts, mode, model); err != nil {
			return "", err
		}
	}
	return s.newID(), nil
}

// spawn starts a persistent process for the thread and its reader
// goroutines.
func (s *WorkspaceSession) spawn(ctx context.Context, threadID string, opts EnsureOptions, mode, model string) (err error) {
	resume := s.history != nil && s.history.SessionExists(s.path, threadID)
	ctx, span := tracing.TraceSpawn(ctx, s.workspaceID, threadID, resume)
	defer func() {
		tracing.RecordResult(span, err)
		span.End()
	}()

	budget := opts.MaxThinkingTokens
	if budget <= 0 {
		budget = s.maxThinkingTokens
	}
	args := launcher.PersistentArgs(launcher.SpawnOptions{
		ThreadID:          threadID,
		Model:             model,
		PermissionMode:    PermissionModeArg(opts.AccessMode),
		MaxThinkingTokens: budget,
		Resume:            resume,
	})

	// The process outlives the request that started it.
	pipes, startErr := s.start(context.WithoutCancel(ctx), s.ClaudeBin(), s.path, args)
	if startErr != nil {
		s.logger.Error("failed to spawn claude",
			zap.String("thread_id", threadID),
			zap.Error(startErr))
		return spawnError(startErr)
	}

	sess := s.SetPersistentSession(threadID, pipes.Stdin, pipes.Process, mode, model)
	s.logger.Info("spawned persistent session",
		zap.String("thread_id", threadID),
		zap.Int("pid", pipes.Process.Pid()),
		zap.Bool("resume", resume),
		zap.String("permission_mode", mode),
		zap.String("model", model))

	tr := translator.New(translator.Config{
		WorkspaceID: s.workspaceID,
		ThreadID:    threadID,
		Sink:        s.sink,
		Turns:       sessionTurns{ws: s, sess: sess},
		RequestIDs:  s.nextRequestID,
	}, s.baseLogger)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		tr.RunStdout(pipes.Stdout)
	}()
	go func() {
		defer wg.Done()
		tr.RunStderr(pipes.Stderr, func() {
			if s.removeIfCurrent(threadID, sess) {
				_ = s.terminate(sess)
			}
		})
	}()
	go func() {
		wg.Wait()
		waitErr := pipes.Process.Wait()
		s.logger.Debug("persistent session exited",
			zap.String("thread_id", threadID),
			zap.Error(waitErr))
	}()
	return nil
}

// StartTurn ensures the thread's process, hands it the turn id and writes
// the prompt.
func (s *WorkspaceSession) StartTurn(ctx context.Context, threadID string, prompt string, opts EnsureOptions) (TurnRef, error) {
	turnID, err := s.EnsurePersistentSession(ctx, threadID, opts)
	if err != nil {
		return TurnRef{}, err
	}
	s.SetPendingTurnID(threadID, turnID)
	if err := s.SendMessage(threadID, prompt); err != nil {
		return TurnRef{}, err
	}
	return TurnRef{ID: turnID, ThreadID: threadID}, nil
}

// RespondToToolUse sends the answer to a pending tool use, such as a
// question put to the user.
func (s *WorkspaceSession) RespondToToolUse(threadID, toolUseID string, result any) error {
	return s.SendResponse(threadID, toolUseID, result)
}
