package session

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/siddartha-10/ClaudeCodeMonitor/internal/claude/launcher"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/claude/translator"
	apperrors "github.com/siddartha-10/ClaudeCodeMonitor/internal/common/errors"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/events"
)

// oneShotFailed is reported when a per-turn process fails without stderr.
const oneShotFailed = "Claude CLI failed to run"

type oneShotTurn struct {
	ref   TurnRef
	pipes *Pipes
	tr    *translator.Translator
}

// RunOneShotTurn answers a prompt with a process that lives for one turn,
// blocking until it exits. A failed run emits an error event and returns
// a ProcessIO error carrying the CLI's stderr.
func (s *WorkspaceSession) RunOneShotTurn(ctx context.Context, threadID, prompt string, opts EnsureOptions) (TurnRef, error) {
	turn, err := s.startOneShot(ctx, threadID, prompt, opts)
	if err != nil {
		return TurnRef{}, err
	}
	return turn.ref, s.finishOneShot(turn)
}

// StartOneShotTurn spawns the per-turn process and returns once it runs.
// The turn finishes in the background.
func (s *WorkspaceSession) StartOneShotTurn(ctx context.Context, threadID, prompt string, opts EnsureOptions) (TurnRef, error) {
	turn, err := s.startOneShot(context.WithoutCancel(ctx), threadID, prompt, opts)
	if err != nil {
		return TurnRef{}, err
	}
	go func() {
		_ = s.finishOneShot(turn)
	}()
	return turn.ref, nil
}

func (s *WorkspaceSession) startOneShot(ctx context.Context, threadID, prompt string, opts EnsureOptions) (*oneShotTurn, error) {
	resume := s.history != nil && s.history.SessionExists(s.path, threadID)
	args := launcher.OneShotArgs(launcher.OneShotOptions{
		Prompt:     prompt,
		Dir:        s.path,
		ThreadID:   threadID,
		Model:      NormalizeModel(opts.Model),
		AccessMode: strings.TrimSpace(opts.AccessMode),
		Resume:     resume,
	})
	pipes, err := s.start(ctx, s.ClaudeBin(), s.path, args)
	if err != nil {
		s.logger.Error("failed to spawn one-shot turn",
			zap.String("thread_id", threadID),
			zap.Error(err))
		return nil, spawnError(err)
	}
	// No further input; the prompt travels in the arguments.
	_ = pipes.Stdin.Close()

	ref := TurnRef{ID: s.newID(), ThreadID: threadID}
	s.TrackTurn(threadID, ref.ID, pipes.Process)

	tr := translator.New(translator.Config{
		WorkspaceID: s.workspaceID,
		ThreadID:    threadID,
		Sink:        s.sink,
		RequestIDs:  s.nextRequestID,
	}, s.baseLogger)
	tr.BeginTurn(ref.ID)

	return &oneShotTurn{ref: ref, pipes: pipes, tr: tr}, nil
}

func (s *WorkspaceSession) finishOneShot(turn *oneShotTurn) error {
	defer s.ClearTurn(turn.ref.ThreadID, turn.ref.ID)

	var stderr bytes.Buffer
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		turn.tr.RunStderr(io.TeeReader(turn.pipes.Stderr, &stderr), nil)
	}()
	turn.tr.RunStdout(turn.pipes.Stdout)
	wg.Wait()

	waitErr := turn.pipes.Process.Wait()
	if waitErr == nil {
		return nil
	}

	message := strings.TrimSpace(stderr.String())
	if message == "" {
		message = oneShotFailed
	}
	s.logger.Warn("one-shot turn failed",
		zap.String("thread_id", turn.ref.ThreadID),
		zap.String("turn_id", turn.ref.ID),
		zap.Error(waitErr))
	s.sink.EmitAppServerEvent(events.AppServerEvent{
		WorkspaceID: s.workspaceID,
		Message: events.Message{
			Method: events.Error,
			Params: map[string]any{
				"threadId":  turn.ref.ThreadID,
				"turnId":    turn.ref.ID,
				"error":     map[string]any{"message": message},
				"willRetry": false,
			},
		},
	})
	return apperrors.ProcessIO(message, waitErr)
}
