package monitor

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/siddartha-10/ClaudeCodeMonitor/internal/claude/session"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/common/config"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/common/constants"
	apperrors "github.com/siddartha-10/ClaudeCodeMonitor/internal/common/errors"
)

// UserMessage is a message typed by the user.
type UserMessage struct {
	ThreadID   string
	Text       string
	Model      string
	Effort     string
	AccessMode string
	Images     []string
}

// TurnResult wraps the turn a message started.
type TurnResult struct {
	Result struct {
		Turn session.TurnRef `json:"turn"`
	} `json:"result"`
}

func newTurnResult(ref session.TurnRef) *TurnResult {
	res := &TurnResult{}
	res.Result.Turn = ref
	return res
}

// ReviewTarget selects what StartReview reviews.
type ReviewTarget struct {
	Type         string `json:"type"`
	Instructions string `json:"instructions,omitempty"`
	Branch       string `json:"branch,omitempty"`
	SHA          string `json:"sha,omitempty"`
}

// BuildPromptWithImages appends attached image paths to the text.
func BuildPromptWithImages(text string, images []string) string {
	prompt := strings.TrimSpace(text)
	var lines []string
	for _, image := range images {
		if trimmed := strings.TrimSpace(image); trimmed != "" {
			lines = append(lines, "[image] "+trimmed)
		}
	}
	if len(lines) == 0 {
		return prompt
	}
	if prompt != "" {
		prompt += "\n\n"
	}
	return prompt + "Attached images:\n" + strings.Join(lines, "\n")
}

// SendUserMessage starts a turn on the thread.
func (s *Service) SendUserMessage(ctx context.Context, workspaceID string, msg UserMessage) (*TurnResult, error) {
	ws, err := s.session(workspaceID)
	if err != nil {
		return nil, err
	}
	prompt := BuildPromptWithImages(msg.Text, msg.Images)
	if strings.TrimSpace(prompt) == "" {
		return nil, apperrors.InvalidParams("empty user message")
	}
	// Effort has no CLI equivalent; the thinking budget stays the workspace default.
	opts := session.EnsureOptions{Model: msg.Model, AccessMode: msg.AccessMode}
	ref, err := s.startTurn(ctx, ws, msg.ThreadID, prompt, opts)
	if err != nil {
		return nil, err
	}
	return newTurnResult(ref), nil
}

func (s *Service) startTurn(ctx context.Context, ws *session.WorkspaceSession, threadID, prompt string, opts session.EnsureOptions) (session.TurnRef, error) {
	if s.opts.TurnMode == config.TurnModeOneShot {
		return ws.StartOneShotTurn(ctx, threadID, prompt, opts)
	}
	return ws.StartTurn(ctx, threadID, prompt, opts)
}

// TurnInterrupt stops the thread's running turn.
func (s *Service) TurnInterrupt(_ context.Context, workspaceID, threadID, turnID string) (*OK, error) {
	ws, err := s.session(workspaceID)
	if err != nil {
		return nil, err
	}
	if err := ws.InterruptTurn(threadID, turnID); err != nil {
		return nil, apperrors.ProcessIO("failed to interrupt turn", err)
	}
	return &OK{OK: true}, nil
}

// StartReview asks claude to review changes in the workspace with read-only
// tools.
func (s *Service) StartReview(ctx context.Context, workspaceID, threadID string, target ReviewTarget, delivery string) (*TurnResult, error) {
	ws, err := s.session(workspaceID)
	if err != nil {
		return nil, err
	}
	prompt, err := s.buildReviewPrompt(ctx, ws.Path(), target)
	if err != nil {
		return nil, err
	}
	if delivery = strings.TrimSpace(delivery); delivery != "" {
		prompt = fmt.Sprintf("%s\n\nDelivery preference: %s.", prompt, delivery)
	}
	ref, err := s.startTurn(ctx, ws, threadID, prompt, session.EnsureOptions{AccessMode: session.AccessReadOnly})
	if err != nil {
		return nil, err
	}
	return newTurnResult(ref), nil
}

func (s *Service) buildReviewPrompt(ctx context.Context, dir string, target ReviewTarget) (string, error) {
	if target.Type == "custom" {
		if strings.TrimSpace(target.Instructions) == "" {
			return "", apperrors.InvalidParams("Review instructions are empty")
		}
		return target.Instructions, nil
	}

	ctx, cancel := context.WithTimeout(ctx, constants.DiffTimeout)
	defer cancel()

	root, err := s.git(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	root = strings.TrimSpace(root)
	if root == "" {
		return "", apperrors.ProcessIO("Unable to resolve git root", nil)
	}
	diff, err := s.git(ctx, root, "diff", "--cached")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(diff) == "" {
		if diff, err = s.git(ctx, root, "diff"); err != nil {
			return "", err
		}
	}
	if strings.TrimSpace(diff) == "" {
		return "", apperrors.InvalidParams("No changes to review")
	}

	var b strings.Builder
	b.WriteString("Review the following changes and provide concise feedback:\n\n")
	switch {
	case target.Type == "baseBranch" && target.Branch != "":
		fmt.Fprintf(&b, "Review changes against base branch %s.\n\n", target.Branch)
	case target.Type == "commit" && target.SHA != "":
		fmt.Fprintf(&b, "Review commit %s.\n\n", target.SHA)
	}
	b.WriteString(diff)
	return b.String(), nil
}

// runGit runs git in dir and returns its stdout.
func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if ctx.Err() == context.DeadlineExceeded {
		return "", apperrors.Timeout("git timed out", ctx.Err())
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if detail := strings.TrimSpace(string(exitErr.Stderr)); detail != "" {
				return "", apperrors.ProcessIO(detail, nil)
			}
		}
		return "", apperrors.ProcessIO("git failed", err)
	}
	return string(out), nil
}

// RespondToServerRequest answers a question claude put to the user. The
// tool use is taken from the params when given, otherwise from the request
// the id was issued for. Unknown requests are acknowledged and dropped.
func (s *Service) RespondToServerRequest(_ context.Context, workspaceID string, requestID int64, threadID, toolUseID string, result any) (*OK, error) {
	ws, err := s.session(workspaceID)
	if err != nil {
		return nil, err
	}
	if pending, ok := s.requests.take(workspaceID, requestID); ok {
		if threadID == "" {
			threadID = pending.threadID
		}
		if toolUseID == "" {
			toolUseID = pending.toolUseID
		}
	}
	if threadID == "" || toolUseID == "" {
		s.logger.Debug("dropping response to unknown request",
			zap.String("workspace_id", workspaceID),
			zap.Int64("request_id", requestID))
		return &OK{OK: true}, nil
	}
	if err := ws.RespondToToolUse(threadID, toolUseID, result); err != nil {
		return nil, err
	}
	return &OK{OK: true}, nil
}
