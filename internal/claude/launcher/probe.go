package launcher

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"time"

	apperrors "github.com/siddartha-10/ClaudeCodeMonitor/internal/common/errors"
	"github.com/siddartha-10/ClaudeCodeMonitor/pkg/claudecode"
)

// User-facing installation messages.
const (
	MsgNotFound      = "Claude Code CLI not found. Install Claude Code and ensure `claude` is on your PATH."
	MsgProbeTimeout  = "Timed out while checking Claude Code CLI. Make sure `claude --version` runs in Terminal."
	MsgStartFailed   = "Claude Code CLI failed to start. Try running `claude --version` in Terminal."
	msgStartDetailed = "Claude Code CLI failed to start: %s. Try running `claude --version` in Terminal."
)

// IsNotFound reports whether a spawn error means the binary is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}

// CheckInstallation runs `claude --version` and returns the trimmed version
// string, which may be empty. Failures carry an actionable message.
func CheckInstallation(ctx context.Context, bin string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := CommandContext(ctx, bin, "", "--version")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return "", apperrors.Timeout(MsgProbeTimeout, ctx.Err())
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			if IsNotFound(err) {
				return "", apperrors.NotFound(MsgNotFound)
			}
			return "", apperrors.ProcessIO("", err)
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = strings.TrimSpace(stdout.String())
		}
		if detail == "" {
			return "", apperrors.ProcessIO(MsgStartFailed, nil)
		}
		return "", apperrors.ProcessIO(fmt.Sprintf(msgStartDetailed, detail), nil)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// DoctorReport describes the local claude installation.
type DoctorReport struct {
	OK        bool    `json:"ok"`
	ClaudeBin *string `json:"claudeBin"`
	Version   *string `json:"version"`
	Path      *string `json:"path"`
	Details   *string `json:"details"`
}

// Doctor probes the binary and reports what it found. It never fails; probe
// errors are reported in Details.
func Doctor(ctx context.Context, bin string, timeout time.Duration) DoctorReport {
	home, _ := os.UserHomeDir()
	report := DoctorReport{}
	if strings.TrimSpace(bin) != "" {
		report.ClaudeBin = &bin
	}
	if pathEnv := BuildPathEnv(bin, os.Getenv("PATH"), home); pathEnv != "" {
		report.Path = &pathEnv
	}

	version, err := CheckInstallation(ctx, bin, timeout)
	if err != nil {
		details := apperrors.UserMessage(err)
		report.Details = &details
		return report
	}
	if version != "" {
		report.Version = &version
		report.OK = true
	}
	return report
}

// PromptOptions configures RunPromptOnce.
type PromptOptions struct {
	Prompt         string
	PermissionMode string
	Model          string
	Timeout        time.Duration
}

// PromptOnceArgs returns the arguments for a throwaway prompt that leaves no
// session log behind.
func PromptOnceArgs(opts PromptOptions) []string {
	args := []string{
		"-p", opts.Prompt,
		"--output-format", "stream-json",
		"--verbose",
		"--no-session-persistence",
	}
	if opts.PermissionMode != "" {
		args = append(args, "--permission-mode", opts.PermissionMode)
	}
	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}
	return args
}

// RunPromptOnce runs a single prompt in dir and returns the last non-empty
// assistant text, trimmed.
func RunPromptOnce(ctx context.Context, bin, dir string, opts PromptOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	cmd := CommandContext(ctx, bin, dir, PromptOnceArgs(opts)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return "", apperrors.Timeout("Claude CLI timed out", ctx.Err())
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			if IsNotFound(err) {
				return "", apperrors.NotFound(MsgNotFound)
			}
			return "", apperrors.ProcessIO("", err)
		}
		if detail := strings.TrimSpace(stderr.String()); detail != "" {
			return "", apperrors.ProcessIO(detail, nil)
		}
		return "", apperrors.ProcessIO("Claude CLI failed to run", nil)
	}
	return LastAssistantText(stdout.Bytes()), nil
}

// LastAssistantText scans stream-json output and returns the text of the
// last assistant message that had any.
func LastAssistantText(output []byte) string {
	var message string
	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line, err := claudecode.ParseLine(scanner.Bytes())
		if err != nil || line.Type() != claudecode.MessageTypeAssistant {
			continue
		}
		if text := claudecode.TextFromContent(line.Content()); text != "" {
			message = text
		}
	}
	return strings.TrimSpace(message)
}
