package session

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"

	"github.com/siddartha-10/ClaudeCodeMonitor/internal/claude/launcher"
	apperrors "github.com/siddartha-10/ClaudeCodeMonitor/internal/common/errors"
)

// Process is a running claude CLI child.
type Process interface {
	Pid() int
	// Kill terminates the process. An already exited process is not an error.
	Kill() error
	// Wait blocks until the process exits. Call it once, after the output
	// streams have been drained.
	Wait() error
}

// Pipes are the standard streams of a started process.
type Pipes struct {
	Stdin   io.WriteCloser
	Stdout  io.Reader
	Stderr  io.Reader
	Process Process
}

// Starter launches the claude binary with args in dir.
type Starter func(ctx context.Context, bin, dir string, args []string) (*Pipes, error)

// ExecStarter starts a real claude process. It is killed when ctx is done.
func ExecStarter(ctx context.Context, bin, dir string, args []string) (*Pipes, error) {
	cmd := launcher.CommandContext(ctx, bin, dir, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &Pipes{
		Stdin:   stdin,
		Stdout:  stdout,
		Stderr:  stderr,
		Process: &execProcess{cmd: cmd},
	}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Kill() error {
	err := p.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func (p *execProcess) Wait() error {
	return p.cmd.Wait()
}

// spawnError converts a start failure into the error returned to callers.
func spawnError(err error) error {
	if launcher.IsNotFound(err) {
		return apperrors.NotFound(launcher.MsgNotFound)
	}
	return apperrors.ProcessIO("failed to start claude", err)
}
