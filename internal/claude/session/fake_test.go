package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/siddartha-10/ClaudeCodeMonitor/internal/common/logger"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/events"
)

// stdinBuffer records what is written to a fake process.
type stdinBuffer struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (b *stdinBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, io.ErrClosedPipe
	}
	return b.buf.Write(p)
}

func (b *stdinBuffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *stdinBuffer) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *stdinBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	text := strings.TrimSpace(b.buf.String())
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

type fakeProcess struct {
	pid     int
	stdin   *stdinBuffer
	stdout  *io.PipeWriter
	stderr  *io.PipeWriter
	kills   atomic.Int32
	exitErr error
	done    chan struct{}
	once    sync.Once
}

func (p *fakeProcess) Pid() int { return p.pid }

func (p *fakeProcess) Kill() error {
	p.kills.Add(1)
	p.exit(errors.New("signal: killed"))
	return nil
}

func (p *fakeProcess) Wait() error {
	<-p.done
	return p.exitErr
}

// exit closes the output streams and releases Wait.
func (p *fakeProcess) exit(err error) {
	p.once.Do(func() {
		p.exitErr = err
		if p.stdout != nil {
			_ = p.stdout.Close()
			_ = p.stderr.Close()
		}
		close(p.done)
	})
}

func (p *fakeProcess) emit(t *testing.T, lines ...string) {
	t.Helper()
	for _, line := range lines {
		if _, err := io.WriteString(p.stdout, line+"\n"); err != nil {
			t.Fatalf("write stdout: %v", err)
		}
	}
}

func (p *fakeProcess) emitStderr(t *testing.T, text string) {
	t.Helper()
	if _, err := io.WriteString(p.stderr, text+"\n"); err != nil {
		t.Fatalf("write stderr: %v", err)
	}
}

type startCall struct {
	bin  string
	dir  string
	args []string
}

// fakeStarter hands out fake processes and records every start.
type fakeStarter struct {
	mu    sync.Mutex
	calls []startCall
	procs []*fakeProcess
	err   error
	// onStart runs on its own goroutine for each new process.
	onStart func(p *fakeProcess)
}

func (f *fakeStarter) Start(_ context.Context, bin, dir string, args []string) (*Pipes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, startCall{bin: bin, dir: dir, args: args})
	if f.err != nil {
		return nil, f.err
	}
	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	proc := &fakeProcess{
		pid:    1000 + len(f.procs),
		stdin:  &stdinBuffer{},
		stdout: stdoutW,
		stderr: stderrW,
		done:   make(chan struct{}),
	}
	f.procs = append(f.procs, proc)
	if f.onStart != nil {
		go f.onStart(proc)
	}
	return &Pipes{Stdin: proc.stdin, Stdout: stdoutR, Stderr: stderrR, Process: proc}, nil
}

func (f *fakeStarter) Calls() []startCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]startCall(nil), f.calls...)
}

func (f *fakeStarter) Proc(i int) *fakeProcess {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.procs[i]
}

type fakeHistory struct {
	mu       sync.Mutex
	existing map[string]bool
}

func (h *fakeHistory) SessionExists(_, sessionID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.existing[sessionID]
}

func (h *fakeHistory) add(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.existing == nil {
		h.existing = make(map[string]bool)
	}
	h.existing[sessionID] = true
}

func newTestSession(t *testing.T, starter *fakeStarter, history SessionLocator) (*WorkspaceSession, *events.Recorder) {
	t.Helper()
	rec := events.NewRecorder()
	s := NewWorkspaceSession(Config{
		WorkspaceID: "ws-1",
		Path:        "/work/repo",
		ClaudeBin:   "/opt/claude/bin/claude",
		Sink:        rec,
		History:     history,
		Start:       starter.Start,
	}, logger.NewNop())
	n := 0
	s.newID = func() string {
		n++
		return "turn-" + string(rune('0'+n))
	}
	t.Cleanup(s.Close)
	return s, rec
}

func hasArg(args []string, flag, value string) bool {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag && args[i+1] == value {
			return true
		}
	}
	return false
}
