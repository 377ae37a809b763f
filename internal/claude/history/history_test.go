package history

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	apperrors "github.com/siddartha-10/ClaudeCodeMonitor/internal/common/errors"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/common/logger"
)

const workspacePath = "/Users/dev/project"

func newTestReader(t *testing.T) (*Reader, string) {
	t.Helper()
	home := t.TempDir()
	r := NewReader(home, logger.NewNop())
	dir := r.ProjectDir(workspacePath)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	return r, dir
}

func writeLog(t *testing.T, path string, lines ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
}

func TestEncodeProjectPath(t *testing.T) {
	assert.Equal(t, "-Users-dev-project", EncodeProjectPath("/Users/dev/project"))
	assert.Equal(t, "C:-work-repo", EncodeProjectPath(`C:\work\repo`))
	assert.Equal(t, "rel-dir", EncodeProjectPath("rel/dir"))
}

func TestResolveClaudeHome(t *testing.T) {
	t.Setenv("CLAUDE_HOME", " /custom/claude ")
	t.Setenv("CODEX_HOME", "/legacy")
	assert.Equal(t, "/custom/claude", ResolveClaudeHome())

	t.Setenv("CLAUDE_HOME", "")
	assert.Equal(t, "/legacy", ResolveClaudeHome())

	t.Setenv("CODEX_HOME", "")
	t.Setenv("HOME", "/home/dev")
	assert.Equal(t, filepath.Join("/home/dev", ".claude"), ResolveClaudeHome())
}

func TestSessionExists(t *testing.T) {
	r, dir := newTestReader(t)
	assert.False(t, r.SessionExists(workspacePath, "s1"))

	writeLog(t, filepath.Join(dir, "s1.jsonl"), `{"type":"user"}`)
	assert.True(t, r.SessionExists(workspacePath, "s1"))

	elsewhere := filepath.Join(t.TempDir(), "moved.jsonl")
	writeLog(t, filepath.Join(dir, sessionsIndexFile),
		`{"entries":[{"sessionId":"s2","fullPath":"`+elsewhere+`"}]}`)
	assert.Equal(t, elsewhere, r.ResolveSessionPath(workspacePath, "s2"))
}

func TestLoadSessions_MergesIndexAndScan(t *testing.T) {
	r, dir := newTestReader(t)
	writeLog(t, filepath.Join(dir, "a.jsonl"),
		`{"type":"user","gitBranch":"main","message":{"content":"first prompt"}}`,
		`not json`,
		`{"type":"assistant","message":{"content":[{"type":"text","text":"ok"}]}}`,
	)
	writeLog(t, filepath.Join(dir, "b.jsonl"), `{"type":"user","message":{"content":"only scanned"}}`)
	writeLog(t, filepath.Join(dir, sessionsIndexFile),
		`{"entries":[{"sessionId":"a","firstPrompt":"indexed prompt","modified":"2024-01-02T00:00:00Z"},{"bad":1}]}`)

	sessions := r.LoadSessions(workspacePath)
	require.Len(t, sessions, 2)

	byID := map[string]SessionEntry{}
	for _, s := range sessions {
		byID[s.SessionID] = s
	}
	a := byID["a"]
	require.NotNil(t, a.FirstPrompt)
	assert.Equal(t, "indexed prompt", *a.FirstPrompt)
	require.NotNil(t, a.MessageCount)
	assert.Equal(t, int64(2), *a.MessageCount)
	require.NotNil(t, a.GitBranch)
	assert.Equal(t, "main", *a.GitBranch)
	assert.NotNil(t, a.FileMtime)

	b := byID["b"]
	require.NotNil(t, b.FirstPrompt)
	assert.Equal(t, "only scanned", *b.FirstPrompt)
	assert.False(t, b.Sidechain())
}

func TestLoadSessions_BareArrayIndex(t *testing.T) {
	r, dir := newTestReader(t)
	writeLog(t, filepath.Join(dir, sessionsIndexFile), `[{"sessionId":"x","isSidechain":true}]`)
	sessions := r.LoadSessions(workspacePath)
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].Sidechain())
}

func TestBuildThread(t *testing.T) {
	r, dir := newTestReader(t)
	writeLog(t, filepath.Join(dir, "t1.jsonl"),
		`{"type":"summary"}`,
		`{"type":"user","uuid":"u1","timestamp":"2024-01-01T00:00:00Z","message":{"content":"Fix the bug"}}`,
		`{"type":"assistant","uuid":"a1","timestamp":1704067201,"message":{"model":"claude-sonnet","content":[{"type":"thinking","thinking":" hmm "},{"type":"tool_use","id":"tool-1","name":"Bash","input":{"command":"ls"}},{"type":"text","text":" Looking "}]}}`,
		`{"type":"user","uuid":"u2","timestamp":1704067202000,"message":{"content":[{"type":"tool_result","tool_use_id":"tool-1","content":"file.go"}]}}`,
	)

	thread, err := r.BuildThread(workspacePath, "t1")
	require.NoError(t, err)
	assert.Equal(t, "Fix the bug", thread.Preview)
	assert.Equal(t, int64(1704067200000), thread.CreatedAt)
	assert.Equal(t, int64(1704067202000), thread.UpdatedAt)
	assert.Equal(t, workspacePath, thread.Cwd)

	require.Len(t, thread.Turns, 1)
	items := thread.Turns[0].Items
	require.Len(t, items, 4)
	assert.Equal(t, "userMessage", items[0]["type"])
	assert.Equal(t, "a1-thinking-0", items[1]["id"])
	assert.Equal(t, "hmm", items[1]["content"])
	assert.Equal(t, "tool-1", items[2]["id"])
	assert.Equal(t, "completed", items[2]["status"], "result replaces the running item")
	assert.Equal(t, "file.go", items[2]["aggregatedOutput"])
	assert.Equal(t, "Looking", items[3]["text"])
	assert.Equal(t, "claude-sonnet", items[3]["model"])
}

func TestBuildThread_Missing(t *testing.T) {
	r, _ := newTestReader(t)
	_, err := r.BuildThread(workspacePath, "nope")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestSubagentThreads(t *testing.T) {
	id := SubagentThreadID("parent", "agent-1")
	assert.Equal(t, "parent::subagent::agent-1", id)
	parent, agent, ok := ParseSubagentThreadID(id)
	require.True(t, ok)
	assert.Equal(t, "parent", parent)
	assert.Equal(t, "agent-1", agent)
	_, _, ok = ParseSubagentThreadID("::subagent::x")
	assert.False(t, ok)

	r, dir := newTestReader(t)
	writeLog(t, filepath.Join(dir, "parent", "subagents", "agent-1.jsonl"),
		`{"type":"user","message":{"content":"Search the repo"}}`,
		`{"type":"assistant","message":{"content":[{"type":"text","text":"found"}]}}`,
	)
	writeLog(t, filepath.Join(dir, "parent", "subagents", "agent-2.jsonl"), `{"type":"system"}`)

	threads := r.ListSubagentThreads(workspacePath, "parent", workspacePath)
	require.Len(t, threads, 2)
	byID := map[string]ThreadSummary{}
	for _, th := range threads {
		byID[th.ID] = th
	}
	assert.Equal(t, "Search the repo", byID[id].Preview)
	assert.Equal(t, int64(2), byID[id].MessageCount)
	assert.Equal(t, "parent", byID[id].ParentID)
	assert.Equal(t, "Subagent agent-2", byID[SubagentThreadID("parent", "agent-2")].Preview)

	thread, err := r.BuildThread(workspacePath, id)
	require.NoError(t, err)
	assert.Len(t, thread.Turns[0].Items, 2)
}

func TestSummarize(t *testing.T) {
	mtime := int64(42)
	created := "2024-01-01T00:00:00Z"
	s := Summarize(SessionEntry{SessionID: "s", Created: &created, FileMtime: &mtime}, workspacePath)
	assert.Equal(t, int64(1704067200000), s.CreatedAt)
	assert.Equal(t, int64(42), s.UpdatedAt)
	assert.Equal(t, workspacePath, s.Cwd)

	bare := Summarize(SessionEntry{SessionID: "s"}, workspacePath)
	assert.Zero(t, bare.CreatedAt)
	assert.Zero(t, bare.UpdatedAt)
}

func TestForkSession(t *testing.T) {
	r, dir := newTestReader(t)
	writeLog(t, filepath.Join(dir, "orig.jsonl"),
		`{"type":"user","uuid":"m1","sessionId":"orig"}`,
		`garbage line`,
		`{"type":"assistant","uuid":"m2","session_id":"orig"}`,
		`{"type":"user","uuid":"m3","sessionId":"orig"}`,
	)

	newID, err := r.ForkSession(workspacePath, "orig", "m2")
	require.NoError(t, err)
	require.NotEqual(t, "orig", newID)

	data, err := os.ReadFile(filepath.Join(dir, newID+".jsonl"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"sessionId":"`+newID+`"`)
	assert.Equal(t, "garbage line", lines[1])
	assert.Contains(t, lines[2], `"session_id":"`+newID+`"`)
	assert.NotContains(t, string(data), "m3")

	_, err = r.ForkSession(workspacePath, "orig", "missing")
	assert.True(t, apperrors.IsNotFound(err))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "a failed fork leaves no file behind")
}

func TestScanMetadata_LogsUnreadableLog(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := NewReader(t.TempDir(), logger.FromZap(zap.New(core)))

	missing := filepath.Join(t.TempDir(), "gone.jsonl")
	meta := r.scanMetadata(missing)
	assert.Nil(t, meta.messageCount)
	assert.Nil(t, meta.firstPrompt)

	entries := logs.FilterMessage("failed to read session log").All()
	require.Len(t, entries, 1)
	assert.Equal(t, missing, entries[0].ContextMap()["path"])
}
