package launcher

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/siddartha-10/ClaudeCodeMonitor/internal/common/errors"
)

func TestBuildPathEnv_Order(t *testing.T) {
	home := t.TempDir()
	nodeBin := filepath.Join(home, ".nvm", "versions", "node", "v20.1.0", "bin")
	require.NoError(t, os.MkdirAll(nodeBin, 0o755))

	got := strings.Split(BuildPathEnv("/custom/tools/claude", "/a:/usr/bin::/a", home), ":")

	want := []string{
		"/a",
		"/usr/bin",
		"/opt/homebrew/bin",
		"/usr/local/bin",
		"/bin",
		"/usr/sbin",
		"/sbin",
		filepath.Join(home, ".local/bin"),
		filepath.Join(home, ".local/share/mise/shims"),
		filepath.Join(home, ".cargo/bin"),
		filepath.Join(home, ".bun/bin"),
		nodeBin,
		"/custom/tools",
	}
	assert.Equal(t, want, got)
}

func TestBuildPathEnv_IgnoresBareAndEmptyBinary(t *testing.T) {
	for _, bin := range []string{"", "   ", "claude"} {
		got := BuildPathEnv(bin, "/x", "")
		assert.Equal(t, "/x:/opt/homebrew/bin:/usr/local/bin:/usr/bin:/bin:/usr/sbin:/sbin", got, "bin=%q", bin)
	}
}

func TestPersistentArgs(t *testing.T) {
	tests := []struct {
		name string
		opts SpawnOptions
		want []string
	}{
		{
			name: "new session with defaults",
			opts: SpawnOptions{ThreadID: "t1", MaxThinkingTokens: 31999},
			want: []string{
				"--print", "--input-format", "stream-json", "--output-format", "stream-json",
				"--include-partial-messages", "--verbose",
				"--max-thinking-tokens", "31999",
				"--session-id", "t1",
			},
		},
		{
			name: "resume with model and mode",
			opts: SpawnOptions{ThreadID: "t2", Model: " sonnet ", PermissionMode: "plan", MaxThinkingTokens: 1024, Resume: true},
			want: []string{
				"--print", "--input-format", "stream-json", "--output-format", "stream-json",
				"--include-partial-messages", "--verbose",
				"--model", "sonnet",
				"--permission-mode", "plan",
				"--max-thinking-tokens", "1024",
				"--resume", "t2",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PersistentArgs(tt.opts))
		})
	}
}

func TestOneShotArgs_AccessModes(t *testing.T) {
	base := OneShotOptions{Prompt: "hi", Dir: "/repo", ThreadID: "t"}

	full := base
	full.AccessMode = "full-access"
	assert.Contains(t, strings.Join(OneShotArgs(full), " "), "--permission-mode bypassPermissions")

	ro := base
	ro.AccessMode = "read-only"
	ro.Resume = true
	args := strings.Join(OneShotArgs(ro), " ")
	assert.Contains(t, args, "--allowed-tools Read,Glob,Grep")
	assert.True(t, strings.HasSuffix(args, "--resume t"))

	current := base
	current.AccessMode = "current"
	args = strings.Join(OneShotArgs(current), " ")
	assert.NotContains(t, args, "--permission-mode")
	assert.True(t, strings.HasPrefix(args, "-p hi --output-format stream-json --verbose --include-partial-messages --add-dir /repo"))
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	path := filepath.Join(t.TempDir(), "claude")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestCheckInstallation(t *testing.T) {
	ctx := context.Background()

	t.Run("version", func(t *testing.T) {
		bin := writeScript(t, `echo "  2.1.0 (Claude Code)  "`)
		version, err := CheckInstallation(ctx, bin, 5*time.Second)
		require.NoError(t, err)
		assert.Equal(t, "2.1.0 (Claude Code)", version)
	})

	t.Run("missing binary", func(t *testing.T) {
		_, err := CheckInstallation(ctx, filepath.Join(t.TempDir(), "nope"), 5*time.Second)
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))
		assert.Equal(t, MsgNotFound, apperrors.UserMessage(err))
	})

	t.Run("failure with stderr", func(t *testing.T) {
		bin := writeScript(t, "echo 'bad config' >&2\nexit 2")
		_, err := CheckInstallation(ctx, bin, 5*time.Second)
		require.Error(t, err)
		assert.Equal(t,
			"Claude Code CLI failed to start: bad config. Try running `claude --version` in Terminal.",
			apperrors.UserMessage(err))
	})

	t.Run("failure without output", func(t *testing.T) {
		bin := writeScript(t, "exit 1")
		_, err := CheckInstallation(ctx, bin, 5*time.Second)
		require.Error(t, err)
		assert.Equal(t, MsgStartFailed, apperrors.UserMessage(err))
	})

	t.Run("timeout", func(t *testing.T) {
		bin := writeScript(t, "exec sleep 5")
		_, err := CheckInstallation(ctx, bin, 100*time.Millisecond)
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.KindTimeout))
		assert.Equal(t, MsgProbeTimeout, apperrors.UserMessage(err))
	})
}

func TestDoctor(t *testing.T) {
	bin := writeScript(t, `echo "2.1.0"`)
	report := Doctor(context.Background(), bin, 5*time.Second)
	assert.True(t, report.OK)
	require.NotNil(t, report.Version)
	assert.Equal(t, "2.1.0", *report.Version)
	require.NotNil(t, report.Path)
	assert.Contains(t, *report.Path, filepath.Dir(bin))

	broken := Doctor(context.Background(), filepath.Join(t.TempDir(), "missing"), 5*time.Second)
	assert.False(t, broken.OK)
	require.NotNil(t, broken.Details)
	assert.Equal(t, MsgNotFound, *broken.Details)
}

func TestRunPromptOnce(t *testing.T) {
	script := `cat <<'EOF'
{"type":"system","subtype":"init"}
{"type":"assistant","message":{"content":[{"type":"text","text":"first"}]}}
not json
{"type":"assistant","message":{"content":[{"type":"text","text":"  {\"title\":\"Fix Login\"}  "}]}}
{"type":"assistant","message":{"content":[{"type":"tool_use","id":"x","name":"Read"}]}}
{"type":"result"}
EOF`
	bin := writeScript(t, script)
	out, err := RunPromptOnce(context.Background(), bin, t.TempDir(), PromptOptions{Prompt: "p", Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, `{"title":"Fix Login"}`, out)

	failing := writeScript(t, "echo 'rate limited' >&2\nexit 1")
	_, err = RunPromptOnce(context.Background(), failing, t.TempDir(), PromptOptions{Prompt: "p", Timeout: 5 * time.Second})
	require.Error(t, err)
	assert.Equal(t, "rate limited", apperrors.UserMessage(err))

	silent := writeScript(t, "exit 3")
	_, err = RunPromptOnce(context.Background(), silent, t.TempDir(), PromptOptions{Prompt: "p", Timeout: 5 * time.Second})
	require.Error(t, err)
	assert.Equal(t, "Claude CLI failed to run", apperrors.UserMessage(err))
}

func TestPromptOnceArgs(t *testing.T) {
	got := PromptOnceArgs(PromptOptions{Prompt: "x", PermissionMode: "dontAsk", Model: "haiku"})
	assert.Equal(t, []string{
		"-p", "x", "--output-format", "stream-json", "--verbose", "--no-session-persistence",
		"--permission-mode", "dontAsk", "--model", "haiku",
	}, got)
}
