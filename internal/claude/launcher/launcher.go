// Package launcher builds claude CLI invocations: binary resolution, PATH
// augmentation and per-mode argument lists. It holds no state.
package launcher

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultBinary is used when no explicit binary path is configured.
const DefaultBinary = "claude"

// systemPaths are appended after the inherited PATH.
var systemPaths = []string{
	"/opt/homebrew/bin",
	"/usr/local/bin",
	"/usr/bin",
	"/bin",
	"/usr/sbin",
	"/sbin",
}

// homePaths are resolved under the user's home directory.
var homePaths = []string{
	".local/bin",
	".local/share/mise/shims",
	".cargo/bin",
	".bun/bin",
}

// ResolveBinary returns bin, or DefaultBinary when bin is blank.
func ResolveBinary(bin string) string {
	if strings.TrimSpace(bin) == "" {
		return DefaultBinary
	}
	return bin
}

// BuildPathEnv returns the PATH value used for claude processes: the
// inherited entries, then conventional install locations, then the parent
// directory of an explicit binary. Entries are deduplicated in order.
func BuildPathEnv(claudeBin, inheritedPath, home string) string {
	var paths []string
	seen := make(map[string]bool)
	add := func(p string) {
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		paths = append(paths, p)
	}

	for _, p := range filepath.SplitList(inheritedPath) {
		add(p)
	}
	for _, p := range systemPaths {
		add(p)
	}
	if home != "" {
		for _, p := range homePaths {
			add(filepath.Join(home, p))
		}
		for _, p := range nvmBinDirs(home) {
			add(p)
		}
	}
	if bin := strings.TrimSpace(claudeBin); bin != "" {
		if parent := filepath.Dir(bin); parent != "." {
			add(parent)
		}
	}
	return strings.Join(paths, string(os.PathListSeparator))
}

func nvmBinDirs(home string) []string {
	entries, err := os.ReadDir(filepath.Join(home, ".nvm", "versions", "node"))
	if err != nil {
		return nil
	}
	var dirs []string
	for _, entry := range entries {
		bin := filepath.Join(home, ".nvm", "versions", "node", entry.Name(), "bin")
		if info, err := os.Stat(bin); err == nil && info.IsDir() {
			dirs = append(dirs, bin)
		}
	}
	sort.Strings(dirs)
	return dirs
}

// Environ returns the current environment with PATH replaced by the
// augmented value for claudeBin.
func Environ(claudeBin string) []string {
	home, _ := os.UserHomeDir()
	pathEnv := BuildPathEnv(claudeBin, os.Getenv("PATH"), home)

	env := os.Environ()
	out := make([]string, 0, len(env)+1)
	for _, kv := range env {
		if strings.HasPrefix(kv, "PATH=") {
			continue
		}
		out = append(out, kv)
	}
	if pathEnv != "" {
		out = append(out, "PATH="+pathEnv)
	}
	return out
}

// Command builds a claude command that is not tied to a context. Long-lived
// sessions are stopped explicitly, never by context cancellation.
func Command(bin, dir string, args ...string) *exec.Cmd {
	cmd := exec.Command(ResolveBinary(bin), args...)
	configure(cmd, bin, dir)
	return cmd
}

// CommandContext builds a claude command killed when ctx is done.
func CommandContext(ctx context.Context, bin, dir string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, ResolveBinary(bin), args...)
	cmd.WaitDelay = time.Second
	configure(cmd, bin, dir)
	return cmd
}

func configure(cmd *exec.Cmd, bin, dir string) {
	cmd.Dir = dir
	cmd.Env = Environ(bin)
}

// SpawnOptions configures a persistent streaming session.
type SpawnOptions struct {
	ThreadID string
	Model    string
	// PermissionMode is already in the CLI's vocabulary; empty omits the flag.
	PermissionMode    string
	MaxThinkingTokens int
	// Resume continues an existing session log instead of creating one.
	Resume bool
}

// PersistentArgs returns the arguments for a stream-json session that reads
// user messages from stdin for as long as it lives.
func PersistentArgs(opts SpawnOptions) []string {
	args := []string{
		"--print",
		"--input-format", "stream-json",
		"--output-format", "stream-json",
		"--include-partial-messages",
		"--verbose",
	}
	if model := strings.TrimSpace(opts.Model); model != "" {
		args = append(args, "--model", model)
	}
	if opts.PermissionMode != "" {
		args = append(args, "--permission-mode", opts.PermissionMode)
	}
	args = append(args, "--max-thinking-tokens", strconv.Itoa(opts.MaxThinkingTokens))
	return appendSessionArgs(args, opts.ThreadID, opts.Resume)
}

// OneShotOptions configures a single-turn invocation.
type OneShotOptions struct {
	Prompt     string
	Dir        string
	ThreadID   string
	Model      string
	AccessMode string
	Resume     bool
}

// OneShotArgs returns the arguments for a process that answers one prompt
// and exits.
func OneShotArgs(opts OneShotOptions) []string {
	args := []string{
		"-p", opts.Prompt,
		"--output-format", "stream-json",
		"--verbose",
		"--include-partial-messages",
		"--add-dir", opts.Dir,
	}
	if model := strings.TrimSpace(opts.Model); model != "" {
		args = append(args, "--model", model)
	}
	switch opts.AccessMode {
	case "full-access":
		args = append(args, "--permission-mode", "bypassPermissions")
	case "read-only":
		args = append(args, "--allowed-tools", "Read,Glob,Grep")
	}
	return appendSessionArgs(args, opts.ThreadID, opts.Resume)
}

func appendSessionArgs(args []string, threadID string, resume bool) []string {
	if threadID == "" {
		return args
	}
	if resume {
		return append(args, "--resume", threadID)
	}
	return append(args, "--session-id", threadID)
}
