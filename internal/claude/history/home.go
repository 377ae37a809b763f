// Package history reads the session logs the claude CLI keeps under its home
// directory (~/.claude/projects/<encoded-path>/<session>.jsonl).
package history

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolveClaudeHome returns the CLI's home directory: $CLAUDE_HOME,
// $CODEX_HOME, then ~/.claude. Empty when no home can be found.
func ResolveClaudeHome() string {
	for _, key := range []string{"CLAUDE_HOME", "CODEX_HOME"} {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return ""
	}
	return filepath.Join(home, ".claude")
}

// EncodeProjectPath maps a workspace path to the directory name the CLI uses
// under projects/: separators become dashes and an absolute path keeps a
// leading dash.
func EncodeProjectPath(path string) string {
	normalized := strings.ReplaceAll(path, `\`, "/")
	if strings.HasPrefix(normalized, "/") {
		return "-" + strings.ReplaceAll(strings.TrimLeft(normalized, "/"), "/", "-")
	}
	return strings.ReplaceAll(normalized, "/", "-")
}
