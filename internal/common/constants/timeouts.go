// Package constants provides application-wide constants and timeouts.
package constants

import "time"

// Timeouts for various operations.
const (
	// VersionProbeTimeout bounds `claude --version` when checking the installation.
	VersionProbeTimeout = 5 * time.Second

	// PromptOnceTimeout bounds a single non-interactive prompt run.
	PromptOnceTimeout = 60 * time.Second

	// ShutdownTimeout is the maximum time to wait for the daemon to drain on exit.
	ShutdownTimeout = 30 * time.Second

	// DiffTimeout bounds the git diff used to build review prompts.
	DiffTimeout = 30 * time.Second
)

// Protocol defaults.
const (
	// DefaultListenAddr is where the daemon accepts TCP connections.
	DefaultListenAddr = "127.0.0.1:4732"

	// DefaultMaxThinkingTokens is passed as --max-thinking-tokens when no budget is given.
	DefaultMaxThinkingTokens = 31999

	// DefaultEventBufferSize is the number of frames buffered per subscriber.
	DefaultEventBufferSize = 2048
)
