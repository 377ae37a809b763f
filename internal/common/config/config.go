// Package config provides configuration management for the Claude monitor daemon.
// It supports loading configuration from command-line flags, environment
// variables, a config file, and defaults, in that order of precedence.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/siddartha-10/ClaudeCodeMonitor/internal/common/constants"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/common/logger"
)

// Turn modes select how a user message reaches the claude CLI.
const (
	TurnModePersistent = "persistent"
	TurnModeOneShot    = "oneshot"
)

// MissingTokenMessage is returned when the daemon would start without auth.
const MissingTokenMessage = "Missing --token (or set CODEX_MONITOR_DAEMON_TOKEN). Use --insecure-no-auth for local dev only."

// Config holds all configuration sections for the monitor.
type Config struct {
	Daemon   DaemonConfig   `mapstructure:"daemon"`
	Claude   ClaudeConfig   `mapstructure:"claude"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// DaemonConfig holds the TCP control-plane configuration.
type DaemonConfig struct {
	Listen          string `mapstructure:"listen"`
	Token           string `mapstructure:"token"`
	InsecureNoAuth  bool   `mapstructure:"insecureNoAuth"`
	DataDir         string `mapstructure:"dataDir"`
	EventBufferSize int    `mapstructure:"eventBufferSize"` // frames per subscriber
}

// ClaudeConfig holds settings for spawning the claude CLI.
type ClaudeConfig struct {
	Bin               string `mapstructure:"bin"`
	Home              string `mapstructure:"home"`
	MaxThinkingTokens int    `mapstructure:"maxThinkingTokens"`
	VersionTimeout    int    `mapstructure:"versionTimeout"` // in seconds
	TurnMode          string `mapstructure:"turnMode"`       // persistent, oneshot
}

// GatewayConfig holds the optional websocket gateway configuration.
type GatewayConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// NATSConfig holds NATS messaging configuration.
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	ClientID      string `mapstructure:"clientId"`
	MaxReconnects int    `mapstructure:"maxReconnects"`
}

// DatabaseConfig holds the workspace store configuration.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // sqlite, postgres
	Path     string `mapstructure:"path"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int    `mapstructure:"maxConns"`
	MinConns int    `mapstructure:"minConns"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
}

// TracingConfig holds OpenTelemetry configuration.
type TracingConfig struct {
	OTLPEndpoint string `mapstructure:"otlpEndpoint"`
}

// VersionTimeoutDuration returns the version probe timeout as a time.Duration.
func (c *ClaudeConfig) VersionTimeoutDuration() time.Duration {
	if c.VersionTimeout <= 0 {
		return constants.VersionProbeTimeout
	}
	return time.Duration(c.VersionTimeout) * time.Second
}

// AuthRequired reports whether connections must authenticate.
func (d *DaemonConfig) AuthRequired() bool {
	return d.Token != ""
}

// ToLoggerConfig converts to the logger package configuration.
func (l LoggingConfig) ToLoggerConfig() logger.LoggingConfig {
	return logger.LoggingConfig{Level: l.Level, Format: l.Format, OutputPath: l.OutputPath}
}

// DefaultDataDir returns $XDG_DATA_HOME/codex-monitor-daemon, or the
// ~/.local/share equivalent.
func DefaultDataDir() string {
	if xdg := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdg != "" {
		return filepath.Join(xdg, "codex-monitor-daemon")
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".", "codex-monitor-daemon")
	}
	return filepath.Join(home, ".local", "share", "codex-monitor-daemon")
}

// NewFlagSet returns the daemon's command-line flags.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("listen", constants.DefaultListenAddr, "address to listen on")
	fs.String("data-dir", "", "directory for the workspace database")
	fs.String("token", "", "shared secret clients must send with `auth`")
	fs.Bool("insecure-no-auth", false, "accept connections without a token (local dev only)")
	fs.String("config", "", "directory containing config.yaml")
	fs.BoolP("help", "h", false, "show help")
	return fs
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	v.SetDefault("daemon.listen", constants.DefaultListenAddr)
	v.SetDefault("daemon.token", "")
	v.SetDefault("daemon.insecureNoAuth", false)
	v.SetDefault("daemon.dataDir", "")
	v.SetDefault("daemon.eventBufferSize", constants.DefaultEventBufferSize)

	v.SetDefault("claude.bin", "")
	v.SetDefault("claude.home", "")
	v.SetDefault("claude.maxThinkingTokens", constants.DefaultMaxThinkingTokens)
	v.SetDefault("claude.versionTimeout", int(constants.VersionProbeTimeout/time.Second))
	v.SetDefault("claude.turnMode", TurnModePersistent)

	v.SetDefault("gateway.enabled", false)
	v.SetDefault("gateway.listen", "127.0.0.1:4733")

	// Empty URL means use in-memory event bus
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.clientId", "claude-monitor")
	v.SetDefault("nats.maxReconnects", 10)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.maxConns", 10)
	v.SetDefault("database.minConns", 1)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", logger.DetectFormat())
	v.SetDefault("logging.outputPath", "stderr")

	v.SetDefault("tracing.otlpEndpoint", "")
}

// Load parses args and reads the configuration.
// It returns pflag.ErrHelp when -h/--help is given.
func Load(args []string) (*Config, error) {
	fs := NewFlagSet("claude-monitor-daemon")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if help, _ := fs.GetBool("help"); help {
		return nil, pflag.ErrHelp
	}
	configPath, _ := fs.GetString("config")
	return LoadWithFlags(configPath, fs)
}

// LoadWithFlags reads configuration from the given path, the environment and
// an optional parsed flag set.
func LoadWithFlags(configPath string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("CLAUDE_MONITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// camelCase keys and legacy names need explicit bindings
	_ = v.BindEnv("daemon.token", "CLAUDE_MONITOR_DAEMON_TOKEN", "CODEX_MONITOR_DAEMON_TOKEN")
	_ = v.BindEnv("daemon.insecureNoAuth", "CLAUDE_MONITOR_DAEMON_INSECURE_NO_AUTH")
	_ = v.BindEnv("daemon.dataDir", "CLAUDE_MONITOR_DAEMON_DATA_DIR")
	_ = v.BindEnv("claude.maxThinkingTokens", "CLAUDE_MONITOR_CLAUDE_MAX_THINKING_TOKENS")
	_ = v.BindEnv("claude.turnMode", "CLAUDE_MONITOR_CLAUDE_TURN_MODE")
	_ = v.BindEnv("tracing.otlpEndpoint", "CLAUDE_MONITOR_TRACING_OTLP_ENDPOINT")

	if fs != nil {
		bindFlag(v, fs, "daemon.listen", "listen")
		bindFlag(v, fs, "daemon.dataDir", "data-dir")
		bindFlag(v, fs, "daemon.token", "token")
		bindFlag(v, fs, "daemon.insecureNoAuth", "insecure-no-auth")
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		v.AddConfigPath(filepath.Join(xdg, "claude-monitor"))
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	applyDerivedDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func bindFlag(v *viper.Viper, fs *pflag.FlagSet, key, name string) {
	if f := fs.Lookup(name); f != nil && f.Changed {
		_ = v.BindPFlag(key, f)
	}
}

func applyDerivedDefaults(cfg *Config) {
	if cfg.Daemon.DataDir == "" {
		cfg.Daemon.DataDir = DefaultDataDir()
	}
	if cfg.Database.Driver == "sqlite" && cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(cfg.Daemon.DataDir, "monitor.db")
	}
	cfg.Claude.TurnMode = strings.ToLower(strings.TrimSpace(cfg.Claude.TurnMode))
}

// validate checks that all required configuration fields are set.
func validate(cfg *Config) error {
	if cfg.Daemon.Token == "" && !cfg.Daemon.InsecureNoAuth {
		return fmt.Errorf("%s", MissingTokenMessage)
	}

	var errs []string

	if _, _, err := net.SplitHostPort(cfg.Daemon.Listen); err != nil {
		errs = append(errs, "daemon.listen must be host:port")
	}
	if cfg.Daemon.EventBufferSize <= 0 {
		errs = append(errs, "daemon.eventBufferSize must be positive")
	}
	if cfg.Gateway.Enabled {
		if _, _, err := net.SplitHostPort(cfg.Gateway.Listen); err != nil {
			errs = append(errs, "gateway.listen must be host:port")
		}
	}

	if cfg.Claude.TurnMode != TurnModePersistent && cfg.Claude.TurnMode != TurnModeOneShot {
		errs = append(errs, "claude.turnMode must be one of: persistent, oneshot")
	}
	if cfg.Claude.MaxThinkingTokens < 0 {
		errs = append(errs, "claude.maxThinkingTokens must not be negative")
	}

	switch cfg.Database.Driver {
	case "sqlite":
	case "postgres":
		if cfg.Database.DSN == "" {
			errs = append(errs, "database.dsn is required when database.driver is postgres")
		}
	default:
		errs = append(errs, "database.driver must be one of: sqlite, postgres")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, "logging.format must be one of: json, text")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}

	return nil
}
