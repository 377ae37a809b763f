package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/siddartha-10/ClaudeCodeMonitor/internal/common/errors"
)

// Settings file names inside a project's claude directory.
const (
	projectSettingsFile = "settings.local.json"
	globalSettingsFile  = "settings.json"
	projectClaudeDir    = ".claude"
	legacyProjectDir    = ".codexmonitor"
)

// ApprovalRuleResult reports where a rule was saved.
type ApprovalRuleResult struct {
	OK        bool   `json:"ok"`
	RulesPath string `json:"rulesPath"`
}

// FormatBashRule turns a denied command into a permissions.allow rule that
// matches it and any extra arguments.
func FormatBashRule(command []string) string {
	return "Bash(" + strings.Join(command, " ") + ":*)"
}

// RememberApprovalRule adds an allow rule to the workspace's claude
// settings so the CLI stops asking for it. rule wins when set; otherwise the
// rule is built from command. Existing settings are preserved and a rule
// already present is not duplicated.
func (s *Service) RememberApprovalRule(ctx context.Context, workspaceID, rule string, command []string) (*ApprovalRuleResult, error) {
	rule = strings.TrimSpace(rule)
	if rule == "" {
		var parts []string
		for _, part := range command {
			if part = strings.TrimSpace(part); part != "" {
				parts = append(parts, part)
			}
		}
		if len(parts) == 0 {
			return nil, apperrors.InvalidParams("empty command")
		}
		rule = FormatBashRule(parts)
	}

	entry, err := s.store.Get(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	path, err := s.permissionsPath(entry.Path)
	if err != nil {
		return nil, err
	}

	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()

	settings, err := readSettings(path)
	if err != nil {
		return nil, err
	}
	if err := addAllowRule(settings, rule); err != nil {
		return nil, err
	}
	if err := writeSettings(path, settings); err != nil {
		return nil, err
	}
	s.logger.Info("approval rule saved",
		zap.String("workspace_id", workspaceID),
		zap.String("rule", rule),
		zap.String("path", path))
	return &ApprovalRuleResult{OK: true, RulesPath: path}, nil
}

// permissionsPath picks the project's settings.local.json, creating the
// .claude directory when neither it nor the legacy directory exists. The
// user-wide settings.json is the last resort.
func (s *Service) permissionsPath(workspacePath string) (string, error) {
	for _, name := range []string{projectClaudeDir, legacyProjectDir} {
		dir := filepath.Join(workspacePath, name)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return filepath.Join(dir, projectSettingsFile), nil
		}
	}
	dir := filepath.Join(workspacePath, projectClaudeDir)
	if err := os.MkdirAll(dir, 0o755); err == nil {
		return filepath.Join(dir, projectSettingsFile), nil
	}
	if home := strings.TrimSpace(s.history.Home()); home != "" {
		return filepath.Join(home, globalSettingsFile), nil
	}
	return "", apperrors.New(apperrors.KindInternal, "Unable to resolve Claude settings path")
}

// readSettings loads a settings file. A missing file, or one whose top
// level is not an object, reads as empty settings.
func readSettings(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, apperrors.ProcessIO("failed to read settings", err)
	}
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, apperrors.Malformed("invalid settings file", err)
	}
	settings, ok := value.(map[string]any)
	if !ok {
		return map[string]any{}, nil
	}
	return settings, nil
}

func addAllowRule(settings map[string]any, rule string) error {
	raw, ok := settings["permissions"]
	if !ok || raw == nil {
		raw = map[string]any{}
		settings["permissions"] = raw
	}
	permissions, ok := raw.(map[string]any)
	if !ok {
		return apperrors.InvalidParams("Unable to update permissions")
	}
	rawAllow, ok := permissions["allow"]
	if !ok || rawAllow == nil {
		rawAllow = []any{}
	}
	allow, ok := rawAllow.([]any)
	if !ok {
		return apperrors.InvalidParams("Unable to update permissions")
	}
	for _, item := range allow {
		if existing, ok := item.(string); ok && existing == rule {
			permissions["allow"] = allow
			return nil
		}
	}
	permissions["allow"] = append(allow, rule)
	return nil
}

// writeSettings replaces the settings file through a temp file in the same
// directory.
func writeSettings(path string, settings map[string]any) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return apperrors.Internal("failed to encode settings", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.ProcessIO("failed to create settings directory", err)
	}
	tmp, err := os.CreateTemp(dir, ".settings-*.json")
	if err != nil {
		return apperrors.ProcessIO("failed to write settings", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return apperrors.ProcessIO("failed to write settings", err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.ProcessIO("failed to write settings", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return apperrors.ProcessIO("failed to write settings", err)
	}
	return nil
}
