package monitor

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/siddartha-10/ClaudeCodeMonitor/internal/claude/launcher"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/claude/session"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/common/constants"
)

//go:embed models.yaml
var modelsYAML []byte

// Model is one entry of the model catalog.
type Model struct {
	ID                        string   `yaml:"id" json:"id"`
	Model                     string   `yaml:"model" json:"model"`
	DisplayName               string   `yaml:"displayName" json:"displayName"`
	Description               string   `yaml:"description" json:"description"`
	SupportedReasoningEfforts []string `yaml:"supportedReasoningEfforts" json:"supportedReasoningEfforts"`
	DefaultReasoningEffort    string   `yaml:"defaultReasoningEffort" json:"defaultReasoningEffort"`
	IsDefault                 bool     `yaml:"isDefault" json:"isDefault"`
}

// DataList is the {data:[...]} envelope used by the catalog commands.
type DataList[T any] struct {
	Data []T `json:"data"`
}

// RateLimits is returned by AccountRateLimits.
type RateLimits struct {
	RateLimits map[string]any `json:"rateLimits"`
}

// LoadModels parses the embedded model catalog.
func LoadModels() ([]Model, error) {
	var catalog struct {
		Models []Model `yaml:"models"`
	}
	if err := yaml.Unmarshal(modelsYAML, &catalog); err != nil {
		return nil, fmt.Errorf("parse model catalog: %w", err)
	}
	for i := range catalog.Models {
		m := &catalog.Models[i]
		if m.Model == "" {
			m.Model = m.ID
		}
		if m.SupportedReasoningEfforts == nil {
			m.SupportedReasoningEfforts = []string{}
		}
	}
	return catalog.Models, nil
}

// ModelList returns the models a client may pick from.
func (s *Service) ModelList(_ context.Context, _ string) (*DataList[Model], error) {
	models, err := LoadModels()
	if err != nil {
		return nil, err
	}
	return &DataList[Model]{Data: models}, nil
}

// CollaborationModeList returns no modes; the CLI has none.
func (s *Service) CollaborationModeList(_ context.Context, _ string) (*DataList[any], error) {
	return &DataList[any]{Data: []any{}}, nil
}

// SkillsList returns no skills.
func (s *Service) SkillsList(_ context.Context, _ string) (*DataList[any], error) {
	return &DataList[any]{Data: []any{}}, nil
}

// AccountRateLimits reports no limits.
func (s *Service) AccountRateLimits(_ context.Context, _ string) (*RateLimits, error) {
	return &RateLimits{RateLimits: map[string]any{}}, nil
}

// Doctor probes bin, or the configured default when bin is empty.
func (s *Service) Doctor(ctx context.Context, bin string) launcher.DoctorReport {
	if strings.TrimSpace(bin) == "" {
		bin = s.opts.ClaudeBin
	}
	return launcher.Doctor(ctx, bin, s.opts.VersionTimeout)
}

// RunMetadata is the title and branch name suggested for a task.
type RunMetadata struct {
	Title        *string `json:"title"`
	WorktreeName *string `json:"worktreeName"`
}

const runMetadataPrompt = `Generate metadata for a coding task based on the user's prompt. Return ONLY valid JSON with no additional text, in this exact format:
{"title": "Title Case 3-7 Words", "worktreeName": "prefix/kebab-case-name"}

Rules for title:
- 3-7 words in Title Case
- Describe the task concisely

Rules for worktreeName:
- Use one of these prefixes: feat/, fix/, chore/, test/, docs/, refactor/, perf/, build/, ci/, style/
- Use kebab-case after the prefix
- Keep it short and descriptive

User's task description:
%s`

// GenerateRunMetadata asks a small model for a title and worktree name.
// Output that is not JSON yields empty metadata.
func (s *Service) GenerateRunMetadata(ctx context.Context, workspaceID, prompt string) (*RunMetadata, error) {
	ws, err := s.session(workspaceID)
	if err != nil {
		return nil, err
	}
	response, err := s.promptOnce(ctx, ws.ClaudeBin(), ws.Path(), launcher.PromptOptions{
		Prompt:         fmt.Sprintf(runMetadataPrompt, prompt),
		PermissionMode: session.PermissionDontAsk,
		Model:          "haiku",
		Timeout:        constants.PromptOnceTimeout,
	})
	if err != nil {
		return nil, err
	}
	return ParseRunMetadata(response), nil
}

// ParseRunMetadata decodes a metadata reply, unwrapping a fenced code block.
func ParseRunMetadata(response string) *RunMetadata {
	text := strings.TrimSpace(response)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSpace(strings.TrimSuffix(text, "```"))
	}
	var meta RunMetadata
	if err := json.Unmarshal([]byte(text), &meta); err != nil {
		return &RunMetadata{}
	}
	return &meta
}
