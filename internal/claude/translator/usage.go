package translator

import (
	"math"
	"sort"
	"strconv"

	"github.com/siddartha-10/ClaudeCodeMonitor/pkg/claudecode"
)

// TokenBreakdown is one token count snapshot.
type TokenBreakdown struct {
	TotalTokens           int64 `json:"totalTokens"`
	InputTokens           int64 `json:"inputTokens"`
	CachedInputTokens     int64 `json:"cachedInputTokens"`
	OutputTokens          int64 `json:"outputTokens"`
	ReasoningOutputTokens int64 `json:"reasoningOutputTokens"`
}

// TokenUsage is the payload of thread/tokenUsage/updated.
type TokenUsage struct {
	Total              TokenBreakdown `json:"total"`
	Last               TokenBreakdown `json:"last"`
	ModelContextWindow *int64         `json:"modelContextWindow"`
}

// FormatTokenUsage converts a raw usage object. Cached input counts both
// cache reads and cache writes, and the total includes it. The context
// window comes from the first model (by name) in modelUsage.
func FormatTokenUsage(raw any, modelUsage any) (*TokenUsage, bool) {
	usage, ok := raw.(map[string]any)
	if !ok {
		return nil, false
	}
	input := usageNumber(usage, "input_tokens", "inputTokens")
	output := usageNumber(usage, "output_tokens", "outputTokens")
	cacheRead := usageNumber(usage, "cache_read_input_tokens", "cacheReadInputTokens")
	cacheCreate := usageNumber(usage, "cache_creation_input_tokens", "cacheCreationInputTokens")
	reasoning := usageNumber(usage, "reasoning_output_tokens", "reasoningOutputTokens")
	cached := cacheRead + cacheCreate

	breakdown := TokenBreakdown{
		TotalTokens:           input + output + cached,
		InputTokens:           input,
		CachedInputTokens:     cached,
		OutputTokens:          output,
		ReasoningOutputTokens: reasoning,
	}
	return &TokenUsage{
		Total:              breakdown,
		Last:               breakdown,
		ModelContextWindow: contextWindow(modelUsage),
	}, true
}

func contextWindow(modelUsage any) *int64 {
	models := claudecode.Object(modelUsage)
	if len(models) == 0 {
		return nil
	}
	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)
	window, ok := asInt(claudecode.Object(models[names[0]])["contextWindow"])
	if !ok {
		return nil
	}
	return &window
}

// usageNumber returns the first integer among keys. Numeric strings count.
func usageNumber(m map[string]any, keys ...string) int64 {
	for _, key := range keys {
		if n, ok := asInt(m[key]); ok {
			return n
		}
		if s, ok := m[key].(string); ok {
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n
			}
		}
	}
	return 0
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}
