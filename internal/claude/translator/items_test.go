package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siddartha-10/ClaudeCodeMonitor/pkg/claudecode"
)

func TestNextDelta(t *testing.T) {
	tests := []struct {
		last, full, want string
	}{
		{"", "Hello", "Hello"},
		{"Hello", "Hello, world", ", world"},
		{"Hello, world", "Hi", "Hi"},
		{"same", "same", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NextDelta(tt.last, tt.full), "last=%q full=%q", tt.last, tt.full)
	}
}

func TestFormatTokenUsage(t *testing.T) {
	usage, ok := FormatTokenUsage(map[string]any{
		"input_tokens":                10.0,
		"output_tokens":               5.0,
		"cache_read_input_tokens":     3.0,
		"cache_creation_input_tokens": 2.0,
	}, nil)
	require.True(t, ok)
	assert.Equal(t, int64(5), usage.Total.CachedInputTokens)
	assert.Equal(t, int64(20), usage.Total.TotalTokens)
	assert.Equal(t, usage.Total, usage.Last)
	assert.Nil(t, usage.ModelContextWindow)

	camel, ok := FormatTokenUsage(map[string]any{
		"inputTokens":           "7",
		"outputTokens":          1.5,
		"reasoningOutputTokens": 4.0,
	}, map[string]any{
		"z-model": map[string]any{"contextWindow": 1.0},
		"a-model": map[string]any{"contextWindow": 200000.0},
	})
	require.True(t, ok)
	assert.Equal(t, int64(7), camel.Total.InputTokens)
	assert.Equal(t, int64(0), camel.Total.OutputTokens, "non-integral numbers are ignored")
	assert.Equal(t, int64(4), camel.Total.ReasoningOutputTokens)
	require.NotNil(t, camel.ModelContextWindow)
	assert.Equal(t, int64(200000), *camel.ModelContextWindow)

	_, ok = FormatTokenUsage("nope", nil)
	assert.False(t, ok)
}

func TestParseMCPToolName(t *testing.T) {
	server, tool, ok := ParseMCPToolName("mcp__github__create_issue")
	require.True(t, ok)
	assert.Equal(t, "github", server)
	assert.Equal(t, "create_issue", tool)

	_, tool, ok = ParseMCPToolName(" MCP__fs__read__file ")
	require.True(t, ok)
	assert.Equal(t, "read__file", tool)

	for _, name := range []string{"", "Bash", "mcp__only", "mcp____tool", "mcp__server__ "} {
		_, _, ok := ParseMCPToolName(name)
		assert.False(t, ok, name)
	}
}

func TestExtractFilePaths(t *testing.T) {
	got := ExtractFilePaths(map[string]any{
		"file_path": " /a.go ",
		"edits": []any{
			map[string]any{"filePath": "/b.go"},
			"/a.go",
			map[string]any{"old_string": "x"},
		},
		"paths": []any{"  ", "/c.go"},
	})
	assert.Equal(t, []string{"/a.go", "/c.go", "/b.go"}, got)
	assert.Nil(t, ExtractFilePaths("not an object"))
}

func TestBuildToolItem(t *testing.T) {
	out := "ok"

	mcp := BuildToolItem("1", "mcp__db__query", map[string]any{"sql": "select 1"}, StatusCompleted, &out, nil)
	assert.Equal(t, ItemMCPToolCall, mcp["type"])
	assert.Equal(t, "db", mcp["server"])
	assert.Equal(t, "query", mcp["tool"])
	assert.Equal(t, "ok", mcp["result"])

	mcpStructured := BuildToolItem("1", "mcp__db__query", nil, StatusCompleted, &out, []any{"row"})
	assert.Equal(t, []any{"row"}, mcpStructured["result"])

	search := BuildToolItem("2", "WebSearch", map[string]any{"query": " go generics "}, StatusRunning, nil, nil)
	assert.Equal(t, ItemWebSearch, search["type"])
	assert.Equal(t, "go generics", search["query"])
	assert.NotContains(t, search, "aggregatedOutput")

	write := BuildToolItem("3", "Write", map[string]any{"file_path": "/new.go"}, StatusCompleted, &out, nil)
	assert.Equal(t, ItemFileChange, write["type"])
	assert.Equal(t, []map[string]any{{"path": "/new.go", "kind": "add"}}, write["changes"])
	assert.Equal(t, "ok", write["aggregatedOutput"])
	assert.Contains(t, write, "toolInput")

	edit := BuildToolItem("4", "MultiEdit", map[string]any{"file_path": "/old.go"}, StatusRunning, nil, nil)
	assert.Equal(t, []map[string]any{{"path": "/old.go", "kind": "modify"}}, edit["changes"])

	cmd := BuildToolItem("5", "Bash", map[string]any{"command": "ls"}, StatusRunning, nil, nil)
	assert.Equal(t, ItemCommandExecution, cmd["type"])
	assert.Equal(t, []string{"Bash"}, cmd["command"])
}

func TestToolResultOutput(t *testing.T) {
	assert.Equal(t, "", ToolResultOutput(nil))
	assert.Equal(t, "plain", ToolResultOutput("plain"))
	assert.Equal(t, "a\nb", ToolResultOutput([]any{
		map[string]any{"type": "text", "text": "a"},
		map[string]any{"type": "image"},
		map[string]any{"type": "text", "text": "b"},
	}))
	assert.Equal(t, "{\n  \"k\": 1\n}", ToolResultOutput(map[string]any{"k": 1}))
}

func TestToolResultValue_FallsBackToToolUseResult(t *testing.T) {
	line := claudecode.Line{"toolUseResult": map[string]any{"content": "from result", "agentId": "a1"}}
	assert.Equal(t, "from result", ToolResultValue("   ", line))
	assert.Equal(t, "direct", ToolResultValue("direct", line))
	assert.Nil(t, ToolResultValue(nil, claudecode.Line{}))

	bare := claudecode.Line{"tool_use_result": "raw"}
	assert.Equal(t, "raw", ToolResultValue([]any{}, bare))
}

func TestCollapseSubagentOutput(t *testing.T) {
	none := claudecode.Line{}
	assert.Equal(t, "keep", CollapseSubagentOutput("keep", "Bash", nil, none))
	assert.Equal(t, "Subagent output is available in its thread.",
		CollapseSubagentOutput("long", "Task", nil, none))
	assert.Equal(t, "Subagent ag-1 output is available in its thread.",
		CollapseSubagentOutput("long", "Tool", nil, claudecode.Line{"toolUseResult": map[string]any{"agentId": "ag-1"}}))

	assert.True(t, IsSubagentTask("task", nil))
	assert.True(t, IsSubagentTask("Other", map[string]any{"subagentType": "x"}))
	assert.False(t, IsSubagentTask("Bash", map[string]any{}))
}

func TestIsPermissionDenial(t *testing.T) {
	assert.True(t, IsPermissionDenial("Claude Requested Permissions to edit"))
	assert.True(t, IsPermissionDenial("you haven't granted it yet"))
	assert.False(t, IsPermissionDenial("file not found"))
}
