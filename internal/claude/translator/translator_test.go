package translator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siddartha-10/ClaudeCodeMonitor/internal/common/logger"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/events"
)

type fakeTurns struct {
	ids []string
}

func (f *fakeTurns) TakePendingTurnID(string) (string, bool) {
	if len(f.ids) == 0 {
		return "", false
	}
	id := f.ids[0]
	f.ids = f.ids[1:]
	return id, true
}

func newTestTranslator(t *testing.T, turns TurnSource) (*Translator, *events.Recorder) {
	t.Helper()
	rec := events.NewRecorder()
	tr := New(Config{WorkspaceID: "ws-1", ThreadID: "thread-1", Sink: rec, Turns: turns}, logger.NewNop())
	n := 0
	tr.newID = func() string {
		n++
		return "synth-" + string(rune('0'+n))
	}
	return tr, rec
}

func lines(ls ...string) *strings.Reader {
	return strings.NewReader(strings.Join(ls, "\n") + "\n")
}

func params(t *testing.T, ev events.AppServerEvent) map[string]any {
	t.Helper()
	require.NotNil(t, ev.Message.Params)
	return ev.Message.Params
}

func item(t *testing.T, ev events.AppServerEvent) map[string]any {
	t.Helper()
	it, ok := params(t, ev)["item"].(map[string]any)
	require.True(t, ok, "event %s has no item", ev.Message.Method)
	return it
}

func TestRunStdout_EndToEndOrdering(t *testing.T) {
	tr, rec := newTestTranslator(t, &fakeTurns{ids: []string{"turn-1"}})

	tr.RunStdout(lines(
		`{"type":"system","subtype":"init","session_id":"sess-9","model":"claude-sonnet","tools":["Bash","Read",3]}`,
		`{"type":"assistant","message":{"model":"claude-sonnet","content":[{"type":"text","text":"Hello"}]}}`,
		`{"type":"assistant","message":{"content":[{"type":"text","text":"Hello, world"},{"type":"tool_use","id":"toolu_1","name":"Bash","input":{"command":"ls"}}]}}`,
		`{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"toolu_1","content":[{"type":"text","text":"a.go"},{"type":"text","text":"b.go"}]}]}}`,
		`{"type":"result","usage":{"input_tokens":10,"output_tokens":5,"cache_read_input_tokens":3,"cache_creation_input_tokens":2},"modelUsage":{"claude-sonnet":{"contextWindow":200000}}}`,
	))

	assert.Equal(t, []string{
		events.SessionInitialized,
		events.TurnStarted,
		events.ItemStarted,
		events.ItemAgentMessageDelta,
		events.ItemStarted,
		events.ItemAgentMessageDelta,
		events.ItemCompleted,
		events.ThreadTokenUsageUpdated,
		events.ItemCompleted,
		events.TurnCompleted,
	}, rec.Methods())

	evs := rec.Events()
	for _, ev := range evs {
		assert.Equal(t, "ws-1", ev.WorkspaceID)
	}

	initParams := params(t, evs[0])
	assert.Equal(t, "sess-9", initParams["sessionId"])
	assert.Equal(t, []string{"Bash", "Read"}, initParams["tools"])

	turn := params(t, evs[1])["turn"].(map[string]any)
	assert.Equal(t, "turn-1", turn["id"])
	assert.Equal(t, "thread-1", turn["threadId"])

	placeholder := item(t, evs[2])
	assert.Equal(t, "turn-1-assistant", placeholder["id"])
	assert.Equal(t, "", placeholder["text"])

	assert.Equal(t, "Hello", params(t, evs[3])["delta"])
	assert.Equal(t, ", world", params(t, evs[5])["delta"])

	started := item(t, evs[4])
	assert.Equal(t, "toolu_1", started["id"])
	assert.Equal(t, ItemCommandExecution, started["type"])
	assert.Equal(t, StatusRunning, started["status"])
	assert.NotContains(t, started, "aggregatedOutput")

	completed := item(t, evs[6])
	assert.Equal(t, "toolu_1", completed["id"])
	assert.Equal(t, ItemCommandExecution, completed["type"])
	assert.Equal(t, "a.go\nb.go", completed["aggregatedOutput"])

	usage := params(t, evs[7])["tokenUsage"].(*TokenUsage)
	assert.Equal(t, int64(20), usage.Total.TotalTokens)
	assert.Equal(t, int64(5), usage.Total.CachedInputTokens)
	require.NotNil(t, usage.ModelContextWindow)
	assert.Equal(t, int64(200000), *usage.ModelContextWindow)

	final := item(t, evs[8])
	assert.Equal(t, "turn-1-assistant", final["id"])
	assert.Equal(t, "Hello, world", final["text"])
	assert.Equal(t, "claude-sonnet", final["model"])

	assert.False(t, tr.TurnActive())
}

func TestRunStdout_SkipsMalformedAndSubagentLines(t *testing.T) {
	tr, rec := newTestTranslator(t, nil)

	tr.RunStdout(lines(
		``,
		`not json at all`,
		`{"type":"assistant","parent_tool_use_id":"toolu_task","message":{"content":[{"type":"text","text":"nested"}]}}`,
		`{"type":"assistant","message":{"content":[{"type":"text","text":"top"}]}}`,
		`{"type":`,
	))

	assert.Equal(t, []string{
		events.TurnStarted,
		events.ItemStarted,
		events.ItemAgentMessageDelta,
		events.TurnCompleted,
	}, rec.Methods())
	turn := params(t, rec.Events()[0])["turn"].(map[string]any)
	assert.Equal(t, "synth-1", turn["id"], "a missing pending id is synthesized")
}

func TestRunStdout_EOFCompletesOpenTurnOnce(t *testing.T) {
	tr, rec := newTestTranslator(t, &fakeTurns{ids: []string{"t-a"}})
	tr.RunStdout(lines(`{"type":"assistant","message":{"content":[]}}`))

	methods := rec.Methods()
	assert.Equal(t, events.TurnCompleted, methods[len(methods)-1])
	assert.Equal(t, 1, strings.Count(strings.Join(methods, ","), events.TurnCompleted))
}

func TestRunStdout_PendingIDConsumedPerTurn(t *testing.T) {
	tr, rec := newTestTranslator(t, &fakeTurns{ids: []string{"first", "second"}})
	tr.RunStdout(lines(
		`{"type":"assistant","message":{"content":[{"type":"text","text":"a"}]}}`,
		`{"type":"result"}`,
		`{"type":"assistant","message":{"content":[{"type":"text","text":"b"}]}}`,
		`{"type":"result"}`,
	))

	var turnIDs []string
	for _, ev := range rec.Events() {
		if ev.Message.Method == events.TurnStarted {
			turnIDs = append(turnIDs, params(t, ev)["turn"].(map[string]any)["id"].(string))
		}
	}
	assert.Equal(t, []string{"first", "second"}, turnIDs)

	// Accumulators reset between turns: the second delta is "b", not a suffix.
	var deltas []string
	for _, ev := range rec.Events() {
		if ev.Message.Method == events.ItemAgentMessageDelta {
			deltas = append(deltas, params(t, ev)["delta"].(string))
		}
	}
	assert.Equal(t, []string{"a", "b"}, deltas)
}

func TestRunStdout_ThinkingAndQuestions(t *testing.T) {
	tr, rec := newTestTranslator(t, &fakeTurns{ids: []string{"t1"}})
	tr.RunStdout(lines(
		`{"type":"assistant","message":{"content":[{"type":"thinking","thinking":"  plan  "},{"type":"thinking","thinking":"   "}]}}`,
		`{"type":"assistant","message":{"content":[{"type":"tool_use","id":"toolu_q","name":"AskUserQuestion","input":{"questions":[{"question":"Which db?","header":"DB","options":[{"label":"pg"}]},{"question":"Port?"}]}}]}}`,
		`{"type":"assistant","message":{"content":[{"type":"tool_use","id":"toolu_r","name":"AskUserQuestion","input":{"question":"Continue?"}}]}}`,
	))

	evs := rec.Events()
	reasoning := item(t, evs[2])
	assert.Equal(t, ItemReasoning, reasoning["type"])
	assert.Equal(t, "t1-assistant-thinking-1", reasoning["id"])
	assert.Equal(t, "plan", reasoning["content"])

	var requests []events.AppServerEvent
	for _, ev := range evs {
		if ev.Message.Method == events.ItemToolRequestUserInput {
			requests = append(requests, ev)
		}
	}
	require.Len(t, requests, 2)
	require.NotNil(t, requests[0].Message.ID)
	assert.Equal(t, int64(1), *requests[0].Message.ID)
	assert.Equal(t, int64(2), *requests[1].Message.ID)

	qs := params(t, requests[0])["questions"].([]map[string]any)
	require.Len(t, qs, 2)
	assert.Equal(t, "toolu_q", qs[0]["id"])
	assert.Equal(t, "DB", qs[0]["header"])
	assert.Equal(t, "toolu_q-1", qs[1]["id"])
	assert.Equal(t, DefaultQuestionHeader, qs[1]["header"])

	legacy := params(t, requests[1])["questions"].([]map[string]any)
	require.Len(t, legacy, 1)
	assert.Equal(t, "Continue?", legacy[0]["question"])
	assert.Equal(t, "toolu_r", params(t, requests[1])["toolUseId"])
}

func TestRunStdout_SharedRequestIDs(t *testing.T) {
	var next int64
	alloc := func() int64 {
		next++
		return next
	}
	ask := `{"type":"assistant","message":{"content":[{"type":"tool_use","id":"toolu_x","name":"AskUserQuestion","input":{"question":"Go?"}}]}}`

	var ids []int64
	for _, threadID := range []string{"thread-a", "thread-b"} {
		rec := events.NewRecorder()
		tr := New(Config{WorkspaceID: "ws-1", ThreadID: threadID, Sink: rec, RequestIDs: alloc}, logger.NewNop())
		tr.RunStdout(lines(ask))
		for _, ev := range rec.Events() {
			if ev.Message.Method == events.ItemToolRequestUserInput {
				require.NotNil(t, ev.Message.ID)
				ids = append(ids, *ev.Message.ID)
			}
		}
	}
	assert.Equal(t, []int64{1, 2}, ids)
}

func TestRunStdout_PermissionDenialsDeduplicated(t *testing.T) {
	tr, rec := newTestTranslator(t, &fakeTurns{ids: []string{"t1"}})
	tr.RunStdout(lines(
		`{"type":"assistant","message":{"content":[{"type":"tool_use","id":"toolu_w","name":"Write","input":{"file_path":"/x.go"}}]}}`,
		`{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"toolu_w","is_error":true,"content":"Claude requested permissions to write to /x.go, but you haven't granted it yet."}]}}`,
		`{"type":"result","permission_denials":[{"tool_name":"Write","tool_use_id":"toolu_w"},{"toolName":"Bash","toolUseId":"toolu_b","toolInput":{"command":"rm"}},{"tool_name":"  "}]}`,
	))

	var denials [][]map[string]any
	for _, ev := range rec.Events() {
		if ev.Message.Method == events.TurnPermissionDenied {
			denials = append(denials, params(t, ev)["permissionDenials"].([]map[string]any))
		}
	}
	require.Len(t, denials, 2)
	assert.Equal(t, "Write", denials[0][0]["toolName"])
	require.Len(t, denials[1], 1, "toolu_w was already reported")
	assert.Equal(t, "Bash", denials[1][0]["toolName"])
	assert.Equal(t, map[string]any{"command": "rm"}, denials[1][0]["toolInput"])
}

func TestRunStdout_SubagentOutputCollapsed(t *testing.T) {
	tr, rec := newTestTranslator(t, &fakeTurns{ids: []string{"t1"}})
	tr.RunStdout(lines(
		`{"type":"assistant","message":{"content":[{"type":"tool_use","id":"toolu_t","name":"Task","input":{"subagent_type":"explore"}}]}}`,
		`{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"toolu_t","content":"a very long transcript"}]},"toolUseResult":{"agentId":"ag-7"}}`,
	))

	var completed map[string]any
	for _, ev := range rec.Events() {
		if ev.Message.Method == events.ItemCompleted {
			completed = item(t, ev)
		}
	}
	require.NotNil(t, completed)
	assert.Equal(t, "Subagent ag-7 output is available in its thread.", completed["aggregatedOutput"])
}

func TestBeginTurn_OneShotTurnKeepsID(t *testing.T) {
	tr, rec := newTestTranslator(t, nil)
	tr.BeginTurn("fixed")
	tr.RunStdout(lines(
		`{"type":"assistant","message":{"content":[{"type":"text","text":"done"}]}}`,
		`{"type":"result"}`,
	))

	assert.Equal(t, []string{
		events.TurnStarted,
		events.ItemStarted,
		events.ItemAgentMessageDelta,
		events.ItemCompleted,
		events.TurnCompleted,
	}, rec.Methods())
	last := rec.Events()[4]
	assert.Equal(t, "fixed", params(t, last)["turn"].(map[string]any)["id"])
}

func TestRunStderr(t *testing.T) {
	tr, rec := newTestTranslator(t, nil)
	closed := 0
	tr.RunStderr(strings.NewReader("warning: slow\n\n   \nfatal: boom"), func() { closed++ })

	evs := rec.Events()
	require.Len(t, evs, 2)
	assert.Equal(t, events.ClaudeStderr, evs[0].Message.Method)
	assert.Equal(t, "warning: slow", params(t, evs[0])["message"])
	assert.Equal(t, "fatal: boom", params(t, evs[1])["message"])
	assert.Equal(t, "thread-1", params(t, evs[1])["threadId"])
	assert.Equal(t, 1, closed)
}
