package translator

import (
	"fmt"
	"strings"

	"github.com/siddartha-10/ClaudeCodeMonitor/internal/events"
	"github.com/siddartha-10/ClaudeCodeMonitor/pkg/claudecode"
)

// handleAssistant processes thinking, tool_use and text from an assistant
// line. The CLI resends the whole message text on every update.
func (t *Translator) handleAssistant(line claudecode.Line) {
	message := line.Message()
	if message == nil {
		return
	}
	if model := claudecode.String(message, "model"); strings.TrimSpace(model) != "" {
		t.turn.lastModel = model
	}

	for _, entry := range claudecode.Array(message["content"]) {
		block := claudecode.Object(entry)
		switch claudecode.String(block, "type") {
		case claudecode.BlockThinking:
			t.handleThinking(block)
		case claudecode.BlockToolUse:
			t.handleToolUse(block)
		}
	}

	if text := claudecode.MessageText(message); text != "" {
		t.turn.fullText = text
		if delta := NextDelta(t.turn.lastText, text); delta != "" {
			t.emit(events.ItemAgentMessageDelta, map[string]any{
				"threadId": t.threadID,
				"itemId":   t.turn.itemID,
				"delta":    delta,
			})
			t.turn.lastText = text
		}
	}
	if usage, ok := message["usage"]; ok {
		t.turn.lastUsage = usage
	}
}

func (t *Translator) handleThinking(block map[string]any) {
	thinking := strings.TrimSpace(claudecode.String(block, "thinking"))
	if thinking == "" {
		return
	}
	t.turn.thinkingCount++
	t.emit(events.ItemStarted, map[string]any{
		"threadId": t.threadID,
		"item": map[string]any{
			"id":      fmt.Sprintf("%s-thinking-%d", t.turn.itemID, t.turn.thinkingCount),
			"type":    ItemReasoning,
			"summary": "",
			"content": thinking,
		},
	})
}

func (t *Translator) handleToolUse(block map[string]any) {
	toolID := claudecode.String(block, "id")
	toolName, ok := block["name"].(string)
	if !ok {
		toolName = "Tool"
	}
	toolInput := block["input"]
	if toolID != "" {
		t.turn.toolNames[toolID] = toolName
		t.turn.toolInputs[toolID] = toolInput
	}

	itemID := toolID
	if itemID == "" {
		t.turn.toolCounter++
		itemID = fmt.Sprintf("%s-tool-%d", t.turn.id, t.turn.toolCounter)
	}

	if toolName == claudecode.AskUserQuestionTool {
		t.emitWithID(events.ItemToolRequestUserInput, t.nextRequestID(), map[string]any{
			"threadId":  t.threadID,
			"turnId":    t.turn.id,
			"itemId":    itemID,
			"toolUseId": toolID,
			"questions": NormalizeQuestions(toolID, toolInput),
		})
	}

	t.emit(events.ItemStarted, map[string]any{
		"threadId": t.threadID,
		"item":     BuildToolItem(itemID, toolName, toolInput, StatusRunning, nil, nil),
	})
}

// handleToolResults completes the tool items answered by a user line.
func (t *Translator) handleToolResults(line claudecode.Line) {
	for index, entry := range line.Content() {
		block := claudecode.Object(entry)
		if claudecode.String(block, "type") != claudecode.BlockToolResult {
			continue
		}
		toolUseID := claudecode.String(block, "tool_use_id", "toolUseId")
		content := block["content"]
		output := ToolResultOutput(content)
		if strings.TrimSpace(output) == "" {
			if fallback := line.Field("toolUseResult", "tool_use_result"); fallback != nil {
				if inner, ok := claudecode.Object(fallback)["content"]; ok {
					output = ToolResultOutput(inner)
				} else {
					output = ToolResultOutput(fallback)
				}
			}
		}

		command, ok := t.turn.toolNames[toolUseID]
		if !ok {
			command = "Tool"
		}
		toolInput := t.turn.toolInputs[toolUseID]

		if claudecode.Bool(block, "is_error") && IsPermissionDenial(output) {
			denialID := toolUseID
			if denialID == "" {
				denialID = fmt.Sprintf("%s-%s-%d", t.threadID, command, index)
			}
			if t.markDenied(denialID) {
				t.emit(events.TurnPermissionDenied, map[string]any{
					"threadId": t.threadID,
					"turnId":   t.turn.id,
					"permissionDenials": []map[string]any{{
						"toolName":  command,
						"toolUseId": toolUseID,
						"toolInput": toolInput,
					}},
				})
			}
		}

		output = CollapseSubagentOutput(output, command, toolInput, line)
		itemID := toolUseID
		if itemID == "" {
			t.turn.toolCounter++
			itemID = fmt.Sprintf("%s-tool-result-%d", t.turn.id, t.turn.toolCounter)
		}
		t.emit(events.ItemCompleted, map[string]any{
			"threadId": t.threadID,
			"item": BuildToolItem(itemID, command, toolInput, StatusCompleted,
				&output, ToolResultValue(content, line)),
		})
	}
}

// handleResult closes the turn: batched denials, token usage, the final
// agent message and turn/completed, in that order.
func (t *Translator) handleResult(line claudecode.Line) {
	if usage, ok := line["usage"]; ok {
		t.turn.lastUsage = usage
	}
	if modelUsage, ok := line["modelUsage"]; ok {
		t.turn.lastModelUsage = modelUsage
	}

	if denials := t.resultDenials(line); len(denials) > 0 {
		t.emit(events.TurnPermissionDenied, map[string]any{
			"threadId":          t.threadID,
			"turnId":            t.turn.id,
			"permissionDenials": denials,
		})
	}

	if !t.turn.active {
		return
	}
	if usage, ok := FormatTokenUsage(t.turn.lastUsage, t.turn.lastModelUsage); ok {
		t.emit(events.ThreadTokenUsageUpdated, map[string]any{
			"threadId":   t.threadID,
			"tokenUsage": usage,
		})
	}
	t.turn.lastUsage = nil

	var model any
	if t.turn.lastModel != "" {
		model = t.turn.lastModel
	}
	t.emit(events.ItemCompleted, map[string]any{
		"threadId": t.threadID,
		"item": map[string]any{
			"id":    t.turn.itemID,
			"type":  ItemAgentMessage,
			"text":  t.turn.fullText,
			"model": model,
		},
	})
	t.emitTurnCompleted()
	t.turn.active = false
}

func (t *Translator) resultDenials(line claudecode.Line) []map[string]any {
	var denials []map[string]any
	for index, entry := range claudecode.Array(line.Field("permission_denials", "permissionDenials")) {
		denial := claudecode.Object(entry)
		toolName := strings.TrimSpace(claudecode.String(denial, "tool_name", "toolName"))
		if toolName == "" {
			continue
		}
		toolUseID := claudecode.String(denial, "tool_use_id", "toolUseId")
		denialID := toolUseID
		if denialID == "" {
			denialID = fmt.Sprintf("%s-%s-%d", t.threadID, toolName, index)
		}
		if !t.markDenied(denialID) {
			continue
		}
		denials = append(denials, map[string]any{
			"toolName":  toolName,
			"toolUseId": toolUseID,
			"toolInput": claudecode.First(denial, "tool_input", "toolInput"),
		})
	}
	return denials
}

// markDenied records a denial id and reports whether it was new.
func (t *Translator) markDenied(id string) bool {
	if t.turn.deniedIDs == nil {
		t.turn.deniedIDs = make(map[string]bool)
	}
	if t.turn.deniedIDs[id] {
		return false
	}
	t.turn.deniedIDs[id] = true
	return true
}
