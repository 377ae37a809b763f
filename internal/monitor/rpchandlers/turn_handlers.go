package rpchandlers

import (
	"context"

	"go.uber.org/zap"

	"github.com/siddartha-10/ClaudeCodeMonitor/internal/monitor"
	"github.com/siddartha-10/ClaudeCodeMonitor/pkg/rpc"
)

func (h *Handlers) SendUserMessage(ctx context.Context, p rpc.Params) (any, error) {
	workspaceID, threadID, err := threadParams(p)
	if err != nil {
		return nil, err
	}
	text, err := p.String("text")
	if err != nil {
		return nil, err
	}
	if _, ok := p.Value("collaborationMode"); ok {
		h.logger.Debug("ignoring collaboration mode", zap.String("workspace_id", workspaceID))
	}
	return h.service.SendUserMessage(ctx, workspaceID, monitor.UserMessage{
		ThreadID:   threadID,
		Text:       text,
		Model:      p.StringOr("model", ""),
		Effort:     p.StringOr("effort", ""),
		AccessMode: p.StringOr("accessMode", ""),
		Images:     p.StringArray("images"),
	})
}

func (h *Handlers) TurnInterrupt(ctx context.Context, p rpc.Params) (any, error) {
	workspaceID, threadID, err := threadParams(p)
	if err != nil {
		return nil, err
	}
	turnID, err := p.String("turnId")
	if err != nil {
		return nil, err
	}
	return h.service.TurnInterrupt(ctx, workspaceID, threadID, turnID)
}

func (h *Handlers) StartReview(ctx context.Context, p rpc.Params) (any, error) {
	workspaceID, threadID, err := threadParams(p)
	if err != nil {
		return nil, err
	}
	var target monitor.ReviewTarget
	if err := p.Decode("target", &target); err != nil {
		return nil, err
	}
	return h.service.StartReview(ctx, workspaceID, threadID, target, p.StringOr("delivery", ""))
}

func (h *Handlers) RespondToServerRequest(ctx context.Context, p rpc.Params) (any, error) {
	workspaceID, err := p.String("workspaceId")
	if err != nil {
		return nil, err
	}
	requestID, err := p.Uint64("requestId")
	if err != nil {
		return nil, err
	}
	result, ok := p.Value("result")
	if !ok {
		return nil, &rpc.ParamError{Message: "missing `result`"}
	}
	return h.service.RespondToServerRequest(ctx, workspaceID, int64(requestID),
		p.StringOr("threadId", ""), p.StringOr("toolUseId", ""), result)
}

// RememberApprovalRule accepts either a ready-made `rule` or the denied
// `command` as an argument list.
func (h *Handlers) RememberApprovalRule(ctx context.Context, p rpc.Params) (any, error) {
	workspaceID, err := p.String("workspaceId")
	if err != nil {
		return nil, err
	}
	rule := p.StringOr("rule", "")
	if _, ok := p.Value("command"); !ok && rule == "" {
		return nil, &rpc.ParamError{Message: "missing `command`"}
	}
	return h.service.RememberApprovalRule(ctx, workspaceID, rule, p.StringArray("command"))
}
