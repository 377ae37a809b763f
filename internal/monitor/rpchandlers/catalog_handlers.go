package rpchandlers

import (
	"context"

	"github.com/siddartha-10/ClaudeCodeMonitor/pkg/rpc"
)

func (h *Handlers) ModelList(ctx context.Context, p rpc.Params) (any, error) {
	workspaceID, err := p.String("workspaceId")
	if err != nil {
		return nil, err
	}
	return h.service.ModelList(ctx, workspaceID)
}

func (h *Handlers) CollaborationModeList(ctx context.Context, p rpc.Params) (any, error) {
	workspaceID, err := p.String("workspaceId")
	if err != nil {
		return nil, err
	}
	return h.service.CollaborationModeList(ctx, workspaceID)
}

func (h *Handlers) AccountRateLimits(ctx context.Context, p rpc.Params) (any, error) {
	workspaceID, err := p.String("workspaceId")
	if err != nil {
		return nil, err
	}
	return h.service.AccountRateLimits(ctx, workspaceID)
}

func (h *Handlers) SkillsList(ctx context.Context, p rpc.Params) (any, error) {
	workspaceID, err := p.String("workspaceId")
	if err != nil {
		return nil, err
	}
	return h.service.SkillsList(ctx, workspaceID)
}

func (h *Handlers) GenerateRunMetadata(ctx context.Context, p rpc.Params) (any, error) {
	workspaceID, err := p.String("workspaceId")
	if err != nil {
		return nil, err
	}
	prompt, err := p.String("prompt")
	if err != nil {
		return nil, err
	}
	return h.service.GenerateRunMetadata(ctx, workspaceID, prompt)
}

// Doctor reports on the claude installation. It takes no workspace.
func (h *Handlers) Doctor(ctx context.Context, p rpc.Params) (any, error) {
	bin := ""
	if override := binParam(p); override != nil {
		bin = *override
	}
	return h.service.Doctor(ctx, bin), nil
}
