package rpchandlers

import (
	"context"

	"github.com/siddartha-10/ClaudeCodeMonitor/internal/monitor"
	"github.com/siddartha-10/ClaudeCodeMonitor/pkg/rpc"
)

func (h *Handlers) ListWorkspaces(ctx context.Context, _ rpc.Params) (any, error) {
	return h.service.ListWorkspaces(ctx)
}

func (h *Handlers) AddWorkspace(ctx context.Context, p rpc.Params) (any, error) {
	path, err := p.String("path")
	if err != nil {
		return nil, err
	}
	return h.service.AddWorkspace(ctx, path, binParam(p))
}

func (h *Handlers) ConnectWorkspace(ctx context.Context, p rpc.Params) (any, error) {
	id, err := p.String("id")
	if err != nil {
		return nil, err
	}
	if err := h.service.ConnectWorkspace(ctx, id); err != nil {
		return nil, err
	}
	return &monitor.OK{OK: true}, nil
}

func (h *Handlers) RemoveWorkspace(ctx context.Context, p rpc.Params) (any, error) {
	id, err := p.String("id")
	if err != nil {
		return nil, err
	}
	if err := h.service.RemoveWorkspace(ctx, id); err != nil {
		return nil, err
	}
	return &monitor.OK{OK: true}, nil
}

func (h *Handlers) UpdateWorkspaceClaudeBin(ctx context.Context, p rpc.Params) (any, error) {
	id, err := p.String("id")
	if err != nil {
		return nil, err
	}
	return h.service.UpdateWorkspaceClaudeBin(ctx, id, binParam(p))
}
