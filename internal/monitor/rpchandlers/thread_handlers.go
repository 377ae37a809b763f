package rpchandlers

import (
	"context"

	"github.com/siddartha-10/ClaudeCodeMonitor/pkg/rpc"
)

// threadParams reads the workspaceId and threadId every thread method takes.
func threadParams(p rpc.Params) (string, string, error) {
	workspaceID, err := p.String("workspaceId")
	if err != nil {
		return "", "", err
	}
	threadID, err := p.String("threadId")
	if err != nil {
		return "", "", err
	}
	return workspaceID, threadID, nil
}

func (h *Handlers) StartThread(ctx context.Context, p rpc.Params) (any, error) {
	workspaceID, err := p.String("workspaceId")
	if err != nil {
		return nil, err
	}
	return h.service.StartThread(ctx, workspaceID)
}

func (h *Handlers) ResumeThread(ctx context.Context, p rpc.Params) (any, error) {
	workspaceID, threadID, err := threadParams(p)
	if err != nil {
		return nil, err
	}
	return h.service.ResumeThread(ctx, workspaceID, threadID)
}

func (h *Handlers) ListThreads(ctx context.Context, p rpc.Params) (any, error) {
	workspaceID, err := p.String("workspaceId")
	if err != nil {
		return nil, err
	}
	return h.service.ListThreads(ctx, workspaceID, p.StringOr("cursor", ""), p.OptionalUint32("limit"))
}

func (h *Handlers) ArchiveThread(ctx context.Context, p rpc.Params) (any, error) {
	workspaceID, threadID, err := threadParams(p)
	if err != nil {
		return nil, err
	}
	return h.service.ArchiveThread(ctx, workspaceID, threadID)
}

func (h *Handlers) ForkThread(ctx context.Context, p rpc.Params) (any, error) {
	workspaceID, threadID, err := threadParams(p)
	if err != nil {
		return nil, err
	}
	messageID, err := p.String("messageId")
	if err != nil {
		return nil, err
	}
	return h.service.ForkThread(ctx, workspaceID, threadID, messageID)
}

func (h *Handlers) SearchThread(ctx context.Context, p rpc.Params) (any, error) {
	workspaceID, err := p.String("workspaceId")
	if err != nil {
		return nil, err
	}
	query, err := p.String("query")
	if err != nil {
		return nil, err
	}
	return h.service.SearchThreads(ctx, workspaceID, query)
}
