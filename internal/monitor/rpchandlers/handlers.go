// Package rpchandlers maps daemon RPC methods onto the monitor service.
package rpchandlers

import (
	"context"

	"go.uber.org/zap"

	"github.com/siddartha-10/ClaudeCodeMonitor/internal/common/logger"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/monitor"
	"github.com/siddartha-10/ClaudeCodeMonitor/pkg/rpc"
)

// Handlers contains the RPC handlers for the monitor service
type Handlers struct {
	service *monitor.Service
	logger  *logger.Logger
}

// NewHandlers creates a new RPC handlers instance
func NewHandlers(svc *monitor.Service, log *logger.Logger) *Handlers {
	return &Handlers{
		service: svc,
		logger:  log.WithFields(zap.String("component", "monitor-rpc-handlers")),
	}
}

// RegisterHandlers registers all monitor handlers with the dispatcher
func (h *Handlers) RegisterHandlers(d *rpc.Dispatcher) {
	d.RegisterFunc(rpc.MethodPing, h.Ping)

	// Workspace handlers
	d.RegisterFunc(rpc.MethodListWorkspaces, h.ListWorkspaces)
	d.RegisterFunc(rpc.MethodAddWorkspace, h.AddWorkspace)
	d.RegisterFunc(rpc.MethodConnectWorkspace, h.ConnectWorkspace)
	d.RegisterFunc(rpc.MethodRemoveWorkspace, h.RemoveWorkspace)
	d.RegisterFunc(rpc.MethodUpdateWorkspaceClaudeBin, h.UpdateWorkspaceClaudeBin)
	d.RegisterFunc(rpc.MethodUpdateWorkspaceCodexBin, h.UpdateWorkspaceClaudeBin)

	// Thread handlers
	d.RegisterFunc(rpc.MethodStartThread, h.StartThread)
	d.RegisterFunc(rpc.MethodResumeThread, h.ResumeThread)
	d.RegisterFunc(rpc.MethodListThreads, h.ListThreads)
	d.RegisterFunc(rpc.MethodArchiveThread, h.ArchiveThread)
	d.RegisterFunc(rpc.MethodForkThread, h.ForkThread)
	d.RegisterFunc(rpc.MethodSearchThread, h.SearchThread)

	// Turn handlers
	d.RegisterFunc(rpc.MethodSendUserMessage, h.SendUserMessage)
	d.RegisterFunc(rpc.MethodTurnInterrupt, h.TurnInterrupt)
	d.RegisterFunc(rpc.MethodStartReview, h.StartReview)
	d.RegisterFunc(rpc.MethodRespondToServerRequest, h.RespondToServerRequest)
	d.RegisterFunc(rpc.MethodRememberApprovalRule, h.RememberApprovalRule)

	// Catalog handlers
	d.RegisterFunc(rpc.MethodModelList, h.ModelList)
	d.RegisterFunc(rpc.MethodCollaborationModeList, h.CollaborationModeList)
	d.RegisterFunc(rpc.MethodAccountRateLimits, h.AccountRateLimits)
	d.RegisterFunc(rpc.MethodSkillsList, h.SkillsList)
	d.RegisterFunc(rpc.MethodGenerateRunMetadata, h.GenerateRunMetadata)
	d.RegisterFunc(rpc.MethodClaudeDoctor, h.Doctor)
	d.RegisterFunc(rpc.MethodCodexDoctor, h.Doctor)
}

// Ping answers liveness checks.
func (h *Handlers) Ping(_ context.Context, _ rpc.Params) (any, error) {
	return &monitor.OK{OK: true}, nil
}

// binParam reads the binary override under any of its accepted names.
func binParam(p rpc.Params) *string {
	for _, key := range []string{"claude_bin", "claudeBin", "codex_bin", "codexBin"} {
		if bin := p.OptionalString(key); bin != nil {
			return bin
		}
	}
	return nil
}
