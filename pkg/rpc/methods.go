package rpc

// Method names understood by the daemon.
const (
	MethodAuth = "auth"
	MethodPing = "ping"

	// Workspace methods
	MethodListWorkspaces           = "list_workspaces"
	MethodAddWorkspace             = "add_workspace"
	MethodConnectWorkspace         = "connect_workspace"
	MethodRemoveWorkspace          = "remove_workspace"
	MethodUpdateWorkspaceClaudeBin = "update_workspace_claude_bin"
	MethodUpdateWorkspaceCodexBin  = "update_workspace_codex_bin"

	// Thread methods
	MethodStartThread   = "start_thread"
	MethodResumeThread  = "resume_thread"
	MethodListThreads   = "list_threads"
	MethodArchiveThread = "archive_thread"
	MethodForkThread    = "fork_thread"
	MethodSearchThread  = "search_thread"

	// Turn methods
	MethodSendUserMessage        = "send_user_message"
	MethodTurnInterrupt          = "turn_interrupt"
	MethodStartReview            = "start_review"
	MethodRespondToServerRequest = "respond_to_server_request"
	MethodRememberApprovalRule   = "remember_approval_rule"
	MethodGenerateRunMetadata    = "generate_run_metadata"
	MethodModelList              = "model_list"
	MethodCollaborationModeList  = "collaboration_mode_list"
	MethodAccountRateLimits      = "account_rate_limits"
	MethodSkillsList             = "skills_list"
	MethodClaudeDoctor           = "claude_doctor"
	MethodCodexDoctor            = "codex_doctor"
	MethodAppServerEvent         = "app-server-event"
)
