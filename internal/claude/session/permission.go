package session

import "strings"

// Access modes sent by clients.
const (
	AccessReadOnly   = "read-only"
	AccessFullAccess = "full-access"
	AccessCurrent    = "current"
)

// Permission modes understood by the claude CLI.
const (
	PermissionDefault           = "default"
	PermissionPlan              = "plan"
	PermissionBypassPermissions = "bypassPermissions"
	PermissionAcceptEdits       = "acceptEdits"
	PermissionDelegate          = "delegate"
	PermissionDontAsk           = "dontAsk"
)

var directPermissionModes = map[string]bool{
	PermissionAcceptEdits:       true,
	PermissionBypassPermissions: true,
	PermissionDefault:           true,
	PermissionDelegate:          true,
	PermissionDontAsk:           true,
	PermissionPlan:              true,
}

// PermissionModeArg maps an access mode to the value passed as
// --permission-mode. Empty means the flag is omitted.
func PermissionModeArg(accessMode string) string {
	mode := strings.TrimSpace(accessMode)
	switch mode {
	case AccessReadOnly:
		return PermissionPlan
	case AccessFullAccess:
		return PermissionBypassPermissions
	case AccessCurrent, "":
		return ""
	}
	if directPermissionModes[mode] {
		return mode
	}
	return ""
}

// NormalizePermissionMode maps an access mode to the permission mode a
// session is fingerprinted with. Unknown modes pass through verbatim.
func NormalizePermissionMode(accessMode string) string {
	mode := strings.TrimSpace(accessMode)
	switch mode {
	case AccessReadOnly:
		return PermissionPlan
	case AccessFullAccess:
		return PermissionBypassPermissions
	case AccessCurrent, "":
		return PermissionDefault
	}
	return mode
}

// NormalizeModel trims a model name; empty means the CLI default.
func NormalizeModel(model string) string {
	return strings.TrimSpace(model)
}
