package provision

// Handler references the graph definitions bind to. Deployments register an
// implementation for each reference their graphs use.
const (
	HandlerCheckForRunningProcesses = "check-for-running-processes"
	HandlerCreateAccount            = "create-account"
	HandlerGetAccountStatus         = "get-account-status"
	HandlerCreateResources          = "create-additional-resources"
	HandlerValidateResources        = "validate-resources"
	HandlerSendCompletionEmail      = "send-completion-email"
	HandlerSyncDirectoryGroups      = "sync-directory-groups"
	HandlerValidateGroupSync        = "validate-group-sync"
	HandlerAttachPermissionSets     = "attach-permission-sets"
)

// HandlerRefs lists every handler reference used across the shipped graphs.
func HandlerRefs() []string {
	return []string{
		HandlerCheckForRunningProcesses,
		HandlerCreateAccount,
		HandlerGetAccountStatus,
		HandlerCreateResources,
		HandlerValidateResources,
		HandlerSendCompletionEmail,
		HandlerSyncDirectoryGroups,
		HandlerValidateGroupSync,
		HandlerAttachPermissionSets,
	}
}
