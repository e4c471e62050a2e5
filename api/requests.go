package api

// Request and response types for the HTTP API. Forge binds query and body
// fields from the struct tags.

// SubmitExecutionRequest starts a new execution of a registered graph.
type SubmitExecutionRequest struct {
	GraphName string         `json:"graph_name"`
	Input     map[string]any `json:"input"`
}

// ListExecutionsRequest filters and pages the execution listing.
type ListExecutionsRequest struct {
	GraphName string `query:"graph"`
	Status    string `query:"status"`
	Limit     int    `query:"limit"`
	Offset    int    `query:"offset"`
}

// GetExecutionRequest fetches a single execution.
type GetExecutionRequest struct{}

// GetExecutionHistoryRequest fetches an execution's history.
type GetExecutionHistoryRequest struct{}

// ListGraphsResponse lists registered graph names.
type ListGraphsResponse struct {
	Names []string `json:"names"`
}

// ListDeadLettersRequest filters and pages the dead letter listing.
type ListDeadLettersRequest struct {
	GraphName string `query:"graph"`
	Limit     int    `query:"limit"`
	Offset    int    `query:"offset"`
}

// GetDeadLetterRequest fetches a single dead letter entry.
type GetDeadLetterRequest struct{}

// ResubmitDeadLetterRequest resubmits a dead letter entry.
type ResubmitDeadLetterRequest struct{}

// PurgeDeadLettersResponse reports how many entries were removed.
type PurgeDeadLettersResponse struct {
	Purged int64 `json:"purged"`
}

// DeadLetterCountResponse reports the archive size.
type DeadLetterCountResponse struct {
	Count int64 `json:"count"`
}

// ExecutionCounts groups execution totals by status.
type ExecutionCounts struct {
	Running   int `json:"running"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	TimedOut  int `json:"timed_out"`
}

// StatsResponse is the aggregate statistics payload.
type StatsResponse struct {
	Executions      ExecutionCounts `json:"executions"`
	DeadLetterCount int64           `json:"dead_letter_count"`
}

// defaultLimit caps unbounded list requests.
func defaultLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}
