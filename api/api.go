package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/stategraph/deadletter"
	"github.com/xraph/stategraph/engine"
	"github.com/xraph/stategraph/execution"
)

// API wires all Forge-style HTTP handlers together for the stategraph system.
type API struct {
	eng    *engine.Engine
	router forge.Router
}

// New creates an API from a stategraph Engine.
func New(eng *engine.Engine, router forge.Router) *API {
	return &API{eng: eng, router: router}
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	if a.router == nil {
		a.router = forge.NewRouter()
	}
	a.RegisterRoutes(a.router)
	return a.router.Handler()
}

// RegisterRoutes registers all stategraph API routes into the given Forge
// router with full OpenAPI metadata.
func (a *API) RegisterRoutes(router forge.Router) {
	a.registerExecutionRoutes(router)
	a.registerGraphRoutes(router)
	a.registerDeadLetterRoutes(router)
	a.registerStatsRoutes(router)
}

// registerExecutionRoutes registers execution management routes.
func (a *API) registerExecutionRoutes(router forge.Router) {
	g := router.Group("/v1", forge.WithGroupTags("executions"))

	_ = g.POST("/executions", a.submitExecution,
		forge.WithSummary("Submit execution"),
		forge.WithDescription("Starts a new execution of a registered graph."),
		forge.WithOperationID("submitExecution"),
		forge.WithRequestSchema(SubmitExecutionRequest{}),
		forge.WithCreatedResponse(&execution.Execution{}),
		forge.WithErrorResponses(),
	)

	_ = g.GET("/executions", a.listExecutions,
		forge.WithSummary("List executions"),
		forge.WithDescription("Returns executions filtered by graph and status."),
		forge.WithOperationID("listExecutions"),
		forge.WithRequestSchema(ListExecutionsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Execution list", []*execution.Execution{}),
		forge.WithErrorResponses(),
	)

	_ = g.GET("/executions/:executionId", a.getExecution,
		forge.WithSummary("Get execution"),
		forge.WithDescription("Returns the current state of a specific execution."),
		forge.WithOperationID("getExecution"),
		forge.WithResponseSchema(http.StatusOK, "Execution details", &execution.Execution{}),
		forge.WithErrorResponses(),
	)

	_ = g.GET("/executions/:executionId/history", a.getExecutionHistory,
		forge.WithSummary("Get execution history"),
		forge.WithDescription("Returns the execution's step transitions in order."),
		forge.WithOperationID("getExecutionHistory"),
		forge.WithResponseSchema(http.StatusOK, "Execution history", []*execution.HistoryEntry{}),
		forge.WithErrorResponses(),
	)
}

// registerGraphRoutes registers graph inspection routes.
func (a *API) registerGraphRoutes(router forge.Router) {
	g := router.Group("/v1", forge.WithGroupTags("graphs"))

	_ = g.GET("/graphs", a.listGraphs,
		forge.WithSummary("List graphs"),
		forge.WithDescription("Returns the names of all registered graphs."),
		forge.WithOperationID("listGraphs"),
		forge.WithResponseSchema(http.StatusOK, "Graph names", ListGraphsResponse{}),
		forge.WithErrorResponses(),
	)
}

// registerDeadLetterRoutes registers dead letter archive routes.
func (a *API) registerDeadLetterRoutes(router forge.Router) {
	g := router.Group("/v1", forge.WithGroupTags("deadletters"))

	_ = g.GET("/deadletters", a.listDeadLetters,
		forge.WithSummary("List dead letters"),
		forge.WithDescription("Returns archived terminal failures."),
		forge.WithOperationID("listDeadLetters"),
		forge.WithRequestSchema(ListDeadLettersRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Dead letter entries", []*deadletter.Entry{}),
		forge.WithErrorResponses(),
	)

	_ = g.GET("/deadletters/:entryId", a.getDeadLetter,
		forge.WithSummary("Get dead letter"),
		forge.WithDescription("Returns details of a specific dead letter entry."),
		forge.WithOperationID("getDeadLetter"),
		forge.WithResponseSchema(http.StatusOK, "Dead letter details", &deadletter.Entry{}),
		forge.WithErrorResponses(),
	)

	_ = g.POST("/deadletters/:entryId/resubmit", a.resubmitDeadLetter,
		forge.WithSummary("Resubmit dead letter"),
		forge.WithDescription("Starts a fresh execution with the entry's original input."),
		forge.WithOperationID("resubmitDeadLetter"),
		forge.WithCreatedResponse(&execution.Execution{}),
		forge.WithErrorResponses(),
	)

	_ = g.POST("/deadletters/purge", a.purgeDeadLetters,
		forge.WithSummary("Purge dead letters"),
		forge.WithDescription("Removes old dead letter entries."),
		forge.WithOperationID("purgeDeadLetters"),
		forge.WithResponseSchema(http.StatusOK, "Purge result", PurgeDeadLettersResponse{}),
		forge.WithErrorResponses(),
	)

	_ = g.GET("/deadletters/count", a.deadLetterCount,
		forge.WithSummary("Dead letter count"),
		forge.WithDescription("Returns the total number of dead letter entries."),
		forge.WithOperationID("deadLetterCount"),
		forge.WithResponseSchema(http.StatusOK, "Dead letter count", DeadLetterCountResponse{}),
		forge.WithErrorResponses(),
	)
}

// registerStatsRoutes registers aggregate statistics routes.
func (a *API) registerStatsRoutes(router forge.Router) {
	g := router.Group("/v1", forge.WithGroupTags("stats"))

	_ = g.GET("/stats", a.stats,
		forge.WithSummary("Stategraph stats"),
		forge.WithDescription("Returns execution counts per status and the dead letter total."),
		forge.WithOperationID("stategraphStats"),
		forge.WithResponseSchema(http.StatusOK, "Stategraph statistics", StatsResponse{}),
		forge.WithErrorResponses(),
	)
}
