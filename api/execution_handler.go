// Package api provides HTTP handlers for the stategraph API.
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/stategraph"
	"github.com/xraph/stategraph/execution"
	"github.com/xraph/stategraph/id"
)

func (a *API) submitExecution(ctx forge.Context, req *SubmitExecutionRequest) (*execution.Execution, error) {
	if req.GraphName == "" {
		return nil, forge.BadRequest("graph_name is required")
	}

	e, err := a.eng.Submit(ctx.Context(), req.GraphName, req.Input)
	if err != nil {
		if errors.Is(err, stategraph.ErrUnknownGraph) {
			return nil, forge.NotFound(err.Error())
		}
		return nil, fmt.Errorf("submit execution: %w", err)
	}

	return e, ctx.JSON(http.StatusCreated, e)
}

func (a *API) listExecutions(ctx forge.Context, req *ListExecutionsRequest) ([]*execution.Execution, error) {
	execs, err := a.eng.Coordinator().List(ctx.Context(), execution.ListOpts{
		GraphName: req.GraphName,
		Status:    execution.Status(req.Status),
		Limit:     defaultLimit(req.Limit),
		Offset:    req.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}

	return execs, ctx.JSON(http.StatusOK, execs)
}

func (a *API) getExecution(ctx forge.Context, _ *GetExecutionRequest) (*execution.Execution, error) {
	execID, err := id.ParseExecutionID(ctx.Param("executionId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid execution ID: %v", err))
	}

	e, err := a.eng.Status(ctx.Context(), execID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	return e, ctx.JSON(http.StatusOK, e)
}

func (a *API) getExecutionHistory(ctx forge.Context, _ *GetExecutionHistoryRequest) ([]*execution.HistoryEntry, error) {
	execID, err := id.ParseExecutionID(ctx.Param("executionId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid execution ID: %v", err))
	}

	entries, err := a.eng.History(ctx.Context(), execID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	return entries, ctx.JSON(http.StatusOK, entries)
}

func (a *API) listGraphs(ctx forge.Context) error {
	return ctx.JSON(http.StatusOK, ListGraphsResponse{Names: a.eng.Graphs().Names()})
}

// mapStoreError converts stategraph sentinel errors to forge HTTP errors.
func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return forge.NotFound(err.Error())
	}
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, stategraph.ErrUnknownExecution) ||
		errors.Is(err, stategraph.ErrUnknownGraph) ||
		errors.Is(err, stategraph.ErrDeadLetterNotFound) ||
		errors.Is(err, stategraph.ErrEventNotFound)
}
