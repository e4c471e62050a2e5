package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/stategraph/execution"
)

func (a *API) stats(ctx forge.Context) error {
	c := ctx.Context()

	// Execution counts per status.
	var counts ExecutionCounts
	for _, status := range []execution.Status{
		execution.StatusRunning, execution.StatusSucceeded,
		execution.StatusFailed, execution.StatusTimedOut,
	} {
		execs, err := a.eng.Coordinator().List(c, execution.ListOpts{Status: status})
		if err != nil {
			return err
		}
		switch status {
		case execution.StatusRunning:
			counts.Running = len(execs)
		case execution.StatusSucceeded:
			counts.Succeeded = len(execs)
		case execution.StatusFailed:
			counts.Failed = len(execs)
		case execution.StatusTimedOut:
			counts.TimedOut = len(execs)
		}
	}

	dlCount, err := a.eng.DeadLetters().Store().CountDeadLetters(c)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, StatsResponse{
		Executions:      counts,
		DeadLetterCount: dlCount,
	})
}
