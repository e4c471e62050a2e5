package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/xraph/forge"

	"github.com/xraph/stategraph/deadletter"
	"github.com/xraph/stategraph/execution"
	"github.com/xraph/stategraph/id"
)

func (a *API) listDeadLetters(ctx forge.Context, req *ListDeadLettersRequest) ([]*deadletter.Entry, error) {
	entries, err := a.eng.DeadLetters().Store().ListDeadLetters(ctx.Context(), deadletter.ListOpts{
		Limit:     defaultLimit(req.Limit),
		Offset:    req.Offset,
		GraphName: req.GraphName,
	})
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}

	return entries, ctx.JSON(http.StatusOK, entries)
}

func (a *API) getDeadLetter(ctx forge.Context, _ *GetDeadLetterRequest) (*deadletter.Entry, error) {
	entryID, err := id.ParseDeadLetterID(ctx.Param("entryId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid dead letter ID: %v", err))
	}

	entry, err := a.eng.DeadLetters().Store().GetDeadLetter(ctx.Context(), entryID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	return entry, ctx.JSON(http.StatusOK, entry)
}

func (a *API) resubmitDeadLetter(ctx forge.Context, _ *ResubmitDeadLetterRequest) (*execution.Execution, error) {
	entryID, err := id.ParseDeadLetterID(ctx.Param("entryId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid dead letter ID: %v", err))
	}

	e, err := a.eng.DeadLetters().Resubmit(ctx.Context(), entryID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	return e, ctx.JSON(http.StatusCreated, e)
}

func (a *API) purgeDeadLetters(ctx forge.Context) error {
	// Purge entries older than 30 days.
	before := time.Now().UTC().Add(-30 * 24 * time.Hour)

	count, err := a.eng.DeadLetters().Store().PurgeDeadLetters(ctx.Context(), before)
	if err != nil {
		return fmt.Errorf("purge dead letters: %w", err)
	}

	return ctx.JSON(http.StatusOK, PurgeDeadLettersResponse{Purged: count})
}

func (a *API) deadLetterCount(ctx forge.Context) error {
	count, err := a.eng.DeadLetters().Store().CountDeadLetters(ctx.Context())
	if err != nil {
		return fmt.Errorf("count dead letters: %w", err)
	}

	return ctx.JSON(http.StatusOK, DeadLetterCountResponse{Count: count})
}
