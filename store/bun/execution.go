package bunstore

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/stategraph"
	"github.com/xraph/stategraph/execution"
	"github.com/xraph/stategraph/id"
)

// CreateExecution persists a new execution.
func (s *Store) CreateExecution(ctx context.Context, e *execution.Execution) error {
	m, err := toExecutionModel(e)
	if err != nil {
		return err
	}
	_, err = s.db.NewInsert().Model(m).Exec(ctx)
	if err != nil {
		if isDuplicateKey(err) {
			return stategraph.ErrExecutionExists
		}
		return fmt.Errorf("stategraph/bun: create execution: %w", err)
	}
	return nil
}

// GetExecution retrieves an execution by ID.
func (s *Store) GetExecution(ctx context.Context, execID id.ExecutionID) (*execution.Execution, error) {
	m := new(executionModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", execID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, stategraph.ErrUnknownExecution
		}
		return nil, fmt.Errorf("stategraph/bun: get execution: %w", err)
	}
	return fromExecutionModel(m)
}

// ListExecutions returns executions matching opts, newest first.
func (s *Store) ListExecutions(ctx context.Context, opts execution.ListOpts) ([]*execution.Execution, error) {
	var models []executionModel
	q := s.db.NewSelect().Model(&models)

	if opts.GraphName != "" {
		q = q.Where("graph_name = ?", opts.GraphName)
	}
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}

	q = q.Order("started_at DESC")

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("stategraph/bun: list executions: %w", err)
	}

	execs := make([]*execution.Execution, 0, len(models))
	for i := range models {
		e, convErr := fromExecutionModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("stategraph/bun: list convert: %w", convErr)
		}
		execs = append(execs, e)
	}
	return execs, nil
}

// ClaimDue atomically claims up to limit due executions. Each row is
// claimed with its own fresh step token via SELECT FOR UPDATE SKIP LOCKED,
// so concurrent stepper processes never claim the same execution.
func (s *Store) ClaimDue(ctx context.Context, now time.Time, claimTTL time.Duration, limit int) ([]*execution.Execution, error) {
	claimed := make([]*execution.Execution, 0, limit)

	for len(claimed) < limit {
		token := id.NewStepperID().String()

		var models []executionModel
		_, err := s.db.NewRaw(`
			UPDATE stategraph_executions
			SET step_token = ?0, claimed_at = ?1, updated_at = ?1
			WHERE id = (
				SELECT id FROM stategraph_executions
				WHERE status = 'RUNNING'
				  AND due_at <= ?1
				  AND (step_token = '' OR claimed_at IS NULL OR claimed_at <= ?1 - ?2::interval)
				ORDER BY due_at ASC
				FOR UPDATE SKIP LOCKED
				LIMIT 1
			)
			RETURNING *`,
			token, now.UTC(), claimTTL.String(),
		).Exec(ctx, &models)
		if err != nil {
			return nil, fmt.Errorf("stategraph/bun: claim due: %w", err)
		}
		if len(models) == 0 {
			break
		}

		e, convErr := fromExecutionModel(&models[0])
		if convErr != nil {
			return nil, fmt.Errorf("stategraph/bun: claim convert: %w", convErr)
		}
		claimed = append(claimed, e)
	}
	return claimed, nil
}

// CompleteStep persists the outcome of one step, compare-and-set on the
// step token. A mismatch means the claim was reissued to another stepper.
func (s *Store) CompleteStep(ctx context.Context, e *execution.Execution) error {
	out := e.Clone()
	out.StepToken = ""
	out.ClaimedAt = time.Time{}
	out.UpdatedAt = time.Now().UTC()

	m, err := toExecutionModel(out)
	if err != nil {
		return err
	}

	res, err := s.db.NewUpdate().Model(m).
		WherePK().
		Where("step_token = ?", e.StepToken).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("stategraph/bun: complete step: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		exists, cErr := s.db.NewSelect().
			TableExpr("stategraph_executions").
			Where("id = ?", e.ID.String()).
			Exists(ctx)
		if cErr != nil {
			return fmt.Errorf("stategraph/bun: complete step check: %w", cErr)
		}
		if !exists {
			return stategraph.ErrUnknownExecution
		}
		return stategraph.ErrStaleStep
	}
	return nil
}

// AppendHistory records one step transition. Sequence numbers need no
// locking: entries for one execution are appended only by its claim holder.
func (s *Store) AppendHistory(ctx context.Context, entry *execution.HistoryEntry) error {
	if entry.Seq == 0 {
		var maxSeq int
		err := s.db.NewSelect().
			TableExpr("stategraph_history").
			ColumnExpr("COALESCE(MAX(seq), 0)").
			Where("execution_id = ?", entry.ExecutionID.String()).
			Scan(ctx, &maxSeq)
		if err != nil {
			return fmt.Errorf("stategraph/bun: history max seq: %w", err)
		}
		entry.Seq = maxSeq + 1
	}

	m := toHistoryModel(entry)
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("stategraph/bun: append history: %w", err)
	}
	return nil
}

// ListHistory returns an execution's history ordered by sequence.
func (s *Store) ListHistory(ctx context.Context, execID id.ExecutionID) ([]*execution.HistoryEntry, error) {
	var models []historyModel
	err := s.db.NewSelect().Model(&models).
		Where("execution_id = ?", execID.String()).
		Order("seq ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("stategraph/bun: list history: %w", err)
	}

	entries := make([]*execution.HistoryEntry, 0, len(models))
	for i := range models {
		entry, convErr := fromHistoryModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("stategraph/bun: list history convert: %w", convErr)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
