package bunstore

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/stategraph"
	"github.com/xraph/stategraph/deadletter"
	"github.com/xraph/stategraph/id"
)

// PushDeadLetter archives a terminal failure.
func (s *Store) PushDeadLetter(ctx context.Context, entry *deadletter.Entry) error {
	m, err := toDeadLetterModel(entry)
	if err != nil {
		return err
	}
	_, err = s.db.NewInsert().Model(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("stategraph/bun: push dead letter: %w", err)
	}
	return nil
}

// ListDeadLetters returns entries matching the given options, oldest first.
func (s *Store) ListDeadLetters(ctx context.Context, opts deadletter.ListOpts) ([]*deadletter.Entry, error) {
	var models []deadLetterModel
	q := s.db.NewSelect().Model(&models)

	if opts.GraphName != "" {
		q = q.Where("graph_name = ?", opts.GraphName)
	}

	q = q.Order("failed_at ASC")

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("stategraph/bun: list dead letters: %w", err)
	}

	entries := make([]*deadletter.Entry, 0, len(models))
	for i := range models {
		e, convErr := fromDeadLetterModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("stategraph/bun: list dead letters convert: %w", convErr)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// GetDeadLetter retrieves an entry by ID.
func (s *Store) GetDeadLetter(ctx context.Context, entryID id.DeadLetterID) (*deadletter.Entry, error) {
	m := new(deadLetterModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", entryID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, stategraph.ErrDeadLetterNotFound
		}
		return nil, fmt.Errorf("stategraph/bun: get dead letter: %w", err)
	}
	return fromDeadLetterModel(m)
}

// MarkResubmitted stamps an entry's ResubmittedAt.
func (s *Store) MarkResubmitted(ctx context.Context, entryID id.DeadLetterID) error {
	res, err := s.db.NewUpdate().
		TableExpr("stategraph_dead_letters").
		Set("resubmitted_at = NOW()").
		Where("id = ?", entryID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("stategraph/bun: mark resubmitted: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return stategraph.ErrDeadLetterNotFound
	}
	return nil
}

// PurgeDeadLetters removes entries with FailedAt before the given time.
func (s *Store) PurgeDeadLetters(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.NewDelete().
		TableExpr("stategraph_dead_letters").
		Where("failed_at < ?", before).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("stategraph/bun: purge dead letters: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	return rows, nil
}

// CountDeadLetters returns the total number of archived entries.
func (s *Store) CountDeadLetters(ctx context.Context) (int64, error) {
	count, err := s.db.NewSelect().
		TableExpr("stategraph_dead_letters").
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("stategraph/bun: count dead letters: %w", err)
	}
	return int64(count), nil
}
