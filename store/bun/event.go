package bunstore

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/stategraph"
	"github.com/xraph/stategraph/event"
	"github.com/xraph/stategraph/id"
)

// PublishEvent persists a new event.
func (s *Store) PublishEvent(ctx context.Context, evt *event.Event) error {
	m := toEventModel(evt)
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("stategraph/bun: publish event: %w", err)
	}
	return nil
}

// SubscribeEvent polls for the oldest unacked event matching the given name
// until one is found or the timeout expires.
func (s *Store) SubscribeEvent(ctx context.Context, name string, timeout time.Duration) (*event.Event, error) {
	deadline := time.Now().Add(timeout)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		m := new(eventModel)
		err := s.db.NewSelect().Model(m).
			Where("name = ?", name).
			Where("acked = FALSE").
			Order("created_at ASC").
			Limit(1).
			Scan(ctx)
		if err == nil {
			return fromEventModel(m)
		}
		if !isNoRows(err) {
			return nil, fmt.Errorf("stategraph/bun: subscribe event: %w", err)
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		wait := 50 * time.Millisecond
		if wait > remaining {
			wait = remaining
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// AckEvent acknowledges an event, marking it as consumed.
func (s *Store) AckEvent(ctx context.Context, eventID id.EventID) error {
	res, err := s.db.NewUpdate().
		TableExpr("stategraph_events").
		Set("acked = TRUE").
		Where("id = ?", eventID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("stategraph/bun: ack event: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return stategraph.ErrEventNotFound
	}
	return nil
}
