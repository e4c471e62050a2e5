package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/stategraph"
	"github.com/xraph/stategraph/deadletter"
	"github.com/xraph/stategraph/execution"
	"github.com/xraph/stategraph/id"
)

// PushDeadLetter archives a terminal failure.
func (s *Store) PushDeadLetter(ctx context.Context, entry *deadletter.Entry) error {
	eID := entry.ID.String()
	key := deadLetterKey(eID)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, deadLetterToMap(entry))
	pipe.SAdd(ctx, deadLetterIDsKey, eID)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("stategraph/redis: push dead letter: %w", err)
	}
	return nil
}

// ListDeadLetters returns entries matching the given options, oldest first.
func (s *Store) ListDeadLetters(ctx context.Context, opts deadletter.ListOpts) ([]*deadletter.Entry, error) {
	ids, err := s.client.SMembers(ctx, deadLetterIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("stategraph/redis: list dead letters: %w", err)
	}

	entries := make([]*deadletter.Entry, 0, len(ids))
	for _, eID := range ids {
		vals, getErr := s.client.HGetAll(ctx, deadLetterKey(eID)).Result()
		if getErr != nil || len(vals) == 0 {
			continue
		}
		e, convErr := mapToDeadLetter(vals)
		if convErr != nil {
			continue
		}
		if opts.GraphName != "" && e.GraphName != opts.GraphName {
			continue
		}
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].FailedAt.Before(entries[j].FailedAt)
	})

	if opts.Offset > 0 && opts.Offset < len(entries) {
		entries = entries[opts.Offset:]
	} else if opts.Offset >= len(entries) && opts.Offset > 0 {
		return nil, nil
	}
	if opts.Limit > 0 && opts.Limit < len(entries) {
		entries = entries[:opts.Limit]
	}
	return entries, nil
}

// GetDeadLetter retrieves an entry by ID.
func (s *Store) GetDeadLetter(ctx context.Context, entryID id.DeadLetterID) (*deadletter.Entry, error) {
	key := deadLetterKey(entryID.String())
	vals, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("stategraph/redis: get dead letter: %w", err)
	}
	if len(vals) == 0 {
		return nil, stategraph.ErrDeadLetterNotFound
	}
	return mapToDeadLetter(vals)
}

// MarkResubmitted stamps an entry's ResubmittedAt.
func (s *Store) MarkResubmitted(ctx context.Context, entryID id.DeadLetterID) error {
	key := deadLetterKey(entryID.String())
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("stategraph/redis: mark resubmitted exists: %w", err)
	}
	if exists == 0 {
		return stategraph.ErrDeadLetterNotFound
	}

	_, err = s.client.HSet(ctx, key,
		"resubmitted_at", time.Now().UTC().Format(time.RFC3339Nano),
	).Result()
	if err != nil {
		return fmt.Errorf("stategraph/redis: mark resubmitted: %w", err)
	}
	return nil
}

// PurgeDeadLetters removes entries with FailedAt before the given time.
func (s *Store) PurgeDeadLetters(ctx context.Context, before time.Time) (int64, error) {
	ids, err := s.client.SMembers(ctx, deadLetterIDsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("stategraph/redis: purge dead letters smembers: %w", err)
	}

	var purged int64
	for _, eID := range ids {
		key := deadLetterKey(eID)
		failedAtStr, getErr := s.client.HGet(ctx, key, "failed_at").Result()
		if getErr != nil {
			if errors.Is(getErr, goredis.Nil) {
				continue
			}
			return purged, fmt.Errorf("stategraph/redis: purge dead letters get: %w", getErr)
		}

		failedAt, _ := time.Parse(time.RFC3339Nano, failedAtStr) //nolint:errcheck // best-effort parse from trusted Redis data
		if failedAt.Before(before) {
			pipe := s.client.TxPipeline()
			pipe.Del(ctx, key)
			pipe.SRem(ctx, deadLetterIDsKey, eID)
			if _, pErr := pipe.Exec(ctx); pErr != nil {
				return purged, fmt.Errorf("stategraph/redis: purge dead letters del: %w", pErr)
			}
			purged++
		}
	}
	return purged, nil
}

// CountDeadLetters returns the total number of archived entries.
func (s *Store) CountDeadLetters(ctx context.Context) (int64, error) {
	count, err := s.client.SCard(ctx, deadLetterIDsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("stategraph/redis: count dead letters: %w", err)
	}
	return count, nil
}

// ── helpers ──

func deadLetterToMap(e *deadletter.Entry) map[string]interface{} {
	m := map[string]interface{}{
		"id":           e.ID.String(),
		"execution_id": e.ExecutionID.String(),
		"graph_name":   e.GraphName,
		"status":       string(e.Status),
		"node":         e.Node,
		"input":        marshalJSON(e.Input),
		"document":     marshalJSON(e.Document),
		"failed_at":    e.FailedAt.Format(time.RFC3339Nano),
		"created_at":   e.CreatedAt.Format(time.RFC3339Nano),
	}
	if e.Cause != nil {
		m["cause"] = marshalJSON(e.Cause)
	}
	if e.ResubmittedAt != nil {
		m["resubmitted_at"] = e.ResubmittedAt.Format(time.RFC3339Nano)
	}
	return m
}

func mapToDeadLetter(m map[string]string) (*deadletter.Entry, error) {
	eID, err := id.ParseDeadLetterID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("stategraph/redis: parse dead letter id: %w", err)
	}
	execID, _ := id.ParseExecutionID(m["execution_id"])           //nolint:errcheck // best-effort parse from trusted Redis data
	failedAt, _ := time.Parse(time.RFC3339Nano, m["failed_at"])   //nolint:errcheck // best-effort parse from trusted Redis data
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"]) //nolint:errcheck // best-effort parse from trusted Redis data

	e := &deadletter.Entry{
		ID:          eID,
		ExecutionID: execID,
		GraphName:   m["graph_name"],
		Status:      execution.Status(m["status"]),
		Node:        m["node"],
		Input:       unmarshalObject(m["input"]),
		Document:    unmarshalObject(m["document"]),
		FailedAt:    failedAt,
		CreatedAt:   createdAt,
	}

	if v := m["cause"]; v != "" {
		var c execution.FailureCause
		_ = json.Unmarshal([]byte(v), &c) //nolint:errcheck // best-effort parse from trusted Redis data
		e.Cause = &c
	}
	if v := m["resubmitted_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		e.ResubmittedAt = &t
	}
	return e, nil
}
