package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/stategraph"
	"github.com/xraph/stategraph/document"
	"github.com/xraph/stategraph/execution"
	"github.com/xraph/stategraph/id"
	"github.com/xraph/stategraph/policy"
)

// claimScript atomically stamps a fresh step token onto an execution Hash.
// A live claim (younger than the TTL) is left alone; an expired one is
// reissued. Returns -1 when the Hash is gone, 0 when the claim is held,
// 1 when the token was stamped.
//
// KEYS[1] execution hash
// ARGV[1] fresh token
// ARGV[2] claimed_at, RFC3339Nano
// ARGV[3] now, unix milliseconds
// ARGV[4] claim TTL, milliseconds
var claimScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
local cur = redis.call('HGET', KEYS[1], 'step_token')
if cur ~= false and cur ~= '' then
	local ms = tonumber(redis.call('HGET', KEYS[1], 'claimed_at_ms') or '0')
	if ms + tonumber(ARGV[4]) > tonumber(ARGV[3]) then
		return 0
	end
end
redis.call('HSET', KEYS[1], 'step_token', ARGV[1], 'claimed_at', ARGV[2], 'claimed_at_ms', ARGV[3])
return 1
`)

// completeScript persists a step outcome if and only if the stored step
// token still matches the caller's. On a match it writes the new fields,
// releases the claim, and updates the due schedule. Returns -1 when the
// Hash is gone, 0 on a token mismatch, 1 on success.
//
// KEYS[1] execution hash
// KEYS[2] due sorted set
// ARGV[1] expected token
// ARGV[2] execution ID (due set member)
// ARGV[3] new due score in unix milliseconds, or '' when terminal
// ARGV[4..] alternating field, value pairs to HSET
var completeScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
local cur = redis.call('HGET', KEYS[1], 'step_token')
if cur == false then cur = '' end
if ARGV[1] == '' or cur ~= ARGV[1] then
	return 0
end
for i = 4, #ARGV, 2 do
	redis.call('HSET', KEYS[1], ARGV[i], ARGV[i+1])
end
redis.call('HDEL', KEYS[1], 'step_token', 'claimed_at', 'claimed_at_ms')
if ARGV[3] == '' then
	redis.call('ZREM', KEYS[2], ARGV[2])
else
	redis.call('ZADD', KEYS[2], tonumber(ARGV[3]), ARGV[2])
end
return 1
`)

// CreateExecution stores the execution as a Hash and schedules it in the
// due Sorted Set.
func (s *Store) CreateExecution(ctx context.Context, e *execution.Execution) error {
	eID := e.ID.String()
	key := execKey(eID)

	// Check for duplicate.
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("stategraph/redis: create check exists: %w", err)
	}
	if exists > 0 {
		return stategraph.ErrExecutionExists
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, execToMap(e))
	pipe.SAdd(ctx, execIDsKey, eID)
	if e.Status == execution.StatusRunning {
		pipe.ZAdd(ctx, dueKey, goredis.Z{Score: dueScore(e.DueAt()), Member: eID})
	}
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("stategraph/redis: create execution: %w", err)
	}
	return nil
}

// GetExecution retrieves an execution by ID.
func (s *Store) GetExecution(ctx context.Context, execID id.ExecutionID) (*execution.Execution, error) {
	return s.getExecByKey(ctx, execKey(execID.String()))
}

// ListExecutions returns executions matching opts, newest first.
func (s *Store) ListExecutions(ctx context.Context, opts execution.ListOpts) ([]*execution.Execution, error) {
	ids, err := s.client.SMembers(ctx, execIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("stategraph/redis: list executions smembers: %w", err)
	}

	execs := make([]*execution.Execution, 0, len(ids))
	for _, eID := range ids {
		e, getErr := s.getExecByKey(ctx, execKey(eID))
		if getErr != nil {
			continue // skip missing
		}
		if opts.GraphName != "" && e.GraphName != opts.GraphName {
			continue
		}
		if opts.Status != "" && e.Status != opts.Status {
			continue
		}
		execs = append(execs, e)
	}

	sort.Slice(execs, func(i, j int) bool {
		return execs[i].StartedAt.After(execs[j].StartedAt)
	})

	// Apply offset/limit.
	if opts.Offset > 0 && opts.Offset < len(execs) {
		execs = execs[opts.Offset:]
	} else if opts.Offset >= len(execs) && opts.Offset > 0 {
		return nil, nil
	}
	if opts.Limit > 0 && opts.Limit < len(execs) {
		execs = execs[:opts.Limit]
	}
	return execs, nil
}

// ClaimDue claims up to limit due executions. Candidates come from the due
// Sorted Set with score at or below now; each is claimed by the Lua script,
// so two steppers racing on the same execution end up with exactly one
// holding a valid token.
func (s *Store) ClaimDue(ctx context.Context, now time.Time, claimTTL time.Duration, limit int) ([]*execution.Execution, error) {
	nowMs := now.UnixMilli()

	// Overscan: some candidates will be skipped because their claim is held.
	members, err := s.client.ZRangeByScore(ctx, dueKey, &goredis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(nowMs, 10),
		Count: int64(limit) * 4,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("stategraph/redis: claim due zrangebyscore: %w", err)
	}

	claimed := make([]*execution.Execution, 0, limit)
	for _, eID := range members {
		if len(claimed) >= limit {
			break
		}

		key := execKey(eID)
		token := id.NewStepperID().String()
		res, runErr := claimScript.Run(ctx, s.client,
			[]string{key},
			token,
			now.UTC().Format(time.RFC3339Nano),
			nowMs,
			claimTTL.Milliseconds(),
		).Int()
		if runErr != nil {
			return nil, fmt.Errorf("stategraph/redis: claim script: %w", runErr)
		}
		switch res {
		case -1:
			// Hash gone; drop the stale schedule entry.
			s.client.ZRem(ctx, dueKey, eID)
			continue
		case 0:
			continue // held by a live stepper
		}

		e, getErr := s.getExecByKey(ctx, key)
		if getErr != nil {
			continue
		}
		if !e.Due(now) {
			// Schedule entry was stale; release the claim.
			s.client.HDel(ctx, key, "step_token", "claimed_at", "claimed_at_ms")
			s.client.ZAdd(ctx, dueKey, goredis.Z{Score: dueScore(e.DueAt()), Member: eID})
			continue
		}
		claimed = append(claimed, e)
	}
	return claimed, nil
}

// CompleteStep persists the outcome of one step when the caller still holds
// the claim, releasing it and rescheduling (or unscheduling, when terminal)
// the execution.
func (s *Store) CompleteStep(ctx context.Context, e *execution.Execution) error {
	eID := e.ID.String()

	out := e.Clone()
	out.StepToken = ""
	out.ClaimedAt = time.Time{}
	out.UpdatedAt = time.Now().UTC()

	score := ""
	if out.Status == execution.StatusRunning {
		score = strconv.FormatInt(out.DueAt().UnixMilli(), 10)
	}

	args := []interface{}{e.StepToken, eID, score}
	for field, value := range execToMap(out) {
		args = append(args, field, value)
	}

	res, err := completeScript.Run(ctx, s.client, []string{execKey(eID), dueKey}, args...).Int()
	if err != nil {
		return fmt.Errorf("stategraph/redis: complete script: %w", err)
	}
	switch res {
	case -1:
		return stategraph.ErrUnknownExecution
	case 0:
		return stategraph.ErrStaleStep
	}
	return nil
}

// AppendHistory records one step transition. Entries for one execution are
// appended only by its claim holder, so the length-based sequence assignment
// needs no coordination.
func (s *Store) AppendHistory(ctx context.Context, entry *execution.HistoryEntry) error {
	key := historyKey(entry.ExecutionID.String())

	if entry.Seq == 0 {
		n, err := s.client.LLen(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("stategraph/redis: history llen: %w", err)
		}
		entry.Seq = int(n) + 1
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("stategraph/redis: marshal history entry: %w", err)
	}
	if err := s.client.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("stategraph/redis: append history: %w", err)
	}
	return nil
}

// ListHistory returns an execution's history ordered by sequence.
func (s *Store) ListHistory(ctx context.Context, execID id.ExecutionID) ([]*execution.HistoryEntry, error) {
	raws, err := s.client.LRange(ctx, historyKey(execID.String()), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("stategraph/redis: list history: %w", err)
	}

	entries := make([]*execution.HistoryEntry, 0, len(raws))
	for _, raw := range raws {
		var entry execution.HistoryEntry
		if uErr := json.Unmarshal([]byte(raw), &entry); uErr != nil {
			continue
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}

// ── helpers ──

// dueScore converts a due time to a sorted-set score. Lower score = due
// earlier.
func dueScore(t time.Time) float64 { return float64(t.UnixMilli()) }

func execToMap(e *execution.Execution) map[string]interface{} {
	m := map[string]interface{}{
		"id":           e.ID.String(),
		"graph_name":   e.GraphName,
		"status":       string(e.Status),
		"current_node": e.CurrentNode,
		"document":     marshalJSON(e.Document.Map()),
		"input":        marshalJSON(e.Input),
		"started_at":   e.StartedAt.Format(time.RFC3339Nano),
		"deadline":     e.Deadline.Format(time.RFC3339Nano),
		"wake_at":      e.WakeAt.Format(time.RFC3339Nano),
		"created_at":   e.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":   e.UpdatedAt.Format(time.RFC3339Nano),
	}
	if e.Output != nil {
		m["output"] = marshalJSON(e.Output)
	}
	if e.Failure != nil {
		m["failure"] = marshalJSON(e.Failure)
	}
	if len(e.Attempts) > 0 {
		m["attempts"] = marshalJSON(e.Attempts)
	} else {
		m["attempts"] = ""
	}
	if !e.CompletedAt.IsZero() {
		m["completed_at"] = e.CompletedAt.Format(time.RFC3339Nano)
	}
	return m
}

func (s *Store) getExecByKey(ctx context.Context, key string) (*execution.Execution, error) {
	vals, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("stategraph/redis: get execution: %w", err)
	}
	if len(vals) == 0 {
		return nil, stategraph.ErrUnknownExecution
	}
	return mapToExec(vals)
}

func mapToExec(m map[string]string) (*execution.Execution, error) {
	eID, err := id.ParseExecutionID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("stategraph/redis: parse execution id: %w", err)
	}

	startedAt, _ := time.Parse(time.RFC3339Nano, m["started_at"]) //nolint:errcheck // best-effort parse from trusted Redis data
	deadline, _ := time.Parse(time.RFC3339Nano, m["deadline"])    //nolint:errcheck // best-effort parse from trusted Redis data
	wakeAt, _ := time.Parse(time.RFC3339Nano, m["wake_at"])       //nolint:errcheck // best-effort parse from trusted Redis data
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"]) //nolint:errcheck // best-effort parse from trusted Redis data
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"]) //nolint:errcheck // best-effort parse from trusted Redis data

	e := &execution.Execution{
		Entity: stategraph.Entity{
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
		},
		ID:          eID,
		GraphName:   m["graph_name"],
		Status:      execution.Status(m["status"]),
		CurrentNode: m["current_node"],
		Document:    document.FromMap(unmarshalObject(m["document"])),
		Input:       unmarshalObject(m["input"]),
		StartedAt:   startedAt,
		Deadline:    deadline,
		WakeAt:      wakeAt,
		StepToken:   m["step_token"],
	}

	if v := m["output"]; v != "" {
		e.Output = unmarshalObject(v)
	}
	if v := m["failure"]; v != "" {
		var f execution.FailureCause
		_ = json.Unmarshal([]byte(v), &f) //nolint:errcheck // best-effort parse from trusted Redis data
		e.Failure = &f
	}
	if v := m["attempts"]; v != "" {
		attempts := make(map[string]map[policy.Kind]int)
		_ = json.Unmarshal([]byte(v), &attempts) //nolint:errcheck // best-effort parse from trusted Redis data
		e.Attempts = attempts
	}
	if v := m["completed_at"]; v != "" {
		e.CompletedAt, _ = time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
	}
	if v := m["claimed_at"]; v != "" {
		e.ClaimedAt, _ = time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
	}
	return e, nil
}

// marshalJSON is a helper to marshal to JSON string.
func marshalJSON(v interface{}) string {
	b, _ := json.Marshal(v) //nolint:errcheck // marshal should not fail for basic types
	return string(b)
}

// unmarshalObject parses a JSON object.
func unmarshalObject(s string) map[string]any {
	if s == "" || s == "null" {
		return nil
	}
	out := make(map[string]any)
	_ = json.Unmarshal([]byte(s), &out) //nolint:errcheck // best-effort parse from trusted Redis data
	return out
}
