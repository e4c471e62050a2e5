package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/xraph/stategraph/deadletter"
	"github.com/xraph/stategraph/execution"
	"github.com/xraph/stategraph/id"
)

// ListDeadLettersOpts filters and pages ListDeadLetters.
type ListDeadLettersOpts struct {
	GraphName string
	Limit     int
	Offset    int
}

// ListDeadLetters returns archived terminal failures.
func (c *Client) ListDeadLetters(ctx context.Context, opts ListDeadLettersOpts) ([]*deadletter.Entry, error) {
	query := url.Values{}
	if opts.GraphName != "" {
		query.Set("graph", opts.GraphName)
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		query.Set("offset", strconv.Itoa(opts.Offset))
	}

	var entries []*deadletter.Entry
	if err := c.do(ctx, http.MethodGet, "/v1/deadletters", query, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// DeadLetter returns one archived entry.
func (c *Client) DeadLetter(ctx context.Context, entryID id.DeadLetterID) (*deadletter.Entry, error) {
	var entry deadletter.Entry
	err := c.do(ctx, http.MethodGet, "/v1/deadletters/"+entryID.String(), nil, nil, &entry)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ResubmitDeadLetter starts a fresh execution with the entry's original input.
func (c *Client) ResubmitDeadLetter(ctx context.Context, entryID id.DeadLetterID) (*execution.Execution, error) {
	var e execution.Execution
	err := c.do(ctx, http.MethodPost, "/v1/deadletters/"+entryID.String()+"/resubmit", nil, nil, &e)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Stats mirrors the server's aggregate statistics payload.
type Stats struct {
	Executions struct {
		Running   int `json:"running"`
		Succeeded int `json:"succeeded"`
		Failed    int `json:"failed"`
		TimedOut  int `json:"timed_out"`
	} `json:"executions"`
	DeadLetterCount int64 `json:"dead_letter_count"`
}

// Stats returns execution counts per status and the dead letter total.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	if err := c.do(ctx, http.MethodGet, "/v1/stats", nil, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
