package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/xraph/stategraph/execution"
	"github.com/xraph/stategraph/id"
)

// submitRequest mirrors the server's submit body.
type submitRequest struct {
	GraphName string         `json:"graph_name"`
	Input     map[string]any `json:"input"`
}

// Submit starts a new execution of the named graph.
func (c *Client) Submit(ctx context.Context, graphName string, input map[string]any) (*execution.Execution, error) {
	var e execution.Execution
	err := c.do(ctx, http.MethodPost, "/v1/executions", nil,
		submitRequest{GraphName: graphName, Input: input}, &e)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Execution returns the current state of an execution.
func (c *Client) Execution(ctx context.Context, execID id.ExecutionID) (*execution.Execution, error) {
	var e execution.Execution
	err := c.do(ctx, http.MethodGet, "/v1/executions/"+execID.String(), nil, nil, &e)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// History returns the execution's recorded transitions in order.
func (c *Client) History(ctx context.Context, execID id.ExecutionID) ([]*execution.HistoryEntry, error) {
	var entries []*execution.HistoryEntry
	err := c.do(ctx, http.MethodGet, "/v1/executions/"+execID.String()+"/history", nil, nil, &entries)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ListExecutionsOpts filters and pages ListExecutions.
type ListExecutionsOpts struct {
	GraphName string
	Status    execution.Status
	Limit     int
	Offset    int
}

// ListExecutions returns executions matching the filter.
func (c *Client) ListExecutions(ctx context.Context, opts ListExecutionsOpts) ([]*execution.Execution, error) {
	query := url.Values{}
	if opts.GraphName != "" {
		query.Set("graph", opts.GraphName)
	}
	if opts.Status != "" {
		query.Set("status", string(opts.Status))
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		query.Set("offset", strconv.Itoa(opts.Offset))
	}

	var execs []*execution.Execution
	if err := c.do(ctx, http.MethodGet, "/v1/executions", query, nil, &execs); err != nil {
		return nil, err
	}
	return execs, nil
}

// Graphs returns the names of the graphs registered on the server.
func (c *Client) Graphs(ctx context.Context) ([]string, error) {
	var resp struct {
		Names []string `json:"names"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/graphs", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Names, nil
}

// WaitForTerminal polls the execution until it reaches a terminal status or
// the context is done. Provisioning runs are long; pick an interval that
// matches the graph's wait cadence rather than hammering the server.
func (c *Client) WaitForTerminal(ctx context.Context, execID id.ExecutionID, interval time.Duration) (*execution.Execution, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		e, err := c.Execution(ctx, execID)
		if err != nil {
			return nil, err
		}
		if e.Status.Terminal() {
			return e, nil
		}

		select {
		case <-ctx.Done():
			return e, ctx.Err()
		case <-ticker.C:
		}
	}
}
