// Package client provides a Go client for a remote stategraph server over
// its HTTP API.
//
// Usage:
//
//	c := client.New("http://localhost:8080")
//
//	// Start an execution.
//	e, err := c.Submit(ctx, "provision-account", input)
//
//	// Poll it to completion.
//	e, err = c.WaitForTerminal(ctx, e.ID, 5*time.Second)
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/xraph/stategraph"
)

// Client talks to a stategraph server's HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiError is the error body the server returns for non-2xx responses.
type apiError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// do issues one request and decodes the response into out (unless nil).
// Not-found responses map onto the package sentinels so callers can use
// errors.Is against stategraph.ErrUnknownExecution and friends.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("stategraph/client: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("stategraph/client: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("stategraph/client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck // response body close

	if resp.StatusCode >= 400 {
		return c.asError(method, path, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("stategraph/client: decode %s %s response: %w", method, path, err)
	}
	return nil
}

// asError turns an error response into a Go error, recovering the store
// sentinels from 404 bodies where possible.
func (c *Client) asError(method, path string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10)) //nolint:errcheck // best-effort error body

	msg := strings.TrimSpace(string(data))
	var body apiError
	if json.Unmarshal(data, &body) == nil {
		if body.Message != "" {
			msg = body.Message
		} else if body.Error != "" {
			msg = body.Error
		}
	}
	if msg == "" {
		msg = resp.Status
	}

	if resp.StatusCode == http.StatusNotFound {
		for _, sentinel := range []error{
			stategraph.ErrUnknownExecution,
			stategraph.ErrUnknownGraph,
			stategraph.ErrDeadLetterNotFound,
		} {
			if strings.Contains(msg, sentinel.Error()) {
				return fmt.Errorf("stategraph/client: %s %s: %w", method, path, sentinel)
			}
		}
	}

	return fmt.Errorf("stategraph/client: %s %s: %s (status %d)", method, path, msg, resp.StatusCode)
}
