package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"simagent/internal/lint"
)

// Client speaks the collaborator's JSON protocol. One client per engine
// process; serialization of executions is the Handle's concern.
type Client struct {
	base string
	http *http.Client
}

func NewClient(baseURL string) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("engine: base URL is required")
	}
	return &Client{
		base: base,
		http: &http.Client{Timeout: 0}, // per-call deadlines come from ctx
	}, nil
}

// Execute submits the source for synchronous run-to-completion. Transport
// failures are wrapped in ErrUnavailable; an engine-reported runtime error
// is part of a normal response, not a Go error.
func (c *Client) Execute(ctx context.Context, source string, timeout time.Duration) (ExecResponse, error) {
	var zero ExecResponse
	req := ExecRequest{Source: source}
	if timeout > 0 {
		req.TimeoutMS = timeout.Milliseconds()
	}
	var resp ExecResponse
	if err := c.postJSON(ctx, "/v1/execute", req, &resp); err != nil {
		return zero, err
	}
	return resp, nil
}

// Check implements lint.Checker against the collaborator's lint endpoint.
// The checker runs inside the engine, so an unreachable engine means an
// unavailable checker.
func (c *Client) Check(ctx context.Context, source string) ([]lint.Finding, error) {
	var resp LintResponse
	if err := c.postJSON(ctx, "/v1/lint", LintRequest{Source: source}, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", lint.ErrCheckerUnavailable, err)
	}
	out := make([]lint.Finding, 0, len(resp.Findings))
	for _, f := range resp.Findings {
		out = append(out, lint.Finding{Line: f.Line, Severity: f.Severity, Message: f.Message})
	}
	return out, nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("engine: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("engine: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s returned %d: %s", ErrUnavailable, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("engine: decode response: %w", err)
	}
	return nil
}
