// Package chartdata fetches chart series from the particulate-matter backend.
package chartdata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ChartPath is the backend endpoint serving one chart series.
const ChartPath = "/data/chart"

const (
	maxBodyBytes    = 16 * 1024 * 1024
	maxErrorSnippet = 256
)

// Client issues single, non-retried GET requests to the chart endpoint.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

// NewClient returns a client for baseURL. A nil httpClient uses
// http.DefaultClient; a zero timeout leaves the caller's context in charge.
func NewClient(baseURL string, httpClient *http.Client, timeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    httpClient,
		timeout: timeout,
	}
}

// URL returns the request URL for an already encoded query.
func (c *Client) URL(query string) string {
	u := c.baseURL + ChartPath
	if query != "" {
		u += "?" + query
	}
	return u
}

// Fetch requests data/chart?query and decodes the series.
func (c *Client) Fetch(ctx context.Context, query string) (Result, error) {
	if c.baseURL == "" {
		return Result{}, NewError(CodeValidation, "missing backend URL", nil)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	target := c.URL(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Result{}, NewError(CodeValidation, "build backend request", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{}, NewError(CodeBackendTimeout, "backend request timed out", err)
		}
		return Result{}, NewError(CodeBackendUnavailable, "backend request failed", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Debug("chartdata body close failed", "error", closeErr)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{}, NewError(CodeBackendTimeout, "backend response timed out", err)
		}
		return Result{}, NewError(CodeBackendUnavailable, "read backend response", err)
	}

	slog.Debug("chartdata fetch",
		"url", target,
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, &CodedError{
			Code:    CodeBackendStatus,
			Message: fmt.Sprintf("backend returned status %d: %s", resp.StatusCode, snippet(body)),
			Status:  resp.StatusCode,
		}
	}

	return Decode(body)
}

// Decode parses a chart body. The backend may send the object directly or as
// a JSON string that itself holds the object.
func Decode(body []byte) (Result, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '"' {
		var inner string
		if err := json.Unmarshal(body, &inner); err != nil {
			return Result{}, NewError(CodeMalformedResponse, "decode wrapped chart body", err)
		}
		body = []byte(inner)
	}

	var out Result
	if err := json.Unmarshal(body, &out); err != nil {
		return Result{}, NewError(CodeMalformedResponse, "decode chart body", err)
	}
	return out, nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) <= maxErrorSnippet {
		return s
	}
	return s[:maxErrorSnippet] + "..."
}
