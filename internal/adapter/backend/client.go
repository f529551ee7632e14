// Package backend provides the HTTP transport used to talk to the experiment backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client posts JSON bodies to the experiment backend.
type Client struct {
	baseURL    string
	sessionID  string
	httpClient *http.Client
}

// NewClient creates a new backend client. The session id is sent with every
// request so the backend can correlate one viewing session.
func NewClient(baseURL, sessionID string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		sessionID: sessionID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Response is a fully read backend response.
type Response struct {
	StatusCode int
	Body       []byte
}

// NewResponse builds a response from a status code and raw body.
func NewResponse(statusCode int, body []byte) *Response {
	return &Response{StatusCode: statusCode, Body: body}
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// JSON decodes the body into v. Some backend endpoints JSON-encode an already
// encoded document, so one level of string wrapping is unwrapped.
func (r *Response) JSON(v interface{}) error {
	body := bytes.TrimSpace(r.Body)
	if len(body) > 0 && body[0] == '"' {
		var inner string
		if err := json.Unmarshal(body, &inner); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		body = []byte(inner)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Post sends body as JSON to path and returns the read response. Non-2xx
// statuses are returned as errors.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/" + strings.TrimPrefix(path, "/")
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Cache-Control", "no-store")
	if c.sessionID != "" {
		httpReq.Header.Set("X-Session-ID", c.sessionID)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to post %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	out := NewResponse(resp.StatusCode, respBody)
	if !out.OK() {
		return nil, fmt.Errorf("backend returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return out, nil
}
