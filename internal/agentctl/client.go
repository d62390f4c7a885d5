// Package agentctl implements the deskagent operator CLI: a cobra
// front end, grounded on internal/cli's package-level *cobra.Command +
// init()-registration convention, that talks to a running agent over
// its HTTP API (internal/httpapi) instead of building an in-process
// Application. Output is colorized with fatih/color the way
// daydemir-ralph's CLI highlights status and error text.
package agentctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/deskagent/agent/pkg/version"
)

// client is a thin HTTP client against internal/httpapi's REST
// surface: every call marshals a request body (if any), sets the
// agent's user agent, and decodes the JSON response (or surfaces the
// server's {"error": ...} body as a Go error).
type client struct {
	baseURL string
	http    *http.Client
}

func newClient(addr string) *client {
	base := strings.TrimSuffix(addr, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &client{
		baseURL: base,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// apiError is the decoded form of an httpapi error body.
type apiError struct {
	status int
	msg    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.msg, e.status)
}

func (c *client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var decoded struct {
			Error string `json:"error"`
		}
		msg := string(raw)
		if json.Unmarshal(raw, &decoded) == nil && decoded.Error != "" {
			msg = decoded.Error
		}
		return &apiError{status: resp.StatusCode, msg: msg}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *client) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *client) delete(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodDelete, path, nil, out)
}
