package ipc

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"
)

// Client dials the LLM worker's socket once per Call, matching the
// worker's one-request-per-connection contract (§4.14) rather than
// holding a long-lived connection the Supervisor would also have to
// juggle across restarts.
type Client struct {
	Addr    string
	AuthKey string
	Timeout time.Duration
}

// NewClient returns a Client dialing host:port with authKey and a
// per-call deadline of timeout.
func NewClient(host string, port int, authKey string, timeout time.Duration) *Client {
	return &Client{Addr: fmt.Sprintf("%s:%d", host, port), AuthKey: authKey, Timeout: timeout}
}

// Call sends prompt and appContext to the worker and returns its
// Response. The connection is closed whether or not the worker
// answers, so a hung worker only ever blocks one call up to timeout.
func (c *Client) Call(ctx context.Context, prompt string, appContext map[string]string) (Response, error) {
	dialer := net.Dialer{Timeout: c.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return Response{}, fmt.Errorf("ipc: dial %s: %w", c.Addr, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.Timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return Response{}, fmt.Errorf("ipc: set deadline: %w", err)
	}

	if err := writeAuthKey(conn, c.AuthKey); err != nil {
		return Response{}, err
	}
	if err := writeFrame(conn, Request{Prompt: prompt, AppContext: appContext}); err != nil {
		return Response{}, err
	}

	reader := bufio.NewReader(conn)
	var resp Response
	if err := readFrame(reader, &resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}

// Probe reports whether the worker is currently accepting connections,
// without performing a full call. The Supervisor uses this as its
// health check (§4.14: "probes the socket every few seconds").
func (c *Client) Probe(ctx context.Context, timeout time.Duration) bool {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
