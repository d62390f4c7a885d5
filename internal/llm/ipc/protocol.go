// Package ipc implements the length-prefixed JSON transport between
// the agent and the LLM worker (§4.14, §6): a local TCP socket guarded
// by a pre-shared auth key, carrying one request/response pair per
// connection. The worker process and the language model behind it are
// external collaborators reached only through this boundary — nothing
// in this package knows how a prompt is actually answered.
package ipc

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// maxFrameBytes bounds a single frame so a misbehaving peer can't make
// a reader allocate without limit.
const maxFrameBytes = 8 << 20 // 8 MiB

// Request is what the agent sends the worker: the composed prompt
// (system preamble, few-shot examples, and the raw user command
// already folded in by the caller) plus the app_context the model
// needs to resolve pronouns and defaults (§4.14).
type Request struct {
	Prompt     string            `json:"prompt"`
	AppContext map[string]string `json:"app_context,omitempty"`
}

// Response is what the worker sends back. Success responses carry
// Response, the already-parsed intent object, as raw JSON so the
// caller can unmarshal it into domain.Command without this package
// needing to know that type. RawText preserves the model's original
// text for callers that want to attempt their own extraction when
// Response is empty (§4.14: "falls back to text extraction when the
// model's output isn't already valid JSON").
type Response struct {
	Success  bool            `json:"success"`
	Response json.RawMessage `json:"response,omitempty"`
	RawText  string          `json:"raw_text,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// writeFrame writes a 4-byte big-endian length prefix followed by the
// JSON encoding of v.
func writeFrame(w io.Writer, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("ipc: encode frame: %w", err)
	}
	if len(payload) > maxFrameBytes {
		return fmt.Errorf("ipc: frame of %d bytes exceeds limit", len(payload))
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("ipc: write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("ipc: write frame body: %w", err)
	}
	return nil
}

// readFrame reads one length-prefixed frame and decodes it into v.
func readFrame(r *bufio.Reader, v interface{}) error {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return fmt.Errorf("ipc: read frame header: %w", err)
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > maxFrameBytes {
		return fmt.Errorf("ipc: frame of %d bytes exceeds limit", size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return fmt.Errorf("ipc: read frame body: %w", err)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("ipc: decode frame: %w", err)
	}
	return nil
}

// writeAuthKey and readAuthKey exchange the pre-shared key as its own
// length-prefixed frame ahead of the request/response pair, so a
// connection from a process without the key never reaches request
// parsing (§4.14: "the worker refuses any connection that doesn't
// present the configured key first").
func writeAuthKey(w io.Writer, key string) error {
	return writeFrame(w, key)
}

func readAuthKey(r *bufio.Reader) (string, error) {
	var key string
	if err := readFrame(r, &key); err != nil {
		return "", err
	}
	return key, nil
}

// ExtractJSON locates the first balanced top-level JSON value — a
// {...} object or a [...] array, whichever opening brace or bracket
// appears first in text — and returns it along with whether one was
// found. It tolerates a model response that wraps its JSON in prose or
// a markdown fence, scanning past quoted strings (honoring escapes) so
// a brace inside a string literal doesn't unbalance the count (§4.14).
func ExtractJSON(text string) (json.RawMessage, bool) {
	start := -1
	var open, close byte
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '{':
			start, open, close = i, '{', '}'
		case '[':
			start, open, close = i, '[', ']'
		}
		if start >= 0 {
			break
		}
	}
	if start < 0 {
		return nil, false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return json.RawMessage(text[start : i+1]), true
			}
		}
	}
	return nil, false
}
