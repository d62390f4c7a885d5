package ipc

import (
	"bufio"
	"context"
	"fmt"
	"net"

	"github.com/sirupsen/logrus"
)

// Responder answers one Request. The actual language model is an
// external collaborator reached however the binary embedding this
// interface chooses to reach it (subprocess, HTTP call to a local
// inference server, whatever cmd/llmworker is built against) — this
// package only owns the framing and the auth handshake around it.
type Responder interface {
	Respond(ctx context.Context, req Request) Response
}

// Server accepts one connection at a time, authenticates it against
// AuthKey, decodes a single Request, and writes back whatever
// Responder produces before closing the connection (§4.14).
type Server struct {
	Addr      string
	AuthKey   string
	Responder Responder
	Log       *logrus.Logger
}

// NewServer returns a Server listening on host:port, delegating every
// authenticated request to responder.
func NewServer(host string, port int, authKey string, responder Responder, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.New()
	}
	return &Server{Addr: fmt.Sprintf("%s:%d", host, port), AuthKey: authKey, Responder: responder, Log: log}
}

// ListenAndServe blocks accepting connections until ctx is cancelled or
// listening fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("ipc: listen on %s: %w", s.Addr, err)
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("ipc: accept: %w", err)
			}
		}
		go s.handle(ctx, conn)
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	key, err := readAuthKey(reader)
	if err != nil {
		s.Log.WithError(err).Warn("llm worker: read auth key")
		return
	}
	if key != s.AuthKey {
		s.Log.Warn("llm worker: rejected connection with bad auth key")
		_ = writeFrame(conn, Response{Success: false, Error: "unauthorized"})
		return
	}

	var req Request
	if err := readFrame(reader, &req); err != nil {
		s.Log.WithError(err).Warn("llm worker: read request")
		return
	}

	resp := s.Responder.Respond(ctx, req)
	if err := writeFrame(conn, resp); err != nil {
		s.Log.WithError(err).Warn("llm worker: write response")
	}
}
