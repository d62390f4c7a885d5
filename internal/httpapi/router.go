// Package httpapi exposes the agent's pipeline, statemachine, watch,
// and schedule components over HTTP (§6), grounded on the teacher's
// applications/httpapi.Service: a functional-options constructor, a
// mutex-guarded net.Listen/http.Server pair satisfying
// internal/app/system.Service, and a CORS-wrapped handler chain — with
// chi.Mux as the router in place of the teacher's bare net/http mux,
// and a gorilla/websocket endpoint for live event subscription.
package httpapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deskagent/agent/infrastructure/logging"
	"github.com/deskagent/agent/infrastructure/security"
	"github.com/deskagent/agent/internal/pipeline"
	"github.com/deskagent/agent/internal/policy"
	"github.com/deskagent/agent/internal/registry"
	"github.com/deskagent/agent/internal/rollback"
	"github.com/deskagent/agent/internal/schedule"
	"github.com/deskagent/agent/internal/statemachine"
	"github.com/deskagent/agent/internal/watch"
)

// Service exposes the agent over HTTP and satisfies
// internal/app/system.Service so the composition root starts/stops it
// alongside every other long-running component.
type Service struct {
	addr    string
	handler http.Handler
	log     *logging.Logger

	mu      sync.Mutex
	server  *http.Server
	running bool
	bound   string

	events *eventHub
	replay *security.ReplayProtection
}

// Deps collects every component a handler needs to answer a request.
type Deps struct {
	Pipeline *pipeline.Pipeline
	Registry *registry.Registry
	Machine  *statemachine.Machine
	Policy   *policy.Engine
	Rollback *rollback.Engine
	Watch    *watch.Manager
	Schedule *schedule.Store
}

// New builds a Service bound to addr, wiring every route deps can
// answer. log may be nil.
func New(addr string, deps Deps, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewFromEnv("httpapi")
	}

	h := &handlers{deps: deps, log: log}
	hub := newEventHub()
	if deps.Machine != nil {
		deps.Machine.SubscribeAll(hub.broadcastStatus)
	}
	if deps.Watch != nil {
		deps.Watch.Subscribe(hub.broadcastWatches)
	}
	replay := security.NewReplayProtection(5*time.Minute, log)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))
	r.Use(corsMiddleware)
	r.Use(replayMiddleware(replay))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/commands", h.submitCommand)
		r.Get("/commands", h.listCommands)
		r.Get("/commands/{id}", h.getCommand)
		r.Post("/commands/{id}/pause", h.pauseCommand)
		r.Post("/commands/{id}/resume", h.resumeCommand)
		r.Post("/commands/{id}/cancel", h.cancelCommand)
		r.Post("/commands/{id}/rollback", h.rollbackCommand)

		r.Get("/watches", h.listWatches)
		r.Post("/watches", h.startWatch)
		r.Delete("/watches/{id}", h.stopWatch)

		r.Get("/schedule", h.listSchedule)
		r.Post("/schedule/{id}/cancel", h.cancelSchedule)

		r.Post("/profile", h.setProfile)
		r.Get("/events", hub.serveWS)
	})

	return &Service{addr: addr, handler: r, log: log, events: hub, replay: replay}
}

// Notify satisfies both watch.Notifier and schedule.Notifier: it
// broadcasts a fired watcher or reminder to every connected /v1/events
// client rather than the composition root needing a third concrete
// implementation of either interface.
func (s *Service) Notify(id, message string) {
	s.events.broadcast(wsEvent{Type: "notification", Payload: map[string]string{"id": id, "message": message}})
}

// Name identifies this service in the composition root's lifecycle
// listing.
func (s *Service) Name() string { return "httpapi" }

// Start binds addr and serves in the background, matching the
// teacher's listen-then-background-Serve pattern so Start returns as
// soon as the socket is bound rather than blocking until shutdown.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	server := &http.Server{
		Addr:         s.addr,
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("httpapi: listen %s: %w", s.addr, err)
	}
	s.running = true
	s.server = server
	s.bound = ln.Addr().String()
	s.mu.Unlock()

	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error(ctx, "http server error", err, nil)
		}
		s.mu.Lock()
		if s.server == server {
			s.running = false
			s.bound = ""
		}
		s.mu.Unlock()
	}()
	return nil
}

// Stop gracefully shuts the server down.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.mu.Unlock()
	if server == nil {
		return nil
	}

	err := server.Shutdown(ctx)
	s.mu.Lock()
	if s.server == server {
		s.running = false
		s.bound = ""
	}
	s.mu.Unlock()
	return err
}

// Addr returns the bound address after Start, or the configured
// address before it.
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound != "" {
		return s.bound
	}
	return s.addr
}

// replayMiddleware rejects a request carrying an X-Request-Id this
// process has already seen within the replay window, guarding against
// a retried/duplicated mutating call (POST /v1/commands chief among
// them) re-submitting the same side effect twice. Requests without the
// header are let through unchanged — it's an opt-in guard for callers
// that set one, not a required field.
func replayMiddleware(rp *security.ReplayProtection) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := r.Header.Get("X-Request-Id"); id != "" {
				if !rp.ValidateAndMark(id) {
					writeError(w, http.StatusConflict, "duplicate request id")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(log *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.LogRequest(r.Context(), r.Method, r.URL.Path, ww.Status(), time.Since(start))
		})
	}
}

func pathID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

func trimmed(s string) string { return strings.TrimSpace(s) }
