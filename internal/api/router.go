package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gwsandbox/gwsandbox-ctl/internal/audit"
	"github.com/gwsandbox/gwsandbox-ctl/internal/definition"
	"github.com/gwsandbox/gwsandbox-ctl/internal/errors"
	"github.com/gwsandbox/gwsandbox-ctl/internal/logstream"
	"github.com/gwsandbox/gwsandbox-ctl/internal/metrics"
	"github.com/gwsandbox/gwsandbox-ctl/internal/orchestrator"
)

// Service is the orchestrator surface served over HTTP.
type Service interface {
	Create(ctx context.Context, def definition.Definition) (orchestrator.View, error)
	List(ctx context.Context) []orchestrator.View
	Get(ctx context.Context, id string) (orchestrator.View, error)
	Start(ctx context.Context, id string, opts orchestrator.StartOptions) (orchestrator.View, error)
	Stop(ctx context.Context, id string) (orchestrator.View, error)
	Delete(ctx context.Context, id string) (orchestrator.View, error)
	Events(ctx context.Context, id string) ([]audit.Event, error)
	StreamLogs(ctx context.Context, id string) (*logstream.Subscription, error)
}

// HealthFunc reports whether the runtime is reachable.
type HealthFunc func(ctx context.Context) error

const (
	healthCheckTimeout = 2 * time.Second
	maxDefinitionBytes = 1 << 20
	wsWriteWait        = 10 * time.Second
)

// Router wires HTTP endpoints to the orchestrator.
type Router struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	svc      Service
	metrics  *metrics.Metrics
	health   HealthFunc
	upgrader websocket.Upgrader
}

// NewRouter assembles routes with dependencies. m and health may be nil.
func NewRouter(logger *slog.Logger, svc Service, m *metrics.Metrics, health HealthFunc) *Router {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := &Router{
		mux:     http.NewServeMux(),
		logger:  logger,
		svc:     svc,
		metrics: m,
		health:  health,
		// A nil CheckOrigin accepts requests without an Origin header or
		// whose Origin host matches the request host.
		upgrader: websocket.Upgrader{},
	}
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) register() {
	r.handle("GET /healthz", r.handleHealthz)
	if r.metrics != nil {
		r.mux.Handle("GET /metrics", r.metrics.Handler())
	}
	r.handle("GET /environments", r.handleList)
	r.handle("POST /environments", r.handleCreate)
	r.handle("GET /environments/{id}", r.handleGet)
	r.handle("DELETE /environments/{id}", r.handleDelete)
	r.handle("POST /environments/{id}/start", r.handleStart)
	r.handle("POST /environments/{id}/stop", r.handleStop)
	r.handle("GET /environments/{id}/events", r.handleEvents)
	r.handle("GET /environments/{id}/logs", r.handleLogs)
}

func (r *Router) handle(pattern string, h http.HandlerFunc) {
	route := pattern
	if i := strings.IndexByte(pattern, ' '); i >= 0 {
		route = pattern[i+1:]
	}
	r.mux.HandleFunc(pattern, r.audit(route, h))
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	component := map[string]any{"status": "up"}
	status := "ok"
	if r.health != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.health(ctx); err != nil {
			status = "degraded"
			component = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		}
	}
	payload := map[string]any{
		"status": status,
		"components": map[string]any{
			"runtime": component,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func (r *Router) handleList(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, r.svc.List(req.Context()))
}

func (r *Router) handleCreate(w http.ResponseWriter, req *http.Request) {
	def, err := decodeDefinition(req)
	if err != nil {
		writeErr(w, err)
		return
	}
	view, err := r.svc.Create(req.Context(), *def)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// decodeDefinition accepts JSON, or YAML when the content type says so.
// Unknown fields are rejected in both.
func decodeDefinition(req *http.Request) (*definition.Definition, error) {
	body, err := io.ReadAll(io.LimitReader(req.Body, maxDefinitionBytes+1))
	if err != nil {
		return nil, errors.Wrap(errors.KindInvalidDefinition, "failed to read request body", err)
	}
	if len(body) > maxDefinitionBytes {
		return nil, errors.InvalidDefinition("definition is too large")
	}
	if strings.Contains(req.Header.Get("Content-Type"), "yaml") {
		return definition.Parse(body)
	}

	var def definition.Definition
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&def); err != nil {
		return nil, errors.Wrap(errors.KindInvalidDefinition, "invalid JSON body", err)
	}
	return &def, nil
}

func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) {
	view, err := r.svc.Get(req.Context(), req.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (r *Router) handleDelete(w http.ResponseWriter, req *http.Request) {
	if _, err := r.svc.Delete(req.Context(), req.PathValue("id")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleStart(w http.ResponseWriter, req *http.Request) {
	opts, err := startOptions(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.KindGeneral, err.Error())
		return
	}
	view, err := r.svc.Start(req.Context(), req.PathValue("id"), opts)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func startOptions(req *http.Request) (orchestrator.StartOptions, error) {
	var opts orchestrator.StartOptions
	q := req.URL.Query()
	if v := q.Get("wait"); v != "" {
		wait, err := strconv.ParseBool(v)
		if err != nil {
			return opts, errors.New(errors.KindGeneral, "wait must be a boolean")
		}
		opts.Wait = wait
	}
	if v := q.Get("timeout"); v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil || timeout <= 0 {
			return opts, errors.New(errors.KindGeneral, "timeout must be a positive duration such as 30s")
		}
		opts.Timeout = timeout
	}
	return opts, nil
}

func (r *Router) handleStop(w http.ResponseWriter, req *http.Request) {
	view, err := r.svc.Stop(req.Context(), req.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (r *Router) handleEvents(w http.ResponseWriter, req *http.Request) {
	events, err := r.svc.Events(req.Context(), req.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (r *Router) handleLogs(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")

	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()

	// Subscribe before upgrading so unknown ids get a JSON error.
	sub, err := r.svc.StreamLogs(ctx, id)
	if err != nil {
		writeErr(w, err)
		return
	}
	defer sub.Close()

	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "environment", id, "error", err)
		return
	}
	defer conn.Close()

	// The read loop only detects the client going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-sub.Lines():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "log stream ended"),
					time.Now().Add(wsWriteWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				r.logger.Warn("websocket send failed", "environment", id, "error", err)
				return
			}
		}
	}
}
