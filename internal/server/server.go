// Package server exposes the agent over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/flowgraph/ragagent/internal/agent"
	"github.com/flowgraph/ragagent/internal/core/graph"
	"github.com/flowgraph/ragagent/internal/core/message"
	"github.com/flowgraph/ragagent/internal/infrastructure/metrics"
	"github.com/flowgraph/ragagent/internal/logging"
	"github.com/flowgraph/ragagent/pkg/flowgraph"
	"github.com/flowgraph/ragagent/pkg/prebuilt/rag"
	"github.com/flowgraph/ragagent/pkg/validation"
)

// Server routes HTTP requests to an agent.
type Server struct {
	agent *agent.Agent
	log   *slog.Logger
	mux   *http.ServeMux
}

// New registers the routes:
//
//	GET   /healthz
//	GET   /metrics
//	GET   /debug/vars
//	GET   /debug/pprof/
//	POST  /v1/ask
//	POST  /v1/documents
//	GET   /v1/threads/{id}/state
//	PATCH /v1/threads/{id}/state
//	GET   /v1/threads/{id}/history
//	GET   /v1/graphs
//	GET   /v1/graphs/{id}
func New(a *agent.Agent, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	s := &Server{agent: a, log: logger, mux: http.NewServeMux()}

	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, "ok")
	})
	s.mux.Handle("GET /metrics", metrics.Handler())
	s.mux.Handle("GET /debug/vars", expvar.Handler())
	s.mux.HandleFunc("GET /debug/pprof/", pprof.Index)
	s.mux.HandleFunc("GET /debug/pprof/cmdline", pprof.Cmdline)
	s.mux.HandleFunc("GET /debug/pprof/profile", pprof.Profile)
	s.mux.HandleFunc("GET /debug/pprof/symbol", pprof.Symbol)
	s.mux.HandleFunc("GET /debug/pprof/trace", pprof.Trace)

	s.mux.Handle("POST /v1/ask", validated(validation.NewRequestValidator(nil).
		JSON(validation.AskRequest{}), s.ask))
	s.mux.Handle("POST /v1/documents", validated(validation.NewRequestValidator(nil).
		JSON(validation.IngestRequest{}), s.ingest))
	s.mux.Handle("GET /v1/threads/{id}/state", http.HandlerFunc(s.getState))
	s.mux.Handle("PATCH /v1/threads/{id}/state", validated(validation.NewRequestValidator(nil).
		JSON(validation.StateUpdateRequest{}), s.updateState))
	s.mux.Handle("GET /v1/threads/{id}/history", validated(validation.NewRequestValidator(nil).
		QueryParams(map[string]string{"limit": "numeric"}), s.history))
	s.mux.HandleFunc("GET /v1/graphs", s.listGraphs)
	s.mux.HandleFunc("GET /v1/graphs/{id}", s.getGraph)
	return s
}

func validated(rv *validation.RequestValidator, h http.HandlerFunc) http.Handler {
	return rv.Build()(h)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r.WithContext(logging.WithLogger(r.Context(), s.log)))
	s.log.Debug("request",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", rec.status),
		slog.Duration("duration", time.Since(start)))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{Addr: addr, Handler: s, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("server listening", slog.String("addr", addr))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) ask(w http.ResponseWriter, r *http.Request) {
	req, _ := validation.Body[validation.AskRequest](r)
	var opts []flowgraph.RunOption
	if req.RecursionLimit > 0 {
		opts = append(opts, flowgraph.WithRecursionLimit(req.RecursionLimit))
	}
	ans, err := s.agent.Ask(r.Context(), req.ThreadID, req.Question, opts...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

type ingestResponse struct {
	Indexed int      `json:"indexed"`
	IDs     []string `json:"ids"`
}

func (s *Server) ingest(w http.ResponseWriter, r *http.Request) {
	req, _ := validation.Body[validation.IngestRequest](r)
	docs := make([]rag.Document, len(req.Documents))
	ids := make([]string, len(req.Documents))
	for i, d := range req.Documents {
		id := d.ID
		if id == "" {
			id = uuid.NewString()
		}
		docs[i] = rag.Document{ID: id, Content: d.Content, Metadata: d.Metadata}
		ids[i] = id
	}
	if err := s.agent.Store.Index(r.Context(), docs); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ingestResponse{Indexed: len(docs), IDs: ids})
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	st, err := s.agent.Graph.GetState(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) updateState(w http.ResponseWriter, r *http.Request) {
	req, _ := validation.Body[validation.StateUpdateRequest](r)
	update := flowgraph.State{}
	for k, v := range req.Values {
		update[k] = v
	}
	if len(req.Messages) > 0 {
		msgs := make([]message.Message, len(req.Messages))
		for i, m := range req.Messages {
			role, err := message.ParseRole(m.Role)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			msgs[i] = message.Message{ID: m.ID, Role: role, Content: m.Content}
		}
		update[flowgraph.MessagesKey] = msgs
	}
	st, err := s.agent.Graph.UpdateState(r.Context(), r.PathValue("id"), update, req.AsNode)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	hist, err := s.agent.Graph.History(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(hist) == 0 {
		s.writeError(w, r, flowgraph.ErrThreadNotFound)
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

type graphResponse struct {
	*graph.Graph
	Mermaid string `json:"mermaid"`
}

func (s *Server) listGraphs(w http.ResponseWriter, r *http.Request) {
	graphs, err := s.agent.Graphs.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ids := make([]string, len(graphs))
	for i, g := range graphs {
		ids[i] = g.ID
	}
	writeJSON(w, http.StatusOK, map[string][]string{"graphs": ids})
}

func (s *Server) getGraph(w http.ResponseWriter, r *http.Request) {
	g, err := s.agent.Graphs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, graphResponse{Graph: g, Mermaid: g.ToMermaid()})
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("request failed",
			slog.String("path", r.URL.Path), slog.String("error", err.Error()))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, flowgraph.ErrThreadNotFound), errors.Is(err, graph.ErrGraphNotFound):
		return http.StatusNotFound
	case errors.Is(err, flowgraph.ErrUnknownNode), errors.Is(err, message.ErrInvalidRole),
		errors.Is(err, agent.ErrEmptyQuestion), errors.Is(err, flowgraph.ErrNoPendingRun),
		errors.Is(err, flowgraph.ErrUndeclaredKey), errors.Is(err, validation.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
