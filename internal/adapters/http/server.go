// Package http exposes hosted machines over a JSON API.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Hosted is one named machine exposed by the server, together with its
// journal and terminal states.
type Hosted struct {
	Machine *lattice.Machine
	Journal *lattice.Journal
	Finals  []lattice.State
}

// Server serves a fixed set of named machines. Machines are registered
// before ListenAndServe; the map is read-only afterwards.
type Server struct {
	machines map[string]*Hosted
	logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request/error logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a server hosting the given machines by name.
func NewServer(machines map[string]*Hosted, opts ...Option) *Server {
	s := &Server{
		machines: machines,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1/machines", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", s.handleInspect)
			r.Post("/advance", s.handleAdvance)
			r.Post("/run", s.handleRun)
			r.Get("/journal", s.handleJournal)
		})
	})

	return r
}

// machineResponse is the public view of a hosted machine.
type machineResponse struct {
	Name         string `json:"name"`
	State        string `json:"state"`
	InTransition bool   `json:"in_transition"`
}

// advanceRequest carries the input values for one or more transitions.
type advanceRequest struct {
	Input []any `json:"input"`
}

// advanceResponse reports where a transition (or run) settled.
type advanceResponse struct {
	State  string `json:"state"`
	Output []any  `json:"output"`
}

// recordResponse is the wire view of a journal record.
type recordResponse struct {
	Time   string `json:"time"`
	From   string `json:"from"`
	To     string `json:"to"`
	Input  []any  `json:"input,omitempty"`
	Output []any  `json:"output,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.machines))
	for name := range s.machines {
		names = append(names, name)
	}
	sort.Strings(names)
	writeJSON(w, http.StatusOK, map[string][]string{"machines": names})
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	hosted, ok := s.machines[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown machine"})
		return
	}
	writeJSON(w, http.StatusOK, machineResponse{
		Name:         name,
		State:        hosted.Machine.Current().Label(),
		InTransition: hosted.Machine.InTransition(),
	})
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	hosted, ok := s.machines[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown machine"})
		return
	}

	input, ok := decodeInput(w, r)
	if !ok {
		return
	}

	state, output, err := hosted.Machine.Advance(r.Context(), input...)
	if err != nil {
		s.writeAdvanceError(w, name, err)
		return
	}
	writeJSON(w, http.StatusOK, advanceResponse{State: state.Label(), Output: emptyIfNil(output)})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	hosted, ok := s.machines[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown machine"})
		return
	}

	input, ok := decodeInput(w, r)
	if !ok {
		return
	}

	state, output, err := lattice.Run(r.Context(), hosted.Machine, hosted.Finals, input...)
	if err != nil {
		s.writeAdvanceError(w, name, err)
		return
	}
	writeJSON(w, http.StatusOK, advanceResponse{State: state.Label(), Output: emptyIfNil(output)})
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	hosted, ok := s.machines[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown machine"})
		return
	}

	records := []lattice.Record{}
	if hosted.Journal != nil {
		records = hosted.Journal.Records()
	}

	out := make([]recordResponse, len(records))
	for i, rec := range records {
		out[i] = recordResponse{
			Time:   rec.Time.UTC().Format(time.RFC3339Nano),
			From:   rec.From.Label(),
			To:     rec.To.Label(),
			Input:  rec.Input,
			Output: rec.Output,
		}
	}
	writeJSON(w, http.StatusOK, map[string][]recordResponse{"records": out})
}

// writeAdvanceError maps engine errors to HTTP status codes: reentrancy is a
// conflict, a dead-end state is unprocessable, anything else is the host's
// fault.
func (s *Server) writeAdvanceError(w http.ResponseWriter, name string, err error) {
	s.logger.Warn("advance failed", "machine", name, "err", err)

	var noTransition *lattice.NoTransitionError
	switch {
	case errors.Is(err, lattice.ErrInTransition):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.As(err, &noTransition), errors.Is(err, lattice.ErrNoDestination):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func decodeInput(w http.ResponseWriter, r *http.Request) ([]any, bool) {
	if r.Body == nil || r.ContentLength == 0 {
		return nil, true
	}
	var req advanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return nil, false
	}
	return req.Input, true
}

func emptyIfNil(output []any) []any {
	if output == nil {
		return []any{}
	}
	return output
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
