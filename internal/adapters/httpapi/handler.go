// Package httpapi exposes the allocation engine over HTTP.
package httpapi

import (
	"bufio"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"net"
	"net/http"
	"staffcore/internal/core"
	"staffcore/internal/state"
	"staffcore/pkg/domain"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler routes API requests to a core.Service.
type Handler struct {
	svc       *core.Service
	container *state.Container
	logger    core.Logger
	gatherer  prometheus.Gatherer
	upgrader  websocket.Upgrader
	router    *mux.Router
}

// Option configures a Handler.
type Option func(*Handler)

// WithContainer enables the /api/v1/events stream over container.
func WithContainer(c *state.Container) Option {
	return func(h *Handler) { h.container = c }
}

// WithLogger sets the request logger.
func WithLogger(logger core.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithGatherer selects the registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(h *Handler) {
		if g != nil {
			h.gatherer = g
		}
	}
}

// NewHandler builds the router.
func NewHandler(svc *core.Service, opts ...Option) *Handler {
	h := &Handler{
		svc:      svc,
		logger:   nopLogger{},
		gatherer: prometheus.DefaultGatherer,
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 4096},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.router = h.routes()
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) routes() *mux.Router {
	router := mux.NewRouter()
	router.Use(h.logRequests)

	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/allocations", h.handleListAllocations).Methods(http.MethodGet)
	api.HandleFunc("/allocations", h.handleCreateAllocation).Methods(http.MethodPost)
	api.HandleFunc("/allocations/drop", h.handleDropAllocation).Methods(http.MethodPost)
	api.HandleFunc("/allocations/{id}", h.handleGetAllocation).Methods(http.MethodGet)
	api.HandleFunc("/allocations/{id}", h.handleUpdateAllocation).Methods(http.MethodPut)
	api.HandleFunc("/allocations/{id}", h.handleDeleteAllocation).Methods(http.MethodDelete)

	api.HandleFunc("/talents", h.handleListTalents).Methods(http.MethodGet)
	api.HandleFunc("/talents", h.handleCreateTalent).Methods(http.MethodPost)
	api.HandleFunc("/talents/{id}", h.handleGetTalent).Methods(http.MethodGet)
	api.HandleFunc("/talents/{id}", h.handleDeleteTalent).Methods(http.MethodDelete)
	api.HandleFunc("/talents/{id}/conflicts", h.handleConflicts).Methods(http.MethodGet)
	api.HandleFunc("/talents/{id}/availability", h.handleAvailability).Methods(http.MethodGet)
	api.HandleFunc("/talents/{id}/schedule", h.handleSchedule).Methods(http.MethodGet)
	api.HandleFunc("/available", h.handleAvailableTalents).Methods(http.MethodGet)

	api.HandleFunc("/projects", h.handleListProjects).Methods(http.MethodGet)
	api.HandleFunc("/projects", h.handleCreateProject).Methods(http.MethodPost)
	api.HandleFunc("/projects/{id}", h.handleGetProject).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}", h.handleDeleteProject).Methods(http.MethodDelete)
	api.HandleFunc("/projects/{id}/talents/{talentId}", h.handleAssignTalent).Methods(http.MethodPut)
	api.HandleFunc("/projects/{id}/talents/{talentId}", h.handleUnassignTalent).Methods(http.MethodDelete)

	api.HandleFunc("/areas", h.handleListAreas).Methods(http.MethodGet)
	api.HandleFunc("/areas", h.handleCreateArea).Methods(http.MethodPost)
	api.HandleFunc("/areas/{id}", h.handleDeleteArea).Methods(http.MethodDelete)

	api.HandleFunc("/overview", h.handleOverview).Methods(http.MethodGet)
	api.HandleFunc("/events", h.handleEvents).Methods(http.MethodGet)

	router.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.Handle("/debug/vars", expvar.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	return router
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// Hijack is needed by the websocket upgrader, which asserts http.Hijacker on
// the writer it is given.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(started))
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.svc.Overview(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

// violationBody is the wire form of a rule violation.
type violationBody struct {
	Rule     string          `json:"rule"`
	Severity domain.Severity `json:"severity"`
	Message  string          `json:"message"`
	Entity   core.EntityType `json:"entity"`
	EntityID string          `json:"entity_id"`
}

func violations(list []core.Violation) []violationBody {
	out := make([]violationBody, 0, len(list))
	for _, v := range list {
		out = append(out, violationBody{Rule: v.Rule, Severity: v.Severity, Message: v.Message, Entity: v.Entity, EntityID: v.EntityID})
	}
	return out
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request payload: %w", err)
	}
	return nil
}

func parseDateParam(r *http.Request, name string) (domain.Date, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return domain.Date{}, fmt.Errorf("query parameter %q is required", name)
	}
	d, err := domain.ParseDate(raw)
	if err != nil {
		return domain.Date{}, fmt.Errorf("query parameter %q: %w", name, err)
	}
	return d, nil
}

// writeServiceError maps engine errors onto status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var rv core.RuleViolationError
	var ref core.ErrReferenced
	switch {
	case core.AsRuleViolation(err, &rv):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":      rv.Error(),
			"violations": violations(rv.Result.Violations),
		})
	case errors.As(err, &ref), errors.Is(err, core.ErrStaleState):
		writeError(w, http.StatusConflict, err.Error())
	case core.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrMissingField), errors.Is(err, core.ErrInvalidRange), errors.Is(err, core.ErrRangeTooLong), errors.Is(err, core.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
