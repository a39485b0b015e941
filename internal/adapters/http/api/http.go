// Package api declares the JSON routes the dashboard calls and maps service
// outcomes onto HTTP responses.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/secondvote/trends/internal/adapters/repository"
	"github.com/secondvote/trends/internal/domain/aggregate"
	"github.com/secondvote/trends/internal/domain/model"
	"github.com/secondvote/trends/internal/domain/quarter"
	"github.com/secondvote/trends/internal/domain/session"
	"github.com/secondvote/trends/internal/domain/stats"
	"github.com/secondvote/trends/pkg/logger"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	SessionDependencies
	SelectionDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	sessionsHandler  *SessionsHandler
	selectionHandler *SelectionHandler
	logger           logger.Logger
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		sessionsHandler:  NewSessionsHandler(deps),
		selectionHandler: NewSelectionHandler(deps),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("http")
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	route := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(LoggingMiddleware(h, s.logger), endpoint))
	}

	route("GET /healthz", "healthz", s.healthHandler.HandleHealth)
	mux.Handle("GET /metrics", s.healthHandler.MetricsHandler())
	route("GET /stats", "stats", s.statsHandler.HandleStats)

	route("POST /sessions", "sessions", s.sessionsHandler.HandleCreate)
	route("DELETE /sessions/{id}", "session", s.sessionsHandler.HandleClose)
	route("POST /sessions/{id}/reload", "reload", s.sessionsHandler.HandleReload)

	route("GET /sessions/{id}/histogram", "histogram", s.selectionHandler.HandleHistogram)
	route("GET /sessions/{id}/trend", "trend", s.selectionHandler.HandleTrend)
	route("GET /sessions/{id}/breakdown", "breakdown", s.selectionHandler.HandleBreakdown)
}

// Selection statuses. Only StatusOK carries series.
const (
	StatusOK             = "ok"
	StatusEmptySelection = "empty_selection"
	StatusNotLoaded      = "not_loaded"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
}

type selectionResponse struct {
	Status string  `json:"status"`
	Series []point `json:"series,omitempty"`
	Trend  []point `json:"trend,omitempty"`
}

// point is a SeriesPoint with the quarter's axis label.
type point struct {
	Organization string        `json:"organization,omitempty"`
	IssueType    string        `json:"issue_type,omitempty"`
	Quarter      quarter.Label `json:"quarter"`
	Label        string        `json:"label"`
	Value        float64       `json:"value"`
}

func toPoints(in []model.SeriesPoint) []point {
	out := make([]point, len(in))
	for i, p := range in {
		out[i] = point{
			Organization: p.Organization,
			IssueType:    p.IssueType,
			Quarter:      p.Quarter,
			Label:        p.Quarter.Display(),
			Value:        p.Value,
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// controlStatus reports whether err is a "nothing to show" condition rather
// than a failure.
func controlStatus(err error) (string, bool) {
	switch {
	case errors.Is(err, aggregate.ErrEmptySelection):
		return StatusEmptySelection, true
	case errors.Is(err, session.ErrNotLoaded):
		return StatusNotLoaded, true
	}
	return "", false
}

// classify maps a failure onto a status code and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, session.ErrUnknownSession):
		return http.StatusNotFound, "unknown_session"
	case errors.Is(err, repository.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, repository.ErrSchemaMismatch):
		return http.StatusBadGateway, "schema_mismatch"
	case errors.Is(err, stats.ErrDomain), errors.Is(err, quarter.ErrInvalidTimestamp):
		return http.StatusUnprocessableEntity, "domain_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeFailure answers with the error envelope. Server-side failures expose
// only their public kind; the cause, which may carry driver or host details,
// is logged.
func writeFailure(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := classify(err)
	kind := publicKind(code)
	if kind == nil {
		writeError(w, status, code, Wrap(op, err))
		return
	}
	logger.Get().Named("http").Error(r.Context(), "request failed",
		logger.String("path", r.URL.Path),
		logger.String("code", code),
		logger.Int("status", status),
		logger.Error(WrapKind(op, kind, err)))
	writeError(w, status, code, NewKind(op, kind))
}

func publicKind(code string) error {
	switch code {
	case "unavailable":
		return ErrStoreUnavailable
	case "schema_mismatch":
		return ErrStoreSchema
	case "internal_error":
		return ErrInternal
	}
	return nil
}
