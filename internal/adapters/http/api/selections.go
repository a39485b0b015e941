package api

import (
	"context"
	"net/http"

	"github.com/secondvote/trends/internal/domain/aggregate"
	"github.com/secondvote/trends/internal/domain/model"
)

// SelectionDependencies turn dropdown selections into series.
type SelectionDependencies interface {
	SelectOrganization(ctx context.Context, id, organization string) ([]model.SeriesPoint, error)
	SelectMulti(ctx context.Context, id string, organizations []string, issueMode string) ([]model.SeriesPoint, error)
	SelectBreakdown(ctx context.Context, id, organization string) (aggregate.Breakdown, error)
}

// SelectionHandler serves the three chart views.
type SelectionHandler struct {
	deps SelectionDependencies
}

// NewSelectionHandler creates a new selection handler.
func NewSelectionHandler(deps SelectionDependencies) *SelectionHandler {
	return &SelectionHandler{deps: deps}
}

// HandleHistogram handles GET /sessions/{id}/histogram?organization=.
func (h *SelectionHandler) HandleHistogram(w http.ResponseWriter, r *http.Request) {
	const op = "api.histogram"
	id, err := sessionID(r)
	if err != nil {
		writeFailure(w, r, op, err)
		return
	}
	series, err := h.deps.SelectOrganization(r.Context(), id, r.URL.Query().Get("organization"))
	if err != nil {
		writeSelectionFailure(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, selectionResponse{Status: StatusOK, Series: toPoints(series)})
}

// HandleTrend handles GET /sessions/{id}/trend?organization=..&issue_mode=.
// organization may repeat.
func (h *SelectionHandler) HandleTrend(w http.ResponseWriter, r *http.Request) {
	const op = "api.trend"
	id, err := sessionID(r)
	if err != nil {
		writeFailure(w, r, op, err)
		return
	}
	q := r.URL.Query()
	series, err := h.deps.SelectMulti(r.Context(), id, q["organization"], q.Get("issue_mode"))
	if err != nil {
		writeSelectionFailure(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, selectionResponse{Status: StatusOK, Series: toPoints(series)})
}

// HandleBreakdown handles GET /sessions/{id}/breakdown?organization=.
func (h *SelectionHandler) HandleBreakdown(w http.ResponseWriter, r *http.Request) {
	const op = "api.breakdown"
	id, err := sessionID(r)
	if err != nil {
		writeFailure(w, r, op, err)
		return
	}
	b, err := h.deps.SelectBreakdown(r.Context(), id, r.URL.Query().Get("organization"))
	if err != nil {
		writeSelectionFailure(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, selectionResponse{
		Status: StatusOK,
		Series: toPoints(b.Series),
		Trend:  toPoints(b.Trend),
	})
}

// writeSelectionFailure reports control conditions as a 200 status and
// everything else through the error envelope.
func writeSelectionFailure(w http.ResponseWriter, r *http.Request, op string, err error) {
	if status, ok := controlStatus(err); ok {
		writeJSON(w, http.StatusOK, selectionResponse{Status: status})
		return
	}
	writeFailure(w, r, op, err)
}
