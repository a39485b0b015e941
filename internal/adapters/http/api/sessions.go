package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/secondvote/trends/internal/domain/model"
)

// SessionDependencies create, reload and close sessions.
type SessionDependencies interface {
	NewSession(ctx context.Context) (string, error)
	CloseSession(ctx context.Context, id string) error
	Reload(ctx context.Context, id string) (model.Choices, error)
}

// SessionsHandler handles session lifecycle requests.
type SessionsHandler struct {
	deps SessionDependencies
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps SessionDependencies) *SessionsHandler {
	return &SessionsHandler{deps: deps}
}

// HandleCreate handles POST /sessions.
func (h *SessionsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_session"
	id, err := h.deps.NewSession(r.Context())
	if err != nil {
		writeFailure(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{SessionID: id})
}

// HandleClose handles DELETE /sessions/{id}.
func (h *SessionsHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	const op = "api.close_session"
	id, err := sessionID(r)
	if err != nil {
		writeFailure(w, r, op, err)
		return
	}
	if err := h.deps.CloseSession(r.Context(), id); err != nil {
		writeFailure(w, r, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleReload handles POST /sessions/{id}/reload. The request blocks until
// the dataset is loaded, and the response carries the dropdown choices.
func (h *SessionsHandler) HandleReload(w http.ResponseWriter, r *http.Request) {
	const op = "api.reload"
	id, err := sessionID(r)
	if err != nil {
		writeFailure(w, r, op, err)
		return
	}
	choices, err := h.deps.Reload(r.Context(), id)
	if err != nil {
		writeFailure(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, choices)
}

func sessionID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		return "", NewKind("api.session_id", ErrBadRequest)
	}
	return id, nil
}
