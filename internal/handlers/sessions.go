package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jwebster45206/pixel-quest/internal/middleware"
	"github.com/jwebster45206/pixel-quest/internal/session"
	"github.com/jwebster45206/pixel-quest/pkg/state"
	"github.com/jwebster45206/pixel-quest/pkg/story"
)

// Sessions is the session lifecycle used by SessionHandler.
type Sessions interface {
	Create(ctx context.Context, clientID string, theme story.Theme) (*state.GameState, error)
	Get(ctx context.Context, id uuid.UUID) (*state.GameState, error)
	Submit(ctx context.Context, clientID string, id uuid.UUID, choiceID string) (*state.GameState, bool, error)
	Reset(ctx context.Context, id uuid.UUID) (*state.GameState, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

var _ Sessions = (*session.Manager)(nil)

type CreateSessionRequest struct {
	Theme string `json:"theme"`
}

type ActionRequest struct {
	ChoiceID string `json:"choice_id"`
}

type ActionResponse struct {
	State     *state.GameState `json:"state"`
	FromCache bool             `json:"from_cache"`
}

type SessionHandler struct {
	sessions Sessions
	logger   *slog.Logger
}

func NewSessionHandler(sessions Sessions, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// ServeHTTP handles HTTP requests for play sessions
// Routes:
// POST   /v1/sessions              - Start a session
// GET    /v1/sessions/{id}         - Read a session
// DELETE /v1/sessions/{id}         - Delete a session
// POST   /v1/sessions/{id}/actions - Submit a choice
// POST   /v1/sessions/{id}/reset   - Return the session to idle
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/sessions"), "/")
	if path == "" {
		if r.Method != http.MethodPost {
			writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: POST")
			return
		}
		h.handleCreate(w, r)
		return
	}

	idStr, sub, _ := strings.Cut(path, "/")
	id, err := uuid.Parse(idStr)
	if err != nil {
		h.logger.Warn("Invalid session ID", "id", idStr, "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid session ID format")
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		h.handleRead(w, r, id)
	case sub == "" && r.Method == http.MethodDelete:
		h.handleDelete(w, r, id)
	case sub == "actions" && r.Method == http.MethodPost:
		h.handleAction(w, r, id)
	case sub == "reset" && r.Method == http.MethodPost:
		h.handleReset(w, r, id)
	case sub == "", sub == "actions", sub == "reset":
		writeError(w, h.logger, http.StatusMethodNotAllowed, fmt.Sprintf("Method %s not allowed", r.Method))
	default:
		writeError(w, h.logger, http.StatusNotFound, "Not found")
	}
}

func (h *SessionHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, h.logger, err)
		return
	}
	theme, err := story.ParseTheme(req.Theme)
	if err != nil {
		writeErr(w, h.logger, err)
		return
	}

	gs, err := h.sessions.Create(r.Context(), middleware.Client(r), theme)
	if err != nil {
		writeErr(w, h.logger, err)
		return
	}
	w.Header().Set("Location", "/v1/sessions/"+gs.ID.String())
	writeJSON(w, h.logger, http.StatusCreated, gs)
}

func (h *SessionHandler) handleRead(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	gs, err := h.sessions.Get(r.Context(), id)
	if err != nil {
		writeErr(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, gs)
}

func (h *SessionHandler) handleDelete(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if err := h.sessions.Delete(r.Context(), id); err != nil {
		writeErr(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) handleAction(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var req ActionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, h.logger, err)
		return
	}
	if strings.TrimSpace(req.ChoiceID) == "" {
		writeError(w, h.logger, http.StatusBadRequest, "choice_id is required")
		return
	}

	gs, fromCache, err := h.sessions.Submit(r.Context(), middleware.Client(r), id, req.ChoiceID)
	if err != nil {
		writeErr(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, ActionResponse{State: gs, FromCache: fromCache})
}

func (h *SessionHandler) handleReset(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	gs, err := h.sessions.Reset(r.Context(), id)
	if err != nil {
		writeErr(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, gs)
}
