package handlers

import (
	"log/slog"
	"net/http"

	"github.com/jwebster45206/pixel-quest/pkg/story"
)

type ThemeResponse struct {
	ID    story.Theme `json:"id"`
	Label string      `json:"label"`
}

type ThemesHandler struct {
	logger *slog.Logger
}

func NewThemesHandler(logger *slog.Logger) *ThemesHandler {
	return &ThemesHandler{logger: logger}
}

func (h *ThemesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: GET")
		return
	}
	themes := story.Themes()
	resp := make([]ThemeResponse, 0, len(themes))
	for _, t := range themes {
		resp = append(resp, ThemeResponse{ID: t, Label: t.Label()})
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}
