package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/pixel-quest/internal/engine"
	"github.com/jwebster45206/pixel-quest/internal/middleware"
)

// Illustrator returns a data URI for an illustration prompt.
type Illustrator interface {
	Illustrate(ctx context.Context, clientID, prompt string) (string, bool, error)
}

var _ Illustrator = (*engine.Engine)(nil)

type ImageRequest struct {
	Prompt string `json:"prompt"`
}

type ImageResponse struct {
	ImageURL  string `json:"image_url"`
	FromCache bool   `json:"from_cache"`
}

type ImageHandler struct {
	illustrator Illustrator
	logger      *slog.Logger
}

func NewImageHandler(illustrator Illustrator, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{
		illustrator: illustrator,
		logger:      logger,
	}
}

func (h *ImageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: POST")
		return
	}

	var req ImageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, h.logger, err)
		return
	}

	uri, fromCache, err := h.illustrator.Illustrate(r.Context(), middleware.Client(r), req.Prompt)
	if err != nil {
		writeErr(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, ImageResponse{ImageURL: uri, FromCache: fromCache})
}
