package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/pixel-quest/internal/session"
	"github.com/jwebster45206/pixel-quest/pkg/story"
)

// MaxBodyBytes bounds JSON request bodies.
const MaxBodyBytes = 10 << 10

type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	writeJSON(w, logger, status, ErrorResponse{Error: msg})
}

// writeErr maps err to a status code. Unknown errors are logged and hidden
// behind a generic message.
func writeErr(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := statusFor(err)
	switch status {
	case http.StatusTooManyRequests:
		w.Header().Set("Retry-After", "60")
	case http.StatusInternalServerError:
		logger.Error("Request failed", "error", err)
		writeError(w, logger, status, "Internal server error")
		return
	}
	writeError(w, logger, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, story.ErrValidation), errors.Is(err, story.ErrIllegalChoice):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, story.ErrSessionBusy), errors.Is(err, story.ErrGameOver),
		errors.Is(err, session.ErrSessionReset):
		return http.StatusConflict
	case errors.Is(err, story.ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, story.ErrGeneration):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return fmt.Errorf("%w: request body exceeds %d bytes", story.ErrValidation, MaxBodyBytes)
		}
		return fmt.Errorf("%w: invalid request body: %v", story.ErrValidation, err)
	}
	return nil
}
