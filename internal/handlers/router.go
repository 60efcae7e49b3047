package handlers

import (
	"log/slog"
	"net/http"
)

// Routes are the handlers mounted by NewRouter. Metrics may be nil.
type Routes struct {
	Health   *HealthHandler
	Themes   *ThemesHandler
	Sessions *SessionHandler
	Images   *ImageHandler
	Metrics  http.Handler
}

// NewRouter mounts every API route on a fresh mux.
func NewRouter(rt Routes, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/health", rt.Health)
	mux.HandleFunc("/ping", Ping)
	mux.Handle("/v1/themes", rt.Themes)
	mux.Handle("/v1/sessions", rt.Sessions)
	mux.Handle("/v1/sessions/", rt.Sessions)
	mux.Handle("/v1/images", rt.Images)
	if rt.Metrics != nil {
		mux.Handle("/metrics", rt.Metrics)
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, logger, http.StatusNotFound, "Not found")
	})
	return mux
}
