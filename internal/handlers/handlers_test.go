package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/pixel-quest/internal/cachestore"
	"github.com/jwebster45206/pixel-quest/internal/contentcache"
	"github.com/jwebster45206/pixel-quest/internal/engine"
	"github.com/jwebster45206/pixel-quest/internal/generator"
	"github.com/jwebster45206/pixel-quest/internal/metrics"
	"github.com/jwebster45206/pixel-quest/internal/middleware"
	"github.com/jwebster45206/pixel-quest/internal/ratelimit"
	"github.com/jwebster45206/pixel-quest/internal/session"
	"github.com/jwebster45206/pixel-quest/internal/storage"
	"github.com/jwebster45206/pixel-quest/pkg/state"
	"github.com/jwebster45206/pixel-quest/pkg/story"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type server struct {
	handler http.Handler
	gen     *generator.MockGenerator
	store   *storage.MockStorage
	cache   *cachestore.MemoryStore
}

func newServer(t *testing.T, limiter ratelimit.Limiter) *server {
	t.Helper()
	gen := generator.NewMockGenerator()
	store := storage.NewMockStorage()
	cache := cachestore.NewMemoryStore()
	m := metrics.New()

	var mgr *session.Manager
	eng := engine.New(contentcache.New(cache, contentcache.WithMetrics(m)), gen,
		engine.WithDelays(0, 0),
		engine.WithRoller(state.Sequence(5)),
		engine.WithLimiter(limiter),
		engine.WithMetrics(m),
		engine.WithLogger(testLogger),
		engine.WithObserver(func(ctx context.Context, gs *state.GameState) { mgr.Observe(ctx, gs) }),
	)
	mgr = session.NewManager(eng, store, testLogger)

	router := NewRouter(Routes{
		Health:   NewHealthHandler(map[string]Pinger{"cache": cache, "sessions": store}, testLogger),
		Themes:   NewThemesHandler(testLogger),
		Sessions: NewSessionHandler(mgr, testLogger),
		Images:   NewImageHandler(eng, testLogger),
		Metrics:  m.Handler(),
	}, testLogger)

	return &server{
		handler: middleware.Logger(testLogger, false)(router),
		gen:     gen,
		store:   store,
		cache:   cache,
	}
}

func (s *server) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthAndPing(t *testing.T) {
	s := newServer(t, ratelimit.Unlimited{})

	w := s.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode[HealthResponse](t, w)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, map[string]string{"cache": "healthy", "sessions": "healthy"}, resp.Components)

	s.store.SetPingError(errors.New("redis down"))
	w = s.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp = decode[HealthResponse](t, w)
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "unhealthy", resp.Components["sessions"])

	w = s.do(t, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "PONG", w.Body.String())
}

func TestThemes(t *testing.T) {
	s := newServer(t, ratelimit.Unlimited{})
	w := s.do(t, http.MethodGet, "/v1/themes", "")
	require.Equal(t, http.StatusOK, w.Code)

	themes := decode[[]ThemeResponse](t, w)
	require.Len(t, themes, 4)
	assert.Equal(t, story.ThemeFantasy, themes[0].ID)
	assert.Equal(t, "Medieval Heroic Fantasy", themes[0].Label)

	w = s.do(t, http.MethodPost, "/v1/themes", "{}")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestSessionLifecycle(t *testing.T) {
	s := newServer(t, ratelimit.Unlimited{})

	w := s.do(t, http.MethodPost, "/v1/sessions", `{"theme":"fantasy"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[state.GameState](t, w)
	assert.Equal(t, "/v1/sessions/"+created.ID.String(), w.Header().Get("Location"))
	assert.Equal(t, []string{"Torch"}, created.Inventory)
	base := "/v1/sessions/" + created.ID.String()

	w = s.do(t, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.ID, decode[state.GameState](t, w).ID)

	w = s.do(t, http.MethodPost, base+"/actions", `{"choice_id":"1"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	action := decode[ActionResponse](t, w)
	assert.False(t, action.FromCache)
	assert.Len(t, action.State.History, 1)

	w = s.do(t, http.MethodPost, base+"/actions", `{"choice_id":"3"}`)
	require.Equal(t, http.StatusOK, w.Code)
	over := decode[ActionResponse](t, w)
	assert.Equal(t, state.PhaseGameOver, over.State.Phase)

	w = s.do(t, http.MethodPost, base+"/actions", `{"choice_id":"1"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, decode[ErrorResponse](t, w).Error, "game is over")

	w = s.do(t, http.MethodPost, base+"/reset", "")
	require.Equal(t, http.StatusOK, w.Code)
	reset := decode[state.GameState](t, w)
	assert.Equal(t, created.ID, reset.ID)
	assert.Equal(t, state.PhaseIdle, reset.Phase)

	w = s.do(t, http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, http.MethodGet, base, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionRequests_Rejected(t *testing.T) {
	s := newServer(t, ratelimit.Unlimited{})
	w := s.do(t, http.MethodPost, "/v1/sessions", `{"theme":"HORROR"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	base := "/v1/sessions/" + decode[state.GameState](t, w).ID.String()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown theme", http.MethodPost, "/v1/sessions", `{"theme":"SPACE"}`, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/v1/sessions", `{"theme":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/v1/sessions", `{"theme":"FANTASY","cheat":true}`, http.StatusBadRequest},
		{"oversized body", http.MethodPost, "/v1/sessions", `{"theme":"` + strings.Repeat("x", MaxBodyBytes) + `"}`, http.StatusBadRequest},
		{"list not allowed", http.MethodGet, "/v1/sessions", "", http.StatusMethodNotAllowed},
		{"bad id", http.MethodGet, "/v1/sessions/not-a-uuid", "", http.StatusBadRequest},
		{"missing session", http.MethodGet, "/v1/sessions/" + uuid.NewString(), "", http.StatusNotFound},
		{"unknown sub-route", http.MethodPost, base + "/teleport", "", http.StatusNotFound},
		{"wrong method", http.MethodGet, base + "/actions", "", http.StatusMethodNotAllowed},
		{"missing choice", http.MethodPost, base + "/actions", `{}`, http.StatusBadRequest},
		{"unknown choice", http.MethodPost, base + "/actions", `{"choice_id":"42"}`, http.StatusBadRequest},
		{"unknown route", http.MethodGet, "/v2/anything", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.NotEmpty(t, decode[ErrorResponse](t, w).Error)
		})
	}
}

func TestActions_RateLimited(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(map[ratelimit.Bucket]ratelimit.Policy{
		ratelimit.BucketStory: {Limit: 1, Window: time.Minute},
		ratelimit.BucketImage: {Limit: 1, Window: time.Minute},
	})
	s := newServer(t, limiter)

	w := s.do(t, http.MethodPost, "/v1/sessions", `{"theme":"WESTERN"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	base := "/v1/sessions/" + decode[state.GameState](t, w).ID.String()

	w = s.do(t, http.MethodPost, base+"/actions", `{"choice_id":"1"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	w = s.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `pixel_quest_rate_limited_total{bucket="story"} 1`)
}

func TestImages(t *testing.T) {
	s := newServer(t, ratelimit.Unlimited{})

	w := s.do(t, http.MethodPost, "/v1/images", `{"prompt":"1-bit lighthouse"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first := decode[ImageResponse](t, w)
	assert.True(t, strings.HasPrefix(first.ImageURL, "data:image/jpeg;base64,"))
	assert.False(t, first.FromCache)

	w = s.do(t, http.MethodPost, "/v1/images", `{"prompt":"1-bit lighthouse"}`)
	second := decode[ImageResponse](t, w)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.ImageURL, second.ImageURL)
	assert.Equal(t, 1, s.gen.ImageCallCount())

	w = s.do(t, http.MethodPost, "/v1/images", `{"prompt":"  "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/v1/images", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestImages_GenerationFailure(t *testing.T) {
	s := newServer(t, ratelimit.Unlimited{})
	s.gen.GenerateImageFunc = func(context.Context, string) ([]byte, error) {
		return nil, errors.New("quota exhausted upstream")
	}
	w := s.do(t, http.MethodPost, "/v1/images", `{"prompt":"castle"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Zero(t, s.cache.Len(cachestore.Images))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", story.ErrValidation), http.StatusBadRequest},
		{story.ErrIllegalChoice, http.StatusBadRequest},
		{session.ErrSessionNotFound, http.StatusNotFound},
		{story.ErrSessionBusy, http.StatusConflict},
		{story.ErrGameOver, http.StatusConflict},
		{session.ErrSessionReset, http.StatusConflict},
		{story.ErrRateLimitExceeded, http.StatusTooManyRequests},
		{fmt.Errorf("%w: %w", story.ErrGeneration, context.DeadlineExceeded), http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestWriteErr_HidesInternalErrors(t *testing.T) {
	w := httptest.NewRecorder()
	writeErr(w, testLogger, errors.New("dial tcp 10.0.0.3:6379: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", decode[ErrorResponse](t, w).Error)
}
