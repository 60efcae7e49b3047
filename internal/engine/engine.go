// Package engine runs game turns: it resolves a choice, builds the request,
// fetches the next node through the content cache, and applies it.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jwebster45206/pixel-quest/internal/contentcache"
	"github.com/jwebster45206/pixel-quest/internal/generator"
	"github.com/jwebster45206/pixel-quest/internal/logger"
	"github.com/jwebster45206/pixel-quest/internal/metrics"
	"github.com/jwebster45206/pixel-quest/internal/ratelimit"
	"github.com/jwebster45206/pixel-quest/pkg/prompts"
	"github.com/jwebster45206/pixel-quest/pkg/state"
	"github.com/jwebster45206/pixel-quest/pkg/story"
)

const (
	DefaultRollDelay    = 600 * time.Millisecond
	DefaultConsumeDelay = 400 * time.Millisecond
)

// Observer is told about every intermediate phase of a turn.
type Observer func(ctx context.Context, gs *state.GameState)

type Engine struct {
	cache   *contentcache.Cache
	gen     generator.Generator
	limiter ratelimit.Limiter
	roller  state.Roller
	logger  *slog.Logger
	metrics *metrics.Metrics

	rollDelay     time.Duration
	consumeDelay  time.Duration
	illustrations bool
	observer      Observer
	now           func() time.Time
}

type Option func(*Engine)

// WithDelays sets the pauses shown while a roll or an item is resolved.
func WithDelays(roll, consume time.Duration) Option {
	return func(e *Engine) {
		e.rollDelay = roll
		e.consumeDelay = consume
	}
}

// WithIllustrations makes every turn fetch the node's illustration.
func WithIllustrations(on bool) Option {
	return func(e *Engine) { e.illustrations = on }
}

func WithRoller(r state.Roller) Option {
	return func(e *Engine) { e.roller = r }
}

func WithLimiter(l ratelimit.Limiter) Option {
	return func(e *Engine) { e.limiter = l }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

func New(cache *contentcache.Cache, gen generator.Generator, opts ...Option) *Engine {
	e := &Engine{
		cache:        cache,
		gen:          gen,
		limiter:      ratelimit.Unlimited{},
		logger:       slog.Default(),
		rollDelay:    DefaultRollDelay,
		consumeDelay: DefaultConsumeDelay,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.roller == nil {
		seed, err := state.NewSeed()
		if err != nil {
			seed = uint64(time.Now().UnixNano())
		}
		e.roller = state.NewRoller(seed)
	}
	return e
}

// StartSession creates a session for theme and fetches its opening node.
func (e *Engine) StartSession(ctx context.Context, clientID string, theme story.Theme) (*state.GameState, error) {
	if !theme.Valid() {
		return nil, fmt.Errorf("%w: unknown theme %q", story.ErrValidation, theme)
	}
	gs := state.NewGameState(theme)

	req, err := prompts.New().WithGameState(gs).WithAction(prompts.OpeningAction).Build()
	if err != nil {
		return nil, err
	}
	gs.Phase = state.PhaseGenerating
	e.observe(ctx, gs)

	node, fromCache, err := e.fetchNode(ctx, clientID, req)
	if err != nil {
		return nil, err
	}

	next, fx := state.Begin(gs, node)
	next.IsFromCache = fromCache
	e.illustrate(ctx, clientID, next)
	next.UpdatedAt = e.now()

	logger.WithSession(e.logger, next.ID.String()).Info("Session started",
		"theme", theme, "from_cache", fromCache, "item_added", fx.ItemAdded)
	return next, next.CheckInvariants()
}

// SubmitAction plays choiceID against gs. gs is not modified; on error the
// caller keeps its current state.
func (e *Engine) SubmitAction(ctx context.Context, clientID string, gs *state.GameState, choiceID string) (*state.GameState, bool, error) {
	resolved, res, err := state.Resolve(gs, choiceID, e.roller)
	if err != nil {
		return nil, false, err
	}
	e.observe(ctx, resolved)

	switch resolved.Phase {
	case state.PhaseResolvingConsumption:
		err = sleep(ctx, e.consumeDelay)
	case state.PhaseResolvingRoll:
		err = sleep(ctx, e.rollDelay)
	}
	if err != nil {
		return nil, false, err
	}

	req, err := prompts.New().WithGameState(resolved).WithResolution(res).Build()
	if err != nil {
		return nil, false, err
	}

	generating := resolved.Clone()
	generating.Phase = state.PhaseGenerating
	e.observe(ctx, generating)

	node, fromCache, err := e.fetchNode(ctx, clientID, req)
	if err != nil {
		return nil, false, err
	}

	next, fx := state.ApplyNode(resolved, res, node)
	next.IsFromCache = fromCache
	e.illustrate(ctx, clientID, next)
	next.UpdatedAt = e.now()

	attrs := []any{
		"choice", res.Choice.ID,
		"from_cache", fromCache,
		"health", next.Health,
		"phase", next.Phase,
	}
	if res.Roll != nil {
		attrs = append(attrs, "roll", *res.Roll, "penalty", res.Penalty)
	}
	if res.UsedItem != "" {
		attrs = append(attrs, "used_item", res.UsedItem)
	}
	if fx.ItemDiscarded != "" {
		attrs = append(attrs, "discarded_item", fx.ItemDiscarded)
	}
	logger.WithSession(e.logger, next.ID.String()).Info("Action resolved", attrs...)

	if err := next.CheckInvariants(); err != nil {
		return nil, false, fmt.Errorf("state after action: %w", err)
	}
	return next, fromCache, nil
}

// ResetSession returns a fresh idle state.
func (e *Engine) ResetSession() *state.GameState {
	return state.NewGameState("")
}

// Illustrate returns the illustration for prompt, charging the image quota
// only when it has to be generated.
func (e *Engine) Illustrate(ctx context.Context, clientID, prompt string) (string, bool, error) {
	return e.cache.GetOrGenerateImage(ctx, prompt, func(ctx context.Context, p string) ([]byte, error) {
		if err := e.admit(ctx, clientID, ratelimit.BucketImage); err != nil {
			return nil, err
		}
		return e.gen.GenerateImage(ctx, p)
	})
}

func (e *Engine) fetchNode(ctx context.Context, clientID string, req prompts.Request) (story.Node, bool, error) {
	return e.cache.GetOrGenerateNode(ctx, req.Key(), req.Context, func(ctx context.Context, input string) ([]byte, error) {
		if err := e.admit(ctx, clientID, ratelimit.BucketStory); err != nil {
			return nil, err
		}
		return e.gen.GenerateNode(ctx, input)
	})
}

func (e *Engine) admit(ctx context.Context, clientID string, bucket ratelimit.Bucket) error {
	err := ratelimit.Admit(ctx, e.limiter, clientID, bucket)
	if err != nil {
		e.metrics.RateLimited(string(bucket))
		e.logger.Warn("Request rejected by rate limiter", "client", clientID, "bucket", bucket)
	}
	return err
}

// illustrate sets gs.ImageURL. A failure only costs the picture.
func (e *Engine) illustrate(ctx context.Context, clientID string, gs *state.GameState) {
	if !e.illustrations || gs.CurrentNode == nil || gs.CurrentNode.ImagePrompt == "" {
		return
	}
	uri, _, err := e.Illustrate(ctx, clientID, gs.CurrentNode.ImagePrompt)
	if err != nil {
		logger.WithSession(e.logger, gs.ID.String()).Warn("Illustration unavailable", "error", err)
		return
	}
	gs.ImageURL = uri
}

func (e *Engine) observe(ctx context.Context, gs *state.GameState) {
	if e.observer != nil {
		e.observer(ctx, gs)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
