// Package contentcache serves story nodes and illustrations from the cache
// store, generating and storing them on a miss.
//
// Concurrent misses on one key share a single generator call. The shared
// call runs on a context detached from any one caller, bounded by the
// generation timeout, so a caller that gives up does not fail the others
// and the finished result is still cached. A flight rejected by the rate
// limiter fails only the caller that started it.
package contentcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jwebster45206/pixel-quest/internal/cachestore"
	"github.com/jwebster45206/pixel-quest/internal/imageproc"
	"github.com/jwebster45206/pixel-quest/internal/metrics"
	"github.com/jwebster45206/pixel-quest/pkg/story"
	"golang.org/x/sync/singleflight"
)

const DefaultGenerationTimeout = 60 * time.Second

// GenerateFunc produces raw generator output for input.
type GenerateFunc func(ctx context.Context, input string) ([]byte, error)

type Cache struct {
	store     cachestore.Store
	processor imageproc.Processor
	flights   singleflight.Group
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Cache)

func WithTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

func WithProcessor(p imageproc.Processor) Option {
	return func(c *Cache) { c.processor = p }
}

func New(store cachestore.Store, opts ...Option) *Cache {
	c := &Cache{
		store:     store,
		processor: imageproc.Default(),
		timeout:   DefaultGenerationTimeout,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type nodeResult struct {
	node      story.Node
	fromCache bool
}

// GetOrGenerateNode returns the node stored under key, or calls generate
// with the prompt from contextFactory, validates the output, and stores it.
// contextFactory is only invoked on a miss.
func (c *Cache) GetOrGenerateNode(ctx context.Context, key string, contextFactory func() string, generate GenerateFunc) (story.Node, bool, error) {
	if key == "" {
		return story.Node{}, false, fmt.Errorf("%w: empty cache key", story.ErrValidation)
	}

	if node, ok := c.lookupNode(ctx, key); ok {
		c.metrics.CacheLookup(string(cachestore.Scenes), true)
		return node, true, nil
	}
	c.metrics.CacheLookup(string(cachestore.Scenes), false)

	res, err := do(c, ctx, cachestore.Scenes, key, func(fctx context.Context) (nodeResult, error) {
		// A flight that just finished may have stored it.
		if node, ok := c.lookupNode(fctx, key); ok {
			return nodeResult{node: node, fromCache: true}, nil
		}

		start := time.Now()
		raw, err := generate(fctx, contextFactory())
		var node story.Node
		if err == nil {
			node, err = story.ParseNode(raw)
		}
		c.metrics.Generation("node", time.Since(start), err)
		if err != nil {
			return nodeResult{}, classify(err)
		}

		// Re-encode the validated node so the stored form is canonical.
		data, err := json.Marshal(node)
		if err != nil {
			return nodeResult{}, fmt.Errorf("%w: encode node: %w", story.ErrGeneration, err)
		}
		c.put(fctx, cachestore.Scenes, key, string(data))
		return nodeResult{node: node}, nil
	})
	if err != nil {
		return story.Node{}, false, err
	}
	return res.node, res.fromCache, nil
}

type imageResult struct {
	uri       string
	fromCache bool
}

// GetOrGenerateImage returns the illustration for prompt as a JPEG data URI.
// The prompt itself is the cache key.
func (c *Cache) GetOrGenerateImage(ctx context.Context, prompt string, generate GenerateFunc) (string, bool, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", false, fmt.Errorf("%w: image prompt is required", story.ErrValidation)
	}
	if utf8.RuneCountInString(prompt) > story.MaxImagePromptLength {
		return "", false, fmt.Errorf("%w: image prompt exceeds %d characters", story.ErrValidation, story.MaxImagePromptLength)
	}

	if uri, ok := c.lookupImage(ctx, prompt); ok {
		c.metrics.CacheLookup(string(cachestore.Images), true)
		return uri, true, nil
	}
	c.metrics.CacheLookup(string(cachestore.Images), false)

	res, err := do(c, ctx, cachestore.Images, prompt, func(fctx context.Context) (imageResult, error) {
		if uri, ok := c.lookupImage(fctx, prompt); ok {
			return imageResult{uri: uri, fromCache: true}, nil
		}

		start := time.Now()
		raw, err := generate(fctx, prompt)
		var jpegBytes []byte
		if err == nil {
			jpegBytes, err = c.processor.Normalize(raw)
		}
		c.metrics.Generation("image", time.Since(start), err)
		if err != nil {
			return imageResult{}, classify(err)
		}

		uri := imageproc.DataURI(jpegBytes)
		c.put(fctx, cachestore.Images, prompt, uri)
		return imageResult{uri: uri}, nil
	})
	if err != nil {
		return "", false, err
	}
	return res.uri, res.fromCache, nil
}

// joinRetries bounds how often a caller that joined another caller's
// rejected flight tries again under its own admission.
const joinRetries = 3

// do runs fn once per in-flight key and waits for the shared result or for
// ctx to end, whichever comes first. A rate-limit rejection belongs to the
// caller whose fn ran; callers that only joined that flight retry with
// their own fn.
func do[T any](c *Cache, ctx context.Context, ns cachestore.Namespace, key string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	detached := context.WithoutCancel(ctx)

	for attempt := 0; ; attempt++ {
		led := false
		ch := c.flights.DoChan(string(ns)+"\x00"+key, func() (any, error) {
			led = true
			fctx, cancel := context.WithTimeout(detached, c.timeout)
			defer cancel()
			return fn(fctx)
		})

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case res := <-ch:
			if res.Shared {
				c.metrics.SharedFlight(string(ns))
			}
			if res.Err != nil {
				if !led && attempt < joinRetries && errors.Is(res.Err, story.ErrRateLimitExceeded) {
					continue
				}
				return zero, res.Err
			}
			return res.Val.(T), nil
		}
	}
}

func (c *Cache) lookupNode(ctx context.Context, key string) (story.Node, bool) {
	data, ok := c.get(ctx, cachestore.Scenes, key)
	if !ok {
		return story.Node{}, false
	}
	node, err := story.ParseNode([]byte(data))
	if err != nil {
		c.logger.Warn("Discarding corrupt cached scene", "key", key, "error", err)
		return story.Node{}, false
	}
	return node, true
}

func (c *Cache) lookupImage(ctx context.Context, prompt string) (string, bool) {
	uri, ok := c.get(ctx, cachestore.Images, prompt)
	if !ok {
		return "", false
	}
	if !strings.HasPrefix(uri, "data:image/") {
		c.logger.Warn("Discarding corrupt cached image", "prompt", prompt)
		return "", false
	}
	return uri, true
}

// get treats a failing store as a miss so that generation can proceed.
func (c *Cache) get(ctx context.Context, ns cachestore.Namespace, key string) (string, bool) {
	v, ok, err := c.store.Get(ctx, ns, key)
	if err != nil {
		c.logger.Error("Cache read failed", "namespace", ns, "error", err)
		return "", false
	}
	return v, ok
}

// put logs a failed write. The generated content is still returned to the
// caller; the next identical request regenerates it.
func (c *Cache) put(ctx context.Context, ns cachestore.Namespace, key, value string) {
	if err := c.store.Put(ctx, ns, key, value); err != nil {
		c.metrics.CacheWriteError(string(ns))
		c.logger.Error("Cache write failed", "namespace", ns, "error", err)
	}
}

// classify keeps admission failures and already classified errors intact
// and marks everything else as a generation failure.
func classify(err error) error {
	switch {
	case errors.Is(err, story.ErrRateLimitExceeded), errors.Is(err, story.ErrGeneration):
		return err
	default:
		return fmt.Errorf("%w: %w", story.ErrGeneration, err)
	}
}
