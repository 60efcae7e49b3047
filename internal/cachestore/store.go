// Package cachestore persists generated content keyed by its content
// address. Scenes are stored as serialized story nodes and images as data
// URIs. Entries never change once written, so every backend is a plain
// upsert-and-lookup table.
package cachestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Namespace selects one of the two cache tables.
type Namespace string

const (
	Scenes Namespace = "scenes"
	Images Namespace = "images"
)

// Valid reports whether ns names a known table.
func (ns Namespace) Valid() bool {
	return ns == Scenes || ns == Images
}

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("cache store is closed")

// Store is the persistence contract used by the content cache.
//
// Get reports a miss as ("", false, nil). Put overwrites any existing value
// for the key.
type Store interface {
	Get(ctx context.Context, ns Namespace, key string) (string, bool, error)
	Put(ctx context.Context, ns Namespace, key, value string) error
	Ping(ctx context.Context) error
	Close() error
}

// Backend names a Store implementation.
type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendRedis  Backend = "redis"
	BackendMemory Backend = "memory"
)

// Options configures Open.
type Options struct {
	Backend    Backend
	SQLitePath string
	RedisURL   string
	TTL        time.Duration // Redis only; zero keeps entries forever
}

// Open returns the store selected by opts.Backend. The caller owns the
// returned store and must Close it.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (Store, error) {
	switch Backend(strings.ToLower(string(opts.Backend))) {
	case BackendSQLite, "":
		return OpenSQLite(ctx, opts.SQLitePath, logger)
	case BackendRedis:
		return NewRedisStore(ctx, opts.RedisURL, opts.TTL, logger)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}

func checkArgs(ns Namespace, key string) error {
	if !ns.Valid() {
		return fmt.Errorf("unknown namespace %q", ns)
	}
	if key == "" {
		return fmt.Errorf("cache key is required")
	}
	return nil
}
