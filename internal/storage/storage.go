// Package storage persists play sessions between requests.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/pixel-quest/pkg/state"
)

// DefaultSessionTTL is how long an untouched session survives.
const DefaultSessionTTL = 24 * time.Hour

// Storage defines the interface for session persistence.
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// SaveGameState stores gs under id, replacing any previous version.
	SaveGameState(ctx context.Context, id uuid.UUID, gs *state.GameState) error
	// LoadGameState returns nil, nil when no session exists for id.
	LoadGameState(ctx context.Context, id uuid.UUID) (*state.GameState, error)
	DeleteGameState(ctx context.Context, id uuid.UUID) error
}
