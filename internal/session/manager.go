// Package session owns the lifecycle of play sessions: it loads and saves
// them around engine calls and makes sure a session runs one action at a
// time.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jwebster45206/pixel-quest/internal/engine"
	"github.com/jwebster45206/pixel-quest/internal/logger"
	"github.com/jwebster45206/pixel-quest/internal/storage"
	"github.com/jwebster45206/pixel-quest/pkg/state"
	"github.com/jwebster45206/pixel-quest/pkg/story"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionReset is returned to an action that lost the race against a
	// reset or delete of its session. Its result is discarded.
	ErrSessionReset = errors.New("session was reset")
)

// Turns are the engine operations the manager drives.
type Turns interface {
	StartSession(ctx context.Context, clientID string, theme story.Theme) (*state.GameState, error)
	SubmitAction(ctx context.Context, clientID string, gs *state.GameState, choiceID string) (*state.GameState, bool, error)
	ResetSession() *state.GameState
}

var _ Turns = (*engine.Engine)(nil)

type flight struct {
	cancel context.CancelFunc
	epoch  uint64
}

// Manager serializes actions per session. The guard is per process; run a
// single API instance per session store.
type Manager struct {
	turns  Turns
	store  storage.Storage
	logger *slog.Logger

	mu     sync.Mutex
	active map[uuid.UUID]*flight
	epochs map[uuid.UUID]uint64 // only for sessions with a running action
}

func NewManager(turns Turns, store storage.Storage, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		turns:  turns,
		store:  store,
		logger: log,
		active: make(map[uuid.UUID]*flight),
		epochs: make(map[uuid.UUID]uint64),
	}
}

// Observe persists intermediate phases of an action so readers can follow
// it. Pass it to the engine with engine.WithObserver.
func (m *Manager) Observe(ctx context.Context, gs *state.GameState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.active[gs.ID]
	if !ok || f.epoch != m.epochs[gs.ID] {
		return
	}
	if err := m.store.SaveGameState(context.WithoutCancel(ctx), gs.ID, gs); err != nil {
		m.sessionLog(gs.ID).Warn("Failed to save intermediate phase", "phase", gs.Phase, "error", err)
	}
}

// Create starts a session and stores it.
func (m *Manager) Create(ctx context.Context, clientID string, theme story.Theme) (*state.GameState, error) {
	gs, err := m.turns.StartSession(ctx, clientID, theme)
	if err != nil {
		return nil, err
	}
	if err := m.store.SaveGameState(ctx, gs.ID, gs); err != nil {
		return nil, err
	}
	m.sessionLog(gs.ID).Debug("Session created", "client", clientID)
	return gs, nil
}

func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*state.GameState, error) {
	gs, err := m.store.LoadGameState(ctx, id)
	if err != nil {
		return nil, err
	}
	if gs == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return gs, nil
}

// Submit plays one choice. A second action on the same session while one
// is running fails with story.ErrSessionBusy.
func (m *Manager) Submit(ctx context.Context, clientID string, id uuid.UUID, choiceID string) (*state.GameState, bool, error) {
	ctx, f, err := m.begin(ctx, id)
	if err != nil {
		return nil, false, err
	}
	defer m.end(id, f)

	gs, err := m.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}

	next, fromCache, err := m.turns.SubmitAction(ctx, clientID, gs, choiceID)
	if err != nil {
		if m.superseded(id, f) {
			return nil, false, ErrSessionReset
		}
		// intermediate phases may have been stored; put the session back
		if saveErr := m.saveCurrent(context.WithoutCancel(ctx), id, f, gs); saveErr != nil {
			m.sessionLog(id).Error("Failed to restore session after failed action", "error", saveErr)
		}
		return nil, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epochs[id] != f.epoch {
		m.sessionLog(id).Info("Discarding action result for reset session")
		return nil, false, ErrSessionReset
	}
	if err := m.store.SaveGameState(ctx, id, next); err != nil {
		return nil, false, err
	}
	return next, fromCache, nil
}

// Reset cancels any running action and returns the session to idle,
// keeping its id.
func (m *Manager) Reset(ctx context.Context, id uuid.UUID) (*state.GameState, error) {
	if _, err := m.Get(ctx, id); err != nil {
		return nil, err
	}

	fresh := m.turns.ResetSession()
	fresh.ID = id

	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidateLocked(id)
	if err := m.store.SaveGameState(ctx, id, fresh); err != nil {
		return nil, err
	}
	m.sessionLog(id).Info("Session reset")
	return fresh, nil
}

// Delete cancels any running action and removes the session.
func (m *Manager) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := m.Get(ctx, id); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidateLocked(id)
	if err := m.store.DeleteGameState(ctx, id); err != nil {
		return err
	}
	m.sessionLog(id).Info("Session deleted")
	return nil
}

// Busy reports whether an action is running for id.
func (m *Manager) Busy(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[id]
	return ok
}

func (m *Manager) begin(ctx context.Context, id uuid.UUID) (context.Context, *flight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.active[id]; busy {
		return nil, nil, fmt.Errorf("%w: %s", story.ErrSessionBusy, id)
	}
	ctx, cancel := context.WithCancel(ctx)
	f := &flight{cancel: cancel, epoch: m.epochs[id]}
	m.active[id] = f
	return ctx, f, nil
}

func (m *Manager) end(id uuid.UUID, f *flight) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active[id] == f {
		delete(m.active, id)
		delete(m.epochs, id)
	}
	f.cancel()
}

func (m *Manager) superseded(id uuid.UUID, f *flight) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epochs[id] != f.epoch
}

func (m *Manager) saveCurrent(ctx context.Context, id uuid.UUID, f *flight, gs *state.GameState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epochs[id] != f.epoch {
		return nil
	}
	return m.store.SaveGameState(ctx, id, gs)
}

func (m *Manager) sessionLog(id uuid.UUID) *slog.Logger {
	return logger.WithSession(m.logger, id.String())
}

// invalidateLocked supersedes the running action, if any.
func (m *Manager) invalidateLocked(id uuid.UUID) {
	if f, ok := m.active[id]; ok {
		m.epochs[id]++
		f.cancel()
	}
}

// tracked reports how many sessions hold guard state.
func (m *Manager) tracked() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active) + len(m.epochs)
}
