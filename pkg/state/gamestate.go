package state

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/pixel-quest/pkg/story"
)

const (
	MaxHealth     = 3 // hearts
	MaxInventory  = 5
	RollSides     = 5
	HistoryWindow = 3 // entries fed back to the narrator
)

// Phase is where a session sits in the turn cycle.
type Phase string

const (
	PhaseIdle                 Phase = "idle"
	PhaseAwaitingChoice       Phase = "awaiting_choice"
	PhaseResolvingConsumption Phase = "resolving_consumption"
	PhaseResolvingRoll        Phase = "resolving_roll"
	PhaseGenerating           Phase = "generating"
	PhaseGameOver             Phase = "game_over"
)

// GameState is the state of one play session. Transitions never mutate a
// GameState in place; they return a modified clone.
type GameState struct {
	ID            uuid.UUID            `json:"id"`
	Phase         Phase                `json:"phase"`
	Theme         story.Theme          `json:"theme,omitempty"`
	CurrentNode   *story.Node          `json:"current_node,omitempty"`
	History       []story.HistoryEntry `json:"history"`
	Inventory     []string             `json:"inventory"`
	Health        int                  `json:"health"`
	PendingRoll   *int                 `json:"pending_roll,omitempty"`
	ConsumedItem  string               `json:"consumed_item,omitempty"`  // item spent on the last choice
	DiscardedItem string               `json:"discarded_item,omitempty"` // item lost to a full inventory
	IsFromCache   bool                 `json:"is_from_cache"`
	ImageURL      string               `json:"image_url,omitempty"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// NewGameState creates an idle session for theme with full health.
func NewGameState(theme story.Theme) *GameState {
	return &GameState{
		ID:        uuid.New(),
		Phase:     PhaseIdle,
		Theme:     theme,
		History:   make([]story.HistoryEntry, 0),
		Inventory: make([]string, 0),
		Health:    MaxHealth,
	}
}

// Idle returns a blank session that keeps id.
func Idle(id uuid.UUID) *GameState {
	gs := NewGameState("")
	gs.ID = id
	return gs
}

// Clone copies gs deeply enough that the copy can be changed freely. Nodes
// are shared since they are immutable.
func (gs *GameState) Clone() *GameState {
	if gs == nil {
		return nil
	}
	c := *gs
	c.History = slices.Clone(gs.History)
	c.Inventory = slices.Clone(gs.Inventory)
	if c.History == nil {
		c.History = make([]story.HistoryEntry, 0)
	}
	if c.Inventory == nil {
		c.Inventory = make([]string, 0)
	}
	if gs.PendingRoll != nil {
		r := *gs.PendingRoll
		c.PendingRoll = &r
	}
	return &c
}

// IsGameOver reports whether the session has ended.
func (gs *GameState) IsGameOver() bool {
	return gs != nil && gs.Phase == PhaseGameOver
}

// HasItem reports whether item is in the inventory.
func (gs *GameState) HasItem(item string) bool {
	return slices.Contains(gs.Inventory, item)
}

// Locked reports whether c needs an item the player does not hold.
func (gs *GameState) Locked(c story.Choice) bool {
	return c.RequiredItem != "" && !gs.HasItem(c.RequiredItem)
}

func (gs *GameState) removeItem(item string) {
	if i := slices.Index(gs.Inventory, item); i >= 0 {
		gs.Inventory = slices.Delete(gs.Inventory, i, i+1)
	}
}

// CheckInvariants verifies the health, inventory and terminal-state rules.
func (gs *GameState) CheckInvariants() error {
	if gs.Health < 0 || gs.Health > MaxHealth {
		return fmt.Errorf("health %d outside [0, %d]", gs.Health, MaxHealth)
	}
	if len(gs.Inventory) > MaxInventory {
		return fmt.Errorf("inventory holds %d items, limit is %d", len(gs.Inventory), MaxInventory)
	}
	seen := make(map[string]bool, len(gs.Inventory))
	for _, item := range gs.Inventory {
		if seen[item] {
			return fmt.Errorf("duplicate inventory item %q", item)
		}
		seen[item] = true
	}

	switch gs.Phase {
	case PhaseAwaitingChoice, PhaseGameOver:
		ended := gs.Health == 0 || (gs.CurrentNode != nil && gs.CurrentNode.IsGameOver)
		if ended != (gs.Phase == PhaseGameOver) {
			return fmt.Errorf("phase %s inconsistent with health %d", gs.Phase, gs.Health)
		}
	}
	return nil
}

func clampHealth(h int) int {
	return min(max(h, 0), MaxHealth)
}
