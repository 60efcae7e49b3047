package prompts

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/jwebster45206/pixel-quest/pkg/cachekey"
	"github.com/jwebster45206/pixel-quest/pkg/state"
	"github.com/jwebster45206/pixel-quest/pkg/story"
)

// Request carries every field that determines a story node. The same
// Request produces both the cache key and the narrator context, so the two
// can never drift apart.
type Request struct {
	Theme     story.Theme
	History   string
	Action    string
	Inventory []string
	Roll      *int
	UsedItem  string
	Health    int
}

// Key returns the content address of the request.
func (r Request) Key() string {
	return cachekey.Build(r.Theme, r.History, r.Action, r.Inventory, r.Roll, r.UsedItem, r.Health)
}

// Context renders the per-turn message sent to the narrator.
func (r Request) Context() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Theme: %s. Current hearts: %d/%d.\n", r.Theme.Label(), r.Health, state.MaxHealth)
	fmt.Fprintf(&sb, "History: %s. Inventory: [%s].\n", r.History, strings.Join(r.Inventory, ", "))
	fmt.Fprintf(&sb, "Action: %s.", r.Action)
	if r.UsedItem != "" {
		sb.WriteString("\n")
		fmt.Fprintf(&sb, UsedItemNote, r.UsedItem)
	} else if r.Roll != nil {
		sb.WriteString("\n")
		fmt.Fprintf(&sb, RollNote, *r.Roll, state.RollSides)
	}
	return sb.String()
}

// Builder assembles a Request from a game state using a fluent interface.
type Builder struct {
	gs       *state.GameState
	action   string
	roll     *int
	usedItem string
}

func New() *Builder {
	return &Builder{}
}

// WithGameState sets the state the request is built from. It should be the
// state after the choice was resolved, so that consumed items and roll
// penalties are already reflected.
func (b *Builder) WithGameState(gs *state.GameState) *Builder {
	b.gs = gs
	return b
}

// WithResolution sets the action, roll and used item from a resolved choice.
func (b *Builder) WithResolution(res state.Resolution) *Builder {
	b.action = res.Choice.Label
	b.roll = res.Roll
	b.usedItem = res.UsedItem
	return b
}

// WithAction overrides the action text.
func (b *Builder) WithAction(action string) *Builder {
	b.action = action
	return b
}

// Build validates the inputs and returns the request.
func (b *Builder) Build() (Request, error) {
	if b.gs == nil {
		return Request{}, fmt.Errorf("%w: gamestate is required", story.ErrValidation)
	}
	if !b.gs.Theme.Valid() {
		return Request{}, fmt.Errorf("%w: unknown theme %q", story.ErrValidation, b.gs.Theme)
	}
	action := strings.TrimSpace(b.action)
	if action == "" {
		return Request{}, fmt.Errorf("%w: action is required", story.ErrValidation)
	}
	if utf8.RuneCountInString(action) > story.MaxActionLength {
		return Request{}, fmt.Errorf("%w: action exceeds %d characters", story.ErrValidation, story.MaxActionLength)
	}

	var roll *int
	if b.roll != nil {
		r := *b.roll
		roll = &r
	}
	return Request{
		Theme:     b.gs.Theme,
		History:   cachekey.HistoryContext(b.gs.History, state.HistoryWindow),
		Action:    action,
		Inventory: slices.Clone(b.gs.Inventory),
		Roll:      roll,
		UsedItem:  b.usedItem,
		Health:    b.gs.Health,
	}, nil
}
