package state

import (
	"fmt"
	"unicode/utf8"

	"github.com/jwebster45206/pixel-quest/pkg/story"
)

// Resolution is the outcome of selecting a choice, before the next node
// is requested.
type Resolution struct {
	Choice   story.Choice
	Roll     *int   // nil unless the choice was unsafe
	UsedItem string // set when a required item guaranteed success
	Penalty  bool   // a roll of 1 cost a heart
}

// Effects summarizes what a node did to the state.
type Effects struct {
	HealthBefore  int
	HealthAfter   int
	ItemAdded     string
	ItemDiscarded string
}

// Resolve validates the selection of choiceID and returns the state that
// will be used to build the next request. Item consumption always succeeds
// without a roll. An unsafe choice draws a roll and a 1 costs a heart
// immediately. gs is never modified.
func Resolve(gs *GameState, choiceID string, roller Roller) (*GameState, Resolution, error) {
	if gs == nil {
		return nil, Resolution{}, fmt.Errorf("%w: no game state", story.ErrValidation)
	}
	if gs.IsGameOver() {
		return nil, Resolution{}, story.ErrGameOver
	}
	switch gs.Phase {
	case PhaseAwaitingChoice:
	case PhaseResolvingConsumption, PhaseResolvingRoll, PhaseGenerating:
		return nil, Resolution{}, story.ErrSessionBusy
	default:
		return nil, Resolution{}, fmt.Errorf("%w: session has not started", story.ErrIllegalChoice)
	}

	choice, ok := gs.CurrentNode.Choice(choiceID)
	if !ok {
		return nil, Resolution{}, fmt.Errorf("%w: unknown choice %q", story.ErrIllegalChoice, choiceID)
	}
	if gs.Locked(choice) {
		return nil, Resolution{}, fmt.Errorf("%w: choice %q requires %q", story.ErrIllegalChoice, choiceID, choice.RequiredItem)
	}
	if utf8.RuneCountInString(choice.Label) > story.MaxActionLength {
		return nil, Resolution{}, fmt.Errorf("%w: action label exceeds %d characters", story.ErrValidation, story.MaxActionLength)
	}

	next := gs.Clone()
	next.ConsumedItem = ""
	next.DiscardedItem = ""
	next.PendingRoll = nil
	res := Resolution{Choice: choice}

	switch {
	case choice.RequiredItem != "":
		next.Phase = PhaseResolvingConsumption
		next.removeItem(choice.RequiredItem)
		next.ConsumedItem = choice.RequiredItem
		res.UsedItem = choice.RequiredItem

	case choice.IsUnsafe:
		roll := roller.Roll(RollSides)
		if roll < 1 || roll > RollSides {
			return nil, Resolution{}, fmt.Errorf("roller returned %d, want 1..%d", roll, RollSides)
		}
		next.Phase = PhaseResolvingRoll
		next.PendingRoll = &roll
		res.Roll = &roll
		if roll == 1 {
			next.Health = clampHealth(next.Health - 1)
			res.Penalty = true
		}

	default:
		next.Phase = PhaseGenerating
	}

	return next, res, nil
}

// Begin applies the opening node of a session.
func Begin(gs *GameState, node story.Node) (*GameState, Effects) {
	return apply(gs, node)
}

// ApplyNode applies node as the answer to res. The node that was on screen
// is appended to the history with the chosen label and roll.
func ApplyNode(gs *GameState, res Resolution, node story.Node) (*GameState, Effects) {
	next := gs
	if gs.CurrentNode != nil {
		next = gs.Clone()
		next.History = append(next.History, story.HistoryEntry{
			Node:        *gs.CurrentNode,
			ChoiceLabel: res.Choice.Label,
			Roll:        res.Roll,
		})
	}
	return apply(next, node)
}

func apply(gs *GameState, node story.Node) (*GameState, Effects) {
	next := gs.Clone()
	fx := Effects{HealthBefore: next.Health}

	next.Health = clampHealth(next.Health + node.HealthDelta())
	fx.HealthAfter = next.Health

	if item := node.ItemGained; item != "" && !next.HasItem(item) {
		if len(next.Inventory) < MaxInventory {
			next.Inventory = append(next.Inventory, item)
			fx.ItemAdded = item
		} else {
			next.DiscardedItem = item
			fx.ItemDiscarded = item
		}
	}

	next.CurrentNode = &node
	next.PendingRoll = nil
	next.ImageURL = ""
	if next.Health == 0 || node.IsGameOver {
		next.Phase = PhaseGameOver
	} else {
		next.Phase = PhaseAwaitingChoice
	}
	return next, fx
}
