package prompts

import (
	"errors"
	"strings"
	"testing"

	"github.com/jwebster45206/pixel-quest/pkg/state"
	"github.com/jwebster45206/pixel-quest/pkg/story"
)

func playing() *state.GameState {
	gs := state.NewGameState(story.ThemeHorror)
	gs.Phase = state.PhaseAwaitingChoice
	gs.Inventory = []string{"Lantern", "Salt"}
	gs.Health = 2
	gs.History = []story.HistoryEntry{
		{Node: story.Node{Text: "The cellar door creaks."}, ChoiceLabel: "Go down"},
	}
	return gs
}

func TestBuilder_HistoryWindow(t *testing.T) {
	gs := playing()
	gs.History = nil
	for _, text := range []string{"one", "two", "three", "four"} {
		gs.History = append(gs.History, story.HistoryEntry{Node: story.Node{Text: text}, ChoiceLabel: "Go"})
	}
	req, err := New().WithGameState(gs).WithAction("Wait").Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if strings.Contains(req.History, "one") {
		t.Errorf("history older than %d entries leaked: %q", state.HistoryWindow, req.History)
	}
	if !strings.Contains(req.History, "Action: Go -> four") {
		t.Errorf("latest entry missing: %q", req.History)
	}
}

func TestBuilder_Build(t *testing.T) {
	roll := 4
	req, err := New().
		WithGameState(playing()).
		WithResolution(state.Resolution{Choice: story.Choice{Label: "Open the coffin"}, Roll: &roll}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if req.Theme != story.ThemeHorror || req.Health != 2 || req.Action != "Open the coffin" {
		t.Errorf("unexpected request: %+v", req)
	}
	if req.History != "Action: Go down -> The cellar door creaks." {
		t.Errorf("History = %q", req.History)
	}
	if req.Roll == nil || *req.Roll != 4 {
		t.Errorf("Roll = %v", req.Roll)
	}
	roll = 1
	if *req.Roll != 4 {
		t.Error("request must not alias the resolution's roll")
	}
}

func TestBuilder_Build_Errors(t *testing.T) {
	long := strings.Repeat("x", story.MaxActionLength+1)
	noTheme := playing()
	noTheme.Theme = ""

	tests := []struct {
		name string
		b    *Builder
	}{
		{"no gamestate", New().WithAction("Look")},
		{"no action", New().WithGameState(playing())},
		{"blank action", New().WithGameState(playing()).WithAction("   ")},
		{"long action", New().WithGameState(playing()).WithAction(long)},
		{"no theme", New().WithGameState(noTheme).WithAction("Look")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.b.Build(); !errors.Is(err, story.ErrValidation) {
				t.Errorf("Expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestRequest_Context(t *testing.T) {
	tests := []struct {
		name     string
		req      Request
		contains []string
		excludes []string
	}{
		{
			name: "roll note",
			req: Request{
				Theme: story.ThemeWestern, History: "Action: Draw -> Smoke.", Action: "Run",
				Inventory: []string{"Revolver", "Hat"}, Roll: intPtr(3), Health: 3,
			},
			contains: []string{
				"Theme: Dusty Wild West. Current hearts: 3/3.",
				"History: Action: Draw -> Smoke.. Inventory: [Revolver, Hat].",
				"Action: Run.",
				"[ROLL RESULT: 3/5]",
			},
			excludes: []string{"SUCCESS GUARANTEED"},
		},
		{
			name: "used item wins over roll",
			req: Request{
				Theme: story.ThemeFantasy, Action: "Unlock", UsedItem: "Key", Roll: intPtr(2), Health: 1,
			},
			contains: []string{"ITEM USED: Key. SUCCESS GUARANTEED.", "Current hearts: 1/3"},
			excludes: []string{"ROLL RESULT"},
		},
		{
			name:     "safe action",
			req:      Request{Theme: story.ThemeSciFi, Action: OpeningAction, Health: 3},
			contains: []string{"Dystopian Cyberpunk", "Inventory: [].", "Action: Begin the adventure."},
			excludes: []string{"ROLL RESULT", "ITEM USED"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.req.Context()
			for _, s := range tt.contains {
				if !strings.Contains(got, s) {
					t.Errorf("context missing %q:\n%s", s, got)
				}
			}
			for _, s := range tt.excludes {
				if strings.Contains(got, s) {
					t.Errorf("context should not contain %q:\n%s", s, got)
				}
			}
		})
	}
}

func TestRequest_KeyMatchesState(t *testing.T) {
	a, err := New().WithGameState(playing()).WithAction("Pray").Build()
	if err != nil {
		t.Fatal(err)
	}
	reordered := playing()
	reordered.Inventory = []string{"Salt", "Lantern"}
	b, err := New().WithGameState(reordered).WithAction("Pray").Build()
	if err != nil {
		t.Fatal(err)
	}
	if a.Key() != b.Key() {
		t.Errorf("inventory order changed the key: %q vs %q", a.Key(), b.Key())
	}

	hurt := playing()
	hurt.Health = 1
	c, _ := New().WithGameState(hurt).WithAction("Pray").Build()
	if a.Key() == c.Key() {
		t.Error("health must change the key")
	}
}

func intPtr(i int) *int { return &i }
