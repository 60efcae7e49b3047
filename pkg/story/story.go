package story

import (
	"fmt"
	"strings"
)

const (
	// MaxActionLength bounds the action label sent to the narrator.
	MaxActionLength = 500
	// MaxImagePromptLength bounds illustration prompts.
	MaxImagePromptLength = 1000
	// MaxHealthChange bounds a node's health delta. A larger swing has the
	// same effect on a 3-heart bar.
	MaxHealthChange = 3
)

// Theme is the setting chosen once per session.
type Theme string

const (
	ThemeFantasy Theme = "FANTASY"
	ThemeSciFi   Theme = "SCIFI"
	ThemeHorror  Theme = "HORROR"
	ThemeWestern Theme = "WESTERN"
)

var themeLabels = map[Theme]string{
	ThemeFantasy: "Medieval Heroic Fantasy",
	ThemeSciFi:   "Dystopian Cyberpunk",
	ThemeHorror:  "Lovecraftian Horror",
	ThemeWestern: "Dusty Wild West",
}

// Themes returns every playable theme in display order.
func Themes() []Theme {
	return []Theme{ThemeFantasy, ThemeSciFi, ThemeHorror, ThemeWestern}
}

// ParseTheme accepts a theme name in any case.
func ParseTheme(s string) (Theme, error) {
	t := Theme(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown theme %q", ErrValidation, s)
	}
	return t, nil
}

// Valid reports whether t is one of the known themes.
func (t Theme) Valid() bool {
	_, ok := themeLabels[t]
	return ok
}

// Label is the human readable setting used in prompts and menus.
func (t Theme) Label() string {
	if l, ok := themeLabels[t]; ok {
		return l
	}
	return string(t)
}

// Choice is one action offered to the player by a node.
type Choice struct {
	ID           string `json:"id"`
	Label        string `json:"label"`
	IsUnsafe     bool   `json:"is_unsafe"`
	RequiredItem string `json:"required_item,omitempty"`
}

// Node is one unit of generated narrative. Nodes are never mutated after creation.
type Node struct {
	Text         string   `json:"text"`
	ImagePrompt  string   `json:"image_prompt"`
	Choices      []Choice `json:"choices"`
	IsGameOver   bool     `json:"is_game_over"`
	ItemGained   string   `json:"item_gained,omitempty"`
	HealthChange *int     `json:"health_change,omitempty"`
}

// Choice looks up a choice by id.
func (n *Node) Choice(id string) (Choice, bool) {
	if n == nil {
		return Choice{}, false
	}
	for _, c := range n.Choices {
		if c.ID == id {
			return c, true
		}
	}
	return Choice{}, false
}

// HealthDelta returns HealthChange or zero when the node leaves health alone.
func (n *Node) HealthDelta() int {
	if n == nil || n.HealthChange == nil {
		return 0
	}
	return *n.HealthChange
}

// HistoryEntry records one resolved turn. Roll is nil for safe or item-backed actions.
type HistoryEntry struct {
	Node        Node   `json:"node"`
	ChoiceLabel string `json:"choice_label"`
	Roll        *int   `json:"roll,omitempty"`
}
