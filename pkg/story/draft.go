package story

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// nodeDraft mirrors Node with pointer fields so missing keys can be told
// apart from zero values when decoding untrusted generator output.
type nodeDraft struct {
	Text         *string        `json:"text"`
	ImagePrompt  *string        `json:"image_prompt"`
	Choices      *[]choiceDraft `json:"choices"`
	IsGameOver   *bool          `json:"is_game_over"`
	ItemGained   *string        `json:"item_gained"`
	HealthChange *float64       `json:"health_change"`
}

type choiceDraft struct {
	ID           *string `json:"id"`
	Label        *string `json:"label"`
	IsUnsafe     *bool   `json:"is_unsafe"`
	RequiredItem *string `json:"required_item"`
}

// ParseNode decodes raw generator output into a Node. Any missing mandatory
// field (text, image_prompt, choices, is_game_over) is reported as ErrGeneration.
func ParseNode(raw []byte) (Node, error) {
	var d nodeDraft
	if err := json.Unmarshal(raw, &d); err != nil {
		return Node{}, fmt.Errorf("%w: decode node: %v", ErrGeneration, err)
	}

	var missing []string
	if d.Text == nil || strings.TrimSpace(*d.Text) == "" {
		missing = append(missing, "text")
	}
	if d.ImagePrompt == nil {
		missing = append(missing, "image_prompt")
	}
	if d.Choices == nil {
		missing = append(missing, "choices")
	}
	if d.IsGameOver == nil {
		missing = append(missing, "is_game_over")
	}
	if len(missing) > 0 {
		return Node{}, fmt.Errorf("%w: node missing %s", ErrGeneration, strings.Join(missing, ", "))
	}

	n := Node{
		Text:        *d.Text,
		ImagePrompt: *d.ImagePrompt,
		IsGameOver:  *d.IsGameOver,
		Choices:     make([]Choice, 0, len(*d.Choices)),
	}
	if d.ItemGained != nil {
		n.ItemGained = strings.TrimSpace(*d.ItemGained)
	}
	if d.HealthChange != nil {
		// Models occasionally emit 1.0 for 1.
		hc := int(math.Trunc(max(-MaxHealthChange, min(*d.HealthChange, MaxHealthChange))))
		n.HealthChange = &hc
	}

	seen := make(map[string]bool, len(*d.Choices))
	for i, cd := range *d.Choices {
		if cd.ID == nil || strings.TrimSpace(*cd.ID) == "" {
			return Node{}, fmt.Errorf("%w: choice %d has no id", ErrGeneration, i)
		}
		if cd.Label == nil || strings.TrimSpace(*cd.Label) == "" {
			return Node{}, fmt.Errorf("%w: choice %q has no label", ErrGeneration, *cd.ID)
		}
		if seen[*cd.ID] {
			return Node{}, fmt.Errorf("%w: duplicate choice id %q", ErrGeneration, *cd.ID)
		}
		seen[*cd.ID] = true

		c := Choice{ID: *cd.ID, Label: *cd.Label}
		if cd.IsUnsafe != nil {
			c.IsUnsafe = *cd.IsUnsafe
		}
		if cd.RequiredItem != nil {
			c.RequiredItem = strings.TrimSpace(*cd.RequiredItem)
		}
		n.Choices = append(n.Choices, c)
	}

	if !n.IsGameOver && len(n.Choices) == 0 {
		return Node{}, fmt.Errorf("%w: node offers no choices", ErrGeneration)
	}
	return n, nil
}
