package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"

	"github.com/jwebster45206/pixel-quest/pkg/prompts"
)

// MockGenerator is a Generator for tests and offline play. Without
// overrides it writes a small deterministic adventure and paints a
// two-color pattern derived from the prompt.
type MockGenerator struct {
	GenerateNodeFunc  func(ctx context.Context, turnContext string) ([]byte, error)
	GenerateImageFunc func(ctx context.Context, prompt string) ([]byte, error)

	// Track calls for testing
	NodeCalls  []string
	ImageCalls []string

	mu sync.Mutex // protects all fields above
}

var _ Generator = (*MockGenerator)(nil)

func NewMockGenerator() *MockGenerator {
	return &MockGenerator{
		NodeCalls:  make([]string, 0),
		ImageCalls: make([]string, 0),
	}
}

func (m *MockGenerator) GenerateNode(ctx context.Context, turnContext string) ([]byte, error) {
	m.mu.Lock()
	m.NodeCalls = append(m.NodeCalls, turnContext)
	fn := m.GenerateNodeFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, turnContext)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return defaultNode(turnContext), nil
}

func (m *MockGenerator) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	m.mu.Lock()
	m.ImageCalls = append(m.ImageCalls, prompt)
	fn := m.GenerateImageFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, prompt)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return defaultImage(prompt), nil
}

// NodeCallCount returns the number of GenerateNode calls so far.
func (m *MockGenerator) NodeCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.NodeCalls)
}

// ImageCallCount returns the number of GenerateImage calls so far.
func (m *MockGenerator) ImageCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ImageCalls)
}

type mockChoice struct {
	ID           string `json:"id"`
	Label        string `json:"label"`
	IsUnsafe     bool   `json:"is_unsafe"`
	RequiredItem string `json:"required_item,omitempty"`
}

type mockNode struct {
	Text         string       `json:"text"`
	ImagePrompt  string       `json:"image_prompt"`
	IsGameOver   bool         `json:"is_game_over"`
	ItemGained   string       `json:"item_gained,omitempty"`
	HealthChange *int         `json:"health_change,omitempty"`
	Choices      []mockChoice `json:"choices"`
}

func defaultNode(turnContext string) []byte {
	n := mockNode{
		Text:        "The corridor splits in two. Cold air drifts from the left, torchlight flickers on the right.",
		ImagePrompt: "1-bit pixel art, forked stone corridor, high contrast",
		Choices: []mockChoice{
			{ID: "1", Label: "Follow the torchlight"},
			{ID: "2", Label: "Leap across the crumbling gap", IsUnsafe: true},
			{ID: "3", Label: "Light the way with the torch", RequiredItem: "Torch"},
		},
	}

	switch {
	case strings.Contains(turnContext, "Action: "+prompts.OpeningAction+"."):
		n.Text = "You wake on a cold stone floor. A torch lies within reach."
		n.ImagePrompt = "1-bit pixel art, dungeon cell with a torch, high contrast"
		n.ItemGained = "Torch"
	case strings.Contains(turnContext, "[ROLL RESULT: 1/"):
		hurt := -1
		n.Text = "The stones give way and you tumble into the dark."
		n.HealthChange = &hurt
	case strings.Contains(turnContext, "SUCCESS GUARANTEED"):
		n.Text = "The torch reveals a hidden stair leading up into daylight."
		n.ImagePrompt = "1-bit pixel art, stairway to daylight, high contrast"
		n.IsGameOver = true
		n.Choices = []mockChoice{}
	}

	data, _ := json.Marshal(n)
	return data
}

func defaultImage(prompt string) []byte {
	h := fnv.New32a()
	_, _ = h.Write([]byte(prompt))
	seed := h.Sum32()

	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := range 64 {
		for x := range 64 {
			if (uint32(x*y)+seed)%7 < 3 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
