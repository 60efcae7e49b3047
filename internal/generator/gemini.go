package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/jwebster45206/pixel-quest/pkg/prompts"
	"google.golang.org/api/option"
)

const (
	DefaultStoryModel = "gemini-2.5-flash"
	DefaultImageModel = "gemini-2.5-flash-image"

	DefaultTemperature = 0.9
)

var (
	errEmptyResponse = errors.New("empty response")
	errNoImage       = errors.New("response contains no image")
)

// GeminiConfig selects the models used by GeminiGenerator.
type GeminiConfig struct {
	APIKey     string
	StoryModel string
	ImageModel string
}

// GeminiGenerator implements Generator with the Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	story  *genai.GenerativeModel
	image  *genai.GenerativeModel
	logger *slog.Logger
}

var _ Generator = (*GeminiGenerator)(nil)

// NewGeminiGenerator creates the client and configures both models. Close
// releases the client.
func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig, logger *slog.Logger) (*GeminiGenerator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if cfg.StoryModel == "" {
		cfg.StoryModel = DefaultStoryModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = DefaultImageModel
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	g := &GeminiGenerator{
		client: client,
		story:  storyModel(client, cfg.StoryModel),
		image:  client.GenerativeModel(cfg.ImageModel),
		logger: logger,
	}
	logger.Info("Gemini generator ready", "story_model", cfg.StoryModel, "image_model", cfg.ImageModel)
	return g, nil
}

func storyModel(client *genai.Client, name string) *genai.GenerativeModel {
	m := client.GenerativeModel(name)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(prompts.SystemInstruction)}}
	m.SetTemperature(DefaultTemperature)
	m.ResponseMIMEType = "application/json"
	m.ResponseSchema = NodeSchema()
	m.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockOnlyHigh},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockOnlyHigh},
	}
	return m
}

// NodeSchema is the response schema for story nodes.
func NodeSchema() *genai.Schema {
	str := &genai.Schema{Type: genai.TypeString}
	boolean := &genai.Schema{Type: genai.TypeBoolean}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"text":          str,
			"image_prompt":  str,
			"is_game_over":  boolean,
			"item_gained":   str,
			"health_change": {Type: genai.TypeNumber},
			"choices": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"id":            str,
						"label":         str,
						"is_unsafe":     boolean,
						"required_item": str,
					},
					Required: []string{"id", "label", "is_unsafe"},
				},
			},
		},
		Required: []string{"text", "image_prompt", "choices", "is_game_over"},
	}
}

func (g *GeminiGenerator) GenerateNode(ctx context.Context, turnContext string) ([]byte, error) {
	resp, err := g.story.GenerateContent(ctx, genai.Text(turnContext))
	if err != nil {
		return nil, fmt.Errorf("generate node: %w", err)
	}
	text, err := responseText(resp)
	if err != nil {
		return nil, fmt.Errorf("generate node: %w", err)
	}
	return []byte(text), nil
}

func (g *GeminiGenerator) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	resp, err := g.image.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("generate image: %w", err)
	}
	blob, err := responseImage(resp)
	if err != nil {
		return nil, fmt.Errorf("generate image: %w", err)
	}
	g.logger.Debug("Image generated", "mime_type", blob.MIMEType, "bytes", len(blob.Data))
	return blob.Data, nil
}

func (g *GeminiGenerator) Close() error {
	return g.client.Close()
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errEmptyResponse
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", errEmptyResponse
	}
	return sb.String(), nil
}

// responseImage returns the first inline image of any candidate.
func responseImage(resp *genai.GenerateContentResponse) (genai.Blob, error) {
	if resp == nil {
		return genai.Blob{}, errEmptyResponse
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if blob, ok := part.(genai.Blob); ok && strings.HasPrefix(blob.MIMEType, "image/") && len(blob.Data) > 0 {
				return blob, nil
			}
		}
	}
	return genai.Blob{}, errNoImage
}
