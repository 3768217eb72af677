package imagegen

import (
	"context"
	"encoding/base64"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/embodia/pald-loop/internal/ports"
)

// OpenAIDefaultModel is the image model used when the configuration
// does not name one.
const OpenAIDefaultModel = openai.CreateImageModelDallE3

// OpenAIGenerator implements ports.GenerationPort against OpenAI's
// image API. Responses are requested as base64 so the image can be
// written to disk without a second fetch.
type OpenAIGenerator struct {
	client *openai.Client
	config Config
}

// NewOpenAIGenerator creates a DALL-E backed generator.
func NewOpenAIGenerator(config Config) (*OpenAIGenerator, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("openai image generation requires an API key")
	}
	if config.Model == "" {
		config.Model = OpenAIDefaultModel
	}

	return &OpenAIGenerator{
		client: openai.NewClient(config.APIKey),
		config: config,
	}, nil
}

// Generate renders the prompt into a PNG on disk. Recognized
// parameters: "size", "quality", and "style", all strings passed
// through to the API.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string, parameters map[string]any) (ports.GeneratedImage, error) {
	if prompt == "" {
		return ports.GeneratedImage{}, ErrEmptyPrompt
	}

	req := openai.ImageRequest{
		Prompt:         prompt,
		Model:          g.config.Model,
		N:              1,
		Size:           stringParam(parameters, "size", openai.CreateImageSize1024x1024),
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	}
	if quality := stringParam(parameters, "quality", ""); quality != "" {
		req.Quality = quality
	}
	if style := stringParam(parameters, "style", ""); style != "" {
		req.Style = style
	}

	resp, err := g.client.CreateImage(ctx, req)
	if err != nil {
		return ports.GeneratedImage{}, fmt.Errorf("openai image generation failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return ports.GeneratedImage{}, fmt.Errorf("openai image generation returned no images")
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return ports.GeneratedImage{}, fmt.Errorf("failed to decode image payload: %w", err)
	}

	dir, err := g.config.outputDir()
	if err != nil {
		return ports.GeneratedImage{}, err
	}

	id := newImageID("dalle")
	path, err := writeImage(dir, id, data)
	if err != nil {
		return ports.GeneratedImage{}, err
	}

	return ports.GeneratedImage{ID: id, Path: path}, nil
}

// stringParam reads a string parameter with a fallback.
func stringParam(parameters map[string]any, key, def string) string {
	if raw, ok := parameters[key]; ok {
		if val, ok := raw.(string); ok && val != "" {
			return val
		}
	}
	return def
}
