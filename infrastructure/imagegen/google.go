package imagegen

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/embodia/pald-loop/internal/ports"
)

// GoogleDefaultModel is the Imagen model used when the configuration
// does not name one.
const GoogleDefaultModel = "imagen-3.0-generate-002"

// GoogleGenerator implements ports.GenerationPort against Google's
// Imagen API.
type GoogleGenerator struct {
	client *genai.Client
	config Config
}

// NewGoogleGenerator creates an Imagen backed generator.
func NewGoogleGenerator(ctx context.Context, config Config) (*GoogleGenerator, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("google image generation requires an API key")
	}
	if config.Model == "" {
		config.Model = GoogleDefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}

	return &GoogleGenerator{client: client, config: config}, nil
}

// Generate renders the prompt into a PNG on disk. Recognized
// parameters: "aspect_ratio" (string, e.g. "1:1").
func (g *GoogleGenerator) Generate(ctx context.Context, prompt string, parameters map[string]any) (ports.GeneratedImage, error) {
	if prompt == "" {
		return ports.GeneratedImage{}, ErrEmptyPrompt
	}

	config := &genai.GenerateImagesConfig{
		NumberOfImages: 1,
	}
	if ratio := stringParam(parameters, "aspect_ratio", ""); ratio != "" {
		config.AspectRatio = ratio
	}

	resp, err := g.client.Models.GenerateImages(ctx, g.config.Model, prompt, config)
	if err != nil {
		return ports.GeneratedImage{}, fmt.Errorf("google image generation failed: %w", err)
	}
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return ports.GeneratedImage{}, fmt.Errorf("google image generation returned no images")
	}

	dir, err := g.config.outputDir()
	if err != nil {
		return ports.GeneratedImage{}, err
	}

	id := newImageID("imagen")
	path, err := writeImage(dir, id, resp.GeneratedImages[0].Image.ImageBytes)
	if err != nil {
		return ports.GeneratedImage{}, err
	}

	return ports.GeneratedImage{ID: id, Path: path}, nil
}
