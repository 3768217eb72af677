package vision

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GoogleDefaultModel is the vision model used when the configuration
// does not name one.
const GoogleDefaultModel = "gemini-2.0-flash"

// googleDefaultMaxTokens bounds the description length.
const googleDefaultMaxTokens = 600

// GoogleDescriber implements ports.DescriptionPort against Google's
// vision-capable Gemini models.
type GoogleDescriber struct {
	client *genai.Client
	config Config
}

// NewGoogleDescriber creates a Gemini backed describer.
func NewGoogleDescriber(ctx context.Context, config Config) (*GoogleDescriber, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("google vision requires an API key")
	}
	if config.Model == "" {
		config.Model = GoogleDefaultModel
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = googleDefaultMaxTokens
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}

	return &GoogleDescriber{client: client, config: config}, nil
}

// Describe sends the image bytes inline and returns the model's
// description.
func (d *GoogleDescriber) Describe(ctx context.Context, imagePath string, focusOnEmbodiment bool) (string, error) {
	data, mimeType, err := loadImage(imagePath)
	if err != nil {
		return "", err
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(data, mimeType),
			genai.NewPartFromText(descriptionPrompt(focusOnEmbodiment)),
		}, genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(d.config.MaxTokens),
	}

	resp, err := d.client.Models.GenerateContent(ctx, d.config.Model, contents, config)
	if err != nil {
		return "", fmt.Errorf("google image description failed: %w", err)
	}

	description := resp.Text()
	if description == "" {
		return "", fmt.Errorf("google image description was empty")
	}

	return description, nil
}
