package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicDefaultModel is the vision model used when the
// configuration does not name one.
const AnthropicDefaultModel = "claude-3-5-sonnet-20241022"

// anthropicDefaultMaxTokens bounds the description length.
const anthropicDefaultMaxTokens = 600

// AnthropicDescriber implements ports.DescriptionPort against
// Anthropic's vision-capable Claude models.
type AnthropicDescriber struct {
	client anthropic.Client
	config Config
}

// NewAnthropicDescriber creates a Claude backed describer.
func NewAnthropicDescriber(config Config) (*AnthropicDescriber, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("anthropic vision requires an API key")
	}
	if config.Model == "" {
		config.Model = AnthropicDefaultModel
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = anthropicDefaultMaxTokens
	}

	return &AnthropicDescriber{
		client: anthropic.NewClient(option.WithAPIKey(config.APIKey)),
		config: config,
	}, nil
}

// Describe sends the image as an inline base64 block and returns the
// model's description.
func (d *AnthropicDescriber) Describe(ctx context.Context, imagePath string, focusOnEmbodiment bool) (string, error) {
	data, mimeType, err := loadImage(imagePath)
	if err != nil {
		return "", err
	}

	encoded := base64.StdEncoding.EncodeToString(data)

	message, err := d.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(d.config.Model),
		MaxTokens: int64(d.config.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(mimeType, encoded),
				anthropic.NewTextBlock(descriptionPrompt(focusOnEmbodiment)),
			),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic image description failed: %w", err)
	}

	var description strings.Builder
	for _, block := range message.Content {
		switch content := block.AsAny().(type) {
		case anthropic.TextBlock:
			description.WriteString(content.Text)
		}
	}
	if description.Len() == 0 {
		return "", fmt.Errorf("anthropic image description was empty")
	}

	return description.String(), nil
}
