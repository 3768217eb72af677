package vision

import (
	"context"
	"encoding/base64"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIDefaultModel is the vision model used when the configuration
// does not name one.
const OpenAIDefaultModel = openai.GPT4o

// openAIDefaultMaxTokens bounds the description length.
const openAIDefaultMaxTokens = 600

// OpenAIDescriber implements ports.DescriptionPort against OpenAI's
// vision-capable chat models.
type OpenAIDescriber struct {
	client *openai.Client
	config Config
}

// NewOpenAIDescriber creates a GPT-4o backed describer.
func NewOpenAIDescriber(config Config) (*OpenAIDescriber, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("openai vision requires an API key")
	}
	if config.Model == "" {
		config.Model = OpenAIDefaultModel
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = openAIDefaultMaxTokens
	}

	return &OpenAIDescriber{
		client: openai.NewClient(config.APIKey),
		config: config,
	}, nil
}

// Describe sends the image inline as a data URL and returns the
// model's description.
func (d *OpenAIDescriber) Describe(ctx context.Context, imagePath string, focusOnEmbodiment bool) (string, error) {
	data, mimeType, err := loadImage(imagePath)
	if err != nil {
		return "", err
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))

	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     d.config.Model,
		MaxTokens: d.config.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: descriptionPrompt(focusOnEmbodiment),
					},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai image description failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai image description returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}
