// Package vision provides image description backends for the
// consistency loop. Each backend sends a generated image to a vision
// model and returns a free-text description of the depicted agent.
package vision

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrEmptyImagePath indicates a description request without an image.
var ErrEmptyImagePath = errors.New("image path cannot be empty")

// MaxImageBytes caps how large an image file the backends will read.
// Vision APIs reject larger payloads anyway.
const MaxImageBytes = 20 << 20

// Config holds the shared settings for the description backends.
type Config struct {
	// APIKey authenticates requests to the vision provider.
	APIKey string

	// Model names the vision model. Empty selects the backend default.
	Model string

	// MaxTokens caps the description length. Zero uses the backend
	// default.
	MaxTokens int
}

// descriptionPrompt builds the instruction sent alongside the image.
// With embodiment focus the prompt steers the model toward the agent's
// visual design attributes instead of scene narration.
func descriptionPrompt(focusOnEmbodiment bool) string {
	if focusOnEmbodiment {
		return "Describe the person or character in this image, focusing on their visual embodiment: " +
			"overall appearance, apparent age and gender, profession or role, clothing, hairstyle, " +
			"hair color, eye color, skin tone, facial features, facial expression, accessories, " +
			"body type, and posture. Describe only what is visible. Do not describe the background " +
			"or scene beyond a brief mention."
	}
	return "Describe this image in detail, covering both the depicted person or character and the scene."
}

// loadImage reads an image file and returns its bytes with the MIME
// type inferred from the extension.
func loadImage(imagePath string) ([]byte, string, error) {
	if imagePath == "" {
		return nil, "", ErrEmptyImagePath
	}

	info, err := os.Stat(imagePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to stat image %s: %w", imagePath, err)
	}
	if info.Size() > MaxImageBytes {
		return nil, "", fmt.Errorf("image %s exceeds %d bytes", imagePath, MaxImageBytes)
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image %s: %w", imagePath, err)
	}

	return data, mimeTypeFor(imagePath), nil
}

// mimeTypeFor maps a file extension to the image MIME types the
// vision APIs accept, defaulting to PNG.
func mimeTypeFor(imagePath string) string {
	switch strings.ToLower(filepath.Ext(imagePath)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/png"
	}
}
