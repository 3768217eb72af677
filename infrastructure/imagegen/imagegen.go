// Package imagegen provides image generation backends for the
// consistency loop. Each backend renders a prompt into an image file
// on local disk and returns an opaque image ID plus the file path.
package imagegen

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrEmptyPrompt indicates a generation request without a prompt.
var ErrEmptyPrompt = errors.New("generation prompt cannot be empty")

// Config holds the shared settings for the generation backends.
type Config struct {
	// APIKey authenticates requests to the image provider.
	APIKey string

	// Model names the image model. Empty selects the backend default.
	Model string

	// OutputDir is where generated images are written. Empty uses the
	// system temporary directory.
	OutputDir string
}

// outputDir resolves the directory generated images are written to,
// creating it if needed.
func (c Config) outputDir() (string, error) {
	dir := c.OutputDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "pald-loop-images")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create image output dir: %w", err)
	}
	return dir, nil
}

// newImageID mints a unique identifier for a generated image. The ID
// doubles as the file stem, so it must be filesystem-safe.
func newImageID(backend string) string {
	return fmt.Sprintf("%s-%d", backend, time.Now().UnixNano())
}

// writeImage persists raw image bytes under the given ID and returns
// the full path.
func writeImage(dir, id string, data []byte) (string, error) {
	path := filepath.Join(dir, id+".png")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write image %s: %w", id, err)
	}
	return path, nil
}
