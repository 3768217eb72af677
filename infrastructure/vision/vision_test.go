package vision

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptionPrompt(t *testing.T) {
	focused := descriptionPrompt(true)
	assert.Contains(t, focused, "embodiment")
	assert.Contains(t, focused, "hair")

	unfocused := descriptionPrompt(false)
	assert.Contains(t, unfocused, "scene")
	assert.NotEqual(t, focused, unfocused)
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.jpg")
	require.NoError(t, os.WriteFile(path, []byte("fake image bytes"), 0o600))

	data, mimeType, err := loadImage(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("fake image bytes"), data)
	assert.Equal(t, "image/jpeg", mimeType)

	_, _, err = loadImage("")
	assert.ErrorIs(t, err, ErrEmptyImagePath)

	_, _, err = loadImage(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}

func TestMimeTypeFor(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"a.png", "image/png"},
		{"a.jpg", "image/jpeg"},
		{"a.JPEG", "image/jpeg"},
		{"a.webp", "image/webp"},
		{"a.gif", "image/gif"},
		{"a.bmp", "image/png"},
		{"noext", "image/png"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, mimeTypeFor(tt.path), tt.path)
	}
}
