package imagegen

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigOutputDir(t *testing.T) {
	dir := t.TempDir() + "/nested/images"
	config := Config{OutputDir: dir}

	resolved, err := config.outputDir()
	require.NoError(t, err)
	assert.Equal(t, dir, resolved)

	info, err := os.Stat(resolved)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewImageID(t *testing.T) {
	a := newImageID("dalle")
	b := newImageID("dalle")

	assert.True(t, strings.HasPrefix(a, "dalle-"))
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "/")
}

func TestWriteImage(t *testing.T) {
	dir := t.TempDir()

	path, err := writeImage(dir, "test-img", []byte{0x89, 0x50})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "test-img.png"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 0x50}, data)
}

func TestStringParam(t *testing.T) {
	params := map[string]any{
		"size":  "512x512",
		"count": 2,
		"empty": "",
	}

	assert.Equal(t, "512x512", stringParam(params, "size", "d"))
	assert.Equal(t, "d", stringParam(params, "count", "d"))
	assert.Equal(t, "d", stringParam(params, "empty", "d"))
	assert.Equal(t, "d", stringParam(nil, "size", "d"))
}

func TestNewOpenAIGeneratorValidation(t *testing.T) {
	_, err := NewOpenAIGenerator(Config{})
	assert.Error(t, err)

	gen, err := NewOpenAIGenerator(Config{APIKey: "key"})
	require.NoError(t, err)
	assert.Equal(t, OpenAIDefaultModel, gen.config.Model)
}
