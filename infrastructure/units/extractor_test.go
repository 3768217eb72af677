package units

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embodia/pald-loop/internal/domain"
	"github.com/embodia/pald-loop/internal/testutils"
)

func newTestExtractor(t *testing.T, client *testutils.MockLLMClient) *Extractor {
	t.Helper()
	extractor, err := NewExtractor("test-extractor", client, DefaultExtractorConfig())
	require.NoError(t, err)
	return extractor
}

func TestNewExtractorValidation(t *testing.T) {
	client := testutils.NewMockLLMClient("mock-model")

	_, err := NewExtractor("", client, DefaultExtractorConfig())
	assert.ErrorIs(t, err, ErrEmptyUnitName)

	_, err = NewExtractor("e", nil, DefaultExtractorConfig())
	assert.ErrorIs(t, err, ErrNilLLMClient)

	config := DefaultExtractorConfig()
	config.PromptTemplate = "too short"
	_, err = NewExtractor("e", client, config)
	assert.Error(t, err)

	config = DefaultExtractorConfig()
	config.PromptTemplate = "long enough template with {{.Broken"
	_, err = NewExtractor("e", client, config)
	assert.Error(t, err, "malformed templates must be rejected at construction")
}

func TestParseExtraction(t *testing.T) {
	tests := []struct {
		name           string
		response       string
		wantPald       domain.Document
		wantConfidence float64
	}{
		{
			name:           "plain JSON",
			response:       `{"pald_data": {"global_design_level": {"gender": "female"}}, "confidence": 0.8}`,
			wantPald:       domain.Document{domain.LevelGlobal: domain.Level{"gender": "female"}},
			wantConfidence: 0.8,
		},
		{
			name: "fenced JSON with prose",
			response: "Here is the document:\n```json\n" +
				`{"pald_data": {"detailed_level": {"eye_color": "green"}}, "confidence": 0.5}` +
				"\n```\nLet me know if you need anything else.",
			wantPald:       domain.Document{domain.LevelDetailed: domain.Level{"eye_color": "green"}},
			wantConfidence: 0.5,
		},
		{
			name:           "not JSON at all",
			response:       "I cannot describe this image.",
			wantPald:       domain.Document{},
			wantConfidence: 0,
		},
		{
			name:           "empty response",
			response:       "",
			wantPald:       domain.Document{},
			wantConfidence: 0,
		},
		{
			name:           "truncated JSON",
			response:       `{"pald_data": {"global_design_level": {"gender":`,
			wantPald:       domain.Document{},
			wantConfidence: 0,
		},
		{
			name:           "missing keys default to empty",
			response:       `{"something_else": true}`,
			wantPald:       domain.Document{},
			wantConfidence: 0,
		},
		{
			name:           "out of range confidence clamps to zero",
			response:       `{"pald_data": {"global_design_level": {"gender": "male"}}, "confidence": 1.7}`,
			wantPald:       domain.Document{domain.LevelGlobal: domain.Level{"gender": "male"}},
			wantConfidence: 0,
		},
		{
			name:           "unterminated fence glued to JSON",
			response:       "```" + `{"pald_data": {"middle_design_level": {"clothing": "blazer"}}, "confidence": 0.5}`,
			wantPald:       domain.Document{domain.LevelMiddle: domain.Level{"clothing": "blazer"}},
			wantConfidence: 0.5,
		},
		{
			name:           "unterminated fence with language tag",
			response:       "```json\n" + `{"pald_data": {"global_design_level": {"age": "young"}}, "confidence": 0.4}`,
			wantPald:       domain.Document{domain.LevelGlobal: domain.Level{"age": "young"}},
			wantConfidence: 0.4,
		},
		{
			name:           "fence closed on the same line",
			response:       "```" + `{"pald_data": {"detailed_level": {"posture": "upright"}}, "confidence": 0.9}` + "```",
			wantPald:       domain.Document{domain.LevelDetailed: domain.Level{"posture": "upright"}},
			wantConfidence: 0.9,
		},
		{
			name:           "non-object levels dropped during normalization",
			response:       `{"pald_data": {"global_design_level": "oops", "middle_design_level": {"clothing": "suit"}}, "confidence": 0.6}`,
			wantPald:       domain.Document{domain.LevelMiddle: domain.Level{"clothing": "suit"}},
			wantConfidence: 0.6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseExtraction(tt.response)
			assert.Equal(t, tt.wantPald, got.Pald)
			assert.InDelta(t, tt.wantConfidence, got.Confidence, 1e-9)
		})
	}
}

func TestExtractHappyPath(t *testing.T) {
	client := testutils.NewMockLLMClient("mock-model")
	extractor := newTestExtractor(t, client)

	got := extractor.Extract(context.Background(), "a friendly teacher with a warm smile")

	require.False(t, got.Pald.IsEmpty())
	assert.Equal(t, "friendly teacher", got.Pald[domain.LevelGlobal]["overall_appearance"])
	assert.InDelta(t, 0.9, got.Confidence, 1e-9)

	require.Len(t, client.Calls, 1)
	assert.Contains(t, client.Calls[0], "a friendly teacher with a warm smile",
		"the description must be embedded in the prompt")
}

func TestExtractDegradesOnClientFailure(t *testing.T) {
	client := testutils.NewMockLLMClient("mock-model")
	client.FailWith(errors.New("provider down"))
	extractor := newTestExtractor(t, client)

	got := extractor.Extract(context.Background(), "any description")

	assert.True(t, got.Pald.IsEmpty())
	assert.Zero(t, got.Confidence)
}

func TestExtractDegradesOnGarbageResponse(t *testing.T) {
	client := testutils.NewMockLLMClient("mock-model")
	client.AddResponse("Restate", "no json here, sorry")
	extractor := newTestExtractor(t, client)

	got := extractor.Extract(context.Background(), "any description")

	assert.True(t, got.Pald.IsEmpty())
	assert.Zero(t, got.Confidence)
}

func TestExtractorValidate(t *testing.T) {
	client := testutils.NewMockLLMClient("mock-model")
	extractor := newTestExtractor(t, client)
	assert.NoError(t, extractor.Validate())

	noModel := testutils.NewMockLLMClient("")
	extractor = newTestExtractor(t, noModel)
	assert.Error(t, extractor.Validate())
}
