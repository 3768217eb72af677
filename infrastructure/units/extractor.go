package units

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/embodia/pald-loop/internal/domain"
	"github.com/embodia/pald-loop/internal/ports"
)

// Default extraction parameters.
const (
	// DefaultExtractorMaxTokens leaves room for a full three-level
	// document plus the confidence field.
	DefaultExtractorMaxTokens = 1024

	// DefaultExtractorTemperature keeps re-extraction as deterministic
	// as the provider allows.
	DefaultExtractorTemperature = 0.0
)

// ExtractorConfig defines the configuration parameters for the Extractor.
type ExtractorConfig struct {
	// PromptTemplate is the Go template used to instruct the model.
	// It must use the {{.Description}} placeholder.
	PromptTemplate string `yaml:"prompt_template" json:"prompt_template" validate:"required,min=20"`

	// Temperature controls randomness of the extraction call (0.0-1.0).
	Temperature float64 `yaml:"temperature" json:"temperature" validate:"min=0.0,max=1.0"`

	// MaxTokens limits the length of the extraction response.
	MaxTokens int `yaml:"max_tokens" json:"max_tokens" validate:"required,min=50,max=4000"`
}

// extractionEnvelope is the JSON schema the model is instructed to
// produce. Missing keys default to an empty document and zero
// confidence rather than failing the parse.
type extractionEnvelope struct {
	PaldData   map[string]any `json:"pald_data"`
	Confidence float64        `json:"confidence"`
}

// Extractor re-expresses free-text image descriptions as PALD
// documents by prompting an LLM for a fixed JSON schema, then parsing
// the response tolerantly. The unit is stateless and thread-safe for
// concurrent execution.
type Extractor struct {
	// name is the unique identifier for this unit instance.
	name string
	// config contains the validated configuration parameters.
	config ExtractorConfig
	// llmClient provides access to the LLM for re-extraction.
	llmClient ports.LLMClient
	// promptTemplate is the compiled template for safe prompt generation.
	promptTemplate *template.Template
}

// NewExtractor creates a new Extractor with the specified configuration
// and LLM client. Returns an error if configuration validation fails
// or the client is missing.
func NewExtractor(name string, llmClient ports.LLMClient, config ExtractorConfig) (*Extractor, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if llmClient == nil {
		return nil, ErrNilLLMClient
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	tmpl, err := template.New("extractorPrompt").Parse(config.PromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse extractor prompt template: %w", err)
	}

	return &Extractor{
		name:           name,
		config:         config,
		llmClient:      llmClient,
		promptTemplate: tmpl,
	}, nil
}

// Name returns the unique identifier for this unit instance.
func (e *Extractor) Name() string { return e.name }

// Extract prompts the LLM to restate the description as a PALD
// document plus a confidence value, then parses the response. Any
// failure along the way (the call itself, missing JSON, a parse error)
// degrades to an empty document with zero confidence. Extract never
// returns an error and never blocks the loop beyond the call.
func (e *Extractor) Extract(ctx context.Context, description string) domain.Extraction {
	var promptBuf bytes.Buffer
	data := struct{ Description string }{Description: description}
	if err := e.promptTemplate.Execute(&promptBuf, data); err != nil {
		return domain.Extraction{Pald: domain.Document{}}
	}

	options := map[string]any{
		"temperature": e.config.Temperature,
		"max_tokens":  e.config.MaxTokens,
	}

	response, err := e.llmClient.Complete(ctx, promptBuf.String(), options)
	if err != nil {
		return domain.Extraction{Pald: domain.Document{}}
	}

	return ParseExtraction(response)
}

// ParseExtraction parses a raw model response into a domain.Extraction.
// It strips Markdown code fences, takes the span from the first '{'
// to the last '}' as the candidate JSON region, and unmarshals it.
// Any shape mismatch degrades to a well-defined empty result.
func ParseExtraction(response string) domain.Extraction {
	candidate := extractJSONSpan(response)
	if candidate == "" {
		return domain.Extraction{Pald: domain.Document{}}
	}

	var envelope extractionEnvelope
	if err := json.Unmarshal([]byte(candidate), &envelope); err != nil {
		return domain.Extraction{Pald: domain.Document{}}
	}

	confidence := envelope.Confidence
	if confidence < 0 || confidence > 1 {
		confidence = 0
	}

	return domain.Extraction{
		Pald:       domain.Normalize(envelope.PaldData),
		Confidence: confidence,
	}
}

// extractJSONSpan locates the candidate JSON region in a model
// response that may wrap it in prose or Markdown code fences.
func extractJSONSpan(response string) string {
	response = strings.TrimSpace(response)

	// Drop a leading code fence marker (``` or ```json) and, if a
	// separate trailing fence remains, drop that too. The leading
	// marker must come off first so an unterminated fence cannot be
	// mistaken for the trailing one.
	if strings.HasPrefix(response, "```") {
		response = response[3:]
		if idx := strings.LastIndex(response, "```"); idx != -1 {
			response = response[:idx]
		}
	}

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return response[start : end+1]
}

// Validate checks if the unit is properly configured and ready for use.
func (e *Extractor) Validate() error {
	if e.llmClient == nil {
		return fmt.Errorf("unit %s: LLM client is not configured", e.name)
	}
	if err := validate.Struct(e.config); err != nil {
		return fmt.Errorf("unit %s: configuration validation failed: %w", e.name, err)
	}
	if e.llmClient.GetModel() == "" {
		return fmt.Errorf("unit %s: LLM client model is not configured", e.name)
	}
	return nil
}

// DefaultExtractorConfig returns an ExtractorConfig with the standard
// re-extraction instruction.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		PromptTemplate: "Restate the following description of a pedagogical agent as a PALD document.\n\n" +
			"Description: {{.Description}}\n\n" +
			"Respond with valid JSON in exactly this format:\n" +
			`{"pald_data": {"global_design_level": {}, "middle_design_level": {}, "detailed_level": {}}, "confidence": <0.0-1.0>}` + "\n" +
			"Each level maps attribute names (for example overall_appearance, clothing, hair_color) to short free-text values. " +
			"Only include attributes the description actually supports.",
		Temperature: DefaultExtractorTemperature,
		MaxTokens:   DefaultExtractorMaxTokens,
	}
}
