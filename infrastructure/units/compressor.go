package units

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/embodia/pald-loop/internal/domain"
)

// Compression constants shared by all Compressor instances.
const (
	// MaxPromptTokens is the hard ceiling on whitespace tokens in a
	// compressed prompt, matching the downstream generator's text
	// encoder context limit.
	MaxPromptTokens = 77

	// SuffixThresholdTokens is the token count below which the quality
	// suffix is appended to a compressed prompt.
	SuffixThresholdTokens = 70

	// DefaultMemoCapacity bounds the compressor's memoization cache.
	DefaultMemoCapacity = 256
)

// BudgetEntry fixes the word budget for one attribute of one level.
// The compressor walks entries in slice order, so the schedule doubles
// as the traversal priority.
type BudgetEntry struct {
	// Level is the PALD level key the attribute lives under.
	Level string `yaml:"level" json:"level" validate:"required"`

	// Attribute is the attribute name within the level.
	Attribute string `yaml:"attribute" json:"attribute" validate:"required"`

	// MaxWords is the word budget: the attribute's text is cut to its
	// first MaxWords whitespace-delimited tokens.
	MaxWords int `yaml:"max_words" json:"max_words" validate:"required,min=1,max=30"`
}

// CompressorConfig defines the configuration parameters for the Compressor.
// All fields are validated during unit creation and parameter unmarshaling.
type CompressorConfig struct {
	// Schedule is the ordered (level, attribute, budget) walk. Missing
	// attributes are skipped; no placeholder text is emitted.
	Schedule []BudgetEntry `yaml:"schedule" json:"schedule" validate:"required,min=1,dive"`

	// FallbackPrompt is emitted when a document yields no fragments.
	// Compression never returns an empty string.
	FallbackPrompt string `yaml:"fallback_prompt" json:"fallback_prompt" validate:"required"`

	// QualitySuffix is appended when the compressed prompt is short
	// enough to afford it without breaching the token ceiling.
	QualitySuffix string `yaml:"quality_suffix" json:"quality_suffix"`

	// MemoCapacity bounds the memoization cache. When the cache is
	// full, the oldest entry is evicted.
	MemoCapacity int `yaml:"memo_capacity" json:"memo_capacity" validate:"min=1,max=65536"`
}

// Compressor turns a PALD document into a token-budgeted generation
// prompt. Compression is deterministic for identical documents and
// memoized behind a structural fingerprint, so repeated calls with the
// same document return the cached string without re-walking the
// structure. The unit never fails: unexpected structure degrades to
// skipping the offending fragment.
type Compressor struct {
	// name is the unique identifier for this unit instance.
	name string
	// config contains the validated configuration parameters.
	config CompressorConfig

	mu    sync.Mutex
	memo  map[uint64]string
	order []uint64
	// walks counts structure traversals; memo hits do not walk.
	walks int64
}

// NewCompressor creates a new Compressor with the specified configuration.
// Returns an error if configuration validation fails.
func NewCompressor(name string, config CompressorConfig) (*Compressor, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}

	if config.MemoCapacity == 0 {
		config.MemoCapacity = DefaultMemoCapacity
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &Compressor{
		name:   name,
		config: config,
		memo:   make(map[uint64]string, config.MemoCapacity),
	}, nil
}

// Name returns the unique identifier for this unit instance.
func (c *Compressor) Name() string { return c.name }

// Compress walks the budget schedule over the document, truncating each
// present attribute to its word budget and joining the fragments with
// ", ". The result is capped at MaxPromptTokens whitespace tokens;
// prompts at or under SuffixThresholdTokens get the quality suffix
// appended within the cap. An empty document yields the fallback
// prompt. Compress never panics and never returns an empty string.
func (c *Compressor) Compress(pald domain.Document) string {
	key := pald.Fingerprint()

	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, ok := c.memo[key]; ok {
		return cached
	}

	prompt := c.build(pald)
	c.remember(key, prompt)
	return prompt
}

// build performs the actual traversal and assembly. Callers must hold c.mu.
func (c *Compressor) build(pald domain.Document) string {
	c.walks++

	fragments := make([]string, 0, len(c.config.Schedule))
	for _, entry := range c.config.Schedule {
		text, ok := pald.AttributeString(entry.Level, entry.Attribute)
		if !ok || text == "" {
			continue
		}
		if fragment := truncateWords(text, entry.MaxWords); fragment != "" {
			fragments = append(fragments, fragment)
		}
	}

	prompt := strings.Join(fragments, ", ")
	if prompt == "" {
		prompt = c.config.FallbackPrompt
	}

	prompt = truncateWords(prompt, MaxPromptTokens)

	if c.config.QualitySuffix != "" && len(strings.Fields(prompt)) <= SuffixThresholdTokens {
		prompt = truncateWords(prompt+", "+c.config.QualitySuffix, MaxPromptTokens)
	}

	return prompt
}

// remember stores a compressed prompt, evicting the oldest entry when
// the cache is at capacity. Callers must hold c.mu.
func (c *Compressor) remember(key uint64, prompt string) {
	if _, exists := c.memo[key]; exists {
		return
	}

	if len(c.memo) >= c.config.MemoCapacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.memo, oldest)
	}

	c.memo[key] = prompt
	c.order = append(c.order, key)
}

// Validate checks if the unit is properly configured and ready for use.
func (c *Compressor) Validate() error {
	if err := validate.Struct(c.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// truncateWords returns the first maxWords whitespace-delimited tokens
// of s, joined with single spaces. No semantic summarization happens.
func truncateWords(s string, maxWords int) string {
	fields := strings.Fields(s)
	if len(fields) > maxWords {
		fields = fields[:maxWords]
	}
	return strings.Join(fields, " ")
}

// DefaultCompressorConfig returns the standard budget schedule: global
// level attributes first with the widest budgets, tapering through the
// middle level down to the detailed level.
func DefaultCompressorConfig() CompressorConfig {
	return CompressorConfig{
		Schedule: []BudgetEntry{
			{Level: domain.LevelGlobal, Attribute: "overall_appearance", MaxWords: 15},
			{Level: domain.LevelGlobal, Attribute: "character", MaxWords: 10},
			{Level: domain.LevelGlobal, Attribute: "profession", MaxWords: 8},
			{Level: domain.LevelGlobal, Attribute: "gender", MaxWords: 6},
			{Level: domain.LevelGlobal, Attribute: "age", MaxWords: 6},
			{Level: domain.LevelMiddle, Attribute: "clothing", MaxWords: 10},
			{Level: domain.LevelMiddle, Attribute: "hairstyle", MaxWords: 8},
			{Level: domain.LevelMiddle, Attribute: "facial_features", MaxWords: 8},
			{Level: domain.LevelMiddle, Attribute: "body_type", MaxWords: 6},
			{Level: domain.LevelMiddle, Attribute: "accessories", MaxWords: 8},
			{Level: domain.LevelDetailed, Attribute: "hair_color", MaxWords: 6},
			{Level: domain.LevelDetailed, Attribute: "eye_color", MaxWords: 6},
			{Level: domain.LevelDetailed, Attribute: "skin_tone", MaxWords: 6},
			{Level: domain.LevelDetailed, Attribute: "facial_expression", MaxWords: 8},
			{Level: domain.LevelDetailed, Attribute: "posture", MaxWords: 6},
		},
		FallbackPrompt: "friendly professional pedagogical agent, warm approachable expression, neutral background",
		QualitySuffix:  "high quality, detailed, professional",
		MemoCapacity:   DefaultMemoCapacity,
	}
}

// UnmarshalParameters deserializes YAML configuration parameters and
// returns a new Compressor instance to maintain thread-safety.
// Unknown fields are rejected to catch configuration typos.
func (c *Compressor) UnmarshalParameters(params yaml.Node) (*Compressor, error) {
	var config CompressorConfig

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	if err := encoder.Encode(&params); err != nil {
		return nil, fmt.Errorf("failed to encode YAML node: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("failed to close YAML encoder: %w", err)
	}

	decoder := yaml.NewDecoder(&buf)
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("failed to decode parameters (check for typos): %w", err)
	}

	return NewCompressor(c.name, config)
}
