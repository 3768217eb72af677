package application

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Default loop policy values.
const (
	// DefaultMaxIterations bounds the cost of one run. Three passes is
	// enough for the refiner to converge or for the run to stall.
	DefaultMaxIterations = 3

	// DefaultThreshold is the consistency score at which a run counts
	// as achieved.
	DefaultThreshold = 0.8

	// DefaultGenerationTimeout caps a single image generation call.
	DefaultGenerationTimeout = 120 * time.Second

	// DefaultDescriptionTimeout caps a single image description call.
	DefaultDescriptionTimeout = 60 * time.Second
)

// configValidator validates LoopConfig structs.
var configValidator = validator.New()

// Duration wraps time.Duration with YAML support for human-readable
// values such as "90s", which yaml.v3 does not parse natively.
type Duration time.Duration

// UnmarshalYAML accepts either a duration string or a plain integer
// nanosecond count.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw any
	if err := value.Decode(&raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	case int:
		*d = Duration(v)
	default:
		return fmt.Errorf("invalid duration value: %v", raw)
	}
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// LoopConfig holds the run policy for a LoopController. Zero timeouts
// disable the per-call deadline and defer to the caller's context.
type LoopConfig struct {
	// MaxIterations is the per-run iteration budget.
	MaxIterations int `yaml:"max_iterations" json:"max_iterations" validate:"required,min=1,max=20"`

	// Threshold is the consistency score that ends a run as achieved.
	Threshold float64 `yaml:"threshold" json:"threshold" validate:"required,gt=0,lte=1"`

	// GenerationTimeout bounds each image generation call.
	GenerationTimeout Duration `yaml:"generation_timeout" json:"generation_timeout" validate:"min=0"`

	// DescriptionTimeout bounds each image description call.
	DescriptionTimeout Duration `yaml:"description_timeout" json:"description_timeout" validate:"min=0"`

	// FocusOnEmbodiment asks the description backend to concentrate on
	// the agent's visual embodiment rather than scene context.
	FocusOnEmbodiment bool `yaml:"focus_on_embodiment" json:"focus_on_embodiment"`

	// GenerationParams is passed through to the generation backend
	// untouched (size, style, model variant).
	GenerationParams map[string]any `yaml:"generation_params" json:"generation_params"`
}

// Validate checks the configuration against its constraints.
func (c LoopConfig) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("loop configuration validation failed: %w", err)
	}
	return nil
}

// DefaultLoopConfig returns the standard run policy.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		MaxIterations:      DefaultMaxIterations,
		Threshold:          DefaultThreshold,
		GenerationTimeout:  Duration(DefaultGenerationTimeout),
		DescriptionTimeout: Duration(DefaultDescriptionTimeout),
		FocusOnEmbodiment:  true,
	}
}

// LoadLoopConfig reads a YAML loop configuration from disk. Unknown
// fields are rejected to catch typos, and the result is validated
// before being returned. Fields absent from the file keep the default
// policy values.
func LoadLoopConfig(path string) (LoopConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return LoopConfig{}, fmt.Errorf("failed to read loop config %s: %w", path, err)
	}
	return ParseLoopConfig(data)
}

// ParseLoopConfig decodes YAML bytes into a LoopConfig layered over the
// defaults.
func ParseLoopConfig(data []byte) (LoopConfig, error) {
	config := DefaultLoopConfig()

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return LoopConfig{}, fmt.Errorf("failed to parse loop config: %w", err)
	}
	if node.Kind != 0 {
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&config); err != nil {
			return LoopConfig{}, fmt.Errorf("failed to decode loop config (check for typos): %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return LoopConfig{}, err
	}
	return config, nil
}
