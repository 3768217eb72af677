package units

import (
	"fmt"

	"github.com/embodia/pald-loop/internal/domain"
)

// DefaultMergeThreshold is the score at or above which refinement is a
// no-op. It is distinct from, and much lower than, the loop's success
// threshold: a working document that is already reasonably close
// should not churn between iterations.
const DefaultMergeThreshold = 0.3

// RefinerConfig defines the configuration parameters for the Refiner.
type RefinerConfig struct {
	// MergeThreshold is the consistency score below which unmatched
	// attributes from the derived document are merged in.
	MergeThreshold float64 `yaml:"merge_threshold" json:"merge_threshold" validate:"min=0,max=1"`
}

// Refiner produces a revised working PALD by merging attributes from a
// description-derived document into the current one. Merging only adds
// attributes the current document is missing (or holds empty); it
// never overwrites what the participant's original intent already
// specified. Refine is a pure function and does not mutate its inputs.
type Refiner struct {
	// name is the unique identifier for this unit instance.
	name string
	// config contains the validated configuration parameters.
	config RefinerConfig
}

// NewRefiner creates a new Refiner with the specified configuration.
// Returns an error if configuration validation fails.
func NewRefiner(name string, config RefinerConfig) (*Refiner, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &Refiner{name: name, config: config}, nil
}

// Name returns the unique identifier for this unit instance.
func (r *Refiner) Name() string { return r.name }

// Refine returns the working document for the next iteration. At or
// above the merge threshold the current document is returned unchanged.
// Below it, a copy of current gains every attribute of the three known
// levels that is present in derived but absent or empty in the copy;
// levels missing from current are created before merging.
func (r *Refiner) Refine(current, derived domain.Document, score float64) domain.Document {
	if score >= r.config.MergeThreshold {
		return current
	}

	refined := current.Clone()
	for _, level := range domain.KnownLevels {
		source, ok := derived[level]
		if !ok || len(source) == 0 {
			continue
		}

		target, ok := refined[level]
		if !ok {
			target = make(domain.Level, len(source))
			refined[level] = target
		}

		for name, value := range source {
			if existing, present := target[name]; present && !isEmptyValue(existing) {
				continue
			}
			target[name] = value
		}
	}
	return refined
}

// isEmptyValue reports whether an attribute value counts as unset for
// merge purposes: nil or an empty string.
func isEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// Validate checks if the unit is properly configured and ready for use.
func (r *Refiner) Validate() error {
	if err := validate.Struct(r.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// DefaultRefinerConfig returns a RefinerConfig with the standard merge
// threshold.
func DefaultRefinerConfig() RefinerConfig {
	return RefinerConfig{MergeThreshold: DefaultMergeThreshold}
}
