// Package units provides the deterministic and LLM-backed building blocks
// of the PALD consistency loop: prompt compression, similarity scoring,
// description-to-PALD extraction, and working-document refinement.
package units

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// Common errors returned by unit constructors.
var (
	// ErrEmptyUnitName is returned when attempting to create a unit with an empty name.
	ErrEmptyUnitName = errors.New("unit name cannot be empty")

	// ErrNilLLMClient is returned when an LLM-backed unit is created without a client.
	ErrNilLLMClient = errors.New("LLM client cannot be nil")
)

// Package-level validator instance for configuration validation.
// Uses go-playground/validator v10 for struct tag-based validation.
var validate = validator.New()
