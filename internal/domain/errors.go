package domain

import (
	"errors"
)

// Common domain errors for consistency loop operations. Operational
// collaborator failures are folded into LoopResult and never surface
// as errors; these sentinels cover caller contract violations only.
var (
	// ErrInvalidIterationBudget indicates a max-iterations value below 1.
	ErrInvalidIterationBudget = errors.New("iteration budget must be at least 1")

	// ErrInvalidThreshold indicates a consistency threshold outside (0, 1].
	ErrInvalidThreshold = errors.New("consistency threshold must be in (0, 1]")

	// ErrNilPort indicates a required collaborator port was not wired.
	ErrNilPort = errors.New("collaborator port cannot be nil")
)
