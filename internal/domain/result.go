package domain

import (
	"time"
)

// TerminalState identifies how a consistency loop run ended.
type TerminalState string

const (
	// StateAchieved means the consistency score met the threshold.
	StateAchieved TerminalState = "achieved"

	// StateExhausted means the iteration budget ran out before the
	// threshold was reached. This is a normal outcome, not a failure.
	StateExhausted TerminalState = "exhausted"

	// StateAborted means a collaborator (generation, description, or
	// extraction) failed mid-iteration and the run stopped early.
	StateAborted TerminalState = "aborted"
)

// Extraction is the outcome of re-expressing a free-text image
// description as a PALD document. Extraction failures are represented
// as data, not errors: a malformed or unusable model response yields
// an empty document with zero confidence, so the loop's control flow
// stays a plain state machine instead of branching on exceptions.
//
// An empty document always carries confidence 0, which means callers
// cannot distinguish "the model returned nothing parseable" from "the
// model legitimately described an agent without embodiment attributes"
// through this type alone.
type Extraction struct {
	// Pald is the re-extracted document; empty on any failure.
	Pald Document

	// Confidence is the model's self-reported confidence in [0, 1];
	// zero on any failure.
	Confidence float64
}

// IterationRecord captures per-iteration telemetry for one pass of the
// generate/describe/extract/score cycle. Records are append-only and
// never mutated after being added to a run's log.
type IterationRecord struct {
	// Iteration is the 1-based index of this pass.
	Iteration int `json:"iteration"`

	// Score is the consistency score between the participant's input
	// PALD and the PALD re-derived from the generated image.
	Score float64 `json:"score"`

	// GenerationLatency measures the image generation call.
	GenerationLatency time.Duration `json:"generation_latency"`

	// DescriptionLatency measures the image description call.
	DescriptionLatency time.Duration `json:"description_latency"`

	// TotalLatency measures the whole iteration, including extraction
	// and scoring.
	TotalLatency time.Duration `json:"total_latency"`
}

// LoopResult is the terminal artifact of a consistency loop run.
// It is created exactly once, at termination, and is immutable
// thereafter. Only aborted runs may carry a Reason.
type LoopResult struct {
	// FinalImageID identifies the last successfully generated image.
	// It is owned by the generation backend and opaque to this core.
	// Empty when no image was produced before the run ended.
	FinalImageID string `json:"final_image_id,omitempty"`

	// IterationsPerformed counts attempted iterations, including an
	// iteration cut short by a collaborator failure.
	IterationsPerformed int `json:"iterations_performed"`

	// ConsistencyAchieved reports whether the threshold was met.
	ConsistencyAchieved bool `json:"consistency_achieved"`

	// FinalScore is the score from the last completed iteration,
	// or zero when no iteration completed.
	FinalScore float64 `json:"final_score"`

	// State records which terminal state ended the run.
	State TerminalState `json:"state"`

	// Reason carries the collaborator failure for aborted runs.
	Reason string `json:"reason,omitempty"`

	// TotalLatency measures the entire run.
	TotalLatency time.Duration `json:"total_latency"`

	// Records is the ordered, append-only iteration log. An aborted
	// iteration leaves no record; the log holds only fully scored
	// iterations.
	Records []IterationRecord `json:"records,omitempty"`

	// Timestamp records when the run terminated.
	Timestamp time.Time `json:"timestamp"`
}
