// Package application orchestrates the PALD consistency loop: the
// generate, describe, extract, score, refine cycle bounded by an
// iteration budget and a consistency threshold.
package application

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/embodia/pald-loop/internal/domain"
	"github.com/embodia/pald-loop/internal/ports"
)

// PromptCompressor turns a PALD document into a bounded generation
// prompt. Implementations must be deterministic and must never fail.
type PromptCompressor interface {
	Compress(pald domain.Document) string
}

// SimilarityScorer computes a consistency score in [0, 1] between two
// PALD documents.
type SimilarityScorer interface {
	Score(ctx context.Context, a, b domain.Document) float64
}

// PaldRefiner produces the next working document from the current one
// and a description-derived document. It must not mutate its inputs.
type PaldRefiner interface {
	Refine(current, derived domain.Document, score float64) domain.Document
}

// PaldExtractor re-expresses a free-text image description as a PALD
// document. Failures are folded into the returned Extraction.
type PaldExtractor interface {
	Extract(ctx context.Context, description string) domain.Extraction
}

// LoopController runs the consistency loop. Each call to Run owns its
// working document, iteration log, and counters exclusively, so
// independent runs (one per participant) may execute concurrently as
// long as each uses its own collaborator handles.
type LoopController struct {
	compressor PromptCompressor
	scorer     SimilarityScorer
	refiner    PaldRefiner
	extractor  PaldExtractor
	generator  ports.GenerationPort
	describer  ports.DescriptionPort

	config  LoopConfig
	metrics ports.MetricsCollector
	tracer  trace.Tracer
}

// NewLoopController wires the loop's collaborators. The metrics
// collector may be nil; all other dependencies are required.
func NewLoopController(
	compressor PromptCompressor,
	scorer SimilarityScorer,
	refiner PaldRefiner,
	extractor PaldExtractor,
	generator ports.GenerationPort,
	describer ports.DescriptionPort,
	config LoopConfig,
	metrics ports.MetricsCollector,
) (*LoopController, error) {
	if compressor == nil || scorer == nil || refiner == nil || extractor == nil ||
		generator == nil || describer == nil {
		return nil, domain.ErrNilPort
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &LoopController{
		compressor: compressor,
		scorer:     scorer,
		refiner:    refiner,
		extractor:  extractor,
		generator:  generator,
		describer:  describer,
		config:     config,
		metrics:    metrics,
		tracer:     otel.Tracer("consistency-loop"),
	}, nil
}

// Run executes one consistency loop for the given input document and
// returns the terminal result. Operational collaborator failures never
// surface as errors; they end the run in the aborted state with the
// partial iteration log preserved. The only returned errors are caller
// contract violations: maxIterations below 1 or a threshold outside
// (0, 1].
//
// The input document is borrowed read-only; the controller works on
// its own copy throughout.
func (lc *LoopController) Run(
	ctx context.Context,
	input domain.Document,
	maxIterations int,
	threshold float64,
) (domain.LoopResult, error) {
	if maxIterations < 1 {
		return domain.LoopResult{}, domain.ErrInvalidIterationBudget
	}
	if threshold <= 0 || threshold > 1 {
		return domain.LoopResult{}, domain.ErrInvalidThreshold
	}

	ctx, span := lc.tracer.Start(ctx, "LoopController.Run",
		trace.WithAttributes(
			attribute.Int("loop.max_iterations", maxIterations),
			attribute.Float64("loop.threshold", threshold),
		),
	)
	defer span.End()

	run := &loopRun{
		input:   input,
		working: input.Clone(),
		started: time.Now(),
	}

	for run.iteration < maxIterations && !run.achieved {
		run.iteration++
		if reason, ok := lc.runIteration(ctx, run, threshold); !ok {
			return lc.finish(span, run, domain.StateAborted, reason), nil
		}
		if !run.achieved && run.iteration < maxIterations {
			run.working = lc.refiner.Refine(run.working, run.derived, run.lastScore)
		}
	}

	state := domain.StateExhausted
	if run.achieved {
		state = domain.StateAchieved
	}
	return lc.finish(span, run, state, ""), nil
}

// loopRun holds the mutable state of a single Run invocation. Nothing
// in it is shared across runs.
type loopRun struct {
	input   domain.Document
	working domain.Document
	derived domain.Document

	iteration int
	achieved  bool
	lastScore float64
	imageID   string
	records   []domain.IterationRecord
	started   time.Time
}

// runIteration performs one generate/describe/extract/score pass.
// It returns ok == false with a reason when a collaborator failure
// aborts the run; the iteration counter stays where it is and no
// record is appended for the cut-short pass.
func (lc *LoopController) runIteration(ctx context.Context, run *loopRun, threshold float64) (string, bool) {
	ctx, span := lc.tracer.Start(ctx, "LoopController.Iteration",
		trace.WithAttributes(attribute.Int("loop.iteration", run.iteration)),
	)
	defer span.End()

	iterStart := time.Now()
	prompt := lc.compressor.Compress(run.working)

	genStart := time.Now()
	image, err := lc.generate(ctx, prompt)
	genLatency := time.Since(genStart)
	if err != nil {
		span.RecordError(err)
		return "image generation failed: " + err.Error(), false
	}
	run.imageID = image.ID

	descStart := time.Now()
	description, err := lc.describe(ctx, image.Path)
	descLatency := time.Since(descStart)
	if err != nil {
		span.RecordError(err)
		return "image description failed: " + err.Error(), false
	}
	if description == "" {
		return "image description was empty", false
	}

	extraction := lc.extractor.Extract(ctx, description)
	if extraction.Pald.IsEmpty() {
		// Cannot score against nothing; an attribute-free extraction
		// ends the run rather than looping on unusable output.
		return "extracted PALD was empty", false
	}
	run.derived = extraction.Pald

	run.lastScore = lc.scorer.Score(ctx, run.input, extraction.Pald)
	run.achieved = run.lastScore >= threshold

	record := domain.IterationRecord{
		Iteration:          run.iteration,
		Score:              run.lastScore,
		GenerationLatency:  genLatency,
		DescriptionLatency: descLatency,
		TotalLatency:       time.Since(iterStart),
	}
	run.records = append(run.records, record)

	span.SetAttributes(
		attribute.Float64("eval.score", run.lastScore),
		attribute.Bool("loop.achieved", run.achieved),
	)
	lc.recordIteration(record)

	return "", true
}

// generate calls the generation port under the configured per-call
// timeout. A timeout surfaces as an ordinary collaborator failure.
func (lc *LoopController) generate(ctx context.Context, prompt string) (ports.GeneratedImage, error) {
	if lc.config.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, lc.config.GenerationTimeout.Std())
		defer cancel()
	}
	return lc.generator.Generate(ctx, prompt, lc.config.GenerationParams)
}

// describe calls the description port under the configured per-call
// timeout.
func (lc *LoopController) describe(ctx context.Context, imagePath string) (string, error) {
	if lc.config.DescriptionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, lc.config.DescriptionTimeout.Std())
		defer cancel()
	}
	return lc.describer.Describe(ctx, imagePath, lc.config.FocusOnEmbodiment)
}

// finish assembles the immutable terminal result from the run state.
func (lc *LoopController) finish(
	span trace.Span,
	run *loopRun,
	state domain.TerminalState,
	reason string,
) domain.LoopResult {
	result := domain.LoopResult{
		FinalImageID:        run.imageID,
		IterationsPerformed: run.iteration,
		ConsistencyAchieved: run.achieved,
		FinalScore:          run.lastScore,
		State:               state,
		Reason:              reason,
		TotalLatency:        time.Since(run.started),
		Records:             run.records,
		Timestamp:           time.Now(),
	}

	span.SetAttributes(
		attribute.String("loop.state", string(state)),
		attribute.Int("loop.iterations", result.IterationsPerformed),
	)
	if lc.metrics != nil {
		labels := map[string]string{"state": string(state)}
		lc.metrics.RecordCounter("consistency_runs_total", 1, labels)
		lc.metrics.RecordLatency("consistency_run", result.TotalLatency, labels)
		lc.metrics.RecordGauge("consistency_final_score", result.FinalScore, labels)
	}
	return result
}

func (lc *LoopController) recordIteration(record domain.IterationRecord) {
	if lc.metrics == nil {
		return
	}
	labels := map[string]string{"stage": "iteration"}
	lc.metrics.RecordHistogram("consistency_score", record.Score, labels)
	lc.metrics.RecordLatency("generation", record.GenerationLatency, labels)
	lc.metrics.RecordLatency("description", record.DescriptionLatency, labels)
}
