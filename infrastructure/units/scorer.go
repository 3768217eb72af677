package units

import (
	"bytes"
	"context"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"github.com/embodia/pald-loop/internal/domain"
)

// foldCaser is a package-level Unicode case folder for performance.
// This avoids creating a new caser for each tokenization pass.
var foldCaser = cases.Fold()

// Default scoring policy constants.
const (
	// DefaultUnknownLevelWeight is assigned to level keys outside the
	// known set, keeping the scorer forward-compatible with documents
	// that carry extra levels.
	DefaultUnknownLevelWeight = 0.1

	// DefaultPartialMismatch is the contribution for a level or
	// attribute present on only one side. Structural asymmetry is
	// penalized but never zeroed out.
	DefaultPartialMismatch = 0.3
)

// ScorerConfig defines the configuration parameters for the Scorer.
// All fields are validated during unit creation and parameter unmarshaling.
type ScorerConfig struct {
	// Algorithm selects the attribute-level string similarity metric.
	// "jaccard" compares fold-cased word sets; "levenshtein" uses
	// normalized edit distance over the full strings.
	Algorithm string `yaml:"algorithm" json:"algorithm" validate:"required,oneof=jaccard levenshtein"`

	// LevelWeights maps level keys to importance weights. Levels not
	// listed here receive UnknownLevelWeight.
	LevelWeights map[string]float64 `yaml:"level_weights" json:"level_weights" validate:"required,min=1"`

	// UnknownLevelWeight is the weight for unrecognized level keys.
	UnknownLevelWeight float64 `yaml:"unknown_level_weight" json:"unknown_level_weight" validate:"min=0,max=1"`

	// PartialMismatch is the score contribution for one-sided levels
	// and attributes, scaled by the applicable weight.
	PartialMismatch float64 `yaml:"partial_mismatch" json:"partial_mismatch" validate:"min=0,max=1"`
}

// Scorer computes a weighted hierarchical consistency score in [0, 1]
// between two PALD documents. The weighting models "compare a
// description-derived document back to the original intent", so the
// function is reflexive (identical inputs always score 1.0) but not
// required to be a metric.
//
// The unit is stateless and thread-safe for concurrent execution.
type Scorer struct {
	// name is the unique identifier for this unit instance.
	name string
	// config contains the validated configuration parameters.
	config ScorerConfig
	// tracer is the OpenTelemetry tracer for observability.
	tracer trace.Tracer
}

// NewScorer creates a new Scorer with the specified configuration.
// Returns an error if configuration validation fails.
func NewScorer(name string, config ScorerConfig) (*Scorer, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &Scorer{
		name:   name,
		config: config,
		tracer: otel.Tracer("pald-scorer"),
	}, nil
}

// Name returns the unique identifier for this unit instance.
func (s *Scorer) Name() string { return s.name }

// Score compares two PALD documents and returns their consistency in
// [0, 1]. Two empty documents are trivially consistent (1.0); exactly
// one empty document is maximally inconsistent (0.0). Otherwise each
// level in the union contributes its level similarity scaled by the
// level's weight, with one-sided levels contributing the partial
// mismatch score.
func (s *Scorer) Score(ctx context.Context, a, b domain.Document) float64 {
	_, span := s.tracer.Start(ctx, "Scorer.Score",
		trace.WithAttributes(
			attribute.String("unit.type", "pald_scorer"),
			attribute.String("unit.id", s.name),
			attribute.String("config.algorithm", s.config.Algorithm),
		),
	)
	defer span.End()

	score := s.score(a, b)
	span.SetAttributes(attribute.Float64("eval.score", score))
	return score
}

func (s *Scorer) score(a, b domain.Document) float64 {
	aEmpty, bEmpty := a.IsEmpty(), b.IsEmpty()
	if aEmpty && bEmpty {
		return 1.0
	}
	if aEmpty != bEmpty {
		return 0.0
	}

	var weightedSum, weightTotal float64
	for _, level := range unionKeys(levelKeys(a), levelKeys(b)) {
		weight := s.levelWeight(level)
		weightTotal += weight

		la, inA := a[level]
		lb, inB := b[level]
		switch {
		case inA && inB:
			weightedSum += weight * s.levelSimilarity(la, lb)
		default:
			weightedSum += weight * s.config.PartialMismatch
		}
	}

	if weightTotal == 0 {
		return 1.0
	}
	return weightedSum / weightTotal
}

// levelSimilarity compares the attribute maps of one level from each
// document. Structurally equal levels short-circuit to 1.0. Otherwise
// each attribute in the key union contributes: string pairs score by
// the configured text metric, equal non-strings score 1.0, unequal
// non-strings 0.0, and one-sided attributes the partial mismatch.
// The result is the mean contribution; an empty union scores 1.0.
func (s *Scorer) levelSimilarity(a, b domain.Level) float64 {
	if reflect.DeepEqual(a, b) {
		return 1.0
	}

	keys := unionKeys(attrKeys(a), attrKeys(b))
	if len(keys) == 0 {
		return 1.0
	}

	var total float64
	for _, key := range keys {
		va, inA := a[key]
		vb, inB := b[key]

		if !inA || !inB {
			total += s.config.PartialMismatch
			continue
		}

		sa, aIsStr := va.(string)
		sb, bIsStr := vb.(string)
		switch {
		case aIsStr && bIsStr:
			total += s.textSimilarity(sa, sb)
		case reflect.DeepEqual(va, vb):
			total += 1.0
		}
	}

	return total / float64(len(keys))
}

// textSimilarity dispatches to the configured attribute metric.
// Two empty strings are a perfect match; exactly one empty scores 0.
func (s *Scorer) textSimilarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	if s.config.Algorithm == "levenshtein" {
		return editSimilarity(foldCaser.String(a), foldCaser.String(b))
	}
	return jaccardSimilarity(tokenize(a), tokenize(b))
}

// tokenize splits on whitespace and fold-cases each token, returning
// the resulting word set.
func tokenize(s string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, field := range strings.Fields(s) {
		words[foldCaser.String(field)] = struct{}{}
	}
	return words
}

// jaccardSimilarity returns the Jaccard index of two word sets:
// intersection size over union size.
func jaccardSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}

	intersection := 0
	for word := range a {
		if _, ok := b[word]; ok {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	if union == 0 {
		return 1.0
	}
	return float64(intersection) / float64(union)
}

// editSimilarity normalizes Levenshtein distance into [0, 1] over the
// rune count of the longer string. The levenshtein library operates on
// runes, so rune count keeps the normalization consistent for
// multi-byte UTF-8 input.
func editSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}

	distance := levenshtein.ComputeDistance(a, b)
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1.0
	}

	similarity := 1.0 - float64(distance)/float64(maxLen)
	if similarity < 0 {
		similarity = 0
	}
	return similarity
}

func (s *Scorer) levelWeight(level string) float64 {
	if weight, ok := s.config.LevelWeights[level]; ok {
		return weight
	}
	return s.config.UnknownLevelWeight
}

func levelKeys(d domain.Document) []string {
	keys := make([]string, 0, len(d))
	for key := range d {
		keys = append(keys, key)
	}
	return keys
}

func attrKeys(l domain.Level) []string {
	keys := make([]string, 0, len(l))
	for key := range l {
		keys = append(keys, key)
	}
	return keys
}

// unionKeys merges two key slices preserving first-seen order.
func unionKeys(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	union := make([]string, 0, len(a)+len(b))
	for _, key := range a {
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			union = append(union, key)
		}
	}
	for _, key := range b {
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			union = append(union, key)
		}
	}
	return union
}

// Validate checks if the unit is properly configured and ready for use.
func (s *Scorer) Validate() error {
	if err := validate.Struct(s.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// DefaultScorerConfig returns a ScorerConfig with the standard level
// weights: global 0.4, middle 0.35, detailed 0.25.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		Algorithm: "jaccard",
		LevelWeights: map[string]float64{
			domain.LevelGlobal:   0.4,
			domain.LevelMiddle:   0.35,
			domain.LevelDetailed: 0.25,
		},
		UnknownLevelWeight: DefaultUnknownLevelWeight,
		PartialMismatch:    DefaultPartialMismatch,
	}
}

// UnmarshalParameters deserializes YAML configuration parameters and
// returns a new Scorer instance to maintain thread-safety.
// Unknown fields are rejected to catch configuration typos.
func (s *Scorer) UnmarshalParameters(params yaml.Node) (*Scorer, error) {
	var config ScorerConfig

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

	return NewScorer(s.name, config)
}
