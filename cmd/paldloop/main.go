// Command paldloop runs the PALD consistency loop for a single input
// document: it generates an agent image from the PALD, describes it
// with a vision model, re-extracts a PALD from the description, scores
// the two documents, and iterates until consistent or out of budget.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/embodia/pald-loop/infrastructure/imagegen"
	"github.com/embodia/pald-loop/infrastructure/llm"
	"github.com/embodia/pald-loop/infrastructure/middleware"
	"github.com/embodia/pald-loop/infrastructure/units"
	"github.com/embodia/pald-loop/infrastructure/vision"
	"github.com/embodia/pald-loop/internal/application"
	"github.com/embodia/pald-loop/internal/domain"
	"github.com/embodia/pald-loop/internal/ports"
)

func main() {
	var (
		paldPath      = flag.String("pald", "", "Path to the input PALD JSON document (required)")
		configPath    = flag.String("config", "", "Optional loop configuration YAML")
		imageProvider = flag.String("image-provider", "openai", "Image generation backend: openai or google")
		visionModel   = flag.String("vision-provider", "openai", "Image description backend: openai, anthropic, or google")
		llmProvider   = flag.String("llm-provider", "openai", "Re-extraction LLM backend: openai, anthropic, or google")
		outputDir     = flag.String("output-dir", "", "Directory for generated images (default: system temp)")
		maxIterations = flag.Int("max-iterations", 0, "Override the configured iteration budget")
		threshold     = flag.Float64("threshold", 0, "Override the configured consistency threshold")
	)
	flag.Parse()

	if *paldPath == "" {
		flag.Usage()
		log.Fatal("missing required -pald flag")
	}

	input, err := loadPald(*paldPath)
	if err != nil {
		log.Fatalf("Failed to load PALD document: %v", err)
	}

	config := application.DefaultLoopConfig()
	if *configPath != "" {
		config, err = application.LoadLoopConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load loop config: %v", err)
		}
	}
	if *maxIterations > 0 {
		config.MaxIterations = *maxIterations
	}
	if *threshold > 0 {
		config.Threshold = *threshold
	}

	ctx := context.Background()

	controller, err := buildController(ctx, config, *imageProvider, *visionModel, *llmProvider, *outputDir)
	if err != nil {
		log.Fatalf("Failed to assemble loop: %v", err)
	}

	result, err := controller.Run(ctx, input, config.MaxIterations, config.Threshold)
	if err != nil {
		log.Fatalf("Run failed: %v", err)
	}

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode result: %v", err)
	}
	fmt.Println(string(encoded))

	if result.State == domain.StateAborted {
		os.Exit(1)
	}
}

// loadPald reads and normalizes a PALD document from a JSON file.
func loadPald(path string) (domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid PALD JSON: %w", err)
	}

	doc := domain.Normalize(raw)
	if doc.IsEmpty() {
		return nil, fmt.Errorf("PALD document has no attributes")
	}
	return doc, nil
}

// buildController wires the units, providers, and ports into a loop
// controller. API keys come from the environment: OPENAI_API_KEY,
// ANTHROPIC_API_KEY, and GOOGLE_API_KEY.
func buildController(
	ctx context.Context,
	config application.LoopConfig,
	imageProvider, visionProvider, llmProvider, outputDir string,
) (*application.LoopController, error) {
	compressor, err := units.NewCompressor("prompt-compressor", units.DefaultCompressorConfig())
	if err != nil {
		return nil, err
	}

	scorer, err := units.NewScorer("pald-scorer", units.DefaultScorerConfig())
	if err != nil {
		return nil, err
	}

	refiner, err := units.NewRefiner("pald-refiner", units.DefaultRefinerConfig())
	if err != nil {
		return nil, err
	}

	metrics := middleware.NewPrometheusMetrics()

	llmClient, err := llm.NewClient(llmProvider, llm.ClientConfig{
		APIKey: apiKeyFor(llmProvider),
		Middleware: []llm.Middleware{
			llm.TracingMiddleware("pald-extractor"),
			llm.MetricsMiddleware(metrics),
			llm.RetryMiddleware(3, time.Second, 30*time.Second),
			llm.RateLimitMiddleware(5, 10),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction client: %w", err)
	}

	extractor, err := units.NewExtractor("pald-extractor", llmClient, units.DefaultExtractorConfig())
	if err != nil {
		return nil, err
	}

	generator, err := buildGenerator(ctx, imageProvider, outputDir)
	if err != nil {
		return nil, err
	}

	describer, err := buildDescriber(ctx, visionProvider)
	if err != nil {
		return nil, err
	}

	return application.NewLoopController(
		compressor, scorer, refiner, extractor,
		generator, describer, config, metrics,
	)
}

func buildGenerator(ctx context.Context, provider, outputDir string) (ports.GenerationPort, error) {
	config := imagegen.Config{APIKey: apiKeyFor(provider), OutputDir: outputDir}
	switch provider {
	case "openai":
		return imagegen.NewOpenAIGenerator(config)
	case "google":
		return imagegen.NewGoogleGenerator(ctx, config)
	default:
		return nil, fmt.Errorf("unknown image provider: %s", provider)
	}
}

func buildDescriber(ctx context.Context, provider string) (ports.DescriptionPort, error) {
	config := vision.Config{APIKey: apiKeyFor(provider)}
	switch provider {
	case "openai":
		return vision.NewOpenAIDescriber(config)
	case "anthropic":
		return vision.NewAnthropicDescriber(config)
	case "google":
		return vision.NewGoogleDescriber(ctx, config)
	default:
		return nil, fmt.Errorf("unknown vision provider: %s", provider)
	}
}

func apiKeyFor(provider string) string {
	switch provider {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "google":
		return os.Getenv("GOOGLE_API_KEY")
	default:
		return ""
	}
}
