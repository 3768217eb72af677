package application

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/embodia/pald-loop/internal/domain"
)

// DefaultBatchConcurrency bounds how many runs execute at once.
// Generation and description backends are the expensive shared
// resource, so the limit is deliberately small.
const DefaultBatchConcurrency = 4

// BatchItem pairs a participant identifier with their input document.
type BatchItem struct {
	// ID identifies the participant or study record this document
	// belongs to.
	ID string

	// Pald is the participant's design intent.
	Pald domain.Document
}

// BatchResult pairs an item's identifier with its terminal result.
type BatchResult struct {
	ID     string
	Result domain.LoopResult
}

// RunBatch executes one consistency loop per item with bounded
// concurrency and returns the results in input order. Runs that end in
// the aborted state are still results, not errors; RunBatch fails only
// on contract violations or context cancellation, and the first such
// error cancels the remaining runs.
func (lc *LoopController) RunBatch(
	ctx context.Context,
	items []BatchItem,
	concurrency int,
) ([]BatchResult, error) {
	if concurrency < 1 {
		concurrency = DefaultBatchConcurrency
	}

	results := make([]BatchResult, len(items))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)

	for i, item := range items {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			result, err := lc.Run(ctx, item.Pald, lc.config.MaxIterations, lc.config.Threshold)
			if err != nil {
				return fmt.Errorf("run %s: %w", item.ID, err)
			}

			results[i] = BatchResult{ID: item.ID, Result: result}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
