package application

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embodia/pald-loop/internal/domain"
	"github.com/embodia/pald-loop/internal/testutils"
)

func TestRunBatchPreservesInputOrder(t *testing.T) {
	fixture := newLoopFixture(t, testutils.NewMockGenerationPort(), testutils.NewMockDescriptionPort())

	items := make([]BatchItem, 6)
	for i := range items {
		items[i] = BatchItem{
			ID:   fmt.Sprintf("participant-%d", i),
			Pald: matchingInput(),
		}
	}

	results, err := fixture.controller.RunBatch(context.Background(), items, 3)
	require.NoError(t, err)
	require.Len(t, results, len(items))

	for i, result := range results {
		assert.Equal(t, items[i].ID, result.ID)
		assert.Equal(t, domain.StateAchieved, result.Result.State)
	}
	assert.Equal(t, len(items), fixture.generator.Calls())
}

func TestRunBatchAbortedRunsAreResultsNotErrors(t *testing.T) {
	fixture := newLoopFixture(t, testutils.NewMockGenerationPort(), testutils.NewMockDescriptionPort())
	fixture.llm.AddResponse("Restate", `{"pald_data": {}, "confidence": 0.0}`)

	results, err := fixture.controller.RunBatch(context.Background(), []BatchItem{
		{ID: "p1", Pald: matchingInput()},
	}, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.StateAborted, results[0].Result.State)
}

func TestRunBatchCancellation(t *testing.T) {
	fixture := newLoopFixture(t, testutils.NewMockGenerationPort(), testutils.NewMockDescriptionPort())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fixture.controller.RunBatch(ctx, []BatchItem{
		{ID: "p1", Pald: matchingInput()},
	}, 1)
	assert.Error(t, err)
}

func TestRunBatchEmptyInput(t *testing.T) {
	fixture := newLoopFixture(t, testutils.NewMockGenerationPort(), testutils.NewMockDescriptionPort())

	results, err := fixture.controller.RunBatch(context.Background(), nil, 2)
	require.NoError(t, err)
	assert.Empty(t, results)
}
