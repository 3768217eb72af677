package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embodia/pald-loop/internal/domain"
)

func newTestRefiner(t *testing.T) *Refiner {
	t.Helper()
	refiner, err := NewRefiner("test-refiner", DefaultRefinerConfig())
	require.NoError(t, err)
	return refiner
}

func TestNewRefinerValidation(t *testing.T) {
	_, err := NewRefiner("", DefaultRefinerConfig())
	assert.ErrorIs(t, err, ErrEmptyUnitName)

	_, err = NewRefiner("r", RefinerConfig{MergeThreshold: 1.5})
	assert.Error(t, err)
}

func TestRefineIdentityAtOrAboveThreshold(t *testing.T) {
	refiner := newTestRefiner(t)

	current := domain.Document{
		domain.LevelGlobal: domain.Level{"gender": "female"},
	}
	derived := domain.Document{
		domain.LevelGlobal: domain.Level{"gender": "male", "age": "adult"},
	}

	for _, score := range []float64{0.3, 0.5, 1.0} {
		refined := refiner.Refine(current, derived, score)
		assert.Equal(t, current, refined)
	}
}

func TestRefineMergesMissingAttributesBelowThreshold(t *testing.T) {
	refiner := newTestRefiner(t)

	current := domain.Document{
		domain.LevelGlobal: domain.Level{"gender": "female"},
	}
	derived := domain.Document{
		domain.LevelGlobal:   domain.Level{"gender": "male", "age": "adult"},
		domain.LevelDetailed: domain.Level{"eye_color": "green"},
	}

	refined := refiner.Refine(current, derived, 0.1)

	// Present attributes keep the participant's value.
	assert.Equal(t, "female", refined[domain.LevelGlobal]["gender"])
	// Missing attributes are added, including whole missing levels.
	assert.Equal(t, "adult", refined[domain.LevelGlobal]["age"])
	assert.Equal(t, "green", refined[domain.LevelDetailed]["eye_color"])
}

func TestRefineFillsEmptyValues(t *testing.T) {
	refiner := newTestRefiner(t)

	current := domain.Document{
		domain.LevelGlobal: domain.Level{"gender": "", "age": nil},
	}
	derived := domain.Document{
		domain.LevelGlobal: domain.Level{"gender": "female", "age": "adult"},
	}

	refined := refiner.Refine(current, derived, 0.0)
	assert.Equal(t, "female", refined[domain.LevelGlobal]["gender"])
	assert.Equal(t, "adult", refined[domain.LevelGlobal]["age"])
}

func TestRefineIgnoresUnknownLevels(t *testing.T) {
	refiner := newTestRefiner(t)

	current := domain.Document{
		domain.LevelGlobal: domain.Level{"gender": "female"},
	}
	derived := domain.Document{
		"mystery_level": domain.Level{"x": "y"},
	}

	refined := refiner.Refine(current, derived, 0.0)
	assert.NotContains(t, refined, "mystery_level")
}

func TestRefineDoesNotMutateInputs(t *testing.T) {
	refiner := newTestRefiner(t)

	current := domain.Document{
		domain.LevelGlobal: domain.Level{"gender": "female"},
	}
	derived := domain.Document{
		domain.LevelGlobal: domain.Level{"age": "adult"},
	}
	currentBefore := current.Clone()
	derivedBefore := derived.Clone()

	refiner.Refine(current, derived, 0.0)

	assert.Equal(t, currentBefore, current)
	assert.Equal(t, derivedBefore, derived)
}

func TestRefineIsMonotonic(t *testing.T) {
	refiner := newTestRefiner(t)

	current := domain.Document{
		domain.LevelGlobal: domain.Level{"gender": "female"},
		domain.LevelMiddle: domain.Level{"clothing": "blazer"},
	}
	derived := domain.Document{
		domain.LevelGlobal:   domain.Level{"age": "adult"},
		domain.LevelDetailed: domain.Level{"hair_color": "brown"},
	}

	refined := refiner.Refine(current, derived, 0.0)

	// Every attribute of current survives with its value.
	for level, attrs := range current {
		for name, value := range attrs {
			assert.Equal(t, value, refined[level][name])
		}
	}
}
