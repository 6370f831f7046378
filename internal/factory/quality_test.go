package factory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nldf-sim/factory-kernel/internal/engine"
	"github.com/nldf-sim/factory-kernel/internal/types"
)

func TestQualityCheckTryAcceptRespectsTwoSlotCapacity(t *testing.T) {
	q := NewQualityCheck("qc", "line1")
	clock := engine.NewClock()

	require.True(t, q.TryAccept(clock, types.NewProduct(types.ProductP1, "o1", "line1", 0)))
	require.True(t, q.TryAccept(clock, types.NewProduct(types.ProductP1, "o1", "line1", 0)))
	assert.False(t, q.TryAccept(clock, types.NewProduct(types.ProductP1, "o1", "line1", 0)))
}

func TestQualityCheckProducesPassOrReworkOutcome(t *testing.T) {
	q := NewQualityCheck("qc", "line1")
	var outcomes []QualityOutcome
	q.OnOutcome = func(o QualityOutcome) { outcomes = append(outcomes, o) }

	clock := engine.NewClock()
	p := types.NewProduct(types.ProductP1, "o1", "line1", 0)
	require.True(t, q.TryAccept(clock, p))
	assert.Equal(t, types.StatusProcessing, q.Status())

	clock.Run(context.Background(), 100)

	require.Len(t, outcomes, 1)
	assert.Equal(t, types.StatusIdle, q.Status())
	assert.Equal(t, 1, p.Attempts)
	// Exactly one of the two terminal/stage slots is occupied, whichever
	// branch the Bernoulli check took.
	_, hasPassed := q.TakePassed()
	_, hasRework := q.TakeRework()
	assert.True(t, hasPassed != hasRework, "exactly one of Output/ReworkOutput should be staged")
}

func TestQualityCheckScrapsOnSecondFailure(t *testing.T) {
	q := NewQualityCheck("qc", "line1")
	var outcomes []QualityOutcome
	q.OnOutcome = func(o QualityOutcome) { outcomes = append(outcomes, o) }

	p := types.NewProduct(types.ProductP3, "o1", "line1", 0)
	p.Attempts = 1 // already failed once; this inspection decides pass or scrap

	clock := engine.NewClock()
	require.True(t, q.TryAccept(clock, p))
	clock.Run(context.Background(), 100)

	require.Len(t, outcomes, 1)
	o := outcomes[0]
	if o.Scrapped {
		assert.Equal(t, 2, p.Attempts)
		assert.False(t, o.Passed)
	} else {
		assert.True(t, o.Passed)
	}
}

func TestTakePassedAndTakeReworkAreOneShot(t *testing.T) {
	q := NewQualityCheck("qc", "line1")
	p := types.NewProduct(types.ProductP1, "o1", "line1", 0)
	q.Output = p

	got, ok := q.TakePassed()
	require.True(t, ok)
	assert.Same(t, p, got)

	_, ok = q.TakePassed()
	assert.False(t, ok)
}

func TestResumeAfterFaultRestartsInspection(t *testing.T) {
	q := NewQualityCheck("qc", "line1")
	clock := engine.NewClock()
	p := types.NewProduct(types.ProductP1, "o1", "line1", 0)
	require.True(t, q.TryAccept(clock, p))

	q.Fault(500)
	assert.Equal(t, types.StatusFault, q.Status())

	q.ResumeAfterFault(clock)
	assert.False(t, q.InFault())
	clock.Run(context.Background(), 600)
	assert.Equal(t, types.StatusIdle, q.Status())
}
