package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleOrdersByTimeThenTier(t *testing.T) {
	c := NewClock()
	var order []string

	c.Schedule(5, TierDevice, func(c *Clock) { order = append(order, "device@5") })
	c.Schedule(5, TierAGV, func(c *Clock) { order = append(order, "agv@5") })
	c.Schedule(1, TierPublisher, func(c *Clock) { order = append(order, "publisher@1") })

	c.Run(context.Background(), 100)

	require.Equal(t, []string{"publisher@1", "device@5", "agv@5"}, order)
}

func TestRunStopsAtUntil(t *testing.T) {
	c := NewClock()
	ran := false
	c.Schedule(10, TierDevice, func(c *Clock) { ran = true })

	c.Run(context.Background(), 5)

	assert.False(t, ran)
	assert.True(t, c.Pending())
	assert.Equal(t, float64(0), c.Now())
}

func TestRunHonorsContextCancellation(t *testing.T) {
	c := NewClock()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	c.Schedule(1, TierDevice, func(c *Clock) { ran = true })
	c.Run(ctx, 100)

	assert.False(t, ran)
}

func TestRunStepAdvancesOneEvent(t *testing.T) {
	c := NewClock()
	c.Schedule(3, TierDevice, func(c *Clock) {})

	assert.True(t, c.RunStep())
	assert.Equal(t, float64(3), c.Now())
	assert.False(t, c.RunStep())
}

func TestPostIsDrainedBeforeNextEvent(t *testing.T) {
	c := NewClock()
	var order []string
	c.Schedule(5, TierDevice, func(c *Clock) { order = append(order, "scheduled") })
	c.Post(func(c *Clock) { order = append(order, "posted") })

	c.Run(context.Background(), 100)

	require.Equal(t, []string{"posted", "scheduled"}, order)
}

func TestScheduleAtClampsToNow(t *testing.T) {
	c := NewClock()
	c.Schedule(10, TierDevice, func(c *Clock) {})
	c.RunStep() // now = 10

	ran := false
	c.ScheduleAt(1, TierDevice, func(c *Clock) { ran = true }) // in the past
	c.RunStep()

	assert.True(t, ran)
	assert.Equal(t, float64(10), c.Now())
}
