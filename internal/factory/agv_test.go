package factory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nldf-sim/factory-kernel/internal/engine"
	"github.com/nldf-sim/factory-kernel/internal/types"
)

func testPolicy() AGVChargePolicy {
	return AGVChargePolicy{BatteryThreshold: 20, ChargeRatePctSec: 10, DefaultChargeTo: 80}
}

func TestNewAGVStartsIdleAndFull(t *testing.T) {
	a := NewAGV("agv1", "line1", CorridorLower, 2.0, testPolicy(), P0)
	assert.Equal(t, types.StatusIdle, a.Status())
	assert.Equal(t, 100.0, a.Battery)
	assert.Equal(t, P0, a.Position)
	assert.False(t, a.PayloadFull())
}

func TestPayloadFullAtCapacity(t *testing.T) {
	a := NewAGV("agv1", "line1", CorridorLower, 2.0, testPolicy(), P0)
	a.Payload = append(a.Payload, types.NewProduct(types.ProductP1, "o1", "line1", 0))
	assert.False(t, a.PayloadFull())
	a.Payload = append(a.Payload, types.NewProduct(types.ProductP1, "o1", "line1", 0))
	assert.True(t, a.PayloadFull())
}

func TestLowBatteryThreshold(t *testing.T) {
	a := NewAGV("agv1", "line1", CorridorLower, 2.0, testPolicy(), P0)
	a.Battery = 21
	assert.False(t, a.LowBattery())
	a.Battery = 20
	assert.True(t, a.LowBattery())
}

func TestEnqueueMovesAGVAndConsumesBattery(t *testing.T) {
	a := NewAGV("agv1", "line1", CorridorLower, 10.0, testPolicy(), P0)
	clock := engine.NewClock()
	arrived := false
	a.Enqueue(clock, AGVCommand{ID: "cmd1", Dest: P1, OnArrive: func(c *engine.Clock, agv *AGV) { arrived = true }})

	assert.Equal(t, types.StatusMoving, a.Status())

	clock.Run(context.Background(), 1000)

	assert.True(t, arrived)
	assert.Equal(t, P1, a.Position)
	assert.Equal(t, types.StatusIdle, a.Status())
	assert.Less(t, a.Battery, 100.0)
	assert.Equal(t, 1, a.CompletedTasks)
}

func TestEnqueueCommandsRunInFIFOOrder(t *testing.T) {
	a := NewAGV("agv1", "line1", CorridorLower, 10.0, testPolicy(), P0)
	clock := engine.NewClock()
	var order []string
	a.Enqueue(clock, AGVCommand{ID: "cmd1", Dest: P1, OnArrive: func(c *engine.Clock, agv *AGV) { order = append(order, "cmd1") }})
	a.Enqueue(clock, AGVCommand{ID: "cmd2", Dest: P2, OnArrive: func(c *engine.Clock, agv *AGV) { order = append(order, "cmd2") }})

	clock.Run(context.Background(), 1000)

	assert.Equal(t, []string{"cmd1", "cmd2"}, order)
}

func TestMoveConsumesFlatRatePerMeterRegardlessOfPayload(t *testing.T) {
	empty := NewAGV("agv1", "line1", CorridorLower, 10.0, testPolicy(), P0)
	loaded := NewAGV("agv2", "line1", CorridorLower, 10.0, testPolicy(), P0)
	loaded.Payload = append(loaded.Payload, types.NewProduct(types.ProductP1, "o1", "line1", 0))

	clock1 := engine.NewClock()
	clock2 := engine.NewClock()
	empty.Enqueue(clock1, AGVCommand{ID: "c1", Dest: P9})
	loaded.Enqueue(clock2, AGVCommand{ID: "c2", Dest: P9})

	clock1.Run(context.Background(), 1000)
	clock2.Run(context.Background(), 1000)

	// payload does not change the per-meter energy rate (spec.md §4.4).
	assert.Equal(t, empty.Battery, loaded.Battery)
	dist := Distance(CorridorLower, P0, P9)
	assert.InDelta(t, 100-dist*moveBatteryPctPerMeter, empty.Battery, 0.001)
}

func TestLowBatteryForcesChargeBeforeDispatch(t *testing.T) {
	a := NewAGV("agv1", "line1", CorridorLower, 10.0, testPolicy(), P0)
	a.Battery = 15 // below the 20 threshold
	clock := engine.NewClock()
	arrived := false
	a.Enqueue(clock, AGVCommand{ID: "c1", Dest: P1, OnArrive: func(c *engine.Clock, agv *AGV) { arrived = true }})

	clock.Run(context.Background(), 10000)

	assert.Equal(t, 1, a.ForcedCharges)
	assert.Equal(t, 0, a.ProactiveCharges)
	assert.True(t, arrived)
	assert.Equal(t, P1, a.Position)
}

func TestPredictedEnergyCostForcesChargeBeforeDispatch(t *testing.T) {
	a := NewAGV("agv1", "line1", CorridorLower, 10.0, testPolicy(), P0)
	a.Battery = 21 // above the 20 threshold on its own; LowBattery() alone would not trigger

	dist := Distance(CorridorLower, P0, P9)
	estimate := dist*moveBatteryPctPerMeter + loadUnloadPct
	require.Greater(t, a.Battery-estimate, 0.0)
	require.Less(t, a.Battery-estimate, a.Policy.BatteryThreshold) // the move would drop it below threshold

	clock := engine.NewClock()
	arrived := false
	a.Enqueue(clock, AGVCommand{ID: "c1", Dest: P9, OnArrive: func(c *engine.Clock, agv *AGV) { arrived = true }})

	clock.Run(context.Background(), 10000)

	assert.Equal(t, 1, a.ForcedCharges)
	assert.Equal(t, 0, a.ProactiveCharges)
	assert.True(t, arrived)
	assert.Equal(t, P9, a.Position)
}

func TestPredictedEnergyCostAllowsDispatchWhenSafelyAboveThreshold(t *testing.T) {
	a := NewAGV("agv1", "line1", CorridorLower, 10.0, testPolicy(), P0)
	a.Battery = 100

	clock := engine.NewClock()
	arrived := false
	a.Enqueue(clock, AGVCommand{ID: "c1", Dest: P9, OnArrive: func(c *engine.Clock, agv *AGV) { arrived = true }})

	clock.Run(context.Background(), 10000)

	assert.Equal(t, 0, a.ForcedCharges)
	assert.True(t, arrived)
}

func TestExplicitChargeCountsAsProactive(t *testing.T) {
	a := NewAGV("agv1", "line1", CorridorLower, 10.0, testPolicy(), P0)
	a.Battery = 25
	clock := engine.NewClock()

	a.beginCharge(clock, true, a.Policy.DefaultChargeTo)
	assert.Equal(t, 1, a.ProactiveCharges)
	assert.Equal(t, 0, a.ForcedCharges)
}

func TestChargeRampsBatteryToRequestedTarget(t *testing.T) {
	a := NewAGV("agv1", "line1", CorridorLower, 10.0, testPolicy(), P0)
	a.Battery = 50
	clock := engine.NewClock()

	a.beginCharge(clock, true, 80)
	clock.Run(context.Background(), 10000)

	assert.Equal(t, 80.0, a.Battery)
	assert.Equal(t, types.StatusIdle, a.Status())
}

func TestResumeAfterFaultClearsAndRedispatches(t *testing.T) {
	a := NewAGV("agv1", "line1", CorridorLower, 10.0, testPolicy(), P0)
	a.Fault(100)
	clock := engine.NewClock()
	arrived := false
	a.Queue = append(a.Queue, AGVCommand{ID: "c1", Dest: P1, OnArrive: func(c *engine.Clock, agv *AGV) { arrived = true }})

	a.ResumeAfterFault(clock)
	assert.False(t, a.InFault())
	clock.Run(context.Background(), 1000)

	assert.True(t, arrived)
}
