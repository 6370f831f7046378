package factory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nldf-sim/factory-kernel/internal/engine"
	"github.com/nldf-sim/factory-kernel/internal/types"
)

func TestWeightedAlwaysReturnsValidIndex(t *testing.T) {
	weights := []float64{0.6, 0.3, 0.1}
	for i := 0; i < 200; i++ {
		idx := weighted(weights)
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, len(weights))
	}
}

func TestGenerateOrderDepositsAllProductsAtRawMaterial(t *testing.T) {
	gen := NewOrderGenerator(ProcRange{Min: 30, Max: 30})
	raw := NewRawMaterial("raw", "line1")

	order := gen.generate(0, "line1", raw)

	wantQty := 0
	for _, item := range order.Items {
		wantQty += item.Quantity
	}
	require.Equal(t, wantQty, len(order.ProductIDs))

	deposited := 0
	for raw.HasPickup() {
		_, ok := raw.TakePickup()
		require.True(t, ok)
		deposited++
	}
	assert.Equal(t, wantQty, deposited)
}

func TestGenerateOrderQuantityIsOneToFiveAndTypesGroupCorrectly(t *testing.T) {
	gen := NewOrderGenerator(ProcRange{Min: 30, Max: 30})
	raw := NewRawMaterial("raw", "line1")

	for i := 0; i < 50; i++ {
		order := gen.generate(0, "line1", raw)
		assert.GreaterOrEqual(t, len(order.Items), 1)
		assert.LessOrEqual(t, len(order.Items), len(orderProductTypes))

		total := 0
		seen := make(map[types.ProductType]bool)
		for _, item := range order.Items {
			assert.False(t, seen[item.ProductType], "order pools each product type into a single item line")
			seen[item.ProductType] = true
			assert.GreaterOrEqual(t, item.Quantity, 1)
			total += item.Quantity
		}
		assert.GreaterOrEqual(t, total, 1)
		assert.LessOrEqual(t, total, 5)
	}
}

func TestGenerateOrderDeadlineMatchesFormula(t *testing.T) {
	gen := NewOrderGenerator(ProcRange{Min: 30, Max: 30})
	raw := NewRawMaterial("raw", "line1")

	order := gen.generate(100, "line1", raw)

	want := 100 + order.TheoreticalTime()*order.Priority.DeadlineMultiplier()
	assert.Equal(t, want, order.Deadline)
}

func TestScheduleFiresOnOrderAndReschedules(t *testing.T) {
	gen := NewOrderGenerator(ProcRange{Min: 10, Max: 10})
	raw := NewRawMaterial("raw", "line1")
	var orders []*types.Order
	gen.OnOrder = func(o *types.Order) { orders = append(orders, o) }

	clock := engine.NewClock()
	gen.Schedule(clock, "line1", raw)
	clock.Run(context.Background(), 30)

	assert.Len(t, orders, 3) // fires at t=10,20,30
}
