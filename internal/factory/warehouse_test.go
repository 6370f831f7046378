package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nldf-sim/factory-kernel/internal/engine"
	"github.com/nldf-sim/factory-kernel/internal/types"
)

func TestRawMaterialDepositAndTakePickupIsFIFO(t *testing.T) {
	w := NewRawMaterial("raw", "line1")
	p1 := types.NewProduct(types.ProductP1, "o1", "line1", 0)
	p2 := types.NewProduct(types.ProductP1, "o1", "line1", 0)
	w.Deposit(p1)
	w.Deposit(p2)

	require.True(t, w.HasPickup())
	got, ok := w.TakePickup()
	require.True(t, ok)
	assert.Same(t, p1, got)

	got, ok = w.TakePickup()
	require.True(t, ok)
	assert.Same(t, p2, got)

	assert.False(t, w.HasPickup())
	_, ok = w.TakePickup()
	assert.False(t, ok)
}

func TestRawMaterialRejectsTryAccept(t *testing.T) {
	w := NewRawMaterial("raw", "line1")
	clock := engine.NewClock()
	ok := w.TryAccept(clock, types.NewProduct(types.ProductP1, "o1", "line1", 0))
	assert.False(t, ok)
}

func TestFinishedGoodsAcceptsAndFiresOnArrive(t *testing.T) {
	w := NewFinishedGoods("fg", "line1")
	var arrived *types.Product
	w.onArrive = func(p *types.Product) { arrived = p }

	clock := engine.NewClock()
	p := types.NewProduct(types.ProductP1, "o1", "line1", 0)
	assert.True(t, w.TryAccept(clock, p))
	assert.Same(t, p, arrived)
	assert.Equal(t, 1, w.BufferLen())
}

func TestFinishedGoodsHasNoPickup(t *testing.T) {
	w := NewFinishedGoods("fg", "line1")
	assert.False(t, w.HasPickup())
	_, ok := w.TakePickup()
	assert.False(t, ok)
}
