package factory

import (
	"github.com/nldf-sim/factory-kernel/internal/engine"
	"github.com/nldf-sim/factory-kernel/internal/types"
)

// Warehouse is an unbounded source (raw material) or sink (finished goods).
// It never blocks and never processes — it exists purely as the endpoints
// an AGV moves products between (spec.md §4.1's device list).
type Warehouse struct {
	*Device

	IsSource bool // true for RawMaterial, false for FinishedGoods

	onArrive func(p *types.Product)
}

// NewRawMaterial creates the unbounded raw-material source.
func NewRawMaterial(id, lineID string) *Warehouse {
	return &Warehouse{Device: NewDevice(id, types.KindWarehouse, lineID, 0), IsSource: true}
}

// NewFinishedGoods creates the unbounded finished-goods sink.
func NewFinishedGoods(id, lineID string) *Warehouse {
	return &Warehouse{Device: NewDevice(id, types.KindWarehouse, lineID, 0), IsSource: false}
}

// ID implements Receiver.
func (w *Warehouse) ID() string { return w.Device.ID }

// TryAccept always succeeds for the finished-goods sink; a raw-material
// source never receives products from downstream and rejects any attempt.
func (w *Warehouse) TryAccept(clock *engine.Clock, p *types.Product) bool {
	if w.IsSource {
		return false
	}
	w.Buffer = append(w.Buffer, p)
	if w.onArrive != nil {
		w.onArrive(p)
	}
	return true
}

// Deposit places a freshly generated product at the raw-material source,
// where it waits for an AGV to carry it to Station A. Order generation is
// the only caller.
func (w *Warehouse) Deposit(p *types.Product) {
	w.Buffer = append(w.Buffer, p)
}

// TakePickup removes and returns the oldest waiting raw-material product
// for an AGV to carry, FIFO. ok is false if nothing is waiting.
func (w *Warehouse) TakePickup() (*types.Product, bool) {
	if !w.IsSource || len(w.Buffer) == 0 {
		return nil, false
	}
	p := w.Buffer[0]
	w.Buffer = w.Buffer[1:]
	return p, true
}

// HasPickup reports whether a raw-material product is waiting.
func (w *Warehouse) HasPickup() bool { return w.IsSource && len(w.Buffer) > 0 }

// HasProduct reports whether a specific raw-material product is still
// waiting for pickup, used to validate an explicit load command's
// product_id before it is enqueued (spec.md §4.8).
func (w *Warehouse) HasProduct(id string) bool {
	if !w.IsSource {
		return false
	}
	for _, p := range w.Buffer {
		if p.ID == id {
			return true
		}
	}
	return false
}

// TakePickupByID removes and returns the named raw-material product,
// regardless of its position in the FIFO buffer, for an explicit load
// command (spec.md §4.8's product_id-addressed pickup at P0).
func (w *Warehouse) TakePickupByID(id string) (*types.Product, bool) {
	if !w.IsSource {
		return nil, false
	}
	for i, p := range w.Buffer {
		if p.ID == id {
			w.Buffer = append(w.Buffer[:i], w.Buffer[i+1:]...)
			return p, true
		}
	}
	return nil, false
}
