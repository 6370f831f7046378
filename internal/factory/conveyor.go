package factory

import (
	"github.com/nldf-sim/factory-kernel/internal/engine"
	"github.com/nldf-sim/factory-kernel/internal/fsm"
	"github.com/nldf-sim/factory-kernel/internal/types"
)

// TransferDelaySec is the fixed per-item belt transfer time (spec.md §4.3).
const TransferDelaySec = 20.0

// Conveyor moves products from one station's output to the next station's
// input with a fixed transfer delay. Capacity bounds how many items may be
// in transit or queued for release at once.
type Conveyor struct {
	*Device

	Downstream Receiver
	inTransit  []*types.Product // arrival order; length bounded by Capacity
}

// NewConveyor creates an empty conveyor with the given item capacity.
func NewConveyor(id, lineID string, capacity int) *Conveyor {
	return &Conveyor{Device: NewDevice(id, types.KindConveyor, lineID, capacity)}
}

// ID implements Receiver.
func (c *Conveyor) ID() string { return c.Device.ID }

// TryAccept admits a product onto the belt if there is room, scheduling its
// arrival TransferDelaySec later (spec.md §4.3).
func (c *Conveyor) TryAccept(clock *engine.Clock, p *types.Product) bool {
	if c.InFault() || len(c.inTransit) >= c.Capacity {
		return false
	}
	c.inTransit = append(c.inTransit, p)
	if c.Status() == types.StatusIdle {
		_ = c.FSM.Fire(fsm.EventStart)
	}
	c.WorkingSeconds += TransferDelaySec
	if clock != nil {
		clock.Schedule(TransferDelaySec, engine.TierDevice, func(cl *engine.Clock) {
			c.arrive(cl)
		})
	}
	return true
}

// arrive releases the oldest in-transit item toward Downstream. If the
// downstream device has no room, the item parks at the head of the belt
// (still occupying a capacity slot) until woken.
func (c *Conveyor) arrive(clock *engine.Clock) {
	if len(c.inTransit) == 0 {
		return
	}
	p := c.inTransit[0]
	if c.Downstream == nil || !c.Downstream.TryAccept(clock, p) {
		clock.Waits.Wait(recvKey(c.Downstream.ID()), func() { c.arrive(clock) })
		return
	}
	c.inTransit = c.inTransit[1:]
	if len(c.inTransit) == 0 {
		_ = c.FSM.Fire(fsm.EventFinish)
	}
	clock.Waits.Wake(recvKey(c.ID()))
}

// TripleBufferConveyor is the line-3 variant of the Station-C -> Quality
// conveyor: it additionally stages P3 products awaiting their second pass
// through Stations B and C in two named sub-buffers, upper and lower
// (spec.md §3's data model; resolved in SPEC_FULL.md §6.1 as a line-3-only
// capability since only this conveyor instance carries the sub-buffers).
// Per `_examples/original_source/src/simulation/entities/conveyor.py`, these
// sub-buffers are AGV-pickup staging, not an autonomous feed back to Station
// B — an agent must move an AGV to P6 and issue load/unload, the same as
// QualityCheck's Output/ReworkOutput.
type TripleBufferConveyor struct {
	*Conveyor

	Upper []*types.Product
	Lower []*types.Product
	// SubBufferCapacity bounds each of Upper and Lower independently.
	SubBufferCapacity int
}

// NewTripleBufferConveyor creates the line-3 Conveyor_CQ.
func NewTripleBufferConveyor(id, lineID string, capacity, subBufferCapacity int) *TripleBufferConveyor {
	return &TripleBufferConveyor{
		Conveyor:          NewConveyor(id, lineID, capacity),
		SubBufferCapacity: subBufferCapacity,
	}
}

// HoldForRework stages a first-pass P3 product in whichever sub-buffer has
// more room (ties favor lower), waiting there for AGV pickup back to Station
// B. Returns false if both are full, in which case the caller (StationC)
// must block (spec.md §3).
func (c *TripleBufferConveyor) HoldForRework(clock *engine.Clock, p *types.Product) bool {
	if len(c.Lower) <= len(c.Upper) {
		if len(c.Lower) >= c.SubBufferCapacity {
			if len(c.Upper) >= c.SubBufferCapacity {
				return false
			}
			c.Upper = append(c.Upper, p)
		} else {
			c.Lower = append(c.Lower, p)
		}
	} else if len(c.Upper) < c.SubBufferCapacity {
		c.Upper = append(c.Upper, p)
	} else if len(c.Lower) < c.SubBufferCapacity {
		c.Lower = append(c.Lower, p)
	} else {
		return false
	}
	return true
}

// TakeReworkHold removes and returns a held P3 product waiting for AGV
// pickup back to Station B (Lower is drained first whenever it holds a
// product, then Upper), waking any station blocked on a full sub-buffer.
func (c *TripleBufferConveyor) TakeReworkHold(clock *engine.Clock) (*types.Product, bool) {
	var p *types.Product
	switch {
	case len(c.Lower) > 0:
		p = c.Lower[0]
		c.Lower = c.Lower[1:]
	case len(c.Upper) > 0:
		p = c.Upper[0]
		c.Upper = c.Upper[1:]
	default:
		return nil, false
	}
	if clock != nil {
		clock.Waits.Wake(recvKey(c.ID() + ":hold"))
	}
	return p, true
}

// HoldFull reports whether both sub-buffers are at capacity, the condition
// under which Station C must block rather than stage a first-pass P3.
func (c *TripleBufferConveyor) HoldFull() bool {
	return len(c.Lower) >= c.SubBufferCapacity && len(c.Upper) >= c.SubBufferCapacity
}

// ReworkSink adapts a TripleBufferConveyor's HoldForRework into the Receiver
// interface, so Station C's RouteOverride can hand it a first-pass P3
// through the same attempt/block/wake path every other handoff uses.
type ReworkSink struct {
	Conveyor *TripleBufferConveyor
}

// ID implements Receiver.
func (r ReworkSink) ID() string { return r.Conveyor.ID() + ":hold" }

// TryAccept implements Receiver.
func (r ReworkSink) TryAccept(clock *engine.Clock, p *types.Product) bool {
	return r.Conveyor.HoldForRework(clock, p)
}
