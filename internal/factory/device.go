package factory

import (
	"github.com/nldf-sim/factory-kernel/internal/fsm"
	"github.com/nldf-sim/factory-kernel/internal/types"
)

// Device holds the attributes every device kind shares (spec.md §3): an
// identity, a status machine, a bounded FIFO buffer, and the working-time
// counter the KPI aggregator reads for utilization. Stations, conveyors,
// warehouses, the quality checker and AGVs all embed it.
type Device struct {
	ID     string
	Kind   types.DeviceKind
	LineID string

	FSM *fsm.FSM

	Capacity int
	Buffer   []*types.Product

	WorkingSeconds float64 // cumulative time spent PROCESSING
	faultUntil     float64
	inFault        bool
}

// NewDevice creates a Device with its own FSM, starting IDLE.
func NewDevice(id string, kind types.DeviceKind, lineID string, capacity int) *Device {
	return &Device{
		ID:       id,
		Kind:     kind,
		LineID:   lineID,
		Capacity: capacity,
		FSM:      fsm.New(id),
	}
}

// Status returns the device's current status.
func (d *Device) Status() types.Status { return d.FSM.Current() }

// DeviceStatus returns the device's current status as a plain string, for
// the fault injector's expr-evaluated eligibility rule.
func (d *Device) DeviceStatus() string { return string(d.FSM.Current()) }

// InFault reports whether the device is currently faulted.
func (d *Device) InFault() bool { return d.inFault }

// Fault marks the device FAULT until untilTime; it is the fault injector's
// sole entry point (spec.md §4.6). A device in fault performs no other
// transitions (invariant 4 in spec.md §8).
func (d *Device) Fault(untilTime float64) {
	d.inFault = true
	d.faultUntil = untilTime
	d.FSM.Force(types.StatusFault)
}

// ClearFault returns the device to IDLE. Payload/buffer contents are
// preserved — only AGVs have payload, and spec.md §5 requires it survive a
// fault clear.
func (d *Device) ClearFault() {
	d.inFault = false
	d.faultUntil = 0
	d.FSM.Force(types.StatusIdle)
}

// FaultDue reports whether now has reached the scheduled fault-clear time.
func (d *Device) FaultDue(now float64) bool {
	return d.inFault && now >= d.faultUntil
}

// BufferLen returns the number of products currently queued.
func (d *Device) BufferLen() int { return len(d.Buffer) }

// BufferFull reports whether the buffer is at capacity.
func (d *Device) BufferFull() bool { return len(d.Buffer) >= d.Capacity }

// pushBuffer appends a product, enforcing capacity (invariant 2, spec.md §8).
func (d *Device) pushBuffer(p *types.Product) bool {
	if d.BufferFull() {
		return false
	}
	d.Buffer = append(d.Buffer, p)
	return true
}

// popBuffer removes and returns the head product, FIFO.
func (d *Device) popBuffer() (*types.Product, bool) {
	if len(d.Buffer) == 0 {
		return nil, false
	}
	p := d.Buffer[0]
	d.Buffer = d.Buffer[1:]
	return p, true
}
