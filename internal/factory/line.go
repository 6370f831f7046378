package factory

import (
	"fmt"

	"github.com/nldf-sim/factory-kernel/internal/bus"
	"github.com/nldf-sim/factory-kernel/internal/engine"
	"github.com/nldf-sim/factory-kernel/internal/metrics"
	"github.com/nldf-sim/factory-kernel/internal/types"
)

// defaultStationTimes are the per-(station,type) processing ranges used by
// every line's three stations (spec.md §4.2).
func defaultStationTimes(station string) map[types.ProductType]ProcRange {
	switch station {
	case "A":
		return map[types.ProductType]ProcRange{
			types.ProductP1: {Min: 25, Max: 35},
			types.ProductP2: {Min: 35, Max: 45},
			types.ProductP3: {Min: 30, Max: 40},
		}
	case "B":
		return map[types.ProductType]ProcRange{
			types.ProductP1: {Min: 40, Max: 50},
			types.ProductP2: {Min: 55, Max: 65},
			types.ProductP3: {Min: 45, Max: 55},
		}
	default: // "C"
		return map[types.ProductType]ProcRange{
			types.ProductP1: {Min: 15, Max: 25},
			types.ProductP2: {Min: 25, Max: 35},
			types.ProductP3: {Min: 15, Max: 25},
		}
	}
}

// Line wires one production line's nine devices and two AGVs together and
// owns the orders/products flowing through it (spec.md §2's "lines do not
// interact" ownership model — each Line is independent of its siblings
// except for sharing the simulation clock).
type Line struct {
	ID string

	RawMaterial    *Warehouse
	FinishedGoods  *Warehouse
	StationA       *Station
	StationB       *Station
	StationC       *Station
	ConveyorAB     *Conveyor
	ConveyorBC     *Conveyor
	ConveyorCQ     *Conveyor             // plain variant (lines 1 and 2)
	ConveyorCQTrip *TripleBufferConveyor // line-3 variant; nil on other lines
	Quality        *QualityCheck
	AGV1           *AGV // lower corridor
	AGV2           *AGV // upper corridor

	HasP3Rework bool // true only for the line carrying ConveyorCQTrip

	Publisher bus.Publisher
	Topics    bus.Topics

	Orders   map[string]*types.Order
	Products map[string]*types.Product

	// KPI hooks. cmd/simulator's wireKPI points these at a kpi.Aggregator (factory cannot import kpi
	// itself without creating an import cycle, since kpi reads device
	// counters directly off *Line).
	OnQualityOutcome func(p *types.Product, passed, scrapped bool, cycleSeconds float64)
	OnOrderCompleted func(onTime bool)
	OnFaultInjected  func()
	OnMaterialPickup func(t types.ProductType)

	// OnGetResult supplies a KPI snapshot for an explicit get_result command
	// (spec.md §4.8). internal/kpi already imports internal/factory to read
	// device counters directly, so this stays a callback rather than a
	// *kpi.Aggregator field to avoid the reverse import creating a cycle.
	OnGetResult func(now float64) interface{}

	// SnapshotDebounceSec is the minimum spacing between two device-status
	// publishes for the same device (spec.md §6.1: "debounced to ≥ 500 ms").
	// cmd/simulator overrides the NewLine default from config.SnapshotDebounceMs.
	SnapshotDebounceSec float64

	lastSnapshotAt  map[string]float64
	pendingSnapshot map[string]bool
}

// NewLine assembles one line's devices. hasP3Rework selects the line-3
// triple-buffer Conveyor_CQ variant; every other line gets the plain one.
func NewLine(id string, speedMPS float64, chargePolicy AGVChargePolicy, hasP3Rework bool, pub bus.Publisher, topics bus.Topics) *Line {
	l := &Line{
		ID:            id,
		RawMaterial:   NewRawMaterial(id+"_RawMaterial", id),
		FinishedGoods: NewFinishedGoods(id+"_FinishedGoods", id),
		StationA:      NewStation(id+"_StationA", id, defaultStationTimes("A")),
		StationB:      NewStation(id+"_StationB", id, defaultStationTimes("B")),
		StationC:      NewStation(id+"_StationC", id, defaultStationTimes("C")),
		ConveyorAB:    NewConveyor(id+"_Conveyor_AB", id, 3),
		ConveyorBC:    NewConveyor(id+"_Conveyor_BC", id, 3),
		Quality:       NewQualityCheck(id+"_QualityCheck", id),
		AGV1:          NewAGV(id+"_AGV_1", id, CorridorLower, speedMPS, chargePolicy, P0),
		AGV2:          NewAGV(id+"_AGV_2", id, CorridorUpper, speedMPS, chargePolicy, P9),
		HasP3Rework:   hasP3Rework,
		Publisher:     pub,
		Topics:        topics,
		Orders:        make(map[string]*types.Order),
		Products:      make(map[string]*types.Product),

		SnapshotDebounceSec: 0.5,
		lastSnapshotAt:      make(map[string]float64),
		pendingSnapshot:     make(map[string]bool),
	}

	if hasP3Rework {
		l.ConveyorCQTrip = NewTripleBufferConveyor(id+"_Conveyor_CQ", id, 3, 2)
		l.ConveyorCQTrip.Downstream = l.Quality
		l.StationC.RouteOverride = func(p *types.Product) Receiver {
			if p.Type == types.ProductP3 && p.VisitCount(l.StationC.ID()) <= 1 {
				return ReworkSink{Conveyor: l.ConveyorCQTrip}
			}
			return nil
		}
	} else {
		l.ConveyorCQ = NewConveyor(id+"_Conveyor_CQ", id, 3)
		l.ConveyorCQ.Downstream = l.Quality
	}

	l.StationA.Downstream = l.ConveyorAB
	l.StationB.Downstream = l.ConveyorBC
	l.ConveyorAB.Downstream = l.StationB
	l.ConveyorBC.Downstream = l.StationC
	if hasP3Rework {
		l.StationC.Downstream = l.ConveyorCQTrip
	} else {
		l.StationC.Downstream = l.ConveyorCQ
	}

	l.Quality.OnOutcome = l.handleQualityOutcome
	l.StationA.onHandoff = func(clock *engine.Clock, p *types.Product) { l.publishDeviceStatus(clock, l.StationA) }
	l.StationB.onHandoff = func(clock *engine.Clock, p *types.Product) { l.publishDeviceStatus(clock, l.StationB) }
	l.StationC.onHandoff = func(clock *engine.Clock, p *types.Product) { l.publishDeviceStatus(clock, l.StationC) }

	return l
}

// handleQualityOutcome reports a terminal outcome (pass or scrap) to the KPI
// hook and publishes the order event if that completes the order. Rework
// outcomes are not recorded here.
func (l *Line) handleQualityOutcome(o QualityOutcome) {
	if o.Scrapped {
		if l.OnQualityOutcome != nil {
			l.OnQualityOutcome(o.Product, false, true, o.At-o.Product.CreatedAt)
		}
		l.publishOrderEventIfDone(o.Product, o.At)
		return
	}
	if o.Passed {
		if l.OnQualityOutcome != nil {
			l.OnQualityOutcome(o.Product, true, false, o.At-o.Product.CreatedAt)
		}
		l.publishOrderEventIfDone(o.Product, o.At)
	}
}

func (l *Line) publishOrderEventIfDone(p *types.Product, completedAt float64) {
	order, ok := l.Orders[p.OrderID]
	if !ok {
		return
	}
	done := order.MarkProductDone(p.ID)
	if !done {
		return
	}
	onTime := completedAt <= order.Deadline
	if l.OnOrderCompleted != nil {
		l.OnOrderCompleted(onTime)
	}
	if l.Publisher != nil {
		l.Publisher.Publish(l.Topics.OrdersStatus(), bus.OrderEvent{
			OrderID: order.ID,
			Kind:    "completed",
			OnTime:  &onTime,
		})
	}
}

// publishDeviceStatus publishes d's snapshot on a state change, debounced to
// SnapshotDebounceSec (spec.md §6.1): a device that settles within the
// debounce window of its last publish gets exactly one trailing publish at
// the window's edge rather than one per intermediate transition.
func (l *Line) publishDeviceStatus(clock *engine.Clock, d interface {
	ID() string
	DeviceStatus() string
}) {
	if l.Publisher == nil {
		return
	}
	now := clock.Now()
	last, seen := l.lastSnapshotAt[d.ID()]
	if !seen || now-last >= l.SnapshotDebounceSec {
		l.lastSnapshotAt[d.ID()] = now
		l.publishDeviceStatusNow(d)
		return
	}
	if l.pendingSnapshot[d.ID()] {
		return
	}
	l.pendingSnapshot[d.ID()] = true
	delay := l.SnapshotDebounceSec - (now - last)
	clock.Schedule(delay, engine.TierPublisher, func(c *engine.Clock) {
		delete(l.pendingSnapshot, d.ID())
		l.lastSnapshotAt[d.ID()] = c.Now()
		l.publishDeviceStatusNow(d)
	})
}

func (l *Line) publishDeviceStatusNow(d interface {
	ID() string
	DeviceStatus() string
}) {
	l.Publisher.Publish(l.Topics.DeviceStatus(l.ID, "Station", d.ID()), map[string]interface{}{
		"id":     d.ID(),
		"status": d.DeviceStatus(),
	})
}

// HeartbeatIntervalSec is the low-rate, unconditional republish cadence for
// every device's status (spec.md §6.1's "plus a low-rate heartbeat"),
// distinct from SnapshotDebounceSec's on-change throttling — a device that
// never transitions still gets seen by anything subscribed to its topic.
const HeartbeatIntervalSec = 30.0

// Heartbeat republishes every device's current status regardless of whether
// it has changed, then reschedules itself. cmd/simulator arms this once per
// line alongside Tick.
func (l *Line) Heartbeat(clock *engine.Clock) {
	if l.Publisher != nil {
		for _, d := range l.Devices() {
			l.publishDeviceStatusNow(d.Target)
			l.lastSnapshotAt[d.Target.ID()] = clock.Now()
		}
	}
	clock.Schedule(HeartbeatIntervalSec, engine.TierPublisher, l.Heartbeat)
}

// Devices returns every device on the line as fault-injection candidates.
func (l *Line) Devices() []FaultCandidate {
	out := []FaultCandidate{
		{Target: l.StationA, LineID: l.ID},
		{Target: l.StationB, LineID: l.ID},
		{Target: l.StationC, LineID: l.ID},
		{Target: l.ConveyorAB, LineID: l.ID},
		{Target: l.ConveyorBC, LineID: l.ID},
		{Target: l.Quality, LineID: l.ID},
		{Target: l.AGV1, LineID: l.ID},
		{Target: l.AGV2, LineID: l.ID},
	}
	if l.ConveyorCQTrip != nil {
		out = append(out, FaultCandidate{Target: l.ConveyorCQTrip, LineID: l.ID})
	} else {
		out = append(out, FaultCandidate{Target: l.ConveyorCQ, LineID: l.ID})
	}
	return out
}

// SweepFaultClears checks every fault candidate for a due fault clear. Tick
// calls it every TickIntervalSec. A conveyor whose fault clears wakes any
// station parked waiting to hand off onto it.
func (l *Line) SweepFaultClears(clock *engine.Clock) {
	now := clock.Now()
	conveyors := []*Conveyor{l.ConveyorAB, l.ConveyorBC, l.ConveyorCQ}
	if l.ConveyorCQTrip != nil {
		conveyors[2] = l.ConveyorCQTrip.Conveyor
	}
	for _, c := range conveyors {
		if c.FaultDue(now) {
			c.ClearFault()
			clock.Waits.Wake(recvKey(c.ID()))
		}
	}
	if l.StationA.FaultDue(now) {
		l.StationA.ResumeAfterFault(clock)
	}
	if l.StationB.FaultDue(now) {
		l.StationB.ResumeAfterFault(clock)
	}
	if l.StationC.FaultDue(now) {
		l.StationC.ResumeAfterFault(clock)
	}
	if l.Quality.FaultDue(now) {
		l.Quality.ResumeAfterFault(clock)
	}
	if l.AGV1.FaultDue(now) {
		l.AGV1.ResumeAfterFault(clock)
	}
	if l.AGV2.FaultDue(now) {
		l.AGV2.ResumeAfterFault(clock)
	}
}

// TickIntervalSec is how often Tick sweeps for due fault clears and samples
// AGV fault time.
const TickIntervalSec = 5.0

// Tick drives the parts of the line that have no external trigger: fault
// clears and AGV fault-time sampling. AGVs themselves stay idle until the
// command handler queues a move/load/unload/charge — spec.md §2's control
// flow gives stations and conveyors autonomous loops but leaves AGVs purely
// agent-commanded, so Tick never dispatches one on its own. It reschedules
// itself so the line keeps sweeping for the whole run.
func (l *Line) Tick(clock *engine.Clock) {
	l.accumulateAGVFaultSeconds()
	l.SweepFaultClears(clock)
	clock.Schedule(TickIntervalSec, engine.TierDevice, l.Tick)
}

// accumulateAGVFaultSeconds samples each AGV's fault state once per tick and
// folds the interval into FaultSeconds, the same tick-granularity sampling
// SweepFaultClears already uses to decide when a fault has cleared (spec.md
// §4.9's agv_utilization denominator needs fault time subtracted, and
// AGV.Fault only receives a clear-at time, not "now").
func (l *Line) accumulateAGVFaultSeconds() {
	if l.AGV1.InFault() {
		l.AGV1.FaultSeconds += TickIntervalSec
	}
	if l.AGV2.InFault() {
		l.AGV2.FaultSeconds += TickIntervalSec
	}
}

// AGVByID returns the line's AGV with the given ID, or nil.
func (l *Line) AGVByID(id string) *AGV {
	if l.AGV1.ID() == id {
		return l.AGV1
	}
	if l.AGV2.ID() == id {
		return l.AGV2
	}
	return nil
}

// ReceiverAt returns the device occupying path point p, or nil if the point
// has no admitting device (the charging point, P10) — used by an explicit
// unload command to find where the AGV is currently standing (spec.md
// §4.4/§4.8).
func (l *Line) ReceiverAt(p PathPoint) Receiver {
	switch p {
	case P0:
		return l.RawMaterial
	case P1:
		return l.StationA
	case P2:
		return l.ConveyorAB
	case P3:
		return l.StationB
	case P4:
		return l.ConveyorBC
	case P5:
		return l.StationC
	case P6:
		if l.ConveyorCQTrip != nil {
			return l.ConveyorCQTrip
		}
		return l.ConveyorCQ
	case P7, P8:
		return l.Quality
	case P9:
		return l.FinishedGoods
	default:
		return nil
	}
}

// PerformLoad runs an explicit load command once the AGV's queue reaches it
// (spec.md §4.4/§4.8): at the raw-material warehouse it picks up the named
// product; at P6 on line 3 it takes a held P3 rework product; at P7/P8 it
// takes whatever quality-check output is ready; anywhere else it fails. The
// outcome is published on ResponseOut since it is only known at this point,
// not when the command was first accepted.
func (l *Line) PerformLoad(clock *engine.Clock, a *AGV, productID, commandID string) {
	var p *types.Product
	var ok bool
	switch a.Position {
	case P0:
		p, ok = l.RawMaterial.TakePickupByID(productID)
		if ok {
			l.Products[p.ID] = p
			if l.OnMaterialPickup != nil {
				l.OnMaterialPickup(p.Type)
			}
		}
	case P6:
		if l.ConveyorCQTrip != nil {
			p, ok = l.ConveyorCQTrip.TakeReworkHold(clock)
		}
	case P7, P8:
		if qp, qok := l.Quality.TakePassed(); qok {
			p, ok = qp, true
		} else if qp, qok := l.Quality.TakeRework(); qok {
			p, ok = qp, true
		}
	}
	if !ok {
		l.publishResponse(clock, commandID, fmt.Sprintf("error: nothing ready for pickup at %s", a.Position))
		return
	}
	a.Payload = append(a.Payload, p)
	l.publishResponse(clock, commandID, "load completed")
}

// PerformUnload runs an explicit unload command once the AGV's queue
// reaches it: it drops the oldest payload product at whatever device
// occupies the AGV's current position, failing descriptively if that
// device cannot admit it (spec.md §4.4/§4.8).
func (l *Line) PerformUnload(clock *engine.Clock, a *AGV, commandID string) {
	if len(a.Payload) == 0 {
		l.publishResponse(clock, commandID, "error: nothing to unload")
		return
	}
	p := a.Payload[0]
	recv := l.ReceiverAt(a.Position)
	if recv == nil || !recv.TryAccept(clock, p) {
		l.publishResponse(clock, commandID, fmt.Sprintf("error: %s cannot admit a product", a.Position))
		return
	}
	a.Payload = removeProduct(a.Payload, p)
	switch a.Position {
	case P9:
		metrics.ProductsCompletedTotal.WithLabelValues(l.ID, string(p.Type), "passed").Inc()
	case P5:
		metrics.ProductsCompletedTotal.WithLabelValues(l.ID, string(p.Type), "rework").Inc()
	}
	l.publishResponse(clock, commandID, "unload completed")
}

// PublishResultSnapshot publishes a KPI snapshot to ROOT/result/status on
// demand (spec.md §4.8's get_result, §6.1's result topic), distinct from
// the fixed-cadence ROOT/kpi/status feed cmd/simulator's ticker publishes.
func (l *Line) PublishResultSnapshot(clock *engine.Clock) {
	if l.OnGetResult == nil || l.Publisher == nil {
		return
	}
	l.Publisher.Publish(l.Topics.ResultStatus(), l.OnGetResult(clock.Now()))
}

func (l *Line) publishResponse(clock *engine.Clock, commandID, message string) {
	if l.Publisher == nil {
		return
	}
	l.Publisher.Publish(l.Topics.ResponseOut(l.ID), bus.Response{
		Timestamp: clock.Now(),
		CommandID: commandID,
		Response:  message,
	})
}

func removeProduct(payload []*types.Product, target *types.Product) []*types.Product {
	out := payload[:0]
	for _, p := range payload {
		if p != target {
			out = append(out, p)
		}
	}
	return out
}
