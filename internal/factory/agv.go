package factory

import (
	"github.com/nldf-sim/factory-kernel/internal/engine"
	"github.com/nldf-sim/factory-kernel/internal/fsm"
	"github.com/nldf-sim/factory-kernel/internal/types"
)

const (
	// AGVPayloadCapacity is how many products an AGV can carry at once.
	AGVPayloadCapacity = 2

	// Energy costs, expressed as battery percentage points, grounded on the
	// original simulator's flat per-meter/per-action rates (payload does not
	// change the rate).
	moveBatteryPctPerMeter = 0.1
	loadUnloadPct          = 0.5
)

// AGVChargePolicy carries the config knobs that govern charging behavior
// (spec.md §6.5's agv_* settings).
type AGVChargePolicy struct {
	BatteryThreshold float64 // forced charge triggers at or below this percent
	ChargeRatePctSec float64
	DefaultChargeTo  float64
}

// AGV is an automated guided vehicle: it carries up to AGVPayloadCapacity
// products between devices along its corridor, consuming battery as it
// moves, and must charge before it runs out (spec.md §4.4).
type AGV struct {
	*Device

	Corridor Corridor
	Position PathPoint
	Battery  float64 // percent, 0-100
	Payload  []*types.Product

	SpeedMPS float64
	Policy   AGVChargePolicy

	Queue []AGVCommand

	// Counters the KPI aggregator reads directly.
	TransportSeconds float64
	ChargeSeconds    float64
	FaultSeconds     float64
	ProactiveCharges int // began charging voluntarily, above the forced threshold
	ForcedCharges    int
	CompletedTasks   int

	chargingUntilTarget bool
	chargeTarget        float64
}

// AGVCommand is one dispatched unit of work: move to a point and, on
// arrival, optionally load or unload via the supplied closures (spec.md
// §4.8's move/load/unload actions, expressed as device-level callbacks so
// agv.go stays independent of which device sits at each path point).
type AGVCommand struct {
	ID         string
	Dest       PathPoint
	OnArrive   func(clock *engine.Clock, agv *AGV) // perform load/unload/etc
	OnComplete func()                              // notified once OnArrive returns
}

// NewAGV creates an idle, fully charged AGV at its home point.
func NewAGV(id, lineID string, corridor Corridor, speedMPS float64, policy AGVChargePolicy, home PathPoint) *AGV {
	a := &AGV{
		Device:   NewDevice(id, types.KindAGV, lineID, 0),
		Corridor: corridor,
		Position: home,
		Battery:  100,
		SpeedMPS: speedMPS,
		Policy:   policy,
	}
	// Arrival-triggered work (load or unload, depending on the command's
	// OnArrive closure) always routes through LOADING: the closures never
	// tell the FSM which of the two they're doing, so a single status
	// covers both rather than colliding on the same (IDLE, START) key.
	a.FSM.AddTransition(types.StatusIdle, fsm.EventStart, types.StatusLoading)
	a.FSM.AddTransition(types.StatusLoading, fsm.EventFinish, types.StatusIdle)
	return a
}

// ID implements Faultable (Device.ID is a field, not a method, so AGV needs
// its own accessor the same way Warehouse/Station/QualityCheck do).
func (a *AGV) ID() string { return a.Device.ID }

// PayloadFull reports whether the AGV is carrying as many products as it can.
func (a *AGV) PayloadFull() bool { return len(a.Payload) >= AGVPayloadCapacity }

// LowBattery reports whether the AGV is at or below the forced-charge
// threshold.
func (a *AGV) LowBattery() bool { return a.Battery <= a.Policy.BatteryThreshold }

// Enqueue appends a command to this AGV's FIFO queue and starts it if idle
// (spec.md §4.8: commands for a given AGV execute strictly in arrival order).
func (a *AGV) Enqueue(clock *engine.Clock, cmd AGVCommand) {
	a.Queue = append(a.Queue, cmd)
	a.tryDispatch(clock)
}

func (a *AGV) tryDispatch(clock *engine.Clock) {
	if a.InFault() || a.Status() != types.StatusIdle || len(a.Queue) == 0 {
		return
	}
	if a.LowBattery() {
		a.beginCharge(clock, false, 100)
		return
	}
	cmd := a.Queue[0]
	if a.Battery-a.estimatedEnergyCost(cmd) < a.Policy.BatteryThreshold {
		a.beginCharge(clock, false, 100)
		return
	}
	a.Queue = a.Queue[1:]
	a.move(clock, cmd)
}

// estimatedEnergyCost predicts the battery percentage a queued command would
// spend: the move itself plus, if the command performs an action on arrival,
// the flat load/unload cost that action consumes (spec.md §4.4's
// forced-charge policy: "the AGV estimates the energy required (move-to-
// target + any subsequent load/unload implied by the command)").
func (a *AGV) estimatedEnergyCost(cmd AGVCommand) float64 {
	cost := Distance(a.Corridor, a.Position, cmd.Dest) * moveBatteryPctPerMeter
	if cmd.OnArrive != nil {
		cost += loadUnloadPct
	}
	return cost
}

func (a *AGV) move(clock *engine.Clock, cmd AGVCommand) {
	_ = a.FSM.Fire(fsm.EventMove)
	dist := Distance(a.Corridor, a.Position, cmd.Dest)
	duration := TravelTime(a.Corridor, a.Position, cmd.Dest, a.SpeedMPS)
	a.consume(dist * moveBatteryPctPerMeter)
	a.TransportSeconds += duration
	clock.Schedule(duration, engine.TierAGV, func(c *engine.Clock) {
		a.Position = cmd.Dest
		_ = a.FSM.Fire(fsm.EventFinish)
		a.performArrival(c, cmd)
	})
}

func (a *AGV) performArrival(clock *engine.Clock, cmd AGVCommand) {
	if cmd.OnArrive != nil {
		_ = a.FSM.Fire(fsm.EventStart) // IDLE -> LOADING
		cmd.OnArrive(clock, a)
		_ = a.FSM.Fire(fsm.EventFinish)
		a.consume(loadUnloadPct)
	}
	a.CompletedTasks++
	if cmd.OnComplete != nil {
		cmd.OnComplete()
	}
	a.tryDispatch(clock)
}

// consume lowers battery by pct, floored at 0.
func (a *AGV) consume(pct float64) {
	a.Battery -= pct
	if a.Battery < 0 {
		a.Battery = 0
	}
}

// beginCharge routes the AGV to the charging point and ramps its battery up
// at Policy.ChargeRatePctSec until targetLevel, distinguishing a proactive
// charge — explicitly requested by an agent while battery is above the
// forced threshold — from a forced one the AGV detours into on its own when
// dispatching a queued action would otherwise run it dry (spec.md §4.4/
// §4.9's charge-strategy metric). A forced charge always targets 100%; an
// explicit charge command's target comes from chargeTargetLevel.
func (a *AGV) beginCharge(clock *engine.Clock, proactive bool, targetLevel float64) {
	if proactive {
		a.ProactiveCharges++
	} else {
		a.ForcedCharges++
	}
	_ = a.FSM.Fire(fsm.EventMove)
	travel := TravelTime(a.Corridor, a.Position, P10, a.SpeedMPS)
	clock.Schedule(travel, engine.TierAGV, func(c *engine.Clock) {
		a.Position = P10
		_ = a.FSM.Fire(fsm.EventFinish)
		_ = a.FSM.Fire(fsm.EventChargeStart)
		a.chargingUntilTarget = true
		a.chargeTarget = targetLevel
		a.chargeTick(c)
	})
}

func (a *AGV) chargeTick(clock *engine.Clock) {
	if !a.chargingUntilTarget {
		return
	}
	a.Battery += a.Policy.ChargeRatePctSec
	a.ChargeSeconds++
	if a.Battery >= a.chargeTarget {
		a.Battery = a.chargeTarget
		a.chargingUntilTarget = false
		_ = a.FSM.Fire(fsm.EventChargeDone)
		a.tryDispatch(clock)
		return
	}
	clock.Schedule(1, engine.TierAGV, a.chargeTick)
}

// ResumeAfterFault clears the fault and resumes the command queue.
func (a *AGV) ResumeAfterFault(clock *engine.Clock) {
	a.ClearFault()
	a.tryDispatch(clock)
}
